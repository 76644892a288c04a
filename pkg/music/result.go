package music

import (
	"context"
	"sync"
	"time"
)

// Recommendation is a single entry of a RecommendationResult.
type Recommendation struct {
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	CoverURL string `json:"cover_url,omitempty"`
	URL      string `json:"url,omitempty"`
}

// RecommendationResult is the outcome of a query. When nothing could be found
// the input fields are empty and Similar is empty; this is a normal response.
type RecommendationResult struct {
	InputCover  string           `json:"input_cover,omitempty"`
	InputTitle  string           `json:"input_title,omitempty"`
	InputArtist string           `json:"input_artist,omitempty"`
	Similar     []Recommendation `json:"similar"`
}

// EmptyResult returns the terminal "nothing found" result.
func EmptyResult() RecommendationResult {
	return RecommendationResult{Similar: []Recommendation{}}
}

// FromTrack converts a catalog track into a recommendation entry.
func FromTrack(t Track) Recommendation {
	return Recommendation{Title: t.Title, Artist: t.Artist, CoverURL: t.CoverURL, URL: t.URL}
}

// HistoryEntry records one successful query.
type HistoryEntry struct {
	InputTitle      string    `json:"input_title"`
	Recommendations []string  `json:"recommendations"`
	CreatedAt       time.Time `json:"created_at"`
}

// HistoryEntry returns the entry the caller should persist for r. ok is false
// when the input title is absent or there are no recommendations.
func (r RecommendationResult) HistoryEntry() (entry HistoryEntry, ok bool) {
	if r.InputTitle == "" || len(r.Similar) == 0 {
		return HistoryEntry{}, false
	}
	titles := make([]string, len(r.Similar))
	for i, s := range r.Similar {
		titles[i] = s.Title
	}
	return HistoryEntry{InputTitle: r.InputTitle, Recommendations: titles, CreatedAt: time.Now().UTC()}, true
}

// HistoryStore persists history entries for one visitor. It is owned by the
// caller of the recommendation core.
type HistoryStore interface {
	Append(ctx context.Context, e HistoryEntry) error
	All(ctx context.Context) ([]HistoryEntry, error)
}

// MemoryHistory is an in-process HistoryStore.
type MemoryHistory struct {
	mu      sync.Mutex
	entries []HistoryEntry
}

var _ HistoryStore = (*MemoryHistory)(nil)

// Append stores e.
func (m *MemoryHistory) Append(_ context.Context, e HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, e)
	return nil
}

// All returns the entries in insertion order.
func (m *MemoryHistory) All(context.Context) ([]HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]HistoryEntry, len(m.entries))
	copy(out, m.entries)
	return out, nil
}

// Record appends the entry for r to store when r qualifies. It reports
// whether an entry was written.
func Record(ctx context.Context, store HistoryStore, r RecommendationResult) (bool, error) {
	e, ok := r.HistoryEntry()
	if !ok {
		return false, nil
	}
	if err := store.Append(ctx, e); err != nil {
		return false, err
	}
	return true, nil
}
