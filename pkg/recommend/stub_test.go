package recommend

import (
	"context"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"Similar-Music-Go/pkg/music"
)

func quietLog() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

func track(id, title, artist string) music.Track {
	return music.Track{ID: id, Title: title, Artist: artist, ArtistID: "art-" + strings.ToLower(artist)}
}

func notFound(op string) error { return music.NewError("stub", op, music.KindNotFound, nil) }
func unavailable(op string) error {
	return music.NewError("stub", op, music.KindUnavailable, nil)
}

// stubPrimary serves canned catalog data and counts every call by operation.
type stubPrimary struct {
	mu    sync.Mutex
	calls map[string]int

	search    map[string][]music.Track // keyed by lower-cased title
	features  *music.AudioFeatures
	genres    []string
	recommend func(music.Seeds) ([]music.Track, error)
	top       map[string][]music.Track // keyed by artist ID
	artists   map[string]music.Artist  // keyed by name

	seeds []music.Seeds
}

func (p *stubPrimary) count(op string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calls == nil {
		p.calls = map[string]int{}
	}
	p.calls[op]++
}

func (p *stubPrimary) n(op string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[op]
}

func (p *stubPrimary) total() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		n += c
	}
	return n
}

func (p *stubPrimary) SearchTracks(_ context.Context, q music.TrackQuery, limit int) ([]music.Track, error) {
	p.count("search_tracks")
	ts := p.search[strings.ToLower(q.Title)]
	if len(ts) == 0 {
		return nil, notFound("search_tracks")
	}
	if len(ts) > limit {
		ts = ts[:limit]
	}
	return ts, nil
}

func (p *stubPrimary) AudioFeatures(context.Context, string) (*music.AudioFeatures, error) {
	p.count("audio_features")
	return p.features, nil
}

func (p *stubPrimary) ArtistGenres(context.Context, string) ([]string, error) {
	p.count("artist")
	return p.genres, nil
}

func (p *stubPrimary) Recommend(_ context.Context, s music.Seeds, _ int) ([]music.Track, error) {
	p.count("recommendations")
	p.mu.Lock()
	p.seeds = append(p.seeds, s)
	p.mu.Unlock()
	if p.recommend == nil {
		return nil, notFound("recommendations")
	}
	return p.recommend(s)
}

func (p *stubPrimary) ArtistTopTracks(_ context.Context, id, _ string) ([]music.Track, error) {
	p.count("top_tracks")
	ts, ok := p.top[id]
	if !ok {
		return nil, notFound("top_tracks")
	}
	return append([]music.Track(nil), ts...), nil
}

func (p *stubPrimary) SearchArtist(_ context.Context, name string) ([]music.Artist, error) {
	p.count("search_artist")
	a, ok := p.artists[name]
	if !ok {
		return nil, notFound("search_artist")
	}
	return []music.Artist{a}, nil
}

// stubSecondary is the similarity-graph counterpart of stubPrimary.
type stubSecondary struct {
	mu    sync.Mutex
	calls map[string]int

	tracks         map[string]music.TrackHandle // keyed by "artist|title"
	similar        map[string][]music.SimilarTrack
	covers         map[string]string
	searches       map[string][]music.TrackHandle
	artists        map[string]music.ArtistHandle
	similarArtists map[string][]music.ArtistHandle
}

func (s *stubSecondary) count(op string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.calls == nil {
		s.calls = map[string]int{}
	}
	s.calls[op]++
}

func (s *stubSecondary) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func (s *stubSecondary) GetTrack(_ context.Context, artist, title string) (music.TrackHandle, error) {
	s.count("get_track")
	h, ok := s.tracks[artist+"|"+title]
	if !ok {
		return music.TrackHandle{}, notFound("get_track")
	}
	return h, nil
}

func (s *stubSecondary) SimilarTracks(_ context.Context, h music.TrackHandle, limit int) ([]music.SimilarTrack, error) {
	s.count("similar_tracks")
	st := s.similar[h.Title]
	if len(st) == 0 {
		return nil, notFound("similar_tracks")
	}
	if limit > 0 && len(st) > limit {
		st = st[:limit]
	}
	return st, nil
}

func (s *stubSecondary) AlbumCover(_ context.Context, h music.TrackHandle) (string, error) {
	s.count("album_cover")
	return s.covers[h.Title], nil
}

func (s *stubSecondary) SearchTrack(_ context.Context, text string) ([]music.TrackHandle, error) {
	s.count("search_track")
	hs := s.searches[text]
	if len(hs) == 0 {
		return nil, notFound("search_track")
	}
	return hs, nil
}

func (s *stubSecondary) GetArtist(_ context.Context, name string) (music.ArtistHandle, error) {
	s.count("get_artist")
	a, ok := s.artists[name]
	if !ok {
		return music.ArtistHandle{}, notFound("get_artist")
	}
	return a, nil
}

func (s *stubSecondary) SimilarArtists(_ context.Context, h music.ArtistHandle, limit int) ([]music.ArtistHandle, error) {
	s.count("similar_artists")
	as := s.similarArtists[h.Name]
	if len(as) == 0 {
		return nil, notFound("similar_artists")
	}
	if limit > 0 && len(as) > limit {
		as = as[:limit]
	}
	return as, nil
}

func similarTo(pairs ...string) []music.SimilarTrack {
	var out []music.SimilarTrack
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, music.SimilarTrack{Track: music.TrackHandle{Artist: pairs[i], Title: pairs[i+1]}, Weight: 1})
	}
	return out
}

func ids(ts []music.Track) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}
