package music

// DedupSet records track identities already chosen or excluded during one
// recommendation request.
type DedupSet map[string]struct{}

// Has reports whether id was recorded.
func (s DedupSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Add records id.
func (s DedupSet) Add(id string) { s[id] = struct{}{} }

// Picks accumulates recommended tracks in insertion order. It never holds
// more than its capacity, the seed identity or a duplicate identity.
type Picks struct {
	max    int
	seen   DedupSet
	tracks []Track
}

// NewPicks returns an empty Picks that excludes seedID and holds at most max
// tracks.
func NewPicks(seedID string, max int) *Picks {
	seen := DedupSet{}
	if seedID != "" {
		seen.Add(seedID)
	}
	return &Picks{max: max, seen: seen}
}

// Offer adds t when it is new and there is room. It reports whether t was
// added.
func (p *Picks) Offer(t Track) bool {
	if p.Full() || t.ID == "" || p.seen.Has(t.ID) {
		return false
	}
	p.seen.Add(t.ID)
	p.tracks = append(p.tracks, t)
	return true
}

// OfferAll offers each track in order until full and returns how many were
// added.
func (p *Picks) OfferAll(ts []Track) int {
	added := 0
	for _, t := range ts {
		if p.Full() {
			break
		}
		if p.Offer(t) {
			added++
		}
	}
	return added
}

// Full reports whether the capacity has been reached.
func (p *Picks) Full() bool { return len(p.tracks) >= p.max }

// Len returns the number of tracks held.
func (p *Picks) Len() int { return len(p.tracks) }

// Tracks returns a copy of the picked tracks.
func (p *Picks) Tracks() []Track {
	out := make([]Track, len(p.tracks))
	copy(out, p.tracks)
	return out
}
