package recommend

import (
	"context"
	"math/rand/v2"

	"Similar-Music-Go/pkg/music"
)

// similarArtistLimit bounds how many similar artists feed the pool.
const similarArtistLimit = 5

// Shuffler permutes n elements. *rand.Rand from math/rand/v2 satisfies it;
// tests inject a seeded one to make draws reproducible.
type Shuffler interface {
	Shuffle(n int, swap func(i, j int))
}

// globalShuffler uses the goroutine-safe top-level math/rand/v2 source.
type globalShuffler struct{}

func (globalShuffler) Shuffle(n int, swap func(i, j int)) { rand.Shuffle(n, swap) }

// NewSeededShuffler returns a deterministic Shuffler. It is not safe for
// concurrent use.
func NewSeededShuffler(seed uint64) Shuffler {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Pool is the last-resort tier: it gathers a broad candidate set and samples
// from it at random.
type Pool struct {
	Primary   music.PrimaryProvider
	Secondary music.SecondaryProvider
	Shuffler  Shuffler
	Market    string
}

// Candidates returns the seed artist's top tracks followed by the top tracks
// of up to five similar artists, excluding the seed track. Similar artists
// that cannot be found in the catalog are skipped.
func (p *Pool) Candidates(ctx context.Context, env *callEnv, seed Seed) []music.Track {
	var pool []music.Track
	add := func(ts []music.Track) {
		for _, t := range ts {
			if t.ID != seed.TrackID {
				pool = append(pool, t)
			}
		}
	}

	own := attempt(ctx, env, rolePrimary, "top_tracks", func(ctx context.Context) ([]music.Track, error) {
		return p.Primary.ArtistTopTracks(ctx, seed.ArtistID, p.Market)
	})
	add(own.Value)

	artist := attempt(ctx, env, roleSecondary, "get_artist", func(ctx context.Context) (music.ArtistHandle, error) {
		return p.Secondary.GetArtist(ctx, seed.Artist)
	})
	if !artist.OK() {
		return pool
	}
	similar := attempt(ctx, env, roleSecondary, "similar_artists", func(ctx context.Context) ([]music.ArtistHandle, error) {
		return p.Secondary.SimilarArtists(ctx, artist.Value, similarArtistLimit)
	})
	for _, sa := range similar.Value {
		if ctx.Err() != nil {
			break
		}
		found := attempt(ctx, env, rolePrimary, "search_artist", func(ctx context.Context) ([]music.Artist, error) {
			return p.Primary.SearchArtist(ctx, sa.Name)
		})
		if len(found.Value) == 0 || found.Value[0].ID == "" {
			continue
		}
		id := found.Value[0].ID
		top := attempt(ctx, env, rolePrimary, "top_tracks", func(ctx context.Context) ([]music.Track, error) {
			return p.Primary.ArtistTopTracks(ctx, id, p.Market)
		})
		add(top.Value)
	}
	return pool
}

// Draw shuffles candidates in place and offers them to picks in shuffled
// order. It returns how many were added.
func (p *Pool) Draw(candidates []music.Track, picks *music.Picks) int {
	s := p.Shuffler
	if s == nil {
		s = globalShuffler{}
	}
	s.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})
	return picks.OfferAll(candidates)
}
