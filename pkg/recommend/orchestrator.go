// Package recommend turns a free-text query into a short list of similar
// tracks. The Orchestrator runs an ordered waterfall of strategies against
// the catalog and similarity-graph providers and stops as soon as enough
// unique tracks were collected. Provider failures never abort a request:
// each failed call contributes nothing and the next strategy runs.
package recommend

import (
	"context"
	"strconv"

	"github.com/sirupsen/logrus"

	"Similar-Music-Go/pkg/metrics"
	"Similar-Music-Go/pkg/music"
)

const (
	// MaxResults caps every recommendation list.
	MaxResults = 3

	recommendLimit = 20
	maxGenreSeeds  = 5
	bridgeLimit    = 5
)

// Tier identifies one waterfall strategy.
type Tier int

const (
	TierSeeded Tier = iota + 1
	TierArtistSeeded
	TierSimilarityBridge
	TierPool
)

func (t Tier) String() string {
	switch t {
	case TierSeeded:
		return "seeded"
	case TierArtistSeeded:
		return "artist_seeded"
	case TierSimilarityBridge:
		return "similarity_bridge"
	case TierPool:
		return "pool"
	default:
		return "tier_" + strconv.Itoa(int(t))
	}
}

// Seed is the resolved input track recommendations are generated from.
type Seed struct {
	TrackID  string
	ArtistID string
	Title    string
	Artist   string
}

// TierReport describes what one tier did. Skipped is set when the request
// budget ran out before the tier could start.
type TierReport struct {
	Tier     Tier
	Added    int
	Skipped  bool
	Failures []*music.Error
}

// Outcome is the result of a waterfall run. Report lists the tiers that were
// reached, in order.
type Outcome struct {
	Tracks []music.Track
	Report []TierReport
}

// Orchestrator runs the recommendation waterfall. It is safe for concurrent
// use when its providers and Pool shuffler are.
type Orchestrator struct {
	Primary   music.PrimaryProvider
	Secondary music.SecondaryProvider
	// Genres selects which artist genres become seeds. Nil disables genre
	// seeding.
	Genres GenreFilter
	Pool   *Pool
	Market string
	Log    logrus.FieldLogger
}

// NewOrchestrator wires an Orchestrator with a Pool sharing its providers.
// A nil shuffler uses the process-wide random source.
func NewOrchestrator(p music.PrimaryProvider, s music.SecondaryProvider, genres GenreFilter, shuffler Shuffler, market string, log logrus.FieldLogger) *Orchestrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{
		Primary:   p,
		Secondary: s,
		Genres:    genres,
		Pool:      &Pool{Primary: p, Secondary: s, Shuffler: shuffler, Market: market},
		Market:    market,
		Log:       log,
	}
}

// Recommend returns at most MaxResults tracks for seed, never including the
// seed itself or duplicates, ordered by tier precedence.
func (o *Orchestrator) Recommend(ctx context.Context, seed Seed) Outcome {
	picks := music.NewPicks(seed.TrackID, MaxResults)
	var out Outcome
	tiers := []struct {
		tier Tier
		run  func(context.Context, *callEnv, Seed, *music.Picks)
	}{
		{TierSeeded, o.seeded},
		{TierArtistSeeded, o.artistSeeded},
		{TierSimilarityBridge, o.bridge},
		{TierPool, o.pool},
	}
	log := o.Log.WithField("seed", seed.TrackID)
	for _, t := range tiers {
		if picks.Full() {
			break
		}
		if ctx.Err() != nil {
			log.WithField("tier", t.tier.String()).Warn("request budget exhausted, skipping tier")
			out.Report = append(out.Report, TierReport{Tier: t.tier, Skipped: true})
			continue
		}
		env := newCallEnv(log, t.tier.String())
		before := picks.Len()
		t.run(ctx, env, seed, picks)
		added := picks.Len() - before
		if added > 0 {
			metrics.TierPicks.WithLabelValues(t.tier.String()).Add(float64(added))
		}
		out.Report = append(out.Report, TierReport{Tier: t.tier, Added: added, Failures: env.failures})
	}
	out.Tracks = picks.Tracks()
	return out
}

// seeded asks for recommendations seeded by the track, its artist, the
// artist's matching genres and the track's audio features.
func (o *Orchestrator) seeded(ctx context.Context, env *callEnv, seed Seed, picks *music.Picks) {
	features := attempt(ctx, env, rolePrimary, "audio_features", func(ctx context.Context) (*music.AudioFeatures, error) {
		return o.Primary.AudioFeatures(ctx, seed.TrackID)
	})
	genres := attempt(ctx, env, rolePrimary, "artist", func(ctx context.Context) ([]string, error) {
		return o.Primary.ArtistGenres(ctx, seed.ArtistID)
	})
	seeds := music.Seeds{
		Tracks:  []string{seed.TrackID},
		Artists: []string{seed.ArtistID},
		Genres:  narrowGenres(genres.Value, o.Genres, maxGenreSeeds),
		Target:  features.Value,
		Market:  o.Market,
	}
	recs := attempt(ctx, env, rolePrimary, "recommendations", func(ctx context.Context) ([]music.Track, error) {
		return o.Primary.Recommend(ctx, seeds, recommendLimit)
	})
	picks.OfferAll(recs.Value)
}

// artistSeeded asks for recommendations seeded by the artist alone.
func (o *Orchestrator) artistSeeded(ctx context.Context, env *callEnv, seed Seed, picks *music.Picks) {
	seeds := music.Seeds{Artists: []string{seed.ArtistID}, Market: o.Market}
	recs := attempt(ctx, env, rolePrimary, "recommendations", func(ctx context.Context) ([]music.Track, error) {
		return o.Primary.Recommend(ctx, seeds, recommendLimit)
	})
	picks.OfferAll(recs.Value)
}

// bridge maps the similarity graph's neighbours of the seed back onto the
// catalog with an exact title and artist search.
func (o *Orchestrator) bridge(ctx context.Context, env *callEnv, seed Seed, picks *music.Picks) {
	handle := attempt(ctx, env, roleSecondary, "get_track", func(ctx context.Context) (music.TrackHandle, error) {
		return o.Secondary.GetTrack(ctx, seed.Artist, seed.Title)
	})
	if !handle.OK() {
		return
	}
	similar := attempt(ctx, env, roleSecondary, "similar_tracks", func(ctx context.Context) ([]music.SimilarTrack, error) {
		return o.Secondary.SimilarTracks(ctx, handle.Value, bridgeLimit)
	})
	for _, st := range similar.Value {
		if picks.Full() || ctx.Err() != nil {
			return
		}
		q := music.TrackQuery{Title: st.Track.Title, Artist: st.Track.Artist}
		hits := attempt(ctx, env, rolePrimary, "search_tracks", func(ctx context.Context) ([]music.Track, error) {
			return o.Primary.SearchTracks(ctx, q, 1)
		})
		if len(hits.Value) > 0 {
			picks.Offer(hits.Value[0])
		}
	}
}

// pool draws randomly from the seed artist's and similar artists' top
// tracks.
func (o *Orchestrator) pool(ctx context.Context, env *callEnv, seed Seed, picks *music.Picks) {
	if o.Pool == nil {
		return
	}
	candidates := o.Pool.Candidates(ctx, env, seed)
	o.Pool.Draw(candidates, picks)
}
