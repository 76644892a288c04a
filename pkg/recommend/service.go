package recommend

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"Similar-Music-Go/pkg/metrics"
	"Similar-Music-Go/pkg/music"
	"Similar-Music-Go/pkg/query"
)

// DefaultBudget bounds a whole FindSimilarMusic call.
const DefaultBudget = 10 * time.Second

// Config wires a Service.
type Config struct {
	Primary   music.PrimaryProvider
	Secondary music.SecondaryProvider
	Genres    GenreFilter
	Shuffler  Shuffler
	Market    string
	// Budget is the overall deadline of one request. Zero means
	// DefaultBudget.
	Budget time.Duration
	Log    logrus.FieldLogger
}

// Service answers free-text queries. It keeps no per-request state, so one
// instance serves all requests; persisting history is left to the caller.
type Service struct {
	primary      music.PrimaryProvider
	orchestrator *Orchestrator
	resolver     *Resolver
	secondary    music.SecondaryProvider
	budget       time.Duration
	log          logrus.FieldLogger
}

// New builds a Service from cfg.
func New(cfg Config) *Service {
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	if cfg.Budget <= 0 {
		cfg.Budget = DefaultBudget
	}
	log := cfg.Log.WithField("component", "recommend")
	return &Service{
		primary:      cfg.Primary,
		secondary:    cfg.Secondary,
		orchestrator: NewOrchestrator(cfg.Primary, cfg.Secondary, cfg.Genres, cfg.Shuffler, cfg.Market, log),
		resolver:     &Resolver{Secondary: cfg.Secondary, Log: log},
		budget:       cfg.Budget,
		log:          log,
	}
}

// FindSimilarMusic resolves raw against the catalog and runs the waterfall.
// When the catalog yields nothing it falls back to the similarity graph. If
// every path fails the empty result is returned; that is not an error.
func (s *Service) FindSimilarMusic(ctx context.Context, raw string) music.RecommendationResult {
	start := time.Now()
	defer func() { metrics.RequestDuration.Observe(time.Since(start).Seconds()) }()

	ctx, cancel := context.WithTimeout(ctx, s.budget)
	defer cancel()

	q := query.Parse(raw)
	log := s.log.WithFields(logrus.Fields{"artist": q.Artist, "title": q.Title})
	if q.Title == "" && !q.HasArtist() {
		metrics.Requests.WithLabelValues("empty").Inc()
		return music.EmptyResult()
	}

	if res, ok := s.fromPrimary(ctx, log, q); ok {
		metrics.Requests.WithLabelValues("primary").Inc()
		return res
	}
	if res, ok := s.fromSecondary(ctx, log, q, strings.TrimSpace(raw)); ok {
		metrics.Requests.WithLabelValues("secondary").Inc()
		return res
	}
	log.Info("no recommendations found")
	metrics.Requests.WithLabelValues("empty").Inc()
	return music.EmptyResult()
}

func (s *Service) fromPrimary(ctx context.Context, log logrus.FieldLogger, q query.Query) (music.RecommendationResult, bool) {
	env := newCallEnv(log, "match")
	match := attempt(ctx, env, rolePrimary, "search_tracks", func(ctx context.Context) ([]music.Track, error) {
		return s.primary.SearchTracks(ctx, music.TrackQuery{Title: q.Title, Artist: q.Artist}, 1)
	})
	if len(match.Value) == 0 {
		return music.RecommendationResult{}, false
	}
	in := match.Value[0]
	out := s.orchestrator.Recommend(ctx, Seed{TrackID: in.ID, ArtistID: in.ArtistID, Title: in.Title, Artist: in.Artist})
	if len(out.Tracks) == 0 {
		log.WithField("seed", in.ID).Info("catalog match produced no recommendations")
		return music.RecommendationResult{}, false
	}
	res := music.RecommendationResult{
		InputCover:  in.CoverURL,
		InputTitle:  in.Title,
		InputArtist: in.Artist,
		Similar:     make([]music.Recommendation, len(out.Tracks)),
	}
	for i, t := range out.Tracks {
		res.Similar[i] = music.FromTrack(t)
	}
	return res, true
}

// fromSecondary tries the explicit artist/title split first and then a
// free-text search for the whole query.
func (s *Service) fromSecondary(ctx context.Context, log logrus.FieldLogger, q query.Query, text string) (music.RecommendationResult, bool) {
	if q.HasArtist() {
		if res, ok := s.resolve(ctx, q.Artist, q.Title); ok {
			return res, true
		}
	}
	env := newCallEnv(log, "discover")
	hits := attempt(ctx, env, roleSecondary, "search_track", func(ctx context.Context) ([]music.TrackHandle, error) {
		return s.secondary.SearchTrack(ctx, text)
	})
	if len(hits.Value) == 0 {
		return music.RecommendationResult{}, false
	}
	return s.resolve(ctx, hits.Value[0].Artist, hits.Value[0].Title)
}

func (s *Service) resolve(ctx context.Context, artist, title string) (music.RecommendationResult, bool) {
	r, err := s.resolver.Resolve(ctx, artist, title, MaxResults)
	if err != nil || len(r.Similar) == 0 {
		return music.RecommendationResult{}, false
	}
	return music.RecommendationResult{
		InputCover:  r.CoverURL,
		InputTitle:  r.Title,
		InputArtist: r.Artist,
		Similar:     r.Similar,
	}, true
}
