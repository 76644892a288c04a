// Command web starts the Similar Music server. Configuration is read from an
// optional config.yaml and environment variables (see pkg/config). The server
// serves the HTML search page, a JSON API and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"Similar-Music-Go/pkg/config"
	"Similar-Music-Go/pkg/db"
	"Similar-Music-Go/pkg/handlers"
	"Similar-Music-Go/pkg/lastfm"
	"Similar-Music-Go/pkg/recommend"
	"Similar-Music-Go/pkg/spotify"
	"Similar-Music-Go/pkg/upstream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	configureLogging(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		log.Fatalf("server: %v", err)
	}
}

// configureLogging applies LOG_LEVEL and LOG_FORMAT to the standard logger.
func configureLogging(c config.LoggingConfig) {
	if lvl, err := log.ParseLevel(c.Level); err == nil {
		log.SetLevel(lvl)
	} else {
		log.WithField("level", c.Level).Warn("unknown log level, using info")
	}
	if c.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
}

// run wires the providers, the recommendation service and the database, and
// serves HTTP until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	logger := log.StandardLogger()
	policy := upstream.Policy{
		Timeout:    cfg.Upstream.CallTimeout,
		MaxRetries: uint64(cfg.Upstream.MaxRetries),
	}

	sc, err := spotify.NewSpotifyClient(ctx, spotify.Options{
		ClientID:     cfg.Spotify.ClientID,
		ClientSecret: cfg.Spotify.ClientSecret,
		Market:       cfg.Spotify.Market,
		Policy:       policy,
		Log:          logger,
	})
	if err != nil {
		return err
	}
	lf := lastfm.New(lastfm.Options{
		APIKey:        cfg.LastFM.APIKey,
		RatePerSecond: cfg.LastFM.RateLimit,
		HTTP:          &http.Client{Timeout: cfg.Upstream.CallTimeout},
		Policy:        policy,
		Log:           logger,
	})

	database, err := db.New(cfg.Database.Path)
	if err != nil {
		return err
	}
	defer database.Close()

	svc := recommend.New(recommend.Config{
		Primary:   sc,
		Secondary: lf,
		Genres:    recommend.KeywordFilter(cfg.Recommend.GenreKeywords...),
		Market:    cfg.Spotify.Market,
		Budget:    cfg.Upstream.RequestBudget,
		Log:       logger,
	})
	app := &handlers.Application{
		Recommender: svc,
		DB:          database,
		SignKey:     []byte(cfg.Server.SigningKey),
		Breakers:    []handlers.Breaker{sc.Guard(), lf.Guard()},
	}

	srv := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           newRouter(app, cfg.Server.RateLimitReqs),
		ReadHeaderTimeout: 5 * time.Second,
		// Leave room for a full recommendation budget.
		WriteTimeout: cfg.Upstream.RequestBudget + 5*time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// newRouter registers the application routes. Everything except /metrics and
// /healthz is rate limited per client IP when perMinute is positive.
func newRouter(app *handlers.Application, perMinute int) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/{$}", app.Home)
	mux.HandleFunc("GET /api/recommendations", app.RecommendationsJSON)
	mux.HandleFunc("/api/history", app.HistoryJSON)
	mux.HandleFunc("POST /api/share", app.CreateShareJSON)
	mux.HandleFunc("GET /share/{id}", app.Share)

	var h http.Handler = mux
	if perMinute > 0 {
		h = httprate.LimitByIP(perMinute, time.Minute)(h)
	}

	root := http.NewServeMux()
	root.Handle("GET /metrics", promhttp.Handler())
	root.HandleFunc("GET /healthz", app.Healthz)
	root.Handle("/", h)
	return handlers.LogRequests(handlers.SecurityHeaders(root))
}
