// Package spotify wraps the Spotify Web API client and exposes it as the
// catalog provider used by the recommendation core. It authenticates with the
// client credentials flow, so only public catalog endpoints are available.
//
// The wrapped library does not accept a context. Each call is run on its own
// goroutine and abandoned when the context expires; the underlying HTTP
// client carries a timeout so abandoned requests still terminate.

package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zmb3/spotify"
	"golang.org/x/oauth2/clientcredentials"

	"Similar-Music-Go/pkg/music"
	"Similar-Music-Go/pkg/upstream"
)

// ProviderName labels errors, logs and metrics produced by this package.
const ProviderName = "spotify"

// maxSeeds is the total number of seeds Spotify accepts per recommendation
// request across tracks, artists and genres.
const maxSeeds = 5

// searcher defines the subset of the spotify.Client used by this package.
// It allows the concrete client to be replaced in tests.
type searcher interface {
	SearchOpt(query string, t spotify.SearchType, opt *spotify.Options) (*spotify.SearchResult, error)
	GetAudioFeatures(ids ...spotify.ID) ([]*spotify.AudioFeatures, error)
	GetArtist(id spotify.ID) (*spotify.FullArtist, error)
	GetRecommendations(seeds spotify.Seeds, attrs *spotify.TrackAttributes, opt *spotify.Options) (*spotify.Recommendations, error)
	GetArtistsTopTracks(artistID spotify.ID, country string) ([]spotify.FullTrack, error)
	GetTracks(ids ...spotify.ID) ([]*spotify.FullTrack, error)
}

// SpotifyClient wraps the official Spotify client providing the
// music.PrimaryProvider operations.
type SpotifyClient struct {
	client searcher
	guard  *upstream.Guard
	market string
	log    logrus.FieldLogger
}

// Compile-time interface check.
var _ music.PrimaryProvider = (*SpotifyClient)(nil)

// Options configures NewSpotifyClient.
type Options struct {
	ClientID     string
	ClientSecret string
	// Market is the default ISO country code used when a call does not name
	// one.
	Market string
	Policy upstream.Policy
	Log    logrus.FieldLogger
}

// NewSpotifyClient authenticates using the client credentials flow and returns
// a SpotifyClient ready for API calls.
func NewSpotifyClient(ctx context.Context, opts Options) (*SpotifyClient, error) {
	config := &clientcredentials.Config{
		ClientID:     opts.ClientID,
		ClientSecret: opts.ClientSecret,
		TokenURL:     spotify.TokenURL,
	}
	// Fail fast on bad credentials instead of on the first search.
	if _, err := config.Token(ctx); err != nil {
		return nil, fmt.Errorf("spotify token: %w", err)
	}
	httpClient := config.Client(context.Background())
	httpClient.Timeout = opts.Policy.Timeout
	if httpClient.Timeout <= 0 {
		httpClient.Timeout = 5 * time.Second
	}
	c := spotify.NewClient(httpClient)
	return newClient(&c, opts), nil
}

func newClient(s searcher, opts Options) *SpotifyClient {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	market := opts.Market
	if market == "" {
		market = "US"
	}
	return &SpotifyClient{
		client: s,
		guard:  upstream.NewGuard(ProviderName, opts.Policy, log),
		market: market,
		log:    log.WithField("provider", ProviderName),
	}
}

// Guard exposes the call guard so callers can report breaker state.
func (sc *SpotifyClient) Guard() *upstream.Guard { return sc.guard }

// SearchTracks runs a field-filtered track search ("track:X artist:Y").
func (sc *SpotifyClient) SearchTracks(ctx context.Context, q music.TrackQuery, limit int) ([]music.Track, error) {
	text := "track:" + q.Title
	if q.Artist != "" {
		text += " artist:" + q.Artist
	}
	return upstream.Do(ctx, sc.guard, "search_tracks", func(ctx context.Context) ([]music.Track, error) {
		res, err := call(ctx, func() (*spotify.SearchResult, error) {
			return sc.client.SearchOpt(text, spotify.SearchTypeTrack, sc.options(limit))
		})
		if err != nil {
			return nil, classify("search_tracks", err)
		}
		if res == nil || res.Tracks == nil || len(res.Tracks.Tracks) == 0 {
			return nil, music.NewError(ProviderName, "search_tracks", music.KindNotFound, fmt.Errorf("no tracks found for %q", text))
		}
		return convertTracks(res.Tracks.Tracks), nil
	})
}

// AudioFeatures returns the features of trackID.
func (sc *SpotifyClient) AudioFeatures(ctx context.Context, trackID string) (*music.AudioFeatures, error) {
	return upstream.Do(ctx, sc.guard, "audio_features", func(ctx context.Context) (*music.AudioFeatures, error) {
		feats, err := call(ctx, func() ([]*spotify.AudioFeatures, error) {
			return sc.client.GetAudioFeatures(spotify.ID(trackID))
		})
		if err != nil {
			return nil, classify("audio_features", err)
		}
		// Spotify answers unknown IDs with a null entry.
		if len(feats) == 0 || feats[0] == nil {
			return nil, music.NewError(ProviderName, "audio_features", music.KindNotFound, nil)
		}
		f := feats[0]
		return &music.AudioFeatures{
			Energy:  float64(f.Energy),
			Tempo:   float64(f.Tempo),
			Valence: float64(f.Valence),
		}, nil
	})
}

// ArtistGenres returns the genre labels of artistID.
func (sc *SpotifyClient) ArtistGenres(ctx context.Context, artistID string) ([]string, error) {
	return upstream.Do(ctx, sc.guard, "artist", func(ctx context.Context) ([]string, error) {
		a, err := call(ctx, func() (*spotify.FullArtist, error) {
			return sc.client.GetArtist(spotify.ID(artistID))
		})
		if err != nil {
			return nil, classify("artist", err)
		}
		if a == nil {
			return nil, music.NewError(ProviderName, "artist", music.KindMalformed, errors.New("empty artist body"))
		}
		return a.Genres, nil
	})
}

// Recommend issues a seeded recommendation request. Genre seeds are trimmed
// so the total number of seeds stays within the API limit. The returned
// tracks are hydrated with album art using one batch track lookup; if that
// lookup fails the tracks are returned without covers.
func (sc *SpotifyClient) Recommend(ctx context.Context, seeds music.Seeds, limit int) ([]music.Track, error) {
	s := spotify.Seeds{}
	for _, id := range seeds.Tracks {
		s.Tracks = append(s.Tracks, spotify.ID(id))
	}
	for _, id := range seeds.Artists {
		s.Artists = append(s.Artists, spotify.ID(id))
	}
	if room := maxSeeds - len(s.Tracks) - len(s.Artists); room > 0 && len(seeds.Genres) > 0 {
		g := seeds.Genres
		if len(g) > room {
			g = g[:room]
		}
		s.Genres = g
	}
	var attrs *spotify.TrackAttributes
	if f := seeds.Target; f != nil {
		attrs = spotify.NewTrackAttributes().
			TargetEnergy(f.Energy).
			TargetTempo(float64(int(f.Tempo))).
			TargetValence(f.Valence)
	}
	opt := sc.options(limit)
	if seeds.Market != "" {
		m := seeds.Market
		opt.Country = &m
	}

	tracks, err := upstream.Do(ctx, sc.guard, "recommendations", func(ctx context.Context) ([]music.Track, error) {
		recs, err := call(ctx, func() (*spotify.Recommendations, error) {
			return sc.client.GetRecommendations(s, attrs, opt)
		})
		if err != nil {
			return nil, classify("recommendations", err)
		}
		if recs == nil || len(recs.Tracks) == 0 {
			return nil, music.NewError(ProviderName, "recommendations", music.KindNotFound, errors.New("no recommendations found"))
		}
		full := make([]spotify.FullTrack, len(recs.Tracks))
		for i, t := range recs.Tracks {
			full[i] = spotify.FullTrack{SimpleTrack: t}
		}
		return convertTracks(full), nil
	})
	if err != nil {
		return nil, err
	}
	sc.hydrateCovers(ctx, tracks)
	return tracks, nil
}

// hydrateCovers fills CoverURL from a batch track lookup. Recommendation
// payloads are decoded as simplified tracks which carry no album.
func (sc *SpotifyClient) hydrateCovers(ctx context.Context, tracks []music.Track) {
	ids := make([]spotify.ID, len(tracks))
	for i, t := range tracks {
		ids[i] = spotify.ID(t.ID)
	}
	full, err := upstream.Do(ctx, sc.guard, "tracks", func(ctx context.Context) ([]*spotify.FullTrack, error) {
		res, err := call(ctx, func() ([]*spotify.FullTrack, error) { return sc.client.GetTracks(ids...) })
		if err != nil {
			return nil, classify("tracks", err)
		}
		return res, nil
	})
	if err != nil {
		sc.log.WithError(err).Debug("cover hydration skipped")
		return
	}
	covers := make(map[string]string, len(full))
	for _, ft := range full {
		if ft != nil {
			covers[string(ft.ID)] = coverOf(ft.Album)
		}
	}
	for i := range tracks {
		if c := covers[tracks[i].ID]; c != "" {
			tracks[i].CoverURL = c
		}
	}
}

// ArtistTopTracks returns artistID's top tracks in market, or in the client's
// default market when market is empty.
func (sc *SpotifyClient) ArtistTopTracks(ctx context.Context, artistID, market string) ([]music.Track, error) {
	if market == "" {
		market = sc.market
	}
	return upstream.Do(ctx, sc.guard, "top_tracks", func(ctx context.Context) ([]music.Track, error) {
		res, err := call(ctx, func() ([]spotify.FullTrack, error) {
			return sc.client.GetArtistsTopTracks(spotify.ID(artistID), market)
		})
		if err != nil {
			return nil, classify("top_tracks", err)
		}
		return convertTracks(res), nil
	})
}

// SearchArtist runs an "artist:NAME" search and returns at most one match.
func (sc *SpotifyClient) SearchArtist(ctx context.Context, name string) ([]music.Artist, error) {
	text := "artist:" + name
	return upstream.Do(ctx, sc.guard, "search_artist", func(ctx context.Context) ([]music.Artist, error) {
		res, err := call(ctx, func() (*spotify.SearchResult, error) {
			return sc.client.SearchOpt(text, spotify.SearchTypeArtist, sc.options(1))
		})
		if err != nil {
			return nil, classify("search_artist", err)
		}
		if res == nil || res.Artists == nil || len(res.Artists.Artists) == 0 {
			return nil, music.NewError(ProviderName, "search_artist", music.KindNotFound, fmt.Errorf("no artist found for %q", name))
		}
		out := make([]music.Artist, len(res.Artists.Artists))
		for i, a := range res.Artists.Artists {
			out[i] = music.Artist{ID: string(a.ID), Name: a.Name, Genres: a.Genres}
		}
		return out, nil
	})
}

func (sc *SpotifyClient) options(limit int) *spotify.Options {
	market := sc.market
	opt := &spotify.Options{Country: &market}
	if limit > 0 {
		opt.Limit = &limit
	}
	return opt
}

// call runs fn and returns early when ctx is done.
func call[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	type result struct {
		v   T
		err error
	}
	if err := ctx.Err(); err != nil {
		var zero T
		return zero, err
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()
	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// classify maps a client error onto the music error taxonomy.
func classify(op string, err error) error {
	var apiErr spotify.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusNotFound:
			return music.NewError(ProviderName, op, music.KindNotFound, err)
		case apiErr.Status == http.StatusTooManyRequests:
			return music.NewError(ProviderName, op, music.KindRateLimited, err)
		case apiErr.Status >= http.StatusInternalServerError:
			return music.NewError(ProviderName, op, music.KindUnavailable, err)
		case apiErr.Status >= http.StatusBadRequest:
			return music.NewError(ProviderName, op, music.KindMalformed, err)
		}
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return music.NewError(ProviderName, op, music.KindMalformed, err)
	}
	return music.NewError(ProviderName, op, music.KindUnavailable, err)
}

func convertTracks(in []spotify.FullTrack) []music.Track {
	out := make([]music.Track, 0, len(in))
	for _, t := range in {
		mt := music.Track{
			ID:       string(t.ID),
			Title:    t.Name,
			CoverURL: coverOf(t.Album),
			URL:      t.ExternalURLs["spotify"],
		}
		if len(t.Artists) > 0 {
			mt.Artist = t.Artists[0].Name
			mt.ArtistID = string(t.Artists[0].ID)
		}
		out = append(out, mt)
	}
	return out
}

// coverOf returns the first (largest) album image.
func coverOf(a spotify.SimpleAlbum) string {
	for _, img := range a.Images {
		if u := strings.TrimSpace(img.URL); u != "" {
			return u
		}
	}
	return ""
}
