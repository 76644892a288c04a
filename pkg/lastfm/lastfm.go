// Package lastfm implements the similarity-graph provider on top of the
// Last.fm web service (ws.audioscrobbler.com). Calls are rate limited on the
// client side and wrapped in an upstream.Guard for timeouts and retries.
package lastfm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"Similar-Music-Go/pkg/music"
	"Similar-Music-Go/pkg/upstream"
)

// ProviderName labels errors, logs and metrics produced by this package.
const ProviderName = "lastfm"

const defaultBaseURL = "https://ws.audioscrobbler.com/2.0"

// Client talks to the Last.fm API.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	guard   *upstream.Guard
	log     logrus.FieldLogger
}

var _ music.SecondaryProvider = (*Client)(nil)

// Options configures New. BaseURL and HTTP are overridden in tests.
type Options struct {
	APIKey string
	// RatePerSecond bounds outgoing calls. Zero means 5 per second.
	RatePerSecond float64
	BaseURL       string
	HTTP          *http.Client
	Policy        upstream.Policy
	Log           logrus.FieldLogger
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	if opts.HTTP == nil {
		opts.HTTP = &http.Client{}
	}
	if opts.RatePerSecond <= 0 {
		opts.RatePerSecond = 5
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	return &Client{
		apiKey:  opts.APIKey,
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    opts.HTTP,
		limiter: rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1),
		guard:   upstream.NewGuard(ProviderName, opts.Policy, opts.Log),
		log:     opts.Log.WithField("provider", ProviderName),
	}
}

// Guard exposes the call guard so callers can report breaker state.
func (c *Client) Guard() *upstream.Guard { return c.guard }

// GetTrack looks the track up with autocorrection and returns its canonical
// artist and title.
func (c *Client) GetTrack(ctx context.Context, artist, title string) (music.TrackHandle, error) {
	info, err := c.trackInfo(ctx, artist, title)
	if err != nil {
		return music.TrackHandle{}, err
	}
	return music.TrackHandle{Artist: info.Track.Artist.Name, Title: info.Track.Name, URL: info.Track.URL}, nil
}

// SimilarTracks returns up to limit tracks similar to h, most similar first.
func (c *Client) SimilarTracks(ctx context.Context, h music.TrackHandle, limit int) ([]music.SimilarTrack, error) {
	params := url.Values{
		"method":      {"track.getSimilar"},
		"artist":      {h.Artist},
		"track":       {h.Title},
		"autocorrect": {"1"},
		"limit":       {strconv.Itoa(limit)},
	}
	var resp similarTracksResponse
	if err := c.get(ctx, "track.getSimilar", params, &resp); err != nil {
		return nil, err
	}
	out := make([]music.SimilarTrack, 0, len(resp.SimilarTracks.Track))
	for _, t := range resp.SimilarTracks.Track {
		if t.Name == "" || t.Artist.Name == "" {
			continue
		}
		out = append(out, music.SimilarTrack{
			Track:  music.TrackHandle{Artist: t.Artist.Name, Title: t.Name, URL: t.URL},
			Weight: float64(t.Match),
		})
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if len(out) == 0 {
		return nil, music.NewError(ProviderName, "track.getSimilar", music.KindNotFound, errors.New("no similar tracks"))
	}
	return out, nil
}

// AlbumCover returns the largest cover image of the album h belongs to. An
// empty string means the track has no album or the album has no art.
func (c *Client) AlbumCover(ctx context.Context, h music.TrackHandle) (string, error) {
	info, err := c.trackInfo(ctx, h.Artist, h.Title)
	if err != nil {
		return "", err
	}
	if info.Track.Album == nil {
		return "", nil
	}
	return bestImage(info.Track.Album.Image), nil
}

// SearchTrack runs a free-text track search.
func (c *Client) SearchTrack(ctx context.Context, text string) ([]music.TrackHandle, error) {
	params := url.Values{
		"method": {"track.search"},
		"track":  {text},
		"limit":  {"10"},
	}
	var resp trackSearchResponse
	if err := c.get(ctx, "track.search", params, &resp); err != nil {
		return nil, err
	}
	out := make([]music.TrackHandle, 0, len(resp.Results.TrackMatches.Track))
	for _, t := range resp.Results.TrackMatches.Track {
		if t.Name == "" {
			continue
		}
		out = append(out, music.TrackHandle{Artist: t.Artist, Title: t.Name, URL: t.URL})
	}
	if len(out) == 0 {
		return nil, music.NewError(ProviderName, "track.search", music.KindNotFound, fmt.Errorf("no tracks match %q", text))
	}
	return out, nil
}

// GetArtist resolves name to the artist's canonical spelling.
func (c *Client) GetArtist(ctx context.Context, name string) (music.ArtistHandle, error) {
	params := url.Values{
		"method":      {"artist.getInfo"},
		"artist":      {name},
		"autocorrect": {"1"},
	}
	var resp artistInfoResponse
	if err := c.get(ctx, "artist.getInfo", params, &resp); err != nil {
		return music.ArtistHandle{}, err
	}
	if resp.Artist.Name == "" {
		return music.ArtistHandle{}, music.NewError(ProviderName, "artist.getInfo", music.KindNotFound, fmt.Errorf("artist %q", name))
	}
	return music.ArtistHandle{Name: resp.Artist.Name}, nil
}

// SimilarArtists returns up to limit artists similar to h.
func (c *Client) SimilarArtists(ctx context.Context, h music.ArtistHandle, limit int) ([]music.ArtistHandle, error) {
	params := url.Values{
		"method":      {"artist.getSimilar"},
		"artist":      {h.Name},
		"autocorrect": {"1"},
		"limit":       {strconv.Itoa(limit)},
	}
	var resp similarArtistsResponse
	if err := c.get(ctx, "artist.getSimilar", params, &resp); err != nil {
		return nil, err
	}
	out := make([]music.ArtistHandle, 0, len(resp.SimilarArtists.Artist))
	for _, a := range resp.SimilarArtists.Artist {
		if a.Name != "" {
			out = append(out, music.ArtistHandle{Name: a.Name})
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	if len(out) == 0 {
		return nil, music.NewError(ProviderName, "artist.getSimilar", music.KindNotFound, errors.New("no similar artists"))
	}
	return out, nil
}

func (c *Client) trackInfo(ctx context.Context, artist, title string) (*trackInfoResponse, error) {
	params := url.Values{
		"method":      {"track.getInfo"},
		"artist":      {artist},
		"track":       {title},
		"autocorrect": {"1"},
	}
	var resp trackInfoResponse
	if err := c.get(ctx, "track.getInfo", params, &resp); err != nil {
		return nil, err
	}
	if resp.Track.Name == "" {
		return nil, music.NewError(ProviderName, "track.getInfo", music.KindNotFound, fmt.Errorf("track %q by %q", title, artist))
	}
	return &resp, nil
}

// get performs one guarded API call and decodes the body into dst.
func (c *Client) get(ctx context.Context, op string, params url.Values, dst any) error {
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")
	reqURL := c.baseURL + "/?" + params.Encode()

	body, err := upstream.Do(ctx, c.guard, op, func(ctx context.Context) ([]byte, error) {
		return c.do(ctx, op, reqURL)
	})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return music.NewError(ProviderName, op, music.KindMalformed, fmt.Errorf("decode: %w", err))
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, reqURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, music.NewError(ProviderName, op, music.KindUnavailable, fmt.Errorf("rate limiter: %w", err))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, music.NewError(ProviderName, op, music.KindMalformed, err)
	}
	req.Header.Set("Accept", "application/json")

	c.log.WithField("method", op).Debug("requesting")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, music.NewError(ProviderName, op, music.KindUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, music.NewError(ProviderName, op, music.KindUnavailable, err)
	}
	// Error bodies take precedence over the status line since Last.fm
	// reports some failures with HTTP 200.
	if apiErr, ok := decodeAPIError(body); ok {
		return nil, music.NewError(ProviderName, op, kindForCode(apiErr.Code), fmt.Errorf("lastfm error %d: %s", apiErr.Code, apiErr.Message))
	}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, music.NewError(ProviderName, op, music.KindRateLimited, fmt.Errorf("HTTP %d", resp.StatusCode))
	case resp.StatusCode == http.StatusNotFound:
		return nil, music.NewError(ProviderName, op, music.KindNotFound, fmt.Errorf("HTTP %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, music.NewError(ProviderName, op, music.KindUnavailable, fmt.Errorf("HTTP %d", resp.StatusCode))
	}
	return body, nil
}

func kindForCode(code int) music.Kind {
	switch code {
	case codeInvalidParams:
		return music.KindNotFound
	case codeRateLimitExceeded:
		return music.KindRateLimited
	case codeOperationFailed, codeServiceOffline, codeTemporarilyDown, codeInvalidAPIKey, codeSuspendedAPIKey:
		return music.KindUnavailable
	default:
		return music.KindMalformed
	}
}
