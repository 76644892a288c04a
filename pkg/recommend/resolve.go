package recommend

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"Similar-Music-Go/pkg/music"
)

// Resolution is a track found on the similarity graph together with its
// neighbours.
type Resolution struct {
	Artist   string
	Title    string
	CoverURL string
	Similar  []music.Recommendation
	Failures []*music.Error
}

// Resolver maps a loosely spelled (artist, title) pair onto the similarity
// graph.
type Resolver struct {
	Secondary music.SecondaryProvider
	Log       logrus.FieldLogger
}

// Resolve looks the track up exactly, falling back to a combined free-text
// search, then collects up to limit similar tracks each with its cover. The
// returned error is a not-found music.Error when neither lookup succeeds;
// every other failure only empties the affected field.
func (r *Resolver) Resolve(ctx context.Context, artist, title string, limit int) (Resolution, error) {
	log := r.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	env := newCallEnv(log, "resolve")

	handle, ok := r.lookup(ctx, env, artist, title)
	if !ok {
		handle, ok = r.search(ctx, env, artist, title)
	}
	if !ok {
		return Resolution{Failures: env.failures}, music.NewError(roleSecondary, "resolve", music.KindNotFound,
			fmt.Errorf("no track for %q by %q", title, artist))
	}

	res := Resolution{Artist: handle.Artist, Title: handle.Title}
	res.CoverURL = r.cover(ctx, env, handle)

	similar := attempt(ctx, env, roleSecondary, "similar_tracks", func(ctx context.Context) ([]music.SimilarTrack, error) {
		return r.Secondary.SimilarTracks(ctx, handle, limit)
	})
	for _, st := range similar.Value {
		if limit > 0 && len(res.Similar) == limit {
			break
		}
		res.Similar = append(res.Similar, music.Recommendation{
			Title:    st.Track.Title,
			Artist:   st.Track.Artist,
			CoverURL: r.cover(ctx, env, st.Track),
			URL:      st.Track.URL,
		})
	}
	res.Failures = env.failures
	return res, nil
}

// lookup tries the exact track and confirms it is usable by requesting a
// single similar entry.
func (r *Resolver) lookup(ctx context.Context, env *callEnv, artist, title string) (music.TrackHandle, bool) {
	h := attempt(ctx, env, roleSecondary, "get_track", func(ctx context.Context) (music.TrackHandle, error) {
		return r.Secondary.GetTrack(ctx, artist, title)
	})
	if !h.OK() {
		return music.TrackHandle{}, false
	}
	probe := attempt(ctx, env, roleSecondary, "similar_tracks", func(ctx context.Context) ([]music.SimilarTrack, error) {
		return r.Secondary.SimilarTracks(ctx, h.Value, 1)
	})
	if !probe.OK() {
		return music.TrackHandle{}, false
	}
	return h.Value, true
}

// search runs a "title artist" free-text search and takes the first hit.
func (r *Resolver) search(ctx context.Context, env *callEnv, artist, title string) (music.TrackHandle, bool) {
	text := strings.TrimSpace(title + " " + artist)
	hits := attempt(ctx, env, roleSecondary, "search_track", func(ctx context.Context) ([]music.TrackHandle, error) {
		return r.Secondary.SearchTrack(ctx, text)
	})
	if len(hits.Value) == 0 {
		return music.TrackHandle{}, false
	}
	return hits.Value[0], true
}

func (r *Resolver) cover(ctx context.Context, env *callEnv, h music.TrackHandle) string {
	c := attempt(ctx, env, roleSecondary, "album_cover", func(ctx context.Context) (string, error) {
		return r.Secondary.AlbumCover(ctx, h)
	})
	return c.Value
}
