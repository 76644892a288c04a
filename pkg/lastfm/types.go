package lastfm

import (
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// Last.fm API response types. Only the fields read by the adapter are
// declared.

// apiError is the body returned for failed calls, sometimes with HTTP 200.
type apiError struct {
	Code    int    `json:"error"`
	Message string `json:"message"`
}

// Last.fm error codes the adapter distinguishes.
const (
	codeInvalidParams     = 6
	codeOperationFailed   = 8
	codeServiceOffline    = 11
	codeTemporarilyDown   = 16
	codeRateLimitExceeded = 29
	codeInvalidAPIKey     = 10
	codeSuspendedAPIKey   = 26
)

// image is one entry of an image array; the URL lives under "#text".
type image struct {
	URL  string `json:"#text"`
	Size string `json:"size"`
}

// score decodes a similarity weight that Last.fm sends either as a JSON
// number or as a quoted string.
type score float64

func (s *score) UnmarshalJSON(b []byte) error {
	raw := strings.Trim(string(b), `"`)
	if raw == "" || raw == "null" {
		*s = 0
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return err
	}
	*s = score(f)
	return nil
}

type namedArtist struct {
	Name string `json:"name"`
}

// trackInfoResponse is the body of track.getInfo.
type trackInfoResponse struct {
	Track struct {
		Name   string      `json:"name"`
		URL    string      `json:"url"`
		Artist namedArtist `json:"artist"`
		Album  *struct {
			Title string  `json:"title"`
			Image []image `json:"image"`
		} `json:"album"`
	} `json:"track"`
}

// similarTracksResponse is the body of track.getSimilar.
type similarTracksResponse struct {
	SimilarTracks struct {
		Track []struct {
			Name   string      `json:"name"`
			URL    string      `json:"url"`
			Match  score       `json:"match"`
			Artist namedArtist `json:"artist"`
		} `json:"track"`
	} `json:"similartracks"`
}

// trackSearchResponse is the body of track.search. The artist is a plain
// string here, unlike the other track methods.
type trackSearchResponse struct {
	Results struct {
		TrackMatches struct {
			Track []struct {
				Name   string `json:"name"`
				Artist string `json:"artist"`
				URL    string `json:"url"`
			} `json:"track"`
		} `json:"trackmatches"`
	} `json:"results"`
}

// artistInfoResponse is the body of artist.getInfo.
type artistInfoResponse struct {
	Artist struct {
		Name string `json:"name"`
	} `json:"artist"`
}

// similarArtistsResponse is the body of artist.getSimilar.
type similarArtistsResponse struct {
	SimilarArtists struct {
		Artist []struct {
			Name  string `json:"name"`
			Match score  `json:"match"`
		} `json:"artist"`
	} `json:"similarartists"`
}

// bestImage returns the largest non-empty image URL. Last.fm orders images
// from small to mega.
func bestImage(imgs []image) string {
	for i := len(imgs) - 1; i >= 0; i-- {
		if u := strings.TrimSpace(imgs[i].URL); u != "" {
			return u
		}
	}
	return ""
}

// decodeAPIError reports the error body in b, if any.
func decodeAPIError(b []byte) (apiError, bool) {
	var e apiError
	if err := json.Unmarshal(b, &e); err != nil || e.Code == 0 {
		return apiError{}, false
	}
	return e, true
}
