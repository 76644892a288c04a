package main

// Integration tests spin up the full HTTP stack with the real recommendation
// service, the Last.fm client pointed at a local fake and an in-memory
// database, and exercise a typical flow: search, history and sharing.

import (
	"context"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"Similar-Music-Go/pkg/db"
	"Similar-Music-Go/pkg/handlers"
	"Similar-Music-Go/pkg/lastfm"
	"Similar-Music-Go/pkg/music"
	"Similar-Music-Go/pkg/recommend"
	"Similar-Music-Go/pkg/upstream"
)

// emptyCatalog is a catalog that knows no tracks, forcing every request onto
// the similarity graph.
type emptyCatalog struct{}

func notFound(op string) error { return music.NewError("catalog", op, music.KindNotFound, nil) }

func (emptyCatalog) SearchTracks(context.Context, music.TrackQuery, int) ([]music.Track, error) {
	return nil, notFound("search_tracks")
}
func (emptyCatalog) AudioFeatures(context.Context, string) (*music.AudioFeatures, error) {
	return nil, notFound("audio_features")
}
func (emptyCatalog) ArtistGenres(context.Context, string) ([]string, error) {
	return nil, notFound("artist")
}
func (emptyCatalog) Recommend(context.Context, music.Seeds, int) ([]music.Track, error) {
	return nil, notFound("recommendations")
}
func (emptyCatalog) ArtistTopTracks(context.Context, string, string) ([]music.Track, error) {
	return nil, notFound("top_tracks")
}
func (emptyCatalog) SearchArtist(context.Context, string) ([]music.Artist, error) {
	return nil, notFound("search_artist")
}

func fakeLastFM(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		switch q.Get("method") {
		case "track.getInfo":
			if q.Get("artist") != "Kendrick Lamar" {
				io.WriteString(w, `{"error":6,"message":"Track not found"}`)
				return
			}
			io.WriteString(w, `{"track":{"name":"`+q.Get("track")+`","artist":{"name":"Kendrick Lamar"},
				"album":{"title":"DAMN.","image":[{"#text":"https://img.test/damn.png","size":"extralarge"}]}}}`)
		case "track.getSimilar":
			io.WriteString(w, `{"similartracks":{"track":[
				{"name":"DNA.","match":1,"url":"https://www.last.fm/dna","artist":{"name":"Kendrick Lamar"}},
				{"name":"Money Trees","match":0.9,"url":"https://www.last.fm/money-trees","artist":{"name":"Kendrick Lamar"}},
				{"name":"Mask Off","match":0.5,"url":"https://www.last.fm/mask-off","artist":{"name":"Future"}},
				{"name":"Goosebumps","match":0.4,"url":"https://www.last.fm/goosebumps","artist":{"name":"Travis Scott"}}]}}`)
		default:
			io.WriteString(w, `{"error":6,"message":"not found"}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newIntegrationServer(t *testing.T) (*httptest.Server, *db.DB) {
	t.Helper()
	quiet := logrus.New()
	quiet.SetLevel(logrus.PanicLevel)

	lf := lastfm.New(lastfm.Options{
		APIKey:        "key",
		BaseURL:       fakeLastFM(t).URL,
		RatePerSecond: 1000,
		Policy:        upstream.Policy{Timeout: time.Second, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond},
		Log:           quiet,
	})
	svc := recommend.New(recommend.Config{
		Primary:   emptyCatalog{},
		Secondary: lf,
		Genres:    recommend.KeywordFilter(recommend.DefaultGenreKeywords...),
		Shuffler:  recommend.NewSeededShuffler(1),
		Market:    "US",
		Log:       quiet,
	})
	database, err := db.New(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })
	app := &handlers.Application{Recommender: svc, DB: database, SignKey: testKey}
	srv := httptest.NewServer(newRouter(app, 0))
	t.Cleanup(srv.Close)
	return srv, database
}

func TestIntegrationSearchHistoryShare(t *testing.T) {
	srv, _ := newIntegrationServer(t)
	jar, _ := cookiejar.New(nil)
	client := &http.Client{Jar: jar}

	resp, err := client.PostForm(srv.URL+"/", url.Values{"query": {"Kendrick Lamar - HUMBLE."}})
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search: expected 200 got %d", resp.StatusCode)
	}
	for _, want := range []string{"HUMBLE.", "DNA.", "Money Trees", "Mask Off", "https://img.test/damn.png"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("results page missing %q", want)
		}
	}
	if strings.Contains(string(body), "Goosebumps") {
		t.Error("more than three recommendations rendered")
	}

	resp, err = client.Get(srv.URL + "/api/history")
	if err != nil {
		t.Fatal(err)
	}
	var history []music.HistoryEntry
	json.NewDecoder(resp.Body).Decode(&history)
	resp.Body.Close()
	if len(history) != 1 || history[0].InputTitle != "HUMBLE." || len(history[0].Recommendations) != 3 {
		t.Fatalf("history = %+v", history)
	}

	resp, err = client.Post(srv.URL+"/api/share", "application/json", strings.NewReader(`{"query":"Kendrick Lamar - HUMBLE."}`))
	if err != nil {
		t.Fatal(err)
	}
	var share map[string]string
	json.NewDecoder(resp.Body).Decode(&share)
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("share: expected 201 got %d", resp.StatusCode)
	}
	resp, err = client.Get(share["url"])
	if err != nil {
		t.Fatal(err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "Money Trees") {
		t.Fatalf("share page %d", resp.StatusCode)
	}
}

func TestIntegrationNothingFound(t *testing.T) {
	srv, database := newIntegrationServer(t)
	resp, err := http.Get(srv.URL + "/api/recommendations?q=" + url.QueryEscape("zzz-unmatchable-query-123"))
	if err != nil {
		t.Fatal(err)
	}
	var res music.RecommendationResult
	json.NewDecoder(resp.Body).Decode(&res)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || res.Similar == nil || len(res.Similar) != 0 || res.InputTitle != "" {
		t.Fatalf("unexpected result %d %+v", resp.StatusCode, res)
	}

	resp, err = http.PostForm(srv.URL+"/", url.Values{"query": {"zzz-unmatchable-query-123"}})
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	var sid string
	for _, c := range resp.Cookies() {
		if c.Name == "session_id" {
			sid, _, _ = strings.Cut(c.Value, "|")
		}
	}
	h, err := database.ListHistory(context.Background(), sid)
	if err != nil || len(h) != 0 {
		t.Fatalf("empty result recorded: %v %+v", err, h)
	}
}
