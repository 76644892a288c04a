// Package music defines the provider-agnostic data structures and interfaces
// used to produce track recommendations. Concrete providers (Spotify for the
// catalog, Last.fm for the similarity graph) implement PrimaryProvider and
// SecondaryProvider so the recommendation core never depends on a particular
// platform.
package music

import "context"

// Track is a single catalog entry. Equality is by ID within one provider's
// namespace. CoverURL and URL are optional and left empty when unknown.
type Track struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	ArtistID string `json:"artist_id,omitempty"`
	CoverURL string `json:"cover_url,omitempty"`
	URL      string `json:"url,omitempty"`
}

// AudioFeatures holds the signals used as recommendation targets.
type AudioFeatures struct {
	Energy  float64
	Tempo   float64
	Valence float64
}

// Artist is an artist known to the primary provider.
type Artist struct {
	ID     string
	Name   string
	Genres []string
}

// TrackQuery narrows a primary search. Artist may be empty.
type TrackQuery struct {
	Title  string
	Artist string
}

// Seeds describes a seeded recommendation request. Genres and Target are
// omitted from the provider call when empty.
type Seeds struct {
	Tracks  []string
	Artists []string
	Genres  []string
	Target  *AudioFeatures
	Market  string
}

// PrimaryProvider is the catalog service supplying search, audio features,
// genres, seeded recommendations and artist top tracks.
type PrimaryProvider interface {
	// SearchTracks returns up to limit tracks matching q.
	SearchTracks(ctx context.Context, q TrackQuery, limit int) ([]Track, error)
	// AudioFeatures returns the features of a single track.
	AudioFeatures(ctx context.Context, trackID string) (*AudioFeatures, error)
	// ArtistGenres returns the free-text genre labels attached to an artist.
	ArtistGenres(ctx context.Context, artistID string) ([]string, error)
	// Recommend returns up to limit tracks generated from seeds.
	Recommend(ctx context.Context, seeds Seeds, limit int) ([]Track, error)
	// ArtistTopTracks returns the artist's most popular tracks in market.
	ArtistTopTracks(ctx context.Context, artistID, market string) ([]Track, error)
	// SearchArtist looks an artist up by exact name.
	SearchArtist(ctx context.Context, name string) ([]Artist, error)
}

// TrackHandle identifies a track on the similarity graph. URL is the
// provider's page for the track when known.
type TrackHandle struct {
	Artist string
	Title  string
	URL    string
}

// ArtistHandle identifies an artist on the similarity graph.
type ArtistHandle struct {
	Name string
}

// SimilarTrack is one edge of the similarity graph.
type SimilarTrack struct {
	Track  TrackHandle
	Weight float64
}

// SecondaryProvider is the similarity-graph service.
type SecondaryProvider interface {
	GetTrack(ctx context.Context, artist, title string) (TrackHandle, error)
	SimilarTracks(ctx context.Context, h TrackHandle, limit int) ([]SimilarTrack, error)
	// AlbumCover returns the cover image URL of the album the track belongs
	// to. An empty string with a nil error means the album has no cover.
	AlbumCover(ctx context.Context, h TrackHandle) (string, error)
	SearchTrack(ctx context.Context, text string) ([]TrackHandle, error)
	GetArtist(ctx context.Context, name string) (ArtistHandle, error)
	SimilarArtists(ctx context.Context, h ArtistHandle, limit int) ([]ArtistHandle, error)
}
