package recommend

import (
	"context"
	"reflect"
	"testing"

	"Similar-Music-Go/pkg/music"
)

var humble = Seed{TrackID: "seed", ArtistID: "art-kendrick", Title: "HUMBLE.", Artist: "Kendrick Lamar"}

func seedTrack() music.Track {
	return music.Track{ID: "seed", Title: "HUMBLE.", Artist: "Kendrick Lamar", ArtistID: "art-kendrick"}
}

func newTestOrchestrator(p *stubPrimary, s *stubSecondary, shuffler Shuffler) *Orchestrator {
	return NewOrchestrator(p, s, KeywordFilter(DefaultGenreKeywords...), shuffler, "US", quietLog())
}

func TestRecommendSeededTierShortCircuits(t *testing.T) {
	p := &stubPrimary{recommend: func(music.Seeds) ([]music.Track, error) {
		return []music.Track{
			seedTrack(),
			track("a", "DNA.", "Kendrick Lamar"),
			track("b", "Money Trees", "Kendrick Lamar"),
			track("c", "No Role Modelz", "J. Cole"),
			track("d", "Goosebumps", "Travis Scott"),
			track("e", "Praise The Lord", "A$AP Rocky"),
		}, nil
	}}
	s := &stubSecondary{}
	out := newTestOrchestrator(p, s, nil).Recommend(context.Background(), humble)

	if got := ids(out.Tracks); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("tracks = %v", got)
	}
	if len(out.Report) != 1 || out.Report[0].Tier != TierSeeded || out.Report[0].Added != 3 {
		t.Fatalf("report = %+v", out.Report)
	}
	if n := p.n("recommendations"); n != 1 {
		t.Fatalf("recommendations called %d times", n)
	}
	if n := p.n("top_tracks") + p.n("search_artist"); n != 0 {
		t.Fatalf("later tiers made %d catalog calls", n)
	}
	if n := s.total(); n != 0 {
		t.Fatalf("similarity graph called %d times", n)
	}
}

func TestRecommendDedupAcrossTiers(t *testing.T) {
	p := &stubPrimary{recommend: func(s music.Seeds) ([]music.Track, error) {
		if len(s.Tracks) > 0 {
			a := track("a", "DNA.", "Kendrick Lamar")
			return []music.Track{a, a, seedTrack(), track("b", "Alright", "Kendrick Lamar")}, nil
		}
		return []music.Track{track("b", "Alright", "Kendrick Lamar"), track("c", "m.A.A.d city", "Kendrick Lamar"), track("d", "XXX.", "Kendrick Lamar")}, nil
	}}
	out := newTestOrchestrator(p, &stubSecondary{}, nil).Recommend(context.Background(), humble)

	if got := ids(out.Tracks); !reflect.DeepEqual(got, []string{"a", "b", "c"}) {
		t.Fatalf("tracks = %v", got)
	}
	if len(out.Report) != 2 || out.Report[0].Added != 2 || out.Report[1].Added != 1 {
		t.Fatalf("report = %+v", out.Report)
	}
}

func TestRecommendBridgeThenPool(t *testing.T) {
	poolIDs := map[string]bool{"k1": true, "k2": true, "k3": true, "c1": true, "c2": true}
	run := func() Outcome {
		p := &stubPrimary{
			recommend: func(music.Seeds) ([]music.Track, error) { return nil, unavailable("recommendations") },
			search: map[string][]music.Track{
				"good days": {track("t1", "Good Days", "SZA")},
				"nonstop":   {track("t2", "Nonstop", "Drake")},
			},
			artists: map[string]music.Artist{"J. Cole": {ID: "art-cole", Name: "J. Cole"}},
			top: map[string][]music.Track{
				"art-kendrick": {
					seedTrack(),
					track("t1", "Good Days", "SZA"),
					track("k1", "LOVE.", "Kendrick Lamar"),
					track("k2", "DNA.", "Kendrick Lamar"),
					track("k3", "Alright", "Kendrick Lamar"),
				},
				"art-cole": {track("c1", "Middle Child", "J. Cole"), track("c2", "Wet Dreamz", "J. Cole")},
			},
		}
		s := &stubSecondary{
			tracks:         map[string]music.TrackHandle{"Kendrick Lamar|HUMBLE.": {Artist: "Kendrick Lamar", Title: "HUMBLE."}},
			similar:        map[string][]music.SimilarTrack{"HUMBLE.": similarTo("SZA", "Good Days", "Drake", "Nonstop")},
			artists:        map[string]music.ArtistHandle{"Kendrick Lamar": {Name: "Kendrick Lamar"}},
			similarArtists: map[string][]music.ArtistHandle{"Kendrick Lamar": {{Name: "J. Cole"}}},
		}
		return newTestOrchestrator(p, s, NewSeededShuffler(1)).Recommend(context.Background(), humble)
	}
	out := run()

	got := ids(out.Tracks)
	if len(got) != 3 || got[0] != "t1" || got[1] != "t2" || !poolIDs[got[2]] {
		t.Fatalf("tracks = %v", got)
	}
	if again := ids(run().Tracks); !reflect.DeepEqual(got, again) {
		t.Fatalf("draws differ: %v vs %v", got, again)
	}
	if len(out.Report) != 4 {
		t.Fatalf("report = %+v", out.Report)
	}
	if out.Report[2].Added != 2 || out.Report[3].Added != 1 {
		t.Fatalf("bridge added %d, pool added %d", out.Report[2].Added, out.Report[3].Added)
	}
	f := out.Report[0].Failures
	if len(f) != 1 || f[0].Kind != music.KindUnavailable || f[0].Op != "recommendations" {
		t.Fatalf("seeded failures = %v", f)
	}
}

func TestPoolUsesSimilarArtists(t *testing.T) {
	p := &stubPrimary{
		artists: map[string]music.Artist{"J. Cole": {ID: "art-cole", Name: "J. Cole"}},
		top: map[string][]music.Track{
			"art-cole": {track("c1", "Middle Child", "J. Cole"), track("c2", "Wet Dreamz", "J. Cole")},
		},
	}
	s := &stubSecondary{
		artists:        map[string]music.ArtistHandle{"Kendrick Lamar": {Name: "Kendrick Lamar"}},
		similarArtists: map[string][]music.ArtistHandle{"Kendrick Lamar": {{Name: "J. Cole"}, {Name: "Nobody Known"}}},
	}
	out := newTestOrchestrator(p, s, NewSeededShuffler(3)).Recommend(context.Background(), humble)

	if len(out.Tracks) != 2 {
		t.Fatalf("tracks = %v", ids(out.Tracks))
	}
	for _, tr := range out.Tracks {
		if tr.Artist != "J. Cole" {
			t.Fatalf("unexpected pick %+v", tr)
		}
	}
	if n := p.n("search_artist"); n != 2 {
		t.Fatalf("search_artist called %d times", n)
	}
}

func TestPoolDrawIsDeterministicWithSeed(t *testing.T) {
	run := func() []string {
		var candidates []music.Track
		for _, id := range []string{"p0", "p1", "p2", "p3", "p4", "p5", "p6", "p7", "p8", "p9"} {
			candidates = append(candidates, track(id, id, "Kendrick Lamar"))
		}
		p := &stubPrimary{top: map[string][]music.Track{"art-kendrick": candidates}}
		return ids(newTestOrchestrator(p, &stubSecondary{}, NewSeededShuffler(7)).Recommend(context.Background(), humble).Tracks)
	}
	first, second := run(), run()
	if len(first) != MaxResults {
		t.Fatalf("got %d picks", len(first))
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("draws differ: %v vs %v", first, second)
	}
}

func TestRecommendSkipsTiersAfterBudget(t *testing.T) {
	p := &stubPrimary{}
	s := &stubSecondary{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := newTestOrchestrator(p, s, nil).Recommend(ctx, humble)

	if len(out.Tracks) != 0 {
		t.Fatalf("tracks = %v", ids(out.Tracks))
	}
	if len(out.Report) != 4 {
		t.Fatalf("report = %+v", out.Report)
	}
	for _, r := range out.Report {
		if !r.Skipped {
			t.Fatalf("tier %s not skipped", r.Tier)
		}
	}
	if p.total()+s.total() != 0 {
		t.Fatal("providers were called after the budget expired")
	}
}

func TestSeededTierSeeds(t *testing.T) {
	feats := &music.AudioFeatures{Energy: 0.62, Tempo: 150.01, Valence: 0.42}
	p := &stubPrimary{
		features: feats,
		genres:   []string{"Conscious Hip Hop", "West Coast Rap", "Pop", "Trap", "Hip Hop", "Rap Rock", "Southern Hip Hop"},
	}
	newTestOrchestrator(p, &stubSecondary{}, nil).Recommend(context.Background(), humble)

	if len(p.seeds) < 1 {
		t.Fatal("recommend not called")
	}
	got := p.seeds[0]
	want := music.Seeds{
		Tracks:  []string{"seed"},
		Artists: []string{"art-kendrick"},
		Genres:  []string{"conscious hip hop", "west coast rap", "trap", "hip hop", "rap rock"},
		Target:  feats,
		Market:  "US",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("seeds = %+v, want %+v", got, want)
	}
	if len(p.seeds) < 2 || !reflect.DeepEqual(p.seeds[1], music.Seeds{Artists: []string{"art-kendrick"}, Market: "US"}) {
		t.Fatalf("artist seeds = %+v", p.seeds)
	}
}

func TestSeededTierWithoutMatchingGenres(t *testing.T) {
	feats := &music.AudioFeatures{Energy: 0.5, Tempo: 120, Valence: 0.3}
	p := &stubPrimary{features: feats, genres: []string{"pop", "dance pop"}}
	newTestOrchestrator(p, &stubSecondary{}, nil).Recommend(context.Background(), humble)
	if len(p.seeds) == 0 || p.seeds[0].Genres != nil {
		t.Fatalf("seeds = %+v", p.seeds)
	}
	if p.seeds[0].Target != feats {
		t.Fatalf("target = %+v, want %+v", p.seeds[0].Target, feats)
	}
}

func TestNarrowGenres(t *testing.T) {
	cases := []struct {
		name   string
		genres []string
		f      GenreFilter
		want   []string
	}{
		{"nil filter", []string{"rap"}, nil, nil},
		{"no keywords", []string{"rap"}, KeywordFilter(), nil},
		{"case folded", []string{"UK Hip Hop", "Grime"}, KeywordFilter("HIP HOP"), []string{"uk hip hop"}},
		{"custom keywords", []string{"drill", "uk drill", "grime"}, KeywordFilter(" drill ", ""), []string{"drill", "uk drill"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := narrowGenres(tc.genres, tc.f, maxGenreSeeds); !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}
