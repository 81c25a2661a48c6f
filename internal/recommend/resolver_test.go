package recommend

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justestif/go-find-that-song/internal/music"
)

var errUnavailable = errors.New("service unavailable")

// fakeCatalog answers every lookup from configurable functions and records calls.
type fakeCatalog struct {
	mu    sync.Mutex
	calls []string

	recommend func(q music.RecommendationQuery) ([]music.Track, error)
	search    func(query string, limit int) ([]music.Track, error)
	top       func(r music.TimeRange) ([]music.Track, error)
	recent    func() ([]music.PlayedTrack, error)
}

func (f *fakeCatalog) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeCatalog) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeCatalog) Recommendations(_ context.Context, q music.RecommendationQuery) ([]music.Track, error) {
	f.record("recommendations:" + strings.Join(q.Genres, ","))
	if f.recommend == nil {
		return nil, nil
	}
	return f.recommend(q)
}

func (f *fakeCatalog) SearchTracks(_ context.Context, query string, limit int) ([]music.Track, error) {
	f.record("search:" + query)
	if f.search == nil {
		return nil, nil
	}
	return f.search(query, limit)
}

func (f *fakeCatalog) TopTracks(_ context.Context, r music.TimeRange, _ int) ([]music.Track, error) {
	f.record("top:" + string(r))
	if f.top == nil {
		return nil, nil
	}
	return f.top(r)
}

func (f *fakeCatalog) RecentlyPlayed(_ context.Context, _ int) ([]music.PlayedTrack, error) {
	f.record("recent")
	if f.recent == nil {
		return nil, nil
	}
	return f.recent()
}

func makeTracks(prefix string, n int) []music.Track {
	tracks := make([]music.Track, n)
	for i := range tracks {
		id := fmt.Sprintf("%s%02d", prefix, i)
		tracks[i] = music.Track{ID: id, URI: music.TrackURI(id), Name: "Track " + id}
	}
	return tracks
}

func uriSet(tracks []music.Track) map[string]struct{} {
	set := make(map[string]struct{}, len(tracks))
	for _, t := range tracks {
		set[t.URI] = struct{}{}
	}
	return set
}

func seededResolver(opts ...Option) *Resolver {
	return New(append([]Option{WithRand(rand.New(rand.NewPCG(1, 2)))}, opts...)...)
}

func TestResolve_CombinedSeedPreservesOrder(t *testing.T) {
	want := makeTracks("c", 10)
	cat := &fakeCatalog{
		recommend: func(q music.RecommendationQuery) ([]music.Track, error) {
			return want, nil
		},
	}

	res := seededResolver().Resolve(context.Background(), cat, music.NewSeedSpec([]string{"pop"}, nil, nil, 20))

	require.False(t, res.Empty())
	assert.Equal(t, StrategyCombinedSeed, res.Strategy)
	require.Len(t, res.Tracks, 10)
	for i := range want {
		assert.Equal(t, want[i].URI, res.Tracks[i].URI)
		assert.Equal(t, StrategyCombinedSeed, res.Tracks[i].Source)
	}
	assert.Equal(t, []string{"recommendations:pop"}, cat.Calls())
}

func TestResolve_FallsBackToKeywordSearch(t *testing.T) {
	cat := &fakeCatalog{
		recommend: func(q music.RecommendationQuery) ([]music.Track, error) {
			return nil, errUnavailable
		},
		search: func(query string, limit int) ([]music.Track, error) {
			if query == "genre:pop" {
				return makeTracks("s", 15), nil
			}
			return nil, nil
		},
	}

	res := seededResolver().Resolve(context.Background(), cat, music.NewSeedSpec([]string{"pop"}, nil, nil, 10))

	require.False(t, res.Empty())
	assert.Equal(t, StrategyKeywordSearch, res.Strategy)
	assert.Len(t, res.Tracks, 10)
	for _, tr := range res.Tracks {
		assert.Equal(t, StrategyKeywordSearch, tr.Source)
		assert.True(t, strings.HasPrefix(tr.ID, "s"))
	}

	calls := cat.Calls()
	assert.Equal(t, "recommendations:pop", calls[0], "combined seed runs first")
	assert.Equal(t, "recommendations:pop", calls[1], "genre mix runs second")
	assert.Equal(t, "search:genre:pop", calls[2])
}

func TestResolve_KeywordSearchRetriesBareKeyword(t *testing.T) {
	tests := []struct {
		name     string
		filtered func() ([]music.Track, error)
	}{
		{name: "filtered search empty", filtered: func() ([]music.Track, error) { return nil, nil }},
		{name: "filtered search fails", filtered: func() ([]music.Track, error) { return nil, errUnavailable }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := &fakeCatalog{
				search: func(query string, limit int) ([]music.Track, error) {
					if strings.HasPrefix(query, "genre:") {
						return tt.filtered()
					}
					return makeTracks(query, 3), nil
				},
			}

			res := seededResolver().Resolve(context.Background(), cat, music.NewSeedSpec([]string{"Dream Pop"}, nil, nil, 5))

			require.False(t, res.Empty())
			assert.Equal(t, StrategyKeywordSearch, res.Strategy)
			assert.Contains(t, cat.Calls(), "search:genre:dream-pop")
			assert.Contains(t, cat.Calls(), "search:dream-pop")
		})
	}
}

func TestResolve_Truncates(t *testing.T) {
	tests := []struct {
		name      string
		available int
		spec      music.SeedSpec
		want      int
	}{
		{name: "more than requested", available: 60, spec: music.NewSeedSpec([]string{"rock"}, nil, nil, 20), want: 20},
		{name: "exactly requested", available: 20, spec: music.NewSeedSpec([]string{"rock"}, nil, nil, 20), want: 20},
		{name: "fewer than requested", available: 7, spec: music.NewSeedSpec([]string{"rock"}, nil, nil, 20), want: 7},
		{name: "maximum count", available: 100, spec: music.NewSeedSpec([]string{"rock"}, nil, nil, 50), want: 50},
		{name: "small count is not raised", available: 30, spec: music.SeedSpec{Genres: []string{"rock"}, Count: 3}, want: 3},
		{name: "single track", available: 30, spec: music.SeedSpec{Genres: []string{"rock"}, Count: 1}, want: 1},
		{name: "zero count uses default", available: 30, spec: music.SeedSpec{Genres: []string{"rock"}}, want: music.DefaultTrackCount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := &fakeCatalog{
				recommend: func(q music.RecommendationQuery) ([]music.Track, error) {
					return makeTracks("r", tt.available), nil
				},
			}

			res := seededResolver().Resolve(context.Background(), cat, tt.spec)
			assert.Len(t, res.Tracks, tt.want)
			if tt.spec.Count > 0 {
				assert.LessOrEqual(t, len(res.Tracks), tt.spec.Count)
			}
		})
	}
}

func TestResolve_DeduplicatesWithinStrategy(t *testing.T) {
	dupes := append(makeTracks("d", 5), makeTracks("d", 5)...)
	cat := &fakeCatalog{
		recommend: func(q music.RecommendationQuery) ([]music.Track, error) {
			return dupes, nil
		},
	}

	res := seededResolver().Resolve(context.Background(), cat, music.NewSeedSpec([]string{"jazz"}, nil, nil, 20))
	assert.Len(t, res.Tracks, 5)
	assert.Len(t, uriSet(res.Tracks), 5)
}

func TestResolve_AllStrategiesFail(t *testing.T) {
	tests := []struct {
		name string
		cat  *fakeCatalog
	}{
		{
			name: "everything empty",
			cat:  &fakeCatalog{},
		},
		{
			name: "everything errors",
			cat: &fakeCatalog{
				recommend: func(music.RecommendationQuery) ([]music.Track, error) { return nil, errUnavailable },
				search:    func(string, int) ([]music.Track, error) { return nil, errUnavailable },
				top:       func(music.TimeRange) ([]music.Track, error) { return nil, errUnavailable },
				recent:    func() ([]music.PlayedTrack, error) { return nil, errUnavailable },
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var res Result
			assert.NotPanics(t, func() {
				res = seededResolver().Resolve(context.Background(), tt.cat, music.NewSeedSpec([]string{"pop"}, nil, nil, 20))
			})
			assert.True(t, res.Empty())
			assert.Empty(t, res.Tracks)
			assert.Empty(t, res.Strategy)

			calls := tt.cat.Calls()
			assert.Equal(t, "recent", calls[len(calls)-1], "history is the last resort")
		})
	}
}

func TestResolve_GenreMixScenario(t *testing.T) {
	pop := makeTracks("pop", 12)
	rock := makeTracks("rock", 9)

	cat := &fakeCatalog{
		recommend: func(q music.RecommendationQuery) ([]music.Track, error) {
			if len(q.Genres) != 1 {
				return nil, nil // combined seed comes back empty
			}
			switch q.Genres[0] {
			case "pop":
				assert.Equal(t, 10, q.Limit)
				return pop, nil
			case "rock":
				assert.Equal(t, 10, q.Limit)
				return rock, nil
			}
			return nil, nil
		},
	}

	res := seededResolver().Resolve(context.Background(), cat, music.NewSeedSpec([]string{"pop", "rock"}, nil, nil, 20))

	require.Equal(t, StrategyGenreMix, res.Strategy)
	require.Len(t, res.Tracks, 20)

	candidates := uriSet(append(append([]music.Track{}, pop...), rock...))
	assert.Len(t, uriSet(res.Tracks), 20, "no duplicates")
	for _, tr := range res.Tracks {
		_, ok := candidates[tr.URI]
		assert.True(t, ok, "%s not among candidates", tr.URI)
	}
}

func TestResolve_GenreMixShufflesWithInjectedRand(t *testing.T) {
	cat := func() *fakeCatalog {
		return &fakeCatalog{
			recommend: func(q music.RecommendationQuery) ([]music.Track, error) {
				if len(q.Genres) == 1 && q.Genres[0] == "pop" {
					return makeTracks("p", 30), nil
				}
				return nil, nil
			},
		}
	}
	spec := music.NewSeedSpec([]string{"pop", "soul"}, nil, nil, 30)

	first := New(WithRand(rand.New(rand.NewPCG(7, 7)))).Resolve(context.Background(), cat(), spec)
	second := New(WithRand(rand.New(rand.NewPCG(7, 7)))).Resolve(context.Background(), cat(), spec)

	require.Equal(t, StrategyGenreMix, first.Strategy)
	assert.Equal(t, first.URIs(), second.URIs(), "same seed gives same order")
	assert.NotEqual(t, makeTracks("p", 30)[0].URI+makeTracks("p", 30)[1].URI+makeTracks("p", 30)[2].URI,
		first.Tracks[0].URI+first.Tracks[1].URI+first.Tracks[2].URI, "output is shuffled")
}

func TestResolve_UserHistoryOrder(t *testing.T) {
	tests := []struct {
		name      string
		medium    []music.Track
		short     []music.Track
		recent    []music.PlayedTrack
		wantFirst string
		wantCalls []string
	}{
		{
			name:      "medium term wins",
			medium:    makeTracks("m", 5),
			short:     makeTracks("s", 5),
			wantFirst: "m00",
			wantCalls: []string{"top:medium_term"},
		},
		{
			name:      "short term when medium empty",
			short:     makeTracks("s", 5),
			wantFirst: "s00",
			wantCalls: []string{"top:medium_term", "top:short_term"},
		},
		{
			name:      "recently played last",
			recent:    []music.PlayedTrack{{Track: makeTracks("h", 1)[0]}},
			wantFirst: "h00",
			wantCalls: []string{"top:medium_term", "top:short_term", "recent"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat := &fakeCatalog{
				top: func(r music.TimeRange) ([]music.Track, error) {
					if r == music.MediumTerm {
						return tt.medium, nil
					}
					return tt.short, nil
				},
				recent: func() ([]music.PlayedTrack, error) { return tt.recent, nil },
			}

			res := seededResolver().Resolve(context.Background(), cat, music.NewSeedSpec([]string{"pop"}, nil, nil, 20))

			require.Equal(t, StrategyUserHistory, res.Strategy)
			assert.Equal(t, tt.wantFirst, res.Tracks[0].ID)

			var history []string
			for _, c := range cat.Calls() {
				if strings.HasPrefix(c, "top:") || c == "recent" {
					history = append(history, c)
				}
			}
			assert.Equal(t, tt.wantCalls, history)
		})
	}
}

func TestResolve_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cat := &fakeCatalog{}
	res := seededResolver().Resolve(ctx, cat, music.NewSeedSpec([]string{"pop"}, nil, nil, 20))

	assert.True(t, res.Empty())
	assert.Empty(t, cat.Calls())
}

type fakeCharts struct {
	mu   sync.Mutex
	tags []string
	refs map[string][]music.TrackRef
	err  error
}

func (f *fakeCharts) TagTopTracks(_ context.Context, tag string, _ int) ([]music.TrackRef, error) {
	f.mu.Lock()
	f.tags = append(f.tags, tag)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.refs[tag], nil
}

func TestResolve_TagChartsBeforeHistory(t *testing.T) {
	charts := &fakeCharts{refs: map[string][]music.TrackRef{
		"shoegaze": {
			{Title: "Only Shallow", Artist: "My Bloody Valentine"},
			{Title: "Alison", Artist: "Slowdive"},
			{Title: "Missing", Artist: "Nobody"},
		},
	}}
	cat := &fakeCatalog{
		search: func(query string, limit int) ([]music.Track, error) {
			switch query {
			case "track:Only Shallow artist:My Bloody Valentine":
				return makeTracks("mbv", 1), nil
			case "track:Alison artist:Slowdive":
				return makeTracks("sd", 1), nil
			}
			return nil, nil
		},
		top: func(music.TimeRange) ([]music.Track, error) { return makeTracks("h", 5), nil },
	}

	r := seededResolver(WithTagCharts(charts, 30, 2))
	assert.Equal(t, []string{
		StrategyCombinedSeed, StrategyGenreMix, StrategyKeywordSearch, StrategyTagCharts, StrategyUserHistory,
	}, r.Steps())

	res := r.Resolve(context.Background(), cat, music.NewSeedSpec([]string{"Shoegaze"}, nil, nil, 10))

	require.Equal(t, StrategyTagCharts, res.Strategy)
	assert.Len(t, res.Tracks, 2)
	assert.Equal(t, []string{"shoegaze"}, charts.tags)
}

func TestResolve_TagChartsErrorAdvances(t *testing.T) {
	charts := &fakeCharts{err: errUnavailable}
	cat := &fakeCatalog{
		top: func(music.TimeRange) ([]music.Track, error) { return makeTracks("h", 5), nil },
	}

	res := seededResolver(WithTagCharts(charts, 30, 2)).Resolve(context.Background(), cat, music.NewSeedSpec([]string{"pop"}, nil, nil, 10))

	assert.Equal(t, StrategyUserHistory, res.Strategy)
}

func TestExcludeExisting(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))

	for i := 0; i < 50; i++ {
		candidates := makeTracks("t", rng.IntN(40))
		existing := make(map[string]struct{})
		for _, c := range candidates {
			if rng.IntN(2) == 0 {
				existing[c.URI] = struct{}{}
			}
		}
		existing["spotify:track:unrelated"] = struct{}{}

		filtered := ExcludeExisting(candidates, music.PlaylistTarget{ID: "pl", Existing: existing})

		candidateSet := uriSet(candidates)
		for _, f := range filtered {
			_, inExisting := existing[f.URI]
			assert.False(t, inExisting, "%s is already in the playlist", f.URI)
			_, inCandidates := candidateSet[f.URI]
			assert.True(t, inCandidates, "%s was not a candidate", f.URI)
		}
		assert.Equal(t, len(candidates)-(len(existing)-1), len(filtered))
	}
}

func TestExcludeExisting_PreservesOrderAndDropsEmptyURI(t *testing.T) {
	candidates := []music.Track{{URI: "a"}, {URI: ""}, {URI: "b"}, {URI: "c"}}
	got := ExcludeExisting(candidates, music.PlaylistTarget{Existing: map[string]struct{}{"b": {}}})

	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].URI)
	assert.Equal(t, "c", got[1].URI)
}

func TestExcludeExisting_NewPlaylist(t *testing.T) {
	candidates := makeTracks("n", 4)
	got := ExcludeExisting(candidates, music.PlaylistTarget{})
	assert.Equal(t, candidates, got)
}
