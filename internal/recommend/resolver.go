// Package recommend picks tracks for a generated playlist by walking an
// ordered list of lookup strategies until one of them yields tracks.
package recommend

import (
	"context"
	"math/rand/v2"
	"slices"
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/justestif/go-find-that-song/internal/music"
)

// Catalog is the per-user view of the music service the strategies query.
type Catalog interface {
	Recommendations(ctx context.Context, q music.RecommendationQuery) ([]music.Track, error)
	SearchTracks(ctx context.Context, query string, limit int) ([]music.Track, error)
	TopTracks(ctx context.Context, r music.TimeRange, limit int) ([]music.Track, error)
	RecentlyPlayed(ctx context.Context, limit int) ([]music.PlayedTrack, error)
}

// Strategy names.
const (
	StrategyCombinedSeed  = "combined-seed"
	StrategyGenreMix      = "genre-mix"
	StrategyKeywordSearch = "keyword-search"
	StrategyTagCharts     = "tag-charts"
	StrategyUserHistory   = "user-history"
)

// Step is one entry of the fallback chain.
type Step struct {
	Name string

	// Shuffle randomizes the step's output before truncation.
	Shuffle bool

	Fetch func(ctx context.Context, cat Catalog, spec music.SeedSpec) ([]music.Track, error)
}

// Result is the outcome of Resolve. Strategy is empty when every step failed.
type Result struct {
	Tracks   []music.Track
	Strategy string
}

// Empty reports whether no strategy produced tracks.
func (r Result) Empty() bool {
	return r.Strategy == "" || len(r.Tracks) == 0
}

// URIs returns the track URIs in order.
func (r Result) URIs() []string {
	uris := make([]string, len(r.Tracks))
	for i, t := range r.Tracks {
		uris[i] = t.URI
	}
	return uris
}

// Resolver runs the fallback chain. It holds no credentials; the catalog
// passed to Resolve carries them. Safe for concurrent use.
type Resolver struct {
	steps []Step

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRand makes shuffling deterministic.
func WithRand(rng *rand.Rand) Option {
	return func(r *Resolver) { r.rng = rng }
}

// WithTagCharts inserts the tag chart step ahead of the listening history.
func WithTagCharts(charts TagCharts, perTag, concurrency int) Option {
	return func(r *Resolver) {
		step := tagChartStep(charts, perTag, concurrency)
		at := len(r.steps)
		if i := slices.IndexFunc(r.steps, func(s Step) bool { return s.Name == StrategyUserHistory }); i >= 0 {
			at = i
		}
		r.steps = slices.Insert(r.steps, at, step)
	}
}

// New creates a Resolver with the default chain: combined seed, genre mix,
// keyword search and listening history.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		steps: []Step{
			combinedSeedStep(),
			genreMixStep(),
			keywordSearchStep(),
			userHistoryStep(),
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Steps returns the step names in execution order.
func (r *Resolver) Steps() []string {
	names := make([]string, len(r.steps))
	for i, s := range r.steps {
		names[i] = s.Name
	}
	return names
}

// Resolve returns at most spec.Count tracks, unique by URI, from the first
// step that yields any. A non-positive count means music.DefaultTrackCount.
// A failing step counts as yielding nothing. Resolve never returns an error;
// an exhausted chain gives an empty Result.
func (r *Resolver) Resolve(ctx context.Context, cat Catalog, spec music.SeedSpec) Result {
	count := spec.Count
	if count <= 0 {
		count = music.DefaultTrackCount
	}
	spec.Count = count

	for i, step := range r.steps {
		if err := ctx.Err(); err != nil {
			zlog.Warn().Err(err).Msg("resolve cancelled")
			return Result{}
		}

		log := zlog.With().Str("strategy", step.Name).Int("step", i+1).Int("steps", len(r.steps)).Logger()

		tracks, err := step.Fetch(ctx, cat, spec)
		if err != nil {
			log.Warn().Err(err).Msg("strategy failed, trying next")
			continue
		}

		tracks = music.DedupeByURI(tracks)
		if len(tracks) == 0 {
			log.Debug().Msg("strategy returned no tracks")
			continue
		}

		if step.Shuffle {
			r.shuffle(tracks)
		}
		if len(tracks) > count {
			tracks = tracks[:count]
		}
		for j := range tracks {
			tracks[j].Source = step.Name
		}

		log.Info().Int("tracks", len(tracks)).Msg("strategy returned tracks")
		return Result{Tracks: tracks, Strategy: step.Name}
	}

	zlog.Warn().Msg("all strategies exhausted")
	return Result{}
}

// shuffle is a Fisher-Yates shuffle.
func (r *Resolver) shuffle(tracks []music.Track) {
	swap := func(i, j int) { tracks[i], tracks[j] = tracks[j], tracks[i] }

	if r.rng == nil {
		rand.Shuffle(len(tracks), swap)
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.rng.Shuffle(len(tracks), swap)
}

// ExcludeExisting keeps the candidates the target playlist does not already
// hold, preserving order. Candidates without a URI are dropped.
func ExcludeExisting(candidates []music.Track, target music.PlaylistTarget) []music.Track {
	out := make([]music.Track, 0, len(candidates))
	for _, t := range candidates {
		if t.URI == "" || target.Contains(t.URI) {
			continue
		}
		out = append(out, t)
	}
	return out
}
