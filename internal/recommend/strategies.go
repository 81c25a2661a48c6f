package recommend

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/justestif/go-find-that-song/internal/music"
)

const historyLimit = 50

// CombinedQuery builds the single recommendations lookup used by the first
// step. Genres come first, then artists, then tracks, up to five seeds.
// A spec without any seed falls back to DefaultGenres.
func CombinedQuery(spec music.SeedSpec) music.RecommendationQuery {
	var genres []string
	if len(spec.Genres) > 0 || !spec.HasSeeds() {
		genres = SafeGenres(spec.Genres)
	}

	q := music.RecommendationQuery{Genres: genres, Limit: spec.Count}
	room := music.MaxSeedsPerList - len(genres)
	for _, id := range spec.ArtistIDs {
		if room == 0 {
			break
		}
		q.ArtistIDs = append(q.ArtistIDs, id)
		room--
	}
	for _, id := range spec.TrackIDs {
		if room == 0 {
			break
		}
		q.TrackIDs = append(q.TrackIDs, id)
		room--
	}

	applyTuning(&q, genres)
	return q
}

func combinedSeedStep() Step {
	return Step{
		Name: StrategyCombinedSeed,
		Fetch: func(ctx context.Context, cat Catalog, spec music.SeedSpec) ([]music.Track, error) {
			return cat.Recommendations(ctx, CombinedQuery(spec))
		},
	}
}

// perGenre splits count across n genres, rounding up.
func perGenre(count, n int) int {
	if n == 0 {
		return count
	}
	return (count + n - 1) / n
}

// collectPerGenre runs fetch for every genre and concatenates the results.
// Errors are logged; the last one is returned only if nothing was found.
func collectPerGenre(genres []string, fetch func(genre string) ([]music.Track, error)) ([]music.Track, error) {
	var (
		all     []music.Track
		lastErr error
	)
	for _, g := range genres {
		tracks, err := fetch(g)
		if err != nil {
			zlog.Debug().Err(err).Str("genre", g).Msg("genre lookup failed")
			lastErr = err
			continue
		}
		all = append(all, tracks...)
	}
	if len(all) == 0 {
		return nil, lastErr
	}
	return all, nil
}

func genreMixStep() Step {
	return Step{
		Name:    StrategyGenreMix,
		Shuffle: true,
		Fetch: func(ctx context.Context, cat Catalog, spec music.SeedSpec) ([]music.Track, error) {
			genres := SafeGenres(spec.Genres)
			limit := perGenre(spec.Count, len(genres))

			return collectPerGenre(genres, func(g string) ([]music.Track, error) {
				q := music.RecommendationQuery{Genres: []string{g}, Limit: limit}
				applyTuning(&q, q.Genres)
				return cat.Recommendations(ctx, q)
			})
		},
	}
}

func keywordSearchStep() Step {
	return Step{
		Name:    StrategyKeywordSearch,
		Shuffle: true,
		Fetch: func(ctx context.Context, cat Catalog, spec music.SeedSpec) ([]music.Track, error) {
			genres := keywordGenres(spec.Genres)
			limit := perGenre(spec.Count, len(genres))

			return collectPerGenre(genres, func(g string) ([]music.Track, error) {
				return searchGenre(ctx, cat, g, limit)
			})
		},
	}
}

// searchGenre tries the genre filter first and the bare keyword when the
// filtered search fails or comes back empty.
func searchGenre(ctx context.Context, cat Catalog, genre string, limit int) ([]music.Track, error) {
	tracks, err := cat.SearchTracks(ctx, "genre:"+genre, limit)
	if err == nil && len(tracks) > 0 {
		return tracks, nil
	}
	if err != nil {
		zlog.Debug().Err(err).Str("genre", genre).Msg("genre search failed, trying keyword")
	}
	return cat.SearchTracks(ctx, genre, limit)
}

func userHistoryStep() Step {
	return Step{
		Name: StrategyUserHistory,
		Fetch: func(ctx context.Context, cat Catalog, spec music.SeedSpec) ([]music.Track, error) {
			sources := []struct {
				name  string
				fetch func() ([]music.Track, error)
			}{
				{"top tracks medium_term", func() ([]music.Track, error) {
					return cat.TopTracks(ctx, music.MediumTerm, historyLimit)
				}},
				{"top tracks short_term", func() ([]music.Track, error) {
					return cat.TopTracks(ctx, music.ShortTerm, historyLimit)
				}},
				{"recently played", func() ([]music.Track, error) {
					played, err := cat.RecentlyPlayed(ctx, historyLimit)
					if err != nil {
						return nil, err
					}
					tracks := make([]music.Track, len(played))
					for i, p := range played {
						tracks[i] = p.Track
					}
					return tracks, nil
				}},
			}

			var lastErr error
			for _, src := range sources {
				tracks, err := src.fetch()
				if err != nil {
					zlog.Debug().Err(err).Str("source", src.name).Msg("history source failed")
					lastErr = err
					continue
				}
				if tracks = music.DedupeByURI(tracks); len(tracks) > 0 {
					return tracks, nil
				}
			}
			return nil, lastErr
		},
	}
}

// TagCharts lists the most played tracks for a tag on an external chart.
type TagCharts interface {
	TagTopTracks(ctx context.Context, tag string, limit int) ([]music.TrackRef, error)
}

func tagChartStep(charts TagCharts, perTag, concurrency int) Step {
	if concurrency < 1 {
		concurrency = 1
	}
	return Step{
		Name:    StrategyTagCharts,
		Shuffle: true,
		Fetch: func(ctx context.Context, cat Catalog, spec music.SeedSpec) ([]music.Track, error) {
			genres := keywordGenres(spec.Genres)
			limit := perGenre(spec.Count, len(genres))
			if perTag > 0 {
				limit = min(limit, perTag)
			}

			return collectPerGenre(genres, func(g string) ([]music.Track, error) {
				refs, err := charts.TagTopTracks(ctx, g, limit)
				if err != nil {
					return nil, errors.Wrapf(err, "tag chart %q", g)
				}
				return matchRefs(ctx, cat, refs, concurrency), nil
			})
		},
	}
}

// matchRefs looks each chart entry up in the catalog, keeping the chart order.
// Entries that cannot be matched are skipped.
func matchRefs(ctx context.Context, cat Catalog, refs []music.TrackRef, concurrency int) []music.Track {
	found := make([]*music.Track, len(refs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, ref := range refs {
		g.Go(func() error {
			query := fmt.Sprintf("track:%s artist:%s", ref.Title, ref.Artist)
			tracks, err := cat.SearchTracks(gctx, query, 1)
			if err != nil {
				zlog.Debug().Err(err).Str("query", query).Msg("chart entry lookup failed")
				return nil
			}
			if len(tracks) > 0 {
				found[i] = &tracks[0]
			}
			return nil
		})
	}
	_ = g.Wait()

	tracks := make([]music.Track, 0, len(refs))
	for _, t := range found {
		if t != nil {
			tracks = append(tracks, *t)
		}
	}
	return tracks
}
