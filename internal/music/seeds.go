package music

// Limits applied to a SeedSpec.
const (
	MaxSeedsPerList   = 5
	MinTrackCount     = 5
	MaxTrackCount     = 50
	DefaultTrackCount = 20
)

// SeedSpec describes what a generated playlist should be built from.
type SeedSpec struct {
	Genres    []string
	ArtistIDs []string
	TrackIDs  []string
	Count     int
}

// NewSeedSpec truncates each list to MaxSeedsPerList and clamps count to
// [MinTrackCount, MaxTrackCount]. A zero count means DefaultTrackCount.
func NewSeedSpec(genres, artistIDs, trackIDs []string, count int) SeedSpec {
	return SeedSpec{
		Genres:    truncate(genres),
		ArtistIDs: truncate(artistIDs),
		TrackIDs:  truncate(trackIDs),
		Count:     ClampCount(count),
	}
}

// ClampCount bounds a requested track count.
func ClampCount(count int) int {
	switch {
	case count == 0:
		return DefaultTrackCount
	case count < MinTrackCount:
		return MinTrackCount
	case count > MaxTrackCount:
		return MaxTrackCount
	}
	return count
}

// HasSeeds reports whether any seed list is non-empty.
func (s SeedSpec) HasSeeds() bool {
	return len(s.Genres)+len(s.ArtistIDs)+len(s.TrackIDs) > 0
}

func truncate(in []string) []string {
	out := make([]string, 0, min(len(in), MaxSeedsPerList))
	for _, v := range in {
		if v == "" {
			continue
		}
		out = append(out, v)
		if len(out) == MaxSeedsPerList {
			break
		}
	}
	return out
}

// PlaylistTarget is the playlist being written to and the URIs it already holds.
type PlaylistTarget struct {
	ID       string
	Name     string
	URL      string
	Existing map[string]struct{}
}

// Contains reports whether uri is already in the playlist.
func (p PlaylistTarget) Contains(uri string) bool {
	_, ok := p.Existing[uri]
	return ok
}

// RecommendationQuery is a single recommendations lookup. Zero tuning values
// are left unset.
type RecommendationQuery struct {
	Genres    []string
	ArtistIDs []string
	TrackIDs  []string
	Limit     int

	TargetEnergy       float64
	TargetAcousticness float64
	TargetPopularity   int
}

// SeedCount is the total number of seeds in the query.
func (q RecommendationQuery) SeedCount() int {
	return len(q.Genres) + len(q.ArtistIDs) + len(q.TrackIDs)
}
