package clustering

import (
	"context"

	zlog "github.com/rs/zerolog/log"

	"github.com/justestif/go-find-that-song/internal/lastfm"
	"github.com/justestif/go-find-that-song/internal/music"
)

const (
	// maxLookups bounds how many untagged artists are enriched per request.
	maxLookups = 10
	// tagsPerArtist is the number of external tags kept per artist.
	tagsPerArtist = 5
	// minTagWeight drops tags far weaker than the artist's top tag.
	minTagWeight = 0.1
)

// ArtistTagger returns community tags for an artist name.
type ArtistTagger interface {
	ArtistTags(ctx context.Context, artist string) ([]lastfm.Tag, error)
}

// Suggester turns a listener's top artists into suggested seed genres.
type Suggester struct {
	tagger ArtistTagger
	cfg    Config
}

// NewSuggester creates a Suggester. tagger may be nil, in which case artists
// without catalog genres are ignored.
func NewSuggester(tagger ArtistTagger, cfg Config) *Suggester {
	return &Suggester{tagger: tagger, cfg: cfg.withDefaults()}
}

// Suggest returns up to the configured number of seed genres for artists.
func (s *Suggester) Suggest(ctx context.Context, artists []music.Artist) []string {
	profiles := ProfilesFromArtists(artists)
	s.enrich(ctx, profiles)
	return SuggestGenres(profiles, s.cfg)
}

// enrich fills in tags for profiles the catalog left without genres.
// Lookup failures are logged and the artist stays untagged.
func (s *Suggester) enrich(ctx context.Context, profiles []Profile) {
	if s.tagger == nil {
		return
	}

	lookups := 0
	for i := range profiles {
		if len(profiles[i].Tags) > 0 || profiles[i].Artist.Name == "" {
			continue
		}
		if lookups == maxLookups || ctx.Err() != nil {
			return
		}
		lookups++

		tags, err := s.tagger.ArtistTags(ctx, profiles[i].Artist.Name)
		if err != nil {
			zlog.Warn().Err(err).Str("artist", profiles[i].Artist.Name).Msg("artist tag lookup failed")
			continue
		}
		profiles[i].Tags = weightTags(tags)
	}
}

// weightTags normalizes tag counts against the strongest tag.
func weightTags(tags []lastfm.Tag) []Tag {
	maxCount := 0
	for _, t := range tags {
		maxCount = max(maxCount, t.Count)
	}

	var out []Tag
	for _, t := range tags {
		if len(out) == tagsPerArtist {
			break
		}
		w := 1.0
		if maxCount > 0 {
			w = float64(t.Count) / float64(maxCount)
		}
		if w < minTagWeight {
			continue
		}
		out = append(out, Tag{Name: t.Name, Weight: w})
	}
	return out
}
