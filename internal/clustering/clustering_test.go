package clustering

import (
	"context"
	"errors"
	"reflect"
	"slices"
	"testing"

	"github.com/justestif/go-find-that-song/internal/lastfm"
	"github.com/justestif/go-find-that-song/internal/music"
	"github.com/justestif/go-find-that-song/internal/recommend"
)

func artist(name string, genres ...string) music.Artist {
	return music.Artist{ID: name, Name: name, Genres: genres}
}

func TestSuggestGenres_Empty(t *testing.T) {
	if got := SuggestGenres(nil, DefaultConfig()); len(got) != 0 {
		t.Errorf("SuggestGenres(nil) = %v, want empty", got)
	}

	untagged := ProfilesFromArtists([]music.Artist{artist("a"), artist("b")})
	if got := SuggestGenres(untagged, DefaultConfig()); len(got) != 0 {
		t.Errorf("SuggestGenres(untagged) = %v, want empty", got)
	}
}

func TestSuggestGenres_FrequencyFallback(t *testing.T) {
	// Two artists cannot form three clusters, so only frequency ranking applies.
	profiles := ProfilesFromArtists([]music.Artist{
		artist("a", "Alternative Rock"),
		artist("b", "indie rock", "alternative rock"),
	})

	got := SuggestGenres(profiles, DefaultConfig())
	want := []string{"alternative", "rock", "indie"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SuggestGenres() = %v, want %v", got, want)
	}
}

func TestSuggestGenres_Clustered(t *testing.T) {
	var artists []music.Artist
	for _, name := range []string{"m1", "m2", "m3"} {
		artists = append(artists, artist(name, "heavy metal", "thrash metal"))
	}
	for _, name := range []string{"j1", "j2", "j3"} {
		artists = append(artists, artist(name, "jazz", "bebop"))
	}
	for _, name := range []string{"c1", "c2", "c3"} {
		artists = append(artists, artist(name, "country", "outlaw country"))
	}

	got := SuggestGenres(ProfilesFromArtists(artists), DefaultConfig())

	want := []string{"heavy-metal", "metal", "jazz", "country"}
	if len(got) != len(want) {
		t.Fatalf("SuggestGenres() = %v, want elements of %v", got, want)
	}
	for _, g := range want {
		if !slices.Contains(got, g) {
			t.Errorf("SuggestGenres() = %v, missing %q", got, g)
		}
	}
}

func TestSuggestGenres_Invariants(t *testing.T) {
	artists := []music.Artist{
		artist("1", "pop", "dance pop"),
		artist("2", "k-pop"),
		artist("3", "hip hop", "trap"),
		artist("4", "rap", "hip hop"),
		artist("5", "indie rock"),
		artist("6", "rock", "punk"),
		artist("7", "edm", "house"),
		artist("8", "techno", "deep house"),
		artist("9", "classical"),
	}
	cfg := DefaultConfig()

	for i := 0; i < 10; i++ {
		got := SuggestGenres(ProfilesFromArtists(artists), cfg)
		if len(got) == 0 || len(got) > cfg.MaxSuggestions {
			t.Fatalf("SuggestGenres() returned %d genres, want 1..%d", len(got), cfg.MaxSuggestions)
		}
		seen := make(map[string]bool)
		for _, g := range got {
			if seen[g] {
				t.Errorf("duplicate suggestion %q in %v", g, got)
			}
			seen[g] = true
			if !recommend.IsSeedGenre(g) {
				t.Errorf("suggestion %q is not a seed genre", g)
			}
		}
	}
}

func TestClusterProfiles(t *testing.T) {
	profiles := ProfilesFromArtists([]music.Artist{
		artist("a", "jazz"),
		artist("b", "jazz", "soul"),
		artist("c"),
		artist("d", "jazz"),
	})

	got := ClusterProfiles(profiles, Config{NumClusters: 1})
	if len(got) != 1 {
		t.Fatalf("ClusterProfiles() returned %d clusters, want 1", len(got))
	}
	if n := len(got[0].Artists); n != 3 {
		t.Errorf("cluster has %d artists, want 3 tagged artists", n)
	}
	if got[0].Seed != "jazz" {
		t.Errorf("Seed = %q, want jazz", got[0].Seed)
	}
	if len(got[0].TopTerms) == 0 || got[0].TopTerms[0] != "jazz" {
		t.Errorf("TopTerms = %v, want jazz first", got[0].TopTerms)
	}
}

func TestClusterProfiles_TooFewArtists(t *testing.T) {
	profiles := ProfilesFromArtists([]music.Artist{artist("a", "jazz")})
	if got := ClusterProfiles(profiles, DefaultConfig()); got != nil {
		t.Errorf("ClusterProfiles() = %+v, want nil", got)
	}
}

func TestTerms(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Alternative Rock", []string{"alternative-rock", "alternative", "rock"}},
		{"jazz", []string{"jazz"}},
		{"hip-hop", []string{"hip-hop", "hip", "hop"}},
		{"   ", nil},
	}
	for _, tt := range tests {
		if got := terms(tt.in); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("terms(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

type fakeTagger struct {
	tags  map[string][]lastfm.Tag
	calls []string
}

func (f *fakeTagger) ArtistTags(ctx context.Context, name string) ([]lastfm.Tag, error) {
	f.calls = append(f.calls, name)
	tags, ok := f.tags[name]
	if !ok {
		return nil, errors.New("not found")
	}
	return tags, nil
}

func TestSuggester_EnrichesUntaggedArtists(t *testing.T) {
	tagger := &fakeTagger{tags: map[string][]lastfm.Tag{
		"Quiet": {{Name: "ambient", Count: 100}, {Name: "drone", Count: 40}, {Name: "noise", Count: 2}},
	}}
	s := NewSuggester(tagger, DefaultConfig())

	got := s.Suggest(context.Background(), []music.Artist{
		artist("Loud", "punk"),
		artist("Quiet"),
		artist("Missing"),
	})

	if want := []string{"Quiet", "Missing"}; !reflect.DeepEqual(tagger.calls, want) {
		t.Errorf("lookups = %v, want %v", tagger.calls, want)
	}
	for _, g := range []string{"punk", "ambient"} {
		if !slices.Contains(got, g) {
			t.Errorf("Suggest() = %v, missing %q", got, g)
		}
	}
}

func TestSuggester_NilTagger(t *testing.T) {
	s := NewSuggester(nil, DefaultConfig())
	got := s.Suggest(context.Background(), []music.Artist{artist("x"), artist("y", "blues")})
	if !reflect.DeepEqual(got, []string{"blues"}) {
		t.Errorf("Suggest() = %v, want [blues]", got)
	}
}

func TestWeightTags(t *testing.T) {
	got := weightTags([]lastfm.Tag{
		{Name: "a", Count: 100},
		{Name: "b", Count: 50},
		{Name: "c", Count: 5},
	})
	want := []Tag{{Name: "a", Weight: 1}, {Name: "b", Weight: 0.5}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("weightTags() = %v, want %v", got, want)
	}
}
