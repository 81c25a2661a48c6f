package recommend

import (
	"slices"
	"strings"

	"github.com/justestif/go-find-that-song/internal/music"
)

// DefaultGenres are used when no usable genre seed is given.
var DefaultGenres = []string{"pop", "rock", "hip-hop"}

// seedGenres is the set of genre seeds the recommendations endpoint accepts.
var seedGenres = map[string]struct{}{}

func init() {
	for _, g := range []string{
		"acoustic", "afrobeat", "alt-rock", "alternative", "ambient", "anime",
		"black-metal", "bluegrass", "blues", "bossanova", "brazil", "breakbeat",
		"british", "cantopop", "chicago-house", "children", "chill", "classical",
		"club", "comedy", "country", "dance", "dancehall", "death-metal", "deep-house",
		"detroit-techno", "disco", "disney", "drum-and-bass", "dub", "dubstep", "edm",
		"electro", "electronic", "emo", "folk", "forro", "french", "funk", "garage",
		"german", "gospel", "goth", "grindcore", "groove", "grunge", "guitar",
		"happy", "hard-rock", "hardcore", "hardstyle", "heavy-metal", "hip-hop",
		"house", "idm", "indian", "indie", "indie-pop", "industrial", "iranian",
		"j-dance", "j-idol", "j-pop", "j-rock", "jazz", "k-pop", "kids", "latin",
		"latino", "malay", "mandopop", "metal", "metal-misc", "metalcore", "minimal-techno",
		"mpb", "new-age", "new-release", "opera", "pagode", "party", "piano",
		"pop", "pop-film", "post-dubstep", "power-pop", "progressive-house", "psych-rock",
		"punk", "punk-rock", "r-n-b", "rainy-day", "reggae", "reggaeton", "road-trip",
		"rock", "rock-n-roll", "rockabilly", "romance", "sad", "salsa", "samba",
		"sertanejo", "show-tunes", "singer-songwriter", "ska", "sleep", "songwriter",
		"soul", "soundtracks", "spanish", "study", "summer", "swedish", "synth-pop",
		"tango", "techno", "trance", "trip-hop", "turkish", "work-out", "world-music",
	} {
		seedGenres[g] = struct{}{}
	}
}

// FormGenres is the subset offered as checkboxes on the generator form.
var FormGenres = []string{
	"pop", "rock", "hip-hop", "electronic", "indie", "jazz", "classical",
	"country", "r-n-b", "metal", "folk", "latin", "soul", "punk", "blues",
	"reggae", "dance", "ambient", "k-pop", "acoustic",
}

// NormalizeGenre lower-cases, trims and joins words with "-".
func NormalizeGenre(g string) string {
	return strings.Join(strings.Fields(strings.ToLower(g)), "-")
}

// IsSeedGenre reports whether g, once normalized, is an accepted genre seed.
func IsSeedGenre(g string) bool {
	_, ok := seedGenres[NormalizeGenre(g)]
	return ok
}

// SafeGenres normalizes genres and keeps the accepted seeds, without
// duplicates and at most music.MaxSeedsPerList of them. When nothing remains
// it returns DefaultGenres.
func SafeGenres(genres []string) []string {
	out := make([]string, 0, music.MaxSeedsPerList)
	for _, g := range genres {
		n := NormalizeGenre(g)
		if _, ok := seedGenres[n]; !ok || slices.Contains(out, n) {
			continue
		}
		out = append(out, n)
		if len(out) == music.MaxSeedsPerList {
			break
		}
	}
	if len(out) == 0 {
		return slices.Clone(DefaultGenres)
	}
	return out
}

// keywordGenres normalizes the user's genres without filtering them, so that
// free-text genres can still be searched. Empty input yields DefaultGenres.
func keywordGenres(genres []string) []string {
	var out []string
	for _, g := range genres {
		n := NormalizeGenre(g)
		if n == "" || slices.Contains(out, n) {
			continue
		}
		out = append(out, n)
		if len(out) == music.MaxSeedsPerList {
			break
		}
	}
	if len(out) == 0 {
		return slices.Clone(DefaultGenres)
	}
	return out
}

// applyTuning adds the audio hints associated with the first matching genre.
func applyTuning(q *music.RecommendationQuery, genres []string) {
	switch {
	case slices.Contains(genres, "country"):
		q.TargetAcousticness = 0.7
	case slices.Contains(genres, "pop"):
		q.TargetPopularity = 70
	case slices.Contains(genres, "rock"):
		q.TargetEnergy = 0.8
	}
}
