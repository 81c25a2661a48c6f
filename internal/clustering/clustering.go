// Package clustering groups a listener's top artists into taste clusters by
// genre and suggests a seed genre for each cluster.
package clustering

import (
	"slices"
	"sort"
	"strings"

	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
	zlog "github.com/rs/zerolog/log"

	"github.com/justestif/go-find-that-song/internal/music"
	"github.com/justestif/go-find-that-song/internal/recommend"
)

// Config holds clustering parameters.
type Config struct {
	NumClusters    int // Number of clusters to create (default: 3)
	MaxTerms       int // Maximum genre terms used in vectors (default: 50)
	MaxSuggestions int // Maximum suggested genres (default: 5)
}

// DefaultConfig returns the recommended default configuration.
func DefaultConfig() Config {
	return Config{
		NumClusters:    3,
		MaxTerms:       50,
		MaxSuggestions: music.MaxSeedsPerList,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.NumClusters <= 0 {
		c.NumClusters = d.NumClusters
	}
	if c.MaxTerms <= 0 {
		c.MaxTerms = d.MaxTerms
	}
	if c.MaxSuggestions <= 0 {
		c.MaxSuggestions = d.MaxSuggestions
	}
	return c
}

// Tag is a genre label with a weight in (0, 1].
type Tag struct {
	Name   string
	Weight float64
}

// Profile is an artist and the genre labels describing it.
type Profile struct {
	Artist music.Artist
	Tags   []Tag
}

// ProfilesFromArtists uses each artist's catalog genres with full weight.
func ProfilesFromArtists(artists []music.Artist) []Profile {
	profiles := make([]Profile, len(artists))
	for i, a := range artists {
		profiles[i].Artist = a
		for _, g := range a.Genres {
			profiles[i].Tags = append(profiles[i].Tags, Tag{Name: g, Weight: 1})
		}
	}
	return profiles
}

// TasteCluster is a group of artists with similar genres.
type TasteCluster struct {
	Artists  []music.Artist
	TopTerms []string // Top 3 dominant terms for this cluster
	Seed     string   // First dominant term usable as a genre seed, may be empty
}

// profileObservation wraps a Profile to implement clusters.Observation.
type profileObservation struct {
	profile *Profile
	coords  clusters.Coordinates
}

func (o profileObservation) Coordinates() clusters.Coordinates {
	return o.coords
}

func (o profileObservation) Distance(point clusters.Coordinates) float64 {
	return o.coords.Distance(point)
}

// ClusterProfiles runs k-means over genre vectors. It returns nil when there
// are fewer tagged profiles than clusters or partitioning fails.
// Clusters are ordered by size, largest first.
func ClusterProfiles(profiles []Profile, cfg Config) []TasteCluster {
	cfg = cfg.withDefaults()

	var tagged []*Profile
	for i := range profiles {
		if len(profiles[i].Tags) > 0 {
			tagged = append(tagged, &profiles[i])
		}
	}
	if len(tagged) < cfg.NumClusters {
		return nil
	}

	vocabulary := buildVocabulary(tagged, cfg.MaxTerms)
	if len(vocabulary) == 0 {
		return nil
	}
	index := make(map[string]int, len(vocabulary))
	for i, term := range vocabulary {
		index[term] = i
	}

	var obs clusters.Observations
	for _, p := range tagged {
		obs = append(obs, profileObservation{profile: p, coords: buildVector(p, index)})
	}

	km := kmeans.New()
	result, err := km.Partition(obs, cfg.NumClusters)
	if err != nil {
		zlog.Warn().Err(err).Msg("k-means partition failed")
		return nil
	}

	var out []TasteCluster
	for _, cluster := range result {
		var artists []music.Artist
		for _, o := range cluster.Observations {
			if po, ok := o.(profileObservation); ok {
				artists = append(artists, po.profile.Artist)
			}
		}
		if len(artists) == 0 {
			continue
		}

		ranked := rankCentroid(cluster.Center, vocabulary)
		tc := TasteCluster{Artists: artists, TopTerms: ranked[:min(3, len(ranked))]}
		for _, term := range ranked {
			if recommend.IsSeedGenre(term) {
				tc.Seed = term
				break
			}
		}
		out = append(out, tc)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return len(out[i].Artists) > len(out[j].Artists)
	})
	return out
}

// SuggestGenres returns up to cfg.MaxSuggestions distinct seed genres: one per
// taste cluster, topped up with the most frequent seed terms overall.
func SuggestGenres(profiles []Profile, cfg Config) []string {
	cfg = cfg.withDefaults()

	var suggestions []string
	add := func(term string) {
		if term != "" && len(suggestions) < cfg.MaxSuggestions && !slices.Contains(suggestions, term) {
			suggestions = append(suggestions, term)
		}
	}

	for _, c := range ClusterProfiles(profiles, cfg) {
		add(c.Seed)
	}

	var tagged []*Profile
	for i := range profiles {
		tagged = append(tagged, &profiles[i])
	}
	for _, term := range buildVocabulary(tagged, cfg.MaxTerms) {
		if recommend.IsSeedGenre(term) {
			add(term)
		}
	}

	return suggestions
}

// terms expands a genre label into its normalized form and, for multi-word
// labels, each word: "Alternative Rock" gives alternative-rock, alternative, rock.
func terms(label string) []string {
	n := recommend.NormalizeGenre(label)
	if n == "" {
		return nil
	}
	out := []string{n}
	if words := strings.Split(n, "-"); len(words) > 1 {
		for _, w := range words {
			if w != "" && !slices.Contains(out, w) {
				out = append(out, w)
			}
		}
	}
	return out
}

// buildVocabulary sums term weights across profiles and returns the top
// maxTerms, heaviest first with ties broken by name.
func buildVocabulary(profiles []*Profile, maxTerms int) []string {
	weights := make(map[string]float64)
	for _, p := range profiles {
		for term, w := range profileTerms(p) {
			weights[term] += w
		}
	}

	vocabulary := make([]string, 0, len(weights))
	for term := range weights {
		vocabulary = append(vocabulary, term)
	}
	sort.Slice(vocabulary, func(i, j int) bool {
		wi, wj := weights[vocabulary[i]], weights[vocabulary[j]]
		if wi != wj {
			return wi > wj
		}
		return vocabulary[i] < vocabulary[j]
	})

	return vocabulary[:min(maxTerms, len(vocabulary))]
}

// profileTerms maps each term of a profile to its strongest tag weight.
func profileTerms(p *Profile) map[string]float64 {
	out := make(map[string]float64)
	for _, tag := range p.Tags {
		for _, term := range terms(tag.Name) {
			if tag.Weight > out[term] {
				out[term] = tag.Weight
			}
		}
	}
	return out
}

func buildVector(p *Profile, index map[string]int) clusters.Coordinates {
	vector := make(clusters.Coordinates, len(index))
	for term, w := range profileTerms(p) {
		if i, ok := index[term]; ok {
			vector[i] = w
		}
	}
	return vector
}

// rankCentroid returns the vocabulary terms with positive centroid weight,
// heaviest first.
func rankCentroid(centroid clusters.Coordinates, vocabulary []string) []string {
	type termWeight struct {
		term   string
		weight float64
	}

	weights := make([]termWeight, 0, len(vocabulary))
	for i, term := range vocabulary {
		if i < len(centroid) && centroid[i] > 0 {
			weights = append(weights, termWeight{term, centroid[i]})
		}
	}
	sort.SliceStable(weights, func(i, j int) bool {
		return weights[i].weight > weights[j].weight
	})

	ranked := make([]string, len(weights))
	for i, w := range weights {
		ranked[i] = w.term
	}
	return ranked
}
