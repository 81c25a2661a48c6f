package music

import (
	"sort"
	"strings"
)

const trackURIPrefix = "spotify:track:"

// AlbumSummary is an album and how many of the input tracks came from it.
type AlbumSummary struct {
	Album
	Count int
}

// TopAlbums groups tracks by album and orders the groups by track count,
// highest first. Groups with equal counts keep first-appearance order.
// Tracks without an album id are ignored.
func TopAlbums(tracks []Track) []AlbumSummary {
	index := make(map[string]int)
	var out []AlbumSummary

	for _, t := range tracks {
		if t.Album.ID == "" {
			continue
		}
		if i, ok := index[t.Album.ID]; ok {
			out[i].Count++
			continue
		}
		index[t.Album.ID] = len(out)
		out = append(out, AlbumSummary{Album: t.Album, Count: 1})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Count > out[j].Count
	})
	return out
}

// TrackURI builds a track URI from a bare id.
func TrackURI(id string) string {
	if id == "" {
		return ""
	}
	return trackURIPrefix + id
}

// TrackIDFromURI returns the id part of a track URI. Values without the
// track prefix are returned unchanged.
func TrackIDFromURI(uri string) string {
	return strings.TrimPrefix(uri, trackURIPrefix)
}

// DedupeByURI keeps the first track for each URI, preserving order.
// Tracks with an empty URI are dropped.
func DedupeByURI(tracks []Track) []Track {
	seen := make(map[string]struct{}, len(tracks))
	out := make([]Track, 0, len(tracks))
	for _, t := range tracks {
		if t.URI == "" {
			continue
		}
		if _, ok := seen[t.URI]; ok {
			continue
		}
		seen[t.URI] = struct{}{}
		out = append(out, t)
	}
	return out
}
