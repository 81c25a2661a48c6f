// Package music defines the catalog entities shared by the Spotify wrapper,
// the recommendation resolver and the web layer.
package music

import (
	"strings"
	"time"
)

// Artist is a performer as returned by the catalog.
type Artist struct {
	ID         string
	Name       string
	URL        string
	ImageURL   string
	Genres     []string
	Popularity int
}

// Album is a release a track belongs to.
type Album struct {
	ID          string
	Name        string
	URL         string
	ImageURL    string
	ReleaseDate string
	Artists     []Artist
}

// Track is a playable item identified by its URI.
type Track struct {
	ID       string
	URI      string
	Name     string
	Artists  []Artist
	Album    Album
	Duration time.Duration
	URL      string

	// Source names the lookup that produced the track.
	Source string
}

// ArtistNames joins the artist names with ", ".
func (t Track) ArtistNames() string {
	return joinArtists(t.Artists)
}

// ArtistNames joins the album artist names with ", ".
func (a Album) ArtistNames() string {
	return joinArtists(a.Artists)
}

func joinArtists(artists []Artist) string {
	names := make([]string, len(artists))
	for i, a := range artists {
		names[i] = a.Name
	}
	return strings.Join(names, ", ")
}

// PlayedTrack is an entry of the listening history.
type PlayedTrack struct {
	Track
	PlayedAt time.Time
}

// User is the authenticated Spotify account.
type User struct {
	ID          string
	DisplayName string
	Email       string
	URL         string
	ImageURL    string
}

// Name returns the display name, falling back to the id.
func (u User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.ID
}

// TrackRef names a track by title and artist, as external charts do.
type TrackRef struct {
	Title  string
	Artist string
}
