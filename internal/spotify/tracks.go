package spotify

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"

	"github.com/justestif/go-find-that-song/internal/music"
)

// RecentlyPlayed returns up to limit of the user's most recently played tracks.
func (c *Client) RecentlyPlayed(ctx context.Context, limit int) ([]music.PlayedTrack, error) {
	items, err := c.api.PlayerRecentlyPlayedOpt(ctx, &spotify.RecentlyPlayedOptions{Limit: maxPageSize})
	if err != nil {
		return nil, errors.Wrap(err, "fetching recently played")
	}

	limit = clampLimit(limit, maxPageSize)
	played := make([]music.PlayedTrack, 0, min(len(items), limit))
	for _, item := range items {
		if len(played) == limit {
			break
		}
		played = append(played, music.PlayedTrack{
			Track:    convertSimpleTrack(item.Track),
			PlayedAt: item.PlayedAt,
		})
	}
	return played, nil
}

// TopTracks returns the user's top tracks for the time range.
func (c *Client) TopTracks(ctx context.Context, r music.TimeRange, limit int) ([]music.Track, error) {
	page, err := c.api.CurrentUsersTopTracks(ctx,
		spotify.Timerange(spotify.Range(r)),
		spotify.Limit(clampLimit(limit, maxPageSize)),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching top tracks (%s)", r)
	}

	tracks := make([]music.Track, 0, len(page.Tracks))
	for _, t := range page.Tracks {
		tracks = append(tracks, convertFullTrack(t))
	}
	return tracks, nil
}

// TopArtists returns the user's top artists for the time range.
func (c *Client) TopArtists(ctx context.Context, r music.TimeRange, limit int) ([]music.Artist, error) {
	page, err := c.api.CurrentUsersTopArtists(ctx,
		spotify.Timerange(spotify.Range(r)),
		spotify.Limit(clampLimit(limit, maxPageSize)),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching top artists (%s)", r)
	}

	artists := make([]music.Artist, 0, len(page.Artists))
	for _, a := range page.Artists {
		artists = append(artists, convertFullArtist(a))
	}
	return artists, nil
}

// Recommendations asks the recommendations endpoint for tracks matching q.
func (c *Client) Recommendations(ctx context.Context, q music.RecommendationQuery) ([]music.Track, error) {
	if q.SeedCount() == 0 {
		return nil, errors.New("recommendations need at least one seed")
	}

	seeds := spotify.Seeds{
		Genres:  q.Genres,
		Artists: toIDs(q.ArtistIDs),
		Tracks:  toIDs(q.TrackIDs),
	}

	attrs := spotify.NewTrackAttributes()
	if q.TargetEnergy > 0 {
		attrs = attrs.TargetEnergy(q.TargetEnergy)
	}
	if q.TargetAcousticness > 0 {
		attrs = attrs.TargetAcousticness(q.TargetAcousticness)
	}
	if q.TargetPopularity > 0 {
		attrs = attrs.TargetPopularity(q.TargetPopularity)
	}

	recs, err := c.api.GetRecommendations(ctx, seeds, attrs, c.catalogOptions(spotify.Limit(clampLimit(q.Limit, maxTracksPerRequest)))...)
	if err != nil {
		return nil, errors.Wrap(err, "fetching recommendations")
	}

	tracks := make([]music.Track, 0, len(recs.Tracks))
	for _, t := range recs.Tracks {
		tracks = append(tracks, convertSimpleTrack(t))
	}
	return tracks, nil
}

// SearchTracks runs a track search.
func (c *Client) SearchTracks(ctx context.Context, query string, limit int) ([]music.Track, error) {
	res, err := c.api.Search(ctx, query, spotify.SearchTypeTrack, c.catalogOptions(spotify.Limit(clampLimit(limit, maxPageSize)))...)
	if err != nil {
		return nil, errors.Wrapf(err, "searching tracks %q", query)
	}
	if res.Tracks == nil {
		return nil, nil
	}

	tracks := make([]music.Track, 0, len(res.Tracks.Tracks))
	for _, t := range res.Tracks.Tracks {
		tracks = append(tracks, convertFullTrack(t))
	}
	return tracks, nil
}

func toIDs(in []string) []spotify.ID {
	if len(in) == 0 {
		return nil
	}
	ids := make([]spotify.ID, len(in))
	for i, id := range in {
		ids[i] = spotify.ID(id)
	}
	return ids
}

// convertSimpleTrack converts a track without album details.
func convertSimpleTrack(t spotify.SimpleTrack) music.Track {
	id := string(t.ID)
	uri := string(t.URI)
	if uri == "" {
		uri = music.TrackURI(id)
	}

	url := t.ExternalURLs["spotify"]
	if url == "" && id != "" {
		url = trackURL(id)
	}

	artists := make([]music.Artist, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = convertArtist(a)
	}

	return music.Track{
		ID:       id,
		URI:      uri,
		Name:     t.Name,
		Artists:  artists,
		Duration: time.Duration(t.Duration) * time.Millisecond,
		URL:      url,
	}
}

func convertFullTrack(t spotify.FullTrack) music.Track {
	track := convertSimpleTrack(t.SimpleTrack)
	track.Album = convertAlbum(t.Album)
	return track
}

func convertAlbum(a spotify.SimpleAlbum) music.Album {
	album := music.Album{
		ID:          string(a.ID),
		Name:        a.Name,
		URL:         a.ExternalURLs["spotify"],
		ReleaseDate: a.ReleaseDate,
	}
	if len(a.Images) > 0 {
		album.ImageURL = a.Images[0].URL
	}
	for _, artist := range a.Artists {
		album.Artists = append(album.Artists, convertArtist(artist))
	}
	return album
}

func convertArtist(a spotify.SimpleArtist) music.Artist {
	return music.Artist{
		ID:   string(a.ID),
		Name: a.Name,
		URL:  a.ExternalURLs["spotify"],
	}
}

func convertFullArtist(a spotify.FullArtist) music.Artist {
	artist := convertArtist(a.SimpleArtist)
	artist.Genres = a.Genres
	artist.Popularity = int(a.Popularity)
	if len(a.Images) > 0 {
		artist.ImageURL = a.Images[0].URL
	}
	return artist
}
