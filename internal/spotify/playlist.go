package spotify

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"

	"github.com/justestif/go-find-that-song/internal/music"
)

// FindPlaylistByName pages through the user's playlists and returns the first
// whose name matches case-insensitively, or nil when there is none.
func (c *Client) FindPlaylistByName(ctx context.Context, name string) (*music.PlaylistTarget, error) {
	want := strings.TrimSpace(name)
	if want == "" {
		return nil, nil
	}

	page, err := c.api.CurrentUsersPlaylists(ctx, spotify.Limit(maxPageSize))
	if err != nil {
		return nil, errors.Wrap(err, "listing playlists")
	}

	for {
		for _, p := range page.Playlists {
			if strings.EqualFold(p.Name, want) {
				return &music.PlaylistTarget{
					ID:   string(p.ID),
					Name: p.Name,
					URL:  p.ExternalURLs["spotify"],
				}, nil
			}
		}

		err = c.api.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			return nil, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "listing playlists: next page")
		}
	}
}

// PlaylistTrackURIs returns the set of track URIs already in a playlist.
// Episodes and local files without an id are skipped.
func (c *Client) PlaylistTrackURIs(ctx context.Context, playlistID string) (map[string]struct{}, error) {
	page, err := c.api.GetPlaylistItems(ctx, spotify.ID(playlistID), spotify.Limit(maxTracksPerRequest))
	if err != nil {
		return nil, errors.Wrapf(err, "fetching items of playlist %s", playlistID)
	}

	uris := make(map[string]struct{})
	for {
		for _, item := range page.Items {
			t := item.Track.Track
			if t == nil || t.ID == "" {
				continue
			}
			uri := string(t.URI)
			if uri == "" {
				uri = music.TrackURI(string(t.ID))
			}
			uris[uri] = struct{}{}
		}

		err = c.api.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			return uris, nil
		}
		if err != nil {
			return nil, errors.Wrapf(err, "fetching items of playlist %s: next page", playlistID)
		}
	}
}

// CreatePlaylist creates a playlist owned by userID.
func (c *Client) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*music.PlaylistTarget, error) {
	playlist, err := c.api.CreatePlaylistForUser(ctx, userID, name, description, public, false)
	if err != nil {
		return nil, errors.Wrap(err, "creating playlist")
	}

	return &music.PlaylistTarget{
		ID:       string(playlist.ID),
		Name:     playlist.Name,
		URL:      playlist.ExternalURLs["spotify"],
		Existing: map[string]struct{}{},
	}, nil
}

// AddTracksToPlaylist adds tracks by URI, handling batching for large sets.
// Spotify allows max 100 tracks per request.
func (c *Client) AddTracksToPlaylist(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return nil
	}

	ids := make([]spotify.ID, len(uris))
	for i, uri := range uris {
		ids[i] = spotify.ID(music.TrackIDFromURI(uri))
	}

	for i := 0; i < len(ids); i += maxTracksPerRequest {
		end := min(i+maxTracksPerRequest, len(ids))
		batch := ids[i:end]

		if _, err := c.api.AddTracksToPlaylist(ctx, spotify.ID(playlistID), batch...); err != nil {
			return errors.Wrapf(err, "adding tracks (batch %d-%d)", i+1, end)
		}
	}

	return nil
}
