// Package spotify wraps the Spotify Web API client and converts its payloads
// into music types.
package spotify

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"

	"github.com/justestif/go-find-that-song/internal/music"
)

// Page sizes accepted by the Web API.
const (
	maxPageSize         = 50
	maxTracksPerRequest = 100
)

// Client wraps the Spotify API client with convenience methods.
// A Client is bound to a single user's credential.
type Client struct {
	api    *spotify.Client
	market string
}

// New creates a new Spotify client wrapper.
// The underlying client should already be authenticated.
func New(api *spotify.Client) *Client {
	return &Client{api: api}
}

// WithMarket restricts catalog lookups to tracks playable in the given
// ISO 3166-1 country code. An empty code leaves lookups unrestricted.
func (c *Client) WithMarket(code string) *Client {
	c.market = code
	return c
}

// catalogOptions appends the market filter, when set, to opts.
func (c *Client) catalogOptions(opts ...spotify.RequestOption) []spotify.RequestOption {
	if c.market != "" {
		opts = append(opts, spotify.Market(c.market))
	}
	return opts
}

// CurrentUser returns the profile of the authenticated user.
func (c *Client) CurrentUser(ctx context.Context) (music.User, error) {
	user, err := c.api.CurrentUser(ctx)
	if err != nil {
		return music.User{}, errors.Wrap(err, "getting current user")
	}

	u := music.User{
		ID:          string(user.ID),
		DisplayName: user.DisplayName,
		Email:       user.Email,
		URL:         user.ExternalURLs["spotify"],
	}
	if len(user.Images) > 0 {
		u.ImageURL = user.Images[0].URL
	}
	return u, nil
}

// Token returns the current token, which may have been refreshed by the
// transport since the client was created.
func (c *Client) Token() (*oauth2.Token, error) {
	return c.api.Token()
}

func clampLimit(limit, ceiling int) int {
	if limit <= 0 || limit > ceiling {
		return ceiling
	}
	return limit
}

func trackURL(id string) string {
	return fmt.Sprintf("https://open.spotify.com/track/%s", id)
}
