// Package auth wraps the Spotify authorization code flow for the web app.
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"

	"github.com/justestif/go-find-that-song/internal/config"
)

var (
	// ErrStateMismatch is returned when the OAuth state parameter doesn't match.
	ErrStateMismatch = errors.New("OAuth state mismatch")

	// ErrAccessDenied is returned when the user declines the authorization.
	ErrAccessDenied = errors.New("authorization denied")
)

// Scopes requested at login: listening history, top items and playlist
// read/write.
var Scopes = []string{
	spotifyauth.ScopeUserReadPrivate,
	spotifyauth.ScopeUserReadEmail,
	spotifyauth.ScopeUserReadRecentlyPlayed,
	spotifyauth.ScopeUserTopRead,
	spotifyauth.ScopePlaylistReadPrivate,
	spotifyauth.ScopePlaylistModifyPublic,
	spotifyauth.ScopePlaylistModifyPrivate,
}

// Authenticator handles Spotify OAuth2 authentication.
type Authenticator struct {
	auth *spotifyauth.Authenticator
}

// New creates an Authenticator from the configured credentials.
func New(cfg config.SpotifyConfig) *Authenticator {
	return &Authenticator{
		auth: spotifyauth.New(
			spotifyauth.WithClientID(cfg.ClientID),
			spotifyauth.WithClientSecret(cfg.ClientSecret),
			spotifyauth.WithRedirectURL(cfg.RedirectURI),
			spotifyauth.WithScopes(Scopes...),
		),
	}
}

// AuthURL returns the authorize URL. The consent dialog is always shown so
// users can switch accounts.
func (a *Authenticator) AuthURL(state string) string {
	return a.auth.AuthURL(state, spotifyauth.ShowDialog)
}

// Exchange validates the callback request and trades its code for a token.
func (a *Authenticator) Exchange(ctx context.Context, state string, r *http.Request) (*oauth2.Token, error) {
	q := r.URL.Query()
	if state == "" || q.Get("state") != state {
		return nil, ErrStateMismatch
	}
	if msg := q.Get("error"); msg != "" {
		return nil, errors.Wrapf(ErrAccessDenied, "spotify: %s", msg)
	}

	token, err := a.auth.Token(ctx, state, r)
	if err != nil {
		return nil, errors.Wrap(err, "exchanging code for token")
	}
	return token, nil
}

// Client returns a Spotify API client for token. The underlying HTTP client
// refreshes the token when it expires; read it back with Client.Token.
func (a *Authenticator) Client(ctx context.Context, token *oauth2.Token) *spotify.Client {
	return spotify.New(a.auth.Client(ctx, token), spotify.WithRetry(true))
}

// GenerateState creates a random state string for OAuth.
func GenerateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
