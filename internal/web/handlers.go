package web

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/justestif/go-find-that-song/internal/auth"
	"github.com/justestif/go-find-that-song/internal/clustering"
	"github.com/justestif/go-find-that-song/internal/music"
	"github.com/justestif/go-find-that-song/internal/playlist"
)

const stateCookieName = "oauth_state"

// Authenticator runs the OAuth authorization code flow.
type Authenticator interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, state string, r *http.Request) (*oauth2.Token, error)
}

// Catalog is the Spotify surface used by the handlers, bound to one user.
type Catalog interface {
	playlist.Catalog
	CurrentUser(ctx context.Context) (music.User, error)
	// Token returns the possibly refreshed token.
	Token() (*oauth2.Token, error)
}

// CatalogFactory builds a Catalog for a user's token.
type CatalogFactory func(ctx context.Context, token *oauth2.Token) Catalog

// HandlersConfig wires the handler dependencies. History, Suggester and Ping
// are optional.
type HandlersConfig struct {
	Auth      Authenticator
	Catalogs  CatalogFactory
	Sessions  SessionManager
	Templates *Templates
	Generator *playlist.Service
	Suggester *clustering.Suggester
	History   History
	Ping      func(ctx context.Context) error

	DefaultTrackCount int
	SecureCookies     bool
}

// Handlers contains HTTP handlers for the web application.
type Handlers struct {
	auth      Authenticator
	catalogs  CatalogFactory
	sessions  SessionManager
	templates *Templates
	generator *playlist.Service
	suggester *clustering.Suggester
	history   History
	ping      func(ctx context.Context) error

	defaultTrackCount int
	secureCookies     bool
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(cfg HandlersConfig) *Handlers {
	count := cfg.DefaultTrackCount
	if count == 0 {
		count = music.DefaultTrackCount
	}
	generator := cfg.Generator
	if generator == nil {
		generator = playlist.NewService(nil, cfg.History)
	}
	return &Handlers{
		auth:              cfg.Auth,
		catalogs:          cfg.Catalogs,
		sessions:          cfg.Sessions,
		templates:         cfg.Templates,
		generator:         generator,
		suggester:         cfg.Suggester,
		history:           cfg.History,
		ping:              cfg.Ping,
		defaultTrackCount: music.ClampCount(count),
		secureCookies:     cfg.SecureCookies,
	}
}

// Home handles the home page (GET /).
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	session := h.sessions.GetFromRequest(r)

	data := HomePageData{
		PageData:      h.page(r, session, "Home"),
		Authenticated: session != nil,
	}
	h.render(w, http.StatusOK, "home", data)
}

// Login initiates the Spotify OAuth flow (GET /login).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	// Generate state for CSRF protection
	state, err := auth.GenerateState()
	if err != nil {
		h.fail(w, r, errors.Wrap(err, "generating state"))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   300, // 5 minutes
	})

	http.Redirect(w, r, h.auth.AuthURL(state), http.StatusTemporaryRedirect)
}

// Callback handles the OAuth callback from Spotify (GET /callback).
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil {
		h.fail(w, r, auth.ErrStateMismatch)
		return
	}

	// Clear state cookie
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		MaxAge:   -1,
	})

	ctx := r.Context()
	token, err := h.auth.Exchange(ctx, stateCookie.Value, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	user, err := h.catalogs(ctx, token).CurrentUser(ctx)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if h.history != nil {
		if err := h.history.RecordLogin(ctx, user); err != nil {
			h.fail(w, r, errors.Wrap(err, "recording login"))
			return
		}
	}

	session, err := h.sessions.Create(ctx, token, user.ID, user.Name())
	if err != nil {
		h.fail(w, r, errors.Wrap(err, "creating session"))
		return
	}
	h.sessions.SetCookie(w, session)

	zlog.Info().Str("user", user.ID).Msg("user logged in")
	http.Redirect(w, r, "/recently-played", http.StatusTemporaryRedirect)
}

// Logout clears the session and redirects to home (POST /logout).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if session := h.sessions.GetFromRequest(r); session != nil {
		h.sessions.Delete(r.Context(), session.ID)
	}

	h.sessions.ClearCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// Health reports liveness (GET /health). It always answers 200 while the
// process serves requests; database reachability is reported in the body.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	body := map[string]string{"status": "ok"}

	if h.ping != nil {
		body["database"] = "ok"
		if err := h.ping(r.Context()); err != nil {
			zlog.Warn().Err(err).Msg("database ping failed")
			body["database"] = "unreachable"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(body)
}

// catalog returns the Catalog for the request's session.
func (h *Handlers) catalog(r *http.Request) (Catalog, *Session) {
	session := sessionFrom(r.Context())
	return h.catalogs(r.Context(), session.Token), session
}

// persistToken stores the token when the transport refreshed it.
func (h *Handlers) persistToken(ctx context.Context, session *Session, cat Catalog) {
	token, err := cat.Token()
	if err != nil || token == nil {
		return
	}
	if session.Token != nil && token.AccessToken == session.Token.AccessToken {
		return
	}
	h.sessions.UpdateToken(ctx, session.ID, token)
	zlog.Debug().Str("user", session.UserID).Msg("stored refreshed token")
}

func (h *Handlers) page(r *http.Request, session *Session, title string) PageData {
	data := PageData{Title: title, CurrentPath: r.URL.Path}
	if session != nil {
		data.User = &UserData{ID: session.UserID, Name: session.UserName}
	}
	return data
}

// render executes a page into a buffer so a template failure never leaves a
// half written response.
func (h *Handlers) render(w http.ResponseWriter, status int, page string, data any) {
	var buf bytes.Buffer
	if err := h.templates.Render(&buf, page, data); err != nil {
		zlog.Error().Err(err).Str("template", page).Msg("failed to render template")
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderView renders the list partial for htmx requests and the full page
// otherwise.
func (h *Handlers) renderView(w http.ResponseWriter, r *http.Request, page, partial string, data any) {
	if !isHTMX(r) {
		h.render(w, http.StatusOK, page, data)
		return
	}

	var buf bytes.Buffer
	if err := h.templates.RenderPartial(&buf, partial, data); err != nil {
		zlog.Error().Err(err).Str("template", partial).Msg("failed to render partial")
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// renderError renders the error page with a link home.
func (h *Handlers) renderError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.render(w, status, "error", ErrorPageData{
		PageData: h.page(r, sessionFrom(r.Context()), "Error"),
		Status:   status,
		Message:  message,
	})
}

// fail maps err to a status and user facing message.
func (h *Handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, message := classify(err)

	event := zlog.Error()
	if status < http.StatusInternalServerError {
		event = zlog.Warn()
	}
	event.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")

	if errors.Is(err, context.Canceled) {
		return
	}
	h.renderError(w, r, status, message)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, playlist.ErrNoTracks):
		return http.StatusUnprocessableEntity, "We could not build a playlist from those choices. Try different genres."
	case errors.Is(err, auth.ErrStateMismatch):
		return http.StatusBadRequest, "Your login attempt expired. Please log in again."
	case errors.Is(err, auth.ErrAccessDenied):
		return http.StatusBadRequest, "Spotify login was cancelled."
	case errors.Is(err, context.Canceled):
		return 499, "Request cancelled."
	default:
		return http.StatusBadGateway, "We could not complete that request with Spotify. Please try again in a moment."
	}
}
