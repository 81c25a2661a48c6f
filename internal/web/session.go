// Package web provides the HTTP server, handlers and sessions for Find That Song.
package web

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/justestif/go-find-that-song/internal/db"
)

const (
	sessionCookieName = "session_id"
	sessionTTL        = 24 * time.Hour
)

// Session represents an authenticated user session. The token never leaves
// the server.
type Session struct {
	ID        string
	Token     *oauth2.Token
	UserID    string
	UserName  string
	CreatedAt time.Time
}

// SessionManager defines the interface for session management.
type SessionManager interface {
	Create(ctx context.Context, token *oauth2.Token, userID, userName string) (*Session, error)
	Get(ctx context.Context, id string) *Session
	Delete(ctx context.Context, id string)
	UpdateToken(ctx context.Context, id string, token *oauth2.Token)
	GetFromRequest(r *http.Request) *Session
	SetCookie(w http.ResponseWriter, session *Session)
	ClearCookie(w http.ResponseWriter)
}

// cookies writes the session cookie. Secure is set in production.
type cookies struct {
	secure bool
}

func (c cookies) SetCookie(w http.ResponseWriter, session *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(sessionTTL.Seconds()),
	})
}

func (c cookies) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		MaxAge:   -1,
	})
}

// SessionStore manages user sessions in memory. It is used when no database
// is configured.
type SessionStore struct {
	cookies

	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewSessionStore creates a new in-memory session store.
func NewSessionStore(secure bool) *SessionStore {
	return &SessionStore{
		cookies:  cookies{secure: secure},
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create generates a new session with the given token and user info.
func (s *SessionStore) Create(_ context.Context, token *oauth2.Token, userID, userName string) (*Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	session := &Session{
		ID:        id,
		Token:     token,
		UserID:    userID,
		UserName:  userName,
		CreatedAt: s.now(),
	}

	s.mu.Lock()
	s.pruneLocked()
	s.sessions[id] = session
	s.mu.Unlock()

	return session, nil
}

// Get retrieves a session by ID. Expired sessions are not returned.
func (s *SessionStore) Get(_ context.Context, id string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok || s.expired(session) {
		return nil
	}

	// Copy so callers never race with UpdateToken
	cp := *session
	return &cp
}

// Delete removes a session by ID.
func (s *SessionStore) Delete(_ context.Context, id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// UpdateToken updates the OAuth token for a session.
func (s *SessionStore) UpdateToken(_ context.Context, id string, token *oauth2.Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[id]; ok {
		session.Token = token
	}
}

// GetFromRequest extracts the session from the request cookie.
func (s *SessionStore) GetFromRequest(r *http.Request) *Session {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil
	}
	return s.Get(r.Context(), cookie.Value)
}

func (s *SessionStore) expired(session *Session) bool {
	return s.now().Sub(session.CreatedAt) > sessionTTL
}

// pruneLocked drops expired sessions. Callers hold the write lock.
func (s *SessionStore) pruneLocked() {
	for id, session := range s.sessions {
		if s.expired(session) {
			delete(s.sessions, id)
		}
	}
}

// DBSessionStore keeps sessions in PostgreSQL so logins survive restarts.
// Storage errors are logged and treated as a missing session.
type DBSessionStore struct {
	cookies
	sessions *db.SessionRepository
}

// NewDBSessionStore creates a database-backed store. The user row must exist
// before Create is called; the callback records the login first.
func NewDBSessionStore(database *db.DB, secure bool) *DBSessionStore {
	return &DBSessionStore{cookies: cookies{secure: secure}, sessions: database.Sessions()}
}

// Create stores a new session for the user.
func (s *DBSessionStore) Create(ctx context.Context, token *oauth2.Token, userID, userName string) (*Session, error) {
	id, err := generateSessionID()
	if err != nil {
		return nil, err
	}

	row := &db.Session{ID: id, UserID: userID, UserName: userName, Token: storedToken(token)}
	if err := s.sessions.Create(ctx, row, sessionTTL); err != nil {
		return nil, err
	}
	return fromRow(row), nil
}

// Get loads an unexpired session.
func (s *DBSessionStore) Get(ctx context.Context, id string) *Session {
	row, err := s.sessions.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, db.ErrNotFound) {
			zlog.Error().Err(err).Msg("failed to load session")
		}
		return nil
	}
	return fromRow(row)
}

// Delete removes a session.
func (s *DBSessionStore) Delete(ctx context.Context, id string) {
	if err := s.sessions.Delete(ctx, id); err != nil {
		zlog.Warn().Err(err).Msg("failed to delete session")
	}
}

// UpdateToken stores a refreshed token.
func (s *DBSessionStore) UpdateToken(ctx context.Context, id string, token *oauth2.Token) {
	if err := s.sessions.UpdateToken(ctx, id, storedToken(token)); err != nil {
		zlog.Warn().Err(err).Msg("failed to store refreshed token")
	}
}

// GetFromRequest loads the session named by the request cookie.
func (s *DBSessionStore) GetFromRequest(r *http.Request) *Session {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil
	}
	return s.Get(r.Context(), cookie.Value)
}

func storedToken(t *oauth2.Token) db.SessionToken {
	return db.SessionToken{AccessToken: t.AccessToken, RefreshToken: t.RefreshToken, Expiry: t.Expiry}
}

func fromRow(row *db.Session) *Session {
	return &Session{
		ID: row.ID,
		Token: &oauth2.Token{
			AccessToken:  row.Token.AccessToken,
			RefreshToken: row.Token.RefreshToken,
			Expiry:       row.Token.Expiry,
			TokenType:    "Bearer",
		},
		UserID:    row.UserID,
		UserName:  row.UserName,
		CreatedAt: row.CreatedAt,
	}
}

// PruneExpired deletes expired sessions until ctx is done.
func (s *DBSessionStore) PruneExpired(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.sessions.DeleteExpired(ctx)
			if err != nil {
				zlog.Warn().Err(err).Msg("failed to prune sessions")
				continue
			}
			if n > 0 {
				zlog.Debug().Int64("deleted", n).Msg("pruned expired sessions")
			}
		}
	}
}

// generateSessionID creates a cryptographically random session ID.
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Ensure both stores implement SessionManager.
var (
	_ SessionManager = (*SessionStore)(nil)
	_ SessionManager = (*DBSessionStore)(nil)
)
