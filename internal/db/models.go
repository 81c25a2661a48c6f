package db

import (
	"time"

	"github.com/google/uuid"
)

// User represents a Spotify user profile.
type User struct {
	ID          string
	DisplayName string
	Email       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time // nullable
}

// SessionToken is the stored part of an OAuth token.
type SessionToken struct {
	AccessToken  string
	RefreshToken string
	Expiry       time.Time
}

// Session is a server-side web session. UserName is read from users.
type Session struct {
	ID        string
	UserID    string
	UserName  string
	Token     SessionToken
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Generation is one playlist generation run.
type Generation struct {
	ID              uuid.UUID
	UserID          string
	PlaylistID      string
	PlaylistName    string
	Strategy        string
	TrackCount      int
	CreatedPlaylist bool // false when tracks were appended to an existing playlist
	CreatedAt       time.Time
}
