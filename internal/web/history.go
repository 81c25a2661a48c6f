package web

import (
	"context"

	"github.com/justestif/go-find-that-song/internal/db"
	"github.com/justestif/go-find-that-song/internal/music"
	"github.com/justestif/go-find-that-song/internal/playlist"
)

// History persists logins and playlist generations.
type History interface {
	playlist.Recorder
	RecordLogin(ctx context.Context, user music.User) error
	RecentGenerations(ctx context.Context, userID string, limit int) ([]db.Generation, error)
	// ForgetGenerations deletes the user's generation history.
	ForgetGenerations(ctx context.Context, userID string) (int64, error)
}

// dbHistory stores history in PostgreSQL.
type dbHistory struct {
	database *db.DB
}

// NewDBHistory returns a History backed by database.
func NewDBHistory(database *db.DB) History {
	return &dbHistory{database: database}
}

func (h *dbHistory) RecordLogin(ctx context.Context, user music.User) error {
	return h.database.Users().RecordLogin(ctx, &db.User{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
	})
}

func (h *dbHistory) RecordGeneration(ctx context.Context, rec playlist.Record) error {
	return h.database.Generations().Create(ctx, &db.Generation{
		UserID:          rec.UserID,
		PlaylistID:      rec.PlaylistID,
		PlaylistName:    rec.PlaylistName,
		Strategy:        rec.Strategy,
		TrackCount:      rec.TrackCount,
		CreatedPlaylist: rec.CreatedPlaylist,
	})
}

func (h *dbHistory) RecentGenerations(ctx context.Context, userID string, limit int) ([]db.Generation, error) {
	return h.database.Generations().ListRecent(ctx, userID, limit)
}

func (h *dbHistory) ForgetGenerations(ctx context.Context, userID string) (int64, error) {
	return h.database.Generations().DeleteForUser(ctx, userID)
}
