package db

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// GenerationRepository stores playlist generation history.
type GenerationRepository struct {
	pool *pgxpool.Pool
}

// Create inserts a generation, assigning an ID when it has none.
func (r *GenerationRepository) Create(ctx context.Context, g *Generation) error {
	query := `
		INSERT INTO generations (id, user_id, playlist_id, playlist_name, strategy, track_count, created_playlist, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING created_at
	`
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	err := r.pool.QueryRow(ctx, query,
		g.ID,
		g.UserID,
		g.PlaylistID,
		g.PlaylistName,
		g.Strategy,
		g.TrackCount,
		g.CreatedPlaylist,
	).Scan(&g.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "inserting generation")
	}
	return nil
}

// ListRecent returns a user's latest generations, newest first.
func (r *GenerationRepository) ListRecent(ctx context.Context, userID string, limit int) ([]Generation, error) {
	query := `
		SELECT id, user_id, playlist_id, playlist_name, strategy, track_count, created_playlist, created_at
		FROM generations
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying generations")
	}

	generations, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Generation, error) {
		var g Generation
		err := row.Scan(
			&g.ID,
			&g.UserID,
			&g.PlaylistID,
			&g.PlaylistName,
			&g.Strategy,
			&g.TrackCount,
			&g.CreatedPlaylist,
			&g.CreatedAt,
		)
		return g, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "scanning generations")
	}
	return generations, nil
}

// DeleteForUser removes a user's history.
func (r *GenerationRepository) DeleteForUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.pool.Exec(ctx, `DELETE FROM generations WHERE user_id = $1`, userID)
	if err != nil {
		return 0, errors.Wrap(err, "deleting generations")
	}
	return result.RowsAffected(), nil
}
