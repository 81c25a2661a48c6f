// Package playlist builds a playlist from a listener's choices and writes it
// to their Spotify account.
package playlist

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/justestif/go-find-that-song/internal/music"
	"github.com/justestif/go-find-that-song/internal/recommend"
)

// DefaultDescription is used when the request carries none.
const DefaultDescription = "Created with Find That Song"

// ErrNoTracks is returned when no strategy produced any track.
var ErrNoTracks = errors.New("no tracks found for the selected seeds")

// SeedType selects where recommendation seeds come from.
type SeedType string

// Supported seed types.
const (
	SeedGenres     SeedType = "genres"
	SeedTopTracks  SeedType = "top_tracks"
	SeedTopArtists SeedType = "top_artists"
)

// ParseSeedType returns the matching type or SeedGenres.
func ParseSeedType(s string) SeedType {
	switch SeedType(s) {
	case SeedTopTracks, SeedTopArtists:
		return SeedType(s)
	}
	return SeedGenres
}

// Catalog is the per-user Spotify surface needed to generate a playlist.
type Catalog interface {
	recommend.Catalog
	TopArtists(ctx context.Context, r music.TimeRange, limit int) ([]music.Artist, error)
	FindPlaylistByName(ctx context.Context, name string) (*music.PlaylistTarget, error)
	PlaylistTrackURIs(ctx context.Context, playlistID string) (map[string]struct{}, error)
	CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*music.PlaylistTarget, error)
	AddTracksToPlaylist(ctx context.Context, playlistID string, uris []string) error
}

// Request describes a playlist to generate.
type Request struct {
	UserID      string
	Name        string
	Description string
	SeedType    SeedType
	Genres      []string
	TimeRange   music.TimeRange
	Count       int
	Public      bool
}

// Outcome reports what Generate did.
type Outcome struct {
	Playlist music.PlaylistTarget
	Tracks   []music.Track // tracks added, empty when NoNewTracks
	Strategy string
	Created  bool // a new playlist was created

	// NoNewTracks is set when every candidate was already in the playlist.
	NoNewTracks bool
}

// Record is a completed generation.
type Record struct {
	UserID          string
	PlaylistID      string
	PlaylistName    string
	Strategy        string
	TrackCount      int
	CreatedPlaylist bool
}

// Recorder stores completed generations.
type Recorder interface {
	RecordGeneration(ctx context.Context, rec Record) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, rec Record) error

// RecordGeneration calls f.
func (f RecorderFunc) RecordGeneration(ctx context.Context, rec Record) error {
	return f(ctx, rec)
}

// Service generates playlists.
type Service struct {
	resolver *recommend.Resolver
	recorder Recorder
}

// NewService creates a Service. recorder may be nil.
func NewService(resolver *recommend.Resolver, recorder Recorder) *Service {
	if resolver == nil {
		resolver = recommend.New()
	}
	return &Service{resolver: resolver, recorder: recorder}
}

// Generate resolves tracks for req and writes them to the named playlist,
// creating it when the user has none by that name. Nothing is written unless
// tracks were found.
func (s *Service) Generate(ctx context.Context, cat Catalog, req Request) (*Outcome, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, errors.New("playlist name is required")
	}
	if req.Description == "" {
		req.Description = DefaultDescription
	}

	spec := s.seeds(ctx, cat, req)
	result := s.resolver.Resolve(ctx, cat, spec)
	if result.Empty() {
		return nil, ErrNoTracks
	}

	zlog.Info().
		Str("strategy", result.Strategy).
		Int("tracks", len(result.Tracks)).
		Str("seed_type", string(req.SeedType)).
		Msg("resolved playlist tracks")

	outcome := &Outcome{Strategy: result.Strategy}

	existing, err := cat.FindPlaylistByName(ctx, req.Name)
	if err != nil {
		return nil, errors.Wrap(err, "find playlist")
	}

	if existing != nil {
		uris, err := cat.PlaylistTrackURIs(ctx, existing.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "read tracks of playlist %s", existing.ID)
		}
		existing.Existing = uris
		outcome.Playlist = *existing

		result.Tracks = recommend.ExcludeExisting(result.Tracks, *existing)
		if len(result.Tracks) == 0 {
			outcome.NoNewTracks = true
			zlog.Info().Str("playlist", existing.ID).Msg("all tracks already in playlist")
			return outcome, nil
		}
	} else {
		created, err := cat.CreatePlaylist(ctx, req.UserID, req.Name, req.Description, req.Public)
		if err != nil {
			return nil, errors.Wrap(err, "create playlist")
		}
		outcome.Playlist = *created
		outcome.Created = true
	}

	if err := cat.AddTracksToPlaylist(ctx, outcome.Playlist.ID, result.URIs()); err != nil {
		return nil, errors.Wrapf(err, "add tracks to playlist %s", outcome.Playlist.ID)
	}
	outcome.Tracks = result.Tracks

	s.record(ctx, req, outcome)
	return outcome, nil
}

// seeds builds the SeedSpec for req. When top items cannot be loaded the
// request's genres are used instead.
func (s *Service) seeds(ctx context.Context, cat Catalog, req Request) music.SeedSpec {
	switch req.SeedType {
	case SeedTopTracks:
		tracks, err := cat.TopTracks(ctx, req.TimeRange, music.MaxSeedsPerList)
		if err == nil && len(tracks) > 0 {
			ids := make([]string, 0, len(tracks))
			for _, t := range tracks {
				ids = append(ids, t.ID)
			}
			return music.NewSeedSpec(nil, nil, ids, req.Count)
		}
		zlog.Warn().Err(err).Msg("top tracks unavailable, using genre seeds")

	case SeedTopArtists:
		artists, err := cat.TopArtists(ctx, req.TimeRange, music.MaxSeedsPerList)
		if err == nil && len(artists) > 0 {
			ids := make([]string, 0, len(artists))
			for _, a := range artists {
				ids = append(ids, a.ID)
			}
			return music.NewSeedSpec(nil, ids, nil, req.Count)
		}
		zlog.Warn().Err(err).Msg("top artists unavailable, using genre seeds")
	}

	return music.NewSeedSpec(req.Genres, nil, nil, req.Count)
}

// record stores the generation. Failures are logged only.
func (s *Service) record(ctx context.Context, req Request, outcome *Outcome) {
	if s.recorder == nil {
		return
	}
	err := s.recorder.RecordGeneration(ctx, Record{
		UserID:          req.UserID,
		PlaylistID:      outcome.Playlist.ID,
		PlaylistName:    outcome.Playlist.Name,
		Strategy:        outcome.Strategy,
		TrackCount:      len(outcome.Tracks),
		CreatedPlaylist: outcome.Created,
	})
	if err != nil {
		zlog.Warn().Err(err).Str("playlist", outcome.Playlist.ID).Msg("failed to record generation")
	}
}
