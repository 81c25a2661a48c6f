package web

import (
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/justestif/go-find-that-song/internal/music"
	"github.com/justestif/go-find-that-song/internal/playlist"
	"github.com/justestif/go-find-that-song/internal/recommend"
)

const historyLimit = 5

var validate = validator.New(validator.WithRequiredStructEnabled())

// createForm is the POST /create-playlist body.
type createForm struct {
	Name        string   `form:"playlist_name" validate:"required,max=100"`
	Description string   `form:"playlist_description" validate:"max=300"`
	SeedType    string   `form:"seed_type" validate:"omitempty,oneof=genres top_tracks top_artists"`
	Genres      []string `form:"genres" validate:"max=20,dive,required,max=50"`
	TimeRange   string   `form:"time_range" validate:"omitempty,oneof=short_term medium_term long_term"`
	TrackCount  int      `form:"track_count" validate:"gte=0"`
	Public      bool     `form:"public"`
}

// fieldMessages are shown when a form field fails validation.
var fieldMessages = map[string]string{
	"Name":        "Please give the playlist a name of at most 100 characters.",
	"Description": "The description can be at most 300 characters.",
	"SeedType":    "Choose genres, top tracks or top artists as the source.",
	"Genres":      "Pick up to 20 genres.",
	"TimeRange":   "Choose a valid time range.",
	"TrackCount":  "The number of tracks must be a positive number.",
}

// decodeCreateForm decodes and validates the submitted form. Single valued
// fields take their first value; genres keep every value.
func decodeCreateForm(values url.Values) (createForm, error) {
	input := make(map[string]any, len(values))
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		if key == "genres" {
			input[key] = vals
			continue
		}
		input[key] = strings.TrimSpace(vals[0])
	}

	var form createForm
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "form",
		WeaklyTypedInput: true,
		Result:           &form,
	})
	if err != nil {
		return form, err
	}
	if err := decoder.Decode(input); err != nil {
		return form, formError{message: "Some of the form values could not be read."}
	}

	if err := validate.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			if msg, ok := fieldMessages[verrs[0].Field()]; ok {
				return form, formError{message: msg}
			}
		}
		return form, formError{message: "The form is invalid."}
	}
	return form, nil
}

// formError is a user facing validation failure.
type formError struct {
	message string
}

func (e formError) Error() string { return e.message }

// request converts the form into a generation request.
func (f createForm) request(userID string, defaultCount int) playlist.Request {
	count := f.TrackCount
	if count == 0 {
		count = defaultCount
	}
	return playlist.Request{
		UserID:      userID,
		Name:        f.Name,
		Description: f.Description,
		SeedType:    playlist.ParseSeedType(f.SeedType),
		Genres:      f.Genres,
		TimeRange:   music.ParseTimeRange(f.TimeRange),
		Count:       music.ClampCount(count),
		Public:      f.Public,
	}
}

// GeneratePlaylist shows the playlist form (GET /generate-playlist).
func (h *Handlers) GeneratePlaylist(w http.ResponseWriter, r *http.Request) {
	cat, session := h.catalog(r)
	defer h.persistToken(r.Context(), session, cat)
	ctx := r.Context()

	var suggestions []string
	if h.suggester != nil {
		artists, err := cat.TopArtists(ctx, music.MediumTerm, listLimit)
		if err != nil {
			zlog.Warn().Err(err).Msg("top artists unavailable for genre suggestions")
		} else {
			suggestions = h.suggester.Suggest(ctx, artists)
		}
	}

	data := GeneratePageData{
		PageData:     h.page(r, session, "Generate playlist"),
		Genres:       genreOptions(suggestions),
		Suggestions:  suggestions,
		MaxGenres:    music.MaxSeedsPerList,
		Ranges:       rangeOptions(music.MediumTerm),
		DefaultCount: h.defaultTrackCount,
		MinCount:     music.MinTrackCount,
		MaxCount:     music.MaxTrackCount,
	}

	if h.history != nil {
		history, err := h.history.RecentGenerations(ctx, session.UserID, historyLimit)
		if err != nil {
			zlog.Warn().Err(err).Msg("failed to load generation history")
		}
		data.History = history
	}

	h.render(w, http.StatusOK, "generate-playlist", data)
}

// ForgetHistory deletes the user's generation history
// (POST /generate-playlist/history/delete).
func (h *Handlers) ForgetHistory(w http.ResponseWriter, r *http.Request) {
	session := sessionFrom(r.Context())
	if h.history != nil {
		n, err := h.history.ForgetGenerations(r.Context(), session.UserID)
		if err != nil {
			h.fail(w, r, errors.Wrap(err, "forgetting history"))
			return
		}
		zlog.Info().Str("user", session.UserID).Int64("deleted", n).Msg("generation history cleared")
	}

	if isHTMX(r) {
		w.Header().Set("HX-Redirect", "/generate-playlist")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/generate-playlist", http.StatusSeeOther)
}

// genreOptions lists the form genres with suggestions checked. Suggestions
// outside the form list are appended.
func genreOptions(suggestions []string) []GenreOption {
	opts := make([]GenreOption, 0, len(recommend.FormGenres)+len(suggestions))
	for _, g := range recommend.FormGenres {
		opts = append(opts, GenreOption{Name: g, Suggested: slices.Contains(suggestions, g)})
	}
	for _, g := range suggestions {
		if !slices.Contains(recommend.FormGenres, g) {
			opts = append(opts, GenreOption{Name: g, Suggested: true})
		}
	}
	return opts
}

// CreatePlaylist generates a playlist from the form (POST /create-playlist).
func (h *Handlers) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.renderError(w, r, http.StatusBadRequest, "The form could not be read.")
		return
	}

	form, err := decodeCreateForm(r.PostForm)
	if err != nil {
		h.renderError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	cat, session := h.catalog(r)
	defer h.persistToken(r.Context(), session, cat)

	req := form.request(session.UserID, h.defaultTrackCount)
	outcome, err := h.generator.Generate(r.Context(), cat, req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	zlog.Info().
		Str("user", session.UserID).
		Str("playlist", outcome.Playlist.ID).
		Int("added", len(outcome.Tracks)).
		Bool("created", outcome.Created).
		Msg("playlist generated")

	title := fmt.Sprintf("Playlist %s", outcome.Playlist.Name)
	h.render(w, http.StatusOK, "playlist-created", CreatedPageData{
		PageData: h.page(r, session, title),
		Outcome:  outcome,
	})
}
