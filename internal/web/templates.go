package web

import (
	"fmt"
	"html/template"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/justestif/go-find-that-song/internal/db"
	"github.com/justestif/go-find-that-song/internal/music"
	"github.com/justestif/go-find-that-song/internal/playlist"
)

// Templates manages HTML template rendering.
type Templates struct {
	templates map[string]*template.Template
	partials  map[string]*template.Template
	funcs     template.FuncMap
}

// NewTemplates creates a new template manager by loading templates from the given filesystem.
func NewTemplates(templatesFS fs.FS) (*Templates, error) {
	t := &Templates{
		templates: make(map[string]*template.Template),
		partials:  make(map[string]*template.Template),
		funcs:     defaultFuncs(),
	}

	if err := t.load(templatesFS); err != nil {
		return nil, err
	}

	return t, nil
}

// Render renders a page template with the given data.
func (t *Templates) Render(w io.Writer, page string, data any) error {
	tmpl, ok := t.templates[page]
	if !ok {
		return errors.Newf("template %q not found", page)
	}

	// Execute the "base" template which includes the page content
	return tmpl.ExecuteTemplate(w, "base", data)
}

// RenderPartial renders a partial template (without base layout) with the given data.
// Partials define a template named after their file.
func (t *Templates) RenderPartial(w io.Writer, partial string, data any) error {
	tmpl, ok := t.partials[partial]
	if !ok {
		return errors.Newf("partial %q not found", partial)
	}
	return tmpl.ExecuteTemplate(w, partial, data)
}

// load parses all templates from the filesystem.
func (t *Templates) load(templatesFS fs.FS) error {
	layouts, err := fs.Glob(templatesFS, "layouts/*.html")
	if err != nil {
		return errors.Wrap(err, "finding layouts")
	}

	partials, err := fs.Glob(templatesFS, "partials/*.html")
	if err != nil {
		return errors.Wrap(err, "finding partials")
	}

	pages, err := fs.Glob(templatesFS, "pages/*.html")
	if err != nil {
		return errors.Wrap(err, "finding pages")
	}
	if len(pages) == 0 {
		return errors.New("no page templates found")
	}

	// Common files to include with every page
	commonFiles := append(layouts, partials...)

	for _, page := range pages {
		name := strings.TrimSuffix(path.Base(page), ".html")
		files := append([]string{page}, commonFiles...)

		tmpl, err := template.New(name).Funcs(t.funcs).ParseFS(templatesFS, files...)
		if err != nil {
			return errors.Wrapf(err, "parsing template %s", name)
		}
		t.templates[name] = tmpl
	}

	// Partials double as standalone templates for htmx fragments
	for _, partial := range partials {
		name := strings.TrimSuffix(path.Base(partial), ".html")

		tmpl, err := template.New(name).Funcs(t.funcs).ParseFS(templatesFS, partials...)
		if err != nil {
			return errors.Wrapf(err, "parsing partial %s", name)
		}
		t.partials[name] = tmpl
	}

	return nil
}

// defaultFuncs returns the default template functions.
func defaultFuncs() template.FuncMap {
	return template.FuncMap{
		// formatDate formats a time as "Jan 2, 2006"
		"formatDate": func(t time.Time) string {
			return t.Format("Jan 2, 2006")
		},

		"formatDateTime": func(t time.Time) string {
			return t.Local().Format("Jan 2, 15:04")
		},

		"formatTime": func(t time.Time) string {
			return t.UTC().Format(time.RFC3339)
		},

		// formatDuration formats a track length as "m:ss"
		"formatDuration": formatDuration,

		"join": strings.Join,

		// add adds two integers (for 1-based indexing in loops)
		"add": func(a, b int) int {
			return a + b
		},
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// PageData contains common data passed to all page templates.
type PageData struct {
	Title       string
	User        *UserData
	Flash       *FlashMessage
	CurrentPath string
}

// UserData contains authenticated user information.
type UserData struct {
	ID   string
	Name string
}

// FlashMessage represents a temporary notification message.
type FlashMessage struct {
	Type    string // "success", "error", "warning", "info"
	Message string
}

// HomePageData contains data for the home page template.
type HomePageData struct {
	PageData
	Authenticated bool
}

// RangeOption is one selectable time range.
type RangeOption struct {
	Value    string
	Label    string
	Selected bool
}

func rangeOptions(selected music.TimeRange) []RangeOption {
	ranges := music.TimeRanges()
	opts := make([]RangeOption, len(ranges))
	for i, r := range ranges {
		opts[i] = RangeOption{Value: string(r), Label: r.Label(), Selected: r == selected}
	}
	return opts
}

// PlayedPageData contains data for the recently played page.
type PlayedPageData struct {
	PageData
	Tracks []music.PlayedTrack
}

// TracksPageData contains data for the top tracks page.
type TracksPageData struct {
	PageData
	Range  music.TimeRange
	Ranges []RangeOption
	Tracks []music.Track
}

// ArtistsPageData contains data for the top artists page.
type ArtistsPageData struct {
	PageData
	Range   music.TimeRange
	Ranges  []RangeOption
	Artists []music.Artist
}

// AlbumsPageData contains data for the top albums page.
type AlbumsPageData struct {
	PageData
	Range  music.TimeRange
	Ranges []RangeOption
	Albums []music.AlbumSummary
}

// GenreOption is a selectable genre on the generate form.
type GenreOption struct {
	Name      string
	Suggested bool
}

// GeneratePageData contains data for the playlist form.
type GeneratePageData struct {
	PageData
	Genres       []GenreOption
	Suggestions  []string
	MaxGenres    int
	Ranges       []RangeOption
	DefaultCount int
	MinCount     int
	MaxCount     int
	History      []db.Generation
}

// CreatedPageData contains data for the generation result page.
type CreatedPageData struct {
	PageData
	Outcome *playlist.Outcome
}

// ErrorPageData contains data for the error page.
type ErrorPageData struct {
	PageData
	Status  int
	Message string
}
