package web

import (
	"net/http"

	"github.com/justestif/go-find-that-song/internal/music"
)

// listLimit is the number of items shown on each listening view.
const listLimit = 50

// RecentlyPlayed shows the listening history (GET /recently-played).
func (h *Handlers) RecentlyPlayed(w http.ResponseWriter, r *http.Request) {
	cat, session := h.catalog(r)
	defer h.persistToken(r.Context(), session, cat)

	tracks, err := cat.RecentlyPlayed(r.Context(), listLimit)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.renderView(w, r, "recently-played", "played-list", PlayedPageData{
		PageData: h.page(r, session, "Recently played"),
		Tracks:   tracks,
	})
}

// TopTracks shows the user's top tracks (GET /top-tracks?time_range=).
func (h *Handlers) TopTracks(w http.ResponseWriter, r *http.Request) {
	cat, session := h.catalog(r)
	defer h.persistToken(r.Context(), session, cat)

	tr := music.ParseTimeRange(r.URL.Query().Get("time_range"))
	tracks, err := cat.TopTracks(r.Context(), tr, listLimit)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.renderView(w, r, "top-tracks", "track-list", TracksPageData{
		PageData: h.page(r, session, "Top tracks"),
		Range:    tr,
		Ranges:   rangeOptions(tr),
		Tracks:   tracks,
	})
}

// TopArtists shows the user's top artists (GET /top-artists?time_range=).
func (h *Handlers) TopArtists(w http.ResponseWriter, r *http.Request) {
	cat, session := h.catalog(r)
	defer h.persistToken(r.Context(), session, cat)

	tr := music.ParseTimeRange(r.URL.Query().Get("time_range"))
	artists, err := cat.TopArtists(r.Context(), tr, listLimit)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.renderView(w, r, "top-artists", "artist-list", ArtistsPageData{
		PageData: h.page(r, session, "Top artists"),
		Range:    tr,
		Ranges:   rangeOptions(tr),
		Artists:  artists,
	})
}

// TopAlbums ranks albums by how many of the user's top tracks they hold
// (GET /top-albums?time_range=).
func (h *Handlers) TopAlbums(w http.ResponseWriter, r *http.Request) {
	cat, session := h.catalog(r)
	defer h.persistToken(r.Context(), session, cat)

	tr := music.ParseTimeRange(r.URL.Query().Get("time_range"))
	tracks, err := cat.TopTracks(r.Context(), tr, listLimit)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.renderView(w, r, "top-albums", "album-list", AlbumsPageData{
		PageData: h.page(r, session, "Top albums"),
		Range:    tr,
		Ranges:   rangeOptions(tr),
		Albums:   music.TopAlbums(tracks),
	})
}
