// Package lastfm provides Last.fm API integration for tag charts and artist tags.
package lastfm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/justestif/go-find-that-song/internal/music"
)

const (
	baseURL   = "https://ws.audioscrobbler.com/2.0/"
	userAgent = "find-that-song/1.0"

	maxChartLimit = 100
)

// Last.fm API error codes.
const (
	errCodeInvalidAPIKey = 10
	errCodeRateLimited   = 29
)

// Sentinel errors.
var (
	// ErrMissingAPIKey is returned when no API key is configured.
	ErrMissingAPIKey = errors.New("missing Last.fm API key")

	// ErrRateLimited is returned when the API rate limit is exceeded after retries.
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrInvalidAPIKey is returned when the API key is invalid.
	ErrInvalidAPIKey = errors.New("invalid API key")
)

var defaultRetryDelays = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// Client is a Last.fm API client with caching and retry on rate limit.
type Client struct {
	apiKey      string
	httpClient  *http.Client
	baseURL     string
	retryDelays []time.Duration

	// keys: "tagtracks:{tag}:{limit}" and "artisttags:{artist}"
	mu         sync.RWMutex
	chartCache map[string][]music.TrackRef
	tagCache   map[string][]Tag
}

// NewClient creates a Last.fm client.
func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	return &Client{
		apiKey:      apiKey,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		baseURL:     baseURL,
		retryDelays: defaultRetryDelays,
		chartCache:  make(map[string][]music.TrackRef),
		tagCache:    make(map[string][]Tag),
	}, nil
}

// TagTopTracks returns the most played tracks for a tag.
// Reference: https://www.last.fm/api/show/tag.getTopTracks
func (c *Client) TagTopTracks(ctx context.Context, tag string, limit int) ([]music.TrackRef, error) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return nil, errors.New("tag name is required")
	}
	if limit <= 0 || limit > maxChartLimit {
		limit = maxChartLimit
	}

	cacheKey := fmt.Sprintf("tagtracks:%s:%d", strings.ToLower(tag), limit)
	c.mu.RLock()
	cached, ok := c.chartCache[cacheKey]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	// Last.fm tags use spaces where seed genres use hyphens.
	params := url.Values{
		"method": {"tag.getTopTracks"},
		"tag":    {strings.ReplaceAll(tag, "-", " ")},
		"limit":  {strconv.Itoa(limit)},
	}

	var resp topTracksResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, errors.Wrapf(err, "fetching top tracks for tag %q", tag)
	}

	refs := make([]music.TrackRef, 0, len(resp.Tracks.Track))
	for _, t := range resp.Tracks.Track {
		if t.Name == "" || t.Artist.Name == "" {
			continue
		}
		refs = append(refs, music.TrackRef{Title: t.Name, Artist: t.Artist.Name})
	}

	c.mu.Lock()
	c.chartCache[cacheKey] = refs
	c.mu.Unlock()
	zlog.Debug().Str("tag", tag).Int("tracks", len(refs)).Msg("cached tag chart")

	return refs, nil
}

// ArtistTags returns the top tags for an artist. Returns an empty slice
// (not nil) if the artist has none.
func (c *Client) ArtistTags(ctx context.Context, artist string) ([]Tag, error) {
	cacheKey := "artisttags:" + strings.ToLower(artist)
	c.mu.RLock()
	cached, ok := c.tagCache[cacheKey]
	c.mu.RUnlock()
	if ok {
		return cached, nil
	}

	params := url.Values{
		"method":      {"artist.getTopTags"},
		"artist":      {artist},
		"autocorrect": {"1"},
	}

	var resp artistTagsResponse
	if err := c.get(ctx, params, &resp); err != nil {
		return nil, errors.Wrapf(err, "fetching tags for artist %q", artist)
	}

	tags := resp.TopTags.Tag
	if tags == nil {
		tags = []Tag{}
	}

	c.mu.Lock()
	c.tagCache[cacheKey] = tags
	c.mu.Unlock()

	return tags, nil
}

// get performs a request and decodes the body into out.
func (c *Client) get(ctx context.Context, params url.Values, out any) error {
	params.Set("api_key", c.apiKey)
	params.Set("format", "json")

	body, err := c.doRequest(ctx, c.baseURL+"?"+params.Encode())
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "parsing response")
	}
	return nil
}

// doRequest performs an HTTP GET request, retrying with backoff while the
// API reports a rate limit.
func (c *Client) doRequest(ctx context.Context, reqURL string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= len(c.retryDelays); attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelays[attempt-1]):
			}
		}

		body, err := c.doSingleRequest(ctx, reqURL)
		if err == nil {
			return body, nil
		}
		if !errors.Is(err, ErrRateLimited) {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

func (c *Client) doSingleRequest(ctx context.Context, reqURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "executing request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "reading response body")
	}

	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error != 0 {
		switch apiErr.Error {
		case errCodeRateLimited:
			return nil, ErrRateLimited
		case errCodeInvalidAPIKey:
			return nil, ErrInvalidAPIKey
		default:
			return nil, errors.Newf("API error %d: %s", apiErr.Error, apiErr.Message)
		}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("unexpected status %d", resp.StatusCode)
	}

	return body, nil
}
