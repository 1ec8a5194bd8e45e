// Package tmdb fetches season and episode lists from the TMDB v3 API.
package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"vidframe/internal/httputil"
	"vidframe/internal/log"
	"vidframe/internal/media"
)

const (
	// DefaultBaseURL is the public TMDB v3 endpoint.
	DefaultBaseURL = "https://api.themoviedb.org/3"

	defaultRate  = 40
	defaultBurst = 40
)

// ErrNotFound is returned when TMDB has no such title or season.
var ErrNotFound = errors.New("tmdb: not found")

// Options configures a Client. Zero values pick defaults.
type Options struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	RateLimit  rate.Limit
	Burst      int
}

// Client talks to TMDB. It is safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// New creates a client.
func New(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = httputil.NewClient()
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = defaultRate
	}
	if opts.Burst <= 0 {
		opts.Burst = defaultBurst
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		http:    opts.HTTPClient,
		limiter: rate.NewLimiter(opts.RateLimit, opts.Burst),
		logger:  log.WithComponent("tmdb"),
	}
}

type seriesResponse struct {
	Name    string         `json:"name"`
	Seasons []media.Season `json:"seasons"`
}

type seasonResponse struct {
	Episodes []media.Episode `json:"episodes"`
}

type movieResponse struct {
	Title string `json:"title"`
}

// Seasons returns the season list of a series, in TMDB order.
func (c *Client) Seasons(ctx context.Context, seriesID string) ([]media.Season, error) {
	if err := httputil.ValidateNumericID(seriesID); err != nil {
		return nil, err
	}
	var res seriesResponse
	if err := c.get(ctx, &res, "tv", seriesID); err != nil {
		return nil, err
	}
	return res.Seasons, nil
}

// Episodes returns the episode list of one season.
func (c *Client) Episodes(ctx context.Context, seriesID, season string) ([]media.Episode, error) {
	if err := httputil.ValidateNumericID(seriesID); err != nil {
		return nil, err
	}
	if err := httputil.ValidateNumericID(season); err != nil {
		return nil, err
	}
	var res seasonResponse
	if err := c.get(ctx, &res, "tv", seriesID, "season", season); err != nil {
		return nil, err
	}
	return res.Episodes, nil
}

// Title returns the display title of a movie or series.
func (c *Client) Title(ctx context.Context, kind media.Kind, id string) (string, error) {
	if err := httputil.ValidateNumericID(id); err != nil {
		return "", err
	}
	if kind == media.Series {
		var res seriesResponse
		if err := c.get(ctx, &res, "tv", id); err != nil {
			return "", err
		}
		return httputil.SanitizeText(res.Name), nil
	}
	var res movieResponse
	if err := c.get(ctx, &res, "movie", id); err != nil {
		return "", err
	}
	return httputil.SanitizeText(res.Title), nil
}

// get waits for the limiter, fetches base/segments and decodes into v.
// A v4 read token (a JWT) is sent as a bearer header, a v3 key as api_key.
func (c *Client) get(ctx context.Context, v any, segments ...string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := httputil.BuildURL(c.baseURL, segments...)
	headers := map[string]string{}
	if c.apiKey != "" {
		if strings.Count(c.apiKey, ".") == 2 {
			headers["Authorization"] = "Bearer " + c.apiKey
		} else {
			u += "?" + url.Values{"api_key": {c.apiKey}}.Encode()
		}
	}

	body, err := httputil.GetJSON(ctx, c.http, u, headers)
	if err != nil {
		var se *httputil.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return fmt.Errorf("%w: %s", ErrNotFound, strings.Join(segments, "/"))
		}
		return fmt.Errorf("tmdb %s: %w", strings.Join(segments, "/"), err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding tmdb %s: %w", strings.Join(segments, "/"), err)
	}
	c.logger.Debug().Str("path", strings.Join(segments, "/")).Msg("fetched")
	return nil
}
