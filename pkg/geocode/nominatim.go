// Package geocode resolves free-text place names to coordinates through the
// Nominatim search API.
package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://nominatim.openstreetmap.org"
	DefaultUserAgent = "GeoPogoda-Weather-Bot/1.0"
	DefaultTimeout   = 10 * time.Second
)

// ErrCircuitOpen is returned while the breaker rejects calls after repeated failures.
var ErrCircuitOpen = errors.New("geocoder circuit open")

// Candidate is one search hit. Coordinates keep the exact decimal text
// Nominatim returned.
type Candidate struct {
	DisplayName string `json:"display_name"`
	Latitude    string `json:"lat"`
	Longitude   string `json:"lon"`
}

// Options configures a Client. Zero values select the defaults.
type Options struct {
	BaseURL           string
	UserAgent         string
	RequestsPerSecond float64
	Timeout           time.Duration
}

// Client is a Nominatim search client. It is safe for concurrent use and
// never sends more than the configured number of requests per second.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	return &Client{
		baseURL:   opts.BaseURL,
		userAgent: opts.UserAgent,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1),
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "nominatim",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
		}),
	}
}

// Search returns at most one candidate for query. No match is an empty slice
// and a nil error.
func (c *Client) Search(ctx context.Context, query string) ([]Candidate, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("geocoder rate limit wait: %w", err)
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.search(ctx, query)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	if err != nil {
		return nil, err
	}
	return result.([]Candidate), nil
}

func (c *Client) search(ctx context.Context, query string) ([]Candidate, error) {
	values := url.Values{}
	values.Set("q", query)
	values.Set("format", "jsonv2")
	values.Set("limit", "1")

	requestURL := fmt.Sprintf("%s/search?%s", c.baseURL, values.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create Nominatim request: %w", err)
	}

	// Nominatim usage policy requires an identifying User-Agent.
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req) // nosec G704
	if err != nil {
		return nil, fmt.Errorf("failed to make Nominatim request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Nominatim API request failed with status: %d", resp.StatusCode)
	}

	var candidates []Candidate
	if err := json.NewDecoder(resp.Body).Decode(&candidates); err != nil {
		return nil, fmt.Errorf("failed to decode Nominatim response: %w", err)
	}

	for _, cand := range candidates {
		if _, err := strconv.ParseFloat(cand.Latitude, 64); err != nil {
			return nil, fmt.Errorf("invalid latitude from Nominatim: %q", cand.Latitude)
		}
		if _, err := strconv.ParseFloat(cand.Longitude, 64); err != nil {
			return nil, fmt.Errorf("invalid longitude from Nominatim: %q", cand.Longitude)
		}
	}

	if candidates == nil {
		candidates = []Candidate{}
	}
	return candidates, nil
}
