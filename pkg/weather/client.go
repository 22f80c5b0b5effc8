package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sony/gobreaker"
)

const (
	DefaultBaseURL = "https://api.openweathermap.org"
	DefaultTimeout = 10 * time.Second
)

// ErrCircuitOpen is returned while the breaker rejects calls after repeated failures.
var ErrCircuitOpen = errors.New("weather api circuit open")

// Client represents an OpenWeatherMap current-conditions client
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// Conditions is a single current-weather reading. Temperature is in Fahrenheit.
type Conditions struct {
	Temperature float64   `json:"temperature"`
	Summary     string    `json:"summary"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewClient creates a new weather API client. Empty baseURL and zero timeout
// fall back to DefaultBaseURL and DefaultTimeout.
func NewClient(apiKey, baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "openweathermap",
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     30 * time.Second,
		}),
	}
}

// GetCurrentConditions retrieves current weather for the given coordinates.
// Coordinates are passed through verbatim as decimal strings.
func (c *Client) GetCurrentConditions(ctx context.Context, lat, lon string) (*Conditions, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.fetchCurrent(ctx, lat, lon)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
	}
	if err != nil {
		return nil, err
	}
	return result.(*Conditions), nil
}

func (c *Client) fetchCurrent(ctx context.Context, lat, lon string) (*Conditions, error) {
	values := url.Values{}
	values.Set("lat", lat)
	values.Set("lon", lon)
	values.Set("appid", c.apiKey)
	values.Set("units", "imperial")

	requestURL := fmt.Sprintf("%s/data/2.5/weather?%s", c.baseURL, values.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req) // nosec G704
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status: %d", resp.StatusCode)
	}

	var apiResponse struct {
		Dt   int64 `json:"dt"`
		Main *struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
		} `json:"weather"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResponse); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if apiResponse.Main == nil {
		return nil, errors.New("response has no temperature")
	}

	conditions := &Conditions{
		Temperature: apiResponse.Main.Temp,
		Timestamp:   time.Now(),
	}
	if apiResponse.Dt > 0 {
		conditions.Timestamp = time.Unix(apiResponse.Dt, 0).UTC()
	}
	if len(apiResponse.Weather) > 0 {
		conditions.Summary = apiResponse.Weather[0].Description
	}

	return conditions, nil
}
