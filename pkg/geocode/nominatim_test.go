package geocode

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(serverURL string) *Client {
	return NewClient(Options{
		BaseURL:           serverURL,
		UserAgent:         "GeoPogoda-Test/1.0",
		RequestsPerSecond: 1000,
		Timeout:           time.Second,
	})
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(Options{})

	assert.Equal(t, DefaultBaseURL, client.baseURL)
	assert.Equal(t, DefaultUserAgent, client.userAgent)
	assert.Equal(t, DefaultTimeout, client.httpClient.Timeout)
	assert.InDelta(t, 1.0, float64(client.limiter.Limit()), 0.0001)
}

func TestClient_Search_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "Boston MA", r.URL.Query().Get("q"))
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "GeoPogoda-Test/1.0", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"place_id":1,"display_name":"Boston, Suffolk County, Massachusetts, United States","lat":"42.3554334","lon":"-71.060511","type":"city"}]`))
	}))
	defer server.Close()

	candidates, err := newTestClient(server.URL).Search(context.Background(), "Boston MA")

	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Boston, Suffolk County, Massachusetts, United States", candidates[0].DisplayName)
	// Coordinates keep their exact text.
	assert.Equal(t, "42.3554334", candidates[0].Latitude)
	assert.Equal(t, "-71.060511", candidates[0].Longitude)
}

func TestClient_Search_NonASCIIQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Київ", r.URL.Query().Get("q"))
		_, _ = w.Write([]byte(`[{"display_name":"Київ, Україна","lat":"50.4500336","lon":"30.5241361"}]`))
	}))
	defer server.Close()

	candidates, err := newTestClient(server.URL).Search(context.Background(), "Київ")

	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, "Київ, Україна", candidates[0].DisplayName)
}

func TestClient_Search_NoResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	candidates, err := newTestClient(server.URL).Search(context.Background(), "Nowhereville")

	require.NoError(t, err)
	assert.NotNil(t, candidates)
	assert.Empty(t, candidates)
}

func TestClient_Search_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error", http.StatusInternalServerError, "", "status: 500"},
		{"forbidden", http.StatusForbidden, "", "status: 403"},
		{"invalid json", http.StatusOK, "not json", "failed to decode Nominatim response"},
		{"bad latitude", http.StatusOK, `[{"display_name":"X","lat":"north","lon":"1"}]`, "invalid latitude"},
		{"missing longitude", http.StatusOK, `[{"display_name":"X","lat":"1"}]`, "invalid longitude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			candidates, err := newTestClient(server.URL).Search(context.Background(), "Boston")

			require.Error(t, err)
			assert.Nil(t, candidates)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestClient_Search_NetworkError(t *testing.T) {
	client := newTestClient("http://127.0.0.1:1")

	candidates, err := client.Search(context.Background(), "Boston")

	assert.Error(t, err)
	assert.Nil(t, candidates)
	assert.Contains(t, err.Error(), "failed to make Nominatim request")
}

func TestClient_Search_CancelledContext(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(server.URL).Search(ctx, "Boston")

	assert.Error(t, err)
	assert.Equal(t, int32(0), hits.Load())
}

func TestClient_Search_Throttled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(Options{BaseURL: server.URL, RequestsPerSecond: 20, Timeout: time.Second})

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.Search(context.Background(), "Boston")
		require.NoError(t, err)
	}

	// Burst of one, then one request every 50ms.
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestClient_Search_CircuitBreakerOpens(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(server.URL)

	for i := 0; i < 6; i++ {
		_, err := client.Search(context.Background(), "Boston")
		require.Error(t, err)
	}

	_, err := client.Search(context.Background(), "Boston")

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(6), hits.Load())
}
