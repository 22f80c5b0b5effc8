package weather

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/geopogoda/tests/fixtures"
)

func TestNewClient(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		client := NewClient("test_api_key", "", 0)

		assert.NotNil(t, client)
		assert.Equal(t, "test_api_key", client.apiKey)
		assert.Equal(t, DefaultBaseURL, client.baseURL)
		assert.Equal(t, DefaultTimeout, client.httpClient.Timeout)
		assert.NotNil(t, client.breaker)
	})

	t.Run("custom", func(t *testing.T) {
		client := NewClient("k", "http://example.test", 3*time.Second)

		assert.Equal(t, "http://example.test", client.baseURL)
		assert.Equal(t, 3*time.Second, client.httpClient.Timeout)
	})
}

func TestClient_GetCurrentConditions_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/data/2.5/weather", r.URL.Path)
		assert.Equal(t, "42.3554334", r.URL.Query().Get("lat"))
		assert.Equal(t, "-71.060511", r.URL.Query().Get("lon"))
		assert.Equal(t, "test_key", r.URL.Query().Get("appid"))
		assert.Equal(t, "imperial", r.URL.Query().Get("units"))

		response := map[string]interface{}{
			"dt": 1700000000,
			"main": map[string]interface{}{
				"temp":     46.44,
				"humidity": 65,
			},
			"weather": []map[string]interface{}{
				{"main": "Clouds", "description": "partly cloudy", "icon": "03d"},
				{"main": "Mist", "description": "mist", "icon": "50d"},
			},
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	client := NewClient("test_key", server.URL, time.Second)

	conditions, err := client.GetCurrentConditions(context.Background(), "42.3554334", "-71.060511")

	require.NoError(t, err)
	require.NotNil(t, conditions)
	assert.Equal(t, 46.44, conditions.Temperature)
	assert.Equal(t, "partly cloudy", conditions.Summary)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), conditions.Timestamp)
}

func TestClient_GetCurrentConditions_NoWeatherData(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"main":{"temp":15.5},"weather":[]}`))
	}))
	defer server.Close()

	client := NewClient("test_key", server.URL, time.Second)

	conditions, err := client.GetCurrentConditions(context.Background(), "1", "2")

	require.NoError(t, err)
	assert.Equal(t, 15.5, conditions.Temperature)
	assert.Empty(t, conditions.Summary)
	assert.False(t, conditions.Timestamp.IsZero())
}

func TestClient_GetCurrentConditions_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient("bad_key", server.URL, time.Second)

	conditions, err := client.GetCurrentConditions(context.Background(), "1", "2")

	assert.Error(t, err)
	assert.Nil(t, conditions)
	assert.Contains(t, err.Error(), "API request failed with status: 401")
}

func TestClient_GetCurrentConditions_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(fixtures.GetInvalidJSONResponse()))
	}))
	defer server.Close()

	client := NewClient("test_key", server.URL, time.Second)

	conditions, err := client.GetCurrentConditions(context.Background(), "1", "2")

	assert.Error(t, err)
	assert.Nil(t, conditions)
	assert.Contains(t, err.Error(), "failed to decode response")
}

func TestClient_GetCurrentConditions_MissingMain(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"weather":[{"description":"clear sky"}]}`))
	}))
	defer server.Close()

	client := NewClient("test_key", server.URL, time.Second)

	conditions, err := client.GetCurrentConditions(context.Background(), "1", "2")

	assert.Error(t, err)
	assert.Nil(t, conditions)
}

func TestClient_GetCurrentConditions_NetworkError(t *testing.T) {
	client := NewClient("test_key", "http://127.0.0.1:1", 100*time.Millisecond)

	conditions, err := client.GetCurrentConditions(context.Background(), "1", "2")

	assert.Error(t, err)
	assert.Nil(t, conditions)
	assert.Contains(t, err.Error(), "failed to make request")
}

func TestClient_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"main":{"temp":1}}`))
	}))
	defer server.Close()

	client := NewClient("test_key", server.URL, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	conditions, err := client.GetCurrentConditions(ctx, "1", "2")

	assert.Error(t, err)
	assert.Nil(t, conditions)
}

func TestClient_CircuitBreakerOpens(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient("test_key", server.URL, time.Second)

	// gobreaker trips after more than five consecutive failures.
	for i := 0; i < 6; i++ {
		_, err := client.GetCurrentConditions(context.Background(), "1", "2")
		require.Error(t, err)
	}

	_, err := client.GetCurrentConditions(context.Background(), "1", "2")

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(6), hits.Load())
}
