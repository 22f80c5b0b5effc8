package middleware

import (
	"testing"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/valpere/geopogoda/pkg/metrics"
	"github.com/valpere/geopogoda/tests/helpers"
)

func TestNewUserRateLimiter(t *testing.T) {
	rateLimit := rate.Limit(10) // 10 requests per second
	burst := 20

	limiter := NewUserRateLimiter(rateLimit, burst)
	defer limiter.Stop()

	assert.NotNil(t, limiter)
	assert.NotNil(t, limiter.limiters)
	assert.Equal(t, rateLimit, limiter.rate)
	assert.Equal(t, burst, limiter.burst)
	assert.Empty(t, limiter.limiters) // Initially no limiters
}

func TestPerMinute(t *testing.T) {
	limiter := PerMinute(20)
	defer limiter.Stop()

	assert.Equal(t, 20, limiter.burst)
	assert.InDelta(t, 20.0/60.0, float64(limiter.rate), 1e-9)

	fallback := PerMinute(0)
	defer fallback.Stop()
	assert.Equal(t, 1, fallback.burst)
}

func TestUserRateLimiter_Allow(t *testing.T) {
	t.Run("allows first request", func(t *testing.T) {
		limiter := NewUserRateLimiter(rate.Limit(10), 5)
		defer limiter.Stop()

		assert.True(t, limiter.Allow(123))
	})

	t.Run("creates limiter for new user", func(t *testing.T) {
		limiter := NewUserRateLimiter(rate.Limit(10), 5)
		defer limiter.Stop()
		userID := int64(456)

		limiter.Allow(userID)

		limiter.mu.RLock()
		_, exists := limiter.limiters[userID]
		limiter.mu.RUnlock()

		assert.True(t, exists)
	})

	t.Run("denies after exceeding burst limit", func(t *testing.T) {
		limiter := NewUserRateLimiter(rate.Limit(1), 2) // 1 req/s, burst of 2
		defer limiter.Stop()
		userID := int64(101112)

		assert.True(t, limiter.Allow(userID))
		assert.True(t, limiter.Allow(userID))
		assert.False(t, limiter.Allow(userID))
	})

	t.Run("allows after waiting for rate limit recovery", func(t *testing.T) {
		limiter := NewUserRateLimiter(rate.Limit(10), 1) // 10 req/s, burst of 1
		defer limiter.Stop()
		userID := int64(131415)

		assert.True(t, limiter.Allow(userID))
		assert.False(t, limiter.Allow(userID))

		// Wait for token to refill (100ms = 1/10 second)
		time.Sleep(150 * time.Millisecond)

		assert.True(t, limiter.Allow(userID))
	})

	t.Run("independent limiters per user", func(t *testing.T) {
		limiter := NewUserRateLimiter(rate.Limit(1), 1)
		defer limiter.Stop()

		assert.True(t, limiter.Allow(111))
		assert.False(t, limiter.Allow(111))
		assert.True(t, limiter.Allow(222))
	})

	t.Run("concurrent access is safe", func(t *testing.T) {
		limiter := NewUserRateLimiter(rate.Limit(100), 50)
		defer limiter.Stop()

		done := make(chan bool)
		for i := 0; i < 10; i++ {
			go func(id int64) {
				for j := 0; j < 10; j++ {
					limiter.Allow(id % 3)
				}
				done <- true
			}(int64(i))
		}

		for i := 0; i < 10; i++ {
			<-done
		}

		limiter.mu.RLock()
		defer limiter.mu.RUnlock()
		assert.Len(t, limiter.limiters, 3)
	})
}

func TestUserRateLimiter_Cleanup(t *testing.T) {
	limiter := NewUserRateLimiter(rate.Limit(10), 5)
	defer limiter.Stop()

	limiter.Allow(1)
	limiter.Allow(2)

	limiter.mu.Lock()
	limiter.limiters[1].lastAccess = time.Now().Add(-2 * time.Hour)
	limiter.mu.Unlock()

	limiter.cleanup(time.Now().Add(-1 * time.Hour))

	limiter.mu.RLock()
	defer limiter.mu.RUnlock()
	assert.NotContains(t, limiter.limiters, int64(1))
	assert.Contains(t, limiter.limiters, int64(2))
}

func TestUserRateLimiter_Stop(t *testing.T) {
	limiter := NewUserRateLimiter(rate.Limit(10), 5)

	limiter.Stop()
	limiter.Stop()

	select {
	case <-limiter.done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("done channel was not closed")
	}
}

func TestLogging(t *testing.T) {
	testLogger := helpers.NewTestLoggerWithLevel(zerolog.DebugLevel)
	handler := Logging(*testLogger.Logger)

	t.Run("logs message command", func(t *testing.T) {
		ctx := helpers.NewMockContext(helpers.MockContextOptions{
			UserID:      123,
			Username:    "testuser",
			MessageText: "/weather Boston",
		})

		err := handler(&gotgbot.Bot{}, ctx)

		assert.NoError(t, err)
		testLogger.AssertLogContains(t, "/weather Boston")
		testLogger.AssertLogContains(t, `"user_id":123`)
	})

	t.Run("logs callback query", func(t *testing.T) {
		testLogger.Reset()
		ctx := &ext.Context{
			Update: &gotgbot.Update{
				CallbackQuery: &gotgbot.CallbackQuery{Data: "test_callback"},
			},
			EffectiveUser: &gotgbot.User{Id: 123, Username: "testuser"},
			EffectiveChat: &gotgbot.Chat{Id: 456},
		}

		err := handler(&gotgbot.Bot{}, ctx)

		assert.NoError(t, err)
		testLogger.AssertLogContains(t, "callback:test_callback")
	})

	t.Run("tolerates update without user", func(t *testing.T) {
		assert.NotPanics(t, func() {
			_ = handler(&gotgbot.Bot{}, &ext.Context{})
		})
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	tg := helpers.NewMockTelegram(t)
	testLogger := helpers.NewTestLogger()
	limiter := NewUserRateLimiter(rate.Limit(1), 1)
	defer limiter.Stop()
	handler := RateLimit(limiter, *testLogger.Logger)

	t.Run("allows first request", func(t *testing.T) {
		ctx := helpers.NewSimpleMockContext(123, "/weather Boston")

		err := handler(tg.Bot, ctx)

		assert.NoError(t, err)
		assert.Empty(t, tg.Sent())
	})

	t.Run("blocks after rate limit", func(t *testing.T) {
		userID := int64(999)
		limiter.Allow(userID)

		ctx := helpers.NewSimpleMockContext(userID, "/weather Boston")

		err := handler(tg.Bot, ctx)

		assert.ErrorIs(t, err, ext.EndGroups)
		require.Len(t, tg.Sent(), 1)
		assert.Equal(t, RateLimitedMessage, tg.LastText())
		testLogger.AssertLogLevel(t, "warn")
		testLogger.AssertLogContains(t, `"user_id":999`)
	})

	t.Run("ignores updates without user", func(t *testing.T) {
		assert.NoError(t, handler(tg.Bot, &ext.Context{}))
	})
}

func TestMetricsMiddleware(t *testing.T) {
	m := metrics.New()
	handler := Metrics(m)

	require.NoError(t, handler(&gotgbot.Bot{}, helpers.NewSimpleMockContext(1, "/help")))
	require.NoError(t, handler(&gotgbot.Bot{}, &ext.Context{Update: &gotgbot.Update{CallbackQuery: &gotgbot.CallbackQuery{}}}))
	require.NoError(t, handler(&gotgbot.Bot{}, &ext.Context{}))

	updates, err := testutil.GatherAndCount(m.Registry(), "bot_updates_total")
	require.NoError(t, err)
	assert.Equal(t, 3, updates)
}
