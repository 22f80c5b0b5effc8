package middleware

import (
	"fmt"
	"sync"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/valpere/geopogoda/pkg/metrics"
)

// RateLimitedMessage is sent to a user whose command was dropped by RateLimit.
const RateLimitedMessage = "Too many requests, please slow down."

// UserRateLimiter manages rate limits per user
type UserRateLimiter struct {
	limiters map[int64]*rateLimiterEntry
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
	done     chan struct{}
	stopOnce sync.Once
}

// rateLimiterEntry holds a limiter with its last access time for cleanup
type rateLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func NewUserRateLimiter(r rate.Limit, b int) *UserRateLimiter {
	rl := &UserRateLimiter{
		limiters: make(map[int64]*rateLimiterEntry),
		rate:     r,
		burst:    b,
		done:     make(chan struct{}),
	}

	// Start periodic cleanup goroutine (every 15 minutes)
	go rl.cleanupLoop()

	return rl
}

// PerMinute builds a limiter allowing n commands per user per minute, with a burst of n.
func PerMinute(n int) *UserRateLimiter {
	if n <= 0 {
		n = 1
	}
	return NewUserRateLimiter(rate.Every(time.Minute/time.Duration(n)), n)
}

func (rl *UserRateLimiter) Allow(userID int64) bool {
	rl.mu.Lock()
	entry, exists := rl.limiters[userID]
	if !exists {
		entry = &rateLimiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[userID] = entry
	}
	entry.lastAccess = time.Now()
	rl.mu.Unlock()

	return entry.limiter.Allow()
}

// Stop terminates the cleanup goroutine. It is safe to call more than once.
func (rl *UserRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.done) })
}

// cleanupLoop periodically removes inactive rate limiters to prevent memory leaks
func (rl *UserRateLimiter) cleanupLoop() {
	ticker := time.NewTicker(15 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.cleanup(time.Now().Add(-1 * time.Hour))
		}
	}
}

// cleanup removes rate limiters not accessed since cutoff
func (rl *UserRateLimiter) cleanup(cutoff time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for userID, entry := range rl.limiters {
		if entry.lastAccess.Before(cutoff) {
			delete(rl.limiters, userID)
		}
	}
}

// Logging creates a logging handler function
func Logging(logger zerolog.Logger) func(bot *gotgbot.Bot, ctx *ext.Context) error {
	return func(bot *gotgbot.Bot, ctx *ext.Context) error {
		event := logger.Debug()

		if user := ctx.EffectiveUser; user != nil {
			event = event.Int64("user_id", user.Id).Str("username", user.Username)
		}
		if chat := ctx.EffectiveChat; chat != nil {
			event = event.Int64("chat_id", chat.Id)
		}

		var command string
		switch {
		case ctx.Update == nil:
		case ctx.Message != nil && ctx.Message.Text != "":
			command = ctx.Message.Text
		case ctx.CallbackQuery != nil:
			command = fmt.Sprintf("callback:%s", ctx.CallbackQuery.Data)
		}

		event.Str("command", command).Msg("Update received")

		return nil
	}
}

// RateLimit creates a rate limiting handler function. Over-limit updates get
// a short reply and are not passed to later handler groups.
func RateLimit(rateLimiter *UserRateLimiter, logger zerolog.Logger) func(bot *gotgbot.Bot, ctx *ext.Context) error {
	return func(bot *gotgbot.Bot, ctx *ext.Context) error {
		if ctx.EffectiveUser == nil {
			return nil
		}
		userID := ctx.EffectiveUser.Id

		if rateLimiter.Allow(userID) {
			return nil
		}

		logger.Warn().Int64("user_id", userID).Msg("Rate limit exceeded")

		if ctx.EffectiveMessage != nil {
			if _, err := ctx.EffectiveMessage.Reply(bot, RateLimitedMessage, nil); err != nil {
				logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to send rate limit reply")
			}
		}
		return ext.EndGroups
	}
}

// Metrics creates a metrics collection handler function counting updates by kind
func Metrics(m *metrics.Metrics) func(bot *gotgbot.Bot, ctx *ext.Context) error {
	return func(bot *gotgbot.Bot, ctx *ext.Context) error {
		m.IncrementCounter("bot_updates_total", updateType(ctx))
		return nil
	}
}

func updateType(ctx *ext.Context) string {
	switch {
	case ctx.Update == nil:
		return "unknown"
	case ctx.Message != nil:
		return "message"
	case ctx.EditedMessage != nil:
		return "edited_message"
	case ctx.CallbackQuery != nil:
		return "callback_query"
	default:
		return "other"
	}
}
