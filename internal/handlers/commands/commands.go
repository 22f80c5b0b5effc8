package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/rs/zerolog"

	"github.com/valpere/geopogoda/internal/services"
	"github.com/valpere/geopogoda/pkg/metrics"
)

// User-facing replies for failed lookups.
const (
	msgGeocodeUnavailable = "Could not resolve that location right now, please try again later."
	msgWeatherUnavailable = "Could not fetch the weather right now, please try again later."
	msgInternalError      = "Something went wrong, please try again later."
	msgUsage              = "Usage: /weather <location>\nFor example: /weather Boston, MA"
)

// lookupTimeout bounds one /weather command: a throttled geocode plus a weather call.
const lookupTimeout = 30 * time.Second

// WeatherLookup turns a free-text place into a reply.
type WeatherLookup interface {
	Lookup(ctx context.Context, query string) (string, error)
}

type CommandHandler struct {
	lookup  WeatherLookup
	metrics *metrics.Metrics
	logger  *zerolog.Logger
}

func New(lookup WeatherLookup, metricsCollector *metrics.Metrics, logger *zerolog.Logger) *CommandHandler {
	return &CommandHandler{
		lookup:  lookup,
		metrics: metricsCollector,
		logger:  logger,
	}
}

// Start command handler
func (h *CommandHandler) Start(bot *gotgbot.Bot, ctx *ext.Context) error {
	name := "there"
	if ctx.EffectiveUser != nil && ctx.EffectiveUser.FirstName != "" {
		name = ctx.EffectiveUser.FirstName
	}

	welcomeText := fmt.Sprintf(`Hello %s! I'm GeoPogoda.

Send /weather followed by a place name and I'll tell you the current weather there.
For example: /weather Boston, MA

Use /help to see all commands.`, name)

	_, err := ctx.EffectiveMessage.Reply(bot, welcomeText, nil)
	return err
}

// Help command handler
func (h *CommandHandler) Help(bot *gotgbot.Bot, ctx *ext.Context) error {
	helpText := `GeoPogoda commands:

/weather <location> - current weather for a place
/help - show this message
/start - welcome message

Locations can be cities, addresses or landmarks, in any language.`

	_, err := ctx.EffectiveMessage.Reply(bot, helpText, nil)
	return err
}

// Weather answers /weather <location>.
func (h *CommandHandler) Weather(bot *gotgbot.Bot, ctx *ext.Context) error {
	start := time.Now()
	defer func() {
		h.metrics.ObserveHistogram("bot_handler_duration_seconds", time.Since(start).Seconds(), "weather")
	}()

	msg := ctx.EffectiveMessage
	if msg == nil {
		return nil
	}
	query := locationFromArgs(msg.Text)

	log := h.logger.With().Str("query", query).Logger()
	if ctx.EffectiveUser != nil {
		log = log.With().Int64("user_id", ctx.EffectiveUser.Id).Logger()
	}
	log.Debug().Msg("Handling weather command")

	lookupCtx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	reply, err := h.lookup.Lookup(lookupCtx, query)
	if err != nil {
		if !errors.Is(err, services.ErrEmptyQuery) && !errors.Is(err, services.ErrLocationNotFound) {
			log.Warn().Err(err).Msg("Weather lookup failed")
		}
		reply = UserMessage(query, err)
	}

	if _, err := msg.Reply(bot, reply, nil); err != nil {
		h.metrics.IncrementCounter("bot_errors_total", "send_message")
		return fmt.Errorf("failed to send weather reply: %w", err)
	}
	return nil
}

// UserMessage maps a lookup error to the text shown to the user.
func UserMessage(query string, err error) string {
	switch {
	case errors.Is(err, services.ErrEmptyQuery):
		return msgUsage
	case errors.Is(err, services.ErrLocationNotFound):
		return fmt.Sprintf("No such location: \"%s\"", query)
	case errors.Is(err, services.ErrGeocodeUnavailable):
		return msgGeocodeUnavailable
	case errors.Is(err, services.ErrWeatherUnavailable):
		return msgWeatherUnavailable
	default:
		return msgInternalError
	}
}

// locationFromArgs drops the leading command token ("/weather" or
// "/weather@botname") and joins the remaining words with single spaces, so
// "New  York" and "New York" share a cache key.
func locationFromArgs(text string) string {
	words := strings.Fields(text)
	if len(words) > 0 && strings.HasPrefix(words[0], "/") {
		words = words[1:]
	}
	return strings.Join(words, " ")
}
