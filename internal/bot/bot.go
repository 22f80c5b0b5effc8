package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers/filters/message"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/valpere/geopogoda/internal/config"
	"github.com/valpere/geopogoda/internal/database"
	"github.com/valpere/geopogoda/internal/handlers/commands"
	"github.com/valpere/geopogoda/internal/middleware"
	"github.com/valpere/geopogoda/internal/services"
	"github.com/valpere/geopogoda/internal/version"
	"github.com/valpere/geopogoda/pkg/metrics"
)

type Bot struct {
	bot          *gotgbot.Bot
	updater      *ext.Updater
	dispatcher   *ext.Dispatcher
	config       *config.Config
	logger       zerolog.Logger
	services     *services.Services
	server       *http.Server
	metrics      *metrics.Metrics
	limiter      *middleware.UserRateLimiter
	closeBackend func() error
}

// NewLogger builds the process logger from the logging section of the config.
func NewLogger(cfg config.LoggingConfig, out io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out}
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("component", "bot").
		Logger()
}

func New(cfg *config.Config) (*Bot, error) {
	logger := NewLogger(cfg.Logging, os.Stdout)

	// Initialize metrics
	metricsCollector := metrics.New()

	// Open location storage
	backend, closeBackend, err := database.OpenBackend(cfg, &logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open location storage: %w", err)
	}

	svcs := services.New(backend, cfg, &logger, metricsCollector)

	loadCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := svcs.Load(loadCtx); err != nil {
		_ = closeBackend()
		return nil, err
	}

	// Create bot
	botInstance, err := gotgbot.NewBot(cfg.Bot.Token, &gotgbot.BotOpts{
		BotClient: &gotgbot.BaseBotClient{
			Client: http.Client{Timeout: 30 * time.Second},
		},
	})
	if err != nil {
		_ = closeBackend()
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	weatherBot := newBot(botInstance, cfg, logger, svcs, metricsCollector)
	weatherBot.closeBackend = closeBackend

	return weatherBot, nil
}

// newBot assembles the dispatcher, handlers and HTTP server around an existing bot client.
func newBot(botInstance *gotgbot.Bot, cfg *config.Config, logger zerolog.Logger, svcs *services.Services, metricsCollector *metrics.Metrics) *Bot {
	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(b *gotgbot.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			metricsCollector.IncrementCounter("bot_errors_total", "handler")
			logger.Error().Err(err).Msg("Update handler failed")
			return ext.DispatcherActionNoop
		},
	})
	updater := ext.NewUpdater(dispatcher, &ext.UpdaterOpts{})

	weatherBot := &Bot{
		bot:          botInstance,
		updater:      updater,
		dispatcher:   dispatcher,
		config:       cfg,
		logger:       logger,
		services:     svcs,
		metrics:      metricsCollector,
		limiter:      middleware.PerMinute(cfg.Bot.RateLimit),
		closeBackend: func() error { return nil },
	}

	weatherBot.setupHandlers()
	weatherBot.setupHTTPServer()

	return weatherBot
}

func (b *Bot) setupHandlers() {
	// Only one handler runs per group, so each middleware gets its own group ahead of the commands.
	// RateLimit ends the update when the user is over the limit.
	b.dispatcher.AddHandlerToGroup(handlers.NewMessage(message.All, middleware.Logging(b.logger)), -3)
	b.dispatcher.AddHandlerToGroup(handlers.NewMessage(message.All, middleware.Metrics(b.metrics)), -2)
	b.dispatcher.AddHandlerToGroup(handlers.NewCommand("weather", middleware.RateLimit(b.limiter, b.logger)), -1)

	cmdHandler := commands.New(b.services.Lookup, b.metrics, &b.logger)

	b.dispatcher.AddHandler(handlers.NewCommand("start", cmdHandler.Start))
	b.dispatcher.AddHandler(handlers.NewCommand("help", cmdHandler.Help))
	b.dispatcher.AddHandler(handlers.NewCommand("weather", cmdHandler.Weather))
}

func (b *Bot) setupHTTPServer() {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", b.handleHealth)
	router.GET("/metrics", gin.WrapH(b.metrics.Handler()))

	if b.config.Bot.WebhookURL != "" {
		router.POST("/webhook", b.handleWebhook)
	}

	b.server = &http.Server{
		Addr:         ":" + strconv.Itoa(b.config.Bot.WebhookPort),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

func (b *Bot) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":           "healthy",
		"version":          version.Version,
		"time":             time.Now().Unix(),
		"uptime_seconds":   int64(b.services.Uptime().Seconds()),
		"storage_backend":  b.services.Store.BackendName(),
		"cached_locations": b.services.Store.Len(),
		"cache_hit_rate":   b.metrics.GetCacheHitRate("locations"),
		"avg_response_ms":  b.metrics.GetAverageResponseTime(),
		"pending_changes":  b.services.Store.Dirty(),
	})
}

func (b *Bot) handleWebhook(c *gin.Context) {
	var update gotgbot.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		b.logger.Error().Err(err).Msg("Failed to parse webhook update")
		c.Status(http.StatusBadRequest)
		return
	}

	if err := b.dispatcher.ProcessUpdate(b.bot, &update, nil); err != nil {
		b.logger.Error().Err(err).Int64("update_id", update.UpdateId).Msg("Failed to process update")
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Status(http.StatusOK)
}

// Start launches the HTTP server, the flush scheduler and update intake, then
// blocks until ctx is cancelled or the HTTP server fails. The caller still
// owns Stop in both cases.
func (b *Bot) Start(ctx context.Context) error {
	b.logger.Info().Str("version", version.Version).Msg("Starting GeoPogoda bot...")

	if err := b.services.Start(ctx); err != nil {
		return fmt.Errorf("failed to start services: %w", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := b.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	b.logger.Info().
		Int("port", b.config.Bot.WebhookPort).
		Msg("HTTP server started")

	if b.config.Bot.WebhookURL != "" {
		if err := b.setupWebhook(); err != nil {
			return fmt.Errorf("failed to setup webhook: %w", err)
		}
	} else {
		b.logger.Info().Msg("Starting polling...")
		if err := b.updater.StartPolling(b.bot, &ext.PollingOpts{
			DropPendingUpdates: true,
			GetUpdatesOpts: &gotgbot.GetUpdatesOpts{
				Timeout: 10,
				RequestOpts: &gotgbot.RequestOpts{
					Timeout: time.Second * 15,
				},
			},
		}); err != nil {
			return fmt.Errorf("failed to start polling: %w", err)
		}
	}

	b.logger.Info().
		Str("bot", b.bot.Username).
		Int("cached_locations", b.services.Store.Len()).
		Msg("GeoPogoda bot started successfully")

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErr:
		return fmt.Errorf("HTTP server failed: %w", err)
	}
}

func (b *Bot) setupWebhook() error {
	webhookURL := b.config.Bot.WebhookURL + "/webhook"

	_, err := b.bot.SetWebhook(webhookURL, &gotgbot.SetWebhookOpts{
		MaxConnections:     100,
		DropPendingUpdates: true,
	})
	if err != nil {
		return fmt.Errorf("failed to set webhook: %w", err)
	}

	b.logger.Info().
		Str("webhook_url", webhookURL).
		Msg("Webhook configured")

	return nil
}

// Stop stops update intake, shuts down HTTP, writes pending location changes
// and closes storage connections, in that order.
func (b *Bot) Stop() error {
	b.logger.Info().Msg("Stopping GeoPogoda bot...")

	if b.config.Bot.WebhookURL == "" {
		if err := b.updater.Stop(); err != nil {
			b.logger.Error().Err(err).Msg("Updater stop error")
		}
	}

	if b.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := b.server.Shutdown(ctx); err != nil {
			b.logger.Error().Err(err).Msg("HTTP server shutdown error")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	syncErr := b.services.Stop(ctx)
	if syncErr != nil {
		b.logger.Error().Err(syncErr).Msg("Final location sync failed")
	}

	b.limiter.Stop()

	if err := b.closeBackend(); err != nil {
		b.logger.Error().Err(err).Msg("Storage close error")
	}

	b.logger.Info().Msg("GeoPogoda bot stopped")
	return syncErr
}
