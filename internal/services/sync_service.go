package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"

	"github.com/valpere/geopogoda/internal/locations"
	"github.com/valpere/geopogoda/pkg/metrics"
)

// DefaultSyncInterval is used when no positive interval is configured.
const DefaultSyncInterval = 5 * time.Minute

const syncTimeout = 30 * time.Second

// SyncService flushes the location store to its backend on a fixed interval
// and once more on Stop.
type SyncService struct {
	store     *locations.Store
	interval  time.Duration
	scheduler *gocron.Scheduler
	metrics   *metrics.Metrics
	logger    *zerolog.Logger

	mu      sync.Mutex
	running bool
}

func NewSyncService(store *locations.Store, interval time.Duration, metricsCollector *metrics.Metrics, logger *zerolog.Logger) *SyncService {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	return &SyncService{
		store:     store,
		interval:  interval,
		scheduler: gocron.NewScheduler(time.UTC),
		metrics:   metricsCollector,
		logger:    logger,
	}
}

// Start schedules periodic flushes. The first flush happens one interval
// after Start. Calling Start twice is a no-op.
func (s *SyncService) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	// Scheduled flushes ignore cancellation of ctx; each gets its own timeout.
	base := context.WithoutCancel(ctx)

	_, err := s.scheduler.Every(s.interval).
		SingletonMode().
		WaitForSchedule().
		Do(func() {
			jobCtx, cancel := context.WithTimeout(base, syncTimeout)
			defer cancel()
			_ = s.Flush(jobCtx)
		})
	if err != nil {
		return fmt.Errorf("failed to schedule location sync: %w", err)
	}

	s.scheduler.StartAsync()
	s.running = true

	s.logger.Info().
		Dur("interval", s.interval).
		Str("backend", s.store.BackendName()).
		Msg("Location sync scheduled")

	return nil
}

// Flush writes pending store changes now. Errors are logged and returned; the
// store stays dirty so the next flush writes again.
func (s *SyncService) Flush(ctx context.Context) error {
	if !s.store.Dirty() {
		return nil
	}

	backend := s.store.BackendName()
	start := time.Now()
	err := s.store.Sync(ctx)
	s.metrics.ObserveHistogram("location_store_sync_duration_seconds", time.Since(start).Seconds(), backend)

	if err != nil {
		s.metrics.IncrementCounter("bot_errors_total", "location_sync")
		s.logger.Error().Err(err).Str("backend", backend).Msg("Location sync failed")
		return err
	}

	s.metrics.SetGauge("location_store_entries", float64(s.store.Len()), backend)
	return nil
}

// Stop cancels future flushes and performs a final one.
func (s *SyncService) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.scheduler.Stop()
		s.running = false
	}
	s.mu.Unlock()

	if err := s.Flush(ctx); err != nil {
		return fmt.Errorf("final location sync: %w", err)
	}

	s.logger.Info().Int("entries", s.store.Len()).Msg("Location store flushed on shutdown")
	return nil
}
