// Package services provides the business logic layer for the GeoPogoda bot:
// resolving place names through the location cache, fetching current weather
// and keeping the cache flushed to durable storage.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/valpere/geopogoda/internal/config"
	"github.com/valpere/geopogoda/internal/locations"
	"github.com/valpere/geopogoda/pkg/geocode"
	"github.com/valpere/geopogoda/pkg/metrics"
	"github.com/valpere/geopogoda/pkg/weather"
)

// Services is the central container for all business logic services.
//
// Lifecycle:
//
//	svcs := services.New(backend, cfg, logger, metrics)
//	if err := svcs.Load(ctx); err != nil { ... }   // fatal on corrupt storage
//	if err := svcs.Start(ctx); err != nil { ... }  // periodic flushes
//	defer svcs.Stop(ctx)                           // final flush
//
//	reply, err := svcs.Lookup.Lookup(ctx, "Boston, MA")
type Services struct {
	Store     *locations.Store // Location-resolution cache
	Lookup    *LookupService   // Place resolution and weather replies
	Sync      *SyncService     // Periodic and shutdown flushes
	metrics   *metrics.Metrics
	startTime time.Time
}

// New wires the services with live Nominatim and OpenWeatherMap clients built from cfg.
func New(backend locations.Backend, cfg *config.Config, logger *zerolog.Logger, metricsCollector *metrics.Metrics) *Services {
	geocoder := geocode.NewClient(geocode.Options{
		BaseURL:           cfg.Geocoding.BaseURL,
		UserAgent:         cfg.Geocoding.UserAgent,
		RequestsPerSecond: cfg.Geocoding.RequestsPerSecond,
		Timeout:           cfg.Geocoding.Timeout,
	})
	weatherClient := weather.NewClient(cfg.Weather.OpenWeatherAPIKey, cfg.Weather.BaseURL, cfg.Weather.Timeout)

	return NewWithClients(backend, geocoder, weatherClient, cfg.Storage.SyncInterval, logger, metricsCollector)
}

// NewWithClients is New with caller-supplied collaborators.
func NewWithClients(
	backend locations.Backend,
	geocoder Geocoder,
	fetcher WeatherFetcher,
	syncInterval time.Duration,
	logger *zerolog.Logger,
	metricsCollector *metrics.Metrics,
) *Services {
	store := locations.NewStore(backend, logger)

	return &Services{
		Store:     store,
		Lookup:    NewLookupService(store, geocoder, fetcher, metricsCollector, logger),
		Sync:      NewSyncService(store, syncInterval, metricsCollector, logger),
		metrics:   metricsCollector,
		startTime: time.Now(),
	}
}

// Load reads the persisted cache. An error wrapping locations.ErrStorageCorrupt
// means the stored data is unusable and the process should not start.
func (s *Services) Load(ctx context.Context) error {
	if err := s.Store.Load(ctx); err != nil {
		return fmt.Errorf("failed to load location cache: %w", err)
	}
	s.metrics.SetGauge("location_store_entries", float64(s.Store.Len()), s.Store.BackendName())
	return nil
}

// Start begins periodic flushing of the location cache.
func (s *Services) Start(ctx context.Context) error {
	return s.Sync.Start(ctx)
}

// Stop halts periodic flushing and writes any pending changes.
func (s *Services) Stop(ctx context.Context) error {
	return s.Sync.Stop(ctx)
}

// Uptime reports how long ago the container was created.
func (s *Services) Uptime() time.Duration {
	return time.Since(s.startTime)
}
