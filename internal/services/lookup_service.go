package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/valpere/geopogoda/internal/locations"
	"github.com/valpere/geopogoda/pkg/geocode"
	"github.com/valpere/geopogoda/pkg/metrics"
	"github.com/valpere/geopogoda/pkg/weather"
)

const cacheTypeLocations = "locations"

// Lookup outcomes, used as the "outcome" label of weather_lookups_total.
const (
	outcomeSuccess            = "success"
	outcomeEmptyQuery         = "empty_query"
	outcomeNotFound           = "not_found"
	outcomeGeocodeUnavailable = "geocode_unavailable"
	outcomeWeatherUnavailable = "weather_unavailable"
)

// Geocoder resolves free text to candidate locations. An empty result with a
// nil error means the place does not exist.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]geocode.Candidate, error)
}

// WeatherFetcher returns current conditions for coordinates given as decimal strings.
type WeatherFetcher interface {
	GetCurrentConditions(ctx context.Context, lat, lon string) (*weather.Conditions, error)
}

// LookupService answers "what is the weather in <place>". Place resolution
// goes through the location store first; the geocoder is asked only for keys
// the store has never seen. Weather is always fetched live.
type LookupService struct {
	store    *locations.Store
	geocoder Geocoder
	weather  WeatherFetcher
	metrics  *metrics.Metrics
	logger   *zerolog.Logger
}

func NewLookupService(store *locations.Store, geocoder Geocoder, fetcher WeatherFetcher, metricsCollector *metrics.Metrics, logger *zerolog.Logger) *LookupService {
	return &LookupService{
		store:    store,
		geocoder: geocoder,
		weather:  fetcher,
		metrics:  metricsCollector,
		logger:   logger,
	}
}

// Lookup resolves rawQuery and returns the formatted weather reply. Errors
// wrap one of ErrEmptyQuery, ErrLocationNotFound, ErrGeocodeUnavailable or
// ErrWeatherUnavailable.
func (s *LookupService) Lookup(ctx context.Context, rawQuery string) (string, error) {
	log := s.requestLogger(rawQuery)

	rec, err := s.resolve(ctx, rawQuery, log)
	if err != nil {
		s.recordOutcome(err)
		return "", err
	}

	start := time.Now()
	conditions, err := s.weather.GetCurrentConditions(ctx, rec.Latitude, rec.Longitude)
	s.metrics.ObserveHistogram("weather_api_duration_seconds", time.Since(start).Seconds(), "openweathermap")
	if err != nil {
		s.metrics.IncrementCounter("weather_requests_total", "openweathermap", "error")
		log.Warn().Err(err).
			Str("lat", rec.Latitude).
			Str("lon", rec.Longitude).
			Msg("Weather request failed")
		err = fmt.Errorf("%w: %w", ErrWeatherUnavailable, err)
		s.recordOutcome(err)
		return "", err
	}
	s.metrics.IncrementCounter("weather_requests_total", "openweathermap", "success")

	reply := FormatReply(rec, *conditions)
	s.metrics.IncrementCounter("weather_lookups_total", outcomeSuccess)

	log.Debug().
		Str("display_name", rec.DisplayName).
		Float64("temperature_f", RoundTenths(conditions.Temperature)).
		Float64("temperature_c", RoundTenths(FahrenheitToCelsius(conditions.Temperature))).
		Msg("Weather lookup completed")

	return reply, nil
}

// Resolve maps rawQuery to a location record without fetching weather.
func (s *LookupService) Resolve(ctx context.Context, rawQuery string) (locations.Record, error) {
	return s.resolve(ctx, rawQuery, s.requestLogger(rawQuery))
}

func (s *LookupService) resolve(ctx context.Context, rawQuery string, log *zerolog.Logger) (locations.Record, error) {
	query := locations.CollapseSpace(rawQuery)
	key := locations.Normalize(query)
	if key == "" {
		return locations.Record{}, ErrEmptyQuery
	}

	entry := s.store.Get(key)
	switch entry.Status {
	case locations.Found:
		s.metrics.RecordCacheLookup(cacheTypeLocations, metrics.CacheHit)
		log.Debug().Str("cache_key", key).Msg("Location cache hit")
		return entry.Record, nil

	case locations.Negative:
		s.metrics.RecordCacheLookup(cacheTypeLocations, metrics.CacheNegative)
		log.Debug().Str("cache_key", key).Msg("Location cache negative hit")
		return locations.Record{}, fmt.Errorf("%w: %q", ErrLocationNotFound, query)
	}

	s.metrics.RecordCacheLookup(cacheTypeLocations, metrics.CacheMiss)

	start := time.Now()
	candidates, err := s.geocoder.Search(ctx, query)
	s.metrics.ObserveHistogram("weather_api_duration_seconds", time.Since(start).Seconds(), "nominatim")
	if err != nil {
		s.metrics.IncrementCounter("geocode_requests_total", "error")
		log.Warn().Err(err).Str("cache_key", key).Msg("Geocoding failed")
		return locations.Record{}, fmt.Errorf("%w: %w", ErrGeocodeUnavailable, err)
	}

	if len(candidates) == 0 {
		s.metrics.IncrementCounter("geocode_requests_total", "empty")
		s.store.PutNegative(key)
		s.updateEntriesGauge()
		log.Info().Str("cache_key", key).Msg("Location not found, caching negative result")
		return locations.Record{}, fmt.Errorf("%w: %q", ErrLocationNotFound, query)
	}

	s.metrics.IncrementCounter("geocode_requests_total", "success")
	best := candidates[0]
	rec := locations.Record{
		DisplayName: best.DisplayName,
		Latitude:    best.Latitude,
		Longitude:   best.Longitude,
	}
	s.store.Put(key, rec)
	s.updateEntriesGauge()

	log.Info().
		Str("cache_key", key).
		Str("display_name", rec.DisplayName).
		Msg("Location resolved and cached")

	return rec, nil
}

func (s *LookupService) requestLogger(rawQuery string) *zerolog.Logger {
	l := s.logger.With().
		Str("request_id", uuid.NewString()).
		Str("query", rawQuery).
		Logger()
	return &l
}

func (s *LookupService) updateEntriesGauge() {
	s.metrics.SetGauge("location_store_entries", float64(s.store.Len()), s.store.BackendName())
}

func (s *LookupService) recordOutcome(err error) {
	outcome := outcomeForError(err)
	s.metrics.IncrementCounter("weather_lookups_total", outcome)
}
