package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Cache lookup results used as the "result" label of location_cache_lookups_total.
const (
	CacheHit      = "hit"
	CacheNegative = "negative"
	CacheMiss     = "miss"
)

type Metrics struct {
	registry   *prometheus.Registry
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec

	mu        sync.Mutex
	cacheHits map[string]uint64
	cacheAll  map[string]uint64
}

func New() *Metrics {
	m := &Metrics{
		registry:   prometheus.NewRegistry(),
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		cacheHits:  make(map[string]uint64),
		cacheAll:   make(map[string]uint64),
	}

	m.counters["bot_updates_total"] = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Total number of bot updates processed",
		},
		[]string{"type"},
	)

	m.counters["bot_errors_total"] = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_errors_total",
			Help: "Total number of bot errors",
		},
		[]string{"type"},
	)

	m.counters["weather_lookups_total"] = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_lookups_total",
			Help: "Total number of weather lookups by outcome",
		},
		[]string{"outcome"},
	)

	m.counters["location_cache_lookups_total"] = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "location_cache_lookups_total",
			Help: "Location cache lookups by result (hit, negative, miss)",
		},
		[]string{"result"},
	)

	m.counters["geocode_requests_total"] = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geocode_requests_total",
			Help: "Total number of geocoder requests",
		},
		[]string{"status"},
	)

	m.counters["weather_requests_total"] = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_requests_total",
			Help: "Total number of weather API requests",
		},
		[]string{"api", "status"},
	)

	m.histograms["bot_handler_duration_seconds"] = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bot_handler_duration_seconds",
			Help:    "Duration of bot handler execution",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)

	m.histograms["weather_api_duration_seconds"] = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weather_api_duration_seconds",
			Help:    "Duration of external API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"api"},
	)

	m.histograms["location_store_sync_duration_seconds"] = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "location_store_sync_duration_seconds",
			Help:    "Duration of location store flushes",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	m.gauges["location_store_entries"] = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "location_store_entries",
			Help: "Number of cached location keys, negative markers included",
		},
		[]string{"backend"},
	)

	m.gauges["cache_hit_rate"] = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_hit_rate",
			Help: "Cache hit rate percentage",
		},
		[]string{"cache_type"},
	)

	m.mustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	for _, counter := range m.counters {
		m.mustRegister(counter)
	}
	for _, histogram := range m.histograms {
		m.mustRegister(histogram)
	}
	for _, gauge := range m.gauges {
		m.mustRegister(gauge)
	}

	return m
}

func (m *Metrics) mustRegister(cs ...prometheus.Collector) {
	for _, c := range cs {
		if err := m.registry.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				panic(err)
			}
		}
	}
}

func (m *Metrics) IncrementCounter(name string, labelValues ...string) {
	if counter, exists := m.counters[name]; exists {
		counter.WithLabelValues(labelValues...).Inc()
	}
}

func (m *Metrics) ObserveHistogram(name string, value float64, labelValues ...string) {
	if histogram, exists := m.histograms[name]; exists {
		histogram.WithLabelValues(labelValues...).Observe(value)
	}
}

func (m *Metrics) SetGauge(name string, value float64, labelValues ...string) {
	if gauge, exists := m.gauges[name]; exists {
		gauge.WithLabelValues(labelValues...).Set(value)
	}
}

// RecordCacheLookup counts one cache lookup and refreshes the hit rate gauge
// for cacheType. Negative hits count as hits: no upstream call was made.
func (m *Metrics) RecordCacheLookup(cacheType, result string) {
	m.IncrementCounter("location_cache_lookups_total", result)

	m.mu.Lock()
	m.cacheAll[cacheType]++
	if result != CacheMiss {
		m.cacheHits[cacheType]++
	}
	rate := float64(m.cacheHits[cacheType]) / float64(m.cacheAll[cacheType]) * 100
	m.mu.Unlock()

	m.SetGauge("cache_hit_rate", rate, cacheType)
}

// Registry exposes the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// GetCacheHitRate returns the percentage (0-100) of lookups for cacheType
// that were answered from the cache, or 0 before the first lookup.
func (m *Metrics) GetCacheHitRate(cacheType string) float64 {
	gauge, exists := m.gauges["cache_hit_rate"]
	if !exists {
		return 0
	}

	metricChan := make(chan prometheus.Metric, 1)
	go func() {
		gauge.Collect(metricChan)
		close(metricChan)
	}()

	rate := 0.0
	for metric := range metricChan {
		dtoMetric := &dto.Metric{}
		if err := metric.Write(dtoMetric); err != nil {
			continue
		}
		for _, label := range dtoMetric.Label {
			if label.GetName() == "cache_type" && label.GetValue() == cacheType && dtoMetric.Gauge != nil {
				rate = dtoMetric.Gauge.GetValue()
			}
		}
	}

	return rate
}

// GetAverageResponseTime calculates average response time from handler duration histogram
// Returns the average in milliseconds, or 0 when nothing was observed yet
func (m *Metrics) GetAverageResponseTime() float64 {
	histogram, exists := m.histograms["bot_handler_duration_seconds"]
	if !exists {
		return 0
	}

	metricChan := make(chan prometheus.Metric, 10)
	go func() {
		histogram.Collect(metricChan)
		close(metricChan)
	}()

	var totalSum float64
	var totalCount uint64

	for metric := range metricChan {
		dtoMetric := &dto.Metric{}
		if err := metric.Write(dtoMetric); err != nil {
			continue
		}
		if dtoMetric.Histogram != nil {
			totalSum += dtoMetric.Histogram.GetSampleSum()
			totalCount += dtoMetric.Histogram.GetSampleCount()
		}
	}

	if totalCount > 0 {
		avgSeconds := totalSum / float64(totalCount)
		return avgSeconds * 1000.0
	}

	return 0
}
