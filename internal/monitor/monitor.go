package monitor

import (
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"shortvid-saver/pkg/models"
)

// Metrics represents all the application metrics
type Metrics struct {
	// Extraction metrics
	ExtractionsTotal   *prometheus.CounterVec
	ExtractionsSuccess *prometheus.CounterVec
	ExtractionsFailed  *prometheus.CounterVec
	ExtractionDuration *prometheus.HistogramVec

	// Resolution metrics
	ResolutionsTotal *prometheus.CounterVec
	ResolutionStages *prometheus.CounterVec

	// Download metrics
	DownloadsTotal  *prometheus.CounterVec
	DownloadsFailed *prometheus.CounterVec
	DownloadSize    *prometheus.HistogramVec
	ActiveDownloads prometheus.Gauge

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// System metrics
	Goroutines  prometheus.Gauge
	MemoryUsage prometheus.Gauge
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		ExtractionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shortvid_extractions_total",
				Help: "Total number of extraction attempts",
			},
			[]string{"platform"},
		),

		ExtractionsSuccess: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shortvid_extractions_success_total",
				Help: "Total number of successful extractions",
			},
			[]string{"platform", "source"},
		),

		ExtractionsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shortvid_extractions_failed_total",
				Help: "Total number of failed extractions",
			},
			[]string{"platform", "kind"},
		),

		ExtractionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shortvid_extraction_duration_seconds",
				Help:    "Time spent resolving video metadata",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"platform"},
		),

		ResolutionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shortvid_resolutions_total",
				Help: "Total number of share-link resolutions",
			},
			[]string{"platform"},
		),

		ResolutionStages: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shortvid_resolution_stage_total",
				Help: "Which resolution stage produced the result",
			},
			[]string{"platform", "stage"},
		),

		DownloadsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shortvid_downloads_total",
				Help: "Total number of download attempts",
			},
			[]string{"platform"},
		),

		DownloadsFailed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shortvid_downloads_failed_total",
				Help: "Total number of failed downloads",
			},
			[]string{"platform", "kind"},
		),

		DownloadSize: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shortvid_download_size_bytes",
				Help:    "Size of downloaded videos",
				Buckets: []float64{1e6, 1e7, 5e7, 1e8, 5e8, 1e9},
			},
			[]string{"platform"},
		),

		ActiveDownloads: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "shortvid_active_downloads",
			Help: "Number of active downloads",
		}),

		HTTPRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shortvid_http_requests_total",
				Help: "Total HTTP API requests",
			},
			[]string{"method", "path", "status"},
		),

		HTTPDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shortvid_http_request_duration_seconds",
				Help:    "Time spent serving HTTP API requests",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			},
			[]string{"method", "path"},
		),

		Goroutines: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "shortvid_goroutines",
			Help: "Number of goroutines",
		}),

		MemoryUsage: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "shortvid_memory_usage_bytes",
			Help: "Memory usage in bytes",
		}),
	}
}

// Monitor represents the monitoring system
type Monitor struct {
	metrics  *Metrics
	logger   zerolog.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewMonitor creates a new monitor instance
func NewMonitor() *Monitor {
	return &Monitor{
		metrics:  NewMetrics(),
		logger:   zerolog.New(os.Stdout).With().Timestamp().Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start starts the periodic system-metric collection
func (m *Monitor) Start() {
	m.wg.Add(1)
	go m.collectSystemMetrics()

	m.logger.Info().Msg("Monitoring system started")
}

// Stop stops the monitoring system
func (m *Monitor) Stop() {
	close(m.stopChan)
	m.wg.Wait()

	m.logger.Info().Msg("Monitoring system stopped")
}

func (m *Monitor) collectSystemMetrics() {
	defer m.wg.Done()

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.metrics.Goroutines.Set(float64(runtime.NumGoroutine()))

			var memStats runtime.MemStats
			runtime.ReadMemStats(&memStats)
			m.metrics.MemoryUsage.Set(float64(memStats.Alloc))

		case <-m.stopChan:
			return
		}
	}
}

// RecordExtraction records one extraction outcome
func (m *Monitor) RecordExtraction(platform models.Platform, result *models.ExtractionResult, err error, duration time.Duration) {
	p := string(platform)
	m.metrics.ExtractionsTotal.WithLabelValues(p).Inc()
	m.metrics.ExtractionDuration.WithLabelValues(p).Observe(duration.Seconds())

	if err != nil {
		kind := string(models.KindOf(err))
		if kind == "" {
			kind = "UNKNOWN"
		}
		m.metrics.ExtractionsFailed.WithLabelValues(p, kind).Inc()
		return
	}
	if result != nil {
		m.metrics.ExtractionsSuccess.WithLabelValues(p, string(result.Source.Kind)).Inc()
	}
}

// RecordResolution records a share-link resolution attempt and the stage
// that settled it
func (m *Monitor) RecordResolution(platform models.Platform, stage string) {
	m.metrics.ResolutionsTotal.WithLabelValues(string(platform)).Inc()
	if stage != "" {
		m.metrics.ResolutionStages.WithLabelValues(string(platform), stage).Inc()
	}
}

// RecordDownloadStart records the start of a download
func (m *Monitor) RecordDownloadStart(platform models.Platform) {
	m.metrics.DownloadsTotal.WithLabelValues(string(platform)).Inc()
	m.metrics.ActiveDownloads.Inc()
}

// RecordDownloadDone records a finished download, successful or not
func (m *Monitor) RecordDownloadDone(platform models.Platform, size int64, err error) {
	m.metrics.ActiveDownloads.Dec()
	if err != nil {
		kind := string(models.KindOf(err))
		if kind == "" {
			kind = "UNKNOWN"
		}
		m.metrics.DownloadsFailed.WithLabelValues(string(platform), kind).Inc()
		return
	}
	m.metrics.DownloadSize.WithLabelValues(string(platform)).Observe(float64(size))
}

// RecordHTTPRequest records one served API request
func (m *Monitor) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.metrics.HTTPRequests.WithLabelValues(method, path, status).Inc()
	m.metrics.HTTPDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// GetMetrics returns all metrics
func (m *Monitor) GetMetrics() *Metrics {
	return m.metrics
}

// SetLogger sets the logger
func (m *Monitor) SetLogger(logger zerolog.Logger) {
	m.logger = logger
}

// HealthCheck returns basic runtime health figures
func (m *Monitor) HealthCheck() map[string]interface{} {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return map[string]interface{}{
		"goroutines":   runtime.NumGoroutine(),
		"memory_usage": memStats.Alloc,
		"memory_sys":   memStats.Sys,
		"gc_cycles":    memStats.NumGC,
	}
}
