// Package metrics exposes Prometheus metrics for segmentation, admission
// loading and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	SegmentationsTotal   *prometheus.CounterVec
	SectionsTotal        *prometheus.CounterVec
	FallbacksTotal       *prometheus.CounterVec
	SegmentationDuration *prometheus.HistogramVec

	AdmissionLoadsTotal *prometheus.CounterVec
	AdmissionsPrimed    prometheus.Counter
	NotesPrimed         prometheus.Counter

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates the metrics on a fresh registry that also carries the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		SegmentationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mimic_segmentations_total",
			Help: "Number of notes segmented",
		}, []string{"category"}),
		SectionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mimic_sections_total",
			Help: "Number of sections produced by segmentation",
		}, []string{"category"}),
		FallbacksTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mimic_segmentation_fallbacks_total",
			Help: "Number of notes that fell back to a single whole note section",
		}, []string{"category"}),
		SegmentationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mimic_segmentation_duration_seconds",
			Help:    "Time spent segmenting a note",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		}, []string{"category"}),
		AdmissionLoadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mimic_admission_loads_total",
			Help: "Number of hospital admissions loaded by source",
		}, []string{"source"}),
		AdmissionsPrimed: f.NewCounter(prometheus.CounterOpts{
			Name: "mimic_admissions_primed_total",
			Help: "Number of admissions whose documents were primed",
		}),
		NotesPrimed: f.NewCounter(prometheus.CounterOpts{
			Name: "mimic_notes_primed_total",
			Help: "Number of note documents parsed while priming",
		}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mimic_http_requests_total",
			Help: "Number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mimic_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveSegmentation records one segmentation of a note.
func (m *Metrics) ObserveSegmentation(category string, sections int, fallback bool, elapsed time.Duration) {
	m.SegmentationsTotal.WithLabelValues(category).Inc()
	m.SectionsTotal.WithLabelValues(category).Add(float64(sections))
	if fallback {
		m.FallbacksTotal.WithLabelValues(category).Inc()
	}
	m.SegmentationDuration.WithLabelValues(category).Observe(elapsed.Seconds())
}

// ObserveAdmissionLoad records where an admission was loaded from, either
// "cache" or "db".
func (m *Metrics) ObserveAdmissionLoad(source string) {
	m.AdmissionLoadsTotal.WithLabelValues(source).Inc()
}

// ObservePrime records one primed admission and its notes.
func (m *Metrics) ObservePrime(notes int) {
	m.AdmissionsPrimed.Inc()
	m.NotesPrimed.Add(float64(notes))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware counts requests and their latency by route template.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()
			m.HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
