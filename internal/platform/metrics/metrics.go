// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package metrics provides Prometheus instrumentation for the client core.
//
// Components depend on the small [Recorder] interface; [Nop] satisfies it for
// tests and for callers that do not care about metrics.
package metrics

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// Recorder is the instrumentation surface used by transport, session and cache.
type Recorder interface {
	RecordRequest(method string, statusCode int, duration time.Duration)
	RecordNetworkError(method string)
	RecordSessionTeardown(reason string)
	RecordCacheHit(kind string)
	RecordCacheMiss(kind string)
	RecordCacheFetchError(kind string)
	RecordInvalidation(count int)
}

// Collector is the Prometheus implementation of [Recorder].
type Collector struct {
	requests        *prometheus.CounterVec
	requestLatency  prometheus.Histogram
	networkErrors   *prometheus.CounterVec
	teardowns       *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	cacheFetchFails *prometheus.CounterVec
	invalidations   prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskdeck_http_requests_total",
			Help: "Outbound API requests by method and status class.",
		}, []string{"method", "status_class"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskdeck_http_request_duration_seconds",
			Help:    "Latency of outbound API requests.",
			Buckets: prometheus.DefBuckets,
		}),
		networkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskdeck_http_network_errors_total",
			Help: "Outbound API requests that never produced a response.",
		}, []string{"method"}),
		teardowns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskdeck_session_teardowns_total",
			Help: "Sessions cleared, by reason.",
		}, []string{"reason"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskdeck_cache_hits_total",
			Help: "Entity cache reads served from a FRESH entry.",
		}, []string{"kind"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskdeck_cache_misses_total",
			Help: "Entity cache reads that started a fetch.",
		}, []string{"kind"}),
		cacheFetchFails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskdeck_cache_fetch_errors_total",
			Help: "Entity cache fetches that failed.",
		}, []string{"kind"}),
		invalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskdeck_cache_invalidated_entries_total",
			Help: "Cache entries marked STALE by invalidation.",
		}),
	}

	reg.MustRegister(
		c.requests,
		c.requestLatency,
		c.networkErrors,
		c.teardowns,
		c.cacheHits,
		c.cacheMisses,
		c.cacheFetchFails,
		c.invalidations,
	)

	return c
}

// RecordRequest records a completed request.
func (c *Collector) RecordRequest(method string, statusCode int, duration time.Duration) {
	c.requests.WithLabelValues(method, StatusClass(statusCode)).Inc()
	c.requestLatency.Observe(duration.Seconds())
}

// RecordNetworkError records a request that failed before a response arrived.
func (c *Collector) RecordNetworkError(method string) {
	c.networkErrors.WithLabelValues(method).Inc()
}

// RecordSessionTeardown records a session being cleared.
func (c *Collector) RecordSessionTeardown(reason string) {
	c.teardowns.WithLabelValues(reason).Inc()
}

// RecordCacheHit records a read served from cache.
func (c *Collector) RecordCacheHit(kind string) {
	c.cacheHits.WithLabelValues(kind).Inc()
}

// RecordCacheMiss records a read that started a fetch.
func (c *Collector) RecordCacheMiss(kind string) {
	c.cacheMisses.WithLabelValues(kind).Inc()
}

// RecordCacheFetchError records a failed fetch.
func (c *Collector) RecordCacheFetchError(kind string) {
	c.cacheFetchFails.WithLabelValues(kind).Inc()
}

// RecordInvalidation records how many entries an invalidation touched.
func (c *Collector) RecordInvalidation(count int) {
	c.invalidations.Add(float64(count))
}

// StatusClass collapses a status code into "2xx", "4xx" and so on.
func StatusClass(statusCode int) string {
	if statusCode < 100 || statusCode > 599 {
		return "other"
	}
	return strconv.Itoa(statusCode/100) + "xx"
}

// # Exposition

// Handler returns an HTTP handler for Prometheus scraping.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// WriteText dumps every gathered family in the text exposition format.
func WriteText(w io.Writer, gatherer prometheus.Gatherer) error {
	families, err := gatherer.Gather()
	if err != nil {
		return fmt.Errorf("metrics_gather_failed: %w", err)
	}
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(w, family); err != nil {
			return fmt.Errorf("metrics_write_failed: %w", err)
		}
	}
	return nil
}

// # No-op

// Nop discards every observation.
type Nop struct{}

func (Nop) RecordRequest(string, int, time.Duration) {}
func (Nop) RecordNetworkError(string)                {}
func (Nop) RecordSessionTeardown(string)             {}
func (Nop) RecordCacheHit(string)                    {}
func (Nop) RecordCacheMiss(string)                   {}
func (Nop) RecordCacheFetchError(string)             {}
func (Nop) RecordInvalidation(int)                   {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
