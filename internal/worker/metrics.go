package worker

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry             *prometheus.Registry
	jobsTotal            *prometheus.CounterVec
	jobDuration          *prometheus.HistogramVec
	activeJobs           prometheus.Gauge
	framesPublishedTotal prometheus.Counter
	repairTierTotal      *prometheus.CounterVec
	matteTierTotal       *prometheus.CounterVec
	pixelsProcessedTotal prometheus.Counter
	computeTimeMSTotal   prometheus.Counter
}

func newMetrics() *metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &metrics{
		registry: registry,
		jobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "holoflow_worker_restorations_total",
			Help: "Total worker restorations by source type and final status.",
		}, []string{"source_type", "status"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "holoflow_worker_restoration_duration_seconds",
			Help:    "Total processing duration for each restoration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"source_type", "status"}),
		activeJobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "holoflow_worker_active_restorations",
			Help: "Current number of restorations being processed.",
		}),
		framesPublishedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holoflow_worker_frames_published_total",
			Help: "Total hologram frames published to the display slot.",
		}),
		repairTierTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "holoflow_worker_repair_tier_total",
			Help: "Repair outcomes by tier, surfacing how often fallbacks fire.",
		}, []string{"tier"}),
		matteTierTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "holoflow_worker_matte_tier_total",
			Help: "Background-matting outcomes by tier.",
		}, []string{"tier"}),
		pixelsProcessedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holoflow_usage_pixels_processed_total",
			Help: "Total pixels processed across all successful restorations.",
		}),
		computeTimeMSTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holoflow_usage_compute_time_ms_total",
			Help: "Total compute time in milliseconds across successful restorations.",
		}),
	}

	registry.MustRegister(
		m.jobsTotal,
		m.jobDuration,
		m.activeJobs,
		m.framesPublishedTotal,
		m.repairTierTotal,
		m.matteTierTotal,
		m.pixelsProcessedTotal,
		m.computeTimeMSTotal,
	)
	return m
}

func (m *metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
