package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	updatesMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geocode_bot_updates_total",
		Help: "The total number of updates received, by delivery source",
	}, []string{"source"})
	duplicateLocationsMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "geocode_bot_duplicate_locations_total",
		Help: "The total number of location messages suppressed as duplicates",
	})
	repliesMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "geocode_bot_replies_total",
		Help: "The total number of replies, by delivery method (reply, answer, failed)",
	}, []string{"method"})
	dedupCacheSizeMetric = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "geocode_bot_dedup_cache_size",
		Help: "The current number of message keys remembered by the dedup cache",
	})
)
