package metrics

import (
	"context"
	"time"

	"github.com/SWAYAM31220/lootspy/internal/log"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type RelayMetrics struct {
	RunsTotal           *prometheus.CounterVec
	RunDuration         *prometheus.HistogramVec
	RateLimitedTotal    prometheus.Counter
	ReleaseFailureTotal prometheus.Counter
	StoreHealth         *prometheus.GaugeVec
	logger              *log.Logger
}

// NewRelayMetrics registers the relay collectors with reg.
func NewRelayMetrics(reg prometheus.Registerer, logger *log.Logger) *RelayMetrics {
	m := &RelayMetrics{
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lootspy_runs_total",
				Help: "Total number of pipeline runs by outcome",
			},
			[]string{"outcome", "origin"},
		),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lootspy_run_duration_seconds",
				Help:    "Time from receipt to terminal state per run",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			},
			[]string{"outcome"},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lootspy_rate_limited_total",
				Help: "Total number of rate limit answers from the chat network",
			},
		),
		ReleaseFailureTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lootspy_release_failures_total",
				Help: "Reservations that could not be released after a failed relay",
			},
		),
		StoreHealth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "lootspy_store_health",
				Help: "Health status of the reservation store (1 = healthy, 0 = unhealthy)",
			},
			[]string{"driver"},
		),
		logger: logger,
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.RateLimitedTotal,
		m.ReleaseFailureTotal,
		m.StoreHealth,
	)
	return m
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// WatchStore pings the store every interval and records the result until ctx is done.
func (m *RelayMetrics) WatchStore(ctx context.Context, store Pinger, driver string, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		m.probe(ctx, store, driver)
		select {
		case <-ctx.Done():
			m.logger.Info("Store health collection shutting down")
			return
		case <-ticker.C:
		}
	}
}

func (m *RelayMetrics) probe(ctx context.Context, store Pinger, driver string) {
	if err := store.Ping(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		m.StoreHealth.WithLabelValues(driver).Set(0)
		m.logger.Error("Reservation store unhealthy", zap.String("driver", driver), zap.Error(err))
		return
	}
	m.StoreHealth.WithLabelValues(driver).Set(1)
}
