// Package metrics exposes the Prometheus collectors for the bot and the
// reward ledger. All collectors are registered via promauto at package
// init and served from the admin server's /metrics endpoint.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	botCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_commands_total",
			Help: "Total number of bot commands received labeled by command and status",
		},
		[]string{"command", "status"},
	)
	commandDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "command_duration_seconds",
			Help:    "Duration of bot commands in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"command"},
	)
	rewardOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reward_operations_total",
			Help: "Total number of ledger operations labeled by operation and status",
		},
		[]string{"operation", "status"},
	)
	rewardOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reward_operation_duration_seconds",
			Help:    "Duration of ledger operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors split by type and severity",
		},
		[]string{"type", "severity"},
	)
	broadcastMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_messages_total",
			Help: "Total number of broadcast deliveries labeled by status",
		},
		[]string{"status"},
	)
	totalUsers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "users_total",
			Help: "Current number of registered users",
		},
	)
	pendingWithdrawals = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pending_withdrawals",
			Help: "Current number of withdrawals awaiting an admin decision",
		},
	)
)

// RecordCommand increments command counters and records duration.
func RecordCommand(command, status string, duration time.Duration) {
	if command == "" {
		command = "unknown"
	}
	if status == "" {
		status = "unknown"
	}

	botCommandsTotal.WithLabelValues(command, status).Inc()
	commandDurationSeconds.WithLabelValues(command).Observe(duration.Seconds())
}

// RecordOperation tracks a ledger operation outcome and duration.
func RecordOperation(operation string, err error, duration time.Duration) {
	status := "ok"
	if err != nil {
		status = "error"
	}

	rewardOperationsTotal.WithLabelValues(operation, status).Inc()
	rewardOperationDurationSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordError increments error counters with metadata.
func RecordError(errType, severity string) {
	if errType == "" {
		errType = "unknown"
	}
	if severity == "" {
		severity = "unknown"
	}

	errorsTotal.WithLabelValues(errType, severity).Inc()
}

// RecordBroadcast tracks per-recipient broadcast outcomes.
func RecordBroadcast(sent, failed int) {
	broadcastMessagesTotal.WithLabelValues("sent").Add(float64(sent))
	broadcastMessagesTotal.WithLabelValues("failed").Add(float64(failed))
}

// StatsSource provides the aggregate counts the gauge collector polls.
type StatsSource interface {
	UserCount(ctx context.Context) (int, error)
	PendingWithdrawalCount(ctx context.Context) (int, error)
}

// StatsCollector periodically refreshes the ledger gauges.
type StatsCollector struct {
	source   StatsSource
	interval time.Duration
}

// NewStatsCollector builds a gauge collector bound to the provided source.
func NewStatsCollector(source StatsSource, interval time.Duration) *StatsCollector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &StatsCollector{source: source, interval: interval}
}

// Run polls the source until ctx is cancelled.
func (c *StatsCollector) Run(ctx context.Context) {
	if c == nil || c.source == nil {
		return
	}

	for {
		c.collect(ctx)

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.interval):
		}
	}
}

func (c *StatsCollector) collect(ctx context.Context) {
	if users, err := c.source.UserCount(ctx); err == nil {
		totalUsers.Set(float64(users))
	}
	if pending, err := c.source.PendingWithdrawalCount(ctx); err == nil {
		pendingWithdrawals.Set(float64(pending))
	}
}
