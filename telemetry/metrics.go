// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	StreamProbes     prometheus.Counter
	PollCycles       prometheus.Counter
	PollErrors       prometheus.Counter
	MessagesSeen     prometheus.Counter
	RepliesSent      prometheus.Counter
	RepliesFailed    prometheus.Counter
	RepliesThrottled prometheus.Counter
	QuotaRefusals    prometheus.Counter
	SpamDropped      prometheus.Counter

	// Histograms (seconds)
	PollDuration  prometheus.Observer
	ProbeDuration prometheus.Observer

	// Gauges
	QuotaUsedGauge      prometheus.Gauge
	SessionPhaseGauge   prometheus.Gauge // ordinal of the session phase, see session.Phase
	HourlyRepliesGauge  prometheus.Gauge
	ChatAttachedGauge   prometheus.Gauge // 1=attached,0=detached
	ConsecutiveErrGauge prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		StreamProbes = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_stream_probes_total", Help: "Number of live-stream probe attempts"})
		PollCycles = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_poll_cycles_total", Help: "Number of chat poll cycles attempted"})
		PollErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_poll_errors_total", Help: "Number of chat poll cycles that failed"})
		MessagesSeen = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_chat_messages_total", Help: "Number of chat messages received"})
		RepliesSent = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_replies_sent_total", Help: "Number of replies delivered to chat"})
		RepliesFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_replies_failed_total", Help: "Number of reply sends that failed"})
		RepliesThrottled = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_replies_throttled_total", Help: "Number of replies suppressed by the throttle"})
		QuotaRefusals = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_quota_refusals_total", Help: "Number of API calls refused by the quota ledger"})
		SpamDropped = promauto.NewCounter(prometheus.CounterOpts{Name: "bot_spam_dropped_total", Help: "Number of messages discarded as spam"})
		PollDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "bot_poll_duration_seconds", Help: "Chat poll cycle duration seconds", Buckets: prometheus.DefBuckets})
		ProbeDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "bot_probe_duration_seconds", Help: "Live-stream probe duration seconds", Buckets: prometheus.DefBuckets})
		QuotaUsedGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "bot_quota_units_used", Help: "API units charged against today's quota"})
		SessionPhaseGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "bot_session_phase", Help: "Current session phase ordinal (0=idle .. 6=stopped)"})
		HourlyRepliesGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "bot_replies_hourly_window", Help: "Replies sent within the trailing hour"})
		ChatAttachedGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "bot_chat_attached", Help: "Chat attachment status attached=1 detached=0"})
		ConsecutiveErrGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "bot_consecutive_errors", Help: "Consecutive transient poll failures"})
	})
}

// SetQuotaUsed records the units charged so far today.
func SetQuotaUsed(n int) {
	if QuotaUsedGauge != nil {
		QuotaUsedGauge.Set(float64(n))
	}
}

// SetSessionPhase records the session phase ordinal.
func SetSessionPhase(ordinal int) {
	if SessionPhaseGauge != nil {
		SessionPhaseGauge.Set(float64(ordinal))
	}
}

// SetHourlyReplies records the sliding-window reply count.
func SetHourlyReplies(n int) {
	if HourlyRepliesGauge != nil {
		HourlyRepliesGauge.Set(float64(n))
	}
}

// SetChatAttached sets the attachment gauge to 1 if attached else 0.
func SetChatAttached(attached bool) {
	if ChatAttachedGauge != nil {
		if attached {
			ChatAttachedGauge.Set(1)
		} else {
			ChatAttachedGauge.Set(0)
		}
	}
}

// SetConsecutiveErrors records the transient failure run length.
func SetConsecutiveErrors(n int) {
	if ConsecutiveErrGauge != nil {
		ConsecutiveErrGauge.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
