package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Delivery metrics
	MessagesSent         *prometheus.CounterVec
	MessagesFailed       *prometheus.CounterVec
	MessageRetries       *prometheus.CounterVec
	FallbackSubstitution prometheus.Counter
	AdapterCallLatency   *prometheus.HistogramVec

	// Liveness metrics
	PingsSent      prometheus.Counter
	NoReplyMarked  prometheus.Counter
	RepliesHandled prometheus.Counter

	// Signal metrics
	SignalTransitions *prometheus.CounterVec

	// Dispatch metrics
	DispatchBatches   prometheus.Counter
	TokensDeactivated prometheus.Counter
}

// New creates and registers all application metrics
func New(namespace string) *Metrics {
	return &Metrics{
		MessagesSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_sent_total",
			Help:      "Total number of messages delivered per channel",
		}, []string{"channel"}),
		MessagesFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_failed_total",
			Help:      "Total number of messages that reached terminal failure per channel",
		}, []string{"channel"}),
		MessageRetries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "message_retry_attempts_total",
			Help:      "Total number of message retry attempts per channel",
		}, []string{"channel"}),
		FallbackSubstitution: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_substitutions_total",
			Help:      "Total number of mid-message channel fallback switches",
		}),
		AdapterCallLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "adapter_call_duration_seconds",
			Help:      "Time spent in channel adapter calls",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"channel"}),
		PingsSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "liveness_pings_sent_total",
			Help:      "Total number of liveness pings sent",
		}),
		NoReplyMarked: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "liveness_no_reply_marked_total",
			Help:      "Total number of hospitals demoted to no_reply",
		}),
		RepliesHandled: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "liveness_replies_handled_total",
			Help:      "Total number of inbound liveness replies processed",
		}),
		SignalTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "signal_transitions_total",
			Help:      "Total number of signal alert state transitions",
		}, []string{"transition"}),
		DispatchBatches: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_batches_total",
			Help:      "Total number of scheduled broadcasts dispatched",
		}),
		TokensDeactivated: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "push_tokens_deactivated_total",
			Help:      "Total number of dead push tokens pruned",
		}),
	}
}
