package broadcast

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	// Values is the number of values recorded by the node.
	Values prometheus.Gauge

	// EnvelopesInbound is the total number of processed envelopes labelled
	// by message type.
	EnvelopesInbound *prometheus.CounterVec

	// GossipOutbound is the total number of gossip messages sent, including
	// retries.
	GossipOutbound prometheus.Counter

	// GossipValuesOutbound is the total number of values sent in gossip
	// messages.
	GossipValuesOutbound prometheus.Counter

	// GossipRetries is the total number of gossip messages resent after
	// the acknowledgement timed out.
	GossipRetries prometheus.Counter

	// GossipAbandoned is the total number of gossip deliveries given up on
	// after reaching the maximum number of attempts.
	GossipAbandoned prometheus.Counter

	// AckLatency is the time between sending a gossip message and receiving
	// its acknowledgement.
	AckLatency prometheus.Histogram

	// AcksDiscarded is the total number of acknowledgements received outside
	// of a matching wait, such as late acknowledgements for retried gossip.
	AcksDiscarded prometheus.Counter

	// EnvelopesDeferred is the total number of envelopes deferred while
	// waiting for an acknowledgement.
	EnvelopesDeferred prometheus.Counter

	// AntiEntropyRounds is the total number of anti-entropy rounds.
	AntiEntropyRounds prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		Values: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "fanout",
				Subsystem: "broadcast",
				Name:      "values",
				Help:      "Number of values recorded",
			},
		),
		EnvelopesInbound: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fanout",
				Subsystem: "broadcast",
				Name:      "envelopes_inbound_total",
				Help:      "Total number of processed envelopes",
			},
			[]string{"type"},
		),
		GossipOutbound: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "fanout",
				Subsystem: "broadcast",
				Name:      "gossip_outbound_total",
				Help:      "Total number of gossip messages sent",
			},
		),
		GossipValuesOutbound: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "fanout",
				Subsystem: "broadcast",
				Name:      "gossip_values_outbound_total",
				Help:      "Total number of values sent in gossip messages",
			},
		),
		GossipRetries: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "fanout",
				Subsystem: "broadcast",
				Name:      "gossip_retries_total",
				Help:      "Total number of gossip messages resent after a timeout",
			},
		),
		GossipAbandoned: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "fanout",
				Subsystem: "broadcast",
				Name:      "gossip_abandoned_total",
				Help:      "Total number of gossip deliveries given up on",
			},
		),
		AckLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "fanout",
				Subsystem: "broadcast",
				Name:      "ack_latency_seconds",
				Help:      "Gossip acknowledgement latency",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
			},
		),
		AcksDiscarded: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "fanout",
				Subsystem: "broadcast",
				Name:      "acks_discarded_total",
				Help:      "Total number of acknowledgements without a matching wait",
			},
		),
		EnvelopesDeferred: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "fanout",
				Subsystem: "broadcast",
				Name:      "envelopes_deferred_total",
				Help:      "Total number of envelopes deferred while awaiting an acknowledgement",
			},
		),
		AntiEntropyRounds: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "fanout",
				Subsystem: "broadcast",
				Name:      "anti_entropy_rounds_total",
				Help:      "Total number of anti-entropy rounds",
			},
		),
	}
}

func (m *Metrics) Register(reg *prometheus.Registry) {
	reg.MustRegister(
		m.Values,
		m.EnvelopesInbound,
		m.GossipOutbound,
		m.GossipValuesOutbound,
		m.GossipRetries,
		m.GossipAbandoned,
		m.AckLatency,
		m.AcksDiscarded,
		m.EnvelopesDeferred,
		m.AntiEntropyRounds,
	)
}
