package fix

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the counters/gauges a Session and its MessageQueue
// publish. A nil *Metrics is valid everywhere it's used (all methods
// below are nil-receiver safe), so instrumentation is opt-in.
type Metrics struct {
	messagesSent     *prometheus.CounterVec
	messagesReceived *prometheus.CounterVec
	parseErrors      prometheus.Counter
	dataErrors       *prometheus.CounterVec
	queueDepth       *prometheus.GaugeVec
	heartbeatsMissed prometheus.Counter
	duplicates       *prometheus.CounterVec
	gaps             *prometheus.CounterVec
}

// NewMetrics registers a fresh set of FIX harness metrics against reg.
// Pass prometheus.NewRegistry() in tests to avoid collisions with the
// global default registerer across parallel test sessions.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		messagesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fixtest_messages_sent_total",
			Help: "Messages sent by session, labeled by MsgType.",
		}, []string{"session", "msg_type"}),
		messagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fixtest_messages_received_total",
			Help: "Messages received by session, labeled by MsgType.",
		}, []string{"session", "msg_type"}),
		parseErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "fixtest_parse_errors_total",
			Help: "Parser-level decode errors across all sessions.",
		}),
		dataErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fixtest_data_errors_total",
			Help: "Session-level validation failures, labeled by tag.",
		}, []string{"session", "tag"}),
		queueDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fixtest_queue_depth",
			Help: "Number of messages currently queued for a test thread.",
		}, []string{"session"}),
		heartbeatsMissed: factory.NewCounter(prometheus.CounterOpts{
			Name: "fixtest_heartbeats_missed_total",
			Help: "TestRequest timeouts across all sessions.",
		}),
		duplicates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fixtest_duplicate_seqno_total",
			Help: "Inbound messages whose MsgSeqNum was not greater than the last one seen, by session.",
		}, []string{"session"}),
		gaps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fixtest_seqno_gap_total",
			Help: "Inbound messages whose MsgSeqNum skipped ahead of the expected next value, by session.",
		}, []string{"session"}),
	}
}

func (m *Metrics) sent(session, msgType string) {
	if m == nil {
		return
	}
	m.messagesSent.WithLabelValues(session, msgType).Inc()
}

func (m *Metrics) received(session, msgType string) {
	if m == nil {
		return
	}
	m.messagesReceived.WithLabelValues(session, msgType).Inc()
}

func (m *Metrics) parseError() {
	if m == nil {
		return
	}
	m.parseErrors.Inc()
}

func (m *Metrics) dataError(session string, tag int) {
	if m == nil {
		return
	}
	m.dataErrors.WithLabelValues(session, strconv.Itoa(tag)).Inc()
}

func (m *Metrics) setQueueDepth(session string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(session).Set(float64(depth))
}

func (m *Metrics) heartbeatMissed() {
	if m == nil {
		return
	}
	m.heartbeatsMissed.Inc()
}

func (m *Metrics) duplicateSeqno(session string) {
	if m == nil {
		return
	}
	m.duplicates.WithLabelValues(session).Inc()
}

func (m *Metrics) seqnoGap(session string) {
	if m == nil {
		return
	}
	m.gaps.WithLabelValues(session).Inc()
}
