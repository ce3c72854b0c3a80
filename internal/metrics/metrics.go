package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the market data client.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	MessagesTotal     *prometheus.CounterVec
	ParseErrorsTotal  *prometheus.CounterVec
	UnmatchedTotal    *prometheus.CounterVec
	RequestsTotal     *prometheus.CounterVec
	RequestLatencyMs  *prometheus.HistogramVec
	DiffsTotal        *prometheus.CounterVec
	ResyncsTotal      *prometheus.CounterVec
	SnapshotFetches   *prometheus.CounterVec
	PendingDiffs      *prometheus.GaugeVec
	BookUpdateID      *prometheus.GaugeVec
	TradesTotal       *prometheus.CounterVec
	SinkErrorsTotal   *prometheus.CounterVec
	ReconnectsTotal   *prometheus.CounterVec
	EventLagMs        *prometheus.HistogramVec
	SubscribedStreams prometheus.Gauge
}

// New creates and registers all metrics on reg. Pass prometheus.DefaultRegisterer
// in the process and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MessagesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wsbook_messages_total",
			Help: "Inbound WebSocket messages by socket and kind",
		}, []string{"socket", "kind"}),

		ParseErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wsbook_parse_errors_total",
			Help: "Payloads dropped because they could not be decoded",
		}, []string{"component"}),

		UnmatchedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wsbook_unmatched_total",
			Help: "Responses without a pending request and pushes without a handler",
		}, []string{"kind"}),

		RequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wsbook_requests_total",
			Help: "Correlated control requests by method and outcome",
		}, []string{"method", "outcome"}),

		RequestLatencyMs: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wsbook_request_latency_ms",
			Help:    "Round trip of correlated control requests in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"method"}),

		DiffsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wsbook_depth_diffs_total",
			Help: "Depth diffs by market and what the synchronizer did with them",
		}, []string{"market", "result"}),

		ResyncsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wsbook_resyncs_total",
			Help: "Order book resets back to uninitialized",
		}, []string{"market", "reason"}),

		SnapshotFetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wsbook_snapshot_fetches_total",
			Help: "Depth snapshot fetches by market and outcome",
		}, []string{"market", "outcome"}),

		PendingDiffs: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wsbook_pending_diffs",
			Help: "Diffs buffered while a snapshot is outstanding",
		}, []string{"market"}),

		BookUpdateID: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wsbook_book_update_id",
			Help: "Last applied update id of the local order book",
		}, []string{"market"}),

		TradesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wsbook_trades_total",
			Help: "Normalized trades published",
		}, []string{"market"}),

		SinkErrorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wsbook_sink_errors_total",
			Help: "Failed writes to downstream sinks",
		}, []string{"sink"}),

		ReconnectsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "wsbook_reconnects_total",
			Help: "Successful WebSocket reconnects",
		}, []string{"socket"}),

		EventLagMs: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "wsbook_event_lag_ms",
			Help:    "Time between venue event time and local processing in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		}, []string{"stream"}),

		SubscribedStreams: f.NewGauge(prometheus.GaugeOpts{
			Name: "wsbook_subscribed_streams",
			Help: "Streams currently registered on the stream socket",
		}),
	}
}

func (m *Metrics) RecordMessage(socket, kind string) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(socket, kind).Inc()
}

func (m *Metrics) RecordParseError(component string) {
	if m == nil {
		return
	}
	m.ParseErrorsTotal.WithLabelValues(component).Inc()
}

func (m *Metrics) RecordUnmatched(kind string) {
	if m == nil {
		return
	}
	m.UnmatchedTotal.WithLabelValues(kind).Inc()
}

// RecordRequest counts a finished request and observes its latency.
func (m *Metrics) RecordRequest(method, outcome string, latencyMs float64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, outcome).Inc()
	m.RequestLatencyMs.WithLabelValues(method).Observe(latencyMs)
}

func (m *Metrics) RecordDiff(market, result string) {
	if m == nil {
		return
	}
	m.DiffsTotal.WithLabelValues(market, result).Inc()
}

func (m *Metrics) RecordResync(market, reason string) {
	if m == nil {
		return
	}
	m.ResyncsTotal.WithLabelValues(market, reason).Inc()
}

func (m *Metrics) RecordSnapshotFetch(market, outcome string) {
	if m == nil {
		return
	}
	m.SnapshotFetches.WithLabelValues(market, outcome).Inc()
}

func (m *Metrics) SetPendingDiffs(market string, n int) {
	if m == nil {
		return
	}
	m.PendingDiffs.WithLabelValues(market).Set(float64(n))
}

func (m *Metrics) SetBookUpdateID(market string, id int64) {
	if m == nil {
		return
	}
	m.BookUpdateID.WithLabelValues(market).Set(float64(id))
}

func (m *Metrics) RecordTrade(market string) {
	if m == nil {
		return
	}
	m.TradesTotal.WithLabelValues(market).Inc()
}

func (m *Metrics) RecordSinkError(sink string) {
	if m == nil {
		return
	}
	m.SinkErrorsTotal.WithLabelValues(sink).Inc()
}

func (m *Metrics) RecordReconnect(socket string) {
	if m == nil {
		return
	}
	m.ReconnectsTotal.WithLabelValues(socket).Inc()
}

func (m *Metrics) RecordEventLag(stream string, lagMs float64) {
	if m == nil {
		return
	}
	m.EventLagMs.WithLabelValues(stream).Observe(lagMs)
}

func (m *Metrics) SetSubscribedStreams(n int) {
	if m == nil {
		return
	}
	m.SubscribedStreams.Set(float64(n))
}
