package http

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics implements core.Metrics on Prometheus collectors.
type Metrics struct {
	PlaysTotal        *prometheus.CounterVec
	RequestsTotal     *prometheus.CounterVec
	BatchSize         prometheus.Histogram
	UserMessagesTotal *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
	IntentsTotal      *prometheus.CounterVec
	QueueLength       prometheus.Gauge
	ConnectedClients  prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		PlaysTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "muze_plays_total",
				Help: "Total number of play commands sent to the device",
			},
			[]string{"status"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "muze_requests_total",
				Help: "Total number of requests issued by the session",
			},
			[]string{"kind"},
		),
		BatchSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "muze_song_batch_size",
				Help:    "Number of tracks per recommendation batch",
				Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
			},
		),
		UserMessagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "muze_user_messages_total",
				Help: "Total number of messages surfaced to the listener",
			},
			[]string{"kind"},
		),
		ErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "muze_errors_total",
				Help: "Total number of errors",
			},
			[]string{"component", "type"},
		),
		IntentsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "muze_intents_total",
				Help: "Total number of intents received from presentation clients",
			},
			[]string{"action", "status"},
		),
		QueueLength: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "muze_queue_length",
				Help: "Current number of tracks waiting to be played",
			},
		),
		ConnectedClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "muze_connected_clients",
				Help: "Number of connected presentation clients",
			},
		),
	}

	registerer.MustRegister(
		metrics.PlaysTotal,
		metrics.RequestsTotal,
		metrics.BatchSize,
		metrics.UserMessagesTotal,
		metrics.ErrorsTotal,
		metrics.IntentsTotal,
		metrics.QueueLength,
		metrics.ConnectedClients,
	)

	return metrics
}

func (m *Metrics) RecordPlay(status string) {
	m.PlaysTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordRequest(kind string) {
	m.RequestsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordBatch(size int) {
	m.BatchSize.Observe(float64(size))
}

func (m *Metrics) RecordUserMessage(kind string) {
	m.UserMessagesTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

func (m *Metrics) RecordIntent(action, status string) {
	m.IntentsTotal.WithLabelValues(action, status).Inc()
}

func (m *Metrics) SetQueueLength(n int) {
	m.QueueLength.Set(float64(n))
}

func (m *Metrics) SetConnectedClients(n int) {
	m.ConnectedClients.Set(float64(n))
}

// RegisterSavedTracks exports the number of remembered playlist tracks.
func RegisterSavedTracks(registerer prometheus.Registerer, size func() int) prometheus.GaugeFunc {
	gauge := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "muze_saved_tracks",
			Help: "Number of tracks remembered as already in the playlist",
		},
		func() float64 { return float64(size()) },
	)
	registerer.MustRegister(gauge)
	return gauge
}
