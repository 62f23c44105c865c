package spdnet

import "github.com/prometheus/client_golang/prometheus"

// PromMetrics implements Metrics on top of github.com/prometheus/client_golang
// so a pool driver can expose the same counters on a "/metrics" endpoint. It
// embeds DefaultMetrics so Get* readback keeps working in-process while
// Increment* also drives the exported prometheus.Counters.
type PromMetrics struct {
	DefaultMetrics

	framesSent      prometheus.Counter
	framesReceived  prometheus.Counter
	bytesSent       prometheus.Counter
	bytesReceived   prometheus.Counter
	registerCount   prometheus.Counter
	unregisterCount prometheus.Counter
	exposeCount     prometheus.Counter
	aliveCount      prometheus.Counter
	framingErrors   prometheus.Counter
}

// NewPromMetrics registers a new set of spdnet counters on reg. Pass
// prometheus.DefaultRegisterer for the global registry.
func NewPromMetrics(reg prometheus.Registerer) *PromMetrics {
	mk := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "spdnet",
			Name:      name,
			Help:      help,
		})
		reg.MustRegister(c)
		return c
	}
	return &PromMetrics{
		framesSent:      mk("frames_sent_total", "Frames written to the wire."),
		framesReceived:  mk("frames_received_total", "Frames read from the wire."),
		bytesSent:       mk("bytes_sent_total", "Payload bytes written to the wire."),
		bytesReceived:   mk("bytes_received_total", "Payload bytes read from the wire."),
		registerCount:   mk("register_total", "REGISTER messages sent."),
		unregisterCount: mk("unregister_total", "UNREGISTER messages sent."),
		exposeCount:     mk("expose_total", "EXPOSE messages sent."),
		aliveCount:      mk("alive_total", "ALIVE messages sent."),
		framingErrors:   mk("framing_errors_total", "Receives aborted by a framing error."),
	}
}

func (m *PromMetrics) IncrementFramesSent() {
	m.framesSent.Inc()
	m.DefaultMetrics.IncrementFramesSent()
}
func (m *PromMetrics) IncrementFramesReceived() {
	m.framesReceived.Inc()
	m.DefaultMetrics.IncrementFramesReceived()
}
func (m *PromMetrics) IncrementBytesSent(n int64) {
	m.bytesSent.Add(float64(n))
	m.DefaultMetrics.IncrementBytesSent(n)
}
func (m *PromMetrics) IncrementBytesReceived(n int64) {
	m.bytesReceived.Add(float64(n))
	m.DefaultMetrics.IncrementBytesReceived(n)
}
func (m *PromMetrics) IncrementRegister() {
	m.registerCount.Inc()
	m.DefaultMetrics.IncrementRegister()
}
func (m *PromMetrics) IncrementUnregister() {
	m.unregisterCount.Inc()
	m.DefaultMetrics.IncrementUnregister()
}
func (m *PromMetrics) IncrementExpose() {
	m.exposeCount.Inc()
	m.DefaultMetrics.IncrementExpose()
}
func (m *PromMetrics) IncrementAlive() {
	m.aliveCount.Inc()
	m.DefaultMetrics.IncrementAlive()
}
func (m *PromMetrics) IncrementFramingErrors() {
	m.framingErrors.Inc()
	m.DefaultMetrics.IncrementFramingErrors()
}
