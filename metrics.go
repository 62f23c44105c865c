package spdnet

import "sync/atomic"

// Metrics tracks node and protocol activity. A Context's driver/pool calls
// Increment* as frames and control messages move; collectors read via Get*.
type Metrics interface {
	IncrementFramesSent()
	IncrementFramesReceived()
	IncrementBytesSent(n int64)
	IncrementBytesReceived(n int64)
	IncrementRegister()
	IncrementUnregister()
	IncrementExpose()
	IncrementAlive()
	IncrementFramingErrors()

	GetFramesSent() int64
	GetFramesReceived() int64
	GetBytesSent() int64
	GetBytesReceived() int64
	GetRegisterCount() int64
	GetUnregisterCount() int64
	GetExposeCount() int64
	GetAliveCount() int64
	GetFramingErrorCount() int64
}

// DefaultMetrics implements Metrics with atomic counters.
type DefaultMetrics struct {
	framesSent      int64
	framesReceived  int64
	bytesSent       int64
	bytesReceived   int64
	registerCount   int64
	unregisterCount int64
	exposeCount     int64
	aliveCount      int64
	framingErrors   int64
}

// NewDefaultMetrics creates a new DefaultMetrics instance.
func NewDefaultMetrics() *DefaultMetrics { return &DefaultMetrics{} }

func (m *DefaultMetrics) IncrementFramesSent()     { atomic.AddInt64(&m.framesSent, 1) }
func (m *DefaultMetrics) IncrementFramesReceived() { atomic.AddInt64(&m.framesReceived, 1) }
func (m *DefaultMetrics) IncrementBytesSent(n int64) { atomic.AddInt64(&m.bytesSent, n) }
func (m *DefaultMetrics) IncrementBytesReceived(n int64) {
	atomic.AddInt64(&m.bytesReceived, n)
}
func (m *DefaultMetrics) IncrementRegister()       { atomic.AddInt64(&m.registerCount, 1) }
func (m *DefaultMetrics) IncrementUnregister()     { atomic.AddInt64(&m.unregisterCount, 1) }
func (m *DefaultMetrics) IncrementExpose()         { atomic.AddInt64(&m.exposeCount, 1) }
func (m *DefaultMetrics) IncrementAlive()          { atomic.AddInt64(&m.aliveCount, 1) }
func (m *DefaultMetrics) IncrementFramingErrors()  { atomic.AddInt64(&m.framingErrors, 1) }

func (m *DefaultMetrics) GetFramesSent() int64     { return atomic.LoadInt64(&m.framesSent) }
func (m *DefaultMetrics) GetFramesReceived() int64 { return atomic.LoadInt64(&m.framesReceived) }
func (m *DefaultMetrics) GetBytesSent() int64      { return atomic.LoadInt64(&m.bytesSent) }
func (m *DefaultMetrics) GetBytesReceived() int64  { return atomic.LoadInt64(&m.bytesReceived) }
func (m *DefaultMetrics) GetRegisterCount() int64  { return atomic.LoadInt64(&m.registerCount) }
func (m *DefaultMetrics) GetUnregisterCount() int64 {
	return atomic.LoadInt64(&m.unregisterCount)
}
func (m *DefaultMetrics) GetExposeCount() int64 { return atomic.LoadInt64(&m.exposeCount) }
func (m *DefaultMetrics) GetAliveCount() int64  { return atomic.LoadInt64(&m.aliveCount) }
func (m *DefaultMetrics) GetFramingErrorCount() int64 {
	return atomic.LoadInt64(&m.framingErrors)
}
