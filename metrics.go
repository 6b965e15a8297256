package kozos

import (
	"sync/atomic"
	"time"
)

// LatencyBuckets are the dispatch-latency histogram buckets in nanoseconds:
// how long a syscall took from trap to the caller's re-attach. Covers 1us
// to 10ms with logarithmic spacing — the kernel's dispatch path is expected
// to be orders of magnitude faster than a disk I/O path, so the buckets sit
// three decades lower than the teacher's own histogram.
var LatencyBuckets = []uint64{
	1_000,      // 1us
	10_000,     // 10us
	100_000,    // 100us
	1_000_000,  // 1ms
	10_000_000, // 10ms
}

const numLatencyBuckets = 5

// Metrics tracks kernel operational statistics: per-tag syscall counts,
// thread lifecycle events, and dispatch latency.
type Metrics struct {
	// Per-request-tag counters, indexed by syscall.Tag.
	RunCalls     atomic.Uint64
	ExitCalls    atomic.Uint64
	WaitCalls    atomic.Uint64
	SleepCalls   atomic.Uint64
	WakeupCalls  atomic.Uint64
	GetIDCalls   atomic.Uint64
	ChPriCalls   atomic.Uint64
	KMallocCalls atomic.Uint64
	KMFreeCalls  atomic.Uint64
	SendCalls    atomic.Uint64
	RecvCalls    atomic.Uint64
	SetIntrCalls atomic.Uint64

	// Lifecycle and failure counters.
	ThreadFaults  atomic.Uint64 // softerr terminations
	TableFullHits atomic.Uint64 // RUN with no free slot
	OOMHits       atomic.Uint64 // KMALLOC returning nil
	SystemDowns   atomic.Uint64 // should only ever be 0 or 1

	// Ready-queue depth samples, taken at each redispatch.
	ReadyDepthTotal atomic.Uint64
	ReadyDepthCount atomic.Uint64
	MaxReadyDepth   atomic.Uint32

	// Dispatch latency (trap receipt to redispatch).
	TotalLatencyNs atomic.Uint64
	DispatchCount  atomic.Uint64
	LatencyBuckets [numLatencyBuckets]atomic.Uint64

	StartTime atomic.Int64
}

// NewMetrics creates a zeroed Metrics with StartTime set to now.
func NewMetrics() *Metrics {
	m := &Metrics{}
	m.StartTime.Store(time.Now().UnixNano())
	return m
}

// RecordDispatch records one syscall dispatch's latency.
func (m *Metrics) RecordDispatch(latencyNs uint64) {
	m.TotalLatencyNs.Add(latencyNs)
	m.DispatchCount.Add(1)
	for i, bucket := range LatencyBuckets {
		if latencyNs <= bucket {
			m.LatencyBuckets[i].Add(1)
		}
	}
}

// RecordReadyDepth records a ready-queue population sample.
func (m *Metrics) RecordReadyDepth(depth int) {
	m.ReadyDepthTotal.Add(uint64(depth))
	m.ReadyDepthCount.Add(1)
	for {
		current := m.MaxReadyDepth.Load()
		if uint32(depth) <= current {
			break
		}
		if m.MaxReadyDepth.CompareAndSwap(current, uint32(depth)) {
			break
		}
	}
}

// countTag increments the counter for tag.
func (m *Metrics) countTag(tag int) {
	switch tag {
	case 0:
		m.RunCalls.Add(1)
	case 1:
		m.ExitCalls.Add(1)
	case 2:
		m.WaitCalls.Add(1)
	case 3:
		m.SleepCalls.Add(1)
	case 4:
		m.WakeupCalls.Add(1)
	case 5:
		m.GetIDCalls.Add(1)
	case 6:
		m.ChPriCalls.Add(1)
	case 7:
		m.KMallocCalls.Add(1)
	case 8:
		m.KMFreeCalls.Add(1)
	case 9:
		m.SendCalls.Add(1)
	case 10:
		m.RecvCalls.Add(1)
	case 11:
		m.SetIntrCalls.Add(1)
	}
}

// MetricsSnapshot is a point-in-time copy of Metrics, safe to read without
// further synchronization.
type MetricsSnapshot struct {
	RunCalls, ExitCalls, WaitCalls, SleepCalls, WakeupCalls           uint64
	GetIDCalls, ChPriCalls, KMallocCalls, KMFreeCalls                 uint64
	SendCalls, RecvCalls, SetIntrCalls                                uint64
	ThreadFaults, TableFullHits, OOMHits, SystemDowns                 uint64
	AvgReadyDepth                                                     float64
	MaxReadyDepth                                                     uint32
	AvgLatencyNs                                                      uint64
	UptimeNs                                                          uint64
	LatencyHistogram                                                  [numLatencyBuckets]uint64
}

// Snapshot takes a point-in-time copy of m.
func (m *Metrics) Snapshot() MetricsSnapshot {
	snap := MetricsSnapshot{
		RunCalls:      m.RunCalls.Load(),
		ExitCalls:     m.ExitCalls.Load(),
		WaitCalls:     m.WaitCalls.Load(),
		SleepCalls:    m.SleepCalls.Load(),
		WakeupCalls:   m.WakeupCalls.Load(),
		GetIDCalls:    m.GetIDCalls.Load(),
		ChPriCalls:    m.ChPriCalls.Load(),
		KMallocCalls:  m.KMallocCalls.Load(),
		KMFreeCalls:   m.KMFreeCalls.Load(),
		SendCalls:     m.SendCalls.Load(),
		RecvCalls:     m.RecvCalls.Load(),
		SetIntrCalls:  m.SetIntrCalls.Load(),
		ThreadFaults:  m.ThreadFaults.Load(),
		TableFullHits: m.TableFullHits.Load(),
		OOMHits:       m.OOMHits.Load(),
		SystemDowns:   m.SystemDowns.Load(),
		MaxReadyDepth: m.MaxReadyDepth.Load(),
	}

	depthTotal := m.ReadyDepthTotal.Load()
	depthCount := m.ReadyDepthCount.Load()
	if depthCount > 0 {
		snap.AvgReadyDepth = float64(depthTotal) / float64(depthCount)
	}

	totalLatency := m.TotalLatencyNs.Load()
	dispatchCount := m.DispatchCount.Load()
	if dispatchCount > 0 {
		snap.AvgLatencyNs = totalLatency / dispatchCount
	}

	snap.UptimeNs = uint64(time.Now().UnixNano() - m.StartTime.Load())

	for i := 0; i < numLatencyBuckets; i++ {
		snap.LatencyHistogram[i] = m.LatencyBuckets[i].Load()
	}

	return snap
}

// Observer allows pluggable metrics collection, e.g. forwarding into an
// external monitoring system instead of (or alongside) the built-in
// Metrics.
type Observer interface {
	ObserveDispatch(tag int, latencyNs uint64)
	ObserveThreadFault(threadID ThreadID)
	ObserveSystemDown(reason string)
}

// NoOpObserver discards every observation.
type NoOpObserver struct{}

func (NoOpObserver) ObserveDispatch(int, uint64)        {}
func (NoOpObserver) ObserveThreadFault(ThreadID)        {}
func (NoOpObserver) ObserveSystemDown(string)            {}

// MetricsObserver implements Observer by recording into a Metrics.
type MetricsObserver struct {
	metrics *Metrics
}

// NewMetricsObserver builds an Observer backed by m.
func NewMetricsObserver(m *Metrics) *MetricsObserver {
	return &MetricsObserver{metrics: m}
}

func (o *MetricsObserver) ObserveDispatch(tag int, latencyNs uint64) {
	o.metrics.countTag(tag)
	o.metrics.RecordDispatch(latencyNs)
}

func (o *MetricsObserver) ObserveThreadFault(ThreadID) {
	o.metrics.ThreadFaults.Add(1)
}

func (o *MetricsObserver) ObserveSystemDown(string) {
	o.metrics.SystemDowns.Add(1)
}

var _ Observer = (*MetricsObserver)(nil)
var _ Observer = (*NoOpObserver)(nil)
