package reactor

import "sync/atomic"

// Metrics carries the driver's counters. FdCount moves both ways as
// resources come and go; ReadyCount only ever grows.
type Metrics struct {
	fdCount    atomic.Int64
	readyCount atomic.Int64
}

func (m *Metrics) incrFdCount() {
	m.fdCount.Add(1)
}

func (m *Metrics) decrFdCount() {
	m.fdCount.Add(-1)
}

func (m *Metrics) incrReadyCountBy(n int64) {
	m.readyCount.Add(n)
}

// FdCount is the number of currently registered resources.
func (m *Metrics) FdCount() int64 {
	return m.fdCount.Load()
}

// ReadyCount is the total number of non-sentinel events dispatched since the
// driver was created.
func (m *Metrics) ReadyCount() int64 {
	return m.readyCount.Load()
}
