// Package layerstats holds the Stats record every layer in the stack
// carries, in a package the root isn package and internal/dispatch can
// both import without a cycle (isn imports internal/dispatch, so
// dispatch cannot import isn's own Stats definition back).
package layerstats

import "sync/atomic"

// Stats is the per-layer statistics record every layer in the stack
// carries, word-sized and lock-free the way the data model requires:
// counters only ever move forward under atomic.Add, never under a
// mutex.
type Stats struct {
	TxPackets atomic.Uint64
	TxCounter atomic.Uint32
	TxRetries atomic.Uint64
	TxDropped atomic.Uint64

	RxPackets atomic.Uint64
	RxCounter atomic.Uint32
	RxErrors  atomic.Uint64
	RxDropped atomic.Uint64
	RxRetries atomic.Uint64

	// DupErrors counts Dup deliveries where the fanned-out targets
	// disagreed on how many bytes they accepted.
	DupErrors atomic.Uint64
}

// StatsSnapshot is a point-in-time, non-atomic copy of Stats suitable
// for logging, exporting, or asserting against in tests.
type StatsSnapshot struct {
	TxPackets uint64
	TxCounter uint32
	TxRetries uint64
	TxDropped uint64
	RxPackets uint64
	RxCounter uint32
	RxErrors  uint64
	RxDropped uint64
	RxRetries uint64
	DupErrors uint64
}

// Snapshot reads every counter once and returns a plain value copy.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		TxPackets: s.TxPackets.Load(),
		TxCounter: s.TxCounter.Load(),
		TxRetries: s.TxRetries.Load(),
		TxDropped: s.TxDropped.Load(),
		RxPackets: s.RxPackets.Load(),
		RxCounter: s.RxCounter.Load(),
		RxErrors:  s.RxErrors.Load(),
		RxDropped: s.RxDropped.Load(),
		RxRetries: s.RxRetries.Load(),
		DupErrors: s.DupErrors.Load(),
	}
}

// RecordTx increments the tx packet count and rolling counter.
func (s *Stats) RecordTx() {
	s.TxPackets.Add(1)
	s.TxCounter.Add(1)
}

// RecordRx increments the rx packet count and rolling counter.
func (s *Stats) RecordRx() {
	s.RxPackets.Add(1)
	s.RxCounter.Add(1)
}
