package isn

import "github.com/isotel-go/isn-core/internal/layerstats"

// Stats is the per-layer statistics record every layer in the stack
// carries. It is a type alias over internal/layerstats.Stats so that
// internal/dispatch's bindings (Dispatcher, User, Transport, Redirect,
// Dup) can carry and expose the exact same record type without isn
// and internal/dispatch forming an import cycle.
type Stats = layerstats.Stats

// StatsSnapshot is a point-in-time, non-atomic copy of Stats.
type StatsSnapshot = layerstats.StatsSnapshot

// Observer receives side-channel notifications as a layer moves
// bytes, scoped to the four driver verbs (get_send_buf/send/free/recv)
// instead of block I/O.
type Observer interface {
	ObserveSend(layer string, n int)
	ObserveRecv(layer string, n int)
	ObserveDrop(layer string, reason Code)
}

// NoOpObserver discards every observation. It is the default Observer
// for a Stack that was not given one explicitly.
type NoOpObserver struct{}

func (NoOpObserver) ObserveSend(string, int)  {}
func (NoOpObserver) ObserveRecv(string, int)  {}
func (NoOpObserver) ObserveDrop(string, Code) {}

var _ Observer = NoOpObserver{}
