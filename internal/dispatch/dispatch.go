// Package dispatch routes incoming packets to the layer registered
// for their leading protocol byte, and implements the thin protocol-ID
// wrappers (user, transport, redirect, loopback, dup) that sit above
// the dispatcher.
package dispatch

import (
	"fmt"

	"github.com/isotel-go/isn-core/internal/layerstats"
)

// ProtocolID identifies the leading byte of a packet routed by the
// dispatcher.
type ProtocolID byte

const (
	Ping      ProtocolID = 0x00
	User1     ProtocolID = 0x01
	User15    ProtocolID = 0x0F
	TransLong ProtocolID = 0x7D
	// TransShort is the legacy 1-byte-counter transport variant. Only
	// the long variant is implemented as the forward transport
	// contract; this identifier is defined but nothing binds it, so the
	// Dispatcher treats a 0x7E byte like any other unbound byte (Other
	// receives it if bound, otherwise ErrUnbound).
	TransShort ProtocolID = 0x7E
	Message    ProtocolID = 0x7F
	FrameShortLo ProtocolID = 0x80
	FrameShortHi ProtocolID = 0xBF
	FrameWideLo  ProtocolID = 0xC0
	FrameWideHi  ProtocolID = 0xFF
)

// IsUser reports whether id is one of the 15 user protocol slots.
func IsUser(id ProtocolID) bool { return id >= User1 && id <= User15 }

// IsFrame reports whether id begins a short, long, or jumbo frame.
func IsFrame(id ProtocolID) bool { return id >= FrameShortLo }

// Receiver accepts a fully-dispatched packet payload and reports how
// many of its bytes it accepted — the same accepted/size contract
// Layer.Recv documents for the driver protocol, lifted to this
// package's push-style delivery so Dup (spec.md §4.4) can compare what
// its fanned-out targets each claimed. A Receiver that cannot fail
// partially (most of them) simply returns len(payload).
type Receiver interface {
	Deliver(payload []byte) (accepted int, err error)
}

// Prober is optionally implemented by a Sender to report how many
// bytes of send capacity are available right now without committing
// to them, the get_send_buf(dest=none) probe half of the driver
// contract (spec.md §4.1). A Sender that doesn't implement Prober is
// assumed to always have room.
type Prober interface {
	ProbeSendCapacity(size int) int
}

// binding is one entry in the dispatcher's ordered table.
type binding struct {
	match func(ProtocolID) bool
	recv  Receiver
	label string
}

// Dispatcher routes packets to receivers bound against an ordered
// list of protocol-ID predicates. The first matching binding wins;
// Other, if bound, matches anything no earlier binding claimed. It is
// held apart from the ordered slice, so the slice itself carries no
// end-of-list sentinel; Bindings lists both for diagnostics.
type Dispatcher struct {
	bindings []binding
	other    *binding
	stats    layerstats.Stats
}

// New creates an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{}
}

// Stats returns the dispatcher's own statistics record — every layer
// in the stack carries one (spec.md §3), and the dispatcher's
// rx_dropped is the counter for bytes that matched no binding at all.
func (d *Dispatcher) Stats() *layerstats.Stats { return &d.stats }

// Bind registers recv for packets whose leading byte equals id,
// appended to the end of the ordered list.
func (d *Dispatcher) Bind(id ProtocolID, recv Receiver) {
	d.bindings = append(d.bindings, binding{
		match: func(p ProtocolID) bool { return p == id },
		recv:  recv,
		label: fmt.Sprintf("id=0x%02x", byte(id)),
	})
}

// BindRange registers recv for every protocol byte in [lo, hi].
func (d *Dispatcher) BindRange(lo, hi ProtocolID, recv Receiver) {
	d.bindings = append(d.bindings, binding{
		match: func(p ProtocolID) bool { return p >= lo && p <= hi },
		recv:  recv,
		label: fmt.Sprintf("range=0x%02x-0x%02x", byte(lo), byte(hi)),
	})
}

// BindOther registers the catch-all fallback receiver (the OTHER
// sentinel), used for anything no earlier binding claims.
func (d *Dispatcher) BindOther(recv Receiver) {
	d.other = &binding{recv: recv, label: "other"}
}

// ErrUnbound is returned by Dispatch when no binding, including
// Other, claims the packet.
var ErrUnbound = fmt.Errorf("dispatch: no binding for protocol byte")

// Dispatch routes payload (whose first byte is id) to the first
// matching binding, falling back to Other. A matched binding's
// Receiver sees payload with the leading protocol byte already
// consumed — the same way the message layer's Deliver documents
// receiving "[F, body...]" with its 0x7F envelope byte stripped by
// the dispatcher, and the transport/user wrappers only ever see their
// own body past the identifying byte. Other, by contrast, is the
// catch-all for protocol space nothing else claimed, so it receives
// the full, unmodified payload: there is no known envelope layout to
// strip a byte from.
//
// Dispatch always returns the number of bytes consumed. If nothing
// matches, that is len(payload) (the bytes are dropped, never
// re-presented) and rx_dropped is incremented, per spec.md §4.3.
func (d *Dispatcher) Dispatch(id ProtocolID, payload []byte) (int, error) {
	for _, b := range d.bindings {
		if !b.match(id) {
			continue
		}
		n, err := b.recv.Deliver(payload[1:])
		if err != nil {
			return 0, err
		}
		d.stats.RecordRx()
		return n + 1, nil
	}
	if d.other != nil {
		n, err := d.other.recv.Deliver(payload)
		if err != nil {
			return 0, err
		}
		d.stats.RecordRx()
		return n, nil
	}
	d.stats.RxDropped.Add(1)
	return len(payload), ErrUnbound
}

// Bindings returns the ordered list of bound protocol labels, for
// diagnostics and tests.
func (d *Dispatcher) Bindings() []string {
	labels := make([]string, 0, len(d.bindings)+1)
	for _, b := range d.bindings {
		labels = append(labels, b.label)
	}
	if d.other != nil {
		labels = append(labels, d.other.label)
	}
	return labels
}
