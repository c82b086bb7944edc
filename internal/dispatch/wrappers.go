package dispatch

import (
	"encoding/binary"
	"fmt"

	"github.com/isotel-go/isn-core/internal/layerstats"
)

// Sender is the thin send-side counterpart to Receiver: something a
// wrapper layer can hand a fully protocol-tagged packet to, usually a
// frame or phy Layer's Send.
type Sender interface {
	Send(payload []byte) error
}

// User is a thin wrapper binding one of the 15 user protocol slots to
// an application-supplied handler, prefixing outgoing payloads with
// its protocol byte and stripping it (implicitly, via the dispatcher
// routing payload without the leading byte) on the way up.
type User struct {
	ID     ProtocolID
	Lower  Sender
	Handle func(payload []byte) error

	stats layerstats.Stats
}

// NewUser builds a User wrapper for protocol id, sending through
// lower and delivering received payloads to handle.
func NewUser(id ProtocolID, lower Sender, handle func([]byte) error) (*User, error) {
	if !IsUser(id) {
		return nil, fmt.Errorf("dispatch: 0x%02x is not a user protocol id", byte(id))
	}
	return &User{ID: id, Lower: lower, Handle: handle}, nil
}

// Stats returns this binding's statistics record.
func (u *User) Stats() *layerstats.Stats { return &u.stats }

func (u *User) Send(payload []byte) error {
	tagged := append([]byte{byte(u.ID)}, payload...)
	if err := u.Lower.Send(tagged); err != nil {
		return err
	}
	u.stats.RecordTx()
	return nil
}

func (u *User) Deliver(payload []byte) (int, error) {
	if u.Handle != nil {
		if err := u.Handle(payload); err != nil {
			return 0, err
		}
	}
	u.stats.RecordRx()
	return len(payload), nil
}

// Transport implements the forward transport contract named "long"
// in the design notes: a per-port monotonic 2-byte little-endian
// counter carried in a 4-byte envelope `[proto, port, ctr_lo, ctr_hi]`,
// bound to protocol id TransLong. The legacy 1-byte-counter variant
// (TransShort) is intentionally not implemented.
type Transport struct {
	Port    byte
	Lower   Sender
	Handle  func(payload []byte) error
	txCount uint16
	rxCount uint16
	rxSeen  bool
	rxGaps  uint64

	stats layerstats.Stats
}

// NewTransport builds a Transport wrapper for the given port, sending
// through lower and delivering reassembled payloads (with the
// envelope stripped) to handle.
func NewTransport(port byte, lower Sender, handle func([]byte) error) *Transport {
	return &Transport{Port: port, Lower: lower, Handle: handle}
}

// Stats returns this binding's statistics record.
func (t *Transport) Stats() *layerstats.Stats { return &t.stats }

func (t *Transport) Send(payload []byte) error {
	buf := make([]byte, 4+len(payload))
	buf[0] = byte(TransLong)
	buf[1] = t.Port
	binary.LittleEndian.PutUint16(buf[2:4], t.txCount)
	copy(buf[4:], payload)
	t.txCount++
	if err := t.Lower.Send(buf); err != nil {
		return err
	}
	t.stats.RecordTx()
	return nil
}

// Deliver strips the port and counter fields and forwards the
// payload to Handle. A gap in the counter (relative to the previously
// received value) is counted in RxGaps and in this binding's
// rx_dropped, but does not block delivery — the core provides no
// guaranteed delivery.
func (t *Transport) Deliver(payload []byte) (int, error) {
	if len(payload) < 3 {
		return 0, fmt.Errorf("dispatch: transport payload shorter than port+counter fields")
	}
	port := payload[0]
	counter := binary.LittleEndian.Uint16(payload[1:3])
	body := payload[3:]
	if port != t.Port {
		return 0, fmt.Errorf("dispatch: transport port mismatch: got %d want %d", port, t.Port)
	}
	if t.rxSeen && counter != t.rxCount+1 {
		t.rxGaps++
		t.stats.RxDropped.Add(1)
	}
	t.rxCount = counter
	t.rxSeen = true
	t.stats.RecordRx()
	if t.Handle != nil {
		if err := t.Handle(body); err != nil {
			return 0, err
		}
	}
	return len(payload), nil
}

// LastCounter returns the most recently received transport counter.
func (t *Transport) LastCounter() (uint16, bool) { return t.rxCount, t.rxSeen }

// RxGaps returns the number of detected counter discontinuities.
func (t *Transport) RxGaps() uint64 { return t.rxGaps }

// Redirect forwards every packet delivered to it through the
// get_send_buf/send capacity contract to another Sender, the way a
// gateway stitches two bindings together (e.g. relaying a user
// protocol between two stacked dispatchers). If to implements Prober,
// Redirect probes it first: a Prober reporting zero capacity refuses
// the packet outright; one reporting a partial grant either forwards
// the fragment (allowFragment) or refuses and drops it — both refusal
// paths count tx_retries (spec.md §4.4). A Sender with no Prober is
// assumed to always have room and is forwarded to unconditionally.
//
// "Redirect to self" (spec.md §4.4) has no separate sentinel value:
// the caller models it by constructing Redirect/Loopback with the
// same Sender it itself uses to reach this binding, so the forwarded
// packet loops back down the path it arrived on. NewLoopback below is
// exactly this: a named constructor for that case.
type Redirect struct {
	to            Sender
	allowFragment bool
	stats         layerstats.Stats
}

// NewRedirect builds a Redirect to to that refuses outright (tx_retries++)
// whenever to cannot grant the full packet size.
func NewRedirect(to Sender) *Redirect { return &Redirect{to: to} }

// NewFragmentingRedirect builds a Redirect to to that, when to can
// only grant part of the requested size, forwards that truncated
// fragment rather than refusing the whole packet.
func NewFragmentingRedirect(to Sender) *Redirect {
	return &Redirect{to: to, allowFragment: true}
}

// Stats returns this binding's statistics record.
func (r *Redirect) Stats() *layerstats.Stats { return &r.stats }

func (r *Redirect) Deliver(payload []byte) (int, error) {
	n := len(payload)
	out := payload
	if p, ok := r.to.(Prober); ok {
		granted := p.ProbeSendCapacity(n)
		if granted <= 0 {
			r.stats.TxRetries.Add(1)
			return 0, nil
		}
		if granted < n {
			if !r.allowFragment {
				r.stats.TxRetries.Add(1)
				return 0, nil
			}
			out = payload[:granted]
		}
	}
	if err := r.to.Send(out); err != nil {
		return 0, err
	}
	r.stats.RecordTx()
	return len(out), nil
}

// NewLoopback builds a Redirect that echoes every delivered packet
// straight back down through, the way the mandatory PING responder is
// wired: through is the same Sender the caller itself reaches this
// binding through, so the packet loops back to its origin.
func NewLoopback(through Sender) *Redirect { return NewRedirect(through) }

// Dup fans a single delivered packet out to every registered
// receiver, used when more than one consumer must observe the same
// protocol traffic (e.g. a logger tapping message-layer packets). It
// reports the largest accepted size across targets and counts
// dup_errors whenever targets disagree on how much they accepted
// (spec.md §4.4) — a disagreement that can happen, for instance, when
// one target rejects a malformed sub-record another tolerates.
type Dup struct {
	Targets []Receiver
	stats   layerstats.Stats
}

// NewDup builds a Dup fanning payloads out to every target.
func NewDup(targets ...Receiver) *Dup { return &Dup{Targets: targets} }

// Stats returns this binding's statistics record.
func (d *Dup) Stats() *layerstats.Stats { return &d.stats }

func (d *Dup) Deliver(payload []byte) (int, error) {
	best := -1
	disagree := false
	for _, t := range d.Targets {
		n, err := t.Deliver(payload)
		if err != nil {
			return 0, err
		}
		switch {
		case best == -1:
			best = n
		case n != best:
			disagree = true
			if n > best {
				best = n
			}
		}
	}
	if disagree {
		d.stats.DupErrors.Add(1)
	}
	if best == -1 {
		return 0, nil
	}
	d.stats.RecordRx()
	return best, nil
}
