package msg

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Sender is the downward send interface the message layer's single
// envelope is written through (typically a dispatch binding or a
// frame layer directly).
type Sender interface {
	Send(payload []byte) error
}

// Prober is optionally implemented by a Sender to report how many
// bytes of send capacity are available right now without committing
// to them — the get_send_buf(dest=none) probe half of the driver
// contract (spec.md §4.1), used by Schedule's pre-send capacity check
// (spec.md §4.5 step 2). A Sender that doesn't implement Prober is
// assumed to always have room.
type Prober interface {
	ProbeSendCapacity(size int) int
}

const (
	flagsDescriptorBit = 0x80
	flagsMsgnumMask    = 0x7F
	lastMsgnum         = 127
	recvEmpty          = -1
)

// Layer is the message-layer implementation: scheduler, single
// receive slot, and query-wait lock, bound to protocol id 0x7F by
// whatever Dispatcher constructs it.
type Layer struct {
	mu sync.Mutex

	table  *Table
	lower  Sender
	cursor int

	lockMsgnum int // 0 = none held (msgnum 0, identity, is never locked)

	recvMsgnum int // recvEmpty when no message is waiting for the scheduler
	recvData   []byte

	resendCounter int
	rxDropped     atomic.Uint64
}

// NewLayer builds a message Layer over table, sending through lower.
func NewLayer(table *Table, lower Sender) *Layer {
	return &Layer{table: table, lower: lower, recvMsgnum: recvEmpty}
}

// Post requests msgnum be transmitted at priority (a monotone
// increase over its current priority, except Clear which forces it).
func (l *Layer) Post(msgnum int, priority Priority) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if msgnum < 0 || msgnum >= len(l.table.slots) {
		return fmt.Errorf("msg: post: msgnum %d out of range", msgnum)
	}
	s := l.table.slots[msgnum]
	if priority == Clear {
		s.priority = Clear
	} else if priority > s.priority {
		s.priority = priority
	}
	s.pending = true
	return nil
}

// Deliver implements dispatch.Receiver for the 0x7F message protocol.
// payload is [F, body...] — the leading 0x7F has already been
// consumed by the dispatcher. It always returns len(payload) as
// accepted: every envelope this layer sees is fully consumed, whether
// it is applied or dropped on a size mismatch.
func (l *Layer) Deliver(payload []byte) (int, error) {
	if len(payload) < 1 {
		return 0, fmt.Errorf("msg: empty envelope")
	}
	f := payload[0]
	body := payload[1:]
	msgnum := int(f & flagsMsgnumMask)
	descriptorFlag := f&flagsDescriptorBit != 0

	l.mu.Lock()
	defer l.mu.Unlock()

	if msgnum == lastMsgnum && len(body) == 0 {
		if err := l.fastLoadLocked(descriptorFlag); err != nil {
			return 0, err
		}
		return len(payload), nil
	}

	if msgnum < 0 || msgnum >= len(l.table.slots) {
		// Out-of-range message numbers clamp to table_size-1.
		msgnum = len(l.table.slots) - 1
	}
	s := l.table.slots[msgnum]

	if len(body) > 0 {
		if len(body) != s.entry.Size && !descriptorFlag {
			l.rxDropped.Add(1)
			return len(payload), nil // mismatch: consumed and discarded
		}
		l.recvMsgnum = msgnum
		l.recvData = append(l.recvData[:0], body...)
	}

	if l.lockMsgnum == msgnum {
		l.lockMsgnum = 0
	}

	if descriptorFlag {
		s.priority = Description
	} else {
		s.priority = Highest
	}
	s.pending = true
	return len(payload), nil
}

// RxDropped returns the number of delivered envelopes discarded for a
// data-size mismatch against the addressed table entry.
func (l *Layer) RxDropped() uint64 { return l.rxDropped.Load() }

// fastLoadLocked implements the F.low7==127 fast-load trigger: post
// every slot except the identity (0) and sentinel (last) at
// DescriptionLow or Low depending on the descriptor flag. Caller must
// hold l.mu.
func (l *Layer) fastLoadLocked(descriptorFlag bool) error {
	priority := Low
	if descriptorFlag {
		priority = DescriptionLow
	}
	for i := 1; i < len(l.table.slots)-1; i++ {
		s := l.table.slots[i]
		if priority > s.priority {
			s.priority = priority
		}
		s.pending = true
	}
	return nil
}

// eligible reports whether slot i may be selected by the scheduler
// this round.
func (l *Layer) eligible(i int) bool {
	s := l.table.slots[i]
	if s.priority == Clear {
		return false
	}
	if s.priority == QueryWait && i != l.recvMsgnum {
		return false
	}
	return true
}

// Schedule runs one round of the round-robin scheduler: selects the
// single highest-priority eligible slot (ties broken by lowest
// msgnum), probes the parent (lower) Sender for capacity, and either
// transmits it or reports pending=true (spec.md §4.5 step 2) when the
// parent cannot grant the wire size right now. ok=false means nothing
// was eligible this round; pending=true means something was eligible
// but could not be sent yet — the caller should stop this round rather
// than spin, and try again later once the parent drains.
func (l *Layer) Schedule() (msgnum int, ok bool, pending bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	best := -1
	for i := 0; i < len(l.table.slots); i++ {
		if !l.eligible(i) {
			continue
		}
		if best == -1 || l.table.slots[i].priority > l.table.slots[best].priority {
			best = i
		}
	}
	if best == -1 {
		return 0, false, false, nil
	}

	s := l.table.slots[best]
	priority := s.priority

	if !l.canSendLocked(l.wireSizeLocked(s, priority)) {
		return 0, false, true, nil
	}

	l.cursor = (best + 1) % len(l.table.slots)

	switch {
	case priority >= DescriptionLow:
		if err := l.sendLocked(best, true, []byte(s.entry.Descriptor)); err != nil {
			return 0, false, false, err
		}
		if l.recvMsgnum == best {
			s.priority = Highest
		} else {
			s.priority = Low
		}

	case s.entry.Handler == nil:
		if err := l.sendLocked(best, false, nil); err != nil {
			return 0, false, false, err
		}
		l.maybeLockLocked(best, priority)
		s.priority = QueryWait

	default:
		var input []byte
		hasInput := false
		if l.recvMsgnum == best {
			input = l.recvData
			hasInput = true
			l.recvMsgnum = recvEmpty
			l.recvData = nil
		}
		output, hasOutput := s.entry.Handler(input, hasInput)
		if !hasOutput {
			s.priority = Clear
		} else if priority != QueryWait && priority != QueryArgs {
			if err := l.sendLocked(best, false, output); err != nil {
				return 0, false, false, err
			}
			s.priority = Clear
		} else {
			s.priority = Clear
		}
	}

	s.pending = false
	return best, true, false, nil
}

// wireSizeLocked computes the number of bytes Schedule would write to
// lower for slot s transmitting at priority: the 2-byte envelope plus
// whichever body (descriptor text, empty query, or handler output)
// this round would actually send. Caller holds l.mu.
func (l *Layer) wireSizeLocked(s *slot, priority Priority) int {
	switch {
	case priority >= DescriptionLow:
		return 2 + len(s.entry.Descriptor)
	case s.entry.Handler == nil:
		return 2
	default:
		return 2 + s.entry.Size
	}
}

// canSendLocked probes lower for size bytes of capacity, the way
// get_send_buf(dest=none) would. A lower that doesn't implement Prober
// is assumed to always have room. Caller holds l.mu.
func (l *Layer) canSendLocked(size int) bool {
	p, ok := l.lower.(Prober)
	if !ok {
		return true
	}
	return p.ProbeSendCapacity(size) >= size
}

// maybeLockLocked acquires the query-wait lock for msgnum when the
// outgoing priority is UpdateArgs, or QueryArgs under the
// single-query table option.
func (l *Layer) maybeLockLocked(msgnum int, priority Priority) {
	if priority == UpdateArgs || (l.table.opts.SingleQuery && priority == QueryArgs) {
		l.lockMsgnum = msgnum
	}
}

// sendLocked writes the [0x7F, F, body...] envelope. Caller holds l.mu.
func (l *Layer) sendLocked(msgnum int, descriptor bool, body []byte) error {
	f := byte(msgnum & flagsMsgnumMask)
	if descriptor {
		f |= flagsDescriptorBit
	}
	out := make([]byte, 0, 2+len(body))
	out = append(out, 0x7F, f)
	out = append(out, body...)
	return l.lower.Send(out)
}

// ResendQueries re-arms every slot stuck in QueryWait by demoting it
// to QueryArgs so it will be retransmitted, once called after the
// caller's own timeout bookkeeping decides enough time has passed.
// Returns the number of slots rescheduled.
func (l *Layer) ResendQueries() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, s := range l.table.slots {
		if s.priority == QueryWait {
			s.priority = QueryArgs
			s.pending = true
			n++
		}
	}
	l.lockMsgnum = 0
	return n
}

// IsQuery reports whether the current handler invocation priority
// corresponds to a self-initiated query (no incoming data).
func IsQuery(priority Priority) bool { return priority == QueryWait || priority == QueryArgs }

// IsReply reports whether priority reflects a response to a received
// peer message.
func IsReply(priority Priority) bool { return priority == Highest || priority == Description }
