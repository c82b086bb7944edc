// Package msg implements the ISN message layer: a virtual device
// holding up to 128 numbered fixed-size records, scheduled for
// transmission by priority, with query-wait locking and the
// peer-triggered fast-load-all-descriptors operation.
package msg

import "fmt"

// Priority is the message layer's transmission urgency scale. Higher
// values are scheduled earlier, except QueryWait, which is numerically
// high but excluded from scheduling by the query-wait eligibility rule
// — it encodes a slot parked after sending a query, not genuine
// urgency. ResendQueries moves such slots to QueryArgs, which is
// scheduled normally.
type Priority uint8

const (
	Clear          Priority = 0
	Low            Priority = 1
	Normal         Priority = 4
	High           Priority = 8
	Highest        Priority = 15
	UpdateArgs     Priority = 25
	QueryWait      Priority = 26
	QueryArgs      Priority = 27
	UnlockArgs     Priority = 29
	DescriptionLow Priority = 30
	Description    Priority = 31
)

// MaxEntries is the largest table a 7-bit msgnum field can address
// (msgnum 127 is reserved for the fast-load trigger).
const MaxEntries = 128

// SentinelDescriptor is the fixed descriptor of a table's final slot.
const SentinelDescriptor = "%!"

// Handler processes a received record (if any) and optionally
// produces an outgoing record. hasInput is false when the handler is
// invoked for a reason other than a fresh receive (e.g. a
// self-initiated periodic transmit).
type Handler func(input []byte, hasInput bool) (output []byte, hasOutput bool)

// Entry describes one message table slot.
type Entry struct {
	Size       int
	Descriptor string
	Handler    Handler
}

// slot is a table entry's live scheduling state.
type slot struct {
	entry    Entry
	priority Priority
	pending  bool
}

// TableOptions configures construction-time behavior that the
// original source gated behind a build-time macro.
type TableOptions struct {
	// SingleQuery, when true, makes QueryArgs also acquire the
	// query-wait lock (the behavior CONFIG_ISN_MSG_SINGLE_QUERY
	// toggled at compile time upstream).
	SingleQuery bool
}

// Table is the bounded, ordered sequence of message slots: entry 0 is
// the mandatory identity record, the last entry is the sentinel.
type Table struct {
	opts  TableOptions
	slots []*slot
}

// NewTable builds a Table from identity (entry 0) and the slots that
// follow it; a sentinel entry is appended automatically. Fails if the
// resulting table would exceed MaxEntries.
func NewTable(opts TableOptions, identity Entry, entries ...Entry) (*Table, error) {
	total := len(entries) + 2
	if total > MaxEntries {
		return nil, fmt.Errorf("msg: table of %d entries exceeds MaxEntries %d", total, MaxEntries)
	}
	t := &Table{opts: opts}
	t.slots = append(t.slots, &slot{entry: identity})
	for _, e := range entries {
		t.slots = append(t.slots, &slot{entry: e})
	}
	t.slots = append(t.slots, &slot{entry: Entry{Descriptor: SentinelDescriptor}})
	return t, nil
}

// Size returns the number of entries in the table, including identity
// and the sentinel.
func (t *Table) Size() int { return len(t.slots) }

// EntryAt returns the static Entry definition for msgnum.
func (t *Table) EntryAt(msgnum int) (Entry, error) {
	if msgnum < 0 || msgnum >= len(t.slots) {
		return Entry{}, fmt.Errorf("msg: msgnum %d out of range", msgnum)
	}
	return t.slots[msgnum].entry, nil
}
