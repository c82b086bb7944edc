package msg

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent [][]byte
}

func (f *fakeSender) Send(payload []byte) error {
	f.sent = append(f.sent, append([]byte{}, payload...))
	return nil
}

func newTestTable(t *testing.T, handler Handler) *Table {
	t.Helper()
	tbl, err := NewTable(TableOptions{}, Entry{Size: 8, Descriptor: "identity"},
		Entry{Size: 1, Descriptor: "led", Handler: handler})
	require.NoError(t, err)
	require.Equal(t, 3, tbl.Size())
	return tbl
}

func TestMessageQueryResponse_S3(t *testing.T) {
	var handlerInput []byte
	var sawInput bool
	handler := func(input []byte, hasInput bool) ([]byte, bool) {
		handlerInput = input
		sawInput = hasInput
		return []byte{0xAB}, true
	}
	tbl := newTestTable(t, handler)
	lower := &fakeSender{}
	l := NewLayer(tbl, lower)

	_, err := l.Deliver([]byte{0x01, 0x05})
	require.NoError(t, err)

	msgnum, ok, pending, err := l.Schedule()
	require.NoError(t, err)
	require.False(t, pending)
	require.True(t, ok)
	require.Equal(t, 1, msgnum)
	require.True(t, sawInput)
	require.Equal(t, []byte{0x05}, handlerInput)
	require.Equal(t, []byte{0x7F, 0x01, 0xAB}, lower.sent[0])
}

func TestMessageFastLoadAllDescriptors_S4(t *testing.T) {
	tbl := newTestTable(t, nil)
	lower := &fakeSender{}
	l := NewLayer(tbl, lower)

	_, err := l.Deliver([]byte{0xFF})
	require.NoError(t, err)

	require.True(t, l.eligible(1))
	require.Equal(t, DescriptionLow, tbl.slots[1].priority)

	msgnum, ok, pending, err := l.Schedule()
	require.NoError(t, err)
	require.False(t, pending)
	require.True(t, ok)
	require.Equal(t, 1, msgnum)
	require.Equal(t, byte(0x80|1), lower.sent[0][1])
	require.Equal(t, []byte("led"), lower.sent[0][2:])
}

func TestMessageDropsOnSizeMismatch(t *testing.T) {
	tbl := newTestTable(t, func(input []byte, hasInput bool) ([]byte, bool) { return nil, false })
	lower := &fakeSender{}
	l := NewLayer(tbl, lower)

	n, err := l.Deliver([]byte{0x01, 0x01, 0x02}) // size 2, entry wants 1
	require.NoError(t, err)
	require.Equal(t, 3, n, "a mismatched envelope is still fully consumed")
	require.Equal(t, uint64(1), l.RxDropped())

	_, ok, pending, err := l.Schedule()
	require.NoError(t, err)
	require.False(t, pending)
	require.False(t, ok, "mismatched receive must not post the slot")
}

func TestQueryWaitBlocksOtherTransmissionOfSameSlotUntilResolved(t *testing.T) {
	tbl, err := NewTable(TableOptions{}, Entry{Size: 8, Descriptor: "identity"},
		Entry{Size: 1, Descriptor: "temp"})
	require.NoError(t, err)
	lower := &fakeSender{}
	l := NewLayer(tbl, lower)

	require.NoError(t, l.Post(1, QueryWait))
	require.False(t, l.eligible(1))

	n := l.ResendQueries()
	require.Equal(t, 1, n)
	require.True(t, l.eligible(1))
}

func TestPostClearForcesPriorityDown(t *testing.T) {
	tbl := newTestTable(t, nil)
	lower := &fakeSender{}
	l := NewLayer(tbl, lower)

	require.NoError(t, l.Post(1, High))
	require.NoError(t, l.Post(1, Clear))
	require.False(t, l.eligible(1))
}

type refusingSender struct {
	fakeSender
	grant int
}

func (f *refusingSender) ProbeSendCapacity(size int) int {
	if f.grant < size {
		return f.grant
	}
	return size
}

func TestScheduleReportsPendingWhenParentLacksCapacity(t *testing.T) {
	tbl := newTestTable(t, nil)
	lower := &refusingSender{grant: 0}
	l := NewLayer(tbl, lower)

	require.NoError(t, l.Post(1, High))

	msgnum, ok, pending, err := l.Schedule()
	require.NoError(t, err)
	require.False(t, ok)
	require.True(t, pending, "a Prober reporting zero capacity must surface as pending, not as nothing-eligible")
	require.Equal(t, 0, msgnum)
	require.Empty(t, lower.sent, "Schedule must not send anything when the probe refuses")
	require.True(t, l.eligible(1), "a pending slot stays eligible for the next round")
}

func TestTableRejectsOversizedEntryList(t *testing.T) {
	entries := make([]Entry, MaxEntries)
	_, err := NewTable(TableOptions{}, Entry{Size: 8}, entries...)
	require.Error(t, err)
}
