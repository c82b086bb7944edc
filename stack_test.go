package isn

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/isotel-go/isn-core/internal/frame"
	"github.com/isotel-go/isn-core/internal/msg"
)

func minimalTable(t *testing.T) *msg.Table {
	t.Helper()
	identity, _ := NewIdentityEntry(1, 0, 0)
	tbl, err := msg.NewTable(msg.TableOptions{}, identity)
	require.NoError(t, err)
	return tbl
}

func TestStackRespondsToPing(t *testing.T) {
	table := minimalTable(t)
	stack, peer := NewTestStack(table)
	require.NoError(t, stack.Start(context.Background()))
	defer stack.Stop()

	ping := []byte{0x00, 'h', 'i'}
	wire, err := frame.Encode(frame.Long, ping)
	require.NoError(t, err)

	go func() { _, _ = peer.Write(wire) }()

	// Ping is bound like any other protocol: the dispatcher strips its
	// leading byte before the loopback ever sees the packet, so the
	// echoed frame carries only the body that followed it.
	body := ping[1:]
	echoed := make([]byte, frame.FrameLen(frame.Long, len(body)))
	_, err = io.ReadFull(peer, echoed)
	require.NoError(t, err)

	_, payload, err := frame.Decode(echoed)
	require.NoError(t, err)
	require.Equal(t, body, payload)
}

func TestStackSchedulesIdentityOnDemand(t *testing.T) {
	table := minimalTable(t)
	stack, peer := NewTestStack(table)

	drained := make(chan []byte, 1)
	go func() {
		buf := make([]byte, frame.FrameLen(frame.Long, 10))
		n, _ := io.ReadFull(peer, buf)
		drained <- buf[:n]
	}()

	require.NoError(t, stack.Msg.Post(0, msg.Highest))
	msgnum, ok, pending, err := stack.Msg.Schedule()
	require.NoError(t, err)
	require.False(t, pending)
	require.True(t, ok)
	require.Equal(t, 0, msgnum)

	wire := <-drained
	_, payload, err := frame.Decode(wire)
	require.NoError(t, err)
	require.Equal(t, byte(0), payload[1]&0x7F) // message envelope F.low7 == msgnum 0
}

func TestStackStartAndStopIsIdempotentSafe(t *testing.T) {
	table := minimalTable(t)
	stack, _ := NewTestStack(table)
	require.NoError(t, stack.Start(context.Background()))
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, stack.Stop())
}
