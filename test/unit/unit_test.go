//go:build !integration

// Package unit holds cross-cutting scenario tests that exercise
// concrete end-to-end behavior across package boundaries a single
// package's own _test.go files don't cross, split from test/integration
// by timing sensitivity rather than privilege: nothing here needs a
// real transport or a wall-clock wait.
package unit

import (
	"testing"

	"github.com/stretchr/testify/require"

	isn "github.com/isotel-go/isn-core"
	"github.com/isotel-go/isn-core/internal/clock"
	"github.com/isotel-go/isn-core/internal/dispatch"
	"github.com/isotel-go/isn-core/internal/frame"
	"github.com/isotel-go/isn-core/internal/msg"
	"github.com/isotel-go/isn-core/internal/reactor"
)

// TestScenarioS1EncodeDecodeCompactFrame checks a worked example
// directly: payload [0x7F, 0x01, 0xAA] encodes to header 0x82 plus the
// payload and a CRC-8 trailer, and decoding the wire bytes yields the
// payload back.
func TestScenarioS1EncodeDecodeCompactFrame(t *testing.T) {
	payload := []byte{0x7F, 0x01, 0xAA}
	wire, err := frame.Encode(frame.Short, payload)
	require.NoError(t, err)
	require.Equal(t, byte(0x82), wire[0])
	require.Len(t, wire, 1+len(payload)+1) // header + payload + CRC-8

	v, decoded, err := frame.Decode(wire)
	require.NoError(t, err)
	require.Equal(t, frame.Short, v)
	require.Equal(t, payload, decoded)
}

// TestScenarioS6DispatcherOtherFallback checks that with bindings
// [(0x7F, msg), (OTHER, terminal)], a packet whose leading byte
// matches neither explicit binding reaches Other with the full
// payload including its leading byte, while the message binding never
// sees it.
func TestScenarioS6DispatcherOtherFallback(t *testing.T) {
	var msgSeen, otherSeen []byte
	d := dispatch.New()
	d.Bind(dispatch.Message, recvFunc(func(p []byte) error { msgSeen = p; return nil }))
	d.BindOther(recvFunc(func(p []byte) error { otherSeen = p; return nil }))

	packet := []byte{0x05, 'h', 'i'}
	_, err := d.Dispatch(dispatch.ProtocolID(packet[0]), packet)
	require.NoError(t, err)

	require.Nil(t, msgSeen)
	require.Equal(t, packet, otherSeen)
}

type recvFunc func(payload []byte) error

func (f recvFunc) Deliver(payload []byte) (int, error) {
	if err := f(payload); err != nil {
		return 0, err
	}
	return len(payload), nil
}

// TestScenarioS4FastLoadAllDescriptors checks that a peer payload
// [0x7F, 0xFF] (msgnum=127, descriptor flag set) posts every
// non-identity, non-sentinel slot at DescriptionLow, and successive
// Schedule calls emit their descriptors in round-robin msgnum order.
func TestScenarioS4FastLoadAllDescriptors(t *testing.T) {
	identityEntry, _ := isn.NewIdentityEntry(1, 0, 0)
	var sent [][]byte
	sender := sendFunc(func(p []byte) error { sent = append(sent, p); return nil })

	table, err := msg.NewTable(msg.TableOptions{}, identityEntry,
		msg.Entry{Size: 1, Descriptor: "alpha"},
		msg.Entry{Size: 1, Descriptor: "beta"},
	)
	require.NoError(t, err)
	layer := msg.NewLayer(table, sender)

	_, err = layer.Deliver([]byte{0xFF})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, ok, pending, err := layer.Schedule()
		require.NoError(t, err)
		require.False(t, pending)
		require.True(t, ok)
	}

	require.Len(t, sent, 2)
	require.Equal(t, []byte("alpha"), sent[0][2:])
	require.Equal(t, []byte("beta"), sent[1][2:])
	require.True(t, sent[0][1]&0x80 != 0, "descriptor flag must be set")
}

type sendFunc func(payload []byte) error

func (f sendFunc) Send(payload []byte) error { return f(payload) }

// TestScenarioS5ReactorTimedSelfRecurrence checks that a tasklet whose
// handler re-arms its own (already-elapsed) deadline via
// ChangeTimedSelf on every invocation fires once per Step call, for 10
// calls, without starving a tasklet posted on a lower-priority queue.
func TestScenarioS5ReactorTimedSelfRecurrence(t *testing.T) {
	r := reactor.New(8, clock.New())

	count := 0
	var tick reactor.Fn
	tick = func(rt *reactor.Reactor, self int, arg any) reactor.Result {
		count++
		require.NoError(t, rt.ChangeTimedSelf(self, 0))
		return reactor.ContinueResult(tick, arg)
	}
	_, err := r.PostAt(reactor.System, tick, nil, 0, true)
	require.NoError(t, err)

	otherRuns := 0
	for i := 0; i < 10; i++ {
		_, err := r.Post(reactor.Back, func(*reactor.Reactor, int, any) reactor.Result {
			otherRuns++
			return reactor.DoneResult()
		}, nil)
		require.NoError(t, err)
		r.Step()
	}

	require.Equal(t, 10, count)
	require.Equal(t, 10, otherRuns, "the recurring timed tasklet must not starve the back queue")
}
