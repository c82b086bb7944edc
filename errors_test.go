package isn

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := NewLayerError("Send", "frame", CodeCapacity, "payload exceeds 64 bytes")
	require.Equal(t, "isn: Send: frame: capacity: payload exceeds 64 bytes", err.Error())
}

func TestErrorIsMatchesByCode(t *testing.T) {
	a := NewError("Recv", CodeTimeout, "no byte within deadline")
	b := NewError("Send", CodeTimeout, "retry deadline elapsed")
	require.True(t, errors.Is(a, b))

	c := NewError("Recv", CodeWireFormat, "bad crc")
	require.False(t, errors.Is(a, c))
}

func TestWrapErrorUnwraps(t *testing.T) {
	inner := errors.New("short read")
	wrapped := WrapError("Recv", "uart", CodeWireFormat, inner)
	require.ErrorIs(t, wrapped, inner)
}

func TestCodeOfAndIsCode(t *testing.T) {
	err := NewError("Reserve", CodeReservation, "already reserved")
	code, ok := CodeOf(err)
	require.True(t, ok)
	require.Equal(t, CodeReservation, code)
	require.True(t, IsCode(err, CodeReservation))
	require.False(t, IsCode(err, CodeTimeout))

	_, ok = CodeOf(errors.New("plain"))
	require.False(t, ok)
}
