package isn

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentityEncodeIsEightBytesLittleEndian(t *testing.T) {
	id := Identity{SessionID: 0x01020304, FWVersionHi: 3, FWVersionLo: 7, CapabilityFlags: 0xBEEF}
	enc := id.Encode()
	require.Len(t, enc, 8)
	require.Equal(t, []byte{0x04, 0x03, 0x02, 0x01, 3, 7, 0xEF, 0xBE}, enc)
}

func TestNewSessionIDGeneratesDistinctValues(t *testing.T) {
	a := NewSessionID()
	b := NewSessionID()
	require.NotEqual(t, a, b)
}

func TestNewIdentityEntryHandlerReturnsOwnEncoding(t *testing.T) {
	entry, identity := NewIdentityEntry(1, 2, 0x00FF)
	require.Equal(t, 8, entry.Size)

	out, hasOutput := entry.Handler(nil, false)
	require.True(t, hasOutput)
	require.Equal(t, identity.Encode(), out)
}
