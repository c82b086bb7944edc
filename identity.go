package isn

import (
	"github.com/rs/xid"

	"github.com/isotel-go/isn-core/internal/msg"
	"github.com/isotel-go/isn-core/internal/wire"
)

// Identity is the decoded form of the mandatory entry-0 identity
// record: an 8-byte `{session_id_lo32, fw_version_hi8, fw_version_lo8,
// capability_flags16}` layout.
type Identity struct {
	SessionID       uint32
	FWVersionHi     byte
	FWVersionLo     byte
	CapabilityFlags uint16
}

// Encode renders id as its 8-byte wire record.
func (id Identity) Encode() []byte {
	buf := make([]byte, 0, 8)
	buf = wire.AppendUint32(buf, id.SessionID)
	buf = append(buf, id.FWVersionHi, id.FWVersionLo)
	buf = wire.AppendUint16(buf, id.CapabilityFlags)
	return buf
}

// NewSessionID generates a fresh session identifier by truncating a
// freshly minted xid to its low 32 bits, giving every process
// instance a distinguishable identity without any persistent storage.
func NewSessionID() uint32 {
	id := xid.New()
	b := id.Bytes()
	return wire.Uint32(b[len(b)-4:])
}

// NewIdentityEntry builds the msg.Entry for table slot 0: a read-only
// record whose Handler ignores any input and always reports the
// encoded identity, and whose descriptor names the fixed 8-byte layout.
func NewIdentityEntry(fwVersionHi, fwVersionLo byte, capabilityFlags uint16) (msg.Entry, Identity) {
	id := Identity{
		SessionID:       NewSessionID(),
		FWVersionHi:     fwVersionHi,
		FWVersionLo:     fwVersionLo,
		CapabilityFlags: capabilityFlags,
	}
	return msg.Entry{
		Size:       8,
		Descriptor: "%T0{identity}",
		Handler: func(_ []byte, _ bool) ([]byte, bool) {
			return id.Encode(), true
		},
	}, id
}
