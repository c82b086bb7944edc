package frame

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEncodeDecodeShortRoundTrip(t *testing.T) {
	payload := []byte("hello")
	out, err := Encode(Short, payload)
	require.NoError(t, err)
	require.Equal(t, byte(0x80|4), out[0])

	v, got, err := Decode(out)
	require.NoError(t, err)
	require.Equal(t, Short, v)
	require.Equal(t, payload, got)
}

func TestEncodeDecodeLongRoundTrip(t *testing.T) {
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = byte(i)
	}
	out, err := Encode(Long, payload)
	require.NoError(t, err)
	require.Equal(t, byte(0xC0), out[0]&0xE0)

	v, got, err := Decode(out)
	require.NoError(t, err)
	require.Equal(t, Long, v)
	require.Equal(t, payload, got)
}

func TestEncodeDecodeJumboRoundTrip(t *testing.T) {
	payload := make([]byte, 8000)
	for i := range payload {
		payload[i] = byte(i * 3)
	}
	out, err := Encode(Jumbo, payload)
	require.NoError(t, err)
	require.Equal(t, byte(0xE0), out[0]&0xE0)

	v, got, err := Decode(out)
	require.NoError(t, err)
	require.Equal(t, Jumbo, v)
	require.Equal(t, payload, got)
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	_, err := Encode(Short, make([]byte, 65))
	require.Error(t, err)
}

func TestEncodeRejectsEmptyPayload(t *testing.T) {
	_, err := Encode(Short, nil)
	require.Error(t, err)
}

func TestDecodeDetectsCorruptedCRC(t *testing.T) {
	out, _ := Encode(Short, []byte("abc"))
	out[len(out)-1] ^= 0xFF
	_, _, err := Decode(out)
	require.ErrorIs(t, err, ErrBadCRC)
}

func TestDecodeRejectsNonFrameByte(t *testing.T) {
	_, _, err := Decode([]byte{0x01, 0x02})
	require.Error(t, err)
}

func TestStreamDecoderReassemblesFrame(t *testing.T) {
	var got []byte
	var gotVariant Variant
	d := NewDecoder(time.Second, func(v Variant, p []byte) {
		gotVariant = v
		got = append([]byte{}, p...)
	}, nil, nil)

	frameBytes, _ := Encode(Long, []byte("query-response"))
	d.FeedAll(frameBytes)

	require.Equal(t, Long, gotVariant)
	require.Equal(t, []byte("query-response"), got)
}

func TestStreamDecoderPassesThroughTerminalBytes(t *testing.T) {
	var terminal []byte
	d := NewDecoder(time.Second, nil, func(b byte) {
		terminal = append(terminal, b)
	}, nil)
	d.FeedAll([]byte("hello\n"))
	require.Equal(t, []byte("hello\n"), terminal)
}

func TestStreamDecoderResyncsOnTimeout(t *testing.T) {
	fakeNow := time.Now()
	resynced := false
	d := NewDecoder(10*time.Millisecond, nil, nil, func() { resynced = true })
	d.now = func() time.Time { return fakeNow }

	frameBytes, _ := Encode(Short, []byte("xy"))
	d.Feed(frameBytes[0]) // header only, leaves frame incomplete

	fakeNow = fakeNow.Add(time.Second)
	d.Feed(frameBytes[1])

	require.True(t, resynced)
}

func TestStreamDecoderReportsCRCErrors(t *testing.T) {
	var gotErr error
	d := NewDecoder(time.Second, nil, nil, nil)
	d.OnError(func(v Variant, err error) { gotErr = err })

	frameBytes, _ := Encode(Short, []byte("z"))
	frameBytes[len(frameBytes)-1] ^= 0xFF
	d.FeedAll(frameBytes)

	require.ErrorIs(t, gotErr, ErrBadCRC)
}

func TestFrameRoundTripProperty(t *testing.T) {
	variants := []Variant{Short, Long, Jumbo}
	rapid.Check(t, func(rt *rapid.T) {
		v := variants[rapid.IntRange(0, 2).Draw(rt, "variant")]
		n := rapid.IntRange(1, v.MaxPayload()).Draw(rt, "len")
		payload := rapid.SliceOfN(rapid.Byte(), n, n).Draw(rt, "payload")

		out, err := Encode(v, payload)
		if err != nil {
			rt.Fatalf("encode: %v", err)
		}
		gotV, gotPayload, err := Decode(out)
		if err != nil {
			rt.Fatalf("decode: %v", err)
		}
		if gotV != v {
			rt.Fatalf("variant mismatch: got %v want %v", gotV, v)
		}
		if string(gotPayload) != string(payload) {
			rt.Fatalf("payload mismatch")
		}
	})
}
