package thrift

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompactBuilderFramedInvariant(t *testing.T) {
	b := CompactRequestBuilder{MessageType: CompactCall}
	out := b.Build(7, "ping", []byte{0x00}, true)

	frameLen := binary.BigEndian.Uint32(out[0:4])
	require.Equal(t, frameLen, uint32(len(out)-4))
	require.Equal(t, byte(CompactProtocolID), out[4])
}

func TestCompactRoundTrip(t *testing.T) {
	b := CompactRequestBuilder{MessageType: CompactCall}
	payload := []byte{0xAA, 0xBB, 0xCC}
	out := b.Build(42, "echo", payload, true)

	hdr, offset, err := CompactMessageParser(out, true)
	require.NoError(t, err)
	require.Equal(t, uint32(42), hdr.SeqID)
	require.Equal(t, "echo", hdr.Method)
	require.Equal(t, len(payload), hdr.PayloadLen)
	require.Equal(t, payload, out[offset:])
}

func TestCompactBareNotFramed(t *testing.T) {
	b := CompactRequestBuilder{MessageType: CompactOneway}
	out := b.Build(1, "notify", nil, false)
	require.Equal(t, byte(CompactProtocolID), out[0])

	hdr, _, err := CompactMessageParser(out, false)
	require.NoError(t, err)
	require.Equal(t, CompactOneway, hdr.MessageType)
}

func TestBinaryRoundTrip(t *testing.T) {
	out := BuildBinaryMessage(BinaryCall, 5, "login", []byte{1, 2, 3})
	hdr, offset, err := ParseBinaryMessage(out)
	require.NoError(t, err)
	require.Equal(t, BinaryCall, hdr.MessageType)
	require.Equal(t, uint32(5), hdr.SeqID)
	require.Equal(t, "login", hdr.Method)
	require.Equal(t, []byte{1, 2, 3}, out[offset:])
}

func TestTTHeaderRoundTrip(t *testing.T) {
	varHdr := []byte{0x01, 0x02, 0x03}
	body := BuildBinaryMessage(BinaryCall, 1, "op", nil)
	frame := BuildTTHeader(99, varHdr, body)

	parsed, n, err := ParseTTHeader(frame)
	require.NoError(t, err)
	require.Equal(t, len(frame), n)
	require.Equal(t, uint16(TTHeaderMagic), parsed.Magic)
	require.Equal(t, uint32(99), parsed.SeqID)
	require.Equal(t, body, parsed.ThriftBody)
	// var_hdr is padded to a multiple of 4 and passed through opaque.
	require.Equal(t, varHdr, parsed.VarHeader[:len(varHdr)])
}

func TestFramedBodyCapExceeded(t *testing.T) {
	big := make([]byte, 4)
	binary.BigEndian.PutUint32(big, MaxFramedBodyLen+1)
	big = append(big, make([]byte, 10)...)

	_, _, err := CompactMessageParser(big, true)
	require.ErrorIs(t, err, ErrFrameTooLarge)
}
