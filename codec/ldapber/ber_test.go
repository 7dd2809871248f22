package ldapber

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLengthShortForm(t *testing.T) {
	n, c, err := DecodeLength([]byte{0x05, 0xff})
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, 1, c)
}

func TestLengthLongForm(t *testing.T) {
	enc := EncodeLength(300)
	n, c, err := DecodeLength(append(enc, 0xAA))
	require.NoError(t, err)
	require.Equal(t, 300, n)
	require.Equal(t, len(enc), c)
}

func TestLengthRoundTrip(t *testing.T) {
	for _, length := range []int{0, 1, 127, 128, 255, 256, 65535, 65536, 1 << 20} {
		enc := EncodeLength(length)
		n, c, err := DecodeLength(enc)
		require.NoError(t, err)
		require.Equal(t, length, n)
		require.Equal(t, len(enc), c)
	}
}

func TestLengthIndefiniteRejected(t *testing.T) {
	_, _, err := DecodeLength([]byte{0x80})
	require.ErrorIs(t, err, ErrIndefinite)
}

func TestMessageIdPositive(t *testing.T) {
	v, res, err := ParseMessageId([]byte{0x01})
	require.NoError(t, err)
	require.Equal(t, MessageIdOK, res)
	require.Equal(t, uint32(1), v)
}

func TestMessageIdNegativeRejected(t *testing.T) {
	_, res, err := ParseMessageId([]byte{0xff})
	require.NoError(t, err)
	require.Equal(t, MessageIdNegative, res)
}

func TestMessageIdMaxInt32(t *testing.T) {
	v, res, err := ParseMessageId([]byte{0x00, 0x7f, 0xff, 0xff, 0xff})
	require.NoError(t, err)
	require.Equal(t, MessageIdOK, res)
	require.Equal(t, uint32(0x7fffffff), v)
}
