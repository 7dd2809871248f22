// Package quicvarint implements the QUIC variable-length integer encoding
// (RFC 9000 §16) and the CRYPTO frame framing built on top of it, per spec
// §4.1: "2-bit length prefix selecting 1/2/4/8-byte encoding".
package quicvarint

import "errors"

var (
	ErrTooLarge = errors.New("quicvarint: value exceeds 62-bit range")
	ErrShort    = errors.New("quicvarint: truncated varint")
)

// MaxValue is the largest integer representable (2^62 - 1).
const MaxValue = 1<<62 - 1

// Len returns the number of bytes Encode would use for v.
func Len(v uint64) int {
	switch {
	case v <= 63:
		return 1
	case v <= 16383:
		return 2
	case v <= 1073741823:
		return 4
	default:
		return 8
	}
}

// Encode appends the varint encoding of v to dst.
func Encode(dst []byte, v uint64) ([]byte, error) {
	if v > MaxValue {
		return nil, ErrTooLarge
	}
	switch Len(v) {
	case 1:
		return append(dst, byte(v)), nil
	case 2:
		v |= 1 << 14
		return append(dst, byte(v>>8), byte(v)), nil
	case 4:
		v |= 2 << 30
		return append(dst, byte(v>>24), byte(v>>16), byte(v>>8), byte(v)), nil
	default:
		v |= 3 << 62
		return append(dst,
			byte(v>>56), byte(v>>48), byte(v>>40), byte(v>>32),
			byte(v>>24), byte(v>>16), byte(v>>8), byte(v)), nil
	}
}

// Decode reads one varint from the front of b, returning the value and the
// number of bytes consumed.
func Decode(b []byte) (uint64, int, error) {
	if len(b) < 1 {
		return 0, 0, ErrShort
	}
	n := 1 << (b[0] >> 6)
	if len(b) < n {
		return 0, 0, ErrShort
	}
	v := uint64(b[0] & 0x3f)
	for i := 1; i < n; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v, n, nil
}

// CryptoFrame is a parsed QUIC CRYPTO frame (type 0x06): offset, length,
// and the crypto-stream data slice (aliasing the caller's buffer).
type CryptoFrame struct {
	Offset uint64
	Data   []byte
}

// FrameTypeCrypto is the QUIC CRYPTO frame type per RFC 9000 §19.6.
const FrameTypeCrypto = 0x06

// ParseCryptoFrame parses a CRYPTO frame body (type byte already consumed
// by the caller) of the form: Offset(varint) Length(varint) Data(Length).
// Returns NeedMore (as a non-nil error wrapping ErrShort) if b does not yet
// contain a complete frame.
func ParseCryptoFrame(b []byte) (CryptoFrame, int, error) {
	offset, n1, err := Decode(b)
	if err != nil {
		return CryptoFrame{}, 0, err
	}
	length, n2, err := Decode(b[n1:])
	if err != nil {
		return CryptoFrame{}, 0, err
	}
	total := n1 + n2 + int(length)
	if len(b) < total {
		return CryptoFrame{}, 0, ErrShort
	}
	return CryptoFrame{Offset: offset, Data: b[n1+n2 : total]}, total, nil
}

// BuildCryptoFrame encodes a CRYPTO frame (including the 0x06 type byte)
// carrying data at the given stream offset.
func BuildCryptoFrame(offset uint64, data []byte) ([]byte, error) {
	out := []byte{FrameTypeCrypto}
	out, err := Encode(out, offset)
	if err != nil {
		return nil, err
	}
	out, err = Encode(out, uint64(len(data)))
	if err != nil {
		return nil, err
	}
	return append(out, data...), nil
}
