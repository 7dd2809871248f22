// Package leb128 implements the unsigned LEB128 varint codec the Thrift
// compact protocol (codec/thrift) and other wire formats in the dataplane
// depend on, per spec §4.1: "LEB128 u32 encoder/decoder, rejecting >5
// bytes."
package leb128

import "errors"

// ErrTooLong is returned when decoding would need more than 5 bytes to
// represent a uint32 (5*7 = 35 bits is already more than enough headroom
// for 32 bits; a 6th continuation byte is always malformed input).
var ErrTooLong = errors.New("leb128: varint exceeds 5 bytes")

// ErrShort is returned when the buffer ends before a terminating byte
// (high bit clear) is seen.
var ErrShort = errors.New("leb128: truncated varint")

// EncodeUint32 appends the LEB128 encoding of v to dst and returns the
// extended slice.
func EncodeUint32(dst []byte, v uint32) []byte {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			dst = append(dst, b|0x80)
		} else {
			dst = append(dst, b)
			return dst
		}
	}
}

// DecodeUint32 reads a LEB128-encoded uint32 from the front of b, returning
// the value and the number of bytes consumed.
func DecodeUint32(b []byte) (uint32, int, error) {
	var result uint32
	for i := 0; i < 5; i++ {
		if i >= len(b) {
			return 0, 0, ErrShort
		}
		cur := b[i]
		result |= uint32(cur&0x7f) << (7 * uint(i))
		if cur&0x80 == 0 {
			return result, i + 1, nil
		}
	}
	return 0, 0, ErrTooLong
}
