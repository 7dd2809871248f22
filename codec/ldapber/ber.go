// Package ldapber implements two BER primitives of LDAP framing: the BER
// length field and the BER INTEGER message-id field, per spec §4.1 and
// invariant §8.4. Cross-checked
// against github.com/go-asn1-ber/asn1-ber (the BER codec backing the
// teacher's go-ldap/ldap/v3 dependency) for the length-octet shape, without
// importing the full general-purpose ASN.1 BER package: the dataplane only
// ever needs these two fixed shapes, not arbitrary tag/length/value
// traversal.
package ldapber

import "errors"

var (
	ErrShort        = errors.New("ldapber: truncated input")
	ErrIndefinite   = errors.New("ldapber: indefinite length not supported")
	ErrLengthTooBig = errors.New("ldapber: length field too wide")
)

// DecodeLength reads a BER length field (X.690 §8.1.3) from the front of
// b: short form (high bit clear, value in low 7 bits) or long form (high
// bit set, low 7 bits give the count of following big-endian length
// octets). Returns the decoded length and the number of bytes consumed.
func DecodeLength(b []byte) (length int, consumed int, err error) {
	if len(b) < 1 {
		return 0, 0, ErrShort
	}

	first := b[0]
	if first&0x80 == 0 {
		return int(first), 1, nil
	}

	numOctets := int(first & 0x7f)
	if numOctets == 0 {
		return 0, 0, ErrIndefinite
	}
	if numOctets > 4 {
		return 0, 0, ErrLengthTooBig
	}
	if len(b) < 1+numOctets {
		return 0, 0, ErrShort
	}

	length = 0
	for i := 0; i < numOctets; i++ {
		length = length<<8 | int(b[1+i])
	}
	return length, 1 + numOctets, nil
}

// EncodeLength is the inverse of DecodeLength: short form below 0x80,
// otherwise the minimal long form.
func EncodeLength(length int) []byte {
	if length < 0 {
		panic("ldapber: negative length")
	}
	if length < 0x80 {
		return []byte{byte(length)}
	}

	var octets []byte
	n := length
	for n > 0 {
		octets = append([]byte{byte(n & 0xff)}, octets...)
		n >>= 8
	}
	return append([]byte{byte(0x80 | len(octets))}, octets...)
}

// MessageIdResult is the outcome of parsing an LDAP messageID INTEGER.
type MessageIdResult int

const (
	MessageIdOK MessageIdResult = iota
	MessageIdNegative
)

// ParseMessageId decodes a BER INTEGER holding an LDAP messageID (a
// two's-complement big-endian integer, spec invariant §8.4): negative
// bit-patterns are rejected as MessageIdNegative; values must additionally
// fit in an int32 (LDAP messageID is defined as INTEGER (0 .. maxInt), and
// the source library's convention caps it at 2^31-1).
func ParseMessageId(b []byte) (value uint32, result MessageIdResult, err error) {
	if len(b) == 0 {
		return 0, 0, ErrShort
	}
	if len(b) > 5 {
		// more than 5 bytes cannot represent a valid non-negative int32
		// once accounting for a possible leading 0x00 sign-disambiguation
		// byte.
		return 0, 0, ErrLengthTooBig
	}

	if b[0]&0x80 != 0 {
		return 0, MessageIdNegative, nil
	}

	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	if v > int64(^uint32(0)>>1) {
		return 0, MessageIdNegative, nil
	}
	return uint32(v), MessageIdOK, nil
}
