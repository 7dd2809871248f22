// Package keyless implements Cloudflare's keyless request/response header
// codec, per spec §4.1/§6: an 8-byte fixed header carrying the protocol
// version, a payload length, and an opaque request id used to multiplex
// concurrent operations over one connection.
package keyless

import (
	"encoding/binary"
	"errors"
)

// HeaderLen is the fixed size of a keyless header.
const HeaderLen = 8

var ErrShort = errors.New("keyless: truncated header")

// Header is the parsed 8-byte keyless frame header:
// { major(1) minor(1) length(2 BE) id(4 BE) }.
type Header struct {
	Major      byte
	Minor      byte
	PayloadLen uint16
	ID         uint32
}

// ParseHeader reads a Header from the front of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderLen {
		return Header{}, ErrShort
	}
	return Header{
		Major:      b[0],
		Minor:      b[1],
		PayloadLen: binary.BigEndian.Uint16(b[2:4]),
		ID:         binary.BigEndian.Uint32(b[4:8]),
	}, nil
}

// Encode serializes h into an 8-byte header.
func (h Header) Encode() []byte {
	out := make([]byte, HeaderLen)
	out[0] = h.Major
	out[1] = h.Minor
	binary.BigEndian.PutUint16(out[2:4], h.PayloadLen)
	binary.BigEndian.PutUint32(out[4:8], h.ID)
	return out
}

// WithID returns a copy of h with a new request id and every other field
// unchanged. It serves multiplexed mode, where each request forwarded over
// a shared connection carries its own id so responses can be
// demultiplexed.
func (h Header) WithID(id uint32) Header {
	h.ID = id
	return h
}

// NeedMore reports how many additional bytes must be read before the full
// frame (header + payload) is available, or 0 if buf already holds a
// complete frame.
func NeedMore(buf []byte) (int, error) {
	if len(buf) < HeaderLen {
		return HeaderLen - len(buf), nil
	}
	h, err := ParseHeader(buf)
	if err != nil {
		return 0, err
	}
	total := HeaderLen + int(h.PayloadLen)
	if len(buf) >= total {
		return 0, nil
	}
	return total - len(buf), nil
}
