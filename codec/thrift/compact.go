// Package thrift implements the Thrift wire codecs, per spec §4.1/§6:
// Thrift binary and compact protocols, bare and framed transports, and the
// Kitex TTHeader reader.
package thrift

import (
	"encoding/binary"
	"errors"

	"github.com/sabouaram/g3edge/codec/leb128"
)

var (
	ErrShort           = errors.New("thrift: truncated input")
	ErrBadCompactMagic = errors.New("thrift: compact protocol id mismatch")
	ErrFrameTooLarge   = errors.New("thrift: framed body exceeds cap")
)

// CompactProtocolID is the fixed first byte of every compact-protocol
// message, spec §6.
const CompactProtocolID = 0x82

// CompactVersion is the only version this codec emits/accepts (low 5 bits
// of the second header byte).
const CompactVersion = 1

// MaxFramedBodyLen caps a framed Thrift body per spec §4.1 ("Framed
// bodies are capped at 1,638,400 bytes").
const MaxFramedBodyLen = 1_638_400

// CompactMessageType mirrors the Thrift compact protocol's 3-bit message
// type field packed into the top 3 bits of the second header byte.
type CompactMessageType byte

const (
	CompactCall      CompactMessageType = 1
	CompactReply     CompactMessageType = 2
	CompactException CompactMessageType = 3
	CompactOneway    CompactMessageType = 4
)

// CompactRequestBuilder builds a compact-protocol request header+method
// envelope (call name plus sequence id); the caller appends the already-
// encoded struct payload via Build's payload argument.
type CompactRequestBuilder struct {
	MessageType CompactMessageType
}

// Build encodes { protocolID(1) msgtype<<5|version(1) seqid(varint)
// namelen(varint) name payload }, optionally wrapped in a 4-byte
// big-endian length-prefixed frame.
func (b CompactRequestBuilder) Build(seq uint32, method string, payload []byte, framed bool) []byte {
	body := make([]byte, 0, 8+len(method)+len(payload))
	body = append(body, CompactProtocolID)
	body = append(body, byte(b.MessageType)<<5|CompactVersion)
	body = leb128.EncodeUint32(body, seq)
	body = leb128.EncodeUint32(body, uint32(len(method)))
	body = append(body, method...)
	body = append(body, payload...)

	if !framed {
		return body
	}

	out := make([]byte, 4, 4+len(body))
	binary.BigEndian.PutUint32(out, uint32(len(body)))
	return append(out, body...)
}

// CompactMessageHeader is what CompactMessageParser extracts without
// decoding the struct payload.
type CompactMessageHeader struct {
	MessageType CompactMessageType
	SeqID       uint32
	Method      string
	PayloadLen  int
}

// CompactMessageParser parses a (possibly framed) compact-protocol message
// header, returning the header and the byte offset at which the struct
// payload begins.
func CompactMessageParser(buf []byte, framed bool) (CompactMessageHeader, int, error) {
	offset := 0
	if framed {
		if len(buf) < 4 {
			return CompactMessageHeader{}, 0, ErrShort
		}
		frameLen := binary.BigEndian.Uint32(buf[0:4])
		if frameLen > MaxFramedBodyLen {
			return CompactMessageHeader{}, 0, ErrFrameTooLarge
		}
		if len(buf) < 4+int(frameLen) {
			return CompactMessageHeader{}, 0, ErrShort
		}
		offset = 4
		buf = buf[:4+int(frameLen)]
	}

	if len(buf) < offset+2 {
		return CompactMessageHeader{}, 0, ErrShort
	}
	if buf[offset] != CompactProtocolID {
		return CompactMessageHeader{}, 0, ErrBadCompactMagic
	}
	msgType := CompactMessageType(buf[offset+1] >> 5)
	pos := offset + 2

	seq, n, err := leb128.DecodeUint32(buf[pos:])
	if err != nil {
		return CompactMessageHeader{}, 0, err
	}
	pos += n

	nameLen, n, err := leb128.DecodeUint32(buf[pos:])
	if err != nil {
		return CompactMessageHeader{}, 0, err
	}
	pos += n

	if len(buf) < pos+int(nameLen) {
		return CompactMessageHeader{}, 0, ErrShort
	}
	method := string(buf[pos : pos+int(nameLen)])
	pos += int(nameLen)

	return CompactMessageHeader{
		MessageType: msgType,
		SeqID:       seq,
		Method:      method,
		PayloadLen:  len(buf) - pos,
	}, pos, nil
}
