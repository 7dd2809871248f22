package thrift

import "encoding/binary"

// TTHeaderFixedLen is the size of the Kitex TTHeader fixed header, spec
// §4.1: "14-byte fixed header: [len(4)|magic+flags(4)|seq(4)|
// var_hdr_size/4(2)]".
const TTHeaderFixedLen = 14

// TTHeaderMagic is the fixed magic value occupying the top 16 bits of the
// magic+flags word.
const TTHeaderMagic = 0x1000

// TTHeader is the parsed fixed portion of a Kitex TTHeader frame. VarHeader
// is kept as an opaque byte slice: the upstream g3-codec crate leaves
// var_hdr parsing as a TODO and treats it as pass-through, and this spec's
// §9 Open Questions preserves that behavior rather than inventing a
// var_hdr key/value schema the original never committed to.
type TTHeader struct {
	TotalLen   uint32
	Magic      uint16
	Flags      uint16
	SeqID      uint32
	VarHeader  []byte
	ThriftBody []byte // the bare/framed thrift message following var_hdr
}

// ParseTTHeader reads a complete TTHeader frame from buf. TotalLen covers
// everything after the 4-byte length field itself (magic+flags, seq,
// var_hdr_size, var_hdr, and the thrift payload).
func ParseTTHeader(buf []byte) (TTHeader, int, error) {
	if len(buf) < TTHeaderFixedLen {
		return TTHeader{}, 0, ErrShort
	}

	totalLen := binary.BigEndian.Uint32(buf[0:4])
	magicFlags := binary.BigEndian.Uint32(buf[4:8])
	magic := uint16(magicFlags >> 16)
	flags := uint16(magicFlags & 0xffff)
	seq := binary.BigEndian.Uint32(buf[8:12])
	varHdrSizeDiv4 := binary.BigEndian.Uint16(buf[12:14])
	varHdrLen := int(varHdrSizeDiv4) * 4

	frameTotal := 4 + int(totalLen)
	if len(buf) < frameTotal {
		return TTHeader{}, 0, ErrShort
	}
	if TTHeaderFixedLen+varHdrLen > frameTotal {
		return TTHeader{}, 0, ErrShort
	}

	varHeader := buf[TTHeaderFixedLen : TTHeaderFixedLen+varHdrLen]
	thriftBody := buf[TTHeaderFixedLen+varHdrLen : frameTotal]

	return TTHeader{
		TotalLen:   totalLen,
		Magic:      magic,
		Flags:      flags,
		SeqID:      seq,
		VarHeader:  varHeader,
		ThriftBody: thriftBody,
	}, frameTotal, nil
}

// BuildTTHeader assembles a TTHeader frame around an already-encoded
// thrift body (bare or framed), passing varHeader through untouched.
func BuildTTHeader(seq uint32, varHeader, thriftBody []byte) []byte {
	varHdrSizeDiv4 := (len(varHeader) + 3) / 4
	padded := make([]byte, varHdrSizeDiv4*4)
	copy(padded, varHeader)

	payloadLen := 10 + len(padded) + len(thriftBody) // magic+flags(4) seq(4) varhdrsize(2)
	out := make([]byte, 4, 4+payloadLen)
	binary.BigEndian.PutUint32(out, uint32(payloadLen))

	magicFlags := make([]byte, 4)
	binary.BigEndian.PutUint32(magicFlags, uint32(TTHeaderMagic)<<16)
	out = append(out, magicFlags...)

	seqBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(seqBuf, seq)
	out = append(out, seqBuf...)

	szBuf := make([]byte, 2)
	binary.BigEndian.PutUint16(szBuf, uint16(varHdrSizeDiv4))
	out = append(out, szBuf...)

	out = append(out, padded...)
	out = append(out, thriftBody...)
	return out
}
