package icap

import (
	"fmt"
	"strconv"
	"strings"
)

// EncapsulatedPart names one section the Encapsulated header can point
// into, per RFC 3507 §4.4.1 ("req-hdr=0, req-body=<hdr_len>").
type EncapsulatedPart string

const (
	PartReqHdr   EncapsulatedPart = "req-hdr"
	PartResHdr   EncapsulatedPart = "res-hdr"
	PartReqBody  EncapsulatedPart = "req-body"
	PartResBody  EncapsulatedPart = "res-body"
	PartNullBody EncapsulatedPart = "null-body"
	PartOptBody  EncapsulatedPart = "opt-body"
)

// Encapsulated is the parsed "Encapsulated:" header: an ordered list of
// (part, byte-offset) pairs, offsets relative to the start of the
// encapsulated section of the ICAP message body.
type Encapsulated []EncapsulatedEntry

type EncapsulatedEntry struct {
	Part   EncapsulatedPart
	Offset int
}

// String renders the header value, e.g. "req-hdr=0, req-body=412".
func (e Encapsulated) String() string {
	parts := make([]string, len(e))
	for i, entry := range e {
		parts[i] = fmt.Sprintf("%s=%d", entry.Part, entry.Offset)
	}
	return strings.Join(parts, ", ")
}

// ParseEncapsulated parses an Encapsulated header value into its ordered
// entries.
func ParseEncapsulated(value string) (Encapsulated, error) {
	fields := strings.Split(value, ",")
	out := make(Encapsulated, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		idx := strings.IndexByte(f, '=')
		if idx < 0 {
			return nil, &Error{Reason: ReasonProtocolError, Detail: "malformed Encapsulated entry: " + f}
		}
		offset, err := strconv.Atoi(strings.TrimSpace(f[idx+1:]))
		if err != nil {
			return nil, &Error{Reason: ReasonProtocolError, Detail: "malformed Encapsulated offset: " + f}
		}
		out = append(out, EncapsulatedEntry{Part: EncapsulatedPart(strings.TrimSpace(f[:idx])), Offset: offset})
	}
	return out, nil
}

// Has reports whether part appears in e.
func (e Encapsulated) Has(part EncapsulatedPart) bool {
	for _, entry := range e {
		if entry.Part == part {
			return true
		}
	}
	return false
}

// BodyPart returns the body-carrying part (req-body/res-body/opt-body),
// or ("", false) if the message is null-body (no body follows the
// headers at all).
func (e Encapsulated) BodyPart() (EncapsulatedPart, bool) {
	for _, entry := range e {
		switch entry.Part {
		case PartReqBody, PartResBody, PartOptBody:
			return entry.Part, true
		case PartNullBody:
			return "", false
		}
	}
	return "", false
}

// buildReqmodEncapsulated builds the byte-offset map for a REQMOD
// request whose encapsulated section is [reqHeader][reqBody].
func buildReqmodEncapsulated(reqHeaderLen int, hasBody bool) Encapsulated {
	if !hasBody {
		return Encapsulated{{Part: PartReqHdr, Offset: 0}, {Part: PartNullBody, Offset: reqHeaderLen}}
	}
	return Encapsulated{{Part: PartReqHdr, Offset: 0}, {Part: PartReqBody, Offset: reqHeaderLen}}
}

// buildRespmodEncapsulated builds the byte-offset map for a RESPMOD
// request whose encapsulated section is [reqHeader][resHeader][resBody].
func buildRespmodEncapsulated(reqHeaderLen, resHeaderLen int, hasBody bool) Encapsulated {
	e := Encapsulated{}
	off := 0
	if reqHeaderLen > 0 {
		e = append(e, EncapsulatedEntry{Part: PartReqHdr, Offset: off})
		off += reqHeaderLen
	}
	e = append(e, EncapsulatedEntry{Part: PartResHdr, Offset: off})
	off += resHeaderLen
	if hasBody {
		e = append(e, EncapsulatedEntry{Part: PartResBody, Offset: off})
	} else {
		e = append(e, EncapsulatedEntry{Part: PartNullBody, Offset: off})
	}
	return e
}
