package icap

import (
	"bufio"
	"io"
	"net/textproto"
	"strconv"
	"strings"
)

// RawResponse is an ICAP response's status line, headers, and the
// Encapsulated map parsed out of those headers, before the caller has
// consumed any encapsulated bytes.
type RawResponse struct {
	StatusCode int
	Reason     string
	Header     textproto.MIMEHeader
	Enc        Encapsulated
}

// readResponse parses one ICAP response from r: status line, headers,
// and (if present) the Encapsulated header. It does not consume any
// bytes beyond the header-terminating blank line.
func readResponse(r *bufio.Reader) (*RawResponse, error) {
	tp := textproto.NewReader(r)

	line, err := tp.ReadLine()
	if err != nil {
		return nil, &Error{Reason: ReasonProtocolError, Detail: "reading ICAP status line: " + err.Error()}
	}
	code, reason, err := parseStatusLine(line)
	if err != nil {
		return nil, err
	}

	header, err := tp.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		return nil, &Error{Reason: ReasonProtocolError, Detail: "reading ICAP headers: " + err.Error()}
	}

	resp := &RawResponse{StatusCode: code, Reason: reason, Header: header}

	if encVal := header.Get("Encapsulated"); encVal != "" {
		enc, err := ParseEncapsulated(encVal)
		if err != nil {
			return nil, err
		}
		resp.Enc = enc
	}

	return resp, nil
}

func parseStatusLine(line string) (code int, reason string, err error) {
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return 0, "", &Error{Reason: ReasonProtocolError, Detail: "malformed ICAP status line: " + line}
	}
	code, cerr := strconv.Atoi(parts[1])
	if cerr != nil {
		return 0, "", &Error{Reason: ReasonProtocolError, Detail: "malformed ICAP status code: " + line}
	}
	if len(parts) == 3 {
		reason = parts[2]
	}
	return code, reason, nil
}

// classify maps an ICAP status code onto the spec §4.7 exhaustive
// three-branch response taxonomy: 204 (unchanged), 2xx (modified),
// everything else (error).
type responseClass int

const (
	classNoContent responseClass = iota
	classModified
	classError
)

func classify(code int) responseClass {
	switch {
	case code == 204:
		return classNoContent
	case code >= 200 && code < 300:
		return classModified
	default:
		return classError
	}
}

func classifyError(resp *RawResponse) *Error {
	switch {
	case resp.StatusCode == 404 || resp.StatusCode == 400:
		return &Error{Reason: ReasonNoBodyFound, StatusCode: resp.StatusCode, Detail: resp.Reason}
	case resp.StatusCode == 503:
		return &Error{Reason: ReasonServiceOverloaded, StatusCode: resp.StatusCode, Detail: resp.Reason}
	case resp.StatusCode >= 500:
		return &Error{Reason: ReasonUnexpectedResponse, StatusCode: resp.StatusCode, Detail: resp.Reason}
	default:
		return &Error{Reason: ReasonProtocolError, StatusCode: resp.StatusCode, Detail: resp.Reason}
	}
}
