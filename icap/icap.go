// Package icap implements the REQMOD/RESPMOD client of spec §4.7: an
// OPTIONS-then-exchange lifecycle per service, an Encapsulated byte-offset
// header, preview/100-continue body streaming, and the exhaustive
// 204/200/error response classification spec §4.7 requires. Grounded on
// the teacher's httpserver package for the request/response line
// conventions (via codec/http1) and httpserver/pool for the per-service
// connection reuse shape, generalized here from an HTTP server's listener
// pool into an outbound ICAP client pool (pool.Pool[string, *Session]).
package icap

import (
	"fmt"
	"net/textproto"
	"time"
)

// Method is the ICAP request method.
type Method string

const (
	MethodOptions Method = "OPTIONS"
	MethodReqmod  Method = "REQMOD"
	MethodRespmod Method = "RESPMOD"
)

// ErrorReason is the exhaustive ICAP error taxonomy spec §4.7 names for
// the "Error" response branch.
type ErrorReason int

const (
	ReasonNoBodyFound ErrorReason = iota
	ReasonProtocolError
	ReasonServiceOverloaded
	ReasonUnexpectedResponse
)

func (r ErrorReason) String() string {
	switch r {
	case ReasonNoBodyFound:
		return "no_body_found"
	case ReasonProtocolError:
		return "protocol_error"
	case ReasonServiceOverloaded:
		return "service_overloaded"
	case ReasonUnexpectedResponse:
		return "unexpected_response"
	default:
		return "unknown"
	}
}

// Error is what a failed exchange returns. StatusCode is 0 for
// transport-level failures (dial/IO) that never produced an ICAP status
// line at all.
type Error struct {
	Reason     ErrorReason
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("icap: %s: %s", e.Reason, e.Detail)
	}
	return fmt.Sprintf("icap: %s (status %d): %s", e.Reason, e.StatusCode, e.Detail)
}

// ServiceConfig names one configured ICAP service endpoint, e.g.
// "icap://scanner.local:1344/reqmod".
type ServiceConfig struct {
	Addr    string // host:port
	URI     string // ICAP request-URI path, e.g. "/reqmod"
	TLS     bool
	Timeout time.Duration
}

// Capabilities is the parsed OPTIONS response, cached per service after
// the first exchange per spec §4.7 step 1.
type Capabilities struct {
	Methods        []Method
	PreviewBytes   int // -1 if the service advertised no Preview
	Allow204       bool
	MaxConnections int
	TransferIgnore []string
	FetchedAt      time.Time
}

func (c *Capabilities) supports(m Method) bool {
	for _, cm := range c.Methods {
		if cm == m {
			return true
		}
	}
	return false
}

// HTTPHead is the minimal HTTP request or response head an adaptation
// exchanges as its ICAP-encapsulated payload: a request/status line plus
// ordered headers, matching codec/http1's line-level parse results
// rather than net/http's richer (and here, unneeded) Request/Response
// types.
type HTTPHead struct {
	StartLine string // e.g. "GET / HTTP/1.1" or "HTTP/1.1 200 OK"
	Header    textproto.MIMEHeader
}

// Bytes renders the head as it appears on the wire, CRLF-terminated,
// with the blank line separating headers from body.
func (h *HTTPHead) Bytes() []byte {
	var b []byte
	b = append(b, h.StartLine...)
	b = append(b, "\r\n"...)
	for k, vs := range h.Header {
		for _, v := range vs {
			b = append(b, k...)
			b = append(b, ": "...)
			b = append(b, v...)
			b = append(b, "\r\n"...)
		}
	}
	b = append(b, "\r\n"...)
	return b
}
