package server

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/sabouaram/g3edge/codec/http1"
	"github.com/sabouaram/g3edge/icap"
	"github.com/sabouaram/g3edge/internal/g3err"
	"github.com/sabouaram/g3edge/ioext"
)

// readCRLFLine reads one line up to and including "\n" and strips the
// trailing CRLF (or bare LF), matching codec/http1's "not including the
// trailing CRLF" line contract.
func readCRLFLine(br *bufio.Reader) (string, error) {
	line, err := br.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readHeaderBlock reads header lines via codec/http1.ParseHeaderLine
// until the terminating blank line, spec §4.1.
func readHeaderBlock(br *bufio.Reader) (textproto.MIMEHeader, error) {
	hdr := textproto.MIMEHeader{}
	for {
		line, err := readCRLFLine(br)
		if err != nil {
			return nil, g3err.New(g3err.DomainClientIo, "read-header", err)
		}
		if line == "" {
			return hdr, nil
		}
		h, perr := http1.ParseHeaderLine(line)
		if perr != nil {
			return nil, g3err.New(g3err.DomainInternalProto, "bad-header-line", perr)
		}
		hdr.Add(h.Name, h.Value)
	}
}

// readRequestHead parses one HTTP/1.x request line plus its header
// block into an icap.HTTPHead, reusing that type rather than inventing
// a second "parsed HTTP head" shape — the dataplane and the ICAP client
// need the exact same thing: a start line plus ordered headers.
func readRequestHead(br *bufio.Reader) (*icap.HTTPHead, http1.RequestLine, error) {
	line, err := readCRLFLine(br)
	if err != nil {
		return nil, http1.RequestLine{}, g3err.New(g3err.DomainClientIo, "read-request-line", err)
	}
	rl, perr := http1.ParseRequestLine(line)
	if perr != nil {
		return nil, http1.RequestLine{}, g3err.New(g3err.DomainInternalProto, "bad-request-line", perr)
	}
	hdr, err := readHeaderBlock(br)
	if err != nil {
		return nil, http1.RequestLine{}, err
	}
	return &icap.HTTPHead{StartLine: line, Header: hdr}, rl, nil
}

// readResponseHead is readRequestHead's upstream-facing counterpart.
func readResponseHead(br *bufio.Reader, domain g3err.Domain) (*icap.HTTPHead, http1.StatusLine, error) {
	line, err := readCRLFLine(br)
	if err != nil {
		return nil, http1.StatusLine{}, g3err.New(domain, "read-status-line", err)
	}
	sl, perr := http1.ParseStatusLine(line)
	if perr != nil {
		return nil, http1.StatusLine{}, g3err.New(g3err.DomainInternalProto, "bad-status-line", perr)
	}
	hdr, err := readHeaderBlock(br)
	if err != nil {
		return nil, http1.StatusLine{}, err
	}
	return &icap.HTTPHead{StartLine: line, Header: hdr}, sl, nil
}

// bodyReader returns an io.Reader yielding exactly the message body hdr
// describes: chunked per codec/http1's chunk-size line, Content-Length
// bounded, or empty when neither is present (e.g. a GET with no body).
func bodyReader(br *bufio.Reader, hdr textproto.MIMEHeader) (io.Reader, error) {
	if strings.EqualFold(hdr.Get("Transfer-Encoding"), "chunked") {
		return &chunkedBodyReader{br: br}, nil
	}
	if cl := hdr.Get("Content-Length"); cl != "" {
		n, err := strconv.ParseInt(cl, 10, 64)
		if err != nil || n < 0 {
			return nil, g3err.New(g3err.DomainInternalProto, "bad-content-length", nil)
		}
		return io.LimitReader(br, n), nil
	}
	return io.LimitReader(br, 0), nil
}

// chunkedBodyReader decodes an HTTP/1.1 chunked-transfer body one chunk
// at a time using codec/http1.ParseChunkedLine for the size line.
type chunkedBodyReader struct {
	br   *bufio.Reader
	left int64
	done bool
}

func (c *chunkedBodyReader) Read(p []byte) (int, error) {
	if c.done {
		return 0, io.EOF
	}
	if c.left == 0 {
		line, err := readCRLFLine(c.br)
		if err != nil {
			return 0, g3err.New(g3err.DomainClientIo, "read-chunk-size", err)
		}
		cl, perr := http1.ParseChunkedLine(line)
		if perr != nil {
			return 0, g3err.New(g3err.DomainInternalProto, "bad-chunk-size", perr)
		}
		if cl.ChunkSize == 0 {
			// Trailer block, terminated by the same blank line a header
			// block would be.
			if _, err := readHeaderBlock(c.br); err != nil {
				return 0, err
			}
			c.done = true
			return 0, io.EOF
		}
		c.left = int64(cl.ChunkSize)
	}

	toRead := int64(len(p))
	if toRead > c.left {
		toRead = c.left
	}
	n, err := c.br.Read(p[:toRead])
	c.left -= int64(n)
	if c.left == 0 && err == nil {
		if _, terr := readCRLFLine(c.br); terr != nil {
			return n, terr
		}
	}
	return n, err
}

// writeBody streams body to w through ioext.LimitedCopy, so a large
// proxied body yields to the scheduler every DefaultYieldSize bytes (spec
// §4.2's LimitedCopy).
func writeBody(w io.Writer, body io.Reader) (int64, error) {
	lc := ioext.LimitedCopy{}
	return lc.Copy(w, body)
}

// keepAliveRequested reports whether hdr (together with the protocol
// version) asks for a persistent connection: absent an explicit
// "Connection" header, HTTP/1.1 defaults to keep-alive and HTTP/1.0
// defaults to close.
func keepAliveRequested(hdr textproto.MIMEHeader, version http1.Version) bool {
	conn := strings.ToLower(hdr.Get("Connection"))
	if conn == "close" {
		return false
	}
	if conn == "keep-alive" {
		return true
	}
	return version >= http1.Version11
}

// splitAbsoluteTarget pulls host/port out of a forward-proxy absolute-URI
// request target ("http://example.test/path" or "example.test:443" for
// CONNECT).
func splitAbsoluteTarget(target string) (host string, port int, path string, err error) {
	rest := target
	if idx := strings.Index(rest, "://"); idx >= 0 {
		rest = rest[idx+3:]
	}
	slash := strings.IndexByte(rest, '/')
	path = "/"
	if slash >= 0 {
		path = rest[slash:]
		rest = rest[:slash]
	}
	h, p, err := net.SplitHostPort(rest)
	if err != nil {
		return rest, 80, path, nil
	}
	port, err = strconv.Atoi(p)
	if err != nil {
		return "", 0, "", fmt.Errorf("server: bad port in target %q", target)
	}
	return h, port, path, nil
}
