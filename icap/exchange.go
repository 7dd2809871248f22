package icap

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/sabouaram/g3edge/codec/http1"
)

// Result is what one REQMOD/RESPMOD exchange yields, spec §4.7's
// exhaustive three-branch response handling collapsed into a single
// return value: exactly one of Unmodified, ModifiedHead+Body, or a
// non-nil error is meaningful.
type Result struct {
	// Unmodified is true on a 204 response: spec §4.7 "deliver original
	// HTTP request/response unchanged; keep the ICAP connection."
	Unmodified bool

	// ModifiedHead and Body are set on a 200 response carrying a
	// rewritten HTTP head+body: spec §4.7 "parse encapsulated HTTP head
	// at offset 0, then switch the reader to a body streamer (chunked)
	// that the caller consumes directly."
	ModifiedHead *HTTPHead
	Body         io.Reader
}

// writeChunked writes body to w as one HTTP chunked-transfer-encoded
// stream, reusing codec/http1's chunk-size line formatter so the wire
// framing matches the dataplane's own HTTP/1 chunked codec exactly.
func writeChunked(w io.Writer, body io.Reader, preview int, previewing bool) (previewBytes []byte, isEOF bool, err error) {
	buf := make([]byte, 32*1024)
	if previewing {
		buf = make([]byte, preview)
	}

	for {
		n, rerr := io.ReadFull(body, buf)
		if rerr == io.ErrUnexpectedEOF || rerr == io.EOF {
			isEOF = true
		} else if rerr != nil {
			return nil, false, rerr
		}

		chunk := buf[:n]
		sizeLine := http1.FormatChunkedLine(uint64(n), "")
		if previewing && isEOF {
			sizeLine = http1.FormatChunkedLine(uint64(n), "ieof")
		}

		// Outside a preview an empty read only happens at EOF, where the
		// terminating zero chunk below ends the stream.
		if n > 0 || previewing {
			if _, err := fmt.Fprintf(w, "%s\r\n", sizeLine); err != nil {
				return nil, false, err
			}
		}
		if n > 0 {
			if _, err := w.Write(chunk); err != nil {
				return nil, false, err
			}
			if _, err := io.WriteString(w, "\r\n"); err != nil {
				return nil, false, err
			}
		}
		if isEOF {
			if _, err := io.WriteString(w, "0\r\n\r\n"); err != nil {
				return nil, false, err
			}
		}
		// A preview is a single chunk; otherwise keep reading until EOF.
		if isEOF || previewing {
			return chunk, isEOF, nil
		}
	}
}

// Reqmod runs one REQMOD exchange against svc: the OPTIONS-cached
// service's preview size governs whether the whole body is sent inline
// or a preview chunk is sent first, awaiting "100 Continue" before the
// remainder, per spec §4.7 step 3.
func (c *Client) Reqmod(ctx context.Context, svc ServiceConfig, req *HTTPHead, body io.Reader) (*Result, error) {
	return c.exchange(ctx, svc, MethodReqmod, req, nil, body)
}

// Respmod runs one RESPMOD exchange: the original request head
// (optional, may be nil) plus the response head/body become the
// encapsulated payload.
func (c *Client) Respmod(ctx context.Context, svc ServiceConfig, req, resp *HTTPHead, body io.Reader) (*Result, error) {
	return c.exchange(ctx, svc, MethodRespmod, req, resp, body)
}

func (c *Client) exchange(ctx context.Context, svc ServiceConfig, method Method, req, resp *HTTPHead, body io.Reader) (*Result, error) {
	entry, err := c.checkout(ctx, svc)
	if err != nil {
		return nil, err
	}
	sess := entry.Conn

	result, err := c.runExchange(ctx, sess, method, req, resp, body)
	if err != nil {
		sess.reusable = false
		c.release(svc, entry)
		return nil, err
	}
	c.release(svc, entry)
	return result, nil
}

func (c *Client) runExchange(ctx context.Context, sess *Session, method Method, req, resp *HTTPHead, body io.Reader) (*Result, error) {
	if d, ok := ctx.Deadline(); ok {
		sess.conn.SetDeadline(d)
	}

	hasBody := body != nil
	var reqBytes, respBytes []byte
	if req != nil {
		reqBytes = req.Bytes()
	}
	if resp != nil {
		respBytes = resp.Bytes()
	}

	var enc Encapsulated
	switch method {
	case MethodReqmod:
		enc = buildReqmodEncapsulated(len(reqBytes), hasBody)
	case MethodRespmod:
		enc = buildRespmodEncapsulated(len(reqBytes), len(respBytes), hasBody)
	}

	var headerBuf bytes.Buffer
	fmt.Fprintf(&headerBuf, "%s icap://%s%s ICAP/1.0\r\n", method, sess.service.Addr, sess.service.URI)
	fmt.Fprintf(&headerBuf, "Host: %s\r\n", sess.service.Addr)
	fmt.Fprintf(&headerBuf, "Encapsulated: %s\r\n", enc.String())

	preview := -1
	if sess.caps != nil {
		preview = sess.caps.PreviewBytes
	}
	previewing := hasBody && preview >= 0
	if previewing {
		fmt.Fprintf(&headerBuf, "Preview: %d\r\n", preview)
	}
	if sess.caps != nil && sess.caps.Allow204 {
		headerBuf.WriteString("Allow: 204\r\n")
	}
	headerBuf.WriteString("\r\n")

	headerBuf.Write(reqBytes)
	headerBuf.Write(respBytes)

	if _, err := sess.conn.Write(headerBuf.Bytes()); err != nil {
		return nil, &Error{Reason: ReasonProtocolError, Detail: "writing ICAP request: " + err.Error()}
	}

	if !hasBody {
		return c.readFinalResponse(sess, req, resp)
	}

	previewBytes, isEOF, err := writeChunked(sess.conn, body, preview, previewing)
	if err != nil {
		return nil, &Error{Reason: ReasonProtocolError, Detail: "writing preview body: " + err.Error()}
	}
	_ = previewBytes

	if previewing && !isEOF {
		interim, err := readResponse(sess.reader)
		if err != nil {
			return nil, err
		}
		if interim.StatusCode != 100 {
			// Service decided from the preview alone (204/200/error).
			return c.interpretFinal(sess, interim, req, resp)
		}
		// "100 Continue": send the remainder, unbounded this time.
		if _, _, err := writeChunked(sess.conn, body, 0, false); err != nil {
			return nil, &Error{Reason: ReasonProtocolError, Detail: "writing remaining body: " + err.Error()}
		}
	}

	return c.readFinalResponse(sess, req, resp)
}

func (c *Client) readFinalResponse(sess *Session, req, resp *HTTPHead) (*Result, error) {
	final, err := readResponse(sess.reader)
	if err != nil {
		return nil, err
	}
	return c.interpretFinal(sess, final, req, resp)
}

// interpretFinal implements spec §4.7's exhaustive three-branch
// response handling.
func (c *Client) interpretFinal(sess *Session, resp *RawResponse, origReq, origResp *HTTPHead) (*Result, error) {
	if resp.Header.Get("Connection") == "close" {
		sess.reusable = false
	}

	switch classify(resp.StatusCode) {
	case classNoContent:
		return &Result{Unmodified: true}, nil

	case classModified:
		part, hasBody := resp.Enc.BodyPart()
		head, err := parseEncapsulatedHead(sess.reader, resp.Enc)
		if err != nil {
			return nil, err
		}
		if !hasBody {
			return &Result{ModifiedHead: head}, nil
		}
		_ = part
		return &Result{ModifiedHead: head, Body: newChunkedReader(sess.reader)}, nil

	default:
		return nil, classifyError(resp)
	}
}

// parseEncapsulatedHead reads the req-hdr or res-hdr section that begins
// at offset 0 of a 200 response's encapsulated payload, per spec §4.7:
// "parse encapsulated HTTP head at offset 0."
func parseEncapsulatedHead(r *bufio.Reader, enc Encapsulated) (*HTTPHead, error) {
	if len(enc) == 0 {
		return nil, nil
	}
	if enc[0].Part != PartReqHdr && enc[0].Part != PartResHdr {
		return nil, &Error{Reason: ReasonUnexpectedResponse, Detail: "encapsulated head does not start at offset 0"}
	}

	startLine, err := r.ReadString('\n')
	if err != nil {
		return nil, &Error{Reason: ReasonProtocolError, Detail: "reading encapsulated start line: " + err.Error()}
	}

	header := make(map[string][]string)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return nil, &Error{Reason: ReasonProtocolError, Detail: "reading encapsulated headers: " + err.Error()}
		}
		trimmed := trimCRLF(line)
		if trimmed == "" {
			break
		}
		h, err := http1.ParseHeaderLine(trimmed)
		if err != nil {
			return nil, &Error{Reason: ReasonProtocolError, Detail: "parsing encapsulated header: " + err.Error()}
		}
		header[h.Name] = append(header[h.Name], h.Value)
	}

	return &HTTPHead{StartLine: trimCRLF(startLine), Header: header}, nil
}

func trimCRLF(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// chunkedReader adapts an HTTP chunked-transfer-encoded stream into a
// plain io.Reader, per spec §4.7's "switch the reader to a body
// streamer (chunked) that the caller consumes directly."
type chunkedReader struct {
	r         *bufio.Reader
	remaining int
	done      bool
}

func newChunkedReader(r *bufio.Reader) *chunkedReader { return &chunkedReader{r: r} }

func (c *chunkedReader) Read(p []byte) (int, error) {
	if c.done {
		return 0, io.EOF
	}
	if c.remaining == 0 {
		line, err := c.r.ReadString('\n')
		if err != nil {
			return 0, err
		}
		cl, err := http1.ParseChunkedLine(trimCRLF(line))
		if err != nil {
			return 0, err
		}
		if cl.ChunkSize == 0 {
			c.done = true
			// Consume the trailing CRLF after the zero chunk.
			c.r.ReadString('\n')
			return 0, io.EOF
		}
		c.remaining = int(cl.ChunkSize)
	}

	n := len(p)
	if n > c.remaining {
		n = c.remaining
	}
	read, err := io.ReadFull(c.r, p[:n])
	c.remaining -= read
	if c.remaining == 0 {
		// Consume the chunk-trailing CRLF.
		c.r.Discard(2)
	}
	return read, err
}
