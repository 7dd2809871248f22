package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"golang.org/x/net/http2"

	"github.com/sabouaram/g3edge/internal/g3log"
)

// ServeHTTP2 terminates an HTTP/2 connection (negotiated over TLS ALPN
// as "h2", per Config.TLSConfig) and forwards each stream through the
// same escape/ICAP/upstream-pool pipeline an HTTP/1.x connection uses.
// golang.org/x/net/http2.Server owns HPACK and stream multiplexing;
// this dataplane path's own job starts and ends at the http.Handler
// boundary, replaying each decoded stream as one HTTP/1.1 request over
// an in-process net.Pipe() into ServeHTTPForward so the escaping and
// upstream-forwarding logic has exactly one implementation regardless
// of which wire protocol the client connection spoke.
func (p *Pipeline) ServeHTTP2(ctx context.Context, conn net.Conn, info *ConnInfo) {
	h2 := &http2.Server{}
	h2.ServeConn(conn, &http2.ServeConnOpts{
		Context: ctx,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p.serveH2Stream(ctx, w, r, info)
		}),
	})
}

func (p *Pipeline) serveH2Stream(ctx context.Context, w http.ResponseWriter, r *http.Request, info *ConnInfo) {
	clientSide, pipelineSide := net.Pipe()

	done := make(chan error, 1)
	go func() {
		done <- p.ServeHTTPForward(ctx, pipelineSide, bufio.NewReader(pipelineSide), info)
	}()

	go func() {
		defer clientSide.Close()
		if err := writeH1Request(clientSide, r); err != nil {
			p.TaskLogger.Warn("h2 stream replay failed", g3log.NewFields().Add("error", err.Error()))
		}
	}()

	br := bufio.NewReader(clientSide)
	resp, err := http.ReadResponse(br, r)
	if err != nil {
		w.WriteHeader(http.StatusBadGateway)
		<-done
		return
	}
	defer resp.Body.Close()

	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	io.Copy(w, resp.Body)

	<-done
}

// writeH1Request re-serializes an *http.Request decoded off an HTTP/2
// stream into the absolute-form HTTP/1.1 request line the forward
// pipeline's splitAbsoluteTarget expects, forcing Connection: close so
// exactly one request/response cycle runs over the scratch net.Pipe.
func writeH1Request(w io.Writer, r *http.Request) error {
	target := r.URL.RequestURI()
	if _, err := fmt.Fprintf(w, "%s http://%s%s HTTP/1.1\r\n", r.Method, r.Host, target); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Host: %s\r\n", r.Host); err != nil {
		return err
	}
	for k, vs := range r.Header {
		for _, v := range vs {
			if _, err := fmt.Fprintf(w, "%s: %s\r\n", k, v); err != nil {
				return err
			}
		}
	}
	if r.ContentLength > 0 {
		if _, err := fmt.Fprintf(w, "Content-Length: %s\r\n", strconv.FormatInt(r.ContentLength, 10)); err != nil {
			return err
		}
	}
	if _, err := io.WriteString(w, "Connection: close\r\n\r\n"); err != nil {
		return err
	}
	if r.Body != nil {
		if _, err := io.Copy(w, r.Body); err != nil {
			return err
		}
	}
	return nil
}
