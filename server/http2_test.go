package server

import (
	"bufio"
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"golang.org/x/net/http2"

	"github.com/stretchr/testify/require"
)

// TestPipelineServeHTTP2RelaysOverHTTP1Upstream drives an HTTP/2 client
// stream (golang.org/x/net/http2.Transport over a net.Pipe, AllowHTTP
// so no TLS handshake is needed for the test) through ServeHTTP2 and
// checks the upstream — an ordinary HTTP/1.x stub — sees a forwarded
// request and the client sees its response relayed back as an HTTP/2
// response.
func TestPipelineServeHTTP2RelaysOverHTTP1Upstream(t *testing.T) {
	upstreamLn, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer upstreamLn.Close()
	serveOneStubResponse(t, upstreamLn, "HTTP/1.1 200 OK\r\nContent-Length: 2\r\n\r\nhi")

	esc := newFixedUpstreamEscaper(upstreamLn.Addr().String())
	cfg := &Config{Name: "h2-test", Mode: ModeHTTPSReverse, Escaper: esc}
	cfg.defaults()
	p := NewPipeline(cfg, 4)

	clientConn, serverConn := net.Pipe()

	info := &ConnInfo{ClientAddr: clientConn.RemoteAddr(), ServerAddr: clientConn.LocalAddr()}

	go p.ServeHTTP2(context.Background(), serverConn, info)

	transport := &http2.Transport{
		AllowHTTP: true,
		DialTLS: func(network, addr string, cfg *tls.Config) (net.Conn, error) {
			return clientConn, nil
		},
	}
	defer transport.CloseIdleConnections()

	req, err := http.NewRequest(http.MethodGet, "http://example.test/", nil)
	require.NoError(t, err)

	respCh := make(chan *http.Response, 1)
	errCh := make(chan error, 1)
	go func() {
		resp, rerr := transport.RoundTrip(req)
		if rerr != nil {
			errCh <- rerr
			return
		}
		respCh <- resp
	}()

	select {
	case resp := <-respCh:
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		require.Equal(t, "hi", string(body))
	case err := <-errCh:
		t.Fatalf("round trip failed: %v", err)
	case <-time.After(3 * time.Second):
		t.Fatal("http2 round trip did not complete")
	}
}

func TestWriteH1RequestAbsoluteForm(t *testing.T) {
	r, err := http.NewRequest(http.MethodGet, "http://example.test/path?x=1", nil)
	require.NoError(t, err)
	r.Host = "example.test"

	pr, pw := net.Pipe()
	go func() {
		writeH1Request(pw, r)
		pw.Close()
	}()

	br := bufio.NewReader(pr)
	line, err := br.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "GET http://example.test/path?x=1 HTTP/1.1\r\n", line)

	io.Copy(io.Discard, br)
}
