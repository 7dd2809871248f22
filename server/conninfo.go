package server

import (
	"bufio"
	"context"
	"crypto/tls"
	"net"

	"github.com/sabouaram/g3edge/codec/proxyproto"
)

// ConnInfo is spec §4.10 step 2's "client-connection info", captured
// once right after accept and before any protocol work begins.
type ConnInfo struct {
	ClientAddr net.Addr
	ServerAddr net.Addr
	IsTproxy   bool

	// ProxyHeader is non-nil when a PROXY protocol header was parsed;
	// ClientAddr/ServerAddr above are then overwritten with its
	// endpoints, since that's the real client as seen by the upstream
	// load balancer that added the header.
	ProxyHeader *proxyproto.Header

	// TLSState is non-nil once a TLS handshake has completed on this
	// connection.
	TLSState *tls.ConnectionState
}

// CaptureConnInfo builds a ConnInfo for a freshly accepted connection,
// running the optional PROXY protocol parse and TLS handshake spec
// §4.10 step 2 allows. It returns the connection callers must read and
// write through from this point on (conn itself when TLSConfig is nil,
// the TLS-wrapped connection otherwise — writing to the raw conn after
// a TLS handshake would put plaintext on the wire) along with a
// buffered reader positioned right after any consumed header bytes.
func CaptureConnInfo(conn net.Conn, cfg *Config) (*ConnInfo, net.Conn, *bufio.Reader, error) {
	info := &ConnInfo{
		ClientAddr: conn.RemoteAddr(),
		ServerAddr: conn.LocalAddr(),
		IsTproxy:   cfg.IsTproxy,
	}

	br := bufio.NewReader(conn)

	if cfg.AcceptProxyProtocol {
		ver, err := proxyproto.Detect(br)
		if err != nil {
			return nil, nil, nil, err
		}
		if ver != 0 {
			var hdr proxyproto.Header
			if ver == 1 {
				hdr, err = proxyproto.ParseV1(br)
			} else {
				hdr, err = proxyproto.ParseV2(br)
			}
			if err != nil {
				return nil, nil, nil, err
			}
			info.ProxyHeader = &hdr
			if !hdr.Local {
				info.ClientAddr = net.TCPAddrFromAddrPort(hdr.Client)
				info.ServerAddr = net.TCPAddrFromAddrPort(hdr.Server)
			}
		}
	}

	if cfg.TLSConfig != nil {
		tlsConn := tls.Server(connWithBuffered{Conn: conn, r: br}, cfg.TLSConfig)
		if err := tlsConn.HandshakeContext(context.Background()); err != nil {
			return nil, nil, nil, err
		}
		state := tlsConn.ConnectionState()
		info.TLSState = &state
		br = bufio.NewReader(tlsConn)
		return info, tlsConn, br, nil
	}

	return info, conn, br, nil
}

// connWithBuffered lets a bufio.Reader's already-buffered bytes (e.g.
// ones read while detecting a PROXY protocol header) feed into a fresh
// tls.Server handshake without losing them.
type connWithBuffered struct {
	net.Conn
	r *bufio.Reader
}

func (c connWithBuffered) Read(p []byte) (int, error) {
	return c.r.Read(p)
}
