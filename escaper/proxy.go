package escaper

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sabouaram/g3edge/codec/http1"
	"github.com/sabouaram/g3edge/internal/stat"
)

// chainedProxy is the shared shape of every escaper that reaches its
// target through a single next-hop proxy rather than dialing it
// directly: ProxyHttp, ProxyHttps, ProxySocks5 differ only in the
// handshake used to establish the tunnel through NextHop.
type chainedProxy struct {
	base
	NextHop string // host:port of the next-hop proxy
	Timeout time.Duration
	dial    func(ctx context.Context, addr string) (net.Conn, error)
}

func (c *chainedProxy) dialNextHop(ctx context.Context, addr string) (net.Conn, error) {
	if c.dial != nil {
		return c.dial(ctx, addr)
	}
	d := net.Dialer{Timeout: c.Timeout}
	return d.DialContext(ctx, "tcp", addr)
}

// ProxyHttp escapes through a next-hop HTTP proxy using the CONNECT
// method, spec §3's ProxyHttp variant.
type ProxyHttp struct{ chainedProxy }

func NewProxyHttp(name stat.NodeName, nextHop string, timeout time.Duration) *ProxyHttp {
	return &ProxyHttp{chainedProxy{base: newBase(name), NextHop: nextHop, Timeout: timeout}}
}

func (p *ProxyHttp) OpenTCP(ctx context.Context, notes *TaskNotes, host string, port int) (net.Conn, error) {
	notes.MarkConnecting()
	conn, err := p.dialNextHop(ctx, p.NextHop)
	if err != nil {
		return nil, err
	}

	target := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	req := fmt.Sprintf("CONNECT %s HTTP/1.1\r\nHost: %s\r\n\r\n", target, target)
	if _, err := conn.Write([]byte(req)); err != nil {
		conn.Close()
		return nil, err
	}

	r := bufio.NewReader(conn)
	line, err := r.ReadString('\n')
	if err != nil {
		conn.Close()
		return nil, err
	}
	status, err := http1.ParseStatusLine(trimCRLF(line))
	if err != nil {
		conn.Close()
		return nil, err
	}
	if status.Code != 200 {
		conn.Close()
		return nil, fmt.Errorf("escaper: CONNECT via %s rejected: %d %s", p.NextHop, status.Code, status.Reason)
	}
	for {
		hline, err := r.ReadString('\n')
		if err != nil {
			conn.Close()
			return nil, err
		}
		if trimCRLF(hline) == "" {
			break
		}
	}

	notes.MarkConnected()
	notes.UpstreamAddr = conn.RemoteAddr()
	return &bufferedConn{Conn: conn, r: r}, nil
}

func (p *ProxyHttp) SupportsHTTPForward() bool { return true }

// ProxyHttps is ProxyHttp over a TLS-wrapped connection to the next-hop
// proxy itself (the tunnel payload is unaffected); callers that need TLS
// to the next hop set chainedProxy.dial to a TLS dialer.
type ProxyHttps struct{ ProxyHttp }

func NewProxyHttps(name stat.NodeName, nextHop string, timeout time.Duration, dial func(context.Context, string) (net.Conn, error)) *ProxyHttps {
	p := &ProxyHttps{ProxyHttp{chainedProxy{base: newBase(name), NextHop: nextHop, Timeout: timeout, dial: dial}}}
	return p
}

// ProxySocks5 escapes through a next-hop SOCKS5 proxy with no
// authentication, spec §3's ProxySocks5 variant.
type ProxySocks5 struct{ chainedProxy }

func NewProxySocks5(name stat.NodeName, nextHop string, timeout time.Duration) *ProxySocks5 {
	return &ProxySocks5{chainedProxy{base: newBase(name), NextHop: nextHop, Timeout: timeout}}
}

func (p *ProxySocks5) OpenTCP(ctx context.Context, notes *TaskNotes, host string, port int) (net.Conn, error) {
	notes.MarkConnecting()
	conn, err := p.dialNextHop(ctx, p.NextHop)
	if err != nil {
		return nil, err
	}

	if err := socks5Handshake(conn, host, port); err != nil {
		conn.Close()
		return nil, err
	}

	notes.MarkConnected()
	notes.UpstreamAddr = conn.RemoteAddr()
	return conn, nil
}

// socks5Handshake performs the client side of a no-auth SOCKS5 CONNECT
// exchange, spec §8 scenario 2's sibling handshake (the proxy's own
// listener parses the same request shape server-side).
func socks5Handshake(conn net.Conn, host string, port int) error {
	if _, err := conn.Write([]byte{0x05, 0x01, 0x00}); err != nil {
		return err
	}
	reply := make([]byte, 2)
	if _, err := conn.Read(reply); err != nil {
		return err
	}
	if reply[0] != 0x05 || reply[1] != 0x00 {
		return fmt.Errorf("escaper: socks5 method negotiation rejected")
	}

	req := []byte{0x05, 0x01, 0x00}
	if ip := net.ParseIP(host); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			req = append(req, 0x01)
			req = append(req, v4...)
		} else {
			req = append(req, 0x04)
			req = append(req, ip.To16()...)
		}
	} else {
		req = append(req, 0x03, byte(len(host)))
		req = append(req, host...)
	}
	req = append(req, byte(port>>8), byte(port))

	if _, err := conn.Write(req); err != nil {
		return err
	}

	resp := make([]byte, 4)
	if _, err := conn.Read(resp); err != nil {
		return err
	}
	if resp[1] != 0x00 {
		return fmt.Errorf("escaper: socks5 connect rejected, code %d", resp[1])
	}

	// Discard the bound-address portion of the reply (variable length).
	switch resp[3] {
	case 0x01:
		discard(conn, 4+2)
	case 0x03:
		lenBuf := make([]byte, 1)
		conn.Read(lenBuf)
		discard(conn, int(lenBuf[0])+2)
	case 0x04:
		discard(conn, 16+2)
	}
	return nil
}

func discard(r net.Conn, n int) {
	buf := make([]byte, n)
	r.Read(buf)
}

// ProxyFloat is ProxySocks5 combined with DirectFloat's rotating local
// bind address, spec §3's ProxyFloat variant: each dial to the next hop
// uses the next address in Pool and is followed by a SOCKS5 handshake.
// It has no HTTP CONNECT mode.
type ProxyFloat struct {
	chainedProxy
	Pool []net.Addr
	next int
}

func NewProxyFloat(name stat.NodeName, nextHop string, pool []net.Addr, timeout time.Duration) *ProxyFloat {
	return &ProxyFloat{chainedProxy: chainedProxy{base: newBase(name), NextHop: nextHop, Timeout: timeout}, Pool: pool}
}

func (p *ProxyFloat) OpenTCP(ctx context.Context, notes *TaskNotes, host string, port int) (net.Conn, error) {
	var local net.Addr
	if len(p.Pool) > 0 {
		local = p.Pool[p.next%len(p.Pool)]
		p.next++
	}
	dl := net.Dialer{Timeout: p.Timeout, LocalAddr: local}
	notes.MarkConnecting()
	conn, err := dl.DialContext(ctx, "tcp", p.NextHop)
	if err != nil {
		return nil, err
	}
	if err := socks5Handshake(conn, host, port); err != nil {
		conn.Close()
		return nil, err
	}
	notes.MarkConnected()
	notes.UpstreamAddr = conn.RemoteAddr()
	return conn, nil
}

// bufferedConn re-attaches a bufio.Reader's look-ahead buffer to a
// net.Conn after the CONNECT response's headers have been consumed from
// it, so the tunnel's first upstream bytes aren't lost in the reader.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (b *bufferedConn) Read(p []byte) (int, error) { return b.r.Read(p) }

func trimCRLF(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
