package escaper

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sabouaram/g3edge/internal/stat"
	"github.com/sabouaram/g3edge/resolver"
)

// resolveFirst picks the first address a ResolverHandle's GetV4/GetV6
// call yields, preferring v4, matching the teacher's dial-v4-then-v6
// fallback convention seen in its socket/client package.
func resolveFirst(ctx context.Context, h *resolver.ResolverHandle, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}

	job := h.GetV4(ctx, host)
	res, err := job.Await(ctx)
	if err == nil && res.Err == nil && len(res.IPs) > 0 {
		return res.IPs[0], nil
	}

	job6 := h.GetV6(ctx, host)
	res6, err6 := job6.Await(ctx)
	if err6 == nil && res6.Err == nil && len(res6.IPs) > 0 {
		return res6.IPs[0], nil
	}

	if res.Err != nil {
		return nil, res.Err
	}
	return nil, fmt.Errorf("escaper: no address found for %s", host)
}

// DirectFixed dials straight to the resolved upstream address from a
// single, fixed local bind address (or the OS default if unset), spec
// §3's simplest escaper variant.
type DirectFixed struct {
	base
	Resolver  *resolver.ResolverHandle
	LocalAddr net.Addr
	Timeout   time.Duration
}

// NewDirectFixed builds a DirectFixed escaper named name.
func NewDirectFixed(name stat.NodeName, r *resolver.ResolverHandle, timeout time.Duration) *DirectFixed {
	return &DirectFixed{base: newBase(name), Resolver: r, Timeout: timeout}
}

func (d *DirectFixed) dialer() *net.Dialer {
	dl := &net.Dialer{Timeout: d.Timeout}
	if d.LocalAddr != nil {
		dl.LocalAddr = d.LocalAddr
	}
	return dl
}

func (d *DirectFixed) OpenTCP(ctx context.Context, notes *TaskNotes, host string, port int) (net.Conn, error) {
	notes.MarkConnecting()
	ip, err := resolveFirst(ctx, d.Resolver, host)
	if err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(ip.String(), fmt.Sprintf("%d", port))
	conn, err := d.dialer().DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	notes.MarkConnected()
	notes.UpstreamAddr = conn.RemoteAddr()
	return conn, nil
}

func (d *DirectFixed) OpenUDPConnected(ctx context.Context, notes *TaskNotes, host string, port int) (net.Conn, error) {
	ip, err := resolveFirst(ctx, d.Resolver, host)
	if err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(ip.String(), fmt.Sprintf("%d", port))
	conn, err := d.dialer().DialContext(ctx, "udp", addr)
	if err != nil {
		return nil, err
	}
	notes.UpstreamAddr = conn.RemoteAddr()
	return conn, nil
}

func (d *DirectFixed) OpenUDPRelay(ctx context.Context, notes *TaskNotes) (net.PacketConn, error) {
	return net.ListenPacket("udp", ":0")
}

func (d *DirectFixed) SupportsHTTPForward() bool { return true }

// DirectFloat rotates its outbound bind address across Pool on every
// dial, spec §3's DirectFloat variant (e.g. a multi-homed egress host
// spreading load across several public IPs).
type DirectFloat struct {
	base
	Resolver *resolver.ResolverHandle
	Pool     []net.Addr
	Timeout  time.Duration

	next int
}

func NewDirectFloat(name stat.NodeName, r *resolver.ResolverHandle, pool []net.Addr, timeout time.Duration) *DirectFloat {
	return &DirectFloat{base: newBase(name), Resolver: r, Pool: pool, Timeout: timeout}
}

func (d *DirectFloat) pick() net.Addr {
	if len(d.Pool) == 0 {
		return nil
	}
	a := d.Pool[d.next%len(d.Pool)]
	d.next++
	return a
}

func (d *DirectFloat) OpenTCP(ctx context.Context, notes *TaskNotes, host string, port int) (net.Conn, error) {
	notes.MarkConnecting()
	ip, err := resolveFirst(ctx, d.Resolver, host)
	if err != nil {
		return nil, err
	}
	dl := &net.Dialer{Timeout: d.Timeout, LocalAddr: d.pick()}
	addr := net.JoinHostPort(ip.String(), fmt.Sprintf("%d", port))
	conn, err := dl.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	notes.MarkConnected()
	notes.UpstreamAddr = conn.RemoteAddr()
	return conn, nil
}

func (d *DirectFloat) SupportsHTTPForward() bool { return true }
