package escaper

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/sabouaram/g3edge/resolver"
	"github.com/stretchr/testify/require"
)

type fakeDriver struct{ ip net.IP }

func (f fakeDriver) Resolve(ctx context.Context, name string, qtype resolver.QType) ([]net.IP, error) {
	if qtype == resolver.QTypeAAAA {
		return nil, resolver.ErrDenied
	}
	return []net.IP{f.ip}, nil
}

func newTestResolverHandle(ip net.IP) *resolver.ResolverHandle {
	r := resolver.NewResolver(fakeDriver{ip: ip}, time.Second, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	h := resolver.NewResolverHandle(ctx, r)
	_ = cancel
	return h
}

func TestDirectFixedOpenTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	h := newTestResolverHandle(addr.IP)
	d := NewDirectFixed("direct-1", h, 2*time.Second)

	notes := NewTaskNotes(nil, nil)
	conn, err := d.OpenTCP(context.Background(), notes, "upstream.test", addr.Port)
	require.NoError(t, err)
	defer conn.Close()
	require.False(t, notes.ConnectStart.IsZero())
	require.False(t, notes.ConnectDone.IsZero())
	require.NotNil(t, notes.UpstreamAddr)
}

func TestDirectFixedUsesLiteralIP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		c, err := ln.Accept()
		if err == nil {
			c.Close()
		}
	}()

	d := NewDirectFixed("direct-2", newTestResolverHandle(net.ParseIP("10.0.0.1")), 2*time.Second)
	notes := NewTaskNotes(nil, nil)
	addr := ln.Addr().(*net.TCPAddr)
	conn, err := d.OpenTCP(context.Background(), notes, "127.0.0.1", addr.Port)
	require.NoError(t, err)
	conn.Close()
}

func TestDirectFloatRotatesLocalAddr(t *testing.T) {
	pool := []net.Addr{
		&net.TCPAddr{IP: net.IPv4zero, Port: 0},
		&net.TCPAddr{IP: net.IPv4zero, Port: 0},
	}
	d := NewDirectFloat("float-1", newTestResolverHandle(net.ParseIP("127.0.0.1")), pool, time.Second)
	require.Equal(t, pool[0], d.pick())
	require.Equal(t, pool[1], d.pick())
	require.Equal(t, pool[0], d.pick())
}

func TestDirectEscaperSupportsHTTPForward(t *testing.T) {
	d := NewDirectFixed("direct-3", newTestResolverHandle(net.ParseIP("127.0.0.1")), time.Second)
	var hf HTTPForwarder = d
	require.True(t, hf.SupportsHTTPForward())
}
