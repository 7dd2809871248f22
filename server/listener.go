package server

import (
	"context"
	"net"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"
)

// LimitedTcpListener wraps a net.Listener with spec §4.10 step 1's
// offline-tolerance: Offline() stops Accept from handing out new
// connections without touching connections already accepted (they are
// independent file descriptors; closing the listener's own fd never
// affects them), and SO_REUSEPORT binding so several listeners can share
// one address for load balancing. Grounded on the teacher's
// httpserver.PortInUse/PortNotUse dial-probe pattern for the "is this
// address already bound" check, generalized here into the reuseport
// listen path itself.
type LimitedTcpListener struct {
	ln      net.Listener
	offline atomic.Bool
}

// Listen binds addr, setting SO_REUSEPORT first when reusePort is true.
func Listen(ctx context.Context, network, addr string, reusePort bool) (*LimitedTcpListener, error) {
	lc := net.ListenConfig{}
	if reusePort {
		lc.Control = controlReusePort
	}

	ln, err := lc.Listen(ctx, network, addr)
	if err != nil {
		return nil, err
	}

	return &LimitedTcpListener{ln: ln}, nil
}

func controlReusePort(network, address string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, unix.SO_REUSEPORT, 1)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// Accept blocks until a new connection arrives or the listener goes
// offline, in which case it returns net.ErrClosed the same way a closed
// listener would, so existing Accept-loop callers need no special case.
func (l *LimitedTcpListener) Accept() (net.Conn, error) {
	if l.offline.Load() {
		return nil, net.ErrClosed
	}
	return l.ln.Accept()
}

// Offline stops future Accept calls from succeeding by closing the
// underlying listening socket. Connections already returned by Accept
// keep running to completion — they hold their own fds.
func (l *LimitedTcpListener) Offline() error {
	l.offline.Store(true)
	return l.ln.Close()
}

// IsOffline reports whether Offline has been called.
func (l *LimitedTcpListener) IsOffline() bool {
	return l.offline.Load()
}

// Addr reports the bound local address, spec §4.10 step 1's "reports
// the bound local address".
func (l *LimitedTcpListener) Addr() net.Addr {
	return l.ln.Addr()
}
