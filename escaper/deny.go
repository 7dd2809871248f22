package escaper

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/sabouaram/g3edge/internal/stat"
)

// DummyDeny refuses every request outright, spec §3's DummyDeny variant
// (used to stub out an escaper name during configuration rollout, or as
// a RouteMapping fallback that rejects unlisted hosts instead of
// erroring).
type DummyDeny struct {
	base
	Reason string
}

func NewDummyDeny(name stat.NodeName, reason string) *DummyDeny {
	if reason == "" {
		reason = "denied by configuration"
	}
	return &DummyDeny{base: newBase(name), Reason: reason}
}

func (d *DummyDeny) OpenTCP(ctx context.Context, notes *TaskNotes, host string, port int) (net.Conn, error) {
	return nil, fmt.Errorf("escaper %s: %s", d.name, d.Reason)
}

func (d *DummyDeny) OpenUDPConnected(ctx context.Context, notes *TaskNotes, host string, port int) (net.Conn, error) {
	return nil, fmt.Errorf("escaper %s: %s", d.name, d.Reason)
}

func (d *DummyDeny) SupportsHTTPForward() bool { return false }

// Trick accepts the TCP connect but talks just enough of the target
// protocol to look alive to a casual prober before closing, spec §3's
// Trick variant (a honeypot escaper for hosts the operator wants to
// appear reachable without actually relaying traffic).
type Trick struct {
	base
	Banner []byte
	Delay  time.Duration
}

func NewTrick(name stat.NodeName, banner []byte, delay time.Duration) *Trick {
	return &Trick{base: newBase(name), Banner: banner, Delay: delay}
}

func (t *Trick) OpenTCP(ctx context.Context, notes *TaskNotes, host string, port int) (net.Conn, error) {
	client, server := net.Pipe()
	go func() {
		defer server.Close()
		if t.Delay > 0 {
			select {
			case <-time.After(t.Delay):
			case <-ctx.Done():
				return
			}
		}
		if len(t.Banner) > 0 {
			server.Write(t.Banner)
		}
	}()
	notes.MarkConnected()
	return client, nil
}

func (t *Trick) SupportsHTTPForward() bool { return false }
