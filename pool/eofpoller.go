package pool

import "sync"

// eofPoller races a blocking peer-read against a checkout of the idle
// connection it's watching, per spec §4.5: "a per-connection poller that
// races peer_read against a oneshot return channel". Whichever happens
// first wins; if the peer read wins, the connection is considered dead
// and is not handed back out.
type eofPoller struct {
	mu       sync.Mutex
	done     chan struct{}
	returnCh chan struct{}
	fired    bool
	err      error
}

func newEOFPoller(peek func() error) *eofPoller {
	p := &eofPoller{
		done:     make(chan struct{}),
		returnCh: make(chan struct{}, 1),
	}
	go p.run(peek)
	return p
}

func (p *eofPoller) run(peek func() error) {
	peekErr := make(chan error, 1)
	go func() { peekErr <- peek() }()

	select {
	case err := <-peekErr:
		p.mu.Lock()
		p.fired = true
		p.err = err
		p.mu.Unlock()
		close(p.done)
	case <-p.returnCh:
		// Checked back out before the peer sent anything. The peek
		// goroutine is left running; it exits once the connection is
		// next closed or the peer finally writes.
	}
}

// stop signals the poller that its connection has been checked out
// again, abandoning the race. Safe to call more than once.
func (p *eofPoller) stop() {
	select {
	case p.returnCh <- struct{}{}:
	default:
	}
}

// Fired reports whether the peer read won the race, and if so the error
// it observed (possibly nil, meaning an unexpected successful read).
func (p *eofPoller) Fired() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fired, p.err
}
