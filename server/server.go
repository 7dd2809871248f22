package server

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/sabouaram/g3edge/internal/g3log"
)

// Server ties one Config to a LimitedTcpListener and drives spec §4.10's
// accept loop end to end: capture connection info, dispatch by Mode, run
// the per-request pipeline, and track every in-flight task so Shutdown
// can implement the three-stage drain of step 5.
type Server struct {
	cfg      *Config
	ln       *LimitedTcpListener
	pipeline *Pipeline
	Logger   g3log.Logger

	mu     sync.Mutex
	active map[net.Conn]struct{}
	wg     sync.WaitGroup
}

// NewServer builds a Server bound to ln, running cfg's pipeline over
// every accepted connection. poolSize bounds the upstream pool's
// per-key concurrent dial count, spec §4.5.
func NewServer(cfg *Config, ln *LimitedTcpListener, poolSize int) *Server {
	cfg.defaults()
	return &Server{
		cfg:      cfg,
		ln:       ln,
		pipeline: NewPipeline(cfg, poolSize),
		Logger:   g3log.Discard(),
		active:   make(map[net.Conn]struct{}),
	}
}

// Run accepts connections until the listener goes offline (Shutdown
// calls Offline first), handling each on its own goroutine.
func (s *Server) Run(ctx context.Context) error {
	s.pipeline.TaskLogger = s.Logger
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.ln.IsOffline() {
				return nil
			}
			return err
		}

		s.track(conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.untrack(conn)
			defer conn.Close()
			s.handle(ctx, conn)
		}()
	}
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	s.active[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.active, conn)
	s.mu.Unlock()
}

func (s *Server) handle(ctx context.Context, raw net.Conn) {
	info, conn, br, err := CaptureConnInfo(raw, s.cfg)
	if err != nil {
		s.Logger.Warn("connection setup failed", g3log.NewFields().Add("error", err.Error()))
		return
	}

	if info.TLSState != nil && info.TLSState.NegotiatedProtocol == "h2" {
		s.pipeline.ServeHTTP2(ctx, conn, info)
		return
	}

	mode := s.cfg.Mode
	if mode == ModeIntelli {
		mode, err = Detect(br)
		if err != nil {
			s.Logger.Warn("protocol detection failed", g3log.NewFields().Add("error", err.Error()))
			return
		}
	}

	switch mode {
	case ModeHTTPForward, ModeHTTPSReverse:
		if err := s.pipeline.ServeHTTPForward(ctx, conn, br, info); err != nil {
			s.Logger.Warn("task ended in error", g3log.NewFields().Add("error", err.Error()))
		}
	default:
		// Other Mode values (SOCKS, SNI, tcp-stream, TLS-TPROXY) are
		// handled by their own dataplane entry points, not this pipeline.
		s.Logger.Warn("unsupported server mode", g3log.NewFields().Add("mode", mode.String()))
	}
}

// Shutdown runs spec §4.10 step 5's three-stage graceful drain: stop
// accepting, wait TaskWaitDelay before even checking for drain, then
// poll up to TaskWaitTimeout for in-flight tasks to finish on their own,
// then force-close whatever's left and return once TaskQuitTimeout
// elapses or everything has stopped, whichever comes first.
func (s *Server) Shutdown() {
	s.ln.Offline()
	s.pipeline.Shutdown()

	if s.cfg.TaskWaitDelay > 0 {
		time.Sleep(s.cfg.TaskWaitDelay)
	}

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return
	case <-time.After(s.cfg.TaskWaitTimeout):
	}

	s.mu.Lock()
	for conn := range s.active {
		conn.Close()
	}
	s.mu.Unlock()

	select {
	case <-drained:
	case <-time.After(s.cfg.TaskQuitTimeout):
	}
}
