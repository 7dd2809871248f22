package runtime

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sabouaram/g3edge/internal/g3log"
)

// AsyncSignalAction is spec §4.11's "handlers can be async" trait: a
// signal handler is just a func taking the controller's context, free
// to block on its own I/O (config reload, drain) without stalling the
// signal-delivery goroutine itself.
type AsyncSignalAction func(ctx context.Context) error

// Action names the three signal-driven behaviors spec §4.11 lists.
type Action int

const (
	ActionReload Action = iota
	ActionGracefulOffline
	ActionImmediateQuit
)

// SignalController maps SIGHUP/SIGTERM/SIGINT/SIGQUIT onto
// AsyncSignalAction handlers, spec §4.11's "Unix signals drive actions".
type SignalController struct {
	log g3log.Logger

	mu       sync.Mutex
	handlers map[Action]AsyncSignalAction

	sigCh chan os.Signal
	quit  chan struct{}
	done  chan struct{}
}

// NewSignalController builds a controller with no handlers registered;
// Run starts delivery once handlers are set.
func NewSignalController(log g3log.Logger) *SignalController {
	if log == nil {
		log = g3log.Discard()
	}
	return &SignalController{log: log, handlers: make(map[Action]AsyncSignalAction)}
}

// Handle registers fn for action, replacing any previous handler.
func (c *SignalController) Handle(action Action, fn AsyncSignalAction) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[action] = fn
}

// Run installs the OS signal handlers and dispatches until ctx is
// cancelled or Stop is called: SIGHUP -> ActionReload, SIGTERM ->
// ActionGracefulOffline, SIGINT/SIGQUIT -> ActionImmediateQuit.
func (c *SignalController) Run(ctx context.Context) {
	c.mu.Lock()
	if c.sigCh != nil {
		c.mu.Unlock()
		return
	}
	c.sigCh = make(chan os.Signal, 4)
	c.quit = make(chan struct{})
	c.done = make(chan struct{})
	sigCh, quit, done := c.sigCh, c.quit, c.done
	c.mu.Unlock()

	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)

	go func() {
		defer close(done)
		defer signal.Stop(sigCh)
		for {
			select {
			case sig := <-sigCh:
				c.dispatch(ctx, sig)
			case <-quit:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (c *SignalController) dispatch(ctx context.Context, sig os.Signal) {
	var action Action
	switch sig {
	case syscall.SIGHUP:
		action = ActionReload
	case syscall.SIGTERM:
		action = ActionGracefulOffline
	case syscall.SIGINT, syscall.SIGQUIT:
		action = ActionImmediateQuit
	default:
		return
	}

	c.mu.Lock()
	fn := c.handlers[action]
	c.mu.Unlock()

	if fn == nil {
		return
	}
	go func() {
		if err := fn(ctx); err != nil {
			c.log.Error("signal action failed", err, g3log.NewFields().Add("signal", sig.String()))
		}
	}()
}

// Stop halts signal delivery and waits for the dispatch goroutine to
// exit.
func (c *SignalController) Stop() {
	c.mu.Lock()
	quit, done := c.quit, c.done
	c.mu.Unlock()
	if quit == nil {
		return
	}
	close(quit)
	<-done
}
