package runtime

import (
	"fmt"
	"runtime/debug"

	"github.com/sabouaram/g3edge/internal/g3log"
)

// PanicPolicy is spec §4.11's panic-hook choice: log and notify a
// monitoring parent, or log and force the process down immediately.
type PanicPolicy int

const (
	PanicNotifyParent PanicPolicy = iota
	PanicForceShutdown
)

// PanicGuard is the panic containment hook spec §4.11 calls for: "a
// panic hook (when enabled) logs the panic and either notifies a
// monitoring parent ... or triggers trigger_force_shutdown()". One
// guard is shared across every worker goroutine; each defers Recover.
type PanicGuard struct {
	log           g3log.Logger
	bus           *ControlBus
	policy        PanicPolicy
	forceShutdown func()
}

// NewPanicGuard builds a guard logging to log, optionally publishing to
// bus (may be nil) under PanicNotifyParent, and calling forceShutdown
// (may be nil) under PanicForceShutdown.
func NewPanicGuard(log g3log.Logger, bus *ControlBus, policy PanicPolicy, forceShutdown func()) *PanicGuard {
	if log == nil {
		log = g3log.Discard()
	}
	return &PanicGuard{log: log, bus: bus, policy: policy, forceShutdown: forceShutdown}
}

// Recover must be called via defer at the top of any goroutine the
// guard protects. It swallows the panic after logging and dispatching
// per Policy, so the caller's own deferred cleanup still runs, but the
// panic does not propagate and bring the whole process down (except
// under PanicForceShutdown, which takes that action deliberately).
func (g *PanicGuard) Recover() {
	r := recover()
	if r == nil {
		return
	}

	stack := string(debug.Stack())
	g.log.Error("panic recovered", fmt.Errorf("%v", r), g3log.NewFields().Add("stack", stack))

	switch g.policy {
	case PanicNotifyParent:
		if g.bus != nil {
			_ = g.bus.Publish(SubjectPanic, []byte(fmt.Sprintf("%v", r)))
		}
	case PanicForceShutdown:
		if g.forceShutdown != nil {
			g.forceShutdown()
		}
	}
}
