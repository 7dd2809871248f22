package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func runGuarded(g *PanicGuard, fn func()) {
	defer g.Recover()
	fn()
}

func TestPanicGuardRecoversAndDoesNotPropagate(t *testing.T) {
	g := NewPanicGuard(nil, nil, PanicNotifyParent, nil)
	require.NotPanics(t, func() {
		runGuarded(g, func() { panic("boom") })
	})
}

func TestPanicGuardForceShutdownCallsHook(t *testing.T) {
	called := false
	g := NewPanicGuard(nil, nil, PanicForceShutdown, func() { called = true })
	runGuarded(g, func() { panic("fatal") })
	require.True(t, called)
}

func TestPanicGuardRecoverWithoutPanicIsNoop(t *testing.T) {
	g := NewPanicGuard(nil, nil, PanicNotifyParent, nil)
	require.NotPanics(t, func() {
		runGuarded(g, func() {})
	})
}
