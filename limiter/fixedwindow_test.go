package limiter

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFixedWindowAdvancesWithinBudget(t *testing.T) {
	w := NewFixedWindow(10, 100) // 1024ms slices, 100-unit budget

	a := w.CheckAt(0, 40)
	require.True(t, a.Advance)
	a = w.CheckAt(100, 40)
	require.True(t, a.Advance)
}

func TestFixedWindowDelaysWhenExhausted(t *testing.T) {
	w := NewFixedWindow(10, 100)

	a := w.CheckAt(0, 90)
	require.True(t, a.Advance)

	a = w.CheckAt(50, 20)
	require.False(t, a.Advance)
	require.Greater(t, a.Delay.Milliseconds(), int64(0))
}

func TestFixedWindowResetsOnNewSlice(t *testing.T) {
	w := NewFixedWindow(10, 100) // slice size 1024ms

	a := w.CheckAt(0, 100)
	require.True(t, a.Advance)

	a = w.CheckAt(10, 1)
	require.False(t, a.Advance)

	a = w.CheckAt(1024, 100)
	require.True(t, a.Advance)
}

func TestThreadSafeFixedWindowConcurrentAccess(t *testing.T) {
	w := NewThreadSafeFixedWindow(20, 1000) // 2^20 ms (~17.5 min) slices

	done := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		go func() {
			w.CheckAt(0, 10)
			done <- true
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	require.Equal(t, int64(900), w.Remaining())
}
