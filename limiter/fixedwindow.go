// Package limiter implements the two composable rate-limiting
// algorithms the dataplane's limited reader/writer (ioext) consults,
// per spec §4.3: a fixed-window counter (local, lock-free and
// thread-safe variants) and a global token bucket shared across a
// worker group. Both implement ioext.StreamLimit so the limited
// reader/writer can stay agnostic of which algorithm backs a given
// stream.
package limiter

import (
	"sync"
	"time"

	"github.com/sabouaram/g3edge/ioext"
)

// FixedWindow implements spec §4.3's fixed-window algorithm: time is
// divided into 2^ShiftMillis-ms slices, and each new slice replenishes
// the full MaxPerWindow budget. FixedWindow is NOT safe for concurrent
// use — it is the "local-thread variant (no locking)" the spec calls
// for, intended for a single-goroutine-per-connection dataplane path.
// Use ThreadSafeFixedWindow for a shared limiter.
type FixedWindow struct {
	ShiftMillis  uint
	MaxPerWindow int64

	windowStart int64 // millis, start of the current slice
	remaining   int64
	nowMillis   func() int64
}

// NewFixedWindow builds a local FixedWindow limiter.
func NewFixedWindow(shiftMillis uint, maxPerWindow int64) *FixedWindow {
	return &FixedWindow{
		ShiftMillis:  shiftMillis,
		MaxPerWindow: maxPerWindow,
		remaining:    maxPerWindow,
		nowMillis:    nowMillisUTC,
	}
}

func nowMillisUTC() int64 {
	return time.Now().UnixMilli()
}

func (w *FixedWindow) windowOf(millis int64) int64 {
	size := int64(1) << w.ShiftMillis
	return (millis / size) * size
}

// Check deducts amount from the current window's remaining budget, or
// reports the delay until the next slice if the window is exhausted.
// This is the ioext.StreamLimit method; Check(now_millis, amount) from
// spec §4.3 is exposed separately as CheckAt for tests that need
// deterministic time.
func (w *FixedWindow) Check(amount int) ioext.LimitAction {
	return w.CheckAt(w.nowMillis(), int64(amount))
}

// CheckAt is spec §4.3's check(now_millis, amount): returns Advance and
// deducts on success, or DelayFor(wait_until_next_slice_millis) if the
// window's budget is exhausted.
func (w *FixedWindow) CheckAt(nowMillis, amount int64) ioext.LimitAction {
	cur := w.windowOf(nowMillis)
	if cur != w.windowStart {
		w.windowStart = cur
		w.remaining = w.MaxPerWindow
	}

	if w.remaining >= amount {
		w.remaining -= amount
		return ioext.LimitAction{Advance: true}
	}

	size := int64(1) << w.ShiftMillis
	nextSlice := cur + size
	return ioext.LimitAction{Delay: time.Duration(nextSlice-nowMillis) * time.Millisecond}
}

// ThreadSafeFixedWindow wraps FixedWindow's algorithm behind a mutex for
// limiters shared by multiple goroutines (e.g. a per-site budget shared
// across several concurrent connections to the same escaper target).
type ThreadSafeFixedWindow struct {
	mu sync.Mutex
	fw FixedWindow
}

// NewThreadSafeFixedWindow builds a mutex-guarded fixed-window limiter.
func NewThreadSafeFixedWindow(shiftMillis uint, maxPerWindow int64) *ThreadSafeFixedWindow {
	return &ThreadSafeFixedWindow{
		fw: FixedWindow{
			ShiftMillis:  shiftMillis,
			MaxPerWindow: maxPerWindow,
			remaining:    maxPerWindow,
			nowMillis:    nowMillisUTC,
		},
	}
}

func (w *ThreadSafeFixedWindow) Check(amount int) ioext.LimitAction {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fw.Check(amount)
}

// CheckAt is the deterministic-clock variant used by tests.
func (w *ThreadSafeFixedWindow) CheckAt(nowMillis, amount int64) ioext.LimitAction {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fw.CheckAt(nowMillis, amount)
}

// Remaining reports the current slice's unspent budget, for metrics
// export (C12).
func (w *ThreadSafeFixedWindow) Remaining() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fw.remaining
}
