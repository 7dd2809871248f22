package limiter

import (
	"container/list"
	"sync"
	"time"

	"github.com/sabouaram/g3edge/ioext"
)

// GlobalLimitGroup is the waitlist key a starved TokenBucket consumer is
// parked under, per spec §4.3.
type GlobalLimitGroup int

const (
	GroupServer GlobalLimitGroup = iota
	GroupUser
	GroupUserSite
)

// TokenBucket is the global, shared rate limiter of spec §4.3: a single
// background goroutine ticks once per ReplenishInterval, credits
// ReplenishBytes/ReplenishPackets, and wakes waiters FIFO. Grounded on
// the teacher-adjacent etalazz-vsa rate limiter's Worker (ticker-driven
// background goroutine, stopChan+WaitGroup shutdown) — that repo is not
// the teacher, but its ratelimiter/core/worker.go is the closest
// in-pack match for "one ticking goroutine drives a shared budget", so
// its lifecycle shape (Start/Stop, ticker select loop, graceful drain)
// is reused here instead of inventing one from nothing.
type TokenBucket struct {
	ReplenishInterval time.Duration
	ReplenishBytes    int64
	ReplenishPackets  int64
	MaxBytes          int64
	MaxPackets        int64

	mu         sync.Mutex
	bytes      int64
	packets    int64
	waitlists  map[GlobalLimitGroup]*list.List
	stopCh     chan struct{}
	wg         sync.WaitGroup
	started    bool
}

type waiter struct {
	bytes   int64
	packets int64
	ready   chan struct{}
}

// NewTokenBucket builds a token bucket starting full.
func NewTokenBucket(interval time.Duration, replenishBytes, replenishPackets, maxBytes, maxPackets int64) *TokenBucket {
	return &TokenBucket{
		ReplenishInterval: interval,
		ReplenishBytes:    replenishBytes,
		ReplenishPackets:  replenishPackets,
		MaxBytes:          maxBytes,
		MaxPackets:        maxPackets,
		bytes:             maxBytes,
		packets:           maxPackets,
		waitlists: map[GlobalLimitGroup]*list.List{
			GroupServer:   list.New(),
			GroupUser:     list.New(),
			GroupUserSite: list.New(),
		},
		stopCh: make(chan struct{}),
	}
}

// Start launches the replenishment goroutine. Safe to call once;
// subsequent calls are no-ops.
func (b *TokenBucket) Start() {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.mu.Unlock()

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ticker := time.NewTicker(b.ReplenishInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				b.replenish()
			case <-b.stopCh:
				return
			}
		}
	}()
}

// Stop halts the replenishment goroutine and waits for it to exit.
func (b *TokenBucket) Stop() {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return
	}
	select {
	case <-b.stopCh:
		// Already stopped.
		b.mu.Unlock()
		return
	default:
	}
	close(b.stopCh)
	b.mu.Unlock()
	b.wg.Wait()
}

func (b *TokenBucket) replenish() {
	b.mu.Lock()
	b.bytes += b.ReplenishBytes
	if b.bytes > b.MaxBytes {
		b.bytes = b.MaxBytes
	}
	b.packets += b.ReplenishPackets
	if b.packets > b.MaxPackets {
		b.packets = b.MaxPackets
	}

	var woken []chan struct{}
	for _, group := range []GlobalLimitGroup{GroupServer, GroupUser, GroupUserSite} {
		wl := b.waitlists[group]
		for wl.Len() > 0 {
			front := wl.Front()
			w := front.Value.(*waiter)
			if b.bytes < w.bytes || b.packets < w.packets {
				break
			}
			b.bytes -= w.bytes
			b.packets -= w.packets
			wl.Remove(front)
			woken = append(woken, w.ready)
		}
	}
	b.mu.Unlock()

	for _, ch := range woken {
		close(ch)
	}
}

// CheckBytesPackets is spec §4.3's consumer entry point: "consumers call
// check(bytes, packets)". On sufficient budget it deducts and returns
// Advance with a nil channel; on starvation it parks the caller on
// group's FIFO waitlist and returns a non-Advance action plus a channel
// that replenish closes once it has deducted the caller's budget, so a
// woken caller proceeds without calling again. Callers wait on that
// channel rather than sleeping a fixed duration, since the unblock time
// depends on the shared bucket's replenishment, not a per-caller
// deadline.
func (b *TokenBucket) CheckBytesPackets(group GlobalLimitGroup, bytes, packets int64) (ioext.LimitAction, <-chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.bytes >= bytes && b.packets >= packets {
		b.bytes -= bytes
		b.packets -= packets
		return ioext.LimitAction{Advance: true}, nil
	}

	w := &waiter{bytes: bytes, packets: packets, ready: make(chan struct{})}
	b.waitlists[group].PushBack(w)
	return ioext.LimitAction{Advance: false}, w.ready
}

// Check adapts CheckBytesPackets to ioext.StreamLimit, treating amount
// as a byte count against GroupServer with one packet consumed per
// call — the shape the limited reader/writer uses when it has no finer
// per-group context. Escaper/route code that knows its group should
// call CheckBytesPackets directly instead. Budget for a woken waiter was
// already deducted by replenish, so the caller just proceeds.
func (b *TokenBucket) Check(amount int) ioext.LimitAction {
	action, ready := b.CheckBytesPackets(GroupServer, int64(amount), 1)
	if action.Advance {
		return action
	}
	<-ready
	return ioext.LimitAction{Advance: true}
}
