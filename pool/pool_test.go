package pool

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id       int
	closed   int32
	reusable bool
}

func (c *fakeConn) Reusable() bool { return c.reusable }
func (c *fakeConn) Close() error {
	atomic.StoreInt32(&c.closed, 1)
	return nil
}

func newFactory() (Factory[string, *fakeConn], *int32) {
	var n int32
	return func(ctx context.Context, key string) (*fakeConn, error) {
		id := atomic.AddInt32(&n, 1)
		return &fakeConn{id: int(id), reusable: true}, nil
	}, &n
}

func TestFetchBuildsNewConnWhenIdleEmpty(t *testing.T) {
	factory, built := newFactory()
	p := New[string, *fakeConn](4, factory, nil)

	e, err := p.Fetch(context.Background(), "k")
	require.NoError(t, err)
	require.Equal(t, 1, e.Conn.id)
	require.EqualValues(t, 1, atomic.LoadInt32(built))
}

func TestReleaseThenFetchReusesConn(t *testing.T) {
	factory, _ := newFactory()
	p := New[string, *fakeConn](4, factory, nil)

	e, err := p.Fetch(context.Background(), "k")
	require.NoError(t, err)
	p.Release("k", e)

	e2, err := p.Fetch(context.Background(), "k")
	require.NoError(t, err)
	require.Equal(t, e.Conn.id, e2.Conn.id)
	require.Equal(t, 1, e2.ReuseCount)
}

func TestReleaseClosesUnreusableConn(t *testing.T) {
	factory, _ := newFactory()
	p := New[string, *fakeConn](4, factory, nil)

	e, err := p.Fetch(context.Background(), "k")
	require.NoError(t, err)
	e.Conn.reusable = false
	p.Release("k", e)

	require.EqualValues(t, 1, atomic.LoadInt32(&e.Conn.closed))

	e2, err := p.Fetch(context.Background(), "k")
	require.NoError(t, err)
	require.NotEqual(t, e.Conn.id, e2.Conn.id)
}

func TestFetchWaitsWhenAtCapacity(t *testing.T) {
	release := make(chan struct{})
	factory := func(ctx context.Context, key string) (*fakeConn, error) {
		<-release
		return &fakeConn{id: 1, reusable: true}, nil
	}
	p := New[string, *fakeConn](1, factory, nil)

	var wg sync.WaitGroup
	wg.Add(1)
	var waited int32
	go func() {
		defer wg.Done()
		start := time.Now()
		_, err := p.Fetch(context.Background(), "k")
		require.NoError(t, err)
		if time.Since(start) > 10*time.Millisecond {
			atomic.StoreInt32(&waited, 1)
		}
	}()

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()
}

// TestFetchWakesQueuedWaiterWhenInFlightBuildFinishes proves a waiter
// queued past poolSize is woken as soon as a sibling build finishes and
// frees its slot, not only when some other caller later calls Release.
// The first Fetch here never calls Release at all: the second Fetch can
// only complete by claiming the slot inFlight-- frees.
func TestFetchWakesQueuedWaiterWhenInFlightBuildFinishes(t *testing.T) {
	releaseFirst := make(chan struct{})
	var calls int32
	factory := func(ctx context.Context, key string) (*fakeConn, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			<-releaseFirst
		}
		return &fakeConn{id: int(n), reusable: true}, nil
	}
	p := New[string, *fakeConn](1, factory, nil)

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, err := p.Fetch(context.Background(), "k")
		require.NoError(t, err)
	}()
	time.Sleep(20 * time.Millisecond) // first Fetch claims the only in-flight slot

	secondDone := make(chan *Entry[*fakeConn], 1)
	go func() {
		e, err := p.Fetch(context.Background(), "k")
		require.NoError(t, err)
		secondDone <- e
	}()
	time.Sleep(20 * time.Millisecond) // second Fetch queues as a waiter

	close(releaseFirst) // first build finishes; nobody calls Release

	select {
	case e := <-secondDone:
		require.Equal(t, 2, e.Conn.id)
	case <-time.After(time.Second):
		t.Fatal("second fetch was never woken after the in-flight build finished")
	}
	<-firstDone
}

func TestFetchContextCanceledWhileWaiting(t *testing.T) {
	block := make(chan struct{})
	factory := func(ctx context.Context, key string) (*fakeConn, error) {
		<-block
		return &fakeConn{id: 1, reusable: true}, nil
	}
	p := New[string, *fakeConn](1, factory, nil)

	go func() { _, _ = p.Fetch(context.Background(), "k") }()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Fetch(ctx, "k")
	require.ErrorIs(t, err, ErrContextDone)
	close(block)
}

func TestNotifyFinishClosesIdleAndRejectsFetch(t *testing.T) {
	factory, _ := newFactory()
	p := New[string, *fakeConn](4, factory, nil)

	e, err := p.Fetch(context.Background(), "k")
	require.NoError(t, err)
	p.Release("k", e)

	p.NotifyFinish()
	require.EqualValues(t, 1, atomic.LoadInt32(&e.Conn.closed))

	_, err = p.Fetch(context.Background(), "k")
	require.ErrorIs(t, err, ErrPoolClosed)
}

func TestEOFPollerFiresOnPeerRead(t *testing.T) {
	peerReadReturns := make(chan error, 1)
	p := newEOFPoller(func() error { return <-peerReadReturns })

	fired, _ := p.Fired()
	require.False(t, fired)

	peerReadReturns <- errors.New("peer sent bytes")
	select {
	case <-p.done:
	case <-time.After(time.Second):
		t.Fatal("poller never fired")
	}

	fired, err := p.Fired()
	require.True(t, fired)
	require.Error(t, err)
}

func TestEOFPollerStopAbandonsRace(t *testing.T) {
	peerReadReturns := make(chan error, 1)
	p := newEOFPoller(func() error { return <-peerReadReturns })
	p.stop()

	select {
	case <-p.done:
		t.Fatal("poller should not have fired after stop")
	case <-time.After(20 * time.Millisecond):
	}
	peerReadReturns <- nil
}

func TestPeekEOFPollerStopsOnCheckout(t *testing.T) {
	var peeked int32
	peek := func(c *fakeConn) error {
		atomic.AddInt32(&peeked, 1)
		<-make(chan struct{}) // blocks until the test process exits; never fires in this test
		return nil
	}
	factory, _ := newFactory()
	p := New[string, *fakeConn](4, factory, peek)

	e, err := p.Fetch(context.Background(), "k")
	require.NoError(t, err)
	p.Release("k", e)
	require.NotNil(t, e.poller)

	e2, err := p.Fetch(context.Background(), "k")
	require.NoError(t, err)
	require.Equal(t, e.Conn.id, e2.Conn.id)
}
