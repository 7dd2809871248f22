package resolver

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeDriver struct {
	calls  int32
	ips    []net.IP
	err    error
	delay  time.Duration
}

func (f *fakeDriver) Resolve(ctx context.Context, name string, qtype QType) ([]net.IP, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return f.ips, f.err
}

func TestResolverCachesPositiveResult(t *testing.T) {
	drv := &fakeDriver{ips: []net.IP{net.ParseIP("1.2.3.4")}}
	r := NewResolver(drv, time.Second, time.Minute)

	res1 := r.resolve(context.Background(), "example.com", QTypeA)
	require.NoError(t, res1.Err)
	require.Equal(t, SourceDriver, res1.Source)

	res2 := r.resolve(context.Background(), "example.com", QTypeA)
	require.Equal(t, SourceCached, res2.Source)
	require.Equal(t, int32(1), drv.calls)
}

func TestResolverNegativeCaching(t *testing.T) {
	drv := &fakeDriver{}
	r := NewResolver(drv, time.Minute, time.Minute)

	res := r.resolve(context.Background(), "nowhere.test", QTypeA)
	require.NoError(t, res.Err)
	require.Empty(t, res.IPs)

	res2 := r.resolve(context.Background(), "nowhere.test", QTypeA)
	require.Equal(t, SourceCached, res2.Source)
	require.Equal(t, int32(1), drv.calls)
}

func TestResolverCoalescesConcurrentQueries(t *testing.T) {
	drv := &fakeDriver{ips: []net.IP{net.ParseIP("5.6.7.8")}, delay: 50 * time.Millisecond}
	r := NewResolver(drv, time.Minute, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.resolve(context.Background(), "shared.test", QTypeA)
		}()
	}
	wg.Wait()

	require.Equal(t, int32(1), drv.calls)
}

func TestResolverCoalescesIndependentlyByQType(t *testing.T) {
	drv := &fakeDriver{ips: []net.IP{net.ParseIP("::1")}, delay: 20 * time.Millisecond}
	r := NewResolver(drv, time.Minute, time.Minute)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); r.resolve(context.Background(), "dual.test", QTypeA) }()
	go func() { defer wg.Done(); r.resolve(context.Background(), "dual.test", QTypeAAAA) }()
	wg.Wait()

	require.Equal(t, int32(2), drv.calls)
}

func TestResolverHandleGetV4(t *testing.T) {
	drv := &fakeDriver{ips: []net.IP{net.ParseIP("9.9.9.9")}}
	r := NewResolver(drv, time.Minute, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := NewResolverHandle(ctx, r)
	job := h.GetV4(ctx, "handle.test")

	res, err := job.Await(ctx)
	require.NoError(t, err)
	require.NoError(t, res.Err)
	require.Equal(t, "9.9.9.9", res.IPs[0].String())
}

func TestDenyAllDriverDenies(t *testing.T) {
	var d DenyAllDriver
	_, err := d.Resolve(context.Background(), "x", QTypeA)
	require.ErrorIs(t, err, ErrDenied)
}
