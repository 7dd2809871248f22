package escaper

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/sabouaram/g3edge/internal/stat"
	"github.com/sabouaram/g3edge/resolver"
	"github.com/stretchr/testify/require"
)

// hangingOpener never returns, so a failover that only reacts to an
// observed error (rather than racing against a delay) would block
// forever on it.
type hangingOpener struct {
	base
}

func newHangingOpener(name stat.NodeName) *hangingOpener {
	return &hangingOpener{base: newBase(name)}
}

func (h *hangingOpener) OpenTCP(ctx context.Context, notes *TaskNotes, host string, port int) (net.Conn, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

// slowSuccessOpener answers successfully after a delay, used to prove
// the standby is actually raced in parallel rather than only tried
// after the primary fully finishes.
type slowSuccessOpener struct {
	base
	delay time.Duration
}

func newSlowSuccessOpener(name stat.NodeName, delay time.Duration) *slowSuccessOpener {
	return &slowSuccessOpener{base: newBase(name), delay: delay}
}

func (s *slowSuccessOpener) OpenTCP(ctx context.Context, notes *TaskNotes, host string, port int) (net.Conn, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	client, server := net.Pipe()
	server.Close()
	return client, nil
}

func TestRouteMappingSelectsByHost(t *testing.T) {
	a := NewDummyDeny("a", "a denies")
	b := NewDummyDeny("b", "b denies")
	r := NewRouteMapping("map", map[string]Escaper{"a.test": a, "b.test": b}, nil)

	notes := NewTaskNotes(nil, nil)
	_, err := r.OpenTCP(context.Background(), notes, "a.test", 80)
	require.ErrorContains(t, err, "a denies")
	require.Equal(t, stat.NodeName("a"), notes.EscaperName)
}

func TestRouteMappingFallsBackWhenUnlisted(t *testing.T) {
	fallback := NewDummyDeny("fallback", "fallback denies")
	r := NewRouteMapping("map2", map[string]Escaper{}, fallback)
	notes := NewTaskNotes(nil, nil)
	_, err := r.OpenTCP(context.Background(), notes, "unknown.test", 80)
	require.ErrorContains(t, err, "fallback denies")
}

func TestRouteMappingErrorsWithNoFallback(t *testing.T) {
	r := NewRouteMapping("map3", map[string]Escaper{}, nil)
	notes := NewTaskNotes(nil, nil)
	_, err := r.OpenTCP(context.Background(), notes, "unknown.test", 80)
	require.ErrorContains(t, err, "no route mapping")
}

func TestRouteFailoverReturnsErrorWhenBothFail(t *testing.T) {
	primary := NewDummyDeny("primary", "primary down")
	standby := NewDummyDeny("standby", "standby down")
	r := NewRouteFailover("failover", primary, standby, 10*time.Millisecond)

	notes := NewTaskNotes(nil, nil)
	_, err := r.OpenTCP(context.Background(), notes, "x", 80)
	require.ErrorContains(t, err, "primary down")
}

func TestRouteFailoverFallsBackWhenPrimaryErrorsImmediately(t *testing.T) {
	primary := NewDummyDeny("primary", "primary down")
	standby := newSlowSuccessOpener("standby", time.Millisecond)
	r := NewRouteFailover("failover", primary, standby, 50*time.Millisecond)

	notes := NewTaskNotes(nil, nil)
	conn, err := r.OpenTCP(context.Background(), notes, "x", 80)
	require.NoError(t, err)
	require.NotNil(t, conn)
	require.Equal(t, standby.Name(), notes.EscaperName)
}

// TestRouteFailoverRacesHangingPrimary proves a primary that never
// errors, only hangs, still loses the race to the standby once
// FallbackDelay elapses — the defect a sticky error-triggered switch
// had.
func TestRouteFailoverRacesHangingPrimary(t *testing.T) {
	primary := newHangingOpener("primary")
	standby := newSlowSuccessOpener("standby", time.Millisecond)
	r := NewRouteFailover("failover", primary, standby, 20*time.Millisecond)

	notes := NewTaskNotes(nil, nil)
	start := time.Now()
	conn, err := r.OpenTCP(context.Background(), notes, "x", 80)
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.NotNil(t, conn)
	require.Equal(t, standby.Name(), notes.EscaperName)
	require.Less(t, elapsed, time.Second)
}

func TestRouteFailoverUsesDefaultDelayWhenUnset(t *testing.T) {
	primary := NewDummyDeny("primary", "primary down")
	standby := NewDummyDeny("standby", "standby down")
	r := NewRouteFailover("failover", primary, standby, 0)
	require.Equal(t, resolver.DefaultFallbackDelay, r.delay())
}

func TestRouteClientSelectsBySourceIP(t *testing.T) {
	inside := NewDummyDeny("inside", "inside denies")
	outside := NewDummyDeny("outside", "outside denies")
	r := NewRouteClient("client-route", map[string]Escaper{"10.0.0.5": inside}, outside)

	notes := NewTaskNotes(&net.TCPAddr{IP: net.ParseIP("10.0.0.5"), Port: 5555}, nil)
	_, err := r.OpenTCP(context.Background(), notes, "x", 80)
	require.ErrorContains(t, err, "inside denies")

	notes2 := NewTaskNotes(&net.TCPAddr{IP: net.ParseIP("192.168.0.1"), Port: 5555}, nil)
	_, err = r.OpenTCP(context.Background(), notes2, "x", 80)
	require.ErrorContains(t, err, "outside denies")
}

func TestRouteResolvedMatchesSubnet(t *testing.T) {
	_, subnet, _ := net.ParseCIDR("10.0.0.0/8")
	matched := NewDummyDeny("matched", "matched denies")
	fallback := NewDummyDeny("fallback", "fallback denies")

	resolve := func(ctx context.Context, host string) (net.IP, error) {
		return net.ParseIP(host), nil
	}
	r := NewRouteResolved("resolved", resolve, []*net.IPNet{subnet}, matched, fallback)

	notes := NewTaskNotes(nil, nil)
	_, err := r.OpenTCP(context.Background(), notes, "10.1.2.3", 80)
	require.ErrorContains(t, err, "matched denies")

	_, err = r.OpenTCP(context.Background(), notes, "8.8.8.8", 80)
	require.ErrorContains(t, err, "fallback denies")
}

func TestRouteQueryDelegatesToFunc(t *testing.T) {
	target := NewDummyDeny("queried", "queried denies")
	r := NewRouteQuery("query", func(ctx context.Context, host string) (Escaper, error) {
		return target, nil
	})
	notes := NewTaskNotes(nil, nil)
	_, err := r.OpenTCP(context.Background(), notes, "x", 80)
	require.ErrorContains(t, err, "queried denies")
}

func TestRouteUpstreamAlwaysFixed(t *testing.T) {
	target := NewDummyDeny("fixed-target", "fixed denies")
	r := NewRouteUpstream("upstream-route", target)
	notes := NewTaskNotes(nil, nil)
	_, err := r.OpenTCP(context.Background(), notes, "anything", 80)
	require.ErrorContains(t, err, "fixed denies")
	require.Equal(t, target.Name(), notes.EscaperName)
}
