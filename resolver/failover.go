package resolver

import (
	"context"
	"net"
	"time"
)

// DefaultFallbackDelay is spec §4.4's "default 100 ms" wait before the
// standby driver is kicked alongside an unanswered primary.
const DefaultFallbackDelay = 100 * time.Millisecond

// FailOverDriver kicks Primary immediately; if Primary hasn't answered
// within FallbackDelay, or answers empty and RetryEmptyRecord is set, it
// kicks Standby in parallel and returns whichever answers first; a
// primary answer counts only when it is non-empty or RetryEmptyRecord is
// unset, while any successful standby answer, even an empty one, is
// returned. If both ultimately fail, it returns the first error
// observed (spec §4.4: "On both failing, returns the first error").
type FailOverDriver struct {
	Primary          Driver
	Standby          Driver
	FallbackDelay    time.Duration
	RetryEmptyRecord bool
}

type driverResult struct {
	ips []net.IP
	err error
}

func (f *FailOverDriver) Resolve(ctx context.Context, name string, qtype QType) ([]net.IP, error) {
	delay := f.FallbackDelay
	if delay <= 0 {
		delay = DefaultFallbackDelay
	}

	primaryCh := make(chan driverResult, 1)
	go func() {
		ips, err := f.Primary.Resolve(ctx, name, qtype)
		primaryCh <- driverResult{ips: ips, err: err}
	}()

	select {
	case r := <-primaryCh:
		if r.err == nil && (len(r.ips) > 0 || !f.RetryEmptyRecord) {
			return r.ips, nil
		}
		return f.raceStandby(ctx, name, qtype, r, nil)
	case <-time.After(delay):
		return f.raceStandby(ctx, name, qtype, driverResult{}, primaryCh)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// raceStandby kicks Standby and waits for it alongside a (possibly
// already-running) primary result, returning the first non-empty
// success; if primaryDone carries a usable result already, it's
// returned without waiting on standby at all. primaryCh is nil when the
// primary has already answered.
func (f *FailOverDriver) raceStandby(ctx context.Context, name string, qtype QType, primaryDone driverResult, primaryCh <-chan driverResult) ([]net.IP, error) {
	if primaryDone.err == nil && len(primaryDone.ips) > 0 {
		return primaryDone.ips, nil
	}

	standbyCh := make(chan driverResult, 1)
	go func() {
		ips, err := f.Standby.Resolve(ctx, name, qtype)
		standbyCh <- driverResult{ips: ips, err: err}
	}()

	firstErr := primaryDone.err

	for {
		select {
		case r := <-standbyCh:
			if r.err == nil {
				return r.ips, nil
			}
			if firstErr == nil {
				firstErr = r.err
			}
			if primaryCh == nil {
				return nil, firstErr
			}
			standbyCh = nil
		case r := <-primaryCh:
			if r.err == nil && (len(r.ips) > 0 || !f.RetryEmptyRecord) {
				return r.ips, nil
			}
			if firstErr == nil {
				firstErr = r.err
			}
			if standbyCh == nil {
				return nil, firstErr
			}
			primaryCh = nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}
