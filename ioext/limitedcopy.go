package ioext

import (
	"io"
	"runtime"
)

// DefaultYieldSize is the byte count after which LimitedCopy yields to
// the scheduler when no explicit YieldSize is configured.
const DefaultYieldSize = 32 * 1024

// LimitedCopy is a one-direction copy primitive that cooperatively
// yields to the Go scheduler after YieldSize bytes have crossed (a
// two-way relay uses one LimitedCopy per direction), per spec §4.2: "to
// prevent starving other tasks". The
// original g3-io-ext demo (test-copy-yield) existed because a single-
// threaded executor handling many proxied connections could let one big
// transfer monopolize the loop and starve every other connection's
// reads; Go's preemptive scheduler makes starvation far less likely, but
// this keeps the same yield boundary so a GOMAXPROCS=1 deployment (or a
// future cooperative worker pool) gets the same fairness guarantee the
// original relied on.
type LimitedCopy struct {
	YieldSize int
	Yields    int // incremented once per yield, exposed for tests
}

// Copy copies from src to dst until EOF or error, yielding after every
// YieldSize bytes copied. It returns the total bytes copied and the
// first non-EOF error encountered.
func (lc *LimitedCopy) Copy(dst io.Writer, src io.Reader) (int64, error) {
	yieldSize := lc.YieldSize
	if yieldSize <= 0 {
		yieldSize = DefaultYieldSize
	}

	buf := make([]byte, 32*1024)
	var total int64
	var sinceYield int

	for {
		n, rerr := src.Read(buf)
		if n > 0 {
			wn, werr := dst.Write(buf[:n])
			total += int64(wn)
			if werr != nil {
				return total, werr
			}
			sinceYield += wn
		}

		if rerr != nil {
			if rerr == io.EOF {
				return total, nil
			}
			return total, rerr
		}

		if sinceYield >= yieldSize {
			runtime.Gosched()
			lc.Yields++
			sinceYield = 0
		}
	}
}

// Bidirectional runs two LimitedCopy passes concurrently — a↔b — and
// waits for both to finish, returning each direction's byte count and
// error. This is the primitive the dataplane's pipeline stage (C10) uses
// to relay a proxied connection in both directions at once.
func Bidirectional(a, b io.ReadWriter, yieldSize int) (abBytes, baBytes int64, abErr, baErr error) {
	done := make(chan struct{}, 2)

	go func() {
		lc := LimitedCopy{YieldSize: yieldSize}
		abBytes, abErr = lc.Copy(b, a)
		done <- struct{}{}
	}()
	go func() {
		lc := LimitedCopy{YieldSize: yieldSize}
		baBytes, baErr = lc.Copy(a, b)
		done <- struct{}{}
	}()

	<-done
	<-done
	return
}
