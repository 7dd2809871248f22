/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

// Package ioext wraps any byte stream with cross-cutting dataplane
// behavior composed on top, per spec §4.2: rate-limited/idle-tracked
// reads and writes, a line receiver, a yielding bidirectional copy, a
// UDP send/recv split, and a shared idle-checker cancellation
// primitive. Adapted from the teacher's ioutils/ioprogress (atomic byte
// counters wrapping io.Reader/io.Writer) and ioutils/delim (buffered
// delimiter reads) packages.
package ioext

import (
	"io"
	"time"
)

// LimitAction mirrors the limiter engine's StreamLimitAction (spec §4.3):
// either the caller may advance immediately, or it must wait until the
// given delay elapses before retrying. Defined here, not in the limiter
// package, so ioext depends only on this small interface and the limiter
// package depends on ioext — not the other way around.
type LimitAction struct {
	Advance bool
	Delay   time.Duration
}

// StreamLimit is consulted by LimitedReader/LimitedWriter before each
// operation. Implementations (fixed-window, global token bucket) live in
// the limiter package.
type StreamLimit interface {
	Check(amount int) LimitAction
}

// LimitedReader delegates Read to an inner io.Reader, consulting a chain
// of StreamLimit objects beforehand; if any limit denies, it sleeps for
// the longest requested delay and consults the chain again, reading only
// once every limit allows it.
type LimitedReader struct {
	r      io.Reader
	limits []StreamLimit
	read   int64
	sleep  func(time.Duration)
}

// NewLimitedReader wraps r with the given limit chain, consulted in order
// on every Read call.
func NewLimitedReader(r io.Reader, limits ...StreamLimit) *LimitedReader {
	return &LimitedReader{r: r, limits: limits, sleep: time.Sleep}
}

// BytesRead returns the cumulative number of bytes this reader has
// delivered to callers.
func (l *LimitedReader) BytesRead() int64 {
	return l.read
}

func (l *LimitedReader) Read(p []byte) (int, error) {
	for {
		delay := l.awaitAdvance(len(p))
		if delay <= 0 {
			break
		}
		l.sleep(delay)
	}

	n, err := l.r.Read(p)
	l.read += int64(n)
	return n, err
}

// awaitAdvance consults every limit once; it returns the longest
// requested delay, or 0 if every limit allows the read to advance now.
func (l *LimitedReader) awaitAdvance(amount int) time.Duration {
	var longest time.Duration
	for _, lim := range l.limits {
		action := lim.Check(amount)
		if !action.Advance && action.Delay > longest {
			longest = action.Delay
		}
	}
	return longest
}

// LimitedWriter delegates Write to an inner io.Writer under the same
// limit-chain discipline as LimitedReader. Per spec §4.2, writes are
// allowed to be partial: a Write call may hand back fewer bytes than
// requested once a limit denies further advance, rather than blocking the
// whole call.
type LimitedWriter struct {
	w      io.Writer
	limits []StreamLimit
	wrote  int64
	sleep  func(time.Duration)
}

// NewLimitedWriter wraps w with the given limit chain.
func NewLimitedWriter(w io.Writer, limits ...StreamLimit) *LimitedWriter {
	return &LimitedWriter{w: w, limits: limits, sleep: time.Sleep}
}

// BytesWritten returns the cumulative number of bytes accepted by the
// inner writer so far.
func (l *LimitedWriter) BytesWritten() int64 {
	return l.wrote
}

func (l *LimitedWriter) Write(p []byte) (int, error) {
	allowed := len(p)
	for _, lim := range l.limits {
		action := lim.Check(len(p))
		if !action.Advance {
			if action.Delay > 0 {
				l.sleep(action.Delay)
			}
			// Partial write: stop at whatever this limit already
			// admitted before it started denying.
			allowed = 0
			break
		}
	}

	if allowed == 0 {
		return 0, nil
	}

	n, err := l.w.Write(p[:allowed])
	l.wrote += int64(n)
	return n, err
}
