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

// Package stat carries the two identifiers §3 requires on every long-lived
// object: a process-unique monotonic StatId (the incarnation token) and a
// NodeName (the stable metric name). StatId generation is grounded on
// bassosimone-nop's spanid.go, which stamps a UUIDv7 per operation for the
// same "time-ordered, process-unique, cheap to generate" reason; here it
// is narrowed to a bare uint64 counter since §3 only needs monotonic
// uniqueness, not a UUID's external interoperability.
package stat

import (
	"fmt"
	"regexp"
	"sync/atomic"
)

var counter uint64

// Id is a process-unique, monotonically increasing token identifying one
// incarnation of a long-lived object. Two incarnations of a node reloaded
// under the same NodeName get different Ids, which is what lets the stats
// registry (C12) avoid colliding their metrics during a reload.
type Id uint64

// NextId returns a fresh, monotonically increasing Id. Safe for concurrent
// use.
func NextId() Id {
	return Id(atomic.AddUint64(&counter, 1))
}

func (i Id) String() string {
	return fmt.Sprintf("%d", uint64(i))
}

// nodeNameCharset is the OpenTSDB metric-name charset §3 requires:
// letters, digits, '-', '_', '.', '/'.
var nodeNameCharset = regexp.MustCompile(`^[A-Za-z0-9_./-]+$`)

// NodeName is a short, restricted-alphabet string identifying a named,
// reloadable config object across incarnations. NodeNames are compared
// and hashed as plain strings.
type NodeName string

// Valid reports whether n only uses the OpenTSDB metric-name charset and
// is non-empty.
func (n NodeName) Valid() bool {
	return len(n) > 0 && nodeNameCharset.MatchString(string(n))
}

func (n NodeName) String() string {
	return string(n)
}
