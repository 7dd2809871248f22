/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
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
 */

// Package g3err groups every error the dataplane can raise by fault domain
// instead of by call stack, per the propagation policy: a recoverable
// error is retried at most once on a fresh connection, everything else is
// mapped straight to a downstream status at the nearest per-request
// boundary.
//
// The coded-error shape (a small int domain band plus a chainable parent)
// is adapted from the teacher's errors package, generalized from a flat
// per-package registry into the fault-domain taxonomy below.
package g3err

import (
	"errors"
	"fmt"
)

// Domain names a fault domain. Two domains never share a code because each
// domain owns a contiguous 1000-wide band, mirroring the teacher's
// sequential per-package error-code allocation.
type Domain uint32

const (
	DomainClientIo Domain = iota
	DomainUpstreamIo
	DomainIcapIo
	DomainIcapProto
	DomainInternalProto
	DomainAuthDenied
	DomainAclBlocked
	DomainResolveFailed
	DomainIdle
	DomainResource
	DomainFatal
)

func (d Domain) String() string {
	switch d {
	case DomainClientIo:
		return "client_io"
	case DomainUpstreamIo:
		return "upstream_io"
	case DomainIcapIo:
		return "icap_io"
	case DomainIcapProto:
		return "icap_proto"
	case DomainInternalProto:
		return "internal_proto"
	case DomainAuthDenied:
		return "auth_denied"
	case DomainAclBlocked:
		return "acl_blocked"
	case DomainResolveFailed:
		return "resolve_failed"
	case DomainIdle:
		return "idle"
	case DomainResource:
		return "resource"
	case DomainFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Retryable reports whether a single task is allowed to retry an error from
// this domain on a fresh connection. Per §7, only ICAP-IO allows a retry;
// everything else either already exhausted its one retry (upstream pool,
// ICAP pool) or is not a transport failure at all.
func (d Domain) Retryable() bool {
	return d == DomainIcapIo
}

// Fault is the chainable, fault-domain-tagged error every layer of the
// dataplane returns. It carries enough to produce both the one structured
// task-log line §7 requires and the downstream status mapping.
type Fault struct {
	Domain Domain
	Kind   string // short stable tag, e.g. "timeout", "reset", "overloaded"
	Parent error
}

func New(d Domain, kind string, parent error) *Fault {
	return &Fault{Domain: d, Kind: kind, Parent: parent}
}

func (f *Fault) Error() string {
	if f.Parent == nil {
		return fmt.Sprintf("%s: %s", f.Domain, f.Kind)
	}
	return fmt.Sprintf("%s: %s: %s", f.Domain, f.Kind, f.Parent)
}

func (f *Fault) Unwrap() error {
	return f.Parent
}

// As reports whether err (or any error it wraps) is a *Fault, writing it
// into out on success.
func As(err error, out **Fault) bool {
	return errors.As(err, out)
}

// DomainOf returns the fault domain of err, or DomainFatal with ok=false if
// err does not wrap a *Fault — a *Fault-less error reaching the task
// boundary is itself treated as an invariant violation.
func DomainOf(err error) (Domain, bool) {
	var f *Fault
	if errors.As(err, &f) {
		return f.Domain, true
	}
	return DomainFatal, false
}
