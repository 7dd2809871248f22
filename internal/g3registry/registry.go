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

// Package g3registry is the process-wide, named-node registry pattern §9
// asks for: "a process-wide struct of locked hash-maps keyed by NodeName
// ... writes are in the config-reload path which is serialized by a
// process-wide mutex". It generalizes the teacher config package's
// componentList (map[string]*atomic.Value behind one sync.Mutex) to any
// node kind — servers, escapers, resolvers, pools all embed one
// Registry[T] rather than hand-rolling their own locked map.
package g3registry

import (
	"sync"
	"sync/atomic"

	"github.com/sabouaram/g3edge/internal/stat"
)

// Action is the per-object reload decision §6 defines for a config
// section diff.
type Action int

const (
	ActionNoAction Action = iota
	ActionSpawnNew
	ActionReload
	ActionUpdate
)

// Node is the minimum any registered object must provide: a stable name
// and a fresh incarnation id assigned at construction.
type Node interface {
	Name() stat.NodeName
	Id() stat.Id
}

// Registry holds the current live incarnation of every named node of one
// kind (e.g. all escapers, or all servers). Replacement is copy-swap-
// release: Store atomically swaps in a new *atomic.Value entry and
// returns the previous incarnation so the caller can let it drain (§9,
// §4.5 notify_finish) instead of cutting it off mid-task.
type Registry[T Node] struct {
	mu sync.Mutex
	m  map[stat.NodeName]*atomic.Value
}

func New[T Node]() *Registry[T] {
	return &Registry[T]{m: make(map[stat.NodeName]*atomic.Value)}
}

// Get returns the live incarnation registered under name, or the zero
// value and ok=false if none is registered.
func (r *Registry[T]) Get(name stat.NodeName) (T, bool) {
	var zero T

	r.mu.Lock()
	v, ok := r.m[name]
	r.mu.Unlock()

	if !ok {
		return zero, false
	}
	i := v.Load()
	if i == nil {
		return zero, false
	}
	return i.(T), true
}

// Store installs node as the new live incarnation for its name, returning
// the previous incarnation (if any) so the caller can drain it rather than
// dropping it synchronously.
func (r *Registry[T]) Store(node T) (previous T, hadPrevious bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := node.Name()
	v, ok := r.m[name]
	if !ok {
		v = &atomic.Value{}
		r.m[name] = v
	}

	if ok {
		if i := v.Load(); i != nil {
			previous = i.(T)
			hadPrevious = true
		}
	}

	v.Store(node)
	return previous, hadPrevious
}

// Delete removes name from the registry, returning the incarnation that
// was live so the caller can drain it.
func (r *Registry[T]) Delete(name stat.NodeName) (removed T, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, present := r.m[name]
	if !present {
		return removed, false
	}
	delete(r.m, name)

	if i := v.Load(); i != nil {
		removed = i.(T)
		ok = true
	}
	return removed, ok
}

// Names returns every currently registered node name. Order is
// unspecified.
func (r *Registry[T]) Names() []stat.NodeName {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]stat.NodeName, 0, len(r.m))
	for k := range r.m {
		res = append(res, k)
	}
	return res
}

// Walk calls fn for every registered node, stopping early if fn returns
// false. Walk takes a snapshot of names under the lock then reads each
// node outside the lock, matching the teacher's ComponentList.ComponentList
// iteration pattern.
func (r *Registry[T]) Walk(fn func(name stat.NodeName, node T) bool) {
	for _, name := range r.Names() {
		node, ok := r.Get(name)
		if !ok {
			continue
		}
		if !fn(name, node) {
			return
		}
	}
}

// Len returns the number of registered names.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.m)
}
