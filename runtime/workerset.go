package runtime

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/sabouaram/g3edge/internal/g3log"
)

// WorkerSet is spec §4.11's worker-set layer: N named Workers started
// and stopped together, with Foreach fanning a func out to every worker
// the way the original's `worker::foreach(|h| ...)` dispatches to every
// per-CPU executor handle.
type WorkerSet struct {
	mu      sync.Mutex
	workers []*Worker
	log     g3log.Logger
}

// NewWorkerSet builds an empty set logging lifecycle events to log.
func NewWorkerSet(log g3log.Logger) *WorkerSet {
	if log == nil {
		log = g3log.Discard()
	}
	return &WorkerSet{log: log}
}

// Add registers a worker with the set; Add after StartAll has no effect
// on already-running workers until the next StartAll.
func (s *WorkerSet) Add(w *Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers = append(s.workers, w)
}

// Foreach calls fn with every worker in registration order, spec
// §4.11's "code that needs a runtime handle calls foreach(|h| ...) to
// fan out work".
func (s *WorkerSet) Foreach(fn func(*Worker)) {
	s.mu.Lock()
	ws := append([]*Worker(nil), s.workers...)
	s.mu.Unlock()

	for _, w := range ws {
		fn(w)
	}
}

// StartAll starts every worker concurrently via errgroup, returning the
// first error (if any) once every worker has been attempted, matching
// the graceful "everyone gets a chance to start" contract spec §8
// scenario 6 needs before a listener bind failure aborts the others.
func (s *WorkerSet) StartAll(ctx context.Context) error {
	s.mu.Lock()
	ws := append([]*Worker(nil), s.workers...)
	s.mu.Unlock()

	eg, egCtx := errgroup.WithContext(ctx)
	for _, w := range ws {
		w := w
		eg.Go(func() error {
			if err := w.Start(egCtx); err != nil {
				s.log.Error("worker failed to start", err, g3log.NewFields().Add("worker", w.Name()))
				return err
			}
			return nil
		})
	}
	return eg.Wait()
}

// StopAll stops every worker concurrently, joining on all of them and
// returning the first error (if any), spec §4.11's "graceful
// shutdown": every worker gets its Stop called regardless of whether
// an earlier one errored.
func (s *WorkerSet) StopAll(ctx context.Context) error {
	s.mu.Lock()
	ws := append([]*Worker(nil), s.workers...)
	s.mu.Unlock()

	var eg errgroup.Group
	for _, w := range ws {
		w := w
		eg.Go(func() error {
			if err := w.Stop(ctx); err != nil {
				s.log.Error("worker failed to stop", err, g3log.NewFields().Add("worker", w.Name()))
				return err
			}
			return nil
		})
	}
	return eg.Wait()
}

// RunningCount reports how many workers are currently running, useful
// for a readiness probe or a stats Reporter.
func (s *WorkerSet) RunningCount() int {
	var n int
	s.Foreach(func(w *Worker) {
		if w.IsRunning() {
			n++
		}
	})
	return n
}
