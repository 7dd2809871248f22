package stats

import (
	"context"
	"sync"
	"time"

	"github.com/sabouaram/g3edge/internal/g3registry"
	"github.com/sabouaram/g3edge/internal/stat"
)

// Owner is anything spec §4.12 calls a "stats owner" — server, escaper,
// listener, log target, worker — registering at creation so the emit
// tick can find it.
type Owner interface {
	Name() stat.NodeName
	Id() stat.Id
}

// Snapshot is the per-owner payload shipped to a Sink on every emit
// tick: the counters and histogram data Owner's ReportStats returned for
// that tick, shipped as reported (the Collector computes no deltas).
type Snapshot struct {
	Owner      stat.NodeName
	Id         stat.Id
	Counters   map[string]float64
	Histograms map[string][]uint64
}

// Sink is the external metric sink spec §4.12 ships snapshots to; the
// Prometheus registry passed to Metric.Register is the pull-based query
// surface, Sink is the push-based emit path (e.g. a periodic summary log
// line, matching the teacher's "shared logger" de-dup model).
type Sink interface {
	Emit(snapshots []Snapshot)
}

// LogSink is the default Sink: it hands each emit tick's snapshots to a
// caller-supplied function, typically wrapping internal/g3log.Logger.Info
// the way the teacher's stats owners log a periodic summary line.
type LogSink struct {
	Write func(snapshots []Snapshot)
}

func (s LogSink) Emit(snapshots []Snapshot) {
	if s.Write != nil {
		s.Write(snapshots)
	}
}

// Reporter is implemented by a stats owner that exposes countable state
// beyond what Metric/Histogram track directly; Collector.tick calls it
// once per owner per emit interval to build that owner's Snapshot.
type Reporter interface {
	Owner
	ReportStats() (counters map[string]float64, histograms map[string][]uint64)
}

// Collector is spec §4.12's "stats thread": it registers owners (in its
// g3registry.Registry[Reporter]), ticks at EmitInterval, snapshots
// every registered Reporter, and ships the batch to Sink.
type Collector struct {
	registry *g3registry.Registry[Reporter]
	sink     Sink

	emitInterval time.Duration

	mu     sync.Mutex
	ticker *time.Ticker
	quit   chan struct{}
	done   chan struct{}
}

// NewCollector builds a Collector ticking at emitInterval, shipping each
// tick's batch to sink.
func NewCollector(emitInterval time.Duration, sink Sink) *Collector {
	return &Collector{
		registry:     g3registry.New[Reporter](),
		sink:         sink,
		emitInterval: emitInterval,
	}
}

// Register adds an owner to the collector, spec §4.12's "each stats
// owner registers at creation".
func (c *Collector) Register(r Reporter) {
	c.registry.Store(r.Name(), r)
}

// Unregister drops an owner, spec §8 scenario 6's "old server's registry
// entry is dropped" on graceful reload — no metric gap longer than
// EmitInterval since the owner's last tick already shipped its final
// delta.
func (c *Collector) Unregister(name stat.NodeName) {
	c.registry.Delete(name)
}

// Run starts the ticking goroutine; it returns immediately, and Stop
// must be called to join it.
func (c *Collector) Run(ctx context.Context) {
	c.mu.Lock()
	if c.ticker != nil {
		c.mu.Unlock()
		return
	}
	c.ticker = time.NewTicker(c.emitInterval)
	c.quit = make(chan struct{})
	c.done = make(chan struct{})
	ticker, quit, done := c.ticker, c.quit, c.done
	c.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-ticker.C:
				c.tick()
			case <-quit:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (c *Collector) tick() {
	names := c.registry.Names()
	snaps := make([]Snapshot, 0, len(names))
	for _, n := range names {
		r, ok := c.registry.Get(n)
		if !ok {
			continue
		}
		counters, histograms := r.ReportStats()
		snaps = append(snaps, Snapshot{Owner: r.Name(), Id: r.Id(), Counters: counters, Histograms: histograms})
	}
	if c.sink != nil {
		c.sink.Emit(snaps)
	}
}

// Stop halts the ticking goroutine and waits for it to exit.
func (c *Collector) Stop() {
	c.mu.Lock()
	ticker, quit, done := c.ticker, c.quit, c.done
	c.mu.Unlock()
	if ticker == nil {
		return
	}
	ticker.Stop()
	close(quit)
	<-done
}
