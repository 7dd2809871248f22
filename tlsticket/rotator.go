package tlsticket

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Rotator drives a Ring's background rotation, per spec §4.6: "A
// background task rotates at lifetime/4 or on config reload." Grounded
// on the teacher's ticking-goroutine lifecycle idiom shared with this
// repo's limiter.TokenBucket (itself grounded on etalazz-vsa's Worker).
type Rotator struct {
	ring     *Ring
	lifetime time.Duration
	log      *logrus.Entry

	cancel context.CancelFunc
	done   chan struct{}
}

// NewRotator builds a Rotator over ring, rotating every lifetime/4.
func NewRotator(ring *Ring, lifetime time.Duration, log *logrus.Entry) *Rotator {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Rotator{ring: ring, lifetime: lifetime, log: log}
}

// Start launches the rotation goroutine. Calling Start twice without an
// intervening Stop is a caller error.
func (r *Rotator) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.loop(ctx)
}

func (r *Rotator) loop(ctx context.Context) {
	defer close(r.done)

	interval := r.lifetime / 4
	if interval <= 0 {
		interval = time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if err := r.ring.Rotate(now); err != nil {
				r.log.WithError(err).Error("tls ticket key rotation failed")
				continue
			}
			cur := r.ring.EncryptInit()
			fp := fingerprint(cur)
			r.log.WithField("key_fingerprint", fp[:8]).Debug("tls ticket key rotated")
		}
	}
}

// ReloadNow forces an immediate rotation, for config-reload triggers.
func (r *Rotator) ReloadNow(now time.Time) error {
	return r.ring.Rotate(now)
}

// Stop cancels the rotation goroutine and waits for it to exit.
func (r *Rotator) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	if r.done != nil {
		<-r.done
	}
}
