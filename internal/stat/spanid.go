package stat

import "github.com/google/uuid"

// SpanId uniquely identifies one request/query's worth of work that can
// fail in a single, specific way — one resolver query, one ICAP
// exchange, one proxied request — so a single log line or error can be
// correlated across the stages it passed through (C4's ResolveJob, C7's
// ICAP exchange, C10's per-request pipeline). Grounded directly on
// bassosimone-nop's spanid.go, which mints a UUIDv7 per operation for
// the same reason (the span terminology borrowed from OpenTelemetry);
// unlike Id above, a SpanId is deliberately random/time-ordered rather
// than a bare counter, since it must also be safe to hand to external
// systems (ICAP headers, NATS control messages) without leaking the
// process's internal incarnation counter.
type SpanId string

// NewSpanId returns a fresh UUIDv7-based span identifier. UUIDv7 embeds a
// millisecond timestamp in its high bits, so span ids sort roughly in
// creation order — useful when correlating log lines by eye.
func NewSpanId() SpanId {
	id, err := uuid.NewV7()
	if err != nil {
		// crypto/rand failure; fall back to a random v4. uuid.New
		// panics if the random source is still failing.
		id = uuid.New()
	}
	return SpanId(id.String())
}

func (s SpanId) String() string {
	return string(s)
}
