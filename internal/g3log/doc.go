// Package g3log's constructor New, called once per Stream, produces the
// escape logger and the task logger the glossary names as two distinct
// logical streams: the escape
// logger records per-connection outbound decisions (which escaper, which
// upstream address, reused vs fresh), the task logger records one summary
// line per request including the terminal g3err.Domain on failure.
//
// Logging defaults to disabled in callers that never call New — they keep
// a Discard() logger — matching the teacher logger package's "disabled by
// default" posture.
package g3log
