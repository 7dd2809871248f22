package g3log

import (
	"io"
	"log"

	"github.com/hashicorp/go-hclog"
)

// hclogAdapter lets a Logger stand in wherever a third-party dependency
// wants an hclog.Logger, grounded on the teacher's logger._hclog
// adapter. go-retryablehttp's LeveledLogger interface has the same
// Error/Info/Debug/Warn(msg, ...interface{}) method shape, so anything
// built for hclog.Logger also satisfies it without a second adapter.
type hclogAdapter struct {
	l    Logger
	name string
}

// AsHCLog wraps l so it can be handed to libraries (go-retryablehttp,
// nats.go) that expect an hclog.Logger.
func AsHCLog(l Logger) hclog.Logger {
	return &hclogAdapter{l: l}
}

func toFields(args []interface{}) Fields {
	f := NewFields()
	for i := 0; i+1 < len(args); i += 2 {
		key, ok := args[i].(string)
		if !ok {
			continue
		}
		f = f.Add(key, args[i+1])
	}
	return f
}

func (h *hclogAdapter) Log(level hclog.Level, msg string, args ...interface{}) {
	switch level {
	case hclog.Trace, hclog.Debug:
		h.Debug(msg, args...)
	case hclog.Info:
		h.Info(msg, args...)
	case hclog.Warn:
		h.Warn(msg, args...)
	case hclog.Error:
		h.Error(msg, args...)
	}
}

func (h *hclogAdapter) Trace(msg string, args ...interface{}) { h.l.Debug(msg, toFields(args)) }
func (h *hclogAdapter) Debug(msg string, args ...interface{}) { h.l.Debug(msg, toFields(args)) }
func (h *hclogAdapter) Info(msg string, args ...interface{})  { h.l.Info(msg, toFields(args)) }
func (h *hclogAdapter) Warn(msg string, args ...interface{})  { h.l.Warn(msg, toFields(args)) }
func (h *hclogAdapter) Error(msg string, args ...interface{}) { h.l.Error(msg, nil, toFields(args)) }

func (h *hclogAdapter) IsTrace() bool { return true }
func (h *hclogAdapter) IsDebug() bool { return true }
func (h *hclogAdapter) IsInfo() bool  { return true }
func (h *hclogAdapter) IsWarn() bool  { return true }
func (h *hclogAdapter) IsError() bool { return true }

func (h *hclogAdapter) ImpliedArgs() []interface{} { return nil }

func (h *hclogAdapter) With(args ...interface{}) hclog.Logger {
	return &hclogAdapter{l: h.l.With(toFields(args)), name: h.name}
}

func (h *hclogAdapter) Name() string { return h.name }

func (h *hclogAdapter) Named(name string) hclog.Logger {
	return &hclogAdapter{l: h.l, name: name}
}

func (h *hclogAdapter) ResetNamed(name string) hclog.Logger {
	return &hclogAdapter{l: h.l, name: name}
}

func (h *hclogAdapter) SetLevel(hclog.Level) {}
func (h *hclogAdapter) GetLevel() hclog.Level { return hclog.Info }

func (h *hclogAdapter) StandardLogger(opts *hclog.StandardLoggerOptions) *log.Logger {
	return log.New(io.Discard, "", 0)
}

func (h *hclogAdapter) StandardWriter(opts *hclog.StandardLoggerOptions) io.Writer {
	return io.Discard
}
