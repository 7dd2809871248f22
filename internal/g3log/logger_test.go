package g3log

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSharedSinkReused(t *testing.T) {
	var buf bytes.Buffer
	l1 := New(StreamTask, "test-key", &buf)
	l2 := New(StreamTask, "test-key", &buf)

	l1.Info("hello", nil)
	l2.Info("world", nil)

	out := buf.String()
	require.Contains(t, out, "hello")
	require.Contains(t, out, "world")
	require.Equal(t, 2, strings.Count(out, "\n"))
}

func TestErrorFieldIncludesErr(t *testing.T) {
	var buf bytes.Buffer
	l := New(StreamEscape, "err-key", &buf)
	l.Error("upstream dial failed", errors.New("boom"), NewFields().Add("escaper", "direct"))

	out := buf.String()
	require.Contains(t, out, "boom")
	require.Contains(t, out, "escaper")
}

func TestWithMergesFields(t *testing.T) {
	var buf bytes.Buffer
	base := New(StreamTask, "with-key", &buf)
	child := base.With(NewFields().Add("taskId", "abc"))
	child.Info("done", nil)

	require.Contains(t, buf.String(), "abc")
}

func TestDiscardDoesNotPanic(t *testing.T) {
	d := Discard()
	d.Debug("x", nil)
	d.Info("x", NewFields())
	d.Warn("x", nil)
	d.Error("x", errors.New("e"), nil)
}
