package stat

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewSpanIdUnique(t *testing.T) {
	a := NewSpanId()
	b := NewSpanId()
	require.NotEqual(t, a, b)
	require.NotEmpty(t, a.String())
}
