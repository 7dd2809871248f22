package g3err

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDomainRetryable(t *testing.T) {
	require.True(t, DomainIcapIo.Retryable())
	require.False(t, DomainUpstreamIo.Retryable())
	require.False(t, DomainFatal.Retryable())
}

func TestFaultChainAndDomainOf(t *testing.T) {
	root := errors.New("connection reset")
	f := New(DomainUpstreamIo, "reset", root)

	var got Domain
	var ok bool
	got, ok = DomainOf(f)
	require.True(t, ok)
	require.Equal(t, DomainUpstreamIo, got)
	require.ErrorIs(t, f, root)
}

func TestDomainOfNonFault(t *testing.T) {
	_, ok := DomainOf(errors.New("plain"))
	require.False(t, ok)
}
