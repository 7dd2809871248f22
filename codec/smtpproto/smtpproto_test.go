package smtpproto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParsePathValid(t *testing.T) {
	p, err := ParsePath("<user@example.com>")
	require.NoError(t, err)
	require.Equal(t, "user@example.com", p)
}

func TestParsePathMissingBrackets(t *testing.T) {
	_, err := ParsePath("user@example.com")
	require.ErrorIs(t, err, ErrNoAngleBrackets)
}

func TestParsePathInvalidByte(t *testing.T) {
	_, err := ParsePath("<user@example.com\x01>")
	require.ErrorIs(t, err, ErrInvalidByte)
}

func TestParseHelloHost(t *testing.T) {
	h, err := ParseHelloHost("EHLO mail.example.com\r\n")
	require.NoError(t, err)
	require.Equal(t, "mail.example.com", h)

	h, err = ParseHelloHost("HELO localhost")
	require.NoError(t, err)
	require.Equal(t, "localhost", h)
}

func TestParseHelloHostRejectsOther(t *testing.T) {
	_, err := ParseHelloHost("MAIL FROM:<a@b.com>")
	require.ErrorIs(t, err, ErrNotHeloLine)
}
