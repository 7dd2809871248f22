package http1

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStatusLine200(t *testing.T) {
	sl, err := ParseStatusLine("HTTP/1.1 200 OK")
	require.NoError(t, err)
	require.Equal(t, Version11, sl.Version)
	require.Equal(t, 200, sl.Code)
	require.Equal(t, "OK", sl.Reason)
}

func TestParseStatusLineVersionMap(t *testing.T) {
	sl, err := ParseStatusLine("HTTP/1.0 404 Not Found")
	require.NoError(t, err)
	require.Equal(t, Version10, sl.Version)

	sl, err = ParseStatusLine("HTTP/2 200 OK")
	require.NoError(t, err)
	require.Equal(t, Version2, sl.Version)
}

func TestParseStatusLineInvalidVersion(t *testing.T) {
	_, err := ParseStatusLine("HTTP/3.0 200 OK")
	require.ErrorIs(t, err, ErrInvalidVersion)
}

func TestParseStatusLineInvalidCode(t *testing.T) {
	_, err := ParseStatusLine("HTTP/1.1 abc OK")
	require.ErrorIs(t, err, ErrInvalidStatusCode)
}

func TestParseRequestLine(t *testing.T) {
	rl, err := ParseRequestLine("GET /index.html HTTP/1.1")
	require.NoError(t, err)
	require.Equal(t, "GET", rl.Method)
	require.Equal(t, "/index.html", rl.Target)
	require.Equal(t, Version11, rl.Version)
}

func TestParseHeaderLine(t *testing.T) {
	h, err := ParseHeaderLine("Content-Length: 42")
	require.NoError(t, err)
	require.Equal(t, "Content-Length", h.Name)
	require.Equal(t, "42", h.Value)
}

func TestParseHeaderLineNoDelimiter(t *testing.T) {
	_, err := ParseHeaderLine("garbage-no-colon")
	require.ErrorIs(t, err, ErrNoDelimiterFound)
}

func TestChunkedLineRoundTrip(t *testing.T) {
	cases := []struct {
		size uint64
		ext  string
	}{
		{0, ""},
		{5, ""},
		{255, "foo=bar"},
		{1 << 20, ""},
	}
	for _, c := range cases {
		line := FormatChunkedLine(c.size, c.ext)
		got, err := ParseChunkedLine(line)
		require.NoError(t, err)
		require.Equal(t, c.size, got.ChunkSize)
		require.Equal(t, c.ext, got.Ext)
	}
}

func TestChunkedLineCaseInsensitive(t *testing.T) {
	upper, err := ParseChunkedLine("FF")
	require.NoError(t, err)
	lower, err := ParseChunkedLine("ff")
	require.NoError(t, err)
	require.Equal(t, upper.ChunkSize, lower.ChunkSize)
}

func TestChunkedLineInvalid(t *testing.T) {
	_, err := ParseChunkedLine("not-hex")
	require.ErrorIs(t, err, ErrInvalidChunkSize)
}

func TestChunkedLineEmpty(t *testing.T) {
	_, err := ParseChunkedLine("")
	require.ErrorIs(t, err, ErrNotLongEnough)
	require.True(t, IsIncomplete(err))
}
