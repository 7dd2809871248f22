package proxyproto

import (
	"bufio"
	"bytes"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseV1RoundTrip(t *testing.T) {
	client := netip.MustParseAddrPort("192.168.0.1:56324")
	server := netip.MustParseAddrPort("10.0.0.1:443")

	raw, err := EncodeV1(client, server)
	require.NoError(t, err)

	h, err := ParseV1(bufio.NewReader(bytes.NewReader(raw)))
	require.NoError(t, err)
	require.Equal(t, 1, h.Version)
	require.Equal(t, client, h.Client)
	require.Equal(t, server, h.Server)
	require.False(t, h.Local)
}

func TestParseV1Unknown(t *testing.T) {
	h, err := ParseV1(bufio.NewReader(bytes.NewReader([]byte("PROXY UNKNOWN\r\n"))))
	require.NoError(t, err)
	require.True(t, h.Local == false)
	require.Zero(t, h.Client)
}

func TestParseV1Malformed(t *testing.T) {
	_, err := ParseV1(bufio.NewReader(bytes.NewReader([]byte("PROXY TCP4 not-an-ip 10.0.0.1 1 2\r\n"))))
	require.ErrorIs(t, err, ErrMalformedHeader)
}

func TestParseV1NotProxyProtocol(t *testing.T) {
	_, err := ParseV1(bufio.NewReader(bytes.NewReader([]byte("GET / HTTP/1.1\r\n"))))
	require.ErrorIs(t, err, ErrNotProxyProtocol)
}

func TestParseV2RoundTripIPv4(t *testing.T) {
	client := netip.MustParseAddrPort("203.0.113.5:12345")
	server := netip.MustParseAddrPort("198.51.100.9:8080")

	raw, err := EncodeV2(V2CmdProxy, client, server)
	require.NoError(t, err)

	h, err := ParseV2(bufio.NewReader(bytes.NewReader(raw)))
	require.NoError(t, err)
	require.Equal(t, 2, h.Version)
	require.Equal(t, client, h.Client)
	require.Equal(t, server, h.Server)
}

func TestParseV2RoundTripIPv6(t *testing.T) {
	client := netip.MustParseAddrPort("[2001:db8::1]:12345")
	server := netip.MustParseAddrPort("[2001:db8::2]:8080")

	raw, err := EncodeV2(V2CmdProxy, client, server)
	require.NoError(t, err)

	h, err := ParseV2(bufio.NewReader(bytes.NewReader(raw)))
	require.NoError(t, err)
	require.Equal(t, client, h.Client)
	require.Equal(t, server, h.Server)
}

func TestParseV2Local(t *testing.T) {
	client := netip.MustParseAddrPort("203.0.113.5:12345")
	server := netip.MustParseAddrPort("198.51.100.9:8080")

	raw, err := EncodeV2(V2CmdLocal, client, server)
	require.NoError(t, err)

	h, err := ParseV2(bufio.NewReader(bytes.NewReader(raw)))
	require.NoError(t, err)
	require.True(t, h.Local)
}

func TestParseV2BadSignature(t *testing.T) {
	_, err := ParseV2(bufio.NewReader(bytes.NewReader(make([]byte, 16))))
	require.ErrorIs(t, err, ErrNotProxyProtocol)
}

func TestDetectVersions(t *testing.T) {
	client := netip.MustParseAddrPort("192.168.0.1:1")
	server := netip.MustParseAddrPort("10.0.0.1:2")

	v1, err := EncodeV1(client, server)
	require.NoError(t, err)
	ver, err := Detect(bufio.NewReader(bytes.NewReader(v1)))
	require.NoError(t, err)
	require.Equal(t, 1, ver)

	v2, err := EncodeV2(V2CmdProxy, client, server)
	require.NoError(t, err)
	ver, err = Detect(bufio.NewReader(bytes.NewReader(v2)))
	require.NoError(t, err)
	require.Equal(t, 2, ver)

	ver, err = Detect(bufio.NewReader(bytes.NewReader([]byte("GET / HTTP/1.1\r\n"))))
	require.NoError(t, err)
	require.Equal(t, 0, ver)
}
