package proxyproto

import (
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEncodeV1Tcp4(t *testing.T) {
	client := netip.MustParseAddrPort("192.168.1.1:56324")
	server := netip.MustParseAddrPort("10.0.0.1:443")

	out, err := EncodeV1(client, server)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(string(out), "\r\n"))
	require.LessOrEqual(t, len(out), MaxV1HeaderLen)
	require.Equal(t, "PROXY TCP4 192.168.1.1 10.0.0.1 56324 443\r\n", string(out))
}

func TestEncodeV1FamilyMismatch(t *testing.T) {
	client := netip.MustParseAddrPort("192.168.1.1:1234")
	server := netip.MustParseAddrPort("[::1]:443")

	_, err := EncodeV1(client, server)
	require.ErrorIs(t, err, ErrFamilyMismatch)
}

func TestEncodeV2Signature(t *testing.T) {
	client := netip.MustParseAddrPort("203.0.113.5:1111")
	server := netip.MustParseAddrPort("198.51.100.2:2222")

	out, err := EncodeV2(V2CmdProxy, client, server)
	require.NoError(t, err)
	require.Equal(t, V2Signature[:], out[:12])
	require.Equal(t, byte(0x21), out[12]) // ver2 | cmd proxy
	require.Equal(t, byte(0x11), out[13]) // AF_INET | STREAM
	require.Len(t, out, 12+1+1+2+12) // sig + ver/cmd + fam/proto + len field + v4 addrs/ports
}

func TestEncodeV2FamilyMismatch(t *testing.T) {
	client := netip.MustParseAddrPort("203.0.113.5:1111")
	server := netip.MustParseAddrPort("[2001:db8::1]:2222")

	_, err := EncodeV2(V2CmdProxy, client, server)
	require.ErrorIs(t, err, ErrFamilyMismatch)
}
