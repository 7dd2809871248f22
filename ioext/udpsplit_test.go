package ioext

import (
	"net"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUDPSplitRoundTrip(t *testing.T) {
	serverConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer serverConn.Close()

	clientConn, err := net.DialUDP("udp", nil, serverConn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	defer clientConn.Close()

	split := NewUDPSplit(serverConn)
	send, recv := split.Split()

	_, err = clientConn.Write([]byte("ping"))
	require.NoError(t, err)

	buf := make([]byte, 16)
	n, addr, err := recv.ReadFromUDP(buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf[:n]))

	sent, err := send.WriteToUDP([]byte("pong"), addr)
	require.NoError(t, err)
	require.Equal(t, 4, sent)

	require.Same(t, serverConn, split.Reunite())
}

func TestUDPSplitWriteBatch(t *testing.T) {
	serverConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer serverConn.Close()

	clientConn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer clientConn.Close()

	split := NewUDPSplit(serverConn)
	send, _ := split.Split()

	n, err := send.WriteBatch([][]byte{[]byte("a"), []byte("b"), []byte("c")}, clientConn.LocalAddr().(*net.UDPAddr))
	require.NoError(t, err)
	require.Equal(t, 3, n)
}
