package escaper

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fakeHTTPConnectProxy(t *testing.T) net.Listener {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		if _, err := r.ReadString('\n'); err != nil {
			return
		}
		for {
			line, err := r.ReadString('\n')
			if err != nil || trimCRLF(line) == "" {
				break
			}
		}
		conn.Write([]byte("HTTP/1.1 200 Connection Established\r\n\r\n"))
		buf := make([]byte, 5)
		n, _ := r.Read(buf)
		conn.Write(buf[:n])
	}()
	return ln
}

func TestProxyHttpConnectTunnel(t *testing.T) {
	ln := fakeHTTPConnectProxy(t)
	defer ln.Close()

	p := NewProxyHttp("proxy-http", ln.Addr().String(), 2*time.Second)
	notes := NewTaskNotes(nil, nil)
	conn, err := p.OpenTCP(context.Background(), notes, "upstream.test", 443)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("hello"))
	require.NoError(t, err)

	buf := make([]byte, 5)
	_, err = conn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "hello", string(buf))
}

func fakeSocks5Proxy(t *testing.T) net.Listener {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		greet := make([]byte, 3)
		conn.Read(greet)
		conn.Write([]byte{0x05, 0x00})

		head := make([]byte, 4)
		conn.Read(head)
		switch head[3] {
		case 0x01:
			rest := make([]byte, 4+2)
			conn.Read(rest)
		case 0x03:
			lenBuf := make([]byte, 1)
			conn.Read(lenBuf)
			rest := make([]byte, int(lenBuf[0])+2)
			conn.Read(rest)
		}
		conn.Write([]byte{0x05, 0x00, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
	}()
	return ln
}

func TestProxySocks5Handshake(t *testing.T) {
	ln := fakeSocks5Proxy(t)
	defer ln.Close()

	p := NewProxySocks5("proxy-socks5", ln.Addr().String(), 2*time.Second)
	notes := NewTaskNotes(nil, nil)
	conn, err := p.OpenTCP(context.Background(), notes, "example.test", 80)
	require.NoError(t, err)
	conn.Close()
	require.False(t, notes.ConnectDone.IsZero())
}

func TestProxyFloatRotatesPoolAndHandshakes(t *testing.T) {
	ln := fakeSocks5Proxy(t)
	defer ln.Close()

	pool := []net.Addr{&net.TCPAddr{IP: net.IPv4zero, Port: 0}}
	p := NewProxyFloat("proxy-float", ln.Addr().String(), pool, 2*time.Second)
	notes := NewTaskNotes(nil, nil)
	conn, err := p.OpenTCP(context.Background(), notes, "example.test", 80)
	require.NoError(t, err)
	conn.Close()
}
