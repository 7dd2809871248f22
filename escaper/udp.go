package escaper

import (
	"net"

	"github.com/sabouaram/g3edge/ioext"
)

// UdpCopyRemoteRecv/Send are the connected-socket UDP traits from spec
// §4.9: once an escaper has opened a connected upstream UDP socket
// (DirectFixed.OpenUDPConnected), the generic copier in the server
// dataplane (C10) drives it through these two methods without caring
// which escaper produced the connection.
type UdpCopyRemoteRecv interface {
	RecvFromRemote(p []byte) (n int, err error)
}

type UdpCopyRemoteSend interface {
	SendToRemote(p []byte) (n int, err error)
}

// UdpRelayRemoteRecv/Send are the unconnected-relay UDP traits, used
// for SOCKS5 UDP ASSOCIATE (§8 scenario 2): every datagram carries its
// own upstream peer address, so the copier must thread it through on
// both read and write rather than assuming a single fixed peer.
type UdpRelayRemoteRecv interface {
	RecvFromRelay(p []byte) (n int, peer *net.UDPAddr, err error)
}

type UdpRelayRemoteSend interface {
	SendToRelay(p []byte, peer *net.UDPAddr) (n int, err error)
}

// connUdpCopy adapts a connected net.Conn (as returned by
// OpenUDPConnected) to the UdpCopyRemoteRecv/Send traits.
type connUdpCopy struct{ net.Conn }

func NewConnUdpCopy(conn net.Conn) *connUdpCopy { return &connUdpCopy{conn} }

func (c *connUdpCopy) RecvFromRemote(p []byte) (int, error) { return c.Read(p) }
func (c *connUdpCopy) SendToRemote(p []byte) (int, error)   { return c.Write(p) }

// packetUdpRelay adapts an ioext.UDPSplit (backing a SOCKS5 UDP
// ASSOCIATE relay socket, as returned by OpenUDPRelay) to the
// UdpRelayRemoteRecv/Send traits.
type packetUdpRelay struct {
	send *ioext.UDPSendHalf
	recv *ioext.UDPRecvHalf
}

func NewPacketUdpRelay(split *ioext.UDPSplit) *packetUdpRelay {
	send, recv := split.Split()
	return &packetUdpRelay{send: send, recv: recv}
}

func (p *packetUdpRelay) RecvFromRelay(buf []byte) (int, *net.UDPAddr, error) {
	return p.recv.ReadFromUDP(buf)
}

func (p *packetUdpRelay) SendToRelay(buf []byte, peer *net.UDPAddr) (int, error) {
	return p.send.WriteToUDP(buf, peer)
}
