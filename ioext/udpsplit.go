package ioext

import "net"

// UDPSendHalf is the send-only view of a split datagram socket.
type UDPSendHalf struct {
	conn *net.UDPConn
}

// WriteToUDP sends a single datagram to addr.
func (s *UDPSendHalf) WriteToUDP(p []byte, addr *net.UDPAddr) (int, error) {
	return s.conn.WriteToUDP(p, addr)
}

// WriteBatch sends each packet in pkts in turn. Go's net package has no
// portable sendmmsg binding, so this loops one syscall per packet; on
// platforms with golang.org/x/net/ipv4's xConn batch helpers a caller can
// swap this for a true batched send without changing UDPSendHalf's
// interface.
func (s *UDPSendHalf) WriteBatch(pkts [][]byte, addr *net.UDPAddr) (int, error) {
	sent := 0
	for _, p := range pkts {
		if _, err := s.conn.WriteToUDP(p, addr); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

// UDPRecvHalf is the receive-only view of a split datagram socket.
type UDPRecvHalf struct {
	conn *net.UDPConn
}

// ReadFromUDP reads a single datagram into p.
func (r *UDPRecvHalf) ReadFromUDP(p []byte) (int, *net.UDPAddr, error) {
	return r.conn.ReadFromUDP(p)
}

// UDPSplit produces independent send and recv halves from a single
// *net.UDPConn. Per spec §4.2 ("produces independent send and recv
// halves from a single datagram socket and reunites them"), Reunite
// returns the same *net.UDPConn both halves share, letting a caller
// Close it exactly once regardless of which half currently holds it.
type UDPSplit struct {
	conn *net.UDPConn
}

// NewUDPSplit wraps an established UDP connection.
func NewUDPSplit(conn *net.UDPConn) *UDPSplit {
	return &UDPSplit{conn: conn}
}

// Split returns independent send and recv halves of the same socket.
// Both halves are safe to use from different goroutines concurrently;
// *net.UDPConn's Read/Write side are already independently synchronized
// by the runtime netpoller.
func (u *UDPSplit) Split() (*UDPSendHalf, *UDPRecvHalf) {
	return &UDPSendHalf{conn: u.conn}, &UDPRecvHalf{conn: u.conn}
}

// Reunite returns the shared underlying connection so a caller holding
// only one half can still close the whole socket.
func (u *UDPSplit) Reunite() *net.UDPConn {
	return u.conn
}
