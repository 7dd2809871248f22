package server

import (
	"bufio"
	"net"
)

// pooledConn adapts a net.Conn to pool.Conn (spec §4.5's checkout-entry
// shape): reusable is cleared the moment the upstream side signals
// "Connection: close" or the body couldn't be drained cleanly, so the
// pool never hands out a connection that's mid-response. br is kept on
// the entry itself (not recreated per checkout) so any bytes a previous
// request's bufio.Reader over-read from the socket aren't lost the next
// time this connection is reused.
type pooledConn struct {
	net.Conn
	reusable bool
	br       *bufio.Reader
}

func (p *pooledConn) Reusable() bool { return p.reusable }

// reader lazily builds p.br on first use.
func (p *pooledConn) reader() *bufio.Reader {
	if p.br == nil {
		p.br = bufio.NewReader(p.Conn)
	}
	return p.br
}
