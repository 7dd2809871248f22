package icap

import (
	"bufio"
	"net"
)

// Session is one pooled ICAP connection, spec §3's "ICAP session:
// { service_config, upstream_socket, last_options_response,
// reusable: bool }". It satisfies pool.Conn so the generic
// connection-pool core (C5) drives its checkout/return/EOF-poll
// lifecycle exactly like any other pooled connection type.
type Session struct {
	conn     net.Conn
	reader   *bufio.Reader
	service  ServiceConfig
	caps     *Capabilities
	reusable bool
}

func newSession(conn net.Conn, service ServiceConfig) *Session {
	return &Session{conn: conn, reader: bufio.NewReader(conn), service: service, reusable: true}
}

// Reusable reports whether this session's connection may be returned to
// the pool, per pool.Conn. An ICAP response bearing "Connection: close"
// clears this (spec §8's boundary behavior: "ICAP OPTIONS returning
// Connection: close disables pooling for that service").
func (s *Session) Reusable() bool { return s.reusable }

// Close closes the underlying transport.
func (s *Session) Close() error { return s.conn.Close() }
