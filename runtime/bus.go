package runtime

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	natsrv "github.com/nats-io/nats-server/v2/server"
)

// ControlBus is the control-plane notification bus spec §4.11/§6
// substitutes for the out-of-scope Cap'n Proto RPC surface: an
// in-process NATS server plus a client connection, used to broadcast
// reload/panic/shutdown notifications to whatever else in the process
// (or, via a real listen address, a monitoring parent process) wants to
// observe them. Grounded on the teacher's config/components/natsServer
// component, which wraps the same nats-server/v2 + nats.go pair behind
// a config.Component lifecycle; this keeps the embedded-server-plus-
// client shape but drops the YAML-driven config surface (out of scope
// per spec §1/§6).
type ControlBus struct {
	server *natsrv.Server
	conn   *nats.Conn
}

// Subjects used for the well-known control notifications.
const (
	SubjectReload   = "g3edge.control.reload"
	SubjectPanic    = "g3edge.control.panic"
	SubjectShutdown = "g3edge.control.shutdown"
)

// NewControlBus starts an embedded NATS server bound to an ephemeral
// local port and connects a client to it.
func NewControlBus() (*ControlBus, error) {
	opts := &natsrv.Options{
		Host:   "127.0.0.1",
		Port:   -1,
		NoLog:  true,
		NoSigs: true,
	}

	srv, err := natsrv.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("runtime: control bus server init failed: %w", err)
	}

	go srv.Start()
	if !srv.ReadyForConnections(5 * time.Second) {
		srv.Shutdown()
		return nil, fmt.Errorf("runtime: control bus server did not become ready")
	}

	conn, err := nats.Connect(srv.ClientURL())
	if err != nil {
		srv.Shutdown()
		return nil, fmt.Errorf("runtime: control bus client connect failed: %w", err)
	}

	return &ControlBus{server: srv, conn: conn}, nil
}

// Publish sends data on subject.
func (b *ControlBus) Publish(subject string, data []byte) error {
	return b.conn.Publish(subject, data)
}

// Subscribe registers handler for every message on subject.
func (b *ControlBus) Subscribe(subject string, handler nats.MsgHandler) (*nats.Subscription, error) {
	return b.conn.Subscribe(subject, handler)
}

// Close drains the client connection and shuts the embedded server
// down.
func (b *ControlBus) Close() {
	if b.conn != nil {
		b.conn.Close()
	}
	if b.server != nil {
		b.server.Shutdown()
		b.server.WaitForShutdown()
	}
}
