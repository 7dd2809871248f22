// Package server implements the accept-to-response dataplane state
// machine of spec §4.10: an offline-tolerant listener, per-connection
// info capture (client/server address, PROXY protocol, TLS), protocol
// dispatch, an HTTP-pipelining per-request loop wired to escaper and
// ICAP, and graceful shutdown with a three-stage drain deadline.
//
// Grounded on the teacher's httpserver package: ServerConfig's timeout
// knobs mirror httpserver.ServerConfig, and the Start/Shutdown sequence
// mirrors httpserver/run.go's runFuncStart/runFuncStop around a stdlib
// http.Server, generalized from HTTP-only to the wider protocol set this
// dataplane dispatches across.
package server

import (
	"crypto/tls"
	"time"

	"github.com/sabouaram/g3edge/escaper"
	"github.com/sabouaram/g3edge/icap"
	"github.com/sabouaram/g3edge/internal/stat"
)

// Mode is the protocol this server's listener dispatches, spec §4.10
// step 3.
type Mode int

const (
	ModeHTTPForward Mode = iota
	ModeHTTPSReverse
	ModeSOCKS
	ModeSNI
	ModeTCPStream
	ModeTLSTproxy
	ModeIntelli
)

func (m Mode) String() string {
	switch m {
	case ModeHTTPForward:
		return "http_forward"
	case ModeHTTPSReverse:
		return "https_reverse"
	case ModeSOCKS:
		return "socks"
	case ModeSNI:
		return "sni"
	case ModeTCPStream:
		return "tcp_stream"
	case ModeTLSTproxy:
		return "tls_tproxy"
	case ModeIntelli:
		return "intelli"
	default:
		return "unknown"
	}
}

// Config is one server entry's configuration, spec §6's per-object
// "server|importer" section.
type Config struct {
	Name stat.NodeName

	// Listen is the local bind address ("host:port" or "ip:port").
	Listen string

	// ReusePort enables SO_REUSEPORT so multiple processes/listeners can
	// share one bind address for load balancing, spec §4.10 step 1.
	ReusePort bool

	Mode Mode

	// TLSConfig is non-nil when this server terminates TLS itself
	// (ModeHTTPSReverse, ModeSNI, ModeTLSTproxy).
	TLSConfig *tls.Config

	// AcceptProxyProtocol, when true, parses an optional PROXY protocol
	// v1/v2 header immediately after accept, spec §4.10 step 2.
	AcceptProxyProtocol bool

	// IsTproxy marks connections on this listener as transparently
	// proxied (destination address is the original, not this process).
	IsTproxy bool

	// Escaper is the default next-hop chosen for every task on this
	// server, absent any per-request routing override.
	Escaper escaper.Escaper

	// ReqmodService/RespmodService, when non-nil, run ICAP adaptation
	// before forwarding the request / before returning the response.
	ReqmodService  *icap.ServiceConfig
	RespmodService *icap.ServiceConfig
	IcapClient     *icap.Client

	// PipelineDepth caps in-flight requests read ahead on one
	// keep-alive connection, spec §4.10 step 4.
	PipelineDepth int

	// ReadIdleTimeout closes a connection that sits idle between
	// pipelined requests longer than this, spec §5 "pipeline read-idle
	// 300 s" default.
	ReadIdleTimeout time.Duration

	// TaskWaitDelay/TaskWaitTimeout/TaskQuitTimeout are the three
	// graceful-shutdown stages of spec §4.10 step 5.
	TaskWaitDelay   time.Duration
	TaskWaitTimeout time.Duration
	TaskQuitTimeout time.Duration
}

// defaults fills the spec §5 numeric defaults for any zero-valued
// timeout field.
func (c *Config) defaults() {
	if c.PipelineDepth <= 0 {
		c.PipelineDepth = 100
	}
	if c.ReadIdleTimeout <= 0 {
		c.ReadIdleTimeout = 300 * time.Second
	}
	if c.TaskWaitTimeout <= 0 {
		c.TaskWaitTimeout = 30 * time.Second
	}
	if c.TaskQuitTimeout <= 0 {
		c.TaskQuitTimeout = 10 * time.Second
	}
}
