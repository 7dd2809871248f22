// Package escaper implements the outbound escaper & route layer of spec
// §4.9/§3: a polymorphic escaper capability set (open TCP, open UDP
// connected/unconnected, open an FTP control+data pair, report HTTP-
// forward capability), the per-task TaskNotes record threaded through
// the pipeline, and the route variants that pick a child escaper per
// request. Grounded on the teacher's router package (named-route
// dispatch shape) for the Route* variants and the teacher's ftpclient
// package for the FTP capability.
package escaper

import (
	"net"
	"time"

	"github.com/sabouaram/g3edge/internal/stat"
)

// TaskNotes is spec §3's per-request mutable record: created at accept
// time, threaded through the pipeline by shared reference, destroyed
// once the task's terminal log line is emitted. It owns the fields
// every escaper and the server dataplane (C10) need regardless of
// protocol, plus one populated protocol-specific substruct.
type TaskNotes struct {
	SpanId stat.SpanId

	ClientAddr net.Addr
	ServerAddr net.Addr
	Username   string

	WaitStart    time.Time
	ConnectStart time.Time
	ConnectDone  time.Time
	FirstByte    time.Time

	EscaperName stat.NodeName

	// UpstreamAddr is set once the chosen escaper has resolved and
	// opened (or attempted to open) the next-hop connection.
	UpstreamAddr net.Addr

	TCP         *TcpConnectTaskNotes
	UDP         *UdpConnectTaskNotes
	FTP         *FtpOverHttpTaskNotes
	HTTPForward *HttpForwardTaskNotes
}

// NewTaskNotes stamps WaitStart and a fresh SpanId, per spec §3 "created
// when the server accepts the socket".
func NewTaskNotes(client, server net.Addr) *TaskNotes {
	return &TaskNotes{
		SpanId:     stat.NewSpanId(),
		ClientAddr: client,
		ServerAddr: server,
		WaitStart:  time.Now(),
	}
}

// MarkConnecting/MarkConnected/MarkFirstByte stamp the pipeline
// timestamps spec §3 requires for latency accounting (C12 stats).
func (t *TaskNotes) MarkConnecting() { t.ConnectStart = time.Now() }
func (t *TaskNotes) MarkConnected()  { t.ConnectDone = time.Now() }
func (t *TaskNotes) MarkFirstByte() {
	if t.FirstByte.IsZero() {
		t.FirstByte = time.Now()
	}
}

// TcpConnectTaskNotes is the substruct populated for a plain TCP-connect
// request (HTTP CONNECT, SOCKS4/5 TCP, tcp-stream server).
type TcpConnectTaskNotes struct {
	Host string
	Port int
}

// UdpConnectTaskNotes is populated for a SOCKS5 UDP ASSOCIATE request,
// §8 scenario 2.
type UdpConnectTaskNotes struct {
	Host string
	Port int
}

// FtpOverHttpTaskNotes is populated when the http-proxy pipeline
// recognizes an ftp:// forward target, escaped through the FTP
// capability's control+data pair.
type FtpOverHttpTaskNotes struct {
	Host string
	Port int
	Path string
}

// HttpForwardTaskNotes is populated for every HTTP forward/reverse
// request, spec §4.10 step 4's per-request loop.
type HttpForwardTaskNotes struct {
	Method           string
	Target           string
	ReusedConnection bool
	RspStatus        int
}
