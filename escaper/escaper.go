package escaper

import (
	"context"
	"io"
	"net"

	"github.com/sabouaram/g3edge/internal/stat"
)

// Escaper is the minimum surface of spec §3's polymorphic escaper type.
// Concrete escapers additionally implement whichever capability
// interfaces below they support; a type switch or interface assertion at
// the call site (the router/dataplane) picks the right one, matching
// Go's "accept small interfaces" idiom in place of the original's single
// trait-object capability enum.
type Escaper interface {
	Name() stat.NodeName
	Id() stat.Id
}

// TCPOpener is the "open TCP to upstream" capability.
type TCPOpener interface {
	OpenTCP(ctx context.Context, notes *TaskNotes, host string, port int) (net.Conn, error)
}

// UDPConnector is the "open UDP connected socket" capability.
type UDPConnector interface {
	OpenUDPConnected(ctx context.Context, notes *TaskNotes, host string, port int) (net.Conn, error)
}

// UDPRelayer is the "open UDP unconnected relay" capability, spec §8
// scenario 2 (SOCKS5 UDP ASSOCIATE).
type UDPRelayer interface {
	OpenUDPRelay(ctx context.Context, notes *TaskNotes) (net.PacketConn, error)
}

// FTPOpener is the "open an FTP session" capability. jlaffaye/ftp's
// ServerConn owns control/data channel management (PASV/EPSV, TLS)
// internally rather than exposing raw sockets, so the capability
// returns an FTPSession instead of a conn pair.
type FTPOpener interface {
	OpenFTP(ctx context.Context, notes *TaskNotes, host string, port int) (FTPSession, error)
}

// FTPSession is the subset of *ftp.ServerConn the FTP-over-HTTP
// forward path (§3 FtpOverHttpTaskNotes) needs to serve a GET/PUT.
type FTPSession interface {
	Retr(path string) (io.ReadCloser, error)
	Stor(path string, r io.Reader) error
	Quit() error
}

// UserAuthenticator is the credential-check capability spec §4.10's
// Auth/ACL dataplane stage uses before a request is allowed to reach
// routing: implementations bind (or otherwise validate) the
// TaskNotes.Username/password pair against an external directory.
type UserAuthenticator interface {
	AuthUser(ctx context.Context, notes *TaskNotes, password string) error
}

// HTTPForwarder reports the "HTTP-forward capability" — escapers that
// can serve as the next hop for an HTTP forward-proxy request without a
// raw TCP tunnel (e.g. a ProxyHttp escaper may itself forward the
// request rather than CONNECT-tunneling it).
type HTTPForwarder interface {
	SupportsHTTPForward() bool
}

// base is embedded by every concrete escaper to supply Name/Id, the way
// every teacher config.Component embeds a common identity struct.
type base struct {
	name stat.NodeName
	id   stat.Id
}

func newBase(name stat.NodeName) base {
	return base{name: name, id: stat.NextId()}
}

func (b base) Name() stat.NodeName { return b.name }
func (b base) Id() stat.Id         { return b.id }
