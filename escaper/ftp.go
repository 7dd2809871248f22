package escaper

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	libftp "github.com/jlaffaye/ftp"

	"github.com/sabouaram/g3edge/internal/stat"
	"github.com/sabouaram/g3edge/resolver"
)

// ftpSessionAdapter narrows a *ftp.ServerConn down to FTPSession.
type ftpSessionAdapter struct{ conn *libftp.ServerConn }

func (f *ftpSessionAdapter) Retr(path string) (io.ReadCloser, error) {
	return f.conn.Retr(path)
}

func (f *ftpSessionAdapter) Stor(path string, r io.Reader) error {
	return f.conn.Stor(path, r)
}

func (f *ftpSessionAdapter) Quit() error { return f.conn.Quit() }

// DirectFTP is the FTP-over-HTTP escaper capability (spec §3's
// FtpOverHttpTaskNotes), grounded on the teacher's ftpclient.Config.New
// dial-option assembly. Login/Password are the control-channel
// credentials used for every session; OpenFTP takes no per-request
// credentials, and an empty Login skips the login step.
type DirectFTP struct {
	base
	Resolver *resolver.ResolverHandle
	Login    string
	Password string
	Timeout  time.Duration
}

func NewDirectFTP(name stat.NodeName, r *resolver.ResolverHandle, timeout time.Duration) *DirectFTP {
	return &DirectFTP{base: newBase(name), Resolver: r, Timeout: timeout}
}

func (d *DirectFTP) OpenFTP(ctx context.Context, notes *TaskNotes, host string, port int) (FTPSession, error) {
	notes.MarkConnecting()
	ip, err := resolveFirst(ctx, d.Resolver, host)
	if err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(ip.String(), fmt.Sprintf("%d", port))

	opts := []libftp.DialOption{libftp.DialWithContext(ctx)}
	if d.Timeout != 0 {
		opts = append(opts, libftp.DialWithTimeout(d.Timeout))
	}

	conn, err := libftp.Dial(addr, opts...)
	if err != nil {
		return nil, err
	}
	notes.MarkConnected()
	notes.UpstreamAddr = &net.TCPAddr{IP: ip, Port: port}

	if d.Login != "" {
		if err := conn.Login(d.Login, d.Password); err != nil {
			conn.Quit()
			return nil, err
		}
	}
	return &ftpSessionAdapter{conn: conn}, nil
}
