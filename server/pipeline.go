// Package server implements the accept-to-response dataplane state
// machine of spec §4.10 (see config.go for the package-level doc comment
// this file continues).
package server

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/sabouaram/g3edge/escaper"
	"github.com/sabouaram/g3edge/internal/g3err"
	"github.com/sabouaram/g3edge/internal/g3log"
	"github.com/sabouaram/g3edge/pool"
)

// Pipeline drives spec §4.10 step 4's per-request HTTP forward loop for
// one server Config. It owns the upstream connection pool (C5) keyed by
// "escaper|host:port" so distinct escapers never share a checkout slot
// even if they happen to dial the same address.
type Pipeline struct {
	cfg        *Config
	upstreams  *pool.Pool[string, *pooledConn]
	TaskLogger g3log.Logger
}

// NewPipeline builds a Pipeline for cfg. poolSize bounds concurrent
// in-flight upstream dials per key, spec §4.5.
func NewPipeline(cfg *Config, poolSize int) *Pipeline {
	p := &Pipeline{cfg: cfg, TaskLogger: g3log.Discard()}
	p.upstreams = pool.New[string, *pooledConn](poolSize, p.dialUpstream, p.peekUpstream)
	return p
}

func upstreamKey(esc escaper.Escaper, host string, port int) string {
	return fmt.Sprintf("%s|%s:%d", esc.Name(), host, port)
}

func (p *Pipeline) dialUpstream(ctx context.Context, key string) (*pooledConn, error) {
	opener, ok := p.cfg.Escaper.(escaper.TCPOpener)
	if !ok {
		return nil, g3err.New(g3err.DomainFatal, "escaper-no-tcp-opener", nil)
	}
	notes := escaper.NewTaskNotes(nil, nil)
	// key is "escaper|host:port"; host/port were already validated by the
	// caller building it, so a split failure here is an internal defect.
	_, hostport, splitErr := splitKey(key)
	if splitErr != nil {
		return nil, g3err.New(g3err.DomainFatal, "bad-upstream-key", splitErr)
	}
	host, portStr, err := net.SplitHostPort(hostport)
	if err != nil {
		return nil, g3err.New(g3err.DomainFatal, "bad-upstream-key", err)
	}
	port, _ := strconv.Atoi(portStr)
	conn, err := opener.OpenTCP(ctx, notes, host, port)
	if err != nil {
		return nil, g3err.New(g3err.DomainUpstreamIo, "dial", err)
	}
	return &pooledConn{Conn: conn, reusable: true}, nil
}

func splitKey(key string) (escaperName, hostport string, err error) {
	for i := 0; i < len(key); i++ {
		if key[i] == '|' {
			return key[:i], key[i+1:], nil
		}
	}
	return "", "", fmt.Errorf("server: malformed upstream key %q", key)
}

func (p *Pipeline) peekUpstream(c *pooledConn) error {
	_, err := c.reader().Peek(1)
	return err
}

// ServeHTTPForward runs spec §4.10 step 4's pipelining loop over one
// accepted client connection: read a request, escape it, optionally run
// REQMOD/RESPMOD, forward, stream the response back, and log one task
// line, looping while both sides ask for keep-alive and the configured
// pipeline depth hasn't been reached.
func (p *Pipeline) ServeHTTPForward(ctx context.Context, conn net.Conn, br *bufio.Reader, info *ConnInfo) error {
	depth := 0
	for depth < p.cfg.PipelineDepth {
		if p.cfg.ReadIdleTimeout > 0 {
			conn.SetReadDeadline(time.Now().Add(p.cfg.ReadIdleTimeout))
		}

		if err := p.serveOneRequest(ctx, conn, br, info); err != nil {
			if err == errConnectionClose {
				return nil
			}
			return err
		}
		depth++
	}
	return nil
}

// errConnectionClose signals a clean, intentional end of the pipelining
// loop (either side asked not to keep the connection alive).
var errConnectionClose = fmt.Errorf("server: connection closed after response")

func (p *Pipeline) serveOneRequest(ctx context.Context, clientConn net.Conn, br *bufio.Reader, info *ConnInfo) error {
	notes := escaper.NewTaskNotes(info.ClientAddr, info.ServerAddr)
	notes.EscaperName = p.cfg.Escaper.Name()

	reqHead, rl, err := readRequestHead(br)
	if err != nil {
		return err
	}
	reqBody, err := bodyReader(br, reqHead.Header)
	if err != nil {
		return err
	}

	host, port, _, err := splitAbsoluteTarget(rl.Target)
	if err != nil {
		return g3err.New(g3err.DomainInternalProto, "bad-target", err)
	}
	notes.HTTPForward = &escaper.HttpForwardTaskNotes{Method: rl.Method, Target: rl.Target}
	notes.TCP = &escaper.TcpConnectTaskNotes{Host: host, Port: port}

	if p.cfg.ReqmodService != nil {
		result, rerr := p.cfg.IcapClient.Reqmod(ctx, *p.cfg.ReqmodService, reqHead, reqBody)
		if rerr != nil {
			return g3err.New(g3err.DomainIcapIo, "reqmod", rerr)
		}
		if !result.Unmodified {
			reqHead = result.ModifiedHead
			reqBody = result.Body
		}
	}

	key := upstreamKey(p.cfg.Escaper, host, port)
	entry, err := p.upstreams.Fetch(ctx, key)
	if err != nil {
		p.logTask(notes, 0, false, err)
		return g3err.New(g3err.DomainUpstreamIo, "fetch", err)
	}
	reused := entry.ReuseCount > 0
	notes.HTTPForward.ReusedConnection = reused
	notes.MarkFirstByte()

	upstream := entry.Conn
	if _, err := upstream.Write(reqHead.Bytes()); err != nil {
		upstream.reusable = false
		p.upstreams.Release(key, entry)
		return g3err.New(g3err.DomainUpstreamIo, "write-head", err)
	}
	if _, err := writeBody(upstream, reqBody); err != nil {
		upstream.reusable = false
		p.upstreams.Release(key, entry)
		return g3err.New(g3err.DomainUpstreamIo, "write-body", err)
	}

	upstreamBr := upstream.reader()
	respHead, sl, err := readResponseHead(upstreamBr, g3err.DomainUpstreamIo)
	if err != nil {
		upstream.reusable = false
		p.upstreams.Release(key, entry)
		return err
	}
	respBody, err := bodyReader(upstreamBr, respHead.Header)
	if err != nil {
		upstream.reusable = false
		p.upstreams.Release(key, entry)
		return err
	}

	if p.cfg.RespmodService != nil {
		result, rerr := p.cfg.IcapClient.Respmod(ctx, *p.cfg.RespmodService, reqHead, respHead, respBody)
		if rerr != nil {
			upstream.reusable = false
			p.upstreams.Release(key, entry)
			return g3err.New(g3err.DomainIcapIo, "respmod", rerr)
		}
		if !result.Unmodified {
			respHead = result.ModifiedHead
			respBody = result.Body
		}
	}

	notes.HTTPForward.RspStatus = sl.Code
	if _, err := clientConn.Write(respHead.Bytes()); err != nil {
		upstream.reusable = false
		p.upstreams.Release(key, entry)
		return g3err.New(g3err.DomainClientIo, "write-head", err)
	}
	if _, err := writeBody(clientConn, respBody); err != nil {
		upstream.reusable = false
		p.upstreams.Release(key, entry)
		return g3err.New(g3err.DomainClientIo, "write-body", err)
	}

	respKeepAlive := keepAliveRequested(respHead.Header, sl.Version)
	if !respKeepAlive {
		upstream.reusable = false
	}
	p.upstreams.Release(key, entry)

	p.logTask(notes, sl.Code, reused, nil)

	if !keepAliveRequested(reqHead.Header, rl.Version) || !respKeepAlive {
		return errConnectionClose
	}
	return nil
}

func (p *Pipeline) logTask(notes *escaper.TaskNotes, status int, reused bool, err error) {
	fields := g3log.NewFields().
		Add("span_id", notes.SpanId.String()).
		Add("escaper", notes.EscaperName.String()).
		Add("rsp_status", status).
		Add("reused_connection", reused)

	if err != nil {
		p.TaskLogger.Error("task complete", err, fields)
		return
	}
	p.TaskLogger.Info("task complete", fields)
}

// Shutdown drains the pipeline's upstream pool, spec §4.5 "notify_finish
// ... drops the strong reference, letting all entries drain."
func (p *Pipeline) Shutdown() {
	p.upstreams.NotifyFinish()
}
