package icap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/sabouaram/g3edge/pool"
)

// Dialer opens the transport to an ICAP service. The default is plain
// TCP or TLS depending on ServiceConfig.TLS; tests substitute an
// in-memory pipe.
type Dialer func(ctx context.Context, svc ServiceConfig) (net.Conn, error)

func defaultDialer(ctx context.Context, svc ServiceConfig) (net.Conn, error) {
	d := net.Dialer{Timeout: svc.Timeout}
	conn, err := d.DialContext(ctx, "tcp", svc.Addr)
	if err != nil {
		return nil, err
	}
	if svc.TLS {
		tconn := tls.Client(conn, &tls.Config{ServerName: hostOf(svc.Addr)})
		if err := tconn.HandshakeContext(ctx); err != nil {
			conn.Close()
			return nil, err
		}
		return tconn, nil
	}
	return conn, nil
}

func hostOf(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

func serviceKey(svc ServiceConfig) string { return svc.Addr + svc.URI }

// Client is the per-process ICAP client: one connection-pool core (C5)
// keyed by service address plus URI (serviceKey), plus a capability
// cache keyed the same way
// so OPTIONS is only sent once per service per spec §4.7 step 1. A pool
// miss dials fresh and immediately runs the OPTIONS handshake before the
// session is handed to the caller, matching spec §4.7 step 2: "misses
// cause a new TCP/TLS dial plus a fresh OPTIONS handshake."
type Client struct {
	dial Dialer
	pool *pool.Pool[string, *Session]

	mu       sync.Mutex
	services map[string]ServiceConfig
	caps     map[string]*Capabilities
}

// NewClient builds a Client with the given per-service build concurrency
// cap (passed straight through to the underlying pool.Pool).
func NewClient(poolSize int) *Client {
	c := &Client{
		dial:     defaultDialer,
		services: map[string]ServiceConfig{},
		caps:     map[string]*Capabilities{},
	}
	c.pool = pool.New[string, *Session](poolSize, c.factory, c.peek)
	return c
}

// factory is pool.Pool's connection builder: it looks up which
// ServiceConfig the checkout key names (registered by checkout below),
// dials it, and performs the OPTIONS handshake.
func (c *Client) factory(ctx context.Context, key string) (*Session, error) {
	c.mu.Lock()
	svc, ok := c.services[key]
	c.mu.Unlock()
	if !ok {
		return nil, &Error{Reason: ReasonProtocolError, Detail: "icap: unknown service key " + key}
	}

	conn, err := c.dial(ctx, svc)
	if err != nil {
		return nil, &Error{Reason: ReasonProtocolError, Detail: "dial: " + err.Error()}
	}
	sess := newSession(conn, svc)

	caps, err := c.sendOptions(ctx, sess)
	if err != nil {
		conn.Close()
		return nil, err
	}
	sess.caps = caps
	if !caps.supports(MethodOptions) {
		// Some services omit OPTIONS from their own Methods list; that's
		// fine, OPTIONS already succeeded to get here.
	}
	if caps.MaxConnections == 1 {
		sess.reusable = false
	}

	c.mu.Lock()
	c.caps[key] = caps
	c.mu.Unlock()

	return sess, nil
}

func (c *Client) peek(s *Session) error {
	_, err := s.reader.Peek(1)
	return err
}

// checkout registers svc under its key (so factory can find it on a
// pool miss) and fetches a session for it.
func (c *Client) checkout(ctx context.Context, svc ServiceConfig) (*pool.Entry[*Session], error) {
	key := serviceKey(svc)
	c.mu.Lock()
	c.services[key] = svc
	c.mu.Unlock()
	return c.pool.Fetch(ctx, key)
}

// release returns e to the pool if its session reports itself reusable,
// spec §4.7's "keep the ICAP connection" on 204 and on a clean
// keep-alive-terminated 200 exchange.
func (c *Client) release(svc ServiceConfig, e *pool.Entry[*Session]) {
	c.pool.Release(serviceKey(svc), e)
}

// Shutdown drains the underlying connection pool, spec §4.5
// notify_finish.
func (c *Client) Shutdown() { c.pool.NotifyFinish() }

// sendOptions performs the OPTIONS handshake and parses the advertised
// capabilities, spec §4.7 step 1.
func (c *Client) sendOptions(ctx context.Context, sess *Session) (*Capabilities, error) {
	if d, ok := ctx.Deadline(); ok {
		sess.conn.SetDeadline(d)
	}

	req := fmt.Sprintf("OPTIONS icap://%s%s ICAP/1.0\r\nHost: %s\r\n\r\n", sess.service.Addr, sess.service.URI, sess.service.Addr)
	if _, err := sess.conn.Write([]byte(req)); err != nil {
		return nil, &Error{Reason: ReasonProtocolError, Detail: "writing OPTIONS: " + err.Error()}
	}

	resp, err := readResponse(sess.reader)
	if err != nil {
		return nil, err
	}
	if classify(resp.StatusCode) == classError {
		return nil, classifyError(resp)
	}

	return parseCapabilities(resp), nil
}

func parseCapabilities(resp *RawResponse) *Capabilities {
	caps := &Capabilities{PreviewBytes: -1, FetchedAt: time.Now()}

	for _, m := range splitCSV(resp.Header.Get("Methods")) {
		caps.Methods = append(caps.Methods, Method(m))
	}
	if allow := resp.Header.Get("Allow"); allow != "" {
		for _, v := range splitCSV(allow) {
			if v == "204" {
				caps.Allow204 = true
			}
		}
	}
	if p := resp.Header.Get("Preview"); p != "" {
		fmt.Sscanf(p, "%d", &caps.PreviewBytes)
	}
	if mc := resp.Header.Get("Max-Connections"); mc != "" {
		fmt.Sscanf(mc, "%d", &caps.MaxConnections)
	}
	if resp.Header.Get("Connection") == "close" {
		caps.MaxConnections = 1
	}
	return caps
}

func splitCSV(v string) []string {
	var out []string
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == ',' {
			tok := trimSpace(v[start:i])
			if tok != "" {
				out = append(out, tok)
			}
			start = i + 1
		}
	}
	return out
}

func trimSpace(s string) string {
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t') {
		s = s[:len(s)-1]
	}
	return s
}
