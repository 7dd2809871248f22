package escaper

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/sabouaram/g3edge/internal/stat"
	"github.com/sabouaram/g3edge/resolver"
)

// Selector picks a child Escaper by whatever routing rule a Route
// variant encodes; each Route* type below just wraps a Selector with
// the TCPOpener/UDPConnector capability pass-through.
type Selector interface {
	Select(ctx context.Context, notes *TaskNotes, host string) (Escaper, error)
}

// routed is shared by every Route* variant: it resolves a child via its
// Selector then forwards the capability call, matching the teacher's
// router package's dispatch-then-delegate shape.
type routed struct {
	base
	sel Selector
}

func (r *routed) child(ctx context.Context, notes *TaskNotes, host string) (Escaper, error) {
	e, err := r.sel.Select(ctx, notes, host)
	if err != nil {
		return nil, err
	}
	notes.EscaperName = e.Name()
	return e, nil
}

func (r *routed) OpenTCP(ctx context.Context, notes *TaskNotes, host string, port int) (net.Conn, error) {
	e, err := r.child(ctx, notes, host)
	if err != nil {
		return nil, err
	}
	opener, ok := e.(TCPOpener)
	if !ok {
		return nil, fmt.Errorf("escaper: route target %q does not support TCP", e.Name())
	}
	return opener.OpenTCP(ctx, notes, host, port)
}

func (r *routed) OpenUDPConnected(ctx context.Context, notes *TaskNotes, host string, port int) (net.Conn, error) {
	e, err := r.child(ctx, notes, host)
	if err != nil {
		return nil, err
	}
	opener, ok := e.(UDPConnector)
	if !ok {
		return nil, fmt.Errorf("escaper: route target %q does not support UDP", e.Name())
	}
	return opener.OpenUDPConnected(ctx, notes, host, port)
}

func (r *routed) SupportsHTTPForward() bool {
	return true
}

// RouteUpstream always resolves to a single fixed child, used as the
// leaf of a bigger route tree or standalone to name-alias an escaper.
type RouteUpstream struct {
	routed
}

type fixedSelector struct{ e Escaper }

func (f fixedSelector) Select(ctx context.Context, notes *TaskNotes, host string) (Escaper, error) {
	return f.e, nil
}

func NewRouteUpstream(name stat.NodeName, target Escaper) *RouteUpstream {
	return &RouteUpstream{routed{base: newBase(name), sel: fixedSelector{target}}}
}

// RouteFailover races Primary and Standby per request exactly the way
// resolver.FailOverDriver races its primary/standby drivers (see
// resolver/failover.go's Resolve/raceStandby): Primary is dialed
// immediately; if it hasn't produced a connection within FallbackDelay,
// or it errors, Standby is dialed in parallel and whichever answers
// first wins. A primary that merely hangs without ever erroring still
// loses the race once the delay elapses, unlike a sticky switch that
// only flips after a caller reports a failed dial.
type RouteFailover struct {
	base
	Primary, Standby Escaper
	FallbackDelay    time.Duration
}

func NewRouteFailover(name stat.NodeName, primary, standby Escaper, fallbackDelay time.Duration) *RouteFailover {
	return &RouteFailover{base: newBase(name), Primary: primary, Standby: standby, FallbackDelay: fallbackDelay}
}

func (r *RouteFailover) delay() time.Duration {
	if r.FallbackDelay <= 0 {
		return resolver.DefaultFallbackDelay
	}
	return r.FallbackDelay
}

func (r *RouteFailover) SupportsHTTPForward() bool { return true }

// raceSide identifies which of Primary/Standby produced the winning
// connection, so the caller knows which scratch TaskNotes to merge
// back and which child's name to stamp onto notes.EscaperName.
type raceSide int

const (
	sidePrimary raceSide = iota
	sideStandby
)

// openResult is one racer's outcome. TaskNotes isn't safe for
// concurrent mutation from two racing escapers (MarkConnecting/
// MarkConnected write plain fields), so each side stamps its own copy
// and only the winner's copy is merged back into the caller's real
// notes.
type openResult struct {
	conn net.Conn
	err  error
}

func scratchNotes(notes *TaskNotes) *TaskNotes {
	cp := *notes
	return &cp
}

func mergeWinner(notes, won *TaskNotes, winnerName stat.NodeName) {
	notes.ConnectStart = won.ConnectStart
	notes.ConnectDone = won.ConnectDone
	notes.UpstreamAddr = won.UpstreamAddr
	notes.EscaperName = winnerName
}

func closeLoser(ch <-chan openResult) {
	if r := <-ch; r.err == nil && r.conn != nil {
		r.conn.Close()
	}
}

// raceOpen runs primaryOpen immediately; if it hasn't produced a
// connection within delay or it errors, standbyOpen is started in
// parallel and the first successful result wins. The losing side's
// eventual connection (if any) is closed in the background instead of
// leaked. Mirrors resolver.FailOverDriver.Resolve/raceStandby's
// delay-then-race shape, with "resolve an IP" replaced by "open a
// connection".
func raceOpen(ctx context.Context, delay time.Duration, primaryOpen, standbyOpen func() (net.Conn, error)) (net.Conn, raceSide, error) {
	primaryCh := make(chan openResult, 1)
	go func() {
		c, err := primaryOpen()
		primaryCh <- openResult{conn: c, err: err}
	}()

	var primaryDone *openResult
	select {
	case r := <-primaryCh:
		if r.err == nil {
			return r.conn, sidePrimary, nil
		}
		primaryDone = &r
	case <-time.After(delay):
	case <-ctx.Done():
		return nil, sidePrimary, ctx.Err()
	}

	standbyCh := make(chan openResult, 1)
	go func() {
		c, err := standbyOpen()
		standbyCh <- openResult{conn: c, err: err}
	}()

	firstErr := error(nil)
	if primaryDone != nil {
		firstErr = primaryDone.err
	}

	for {
		select {
		case r := <-standbyCh:
			if r.err == nil {
				if primaryDone == nil {
					go closeLoser(primaryCh)
				}
				return r.conn, sideStandby, nil
			}
			if firstErr == nil {
				firstErr = r.err
			}
			if primaryDone != nil {
				return nil, sideStandby, firstErr
			}
			// Primary is still pending: wait for it alone.
			standbyCh = nil
		case r := <-primaryCh:
			if r.err == nil {
				if standbyCh != nil {
					go closeLoser(standbyCh)
				}
				return r.conn, sidePrimary, nil
			}
			primaryDone = &r
			if firstErr == nil {
				firstErr = r.err
			}
			if standbyCh == nil {
				return nil, sidePrimary, firstErr
			}
		case <-ctx.Done():
			return nil, sidePrimary, ctx.Err()
		}
	}
}

func (r *RouteFailover) OpenTCP(ctx context.Context, notes *TaskNotes, host string, port int) (net.Conn, error) {
	primaryOpener, ok := r.Primary.(TCPOpener)
	if !ok {
		return nil, fmt.Errorf("escaper: route failover primary %q does not support TCP", r.Primary.Name())
	}
	standbyOpener, ok := r.Standby.(TCPOpener)
	if !ok {
		return nil, fmt.Errorf("escaper: route failover standby %q does not support TCP", r.Standby.Name())
	}

	primaryNotes := scratchNotes(notes)
	standbyNotes := scratchNotes(notes)

	conn, side, err := raceOpen(ctx, r.delay(),
		func() (net.Conn, error) { return primaryOpener.OpenTCP(ctx, primaryNotes, host, port) },
		func() (net.Conn, error) { return standbyOpener.OpenTCP(ctx, standbyNotes, host, port) },
	)
	if err != nil {
		return nil, err
	}
	if side == sideStandby {
		mergeWinner(notes, standbyNotes, r.Standby.Name())
	} else {
		mergeWinner(notes, primaryNotes, r.Primary.Name())
	}
	return conn, nil
}

func (r *RouteFailover) OpenUDPConnected(ctx context.Context, notes *TaskNotes, host string, port int) (net.Conn, error) {
	primaryOpener, ok := r.Primary.(UDPConnector)
	if !ok {
		return nil, fmt.Errorf("escaper: route failover primary %q does not support UDP", r.Primary.Name())
	}
	standbyOpener, ok := r.Standby.(UDPConnector)
	if !ok {
		return nil, fmt.Errorf("escaper: route failover standby %q does not support UDP", r.Standby.Name())
	}

	primaryNotes := scratchNotes(notes)
	standbyNotes := scratchNotes(notes)

	conn, side, err := raceOpen(ctx, r.delay(),
		func() (net.Conn, error) { return primaryOpener.OpenUDPConnected(ctx, primaryNotes, host, port) },
		func() (net.Conn, error) { return standbyOpener.OpenUDPConnected(ctx, standbyNotes, host, port) },
	)
	if err != nil {
		return nil, err
	}
	if side == sideStandby {
		mergeWinner(notes, standbyNotes, r.Standby.Name())
	} else {
		mergeWinner(notes, primaryNotes, r.Primary.Name())
	}
	return conn, nil
}

// RouteMapping picks a child by exact-match on the request host, spec
// §3's RouteMapping variant (host -> escaper table).
type RouteMapping struct {
	routed
}

type mappingSelector struct {
	table   map[string]Escaper
	fallback Escaper
}

func (m *mappingSelector) Select(ctx context.Context, notes *TaskNotes, host string) (Escaper, error) {
	if e, ok := m.table[host]; ok {
		return e, nil
	}
	if m.fallback != nil {
		return m.fallback, nil
	}
	return nil, fmt.Errorf("escaper: no route mapping for host %q", host)
}

func NewRouteMapping(name stat.NodeName, table map[string]Escaper, fallback Escaper) *RouteMapping {
	return &RouteMapping{routed{base: newBase(name), sel: &mappingSelector{table: table, fallback: fallback}}}
}

// RouteQuery calls an external Resolver func per request to choose the
// child, spec §3's RouteQuery variant (e.g. a policy service lookup).
type RouteQuery struct {
	routed
}

type QueryFunc func(ctx context.Context, host string) (Escaper, error)

type querySelector struct{ f QueryFunc }

func (q querySelector) Select(ctx context.Context, notes *TaskNotes, host string) (Escaper, error) {
	return q.f(ctx, host)
}

func NewRouteQuery(name stat.NodeName, f QueryFunc) *RouteQuery {
	return &RouteQuery{routed{base: newBase(name), sel: querySelector{f}}}
}

// RouteResolved routes on the resolved IP's membership in a set of
// CIDR blocks rather than the literal hostname, spec §3's RouteResolved
// variant.
type RouteResolved struct {
	routed
}

type resolvedSelector struct {
	resolve  func(ctx context.Context, host string) (net.IP, error)
	subnets  []*net.IPNet
	matched  Escaper
	fallback Escaper
}

func (r *resolvedSelector) Select(ctx context.Context, notes *TaskNotes, host string) (Escaper, error) {
	ip, err := r.resolve(ctx, host)
	if err != nil {
		return nil, err
	}
	for _, n := range r.subnets {
		if n.Contains(ip) {
			return r.matched, nil
		}
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("escaper: no route for resolved address %s", ip)
}

func NewRouteResolved(name stat.NodeName, resolve func(context.Context, string) (net.IP, error), subnets []*net.IPNet, matched, fallback Escaper) *RouteResolved {
	return &RouteResolved{routed{base: newBase(name), sel: &resolvedSelector{resolve: resolve, subnets: subnets, matched: matched, fallback: fallback}}}
}

// RouteGeoIp routes by a country-code lookup, spec §3's RouteGeoIp
// variant; the lookup itself is injected so callers can back it with
// whichever MaxMind/GeoIP source they have wired (kept abstract here,
// same as the teacher's ip2country wraps an injected resolver).
type RouteGeoIp struct {
	routed
}

type GeoLookup func(ip net.IP) (country string, err error)

type geoSelector struct {
	resolve func(ctx context.Context, host string) (net.IP, error)
	lookup  GeoLookup
	table   map[string]Escaper
	fallback Escaper
}

func (g *geoSelector) Select(ctx context.Context, notes *TaskNotes, host string) (Escaper, error) {
	ip, err := g.resolve(ctx, host)
	if err != nil {
		return nil, err
	}
	country, err := g.lookup(ip)
	if err != nil {
		if g.fallback != nil {
			return g.fallback, nil
		}
		return nil, err
	}
	if e, ok := g.table[strings.ToUpper(country)]; ok {
		return e, nil
	}
	if g.fallback != nil {
		return g.fallback, nil
	}
	return nil, fmt.Errorf("escaper: no route for country %q", country)
}

func NewRouteGeoIp(name stat.NodeName, resolve func(context.Context, string) (net.IP, error), lookup GeoLookup, table map[string]Escaper, fallback Escaper) *RouteGeoIp {
	return &RouteGeoIp{routed{base: newBase(name), sel: &geoSelector{resolve: resolve, lookup: lookup, table: table, fallback: fallback}}}
}

// RouteClient routes by the connecting client's address, spec §3's
// RouteClient variant (e.g. per-tenant egress separation by listener
// or source subnet).
type RouteClient struct {
	routed
}

type clientSelector struct {
	table    map[string]Escaper
	fallback Escaper
}

func (c *clientSelector) Select(ctx context.Context, notes *TaskNotes, host string) (Escaper, error) {
	if notes.ClientAddr == nil {
		if c.fallback != nil {
			return c.fallback, nil
		}
		return nil, fmt.Errorf("escaper: route client has no client address")
	}
	ip, _, err := net.SplitHostPort(notes.ClientAddr.String())
	if err != nil {
		ip = notes.ClientAddr.String()
	}
	if e, ok := c.table[ip]; ok {
		return e, nil
	}
	if c.fallback != nil {
		return c.fallback, nil
	}
	return nil, fmt.Errorf("escaper: no route for client %q", ip)
}

func NewRouteClient(name stat.NodeName, table map[string]Escaper, fallback Escaper) *RouteClient {
	return &RouteClient{routed{base: newBase(name), sel: &clientSelector{table: table, fallback: fallback}}}
}

// RouteSelect is the generic form: callers supply their own Selector,
// covering routing rules none of the named variants above fit.
type RouteSelect struct {
	routed
}

func NewRouteSelect(name stat.NodeName, sel Selector) *RouteSelect {
	return &RouteSelect{routed{base: newBase(name), sel: sel}}
}
