package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"github.com/sabouaram/g3edge/internal/g3log"
)

// dohAnswer is one record in a DNS-over-HTTPS JSON response (the
// application/dns-json convention several public resolvers expose,
// e.g. Cloudflare's 1.1.1.1/dns-query and Google's dns.google).
type dohAnswer struct {
	Type int    `json:"type"`
	Data string `json:"data"`
}

type dohResponse struct {
	Status int         `json:"Status"`
	Answer []dohAnswer `json:"Answer"`
}

// dnsRecordType maps QType to the numeric DNS RR type the JSON API
// expects in its "type" query parameter (1 = A, 28 = AAAA).
func dnsRecordType(q QType) int {
	if q == QTypeAAAA {
		return 28
	}
	return 1
}

// DoHDriver resolves over DNS-over-HTTPS, standing in for a driver
// variant spec §4.4 leaves unspecified beyond "pluggable". Transport
// retries (connection resets, 5xx from the resolver) are handled by
// retryablehttp.Client rather than hand-rolled backoff, the way the
// teacher wraps outbound HTTP calls elsewhere in its stack.
type DoHDriver struct {
	Endpoint string
	client   *retryablehttp.Client
}

// NewDoHDriver builds a DoHDriver against endpoint (e.g.
// "https://cloudflare-dns.com/dns-query"), logging retries through
// logger via the hclog adapter.
func NewDoHDriver(endpoint string, logger g3log.Logger, timeout time.Duration) *DoHDriver {
	c := retryablehttp.NewClient()
	c.Logger = g3log.AsHCLog(logger)
	c.RetryMax = 2
	c.HTTPClient.Timeout = timeout
	return &DoHDriver{Endpoint: endpoint, client: c}
}

func (d *DoHDriver) Resolve(ctx context.Context, name string, qtype QType) ([]net.IP, error) {
	url := fmt.Sprintf("%s?name=%s&type=%d", d.Endpoint, name, dnsRecordType(qtype))
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/dns-json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("resolver: doh query to %s returned status %d", d.Endpoint, resp.StatusCode)
	}

	var parsed dohResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("resolver: decoding doh response: %w", err)
	}
	if parsed.Status != 0 {
		return nil, nil
	}

	var ips []net.IP
	for _, a := range parsed.Answer {
		if a.Type != dnsRecordType(qtype) {
			continue
		}
		if ip := net.ParseIP(a.Data); ip != nil {
			ips = append(ips, ip)
		}
	}
	return ips, nil
}
