// Package x509dump renders a read-only human/log-friendly summary of an
// X.509 certificate: subject, issuer, serial, public key algorithm, key
// usage, and SAN entries. Grounded on the teacher's certificates package
// (certificates/model.go's subject/issuer accessors), adapted to a single
// non-mutating dump function rather than the teacher's TLS-config-builder
// role, per SPEC_FULL.md's SUPPLEMENTED FEATURES item #2 (g3-tls-cert's
// read-only inspection subcommand).
package x509dump

import (
	"crypto/x509"
	"fmt"
	"strings"
)

// Summary is the rendered, stable field set callers format or log.
type Summary struct {
	Subject      string
	Issuer       string
	SerialHex    string
	NotBefore    string
	NotAfter     string
	KeyAlgorithm string
	KeyUsage     []string
	SANDNS       []string
	SANIP        []string
	SANEmail     []string
	SANURI       []string
	IsCA         bool
}

// Dump extracts a Summary from a parsed certificate. It never mutates or
// revalidates the certificate; callers are responsible for chain/expiry
// verification elsewhere.
func Dump(cert *x509.Certificate) Summary {
	s := Summary{
		Subject:      cert.Subject.String(),
		Issuer:       cert.Issuer.String(),
		SerialHex:    fmt.Sprintf("%x", cert.SerialNumber),
		NotBefore:    cert.NotBefore.UTC().Format("2006-01-02T15:04:05Z"),
		NotAfter:     cert.NotAfter.UTC().Format("2006-01-02T15:04:05Z"),
		KeyAlgorithm: cert.PublicKeyAlgorithm.String(),
		KeyUsage:     keyUsageStrings(cert.KeyUsage),
		SANDNS:       append([]string(nil), cert.DNSNames...),
		SANEmail:     append([]string(nil), cert.EmailAddresses...),
		IsCA:         cert.IsCA,
	}
	for _, ip := range cert.IPAddresses {
		s.SANIP = append(s.SANIP, ip.String())
	}
	for _, u := range cert.URIs {
		s.SANURI = append(s.SANURI, u.String())
	}
	return s
}

func keyUsageStrings(ku x509.KeyUsage) []string {
	names := []struct {
		bit  x509.KeyUsage
		name string
	}{
		{x509.KeyUsageDigitalSignature, "digitalSignature"},
		{x509.KeyUsageContentCommitment, "contentCommitment"},
		{x509.KeyUsageKeyEncipherment, "keyEncipherment"},
		{x509.KeyUsageDataEncipherment, "dataEncipherment"},
		{x509.KeyUsageKeyAgreement, "keyAgreement"},
		{x509.KeyUsageCertSign, "certSign"},
		{x509.KeyUsageCRLSign, "crlSign"},
		{x509.KeyUsageEncipherOnly, "encipherOnly"},
		{x509.KeyUsageDecipherOnly, "decipherOnly"},
	}

	var out []string
	for _, n := range names {
		if ku&n.bit != 0 {
			out = append(out, n.name)
		}
	}
	return out
}

// String renders a one-line summary suitable for structured log fields.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "subject=%q issuer=%q serial=%s notBefore=%s notAfter=%s keyAlg=%s ca=%t",
		s.Subject, s.Issuer, s.SerialHex, s.NotBefore, s.NotAfter, s.KeyAlgorithm, s.IsCA)
	if len(s.KeyUsage) > 0 {
		fmt.Fprintf(&b, " keyUsage=%s", strings.Join(s.KeyUsage, "|"))
	}
	if len(s.SANDNS) > 0 {
		fmt.Fprintf(&b, " sanDNS=%s", strings.Join(s.SANDNS, ","))
	}
	if len(s.SANIP) > 0 {
		fmt.Fprintf(&b, " sanIP=%s", strings.Join(s.SANIP, ","))
	}
	return b.String()
}
