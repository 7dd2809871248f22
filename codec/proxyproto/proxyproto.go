// Package proxyproto implements the PROXY protocol v1 ASCII header and the
// v2 binary header, per spec §4.1 and §6 ("Wire formats implemented
// bit-exact"), plus a HAProxy PP encoder convenience wrapper for forwarding
// the original client endpoint to an upstream that itself speaks PROXY
// protocol. The server dataplane (C10) uses the parsers in decode.go; the
// encoders have no caller outside this package's tests.
package proxyproto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
)

var (
	ErrFamilyMismatch = errors.New("proxyproto: client/server address family mismatch")
	ErrHeaderTooLong  = errors.New("proxyproto: v1 header exceeds 108 bytes")
)

// MaxV1HeaderLen is the maximum length of a v1 ASCII header, spec
// invariant §8.5.
const MaxV1HeaderLen = 108

// EncodeV1 builds the v1 ASCII header: "PROXY TCP4|TCP6 <src> <dst> <sport>
// <dport>\r\n". client and server must be the same address family.
func EncodeV1(client, server netip.AddrPort) ([]byte, error) {
	if client.Addr().Is4() != server.Addr().Is4() {
		return nil, ErrFamilyMismatch
	}

	family := "TCP6"
	if client.Addr().Is4() {
		family = "TCP4"
	}

	out := fmt.Sprintf("PROXY %s %s %s %d %d\r\n",
		family, client.Addr().String(), server.Addr().String(), client.Port(), server.Port())

	if len(out) > MaxV1HeaderLen {
		return nil, ErrHeaderTooLong
	}
	return []byte(out), nil
}

// V2Signature is the 12-byte magic every v2 header begins with.
var V2Signature = [12]byte{0x0D, 0x0A, 0x0D, 0x0A, 0x00, 0x0D, 0x0A, 0x51, 0x55, 0x49, 0x54, 0x0A}

const (
	v2VersionCmd   = 0x20 // version 2, upper nibble; cmd PROXY=1 in lower nibble
	V2CmdLocal     = 0x00
	V2CmdProxy     = 0x01
	famInetStream  = 0x11 // AF_INET  | STREAM
	famInet6Stream = 0x21 // AF_INET6 | STREAM
)

// EncodeV2 builds a v2 binary PROXY header for a TCP4/TCP6 connection:
// 12-byte signature, ver+cmd, fam+proto, 2-byte BE length, addresses. No
// TLVs are emitted by this encoder (callers needing TLVs append their own
// after the returned header and must patch the length field, see
// PatchV2Length).
func EncodeV2(cmd byte, client, server netip.AddrPort) ([]byte, error) {
	if client.Addr().Is4() != server.Addr().Is4() {
		return nil, ErrFamilyMismatch
	}

	out := make([]byte, 0, 28)
	out = append(out, V2Signature[:]...)
	out = append(out, v2VersionCmd|cmd)

	var addrLen int
	if client.Addr().Is4() {
		out = append(out, famInetStream)
		addrLen = 12 // 4+4+2+2
	} else {
		out = append(out, famInet6Stream)
		addrLen = 36 // 16+16+2+2
	}

	lenField := make([]byte, 2)
	binary.BigEndian.PutUint16(lenField, uint16(addrLen))
	out = append(out, lenField...)

	if client.Addr().Is4() {
		src := client.Addr().As4()
		dst := server.Addr().As4()
		out = append(out, src[:]...)
		out = append(out, dst[:]...)
	} else {
		src := client.Addr().As16()
		dst := server.Addr().As16()
		out = append(out, src[:]...)
		out = append(out, dst[:]...)
	}

	portBuf := make([]byte, 4)
	binary.BigEndian.PutUint16(portBuf[0:2], client.Port())
	binary.BigEndian.PutUint16(portBuf[2:4], server.Port())
	out = append(out, portBuf...)

	return out, nil
}

// EncodeHAProxyPP is a thin convenience wrapper matching the HAProxy CLI's
// "send-proxy" convention: v1 if the peer is known to only understand
// ASCII PROXY, v2 otherwise.
func EncodeHAProxyPP(useV2 bool, client, server netip.AddrPort) ([]byte, error) {
	if useV2 {
		return EncodeV2(V2CmdProxy, client, server)
	}
	return EncodeV1(client, server)
}
