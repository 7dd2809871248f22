package server

import (
	"bufio"
	"errors"

	"github.com/sabouaram/g3edge/inspector"
)

// ErrDispatchTimeout is returned by Detect when the connection never
// produces enough bytes to resolve a protocol before maxProbe is hit.
var ErrDispatchTimeout = errors.New("server: protocol detection exhausted probe budget")

// maxProbeBytes bounds how much of a connection's lead-in Detect will
// buffer while narrowing candidates, so a client that never completes a
// recognizable preamble can't pin unbounded memory to one Inspector.
const maxProbeBytes = 64 * 1024

// Detect runs spec §4.10 step 3's "intelli (auto-detect)" dispatch: it
// peeks br for a recognizable protocol preamble without consuming bytes
// the eventual handler still needs to see, returning the Mode to route
// to. Non-intelli servers skip this and use their configured Mode
// directly.
func Detect(br *bufio.Reader) (Mode, error) {
	insp := inspector.New()
	probed := 0

	for probed < maxProbeBytes {
		peek, err := br.Peek(probed + 256)
		if len(peek) <= probed {
			// No new bytes: either br's buffer is full or the read failed.
			if err != nil && err != bufio.ErrBufferFull {
				return ModeIntelli, err
			}
			return ModeIntelli, ErrDispatchTimeout
		}

		chunk := peek[probed:]
		probed = len(peek)

		proto, perr := insp.Push(chunk)
		if perr == nil {
			return modeOf(proto), nil
		}

		var nmd *inspector.NeedMoreData
		if errors.As(perr, &nmd) {
			continue
		}

		// ErrNoMatch: nothing recognized, fall back to a raw TCP stream.
		return ModeTCPStream, nil
	}

	return ModeIntelli, ErrDispatchTimeout
}

func modeOf(p inspector.Protocol) Mode {
	switch p {
	case inspector.TLS:
		return ModeSNI
	case inspector.HTTP1, inspector.HTTP2:
		return ModeHTTPForward
	default:
		return ModeTCPStream
	}
}
