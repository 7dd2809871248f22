// Package tlsticket implements the TLS session-ticket key rotator of
// spec §4.6: a single current encryption key plus a bounded ring of
// decryption keys, swapped atomically so an in-flight handshake can
// never observe a torn ring. Grounded on the teacher's crypt package
// (AES-GCM key/nonce handling, crypto/rand generation idiom) and, for
// the swap mechanism, the same copy-on-write-via-atomic.Value pattern
// this repo's internal/g3registry uses.
package tlsticket

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"io"
	"sync/atomic"
	"time"
)

// Key is one OpenSSL-style ticket key triple: a public name used to pick
// a key out of the ring, an AES-256 key, and an HMAC-SHA256 key. This
// mirrors the three outputs OpenSSL's ticket callback (SSL_CTX_set_
// tlsext_ticket_key_evp_cb) populates, per spec §4.6.
type Key struct {
	Name      [16]byte
	AESKey    [32]byte
	HMACKey   [32]byte
	CreatedAt time.Time
}

// NewKey generates a fresh random key triple, following crypt.GenKeyByte's
// crypto/rand.Reader idiom.
func NewKey(now time.Time) (Key, error) {
	var k Key
	k.CreatedAt = now
	if _, err := io.ReadFull(rand.Reader, k.Name[:]); err != nil {
		return Key{}, err
	}
	if _, err := io.ReadFull(rand.Reader, k.AESKey[:]); err != nil {
		return Key{}, err
	}
	if _, err := io.ReadFull(rand.Reader, k.HMACKey[:]); err != nil {
		return Key{}, err
	}
	return k, nil
}

// Status is the outcome of a decrypt_init lookup, spec §4.6.
type Status int

const (
	// StatusMiss means no key in the ring matches the presented name.
	StatusMiss Status = iota
	// StatusOK means the name matched the ring's current encryption key.
	StatusOK
	// StatusOKRenew means the name matched a ring entry, but it is no
	// longer the current encryption key — the caller should issue the
	// client a freshly encrypted ticket on this connection.
	StatusOKRenew
)

// ringState is the immutable snapshot swapped atomically by Rotate.
type ringState struct {
	enc Key
	dec []Key // newest first, length <= maxRing
}

// Ring holds the current encryption key and its decryption ring behind
// an atomic.Value, so readers holding a snapshot from before a swap keep
// a fully valid, never-torn view — spec §4.6's "no tearing" invariant.
type Ring struct {
	maxRing int
	state   atomic.Value // ringState
}

// NewRing seeds a Ring with one freshly generated key as both the
// encryption key and the ring's sole decryption entry.
func NewRing(maxRing int, now time.Time) (*Ring, error) {
	k, err := NewKey(now)
	if err != nil {
		return nil, err
	}
	r := &Ring{maxRing: maxRing}
	r.state.Store(ringState{enc: k, dec: []Key{k}})
	return r, nil
}

// Seed replaces the ring's contents wholesale — used when loading a
// persisted keystore, spec §4.6/§9: "On load, keys ordered by age
// populate the decryption ring; newest becomes encryption key." keys
// must already be ordered newest-first.
func (r *Ring) Seed(keys []Key) {
	if len(keys) == 0 {
		return
	}
	dec := keys
	if len(dec) > r.maxRing {
		dec = dec[:r.maxRing]
	}
	r.state.Store(ringState{enc: dec[0], dec: dec})
}

// snapshot returns the current immutable ring state.
func (r *Ring) snapshot() ringState {
	return r.state.Load().(ringState)
}

// EncryptInit returns the key the caller should use to seal a new
// session ticket — the name, AES key, and HMAC key the OpenSSL ticket
// callback's encrypt path needs, per spec §4.6.
func (r *Ring) EncryptInit() Key {
	return r.snapshot().enc
}

// DecryptInit looks up name in the decryption ring using a
// constant-time comparison, per spec §4.6, and reports whether it is
// still the active encryption key (StatusOK) or has aged out of that
// role but remains valid for decryption (StatusOKRenew).
func (r *Ring) DecryptInit(name [16]byte) (Status, Key) {
	s := r.snapshot()
	for _, k := range s.dec {
		if hmac.Equal(k.Name[:], name[:]) {
			if hmac.Equal(s.enc.Name[:], name[:]) {
				return StatusOK, k
			}
			return StatusOKRenew, k
		}
	}
	return StatusMiss, Key{}
}

// Rotate generates a new key, atomically makes it the encryption key,
// prepends it to the decryption ring, and evicts the oldest entry
// beyond maxRing. The swap is a single atomic.Value.Store of a freshly
// built ringState, so no reader ever observes a half-updated ring.
func (r *Ring) Rotate(now time.Time) error {
	nk, err := NewKey(now)
	if err != nil {
		return err
	}

	old := r.snapshot()
	dec := make([]Key, 0, len(old.dec)+1)
	dec = append(dec, nk)
	dec = append(dec, old.dec...)
	if len(dec) > r.maxRing {
		dec = dec[:r.maxRing]
	}

	r.state.Store(ringState{enc: nk, dec: dec})
	return nil
}

// Snapshot returns the ring's keys, newest first, for persistence.
func (r *Ring) Snapshot() []Key {
	s := r.snapshot()
	out := make([]Key, len(s.dec))
	copy(out, s.dec)
	return out
}

// fingerprint is a debug/logging-safe, non-secret identifier for a key —
// never log AESKey/HMACKey directly.
func fingerprint(k Key) [32]byte {
	return sha256.Sum256(k.Name[:])
}
