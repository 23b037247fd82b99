// Package secret holds short-lived sensitive byte strings (access/refresh
// token material, the PKCE verifier, the anti-CSRF state) with defensive
// zeroization and constant-time comparison. See the package's Secret type.
package secret

import (
	"crypto/subtle"
	"runtime"
	"sync"
)

// Secret is an immutable, zeroizing holder for sensitive byte content. The
// zero value is not usable; construct with New. A Secret is safe for
// concurrent reads. It is intentionally not exported as cloneable by value
// (it contains a mutex and a slice) — callers who need a second independent
// copy must call Clone explicitly.
type Secret struct {
	mu   sync.RWMutex
	data []byte
	zero bool
}

// New copies b into protected storage. The caller's b is not retained and
// may be reused/overwritten by the caller immediately after New returns.
func New(b []byte) *Secret {
	cp := make([]byte, len(b))
	copy(cp, b)
	s := &Secret{data: cp}
	runtime.SetFinalizer(s, (*Secret).Destroy)
	return s
}

// FromString is a convenience constructor for textual secrets (tokens,
// state, verifiers are all ASCII/base64url text on the wire).
func FromString(s string) *Secret {
	return New([]byte(s))
}

// Reveal exposes the secret's bytes to fn through a scratch copy that is
// zeroized before Reveal returns, regardless of whether fn panics.
func (s *Secret) Reveal(fn func(b []byte)) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	scratch := make([]byte, len(s.data))
	copy(scratch, s.data)
	defer zeroBytes(scratch)

	fn(scratch)
}

// RevealString is Reveal specialized to the common case of textual secrets.
func (s *Secret) RevealString(fn func(v string)) {
	s.Reveal(func(b []byte) { fn(string(b)) })
}

// Len reports the secret's byte length without revealing its content.
func (s *Secret) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Equal performs a constant-time comparison of the two secrets' content.
// Secrets of different length are unequal (the length comparison itself is
// not constant-time, matching common practice: length is not treated as
// sensitive here, only content).
func (s *Secret) Equal(other *Secret) bool {
	if s == nil || other == nil {
		return s == other
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	other.mu.RLock()
	defer other.mu.RUnlock()

	if len(s.data) != len(other.data) {
		return false
	}
	return subtle.ConstantTimeCompare(s.data, other.data) == 1
}

// EqualBytes constant-time compares the secret's content against a plain
// byte slice (used for e.g. comparing a decoded redirect "state" value).
func (s *Secret) EqualBytes(b []byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.data) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(s.data, b) == 1
}

// Clone makes an explicit, independent copy.
func (s *Secret) Clone() *Secret {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return New(s.data)
}

// Destroy zeroizes the secret's storage. It is idempotent and safe to call
// multiple times; it also runs automatically as a finalizer, but callers
// holding token material should call it explicitly as soon as the secret is
// no longer needed rather than waiting on GC.
func (s *Secret) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.zero {
		return
	}
	zeroBytes(s.data)
	s.zero = true
}

// Redacted returns a fixed placeholder safe for logging; it never reveals
// length or content.
func (s *Secret) Redacted() string {
	return "[redacted]"
}

// String implements fmt.Stringer with the same redaction as Redacted, so a
// Secret accidentally passed to a logger or %v formatter never leaks.
func (s *Secret) String() string {
	return s.Redacted()
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
