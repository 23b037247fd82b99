package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/oauthcore/oauthcore/internal/keyring"
	"github.com/oauthcore/oauthcore/internal/oautherr"
	"github.com/oauthcore/oauthcore/secret"
)

// atRestVersion is the framing version byte. Bump it, and branch on it in
// decodeAtRest, if the wire layout ever needs to change.
const atRestVersion = 1

// atRestSalt is the fixed, non-secret 64-byte salt spec.md §6 calls out by
// value: it is not itself sensitive (the master secret is what gives the
// derived key its entropy), but it must stay fixed across the library's
// lifetime so existing at-rest blobs keep decrypting after an upgrade.
var atRestSalt = [64]byte{
	0x83, 0xb3, 0x15, 0xa2, 0x81, 0x57, 0x01, 0x0d, 0x8c, 0x21, 0x04, 0xd9, 0x11, 0xb3, 0xa7, 0x32,
	0xba, 0xb9, 0x8c, 0x15, 0x7b, 0x64, 0x32, 0x2b, 0x2f, 0x5f, 0x0e, 0x0d, 0xe5, 0x0a, 0x91, 0xc4,
	0x46, 0x81, 0xae, 0x72, 0xf6, 0xa7, 0x01, 0x67, 0x01, 0x91, 0x66, 0x1b, 0x5e, 0x5a, 0x51, 0xaa,
	0xbe, 0xf3, 0x23, 0x2a, 0x01, 0xc5, 0x8d, 0x01, 0x24, 0x56, 0x9b, 0xbd, 0xa6, 0xa3, 0x87, 0x87,
}

const atRestHKDFInfo = "oauthcore/token-blob/v1"

const (
	flagHasRefresh      = 1 << 0
	flagHasAuthorizedAt = 1 << 1
	flagHasExpiresAt    = 1 << 2
	flagHasScope        = 1 << 3
)

// deriveAtRestKey derives the per-process AEAD key from the keyring-backed
// master secret via HKDF-SHA256, using the fixed salt above. It stands in
// for the platform data-protection primitive (Windows DPAPI, etc.) spec.md
// §6 names, using a cross-platform construction instead.
func deriveAtRestKey(master []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, master, atRestSalt[:], []byte(atRestHKDFInfo))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("oauthcore: deriving at-rest key: %w", err)
	}
	return key, nil
}

// MarshalAtRest encrypts t into the versioned, base64-encoded blob format
// described in spec.md §6: token material and refresh token are sealed
// together under a single ChaCha20-Poly1305 AEAD operation; authorized_at,
// expires_at, and scope are carried in the clear as framing metadata since
// none of them are secret.
func (t *AccessToken) MarshalAtRest(provider keyring.Provider) (string, error) {
	master, err := keyring.MasterSecret(provider)
	if err != nil {
		return "", err
	}
	key, err := deriveAtRestKey(master)
	if err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return "", fmt.Errorf("oauthcore: constructing AEAD: %w", err)
	}

	var plaintext []byte
	t.material.Reveal(func(b []byte) {
		plaintext = appendLenPrefixed(plaintext, b)
	})
	if t.refresh != nil {
		t.refresh.Reveal(func(b []byte) {
			plaintext = appendLenPrefixed(plaintext, b)
		})
	} else {
		plaintext = appendLenPrefixed(plaintext, nil)
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("oauthcore: generating nonce: %w", err)
	}
	ciphertext := aead.Seal(nil, nonce, plaintext, nil)

	var flags byte
	if t.refresh != nil {
		flags |= flagHasRefresh
	}
	if !t.authorizedAt.IsZero() {
		flags |= flagHasAuthorizedAt
	}
	if !t.expiresAt.Equal(NeverExpires) {
		flags |= flagHasExpiresAt
	}
	scope := t.Scope()
	if len(scope) > 0 {
		flags |= flagHasScope
	}

	out := make([]byte, 0, 2+len(nonce)+4+len(ciphertext)+32)
	out = append(out, atRestVersion, flags)
	out = append(out, nonce...)
	out = appendUint32LenPrefixed(out, ciphertext)
	if flags&flagHasAuthorizedAt != 0 {
		out = appendInt64(out, t.authorizedAt.Unix())
	}
	if flags&flagHasExpiresAt != 0 {
		out = appendInt64(out, t.expiresAt.Unix())
	}
	if flags&flagHasScope != 0 {
		out = appendUint16(out, uint16(len(scope)))
		for _, s := range scope {
			out = appendUint16LenPrefixedString(out, s)
		}
	}

	return base64.StdEncoding.EncodeToString(out), nil
}

// UnmarshalAtRest decrypts and parses a blob produced by MarshalAtRest.
func UnmarshalAtRest(blob string, provider keyring.Provider) (*AccessToken, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, oautherr.ParameterType("at-rest blob", "base64", "invalid base64")
	}
	r := &byteReader{b: raw}

	version, err := r.byte()
	if err != nil || version != atRestVersion {
		return nil, oautherr.ParameterType("at-rest blob version", fmt.Sprintf("%d", atRestVersion), "unrecognized")
	}
	flags, err := r.byte()
	if err != nil {
		return nil, oautherr.ParameterType("at-rest blob", "flags byte", "truncated")
	}

	master, err := keyring.MasterSecret(provider)
	if err != nil {
		return nil, err
	}
	key, err := deriveAtRestKey(master)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("oauthcore: constructing AEAD: %w", err)
	}

	nonce, err := r.take(aead.NonceSize())
	if err != nil {
		return nil, oautherr.ParameterType("at-rest blob", "nonce", "truncated")
	}
	ciphertext, err := r.uint32LenPrefixed()
	if err != nil {
		return nil, oautherr.ParameterType("at-rest blob", "ciphertext", "truncated")
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, oautherr.ParameterType("at-rest blob", "ciphertext", "decryption failed")
	}

	pr := &byteReader{b: plaintext}
	materialBytes, err := pr.uint32LenPrefixed()
	if err != nil {
		return nil, oautherr.ParameterType("at-rest blob", "material", "truncated")
	}
	refreshBytes, err := pr.uint32LenPrefixed()
	if err != nil {
		return nil, oautherr.ParameterType("at-rest blob", "refresh", "truncated")
	}

	tok := &AccessToken{
		kind:      KindBearer,
		material:  secret.New(materialBytes),
		expiresAt: NeverExpires,
		scope:     map[string]struct{}{},
	}
	if flags&flagHasRefresh != 0 && len(refreshBytes) > 0 {
		tok.refresh = secret.New(refreshBytes)
	}

	if flags&flagHasAuthorizedAt != 0 {
		sec, err := r.int64()
		if err != nil {
			return nil, oautherr.ParameterType("at-rest blob", "authorized_at", "truncated")
		}
		tok.authorizedAt = time.Unix(sec, 0).UTC()
	}
	if flags&flagHasExpiresAt != 0 {
		sec, err := r.int64()
		if err != nil {
			return nil, oautherr.ParameterType("at-rest blob", "expires_at", "truncated")
		}
		tok.expiresAt = time.Unix(sec, 0).UTC()
	}
	if flags&flagHasScope != 0 {
		count, err := r.uint16()
		if err != nil {
			return nil, oautherr.ParameterType("at-rest blob", "scope count", "truncated")
		}
		for i := 0; i < int(count); i++ {
			s, err := r.uint16LenPrefixedString()
			if err != nil {
				return nil, oautherr.ParameterType("at-rest blob", "scope entry", "truncated")
			}
			tok.scope[s] = struct{}{}
			tok.scopeExplicit = true
		}
	}

	return tok, nil
}

func appendLenPrefixed(dst []byte, b []byte) []byte {
	return appendUint32LenPrefixed(dst, b)
}

func appendUint32LenPrefixed(dst []byte, b []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	dst = append(dst, lenBuf[:]...)
	return append(dst, b...)
}

func appendUint16LenPrefixedString(dst []byte, s string) []byte {
	dst = appendUint16(dst, uint16(len(s)))
	return append(dst, s...)
}

func appendUint16(dst []byte, v uint16) []byte {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], v)
	return append(dst, buf[:]...)
}

func appendInt64(dst []byte, v int64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(v))
	return append(dst, buf[:]...)
}

type byteReader struct {
	b   []byte
	pos int
}

func (r *byteReader) byte() (byte, error) {
	if r.pos >= len(r.b) {
		return 0, io.ErrUnexpectedEOF
	}
	v := r.b[r.pos]
	r.pos++
	return v, nil
}

func (r *byteReader) take(n int) ([]byte, error) {
	if r.pos+n > len(r.b) {
		return nil, io.ErrUnexpectedEOF
	}
	v := r.b[r.pos : r.pos+n]
	r.pos += n
	return v, nil
}

func (r *byteReader) uint16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *byteReader) uint32LenPrefixed() ([]byte, error) {
	b, err := r.take(4)
	if err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(b)
	return r.take(int(n))
}

func (r *byteReader) uint16LenPrefixedString() (string, error) {
	n, err := r.uint16()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *byteReader) int64() (int64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}
