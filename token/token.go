// Package token implements the immutable access token record (spec
// component D): construction from a parsed token-response JSON object,
// Bearer-header injection, equality/serialization, and the at-rest codec in
// atrest.go / envelope.go.
package token

import (
	"net/http"
	"sort"
	"time"

	"github.com/oauthcore/oauthcore/internal/oautherr"
	"github.com/oauthcore/oauthcore/json"
	"github.com/oauthcore/oauthcore/secret"
)

// Kind tags which bearer-like scheme an AccessToken presents. The core only
// constructs KindBearer today; the type exists so a MAC or DPoP variant can
// be added later without breaking the Authorize contract.
type Kind int

const (
	KindBearer Kind = iota
)

// maxReasonableLifetime bounds how far in the future expires_in may push
// the expiry before it is treated as equivalent to "never expires", per
// spec.md §9's guidance on clamping rather than overflowing.
const maxReasonableLifetime = 100 * 365 * 24 * time.Hour

// NeverExpires is the sentinel returned by ExpiresAt's ok=false case made
// concrete: a fixed, far-future instant used internally and in the at-rest
// and JSON-envelope encodings to mean "no expiry".
var NeverExpires = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// AccessToken is an immutable bearer access token plus its refresh/lifetime
// metadata. Construct with FromTokenResponse; equality and hashing consider
// only the token material.
type AccessToken struct {
	kind          Kind
	material      *secret.Secret
	refresh       *secret.Secret // nil if not refreshable
	authorizedAt  time.Time      // zero value = unknown/unset
	expiresAt     time.Time      // NeverExpires = no expiry
	scope         map[string]struct{}
	scopeExplicit bool // true iff the token response carried a scope field
}

// FromTokenResponse constructs an AccessToken from a parsed JSON object per
// spec.md §4.D: access_token (required string), token_type (required,
// case-insensitive, only "bearer" supported), expires_in (optional
// non-negative integer seconds, relative to now), refresh_token (optional
// string), scope (optional whitespace-separated string).
func FromTokenResponse(v json.Value, now time.Time) (*AccessToken, error) {
	if v.Kind() != json.KindObject {
		return nil, oautherr.ParameterType("token response", "object", v.Kind().String())
	}

	accessTokenField, ok := v.Field("access_token")
	if !ok {
		return nil, oautherr.ParameterMissing("access_token")
	}
	accessTokenStr, ok := accessTokenField.String()
	if !ok {
		return nil, oautherr.ParameterType("access_token", "string", accessTokenField.Kind().String())
	}
	if accessTokenStr == "" {
		return nil, oautherr.ParameterType("access_token", "non-empty string", "empty string")
	}

	tokenTypeField, ok := v.Field("token_type")
	if !ok {
		return nil, oautherr.ParameterMissing("token_type")
	}
	tokenTypeStr, ok := tokenTypeField.String()
	if !ok {
		return nil, oautherr.ParameterType("token_type", "string", tokenTypeField.Kind().String())
	}
	if !equalFoldASCII(tokenTypeStr, "bearer") {
		return nil, oautherr.UnsupportedTokenType(tokenTypeStr)
	}

	expiresAt := NeverExpires
	if expiresInField, ok := v.Field("expires_in"); ok {
		seconds, ferr := numberSeconds(expiresInField)
		if ferr != nil {
			return nil, ferr
		}
		expiresAt = computeExpiry(now, seconds)
	}

	var refresh *secret.Secret
	if refreshField, ok := v.Field("refresh_token"); ok {
		refreshStr, ok := refreshField.String()
		if !ok {
			return nil, oautherr.ParameterType("refresh_token", "string", refreshField.Kind().String())
		}
		refresh = secret.FromString(refreshStr)
	}

	scope := map[string]struct{}{}
	scopeExplicit := false
	if scopeField, ok := v.Field("scope"); ok {
		scopeExplicit = true
		scopeStr, ok := scopeField.String()
		if !ok {
			return nil, oautherr.ParameterType("scope", "string", scopeField.Kind().String())
		}
		for _, s := range splitASCIIWhitespace(scopeStr) {
			scope[s] = struct{}{}
		}
	}

	return &AccessToken{
		kind:          KindBearer,
		material:      secret.FromString(accessTokenStr),
		refresh:       refresh,
		authorizedAt:  now,
		expiresAt:     expiresAt,
		scope:         scope,
		scopeExplicit: scopeExplicit,
	}, nil
}

// WithScope returns a copy of t with its scope replaced. It exists so the
// token endpoint client (§4.E) can adopt the caller's expected scope when
// the AS's response omitted the scope field; it is not for general mutation
// since AccessToken is otherwise immutable post-construction.
func (t *AccessToken) WithScope(scope []string) *AccessToken {
	cp := *t
	cp.scope = map[string]struct{}{}
	for _, s := range scope {
		cp.scope[s] = struct{}{}
	}
	return &cp
}

// WithRefresh returns a copy of t carrying refresh as its refresh token. It
// exists so the token endpoint client (§4.E) can carry the prior refresh
// token forward when a refresh response omits one (refresh tokens are not
// required to rotate).
func (t *AccessToken) WithRefresh(refresh *secret.Secret) *AccessToken {
	cp := *t
	cp.refresh = refresh
	return &cp
}

// ScopeExplicit reports whether the token response this token was built
// from carried an explicit scope field.
func (t *AccessToken) ScopeExplicit() bool { return t.scopeExplicit }

// Kind reports the token scheme.
func (t *AccessToken) Kind() Kind { return t.kind }

// Material exposes the raw bearer token's Secret holder.
func (t *AccessToken) Material() *secret.Secret { return t.material }

// Refresh exposes the refresh token's Secret holder, or nil if none.
func (t *AccessToken) Refresh() *secret.Secret { return t.refresh }

// IsRefreshable reports whether a refresh token is present.
func (t *AccessToken) IsRefreshable() bool { return t.refresh != nil }

// AuthorizedAt returns the initial-authorization timestamp and whether it is
// known (false ⇒ "unknown", the sentinel-min case).
func (t *AccessToken) AuthorizedAt() (time.Time, bool) {
	if t.authorizedAt.IsZero() {
		return time.Time{}, false
	}
	return t.authorizedAt, true
}

// ExpiresAt returns the expiry timestamp and whether one is set (false ⇒
// "never expires").
func (t *AccessToken) ExpiresAt() (time.Time, bool) {
	if t.expiresAt.Equal(NeverExpires) {
		return time.Time{}, false
	}
	return t.expiresAt, true
}

// IsExpired reports whether the token has expired as of now.
func (t *AccessToken) IsExpired(now time.Time) bool {
	if t.expiresAt.Equal(NeverExpires) {
		return false
	}
	return now.After(t.expiresAt)
}

// Scope returns the token's scope identifiers in sorted order.
func (t *AccessToken) Scope() []string {
	out := make([]string, 0, len(t.scope))
	for s := range t.scope {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// HasScope reports whether identifier is in the token's scope set.
func (t *AccessToken) HasScope(identifier string) bool {
	_, ok := t.scope[identifier]
	return ok
}

// Equal reports whether two access tokens compare equal, which per
// spec.md §3 considers only the token material.
func (t *AccessToken) Equal(other *AccessToken) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.material.Equal(other.material)
}

// Authorize attaches the Bearer authorization header to req, per RFC 6750.
// This is the sole method of the "attach authorization to outgoing
// request" contract spec.md §9 describes for the token-kind variant.
func (t *AccessToken) Authorize(req *http.Request) {
	t.material.RevealString(func(v string) {
		req.Header.Set("Authorization", "Bearer "+v)
	})
}

// Destroy zeroizes the token's material/refresh secrets. Callers should
// call this once a token is no longer needed rather than waiting on GC.
func (t *AccessToken) Destroy() {
	t.material.Destroy()
	if t.refresh != nil {
		t.refresh.Destroy()
	}
}

func computeExpiry(now time.Time, seconds float64) time.Time {
	if seconds < 0 {
		seconds = 0
	}
	if seconds > maxReasonableLifetime.Seconds() {
		return NeverExpires
	}
	d := time.Duration(seconds * float64(time.Second))
	t := now.Add(d)
	if t.Before(now) || t.After(NeverExpires) {
		return NeverExpires
	}
	return t
}

func numberSeconds(v json.Value) (float64, error) {
	if f, ok := v.Float(); ok {
		return f, nil
	}
	return 0, oautherr.ParameterType("expires_in", "number", v.Kind().String())
}

func equalFoldASCII(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

func splitASCIIWhitespace(s string) []string {
	var out []string
	start := -1
	for i := 0; i < len(s); i++ {
		isSpace := s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r'
		if isSpace {
			if start >= 0 {
				out = append(out, s[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		out = append(out, s[start:])
	}
	return out
}
