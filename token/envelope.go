package token

import (
	"fmt"
	"strings"
	"time"

	"github.com/oauthcore/oauthcore/json"
)

// JSONEnvelope renders t as a plain JSON object suitable for callers who
// want to persist a token themselves rather than use the at-rest codec
// (e.g. writing it into their own encrypted config store). Per spec.md §6,
// expires_in here is an absolute Unix timestamp rather than a relative
// offset, since the envelope has no fixed "now" the way a wire response
// does.
func (t *AccessToken) JSONEnvelope() string {
	var b strings.Builder
	b.WriteString("{")
	b.WriteString(fmt.Sprintf("%q:%q", "access_token", revealAsString(t.material)))
	b.WriteString(fmt.Sprintf(",%q:%q", "token_type", "bearer"))

	if expiresAt, ok := t.ExpiresAt(); ok {
		b.WriteString(fmt.Sprintf(",%q:%d", "expires_in", expiresAt.Unix()))
	}
	if t.refresh != nil {
		b.WriteString(fmt.Sprintf(",%q:%q", "refresh_token", revealAsString(t.refresh)))
	}
	if authorizedAt, ok := t.AuthorizedAt(); ok {
		b.WriteString(fmt.Sprintf(",%q:%d", "authorized_at", authorizedAt.Unix()))
	}
	if scope := t.Scope(); len(scope) > 0 {
		b.WriteString(fmt.Sprintf(",%q:%q", "scope", strings.Join(scope, " ")))
	}
	b.WriteString("}")
	return b.String()
}

// ParseJSONEnvelope parses the format JSONEnvelope produces. It reuses
// FromTokenResponse for access_token/token_type/refresh_token/scope, then
// overrides the two fields whose meaning differs here: expires_in is read as
// an absolute Unix timestamp rather than a relative offset, and
// authorized_at is taken from the envelope rather than defaulted to "now".
func ParseJSONEnvelope(text string) (*AccessToken, error) {
	v, err := json.Parse(text)
	if err != nil {
		return nil, err
	}
	withoutExpiry, err := FromTokenResponse(stripEnvelopeExtras(v), time.Unix(0, 0).UTC())
	if err != nil {
		return nil, err
	}

	tok := withoutExpiry
	tok.expiresAt = NeverExpires
	if expiresInField, ok := v.Field("expires_in"); ok {
		sec, _ := expiresInField.Float()
		tok.expiresAt = time.Unix(int64(sec), 0).UTC()
	}
	tok.authorizedAt = time.Time{}
	if authorizedAtField, ok := v.Field("authorized_at"); ok {
		sec, _ := authorizedAtField.Float()
		tok.authorizedAt = time.Unix(int64(sec), 0).UTC()
	}
	return tok, nil
}

// stripEnvelopeExtras would drop envelope-only fields before delegating to
// FromTokenResponse's stricter field validation, but FromTokenResponse
// already ignores fields it doesn't recognize (expires_in is consumed by
// both, authorized_at by neither), so this is the identity function; it
// exists to document the intentional reuse of FromTokenResponse's
// access_token/token_type/refresh_token/scope parsing.
func stripEnvelopeExtras(v json.Value) json.Value { return v }

func revealAsString(s interface {
	RevealString(func(string))
}) string {
	var out string
	s.RevealString(func(v string) { out = v })
	return out
}
