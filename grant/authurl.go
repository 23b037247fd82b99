package grant

import (
	"fmt"
	"strings"

	"github.com/oauthcore/oauthcore/b64url"
)

// AuthorizationURL constructs the absolute authorization URL per spec.md
// §4.F, preserving any pre-existing query parameters on the authorization
// endpoint, and transitions the grant from fresh to awaiting_redirect. It
// may be called only once; a grant reused after this point (or after
// consumption/failure) returns an error.
func (g *Grant) AuthorizationURL() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseFresh {
		return "", fmt.Errorf("oauthcore: grant is not fresh (phase %v)", g.phase)
	}

	u := *g.authorizationEndpoint
	q := u.Query()

	q.Set("response_type", "code")
	q.Set("client_id", g.clientID)
	q.Set("redirect_uri", g.redirectEndpoint)
	if len(g.scope) > 0 {
		q.Set("scope", strings.Join(g.scope, " "))
	}

	var stateEncoded string
	g.state.Reveal(func(b []byte) { stateEncoded = b64url.Encode(b) })
	q.Set("state", stateEncoded)

	if g.pkceMethod != PKCENone {
		var verifier string
		g.codeVerifier.RevealString(func(v string) { verifier = v })
		challenge, _ := codeChallenge(g.pkceMethod, verifier)
		q.Set("code_challenge_method", g.pkceMethod.String())
		q.Set("code_challenge", challenge)
	}

	for k, v := range g.extraAuthParams {
		if q.Has(k) {
			continue
		}
		q.Set(k, v)
	}

	u.RawQuery = q.Encode()
	g.phase = PhaseAwaitingRedirect
	return u.String(), nil
}
