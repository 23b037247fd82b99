package grant

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// buildExchangeRequest builds the authorization_code token request per
// spec.md §4.F. Caller must hold g.mu.
func (g *Grant) buildExchangeRequest(ctx context.Context) (*http.Request, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	g.authorizationCode.RevealString(func(v string) { form.Set("code", v) })
	form.Set("redirect_uri", g.redirectEndpoint)
	form.Set("client_id", g.clientID)
	if g.pkceMethod != PKCENone {
		g.codeVerifier.RevealString(func(v string) { form.Set("code_verifier", v) })
	}

	body := form.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.tokenEndpoint, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if g.clientSecret != "" {
		req.SetBasicAuth(g.clientID, g.clientSecret)
	}
	return req, nil
}
