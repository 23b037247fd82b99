// Package tokenclient implements the token endpoint client (spec
// component E): issuing the authorization-code exchange request the grant
// package builds, and performing refresh-token requests, against a
// caller-supplied token endpoint.
package tokenclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oauthcore/oauthcore/internal/oautherr"
	"github.com/oauthcore/oauthcore/json"
	"github.com/oauthcore/oauthcore/secret"
	"github.com/oauthcore/oauthcore/token"
)

// userAgent identifies this library on outgoing requests, per spec.md §6's
// "a User-Agent identifying the library and version SHOULD be sent".
const userAgent = "oauthcore/1.x"

// maxErrorBodyBytes bounds how much of a non-2xx response body is captured
// into a Transport error; AS error pages are not expected to be large, and
// this avoids an adversarial or misconfigured endpoint exhausting memory.
const maxErrorBodyBytes = 1 << 20

// Credentials is the optional client authentication attached to a token
// request as HTTP Basic, per spec.md §4.E/§4.F.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Client issues requests against a token endpoint. The zero value is not
// usable; construct with New.
type Client struct {
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the *http.Client used to issue requests. Useful
// for tests (pointing at an httptest.Server) and for callers who need a
// custom transport (proxies, TLS pinning).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New constructs a Client with sane request timeouts.
func New(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FromAuthorizationResponse issues req (already built by the grant package's
// Exchange operation) and constructs the resulting access token, per
// spec.md §4.E. If the response omits scope but expectedScope is non-empty,
// the token adopts expectedScope.
func (c *Client) FromAuthorizationResponse(
	ctx context.Context,
	req *http.Request,
	expectedScope []string,
) (*token.AccessToken, error) {
	return c.send(ctx, req, expectedScope)
}

// Refresh performs the refresh_token grant against tokenEndpoint, per
// spec.md §4.E. If the response omits refresh_token, the supplied
// refreshToken is carried forward onto the returned access token (refresh
// tokens are not required to rotate).
func (c *Client) Refresh(
	ctx context.Context,
	tokenEndpoint string,
	refreshToken *secret.Secret,
	scope []string,
	creds *Credentials,
) (*token.AccessToken, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	refreshToken.RevealString(func(v string) { form.Set("refresh_token", v) })
	if len(scope) > 0 {
		form.Set("scope", strings.Join(scope, " "))
	}

	req, err := newFormRequest(ctx, http.MethodPost, tokenEndpoint, form, creds)
	if err != nil {
		return nil, err
	}

	tok, err := c.send(ctx, req, scope)
	if err != nil {
		return nil, err
	}
	if !tok.IsRefreshable() {
		tok = tok.WithRefresh(refreshToken)
	}
	return tok, nil
}

func newFormRequest(
	ctx context.Context,
	method, rawURL string,
	form url.Values,
	creds *Credentials,
) (*http.Request, error) {
	body := form.Encode()
	req, err := http.NewRequestWithContext(ctx, method, rawURL, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("oauthcore: building token request: %w", err)
	}
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(body)), nil
	}
	applyCommonHeaders(req, creds)
	return req, nil
}

func applyCommonHeaders(req *http.Request, creds *Credentials) {
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if creds != nil {
		req.SetBasicAuth(creds.ClientID, creds.ClientSecret)
	}
}

// send issues req, honoring ctx cancellation at both the round trip and the
// body read (spec.md §5 suspension point (a)), and dispatches on the
// response status.
func (c *Client) send(ctx context.Context, req *http.Request, expectedScope []string) (*token.AccessToken, error) {
	resp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		if ctx.Err() != nil {
			return nil, oautherr.Cancelled()
		}
		return nil, oautherr.NewTransport(0, "", err)
	}
	defer resp.Body.Close()

	body, err := readBodyHonoringContext(ctx, resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return parseTokenResponse(body, expectedScope)
	case resp.StatusCode == http.StatusBadRequest:
		return nil, parseErrorResponse(body)
	default:
		return nil, oautherr.NewTransport(resp.StatusCode, string(body),
			fmt.Errorf("unexpected status %d from token endpoint", resp.StatusCode))
	}
}

// readBodyHonoringContext reads r in a background goroutine so that a
// caller-cancelled context interrupts the read rather than blocking on a
// slow or stalled connection.
func readBodyHonoringContext(ctx context.Context, r io.Reader) ([]byte, error) {
	type result struct {
		body []byte
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		b, err := io.ReadAll(io.LimitReader(r, maxErrorBodyBytes))
		ch <- result{b, err}
	}()

	select {
	case <-ctx.Done():
		return nil, oautherr.Cancelled()
	case res := <-ch:
		if res.err != nil {
			return nil, oautherr.NewTransport(0, "", fmt.Errorf("reading token response body: %w", res.err))
		}
		return res.body, nil
	}
}

func parseTokenResponse(body []byte, expectedScope []string) (*token.AccessToken, error) {
	v, err := json.Parse(string(bytes.TrimSpace(body)))
	if err != nil {
		return nil, err
	}
	tok, err := token.FromTokenResponse(v, time.Now())
	if err != nil {
		return nil, err
	}
	if !tok.ScopeExplicit() && len(expectedScope) > 0 {
		tok = tok.WithScope(expectedScope)
	}
	return tok, nil
}

func parseErrorResponse(body []byte) error {
	v, err := json.Parse(string(bytes.TrimSpace(body)))
	if err != nil {
		return oautherr.NewTransport(http.StatusBadRequest, string(body), err)
	}
	rawCode := ""
	if f, ok := v.Field("error"); ok {
		rawCode, _ = f.String()
	}
	description := ""
	if f, ok := v.Field("error_description"); ok {
		description, _ = f.String()
	}
	uri := ""
	if f, ok := v.Field("error_uri"); ok {
		uri, _ = f.String()
	}
	return oautherr.NewAccessTokenError(rawCode, description, uri)
}
