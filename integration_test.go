package oauthcore_test

import (
	"context"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/oauth2-proxy/mockoidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/oauthcore/oauthcore/grant"
	"github.com/oauthcore/oauthcore/listener"
	"github.com/oauthcore/oauthcore/tokenclient"
)

// startMockOIDC brings up a mock authorization server with one queued user,
// the same pattern the teacher's own authorization-server integration tests
// use to exercise a real authorization-code round trip without a live IdP.
func startMockOIDC(t *testing.T) *mockoidc.MockOIDC {
	t.Helper()
	m, err := mockoidc.Run()
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, m.Shutdown()) })

	m.QueueUser(&mockoidc.MockUser{
		Subject: "mock-user-sub-123",
		Email:   "testuser@example.com",
	})
	return m
}

// TestIntegration_FullAuthorizationCodeFlow drives the complete client-side
// path this library exists for: a Grant's authorization URL is opened
// against a real (mock) authorization server, the server's redirect lands
// on this library's own loopback listener, the listener's callback event
// feeds ValidateRedirect, and Exchange trades the code for a token.
func TestIntegration_FullAuthorizationCodeFlow(t *testing.T) {
	m := startMockOIDC(t)
	cfg := m.Config()

	events := make(chan listener.CallbackEvent, 1)
	l, err := listener.New("127.0.0.1", 0, listener.WithCallbackHandler(func(e listener.CallbackEvent) {
		events <- e
	}))
	require.NoError(t, err)
	require.NoError(t, l.Start(context.Background()))
	t.Cleanup(func() { _ = l.Stop() })

	g, err := grant.New(
		m.AuthorizationEndpoint(),
		m.TokenEndpoint(),
		l.CallbackURL(),
		cfg.ClientID,
		grant.WithClientSecret(cfg.ClientSecret),
		grant.WithScope([]string{"openid"}),
	)
	require.NoError(t, err)

	authURL, err := g.AuthorizationURL()
	require.NoError(t, err)

	noRedirect := &http.Client{
		Timeout: 10 * time.Second,
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := noRedirect.Get(authURL)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusFound, resp.StatusCode, "mock authorization server should redirect straight to our callback")

	callbackLocation, err := resp.Location()
	require.NoError(t, err)

	cbResp, err := noRedirect.Get(callbackLocation.String())
	require.NoError(t, err)
	defer cbResp.Body.Close()
	require.Equal(t, http.StatusMovedPermanently, cbResp.StatusCode)

	var event listener.CallbackEvent
	select {
	case event = <-events:
	case <-time.After(5 * time.Second):
		t.Fatal("listener never raised a callback event")
	}

	parsed, err := url.Parse(event.URI)
	require.NoError(t, err)

	require.NoError(t, g.ValidateRedirect(parsed.Query()))

	tok, err := g.Exchange(context.Background(), tokenclient.New())
	require.NoError(t, err)
	require.NotNil(t, tok)
	assert.Equal(t, grant.PhaseConsumed, g.Phase())

	var gotAuthHeader string
	req, _ := http.NewRequest(http.MethodGet, "https://api.example.org/resource", nil)
	tok.Authorize(req)
	gotAuthHeader = req.Header.Get("Authorization")
	assert.Regexp(t, "^Bearer .+", gotAuthHeader)
}

// TestIntegration_AuthorizationURLMatchesCanonicalOAuth2Client cross-checks
// this library's hand-rolled authorization URL construction against
// golang.org/x/oauth2's well-known AuthCodeURL for the RFC 6749 parameters
// both must agree on, guarding against an idiosyncratic encoding drifting
// from what the rest of the Go ecosystem produces.
func TestIntegration_AuthorizationURLMatchesCanonicalOAuth2Client(t *testing.T) {
	const (
		authEndpoint  = "https://auth.example.org/authorize"
		tokenEndpoint = "https://auth.example.org/token"
		redirectURI   = "http://127.0.0.1:4321/callback"
		clientID      = "integration-client"
	)

	g, err := grant.New(authEndpoint, tokenEndpoint, redirectURI, clientID,
		grant.WithScope([]string{"read", "write"}),
		grant.WithPKCEMethod(grant.PKCENone),
	)
	require.NoError(t, err)

	ours, err := g.AuthorizationURL()
	require.NoError(t, err)
	oursParsed, err := url.Parse(ours)
	require.NoError(t, err)

	reference := (&oauth2.Config{
		ClientID:    clientID,
		RedirectURL: redirectURI,
		Scopes:      []string{"read", "write"},
		Endpoint:    oauth2.Endpoint{AuthURL: authEndpoint, TokenURL: tokenEndpoint},
	}).AuthCodeURL("irrelevant-for-this-comparison")
	referenceParsed, err := url.Parse(reference)
	require.NoError(t, err)

	oursQuery := oursParsed.Query()
	refQuery := referenceParsed.Query()

	assert.Equal(t, refQuery.Get("client_id"), oursQuery.Get("client_id"))
	assert.Equal(t, refQuery.Get("redirect_uri"), oursQuery.Get("redirect_uri"))
	assert.Equal(t, refQuery.Get("response_type"), oursQuery.Get("response_type"))
	assert.Equal(t, refQuery.Get("scope"), oursQuery.Get("scope"))
}
