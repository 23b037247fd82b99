// Package grant implements the authorization grant state machine (spec
// component F): authorization URL construction, PKCE, anti-CSRF state,
// redirect-response validation, and the code-for-token exchange.
package grant

import (
	"context"
	"crypto/rand"
	"fmt"
	"net/url"
	"sync"

	"github.com/oauthcore/oauthcore/internal/oautherr"
	"github.com/oauthcore/oauthcore/secret"
	"github.com/oauthcore/oauthcore/token"
	"github.com/oauthcore/oauthcore/tokenclient"
)

// Phase is a grant's lifecycle position. A grant moves strictly forward;
// once Consumed or Failed it is terminal and must be discarded.
type Phase int

const (
	PhaseFresh Phase = iota
	PhaseAwaitingRedirect
	PhaseReadyToExchange
	PhaseConsumed
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseFresh:
		return "fresh"
	case PhaseAwaitingRedirect:
		return "awaiting_redirect"
	case PhaseReadyToExchange:
		return "ready_to_exchange"
	case PhaseConsumed:
		return "consumed"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// stateEntropyBytes is the random portion of the anti-CSRF state, before
// any caller-supplied prefix and before base64url encoding.
const stateEntropyBytes = 32

// verifierBytes is the random length of the PKCE code verifier, matching
// RFC 7636's recommendation for a 256-bit verifier.
const verifierBytes = 32

// Grant is a single authorization-code-with-PKCE attempt. The zero value is
// not usable; construct with New. A Grant is safe for concurrent use; its
// exported operations serialize on an internal mutex since the state
// machine forbids concurrent transitions.
type Grant struct {
	mu    sync.Mutex
	phase Phase

	authorizationEndpoint *url.URL
	redirectEndpoint      string
	tokenEndpoint         string
	clientID              string
	clientSecret          string
	scope                 []string
	pkceMethod            PKCEMethod
	extraAuthParams       map[string]string
	statePrefix           []byte

	state        *secret.Secret
	codeVerifier *secret.Secret

	authorizationCode *secret.Secret
}

// Option configures a Grant at construction.
type Option func(*Grant) error

// WithScope sets the scope list sent on the authorization URL and the
// expected scope for the token response.
func WithScope(scope []string) Option {
	return func(g *Grant) error {
		g.scope = append([]string(nil), scope...)
		return nil
	}
}

// WithClientSecret attaches a confidential client secret, which enables
// HTTP Basic client authentication on the exchange request.
func WithClientSecret(clientSecret string) Option {
	return func(g *Grant) error {
		g.clientSecret = clientSecret
		return nil
	}
}

// WithPKCEMethod overrides the default (S256) PKCE method.
func WithPKCEMethod(method PKCEMethod) Option {
	return func(g *Grant) error {
		if method != PKCENone && method != PKCEPlain && method != PKCES256 {
			return fmt.Errorf("oauthcore: unknown PKCE method %v", method)
		}
		g.pkceMethod = method
		return nil
	}
}

// WithStatePrefix prepends a caller-chosen byte sequence to the anti-CSRF
// state before the random entropy, e.g. to correlate a redirect with a
// particular in-flight grant out-of-band. The overall state still carries
// at least 32 bytes of entropy regardless of prefix length.
func WithStatePrefix(prefix []byte) Option {
	return func(g *Grant) error {
		g.statePrefix = append([]byte(nil), prefix...)
		return nil
	}
}

// WithExtraAuthParams sets additional query parameters to include on the
// authorization URL (provider-specific extensions such as `prompt` or
// `audience`). These never override the parameters this package itself
// controls (response_type, client_id, redirect_uri, scope, state,
// code_challenge, code_challenge_method).
func WithExtraAuthParams(params map[string]string) Option {
	return func(g *Grant) error {
		g.extraAuthParams = params
		return nil
	}
}

// New constructs a fresh Grant, generating its state and PKCE verifier
// immediately from a cryptographically strong RNG. authorizationEndpoint,
// tokenEndpoint and redirectEndpoint must be absolute URLs; redirectEndpoint
// is echoed back bit-exact in the token request and is not otherwise
// validated by this package (it may be a loopback http URL the listener
// serves, or a registered custom scheme).
func New(authorizationEndpoint, tokenEndpoint, redirectEndpoint, clientID string, opts ...Option) (*Grant, error) {
	if clientID == "" {
		return nil, oautherr.ParameterMissing("client_id")
	}
	authURL, err := url.Parse(authorizationEndpoint)
	if err != nil || !authURL.IsAbs() {
		return nil, oautherr.ParameterType("authorization_endpoint", "absolute URL", authorizationEndpoint)
	}
	if redirectEndpoint == "" {
		return nil, oautherr.ParameterMissing("redirect_endpoint")
	}
	if tokenEndpoint == "" {
		return nil, oautherr.ParameterMissing("token_endpoint")
	}

	g := &Grant{
		phase:                 PhaseFresh,
		authorizationEndpoint: authURL,
		redirectEndpoint:      redirectEndpoint,
		tokenEndpoint:         tokenEndpoint,
		clientID:              clientID,
		pkceMethod:            PKCES256,
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}

	stateBytes, err := randomState(g.statePrefix)
	if err != nil {
		return nil, err
	}
	g.state = secret.New(stateBytes)
	zeroBytesLocal(stateBytes)

	verifier, err := randomVerifier()
	if err != nil {
		return nil, err
	}
	g.codeVerifier = secret.FromString(verifier)

	return g, nil
}

func randomState(prefix []byte) ([]byte, error) {
	entropy := make([]byte, stateEntropyBytes)
	if _, err := rand.Read(entropy); err != nil {
		return nil, fmt.Errorf("oauthcore: generating state entropy: %w", err)
	}
	out := make([]byte, 0, len(prefix)+len(entropy))
	out = append(out, prefix...)
	out = append(out, entropy...)
	zeroBytesLocal(entropy)
	return out, nil
}

func zeroBytesLocal(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// Phase reports the grant's current lifecycle position.
func (g *Grant) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// Exchange trades the authorization code validated by ValidateRedirect for
// an access token, per spec.md §4.F. It is the only caller of the token
// endpoint client for this grant and may be called at most once.
func (g *Grant) Exchange(ctx context.Context, client *tokenclient.Client) (*token.AccessToken, error) {
	g.mu.Lock()
	if g.phase != PhaseReadyToExchange {
		g.mu.Unlock()
		return nil, fmt.Errorf("oauthcore: grant is not ready to exchange (phase %v)", g.phase)
	}
	req, err := g.buildExchangeRequest(ctx)
	if err != nil {
		g.phase = PhaseFailed
		g.mu.Unlock()
		return nil, err
	}
	scope := append([]string(nil), g.scope...)
	g.mu.Unlock()

	tok, err := client.FromAuthorizationResponse(ctx, req, scope)

	g.mu.Lock()
	defer g.mu.Unlock()
	if err != nil {
		g.phase = PhaseFailed
		return nil, err
	}
	g.phase = PhaseConsumed
	g.destroyLocked()
	return tok, nil
}

// Cancel abandons the grant before exchange, zeroizing its state and PKCE
// verifier immediately rather than waiting on garbage collection. It is a
// supplemented convenience beyond simply dropping the Grant value, useful
// when a caller wants to free secret material as soon as a user dismisses
// the authorization UI. ctx is accepted for symmetry with this package's
// other operations and for a future where cancellation needs to interrupt
// in-flight I/O; today Cancel does no I/O and never blocks.
func (g *Grant) Cancel(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.phase == PhaseConsumed {
		return fmt.Errorf("oauthcore: grant already consumed")
	}
	g.phase = PhaseFailed
	g.destroyLocked()
	return oautherr.Cancelled()
}

func (g *Grant) destroyLocked() {
	if g.state != nil {
		g.state.Destroy()
	}
	if g.codeVerifier != nil {
		g.codeVerifier.Destroy()
	}
	if g.authorizationCode != nil {
		g.authorizationCode.Destroy()
	}
}
