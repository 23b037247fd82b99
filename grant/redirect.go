package grant

import (
	"fmt"
	"net/url"

	"github.com/oauthcore/oauthcore/b64url"
	"github.com/oauthcore/oauthcore/internal/oautherr"
	"github.com/oauthcore/oauthcore/secret"
)

// ValidateRedirect checks the query parameters extracted from the redirect
// URI the listener received, per spec.md §4.F's ordered checks: state
// present, state matches (constant-time over the decoded bytes), no AS
// error, code present. On success the grant transitions to
// ready_to_exchange; on any failure it transitions to failed and the
// specific error is returned.
func (g *Grant) ValidateRedirect(params url.Values) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseAwaitingRedirect {
		return fmt.Errorf("oauthcore: grant is not awaiting a redirect (phase %v)", g.phase)
	}

	err := g.validateRedirectLocked(params)
	if err != nil {
		g.phase = PhaseFailed
		g.destroyLocked()
		return err
	}
	g.phase = PhaseReadyToExchange
	return nil
}

func (g *Grant) validateRedirectLocked(params url.Values) error {
	gotState := params.Get("state")
	if gotState == "" {
		return oautherr.ParameterMissing("state")
	}
	gotStateBytes, err := b64url.Decode(gotState)
	if err != nil {
		return oautherr.InvalidState()
	}
	defer zeroBytesLocal(gotStateBytes)

	if !g.state.EqualBytes(gotStateBytes) {
		return oautherr.InvalidState()
	}

	if rawCode := params.Get("error"); rawCode != "" {
		return oautherr.NewAuthorizationGrantError(rawCode, params.Get("error_description"), params.Get("error_uri"))
	}

	code := params.Get("code")
	if code == "" {
		return oautherr.ParameterMissing("code")
	}
	g.authorizationCode = secret.FromString(code)
	return nil
}
