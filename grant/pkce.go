package grant

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/oauthcore/oauthcore/b64url"
)

// PKCEMethod is the RFC 7636 code_challenge_method.
type PKCEMethod int

const (
	// PKCENone disables PKCE entirely (not recommended; supported for
	// authorization servers that reject the extension parameters).
	PKCENone PKCEMethod = iota
	// PKCEPlain sends the verifier itself as the challenge.
	PKCEPlain
	// PKCES256 sends base64url-nopad(SHA-256(ASCII(verifier))), the default.
	PKCES256
)

func (m PKCEMethod) String() string {
	switch m {
	case PKCENone:
		return "none"
	case PKCEPlain:
		return "plain"
	case PKCES256:
		return "S256"
	default:
		return "unknown"
	}
}

func randomVerifier() (string, error) {
	b := make([]byte, verifierBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("oauthcore: generating code verifier: %w", err)
	}
	return b64url.Encode(b), nil
}

// codeChallenge derives the code_challenge parameter value for method from
// the plaintext verifier. Returns ("", false) for PKCENone.
func codeChallenge(method PKCEMethod, verifier string) (string, bool) {
	switch method {
	case PKCEPlain:
		return verifier, true
	case PKCES256:
		sum := sha256.Sum256([]byte(verifier))
		return b64url.Encode(sum[:]), true
	default:
		return "", false
	}
}
