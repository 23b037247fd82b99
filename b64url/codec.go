// Package b64url implements the base64url-no-pad codec used throughout
// oauthcore for PKCE verifiers/challenges, anti-CSRF state, and at-rest
// token blobs: RFC 4648 §5 alphabet ('-'/'_'), trailing '=' stripped.
package b64url

import (
	"encoding/base64"

	"github.com/oauthcore/oauthcore/internal/oautherr"
)

// Encode returns the base64url encoding of data with padding omitted.
func Encode(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

// Decode inverts Encode. Input length mod 4 of 1 is invalid, as is any
// character outside the base64url alphabet.
func Decode(s string) ([]byte, error) {
	if len(s)%4 == 1 {
		return nil, oautherr.ParameterType("base64url", "valid base64url length", "length ≡ 1 (mod 4)")
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, oautherr.ParameterType("base64url", "valid base64url alphabet", err.Error())
	}
	return b, nil
}
