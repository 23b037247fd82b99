package tokenclient

import (
	"context"
	"io"
	"net/http"

	"github.com/cenkalti/backoff/v5"

	"github.com/oauthcore/oauthcore/internal/oautherr"
	"github.com/oauthcore/oauthcore/secret"
	"github.com/oauthcore/oauthcore/token"
)

// BackoffClient wraps a Client with a bounded retry/backoff policy around
// transport failures. Per spec.md §4.E the core itself never retries;
// WithBackoff is an opt-in decorator for callers who want one, built on
// cenkalti/backoff/v5. Only *oautherr.Transport failures are retried: network
// errors, client timeouts, unreadable bodies, unexpected HTTP statuses, and a
// 400 whose body is not parseable JSON. AS-reported errors
// (AccessTokenError), cancellation, and failures to parse a 200 response are
// never retried.
type BackoffClient struct {
	inner *Client
	opts  []backoff.RetryOption
}

// WithBackoff decorates c with retry/backoff. opts are passed through to
// backoff.Retry verbatim (e.g. backoff.WithMaxTries, backoff.WithBackOff).
func WithBackoff(c *Client, opts ...backoff.RetryOption) *BackoffClient {
	return &BackoffClient{inner: c, opts: opts}
}

// FromAuthorizationResponse retries c's FromAuthorizationResponse on
// transport failures only.
func (b *BackoffClient) FromAuthorizationResponse(
	ctx context.Context,
	req *http.Request,
	expectedScope []string,
) (*token.AccessToken, error) {
	return backoff.Retry(ctx, func() (*token.AccessToken, error) {
		attempt, err := cloneRequest(req)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		tok, err := b.inner.FromAuthorizationResponse(ctx, attempt, expectedScope)
		return wrapRetryDecision(tok, err)
	}, b.opts...)
}

// Refresh retries c's Refresh on transport failures only.
func (b *BackoffClient) Refresh(
	ctx context.Context,
	tokenEndpoint string,
	refreshToken *secret.Secret,
	scope []string,
	creds *Credentials,
) (*token.AccessToken, error) {
	return backoff.Retry(ctx, func() (*token.AccessToken, error) {
		tok, err := b.inner.Refresh(ctx, tokenEndpoint, refreshToken, scope, creds)
		return wrapRetryDecision(tok, err)
	}, b.opts...)
}

func wrapRetryDecision(tok *token.AccessToken, err error) (*token.AccessToken, error) {
	if err == nil {
		return tok, nil
	}
	if isRetryableTransport(err) {
		return nil, err
	}
	return nil, backoff.Permanent(err)
}

func isRetryableTransport(err error) bool {
	switch err.(type) {
	case *oautherr.Transport:
		return true
	default:
		return false
	}
}

// cloneRequest produces a fresh *http.Request for a retry attempt, re-
// materializing the body from GetBody since http.Client.Do consumes req.Body.
func cloneRequest(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	} else if req.Body != nil {
		clone.Body = io.NopCloser(req.Body)
	}
	return clone, nil
}
