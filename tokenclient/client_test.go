package tokenclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oauthcore/oauthcore/secret"
)

func TestFromAuthorizationResponse_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.Form.Get("grant_type"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-abc","token_type":"bearer","expires_in":3600}`))
	}))
	defer srv.Close()

	form := url.Values{"grant_type": {"authorization_code"}, "code": {"abc"}}
	req, err := newFormRequest(context.Background(), http.MethodPost, srv.URL, form, nil)
	require.NoError(t, err)

	c := New()
	tok, err := c.FromAuthorizationResponse(context.Background(), req, nil)
	require.NoError(t, err)
	assert.False(t, tok.IsRefreshable())
}

func TestFromAuthorizationResponse_AdoptsExpectedScope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"bearer"}`))
	}))
	defer srv.Close()

	req, err := newFormRequest(context.Background(), http.MethodPost, srv.URL, url.Values{}, nil)
	require.NoError(t, err)

	c := New()
	tok, err := c.FromAuthorizationResponse(context.Background(), req, []string{"read", "write"})
	require.NoError(t, err)
	assert.Equal(t, []string{"read", "write"}, tok.Scope())
}

func TestFromAuthorizationResponse_AccessTokenError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant","error_description":"code expired"}`))
	}))
	defer srv.Close()

	req, err := newFormRequest(context.Background(), http.MethodPost, srv.URL, url.Values{}, nil)
	require.NoError(t, err)

	c := New()
	_, err = c.FromAuthorizationResponse(context.Background(), req, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestFromAuthorizationResponse_UnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	req, err := newFormRequest(context.Background(), http.MethodPost, srv.URL, url.Values{}, nil)
	require.NoError(t, err)

	c := New()
	_, err = c.FromAuthorizationResponse(context.Background(), req, nil)
	require.Error(t, err)
}

func TestRefresh_CarriesForwardOldRefreshTokenWhenOmitted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "old-refresh", r.Form.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"new-access","token_type":"bearer"}`))
	}))
	defer srv.Close()

	c := New()
	old := secret.FromString("old-refresh")
	tok, err := c.Refresh(context.Background(), srv.URL, old, nil, nil)
	require.NoError(t, err)
	require.True(t, tok.IsRefreshable())
	assert.True(t, tok.Refresh().Equal(old))
}

func TestRefresh_AdoptsRotatedRefreshToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"new-access","token_type":"bearer","refresh_token":"rotated"}`))
	}))
	defer srv.Close()

	c := New()
	old := secret.FromString("old-refresh")
	tok, err := c.Refresh(context.Background(), srv.URL, old, nil, nil)
	require.NoError(t, err)
	assert.True(t, tok.Refresh().EqualBytes([]byte("rotated")))
}

func TestRefresh_AttachesBasicAuthWhenCredentialsProvided(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "client-id", user)
		assert.Equal(t, "client-secret", pass)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"bearer"}`))
	}))
	defer srv.Close()

	c := New()
	_, err := c.Refresh(context.Background(), srv.URL, secret.FromString("rt"), nil,
		&Credentials{ClientID: "client-id", ClientSecret: "client-secret"})
	require.NoError(t, err)
}

func TestSend_CancelledContext(t *testing.T) {
	blockCh := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-blockCh
		w.WriteHeader(http.StatusOK)
	}))
	defer func() {
		close(blockCh)
		srv.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := New()
	_, err := c.Refresh(ctx, srv.URL, secret.FromString("rt"), nil, nil)
	require.Error(t, err)
}
