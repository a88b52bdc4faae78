package graph

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2/endpoints"
)

func TestDefaultOAuthEndpoint(t *testing.T) {
	c := NewClient(testAppID, testAppSecret)
	cfg := c.OAuth("https://example.com/oauth/callback").Config()
	assert.Equal(t, endpoints.Facebook.TokenURL, cfg.Endpoint.TokenURL)
	assert.Equal(t, endpoints.Facebook.AuthURL, cfg.Endpoint.AuthURL)
}

func TestAuthCodeURL(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {})
	raw := c.OAuth("https://example.com/oauth/callback", "email", "public_profile").AuthCodeURL("xyz")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "/dialog/oauth", u.Path)
	assert.Equal(t, testAppID, q.Get("client_id"))
	assert.Equal(t, "https://example.com/oauth/callback", q.Get("redirect_uri"))
	assert.Equal(t, "email public_profile", q.Get("scope"))
	assert.Equal(t, "xyz", q.Get("state"))
	assert.Equal(t, "code", q.Get("response_type"))
}

func TestExchange(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth/access_token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, testAppID, r.PostForm.Get("client_id"))
		assert.Equal(t, testAppSecret, r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"short","token_type":"bearer","expires_in":3600}`)
	})

	tok, err := c.OAuth("https://example.com/cb").Exchange(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "short", tok.AccessToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), tok.Expiry, time.Minute)
}

func TestExchange_Error(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"This authorization code has expired.","type":"OAuthException","code":100}}`)
	})

	_, err := c.OAuth("https://example.com/cb").Exchange(context.Background(), "stale")
	assert.Error(t, err)
}

func TestExchangeLongLived(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oauth/access_token", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "fb_exchange_token", q.Get("grant_type"))
		assert.Equal(t, "short", q.Get("fb_exchange_token"))
		assert.Equal(t, testAppID, q.Get("client_id"))
		assert.Equal(t, testAppSecret, q.Get("client_secret"))
		_, _ = io.WriteString(w, `{"access_token":"long","token_type":"bearer","expires_in":5184000}`)
	})

	tok, err := c.ExchangeLongLived(context.Background(), "short")
	require.NoError(t, err)
	assert.Equal(t, "long", tok.AccessToken)
	assert.WithinDuration(t, time.Now().Add(60*24*time.Hour), tok.Expiry, time.Minute)
}

func TestExchangeLongLived_EmptyToken(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})
	_, err := c.ExchangeLongLived(context.Background(), "short")
	assert.Error(t, err)
}

func TestAppAccessToken(t *testing.T) {
	assert.Equal(t, "1234567890|app-secret", NewClient(testAppID, testAppSecret).AppAccessToken())
}
