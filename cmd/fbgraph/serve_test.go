package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fpang/fbgraph/internal/config"
	"github.com/fpang/fbgraph/internal/hmacsig"
	"github.com/fpang/fbgraph/internal/signedrequest"
	"github.com/fpang/fbgraph/internal/webhook"
)

const testSecret = "shhhhh!"

type collector struct {
	mu      sync.Mutex
	subs    []string
	updates []webhook.Update
}

func (c *collector) HandleUpdate(_ context.Context, subscription string, u webhook.Update) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, subscription)
	c.updates = append(c.updates, u)
	return nil
}

func newTestServer(t *testing.T, handlers ...webhook.UpdateHandler) *httptest.Server {
	t.Helper()
	c := &config.Config{
		AppSecret:     testSecret,
		Subscriptions: map[string]string{"foo": "yabbadabbadoo", "bar": "barbar"},
		BasePath:      "/realtime/facebook",
	}
	reg := webhook.NewRegistry(c.AppSecret, c.Subscriptions, handlers...)
	srv := httptest.NewServer(newServer(c, webhook.NewDispatcher(reg, webhook.WithMetricsOutput(io.Discard)), nil))
	t.Cleanup(srv.Close)
	return srv
}

func TestServer_Healthz(t *testing.T) {
	srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Status        string   `json:"status"`
		Subscriptions []string `json:"subscriptions"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, []string{"bar", "foo"}, body.Subscriptions)
}

func TestServer_Handshake(t *testing.T) {
	srv := newTestServer(t)

	get := func(sub, token string) (int, string) {
		q := url.Values{"hub.mode": {"subscribe"}, "hub.verify_token": {token}, "hub.challenge": {"abc"}}
		resp, err := http.Get(srv.URL + "/realtime/facebook/" + sub + "?" + q.Encode())
		require.NoError(t, err)
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(b)
	}

	status, body := get("foo", "yabbadabbadoo")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "abc", body)

	status, body = get("bar", "yabbadabbadoo")
	assert.Equal(t, http.StatusOK, status)
	assert.Empty(t, body)
}

func TestServer_RootBasePath(t *testing.T) {
	c := &config.Config{
		AppSecret:     testSecret,
		Subscriptions: map[string]string{"foo": "yabbadabbadoo"},
		BasePath:      "/",
	}
	reg := webhook.NewRegistry(c.AppSecret, c.Subscriptions)
	srv := httptest.NewServer(newServer(c, webhook.NewDispatcher(reg, webhook.WithMetricsOutput(io.Discard)), nil))
	t.Cleanup(srv.Close)

	resp, err := http.Get(srv.URL + "/foo?hub.mode=subscribe&hub.verify_token=yabbadabbadoo&hub.challenge=abc")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "abc", string(b))
}

func TestServer_SignedUpdate(t *testing.T) {
	h := &collector{}
	srv := newTestServer(t, h)

	payload := `{"object":"user","entry":[{"id":"100001234567890","time":1300000000,"changed_fields":["friends"]}]}`
	sig, err := hmacsig.Header(hmacsig.SHA1, []byte(testSecret), []byte(payload))
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/realtime/facebook/foo", strings.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(webhook.HeaderSignature, sig)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, h.updates, 1)
	assert.Equal(t, []string{"foo"}, h.subs)
	assert.Equal(t, "user", h.updates[0].Object)
	assert.Equal(t, int64(100001234567890), h.updates[0].Entries[0].ID)
}

func TestServer_UnsignedUpdateIgnored(t *testing.T) {
	h := &collector{}
	srv := newTestServer(t, h)

	resp, err := http.Post(srv.URL+"/realtime/facebook/foo", "application/json", strings.NewReader(`{"object":"user","entry":[]}`))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, h.updates)
}

func TestServer_Deauthorize(t *testing.T) {
	srv := newTestServer(t)
	sr, err := signedrequest.Encode(signedrequest.Claims{"user_id": "777"}, testSecret)
	require.NoError(t, err)

	resp, err := http.PostForm(srv.URL+"/deauthorize", url.Values{"signed_request": {sr}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.PostForm(srv.URL+"/deauthorize", url.Values{"signed_request": {sr + "x"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
