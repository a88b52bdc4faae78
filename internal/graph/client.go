// Package graph is a small client for the Facebook Graph API: generic
// GET/POST/DELETE calls with appsecret_proof signing and Graph error
// decoding, the OAuth token exchanges, the app subscriptions edge that
// drives realtime updates, and /me.
//
// Requests go through go-retryablehttp, so 429 and 5xx answers are retried
// with backoff before an error is returned.
package graph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-querystring/query"
	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/fpang/fbgraph/internal/hmacsig"
)

const (
	// DefaultBaseURL is the versioned Graph API root.
	DefaultBaseURL = "https://graph.facebook.com/v19.0"

	defaultTimeout  = 30 * time.Second
	defaultRetryMax = 3

	// maxResponseSize caps how much of a response body is read.
	maxResponseSize = 10 << 20
)

// Client calls the Graph API on behalf of one app.
type Client struct {
	http        *retryablehttp.Client
	baseURL     string
	appID       string
	appSecret   string
	accessToken string
	endpoint    oauth2.Endpoint
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another Graph root, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithAccessToken sets the token sent when a call does not carry its own.
func WithAccessToken(token string) Option {
	return func(c *Client) { c.accessToken = token }
}

// WithRetry sets the retry budget and backoff bounds.
func WithRetry(retryMax int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.http.RetryMax = retryMax
		c.http.RetryWaitMin = waitMin
		c.http.RetryWaitMax = waitMax
	}
}

// WithHTTPClient replaces the underlying transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http.HTTPClient = hc }
}

// NewClient creates a client for the app identified by appID and appSecret.
func NewClient(appID, appSecret string, opts ...Option) *Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = cleanhttp.DefaultPooledClient()
	rc.HTTPClient.Timeout = defaultTimeout
	rc.RetryMax = defaultRetryMax
	rc.Logger = retryLogger{}
	// Keep the final response so Graph errors can be decoded.
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	c := &Client{
		http:      rc,
		baseURL:   DefaultBaseURL,
		appID:     appID,
		appSecret: appSecret,
		endpoint:  facebookEndpoint(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AppID returns the app the client acts for.
func (c *Client) AppID() string { return c.appID }

// AppSecretProof returns hex(HMAC-SHA256(appSecret, accessToken)), the proof
// Graph requires when "Require App Secret" is enabled.
func AppSecretProof(appSecret, accessToken string) string {
	proof, _ := hmacsig.SumHex(hmacsig.SHA256, []byte(appSecret), []byte(accessToken))
	return proof
}

// Get issues a GET. params may be nil, url.Values, or a struct with url tags.
// The JSON response is decoded into out unless out is nil.
func (c *Client) Get(ctx context.Context, path string, params, out any) error {
	return c.do(ctx, http.MethodGet, path, params, out)
}

// Post issues a form-encoded POST.
func (c *Client) Post(ctx context.Context, path string, params, out any) error {
	return c.do(ctx, http.MethodPost, path, params, out)
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string, params, out any) error {
	return c.do(ctx, http.MethodDelete, path, params, out)
}

func (c *Client) do(ctx context.Context, method, path string, params, out any) error {
	values, err := encodeParams(params)
	if err != nil {
		return fmt.Errorf("encode params for %s %s: %w", method, path, err)
	}
	if values.Get("access_token") == "" && c.accessToken != "" {
		values.Set("access_token", c.accessToken)
	}
	if token := values.Get("access_token"); token != "" && c.appSecret != "" && values.Get("appsecret_proof") == "" {
		values.Set("appsecret_proof", AppSecretProof(c.appSecret, token))
	}

	u := c.baseURL + "/" + strings.TrimLeft(path, "/")
	var req *retryablehttp.Request
	if method == http.MethodPost {
		req, err = retryablehttp.NewRequestWithContext(ctx, method, u, strings.NewReader(values.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		if len(values) > 0 {
			u += "?" + values.Encode()
		}
		req, err = retryablehttp.NewRequestWithContext(ctx, method, u, nil)
	}
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// *url.Error repeats the URL, access token included.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("read %s %s response: %w", method, path, err)
	}

	if apiErr := parseError(resp.StatusCode, body); apiErr != nil {
		log.Debug().
			Str("method", method).
			Str("path", path).
			Int("status", resp.StatusCode).
			Int("code", apiErr.Code).
			Str("fbtraceId", apiErr.FBTraceID).
			Msg("Graph API error")
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse %s %s response: %w", method, path, err)
	}
	return nil
}

func encodeParams(params any) (url.Values, error) {
	switch p := params.(type) {
	case nil:
		return url.Values{}, nil
	case url.Values:
		v := make(url.Values, len(p))
		for k, vals := range p {
			v[k] = append([]string(nil), vals...)
		}
		return v, nil
	default:
		return query.Values(params)
	}
}

// retryLogger routes go-retryablehttp's leveled logging to zerolog. URLs
// carry access tokens, so they are dropped.
type retryLogger struct{}

func (retryLogger) Error(msg string, kv ...interface{}) { log.Error().Fields(scrub(kv)).Msg(msg) }
func (retryLogger) Warn(msg string, kv ...interface{})  { log.Warn().Fields(scrub(kv)).Msg(msg) }
func (retryLogger) Info(msg string, kv ...interface{})  { log.Debug().Fields(scrub(kv)).Msg(msg) }
func (retryLogger) Debug(msg string, kv ...interface{}) { log.Trace().Fields(scrub(kv)).Msg(msg) }

func scrub(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok || key == "url" {
			continue
		}
		value := kv[i+1]
		var urlErr *url.Error
		if err, isErr := value.(error); isErr && errors.As(err, &urlErr) {
			value = urlErr.Err.Error()
		}
		fields[key] = value
	}
	return fields
}

var _ retryablehttp.LeveledLogger = retryLogger{}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
