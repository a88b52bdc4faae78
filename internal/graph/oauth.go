// OAuth flows for Facebook Login. The code exchange is delegated to
// golang.org/x/oauth2; the long-lived token exchange is Facebook specific
// (grant_type=fb_exchange_token) and goes through the Graph client.
//
// See: https://developers.facebook.com/docs/facebook-login/guides/access-tokens/get-long-lived

package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"
)

// facebookEndpoint is endpoints.Facebook with credentials sent as
// parameters, which is what the token endpoint expects.
func facebookEndpoint() oauth2.Endpoint {
	e := endpoints.Facebook
	e.AuthStyle = oauth2.AuthStyleInParams
	return e
}

// WithOAuthEndpoint overrides the authorization and token URLs.
func WithOAuthEndpoint(e oauth2.Endpoint) Option {
	return func(c *Client) { c.endpoint = e }
}

// OAuth drives the Facebook Login authorization code flow for one redirect
// URL.
type OAuth struct {
	client *Client
	config *oauth2.Config
}

// OAuth returns the login flow for redirectURL requesting scopes.
func (c *Client) OAuth(redirectURL string, scopes ...string) *OAuth {
	return &OAuth{
		client: c,
		config: &oauth2.Config{
			ClientID:     c.appID,
			ClientSecret: c.appSecret,
			Endpoint:     c.endpoint,
			RedirectURL:  redirectURL,
			Scopes:       scopes,
		},
	}
}

// Config exposes the underlying oauth2 configuration.
func (o *OAuth) Config() *oauth2.Config { return o.config }

// AuthCodeURL returns the login dialog URL carrying state.
func (o *OAuth) AuthCodeURL(state string) string {
	return o.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a short-lived user token.
func (o *OAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, o.client.http.StandardClient())
	tok, err := o.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	log.Info().Time("expiry", tok.Expiry).Msg("Short-lived token obtained")
	return tok, nil
}

type exchangeParams struct {
	GrantType       string `url:"grant_type"`
	ClientID        string `url:"client_id"`
	ClientSecret    string `url:"client_secret"`
	FBExchangeToken string `url:"fb_exchange_token"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ExchangeLongLived trades a short-lived user token for a long-lived one
// (about 60 days).
func (c *Client) ExchangeLongLived(ctx context.Context, shortToken string) (*oauth2.Token, error) {
	params := exchangeParams{
		GrantType:       "fb_exchange_token",
		ClientID:        c.appID,
		ClientSecret:    c.appSecret,
		FBExchangeToken: shortToken,
	}

	var resp tokenResponse
	if err := c.Get(ctx, "/oauth/access_token", params, &resp); err != nil {
		return nil, fmt.Errorf("long-lived token exchange: %w", err)
	}
	if resp.AccessToken == "" {
		return nil, fmt.Errorf("long-lived token exchange: no access token in response")
	}

	tok := &oauth2.Token{AccessToken: resp.AccessToken, TokenType: resp.TokenType}
	if resp.ExpiresIn > 0 {
		tok.Expiry = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	}
	log.Info().Int64("expiresInDays", resp.ExpiresIn/86400).Msg("Long-lived token obtained")
	return tok, nil
}

// AppAccessToken returns the app token "<app-id>|<app-secret>", accepted by
// app-level edges such as /{app-id}/subscriptions.
func (c *Client) AppAccessToken() string {
	return c.appID + "|" + c.appSecret
}
