package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Subscription is one realtime update subscription of the app.
type Subscription struct {
	Object      string   `url:"object"`
	CallbackURL string   `url:"callback_url,omitempty"`
	Fields      []string `url:"fields,comma,omitempty"`
	VerifyToken string   `url:"verify_token,omitempty"`
	// IncludeValues asks Facebook to send changed values, not just names.
	IncludeValues bool `url:"include_values,omitempty"`
	// Active is only set on subscriptions read back from Graph.
	Active bool `url:"-"`
}

type subscriptionList struct {
	Data []struct {
		Object      string `json:"object"`
		CallbackURL string `json:"callback_url"`
		Active      bool   `json:"active"`
		Fields      []struct {
			Name    string `json:"name"`
			Version string `json:"version"`
		} `json:"fields"`
	} `json:"data"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type appToken struct {
	AccessToken string `url:"access_token"`
}

func (c *Client) subscriptionsPath() string {
	return "/" + c.appID + "/subscriptions"
}

// ListSubscriptions returns the app's current subscriptions.
func (c *Client) ListSubscriptions(ctx context.Context) ([]Subscription, error) {
	var resp subscriptionList
	if err := c.Get(ctx, c.subscriptionsPath(), appToken{AccessToken: c.AppAccessToken()}, &resp); err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}

	subs := make([]Subscription, 0, len(resp.Data))
	for _, d := range resp.Data {
		s := Subscription{Object: d.Object, CallbackURL: d.CallbackURL, Active: d.Active}
		for _, f := range d.Fields {
			s.Fields = append(s.Fields, f.Name)
		}
		subs = append(subs, s)
	}
	return subs, nil
}

type subscribeParams struct {
	Subscription
	appToken
}

// Subscribe creates or updates the subscription for sub.Object. Facebook
// verifies CallbackURL with a GET handshake before answering.
func (c *Client) Subscribe(ctx context.Context, sub Subscription) error {
	if sub.Object == "" || sub.CallbackURL == "" {
		return errors.New("subscribe: object and callback URL are required")
	}

	var resp successResponse
	params := subscribeParams{Subscription: sub, appToken: appToken{AccessToken: c.AppAccessToken()}}
	if err := c.Post(ctx, c.subscriptionsPath(), params, &resp); err != nil {
		return fmt.Errorf("subscribe %s: %w", sub.Object, err)
	}
	if !resp.Success {
		return fmt.Errorf("subscribe %s: graph returned success=false", sub.Object)
	}

	log.Info().Str("object", sub.Object).Strs("fields", sub.Fields).Msg("Subscription saved")
	return nil
}

type unsubscribeParams struct {
	Object string `url:"object,omitempty"`
	appToken
}

// Unsubscribe removes the subscription for object, or every subscription
// when object is empty.
func (c *Client) Unsubscribe(ctx context.Context, object string) error {
	var resp successResponse
	params := unsubscribeParams{Object: object, appToken: appToken{AccessToken: c.AppAccessToken()}}
	if err := c.Delete(ctx, c.subscriptionsPath(), params, &resp); err != nil {
		return fmt.Errorf("unsubscribe %q: %w", object, err)
	}
	if !resp.Success {
		return fmt.Errorf("unsubscribe %q: graph returned success=false", object)
	}

	log.Info().Str("object", object).Msg("Subscription removed")
	return nil
}
