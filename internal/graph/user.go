package graph

import (
	"context"
	"fmt"
	"strings"
)

// DefaultUserFields are requested by Me when no fields are given.
var DefaultUserFields = []string{"id", "name", "email", "locale"}

// User is the subset of the Graph user node this package reads.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Locale string `json:"locale,omitempty"`
}

type meParams struct {
	Fields      string `url:"fields"`
	AccessToken string `url:"access_token"`
}

// Me returns the user owning token.
func (c *Client) Me(ctx context.Context, token string, fields ...string) (*User, error) {
	if len(fields) == 0 {
		fields = DefaultUserFields
	}

	var u User
	if err := c.Get(ctx, "/me", meParams{Fields: strings.Join(fields, ","), AccessToken: token}, &u); err != nil {
		return nil, fmt.Errorf("get /me: %w", err)
	}
	return &u, nil
}
