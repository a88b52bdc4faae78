package signedrequest

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Claims is the decoded payload of a signed request.
type Claims map[string]any

// String returns the claim as a string. Numbers are rendered in their JSON
// form, so numeric ids read the same either way.
func (c Claims) String(key string) string {
	switch v := c[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// Int64 returns the claim as an integer, accepting JSON numbers and numeric
// strings. It returns 0 when the claim is absent or not numeric.
func (c Claims) Int64(key string) int64 {
	switch v := c[key].(type) {
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			f, _ := v.Float64()
			return int64(f)
		}
		return n
	case float64:
		return int64(v)
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}

// Bool returns the claim as a boolean.
func (c Claims) Bool(key string) bool {
	b, _ := c[key].(bool)
	return b
}

// Map returns a nested object claim, or nil.
func (c Claims) Map(key string) Claims {
	switch v := c[key].(type) {
	case map[string]any:
		return Claims(v)
	case Claims:
		return v
	default:
		return nil
	}
}

// raw renders a claim verbatim for error messages.
func (c Claims) raw(key string) string {
	v, ok := c[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Payload is the typed view of the claims Facebook documents for canvas and
// deauthorization requests.
type Payload struct {
	Algorithm  string
	IssuedAt   int64
	Expires    int64
	UserID     string
	OAuthToken string
	Code       string
	AppData    string
	User       User
	Page       *Page
}

// User carries the coarse user context sent before the app is authorized.
type User struct {
	Country string
	Locale  string
	MinAge  int64
	MaxAge  int64
}

// Page is present when the request comes from a page tab.
type Page struct {
	ID    string
	Liked bool
	Admin bool
}

// ParsePayload maps claims onto a Payload field by field. Missing claims
// leave zero values.
func ParsePayload(c Claims) Payload {
	p := Payload{
		Algorithm:  c.String("algorithm"),
		IssuedAt:   c.Int64("issued_at"),
		Expires:    c.Int64("expires"),
		UserID:     c.String("user_id"),
		OAuthToken: c.String("oauth_token"),
		Code:       c.String("code"),
		AppData:    c.String("app_data"),
	}
	if u := c.Map("user"); u != nil {
		p.User.Country = u.String("country")
		p.User.Locale = u.String("locale")
		if age := u.Map("age"); age != nil {
			p.User.MinAge = age.Int64("min")
			p.User.MaxAge = age.Int64("max")
		}
	}
	if pg := c.Map("page"); pg != nil {
		p.Page = &Page{
			ID:    pg.String("id"),
			Liked: pg.Bool("liked"),
			Admin: pg.Bool("admin"),
		}
	}
	return p
}
