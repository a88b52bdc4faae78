package graph

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Error is a Graph API error envelope:
//
//	{"error":{"message":"...","type":"OAuthException","code":190,"error_subcode":463,"fbtrace_id":"..."}}
type Error struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	Code       int    `json:"code"`
	Subcode    int    `json:"error_subcode,omitempty"`
	FBTraceID  string `json:"fbtrace_id,omitempty"`
}

func (e *Error) Error() string {
	if e.Code == 0 && e.Type == "" {
		return fmt.Sprintf("graph api: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("graph api: %s (type: %s, code: %d, subcode: %d)", e.Message, e.Type, e.Code, e.Subcode)
}

// Graph error codes callers commonly branch on.
const (
	CodeOAuthException = 190
	CodeRateLimited    = 4
	CodeUserRateLimit  = 17
	CodePermission     = 10
)

// IsTokenError reports whether e means the access token is invalid or
// expired.
func (e *Error) IsTokenError() bool {
	return e.Code == CodeOAuthException
}

// IsRateLimit reports whether e is an application or user rate limit.
func (e *Error) IsRateLimit() bool {
	return e.Code == CodeRateLimited || e.Code == CodeUserRateLimit
}

// parseError returns the Graph error carried by a response, or nil. Any
// non-2xx status is an error even without an envelope.
func parseError(status int, body []byte) *Error {
	var envelope struct {
		Error *Error `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && envelope.Error != nil {
		envelope.Error.StatusCode = status
		return envelope.Error
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices {
		return &Error{StatusCode: status, Message: truncate(string(body), 300)}
	}
	return nil
}
