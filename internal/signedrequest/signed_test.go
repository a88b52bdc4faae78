package signedrequest

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "5a2f4f0fd1a4e9d1c1b6d7e0c3a9b8f2"

// sign builds a signed request without going through Encode.
func sign(secret, payloadJSON string) string {
	payload := base64.RawURLEncoding.EncodeToString([]byte(payloadJSON))
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil)) + "." + payload
}

func TestDecode_ValidRequest(t *testing.T) {
	req := sign(testSecret, `{"algorithm":"HMAC-SHA256","issued_at":1291836800,"user_id":"100001234567890","user":{"country":"us","locale":"en_US","age":{"min":21}}}`)

	claims, err := Decode(req, testSecret)
	require.NoError(t, err)

	assert.Equal(t, "HMAC-SHA256", claims.String("algorithm"))
	assert.Equal(t, int64(1291836800), claims.Int64("issued_at"))
	assert.Equal(t, "100001234567890", claims.String("user_id"))
	assert.Equal(t, "en_US", claims.Map("user").String("locale"))
}

func TestDecode_AlgorithmIsCaseInsensitive(t *testing.T) {
	req := sign(testSecret, `{"algorithm":"hmac-sha256","user_id":"1"}`)

	claims, err := Decode(req, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "1", claims.String("user_id"))
}

func TestDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		secret string
		claims Claims
	}{
		{
			name:   "deauthorize",
			secret: testSecret,
			claims: Claims{"algorithm": "HMAC-SHA256", "user_id": "1234", "issued_at": json.Number("1300000000")},
		},
		{
			name:   "nested user",
			secret: "another-secret",
			claims: Claims{
				"algorithm": "HMAC-SHA256",
				"user":      map[string]any{"locale": "en_GB", "country": "gb"},
				"flags":     []any{"a", "b"},
			},
		},
		{
			name:   "empty secret",
			secret: "",
			claims: Claims{"algorithm": "HMAC-SHA256", "app_data": "x?y=z&w"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Encode(tt.claims, tt.secret)
			require.NoError(t, err)
			assert.NotContains(t, req, "=")

			got, err := Decode(req, tt.secret)
			require.NoError(t, err)
			assert.Equal(t, tt.claims, got)
		})
	}
}

func TestEncode_NumbersDecodeAsJSONNumber(t *testing.T) {
	sr, err := Encode(Claims{"n": 42, "user_id": int64(100001234567890)}, testSecret)
	require.NoError(t, err)

	got, err := Decode(sr, testSecret)
	require.NoError(t, err)
	assert.Equal(t, json.Number("42"), got["n"])
	assert.IsType(t, json.Number(""), got["user_id"])
	assert.Equal(t, int64(42), got.Int64("n"))
	assert.Equal(t, int64(100001234567890), got.Int64("user_id"))
	assert.Equal(t, "100001234567890", got.String("user_id"))
}

func TestEncode_AddsAlgorithm(t *testing.T) {
	req, err := Encode(Claims{"user_id": "42"}, testSecret)
	require.NoError(t, err)

	claims, err := Decode(req, testSecret)
	require.NoError(t, err)
	assert.Equal(t, Algorithm, claims.String("algorithm"))
}

func TestDecode_DetectsSignatureTampering(t *testing.T) {
	req, err := Encode(Claims{"user_id": "100001234567890", "issued_at": 1291836800}, testSecret)
	require.NoError(t, err)

	dot := strings.LastIndexByte(req, '.')
	sig, payload := req[:dot], req[dot+1:]

	for i := 0; i < len(sig); i++ {
		for bit := 0; bit < 8; bit++ {
			b := []byte(sig)
			b[i] ^= 1 << bit
			tampered := string(b) + "." + payload

			_, err := Decode(tampered, testSecret)
			if assert.Error(t, err, "byte %d bit %d", i, bit) {
				assert.Equal(t, "Invalid signature.", err.Error(), "byte %d bit %d", i, bit)
			}
		}
	}
}

func TestDecode_WrongSecret(t *testing.T) {
	req := sign(testSecret, `{"algorithm":"HMAC-SHA256","user_id":"1"}`)

	_, err := Decode(req, "not-the-secret")
	require.Error(t, err)
	assert.EqualError(t, err, "Invalid signature.")
	assert.True(t, errors.Is(err, ErrSignature))
}

func TestDecode_UnknownAlgorithm(t *testing.T) {
	// The signature is valid; the algorithm gate must still reject it.
	req := sign(testSecret, `{"algorithm":"BOGUS","user_id":"1"}`)

	_, err := Decode(req, testSecret)
	require.Error(t, err)
	assert.EqualError(t, err, "Unknown encryption algorithm: BOGUS")
	assert.True(t, errors.Is(err, ErrAlgorithm))

	var srErr *Error
	require.True(t, errors.As(err, &srErr))
	assert.Equal(t, "Unknown encryption algorithm: BOGUS", srErr.Message)
}

func TestDecode_AlgorithmCheckedBeforeSignature(t *testing.T) {
	req := sign("some-other-secret", `{"algorithm":"HMAC-SHA1"}`)

	_, err := Decode(req, testSecret)
	assert.EqualError(t, err, "Unknown encryption algorithm: HMAC-SHA1")
}

func TestDecode_MissingAlgorithm(t *testing.T) {
	req := sign(testSecret, `{"user_id":"1"}`)

	_, err := Decode(req, testSecret)
	assert.EqualError(t, err, "Unknown encryption algorithm: ")
}

func TestDecode_MalformedPayload(t *testing.T) {
	encode := func(s string) string { return base64.RawURLEncoding.EncodeToString([]byte(s)) }

	tests := []struct {
		name string
		req  string
	}{
		{name: "no separator", req: "justonesegment"},
		{name: "bad base64", req: "c2ln.!!not-base64!!"},
		{name: "not json", req: "c2ln." + encode("not json at all")},
		{name: "json array", req: "c2ln." + encode(`["algorithm","HMAC-SHA256"]`)},
		{name: "json null", req: "c2ln." + encode(`null`)},
		{name: "trailing data", req: "c2ln." + encode(`{"algorithm":"HMAC-SHA256"}{}`)},
		{name: "empty payload", req: "c2ln."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.req, testSecret)
			require.Error(t, err)
			assert.EqualError(t, err, "Error parsing payload.")
			assert.True(t, errors.Is(err, ErrPayload))
		})
	}
}

func TestDecode_AcceptsPaddedSegments(t *testing.T) {
	payload := base64.URLEncoding.EncodeToString([]byte(`{"algorithm":"HMAC-SHA256","user_id":"777"}`))
	require.True(t, strings.HasSuffix(payload, "="), "fixture should need padding")

	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write([]byte(payload))
	req := base64.URLEncoding.EncodeToString(mac.Sum(nil)) + "." + payload

	claims, err := Decode(req, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "777", claims.String("user_id"))
}

func TestDecodeSegment_RejectsLineBreaks(t *testing.T) {
	_, err := DecodeSegment("YWJj\nZGVm")
	assert.Error(t, err)

	b, err := DecodeSegment("YWJjZGVm")
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(b))
}

func TestDecodeInto(t *testing.T) {
	type age struct {
		Min int `json:"min"`
	}
	type user struct {
		Locale  string `json:"locale"`
		Country string `json:"country"`
		Age     age    `json:"age"`
	}
	type canvas struct {
		Algorithm string `json:"algorithm"`
		IssuedAt  int64  `json:"issued_at"`
		User      user   `json:"user"`
	}

	req := sign(testSecret, `{"algorithm":"HMAC-SHA256","issued_at":1291836800,"user":{"country":"us","locale":"en_US","age":{"min":21}},"unknown":{"x":1}}`)

	var got canvas
	require.NoError(t, DecodeInto(req, testSecret, &got))
	assert.Equal(t, canvas{
		Algorithm: "HMAC-SHA256",
		IssuedAt:  1291836800,
		User:      user{Locale: "en_US", Country: "us", Age: age{Min: 21}},
	}, got)
}

func TestDecodeInto_PropagatesVerificationError(t *testing.T) {
	req := sign("wrong", `{"algorithm":"HMAC-SHA256"}`)

	var out map[string]any
	err := DecodeInto(req, testSecret, &out)
	assert.EqualError(t, err, "Invalid signature.")
	assert.Nil(t, out)
}

func TestParsePayload(t *testing.T) {
	req := sign(testSecret, fmt.Sprintf(`{
		"algorithm": "HMAC-SHA256",
		"expires": 1291840400,
		"issued_at": 1291836800,
		"oauth_token": "AAAB",
		"user_id": %d,
		"app_data": "promo",
		"user": {"country": "de", "locale": "de_DE", "age": {"min": 18, "max": 20}},
		"page": {"id": "1234", "liked": true, "admin": false}
	}`, int64(100001234567890)))

	claims, err := Decode(req, testSecret)
	require.NoError(t, err)

	p := ParsePayload(claims)
	assert.Equal(t, "HMAC-SHA256", p.Algorithm)
	assert.Equal(t, int64(1291840400), p.Expires)
	assert.Equal(t, int64(1291836800), p.IssuedAt)
	assert.Equal(t, "AAAB", p.OAuthToken)
	assert.Equal(t, "100001234567890", p.UserID)
	assert.Equal(t, "promo", p.AppData)
	assert.Equal(t, User{Country: "de", Locale: "de_DE", MinAge: 18, MaxAge: 20}, p.User)
	require.NotNil(t, p.Page)
	assert.Equal(t, Page{ID: "1234", Liked: true}, *p.Page)
}

func TestParsePayload_Minimal(t *testing.T) {
	p := ParsePayload(Claims{"algorithm": "HMAC-SHA256"})
	assert.Equal(t, "HMAC-SHA256", p.Algorithm)
	assert.Nil(t, p.Page)
	assert.Equal(t, User{}, p.User)
}
