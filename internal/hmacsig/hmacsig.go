// Package hmacsig computes and verifies the keyed digests Facebook attaches to
// signed requests (HMAC-SHA256, raw bytes) and to real-time update deliveries
// (HMAC-SHA1 or HMAC-SHA256, hex encoded in an X-Hub-Signature header).
package hmacsig

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"strings"
)

// Algorithm names a digest as it appears in a signature header prefix.
type Algorithm string

const (
	SHA1   Algorithm = "sha1"
	SHA256 Algorithm = "sha256"
)

var (
	ErrUnsupportedAlgorithm = errors.New("unsupported signature algorithm")
	ErrMalformedHeader      = errors.New("malformed signature header")
)

func (a Algorithm) newHash() (func() hash.Hash, error) {
	switch a {
	case SHA1:
		return sha1.New, nil
	case SHA256:
		return sha256.New, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, string(a))
	}
}

// Sum returns the raw HMAC digest of msg under key.
func Sum(alg Algorithm, key, msg []byte) ([]byte, error) {
	h, err := alg.newHash()
	if err != nil {
		return nil, err
	}
	mac := hmac.New(h, key)
	mac.Write(msg)
	return mac.Sum(nil), nil
}

// SumHex returns the lowercase hex HMAC digest of msg under key.
func SumHex(alg Algorithm, key, msg []byte) (string, error) {
	sum, err := Sum(alg, key, msg)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}

// Equal reports whether the digest of msg under key matches expected.
// The comparison runs in constant time.
func Equal(alg Algorithm, key, msg, expected []byte) bool {
	sum, err := Sum(alg, key, msg)
	if err != nil {
		return false
	}
	return hmac.Equal(sum, expected)
}

// VerifyHex reports whether hexDigest is the hex digest of msg under key.
// Hex case is ignored.
func VerifyHex(alg Algorithm, key, msg []byte, hexDigest string) bool {
	expected, err := SumHex(alg, key, msg)
	if err != nil {
		return false
	}
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(hexDigest)))
}

// ParseHeader splits a header value of the form "<alg>=<hexdigest>".
func ParseHeader(value string) (Algorithm, string, error) {
	alg, digest, ok := strings.Cut(strings.TrimSpace(value), "=")
	if !ok || alg == "" || digest == "" {
		return "", "", ErrMalformedHeader
	}
	a := Algorithm(strings.ToLower(alg))
	if _, err := a.newHash(); err != nil {
		return "", "", err
	}
	return a, digest, nil
}

// VerifyHeader checks a "<alg>=<hexdigest>" header against msg.
func VerifyHeader(value string, key, msg []byte) bool {
	alg, digest, err := ParseHeader(value)
	if err != nil {
		return false
	}
	return VerifyHex(alg, key, msg, digest)
}

// Header renders the "<alg>=<hexdigest>" header value for msg.
func Header(alg Algorithm, key, msg []byte) (string, error) {
	digest, err := SumHex(alg, key, msg)
	if err != nil {
		return "", err
	}
	return string(alg) + "=" + digest, nil
}
