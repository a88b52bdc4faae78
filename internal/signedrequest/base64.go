package signedrequest

import (
	"encoding/base64"
	"errors"
	"strings"
)

var errSegmentAlphabet = errors.New("segment contains characters outside the base64url alphabet")

// strictURL rejects encodings whose unused trailing bits are set, so every
// distinct segment string maps to distinct bytes.
var strictURL = base64.URLEncoding.Strict()

// DecodeSegment decodes a base64url segment. Facebook trims the '=' padding,
// so it is restored before decoding.
func DecodeSegment(s string) ([]byte, error) {
	if err := checkAlphabet(s); err != nil {
		return nil, err
	}
	if mod := len(s) % 4; mod != 0 {
		s += strings.Repeat("=", 4-mod)
	}
	return strictURL.DecodeString(s)
}

// EncodeSegment encodes b as unpadded base64url, the form Facebook emits.
func EncodeSegment(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// checkAlphabet accepts [A-Za-z0-9_-] with optional trailing '=' padding. The
// standard decoder silently skips CR and LF, which would let a tampered
// segment decode to the original bytes.
func checkAlphabet(s string) error {
	body := strings.TrimRight(s, "=")
	for i := 0; i < len(body); i++ {
		c := body[i]
		switch {
		case c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return errSegmentAlphabet
		}
	}
	return nil
}
