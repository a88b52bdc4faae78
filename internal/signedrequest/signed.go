// Package signedrequest decodes and verifies Facebook signed requests.
//
// A signed request is "<signature>.<payload>": the payload is base64url
// encoded JSON and the signature is the base64url HMAC-SHA256 of the encoded
// payload segment (not of the decoded JSON) keyed with the app secret.
// Facebook posts them to canvas apps and to the deauthorization callback.
//
// Reference: https://developers.facebook.com/docs/games/gamesonfacebook/login#parsingsr
package signedrequest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fpang/fbgraph/internal/hmacsig"
)

// Algorithm is the only algorithm value a payload may declare.
const Algorithm = "HMAC-SHA256"

// Decode verifies signedRequest against secret and returns its claims.
//
// Checks run in a fixed order: the payload must parse, it must declare
// HMAC-SHA256 (case-insensitive), and the signature must match. Each failure
// is an *Error with a fixed message.
func Decode(signedRequest, secret string) (Claims, error) {
	dot := strings.LastIndexByte(signedRequest, '.')
	if dot < 0 {
		return nil, payloadError(errors.New("missing '.' separator"))
	}
	encodedSig, encodedPayload := signedRequest[:dot], signedRequest[dot+1:]

	claims, err := decodePayload(encodedPayload)
	if err != nil {
		return nil, payloadError(err)
	}

	if alg := claims.raw("algorithm"); strings.ToUpper(alg) != Algorithm {
		return nil, algorithmError(alg)
	}

	sig, err := DecodeSegment(encodedSig)
	if err != nil {
		return nil, signatureError(err)
	}
	if !hmacsig.Equal(hmacsig.SHA256, []byte(secret), []byte(encodedPayload), sig) {
		return nil, signatureError(nil)
	}
	return claims, nil
}

// DecodeInto verifies signedRequest and maps its claims onto out using the
// usual encoding/json rules: nested objects fill nested structs and unknown
// fields are ignored.
func DecodeInto(signedRequest, secret string, out any) error {
	claims, err := Decode(signedRequest, secret)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(claims)
	if err != nil {
		return fmt.Errorf("marshal claims: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("map claims onto %T: %w", out, err)
	}
	return nil
}

// Encode produces a signed request for claims, adding the algorithm claim
// when it is absent. It is the inverse of Decode up to number types: Decode
// returns every JSON number as a json.Number, so an int claim comes back as
// json.Number("42"). Read numbers with Claims.Int64 or Claims.String.
func Encode(claims Claims, secret string) (string, error) {
	body := make(Claims, len(claims)+1)
	for k, v := range claims {
		body[k] = v
	}
	if _, ok := body["algorithm"]; !ok {
		body["algorithm"] = Algorithm
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}
	payload := EncodeSegment(raw)
	sig, err := hmacsig.Sum(hmacsig.SHA256, []byte(secret), []byte(payload))
	if err != nil {
		return "", err
	}
	return EncodeSegment(sig) + "." + payload, nil
}

// decodePayload decodes a payload segment into a JSON object. Numbers are kept
// as json.Number so 64-bit ids survive.
func decodePayload(segment string) (Claims, error) {
	raw, err := DecodeSegment(segment)
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var claims Claims
	if err := dec.Decode(&claims); err != nil {
		return nil, err
	}
	if claims == nil {
		return nil, errors.New("payload is not a JSON object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after payload object")
	}
	return claims, nil
}
