package signedrequest

import "errors"

// Error kinds. A decode failure is always an *Error whose Error() text is the
// user-facing message; errors.Is matches it against one of these kinds.
var (
	ErrPayload   = errors.New("signed request payload is malformed")
	ErrAlgorithm = errors.New("signed request algorithm is unsupported")
	ErrSignature = errors.New("signed request signature is invalid")

	// ErrMissing is returned by FromRequest when no signed_request value was sent.
	ErrMissing = errors.New("signed_request parameter is missing")
)

// Error is a signed-request verification failure. Callers match on Message
// in some integrations, so the texts are fixed.
type Error struct {
	Message string
	Kind    error
	Err     error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

func payloadError(cause error) error {
	return &Error{Message: "Error parsing payload.", Kind: ErrPayload, Err: cause}
}

func algorithmError(raw string) error {
	return &Error{Message: "Unknown encryption algorithm: " + raw, Kind: ErrAlgorithm}
}

func signatureError(cause error) error {
	return &Error{Message: "Invalid signature.", Kind: ErrSignature, Err: cause}
}
