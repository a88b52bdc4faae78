package signedrequest

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Param is the form field Facebook uses to carry a signed request.
const Param = "signed_request"

// FromRequest reads the signed_request form or query value of r and decodes
// it with secret.
func FromRequest(r *http.Request, secret string) (Claims, error) {
	value := r.FormValue(Param)
	if value == "" {
		return nil, ErrMissing
	}
	return Decode(value, secret)
}

// DeauthorizeFunc is called with the verified payload when a user removes
// the app.
type DeauthorizeFunc func(ctx context.Context, p Payload) error

// DeauthorizeHandler serves the Deauthorize Callback URL configured in the
// app dashboard. Facebook POSTs a signed_request whose user_id identifies the
// user who removed the app.
type DeauthorizeHandler struct {
	secret        string
	onDeauthorize DeauthorizeFunc
}

// NewDeauthorizeHandler creates a handler verifying requests with secret.
func NewDeauthorizeHandler(secret string, fn DeauthorizeFunc) *DeauthorizeHandler {
	return &DeauthorizeHandler{secret: secret, onDeauthorize: fn}
}

func (h *DeauthorizeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	claims, err := FromRequest(r, h.secret)
	if err != nil {
		if errors.Is(err, ErrMissing) {
			log.Warn().Msg("Deauthorize callback: missing signed_request")
		} else {
			log.Warn().Err(err).Msg("Deauthorize callback: signed_request rejected")
		}
		http.Error(w, "invalid signed_request", http.StatusBadRequest)
		return
	}

	p := ParsePayload(claims)
	if p.UserID == "" {
		log.Warn().Msg("Deauthorize callback: payload has no user_id")
		http.Error(w, "missing user_id", http.StatusBadRequest)
		return
	}

	if h.onDeauthorize != nil {
		if err := h.onDeauthorize(r.Context(), p); err != nil {
			log.Error().Err(err).Str("userId", p.UserID).Msg("Deauthorize callback failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
	}

	log.Info().Str("userId", p.UserID).Int64("issuedAt", p.IssuedAt).Msg("User deauthorized app")
	w.WriteHeader(http.StatusOK)
}
