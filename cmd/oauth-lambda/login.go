package main

import (
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/fbgraph/internal/graph"
	"github.com/fpang/fbgraph/internal/lambdaboot"
	"github.com/fpang/fbgraph/internal/store"
)

const stateCookie = "fbgraph_oauth_state"

type loginApp struct {
	client      *graph.Client
	flow        *graph.OAuth
	ssm         lambdaboot.SSMAPI
	deauth      *store.DeauthorizationStore
	tokenPrefix string
}

func (a *loginApp) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /oauth/start", a.handleStart)
	mux.HandleFunc("GET /oauth/callback", a.handleCallback)
	return mux
}

// handleStart sends the browser to the login dialog. The state travels in a
// short-lived cookie and must come back unchanged on the callback.
func (a *loginApp) handleStart(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/oauth",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, a.flow.AuthCodeURL(state), http.StatusFound)
}

// handleCallback processes the login redirect: ?code=...&state=... on
// success, ?error=...&error_reason=... when the user declined.
func (a *loginApp) handleCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if errParam := q.Get("error"); errParam != "" {
		reason := q.Get("error_reason")
		log.Warn().Str("error", errParam).Str("reason", reason).Str("description", q.Get("error_description")).
			Msg("OAuth authorization denied by user")
		respondHTML(w, http.StatusOK, "Authorization Denied",
			fmt.Sprintf("Facebook authorization was denied: %s.", html.EscapeString(reason)))
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != q.Get("state") {
		log.Warn().Msg("OAuth callback state mismatch")
		respondHTML(w, http.StatusBadRequest, "Error", "Login session expired or invalid. Please start again.")
		return
	}

	code := q.Get("code")
	if code == "" {
		log.Error().Msg("OAuth callback received without code or error parameter")
		respondHTML(w, http.StatusBadRequest, "Error", "Missing authorization code.")
		return
	}

	ctx := r.Context()

	short, err := a.flow.Exchange(ctx, code)
	if err != nil {
		log.Error().Err(err).Msg("Failed to exchange authorization code")
		respondHTML(w, http.StatusBadGateway, "Token Exchange Failed",
			"Failed to exchange the authorization code for an access token. Please try again.")
		return
	}

	long, err := a.client.ExchangeLongLived(ctx, short.AccessToken)
	if err != nil {
		log.Error().Err(err).Msg("Failed to exchange for long-lived token")
		respondHTML(w, http.StatusBadGateway, "Token Exchange Failed",
			"Failed to exchange for a long-lived token. Please try again.")
		return
	}

	user, err := a.client.Me(ctx, long.AccessToken, "id", "name")
	if err != nil {
		log.Error().Err(err).Msg("Failed to look up the logged-in user")
		respondHTML(w, http.StatusBadGateway, "Lookup Failed", "Could not identify the Facebook account.")
		return
	}

	param := a.tokenPrefix + user.ID
	if err := lambdaboot.PutParameter(ctx, a.ssm, param, long.AccessToken); err != nil {
		log.Error().Err(err).Str("param", param).Msg("Failed to store access token in SSM")
		respondHTML(w, http.StatusInternalServerError, "Storage Failed",
			"Token was obtained but could not be stored. Please check Lambda logs.")
		return
	}
	log.Info().Str("param", param).Str("userId", user.ID).Msg("Long-lived access token stored in SSM")

	if a.deauth != nil {
		if err := a.deauth.Clear(ctx, user.ID); err != nil {
			log.Warn().Err(err).Str("userId", user.ID).Msg("Failed to clear deauthorization")
		}
	}

	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/oauth", MaxAge: -1})

	expires := "does not expire"
	if !long.Expiry.IsZero() {
		expires = fmt.Sprintf("expires in %d days", int(time.Until(long.Expiry).Hours()/24+0.5))
	}
	respondHTML(w, http.StatusOK, "Facebook Connected",
		fmt.Sprintf("%s (user ID: %s) has been connected successfully.<br><br>"+
			"Long-lived token stored, %s.<br><br>"+
			"You can close this window.", html.EscapeString(user.Name), html.EscapeString(user.ID), expires))
}

// respondHTML writes a minimal HTML page with the given title and message.
func respondHTML(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>%s</title>
  <style>
    body { font-family: system-ui, -apple-system, sans-serif; max-width: 600px; margin: 80px auto; padding: 0 20px; text-align: center; color: #1a1a1a; }
    h1 { font-size: 1.5rem; margin-bottom: 1rem; }
    p { font-size: 1rem; line-height: 1.6; color: #444; }
  </style>
</head>
<body>
  <h1>%s</h1>
  <p>%s</p>
</body>
</html>`, title, title, message)
}
