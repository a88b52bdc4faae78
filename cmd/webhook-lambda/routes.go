package main

import (
	"net/http"

	"github.com/fpang/fbgraph/internal/config"
	"github.com/fpang/fbgraph/internal/signedrequest"
	"github.com/fpang/fbgraph/internal/store"
	"github.com/fpang/fbgraph/internal/webhook"
)

// deauthorizePath is the Deauthorize Callback URL path.
const deauthorizePath = "/deauthorize"

// newMux routes the realtime endpoint and the deauthorize callback. A nil
// store still verifies and logs deauthorizations without persisting them.
func newMux(cfg *config.Config, d *webhook.Dispatcher, deauth *store.DeauthorizationStore) *http.ServeMux {
	var onDeauthorize signedrequest.DeauthorizeFunc
	if deauth != nil {
		onDeauthorize = deauth.Record
	}

	mux := http.NewServeMux()
	mux.Handle(cfg.Route(), d)
	mux.Handle(deauthorizePath, signedrequest.NewDeauthorizeHandler(cfg.AppSecret, onDeauthorize))
	return mux
}
