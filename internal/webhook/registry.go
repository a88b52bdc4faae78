package webhook

import (
	"context"
	"maps"
	"slices"
)

// UpdateHandler receives every verified update, whatever subscription it was
// delivered to. subscription is the path segment the update was posted to.
// Each handler gets its own copy of the update, so it may modify it freely.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, subscription string, update Update) error
}

// HandlerFunc adapts a function to UpdateHandler.
type HandlerFunc func(ctx context.Context, subscription string, update Update) error

// HandleUpdate calls f.
func (f HandlerFunc) HandleUpdate(ctx context.Context, subscription string, update Update) error {
	return f(ctx, subscription, update)
}

// Registry is the dispatcher's configuration: the app secret that signs every
// delivery, the verify token of each subscription, and the handlers that
// receive updates. It is copied when a Dispatcher is built and never changes
// afterwards.
type Registry struct {
	// Secret is the app secret used to check X-Hub-Signature.
	Secret string
	// Tokens maps a subscription name to its hub.verify_token.
	Tokens map[string]string
	// Handlers are invoked in order for every update.
	Handlers []UpdateHandler
}

// NewRegistry builds a Registry from copies of tokens and handlers.
func NewRegistry(secret string, tokens map[string]string, handlers ...UpdateHandler) Registry {
	return Registry{
		Secret:   secret,
		Tokens:   maps.Clone(tokens),
		Handlers: slices.Clone(handlers),
	}
}

// Token returns the verify token registered for subscription.
func (r Registry) Token(subscription string) (string, bool) {
	token, ok := r.Tokens[subscription]
	return token, ok
}

// Subscriptions returns the registered subscription names, sorted.
func (r Registry) Subscriptions() []string {
	return slices.Sorted(maps.Keys(r.Tokens))
}

func (r Registry) clone() Registry {
	return NewRegistry(r.Secret, r.Tokens, r.Handlers...)
}
