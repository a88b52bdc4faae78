// Package webhook serves Facebook real-time update (webhook) callbacks.
//
// Verification (GET):
//
//	Facebook sends hub.mode, hub.verify_token and hub.challenge as query
//	parameters. When the token matches the one registered for the
//	subscription in the path, the challenge is echoed back.
//
// Update delivery (POST):
//
//	Facebook sends a JSON batch signed with X-Hub-Signature (HMAC-SHA1 of
//	the raw body keyed with the app secret). Verified batches are decoded
//	and handed to every registered UpdateHandler.
//
// Every outcome of either verb is answered with 200. Failures produce an
// empty body and are only visible in the logs and metrics.
//
// Reference: https://developers.facebook.com/docs/graph-api/webhooks/getting-started
package webhook

import (
	"context"
	"crypto/subtle"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/fbgraph/internal/hmacsig"
	"github.com/fpang/fbgraph/internal/metrics"
)

// maxBodySize caps the request body read (1 MB). Facebook batches at most
// 1000 entries per delivery.
const maxBodySize = 1 << 20

// PathParam is the http.ServeMux wildcard holding the subscription name,
// e.g. "/realtime/facebook/{subscription}".
const PathParam = "subscription"

// Signature headers. The sha256 variant is only consulted when the sha1
// header is absent.
const (
	HeaderSignature    = "X-Hub-Signature"
	HeaderSignature256 = "X-Hub-Signature-256"
)

// Request outcomes, recorded as the Outcome metric dimension.
const (
	OutcomeConfirmed        = "confirmed"
	OutcomeRejected         = "rejected"
	OutcomeDispatched       = "dispatched"
	OutcomeSignatureInvalid = "signature_invalid"
	OutcomeSignatureMissing = "signature_missing"
	OutcomeDecodeError      = "decode_error"
)

// Dispatcher handles the verification handshake and update delivery for any
// number of subscriptions.
type Dispatcher struct {
	registry   Registry
	metricsOut io.Writer
	now        func() time.Time
	newID      func() string
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMetricsOutput sends EMF documents to w instead of stdout.
func WithMetricsOutput(w io.Writer) Option {
	return func(d *Dispatcher) { d.metricsOut = w }
}

// WithClock overrides the clock used for ReceivedAt and latency.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher creates a dispatcher over a private copy of reg.
func NewDispatcher(reg Registry, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		registry: reg.clone(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns the dispatcher's configuration.
func (d *Dispatcher) Registry() Registry {
	return d.registry.clone()
}

// ServeHTTP dispatches to verification (GET) or update delivery (POST).
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		d.handleVerification(w, r)
	case http.MethodPost:
		d.handleUpdate(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// SubscriptionName returns the subscription an inbound request addresses:
// the {subscription} path value when the route declares one, otherwise the
// last non-empty path segment.
func SubscriptionName(r *http.Request) string {
	if v := r.PathValue(PathParam); v != "" {
		return v
	}
	segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	return segments[len(segments)-1]
}

// handleVerification answers the subscription handshake:
//
//	GET /realtime/facebook/foo?hub.mode=subscribe&hub.verify_token=<token>&hub.challenge=<challenge>
//
// The challenge is echoed only when the token equals the one registered for
// foo.
func (d *Dispatcher) handleVerification(w http.ResponseWriter, r *http.Request) {
	start := d.now()
	subscription := SubscriptionName(r)
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	token := q.Get("hub.verify_token")
	challenge := q.Get("hub.challenge")

	outcome := OutcomeRejected
	defer func() { d.record("GET", subscription, outcome, start, nil) }()

	if mode != "subscribe" {
		log.Warn().Str("subscription", subscription).Str("mode", mode).
			Msg("Webhook verification rejected: unexpected mode")
		emptyOK(w)
		return
	}

	expected, ok := d.registry.Token(subscription)
	if !ok || expected == "" {
		log.Warn().Str("subscription", subscription).
			Msg("Webhook verification rejected: unknown subscription")
		emptyOK(w)
		return
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		log.Warn().Str("subscription", subscription).
			Msg("Webhook verification rejected: invalid verify token")
		emptyOK(w)
		return
	}

	outcome = OutcomeConfirmed
	log.Info().Str("subscription", subscription).Msg("Webhook verification successful")
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, challenge)
}

// handleUpdate authenticates a delivery and fans it out to the handlers.
func (d *Dispatcher) handleUpdate(w http.ResponseWriter, r *http.Request) {
	start := d.now()
	subscription := SubscriptionName(r)
	deliveryID := d.newID()
	logger := log.With().Str("subscription", subscription).Str("deliveryId", deliveryID).Logger()

	outcome := OutcomeRejected
	var stats dispatchStats
	defer func() { d.record("POST", subscription, outcome, start, &stats) }()
	defer emptyOK(w)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		logger.Error().Err(err).Msg("Webhook update: failed to read body")
		return
	}
	defer r.Body.Close()

	signature := r.Header.Get(HeaderSignature)
	if signature == "" {
		signature = r.Header.Get(HeaderSignature256)
	}
	if signature == "" {
		outcome = OutcomeSignatureMissing
		logger.Warn().Msg("Webhook update: missing X-Hub-Signature header")
		return
	}
	if !hmacsig.VerifyHeader(signature, []byte(d.registry.Secret), body) {
		outcome = OutcomeSignatureInvalid
		logger.Warn().Int("bodySize", len(body)).Msg("Webhook update: invalid signature")
		return
	}

	update, err := DecodeUpdate(body)
	if err != nil {
		outcome = OutcomeDecodeError
		logger.Warn().Err(err).Int("bodySize", len(body)).Msg("Webhook update: undecodable batch")
		return
	}
	update.DeliveryID = deliveryID
	update.ReceivedAt = start.UTC()

	logger.Info().
		Str("object", update.Object).
		Int("entries", len(update.Entries)).
		Int("bodySize", len(body)).
		Msg("Webhook update received")

	outcome = OutcomeDispatched
	stats = d.dispatch(r.Context(), subscription, update)
}

type dispatchStats struct {
	entries  int
	invoked  int
	failures int
}

// dispatch calls every handler once, in registration order. A failing
// handler does not stop the ones after it.
func (d *Dispatcher) dispatch(ctx context.Context, subscription string, update Update) dispatchStats {
	stats := dispatchStats{entries: len(update.Entries)}
	for i, h := range d.registry.Handlers {
		stats.invoked++
		if err := invoke(ctx, h, subscription, update.clone()); err != nil {
			stats.failures++
			log.Error().Err(err).
				Str("subscription", subscription).
				Str("deliveryId", update.DeliveryID).
				Int("handler", i).
				Msg("Webhook update handler failed")
		}
	}
	return stats
}

func invoke(ctx context.Context, h UpdateHandler, subscription string, update Update) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("handler panic: %v", p)
		}
	}()
	return h.HandleUpdate(ctx, subscription, update)
}

func (d *Dispatcher) record(method, subscription, outcome string, start time.Time, stats *dispatchStats) {
	rec := metrics.New(metrics.Namespace)
	if d.metricsOut != nil {
		rec.Output(d.metricsOut)
	}
	rec.Dimension("Outcome", outcome).
		Count("WebhookRequests").
		Metric("WebhookLatencyMs", float64(d.now().Sub(start).Milliseconds()), metrics.UnitMilliseconds).
		Property("method", method).
		Property("subscription", subscription)
	if stats != nil && outcome == OutcomeDispatched {
		rec.Metric("WebhookEntries", float64(stats.entries), metrics.UnitCount).
			Metric("HandlerInvocations", float64(stats.invoked), metrics.UnitCount).
			Metric("HandlerErrors", float64(stats.failures), metrics.UnitCount)
	}
	rec.Flush()
}

// emptyOK writes the protocol's neutral answer: 200 with no body.
func emptyOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
}
