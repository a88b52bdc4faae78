// Package forward republishes verified realtime updates onto an EventBridge
// bus so other services can subscribe to them with rules.
package forward

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	eventbridgetypes "github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"github.com/rs/zerolog/log"

	"github.com/fpang/fbgraph/internal/webhook"
)

// Source is the EventBridge source of every forwarded update.
const Source = "facebook.realtime"

// PutEventsAPI is the subset of the EventBridge client used here.
type PutEventsAPI interface {
	PutEvents(ctx context.Context, in *eventbridge.PutEventsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.PutEventsOutput, error)
}

// Detail is the event detail: the update plus the subscription it arrived
// on.
type Detail struct {
	Subscription string `json:"subscription"`
	webhook.Update
}

// EventBridge is an UpdateHandler that emits one event per update.
type EventBridge struct {
	client  PutEventsAPI
	busName string
}

var _ webhook.UpdateHandler = (*EventBridge)(nil)

// NewEventBridge creates a forwarder. An empty busName targets the default
// bus.
func NewEventBridge(client PutEventsAPI, busName string) *EventBridge {
	return &EventBridge{client: client, busName: busName}
}

// DetailType returns the detail-type of an update for object, e.g.
// "user.update".
func DetailType(object string) string {
	return object + ".update"
}

// HandleUpdate implements webhook.UpdateHandler.
func (f *EventBridge) HandleUpdate(ctx context.Context, subscription string, update webhook.Update) error {
	detail, err := json.Marshal(Detail{Subscription: subscription, Update: update})
	if err != nil {
		return fmt.Errorf("marshal update detail: %w", err)
	}

	entry := eventbridgetypes.PutEventsRequestEntry{
		Source:     aws.String(Source),
		DetailType: aws.String(DetailType(update.Object)),
		Detail:     aws.String(string(detail)),
	}
	if f.busName != "" {
		entry.EventBusName = aws.String(f.busName)
	}
	if !update.ReceivedAt.IsZero() {
		entry.Time = aws.Time(update.ReceivedAt)
	}

	result, err := f.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []eventbridgetypes.PutEventsRequestEntry{entry},
	})
	if err != nil {
		return fmt.Errorf("PutEvents: %w", err)
	}

	if result.FailedEntryCount > 0 {
		for i, e := range result.Entries {
			if e.ErrorCode != nil || e.ErrorMessage != nil {
				log.Error().
					Int("index", i).
					Str("errorCode", aws.ToString(e.ErrorCode)).
					Str("errorMessage", aws.ToString(e.ErrorMessage)).
					Str("deliveryId", update.DeliveryID).
					Msg("EventBridge PutEvents entry failed")
				return fmt.Errorf("PutEvents entry %d failed: %s - %s", i, aws.ToString(e.ErrorCode), aws.ToString(e.ErrorMessage))
			}
		}
		return fmt.Errorf("PutEvents: %d entries failed", result.FailedEntryCount)
	}

	log.Debug().
		Str("subscription", subscription).
		Str("deliveryId", update.DeliveryID).
		Str("detailType", aws.ToString(entry.DetailType)).
		Msg("Update forwarded to EventBridge")
	return nil
}
