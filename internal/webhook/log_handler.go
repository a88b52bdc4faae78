package webhook

import (
	"context"

	"github.com/rs/zerolog/log"
)

// LogHandler writes one log line per entry of every update. It is the
// default handler when no storage is configured.
type LogHandler struct{}

// HandleUpdate implements UpdateHandler.
func (LogHandler) HandleUpdate(_ context.Context, subscription string, update Update) error {
	for _, e := range update.Entries {
		log.Info().
			Str("subscription", subscription).
			Str("deliveryId", update.DeliveryID).
			Str("object", update.Object).
			Int64("id", e.ID).
			Int64("time", e.Time).
			Strs("changedFields", e.ChangedFields).
			Msg("Realtime update")
	}
	return nil
}
