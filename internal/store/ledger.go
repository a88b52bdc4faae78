package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"

	"github.com/fpang/fbgraph/internal/webhook"
)

const (
	objectPrefix = "OBJECT#"
	skUpdate     = "UPDATE#"
)

// UpdateLedger is an UpdateHandler that stores every entry of every update,
// so the change history of a subject can be read back later.
type UpdateLedger struct {
	table
}

var _ webhook.UpdateHandler = (*UpdateLedger)(nil)

// NewUpdateLedger creates a ledger over the given table.
func NewUpdateLedger(client DynamoAPI, tableName string) *UpdateLedger {
	return &UpdateLedger{table: newTable(client, tableName)}
}

func subjectPK(object string, id int64) string {
	return objectPrefix + object + "#" + strconv.FormatInt(id, 10)
}

// updateSK zero-pads the entry time so sort keys order chronologically. The
// entry index keeps entries of one delivery that share a subject and time
// apart.
func updateSK(entryTime int64, deliveryID string, index int) string {
	return fmt.Sprintf("%s%012d#%s#%04d", skUpdate, entryTime, deliveryID, index)
}

// HandleUpdate writes one item per entry.
func (l *UpdateLedger) HandleUpdate(ctx context.Context, subscription string, update webhook.Update) error {
	if len(update.Entries) == 0 {
		return nil
	}

	items := make([]map[string]types.AttributeValue, 0, len(update.Entries))
	for i, e := range update.Entries {
		rec := UpdateRecord{
			Object:        update.Object,
			SubjectID:     e.ID,
			Time:          e.Time,
			ChangedFields: e.ChangedFields,
			Subscription:  subscription,
			DeliveryID:    update.DeliveryID,
			ReceivedAt:    update.ReceivedAt,
		}
		item, err := l.item(subjectPK(update.Object, e.ID), updateSK(e.Time, update.DeliveryID, i), UpdateTTL, rec)
		if err != nil {
			return fmt.Errorf("ledger entry %s/%d: %w", update.Object, e.ID, err)
		}
		items = append(items, item)
	}

	if err := l.batchPut(ctx, items); err != nil {
		return fmt.Errorf("ledger delivery %s: %w", update.DeliveryID, err)
	}

	log.Debug().
		Str("subscription", subscription).
		Str("deliveryId", update.DeliveryID).
		Int("entries", len(items)).
		Msg("Update entries persisted")
	return nil
}

// RecentUpdates returns the latest stored entries for one subject, newest
// first. A limit of zero or less returns all of them.
func (l *UpdateLedger) RecentUpdates(ctx context.Context, object string, id int64, limit int) ([]UpdateRecord, error) {
	items, err := l.queryNewest(ctx, subjectPK(object, id), skUpdate, limit)
	if err != nil {
		return nil, fmt.Errorf("recent updates %s/%d: %w", object, id, err)
	}

	records := make([]UpdateRecord, 0, len(items))
	for _, item := range items {
		var rec UpdateRecord
		if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal update record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}
