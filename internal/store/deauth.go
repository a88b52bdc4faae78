package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/fpang/fbgraph/internal/signedrequest"
)

const (
	userPrefix = "USER#"
	skDeauth   = "DEAUTH"
)

// DeauthorizationStore remembers users who removed the app.
type DeauthorizationStore struct {
	table
}

// NewDeauthorizationStore creates a store over the given table.
func NewDeauthorizationStore(client DynamoAPI, tableName string) *DeauthorizationStore {
	return &DeauthorizationStore{table: newTable(client, tableName)}
}

// Record stores the deauthorization carried by a verified signed request.
// Its signature matches signedrequest.DeauthorizeFunc.
func (s *DeauthorizationStore) Record(ctx context.Context, p signedrequest.Payload) error {
	if p.UserID == "" {
		return errors.New("deauthorization without user_id")
	}
	d := Deauthorization{
		UserID:     p.UserID,
		IssuedAt:   p.IssuedAt,
		RecordedAt: s.now().UTC(),
	}
	if err := s.putItem(ctx, userPrefix+p.UserID, skDeauth, DeauthorizationTTL, d); err != nil {
		return fmt.Errorf("record deauthorization %s: %w", p.UserID, err)
	}
	log.Debug().Str("userId", p.UserID).Msg("Deauthorization persisted")
	return nil
}

// Get returns the stored deauthorization of userID, or nil when there is
// none.
func (s *DeauthorizationStore) Get(ctx context.Context, userID string) (*Deauthorization, error) {
	var d Deauthorization
	found, err := s.getItem(ctx, userPrefix+userID, skDeauth, &d)
	if err != nil {
		return nil, fmt.Errorf("get deauthorization %s: %w", userID, err)
	}
	if !found {
		return nil, nil
	}
	d.UserID = userID
	return &d, nil
}

// Clear forgets a deauthorization, typically after the user authorizes the
// app again.
func (s *DeauthorizationStore) Clear(ctx context.Context, userID string) error {
	if err := s.deleteItem(ctx, userPrefix+userID, skDeauth); err != nil {
		return fmt.Errorf("clear deauthorization %s: %w", userID, err)
	}
	return nil
}
