package storage

import (
	"context"
	"fmt"
	"time"

	"kanzey-ticketing/internal/logger"
	"kanzey-ticketing/internal/models"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// BunStore keeps the append-only payment_attempts audit trail.
type BunStore struct {
	db  *bun.DB
	log *logger.Logger
}

func NewBunStore(db *bun.DB, log *logger.Logger) *BunStore {
	return &BunStore{db: db, log: log}
}

func (s *BunStore) RecordAttempt(ctx context.Context, attempt *models.PaymentAttempt) error {
	if attempt.ID == "" {
		attempt.ID = uuid.NewString()
	}
	if attempt.CreatedAt.IsZero() {
		attempt.CreatedAt = time.Now().UTC()
	}
	if _, err := s.db.NewInsert().Model(attempt).Exec(ctx); err != nil {
		return fmt.Errorf("record payment attempt for %s: %w", attempt.TicketID, err)
	}
	s.log.LogDatabase("INSERT", "payment_attempts",
		fmt.Sprintf("%s %s %s -> %s", attempt.TicketID, attempt.Source, attempt.RawStatus, attempt.CanonicalStatus))
	return nil
}

// HealthCheck reports whether the audit table's database answers.
func (s *BunStore) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
