package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"kanzey-ticketing/internal/models"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

var ErrEventNotFound = errors.New("event not found")

// DB owns the events table. Counter updates take a bun.IDB so they can join
// the caller's transaction.
type DB struct {
	Bun *bun.DB
}

func (d *DB) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	err := d.Bun.NewSelect().
		Model(&event).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEventNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event %s: %w", id, err)
	}
	return &event, nil
}

func (d *DB) CreateEvent(ctx context.Context, event *models.Event) error {
	now := time.Now().UTC()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = now
	}
	event.UpdatedAt = now
	if event.Currency == "" {
		event.Currency = models.DefaultCurrency
	}
	_, err := d.Bun.NewInsert().Model(event).Exec(ctx)
	return err
}

// IncrementSales adds a paid ticket's quantity and amount to the event counters.
func (d *DB) IncrementSales(ctx context.Context, idb bun.IDB, eventID string, quantity int, amount decimal.Decimal) error {
	res, err := idb.NewUpdate().
		Model((*models.Event)(nil)).
		Set("tickets_sold = tickets_sold + ?", quantity).
		Set("revenue = revenue + ?", amount).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", eventID).
		Exec(ctx)
	return expectOne(res, err, eventID)
}

// DecrementSales reverses IncrementSales. Both counters are floored at zero.
func (d *DB) DecrementSales(ctx context.Context, idb bun.IDB, eventID string, quantity int, amount decimal.Decimal) error {
	res, err := idb.NewUpdate().
		Model((*models.Event)(nil)).
		Set("tickets_sold = CASE WHEN tickets_sold < ? THEN 0 ELSE tickets_sold - ? END", quantity, quantity).
		Set("revenue = CASE WHEN revenue < ? THEN 0 ELSE revenue - ? END", amount, amount).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", eventID).
		Exec(ctx)
	return expectOne(res, err, eventID)
}

func (d *DB) IncrementEntries(ctx context.Context, idb bun.IDB, eventID string) error {
	res, err := idb.NewUpdate().
		Model((*models.Event)(nil)).
		Set("tickets_used = tickets_used + 1").
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", eventID).
		Exec(ctx)
	return expectOne(res, err, eventID)
}

func expectOne(res sql.Result, err error, eventID string) error {
	if err != nil {
		return fmt.Errorf("update event %s: %w", eventID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update event %s: %w", eventID, err)
	}
	if n == 0 {
		return ErrEventNotFound
	}
	return nil
}
