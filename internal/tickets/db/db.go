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

var ErrTicketNotFound = errors.New("ticket not found")

// Counters is the slice of the event inventory the ticket transitions touch.
type Counters interface {
	IncrementSales(ctx context.Context, idb bun.IDB, eventID string, quantity int, amount decimal.Decimal) error
	DecrementSales(ctx context.Context, idb bun.IDB, eventID string, quantity int, amount decimal.Decimal) error
	IncrementEntries(ctx context.Context, idb bun.IDB, eventID string) error
}

type DB struct {
	Bun      *bun.DB
	Counters Counters
}

func (d *DB) CreateTicket(ctx context.Context, ticket *models.Ticket) error {
	now := time.Now().UTC()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	_, err := d.Bun.NewInsert().Model(ticket).Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert ticket %s: %w", ticket.TicketID, err)
	}
	return nil
}

func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	return d.getOne(ctx, d.Bun, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("ticket_id = ?", id)
	})
}

// FindByPaymentReference looks a ticket up by the provider transaction id first
// and only then by the client reference (our ticket id) echoed back by the provider.
func (d *DB) FindByPaymentReference(ctx context.Context, transactionID, clientRef string) (*models.Ticket, error) {
	if transactionID != "" {
		ticket, err := d.getOne(ctx, d.Bun, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("payment_id = ?", transactionID)
		})
		if !errors.Is(err, ErrTicketNotFound) {
			return ticket, err
		}
	}
	if clientRef == "" {
		return nil, ErrTicketNotFound
	}
	return d.GetTicketByID(ctx, clientRef)
}

// FindByReference accepts either a ticket id or a transaction id.
func (d *DB) FindByReference(ctx context.Context, ref string) (*models.Ticket, error) {
	return d.FindByPaymentReference(ctx, ref, ref)
}

func (d *DB) ListByUser(ctx context.Context, userID string, status models.TicketStatus, offset, limit int) ([]models.Ticket, int, error) {
	var tickets []models.Ticket
	q := d.Bun.NewSelect().
		Model(&tickets).
		Where("user_id = ?", userID).
		OrderExpr("created_at DESC").
		Offset(offset).
		Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	total, err := q.ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("list tickets for %s: %w", userID, err)
	}
	return tickets, total, nil
}

// DeletePending removes a ticket that never left pending. Used to undo a
// purchase whose payment initiation failed.
func (d *DB) DeletePending(ctx context.Context, id string) error {
	res, err := d.Bun.NewDelete().
		Model((*models.Ticket)(nil)).
		Where("ticket_id = ?", id).
		Where("status = ?", models.TicketStatusPending).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete ticket %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTicketNotFound
	}
	return nil
}

func (d *DB) SetPaymentReference(ctx context.Context, id, transactionID string, status models.PaymentStatus) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("payment_id = ?", transactionID).
		Set("payment_status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("ticket_id = ?", id).
		Exec(ctx)
	return expectRow(res, err, id)
}

func (d *DB) UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus) error {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("payment_status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("ticket_id = ?", id).
		Exec(ctx)
	return expectRow(res, err, id)
}

// MarkPaid moves a pending ticket to paid and books the sale against the event
// in one transaction. It reports false when another caller already moved the ticket.
func (d *DB) MarkPaid(ctx context.Context, id string) (bool, error) {
	var won bool
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		ticket, err := d.getOne(ctx, tx, func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("ticket_id = ?", id)
		})
		if err != nil {
			return err
		}

		res, err := tx.NewUpdate().
			Model((*models.Ticket)(nil)).
			Set("status = ?", models.TicketStatusPaid).
			Set("payment_status = ?", models.PaymentStatusCompleted).
			Set("updated_at = ?", time.Now().UTC()).
			Where("ticket_id = ?", id).
			Where("status = ?", models.TicketStatusPending).
			Exec(ctx)
		if won, err = affected(res, err); err != nil || !won {
			return err
		}
		return d.Counters.IncrementSales(ctx, tx, ticket.EventID, ticket.Quantity, ticket.TotalPrice)
	})
	if err != nil {
		return false, fmt.Errorf("mark ticket %s paid: %w", id, err)
	}
	return won, nil
}

// MarkPaymentFailed cancels a ticket that is still pending. Pending tickets were
// never counted, so inventory is left alone.
func (d *DB) MarkPaymentFailed(ctx context.Context, id string, status models.PaymentStatus) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", models.TicketStatusCancelled).
		Set("payment_status = ?", status).
		Set("updated_at = ?", time.Now().UTC()).
		Where("ticket_id = ?", id).
		Where("status = ?", models.TicketStatusPending).
		Exec(ctx)
	won, err := affected(res, err)
	if err != nil {
		return false, fmt.Errorf("mark ticket %s failed: %w", id, err)
	}
	return won, nil
}

// MarkScanned admits a paid, unscanned ticket and bumps the event entry counter.
func (d *DB) MarkScanned(ctx context.Context, id, scannedBy string, at time.Time) (bool, error) {
	var won bool
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Ticket)(nil)).
			Set("status = ?", models.TicketStatusUsed).
			Set("scanned = ?", true).
			Set("scanned_at = ?", at.UTC()).
			Set("scanned_by = ?", scannedBy).
			Set("updated_at = ?", time.Now().UTC()).
			Where("ticket_id = ?", id).
			Where("status = ?", models.TicketStatusPaid).
			Where("scanned = ?", false).
			Exec(ctx)
		if won, err = affected(res, err); err != nil || !won {
			return err
		}

		var eventID string
		if err := tx.NewSelect().
			Model((*models.Ticket)(nil)).
			Column("event_id").
			Where("ticket_id = ?", id).
			Scan(ctx, &eventID); err != nil {
			return err
		}
		return d.Counters.IncrementEntries(ctx, tx, eventID)
	})
	if err != nil {
		return false, fmt.Errorf("mark ticket %s scanned: %w", id, err)
	}
	return won, nil
}

// CancelTicket moves a ticket from the status the caller observed to cancelled.
// A paid ticket also gives its sale back to the event.
func (d *DB) CancelTicket(ctx context.Context, ticket *models.Ticket) (bool, error) {
	var won bool
	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		res, err := tx.NewUpdate().
			Model((*models.Ticket)(nil)).
			Set("status = ?", models.TicketStatusCancelled).
			Set("updated_at = ?", time.Now().UTC()).
			Where("ticket_id = ?", ticket.TicketID).
			Where("status = ?", ticket.Status).
			Where("scanned = ?", false).
			Exec(ctx)
		if won, err = affected(res, err); err != nil || !won {
			return err
		}
		if ticket.Status != models.TicketStatusPaid {
			return nil
		}
		return d.Counters.DecrementSales(ctx, tx, ticket.EventID, ticket.Quantity, ticket.TotalPrice)
	})
	if err != nil {
		return false, fmt.Errorf("cancel ticket %s: %w", ticket.TicketID, err)
	}
	return won, nil
}

func (d *DB) getOne(ctx context.Context, idb bun.IDB, where func(*bun.SelectQuery) *bun.SelectQuery) (*models.Ticket, error) {
	var ticket models.Ticket
	err := where(idb.NewSelect().Model(&ticket)).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTicketNotFound
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

func affected(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func expectRow(res sql.Result, err error, id string) error {
	ok, err := affected(res, err)
	if err != nil {
		return fmt.Errorf("update ticket %s: %w", id, err)
	}
	if !ok {
		return ErrTicketNotFound
	}
	return nil
}
