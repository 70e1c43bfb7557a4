// Package testutil builds the in-memory databases used by package tests.
package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"kanzey-ticketing/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	_ "github.com/uptrace/bun/driver/sqliteshim"
)

// NewSQLiteDB opens an in-memory SQLite database with every table created.
// A single connection keeps all queries on the same in-memory database.
func NewSQLiteDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = bunDB.Close() })

	ctx := context.Background()
	for _, model := range []interface{}{
		(*models.Event)(nil),
		(*models.Ticket)(nil),
		(*models.PaymentAttempt)(nil),
	} {
		_, err := bunDB.NewCreateTable().Model(model).IfNotExists().Exec(ctx)
		require.NoError(t, err)
	}
	return bunDB
}

// Event returns a published event one week out with the given capacity and price.
func Event(id string, capacity int, price int64) *models.Event {
	now := time.Now().UTC()
	return &models.Event{
		ID:          id,
		OrganizerID: "org-1",
		Title:       "Concert " + id,
		Date:        now.Add(7 * 24 * time.Hour),
		Location:    "Dakar Arena",
		Price:       decimal.NewFromInt(price),
		Currency:    models.DefaultCurrency,
		Status:      models.EventStatusPublished,
		Capacity:    capacity,
		Revenue:     decimal.Zero,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func InsertEvent(t *testing.T, db *bun.DB, event *models.Event) {
	t.Helper()
	_, err := db.NewInsert().Model(event).Exec(context.Background())
	require.NoError(t, err)
}

// Ticket returns a ticket for event in the given status, priced at unit x quantity.
func Ticket(id, userID, eventID string, status models.TicketStatus, quantity int, unit int64) *models.Ticket {
	now := time.Now().UTC()
	unitPrice := decimal.NewFromInt(unit)
	payment := models.PaymentStatusPending
	if status == models.TicketStatusPaid || status == models.TicketStatusUsed {
		payment = models.PaymentStatusCompleted
	}
	return &models.Ticket{
		TicketID:      id,
		UserID:        userID,
		EventID:       eventID,
		PaymentMethod: models.PaymentMethodWave,
		Quantity:      quantity,
		UnitPrice:     unitPrice,
		TotalPrice:    unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
		Currency:      models.DefaultCurrency,
		Status:        status,
		PaymentStatus: payment,
		QRCode:        "http://localhost:5173/verify-ticket/" + id,
		Scanned:       status == models.TicketStatusUsed,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func InsertTicket(t *testing.T, db *bun.DB, ticket *models.Ticket) {
	t.Helper()
	_, err := db.NewInsert().Model(ticket).Exec(context.Background())
	require.NoError(t, err)
}

func ReloadEvent(t *testing.T, db *bun.DB, id string) *models.Event {
	t.Helper()
	var ev models.Event
	require.NoError(t, db.NewSelect().Model(&ev).Where("id = ?", id).Scan(context.Background()))
	return &ev
}

// Attempts returns a ticket's payment attempts oldest first.
func Attempts(t *testing.T, db *bun.DB, ticketID string) []models.PaymentAttempt {
	t.Helper()
	var attempts []models.PaymentAttempt
	require.NoError(t, db.NewSelect().
		Model(&attempts).
		Where("ticket_id = ?", ticketID).
		OrderExpr("created_at ASC").
		Scan(context.Background()))
	return attempts
}

func ReloadTicket(t *testing.T, db *bun.DB, id string) *models.Ticket {
	t.Helper()
	var tk models.Ticket
	require.NoError(t, db.NewSelect().Model(&tk).Where("ticket_id = ?", id).Scan(context.Background()))
	return &tk
}
