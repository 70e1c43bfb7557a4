package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type EventStatus string

const (
	EventStatusDraft     EventStatus = "draft"
	EventStatusPublished EventStatus = "published"
	EventStatusCancelled EventStatus = "cancelled"
	EventStatusCompleted EventStatus = "completed"
)

// Event holds the fields of an organizer's event that purchase and inventory need.
type Event struct {
	bun.BaseModel `bun:"table:events,alias:e"`

	ID          string          `bun:"id,pk" json:"id"`
	OrganizerID string          `bun:"organizer_id,nullzero" json:"organizerId,omitempty"`
	Title       string          `bun:"title,notnull" json:"title"`
	Date        time.Time       `bun:"date,notnull" json:"date"`
	Location    string          `bun:"location,nullzero" json:"location,omitempty"`
	Price       decimal.Decimal `bun:"price,type:decimal(14,2),notnull" json:"price"`
	Currency    string          `bun:"currency,notnull" json:"currency"`
	Status      EventStatus     `bun:"status,notnull" json:"status"`
	Capacity    int             `bun:"capacity,notnull" json:"capacity"`
	TicketsSold int             `bun:"tickets_sold,notnull" json:"ticketsSold"`
	TicketsUsed int             `bun:"tickets_used,notnull" json:"ticketsUsed"`
	Revenue     decimal.Decimal `bun:"revenue,type:decimal(14,2),notnull" json:"revenue"`
	CreatedAt   time.Time       `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt   time.Time       `bun:"updated_at,notnull" json:"updatedAt"`
}

// AvailableTickets is advisory: it is read outside any reservation.
func (e *Event) AvailableTickets() int {
	if e.TicketsSold >= e.Capacity {
		return 0
	}
	return e.Capacity - e.TicketsSold
}

func (e *Event) HasPassed(now time.Time) bool {
	return !e.Date.After(now)
}

// HoursUntil returns the fractional number of hours between now and the event start.
func (e *Event) HoursUntil(now time.Time) float64 {
	return e.Date.Sub(now).Hours()
}
