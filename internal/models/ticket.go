package models

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	TicketStatusPending   TicketStatus = "pending"
	TicketStatusPaid      TicketStatus = "paid"
	TicketStatusCancelled TicketStatus = "cancelled"
	TicketStatusRefunded  TicketStatus = "refunded"
	TicketStatusUsed      TicketStatus = "used"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusPending, TicketStatusPaid, TicketStatusCancelled, TicketStatusRefunded, TicketStatusUsed:
		return true
	}
	return false
}

const DefaultCurrency = "FCFA"

type Ticket struct {
	bun.BaseModel `bun:"table:tickets,alias:t"`

	TicketID      string          `bun:"ticket_id,pk" json:"ticketId"`
	UserID        string          `bun:"user_id,notnull" json:"userId"`
	EventID       string          `bun:"event_id,notnull" json:"eventId"`
	PaymentID     string          `bun:"payment_id,nullzero,unique" json:"paymentId,omitempty"`
	PaymentMethod PaymentMethod   `bun:"payment_method,notnull" json:"paymentMethod"`
	Quantity      int             `bun:"quantity,notnull" json:"quantity"`
	UnitPrice     decimal.Decimal `bun:"unit_price,type:decimal(14,2),notnull" json:"unitPrice"`
	TotalPrice    decimal.Decimal `bun:"total_price,type:decimal(14,2),notnull" json:"totalPrice"`
	Currency      string          `bun:"currency,notnull" json:"currency"`
	Status        TicketStatus    `bun:"status,notnull" json:"status"`
	PaymentStatus PaymentStatus   `bun:"payment_status,notnull" json:"paymentStatus"`

	QRCode    string    `bun:"qr_code,notnull" json:"qrCode"`
	Scanned   bool      `bun:"scanned,notnull" json:"scanned"`
	ScannedAt time.Time `bun:"scanned_at,nullzero" json:"scannedAt,omitempty"`
	ScannedBy string    `bun:"scanned_by,nullzero" json:"scannedBy,omitempty"`

	HolderFirstName string `bun:"holder_first_name,nullzero" json:"holderFirstName,omitempty"`
	HolderLastName  string `bun:"holder_last_name,nullzero" json:"holderLastName,omitempty"`
	HolderEmail     string `bun:"holder_email,nullzero" json:"holderEmail,omitempty"`
	HolderPhone     string `bun:"holder_phone,nullzero" json:"holderPhone,omitempty"`

	CreatedAt time.Time `bun:"created_at,notnull" json:"createdAt"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updatedAt"`
}

// IsValidForEntry reports whether the ticket can still be admitted at the venue.
func (t *Ticket) IsValidForEntry() bool {
	return t.Status == TicketStatusPaid && !t.Scanned
}

// IsUsed is true once the ticket has been admitted.
func (t *Ticket) IsUsed() bool {
	return t.Scanned || t.Status == TicketStatusUsed
}

func (t *Ticket) HolderName() string {
	return strings.TrimSpace(t.HolderFirstName + " " + t.HolderLastName)
}

// TicketSummary is what the buyer sees right after a purchase.
type TicketSummary struct {
	TicketID      string          `json:"ticketId"`
	EventID       string          `json:"eventId"`
	Quantity      int             `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	Currency      string          `json:"currency"`
	Status        TicketStatus    `json:"status"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	QRCode        string          `json:"qrCode"`
}

func (t *Ticket) Summary() TicketSummary {
	return TicketSummary{
		TicketID:      t.TicketID,
		EventID:       t.EventID,
		Quantity:      t.Quantity,
		UnitPrice:     t.UnitPrice,
		TotalPrice:    t.TotalPrice,
		Currency:      t.Currency,
		Status:        t.Status,
		PaymentStatus: t.PaymentStatus,
		QRCode:        t.QRCode,
	}
}

type TicketPage struct {
	Tickets    []Ticket   `json:"tickets"`
	Pagination Pagination `json:"pagination"`
}

type Pagination struct {
	CurrentPage  int `json:"currentPage"`
	TotalPages   int `json:"totalPages"`
	TotalTickets int `json:"totalTickets"`
}
