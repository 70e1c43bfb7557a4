package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusCancelled  PaymentStatus = "cancelled"
)

// IsFailure covers both provider-side failure and buyer/provider cancellation.
func (s PaymentStatus) IsFailure() bool {
	return s == PaymentStatusFailed || s == PaymentStatusCancelled
}

type PaymentMethod string

const (
	PaymentMethodOrangeMoney PaymentMethod = "orange_money"
	PaymentMethodFreeMoney   PaymentMethod = "free_money"
	PaymentMethodWave        PaymentMethod = "wave"
	PaymentMethodTouchPoint  PaymentMethod = "touch_point"
)

type AttemptSource string

const (
	AttemptSourceInitiate AttemptSource = "initiate"
	AttemptSourceCallback AttemptSource = "callback"
	AttemptSourceVerify   AttemptSource = "verify"
)

// PaymentAttempt is an append-only audit row of every provider exchange.
type PaymentAttempt struct {
	bun.BaseModel `bun:"table:payment_attempts,alias:pa"`

	ID              string        `bun:"id,pk" json:"id"`
	TicketID        string        `bun:"ticket_id,notnull" json:"ticketId"`
	TransactionID   string        `bun:"transaction_id,nullzero" json:"transactionId,omitempty"`
	Provider        PaymentMethod `bun:"provider,nullzero" json:"provider,omitempty"`
	ServiceCode     string        `bun:"service_code,nullzero" json:"serviceCode,omitempty"`
	Source          AttemptSource `bun:"source,notnull" json:"source"`
	RawStatus       string        `bun:"raw_status,nullzero" json:"rawStatus,omitempty"`
	CanonicalStatus PaymentStatus `bun:"canonical_status,notnull" json:"canonicalStatus"`
	RawPayload      string        `bun:"raw_payload,nullzero" json:"rawPayload,omitempty"`
	CreatedAt       time.Time     `bun:"created_at,notnull" json:"createdAt"`
}

type PurchaseRequest struct {
	EventID         string `json:"eventId" validate:"required"`
	Quantity        int    `json:"quantity" validate:"required,min=1,max=10"`
	RecipientNumber string `json:"recipientNumber" validate:"required,sn_phone"`
	PaymentMethod   string `json:"paymentMethod" validate:"required,oneof=orange_money free_money wave touch_point"`
}

type PaymentRedirect struct {
	TransactionID string        `json:"transactionId"`
	Status        PaymentStatus `json:"status"`
	PaymentURL    string        `json:"paymentUrl,omitempty"`
	RedirectURL   string        `json:"redirectUrl,omitempty"`
}

type EventBrief struct {
	Title    string    `json:"title"`
	Date     time.Time `json:"date"`
	Location string    `json:"location,omitempty"`
}

type PurchaseResult struct {
	Ticket  TicketSummary   `json:"ticket"`
	Payment PaymentRedirect `json:"payment"`
	Event   EventBrief      `json:"event"`
}

// PaymentUpdate is the outcome of applying a provider status to a ticket.
type PaymentUpdate struct {
	TicketID      string          `json:"ticketId"`
	TransactionID string          `json:"transactionId,omitempty"`
	EventID       string          `json:"eventId"`
	Status        TicketStatus    `json:"status"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	IsPaid        bool            `json:"isPaid"`
	Changed       bool            `json:"changed"`
	Source        AttemptSource   `json:"source"`
	Amount        decimal.Decimal `json:"amount"`
	At            time.Time       `json:"at"`
}

type PaymentMethodInfo struct {
	ID          PaymentMethod `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	IsActive    bool          `json:"isActive"`
}
