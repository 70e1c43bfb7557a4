package notify

import (
	"context"
	"fmt"
	"time"

	"kanzey-ticketing/internal/config"
	"kanzey-ticketing/internal/logger"
	"kanzey-ticketing/internal/models"

	"github.com/shopspring/decimal"
)

type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload interface{}) error
}

type TicketIssuedEvent struct {
	TicketID      string          `json:"ticketId"`
	UserID        string          `json:"userId"`
	EventID       string          `json:"eventId"`
	EventTitle    string          `json:"eventTitle"`
	EventDate     time.Time       `json:"eventDate"`
	EventLocation string          `json:"eventLocation,omitempty"`
	Quantity      int             `json:"quantity"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	Currency      string          `json:"currency"`
	QRCode        string          `json:"qrCode"`
	HolderEmail   string          `json:"holderEmail,omitempty"`
	HolderName    string          `json:"holderName,omitempty"`
	Resent        bool            `json:"resent"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

type TicketCreatedEvent struct {
	TicketID      string               `json:"ticketId"`
	UserID        string               `json:"userId"`
	EventID       string               `json:"eventId"`
	Quantity      int                  `json:"quantity"`
	TotalPrice    decimal.Decimal      `json:"totalPrice"`
	Currency      string               `json:"currency"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod"`
	PaymentID     string               `json:"paymentId"`
	OccurredAt    time.Time            `json:"occurredAt"`
}

// Notifier fans ticket lifecycle events out to Kafka. Without a publisher it only logs,
// which is how the service runs with KAFKA_ENABLED=false.
type Notifier struct {
	publisher Publisher
	topics    config.TopicConfig
	log       *logger.Logger
}

func New(publisher Publisher, topics config.TopicConfig, log *logger.Logger) *Notifier {
	return &Notifier{publisher: publisher, topics: topics, log: log}
}

// TicketIssued is what mail and PDF rendering downstream listen to.
func (n *Notifier) TicketIssued(ctx context.Context, ticket *models.Ticket, event *models.Event, resent bool) error {
	msg := TicketIssuedEvent{
		TicketID:    ticket.TicketID,
		UserID:      ticket.UserID,
		EventID:     ticket.EventID,
		Quantity:    ticket.Quantity,
		TotalPrice:  ticket.TotalPrice,
		Currency:    ticket.Currency,
		QRCode:      ticket.QRCode,
		HolderEmail: ticket.HolderEmail,
		HolderName:  ticket.HolderName(),
		Resent:      resent,
		OccurredAt:  time.Now().UTC(),
	}
	if event != nil {
		msg.EventTitle = event.Title
		msg.EventDate = event.Date
		msg.EventLocation = event.Location
	}
	return n.publish(ctx, n.topics.TicketIssued, ticket.TicketID, msg)
}

func (n *Notifier) TicketCreated(ctx context.Context, ticket *models.Ticket) error {
	return n.publish(ctx, n.topics.TicketCreated, ticket.TicketID, TicketCreatedEvent{
		TicketID:      ticket.TicketID,
		UserID:        ticket.UserID,
		EventID:       ticket.EventID,
		Quantity:      ticket.Quantity,
		TotalPrice:    ticket.TotalPrice,
		Currency:      ticket.Currency,
		PaymentMethod: ticket.PaymentMethod,
		PaymentID:     ticket.PaymentID,
		OccurredAt:    time.Now().UTC(),
	})
}

func (n *Notifier) PaymentUpdated(ctx context.Context, update models.PaymentUpdate) error {
	return n.publish(ctx, n.topics.PaymentUpdated, update.TicketID, update)
}

func (n *Notifier) publish(ctx context.Context, topic, key string, payload interface{}) error {
	if n.publisher == nil {
		n.log.Info("NOTIFY", fmt.Sprintf("%s %s (publisher disabled)", topic, key))
		return nil
	}
	return n.publisher.Publish(ctx, topic, key, payload)
}
