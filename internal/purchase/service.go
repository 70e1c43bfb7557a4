package purchase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"kanzey-ticketing/internal/apperr"
	inventorydb "kanzey-ticketing/internal/inventory/db"
	"kanzey-ticketing/internal/logger"
	"kanzey-ticketing/internal/models"
	"kanzey-ticketing/internal/monitoring"
	"kanzey-ticketing/internal/payment"
	"kanzey-ticketing/internal/tickets/qr"
	"kanzey-ticketing/internal/utils"

	"github.com/shopspring/decimal"
)

const publishTimeout = 3 * time.Second

type TicketStore interface {
	CreateTicket(ctx context.Context, ticket *models.Ticket) error
	DeletePending(ctx context.Context, id string) error
	SetPaymentReference(ctx context.Context, id, transactionID string, status models.PaymentStatus) error
}

type EventReader interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
}

type PaymentInitiator interface {
	Initiate(ctx context.Context, req payment.InitiateRequest) (*payment.InitiateResult, error)
}

type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, attempt *models.PaymentAttempt) error
}

type EventPublisher interface {
	TicketCreated(ctx context.Context, ticket *models.Ticket) error
}

type Options struct {
	QRBaseURL      string
	CallbackURL    string
	RedirectURL    string
	PaymentTimeout time.Duration
	MaxQuantity    int
}

type Service struct {
	Tickets  TicketStore
	Events   EventReader
	Gateway  PaymentInitiator
	Attempts AttemptRecorder
	Kafka    EventPublisher
	opts     Options
	log      *logger.Logger
	now      func() time.Time
}

func NewService(tickets TicketStore, events EventReader, gateway PaymentInitiator, attempts AttemptRecorder, kafka EventPublisher, opts Options, log *logger.Logger) *Service {
	if opts.PaymentTimeout <= 0 {
		opts.PaymentTimeout = 20 * time.Second
	}
	if opts.MaxQuantity <= 0 {
		opts.MaxQuantity = 10
	}
	return &Service{
		Tickets:  tickets,
		Events:   events,
		Gateway:  gateway,
		Attempts: attempts,
		Kafka:    kafka,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// Purchase creates a pending ticket and asks the provider to collect payment for it.
// If the provider cannot be reached the ticket is removed again.
func (s *Service) Purchase(ctx context.Context, req models.PurchaseRequest, buyer models.Principal) (*models.PurchaseResult, error) {
	req.RecipientNumber = strings.ReplaceAll(req.RecipientNumber, " ", "")
	if err := utils.ValidateStruct(req); err != nil {
		monitoring.RecordPurchase(req.PaymentMethod, "invalid")
		return nil, apperr.Validation(err.Error())
	}
	if req.Quantity > s.opts.MaxQuantity {
		monitoring.RecordPurchase(req.PaymentMethod, "invalid")
		return nil, apperr.Validation(fmt.Sprintf("quantity must be at most %d", s.opts.MaxQuantity))
	}
	provider, err := payment.ParseProvider(req.PaymentMethod)
	if err != nil {
		return nil, apperr.Validation(err.Error())
	}

	event, err := s.Events.GetEvent(ctx, req.EventID)
	if errors.Is(err, inventorydb.ErrEventNotFound) {
		return nil, apperr.NotFound("Event not found")
	}
	if err != nil {
		return nil, apperr.Internal("Could not load event", err)
	}
	if err := s.checkEvent(event, req.Quantity); err != nil {
		monitoring.RecordPurchase(req.PaymentMethod, "rejected")
		return nil, err
	}

	ticket := s.newTicket(req, buyer, provider, event)
	if err := s.Tickets.CreateTicket(ctx, ticket); err != nil {
		return nil, apperr.Internal("Could not create ticket", err)
	}
	s.log.LogTicket("CREATE", ticket.TicketID, fmt.Sprintf("pending, %d x %s %s for event %s", ticket.Quantity, ticket.UnitPrice, ticket.Currency, event.ID))

	initCtx, cancel := context.WithTimeout(ctx, s.opts.PaymentTimeout)
	defer cancel()

	res, err := s.Gateway.Initiate(initCtx, payment.InitiateRequest{
		Provider:        provider,
		Amount:          ticket.TotalPrice,
		RecipientNumber: req.RecipientNumber,
		RecipientEmail:  buyer.Email,
		FirstName:       buyer.FirstName,
		LastName:        buyer.LastName,
		CallbackURL:     s.opts.CallbackURL,
		ClientRef:       ticket.TicketID,
	})
	if err != nil {
		s.rollback(ctx, ticket, provider, err)
		monitoring.RecordPurchase(req.PaymentMethod, "upstream_error")
		return nil, apperr.Upstream("Payment initiation failed", err)
	}

	if err := s.Tickets.SetPaymentReference(ctx, ticket.TicketID, res.TransactionID, models.PaymentStatusProcessing); err != nil {
		return nil, apperr.Internal("Could not save payment reference", err)
	}
	ticket.PaymentID = res.TransactionID
	ticket.PaymentStatus = models.PaymentStatusProcessing

	s.recordAttempt(ctx, &models.PaymentAttempt{
		TicketID:        ticket.TicketID,
		TransactionID:   res.TransactionID,
		Provider:        provider,
		ServiceCode:     res.ServiceCode,
		Source:          models.AttemptSourceInitiate,
		RawStatus:       res.RawStatus,
		CanonicalStatus: models.PaymentStatusProcessing,
		RawPayload:      string(res.Raw),
	})
	pctx, pcancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer pcancel()
	if err := s.Kafka.TicketCreated(pctx, ticket); err != nil {
		s.log.Warn("PURCHASE", fmt.Sprintf("ticket.created for %s not published: %v", ticket.TicketID, err))
	}

	monitoring.RecordPurchase(req.PaymentMethod, "initiated")
	s.log.LogPayment("INITIATED", ticket.TicketID, fmt.Sprintf("transaction %s via %s", res.TransactionID, provider))

	return &models.PurchaseResult{
		Ticket: ticket.Summary(),
		Payment: models.PaymentRedirect{
			TransactionID: res.TransactionID,
			Status:        models.PaymentStatusProcessing,
			PaymentURL:    res.PaymentURL,
			RedirectURL:   s.opts.RedirectURL,
		},
		Event: models.EventBrief{
			Title:    event.Title,
			Date:     event.Date,
			Location: event.Location,
		},
	}, nil
}

func (s *Service) checkEvent(event *models.Event, quantity int) error {
	if event.AvailableTickets() < quantity {
		return apperr.Conflict(fmt.Sprintf("Only %d tickets left", event.AvailableTickets()))
	}
	if event.HasPassed(s.now()) {
		return apperr.Conflict("Event has already taken place")
	}
	if event.Status != models.EventStatusPublished {
		return apperr.Conflict("Event is not open for sale")
	}
	return nil
}

func (s *Service) newTicket(req models.PurchaseRequest, buyer models.Principal, provider payment.Provider, event *models.Event) *models.Ticket {
	id := utils.GenerateTicketID()
	currency := event.Currency
	if currency == "" {
		currency = models.DefaultCurrency
	}
	return &models.Ticket{
		TicketID:        id,
		UserID:          buyer.UserID,
		EventID:         event.ID,
		PaymentMethod:   provider,
		Quantity:        req.Quantity,
		UnitPrice:       event.Price,
		TotalPrice:      event.Price.Mul(decimal.NewFromInt(int64(req.Quantity))),
		Currency:        currency,
		Status:          models.TicketStatusPending,
		PaymentStatus:   models.PaymentStatusPending,
		QRCode:          qr.BuildPayload(s.opts.QRBaseURL, id),
		HolderFirstName: buyer.FirstName,
		HolderLastName:  buyer.LastName,
		HolderEmail:     buyer.Email,
		HolderPhone:     req.RecipientNumber,
	}
}

// rollback removes the pending ticket after a failed initiation. It runs even if
// the request context is already gone.
func (s *Service) rollback(ctx context.Context, ticket *models.Ticket, provider payment.Provider, cause error) {
	s.log.Error("PURCHASE", fmt.Sprintf("payment initiation for %s failed: %v", ticket.TicketID, cause))

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.Tickets.DeletePending(cctx, ticket.TicketID); err != nil {
		s.log.Error("PURCHASE", fmt.Sprintf("could not remove pending ticket %s: %v", ticket.TicketID, err))
	} else {
		s.log.LogTicket("ROLLBACK", ticket.TicketID, "pending ticket removed")
	}

	attempt := &models.PaymentAttempt{
		TicketID:        ticket.TicketID,
		Provider:        provider,
		Source:          models.AttemptSourceInitiate,
		CanonicalStatus: models.PaymentStatusFailed,
		RawPayload:      cause.Error(),
	}
	var perr *payment.Error
	if errors.As(cause, &perr) {
		attempt.RawStatus = fmt.Sprintf("HTTP %d", perr.StatusCode)
		if perr.Timeout() {
			attempt.RawStatus = "TIMEOUT"
		}
	}
	s.recordAttempt(cctx, attempt)
}

func (s *Service) recordAttempt(ctx context.Context, attempt *models.PaymentAttempt) {
	if s.Attempts == nil {
		return
	}
	if err := s.Attempts.RecordAttempt(ctx, attempt); err != nil {
		s.log.Warn("PURCHASE", fmt.Sprintf("payment attempt for %s not recorded: %v", attempt.TicketID, err))
	}
}
