package tickets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kanzey-ticketing/internal/apperr"
	"kanzey-ticketing/internal/logger"
	"kanzey-ticketing/internal/models"
	ticketdb "kanzey-ticketing/internal/tickets/db"
	"kanzey-ticketing/internal/tickets/qr"
)

const maxPageLimit = 50

type TicketDBLayer interface {
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	ListByUser(ctx context.Context, userID string, status models.TicketStatus, offset, limit int) ([]models.Ticket, int, error)
	CancelTicket(ctx context.Context, ticket *models.Ticket) (bool, error)
}

type EventReader interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
}

type Notifier interface {
	TicketIssued(ctx context.Context, ticket *models.Ticket, event *models.Event, resent bool) error
}

type Options struct {
	QRBaseURL        string
	CancelCutoff     time.Duration
	DefaultPageLimit int
}

type TicketService struct {
	DB       TicketDBLayer
	Events   EventReader
	Notifier Notifier
	opts     Options
	log      *logger.Logger
	now      func() time.Time
}

func NewTicketService(db TicketDBLayer, events EventReader, notifier Notifier, opts Options, log *logger.Logger) *TicketService {
	if opts.DefaultPageLimit <= 0 {
		opts.DefaultPageLimit = 10
	}
	return &TicketService{
		DB:       db,
		Events:   events,
		Notifier: notifier,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

// GetTicket returns a ticket to its owner or to venue staff.
func (s *TicketService) GetTicket(ctx context.Context, id string, p models.Principal) (*models.Ticket, error) {
	ticket, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket.UserID != p.UserID && !p.CanScan() {
		return nil, apperr.Forbidden("You do not have access to this ticket")
	}
	return ticket, nil
}

// ListTickets pages through the caller's tickets, newest first. page starts at 1.
func (s *TicketService) ListTickets(ctx context.Context, p models.Principal, status models.TicketStatus, page, limit int) (*models.TicketPage, error) {
	if status != "" && !status.Valid() {
		return nil, apperr.Validation(fmt.Sprintf("unknown ticket status %q", status))
	}
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = s.opts.DefaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	list, total, err := s.DB.ListByUser(ctx, p.UserID, status, (page-1)*limit, limit)
	if err != nil {
		return nil, apperr.Internal("Could not list tickets", err)
	}
	if list == nil {
		list = []models.Ticket{}
	}
	return &models.TicketPage{
		Tickets: list,
		Pagination: models.Pagination{
			CurrentPage:  page,
			TotalPages:   (total + limit - 1) / limit,
			TotalTickets: total,
		},
	}, nil
}

// CancelTicket cancels an unscanned ticket while the event is far enough away.
// A paid ticket gives its seats and revenue back to the event.
func (s *TicketService) CancelTicket(ctx context.Context, id string, p models.Principal) (*models.Ticket, error) {
	ticket, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket.UserID != p.UserID && !p.IsAdmin() {
		return nil, apperr.Forbidden("You can only cancel your own tickets")
	}

	switch {
	case ticket.IsUsed():
		return nil, apperr.Conflict("A used ticket cannot be cancelled")
	case ticket.Status == models.TicketStatusCancelled, ticket.Status == models.TicketStatusRefunded:
		return nil, apperr.Conflict(fmt.Sprintf("Ticket is already %s", ticket.Status))
	}

	event, err := s.Events.GetEvent(ctx, ticket.EventID)
	if err != nil {
		return nil, apperr.Internal("Could not load event", err)
	}
	if event.HoursUntil(s.now()) < s.opts.CancelCutoff.Hours() {
		return nil, apperr.Conflict(fmt.Sprintf("Tickets cannot be cancelled less than %.0f hours before the event", s.opts.CancelCutoff.Hours()))
	}

	won, err := s.DB.CancelTicket(ctx, ticket)
	if err != nil {
		return nil, apperr.Internal("Could not cancel ticket", err)
	}
	if !won {
		return nil, apperr.Conflict("Ticket changed while cancelling, please retry")
	}

	s.log.LogTicket("CANCELLED", ticket.TicketID, fmt.Sprintf("by %s, was %s", p.UserID, ticket.Status))
	return s.load(ctx, id)
}

// QRCodePNG renders the ticket's verification code for its owner.
func (s *TicketService) QRCodePNG(ctx context.Context, id string, p models.Principal) ([]byte, error) {
	ticket, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket.UserID != p.UserID {
		return nil, apperr.Forbidden("You do not have access to this ticket")
	}

	payload := ticket.QRCode
	if payload == "" {
		payload = qr.BuildPayload(s.opts.QRBaseURL, ticket.TicketID)
	}
	png, err := qr.PNG(payload, qr.DefaultPNGSize)
	if err != nil {
		return nil, apperr.Internal("Could not render QR code", err)
	}
	return png, nil
}

// ResendTicket publishes the ticket-issued notification again for a paid ticket.
func (s *TicketService) ResendTicket(ctx context.Context, id string, p models.Principal) error {
	ticket, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if ticket.UserID != p.UserID && !p.IsAdmin() {
		return apperr.Forbidden("You do not have access to this ticket")
	}
	if ticket.Status != models.TicketStatusPaid {
		return apperr.Conflict("Only paid tickets can be resent")
	}

	event, err := s.Events.GetEvent(ctx, ticket.EventID)
	if err != nil {
		return apperr.Internal("Could not load event", err)
	}
	if err := s.Notifier.TicketIssued(ctx, ticket, event, true); err != nil {
		return apperr.Upstream("Could not send ticket", err)
	}
	s.log.LogTicket("RESENT", ticket.TicketID, "by "+p.UserID)
	return nil
}

func (s *TicketService) load(ctx context.Context, id string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicketByID(ctx, id)
	if errors.Is(err, ticketdb.ErrTicketNotFound) {
		return nil, apperr.NotFound("Ticket not found")
	}
	if err != nil {
		return nil, apperr.Internal("Could not load ticket", err)
	}
	return ticket, nil
}
