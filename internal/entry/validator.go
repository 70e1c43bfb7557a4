// Package entry admits ticket holders at the venue.
package entry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"kanzey-ticketing/internal/apperr"
	"kanzey-ticketing/internal/logger"
	"kanzey-ticketing/internal/models"
	"kanzey-ticketing/internal/monitoring"
	ticketdb "kanzey-ticketing/internal/tickets/db"
	"kanzey-ticketing/internal/tickets/qr"
	"kanzey-ticketing/internal/utils"
)

type TicketStore interface {
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	MarkScanned(ctx context.Context, id, scannedBy string, at time.Time) (bool, error)
}

type EventReader interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
}

type Validator struct {
	Tickets TicketStore
	Events  EventReader
	loc     *time.Location
	log     *logger.Logger
	now     func() time.Time
}

func NewValidator(tickets TicketStore, events EventReader, venueTimezone string, log *logger.Logger) *Validator {
	return &Validator{
		Tickets: tickets,
		Events:  events,
		loc:     utils.LoadLocation(venueTimezone),
		log:     log,
		now:     time.Now,
	}
}

// Validate checks a scanned code and admits the ticket at most once. Rejections
// are reported in the result; only access and storage failures return an error.
func (v *Validator) Validate(ctx context.Context, code string, agent models.Principal) (*models.ValidationResult, error) {
	if !agent.CanScan() {
		v.log.LogSecurity("SCAN_DENIED", fmt.Sprintf("user %s with role %q tried to validate a ticket", agent.UserID, agent.Role))
		return nil, apperr.Forbidden("Only agents and admins can validate tickets")
	}

	ticketID, err := qr.ParseTicketID(code)
	if err != nil {
		return v.finish(&models.ValidationResult{
			Outcome: models.ValidationInvalid,
			Message: "Invalid ticket code",
		}, agent), nil
	}

	ticket, err := v.Tickets.GetTicketByID(ctx, ticketID)
	if errors.Is(err, ticketdb.ErrTicketNotFound) {
		return v.finish(&models.ValidationResult{
			Outcome:  models.ValidationNotFound,
			TicketID: ticketID,
			Message:  "Ticket not found",
		}, agent), nil
	}
	if err != nil {
		return nil, apperr.Internal("Could not load ticket", err)
	}

	event := v.event(ctx, ticket.EventID)

	if !ticket.IsValidForEntry() {
		return v.finish(v.rejected(ticket, event), agent), nil
	}

	now := v.now().UTC()
	won, err := v.Tickets.MarkScanned(ctx, ticket.TicketID, agent.UserID, now)
	if err != nil {
		return nil, apperr.Internal("Could not record entry", err)
	}
	if !won {
		// Someone else scanned it between our read and the update.
		winner, err := v.Tickets.GetTicketByID(ctx, ticket.TicketID)
		if err != nil {
			return nil, apperr.Internal("Could not reload ticket", err)
		}
		return v.finish(v.rejected(winner, event), agent), nil
	}

	ticket.Status = models.TicketStatusUsed
	ticket.Scanned = true
	ticket.ScannedAt = now
	ticket.ScannedBy = agent.UserID

	res := describe(ticket, event)
	res.IsValid = true
	res.Outcome = models.ValidationAdmitted
	res.Message = "Ticket valid, entry granted"
	if event != nil && !utils.SameDay(event.Date, now, v.loc) {
		res.Warning = fmt.Sprintf("This ticket is for %s, not today", event.Date.In(v.loc).Format("02/01/2006"))
	}
	return v.finish(res, agent), nil
}

func (v *Validator) rejected(ticket *models.Ticket, event *models.Event) *models.ValidationResult {
	res := describe(ticket, event)
	if ticket.IsUsed() {
		res.Outcome = models.ValidationAlreadyUsed
		res.Message = "Ticket already used"
		if !ticket.ScannedAt.IsZero() {
			res.Message = fmt.Sprintf("Ticket already used at %s", ticket.ScannedAt.In(v.loc).Format("15:04 02/01/2006"))
		}
		return res
	}
	res.Outcome = models.ValidationInvalid
	switch ticket.Status {
	case models.TicketStatusPending:
		res.Message = "Ticket has not been paid"
	case models.TicketStatusCancelled, models.TicketStatusRefunded:
		res.Message = fmt.Sprintf("Ticket is %s", ticket.Status)
	default:
		res.Message = "Ticket is not valid for entry"
	}
	return res
}

// event is informational only; a missing event never blocks a scan.
func (v *Validator) event(ctx context.Context, id string) *models.Event {
	if v.Events == nil {
		return nil
	}
	event, err := v.Events.GetEvent(ctx, id)
	if err != nil {
		v.log.Warn("ENTRY", fmt.Sprintf("event %s not loaded: %v", id, err))
		return nil
	}
	return event
}

func (v *Validator) finish(res *models.ValidationResult, agent models.Principal) *models.ValidationResult {
	monitoring.RecordEntryScan(string(res.Outcome))
	v.log.LogScan(string(res.Outcome), res.TicketID, agent.UserID)
	return res
}

func describe(ticket *models.Ticket, event *models.Event) *models.ValidationResult {
	res := &models.ValidationResult{
		TicketID:   ticket.TicketID,
		Status:     ticket.Status,
		IsScanned:  ticket.Scanned,
		ScannedBy:  ticket.ScannedBy,
		HolderName: ticket.HolderName(),
		Quantity:   ticket.Quantity,
	}
	if !ticket.ScannedAt.IsZero() {
		at := ticket.ScannedAt
		res.ScannedAt = &at
	}
	if event != nil {
		date := event.Date
		res.EventTitle = event.Title
		res.EventDate = &date
		res.EventLocation = event.Location
	}
	return res
}
