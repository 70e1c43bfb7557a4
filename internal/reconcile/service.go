package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"kanzey-ticketing/internal/apperr"
	"kanzey-ticketing/internal/logger"
	"kanzey-ticketing/internal/models"
	"kanzey-ticketing/internal/monitoring"
	"kanzey-ticketing/internal/payment"
	ticketdb "kanzey-ticketing/internal/tickets/db"

	"github.com/google/uuid"
)

// publishTimeout bounds how long a committed transition waits on the broker.
const publishTimeout = 3 * time.Second

type TicketStore interface {
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	FindByPaymentReference(ctx context.Context, transactionID, clientRef string) (*models.Ticket, error)
	FindByReference(ctx context.Context, ref string) (*models.Ticket, error)
	MarkPaid(ctx context.Context, id string) (bool, error)
	MarkPaymentFailed(ctx context.Context, id string, status models.PaymentStatus) (bool, error)
	UpdatePaymentStatus(ctx context.Context, id string, status models.PaymentStatus) error
}

type EventReader interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
}

type StatusVerifier interface {
	Verify(ctx context.Context, transactionID string) (*payment.VerifyResult, error)
}

type PollLock interface {
	LockVerify(ctx context.Context, ticketID, token string) (bool, error)
	UnlockVerify(ctx context.Context, ticketID, token string) error
}

type AttemptRecorder interface {
	RecordAttempt(ctx context.Context, attempt *models.PaymentAttempt) error
}

type Notifier interface {
	TicketIssued(ctx context.Context, ticket *models.Ticket, event *models.Event, resent bool) error
	PaymentUpdated(ctx context.Context, update models.PaymentUpdate) error
}

type Emitter interface {
	Emit(update models.PaymentUpdate)
}

// Service applies provider payment statuses to tickets. Callbacks and buyer-driven
// verification go through the same transition so either may arrive first, or twice.
type Service struct {
	Tickets  TicketStore
	Events   EventReader
	Gateway  StatusVerifier
	Lock     PollLock
	Attempts AttemptRecorder
	Notifier Notifier
	Emitter  Emitter
	log      *logger.Logger

	wg sync.WaitGroup
}

func NewService(tickets TicketStore, events EventReader, gateway StatusVerifier, lock PollLock, attempts AttemptRecorder, notifier Notifier, emitter Emitter, log *logger.Logger) *Service {
	return &Service{
		Tickets:  tickets,
		Events:   events,
		Gateway:  gateway,
		Lock:     lock,
		Attempts: attempts,
		Notifier: notifier,
		Emitter:  emitter,
		log:      log,
	}
}

// HandleCallback processes a provider notification.
func (s *Service) HandleCallback(ctx context.Context, raw []byte) (*models.PaymentUpdate, error) {
	cb, err := payment.ParseCallback(raw)
	if err != nil {
		return nil, apperr.Validation("Invalid callback payload")
	}
	s.log.LogPayment("CALLBACK", cb.ClientRef, fmt.Sprintf("transaction %s status %q -> %s", cb.TransactionID, cb.RawStatus, cb.Status))

	ticket, err := s.Tickets.FindByPaymentReference(ctx, cb.TransactionID, cb.ClientRef)
	if errors.Is(err, ticketdb.ErrTicketNotFound) {
		s.log.Warn("RECONCILE", fmt.Sprintf("no ticket for transaction %s / client ref %s", cb.TransactionID, cb.ClientRef))
		return nil, apperr.NotFound("Ticket not found")
	}
	if err != nil {
		return nil, apperr.Internal("Could not load ticket", err)
	}

	s.recordAttempt(ctx, &models.PaymentAttempt{
		TicketID:        ticket.TicketID,
		TransactionID:   firstNonEmpty(cb.TransactionID, ticket.PaymentID),
		Provider:        ticket.PaymentMethod,
		Source:          models.AttemptSourceCallback,
		RawStatus:       cb.RawStatus,
		CanonicalStatus: cb.Status,
		RawPayload:      string(cb.Raw),
	})

	if cb.TransactionID != "" && ticket.PaymentID != "" && cb.TransactionID != ticket.PaymentID {
		s.log.LogSecurity("CALLBACK_MISMATCH", fmt.Sprintf("callback for %s names transaction %s, ticket holds %s", ticket.TicketID, cb.TransactionID, ticket.PaymentID))
		return nil, apperr.Conflict("Callback does not match the ticket's transaction")
	}

	status := cb.Status
	if status == models.PaymentStatusCompleted && cb.HasAmount && !cb.Amount.Equal(ticket.TotalPrice) {
		s.log.LogSecurity("CALLBACK_AMOUNT", fmt.Sprintf("callback for %s reports %s, ticket costs %s; confirming with provider", ticket.TicketID, cb.Amount, ticket.TotalPrice))
		confirmed, err := s.confirm(ctx, ticket)
		if err != nil {
			s.log.Warn("RECONCILE", fmt.Sprintf("ticket %s left unchanged: %v", ticket.TicketID, err))
			return updateFromTicket(ticket, models.AttemptSourceCallback, false), nil
		}
		status = confirmed
	}

	return s.apply(ctx, ticket, status, models.AttemptSourceCallback)
}

// confirm asks the provider for the status of the ticket's own transaction.
func (s *Service) confirm(ctx context.Context, ticket *models.Ticket) (models.PaymentStatus, error) {
	if ticket.PaymentID == "" {
		return "", errors.New("no transaction to confirm")
	}
	res, err := s.Gateway.Verify(ctx, ticket.PaymentID)
	if err != nil {
		return "", err
	}
	s.recordAttempt(ctx, &models.PaymentAttempt{
		TicketID:        ticket.TicketID,
		TransactionID:   ticket.PaymentID,
		Provider:        ticket.PaymentMethod,
		Source:          models.AttemptSourceVerify,
		RawStatus:       res.RawStatus,
		CanonicalStatus: res.Status,
		RawPayload:      string(res.Raw),
	})
	return res.Status, nil
}

// VerifyPayment polls the provider for a ticket's payment. ref is a ticket id or
// a transaction id. Buyers may only verify their own tickets.
func (s *Service) VerifyPayment(ctx context.Context, ref string, requester models.Principal) (*models.PaymentUpdate, error) {
	ticket, err := s.Tickets.FindByReference(ctx, ref)
	if errors.Is(err, ticketdb.ErrTicketNotFound) {
		return nil, apperr.NotFound("Ticket not found")
	}
	if err != nil {
		return nil, apperr.Internal("Could not load ticket", err)
	}
	if ticket.UserID != requester.UserID && !requester.CanScan() {
		return nil, apperr.NotFound("Ticket not found")
	}
	if ticket.PaymentID == "" {
		return nil, apperr.Conflict("No payment has been initiated for this ticket")
	}

	token := uuid.NewString()
	locked, err := s.Lock.LockVerify(ctx, ticket.TicketID, token)
	switch {
	case err != nil:
		s.log.Warn("RECONCILE", fmt.Sprintf("verify lock unavailable for %s, polling anyway: %v", ticket.TicketID, err))
	case !locked:
		s.log.Debug("RECONCILE", fmt.Sprintf("verify for %s already in flight, returning stored state", ticket.TicketID))
		return updateFromTicket(ticket, models.AttemptSourceVerify, false), nil
	default:
		defer func() {
			if err := s.Lock.UnlockVerify(context.WithoutCancel(ctx), ticket.TicketID, token); err != nil {
				s.log.Warn("RECONCILE", err.Error())
			}
		}()
	}

	res, err := s.Gateway.Verify(ctx, ticket.PaymentID)
	if err != nil {
		s.log.Error("RECONCILE", fmt.Sprintf("verify %s failed: %v", ticket.TicketID, err))
		return nil, apperr.Upstream("Payment provider unavailable", err)
	}

	s.recordAttempt(ctx, &models.PaymentAttempt{
		TicketID:        ticket.TicketID,
		TransactionID:   ticket.PaymentID,
		Provider:        ticket.PaymentMethod,
		Source:          models.AttemptSourceVerify,
		RawStatus:       res.RawStatus,
		CanonicalStatus: res.Status,
		RawPayload:      string(res.Raw),
	})

	return s.apply(ctx, ticket, res.Status, models.AttemptSourceVerify)
}

// apply is idempotent: only the caller that wins the pending->paid CAS books the
// sale and triggers the ticket-issued notification.
func (s *Service) apply(ctx context.Context, ticket *models.Ticket, status models.PaymentStatus, source models.AttemptSource) (*models.PaymentUpdate, error) {
	var (
		changed bool
		err     error
	)
	switch {
	case status == models.PaymentStatusCompleted && ticket.Status == models.TicketStatusPending:
		changed, err = s.Tickets.MarkPaid(ctx, ticket.TicketID)
	case status.IsFailure() && ticket.Status == models.TicketStatusPending:
		changed, err = s.Tickets.MarkPaymentFailed(ctx, ticket.TicketID, status)
	}
	if err != nil {
		return nil, apperr.Internal("Could not update ticket", err)
	}
	if !changed {
		if err := s.Tickets.UpdatePaymentStatus(ctx, ticket.TicketID, status); err != nil {
			return nil, apperr.Internal("Could not update payment status", err)
		}
	}

	fresh, err := s.Tickets.GetTicketByID(ctx, ticket.TicketID)
	if err != nil {
		return nil, apperr.Internal("Could not reload ticket", err)
	}

	if changed && fresh.Status == models.TicketStatusPaid {
		s.issue(ctx, fresh)
	}

	update := updateFromTicket(fresh, source, changed)
	monitoring.RecordReconciliation(string(source), string(status), changed)
	s.log.LogPayment("APPLIED", fresh.TicketID, fmt.Sprintf("%s via %s: status=%s payment=%s changed=%t", status, source, fresh.Status, fresh.PaymentStatus, changed))

	if s.Emitter != nil {
		s.Emitter.Emit(*update)
	}
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.Notifier.PaymentUpdated(pctx, *update); err != nil {
		s.log.Warn("RECONCILE", fmt.Sprintf("payment.updated for %s not published: %v", fresh.TicketID, err))
	}
	return update, nil
}

// issue sends the ticket-issued notification in the background. Failures are logged only.
func (s *Service) issue(ctx context.Context, ticket *models.Ticket) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()

		event, err := s.Events.GetEvent(nctx, ticket.EventID)
		if err != nil {
			s.log.Warn("NOTIFY", fmt.Sprintf("event %s for ticket %s not loaded: %v", ticket.EventID, ticket.TicketID, err))
			event = nil
		}
		if err := s.Notifier.TicketIssued(nctx, ticket, event, false); err != nil {
			s.log.Error("NOTIFY", fmt.Sprintf("ticket.issued for %s failed: %v", ticket.TicketID, err))
			return
		}
		s.log.LogTicket("ISSUED", ticket.TicketID, "notification sent")
	}()
}

// Wait blocks until background notifications have finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) recordAttempt(ctx context.Context, attempt *models.PaymentAttempt) {
	if s.Attempts == nil {
		return
	}
	if err := s.Attempts.RecordAttempt(ctx, attempt); err != nil {
		s.log.Warn("RECONCILE", fmt.Sprintf("payment attempt for %s not recorded: %v", attempt.TicketID, err))
	}
}

func updateFromTicket(t *models.Ticket, source models.AttemptSource, changed bool) *models.PaymentUpdate {
	return &models.PaymentUpdate{
		TicketID:      t.TicketID,
		TransactionID: t.PaymentID,
		EventID:       t.EventID,
		Status:        t.Status,
		PaymentStatus: t.PaymentStatus,
		IsPaid:        t.Status == models.TicketStatusPaid || t.Status == models.TicketStatusUsed,
		Changed:       changed,
		Source:        source,
		Amount:        t.TotalPrice,
		At:            time.Now().UTC(),
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
