package payment_api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"kanzey-ticketing/internal/apperr"
	"kanzey-ticketing/internal/auth"
	"kanzey-ticketing/internal/logger"
	"kanzey-ticketing/internal/models"
	"kanzey-ticketing/internal/payment"
	"kanzey-ticketing/internal/utils"

	"github.com/go-chi/chi/v5"
)

const (
	maxCallbackBytes = 1 << 20
	keepAlivePeriod  = 25 * time.Second
)

type Purchaser interface {
	Purchase(ctx context.Context, req models.PurchaseRequest, buyer models.Principal) (*models.PurchaseResult, error)
}

type Reconciler interface {
	HandleCallback(ctx context.Context, raw []byte) (*models.PaymentUpdate, error)
	VerifyPayment(ctx context.Context, ref string, requester models.Principal) (*models.PaymentUpdate, error)
}

type TicketReader interface {
	GetTicket(ctx context.Context, id string, p models.Principal) (*models.Ticket, error)
}

type StatusStream interface {
	Subscribe(ctx context.Context, ticketID string) <-chan models.PaymentUpdate
}

type Handler struct {
	Purchases  Purchaser
	Reconciler Reconciler
	Tickets    TicketReader
	Stream     StatusStream
	Logger     *logger.Logger
}

func NewHandler(purchases Purchaser, reconciler Reconciler, tickets TicketReader, stream StatusStream, log *logger.Logger) *Handler {
	return &Handler{
		Purchases:  purchases,
		Reconciler: reconciler,
		Tickets:    tickets,
		Stream:     stream,
		Logger:     log,
	}
}

// Routes mounts the payment endpoints. authn guards everything except the
// provider callback and the method list.
func (h *Handler) Routes(authn func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/callback", h.Callback)
	r.Get("/methods", h.Methods)
	r.Group(func(r chi.Router) {
		r.Use(authn)
		r.Post("/purchase", h.Purchase)
		r.Get("/verify/{ref}", h.Verify)
		r.Get("/{ticketId}/events", h.StatusEvents)
	})
	return r
}

func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	buyer, _ := auth.FromContext(r.Context())

	var req models.PurchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid request body", string(apperr.KindValidation))
		return
	}

	res, err := h.Purchases.Purchase(r.Context(), req, buyer)
	if err != nil {
		h.fail(w, "Purchase", err)
		return
	}
	utils.WriteSuccess(w, http.StatusCreated, "Payment initiated", res)
}

// Callback is called by the aggregator, not by users.
func (h *Handler) Callback(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxCallbackBytes))
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, "Invalid callback payload", string(apperr.KindValidation))
		return
	}

	update, err := h.Reconciler.HandleCallback(r.Context(), raw)
	if err != nil {
		h.fail(w, "Callback", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Callback processed", update)
}

func (h *Handler) Verify(w http.ResponseWriter, r *http.Request) {
	requester, _ := auth.FromContext(r.Context())
	ref := chi.URLParam(r, "ref")

	update, err := h.Reconciler.VerifyPayment(r.Context(), ref, requester)
	if err != nil {
		h.fail(w, "Verify", err)
		return
	}
	msg := "Payment not completed yet"
	if update.IsPaid {
		msg = "Payment confirmed"
	}
	utils.WriteSuccess(w, http.StatusOK, msg, update)
}

func (h *Handler) Methods(w http.ResponseWriter, r *http.Request) {
	utils.WriteSuccess(w, http.StatusOK, "Payment methods", payment.Methods())
}

// StatusEvents streams payment updates for one ticket until the client leaves.
func (h *Handler) StatusEvents(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	ticketID := chi.URLParam(r, "ticketId")

	ticket, err := h.Tickets.GetTicket(r.Context(), ticketID, p)
	if err != nil {
		h.fail(w, "StatusEvents", err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.WriteError(w, http.StatusInternalServerError, "Streaming unsupported", string(apperr.KindInternal))
		return
	}

	ctx := r.Context()
	updates := h.Stream.Subscribe(ctx, ticket.TicketID)

	setupSSEHeaders(w)
	w.WriteHeader(http.StatusOK)

	// the current state goes first so a client that connects late still sees it
	current, _ := json.Marshal(models.PaymentUpdate{
		TicketID:      ticket.TicketID,
		TransactionID: ticket.PaymentID,
		EventID:       ticket.EventID,
		Status:        ticket.Status,
		PaymentStatus: ticket.PaymentStatus,
		IsPaid:        ticket.Status == models.TicketStatusPaid || ticket.Status == models.TicketStatusUsed,
		Amount:        ticket.TotalPrice,
		At:            time.Now().UTC(),
	})
	fmt.Fprintf(w, "event: status\ndata: %s\n\n", current)
	flusher.Flush()
	h.Logger.Debug("SSE", "client connected to payment stream for "+ticket.TicketID)

	keepAlive := time.NewTicker(keepAlivePeriod)
	defer keepAlive.Stop()

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return
			}
			data, err := json.Marshal(update)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("failed to serialize payment update: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: payment\ndata: %s\n\n", data)
			flusher.Flush()
		case <-keepAlive.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-ctx.Done():
			h.Logger.Debug("SSE", "client left payment stream for "+ticket.TicketID)
			return
		}
	}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if apperr.HTTPStatus(err) >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	} else {
		h.Logger.Debug("API", fmt.Sprintf("%s: %v", op, err))
	}
	utils.WriteAppError(w, err)
}

func setupSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream;charset=UTF-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, max-age=0, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("X-Content-Type-Options", "nosniff")
}
