package ticket_api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"kanzey-ticketing/internal/apperr"
	"kanzey-ticketing/internal/auth"
	"kanzey-ticketing/internal/logger"
	"kanzey-ticketing/internal/models"
	"kanzey-ticketing/internal/utils"

	"github.com/go-chi/chi/v5"
)

type TicketService interface {
	GetTicket(ctx context.Context, id string, p models.Principal) (*models.Ticket, error)
	ListTickets(ctx context.Context, p models.Principal, status models.TicketStatus, page, limit int) (*models.TicketPage, error)
	CancelTicket(ctx context.Context, id string, p models.Principal) (*models.Ticket, error)
	QRCodePNG(ctx context.Context, id string, p models.Principal) ([]byte, error)
	ResendTicket(ctx context.Context, id string, p models.Principal) error
}

type EntryValidator interface {
	Validate(ctx context.Context, code string, agent models.Principal) (*models.ValidationResult, error)
}

type Handler struct {
	TicketService TicketService
	Entry         EntryValidator
	Logger        *logger.Logger
}

func NewHandler(ticketService TicketService, entry EntryValidator, log *logger.Logger) *Handler {
	return &Handler{
		TicketService: ticketService,
		Entry:         entry,
		Logger:        log,
	}
}

// Routes mounts the ticket endpoints behind authn. Entry validation is limited to venue staff.
func (h *Handler) Routes(authn func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authn)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireRole(models.RoleAgent, models.RoleAdmin))
		r.Post("/verify", h.VerifyEntry)
		r.Post("/verify/{ticketID}", h.VerifyEntry)
	})

	r.Get("/", h.ListTickets)
	r.Get("/{ticketID}", h.ViewTicket)
	r.Get("/{ticketID}/qr", h.QRCode)
	r.Post("/{ticketID}/resend", h.ResendTicket)
	r.Delete("/{ticketID}", h.CancelTicket)
	return r
}

func (h *Handler) ListTickets(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	q := r.URL.Query()

	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))

	result, err := h.TicketService.ListTickets(r.Context(), p, models.TicketStatus(q.Get("status")), page, limit)
	if err != nil {
		h.fail(w, "ListTickets", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Tickets", result)
}

func (h *Handler) ViewTicket(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	ticket, err := h.TicketService.GetTicket(r.Context(), chi.URLParam(r, "ticketID"), p)
	if err != nil {
		h.fail(w, "ViewTicket", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Ticket", ticket)
}

func (h *Handler) QRCode(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	png, err := h.TicketService.QRCodePNG(r.Context(), chi.URLParam(r, "ticketID"), p)
	if err != nil {
		h.fail(w, "QRCode", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func (h *Handler) ResendTicket(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	if err := h.TicketService.ResendTicket(r.Context(), chi.URLParam(r, "ticketID"), p); err != nil {
		h.fail(w, "ResendTicket", err)
		return
	}
	utils.WriteSuccess(w, http.StatusAccepted, "Ticket sent", nil)
}

func (h *Handler) CancelTicket(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.FromContext(r.Context())
	ticket, err := h.TicketService.CancelTicket(r.Context(), chi.URLParam(r, "ticketID"), p)
	if err != nil {
		h.fail(w, "CancelTicket", err)
		return
	}
	utils.WriteSuccess(w, http.StatusOK, "Ticket cancelled", ticket)
}

// VerifyEntry takes the ticket id from the path or a scanned code from the body
// ({"code": "..."}). The validation result is returned on every outcome.
func (h *Handler) VerifyEntry(w http.ResponseWriter, r *http.Request) {
	agent, _ := auth.FromContext(r.Context())

	code := chi.URLParam(r, "ticketID")
	if code == "" {
		var body struct {
			Code string `json:"code"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Code == "" {
			utils.WriteError(w, http.StatusBadRequest, "code is required", string(apperr.KindValidation))
			return
		}
		code = body.Code
	}

	res, err := h.Entry.Validate(r.Context(), code, agent)
	if err != nil {
		h.fail(w, "VerifyEntry", err)
		return
	}

	status := http.StatusOK
	switch res.Outcome {
	case models.ValidationNotFound:
		status = http.StatusNotFound
	case models.ValidationAlreadyUsed, models.ValidationInvalid:
		status = http.StatusBadRequest
	}
	utils.WriteResult(w, status, res.IsValid, res.Message, res)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if apperr.HTTPStatus(err) >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	}
	utils.WriteAppError(w, err)
}
