package payment_api

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"kanzey-ticketing/internal/apperr"
	"kanzey-ticketing/internal/auth"
	"kanzey-ticketing/internal/logger"
	"kanzey-ticketing/internal/models"
	"kanzey-ticketing/internal/sse"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type MockPurchaser struct{ mock.Mock }

func (m *MockPurchaser) Purchase(ctx context.Context, req models.PurchaseRequest, buyer models.Principal) (*models.PurchaseResult, error) {
	args := m.Called(ctx, req, buyer)
	if res := args.Get(0); res != nil {
		return res.(*models.PurchaseResult), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockReconciler struct{ mock.Mock }

func (m *MockReconciler) HandleCallback(ctx context.Context, raw []byte) (*models.PaymentUpdate, error) {
	args := m.Called(ctx, raw)
	if res := args.Get(0); res != nil {
		return res.(*models.PaymentUpdate), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockReconciler) VerifyPayment(ctx context.Context, ref string, requester models.Principal) (*models.PaymentUpdate, error) {
	args := m.Called(ctx, ref, requester)
	if res := args.Get(0); res != nil {
		return res.(*models.PaymentUpdate), args.Error(1)
	}
	return nil, args.Error(1)
}

type MockTickets struct{ mock.Mock }

func (m *MockTickets) GetTicket(ctx context.Context, id string, p models.Principal) (*models.Ticket, error) {
	args := m.Called(ctx, id, p)
	if res := args.Get(0); res != nil {
		return res.(*models.Ticket), args.Error(1)
	}
	return nil, args.Error(1)
}

const ticketID = "TKT-1735689600123-9F3A0B1C"

var buyer = models.Principal{UserID: "user-1", Role: models.RoleUser}

// fakeAuth stands in for token verification.
func fakeAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), buyer)))
	})
}

type fixture struct {
	purchases  *MockPurchaser
	reconciler *MockReconciler
	tickets    *MockTickets
	stream     *sse.PaymentEventEmitter
	router     http.Handler
}

func setup() *fixture {
	f := &fixture{
		purchases:  new(MockPurchaser),
		reconciler: new(MockReconciler),
		tickets:    new(MockTickets),
		stream:     sse.NewPaymentEventEmitter(),
	}
	h := NewHandler(f.purchases, f.reconciler, f.tickets, f.stream, logger.Discard())
	f.router = h.Routes(fakeAuth)
	return f
}

func (f *fixture) do(method, path, body string, authed bool) *httptest.ResponseRecorder {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if authed {
		r.Header.Set("Authorization", "Bearer x")
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, r)
	return rec
}

func TestPurchase(t *testing.T) {
	f := setup()
	req := models.PurchaseRequest{EventID: "evt-1", Quantity: 2, RecipientNumber: "771234567", PaymentMethod: "wave"}
	f.purchases.On("Purchase", mock.Anything, req, buyer).Return(&models.PurchaseResult{
		Ticket:  models.TicketSummary{TicketID: ticketID, TotalPrice: decimal.NewFromInt(10000)},
		Payment: models.PaymentRedirect{TransactionID: "IT-778", Status: models.PaymentStatusProcessing},
	}, nil)

	rec := f.do(http.MethodPost, "/purchase", `{"eventId":"evt-1","quantity":2,"recipientNumber":"771234567","paymentMethod":"wave"}`, true)

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := rec.Body.String()
	assert.True(t, gjson.Get(body, "success").Bool())
	assert.Equal(t, ticketID, gjson.Get(body, "data.ticket.ticketId").String())
	assert.Equal(t, "IT-778", gjson.Get(body, "data.payment.transactionId").String())
	assert.Equal(t, "10000", gjson.Get(body, "data.ticket.totalPrice").String())
}

func TestPurchase_Errors(t *testing.T) {
	f := setup()

	assert.Equal(t, http.StatusUnauthorized, f.do(http.MethodPost, "/purchase", `{}`, false).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/purchase", `{`, true).Code)

	f.purchases.On("Purchase", mock.Anything, mock.Anything, buyer).Return(nil, apperr.Upstream("Payment provider unavailable", context.DeadlineExceeded)).Once()
	rec := f.do(http.MethodPost, "/purchase", `{"eventId":"evt-1"}`, true)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Payment provider unavailable", gjson.Get(rec.Body.String(), "message").String())
	assert.Equal(t, "upstream", gjson.Get(rec.Body.String(), "error").String())

	f.purchases.On("Purchase", mock.Anything, mock.Anything, buyer).Return(nil, apperr.Conflict("Event is sold out")).Once()
	assert.Equal(t, http.StatusConflict, f.do(http.MethodPost, "/purchase", `{"eventId":"evt-1"}`, true).Code)
}

func TestCallback_IsPublic(t *testing.T) {
	f := setup()
	payload := `{"transactionId":"IT-778","status":"SUCCESSFUL"}`
	f.reconciler.On("HandleCallback", mock.Anything, []byte(payload)).
		Return(&models.PaymentUpdate{TicketID: ticketID, IsPaid: true, Changed: true, Status: models.TicketStatusPaid}, nil)

	rec := f.do(http.MethodPost, "/callback", payload, false)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, gjson.Get(rec.Body.String(), "data.isPaid").Bool())
}

func TestCallback_UnknownTicket(t *testing.T) {
	f := setup()
	f.reconciler.On("HandleCallback", mock.Anything, mock.Anything).Return(nil, apperr.NotFound("Ticket not found"))

	rec := f.do(http.MethodPost, "/callback", `{"transactionId":"nope"}`, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVerify(t *testing.T) {
	f := setup()
	f.reconciler.On("VerifyPayment", mock.Anything, ticketID, buyer).
		Return(&models.PaymentUpdate{TicketID: ticketID, IsPaid: true}, nil)

	rec := f.do(http.MethodGet, "/verify/"+ticketID, "", true)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Payment confirmed", gjson.Get(rec.Body.String(), "message").String())
}

func TestMethods(t *testing.T) {
	f := setup()
	rec := f.do(http.MethodGet, "/methods", "", false)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, gjson.Get(rec.Body.String(), "data").Array(), 4)
}

func TestStatusEvents_StreamsUpdates(t *testing.T) {
	f := setup()
	f.tickets.On("GetTicket", mock.Anything, ticketID, buyer).Return(&models.Ticket{
		TicketID:      ticketID,
		UserID:        "user-1",
		Status:        models.TicketStatusPending,
		PaymentStatus: models.PaymentStatusProcessing,
	}, nil)

	srv := httptest.NewServer(f.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/"+ticketID+"/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer x")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	lines := bufio.NewScanner(resp.Body)
	next := func(prefix string) string {
		for lines.Scan() {
			if strings.HasPrefix(lines.Text(), prefix) {
				return lines.Text()
			}
		}
		t.Fatalf("stream ended before %q", prefix)
		return ""
	}

	assert.Equal(t, "event: status", next("event:"))
	assert.Equal(t, "processing", gjson.Get(strings.TrimPrefix(next("data:"), "data: "), "paymentStatus").String())

	require.Eventually(t, func() bool { return f.stream.ClientCount(ticketID) == 1 }, time.Second, 10*time.Millisecond)
	f.stream.Emit(models.PaymentUpdate{TicketID: ticketID, Status: models.TicketStatusPaid, IsPaid: true})

	assert.Equal(t, "event: payment", next("event:"))
	assert.True(t, gjson.Get(strings.TrimPrefix(next("data:"), "data: "), "isPaid").Bool())
}

func TestStatusEvents_ForeignTicket(t *testing.T) {
	f := setup()
	f.tickets.On("GetTicket", mock.Anything, ticketID, buyer).Return(nil, apperr.Forbidden("You do not have access to this ticket"))

	rec := f.do(http.MethodGet, "/"+ticketID+"/events", "", true)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, 0, f.stream.ClientCount(ticketID))
}
