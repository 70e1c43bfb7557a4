package payment

import (
	"testing"

	"kanzey-ticketing/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeStatus(t *testing.T) {
	tests := map[string]models.PaymentStatus{
		"SUCCESSFUL": models.PaymentStatusCompleted,
		"success":    models.PaymentStatusCompleted,
		"Completed":  models.PaymentStatusCompleted,
		"FAILED":     models.PaymentStatusFailed,
		"cancelled":  models.PaymentStatusCancelled,
		"PENDING":    models.PaymentStatusProcessing,
		"INITIATED":  models.PaymentStatusProcessing,
		"":           models.PaymentStatusProcessing,
		"REFUNDED":   models.PaymentStatusProcessing,
	}
	for raw, want := range tests {
		got := NormalizeStatus(raw)
		assert.Equal(t, want, got, raw)
		assert.Equal(t, want == models.PaymentStatusCompleted, IsPaid(got), raw)
	}
}

func TestServiceCodes(t *testing.T) {
	codes := map[models.PaymentMethod]string{
		models.PaymentMethodOrangeMoney: "PAIEMENTMARCHANDOMSN2",
		models.PaymentMethodFreeMoney:   "PAIEMENTMARCHANDTIGO",
		models.PaymentMethodWave:        "SNPAIEMENTWAVE",
		models.PaymentMethodTouchPoint:  "SN_INIT_PAIEMENT_TP",
	}
	for p, want := range codes {
		got, err := ServiceCode(p)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ServiceCode("stripe")
	assert.Error(t, err)

	p, err := ParseProvider(" Orange_Money ")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentMethodOrangeMoney, p)

	assert.Len(t, Methods(), 4)
}

func TestParseCallback(t *testing.T) {
	cb, err := ParseCallback([]byte(`{"transactionId":"IT-1","idFromClient":"TKT-1","status":"successful","amount":10000,"currency":"XOF"}`))
	require.NoError(t, err)
	assert.Equal(t, "IT-1", cb.TransactionID)
	assert.Equal(t, "TKT-1", cb.ClientRef)
	assert.True(t, cb.IsPaid)
	assert.Equal(t, models.PaymentStatusCompleted, cb.Status)
	assert.True(t, decimal.NewFromInt(10000).Equal(cb.Amount))
	assert.Equal(t, "XOF", cb.Currency)

	cb, err = ParseCallback([]byte(`{"idFromClient":"TKT-1"}`))
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusProcessing, cb.Status)
	assert.False(t, cb.IsPaid)

	for _, bad := range []string{``, `not json`, `[1,2]`, `{"status":"SUCCESSFUL"}`} {
		_, err := ParseCallback([]byte(bad))
		assert.ErrorIs(t, err, ErrInvalidCallback, bad)
	}
}
