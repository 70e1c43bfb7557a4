package payment

import (
	"errors"

	"kanzey-ticketing/internal/models"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

var ErrInvalidCallback = errors.New("invalid payment callback")

// Callback is a provider notification reduced to what reconciliation needs.
type Callback struct {
	TransactionID string
	ClientRef     string
	RawStatus     string
	Status        models.PaymentStatus
	IsPaid        bool
	HasAmount     bool
	Amount        decimal.Decimal
	Currency      string
	Raw           []byte
}

// ParseCallback accepts the JSON body posted by the aggregator. It needs at
// least one of transactionId or idFromClient to locate a ticket.
func ParseCallback(raw []byte) (*Callback, error) {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return nil, ErrInvalidCallback
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return nil, ErrInvalidCallback
	}

	cb := &Callback{
		TransactionID: firstString(doc, "transactionId", "id"),
		ClientRef:     firstString(doc, "idFromClient"),
		RawStatus:     firstString(doc, "status"),
		Currency:      firstString(doc, "currency"),
		Raw:           raw,
	}
	if cb.TransactionID == "" && cb.ClientRef == "" {
		return nil, ErrInvalidCallback
	}
	if amount := doc.Get("amount"); amount.Exists() {
		cb.HasAmount = true
		if d, err := decimal.NewFromString(amount.String()); err == nil {
			cb.Amount = d
		}
	}
	cb.Status = NormalizeStatus(cb.RawStatus)
	cb.IsPaid = IsPaid(cb.Status)
	return cb, nil
}
