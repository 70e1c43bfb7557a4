package payment

import (
	"fmt"
	"strings"

	"kanzey-ticketing/internal/models"
)

// Provider is one of the mobile-money rails reachable through the InTouch aggregator.
type Provider = models.PaymentMethod

type rail struct {
	provider    Provider
	serviceCode string
	name        string
	description string
}

var rails = []rail{
	{models.PaymentMethodOrangeMoney, "PAIEMENTMARCHANDOMSN2", "Orange Money", "Paiement via Orange Money"},
	{models.PaymentMethodFreeMoney, "PAIEMENTMARCHANDTIGO", "Free Money", "Paiement via Free Money"},
	{models.PaymentMethodWave, "SNPAIEMENTWAVE", "Wave", "Paiement via Wave"},
	{models.PaymentMethodTouchPoint, "SN_INIT_PAIEMENT_TP", "TouchPoint", "Paiement via TouchPoint"},
}

// ParseProvider accepts the rail identifiers used by clients, case-insensitively.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	for _, r := range rails {
		if r.provider == p {
			return p, nil
		}
	}
	return "", fmt.Errorf("unsupported payment method %q", s)
}

func ServiceCode(p Provider) (string, error) {
	for _, r := range rails {
		if r.provider == p {
			return r.serviceCode, nil
		}
	}
	return "", fmt.Errorf("unsupported payment method %q", p)
}

// Methods lists every rail, in display order.
func Methods() []models.PaymentMethodInfo {
	out := make([]models.PaymentMethodInfo, 0, len(rails))
	for _, r := range rails {
		out = append(out, models.PaymentMethodInfo{
			ID:          r.provider,
			Name:        r.name,
			Description: r.description,
			IsActive:    true,
		})
	}
	return out
}
