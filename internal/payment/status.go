package payment

import (
	"strings"

	"kanzey-ticketing/internal/models"
)

// NormalizeStatus maps a provider status onto the canonical set. Unknown and
// empty values map to processing, never to completed.
func NormalizeStatus(raw string) models.PaymentStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "SUCCESSFUL", "SUCCESS", "COMPLETED":
		return models.PaymentStatusCompleted
	case "FAILED":
		return models.PaymentStatusFailed
	case "CANCELLED":
		return models.PaymentStatusCancelled
	case "PENDING":
		return models.PaymentStatusProcessing
	default:
		return models.PaymentStatusProcessing
	}
}

func IsPaid(status models.PaymentStatus) bool {
	return status == models.PaymentStatusCompleted
}
