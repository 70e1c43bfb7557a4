package models

import "time"

type ValidationStatus string

const (
	ValidationAdmitted    ValidationStatus = "valid"
	ValidationAlreadyUsed ValidationStatus = "already_used"
	ValidationInvalid     ValidationStatus = "invalid"
	ValidationNotFound    ValidationStatus = "not_found"
)

// ValidationResult is returned to the venue scanner for every scan, accepted or not.
type ValidationResult struct {
	IsValid       bool             `json:"isValid"`
	Outcome       ValidationStatus `json:"outcome"`
	TicketID      string           `json:"ticketId,omitempty"`
	Status        TicketStatus     `json:"status,omitempty"`
	IsScanned     bool             `json:"isScanned"`
	ScannedAt     *time.Time       `json:"scannedAt,omitempty"`
	ScannedBy     string           `json:"scannedBy,omitempty"`
	HolderName    string           `json:"holderName,omitempty"`
	Quantity      int              `json:"quantity,omitempty"`
	EventTitle    string           `json:"eventTitle,omitempty"`
	EventDate     *time.Time       `json:"eventDate,omitempty"`
	EventLocation string           `json:"eventLocation,omitempty"`
	Message       string           `json:"message"`
	Warning       string           `json:"warning,omitempty"`
}
