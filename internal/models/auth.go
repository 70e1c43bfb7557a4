package models

import "strings"

type Role string

const (
	RoleUser      Role = "user"
	RoleOrganizer Role = "organizer"
	RoleAgent     Role = "agent"
	RoleAdmin     Role = "admin"
)

func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleUser, RoleOrganizer, RoleAgent, RoleAdmin:
		return r, true
	}
	return "", false
}

// Rank orders roles by privilege: user < organizer < agent < admin.
func (r Role) Rank() int {
	switch r {
	case RoleAdmin:
		return 3
	case RoleAgent:
		return 2
	case RoleOrganizer:
		return 1
	default:
		return 0
	}
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID    string `json:"userId"`
	Role      Role   `json:"role"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// CanScan is true for venue staff.
func (p Principal) CanScan() bool {
	return p.Role == RoleAdmin || p.Role == RoleAgent
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

func (p Principal) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}
