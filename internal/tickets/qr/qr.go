package qr

import (
	"errors"
	"net/url"
	"regexp"
	"strings"

	"github.com/skip2/go-qrcode"
)

const (
	verifyPathSegment = "verify-ticket"
	DefaultPNGSize    = 400
)

var (
	ticketIDPattern = regexp.MustCompile(`^TKT-\d{13}-[0-9A-F]{8}$`)

	ErrEmptyCode     = errors.New("qr: empty code")
	ErrUnrecognized  = errors.New("qr: code does not reference a ticket")
	ErrInvalidTicket = errors.New("qr: malformed ticket id")
)

// BuildPayload joins the verification base URL and the ticket id.
// A base that does not already end in /verify-ticket gets the segment appended.
func BuildPayload(baseURL, ticketID string) string {
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasSuffix(base, "/"+verifyPathSegment) {
		base += "/" + verifyPathSegment
	}
	return base + "/" + ticketID
}

// ParseTicketID extracts the ticket id from a scanned code. The code is either a
// bare ticket id or a URL whose last path segment after verify-ticket is the id.
func ParseTicketID(code string) (string, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return "", ErrEmptyCode
	}
	if IsTicketID(code) {
		return code, nil
	}

	u, err := url.Parse(code)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", ErrUnrecognized
	}

	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 || segments[len(segments)-2] != verifyPathSegment {
		return "", ErrUnrecognized
	}
	id := segments[len(segments)-1]
	if !IsTicketID(id) {
		return "", ErrInvalidTicket
	}
	return id, nil
}

func IsTicketID(s string) bool {
	return ticketIDPattern.MatchString(s)
}

// PNG renders the payload with medium error correction.
func PNG(payload string, size int) ([]byte, error) {
	if payload == "" {
		return nil, ErrEmptyCode
	}
	if size <= 0 {
		size = DefaultPNGSize
	}
	return qrcode.Encode(payload, qrcode.Medium, size)
}
