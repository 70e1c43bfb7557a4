package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const TicketIDPrefix = "TKT-"

// GenerateTicketID returns TKT-<unix millis>-<8 upper-case hex chars>.
func GenerateTicketID() string {
	return generateTicketIDAt(time.Now())
}

func generateTicketIDAt(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s%d-%s", TicketIDPrefix, now.UnixMilli(), suffix)
}
