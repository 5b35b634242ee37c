package utils

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// GenerateTicketNumber returns a human-readable ticket number such as
// TKT-20260314-9F2C41AB.
func GenerateTicketNumber(now time.Time) string {
	return generateNumber("TKT", now)
}

// GenerateInvoiceNumber returns an invoice number such as INV-20260314-07B1E2FF.
func GenerateInvoiceNumber(now time.Time) string {
	return generateNumber("INV", now)
}

func generateNumber(prefix string, now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", prefix, now.UTC().Format("20060102"), suffix)
}

// IsTicketNumber reports whether s looks like a ticket number rather than
// a sealed QR payload.
func IsTicketNumber(s string) bool {
	return strings.HasPrefix(s, "TKT-")
}
