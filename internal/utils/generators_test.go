package utils

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGenerateNumbers(t *testing.T) {
	now := time.Date(2026, 3, 14, 23, 30, 0, 0, time.UTC)

	ticket := GenerateTicketNumber(now)
	assert.Regexp(t, regexp.MustCompile(`^TKT-20260314-[0-9A-F]{8}$`), ticket)
	assert.True(t, IsTicketNumber(ticket))

	invoice := GenerateInvoiceNumber(now)
	assert.Regexp(t, regexp.MustCompile(`^INV-20260314-[0-9A-F]{8}$`), invoice)
	assert.False(t, IsTicketNumber(invoice))

	assert.NotEqual(t, ticket, GenerateTicketNumber(now))
}
