package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type PaymentMethod string

const (
	MethodCard         PaymentMethod = "card"
	MethodWalletApp    PaymentMethod = "wallet_app"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCash         PaymentMethod = "cash"
)

// IsManual reports whether the method is settled outside the gateway and
// confirmed later by staff.
func (m PaymentMethod) IsManual() bool {
	return m == MethodBankTransfer || m == MethodCash
}

func (m PaymentMethod) Valid() bool {
	switch m {
	case MethodCard, MethodWalletApp, MethodBankTransfer, MethodCash:
		return true
	}
	return false
}

type Payment struct {
	bun.BaseModel `bun:"table:payments"`

	ID            string          `bun:"id,pk" json:"id"`
	UserID        string          `bun:"user_id,notnull" json:"user_id"`
	TicketTypeID  string          `bun:"ticket_type_id,notnull" json:"ticket_type_id"`
	Quantity      int             `bun:"quantity,notnull" json:"quantity"`
	Amount        decimal.Decimal `bun:"amount,type:decimal(12,2),notnull" json:"amount"`
	Method        PaymentMethod   `bun:"method,notnull" json:"method"`
	Status        PaymentStatus   `bun:"status,notnull" json:"status"`
	RefundAmount  decimal.Decimal `bun:"refund_amount,type:decimal(12,2),notnull" json:"refund_amount"`
	InvoiceNumber string          `bun:"invoice_number,unique,notnull" json:"invoice_number"`
	TransactionID string          `bun:"transaction_id,nullzero" json:"transaction_id,omitempty"`
	CouponID      string          `bun:"coupon_id,nullzero" json:"coupon_id,omitempty"`
	RefundDate    *time.Time      `bun:"refund_date,nullzero" json:"refund_date,omitempty"`
	RefundReason  string          `bun:"refund_reason,nullzero" json:"refund_reason,omitempty"`
	RefundedBy    string          `bun:"refunded_by,nullzero" json:"refunded_by,omitempty"`
	ConfirmedAt   *time.Time      `bun:"confirmed_at,nullzero" json:"confirmed_at,omitempty"`
	CreatedAt     time.Time       `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt     time.Time       `bun:"updated_at,notnull" json:"updated_at"`
}
