package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type ReferralStatus string

const (
	ReferralPending   ReferralStatus = "pending"
	ReferralCompleted ReferralStatus = "completed"
	ReferralCancelled ReferralStatus = "cancelled"
)

type Referral struct {
	bun.BaseModel `bun:"table:referrals"`

	ID             string          `bun:"id,pk" json:"id"`
	ReferrerID     string          `bun:"referrer_id,notnull" json:"referrer_id"`
	ReferredUserID string          `bun:"referred_user_id,notnull" json:"referred_user_id"`
	TicketID       string          `bun:"ticket_id,nullzero" json:"ticket_id,omitempty"`
	PaymentID      string          `bun:"payment_id,unique,notnull" json:"payment_id"`
	Status         ReferralStatus  `bun:"status,notnull" json:"status"`
	CommissionRate decimal.Decimal `bun:"commission_rate,type:decimal(5,2),notnull" json:"commission_rate"`
	// CommissionAmount only shrinks, on partial reversal.
	CommissionAmount decimal.Decimal `bun:"commission_amount,type:decimal(12,2),notnull" json:"commission_amount"`
	ReversedAmount   decimal.Decimal `bun:"reversed_amount,type:decimal(12,2),notnull" json:"reversed_amount"`
	CreatedAt        time.Time       `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt        time.Time       `bun:"updated_at,notnull" json:"updated_at"`
}

type WalletTransactionType string

const (
	WalletCommissionCredit   WalletTransactionType = "commission_credit"
	WalletCommissionReversal WalletTransactionType = "commission_reversal"
	WalletPayout             WalletTransactionType = "payout"
)

// WalletTransaction is one signed line of a referrer's wallet ledger.
type WalletTransaction struct {
	bun.BaseModel `bun:"table:wallet_transactions"`

	ID            string                `bun:"id,pk" json:"id"`
	UserID        string                `bun:"user_id,notnull" json:"user_id"`
	ReferralID    string                `bun:"referral_id,nullzero" json:"referral_id,omitempty"`
	Type          WalletTransactionType `bun:"type,notnull" json:"type"`
	Amount        decimal.Decimal       `bun:"amount,type:decimal(12,2),notnull" json:"amount"`
	BalanceBefore decimal.Decimal       `bun:"balance_before,type:decimal(12,2),notnull" json:"balance_before"`
	BalanceAfter  decimal.Decimal       `bun:"balance_after,type:decimal(12,2),notnull" json:"balance_after"`
	// Deficit is the part of a reversal the zero clamp prevented from being debited.
	Deficit   decimal.Decimal `bun:"deficit,type:decimal(12,2),notnull" json:"deficit"`
	CreatedAt time.Time       `bun:"created_at,notnull" json:"created_at"`
}
