package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID          string    `bun:"id,pk" json:"id"`
	Name        string    `bun:"name,notnull" json:"name"`
	OrganizerID string    `bun:"organizer_id,notnull" json:"organizer_id"`
	StartsAt    time.Time `bun:"starts_at,notnull" json:"starts_at"`
	EndsAt      time.Time `bun:"ends_at,notnull" json:"ends_at"`
	CreatedAt   time.Time `bun:"created_at,notnull" json:"created_at"`
}

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID            string          `bun:"id,pk" json:"id"`
	Name          string          `bun:"name,notnull" json:"name"`
	Email         string          `bun:"email,unique,notnull" json:"email"`
	Phone         string          `bun:"phone" json:"phone,omitempty"`
	ReferralCode  string          `bun:"referral_code,unique,nullzero" json:"referral_code,omitempty"`
	WalletBalance decimal.Decimal `bun:"wallet_balance,type:decimal(12,2),notnull" json:"wallet_balance"`
	// CommissionRate overrides the configured default when set.
	CommissionRate decimal.NullDecimal `bun:"commission_rate,type:decimal(5,2)" json:"commission_rate,omitempty"`
	CreatedAt      time.Time           `bun:"created_at,notnull" json:"created_at"`
}
