package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

type Coupon struct {
	bun.BaseModel `bun:"table:coupons"`

	ID            string          `bun:"id,pk" json:"id"`
	Code          string          `bun:"code,unique,notnull" json:"code"`
	EventID       string          `bun:"event_id,nullzero" json:"event_id,omitempty"`
	DiscountType  DiscountType    `bun:"discount_type,notnull" json:"discount_type"`
	DiscountValue decimal.Decimal `bun:"discount_value,type:decimal(12,2),notnull" json:"discount_value"`
	// MinPurchaseAmount and MaxDiscountAmount are optional.
	MinPurchaseAmount decimal.NullDecimal `bun:"min_purchase_amount,type:decimal(12,2)" json:"min_purchase_amount"`
	MaxDiscountAmount decimal.NullDecimal `bun:"max_discount_amount,type:decimal(12,2)" json:"max_discount_amount"`
	StartDate         time.Time           `bun:"start_date,notnull" json:"start_date"`
	EndDate           time.Time           `bun:"end_date,notnull" json:"end_date"`
	UsageLimit        *int                `bun:"usage_limit" json:"usage_limit,omitempty"`
	UsedCount         int                 `bun:"used_count,notnull" json:"used_count"`
	IsActive          bool                `bun:"is_active,notnull" json:"is_active"`
	CreatedAt         time.Time           `bun:"created_at,notnull" json:"created_at"`
}
