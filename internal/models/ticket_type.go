package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type TicketType struct {
	bun.BaseModel `bun:"table:ticket_types"`

	ID                string          `bun:"id,pk" json:"id"`
	EventID           string          `bun:"event_id,notnull" json:"event_id"`
	Name              string          `bun:"name,notnull" json:"name"`
	Price             decimal.Decimal `bun:"price,type:decimal(12,2),notnull" json:"price"`
	Quantity          int             `bun:"quantity,notnull" json:"quantity"`
	AvailableQuantity int             `bun:"available_quantity,notnull" json:"available_quantity"`
	SaleStart         time.Time       `bun:"sale_start,notnull" json:"sale_start"`
	SaleEnd           time.Time       `bun:"sale_end,notnull" json:"sale_end"`
	IsActive          bool            `bun:"is_active,notnull" json:"is_active"`
	CreatedAt         time.Time       `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt         time.Time       `bun:"updated_at,notnull" json:"updated_at"`
}

// Sold is the number of units currently held by buyers.
func (t *TicketType) Sold() int {
	return t.Quantity - t.AvailableQuantity
}

// OnSale reports whether now falls inside [SaleStart, SaleEnd].
func (t *TicketType) OnSale(now time.Time) bool {
	return !now.Before(t.SaleStart) && !now.After(t.SaleEnd)
}
