package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type TicketStatus string

const (
	TicketBooked    TicketStatus = "booked"
	TicketConfirmed TicketStatus = "confirmed"
	TicketCancelled TicketStatus = "cancelled"
	TicketRefunded  TicketStatus = "refunded"
	TicketUsed      TicketStatus = "used"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID             string          `bun:"id,pk" json:"id"`
	TicketTypeID   string          `bun:"ticket_type_id,notnull" json:"ticket_type_id"`
	EventID        string          `bun:"event_id,notnull" json:"event_id"`
	PaymentID      string          `bun:"payment_id,notnull" json:"payment_id"`
	UserID         string          `bun:"user_id,notnull" json:"user_id"`
	ReferrerID     string          `bun:"referrer_id,nullzero" json:"referrer_id,omitempty"`
	PurchasePrice  decimal.Decimal `bun:"purchase_price,type:decimal(12,2),notnull" json:"purchase_price"`
	DiscountAmount decimal.Decimal `bun:"discount_amount,type:decimal(12,2),notnull" json:"discount_amount"`
	FinalPrice     decimal.Decimal `bun:"final_price,type:decimal(12,2),notnull" json:"final_price"`
	TicketNumber   string          `bun:"ticket_number,unique,notnull" json:"ticket_number"`
	QRPayload      string          `bun:"qr_payload" json:"qr_payload,omitempty"`
	Status         TicketStatus    `bun:"status,notnull" json:"status"`
	PaymentStatus  PaymentStatus   `bun:"payment_status,notnull" json:"payment_status"`
	IsCheckedIn    bool            `bun:"is_checked_in,notnull" json:"is_checked_in"`
	CheckedInAt    *time.Time      `bun:"checked_in_at,nullzero" json:"checked_in_at,omitempty"`
	CreatedAt      time.Time       `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt      time.Time       `bun:"updated_at,notnull" json:"updated_at"`
}

type CheckInMethod string

const (
	CheckInQR           CheckInMethod = "qr"
	CheckInManual       CheckInMethod = "manual"
	CheckInTicketNumber CheckInMethod = "ticket_number"
)

// CheckIn is the write-once audit record of a ticket being consumed.
type CheckIn struct {
	bun.BaseModel `bun:"table:check_ins"`

	ID          string        `bun:"id,pk" json:"id"`
	TicketID    string        `bun:"ticket_id,unique,notnull" json:"ticket_id"`
	StaffID     string        `bun:"staff_id,notnull" json:"staff_id"`
	Method      CheckInMethod `bun:"method,notnull" json:"method"`
	Device      string        `bun:"device" json:"device,omitempty"`
	IPAddress   string        `bun:"ip_address" json:"ip_address,omitempty"`
	CheckedInAt time.Time     `bun:"checked_in_at,notnull" json:"checked_in_at"`
}
