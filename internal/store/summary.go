package store

import (
	"context"
	"fmt"

	"ms-boxoffice/internal/models"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// TicketTypeSummary is the organizer sales report for one ticket type.
type TicketTypeSummary struct {
	TicketTypeID  string          `json:"ticket_type_id"`
	Quantity      int             `json:"quantity"`
	Available     int             `json:"available"`
	Sold          int             `json:"sold"`
	CheckedIn     int             `json:"checked_in"`
	GrossRevenue  decimal.Decimal `json:"gross_revenue"`
	RefundedTotal decimal.Decimal `json:"refunded_total"`
}

func (d *DB) GetTicketTypeSummary(ctx context.Context, id string) (*TicketTypeSummary, error) {
	tt, err := d.GetTicketType(ctx, id)
	if err != nil {
		return nil, err
	}

	checkedIn, err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("ticket_type_id = ?", id).
		Where("is_checked_in = ?", true).
		Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count checked-in tickets: %w", err)
	}

	var payments []models.Payment
	err = d.Bun.NewSelect().
		Model(&payments).
		Column("amount", "refund_amount", "status").
		Where("ticket_type_id = ?", id).
		Where("status IN (?)", bun.In([]models.PaymentStatus{models.PaymentCompleted, models.PaymentRefunded})).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payments of ticket type: %w", err)
	}

	summary := &TicketTypeSummary{
		TicketTypeID:  tt.ID,
		Quantity:      tt.Quantity,
		Available:     tt.AvailableQuantity,
		Sold:          tt.Sold(),
		CheckedIn:     checkedIn,
		GrossRevenue:  decimal.Zero,
		RefundedTotal: decimal.Zero,
	}
	for _, p := range payments {
		summary.GrossRevenue = summary.GrossRevenue.Add(p.Amount)
		if p.Status == models.PaymentRefunded {
			summary.RefundedTotal = summary.RefundedTotal.Add(p.RefundAmount)
		}
	}
	return summary, nil
}
