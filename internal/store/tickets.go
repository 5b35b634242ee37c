package store

import (
	"context"
	"fmt"
	"time"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/models"

	"github.com/uptrace/bun"
)

func (d *DB) CreateTickets(ctx context.Context, tickets []models.Ticket) error {
	if len(tickets) == 0 {
		return nil
	}
	if _, err := d.Bun.NewInsert().Model(&tickets).Exec(ctx); err != nil {
		return fmt.Errorf("insert tickets: %w", err)
	}
	return nil
}

func (d *DB) GetTicketByNumber(ctx context.Context, number string) (*models.Ticket, error) {
	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("ticket_number = ?", number).
		Limit(1).
		Scan(ctx)
	if isNoRows(err) {
		return nil, apperr.ErrTicketNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket %s: %w", number, err)
	}
	return &ticket, nil
}

func (d *DB) GetTicketsByPayment(ctx context.Context, paymentID string) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("payment_id = ?", paymentID).
		Order("ticket_number ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("get tickets of payment %s: %w", paymentID, err)
	}
	return tickets, nil
}

// TakenTicketNumbers returns the numbers that are already issued.
func (d *DB) TakenTicketNumbers(ctx context.Context, numbers []string) ([]string, error) {
	var taken []string
	err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Column("ticket_number").
		Where("ticket_number IN (?)", bun.In(numbers)).
		Scan(ctx, &taken)
	if err != nil {
		return nil, fmt.Errorf("look up ticket numbers: %w", err)
	}
	return taken, nil
}

// TransitionTickets moves every ticket of a payment whose status is in from
// to the given status pair and returns how many rows moved.
func (d *DB) TransitionTickets(ctx context.Context, paymentID string, from []models.TicketStatus, status models.TicketStatus, paymentStatus models.PaymentStatus, now time.Time) (int64, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", status).
		Set("payment_status = ?", paymentStatus).
		Set("updated_at = ?", now).
		Where("payment_id = ?", paymentID).
		Where("status IN (?)", bun.In(from)).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("transition tickets of payment %s: %w", paymentID, err)
	}
	return rowsAffected(res)
}

// MarkCheckedIn consumes a confirmed, paid ticket. False means another
// transaction changed the ticket first.
func (d *DB) MarkCheckedIn(ctx context.Context, ticketID string, at time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("is_checked_in = ?", true).
		Set("checked_in_at = ?", at).
		Set("status = ?", models.TicketUsed).
		Set("updated_at = ?", at).
		Where("id = ?", ticketID).
		Where("is_checked_in = ?", false).
		Where("status = ?", models.TicketConfirmed).
		Where("payment_status = ?", models.PaymentCompleted).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("check in ticket %s: %w", ticketID, err)
	}
	n, err := rowsAffected(res)
	return n == 1, err
}

func (d *DB) CreateCheckIn(ctx context.Context, c *models.CheckIn) error {
	if _, err := d.Bun.NewInsert().Model(c).Exec(ctx); err != nil {
		return fmt.Errorf("insert check-in: %w", err)
	}
	return nil
}

func (d *DB) GetCheckInByTicket(ctx context.Context, ticketID string) (*models.CheckIn, error) {
	var c models.CheckIn
	err := d.Bun.NewSelect().
		Model(&c).
		Where("ticket_id = ?", ticketID).
		Limit(1).
		Scan(ctx)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get check-in of ticket %s: %w", ticketID, err)
	}
	return &c, nil
}
