package store

import (
	"context"
	"fmt"
	"time"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/models"
)

func (d *DB) GetTicketType(ctx context.Context, id string) (*models.TicketType, error) {
	var tt models.TicketType
	err := d.Bun.NewSelect().
		Model(&tt).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if isNoRows(err) {
		return nil, apperr.ErrTicketTypeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get ticket type %s: %w", id, err)
	}
	return &tt, nil
}

func (d *DB) CreateTicketType(ctx context.Context, tt *models.TicketType) error {
	if _, err := d.Bun.NewInsert().Model(tt).Exec(ctx); err != nil {
		return fmt.Errorf("insert ticket type: %w", err)
	}
	return nil
}

// DecrementAvailable takes qty units if at least qty remain. The check and
// the write are one statement, so false means the units were not there.
func (d *DB) DecrementAvailable(ctx context.Context, id string, qty int, now time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.TicketType)(nil)).
		Set("available_quantity = available_quantity - ?", qty).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("available_quantity >= ?", qty).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("decrement ticket type %s: %w", id, err)
	}
	n, err := rowsAffected(res)
	return n == 1, err
}

// IncrementAvailable returns qty units, never exceeding quantity.
func (d *DB) IncrementAvailable(ctx context.Context, id string, qty int, now time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.TicketType)(nil)).
		Set("available_quantity = CASE WHEN available_quantity + ? > quantity THEN quantity ELSE available_quantity + ? END", qty, qty).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("increment ticket type %s: %w", id, err)
	}
	n, err := rowsAffected(res)
	return n == 1, err
}

// UpdateCapacity sets a new total and shifts availability by the same
// delta, only if the new total still covers the units already sold.
func (d *DB) UpdateCapacity(ctx context.Context, id string, quantity int, now time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.TicketType)(nil)).
		Set("available_quantity = ? - (quantity - available_quantity)", quantity).
		Set("quantity = ?", quantity).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("quantity - available_quantity <= ?", quantity).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("update capacity of %s: %w", id, err)
	}
	n, err := rowsAffected(res)
	return n == 1, err
}
