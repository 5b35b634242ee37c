package store

import (
	"context"
	"fmt"
	"time"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/models"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

func (d *DB) CreatePayment(ctx context.Context, p *models.Payment) error {
	if _, err := d.Bun.NewInsert().Model(p).Exec(ctx); err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (d *DB) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	var p models.Payment
	err := d.Bun.NewSelect().
		Model(&p).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if isNoRows(err) {
		return nil, apperr.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get payment %s: %w", id, err)
	}
	return &p, nil
}

// TakenInvoiceNumbers returns the invoice numbers already in use.
func (d *DB) TakenInvoiceNumbers(ctx context.Context, numbers []string) ([]string, error) {
	var taken []string
	err := d.Bun.NewSelect().
		Model((*models.Payment)(nil)).
		Column("invoice_number").
		Where("invoice_number IN (?)", bun.In(numbers)).
		Scan(ctx, &taken)
	if err != nil {
		return nil, fmt.Errorf("look up invoice numbers: %w", err)
	}
	return taken, nil
}

// ConfirmPayment moves a pending payment to completed.
func (d *DB) ConfirmPayment(ctx context.Context, id string, now time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Payment)(nil)).
		Set("status = ?", models.PaymentCompleted).
		Set("confirmed_at = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status = ?", models.PaymentPending).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("confirm payment %s: %w", id, err)
	}
	n, err := rowsAffected(res)
	return n == 1, err
}

// FailPayment moves a pending payment to failed, recording why.
func (d *DB) FailPayment(ctx context.Context, id, reason, actorID string, now time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Payment)(nil)).
		Set("status = ?", models.PaymentFailed).
		Set("refund_reason = ?", reason).
		Set("refunded_by = ?", actorID).
		Set("refund_date = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status = ?", models.PaymentPending).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("fail payment %s: %w", id, err)
	}
	n, err := rowsAffected(res)
	return n == 1, err
}

// RefundPayment moves a completed payment to refunded.
func (d *DB) RefundPayment(ctx context.Context, id string, amount decimal.Decimal, reason, actorID string, now time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Payment)(nil)).
		Set("status = ?", models.PaymentRefunded).
		Set("refund_amount = ?", amount).
		Set("refund_reason = ?", reason).
		Set("refunded_by = ?", actorID).
		Set("refund_date = ?", now).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status = ?", models.PaymentCompleted).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("refund payment %s: %w", id, err)
	}
	n, err := rowsAffected(res)
	return n == 1, err
}

// GetStalePendingPayments lists pending payments created before cutoff.
func (d *DB) GetStalePendingPayments(ctx context.Context, cutoff time.Time, limit int) ([]models.Payment, error) {
	var payments []models.Payment
	err := d.Bun.NewSelect().
		Model(&payments).
		Where("status = ?", models.PaymentPending).
		Where("created_at < ?", cutoff).
		Order("created_at ASC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stale pending payments: %w", err)
	}
	return payments, nil
}
