package store

import (
	"context"
	"fmt"
	"time"

	"ms-boxoffice/internal/models"

	"github.com/shopspring/decimal"
)

func (d *DB) CreateReferral(ctx context.Context, r *models.Referral) error {
	if _, err := d.Bun.NewInsert().Model(r).Exec(ctx); err != nil {
		return fmt.Errorf("insert referral: %w", err)
	}
	return nil
}

// GetReferralByPayment returns nil, nil when the purchase had no referrer.
func (d *DB) GetReferralByPayment(ctx context.Context, paymentID string) (*models.Referral, error) {
	var r models.Referral
	err := d.Bun.NewSelect().
		Model(&r).
		Where("payment_id = ?", paymentID).
		Limit(1).
		Scan(ctx)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get referral of payment %s: %w", paymentID, err)
	}
	return &r, nil
}

// TransitionReferral changes status only if the referral is still in from.
func (d *DB) TransitionReferral(ctx context.Context, id string, from, to models.ReferralStatus, now time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Referral)(nil)).
		Set("status = ?", to).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("transition referral %s: %w", id, err)
	}
	n, err := rowsAffected(res)
	return n == 1, err
}

// ReduceCommission records a reversal against a completed referral.
func (d *DB) ReduceCommission(ctx context.Context, id string, amount decimal.Decimal, status models.ReferralStatus, now time.Time) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Referral)(nil)).
		Set("commission_amount = commission_amount - ?", amount).
		Set("reversed_amount = reversed_amount + ?", amount).
		Set("status = ?", status).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status = ?", models.ReferralCompleted).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("reduce commission of %s: %w", id, err)
	}
	n, err := rowsAffected(res)
	return n == 1, err
}

func (d *DB) GetReferral(ctx context.Context, id string) (*models.Referral, error) {
	var r models.Referral
	err := d.Bun.NewSelect().
		Model(&r).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("get referral %s: %w", id, err)
	}
	return &r, nil
}
