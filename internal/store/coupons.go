package store

import (
	"context"
	"fmt"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/models"
)

func (d *DB) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	if _, err := d.Bun.NewInsert().Model(c).Exec(ctx); err != nil {
		return fmt.Errorf("insert coupon: %w", err)
	}
	return nil
}

func (d *DB) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	var c models.Coupon
	err := d.Bun.NewSelect().
		Model(&c).
		Where("code = ?", code).
		Limit(1).
		Scan(ctx)
	if isNoRows(err) {
		return nil, apperr.ErrInvalidCoupon
	}
	if err != nil {
		return nil, fmt.Errorf("get coupon %s: %w", code, err)
	}
	return &c, nil
}

// ClaimCouponUse counts one use if the limit still allows it.
func (d *DB) ClaimCouponUse(ctx context.Context, id string) (bool, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.Coupon)(nil)).
		Set("used_count = used_count + 1").
		Where("id = ?", id).
		Where("usage_limit IS NULL OR used_count < usage_limit").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("claim coupon %s: %w", id, err)
	}
	n, err := rowsAffected(res)
	return n == 1, err
}

// ReleaseCouponUse gives one use back.
func (d *DB) ReleaseCouponUse(ctx context.Context, id string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.Coupon)(nil)).
		Set("used_count = used_count - 1").
		Where("id = ?", id).
		Where("used_count > 0").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("release coupon %s: %w", id, err)
	}
	return nil
}
