package store

import (
	"context"
	"fmt"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/models"

	"github.com/shopspring/decimal"
)

func (d *DB) CreateUser(ctx context.Context, u *models.User) error {
	if _, err := d.Bun.NewInsert().Model(u).Exec(ctx); err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (d *DB) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := d.Bun.NewSelect().
		Model(&u).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if isNoRows(err) {
		return nil, apperr.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &u, nil
}

// GetUserByReferralCode returns nil, nil when no user owns the code.
func (d *DB) GetUserByReferralCode(ctx context.Context, code string) (*models.User, error) {
	var u models.User
	err := d.Bun.NewSelect().
		Model(&u).
		Where("referral_code = ?", code).
		Limit(1).
		Scan(ctx)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by referral code: %w", err)
	}
	return &u, nil
}

// AddToWallet applies delta as a relative update and returns the balance
// afterwards. The row stays locked until the transaction ends, so the
// read-back sees exactly this write.
func (d *DB) AddToWallet(ctx context.Context, userID string, delta decimal.Decimal) (decimal.Decimal, error) {
	res, err := d.Bun.NewUpdate().
		Model((*models.User)(nil)).
		Set("wallet_balance = wallet_balance + ?", delta).
		Where("id = ?", userID).
		Exec(ctx)
	if err != nil {
		return decimal.Zero, fmt.Errorf("update wallet of %s: %w", userID, err)
	}
	n, err := rowsAffected(res)
	if err != nil {
		return decimal.Zero, err
	}
	if n == 0 {
		return decimal.Zero, apperr.ErrUserNotFound
	}
	return d.walletBalance(ctx, userID)
}

// ClampWalletAtZero resets a negative balance to zero.
func (d *DB) ClampWalletAtZero(ctx context.Context, userID string) error {
	_, err := d.Bun.NewUpdate().
		Model((*models.User)(nil)).
		Set("wallet_balance = 0").
		Where("id = ?", userID).
		Where("wallet_balance < 0").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("clamp wallet of %s: %w", userID, err)
	}
	return nil
}

func (d *DB) walletBalance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := d.Bun.NewSelect().
		Model((*models.User)(nil)).
		Column("wallet_balance").
		Where("id = ?", userID).
		Scan(ctx, &balance)
	if err != nil {
		return decimal.Zero, fmt.Errorf("read wallet of %s: %w", userID, err)
	}
	return balance, nil
}

func (d *DB) CreateWalletTransaction(ctx context.Context, wt *models.WalletTransaction) error {
	if _, err := d.Bun.NewInsert().Model(wt).Exec(ctx); err != nil {
		return fmt.Errorf("insert wallet transaction: %w", err)
	}
	return nil
}

func (d *DB) GetWalletTransactions(ctx context.Context, userID string) ([]models.WalletTransaction, error) {
	var txs []models.WalletTransaction
	err := d.Bun.NewSelect().
		Model(&txs).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("list wallet transactions of %s: %w", userID, err)
	}
	return txs, nil
}
