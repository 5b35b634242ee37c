// Package referral records referral commissions and keeps referrers'
// wallet balances in step with them.
package referral

import (
	"context"
	"fmt"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/clock"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Ledger struct {
	DefaultRate decimal.Decimal
	Clock       clock.Clock
	Logger      *logger.Logger
}

func NewLedger(defaultRate decimal.Decimal, c clock.Clock, l *logger.Logger) *Ledger {
	return &Ledger{DefaultRate: defaultRate, Clock: c, Logger: l}
}

// ResolveReferrer maps a referral code to its owner. Unknown codes and the
// purchaser's own code resolve to nil without an error.
func (l *Ledger) ResolveReferrer(ctx context.Context, tx *store.DB, code, purchaserID string) (*models.User, error) {
	if code == "" {
		return nil, nil
	}
	referrer, err := tx.GetUserByReferralCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if referrer == nil {
		l.Logger.Warn("REFERRAL", fmt.Sprintf("unknown referral code %q ignored", code))
		return nil, nil
	}
	if referrer.ID == purchaserID {
		l.Logger.Info("REFERRAL", fmt.Sprintf("self-referral by %s ignored", purchaserID))
		return nil, nil
	}
	return referrer, nil
}

// RateFor returns the referrer's commission rate in percent.
func (l *Ledger) RateFor(referrer *models.User) decimal.Decimal {
	if referrer.CommissionRate.Valid {
		return referrer.CommissionRate.Decimal
	}
	return l.DefaultRate
}

type AccrueInput struct {
	ReferrerID     string
	ReferredUserID string
	TicketID       string
	PaymentID      string
	FinalAmount    decimal.Decimal
	Rate           decimal.Decimal
}

// Accrue records a pending commission computed from the post-discount amount.
func (l *Ledger) Accrue(ctx context.Context, tx *store.DB, in AccrueInput) (*models.Referral, error) {
	if in.ReferrerID == in.ReferredUserID {
		return nil, apperr.ErrSelfReferral
	}

	now := l.Clock.Now()
	r := &models.Referral{
		ID:               uuid.NewString(),
		ReferrerID:       in.ReferrerID,
		ReferredUserID:   in.ReferredUserID,
		TicketID:         in.TicketID,
		PaymentID:        in.PaymentID,
		Status:           models.ReferralPending,
		CommissionRate:   in.Rate,
		CommissionAmount: in.FinalAmount.Mul(in.Rate).Div(hundred).Round(2),
		ReversedAmount:   decimal.Zero,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := tx.CreateReferral(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Complete marks a pending referral completed and credits the commission
// to the referrer's wallet.
func (l *Ledger) Complete(ctx context.Context, tx *store.DB, r *models.Referral) (*models.WalletTransaction, error) {
	now := l.Clock.Now()
	ok, err := tx.TransitionReferral(ctx, r.ID, models.ReferralPending, models.ReferralCompleted, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrStateConflict
	}
	r.Status = models.ReferralCompleted
	r.UpdatedAt = now

	after, err := tx.AddToWallet(ctx, r.ReferrerID, r.CommissionAmount)
	if err != nil {
		return nil, err
	}
	wt := &models.WalletTransaction{
		ID:            uuid.NewString(),
		UserID:        r.ReferrerID,
		ReferralID:    r.ID,
		Type:          models.WalletCommissionCredit,
		Amount:        r.CommissionAmount,
		BalanceBefore: after.Sub(r.CommissionAmount),
		BalanceAfter:  after,
		Deficit:       decimal.Zero,
		CreatedAt:     now,
	}
	if err := tx.CreateWalletTransaction(ctx, wt); err != nil {
		return nil, err
	}
	l.Logger.Info("REFERRAL", fmt.Sprintf("credited %s to %s for referral %s", r.CommissionAmount.StringFixed(2), r.ReferrerID, r.ID))
	return wt, nil
}

// Cancel drops a pending referral. Nothing was credited, so the wallet is
// untouched.
func (l *Ledger) Cancel(ctx context.Context, tx *store.DB, r *models.Referral) error {
	now := l.Clock.Now()
	ok, err := tx.TransitionReferral(ctx, r.ID, models.ReferralPending, models.ReferralCancelled, now)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.ErrStateConflict
	}
	r.Status = models.ReferralCancelled
	r.UpdatedAt = now
	return nil
}

// Reversal is the outcome of reversing a completed commission.
type Reversal struct {
	Referral         *models.Referral
	CommissionRefund decimal.Decimal
	// Deficit is what could not be taken back because the wallet would
	// have gone below zero.
	Deficit     decimal.Decimal
	Transaction *models.WalletTransaction
}

// DeficitReversal reports whether the operator has an uncollected amount
// to resolve.
func (r *Reversal) DeficitReversal() bool {
	return r != nil && r.Deficit.IsPositive()
}

// Reverse takes back proportion (0..1) of a completed commission. The
// referral is cancelled only when the whole commission is reversed.
func (l *Ledger) Reverse(ctx context.Context, tx *store.DB, referralID string, proportion decimal.Decimal) (*Reversal, error) {
	r, err := tx.GetReferral(ctx, referralID)
	if err != nil {
		return nil, err
	}
	if r.Status != models.ReferralCompleted {
		return nil, apperr.ErrStateConflict
	}

	if proportion.IsNegative() {
		proportion = decimal.Zero
	}
	full := proportion.GreaterThanOrEqual(decimal.NewFromInt(1))

	refund := r.CommissionAmount.Mul(proportion).Round(2)
	if full || refund.GreaterThan(r.CommissionAmount) {
		refund = r.CommissionAmount
	}
	status := models.ReferralCompleted
	if full {
		status = models.ReferralCancelled
	}

	now := l.Clock.Now()
	ok, err := tx.ReduceCommission(ctx, r.ID, refund, status, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrStateConflict
	}
	r.CommissionAmount = r.CommissionAmount.Sub(refund)
	r.ReversedAmount = r.ReversedAmount.Add(refund)
	r.Status = status
	r.UpdatedAt = now

	rev := &Reversal{Referral: r, CommissionRefund: refund, Deficit: decimal.Zero}
	if refund.IsZero() {
		return rev, nil
	}

	after, err := tx.AddToWallet(ctx, r.ReferrerID, refund.Neg())
	if err != nil {
		return nil, err
	}
	before := after.Add(refund)
	if after.IsNegative() {
		rev.Deficit = after.Neg()
		if err := tx.ClampWalletAtZero(ctx, r.ReferrerID); err != nil {
			return nil, err
		}
		after = decimal.Zero
	}

	rev.Transaction = &models.WalletTransaction{
		ID:            uuid.NewString(),
		UserID:        r.ReferrerID,
		ReferralID:    r.ID,
		Type:          models.WalletCommissionReversal,
		Amount:        refund.Neg(),
		BalanceBefore: before,
		BalanceAfter:  after,
		Deficit:       rev.Deficit,
		CreatedAt:     now,
	}
	if err := tx.CreateWalletTransaction(ctx, rev.Transaction); err != nil {
		return nil, err
	}

	if rev.DeficitReversal() {
		l.Logger.Warn("REFERRAL", fmt.Sprintf("%s: referral %s reversed %s but wallet of %s only covered %s, deficit %s",
			apperr.CodeDeficitReversal, r.ID, refund.StringFixed(2), r.ReferrerID,
			before.StringFixed(2), rev.Deficit.StringFixed(2)))
	}
	return rev, nil
}
