// Package refund reverses purchases: refunds of completed payments and
// cancellation of pending ones.
package refund

import (
	"context"
	"fmt"
	"time"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/clock"
	"ms-boxoffice/internal/inventory"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/metrics"
	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/notify"
	"ms-boxoffice/internal/referral"
	"ms-boxoffice/internal/store"

	"github.com/shopspring/decimal"
)

// SystemActor is recorded as refunded_by when the expiry job cancels a payment.
const SystemActor = "system"

const expireBatchSize = 100

type Service struct {
	DB        *store.DB
	Inventory *inventory.Ledger
	Referrals *referral.Ledger
	Notifier  notify.Notifier
	Metrics   *metrics.Metrics
	Clock     clock.Clock
	Logger    *logger.Logger
}

func NewService(db *store.DB, inv *inventory.Ledger, refs *referral.Ledger, n notify.Notifier, m *metrics.Metrics, c clock.Clock, l *logger.Logger) *Service {
	if n == nil {
		n = notify.Nop{}
	}
	return &Service{
		DB:        db,
		Inventory: inv,
		Referrals: refs,
		Notifier:  n,
		Metrics:   m,
		Clock:     c,
		Logger:    l,
	}
}

type Request struct {
	PaymentID string          `json:"payment_id"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
	ActorID   string          `json:"actor_id"`
	// Administrative allows refunding tickets that were already checked in.
	Administrative bool `json:"administrative"`
}

type Result struct {
	Payment  *models.Payment    `json:"payment"`
	Tickets  []models.Ticket    `json:"tickets"`
	Reversal *referral.Reversal `json:"-"`
	// DeficitReversal is set when the referrer's wallet could not cover the
	// reversed commission. The operator has to settle the difference.
	DeficitReversal bool            `json:"deficit_reversal"`
	Deficit         decimal.Decimal `json:"deficit"`
}

// Refund refunds a completed payment or, with a zero amount, cancels a
// pending one.
func (s *Service) Refund(ctx context.Context, req Request) (*Result, error) {
	if req.PaymentID == "" {
		return nil, apperr.Validation(apperr.CodeInvalidInput, "payment id is required")
	}
	if req.Amount.IsNegative() {
		return nil, apperr.Validation(apperr.CodeInvalidInput, "refund amount cannot be negative")
	}
	// the stored amount and the commission proportion use the same cents
	req.Amount = req.Amount.Round(2)

	var (
		result    *Result
		recipient notify.Recipient
		kind      string
	)
	err := s.DB.RunInTx(ctx, func(ctx context.Context, tx *store.DB) error {
		p, err := tx.GetPayment(ctx, req.PaymentID)
		if err != nil {
			return err
		}

		switch p.Status {
		case models.PaymentRefunded:
			return apperr.ErrAlreadyRefunded
		case models.PaymentFailed:
			return apperr.BusinessRule(apperr.CodeNotRefundable,
				fmt.Sprintf("payment %s failed and has nothing to refund", p.ID))
		case models.PaymentPending:
			if req.Amount.IsPositive() {
				return apperr.BusinessRule(apperr.CodeRefundExceedsPaid,
					fmt.Sprintf("payment %s has not been paid, only cancellation is possible", p.ID))
			}
			kind = "cancel"
			result, err = s.cancel(ctx, tx, p, req.Reason, req.ActorID)
		default:
			kind = "refund"
			result, err = s.refund(ctx, tx, p, req)
		}
		if err != nil {
			return err
		}

		buyer, err := tx.GetUser(ctx, result.Payment.UserID)
		if err != nil {
			return err
		}
		recipient = notify.Recipient{UserID: buyer.ID, Name: buyer.Name, Email: buyer.Email, Phone: buyer.Phone}
		return nil
	})
	if err != nil {
		appErr := apperr.From(err)
		if appErr.Kind == apperr.KindInternal {
			s.Logger.Error("REFUND", fmt.Sprintf("refund of %s failed: %v", req.PaymentID, err))
		} else {
			s.Logger.Info("REFUND", fmt.Sprintf("refund of %s rejected: %s", req.PaymentID, appErr.Code))
		}
		return nil, appErr
	}

	s.Metrics.Refund(kind)
	s.Logger.LogRefund(string(result.Payment.Status), result.Payment.ID,
		fmt.Sprintf("%s %s by %s: %s", kind, result.Payment.RefundAmount.StringFixed(2), req.ActorID, req.Reason))
	if result.DeficitReversal {
		s.Logger.Warn("REFUND", fmt.Sprintf("%s: refund of %s left %s of commission uncollected",
			apperr.CodeDeficitReversal, result.Payment.ID, result.Deficit.StringFixed(2)))
	}

	if err := s.Notifier.Notify(ctx, recipient, notify.PaymentRefunded, refundPayload(result)); err != nil {
		s.Logger.Warn("REFUND", fmt.Sprintf("refund notification for %s failed: %v", result.Payment.ID, err))
	}
	return result, nil
}

func (s *Service) refund(ctx context.Context, tx *store.DB, p *models.Payment, req Request) (*Result, error) {
	now := s.Clock.Now()

	// Step 1: the amount must fit the payment
	if req.Amount.GreaterThan(p.Amount) {
		return nil, apperr.BusinessRule(apperr.CodeRefundExceedsPaid,
			fmt.Sprintf("refund %s exceeds the %s paid", req.Amount.StringFixed(2), p.Amount.StringFixed(2)))
	}
	if p.Amount.IsPositive() && !req.Amount.IsPositive() {
		return nil, apperr.Validation(apperr.CodeInvalidInput, "refund amount must be positive")
	}

	// Step 2: checked-in tickets are only refunded administratively
	tickets, err := tx.GetTicketsByPayment(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	from := []models.TicketStatus{models.TicketConfirmed}
	for _, t := range tickets {
		if t.IsCheckedIn || t.Status == models.TicketUsed {
			if !req.Administrative {
				return nil, apperr.BusinessRule(apperr.CodeTicketUsed,
					fmt.Sprintf("ticket %s was checked in and can only be refunded by an administrator", t.TicketNumber))
			}
			from = append(from, models.TicketUsed)
			break
		}
	}

	// Step 3: payment and tickets
	ok, err := tx.RefundPayment(ctx, p.ID, req.Amount, req.Reason, req.ActorID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrStateConflict
	}
	n, err := tx.TransitionTickets(ctx, p.ID, from, models.TicketRefunded, models.PaymentRefunded, now)
	if err != nil {
		return nil, err
	}
	if n != int64(p.Quantity) {
		// a ticket was checked in concurrently
		return nil, apperr.ErrStateConflict
	}

	// Step 4: every unit goes back on sale, even on a partial refund
	if err := s.Inventory.Release(ctx, tx, p.TicketTypeID, p.Quantity); err != nil {
		return nil, err
	}

	// Step 5: take back the commission in proportion
	result := &Result{Deficit: decimal.Zero}
	ref, err := tx.GetReferralByPayment(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if ref != nil && ref.Status == models.ReferralCompleted {
		proportion := decimal.NewFromInt(1)
		if p.Amount.IsPositive() {
			proportion = req.Amount.Div(p.Amount)
		}
		rev, err := s.Referrals.Reverse(ctx, tx, ref.ID, proportion)
		if err != nil {
			return nil, err
		}
		result.Reversal = rev
		result.DeficitReversal = rev.DeficitReversal()
		result.Deficit = rev.Deficit
	}

	if err := s.reload(ctx, tx, p.ID, result); err != nil {
		return nil, err
	}
	return result, nil
}

// cancel voids an unpaid purchase. Nothing was credited, so the referral is
// dropped without touching a wallet and the coupon use is given back.
func (s *Service) cancel(ctx context.Context, tx *store.DB, p *models.Payment, reason, actorID string) (*Result, error) {
	now := s.Clock.Now()

	ok, err := tx.FailPayment(ctx, p.ID, reason, actorID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.ErrStateConflict
	}
	n, err := tx.TransitionTickets(ctx, p.ID, []models.TicketStatus{models.TicketBooked},
		models.TicketCancelled, models.PaymentFailed, now)
	if err != nil {
		return nil, err
	}
	if n != int64(p.Quantity) {
		return nil, apperr.ErrStateConflict
	}
	if err := s.Inventory.Release(ctx, tx, p.TicketTypeID, p.Quantity); err != nil {
		return nil, err
	}

	ref, err := tx.GetReferralByPayment(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	if ref != nil && ref.Status == models.ReferralPending {
		if err := s.Referrals.Cancel(ctx, tx, ref); err != nil {
			return nil, err
		}
	}
	if p.CouponID != "" {
		if err := tx.ReleaseCouponUse(ctx, p.CouponID); err != nil {
			return nil, err
		}
	}

	result := &Result{Deficit: decimal.Zero}
	if err := s.reload(ctx, tx, p.ID, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Service) reload(ctx context.Context, tx *store.DB, paymentID string, result *Result) error {
	p, err := tx.GetPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	tickets, err := tx.GetTicketsByPayment(ctx, paymentID)
	if err != nil {
		return err
	}
	result.Payment = p
	result.Tickets = tickets
	return nil
}

// ExpireStalePending cancels manual payments left pending for longer than
// olderThan. Each payment is cancelled in its own transaction; one that
// changed state meanwhile is skipped.
func (s *Service) ExpireStalePending(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.Clock.Now().Add(-olderThan)
	stale, err := s.DB.GetStalePendingPayments(ctx, cutoff, expireBatchSize)
	if err != nil {
		return 0, apperr.From(err)
	}

	expired := 0
	for _, p := range stale {
		if err := ctx.Err(); err != nil {
			return expired, err
		}
		err := s.DB.RunInTx(ctx, func(ctx context.Context, tx *store.DB) error {
			current, err := tx.GetPayment(ctx, p.ID)
			if err != nil {
				return err
			}
			if current.Status != models.PaymentPending {
				return apperr.ErrStateConflict
			}
			_, err = s.cancel(ctx, tx, current, "payment expired", SystemActor)
			return err
		})
		if err != nil {
			s.Logger.Warn("REFUND", fmt.Sprintf("could not expire payment %s: %v", p.ID, err))
			continue
		}
		expired++
		s.Metrics.Refund("expire")
		s.Logger.LogRefund("EXPIRED", p.ID, fmt.Sprintf("pending since %s", p.CreatedAt.Format(time.RFC3339)))
	}

	if expired > 0 {
		s.Logger.Info("REFUND", fmt.Sprintf("expired %d of %d stale pending payments", expired, len(stale)))
	}
	return expired, nil
}

func refundPayload(r *Result) map[string]interface{} {
	numbers := make([]string, 0, len(r.Tickets))
	for _, t := range r.Tickets {
		numbers = append(numbers, t.TicketNumber)
	}
	return map[string]interface{}{
		"payment_id":     r.Payment.ID,
		"invoice_number": r.Payment.InvoiceNumber,
		"status":         r.Payment.Status,
		"refund_amount":  r.Payment.RefundAmount.StringFixed(2),
		"reason":         r.Payment.RefundReason,
		"ticket_numbers": numbers,
	}
}
