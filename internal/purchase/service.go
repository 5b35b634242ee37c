// Package purchase runs the atomic purchase of tickets: pricing, inventory,
// payment, ticket issue and referral accrual in one transaction.
package purchase

import (
	"context"
	"fmt"
	"time"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/clock"
	"ms-boxoffice/internal/discount"
	"ms-boxoffice/internal/inventory"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/metrics"
	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/notify"
	"ms-boxoffice/internal/payment"
	"ms-boxoffice/internal/qr"
	"ms-boxoffice/internal/referral"
	"ms-boxoffice/internal/store"
	"ms-boxoffice/internal/utils"
	"ms-boxoffice/internal/validate"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Charger is the bounded gateway call; *payment.Client implements it.
type Charger interface {
	Charge(ctx context.Context, req payment.ChargeRequest) (payment.Outcome, error)
}

// numberAttempts bounds how often a clashing ticket or invoice number is
// redrawn before the purchase gives up.
const numberAttempts = 5

type Service struct {
	DB        *store.DB
	Inventory *inventory.Ledger
	Referrals *referral.Ledger
	Gateway   Charger
	Settings  payment.SettingsSource
	QR        *qr.Generator
	Notifier  notify.Notifier
	Metrics   *metrics.Metrics
	Clock     clock.Clock
	Logger    *logger.Logger

	// TicketNumbers and InvoiceNumbers draw candidate numbers.
	TicketNumbers  func(time.Time) string
	InvoiceNumbers func(time.Time) string
}

func NewService(db *store.DB, inv *inventory.Ledger, refs *referral.Ledger, gw Charger, settings payment.SettingsSource,
	qrGen *qr.Generator, n notify.Notifier, m *metrics.Metrics, c clock.Clock, l *logger.Logger) *Service {
	if n == nil {
		n = notify.Nop{}
	}
	return &Service{
		DB:        db,
		Inventory: inv,
		Referrals: refs,
		Gateway:   gw,
		Settings:  settings,
		QR:        qrGen,
		Notifier:  n,
		Metrics:   m,
		Clock:     c,
		Logger:    l,

		TicketNumbers:  utils.GenerateTicketNumber,
		InvoiceNumbers: utils.GenerateInvoiceNumber,
	}
}

type Request struct {
	TicketTypeID  string               `json:"ticket_type_id" validate:"required"`
	Quantity      int                  `json:"quantity" validate:"min=1,max=50"`
	UserID        string               `json:"user_id" validate:"required"`
	CouponCode    string               `json:"coupon_code,omitempty"`
	ReferralCode  string               `json:"referral_code,omitempty"`
	PaymentMethod models.PaymentMethod `json:"payment_method" validate:"required"`
}

type Result struct {
	Payment  *models.Payment  `json:"payment"`
	Tickets  []models.Ticket  `json:"tickets"`
	Referral *models.Referral `json:"referral,omitempty"`
	Pricing  discount.Result  `json:"pricing"`
}

type quoteRequest struct {
	Quantity int `validate:"min=1,max=50"`
}

// Quote prices a prospective purchase without reserving anything. The
// quantity is bounded like a purchase.
func (s *Service) Quote(ctx context.Context, ticketTypeID string, quantity int, couponCode string) (*discount.Result, error) {
	if err := validate.Struct(quoteRequest{Quantity: quantity}); err != nil {
		return nil, err
	}
	tt, err := s.DB.GetTicketType(ctx, ticketTypeID)
	if err != nil {
		return nil, apperr.From(err)
	}
	var coupon *models.Coupon
	if couponCode != "" {
		if coupon, err = s.DB.GetCouponByCode(ctx, couponCode); err != nil {
			return nil, apperr.From(err)
		}
	}
	base := tt.Price.Mul(decimal.NewFromInt(int64(quantity)))
	res, err := discount.Price(coupon, base, s.Clock.Now(), tt.EventID)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// Purchase buys req.Quantity tickets. Either everything is written or
// nothing is: a failure at any step rolls back inventory, coupon usage and
// the referral.
func (s *Service) Purchase(ctx context.Context, req Request) (*Result, error) {
	result, recipient, err := s.purchase(ctx, req)
	if err != nil {
		appErr := apperr.From(err)
		s.Metrics.Purchase(metrics.Outcome(string(appErr.Code)))
		if appErr.Kind == apperr.KindInternal {
			s.Logger.Error("PURCHASE", fmt.Sprintf("purchase of %s by %s failed: %v", req.TicketTypeID, req.UserID, err))
		} else {
			s.Logger.Info("PURCHASE", fmt.Sprintf("purchase of %s by %s rejected: %s", req.TicketTypeID, req.UserID, appErr.Code))
		}
		return nil, appErr
	}

	s.Metrics.Purchase(metrics.Outcome(""))
	s.Logger.LogPurchase(string(result.Payment.Status), result.Payment.ID,
		fmt.Sprintf("%d x %s for %s via %s", len(result.Tickets), req.TicketTypeID, result.Payment.Amount.StringFixed(2), result.Payment.Method))

	if err := s.Notifier.Notify(ctx, recipient, notify.PurchaseCompleted, purchasePayload(result)); err != nil {
		s.Logger.Warn("PURCHASE", fmt.Sprintf("purchase notification for %s failed: %v", result.Payment.ID, err))
	}
	return result, nil
}

func (s *Service) purchase(ctx context.Context, req Request) (*Result, notify.Recipient, error) {
	if err := validate.Struct(req); err != nil {
		return nil, notify.Recipient{}, err
	}
	settings, err := s.Settings.Load(ctx)
	if err != nil {
		return nil, notify.Recipient{}, err
	}
	if err := settings.Check(req.PaymentMethod); err != nil {
		return nil, notify.Recipient{}, err
	}

	var (
		result    *Result
		recipient notify.Recipient
	)
	err = s.DB.RunInTx(ctx, func(ctx context.Context, tx *store.DB) error {
		now := s.Clock.Now()

		// Step 1: load the ticket type and the buyer
		tt, err := tx.GetTicketType(ctx, req.TicketTypeID)
		if err != nil {
			return err
		}
		buyer, err := tx.GetUser(ctx, req.UserID)
		if err != nil {
			return err
		}
		base := tt.Price.Mul(decimal.NewFromInt(int64(req.Quantity)))

		// Step 2: price against the coupon
		var coupon *models.Coupon
		if req.CouponCode != "" {
			if coupon, err = tx.GetCouponByCode(ctx, req.CouponCode); err != nil {
				return err
			}
		}
		pricing, err := discount.Price(coupon, base, now, tt.EventID)
		if err != nil {
			return err
		}

		// Step 3: reserve inventory
		if err := s.Inventory.Reserve(ctx, tx, tt, req.Quantity); err != nil {
			return err
		}

		// Step 4: count the coupon use while the limit still allows it
		if coupon != nil {
			ok, err := tx.ClaimCouponUse(ctx, coupon.ID)
			if err != nil {
				return err
			}
			if !ok {
				return apperr.ErrCouponExhausted
			}
		}

		// Step 5: resolve the referrer
		referrer, err := s.Referrals.ResolveReferrer(ctx, tx, req.ReferralCode, buyer.ID)
		if err != nil {
			return err
		}

		invoice, err := s.drawNumbers(ctx, 1, now, s.InvoiceNumbers, tx.TakenInvoiceNumbers)
		if err != nil {
			return err
		}
		p := &models.Payment{
			ID:            uuid.NewString(),
			UserID:        buyer.ID,
			TicketTypeID:  tt.ID,
			Quantity:      req.Quantity,
			Amount:        pricing.FinalAmount,
			Method:        req.PaymentMethod,
			Status:        models.PaymentPending,
			RefundAmount:  decimal.Zero,
			InvoiceNumber: invoice[0],
			CouponID:      pricing.CouponID,
			CreatedAt:     now,
			UpdatedAt:     now,
		}

		// Step 6: charge. Manual methods settle later; a free order has
		// nothing to charge.
		if !req.PaymentMethod.IsManual() {
			if pricing.FinalAmount.IsPositive() {
				outcome, err := s.charge(ctx, settings.GatewayTimeout, payment.ChargeRequest{
					PaymentID:     p.ID,
					InvoiceNumber: p.InvoiceNumber,
					UserID:        buyer.ID,
					Amount:        pricing.FinalAmount,
					Method:        req.PaymentMethod,
				})
				if err != nil {
					return err
				}
				p.TransactionID = outcome.TransactionID
			}
			p.Status = models.PaymentCompleted
			p.ConfirmedAt = &now
		}

		// Step 7: write the payment and one ticket per unit
		tickets, err := s.issueTickets(ctx, tx, tt, p, referrer, pricing.DiscountAmount, now)
		if err != nil {
			return err
		}
		if err := tx.CreatePayment(ctx, p); err != nil {
			return err
		}
		if err := tx.CreateTickets(ctx, tickets); err != nil {
			return err
		}

		// Step 8: accrue the commission, crediting it now if paid
		var ref *models.Referral
		if referrer != nil {
			ref, err = s.Referrals.Accrue(ctx, tx, referral.AccrueInput{
				ReferrerID:     referrer.ID,
				ReferredUserID: buyer.ID,
				TicketID:       tickets[0].ID,
				PaymentID:      p.ID,
				FinalAmount:    pricing.FinalAmount,
				Rate:           s.Referrals.RateFor(referrer),
			})
			if err != nil {
				return err
			}
			if p.Status == models.PaymentCompleted {
				if _, err := s.Referrals.Complete(ctx, tx, ref); err != nil {
					return err
				}
			}
		}

		result = &Result{Payment: p, Tickets: tickets, Referral: ref, Pricing: pricing}
		recipient = recipientOf(buyer)
		return nil
	})
	return result, recipient, err
}

// charge calls the gateway, bounded by the configured timeout.
func (s *Service) charge(ctx context.Context, timeout time.Duration, req payment.ChargeRequest) (payment.Outcome, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.Gateway.Charge(ctx, req)
}

// drawNumbers returns n distinct numbers from gen that taken does not
// report as already stored. Clashes are redrawn.
func (s *Service) drawNumbers(ctx context.Context, n int, now time.Time, gen func(time.Time) string,
	taken func(ctx context.Context, numbers []string) ([]string, error)) ([]string, error) {
	numbers := make([]string, n)
	for i := range numbers {
		numbers[i] = gen(now)
	}

	for attempt := 1; ; attempt++ {
		stored, err := taken(ctx, numbers)
		if err != nil {
			return nil, err
		}
		used := make(map[string]bool, len(stored)+n)
		for _, num := range stored {
			used[num] = true
		}
		var clashes []int
		for i, num := range numbers {
			if used[num] {
				clashes = append(clashes, i)
				continue
			}
			used[num] = true
		}
		if len(clashes) == 0 {
			return numbers, nil
		}
		if attempt == numberAttempts {
			return nil, apperr.Conflict(fmt.Sprintf("could not draw %d unique numbers after %d attempts", n, numberAttempts))
		}
		s.Logger.Warn("PURCHASE", fmt.Sprintf("%d number clash(es) on attempt %d, redrawing", len(clashes), attempt))
		for _, i := range clashes {
			numbers[i] = gen(now)
		}
	}
}

func (s *Service) issueTickets(ctx context.Context, tx *store.DB, tt *models.TicketType, p *models.Payment, referrer *models.User, discountTotal decimal.Decimal, now time.Time) ([]models.Ticket, error) {
	status, paymentStatus := models.TicketBooked, models.PaymentPending
	if p.Status == models.PaymentCompleted {
		status, paymentStatus = models.TicketConfirmed, models.PaymentCompleted
	}
	referrerID := ""
	if referrer != nil {
		referrerID = referrer.ID
	}

	numbers, err := s.drawNumbers(ctx, p.Quantity, now, s.TicketNumbers, tx.TakenTicketNumbers)
	if err != nil {
		return nil, err
	}

	discounts := discount.Split(tt.Price, discountTotal, p.Quantity)
	tickets := make([]models.Ticket, p.Quantity)
	for i := range tickets {
		t := models.Ticket{
			ID:             uuid.NewString(),
			TicketTypeID:   tt.ID,
			EventID:        tt.EventID,
			PaymentID:      p.ID,
			UserID:         p.UserID,
			ReferrerID:     referrerID,
			PurchasePrice:  tt.Price,
			DiscountAmount: discounts[i],
			FinalPrice:     tt.Price.Sub(discounts[i]),
			TicketNumber:   numbers[i],
			Status:         status,
			PaymentStatus:  paymentStatus,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		if s.QR != nil {
			sealed, err := s.QR.Seal(qr.Payload{TicketID: t.ID, TicketNumber: t.TicketNumber})
			if err != nil {
				return nil, fmt.Errorf("seal qr payload: %w", err)
			}
			t.QRPayload = sealed
		}
		tickets[i] = t
	}
	return tickets, nil
}

// ConfirmPayment settles a pending manual payment: the payment completes,
// its tickets become valid and any referral commission is credited.
func (s *Service) ConfirmPayment(ctx context.Context, paymentID, actorID string) (*Result, error) {
	var (
		result    *Result
		recipient notify.Recipient
	)
	err := s.DB.RunInTx(ctx, func(ctx context.Context, tx *store.DB) error {
		now := s.Clock.Now()

		p, err := tx.GetPayment(ctx, paymentID)
		if err != nil {
			return err
		}
		if p.Status != models.PaymentPending {
			return apperr.BusinessRule(apperr.CodePaymentNotPending,
				fmt.Sprintf("payment %s is %s, only pending payments can be confirmed", p.ID, p.Status))
		}

		ok, err := tx.ConfirmPayment(ctx, p.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperr.ErrStateConflict
		}
		n, err := tx.TransitionTickets(ctx, p.ID, []models.TicketStatus{models.TicketBooked},
			models.TicketConfirmed, models.PaymentCompleted, now)
		if err != nil {
			return err
		}
		if n != int64(p.Quantity) {
			return apperr.ErrStateConflict
		}

		ref, err := tx.GetReferralByPayment(ctx, p.ID)
		if err != nil {
			return err
		}
		if ref != nil && ref.Status == models.ReferralPending {
			if _, err := s.Referrals.Complete(ctx, tx, ref); err != nil {
				return err
			}
		}

		if p, err = tx.GetPayment(ctx, p.ID); err != nil {
			return err
		}
		tickets, err := tx.GetTicketsByPayment(ctx, p.ID)
		if err != nil {
			return err
		}
		buyer, err := tx.GetUser(ctx, p.UserID)
		if err != nil {
			return err
		}
		result = &Result{Payment: p, Tickets: tickets, Referral: ref}
		recipient = recipientOf(buyer)
		return nil
	})
	if err != nil {
		return nil, apperr.From(err)
	}

	s.Logger.LogPurchase("CONFIRMED", paymentID, fmt.Sprintf("confirmed by %s", actorID))
	if err := s.Notifier.Notify(ctx, recipient, notify.PaymentConfirmed, purchasePayload(result)); err != nil {
		s.Logger.Warn("PURCHASE", fmt.Sprintf("confirmation notification for %s failed: %v", paymentID, err))
	}
	return result, nil
}

func recipientOf(u *models.User) notify.Recipient {
	return notify.Recipient{UserID: u.ID, Name: u.Name, Email: u.Email, Phone: u.Phone}
}

func purchasePayload(r *Result) map[string]interface{} {
	ids := make([]string, 0, len(r.Tickets))
	numbers := make([]string, 0, len(r.Tickets))
	for _, t := range r.Tickets {
		ids = append(ids, t.ID)
		numbers = append(numbers, t.TicketNumber)
	}
	return map[string]interface{}{
		"payment_id":     r.Payment.ID,
		"invoice_number": r.Payment.InvoiceNumber,
		"status":         r.Payment.Status,
		"amount":         r.Payment.Amount.StringFixed(2),
		"ticket_ids":     ids,
		"ticket_numbers": numbers,
	}
}
