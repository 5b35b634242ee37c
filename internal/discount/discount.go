// Package discount validates coupons and prices a purchase against them.
// It never touches storage; usage counting belongs to the purchase
// transaction.
package discount

import (
	"fmt"
	"time"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Result is the priced outcome of applying a coupon (or none) to a base amount.
type Result struct {
	BaseAmount     decimal.Decimal `json:"base_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
	FinalAmount    decimal.Decimal `json:"final_amount"`
	CouponID       string          `json:"coupon_id,omitempty"`
}

// Price validates coupon for a purchase of baseAmount on eventID at now and
// computes the discount. A nil coupon passes the amount through.
func Price(coupon *models.Coupon, baseAmount decimal.Decimal, now time.Time, eventID string) (Result, error) {
	baseAmount = baseAmount.Round(2)
	result := Result{
		BaseAmount:     baseAmount,
		DiscountAmount: decimal.Zero,
		FinalAmount:    baseAmount,
	}

	if coupon == nil {
		return result, nil
	}

	if !coupon.IsActive {
		return result, apperr.ErrInvalidCoupon
	}
	if now.Before(coupon.StartDate) {
		return result, apperr.BusinessRule(apperr.CodeCouponExpired, "coupon is not active yet")
	}
	if now.After(coupon.EndDate) {
		return result, apperr.ErrCouponExpired
	}

	if coupon.EventID != "" && coupon.EventID != eventID {
		return result, apperr.ErrCouponNotApplicable
	}

	if coupon.MinPurchaseAmount.Valid && baseAmount.LessThan(coupon.MinPurchaseAmount.Decimal) {
		return result, apperr.BusinessRule(apperr.CodeBelowMinimumPurchase,
			fmt.Sprintf("purchase must be at least %s to use this coupon", coupon.MinPurchaseAmount.Decimal.StringFixed(2)))
	}

	if coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit {
		return result, apperr.ErrCouponExhausted
	}

	var discountAmount decimal.Decimal
	switch coupon.DiscountType {
	case models.DiscountPercentage:
		discountAmount = baseAmount.Mul(coupon.DiscountValue).Div(hundred).Round(2)
		if coupon.MaxDiscountAmount.Valid && discountAmount.GreaterThan(coupon.MaxDiscountAmount.Decimal) {
			discountAmount = coupon.MaxDiscountAmount.Decimal
		}
	case models.DiscountFixed:
		discountAmount = coupon.DiscountValue.Round(2)
	default:
		return result, apperr.Wrap(apperr.KindInternal, apperr.CodeInternal, "coupon is misconfigured",
			fmt.Errorf("unsupported discount type %q", coupon.DiscountType))
	}

	// A discount can never exceed the price or go negative.
	if discountAmount.GreaterThan(baseAmount) {
		discountAmount = baseAmount
	}
	if discountAmount.IsNegative() {
		discountAmount = decimal.Zero
	}

	result.DiscountAmount = discountAmount
	result.FinalAmount = baseAmount.Sub(discountAmount)
	result.CouponID = coupon.ID
	return result, nil
}

// Split spreads a purchase's discount over quantity units priced at
// unitPrice. Leftover cents go one each to the leading units so that no
// unit's discount exceeds its price and the parts sum to total.
func Split(unitPrice, total decimal.Decimal, quantity int) []decimal.Decimal {
	parts := make([]decimal.Decimal, quantity)
	if quantity <= 0 {
		return parts
	}
	qty := decimal.NewFromInt(int64(quantity))
	per := total.Div(qty).Truncate(2)
	cents := total.Sub(per.Mul(qty)).Mul(hundred).IntPart()
	cent := decimal.New(1, -2)
	for i := range parts {
		parts[i] = per
		if int64(i) < cents && per.Add(cent).LessThanOrEqual(unitPrice) {
			parts[i] = per.Add(cent)
		}
	}
	return parts
}
