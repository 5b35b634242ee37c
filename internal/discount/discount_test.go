package discount

import (
	"testing"
	"time"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

func money(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func coupon(kind models.DiscountType, value string) *models.Coupon {
	return &models.Coupon{
		ID:            "coupon-1",
		Code:          "SAVE",
		DiscountType:  kind,
		DiscountValue: money(value),
		StartDate:     now.Add(-time.Hour),
		EndDate:       now.Add(time.Hour),
		IsActive:      true,
	}
}

func TestPriceNoCouponPassesThrough(t *testing.T) {
	res, err := Price(nil, money("100"), now, "event-1")
	require.NoError(t, err)
	assert.True(t, res.DiscountAmount.IsZero())
	assert.True(t, res.FinalAmount.Equal(money("100")))
	assert.Empty(t, res.CouponID)
}

func TestPricePercentageCappedByMaxDiscount(t *testing.T) {
	c := coupon(models.DiscountPercentage, "10")
	c.MaxDiscountAmount = decimal.NewNullDecimal(money("5"))

	res, err := Price(c, money("100"), now, "event-1")
	require.NoError(t, err)
	assert.True(t, res.DiscountAmount.Equal(money("5")), res.DiscountAmount.String())
	assert.True(t, res.FinalAmount.Equal(money("95")), res.FinalAmount.String())
	assert.Equal(t, "coupon-1", res.CouponID)
}

func TestPriceFixedClampedToBase(t *testing.T) {
	res, err := Price(coupon(models.DiscountFixed, "50"), money("30"), now, "event-1")
	require.NoError(t, err)
	assert.True(t, res.DiscountAmount.Equal(money("30")))
	assert.True(t, res.FinalAmount.IsZero())
}

func TestPricePercentageRoundsHalfUp(t *testing.T) {
	res, err := Price(coupon(models.DiscountPercentage, "15"), money("33.30"), now, "event-1")
	require.NoError(t, err)
	// 4.995 rounds to 5.00
	assert.True(t, res.DiscountAmount.Equal(money("5")), res.DiscountAmount.String())
	assert.True(t, res.FinalAmount.Equal(money("28.30")), res.FinalAmount.String())
}

func TestPriceRejections(t *testing.T) {
	limit := 2

	tests := []struct {
		name   string
		mutate func(c *models.Coupon)
		base   string
		want   *apperr.Error
	}{
		{"inactive", func(c *models.Coupon) { c.IsActive = false }, "100", apperr.ErrInvalidCoupon},
		{"expired", func(c *models.Coupon) { c.EndDate = now.Add(-time.Minute) }, "100", apperr.ErrCouponExpired},
		{"not started", func(c *models.Coupon) { c.StartDate = now.Add(time.Minute) }, "100", apperr.ErrCouponExpired},
		{"other event", func(c *models.Coupon) { c.EventID = "event-2" }, "100", apperr.ErrCouponNotApplicable},
		{"below minimum", func(c *models.Coupon) { c.MinPurchaseAmount = decimal.NewNullDecimal(money("150")) }, "100", apperr.ErrBelowMinimumPurchase},
		{"exhausted", func(c *models.Coupon) { c.UsageLimit = &limit; c.UsedCount = 2 }, "100", apperr.ErrCouponExhausted},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := coupon(models.DiscountPercentage, "10")
			tc.mutate(c)

			res, err := Price(c, money(tc.base), now, "event-1")
			assert.ErrorIs(t, err, tc.want)
			assert.True(t, res.DiscountAmount.IsZero())
		})
	}
}

func TestPriceEventScopedCouponMatches(t *testing.T) {
	c := coupon(models.DiscountFixed, "10")
	c.EventID = "event-1"

	res, err := Price(c, money("40"), now, "event-1")
	require.NoError(t, err)
	assert.True(t, res.FinalAmount.Equal(money("30")))
}

func TestSplit(t *testing.T) {
	t.Run("even", func(t *testing.T) {
		parts := Split(money("50"), money("30"), 3)
		for _, p := range parts {
			assert.True(t, p.Equal(money("10")))
		}
	})

	t.Run("remainder cents go first", func(t *testing.T) {
		parts := Split(money("50"), money("10"), 3)
		assert.True(t, parts[0].Equal(money("3.34")), parts[0].String())
		assert.True(t, parts[1].Equal(money("3.33")))
		assert.True(t, parts[2].Equal(money("3.33")))
	})

	t.Run("never exceeds unit price", func(t *testing.T) {
		parts := Split(money("1"), money("2.99"), 3)
		sum := decimal.Zero
		for _, p := range parts {
			assert.True(t, p.LessThanOrEqual(money("1")), p.String())
			sum = sum.Add(p)
		}
		assert.True(t, sum.Equal(money("2.99")), sum.String())
	})
}
