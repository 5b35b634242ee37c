package store_test

import (
	"context"
	"errors"
	"testing"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/refund"
	"ms-boxoffice/internal/store"
	"ms-boxoffice/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecrementAvailableNeverGoesNegative(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	ev := testutil.SeedEvent(t, db)
	tt := testutil.SeedTicketType(t, db, ev.ID, testutil.WithQuantity(3))

	ok, err := db.DecrementAvailable(ctx, tt.ID, 2, testutil.Epoch)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.DecrementAvailable(ctx, tt.ID, 2, testutil.Epoch)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 1, testutil.ReloadTicketType(t, db, tt.ID).AvailableQuantity)
}

func TestIncrementAvailableIsClamped(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	ev := testutil.SeedEvent(t, db)
	tt := testutil.SeedTicketType(t, db, ev.ID, testutil.WithQuantity(5))

	_, err := db.DecrementAvailable(ctx, tt.ID, 2, testutil.Epoch)
	require.NoError(t, err)

	ok, err := db.IncrementAvailable(ctx, tt.ID, 10, testutil.Epoch)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 5, testutil.ReloadTicketType(t, db, tt.ID).AvailableQuantity)
}

func TestUpdateCapacity(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	ev := testutil.SeedEvent(t, db)
	tt := testutil.SeedTicketType(t, db, ev.ID, testutil.WithQuantity(10))

	_, err := db.DecrementAvailable(ctx, tt.ID, 4, testutil.Epoch)
	require.NoError(t, err)

	ok, err := db.UpdateCapacity(ctx, tt.ID, 3, testutil.Epoch)
	require.NoError(t, err)
	assert.False(t, ok, "cannot shrink below the 4 units sold")

	ok, err = db.UpdateCapacity(ctx, tt.ID, 6, testutil.Epoch)
	require.NoError(t, err)
	assert.True(t, ok)

	reloaded := testutil.ReloadTicketType(t, db, tt.ID)
	assert.Equal(t, 6, reloaded.Quantity)
	assert.Equal(t, 2, reloaded.AvailableQuantity)
}

func TestClaimCouponUseRespectsLimit(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	limit := 1
	c := testutil.SeedCoupon(t, db, models.Coupon{
		Code:          "ONCE",
		DiscountType:  models.DiscountFixed,
		DiscountValue: testutil.Money("5"),
		UsageLimit:    &limit,
		IsActive:      true,
	})

	ok, err := db.ClaimCouponUse(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = db.ClaimCouponUse(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.ReleaseCouponUse(ctx, c.ID))
	ok, err = db.ClaimCouponUse(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestWalletRelativeUpdates(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	u := testutil.SeedUser(t, db, "Referrer", "REF1")

	balance, err := db.AddToWallet(ctx, u.ID, testutil.Money("10.50"))
	require.NoError(t, err)
	assert.True(t, balance.Equal(testutil.Money("10.5")), balance.String())

	balance, err = db.AddToWallet(ctx, u.ID, testutil.Money("-12"))
	require.NoError(t, err)
	assert.True(t, balance.Equal(testutil.Money("-1.5")), balance.String())

	require.NoError(t, db.ClampWalletAtZero(ctx, u.ID))
	assert.True(t, testutil.ReloadUser(t, db, u.ID).WalletBalance.IsZero())

	_, err = db.AddToWallet(ctx, "missing", testutil.Money("1"))
	assert.True(t, errors.Is(err, apperr.ErrUserNotFound))
}

func TestRunInTxRollsBack(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()
	ev := testutil.SeedEvent(t, db)
	tt := testutil.SeedTicketType(t, db, ev.ID, testutil.WithQuantity(5))

	boom := errors.New("boom")
	err := db.RunInTx(ctx, func(ctx context.Context, tx *store.DB) error {
		if _, err := tx.DecrementAvailable(ctx, tt.ID, 5, testutil.Epoch); err != nil {
			return err
		}
		return tx.RunInTx(ctx, func(ctx context.Context, inner *store.DB) error {
			return boom
		})
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 5, testutil.ReloadTicketType(t, db, tt.ID).AvailableQuantity)
}

func TestNotFoundErrors(t *testing.T) {
	db := testutil.NewDB(t)
	ctx := context.Background()

	_, err := db.GetTicketType(ctx, "nope")
	assert.ErrorIs(t, err, apperr.ErrTicketTypeNotFound)
	_, err = db.GetPayment(ctx, "nope")
	assert.ErrorIs(t, err, apperr.ErrPaymentNotFound)
	_, err = db.GetTicketByNumber(ctx, "TKT-0")
	assert.ErrorIs(t, err, apperr.ErrTicketNotFound)
	_, err = db.GetCouponByCode(ctx, "NOPE")
	assert.ErrorIs(t, err, apperr.ErrInvalidCoupon)

	u, err := db.GetUserByReferralCode(ctx, "NOPE")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestTicketTypeSummary(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()
	ev := testutil.SeedEvent(t, h.DB)
	tt := testutil.SeedTicketType(t, h.DB, ev.ID, testutil.WithPrice("25.00"), testutil.WithQuantity(10))
	buyer := testutil.SeedUser(t, h.DB, "Buyer", "")

	kept, err := h.Purchases.Purchase(ctx, testutil.CardPurchase(tt.ID, buyer.ID, 2))
	require.NoError(t, err)
	refunded, err := h.Purchases.Purchase(ctx, testutil.CardPurchase(tt.ID, buyer.ID, 1))
	require.NoError(t, err)
	pending := testutil.CardPurchase(tt.ID, buyer.ID, 1)
	pending.PaymentMethod = models.MethodCash
	_, err = h.Purchases.Purchase(ctx, pending)
	require.NoError(t, err)

	ok, err := h.DB.MarkCheckedIn(ctx, kept.Tickets[0].ID, testutil.Epoch)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = h.Refunds.Refund(ctx, refund.Request{PaymentID: refunded.Payment.ID, Amount: testutil.Money("25"), ActorID: "admin-1"})
	require.NoError(t, err)

	summary, err := h.DB.GetTicketTypeSummary(ctx, tt.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, summary.Quantity)
	assert.Equal(t, 7, summary.Available)
	assert.Equal(t, 3, summary.Sold, "the unpaid booking still holds its unit")
	assert.Equal(t, 1, summary.CheckedIn)
	assert.True(t, summary.GrossRevenue.Equal(testutil.Money("75")), summary.GrossRevenue.String())
	assert.True(t, summary.RefundedTotal.Equal(testutil.Money("25")), summary.RefundedTotal.String())

	_, err = h.DB.GetTicketTypeSummary(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrTicketTypeNotFound)
}
