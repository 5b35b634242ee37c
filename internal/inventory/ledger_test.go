package inventory_test

import (
	"context"
	"testing"
	"time"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/clock"
	"ms-boxoffice/internal/inventory"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger() *inventory.Ledger {
	return inventory.NewLedger(clock.NewFixed(testutil.Epoch), logger.NewTestLogger())
}

func TestReserve(t *testing.T) {
	ctx := context.Background()

	t.Run("decrements availability", func(t *testing.T) {
		db := testutil.NewDB(t)
		ev := testutil.SeedEvent(t, db)
		tt := testutil.SeedTicketType(t, db, ev.ID, testutil.WithQuantity(5))

		require.NoError(t, newLedger().Reserve(ctx, db, tt, 3))
		assert.Equal(t, 2, tt.AvailableQuantity)
		assert.Equal(t, 2, testutil.ReloadTicketType(t, db, tt.ID).AvailableQuantity)
	})

	t.Run("insufficient inventory", func(t *testing.T) {
		db := testutil.NewDB(t)
		ev := testutil.SeedEvent(t, db)
		tt := testutil.SeedTicketType(t, db, ev.ID, testutil.WithQuantity(2))

		err := newLedger().Reserve(ctx, db, tt, 3)
		assert.ErrorIs(t, err, apperr.ErrInsufficientInventory)
		assert.Equal(t, 2, testutil.ReloadTicketType(t, db, tt.ID).AvailableQuantity)
	})

	t.Run("sale window closed", func(t *testing.T) {
		db := testutil.NewDB(t)
		ev := testutil.SeedEvent(t, db)
		tt := testutil.SeedTicketType(t, db, ev.ID,
			testutil.WithSaleWindow(testutil.Epoch.Add(time.Hour), testutil.Epoch.Add(2*time.Hour)))

		assert.ErrorIs(t, newLedger().Reserve(ctx, db, tt, 1), apperr.ErrSaleWindowClosed)
	})

	t.Run("inactive", func(t *testing.T) {
		db := testutil.NewDB(t)
		ev := testutil.SeedEvent(t, db)
		tt := testutil.SeedTicketType(t, db, ev.ID, testutil.Inactive())

		assert.ErrorIs(t, newLedger().Reserve(ctx, db, tt, 1), apperr.ErrTicketTypeInactive)
	})

	t.Run("invalid quantity", func(t *testing.T) {
		db := testutil.NewDB(t)
		ev := testutil.SeedEvent(t, db)
		tt := testutil.SeedTicketType(t, db, ev.ID)

		assert.ErrorIs(t, newLedger().Reserve(ctx, db, tt, 0), apperr.ErrInvalidQuantity)
	})
}

func TestReleaseClampsToQuantity(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	ev := testutil.SeedEvent(t, db)
	tt := testutil.SeedTicketType(t, db, ev.ID, testutil.WithQuantity(4))
	l := newLedger()

	require.NoError(t, l.Reserve(ctx, db, tt, 1))
	require.NoError(t, l.Release(ctx, db, tt.ID, 3))
	assert.Equal(t, 4, testutil.ReloadTicketType(t, db, tt.ID).AvailableQuantity)

	assert.ErrorIs(t, l.Release(ctx, db, "missing", 1), apperr.ErrTicketTypeNotFound)
}

func TestAdjustCapacity(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	ev := testutil.SeedEvent(t, db)
	tt := testutil.SeedTicketType(t, db, ev.ID, testutil.WithQuantity(10))
	l := newLedger()

	require.NoError(t, l.Reserve(ctx, db, tt, 6))

	_, err := l.AdjustCapacity(ctx, db, tt.ID, 5)
	assert.ErrorIs(t, err, apperr.ErrCapacityBelowSold)

	updated, err := l.AdjustCapacity(ctx, db, tt.ID, 20)
	require.NoError(t, err)
	assert.Equal(t, 20, updated.Quantity)
	assert.Equal(t, 14, updated.AvailableQuantity)

	updated, err = l.AdjustCapacity(ctx, db, tt.ID, 6)
	require.NoError(t, err)
	assert.Equal(t, 0, updated.AvailableQuantity)
}
