package checkin_test

import (
	"context"
	"testing"

	"ms-boxoffice/internal/apperr"
	"ms-boxoffice/internal/checkin"
	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/notify"
	"ms-boxoffice/internal/purchase"
	"ms-boxoffice/internal/qr"
	"ms-boxoffice/internal/refund"
	"ms-boxoffice/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buy(t *testing.T, h *testutil.Harness, method models.PaymentMethod) *purchase.Result {
	t.Helper()
	ev := testutil.SeedEvent(t, h.DB)
	tt := testutil.SeedTicketType(t, h.DB, ev.ID)
	buyer := testutil.SeedUser(t, h.DB, "Buyer", "")
	res, err := h.Purchases.Purchase(context.Background(), purchase.Request{
		TicketTypeID:  tt.ID,
		Quantity:      1,
		UserID:        buyer.ID,
		PaymentMethod: method,
	})
	require.NoError(t, err)
	return res
}

func TestCheckInByTicketNumberIsIdempotent(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()
	ticket := buy(t, h, models.MethodCard).Tickets[0]

	first, err := h.CheckIns.CheckIn(ctx, checkin.Request{
		Code:      ticket.TicketNumber,
		StaffID:   "staff-1",
		Device:    "gate-a",
		IPAddress: "10.0.0.7",
	})
	require.NoError(t, err)
	assert.False(t, first.AlreadyCheckedIn)
	assert.True(t, first.CheckedInAt.Equal(testutil.Epoch))
	assert.Equal(t, models.TicketUsed, first.Ticket.Status)
	assert.Equal(t, models.CheckInTicketNumber, first.CheckIn.Method)
	assert.Equal(t, "gate-a", first.CheckIn.Device)

	second, err := h.CheckIns.CheckIn(ctx, checkin.Request{Code: ticket.TicketNumber, StaffID: "staff-2"})
	assert.ErrorIs(t, err, apperr.ErrAlreadyCheckedIn)
	require.NotNil(t, second)
	assert.True(t, second.AlreadyCheckedIn)
	assert.True(t, second.CheckedInAt.Equal(first.CheckedInAt))
	assert.Equal(t, "staff-1", second.CheckIn.StaffID, "the original audit record is kept")

	stored, err := h.DB.GetTicketByNumber(ctx, ticket.TicketNumber)
	require.NoError(t, err)
	assert.True(t, stored.IsCheckedIn)
	require.NotNil(t, stored.CheckedInAt)
	assert.True(t, stored.CheckedInAt.Equal(first.CheckedInAt))

	assert.Equal(t, []notify.EventType{notify.PurchaseCompleted, notify.TicketCheckedIn}, h.Notifier.Types())
}

func TestCheckInByQRCode(t *testing.T) {
	h := testutil.NewHarness(t)
	ticket := buy(t, h, models.MethodCard).Tickets[0]

	res, err := h.CheckIns.CheckIn(context.Background(), checkin.Request{Code: ticket.QRPayload, StaffID: "staff-1"})
	require.NoError(t, err)
	assert.Equal(t, ticket.ID, res.Ticket.ID)
	assert.Equal(t, models.CheckInQR, res.CheckIn.Method)
}

func TestCheckInRejectsForgedQRCode(t *testing.T) {
	h := testutil.NewHarness(t)
	ticket := buy(t, h, models.MethodCard).Tickets[0]

	other, err := qr.NewGenerator("someone-else", 128)
	require.NoError(t, err)
	forged, err := other.Seal(qr.Payload{TicketID: ticket.ID, TicketNumber: ticket.TicketNumber})
	require.NoError(t, err)

	_, err = h.CheckIns.CheckIn(context.Background(), checkin.Request{Code: forged, StaffID: "staff-1"})
	assert.ErrorIs(t, err, apperr.ErrInvalidQR)

	mismatched, err := h.QR.Seal(qr.Payload{TicketID: "another-ticket", TicketNumber: ticket.TicketNumber})
	require.NoError(t, err)
	_, err = h.CheckIns.CheckIn(context.Background(), checkin.Request{Code: mismatched, StaffID: "staff-1"})
	assert.ErrorIs(t, err, apperr.ErrInvalidQR)
}

func TestCheckInRejectsInvalidTickets(t *testing.T) {
	ctx := context.Background()

	t.Run("unpaid", func(t *testing.T) {
		h := testutil.NewHarness(t)
		ticket := buy(t, h, models.MethodCash).Tickets[0]

		_, err := h.CheckIns.CheckIn(ctx, checkin.Request{Code: ticket.TicketNumber, StaffID: "staff-1"})
		assert.ErrorIs(t, err, apperr.ErrPaymentNotCompleted)
	})

	t.Run("refunded", func(t *testing.T) {
		h := testutil.NewHarness(t)
		bought := buy(t, h, models.MethodCard)
		_, err := h.Refunds.Refund(ctx, refund.Request{PaymentID: bought.Payment.ID, Amount: bought.Payment.Amount, ActorID: "admin-1"})
		require.NoError(t, err)

		_, err = h.CheckIns.CheckIn(ctx, checkin.Request{Code: bought.Tickets[0].TicketNumber, StaffID: "staff-1"})
		assert.ErrorIs(t, err, apperr.ErrTicketNotValid)
	})

	t.Run("unknown number", func(t *testing.T) {
		h := testutil.NewHarness(t)
		_, err := h.CheckIns.CheckIn(ctx, checkin.Request{Code: "TKT-20260314-DEADBEEF", StaffID: "staff-1"})
		assert.ErrorIs(t, err, apperr.ErrTicketNotFound)
	})

	t.Run("empty code", func(t *testing.T) {
		h := testutil.NewHarness(t)
		_, err := h.CheckIns.CheckIn(ctx, checkin.Request{Code: "  ", StaffID: "staff-1"})
		assert.Equal(t, apperr.CodeInvalidInput, apperr.CodeOf(err))
	})
}

func TestCheckInLosesRaceToRefund(t *testing.T) {
	dsn := testutil.MigratedPostgresDSN(t)
	h := testutil.NewHarnessWithDB(t, testutil.OpenPostgres(t, dsn))
	ctx := context.Background()
	bought := buy(t, h, models.MethodCard)
	number := bought.Tickets[0].TicketNumber

	// the gate reads a valid ticket, then waits while it is refunded
	pause := testutil.NewPauseOnce()
	t.Cleanup(pause.Release)
	checkIns := checkin.NewService(testutil.OpenPostgres(t, dsn, pause), h.QR, h.Notifier, h.Metrics, h.Clock, h.Logger)

	errc := make(chan error, 1)
	go func() {
		_, err := checkIns.CheckIn(ctx, checkin.Request{Code: number, StaffID: "staff-1"})
		errc <- err
	}()
	pause.Wait(t)

	_, err := h.Refunds.Refund(ctx, refund.Request{PaymentID: bought.Payment.ID, Amount: bought.Payment.Amount, ActorID: "admin-1"})
	require.NoError(t, err)
	pause.Release()

	err = <-errc
	assert.ErrorIs(t, err, apperr.ErrStateConflict)
	assert.True(t, apperr.From(err).Retryable)

	stored, err := h.DB.GetTicketByNumber(ctx, number)
	require.NoError(t, err)
	assert.Equal(t, models.TicketRefunded, stored.Status)
	assert.False(t, stored.IsCheckedIn)
	prior, err := h.DB.GetCheckInByTicket(ctx, stored.ID)
	require.NoError(t, err)
	assert.Nil(t, prior)
	assert.NotContains(t, h.Notifier.Types(), notify.TicketCheckedIn)
}
