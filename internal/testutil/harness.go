package testutil

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"ms-boxoffice/internal/checkin"
	"ms-boxoffice/internal/clock"
	"ms-boxoffice/internal/inventory"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/metrics"
	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/payment"
	"ms-boxoffice/internal/purchase"
	"ms-boxoffice/internal/qr"
	"ms-boxoffice/internal/referral"
	"ms-boxoffice/internal/refund"
	"ms-boxoffice/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Harness wires the purchase, refund and check-in services over a fresh
// database with an approving gateway and every payment method enabled.
type Harness struct {
	DB        *store.DB
	Clock     clock.Clock
	Logger    *logger.Logger
	Inventory *inventory.Ledger
	Referrals *referral.Ledger
	QR        *qr.Generator
	Notifier  *RecordingNotifier
	Metrics   *metrics.Metrics
	Purchases *purchase.Service
	Refunds   *refund.Service
	CheckIns  *checkin.Service

	// GatewayCalls counts charges that reached the gateway.
	GatewayCalls atomic.Int32
	// Gateway answers charges; replace it to simulate failures.
	Gateway payment.GatewayFunc
}

func NewHarness(t *testing.T) *Harness {
	t.Helper()
	return NewHarnessWithDB(t, NewDB(t))
}

// NewHarnessWithDB wires the services over db, typically a Postgres
// connection from OpenPostgres.
func NewHarnessWithDB(t *testing.T, db *store.DB) *Harness {
	t.Helper()
	h := &Harness{
		DB:       db,
		Clock:    clock.NewFixed(Epoch),
		Logger:   logger.NewTestLogger(),
		Notifier: &RecordingNotifier{},
		Metrics:  metrics.New(),
	}
	h.Gateway = func(ctx context.Context, req payment.ChargeRequest) (payment.Outcome, error) {
		return payment.Outcome{Success: true, TransactionID: "txn_" + uuid.NewString()[:8]}, nil
	}

	var err error
	h.QR, err = qr.NewGenerator("test-secret", 128)
	require.NoError(t, err)

	h.Inventory = inventory.NewLedger(h.Clock, h.Logger)
	h.Referrals = referral.NewLedger(decimal.NewFromInt(10), h.Clock, h.Logger)

	client := &payment.Client{
		Gateway: payment.GatewayFunc(func(ctx context.Context, req payment.ChargeRequest) (payment.Outcome, error) {
			h.GatewayCalls.Add(1)
			return h.Gateway(ctx, req)
		}),
		Observe: h.Metrics.GatewayCall,
		Logger:  h.Logger,
	}
	settings := payment.StaticSettings(payment.SettingsFromConfig(AllMethods, 5*time.Second))

	h.Purchases = purchase.NewService(h.DB, h.Inventory, h.Referrals, client, settings, h.QR, h.Notifier, h.Metrics, h.Clock, h.Logger)
	h.Refunds = refund.NewService(h.DB, h.Inventory, h.Referrals, h.Notifier, h.Metrics, h.Clock, h.Logger)
	h.CheckIns = checkin.NewService(h.DB, h.QR, h.Notifier, h.Metrics, h.Clock, h.Logger)
	return h
}

// AllMethods names every payment method.
var AllMethods = []string{"card", "wallet_app", "bank_transfer", "cash"}

// FailingGateway answers every charge with a transport error.
func FailingGateway(ctx context.Context, req payment.ChargeRequest) (payment.Outcome, error) {
	return payment.Outcome{}, errors.New("gateway unreachable")
}

// CardPurchase is a plain card purchase request.
func CardPurchase(ticketTypeID, userID string, quantity int) purchase.Request {
	return purchase.Request{
		TicketTypeID:  ticketTypeID,
		Quantity:      quantity,
		UserID:        userID,
		PaymentMethod: models.MethodCard,
	}
}
