// Package testutil sets up in-memory sqlite databases, Postgres
// containers and fixtures for package tests.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"ms-boxoffice/internal/models"
	"ms-boxoffice/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Epoch is the fixed "now" used across the tests.
var Epoch = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

// NewDB opens a private in-memory database with every table created.
// A single connection serializes transactions the way row locks would.
func NewDB(t *testing.T) *store.DB {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s_%s?mode=memory&cache=shared", name, uuid.NewString()[:8])
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })

	require.NoError(t, store.CreateSchema(context.Background(), bunDB))
	return store.New(bunDB)
}

func Money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func SeedEvent(t *testing.T, db *store.DB) *models.Event {
	t.Helper()
	ev := &models.Event{
		ID:          uuid.NewString(),
		Name:        "Spring Concert",
		OrganizerID: "organizer-1",
		StartsAt:    Epoch.Add(30 * 24 * time.Hour),
		EndsAt:      Epoch.Add(30*24*time.Hour + 4*time.Hour),
		CreatedAt:   Epoch,
	}
	require.NoError(t, db.CreateEvent(context.Background(), ev))
	return ev
}

func SeedUser(t *testing.T, db *store.DB, name, referralCode string) *models.User {
	t.Helper()
	u := &models.User{
		ID:            uuid.NewString(),
		Name:          name,
		Email:         strings.ToLower(name) + "@example.com",
		Phone:         "+15550100",
		ReferralCode:  referralCode,
		WalletBalance: decimal.Zero,
		CreatedAt:     Epoch,
	}
	require.NoError(t, db.CreateUser(context.Background(), u))
	return u
}

// TicketTypeOption tweaks a seeded ticket type.
type TicketTypeOption func(*models.TicketType)

func WithPrice(p string) TicketTypeOption {
	return func(tt *models.TicketType) { tt.Price = Money(p) }
}

func WithQuantity(q int) TicketTypeOption {
	return func(tt *models.TicketType) {
		tt.Quantity = q
		tt.AvailableQuantity = q
	}
}

func WithSaleWindow(start, end time.Time) TicketTypeOption {
	return func(tt *models.TicketType) {
		tt.SaleStart = start
		tt.SaleEnd = end
	}
}

func Inactive() TicketTypeOption {
	return func(tt *models.TicketType) { tt.IsActive = false }
}

func SeedTicketType(t *testing.T, db *store.DB, eventID string, opts ...TicketTypeOption) *models.TicketType {
	t.Helper()
	tt := &models.TicketType{
		ID:                uuid.NewString(),
		EventID:           eventID,
		Name:              "General Admission",
		Price:             Money("50.00"),
		Quantity:          100,
		AvailableQuantity: 100,
		SaleStart:         Epoch.Add(-24 * time.Hour),
		SaleEnd:           Epoch.Add(24 * time.Hour),
		IsActive:          true,
		CreatedAt:         Epoch,
		UpdatedAt:         Epoch,
	}
	for _, opt := range opts {
		opt(tt)
	}
	require.NoError(t, db.CreateTicketType(context.Background(), tt))
	return tt
}

func SeedCoupon(t *testing.T, db *store.DB, c models.Coupon) *models.Coupon {
	t.Helper()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.StartDate.IsZero() {
		c.StartDate = Epoch.Add(-24 * time.Hour)
	}
	if c.EndDate.IsZero() {
		c.EndDate = Epoch.Add(24 * time.Hour)
	}
	c.CreatedAt = Epoch
	require.NoError(t, db.CreateCoupon(context.Background(), &c))
	return &c
}

func ReloadTicketType(t *testing.T, db *store.DB, id string) *models.TicketType {
	t.Helper()
	tt, err := db.GetTicketType(context.Background(), id)
	require.NoError(t, err)
	return tt
}

func ReloadUser(t *testing.T, db *store.DB, id string) *models.User {
	t.Helper()
	u, err := db.GetUser(context.Background(), id)
	require.NoError(t, err)
	return u
}
