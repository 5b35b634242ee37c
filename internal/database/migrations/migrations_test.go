package migrations_test

import (
	"context"
	"testing"

	"ms-boxoffice/internal/database/migrations"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigrationsLeavesApplicationPoolOpen(t *testing.T) {
	dsn := testutil.PostgresDSN(t)
	ctx := context.Background()

	// opened first, the way main opens its pool before migrating
	db := testutil.OpenPostgres(t, dsn)

	runner := migrations.NewRunner(dsn, logger.NewTestLogger())
	require.NoError(t, runner.RunMigrations())
	require.NoError(t, runner.Close())

	ev := testutil.SeedEvent(t, db)
	got, err := db.GetEvent(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, ev.Name, got.Name)

	tt := testutil.SeedTicketType(t, db, ev.ID, testutil.WithQuantity(3))
	assert.Equal(t, 3, testutil.ReloadTicketType(t, db, tt.ID).AvailableQuantity)
}

func TestMigrationsRoundTrip(t *testing.T) {
	dsn := testutil.PostgresDSN(t)
	ctx := context.Background()
	db := testutil.OpenPostgres(t, dsn)

	runner := migrations.NewRunner(dsn, logger.NewTestLogger())
	t.Cleanup(func() { _ = runner.Close() })

	require.NoError(t, runner.RunMigrations())
	// a second run is a no-op
	require.NoError(t, runner.RunMigrations())

	require.NoError(t, runner.MigrateDown())
	var tables int
	require.NoError(t, db.Bun.NewRaw(
		"SELECT count(*) FROM information_schema.tables WHERE table_schema = 'public' AND table_name = 'tickets'",
	).Scan(ctx, &tables))
	assert.Zero(t, tables)

	require.NoError(t, runner.MigrateUp())
	testutil.SeedEvent(t, db)
}
