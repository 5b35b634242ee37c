package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"ms-boxoffice/internal/database/migrations"
	"ms-boxoffice/internal/logger"
	"ms-boxoffice/internal/store"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
)

// PostgresDSN starts a throwaway Postgres container and returns its DSN.
// The test is skipped in short mode or when no Docker daemon answers.
func PostgresDSN(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping Postgres integration test in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "boxoffice",
				"POSTGRES_PASSWORD": "boxoffice",
				"POSTGRES_DB":       "boxoffice",
			},
			// the entrypoint restarts the server once after init
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://boxoffice:boxoffice@%s:%s/boxoffice?sslmode=disable", host, port.Port())
}

// MigratedPostgresDSN is PostgresDSN with the embedded migrations applied.
func MigratedPostgresDSN(t *testing.T) string {
	t.Helper()
	dsn := PostgresDSN(t)

	runner := migrations.NewRunner(dsn, logger.NewTestLogger())
	require.NoError(t, runner.RunMigrations())
	require.NoError(t, runner.Close())
	return dsn
}

// OpenPostgres opens a pooled connection to dsn. Hooks see every query
// made through the returned DB.
func OpenPostgres(t *testing.T, dsn string, hooks ...bun.QueryHook) *store.DB {
	t.Helper()
	sqldb, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(10)
	require.NoError(t, sqldb.PingContext(context.Background()))

	bunDB := bun.NewDB(sqldb, pgdialect.New())
	for _, h := range hooks {
		bunDB.AddQueryHook(h)
	}
	t.Cleanup(func() { bunDB.Close() })
	return store.New(bunDB)
}

// PauseOnce holds the first ticket read made through its connection until
// Release is called. Reached is closed once that read has returned rows, so
// a test can commit a competing transaction in between.
type PauseOnce struct {
	Reached chan struct{}

	armed    atomic.Bool
	release  chan struct{}
	released sync.Once
}

func NewPauseOnce() *PauseOnce {
	p := &PauseOnce{Reached: make(chan struct{}), release: make(chan struct{})}
	p.armed.Store(true)
	return p
}

func (p *PauseOnce) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (p *PauseOnce) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if !strings.HasPrefix(event.Query, "SELECT") || !strings.Contains(event.Query, `FROM "tickets"`) {
		return
	}
	if !p.armed.CompareAndSwap(true, false) {
		return
	}
	close(p.Reached)
	select {
	case <-p.release:
	case <-ctx.Done():
	}
}

// Wait blocks until the ticket read is paused.
func (p *PauseOnce) Wait(t *testing.T) {
	t.Helper()
	select {
	case <-p.Reached:
	case <-time.After(30 * time.Second):
		p.Release()
		t.Fatal("no ticket read reached the pause")
	}
}

// Release lets the paused query return. It is safe to call more than once.
func (p *PauseOnce) Release() {
	p.released.Do(func() { close(p.release) })
}
