//go:build integration

package database_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"kanzey-ticketing/internal/config"
	"kanzey-ticketing/internal/database"
	"kanzey-ticketing/internal/database/migrations"
	inventorydb "kanzey-ticketing/internal/inventory/db"
	"kanzey-ticketing/internal/logger"
	"kanzey-ticketing/internal/models"
	"kanzey-ticketing/internal/testutil"
	ticketdb "kanzey-ticketing/internal/tickets/db"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
)

func startPostgres(t *testing.T) config.DatabaseConfig {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "ticketing",
				"POSTGRES_PASSWORD": "ticketing",
				"POSTGRES_DB":       "ticketing",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return config.DatabaseConfig{
		Host:         host,
		Port:         port.Port(),
		Username:     "ticketing",
		Password:     "ticketing",
		Database:     "ticketing",
		SSLMode:      "disable",
		MaxOpenConns: 10,
		MaxIdleConns: 10,
		MaxLifetime:  time.Minute,
	}
}

func migratedDB(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()
	cfg := startPostgres(t)

	migrationDB, err := database.OpenSQL(ctx, cfg)
	require.NoError(t, err)
	runner := migrations.NewRunner(migrationDB, migrations.MigrateOptions{MigrationsDir: "../../migrations"}, logger.Discard())
	require.NoError(t, runner.MigrateUp())
	version, dirty, err := runner.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(3), version)
	assert.False(t, dirty)
	require.NoError(t, runner.Close())

	db, err := database.Open(ctx, cfg, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPostgres_PaidOnceUnderConcurrency(t *testing.T) {
	db := migratedDB(t)
	ctx := context.Background()

	testutil.InsertEvent(t, db, testutil.Event("evt-1", 100, 5000))
	tk := testutil.Ticket("TKT-1735689600123-9F3A0B1C", "user-1", "evt-1", models.TicketStatusPending, 2, 5000)
	testutil.InsertTicket(t, db, tk)

	inventory := &inventorydb.DB{Bun: db}
	store := &ticketdb.DB{Bun: db, Counters: inventory}

	var wg sync.WaitGroup
	var mu sync.Mutex
	wins := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			won, err := store.MarkPaid(ctx, tk.TicketID)
			assert.NoError(t, err)
			if won {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	ev, err := inventory.GetEvent(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, 2, ev.TicketsSold)
	assert.True(t, decimal.NewFromInt(10000).Equal(ev.Revenue), ev.Revenue.String())
}

func TestPostgres_ScanAndCancel(t *testing.T) {
	db := migratedDB(t)
	ctx := context.Background()

	ev := testutil.Event("evt-1", 100, 5000)
	ev.TicketsSold = 1
	ev.Revenue = decimal.NewFromInt(5000)
	testutil.InsertEvent(t, db, ev)

	paid := testutil.Ticket("TKT-1735689600123-00000001", "user-1", "evt-1", models.TicketStatusPaid, 1, 5000)
	testutil.InsertTicket(t, db, paid)

	inventory := &inventorydb.DB{Bun: db}
	store := &ticketdb.DB{Bun: db, Counters: inventory}

	won, err := store.MarkScanned(ctx, paid.TicketID, "agent-1", time.Now())
	require.NoError(t, err)
	assert.True(t, won)

	won, err = store.CancelTicket(ctx, paid)
	require.NoError(t, err)
	assert.False(t, won, "a scanned ticket cannot be cancelled")

	got, err := inventory.GetEvent(ctx, "evt-1")
	require.NoError(t, err)
	assert.Equal(t, 1, got.TicketsUsed)
	assert.Equal(t, 1, got.TicketsSold)
}
