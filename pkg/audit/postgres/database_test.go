package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nullstacklabs/execpool/pkg/audit"
	"github.com/nullstacklabs/execpool/pkg/executor"
)

func TestStoreAppendAndQueryByEventType(t *testing.T) {
	ctx := context.Background()
	container, connStr := setupTestContainer(t, ctx)
	defer container.Terminate(ctx)

	store, err := Open(ctx, &Config{
		ConnectionString: connStr,
		MigrationsPath:   "file://migrations",
	})
	require.NoError(t, err, "should connect to test database")
	defer store.Close()

	require.NoError(t, store.MigrateToLatest(), "should apply schema migrations")

	chain := audit.NewChain(store)
	chain.Record(executor.Event{Time: time.Now(), Type: executor.EventWorkerSpawned, Detail: "worker 1"})
	chain.Record(executor.Event{Time: time.Now(), Type: executor.EventWorkerSuicide, Detail: "worker 1 idle"})

	records, err := store.ByEventType(ctx, "worker_suicide")
	require.NoError(t, err)
	assert.Len(t, records, 1, "should find exactly one worker_suicide record")
	assert.Equal(t, "worker 1 idle", records[0].Detail)
}

func TestStoreRecordsFiltersByTimeRange(t *testing.T) {
	ctx := context.Background()
	container, connStr := setupTestContainer(t, ctx)
	defer container.Terminate(ctx)

	store, err := Open(ctx, &Config{
		ConnectionString: connStr,
		MigrationsPath:   "file://migrations",
	})
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.MigrateToLatest())

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)

	store.Append(audit.Record{
		SeqNo: 1, Time: time.Now(), Type: executor.EventWorkerSpawned,
		Detail: "in range", PreviousHash: "a", EntryHash: "b",
	})

	records, err := store.Records(ctx, past, future)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	noRecords, err := store.Records(ctx, future, future.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, noRecords, "should find no records outside the time window")
}

func TestOpenRejectsEmptyConnectionString(t *testing.T) {
	_, err := Open(context.Background(), &Config{ConnectionString: ""})
	assert.Error(t, err, "should reject an empty connection string")

	_, err = Open(context.Background(), nil)
	assert.Error(t, err, "should reject a nil config")
}

func setupTestContainer(t *testing.T, ctx context.Context) (testcontainers.Container, string) {
	t.Helper()

	pgContainer, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		postgres.WithDatabase("execpool_audit_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "should start a PostgreSQL container")

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "should get a connection string")

	return pgContainer, connStr
}
