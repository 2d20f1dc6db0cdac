package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMigrator_PostgresLifecycle(t *testing.T) {
	store := openRawPostgresStoreForIntegrationTest(t)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	require.NoError(t, store.MigrateDown(ctx, 100), "reset migration state")

	state, err := store.MigrationStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(0), state.Version)
	require.Equal(t, 0, state.Applied)
	require.Equal(t, []string{"0001_init", "0002_product_search"}, state.Pending)

	require.NoError(t, store.MigrateUp(ctx, 1))
	state, err = store.MigrationStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), state.Version)
	require.Equal(t, []string{"0002_product_search"}, state.Pending)

	require.NoError(t, store.MigrateUp(ctx, 0))
	require.NoError(t, store.MigrateUp(ctx, 0), "up must be idempotent")
	state, err = store.MigrationStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), state.Version)
	require.Equal(t, 2, state.Applied)
	require.True(t, state.UpToDate())

	require.NoError(t, store.MigrateDown(ctx, 0))
	state, err = store.MigrationStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), state.Version)

	require.NoError(t, store.MigrateDown(ctx, 1))
	require.NoError(t, store.MigrateDown(ctx, 1), "down on empty state is a no-op")

	state, err = store.MigrationStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, 0, state.Applied)

	require.NoError(t, store.MigrateUp(ctx, 0))
}

func TestMigrator_GuardsAndUnsupportedDirection(t *testing.T) {
	var nilStore *Store
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.Error(t, nilStore.MigrateUp(ctx, 0))
	require.Error(t, nilStore.MigrateDown(ctx, 1))
	_, err := nilStore.MigrationStatus(ctx)
	require.Error(t, err)

	store := openRawPostgresStoreForIntegrationTest(t)
	require.Error(t, store.migrate(ctx, migrationDirection("invalid"), 0))
}
