package database

import (
	"fmt"
	"log/slog"
	"os"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"
)

func TestMigrator(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping migrator tests in short mode.")
	}
	t.Parallel()

	t.Run("migrate up twice, then down", func(t *testing.T) {
		t.Parallel()

		ctx := t.Context()
		schemaName := "migrate_up_down"

		db, err := NewPostgresDatabase(ctx, LOCAL_CONNECTION_STRING)
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })

		db.MustExec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", pq.QuoteIdentifier(schemaName)))

		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
		migrator := NewDatabaseMigrator(db, logger)

		require.NoError(t, migrator.Migrate(ctx, schemaName), "error migrating up")
		require.NoError(t, migrator.Migrate(ctx, schemaName), "migrating again should be a no-op")

		conn, err := db.Conn(ctx)
		require.NoError(t, err)
		defer conn.Close()
		_, err = conn.ExecContext(ctx, fmt.Sprintf("SET search_path TO %s", pq.QuoteIdentifier(schemaName)))
		require.NoError(t, err)

		var tableCount int
		err = conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = $1 AND table_name = 'uploads'", schemaName).Scan(&tableCount)
		require.NoError(t, err)
		require.Equal(t, 1, tableCount)

		source, err := iofs.New(embeddedMigrations, "migrations")
		require.NoError(t, err)
		defer source.Close()

		driver, err := postgres.WithConnection(ctx, conn, &postgres.Config{
			DatabaseName: DB_NAME,
			SchemaName:   schemaName,
		})
		require.NoError(t, err)

		instance, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
		require.NoError(t, err)
		defer instance.Close()

		err = instance.Down()
		require.NoError(t, err, "error migrating down") // Should not even be ErrNoChange
	})
}
