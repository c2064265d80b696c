package database

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func TestDB(t *testing.T) {
	t.Parallel()

	t.Run("db name", func(t *testing.T) {
		t.Parallel()

		require.Equal(t, "docprompt", DB_NAME)
	})

	t.Run("schema name", func(t *testing.T) {
		t.Parallel()

		require.Equal(t, "docprompt", GetSchemaName(false))
		require.Equal(t, "docprompt_test", GetSchemaName(true))
	})

	t.Run("cloudsql connection string", func(t *testing.T) {
		t.Parallel()

		require.Equal(
			t,
			"user=user password=pass database=docprompt host=/cloudsql/project:region:instance",
			GetCloudSQLConnectionString("user", "pass", "/cloudsql/project:region:instance"),
		)
	})

	if testing.Short() {
		t.Skip("skipping db tests in short mode.")
	}

	t.Run("NewPostgresDatabase", func(t *testing.T) {
		t.Parallel()

		db, err := NewPostgresDatabase(t.Context(), LOCAL_CONNECTION_STRING)
		require.NoError(t, err)
		require.NotNil(t, db)
		require.NoError(t, db.Close())
	})

	t.Run("createDatabaseIfNotExists", func(t *testing.T) {
		t.Parallel()

		db, err := sqlx.Connect("postgres", LOCAL_CONNECTION_STRING)
		require.NoError(t, err)
		t.Cleanup(func() { db.Close() })

		t.Run("already existing", func(t *testing.T) {
			t.Parallel()

			require.NoError(t, createDatabaseIfNotExists(t.Context(), db, "postgres"))
			require.NoError(t, createDatabaseIfNotExists(t.Context(), db, DB_NAME))
		})

		t.Run("new database", func(t *testing.T) {
			t.Parallel()

			const characters = "abcdefghijklmnopqrstuvwxyz"
			suffix := make([]byte, 10)
			for i := range suffix {
				suffix[i] = characters[rand.IntN(len(characters))]
			}

			dbName := fmt.Sprintf("zz_random_db_%s", string(suffix))

			require.NoError(t, createDatabaseIfNotExists(t.Context(), db, dbName))
			// Second call finds it
			require.NoError(t, createDatabaseIfNotExists(t.Context(), db, dbName))
		})
	})
}
