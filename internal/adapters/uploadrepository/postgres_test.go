package uploadrepository

import (
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/Amund211/docprompt/internal/adapters/database"
	"github.com/Amund211/docprompt/internal/domain"
)

func newPostgres(t *testing.T, db *sqlx.DB, schemaSuffix string) *Postgres {
	t.Helper()
	require.NotEmpty(t, schemaSuffix, "schemaSuffix must not be empty")
	schema := fmt.Sprintf("uploads_repo_test_%s", schemaSuffix)

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	db.MustExec(fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", pq.QuoteIdentifier(schema)))

	err := database.NewDatabaseMigrator(db, logger).Migrate(t.Context(), schema)
	require.NoError(t, err)

	return NewPostgres(db, schema)
}

func requireEqualUploads(t *testing.T, expected, actual domain.Upload) {
	t.Helper()
	require.Equal(t, expected.DocumentKey, actual.DocumentKey)
	require.Equal(t, expected.ContentSHA256, actual.ContentSHA256)
	require.Equal(t, expected.FileHandle, actual.FileHandle)

	// Time can get truncated when round-tripping to the database
	require.WithinDuration(t, expected.UploadedAt, actual.UploadedAt, time.Millisecond)
}

const (
	sha1 = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	sha2 = "486ea46224d1bb4fb680f34f7c9ad96a8f24ec88be73ea8e5a6c65260e9cb8a7"
)

func TestPostgres(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping db tests in short mode.")
	}
	t.Parallel()

	db, err := database.NewPostgresDatabase(t.Context(), database.LOCAL_CONNECTION_STRING)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	now := time.Date(2026, time.March, 14, 15, 9, 26, 0, time.UTC)

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		p := newPostgres(t, db, "not_found")

		_, err := p.FindLatest(t.Context(), "prompt.pdf", sha1)
		require.ErrorIs(t, err, domain.ErrUploadNotFound)
	})

	t.Run("store then find", func(t *testing.T) {
		t.Parallel()
		p := newPostgres(t, db, "store_find")

		upload := domain.Upload{
			DocumentKey:   "prompt.pdf",
			ContentSHA256: sha1,
			FileHandle:    "file-abc",
			UploadedAt:    now,
		}
		require.NoError(t, p.Store(t.Context(), upload))

		found, err := p.FindLatest(t.Context(), "prompt.pdf", sha1)
		require.NoError(t, err)
		requireEqualUploads(t, upload, found)

		// Other content or other document
		_, err = p.FindLatest(t.Context(), "prompt.pdf", sha2)
		require.ErrorIs(t, err, domain.ErrUploadNotFound)
		_, err = p.FindLatest(t.Context(), "other.pdf", sha1)
		require.ErrorIs(t, err, domain.ErrUploadNotFound)
	})

	t.Run("latest upload wins", func(t *testing.T) {
		t.Parallel()
		p := newPostgres(t, db, "latest")

		older := domain.Upload{DocumentKey: "prompt.pdf", ContentSHA256: sha1, FileHandle: "file-old", UploadedAt: now}
		newer := domain.Upload{DocumentKey: "prompt.pdf", ContentSHA256: sha1, FileHandle: "file-new", UploadedAt: now.Add(time.Hour)}

		require.NoError(t, p.Store(t.Context(), newer))
		require.NoError(t, p.Store(t.Context(), older))

		found, err := p.FindLatest(t.Context(), "prompt.pdf", sha1)
		require.NoError(t, err)
		requireEqualUploads(t, newer, found)
	})

	t.Run("storing the same file id twice", func(t *testing.T) {
		t.Parallel()
		p := newPostgres(t, db, "duplicate")

		upload := domain.Upload{DocumentKey: "prompt.pdf", ContentSHA256: sha1, FileHandle: "file-abc", UploadedAt: now}
		require.NoError(t, p.Store(t.Context(), upload))
		require.NoError(t, p.Store(t.Context(), upload))
	})

	t.Run("empty file handle", func(t *testing.T) {
		t.Parallel()
		p := newPostgres(t, db, "empty_handle")

		err := p.Store(t.Context(), domain.Upload{DocumentKey: "prompt.pdf", ContentSHA256: sha1, UploadedAt: now})
		require.Error(t, err)
	})

	t.Run("forget", func(t *testing.T) {
		t.Parallel()
		p := newPostgres(t, db, "forget")

		older := domain.Upload{DocumentKey: "prompt.pdf", ContentSHA256: sha1, FileHandle: "file-old", UploadedAt: now}
		newer := domain.Upload{DocumentKey: "prompt.pdf", ContentSHA256: sha1, FileHandle: "file-new", UploadedAt: now.Add(time.Hour)}
		require.NoError(t, p.Store(t.Context(), older))
		require.NoError(t, p.Store(t.Context(), newer))

		require.NoError(t, p.Forget(t.Context(), "file-new"))

		found, err := p.FindLatest(t.Context(), "prompt.pdf", sha1)
		require.NoError(t, err)
		requireEqualUploads(t, older, found)

		require.NoError(t, p.Forget(t.Context(), "file-old"))
		_, err = p.FindLatest(t.Context(), "prompt.pdf", sha1)
		require.ErrorIs(t, err, domain.ErrUploadNotFound)

		// Forgetting an unknown handle is fine
		require.NoError(t, p.Forget(t.Context(), "file-unknown"))
	})
}
