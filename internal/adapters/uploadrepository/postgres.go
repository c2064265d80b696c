package uploadrepository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Amund211/docprompt/internal/domain"
	"github.com/Amund211/docprompt/internal/reporting"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type Postgres struct {
	db     *sqlx.DB
	schema string
	tracer trace.Tracer
}

func NewPostgres(db *sqlx.DB, schema string) *Postgres {
	return &Postgres{
		db:     db,
		schema: schema,
		tracer: otel.Tracer("docprompt/uploadrepository/postgres"),
	}
}

type dbUpload struct {
	DocumentKey   string    `db:"document_key"`
	ContentSHA256 string    `db:"content_sha256"`
	FileID        string    `db:"file_id"`
	UploadedAt    time.Time `db:"uploaded_at"`
}

func (p *Postgres) FindLatest(ctx context.Context, documentKey string, contentSHA256 string) (domain.Upload, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.FindLatest")
	defer span.End()

	var upload dbUpload
	err := p.db.QueryRowxContext(
		ctx,
		fmt.Sprintf(`SELECT document_key, content_sha256, file_id, uploaded_at
		FROM %s.uploads
		WHERE document_key = $1 AND content_sha256 = $2
		ORDER BY uploaded_at DESC
		LIMIT 1`,
			pq.QuoteIdentifier(p.schema)),
		documentKey,
		contentSHA256,
	).StructScan(&upload)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Upload{}, domain.ErrUploadNotFound
	} else if err != nil {
		err := fmt.Errorf("failed to query upload: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"documentKey":   documentKey,
			"contentSHA256": contentSHA256,
		})
		return domain.Upload{}, err
	}

	return domain.Upload{
		DocumentKey:   upload.DocumentKey,
		ContentSHA256: upload.ContentSHA256,
		FileHandle:    domain.FileHandle(upload.FileID),
		UploadedAt:    upload.UploadedAt,
	}, nil
}

func (p *Postgres) Store(ctx context.Context, upload domain.Upload) error {
	ctx, span := p.tracer.Start(ctx, "Postgres.Store")
	defer span.End()

	if upload.FileHandle == "" {
		err := fmt.Errorf("file handle is empty")
		reporting.Report(ctx, err, map[string]string{"documentKey": upload.DocumentKey})
		return err
	}

	_, err := p.db.NamedExecContext(
		ctx,
		fmt.Sprintf(`INSERT INTO %s.uploads
		(document_key, content_sha256, file_id, uploaded_at)
		VALUES (:document_key, :content_sha256, :file_id, :uploaded_at)
		ON CONFLICT (file_id) DO NOTHING`,
			pq.QuoteIdentifier(p.schema)),
		dbUpload{
			DocumentKey:   upload.DocumentKey,
			ContentSHA256: upload.ContentSHA256,
			FileID:        string(upload.FileHandle),
			UploadedAt:    upload.UploadedAt,
		},
	)
	if err != nil {
		err := fmt.Errorf("failed to insert upload: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"documentKey": upload.DocumentKey,
			"fileID":      string(upload.FileHandle),
		})
		return err
	}

	return nil
}

func (p *Postgres) Forget(ctx context.Context, handle domain.FileHandle) error {
	ctx, span := p.tracer.Start(ctx, "Postgres.Forget")
	defer span.End()

	_, err := p.db.ExecContext(
		ctx,
		fmt.Sprintf("DELETE FROM %s.uploads WHERE file_id = $1", pq.QuoteIdentifier(p.schema)),
		string(handle),
	)
	if err != nil {
		err := fmt.Errorf("failed to delete upload: %w", err)
		reporting.Report(ctx, err, map[string]string{"fileID": string(handle)})
		return err
	}

	return nil
}
