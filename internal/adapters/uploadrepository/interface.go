package uploadrepository

import (
	"context"

	"github.com/Amund211/docprompt/internal/domain"
)

// Ledger of documents uploaded to the remote service
type UploadRepository interface {
	// FindLatest returns the most recent upload of the given content, or
	// domain.ErrUploadNotFound
	FindLatest(ctx context.Context, documentKey string, contentSHA256 string) (domain.Upload, error)
	Store(ctx context.Context, upload domain.Upload) error
	// Forget removes every record of the file handle
	Forget(ctx context.Context, handle domain.FileHandle) error
}
