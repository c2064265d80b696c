package uploadrepository

import (
	"context"

	"github.com/Amund211/docprompt/internal/domain"
)

// Nop remembers nothing. Used when no database is configured.
type Nop struct{}

func NewNop() Nop {
	return Nop{}
}

func (Nop) FindLatest(ctx context.Context, documentKey string, contentSHA256 string) (domain.Upload, error) {
	return domain.Upload{}, domain.ErrUploadNotFound
}

func (Nop) Store(ctx context.Context, upload domain.Upload) error {
	return nil
}

func (Nop) Forget(ctx context.Context, handle domain.FileHandle) error {
	return nil
}
