package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/Amund211/docprompt/internal/adapters/uploadrepository"
	"github.com/Amund211/docprompt/internal/domain"
	"github.com/Amund211/docprompt/internal/logging"
)

type DocumentSource interface {
	Key() string
	Name() string
	Stat(ctx context.Context) (domain.DocumentInfo, error)
	Open(ctx context.Context) (io.ReadCloser, error)
	Digest(ctx context.Context) (string, error)
}

type FileUploader interface {
	UploadFile(ctx context.Context, filename string, content io.Reader) (domain.FileHandle, error)
}

// Produce a remote file handle for the reference document
type MaterializeDocument func(ctx context.Context) (domain.FileHandle, error)

func BuildMaterializeDocument(
	source DocumentSource,
	uploader FileUploader,
	repo uploadrepository.UploadRepository,
	maxUploadAge time.Duration,
	nowFunc func() time.Time,
) MaterializeDocument {
	return func(ctx context.Context) (domain.FileHandle, error) {
		logger := logging.FromContext(ctx).With("documentKey", source.Key())

		digest, err := source.Digest(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to digest document: %w", err)
		}
		logger = logger.With("contentSHA256", digest)

		previous, err := repo.FindLatest(ctx, source.Key(), digest)
		if err == nil && maxUploadAge > 0 && nowFunc().Sub(previous.UploadedAt) >= maxUploadAge {
			logger.InfoContext(ctx, "Previous upload is too old to reuse", "fileID", previous.FileHandle, "uploadedAt", previous.UploadedAt)
		} else if err == nil {
			logger.InfoContext(ctx, "Reusing previously uploaded document", "fileID", previous.FileHandle, "uploadedAt", previous.UploadedAt)
			return previous.FileHandle, nil
		} else if !errors.Is(err, domain.ErrUploadNotFound) {
			// NOTE: UploadRepository implementations handle their own error reporting
			logger.ErrorContext(ctx, "Failed to look up previous uploads", "error", err.Error())
		}

		content, err := source.Open(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to open document: %w", err)
		}
		defer content.Close()

		handle, err := uploader.UploadFile(ctx, source.Name(), content)
		if err != nil {
			// NOTE: FileUploader implementations handle their own error reporting
			return "", fmt.Errorf("failed to upload document: %w", err)
		}
		logger.InfoContext(ctx, "Uploaded document", "fileID", handle)

		// Take a maximum of 1 second to not block the waiting requests for too long
		storeCtx, cancel := context.WithTimeout(ctx, 1*time.Second)
		defer cancel()
		err = repo.Store(storeCtx, domain.Upload{
			DocumentKey:   source.Key(),
			ContentSHA256: digest,
			FileHandle:    handle,
			UploadedAt:    nowFunc(),
		})
		if err != nil {
			// NOTE: UploadRepository implementations handle their own error reporting
			logger.ErrorContext(ctx, "Failed to record upload", "error", err.Error())

			// NOTE: The handle is still usable even though recording it failed
		}

		return handle, nil
	}
}
