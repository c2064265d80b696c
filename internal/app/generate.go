package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/Amund211/docprompt/internal/adapters/cache"
	"github.com/Amund211/docprompt/internal/adapters/uploadrepository"
	"github.com/Amund211/docprompt/internal/domain"
	"github.com/Amund211/docprompt/internal/logging"
)

type Completer interface {
	CreateResponse(ctx context.Context, prompt string, handle domain.FileHandle) (domain.Completion, error)
}

// Answer prompt using the reference document
type Generate func(ctx context.Context, prompt string) (string, error)

func BuildGenerateWithCache(
	documentCache *cache.SingleFlight[domain.FileHandle],
	source DocumentSource,
	materialize MaterializeDocument,
	completer Completer,
	repo uploadrepository.UploadRepository,
) Generate {
	return func(ctx context.Context, prompt string) (string, error) {
		logger := logging.FromContext(ctx)
		key := source.Key()

		// The document may disappear while we run, so this is checked on every request
		if _, err := source.Stat(ctx); err != nil {
			return "", fmt.Errorf("reference document unavailable: %w", err)
		}

		handle, err := documentCache.GetOrCreate(ctx, key, func(ctx context.Context) (domain.FileHandle, error) {
			return materialize(ctx)
		})
		if err != nil {
			// NOTE: MaterializeDocument handles its own error reporting
			return "", fmt.Errorf("failed to get document handle: %w", err)
		}

		logger.InfoContext(ctx, "Creating response", "fileID", handle, "promptLength", len(prompt))

		completion, err := completer.CreateResponse(ctx, prompt, handle)
		if errors.Is(err, domain.ErrFileHandleRejected) {
			logger.WarnContext(ctx, "Remote rejected the document handle, forgetting it", "fileID", handle)
			documentCache.Invalidate(ctx, key)

			// NOTE: UploadRepository implementations handle their own error reporting
			if forgetErr := repo.Forget(context.WithoutCancel(ctx), handle); forgetErr != nil {
				logger.ErrorContext(ctx, "Failed to forget rejected upload", "fileID", handle, "error", forgetErr.Error())
			}

			return "", fmt.Errorf("failed to create response: %w", err)
		} else if err != nil {
			// NOTE: Completer implementations handle their own error reporting
			return "", fmt.Errorf("failed to create response: %w", err)
		}

		return completion.Text, nil
	}
}
