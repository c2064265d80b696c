package app

import (
	"context"
	"errors"

	"github.com/Amund211/docprompt/internal/adapters/cache"
	"github.com/Amund211/docprompt/internal/domain"
	"github.com/Amund211/docprompt/internal/logging"
)

type DocumentStatus struct {
	Key string
	// State of the remote handle in the document cache
	State cache.State
	// Whether the document exists locally
	Available bool
}

type GetDocumentStatus func(ctx context.Context) DocumentStatus

func BuildGetDocumentStatus(documentCache *cache.SingleFlight[domain.FileHandle], source DocumentSource) GetDocumentStatus {
	return func(ctx context.Context) DocumentStatus {
		_, err := source.Stat(ctx)
		if err != nil && !errors.Is(err, domain.ErrDocumentNotFound) {
			logging.FromContext(ctx).WarnContext(ctx, "Failed to stat document", "error", err.Error())
		}

		return DocumentStatus{
			Key:       source.Key(),
			State:     documentCache.State(source.Key()),
			Available: err == nil,
		}
	}
}
