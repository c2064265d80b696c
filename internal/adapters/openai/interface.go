package openai

import (
	"context"
	"io"
	"net/http"

	"github.com/Amund211/docprompt/internal/domain"
)

type HttpClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client interface {
	// UploadFile stores content on the remote side and returns the issued file id
	UploadFile(ctx context.Context, filename string, content io.Reader) (domain.FileHandle, error)
	// CreateResponse asks the model to answer prompt using the uploaded file
	CreateResponse(ctx context.Context, prompt string, handle domain.FileHandle) (domain.Completion, error)
}
