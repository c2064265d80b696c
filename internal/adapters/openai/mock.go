package openai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Amund211/docprompt/internal/config"
	"github.com/Amund211/docprompt/internal/domain"
)

type mockedClient struct{}

// Deterministic client that never leaves the process
func NewMockedClient() Client {
	return &mockedClient{}
}

func (m *mockedClient) UploadFile(ctx context.Context, filename string, content io.Reader) (domain.FileHandle, error) {
	hash := sha256.New()
	if _, err := io.Copy(hash, content); err != nil {
		return "", fmt.Errorf("failed to read file content: %w", err)
	}
	return domain.FileHandle("file-mock-" + hex.EncodeToString(hash.Sum(nil))[:16]), nil
}

func (m *mockedClient) CreateResponse(ctx context.Context, prompt string, handle domain.FileHandle) (domain.Completion, error) {
	text := fmt.Sprintf("Mocked response to a prompt of %d characters using %s", len(prompt), handle)
	raw, err := json.Marshal(map[string]any{
		"object": "response",
		"status": "completed",
		"output": []any{
			map[string]any{
				"type": "message",
				"role": "assistant",
				"content": []any{
					map[string]any{"type": "output_text", "text": text},
				},
			},
		},
	})
	if err != nil {
		return domain.Completion{}, fmt.Errorf("failed to marshal mocked response: %w", err)
	}
	return domain.Completion{Text: ExtractText(raw), Raw: raw}, nil
}

func NewClientOrMock(conf config.Config, httpClient HttpClient) (Client, error) {
	if conf.OpenAIAPIKey() != "" {
		c, err := NewClient(httpClient, conf.OpenAIBaseURL(), conf.OpenAIAPIKey(), conf.OpenAIModel(), time.Now, time.After)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
	if conf.IsDevelopment() {
		return NewMockedClient(), nil
	}
	return nil, fmt.Errorf("missing OpenAI API key in non-development environment")
}
