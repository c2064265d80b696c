package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Amund211/docprompt/internal/constants"
	"github.com/Amund211/docprompt/internal/domain"
	"github.com/Amund211/docprompt/internal/logging"
	"github.com/Amund211/docprompt/internal/ratelimiting"
	"github.com/Amund211/docprompt/internal/reporting"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	uploadMaxOperationTime   = 1 * time.Minute
	responseMaxOperationTime = 2 * time.Minute

	filePurpose = "assistants"
)

type openAIMetricsCollection struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
}

func setupOpenAIMetrics(meter metric.Meter) (openAIMetricsCollection, error) {
	requestCount, err := meter.Int64Counter("openai/request_count")
	if err != nil {
		return openAIMetricsCollection{}, fmt.Errorf("failed to create request count metric: %w", err)
	}

	requestDuration, err := meter.Float64Histogram(
		"openai/request_duration_seconds",
		metric.WithUnit("s"),
	)
	if err != nil {
		return openAIMetricsCollection{}, fmt.Errorf("failed to create request duration metric: %w", err)
	}

	return openAIMetricsCollection{
		requestCount:    requestCount,
		requestDuration: requestDuration,
	}, nil
}

type client struct {
	httpClient HttpClient
	limiter    ratelimiting.RequestLimiter
	baseURL    string
	apiKey     string
	model      string

	metrics openAIMetricsCollection
	tracer  trace.Tracer
}

func NewClient(
	httpClient HttpClient,
	baseURL string,
	apiKey string,
	model string,
	nowFunc func() time.Time,
	afterFunc func(time.Duration) <-chan time.Time,
) (*client, error) {
	const name = "docprompt/openai"

	metrics, err := setupOpenAIMetrics(otel.Meter(name))
	if err != nil {
		return nil, fmt.Errorf("failed to set up metrics: %w", err)
	}

	// Well below the request limits of the lowest usage tier
	limiter := ratelimiting.NewWindowLimitRequestLimiter(400, 1*time.Minute, nowFunc, afterFunc)

	return &client{
		httpClient: httpClient,
		limiter:    limiter,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,

		metrics: metrics,
		tracer:  otel.Tracer(name),
	}, nil
}

type uploadFileResponse struct {
	ID string `json:"id"`
}

func (c *client) UploadFile(ctx context.Context, filename string, content io.Reader) (domain.FileHandle, error) {
	ctx, span := c.tracer.Start(ctx, "OpenAI.UploadFile")
	defer span.End()

	newBody := func() (io.Reader, string) {
		reader, writer := io.Pipe()
		form := multipart.NewWriter(writer)

		go func() {
			err := writeUploadForm(form, filename, content)
			if err == nil {
				err = form.Close()
			}
			writer.CloseWithError(err)
		}()

		return reader, form.FormDataContentType()
	}

	status, data, err := c.post(ctx, "/v1/files", uploadMaxOperationTime, newBody)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	if status != http.StatusOK {
		err := fmt.Errorf("failed to upload file: %w", errorFromResponse(status, data, ""))
		c.reportUnexpected(ctx, err, status, data)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	var response uploadFileResponse
	if err := json.Unmarshal(data, &response); err != nil {
		err := fmt.Errorf("failed to parse upload response: %w", err)
		reporting.Report(ctx, err, map[string]string{"data": string(data)})
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	if response.ID == "" {
		err := fmt.Errorf("upload response is missing the file id")
		reporting.Report(ctx, err, map[string]string{"data": string(data)})
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	logging.FromContext(ctx).InfoContext(ctx, "Uploaded file", "filename", filename, "fileID", response.ID)

	return domain.FileHandle(response.ID), nil
}

func writeUploadForm(form *multipart.Writer, filename string, content io.Reader) error {
	if err := form.WriteField("purpose", filePurpose); err != nil {
		return fmt.Errorf("failed to write purpose field: %w", err)
	}

	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return fmt.Errorf("failed to create file part: %w", err)
	}

	if _, err := io.Copy(part, content); err != nil {
		return fmt.Errorf("failed to copy file content: %w", err)
	}

	return nil
}

type responsesRequest struct {
	Model string                `json:"model"`
	Input []responsesInputEntry `json:"input"`
}

type responsesInputEntry struct {
	Role    string                  `json:"role"`
	Content []responsesInputContent `json:"content"`
}

type responsesInputContent struct {
	Type   string `json:"type"`
	Text   string `json:"text,omitempty"`
	FileID string `json:"file_id,omitempty"`
}

func (c *client) CreateResponse(ctx context.Context, prompt string, handle domain.FileHandle) (domain.Completion, error) {
	ctx, span := c.tracer.Start(ctx, "OpenAI.CreateResponse")
	defer span.End()
	span.SetAttributes(
		attribute.String("model", c.model),
		attribute.Int("prompt_length", len(prompt)),
	)

	body, err := json.Marshal(responsesRequest{
		Model: c.model,
		Input: []responsesInputEntry{
			{
				Role: "user",
				Content: []responsesInputContent{
					{Type: "input_text", Text: prompt},
					{Type: "input_file", FileID: string(handle)},
				},
			},
		},
	})
	if err != nil {
		err := fmt.Errorf("failed to marshal request: %w", err)
		reporting.Report(ctx, err)
		return domain.Completion{}, err
	}

	status, data, err := c.post(ctx, "/v1/responses", responseMaxOperationTime, func() (io.Reader, string) {
		return bytes.NewReader(body), "application/json"
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domain.Completion{}, err
	}

	if status != http.StatusOK {
		err := fmt.Errorf("failed to create response: %w", errorFromResponse(status, data, handle))
		c.reportUnexpected(ctx, err, status, data)
		span.SetStatus(codes.Error, err.Error())
		return domain.Completion{}, err
	}

	return domain.Completion{
		Text: ExtractText(data),
		Raw:  data,
	}, nil
}

// post sends a request built by newBody once the limiter allows it.
//
// The body is created inside the limited operation so nothing is produced for
// requests that never run.
func (c *client) post(
	ctx context.Context,
	path string,
	maxOperationTime time.Duration,
	newBody func() (io.Reader, string),
) (int, []byte, error) {
	url := c.baseURL + path

	var status int
	var data []byte
	var err error
	ran := c.limiter.Limit(ctx, maxOperationTime, func(ctx context.Context) {
		ctx, span := c.tracer.Start(ctx, "OpenAI.httppost")
		defer span.End()

		body, contentType := newBody()
		if closer, ok := body.(io.Closer); ok {
			defer closer.Close()
		}

		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
		if reqErr != nil {
			err = fmt.Errorf("failed to create request: %w", reqErr)
			reporting.Report(ctx, err)
			return
		}

		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("User-Agent", constants.USER_AGENT)

		start := time.Now()
		resp, doErr := c.httpClient.Do(req)
		if doErr != nil {
			err = fmt.Errorf("failed to send request: %w", doErr)
			if !errors.Is(doErr, context.Canceled) {
				reporting.Report(ctx, err, map[string]string{"path": path})
			}
			return
		}
		defer resp.Body.Close()

		data, err = io.ReadAll(resp.Body)
		if err != nil {
			err = fmt.Errorf("failed to read response body: %w", err)
			reporting.Report(ctx, err, map[string]string{"path": path})
			return
		}
		status = resp.StatusCode

		attributes := metric.WithAttributes(
			attribute.String("path", path),
			attribute.String("status_code", strconv.Itoa(status)),
		)
		c.metrics.requestCount.Add(ctx, 1, attributes)
		c.metrics.requestDuration.Record(ctx, time.Since(start).Seconds(), attributes)

		logging.FromContext(ctx).InfoContext(
			ctx,
			"OpenAI request completed",
			"path", path,
			"status", status,
			"duration", time.Since(start).String(),
		)
	})
	if !ran {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, nil, fmt.Errorf("request to %s not sent: %w", path, ctxErr)
		}
		logging.FromContext(ctx).WarnContext(ctx, "Did not send OpenAI request due to rate limiting", "path", path, "ctx_error", ctx.Err())
		return 0, nil, fmt.Errorf("%w: too many requests to openai API", domain.ErrTemporarilyUnavailable)
	}
	if err != nil {
		return 0, nil, err
	}

	return status, data, nil
}

func (c *client) reportUnexpected(ctx context.Context, err error, status int, data []byte) {
	if errors.Is(err, domain.ErrTemporarilyUnavailable) {
		logging.FromContext(ctx).WarnContext(ctx, "OpenAI temporarily unavailable", "status", status, "error", err.Error())
		return
	}

	reporting.Report(ctx, err, map[string]string{
		"data":   string(data),
		"status": strconv.Itoa(status),
	})
}
