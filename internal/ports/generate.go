package ports

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"

	"github.com/Amund211/docprompt/internal/app"
	"github.com/Amund211/docprompt/internal/domain"
	"github.com/Amund211/docprompt/internal/logging"
	"github.com/Amund211/docprompt/internal/ratelimiting"
	"github.com/Amund211/docprompt/internal/reporting"
)

const (
	invalidPromptMessage   = "Field 'prompt' is required and must be a string."
	generateFailedMessage  = "Failed to generate response from OpenAI."
	bodyTooLargeMessage    = "Request body too large."
	documentMissingMessage = "%s not found. Place it in the project root."
)

type generateResponse struct {
	Response string `json:"response"`
}

func MakeGenerateHandler(
	generate app.Generate,
	documentName string,
	allowedOrigins *AllowedOrigins,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	// Every request may end up as a paid call to openai
	ipLimiter, _ := ratelimiting.NewTokenBucketRateLimiter(
		ratelimiting.RefillPerSecond(0.5),
		ratelimiting.BurstSize(20),
	)
	ipRateLimiter := ratelimiting.NewRequestBasedRateLimiter(
		ipLimiter,
		ratelimiting.IPKeyFunc,
	)

	middleware := ComposeMiddlewares(
		buildMetricsMiddleware("generate"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("generate"),
		BuildCORSMiddleware(allowedOrigins),
		NewRateLimitMiddleware(ipRateLimiter, writeRateLimitExceeded),
		NewMaxBodyMiddleware(maxRequestBodyBytes),
	)

	handler := func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		// Bodies of any other content type are treated as absent
		if !isJSONContentType(r.Header.Get("Content-Type")) {
			logging.FromContext(ctx).InfoContext(ctx, "Unsupported content type", "contentType", r.Header.Get("Content-Type"))
			writeError(ctx, w, http.StatusBadRequest, invalidPromptMessage)
			return
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				writeError(ctx, w, http.StatusRequestEntityTooLarge, bodyTooLargeMessage)
				return
			}
			logging.FromContext(ctx).InfoContext(ctx, "Invalid request body", "error", err.Error())
			writeError(ctx, w, http.StatusBadRequest, invalidPromptMessage)
			return
		}

		prompt, ok := body["prompt"].(string)
		if !ok || prompt == "" {
			writeError(ctx, w, http.StatusBadRequest, invalidPromptMessage)
			return
		}

		ctx = logging.AddMetaToContext(ctx, slog.Int("promptLength", len(prompt)))
		ctx = reporting.AddExtrasToContext(ctx, map[string]string{
			"promptLength": fmt.Sprint(len(prompt)),
		})

		response, err := generate(ctx, prompt)
		if errors.Is(err, domain.ErrDocumentNotFound) {
			logging.FromContext(ctx).ErrorContext(ctx, "Reference document is missing", "document", documentName)
			writeError(ctx, w, http.StatusInternalServerError, fmt.Sprintf(documentMissingMessage, documentName))
			return
		}
		if err != nil {
			// NOTE: Generate implementations handle their own error reporting
			writeErrorWithDetails(ctx, w, http.StatusInternalServerError, generateFailedMessage, err.Error())
			return
		}

		logging.FromContext(ctx).InfoContext(ctx, "Generated response", "responseLength", len(response))
		writeJSON(ctx, w, http.StatusOK, generateResponse{Response: response})
	}

	return middleware(handler)
}

func isJSONContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}
