package ports

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Amund211/docprompt/internal/reporting"
)

type errorResponse struct {
	Error   string  `json:"error"`
	Details *string `json:"details,omitempty"`
}

func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		reporting.Report(ctx, fmt.Errorf("failed to marshal response: %w", err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Internal server error."}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(data)
}

func writeError(ctx context.Context, w http.ResponseWriter, statusCode int, message string) {
	writeJSON(ctx, w, statusCode, errorResponse{Error: message})
}

func writeErrorWithDetails(ctx context.Context, w http.ResponseWriter, statusCode int, message string, details string) {
	writeJSON(ctx, w, statusCode, errorResponse{Error: message, Details: &details})
}

func writeRateLimitExceeded(w http.ResponseWriter, r *http.Request) {
	writeError(r.Context(), w, http.StatusTooManyRequests, "Rate limit exceeded")
}
