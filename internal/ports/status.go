package ports

import (
	"log/slog"
	"net/http"

	"github.com/Amund211/docprompt/internal/app"
	"github.com/Amund211/docprompt/internal/logging"
	"github.com/Amund211/docprompt/internal/reporting"
)

type rootResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type documentStatusResponse struct {
	Key       string `json:"key"`
	State     string `json:"state"`
	Available bool   `json:"available"`
}

type statusResponse struct {
	Status   string                 `json:"status"`
	Document documentStatusResponse `json:"document"`
}

func MakeRootHandler(rootLogger *slog.Logger, sentryMiddleware func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	middleware := ComposeMiddlewares(
		buildMetricsMiddleware("root"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("root"),
	)

	return middleware(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(r.Context(), w, http.StatusOK, rootResponse{
			Status:  "ok",
			Message: "AI PDF prompt API is running.",
		})
	})
}

func MakeStatusHandler(
	getDocumentStatus app.GetDocumentStatus,
	allowedOrigins *AllowedOrigins,
	rootLogger *slog.Logger,
	sentryMiddleware func(http.HandlerFunc) http.HandlerFunc,
) http.HandlerFunc {
	middleware := ComposeMiddlewares(
		buildMetricsMiddleware("status"),
		logging.NewRequestLoggerMiddleware(rootLogger),
		sentryMiddleware,
		reporting.NewAddMetaMiddleware("status"),
		BuildCORSMiddleware(allowedOrigins),
	)

	return middleware(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		status := getDocumentStatus(ctx)

		writeJSON(ctx, w, http.StatusOK, statusResponse{
			Status: "ok",
			Document: documentStatusResponse{
				Key:       status.Key,
				State:     status.State.String(),
				Available: status.Available,
			},
		})
	})
}
