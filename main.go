package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Amund211/docprompt/internal/adapters/cache"
	"github.com/Amund211/docprompt/internal/adapters/database"
	"github.com/Amund211/docprompt/internal/adapters/document"
	"github.com/Amund211/docprompt/internal/adapters/openai"
	"github.com/Amund211/docprompt/internal/adapters/uploadrepository"
	"github.com/Amund211/docprompt/internal/app"
	"github.com/Amund211/docprompt/internal/config"
	"github.com/Amund211/docprompt/internal/domain"
	"github.com/Amund211/docprompt/internal/logging"
	"github.com/Amund211/docprompt/internal/ports"
	"github.com/Amund211/docprompt/internal/reporting"
	"github.com/Amund211/docprompt/internal/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	// The runtime image ships without a certificate bundle
	_ "golang.org/x/crypto/x509roots/fallback"
)

const serviceName = "docprompt"

// Set at build time
var version = "dev"

// Longer than the upload itself may take, so a slow upload is not cut short
const documentCreateTimeout = 3 * time.Minute

func main() {
	ctx := context.Background()

	instanceID := uuid.New().String()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil)).With("instanceID", instanceID)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	config, err := config.ConfigFromEnv()
	if err != nil {
		fail("Failed to load config", "error", err.Error())
	}
	logger = slog.New(
		logging.NewTracingLogHandler(slog.NewJSONHandler(os.Stdout, nil), config.GoogleCloudProject()),
	).With("instanceID", instanceID)
	logger.Info("Loaded config", "config", config.NonSensitiveString())

	if config.OTelEnabled() {
		shutdownOTel, err := telemetry.SetupOTelSDK(ctx, serviceName, version)
		if err != nil {
			fail("Failed to set up OpenTelemetry", "error", err.Error())
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := shutdownOTel(shutdownCtx); err != nil {
				logger.Error("Failed to shut down OpenTelemetry", "error", err.Error())
			}
		}()
		logger.Info("Initialized OpenTelemetry")
	}

	sentryMiddleware, flush, err := reporting.NewSentryMiddlewareOrMock(config)
	if err != nil {
		fail("Failed to initialize Sentry", "error", err.Error())
	}
	defer flush()
	logger.Info("Initialized Sentry middleware")

	httpClient := &http.Client{
		// The client enforces its own per-request deadlines
		Timeout:   5 * time.Minute,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	openAIClient, err := openai.NewClientOrMock(config, httpClient)
	if err != nil {
		fail("Failed to initialize OpenAI client", "error", err.Error())
	}
	logger.Info("Initialized OpenAI client", "model", config.OpenAIModel())

	source := document.NewLocal(config.DocumentPath())
	if _, err := source.Stat(ctx); err != nil {
		// Requests fail until the document is put in place
		logger.Warn("Reference document is not available", "path", config.DocumentPath(), "error", err.Error())
	}

	var uploadRepo uploadrepository.UploadRepository = uploadrepository.NewNop()
	if config.UploadLedgerEnabled() {
		logger.Info("Initializing database connection")
		db, err := database.NewCloudsqlPostgresDatabase(ctx, config)
		if err != nil {
			fail("Failed to initialize database", "error", err.Error())
		}
		defer db.Close()

		schemaName := database.GetSchemaName(!config.IsProduction())
		err = database.NewDatabaseMigrator(db, logger.With("component", "migrator")).Migrate(ctx, schemaName)
		if err != nil {
			fail("Failed to migrate database", "error", err.Error())
		}

		uploadRepo = uploadrepository.NewPostgres(db, schemaName)
		logger.Info("Initialized upload ledger", "schema", schemaName)
	}

	var handleStore cache.Cache[domain.FileHandle] = cache.NewBasicCache[domain.FileHandle]()
	if ttl := config.DocumentHandleTTL(); ttl > 0 {
		handleStore = cache.NewTTLCache[domain.FileHandle](ttl)
	}
	documentCache := cache.NewSingleFlight(
		handleStore,
		cache.WithName("document"),
		cache.WithCreateTimeout(documentCreateTimeout),
	)

	allowedOrigins, err := ports.NewAllowedOrigins(config.CORSAllowedDomains()...)
	if err != nil {
		fail("Failed to initialize allowed origins", "error", err.Error())
	}

	// Ledger entries expire together with the cached handle
	materializeDocument := app.BuildMaterializeDocument(source, openAIClient, uploadRepo, config.DocumentHandleTTL(), time.Now)
	generate := app.BuildGenerateWithCache(documentCache, source, materializeDocument, openAIClient, uploadRepo)
	getDocumentStatus := app.BuildGetDocumentStatus(documentCache, source)

	mux := http.NewServeMux()

	mux.HandleFunc(
		"GET /{$}",
		ports.MakeRootHandler(logger.With("port", "root"), sentryMiddleware),
	)

	mux.HandleFunc(
		"OPTIONS /api/generate",
		ports.BuildCORSHandler(allowedOrigins),
	)
	mux.HandleFunc(
		"POST /api/generate",
		ports.MakeGenerateHandler(
			generate,
			source.Name(),
			allowedOrigins,
			logger.With("port", "generate"),
			sentryMiddleware,
		),
	)

	mux.HandleFunc(
		"GET /status",
		ports.MakeStatusHandler(
			getDocumentStatus,
			allowedOrigins,
			logger.With("port", "status"),
			sentryMiddleware,
		),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", config.Port()),
		Handler:           otelhttp.NewHandler(mux, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)

		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
		sig := <-signals
		logger.Info("Shutting down server", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Failed to shut down server gracefully", "error", err.Error())
		}
	}()

	logger.Info("Init complete", "port", config.Port())
	err = server.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		fail("Server error", "error", err.Error())
	}
	<-shutdownDone
	logger.Info("Server shutdown")
}
