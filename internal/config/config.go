package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

const (
	DefaultPort          = "3000"
	DefaultOpenAIBaseURL = "https://api.openai.com"
	DefaultOpenAIModel   = "gpt-5.2"
	DefaultDocumentPath  = "prompt.pdf"
)

type Config struct {
	port                   string
	openAIAPIKey           string
	openAIBaseURL          string
	openAIModel            string
	documentPath           string
	documentHandleTTL      time.Duration
	sentryDSN              string
	cloudSQLUnixSocketPath string
	dBPassword             string
	dBUsername             string
	otelEnabled            bool
	googleCloudProject     string
	corsAllowedDomains     []string
	env                    environment
}

func (c *Config) Port() string {
	return c.port
}

func (c *Config) OpenAIAPIKey() string {
	return c.openAIAPIKey
}

func (c *Config) OpenAIBaseURL() string {
	return c.openAIBaseURL
}

func (c *Config) OpenAIModel() string {
	return c.openAIModel
}

func (c *Config) DocumentPath() string {
	return c.documentPath
}

// Zero means uploaded documents are reused for the lifetime of the process
func (c *Config) DocumentHandleTTL() time.Duration {
	return c.documentHandleTTL
}

// Empty disables error reporting
func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) CloudSQLUnixSocketPath() string {
	return c.cloudSQLUnixSocketPath
}

func (c *Config) DBPassword() string {
	return c.dBPassword
}

func (c *Config) DBUsername() string {
	return c.dBUsername
}

// Uploads are recorded in the database when a database is configured
func (c *Config) UploadLedgerEnabled() bool {
	return c.cloudSQLUnixSocketPath != ""
}

func (c *Config) OTelEnabled() bool {
	return c.otelEnabled
}

func (c *Config) GoogleCloudProject() string {
	return c.googleCloudProject
}

// Domains whose https origins may call the API from a browser
func (c *Config) CORSAllowedDomains() []string {
	return c.corsAllowedDomains
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf(
		"Config{env: %s, port: %s, model: %s, baseURL: %s, document: %s, handleTTL: %s, ledger: %t, otel: %t, ...}",
		string(c.env),
		c.port,
		c.openAIModel,
		c.openAIBaseURL,
		c.documentPath,
		c.documentHandleTTL,
		c.UploadLedgerEnabled(),
		c.otelEnabled,
	)
}

func getenvOr(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}
	invalidValue := func(key, value string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s (%s)", ErrInvalidValue, key, value)
	}

	var env environment
	rawEnv := getenvOr("DOCPROMPT_ENVIRONMENT", string(production))
	switch rawEnv {
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return invalidValue("DOCPROMPT_ENVIRONMENT", rawEnv)
	}
	if string(env) == "" {
		panic("logic error: env is empty")
	}

	port := getenvOr("PORT", DefaultPort)
	portNumber, err := strconv.Atoi(port)
	if err != nil || portNumber <= 0 || portNumber > 65535 {
		return invalidValue("PORT", port)
	}

	var documentHandleTTL time.Duration
	if rawTTL := os.Getenv("DOCUMENT_HANDLE_TTL"); rawTTL != "" {
		documentHandleTTL, err = time.ParseDuration(rawTTL)
		if err != nil || documentHandleTTL < 0 {
			return invalidValue("DOCUMENT_HANDLE_TTL", rawTTL)
		}
	}

	otelEnabled := false
	if rawOTelEnabled := os.Getenv("OTEL_ENABLED"); rawOTelEnabled != "" {
		otelEnabled, err = strconv.ParseBool(rawOTelEnabled)
		if err != nil {
			return invalidValue("OTEL_ENABLED", rawOTelEnabled)
		}
	}

	var corsAllowedDomains []string
	for domain := range strings.SplitSeq(os.Getenv("CORS_ALLOWED_DOMAINS"), ",") {
		domain = strings.TrimSpace(domain)
		if domain == "" {
			continue
		}
		if strings.Contains(domain, "://") || strings.HasPrefix(domain, ".") {
			return invalidValue("CORS_ALLOWED_DOMAINS", domain)
		}
		corsAllowedDomains = append(corsAllowedDomains, domain)
	}

	openAIAPIKey := os.Getenv("OPENAI_API_KEY")
	sentryDSN := os.Getenv("SENTRY_DSN")
	cloudSQLUnixSocketPath := os.Getenv("CLOUDSQL_UNIX_SOCKET")
	dbPassword := os.Getenv("DB_PASSWORD")
	dbUsername := os.Getenv("DB_USERNAME")

	if env == production || env == staging {
		if openAIAPIKey == "" {
			return missingKey("OPENAI_API_KEY")
		}
	}

	if cloudSQLUnixSocketPath != "" {
		if dbUsername == "" {
			return missingKey("DB_USERNAME")
		}
		if dbPassword == "" {
			return missingKey("DB_PASSWORD")
		}
	}

	return Config{
		port:                   port,
		openAIAPIKey:           openAIAPIKey,
		openAIBaseURL:          getenvOr("OPENAI_BASE_URL", DefaultOpenAIBaseURL),
		openAIModel:            getenvOr("OPENAI_MODEL", DefaultOpenAIModel),
		documentPath:           getenvOr("DOCUMENT_PATH", DefaultDocumentPath),
		documentHandleTTL:      documentHandleTTL,
		sentryDSN:              sentryDSN,
		cloudSQLUnixSocketPath: cloudSQLUnixSocketPath,
		dBPassword:             dbPassword,
		dBUsername:             dbUsername,
		otelEnabled:            otelEnabled,
		googleCloudProject:     os.Getenv("GOOGLE_CLOUD_PROJECT"),
		corsAllowedDomains:     corsAllowedDomains,
		env:                    env,
	}, nil
}
