// Package config defines the configuration structure for the revenue relay.
// Configuration is loaded once at process initialization (HTTP server start or
// Lambda cold start) and is immutable thereafter.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File -> AWS SSM Parameter Store (Lowest)
//
// Any missing required value or invalid format is reported by LoadConfig and
// the process refuses to start.
package config

import (
	"time"

	"revenuerelay/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type used
// throughout configuration to prevent accidental logging of sensitive values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the relay.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" validate:"required,oneof=local dev staging prod"`
	Service     string `envconfig:"SERVICE_NAME" default:"revenue-relay"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Server        ServerConfig
	Relay         RelayConfig
	Bark          BarkConfig
	Push          PushConfig
	AWS           AWSConfig
	Observability ObservabilityConfig

	// Build Metadata (Injected via ldflags, not Env)
	Build BuildInfo
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	WebhookPath    string        `envconfig:"WEBHOOK_PATH" default:"/" validate:"startswith=/"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s"`
}

// RelayConfig holds the notification wording.
type RelayConfig struct {
	ProductName string `envconfig:"PRODUCT_NAME" default:"iRich" validate:"required"`
}

// BarkConfig holds the push server coordinates. An empty key disables delivery
// without failing startup.
type BarkConfig struct {
	Key       SecretString `envconfig:"BARK_KEY"`
	ServerURL string       `envconfig:"BARK_SERVER_URL" default:"https://api.day.app" validate:"required,url"`
	Icon      string       `envconfig:"BARK_ICON" validate:"omitempty,url"`
	Sound     string       `envconfig:"BARK_SOUND" default:"calypso"`
	Group     string       `envconfig:"BARK_GROUP" default:"Revenue"`
}

// PushConfig holds settings for the outbound push HTTP client.
type PushConfig struct {
	UserAgent            string        `envconfig:"PUSH_USER_AGENT" default:"RevenueRelay/1.0"`
	Timeout              time.Duration `envconfig:"PUSH_TIMEOUT" default:"10s" validate:"gt=0"`
	MaxRedirects         int           `envconfig:"PUSH_MAX_REDIRECTS" default:"3" validate:"gte=0"`
	BlockPrivateNetworks bool          `envconfig:"PUSH_BLOCK_PRIVATE_NETWORKS" default:"true"`
}

// AWSConfig holds regional configuration for SSM and CloudWatch.
type AWSConfig struct {
	Region string `envconfig:"AWS_REGION" default:"us-east-1"`

	// LocalStack Support (Empty in Prod)
	EndpointURL string `envconfig:"AWS_ENDPOINT_URL"`
}

// ObservabilityConfig holds telemetry settings.
type ObservabilityConfig struct {
	MetricsBackend  string `envconfig:"METRICS_BACKEND" default:"none" validate:"oneof=none cloudwatch prometheus"`
	MetricNamespace string `envconfig:"METRIC_NAMESPACE" default:"RevenueRelay"`
}

// BuildInfo holds build-time metadata injected via ldflags.
// These values are NOT populated from environment variables.
type BuildInfo struct {
	Version   string
	Commit    string
	BuildTime string
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrSSMResolution indicates a failure when fetching secrets from AWS SSM.
	ErrSSMResolution ConfigErrorType = "SSM_FAILURE"
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
