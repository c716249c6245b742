// Package main is the entry point for the revenue relay.
//
// It loads configuration, builds the push dispatcher and relay pipeline,
// mounts the webhook handler on the core chassis and then either serves
// HTTP on PORT or, inside AWS Lambda, answers Function URL invocations.
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

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"

	"revenuerelay/internal/api/handlers"
	"revenuerelay/internal/bark"
	"revenuerelay/internal/config"
	"revenuerelay/internal/core"
	"revenuerelay/internal/lambdaurl"
	"revenuerelay/internal/metrics"
	"revenuerelay/internal/notify"
	"revenuerelay/internal/relay"
	"revenuerelay/internal/security"
	"revenuerelay/internal/types"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig(secretProvider())
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("revenue relay starting",
		"environment", cfg.Environment,
		"version", cfg.Build.Version,
		"commit", cfg.Build.Commit,
		"webhook_path", cfg.Server.WebhookPath,
		"metrics_backend", cfg.Observability.MetricsBackend,
		"push_configured", !cfg.Bark.Key.IsEmpty(),
	)
	if cfg.Bark.Key.IsEmpty() {
		logger.Warn("BARK_KEY is not set; notifications will be processed but not pushed")
	}

	ctx := context.Background()
	if err := preflightPushServer(ctx, cfg); err != nil {
		logger.Warn("push server failed preflight; pushes will be refused",
			"server_url", cfg.Bark.ServerURL,
			"error", err,
		)
	}
	recorder, err := newRecorder(ctx, cfg, logger)
	if err != nil {
		return err
	}

	srv, err := buildServer(cfg, logger, recorder)
	if err != nil {
		return err
	}

	if isLambdaEnvironment() {
		logger.Info("running as Lambda Function URL handler")
		lambda.Start(lambdaurl.New(srv.Handler()).Handle)
		return nil
	}

	sigCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return runHTTPServer(sigCtx, srv, cfg, logger)
}

// secretProvider picks SSM outside local development. The region is read
// before configuration is loaded because it is needed to load it.
func secretProvider() config.SecretProvider {
	if os.Getenv("APP_ENV") == "local" {
		return config.NewEnvVarProvider()
	}
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-1"
	}
	return config.NewSSMProvider(region, os.Getenv("AWS_ENDPOINT_URL"))
}

// buildServer wires every component behind the HTTP chassis.
func buildServer(cfg *config.Config, logger *slog.Logger, recorder metrics.Recorder) (*core.Server, error) {
	typedLogger := types.NewSlogLogger(logger)

	client, err := security.NewPushClient(security.ClientOptions{
		Timeout:              cfg.Push.Timeout,
		MaxRedirects:         cfg.Push.MaxRedirects,
		BlockPrivateNetworks: cfg.Push.BlockPrivateNetworks,
	})
	if err != nil {
		return nil, fmt.Errorf("creating push client: %w", err)
	}

	dispatcher, err := bark.NewDispatcher(bark.Config{
		ServerURL: cfg.Bark.ServerURL,
		Key:       cfg.Bark.Key,
		Sound:     cfg.Bark.Sound,
		Icon:      cfg.Bark.Icon,
		Group:     cfg.Bark.Group,
		Timeout:   cfg.Push.Timeout,
		UserAgent: cfg.Push.UserAgent,
	}, client, recorder, typedLogger)
	if err != nil {
		return nil, fmt.Errorf("creating push dispatcher: %w", err)
	}

	pipeline := relay.NewPipeline(notify.NewComposer(cfg.Relay.ProductName), dispatcher, recorder, typedLogger)

	handler, err := handlers.NewNotificationHandler(pipeline, cfg.Server.WebhookPath, cfg.Relay.ProductName, !cfg.Bark.Key.IsEmpty(), logger)
	if err != nil {
		return nil, fmt.Errorf("creating notification handler: %w", err)
	}

	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating server: %w", err)
	}
	srv.Metrics = recorder
	srv.HealthProbes = []core.HealthProbe{pushBreakerProbe(dispatcher)}
	if prom, ok := recorder.(*metrics.PrometheusRecorder); ok {
		srv.MetricsHandler = prom.Handler()
	}
	srv.RouteRegistrars = append(srv.RouteRegistrars, handler.RegisterRoutes)
	srv.MountRoutes()

	return srv, nil
}

// pushBreakerProbe reports unhealthy while the push circuit breaker is open.
func pushBreakerProbe(d *bark.Dispatcher) core.HealthProbe {
	return core.HealthProbeFunc{
		ProbeName: "push",
		Fn: func(context.Context) error {
			if state := d.BreakerState(); state == gobreaker.StateOpen {
				return fmt.Errorf("push circuit breaker is %s", state)
			}
			return nil
		},
	}
}

// preflightPushServer checks the configured push server against the private
// network blocklist. Nothing is checked when blocking is disabled.
func preflightPushServer(ctx context.Context, cfg *config.Config) error {
	if !cfg.Push.BlockPrivateNetworks {
		return nil
	}
	guard, err := security.NewDefaultGuard(nil)
	if err != nil {
		return err
	}
	return guard.ValidateURL(ctx, cfg.Bark.ServerURL)
}

// newRecorder selects the metrics backend named by METRICS_BACKEND.
func newRecorder(ctx context.Context, cfg *config.Config, logger *slog.Logger) (metrics.Recorder, error) {
	switch cfg.Observability.MetricsBackend {
	case metrics.BackendCloudWatch:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
		if err != nil {
			return nil, fmt.Errorf("loading AWS config for CloudWatch: %w", err)
		}
		client := cloudwatch.NewFromConfig(awsCfg, func(o *cloudwatch.Options) {
			if cfg.AWS.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.AWS.EndpointURL)
			}
		})
		return metrics.NewCloudWatchRecorder(client, cfg.Observability.MetricNamespace, types.NewSlogLogger(logger)), nil
	case metrics.BackendPrometheus:
		return metrics.NewPrometheusRecorder(), nil
	case metrics.BackendNone, "":
		return metrics.Nop{}, nil
	default:
		return nil, metrics.ValidateBackend(cfg.Observability.MetricsBackend)
	}
}

// isLambdaEnvironment reports whether the process runs inside AWS Lambda.
func isLambdaEnvironment() bool {
	_, hasRuntimeAPI := os.LookupEnv("AWS_LAMBDA_RUNTIME_API")
	_, hasServerPort := os.LookupEnv("_LAMBDA_SERVER_PORT")
	return hasRuntimeAPI || hasServerPort
}

// runHTTPServer serves until ctx is cancelled, then drains in-flight
// requests for up to shutdownTimeout.
func runHTTPServer(ctx context.Context, srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      cfg.Server.RequestTimeout + cfg.Push.Timeout,
		IdleTimeout:       120 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("initiating graceful shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "error", err)
		}
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped cleanly")
	return nil
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
}
