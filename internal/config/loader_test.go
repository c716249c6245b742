package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// testSecretProvider is a configurable mock for SSM resolution.
type testSecretProvider struct {
	values     map[string]string
	err        error
	calledWith []string
	callCount  int
}

func (p *testSecretProvider) GetParametersBatch(_ context.Context, keys []string) (map[string]string, error) {
	p.callCount++
	p.calledWith = append(p.calledWith, keys...)
	if p.err != nil {
		return nil, p.err
	}
	result := make(map[string]string)
	for _, k := range keys {
		if v, ok := p.values[k]; ok {
			result[k] = v
		}
	}
	return result, nil
}

// setLocalEnv sets the minimum environment for a valid local Config.
func setLocalEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "local")
	t.Setenv("LOG_LEVEL", "debug")
}

// fakeEnv builds loaderDeps over an in-memory environment. Values written by
// setEnv are mirrored into the process environment through t.Setenv so that
// envconfig sees them.
func fakeEnv(t *testing.T, vars map[string]string) loaderDeps {
	t.Helper()
	for k, v := range vars {
		t.Setenv(k, v)
	}
	return loaderDeps{
		lookupEnv: func(k string) (string, bool) {
			v, ok := vars[k]
			return v, ok
		},
		setEnv: func(k, v string) error {
			vars[k] = v
			t.Setenv(k, v)
			return nil
		},
		environ: func() []string {
			out := make([]string, 0, len(vars))
			for k, v := range vars {
				out = append(out, k+"="+v)
			}
			return out
		},
	}
}

func TestLoadConfigLocalDefaults(t *testing.T) {
	setLocalEnv(t)

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Environment != "local" {
		t.Errorf("Environment = %q, want %q", cfg.Environment, "local")
	}
	if cfg.Service != "revenue-relay" {
		t.Errorf("Service = %q, want default", cfg.Service)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "8080")
	}
	if cfg.Server.WebhookPath != "/" {
		t.Errorf("Server.WebhookPath = %q, want %q", cfg.Server.WebhookPath, "/")
	}
	if cfg.Relay.ProductName != "iRich" {
		t.Errorf("Relay.ProductName = %q, want %q", cfg.Relay.ProductName, "iRich")
	}
	if cfg.Bark.ServerURL != "https://api.day.app" {
		t.Errorf("Bark.ServerURL = %q", cfg.Bark.ServerURL)
	}
	if cfg.Bark.Sound != "calypso" || cfg.Bark.Group != "Revenue" {
		t.Errorf("Bark sound/group = %q/%q, want calypso/Revenue", cfg.Bark.Sound, cfg.Bark.Group)
	}
	if cfg.Push.Timeout != 10*time.Second {
		t.Errorf("Push.Timeout = %v, want 10s", cfg.Push.Timeout)
	}
	if cfg.Push.MaxRedirects != 3 {
		t.Errorf("Push.MaxRedirects = %d, want 3", cfg.Push.MaxRedirects)
	}
	if !cfg.Push.BlockPrivateNetworks {
		t.Error("Push.BlockPrivateNetworks should default to true")
	}
	if cfg.Observability.MetricsBackend != "none" {
		t.Errorf("Observability.MetricsBackend = %q, want none", cfg.Observability.MetricsBackend)
	}
	if cfg.Observability.MetricNamespace != "RevenueRelay" {
		t.Errorf("Observability.MetricNamespace = %q", cfg.Observability.MetricNamespace)
	}
	if cfg.Build.Version != "dev" {
		t.Errorf("Build.Version = %q, want %q", cfg.Build.Version, "dev")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	setLocalEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("WEBHOOK_PATH", "/hooks/apple/")
	t.Setenv("PRODUCT_NAME", "Ledger")
	t.Setenv("BARK_KEY", "device-key")
	t.Setenv("BARK_SERVER_URL", "https://bark.example.com/")
	t.Setenv("BARK_ICON", "https://example.com/icon.png")
	t.Setenv("PUSH_TIMEOUT", "3s")
	t.Setenv("PUSH_BLOCK_PRIVATE_NETWORKS", "false")
	t.Setenv("METRICS_BACKEND", "prometheus")

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("Server.Port = %q", cfg.Server.Port)
	}
	if cfg.Server.WebhookPath != "/hooks/apple" {
		t.Errorf("Server.WebhookPath = %q, want trailing slash trimmed", cfg.Server.WebhookPath)
	}
	if cfg.Relay.ProductName != "Ledger" {
		t.Errorf("Relay.ProductName = %q", cfg.Relay.ProductName)
	}
	if cfg.Bark.Key.Unmask() != "device-key" {
		t.Errorf("Bark.Key.Unmask() = %q", cfg.Bark.Key.Unmask())
	}
	if cfg.Bark.Key.String() == "device-key" {
		t.Error("Bark.Key.String() must be redacted")
	}
	if cfg.Bark.ServerURL != "https://bark.example.com" {
		t.Errorf("Bark.ServerURL = %q, want trailing slash trimmed", cfg.Bark.ServerURL)
	}
	if cfg.Push.Timeout != 3*time.Second {
		t.Errorf("Push.Timeout = %v", cfg.Push.Timeout)
	}
	if cfg.Push.BlockPrivateNetworks {
		t.Error("Push.BlockPrivateNetworks should be false")
	}
	if cfg.Observability.MetricsBackend != "prometheus" {
		t.Errorf("Observability.MetricsBackend = %q", cfg.Observability.MetricsBackend)
	}
}

func TestLoadConfigSetsUTC(t *testing.T) {
	setLocalEnv(t)
	orig := time.Local
	t.Cleanup(func() { time.Local = orig })

	if _, err := LoadConfig(nil); err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if time.Local != time.UTC {
		t.Errorf("time.Local = %v, want UTC", time.Local)
	}
}

func TestLoadConfigValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{"invalid environment", "APP_ENV", "qa"},
		{"invalid log level", "LOG_LEVEL", "verbose"},
		{"invalid metrics backend", "METRICS_BACKEND", "statsd"},
		{"invalid server url", "BARK_SERVER_URL", "not a url"},
		{"invalid icon url", "BARK_ICON", "icon.png"},
		{"relative webhook path", "WEBHOOK_PATH", "hooks"},
		{"zero timeout", "PUSH_TIMEOUT", "0s"},
		{"negative redirects", "PUSH_MAX_REDIRECTS", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setLocalEnv(t)
			t.Setenv(tt.key, tt.val)

			_, err := LoadConfig(nil)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %v", err)
			}
			if cfgErr.Type != ErrValidation {
				t.Errorf("Type = %q, want %q", cfgErr.Type, ErrValidation)
			}
		})
	}
}

func TestLoadConfigMissingAppEnv(t *testing.T) {
	deps := fakeEnv(t, map[string]string{"APP_ENV": ""})

	_, err := loadConfigWithDeps(nil, deps)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Type != ErrValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoadConfigParsingFailure(t *testing.T) {
	setLocalEnv(t)
	t.Setenv("PUSH_TIMEOUT", "soon")

	_, err := LoadConfig(nil)
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %v", err)
	}
	if cfgErr.Type != ErrParsing {
		t.Errorf("Type = %q, want %q", cfgErr.Type, ErrParsing)
	}
}

func TestLoadConfigSSMResolution(t *testing.T) {
	deps := fakeEnv(t, map[string]string{
		"APP_ENV":            "prod",
		"BARK_KEY_SSM_PARAM": "/prod/relay/bark_key",
	})
	provider := &testSecretProvider{values: map[string]string{
		"/prod/relay/bark_key": "resolved-key",
	}}

	cfg, err := loadConfigWithDeps(provider, deps)
	if err != nil {
		t.Fatalf("loadConfigWithDeps returned error: %v", err)
	}
	if cfg.Bark.Key.Unmask() != "resolved-key" {
		t.Errorf("Bark.Key = %q, want resolved value", cfg.Bark.Key.Unmask())
	}
	if provider.callCount != 1 {
		t.Errorf("provider called %d times, want 1", provider.callCount)
	}
}

func TestLoadConfigSSMSkippedForLocal(t *testing.T) {
	deps := fakeEnv(t, map[string]string{
		"APP_ENV":            "local",
		"BARK_KEY_SSM_PARAM": "/local/relay/bark_key",
	})
	provider := &testSecretProvider{}

	if _, err := loadConfigWithDeps(provider, deps); err != nil {
		t.Fatalf("loadConfigWithDeps returned error: %v", err)
	}
	if provider.callCount != 0 {
		t.Errorf("provider should not be called in local mode, called %d times", provider.callCount)
	}
}

func TestLoadConfigSSMPriorityDirectEnvWins(t *testing.T) {
	deps := fakeEnv(t, map[string]string{
		"APP_ENV":            "staging",
		"BARK_KEY":           "direct-key",
		"BARK_KEY_SSM_PARAM": "/staging/relay/bark_key",
	})
	provider := &testSecretProvider{values: map[string]string{"/staging/relay/bark_key": "ssm-key"}}

	cfg, err := loadConfigWithDeps(provider, deps)
	if err != nil {
		t.Fatalf("loadConfigWithDeps returned error: %v", err)
	}
	if cfg.Bark.Key.Unmask() != "direct-key" {
		t.Errorf("Bark.Key = %q, want direct env value", cfg.Bark.Key.Unmask())
	}
	if provider.callCount != 0 {
		t.Errorf("provider should not be called when the target is set, called %d times", provider.callCount)
	}
}

func TestLoadConfigSSMErrors(t *testing.T) {
	tests := []struct {
		name     string
		provider SecretProvider
		wantMsg  string
	}{
		{"nil provider", nil, "BARK_KEY"},
		{"provider error", &testSecretProvider{err: errors.New("access denied")}, "access denied"},
		{"missing parameter", &testSecretProvider{values: map[string]string{}}, "not found for: BARK_KEY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := fakeEnv(t, map[string]string{
				"APP_ENV":            "prod",
				"BARK_KEY_SSM_PARAM": "/prod/relay/bark_key",
			})

			_, err := loadConfigWithDeps(tt.provider, deps)
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected *ConfigError, got %v", err)
			}
			if cfgErr.Type != ErrSSMResolution {
				t.Errorf("Type = %q, want %q", cfgErr.Type, ErrSSMResolution)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestLoadConfigNilProviderWithoutSSMParams(t *testing.T) {
	deps := fakeEnv(t, map[string]string{"APP_ENV": "prod"})

	if _, err := loadConfigWithDeps(nil, deps); err != nil {
		t.Fatalf("nil provider without _SSM_PARAM variables should succeed, got %v", err)
	}
}

func TestCollectSSMBindings(t *testing.T) {
	deps := loaderDeps{
		lookupEnv: func(k string) (string, bool) { return "", k == "ALREADY_SET" },
		environ: func() []string {
			return []string{
				"Z_SECRET_SSM_PARAM=/z",
				"BARK_KEY_SSM_PARAM=/bark",
				"EMPTY_SSM_PARAM=",
				"ALREADY_SET_SSM_PARAM=/ignored",
				"PLAIN=value",
				"MALFORMED",
			}
		},
	}

	got := collectSSMBindings(deps)
	want := []ssmBinding{{target: "BARK_KEY", path: "/bark"}, {target: "Z_SECRET", path: "/z"}}
	if len(got) != len(want) {
		t.Fatalf("collectSSMBindings() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("binding[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestLoadConfigDotenvFile(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("PRODUCT_NAME=FromDotenv\nPORT=7070\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)

	setLocalEnv(t)
	t.Setenv("PORT", "6060")
	// Register PRODUCT_NAME for cleanup, then clear it so .env can supply it.
	t.Setenv("PRODUCT_NAME", "")
	os.Unsetenv("PRODUCT_NAME")

	cfg, err := LoadConfig(nil)
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Relay.ProductName != "FromDotenv" {
		t.Errorf("Relay.ProductName = %q, want value from .env", cfg.Relay.ProductName)
	}
	if cfg.Server.Port != "6060" {
		t.Errorf("Server.Port = %q, environment must win over .env", cfg.Server.Port)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := map[string]string{
		"":              "/",
		"/":             "/",
		"//":            "/",
		"/hooks":        "/hooks",
		"/hooks/apple/": "/hooks/apple",
	}
	for in, want := range tests {
		if got := normalizePath(in); got != want {
			t.Errorf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestConfigErrorFormatting(t *testing.T) {
	inner := errors.New("boom")
	withErr := &ConfigError{Type: ErrParsing, Message: "bad value", Err: inner}
	if withErr.Error() != "[PARSING_FAILED] bad value: boom" {
		t.Errorf("Error() = %q", withErr.Error())
	}
	if !errors.Is(withErr, inner) {
		t.Error("errors.Is should reach the wrapped error")
	}

	bare := &ConfigError{Type: ErrSSMResolution, Message: "no provider"}
	if bare.Error() != "[SSM_FAILURE] no provider" {
		t.Errorf("Error() = %q", bare.Error())
	}
	if bare.Unwrap() != nil {
		t.Error("Unwrap() should be nil without a wrapped error")
	}
}
