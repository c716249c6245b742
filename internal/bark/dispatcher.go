// Package bark delivers revenue messages to a Bark push server.
//
// A push is a single POST {server}/{device key} with a JSON body. Delivery is
// best effort: the relay never retries, queues or deduplicates, and a failed
// push never changes the pipeline result. A circuit breaker skips the push
// server quickly after repeated transport or 5xx failures.
package bark

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"revenuerelay/internal/metrics"
	"revenuerelay/internal/notify"
	"revenuerelay/internal/security"
	"revenuerelay/internal/types"
)

// Defaults applied by NewDispatcher when the Config leaves them empty.
const (
	DefaultServerURL = "https://api.day.app"
	DefaultSound     = "calypso"
	DefaultGroup     = "Revenue"
	DefaultTimeout   = 10 * time.Second
)

// barkSuccessCode is the "code" Bark reports for an accepted push.
const barkSuccessCode = 200

// maxResponseBodyRead limits how much of a response body we read.
const maxResponseBodyRead = 4096

var (
	// ErrNoKey is returned when no device key is configured. Not a failure.
	ErrNoKey = errors.New("bark: no device key configured")

	// ErrPushRejected is returned when Bark answers 4xx or a non-200 code.
	ErrPushRejected = errors.New("bark: push rejected")

	// ErrPushFailed is returned for transport errors and 5xx responses.
	ErrPushFailed = errors.New("bark: push failed")
)

// Config holds the static push settings read at process start.
type Config struct {
	ServerURL string
	Key       types.SecretString
	Sound     string
	Icon      string
	Group     string
	Timeout   time.Duration
	UserAgent string
}

// Payload is the JSON body Bark expects.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Sound string `json:"sound"`
	Icon  string `json:"icon,omitempty"`
	Group string `json:"group"`
}

// response is the JSON envelope Bark answers with.
type response struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// DispatchRecorder receives one observation per push attempt.
type DispatchRecorder interface {
	RecordDispatch(ctx context.Context, result string, duration time.Duration)
}

// Dispatcher sends messages to the configured Bark server.
type Dispatcher struct {
	cfg      Config
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[struct{}]
	recorder DispatchRecorder
	logger   types.Logger
	clock    types.Clock
}

// NewDispatcher validates cfg, fills defaults and builds a Dispatcher.
// client is typically built by security.NewPushClient.
func NewDispatcher(cfg Config, client *http.Client, recorder DispatchRecorder, logger types.Logger) (*Dispatcher, error) {
	if client == nil {
		return nil, fmt.Errorf("bark dispatcher: http client is nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("bark dispatcher: logger is nil")
	}
	if recorder == nil {
		recorder = metrics.Nop{}
	}

	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultServerURL
	}
	u, err := url.Parse(cfg.ServerURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("bark dispatcher: invalid server URL %q", cfg.ServerURL)
	}
	cfg.ServerURL = strings.TrimRight(cfg.ServerURL, "/")

	if cfg.Sound == "" {
		cfg.Sound = DefaultSound
	}
	if cfg.Group == "" {
		cfg.Group = DefaultGroup
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Dispatcher{
		cfg:      cfg,
		client:   client,
		breaker:  newBreaker(),
		recorder: recorder,
		logger:   logger.With("component", "bark"),
		clock:    types.RealClock{},
	}, nil
}

// newBreaker opens after more than 5 consecutive transport or 5xx failures
// and probes again after 30s. Rejections (4xx, Bark error codes) do not count.
func newBreaker() *gobreaker.CircuitBreaker[struct{}] {
	return gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "bark",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrPushRejected)
		},
	})
}

// SetClock overrides the clock for testing.
func (d *Dispatcher) SetClock(c types.Clock) {
	d.clock = c
}

// BreakerState reports the circuit breaker state.
func (d *Dispatcher) BreakerState() gobreaker.State {
	return d.breaker.State()
}

// Notify sends msg with the configured key. Every failure is logged and
// recorded, never returned.
func (d *Dispatcher) Notify(ctx context.Context, msg notify.Message) {
	start := d.clock.Now()
	err := d.Dispatch(ctx, d.cfg.Key, msg)
	elapsed := d.clock.Now().Sub(start)

	result := classifyResult(err)
	d.recorder.RecordDispatch(ctx, result, elapsed)

	logger := types.LoggerFromContext(ctx, d.logger)
	switch result {
	case metrics.ResultSuccess:
		logger.Info("push notification sent",
			"server", d.cfg.ServerURL,
			"duration_ms", elapsed.Milliseconds(),
		)
	case metrics.ResultSkipped:
		logger.Debug("push skipped, no device key configured")
	default:
		logger.Warn("push notification failed",
			"server", d.cfg.ServerURL,
			"result", result,
			"duration_ms", elapsed.Milliseconds(),
			"error", err.Error(),
		)
	}
}

// Dispatch performs a single push for key. It is detached from ctx's
// cancellation and bounded by Config.Timeout, so a client hanging up on the
// inbound webhook does not abort a push already underway.
func (d *Dispatcher) Dispatch(ctx context.Context, key types.SecretString, msg notify.Message) error {
	if key.IsEmpty() {
		return ErrNoKey
	}

	body, err := json.Marshal(Payload{
		Title: msg.Title,
		Body:  msg.Body,
		Sound: d.cfg.Sound,
		Icon:  d.cfg.Icon,
		Group: d.cfg.Group,
	})
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to encode push payload", err)
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.Timeout)
	defer cancel()

	_, err = d.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, d.send(ctx, d.cfg.ServerURL+"/"+url.PathEscape(key.Unmask()), body)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return types.NewAppError(
			types.ErrCodeUpstreamPush,
			"circuit breaker is open; push server unavailable",
			err,
		)
	}
	return err
}

// send executes the HTTP request and maps the response.
func (d *Dispatcher) send(ctx context.Context, target string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create push request", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	if d.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", d.cfg.UserAgent)
	}
	if requestID := types.GetRequestID(ctx); requestID != "" {
		req.Header.Set("X-Request-ID", requestID)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamPush,
			"push request failed",
			fmt.Errorf("%w: %w", ErrPushFailed, err),
		)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyRead))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return types.NewAppError(
			types.ErrCodeUpstreamRateLimited,
			"push server rate limit exceeded",
			ErrPushFailed,
		)
	case resp.StatusCode >= 500:
		return types.NewAppError(
			types.ErrCodeUpstreamPush,
			fmt.Sprintf("push server returned %d", resp.StatusCode),
			ErrPushFailed,
		)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return types.NewAppErrorWithDetails(
			types.ErrCodeUpstreamPushRejected,
			fmt.Sprintf("push server returned %d", resp.StatusCode),
			ErrPushRejected,
			map[string]any{"body": truncateBody(respBody)},
		)
	}

	// A 2xx body that is not a Bark envelope is accepted as delivered.
	var r response
	if err := json.Unmarshal(respBody, &r); err == nil && r.Code != 0 && r.Code != barkSuccessCode {
		return types.NewAppErrorWithDetails(
			types.ErrCodeUpstreamPushRejected,
			fmt.Sprintf("push server answered code %d: %s", r.Code, r.Message),
			ErrPushRejected,
			map[string]any{"code": r.Code},
		)
	}
	return nil
}

// classifyResult maps a Dispatch error to a metrics result.
func classifyResult(err error) string {
	switch {
	case err == nil:
		return metrics.ResultSuccess
	case errors.Is(err, ErrNoKey):
		return metrics.ResultSkipped
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return metrics.ResultBreakerOpen
	case security.IsBlocked(err):
		return metrics.ResultBlocked
	case errors.Is(err, ErrPushRejected):
		return metrics.ResultRejected
	default:
		return metrics.ResultFailure
	}
}

func truncateBody(b []byte) string {
	const limit = 256
	if len(b) > limit {
		return string(b[:limit]) + "..."
	}
	return string(b)
}
