// Package metrics records relay telemetry: inbound request counts and
// latency, pipeline outcomes, and push dispatch attempts.
//
// Three backends share the Recorder interface. CloudWatch suits the Lambda
// deployment, Prometheus the long-running server, and Nop disables metrics.
package metrics

import (
	"context"
	"fmt"
	"time"
)

// Dispatch results recorded by RecordDispatch.
const (
	ResultSuccess     = "success"
	ResultSkipped     = "skipped"
	ResultFailure     = "failure"
	ResultRejected    = "rejected"
	ResultBlocked     = "blocked"
	ResultBreakerOpen = "breaker_open"
)

// noEventType labels outcomes that ended before the event type was known.
const noEventType = "none"

// Backend names accepted by METRICS_BACKEND.
const (
	BackendNone       = "none"
	BackendCloudWatch = "cloudwatch"
	BackendPrometheus = "prometheus"
)

// Recorder is implemented by every metrics backend.
type Recorder interface {
	// RecordRequest records one inbound HTTP request.
	RecordRequest(method, endpoint, status string, duration time.Duration)

	// RecordOutcome records one terminal pipeline outcome.
	RecordOutcome(ctx context.Context, status, eventType string)

	// RecordDispatch records one push attempt and its latency.
	RecordDispatch(ctx context.Context, result string, duration time.Duration)
}

// Nop discards everything.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) RecordRequest(string, string, string, time.Duration)   {}
func (Nop) RecordOutcome(context.Context, string, string)         {}
func (Nop) RecordDispatch(context.Context, string, time.Duration) {}

func eventTypeOrNone(eventType string) string {
	if eventType == "" {
		return noEventType
	}
	return eventType
}

// ValidateBackend rejects unknown backend names.
func ValidateBackend(name string) error {
	switch name {
	case BackendNone, BackendCloudWatch, BackendPrometheus:
		return nil
	default:
		return fmt.Errorf("metrics: unknown backend %q", name)
	}
}
