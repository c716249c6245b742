// Package relay turns one App Store signedPayload into at most one Bark push.
//
// Process decodes the outer token, classifies the event, decodes the nested
// transaction for the product id, composes the message and hands it to the
// notifier. Every call ends in exactly one Result:
//
//	success  the push was attempted (delivery is not confirmed)
//	ignored  no payload, or not a revenue event
//	error    the outer token could not be decoded, or the pipeline panicked
package relay

import (
	"context"
	"fmt"
	"runtime/debug"

	"revenuerelay/internal/notify"
	"revenuerelay/internal/revenue"
	"revenuerelay/internal/types"
)

// Status is the terminal state reported back to the App Store.
type Status string

const (
	StatusSuccess Status = "success"
	StatusIgnored Status = "ignored"
	StatusError   Status = "error"
)

// Result messages.
const (
	MessageMissingPayload = "Missing signedPayload"
	MessageDecodeFailed   = "JWS Decode Failed"
	MessageSent           = "Notification sent to Bark"
	MessageInternalError  = "Internal error"

	nonRevenuePrefix = "Non-revenue event: "
)

// Result is the only externally observable output of the pipeline.
type Result struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// Ignored builds an ignored Result.
func Ignored(message string) Result {
	return Result{Status: StatusIgnored, Message: message}
}

// Failed builds an error Result.
func Failed(message string) Result {
	return Result{Status: StatusError, Message: message}
}

// NonRevenue builds the ignored Result for an unclassified notification type.
func NonRevenue(notificationType string) Result {
	return Ignored(nonRevenuePrefix + notificationType)
}

// Notifier delivers a composed message. Implementations swallow failures.
type Notifier interface {
	Notify(ctx context.Context, msg notify.Message)
}

// OutcomeRecorder receives one observation per processed payload.
type OutcomeRecorder interface {
	RecordOutcome(ctx context.Context, status, eventType string)
}

// Pipeline wires decoding, classification, composition and dispatch.
// It holds no mutable state and is safe for concurrent use.
type Pipeline struct {
	composer *notify.Composer
	notifier Notifier
	recorder OutcomeRecorder
	logger   types.Logger
}

// NewPipeline creates a Pipeline. recorder may be nil; a nil logger falls
// back to slog.Default.
func NewPipeline(composer *notify.Composer, notifier Notifier, recorder OutcomeRecorder, logger types.Logger) *Pipeline {
	if logger == nil {
		logger = types.NewSlogLogger(nil)
	}
	return &Pipeline{
		composer: composer,
		notifier: notifier,
		recorder: recorder,
		logger:   logger,
	}
}

// Reject reports a payload that was present but could not be read as a
// token at all, such as a signedPayload that is not a string. It is
// recorded like a decode failure.
func (p *Pipeline) Reject(ctx context.Context, reason string) Result {
	types.LoggerFromContext(ctx, p.logger).Warn("failed to decode notification", "error", reason)
	res := Failed(MessageDecodeFailed)
	if p.recorder != nil {
		p.recorder.RecordOutcome(ctx, string(res.Status), "")
	}
	return res
}

// Process runs one payload through the pipeline.
func (p *Pipeline) Process(ctx context.Context, signedPayload string) (res Result) {
	logger := types.LoggerFromContext(ctx, p.logger)
	var eventType string

	defer func() {
		if rvr := recover(); rvr != nil {
			logger.Error("panic recovered in relay pipeline",
				"panic", fmt.Sprintf("%v", rvr),
				"stack", string(debug.Stack()),
			)
			res = Failed(MessageInternalError)
		}
		if p.recorder != nil {
			p.recorder.RecordOutcome(ctx, string(res.Status), eventType)
		}
	}()

	if signedPayload == "" {
		logger.Info("notification ignored", "reason", MessageMissingPayload)
		return Ignored(MessageMissingPayload)
	}

	outer, err := notify.DecodeOuter(signedPayload)
	if err != nil {
		logger.Warn("failed to decode notification", "error", err.Error())
		return Failed(MessageDecodeFailed)
	}
	eventType = outer.NotificationType

	logger = logger.With(
		"notification_type", outer.NotificationType,
		"subtype", outer.Subtype,
		"notification_uuid", outer.NotificationUUID,
		"environment", outer.EnvironmentName(),
	)

	label, ok := revenue.Classify(outer.NotificationType, outer.Subtype)
	if !ok {
		logger.Info("non-revenue notification ignored")
		return NonRevenue(outer.NotificationType)
	}

	// A broken transaction token still produces a push, with the product
	// falling back to the unknown placeholder.
	inner, err := notify.DecodeTransaction(outer)
	if err != nil {
		logger.Warn("failed to decode transaction info, using unknown product",
			"error", err.Error(),
		)
		inner = nil
	}

	msg := p.composer.Compose(outer, inner, label)
	logger.Info("revenue notification composed",
		"label", label,
		"product_id", notify.ProductID(inner),
	)

	p.notifier.Notify(ctx, msg)

	return Result{Status: StatusSuccess, Message: MessageSent}
}
