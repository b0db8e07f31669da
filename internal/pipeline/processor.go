package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/jobmate-app/go-push-dispatch/internal/engine"
)

// DispatchEngine is the slice of the engine the processor needs.
type DispatchEngine interface {
	Dispatch(ctx context.Context, trigger engine.Trigger) (*engine.Report, error)
}

// NewProcessor runs one dispatch invocation per consumed message.
// Unroutable triggers are acked and dropped: redelivery cannot fix an
// unknown table. Credential and other failures are returned so the
// pipeline retries or dead-letters the message.
func NewProcessor(eng DispatchEngine, logger *slog.Logger) messagepipeline.StreamProcessor[engine.Trigger] {
	return func(ctx context.Context, original messagepipeline.Message, trigger *engine.Trigger) error {
		procLogger := logger.With("pubsub_msg_id", original.ID)

		report, err := eng.Dispatch(ctx, *trigger)
		if errors.Is(err, engine.ErrUnroutable) {
			procLogger.Warn("Dropping unroutable trigger", "err", err)
			return nil
		}
		if err != nil {
			procLogger.Error("Dispatch failed", "err", err)
			return err // Retryable
		}

		procLogger.Info("Trigger dispatched",
			"recipients", report.Recipients,
			"suppressed", report.Suppressed,
			"delivered", report.Delivered,
			"pruned", report.Pruned,
		)
		return nil
	}
}
