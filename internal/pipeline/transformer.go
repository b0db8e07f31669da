// Package pipeline adapts the dispatch engine to a streaming message source,
// so database change events published to Pub/Sub drive the same invocations
// as the HTTP trigger endpoint.
package pipeline

import (
	"context"
	"fmt"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"

	"github.com/jobmate-app/go-push-dispatch/internal/engine"
)

// TriggerTransformer decodes a raw message payload into the trigger union.
// Malformed payloads are skipped so the StreamingService can handle the
// Nack/DLQ logic instead of looping on a poison message.
func TriggerTransformer(
	_ context.Context,
	msg *messagepipeline.Message,
) (*engine.Trigger, bool, error) {
	trigger, err := engine.DecodeTrigger(msg.Payload)
	if err != nil {
		return nil, true, fmt.Errorf("failed to decode trigger from message %s: %w", msg.ID, err)
	}
	return &trigger, false, nil
}
