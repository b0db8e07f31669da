package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/illmade-knight/go-dataflow/pkg/messagepipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jobmate-app/go-push-dispatch/internal/pipeline"
)

func TestTriggerTransformer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	testCases := []struct {
		name                  string
		inputMessage          *messagepipeline.Message
		expectError           bool
		expectedErrorContains string
	}{
		{
			name: "Happy Path - Change Event",
			inputMessage: &messagepipeline.Message{
				MessageData: messagepipeline.MessageData{
					ID:      "msg-1",
					Payload: []byte(`{"type":"INSERT","table":"messages","schema":"public","record":{"conversation_id":"c-1"}}`),
				},
			},
			expectError: false,
		},
		{
			name: "Happy Path - Direct Invocation",
			inputMessage: &messagepipeline.Message{
				MessageData: messagepipeline.MessageData{ID: "msg-2", Payload: []byte(`{"type":"profile_reminder"}`)},
			},
			expectError: false,
		},
		{
			name: "Failure - Malformed JSON",
			inputMessage: &messagepipeline.Message{
				MessageData: messagepipeline.MessageData{ID: "msg-3", Payload: []byte("not-json")},
			},
			expectError:           true,
			expectedErrorContains: "failed to decode trigger",
		},
		{
			name: "Failure - Shapeless Body",
			inputMessage: &messagepipeline.Message{
				MessageData: messagepipeline.MessageData{ID: "msg-4", Payload: []byte(`{"record":{}}`)},
			},
			expectError:           true,
			expectedErrorContains: "neither type nor table",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			trigger, skip, err := pipeline.TriggerTransformer(ctx, tc.inputMessage)

			if tc.expectError {
				require.Error(t, err)
				assert.True(t, skip)
				assert.Contains(t, err.Error(), tc.expectedErrorContains)
			} else {
				require.NoError(t, err)
				assert.False(t, skip)
				require.NotNil(t, trigger)
			}
		})
	}
}
