// Package engine implements the notification dispatch core: trigger routing,
// recipient resolution, deduplication, rendering and fan-out orchestration.
package engine

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jobmate-app/go-push-dispatch/pkg/notify"
)

// ErrUnroutable marks a trigger whose shape or declared kind/table is not
// recognized. The caller maps it to a 400-class response.
var ErrUnroutable = errors.New("unroutable trigger")

// DirectTrigger is an explicit invocation, typically from the scheduler or a
// manual call. Record is absent for profile reminders.
type DirectTrigger struct {
	Type   string         `json:"type"`
	Record map[string]any `json:"record,omitempty"`
}

// ChangeTrigger is a data-change notification emitted by the database when a
// row is inserted.
type ChangeTrigger struct {
	Type   string         `json:"type"`
	Table  string         `json:"table"`
	Schema string         `json:"schema"`
	Record map[string]any `json:"record"`
}

// Trigger is the tagged union of the two accepted trigger shapes. Exactly one
// variant is set after a successful decode; downstream code never probes raw
// JSON fields again.
type Trigger struct {
	Direct *DirectTrigger
	Change *ChangeTrigger
}

// DecodeTrigger discriminates and decodes an inbound JSON body into a
// Trigger. A body that fits neither shape fails with ErrUnroutable.
func DecodeTrigger(body []byte) (Trigger, error) {
	var raw struct {
		Type   string         `json:"type"`
		Table  string         `json:"table"`
		Schema string         `json:"schema"`
		Record map[string]any `json:"record"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return Trigger{}, fmt.Errorf("%w: malformed JSON: %v", ErrUnroutable, err)
	}

	if raw.Table != "" {
		return Trigger{Change: &ChangeTrigger{
			Type:   raw.Type,
			Table:  raw.Table,
			Schema: raw.Schema,
			Record: raw.Record,
		}}, nil
	}
	if raw.Type != "" {
		return Trigger{Direct: &DirectTrigger{Type: raw.Type, Record: raw.Record}}, nil
	}
	return Trigger{}, fmt.Errorf("%w: neither type nor table present", ErrUnroutable)
}

// Route classifies a trigger into a notification event. Table names map
// deterministically to kinds; a direct trigger must name a known kind.
func Route(t Trigger) (notify.Event, error) {
	switch {
	case t.Change != nil:
		kind, ok := tableKinds[t.Change.Table]
		if !ok {
			return notify.Event{}, fmt.Errorf("%w: unknown table %q", ErrUnroutable, t.Change.Table)
		}
		return newEvent(kind, t.Change.Record), nil

	case t.Direct != nil:
		kind := notify.Kind(t.Direct.Type)
		if !kind.Valid() {
			return notify.Event{}, fmt.Errorf("%w: unknown type %q", ErrUnroutable, t.Direct.Type)
		}
		return newEvent(kind, t.Direct.Record), nil
	}
	return notify.Event{}, fmt.Errorf("%w: empty trigger", ErrUnroutable)
}

var tableKinds = map[string]notify.Kind{
	"messages":      notify.KindNewMessage,
	"conversations": notify.KindNewConversation,
}

func newEvent(kind notify.Kind, record map[string]any) notify.Event {
	return notify.Event{
		Kind:        kind,
		ReferenceID: referenceID(kind, record),
		Record:      record,
	}
}

// referenceID extracts the identifier the dedup log keys on: the
// conversation for message/conversation events, nothing for reminders.
func referenceID(kind notify.Kind, record map[string]any) string {
	switch kind {
	case notify.KindNewMessage:
		return stringField(record, "conversation_id")
	case notify.KindNewConversation:
		return stringField(record, "id")
	}
	return ""
}

func stringField(record map[string]any, key string) string {
	if record == nil {
		return ""
	}
	s, _ := record[key].(string)
	return s
}
