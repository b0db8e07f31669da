package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jobmate-app/go-push-dispatch/pkg/notify"
)

// Engine runs one dispatch invocation end to end:
//
//	Routed -> Resolved -> (Deduplicated | Suppressed) -> Rendered -> Delivered -> Logged
//
// Credential acquisition happens once per invocation, before any recipient is
// processed; its failure aborts the whole invocation. Failures scoped to one
// recipient or one device never abort the others.
type Engine struct {
	creds         notify.CredentialProvider
	dispatcher    notify.Dispatcher
	directory     notify.DirectoryStore
	registrations notify.RegistrationStore
	dedup         *Deduplicator
	log           notify.NotificationLog
	logger        *slog.Logger
}

func New(
	creds notify.CredentialProvider,
	dispatcher notify.Dispatcher,
	directory notify.DirectoryStore,
	registrations notify.RegistrationStore,
	log notify.NotificationLog,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		creds:         creds,
		dispatcher:    dispatcher,
		directory:     directory,
		registrations: registrations,
		dedup:         NewDeduplicator(log, time.Now),
		log:           log,
		logger:        logger.With("component", "Engine"),
	}
}

// Report summarizes one dispatch invocation.
type Report struct {
	// Recipients is the number of per-user delivery sequences that reached
	// the fan-out stage.
	Recipients int
	// Suppressed counts recipients skipped by deduplication or resolution.
	Suppressed int
	// Delivered is the total number of devices the provider accepted.
	Delivered int
	// Pruned is the number of registrations deleted as permanently invalid.
	Pruned int
}

// Dispatch processes a single trigger. ErrUnroutable is returned for
// malformed or unknown triggers; a credential failure is returned as-is.
// Both abort before any delivery attempt.
func (e *Engine) Dispatch(ctx context.Context, trigger Trigger) (*Report, error) {
	event, err := Route(trigger)
	if err != nil {
		return nil, err
	}
	procLogger := e.logger.With("kind", string(event.Kind), "reference_id", event.ReferenceID)

	// Without a credential no delivery can proceed; fail the invocation
	// before touching any recipient. The dispatcher reuses the cached
	// credential for every send in this invocation.
	if _, err := e.creds.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("acquire push credential: %w", err)
	}

	report := &Report{}
	switch event.Kind {
	case notify.KindNewMessage:
		e.dispatchMessage(ctx, event, report, procLogger)
	case notify.KindNewConversation:
		e.dispatchConversation(ctx, event, report, procLogger)
	case notify.KindProfileReminder:
		if err := e.dispatchReminders(ctx, report, procLogger); err != nil {
			return nil, err
		}
	}
	procLogger.Info("Dispatch invocation complete",
		"recipients", report.Recipients,
		"suppressed", report.Suppressed,
		"delivered", report.Delivered,
		"pruned", report.Pruned,
	)
	return report, nil
}

func (e *Engine) dispatchMessage(ctx context.Context, event notify.Event, report *Report, logger *slog.Logger) {
	recipientID, senderID, err := e.resolveMessage(ctx, event)
	if err != nil {
		e.skip(report, logger, err)
		return
	}
	if ok := e.pass(ctx, report, logger, recipientID, event.Kind, event.ReferenceID); !ok {
		return
	}

	msg := renderNewMessage(
		e.senderName(ctx, senderID),
		stringField(event.Record, "content"),
		event.ReferenceID,
	)
	e.deliver(ctx, recipientID, event.Kind, event.ReferenceID, msg, report, logger)
}

func (e *Engine) dispatchConversation(ctx context.Context, event notify.Event, report *Report, logger *slog.Logger) {
	recipientID, senderID, err := resolveConversation(event)
	if err != nil {
		e.skip(report, logger, err)
		return
	}
	if ok := e.pass(ctx, report, logger, recipientID, event.Kind, event.ReferenceID); !ok {
		return
	}

	msg := renderNewConversation(
		e.senderName(ctx, senderID),
		e.conversationContext(ctx, event),
		event.ReferenceID,
	)
	e.deliver(ctx, recipientID, event.Kind, event.ReferenceID, msg, report, logger)
}

// conversationContext prefers the trigger record's context field and falls
// back to the stored conversation, so a sparse trigger still renders the
// right variant.
func (e *Engine) conversationContext(ctx context.Context, event notify.Event) string {
	if c := stringField(event.Record, "context"); c != "" {
		return c
	}
	conv, err := e.directory.Conversation(ctx, event.ReferenceID)
	if err != nil {
		return ""
	}
	return conv.Context
}

// dispatchReminders repeats the Resolved..Logged sequence independently per
// candidate; one candidate failing never halts the rest.
func (e *Engine) dispatchReminders(ctx context.Context, report *Report, logger *slog.Logger) error {
	candidates, err := e.reminderCandidates(ctx)
	if err != nil {
		return err
	}
	for _, c := range candidates {
		candLogger := logger.With("user_id", c.UserID, "role", string(c.Role))
		if ok := e.pass(ctx, report, candLogger, c.UserID, notify.KindProfileReminder, ""); !ok {
			continue
		}
		e.deliver(ctx, c.UserID, notify.KindProfileReminder, "", renderProfileReminder(c.Role), report, candLogger)
	}
	return nil
}

// pass runs the dedup gate for one recipient. A store read failure counts as
// suppression: better one missed push than a duplicate storm on a flaky log.
func (e *Engine) pass(ctx context.Context, report *Report, logger *slog.Logger, userID string, kind notify.Kind, referenceID string) bool {
	send, err := e.dedup.ShouldSend(ctx, userID, kind, referenceID)
	if err != nil {
		logger.Error("Dedup check failed; suppressing recipient", "user_id", userID, "err", err)
		report.Suppressed++
		return false
	}
	if !send {
		logger.Info("Dedup: suppressing repeat notification", "user_id", userID)
		report.Suppressed++
		return false
	}
	return true
}

func (e *Engine) skip(report *Report, logger *slog.Logger, err error) {
	if errors.Is(err, errNoRecipient) {
		logger.Info("No recipient resolved; dropping event", "reason", err)
	} else {
		logger.Error("Recipient resolution failed; dropping event", "err", err)
	}
	report.Suppressed++
}

// deliver fans the rendered message out to every device of the recipient,
// prunes registrations reported permanently invalid, and appends the audit
// entry. A recipient with zero devices is complete with zero deliveries and
// no audit entry.
func (e *Engine) deliver(ctx context.Context, userID string, kind notify.Kind, referenceID string, msg notify.Message, report *Report, logger *slog.Logger) {
	regs, err := e.registrations.ListByUser(ctx, userID)
	if err != nil {
		logger.Error("Device registration lookup failed", "user_id", userID, "err", err)
		return
	}
	if len(regs) == 0 {
		logger.Info("No devices registered; nothing to deliver", "user_id", userID)
		return
	}
	report.Recipients++

	outcomes, err := e.dispatcher.Dispatch(ctx, regs, msg)
	if err != nil {
		// Whole-batch transport failure. Registrations are kept and no audit
		// entry is written, so the next natural trigger attempts again.
		logger.Error("Fan-out dispatch failed", "user_id", userID, "devices", len(regs), "err", err)
		return
	}

	result := PartitionOutcomes(outcomes)
	report.Delivered += result.Delivered

	if len(result.InvalidIDs) > 0 {
		if err := e.registrations.Delete(ctx, userID, result.InvalidIDs); err != nil {
			logger.Warn("Failed to prune invalid registrations", "user_id", userID, "count", len(result.InvalidIDs), "err", err)
		} else {
			logger.Info("Pruned invalid registrations", "user_id", userID, "count", len(result.InvalidIDs))
			report.Pruned += len(result.InvalidIDs)
		}
	}

	if err := e.log.Append(ctx, userID, kind, referenceID); err != nil {
		logger.Warn("Failed to append notification log entry", "user_id", userID, "err", err)
	}
	logger.Info("Recipient processed", "user_id", userID, "delivered", result.Delivered, "invalid", len(result.InvalidIDs))
}
