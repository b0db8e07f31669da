package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jobmate-app/go-push-dispatch/pkg/notify"
)

// errNoRecipient marks a resolution that legitimately yields nobody to
// notify: a missing conversation, an incomplete record, or the sender
// talking to themselves. It is a silent skip, never surfaced to the caller.
var errNoRecipient = errors.New("no recipient")

// resolveMessage determines who receives a new-message notification: the
// conversation participant that is not the sender.
func (e *Engine) resolveMessage(ctx context.Context, event notify.Event) (recipientID, senderID string, err error) {
	conversationID := stringField(event.Record, "conversation_id")
	senderID = stringField(event.Record, "sender_id")
	if conversationID == "" || senderID == "" {
		return "", "", fmt.Errorf("%w: message record incomplete", errNoRecipient)
	}

	conv, err := e.directory.Conversation(ctx, conversationID)
	if errors.Is(err, notify.ErrNotFound) {
		// Conversation gone between insert and dispatch. Drop, never retry.
		return "", "", fmt.Errorf("%w: conversation %s not found", errNoRecipient, conversationID)
	}
	if err != nil {
		return "", "", fmt.Errorf("load conversation %s: %w", conversationID, err)
	}

	recipientID = conv.Participant1
	if conv.Participant1 == senderID {
		recipientID = conv.Participant2
	}
	if recipientID == senderID {
		return "", "", fmt.Errorf("%w: sender is the only participant", errNoRecipient)
	}
	return recipientID, senderID, nil
}

// resolveConversation applies the fixed convention for new conversations:
// participant 1 initiated, participant 2 is notified.
func resolveConversation(event notify.Event) (recipientID, senderID string, err error) {
	recipientID = stringField(event.Record, "participant_2")
	senderID = stringField(event.Record, "participant_1")
	if recipientID == "" || senderID == "" {
		return "", "", fmt.Errorf("%w: conversation record incomplete", errNoRecipient)
	}
	if recipientID == senderID {
		return "", "", fmt.Errorf("%w: initiator opened a conversation with themselves", errNoRecipient)
	}
	return recipientID, senderID, nil
}

// reminderCandidates enumerates every user with an incomplete profile:
// seekers flagged incomplete, then recruiters missing a required field.
func (e *Engine) reminderCandidates(ctx context.Context) ([]notify.Candidate, error) {
	seekers, err := e.directory.IncompleteSeekers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list incomplete seekers: %w", err)
	}
	recruiters, err := e.directory.IncompleteRecruiters(ctx)
	if err != nil {
		return nil, fmt.Errorf("list incomplete recruiters: %w", err)
	}

	candidates := make([]notify.Candidate, 0, len(seekers)+len(recruiters))
	for _, s := range seekers {
		candidates = append(candidates, notify.Candidate{UserID: s.UserID, Role: notify.RoleSeeker})
	}
	for _, r := range recruiters {
		candidates = append(candidates, notify.Candidate{UserID: r.UserID, Role: notify.RoleRecruiter})
	}
	return candidates, nil
}

// senderName resolves the display name shown in notification bodies. Seeker
// profiles win over recruiter profiles; every fallback is a generic label so
// rendering never fails on a missing profile.
func (e *Engine) senderName(ctx context.Context, userID string) string {
	seeker, err := e.directory.SeekerProfile(ctx, userID)
	if err == nil {
		if name := strings.TrimSpace(seeker.FirstName + " " + seeker.LastName); name != "" {
			return name
		}
		return fallbackUserLabel
	}
	if !errors.Is(err, notify.ErrNotFound) {
		e.logger.Warn("Seeker profile lookup failed", "user_id", userID, "err", err)
	}

	recruiter, err := e.directory.RecruiterProfile(ctx, userID)
	if err == nil {
		if recruiter.CompanyName != "" {
			return recruiter.CompanyName
		}
		return fallbackCompanyLabel
	}
	if !errors.Is(err, notify.ErrNotFound) {
		e.logger.Warn("Recruiter profile lookup failed", "user_id", userID, "err", err)
	}
	return fallbackUserLabel
}
