// Package firestore implements the engine's store contracts on Google Cloud
// Firestore.
package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/jobmate-app/go-push-dispatch/pkg/notify"
)

const (
	conversationsCollection   = "conversations"
	seekerProfilesCollection  = "seeker_profiles"
	recruiterProfsCollection  = "recruiter_profiles"
	deviceTokensCollection    = "device_tokens"
	notificationLogCollection = "notification_log"
)

// Store implements notify.DirectoryStore, notify.RegistrationStore and
// notify.NotificationLog against one Firestore database.
type Store struct {
	client *firestore.Client
}

func NewStore(client *firestore.Client) *Store {
	return &Store{client: client}
}

// --- Directory reads ---

type conversationRecord struct {
	Participant1 string `firestore:"participant_1"`
	Participant2 string `firestore:"participant_2"`
	Context      string `firestore:"context,omitempty"`
}

func (s *Store) Conversation(ctx context.Context, id string) (*notify.Conversation, error) {
	doc, err := s.client.Collection(conversationsCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, notify.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}

	var record conversationRecord
	if err := doc.DataTo(&record); err != nil {
		return nil, fmt.Errorf("decode conversation %s: %w", id, err)
	}
	return &notify.Conversation{
		ID:           doc.Ref.ID,
		Participant1: record.Participant1,
		Participant2: record.Participant2,
		Context:      record.Context,
	}, nil
}

type seekerRecord struct {
	FirstName string `firestore:"first_name,omitempty"`
	LastName  string `firestore:"last_name,omitempty"`
}

func (s *Store) SeekerProfile(ctx context.Context, userID string) (*notify.SeekerProfile, error) {
	doc, err := s.client.Collection(seekerProfilesCollection).Doc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, notify.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get seeker profile %s: %w", userID, err)
	}

	var record seekerRecord
	if err := doc.DataTo(&record); err != nil {
		return nil, fmt.Errorf("decode seeker profile %s: %w", userID, err)
	}
	return &notify.SeekerProfile{
		UserID:    doc.Ref.ID,
		FirstName: record.FirstName,
		LastName:  record.LastName,
	}, nil
}

type recruiterRecord struct {
	CompanyName string `firestore:"company_name,omitempty"`
	Sector      string `firestore:"sector,omitempty"`
}

func (s *Store) RecruiterProfile(ctx context.Context, userID string) (*notify.RecruiterProfile, error) {
	doc, err := s.client.Collection(recruiterProfsCollection).Doc(userID).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, notify.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get recruiter profile %s: %w", userID, err)
	}

	var record recruiterRecord
	if err := doc.DataTo(&record); err != nil {
		return nil, fmt.Errorf("decode recruiter profile %s: %w", userID, err)
	}
	return &notify.RecruiterProfile{
		UserID:      doc.Ref.ID,
		CompanyName: record.CompanyName,
		Sector:      record.Sector,
	}, nil
}

func (s *Store) IncompleteSeekers(ctx context.Context) ([]notify.SeekerProfile, error) {
	iter := s.client.Collection(seekerProfilesCollection).
		Where("profile_complete", "==", false).
		Documents(ctx)
	defer iter.Stop()

	var seekers []notify.SeekerProfile
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate incomplete seekers: %w", err)
		}
		var record seekerRecord
		if err := doc.DataTo(&record); err != nil {
			continue
		}
		seekers = append(seekers, notify.SeekerProfile{
			UserID:    doc.Ref.ID,
			FirstName: record.FirstName,
			LastName:  record.LastName,
		})
	}
	return seekers, nil
}

// IncompleteRecruiters relies on the profile writer storing unfilled fields
// as empty strings. Firestore equality filters cannot match documents that
// omit the field entirely.
func (s *Store) IncompleteRecruiters(ctx context.Context) ([]notify.RecruiterProfile, error) {
	iter := s.client.Collection(recruiterProfsCollection).
		WhereEntity(firestore.OrFilter{
			Filters: []firestore.EntityFilter{
				firestore.PropertyFilter{Path: "company_name", Operator: "==", Value: ""},
				firestore.PropertyFilter{Path: "sector", Operator: "==", Value: ""},
			},
		}).
		Documents(ctx)
	defer iter.Stop()

	var recruiters []notify.RecruiterProfile
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate incomplete recruiters: %w", err)
		}
		var record recruiterRecord
		if err := doc.DataTo(&record); err != nil {
			continue
		}
		recruiters = append(recruiters, notify.RecruiterProfile{
			UserID:      doc.Ref.ID,
			CompanyName: record.CompanyName,
			Sector:      record.Sector,
		})
	}
	return recruiters, nil
}

// --- Device registrations ---

type deviceRecord struct {
	UserID    string    `firestore:"user_id"`
	Token     string    `firestore:"token"`
	UpdatedAt time.Time `firestore:"updated_at"`
}

// Register upserts the registration. The doc ID is a hash of the token so a
// re-registered device overwrites its old row instead of duplicating it.
func (s *Store) Register(ctx context.Context, reg notify.DeviceRegistration) error {
	record := deviceRecord{
		UserID:    reg.UserID,
		Token:     reg.Token,
		UpdatedAt: time.Now(),
	}
	_, err := s.client.Collection(deviceTokensCollection).Doc(hashToken(reg.Token)).Set(ctx, record)
	return err
}

func (s *Store) Unregister(ctx context.Context, userID, token string) error {
	_, err := s.client.Collection(deviceTokensCollection).Doc(hashToken(token)).Delete(ctx)
	return err
}

func (s *Store) ListByUser(ctx context.Context, userID string) ([]notify.DeviceRegistration, error) {
	iter := s.client.Collection(deviceTokensCollection).
		Where("user_id", "==", userID).
		Documents(ctx)
	defer iter.Stop()

	regs := make([]notify.DeviceRegistration, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterate device registrations: %w", err)
		}
		var record deviceRecord
		if err := doc.DataTo(&record); err != nil {
			// Corrupt row; skip rather than fail the whole fan-out.
			continue
		}
		regs = append(regs, notify.DeviceRegistration{
			ID:     doc.Ref.ID,
			UserID: record.UserID,
			Token:  record.Token,
		})
	}
	return regs, nil
}

// Delete removes the given registrations in one batch.
func (s *Store) Delete(ctx context.Context, userID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(ids))
	for _, id := range ids {
		job, err := bw.Delete(s.client.Collection(deviceTokensCollection).Doc(id))
		if err != nil {
			bw.End()
			return fmt.Errorf("enqueue registration delete %s: %w", id, err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for _, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("delete registration batch: %w", err)
		}
	}
	return nil
}

// --- Notification log ---

type logRecord struct {
	UserID      string    `firestore:"user_id"`
	Kind        string    `firestore:"type"`
	ReferenceID string    `firestore:"reference_id,omitempty"`
	CreatedAt   time.Time `firestore:"created_at"`
}

func (s *Store) SentSince(ctx context.Context, userID string, kind notify.Kind, referenceID string, since time.Time) (bool, error) {
	query := s.client.Collection(notificationLogCollection).
		Where("user_id", "==", userID).
		Where("type", "==", string(kind)).
		Where("created_at", ">=", since)
	if referenceID != "" {
		query = query.Where("reference_id", "==", referenceID)
	}

	iter := query.Limit(1).Documents(ctx)
	defer iter.Stop()

	_, err := iter.Next()
	if err == iterator.Done {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query notification log: %w", err)
	}
	return true, nil
}

func (s *Store) Append(ctx context.Context, userID string, kind notify.Kind, referenceID string) error {
	record := logRecord{
		UserID:      userID,
		Kind:        string(kind),
		ReferenceID: referenceID,
		CreatedAt:   time.Now(),
	}
	_, err := s.client.Collection(notificationLogCollection).Doc(uuid.NewString()).Create(ctx, record)
	if err != nil {
		return fmt.Errorf("append notification log: %w", err)
	}
	return nil
}

func hashToken(t string) string {
	sum := sha256.Sum256([]byte(t))
	return hex.EncodeToString(sum[:])
}
