package notify

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by store lookups when the referenced record does
// not exist. Callers treat it as an expected condition, not a failure.
var ErrNotFound = errors.New("record not found")

// CredentialProvider exchanges configured key material for a bearer
// credential accepted by the push provider. Acquire is called once per
// dispatch invocation; implementations may cache across invocations as long
// as they honor ExpiresAt.
type CredentialProvider interface {
	Acquire(ctx context.Context) (Bearer, error)
}

// Dispatcher sends one rendered message to a batch of device registrations
// and classifies the provider's per-device responses. A returned error means
// the whole batch failed in transport; per-device failures are reported
// through the outcomes instead.
type Dispatcher interface {
	Dispatch(ctx context.Context, regs []DeviceRegistration, msg Message) ([]TokenOutcome, error)
}

// DirectoryStore reads the conversation and profile records the resolver
// and renderer need. Lookups return ErrNotFound for absent records.
type DirectoryStore interface {
	Conversation(ctx context.Context, id string) (*Conversation, error)
	SeekerProfile(ctx context.Context, userID string) (*SeekerProfile, error)
	RecruiterProfile(ctx context.Context, userID string) (*RecruiterProfile, error)

	// IncompleteSeekers lists seekers whose profile_complete flag is unset.
	IncompleteSeekers(ctx context.Context) ([]SeekerProfile, error)
	// IncompleteRecruiters lists recruiters missing company name or sector.
	IncompleteRecruiters(ctx context.Context) ([]RecruiterProfile, error)
}

// RegistrationStore manages device registrations. Delete is the janitor's
// batch prune of registrations reported permanently invalid.
type RegistrationStore interface {
	Register(ctx context.Context, reg DeviceRegistration) error
	Unregister(ctx context.Context, userID, token string) error
	ListByUser(ctx context.Context, userID string) ([]DeviceRegistration, error)
	Delete(ctx context.Context, userID string, ids []string) error
}

// NotificationLog is the append-only audit record backing deduplication.
// Entries are never updated or deleted by the engine.
type NotificationLog interface {
	// SentSince reports whether an entry for (userID, kind[, referenceID])
	// was created at or after the given instant. An empty referenceID
	// matches entries of the kind regardless of reference.
	SentSince(ctx context.Context, userID string, kind Kind, referenceID string, since time.Time) (bool, error)
	Append(ctx context.Context, userID string, kind Kind, referenceID string) error
}
