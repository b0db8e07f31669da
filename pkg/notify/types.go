// Package notify contains the public domain model and contracts for the
// push dispatch engine.
package notify

import "time"

// Kind identifies the logical notification a trigger maps to.
type Kind string

const (
	KindNewMessage      Kind = "new_message"
	KindNewConversation Kind = "new_conversation"
	KindProfileReminder Kind = "profile_reminder"
)

// Valid reports whether k is one of the recognized kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindNewMessage, KindNewConversation, KindProfileReminder:
		return true
	}
	return false
}

// DedupWindow is the span during which a repeat notification for the same
// (user, kind, reference) tuple is suppressed. Reminders are daily; the
// conversational kinds only guard against webhook double-fire.
func (k Kind) DedupWindow() time.Duration {
	if k == KindProfileReminder {
		return 24 * time.Hour
	}
	return 60 * time.Second
}

// Event is the routed form of an inbound trigger. It is built once per
// dispatch invocation and never persisted.
type Event struct {
	Kind        Kind
	ReferenceID string
	Record      map[string]any
}

// Message is the rendered notification content sent to every device.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// DeviceRegistration is one push-capable device of a user. A user may own
// any number of registrations.
type DeviceRegistration struct {
	ID     string
	UserID string
	Token  string
}

// Conversation mirrors the two-party conversation row of the job board.
// Participant1 is always the initiator.
type Conversation struct {
	ID           string
	Participant1 string
	Participant2 string
	Context      string
}

// SeekerProfile is the job-seeker side of a user profile.
type SeekerProfile struct {
	UserID    string
	FirstName string
	LastName  string
}

// RecruiterProfile is the recruiter side of a user profile. A profile
// missing CompanyName or Sector counts as incomplete.
type RecruiterProfile struct {
	UserID      string
	CompanyName string
	Sector      string
}

// Role distinguishes the two profile flavours in reminder payloads.
type Role string

const (
	RoleSeeker    Role = "seeker"
	RoleRecruiter Role = "recruiter"
)

// Candidate is one user selected by the profile-reminder enumeration.
type Candidate struct {
	UserID string
	Role   Role
}

// DeliveryOutcome classifies the provider's response for a single device.
type DeliveryOutcome int

const (
	// Delivered means the provider accepted the message for this device.
	Delivered DeliveryOutcome = iota
	// TransientFailure means the send failed for a reason that does not
	// condemn the token. The registration is kept.
	TransientFailure
	// PermanentlyInvalid means the provider reported the token as gone
	// (unregistered, 404/410). The registration must be deleted.
	PermanentlyInvalid
)

func (o DeliveryOutcome) String() string {
	switch o {
	case Delivered:
		return "delivered"
	case TransientFailure:
		return "transient_failure"
	case PermanentlyInvalid:
		return "permanently_invalid"
	}
	return "unknown"
}

// TokenOutcome pairs a registration with its delivery outcome.
type TokenOutcome struct {
	RegistrationID string
	Outcome        DeliveryOutcome
}

// DeliveryResult is the partition of a recipient's fan-out: how many devices
// were delivered to and which registrations must be pruned.
type DeliveryResult struct {
	Delivered  int
	InvalidIDs []string
}

// Bearer is a short-lived credential authorizing calls to the push provider.
type Bearer struct {
	Value     string
	ExpiresAt time.Time
}
