package engine

import (
	"context"
	"time"

	"github.com/jobmate-app/go-push-dispatch/pkg/notify"
)

// Deduplicator gates dispatch on the audit log: a notification for the same
// (user, kind, reference) tuple inside the kind's window is suppressed.
//
// The check is not transactionally atomic with the later log write.
// Concurrent duplicate triggers inside the same short interval may both pass;
// an occasional duplicate push is accepted over distributed locking.
type Deduplicator struct {
	log notify.NotificationLog
	now func() time.Time
}

func NewDeduplicator(log notify.NotificationLog, now func() time.Time) *Deduplicator {
	if now == nil {
		now = time.Now
	}
	return &Deduplicator{log: log, now: now}
}

// ShouldSend reports whether no matching entry exists inside the window.
func (d *Deduplicator) ShouldSend(ctx context.Context, userID string, kind notify.Kind, referenceID string) (bool, error) {
	since := d.now().Add(-kind.DedupWindow())
	seen, err := d.log.SentSince(ctx, userID, kind, referenceID, since)
	if err != nil {
		return false, err
	}
	return !seen, nil
}
