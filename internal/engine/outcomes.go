package engine

import "github.com/jobmate-app/go-push-dispatch/pkg/notify"

// PartitionOutcomes folds per-device outcomes into a delivery result:
// the delivered count and the set of registrations to prune. Transient
// failures contribute to neither bucket.
func PartitionOutcomes(outcomes []notify.TokenOutcome) notify.DeliveryResult {
	var result notify.DeliveryResult
	for _, o := range outcomes {
		switch o.Outcome {
		case notify.Delivered:
			result.Delivered++
		case notify.PermanentlyInvalid:
			result.InvalidIDs = append(result.InvalidIDs, o.RegistrationID)
		}
	}
	return result
}
