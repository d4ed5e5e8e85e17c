// Package quota computes a user's remaining daily upload allowance.
package quota

import (
	"spinarchive/archive-api/model"
)

// Counter is the slice of the upload store the tracker needs.
type Counter interface {
	CountRecent(uploaderID uint, statuses []model.UploadStatus) (int64, error)
}

type Tracker struct {
	Store Counter

	// Whether Deleted uploads still consume quota. The legacy system
	// counted them, so that's the default
	CountDeleted bool
}

func NewTracker(store Counter, countDeleted bool) *Tracker {
	return &Tracker{Store: store, CountDeleted: countDeleted}
}

func (t *Tracker) statuses(includePending bool) []model.UploadStatus {
	statuses := []model.UploadStatus{
		model.StatusProcessing,
		model.StatusPendingApproval,
		model.StatusCompleted,
	}
	if t.CountDeleted {
		statuses = append(statuses, model.StatusDeleted)
	}
	if includePending {
		statuses = append(statuses, model.StatusPending)
	}

	return statuses
}

// Remaining returns how many uploads the user may still submit inside the
// trailing 24-hour window, floored at zero. Pending uploads are excluded:
// an abandoned browser tab shouldn't eat into anyone's quota.
func (t *Tracker) Remaining(user *model.User) (int64, error) {
	return t.remaining(user, false)
}

func (t *Tracker) remaining(user *model.User, includePending bool) (int64, error) {
	count, err := t.Store.CountRecent(user.ID, t.statuses(includePending))
	if err != nil {
		return 0, err
	}

	remaining := int64(user.DailyUploadLimit) - count
	if remaining < 0 {
		remaining = 0
	}

	return remaining, nil
}

// Exceeded reports whether the user is out of quota. Contributors and
// above bypass the check entirely.
//
// includePending controls whether open Pending reservations count. Create
// passes true so a burst of creates can't reserve past the limit; finalize
// passes false so a user can always finish what create let through, even
// with stale abandoned reservations lying around.
func (t *Tracker) Exceeded(user *model.User, includePending bool) (bool, error) {
	if user.IsContributor() {
		return false, nil
	}

	remaining, err := t.remaining(user, includePending)
	if err != nil {
		return false, err
	}

	return remaining <= 0, nil
}
