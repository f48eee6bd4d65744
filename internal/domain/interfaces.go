package domain

import "context"

// ─── Content Classifier ─────────────────────────────────────────────────────

// ClassifierVerdict is the outcome of a content classification.
// Confidence is nil when the model could not produce a probability
// (for example when the text is empty after preprocessing).
type ClassifierVerdict struct {
	IsGood     bool
	Reason     string
	Confidence *float64
}

// ContentClassifier judges free-text content quality.
//
// Implementations must be idempotent and side-effect-free from the engine's
// viewpoint. Unavailability (no model loaded, breaker open, internal fault)
// is reported as an error wrapping ErrClassifierUnavailable, never as a
// silent pass.
type ContentClassifier interface {
	ValidateContent(ctx context.Context, text string) (ClassifierVerdict, error)
}

// ─── Record Store ───────────────────────────────────────────────────────────

// RecordView is a transactional view over one user's streak records,
// valid only for the duration of the RecordStore.Update callback.
// Puts are staged and committed atomically when the callback returns nil.
type RecordView interface {
	// Get returns the record for an activity type; ok is false when the
	// pair has never been written.
	Get(activityType string) (rec StreakRecord, ok bool)
	// Put stages a record write.
	Put(activityType string, rec StreakRecord)
	// Types returns every tracked activity type for the user, staged
	// writes included, sorted ascending for deterministic enumeration.
	Types() []string
}

// RecordStore is the addressable per-user streak record store.
// Update serializes all work for the same user id; different users
// proceed in parallel.
type RecordStore interface {
	Update(userID string, fn func(RecordView) error) error
	// Snapshot returns a copy of the user's records without mutating state.
	Snapshot(userID string) (map[string]StreakRecord, error)
}
