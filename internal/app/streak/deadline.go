// Package streak implements the streakd streak engine: deadline math, tier
// resolution, action validation, and the per-request calculator service.
//
// The engine is invoked per request. Requests for different users run in
// parallel; requests for the same user are serialized end-to-end by the
// record store's per-user critical section.
package streak

import (
	"time"

	"github.com/streakforge/streakd/internal/domain"
)

// StrictDeadline returns the last instant at which an action can still be
// credited to the day after the anchor date, before any grace extension.
//
// An action credited to day D must be followed by one credited to day D+1
// before the end of day D+1: two days past the anchor's reset boundary plus
// a negative buffer (default -1s) lands on the last second of day D+1.
// Pure and total for any calendar date.
func StrictDeadline(anchor time.Time, r domain.DeadlineRules) time.Time {
	base := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), r.ResetHourUTC, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, 2).Add(r.Buffer)
}

// EffectiveDeadline is the strict deadline extended by the grace period.
// Both the per-action transition and the lazy re-evaluation pass use this
// same formula so they never disagree about expiry for the same instant.
func EffectiveDeadline(anchor time.Time, r domain.DeadlineRules) time.Time {
	return StrictDeadline(anchor, r).Add(r.Grace)
}
