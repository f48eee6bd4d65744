// Package domain holds the pure streakd types.
// Records, verdicts, and configuration shapes only, with no infrastructure
// dependency, so the streak engine stays testable in isolation.
package domain

import "time"

// ─── Streak Record ──────────────────────────────────────────────────────────

// StreakStatus is the lifecycle state of a streak.
type StreakStatus string

const (
	// StatusNone means no streak has ever been established (or the last
	// attempt was invalid with nothing to lose).
	StatusNone StreakStatus = "none"
	// StatusActive means the streak is running and has an anchor date.
	StatusActive StreakStatus = "active"
	// StatusLost means a previously active streak missed its deadline.
	StatusLost StreakStatus = "lost"
)

// StreakRecord is the stored state for one (user, activity type) pair.
//
// Invariants: none/lost records carry CurrentStreak 0 and no anchor date;
// active records carry CurrentStreak >= 1 and an anchor date. LastEventDate
// is the logical day the streak slot was credited; it can run one day ahead
// of the triggering event's calendar day when a late action lands inside the
// grace window and banks the slot it was owed.
type StreakRecord struct {
	CurrentStreak int          `json:"current_streak"`
	LastEventDate time.Time    `json:"last_event_date"` // UTC midnight; zero when absent
	Status        StreakStatus `json:"status"`
}

// HasAnchor reports whether the record carries a credited date.
func (r StreakRecord) HasAnchor() bool {
	return !r.LastEventDate.IsZero()
}

// LostRecord is the tombstone written when a streak expires.
func LostRecord() StreakRecord {
	return StreakRecord{Status: StatusLost}
}

// NoneRecord is the tombstone for a pair with nothing established.
func NoneRecord() StreakRecord {
	return StreakRecord{Status: StatusNone}
}

// DateOf truncates t to its UTC calendar date (midnight UTC).
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ─── Request / Verdict ──────────────────────────────────────────────────────

// Action is one entry in an update request.
type Action struct {
	Type     string         `json:"type"`
	Metadata map[string]any `json:"metadata"`
}

// Verdict is the per-activity-type outcome reported to the caller.
// Validated and RejectionReason are only set for types that carried an
// explicit action in the request; lazily re-evaluated types omit them.
type Verdict struct {
	CurrentStreak   int          `json:"current_streak"`
	Status          StreakStatus `json:"status"`
	Tier            string       `json:"tier"`
	NextDeadlineUTC *time.Time   `json:"next_deadline_utc,omitempty"`
	Validated       *bool        `json:"validated,omitempty"`
	RejectionReason string       `json:"rejection_reason,omitempty"`
}

// ─── Configuration Shapes ───────────────────────────────────────────────────

// Tier is one rung of the streak tier ladder.
type Tier struct {
	Name      string `json:"name"`
	MinStreak int    `json:"min_streak"`
}

// DeadlineRules are the clock knobs for the deadline calculator.
type DeadlineRules struct {
	ResetHourUTC int
	Buffer       time.Duration // default -1s: last instant of the day after the anchor
	Grace        time.Duration // grace period beyond the strict deadline
}

// ValidatorRules are the per-activity-type structural thresholds.
// A nil threshold means the rule is not configured for the type.
type ValidatorRules struct {
	MinScore            *float64
	MaxTimeTakenSec     *float64
	MinWordCount        *float64
	AIValidationEnabled bool
}

// ActivityTypeConfig is the configuration subtree for one activity type.
type ActivityTypeConfig struct {
	Enabled    bool
	Validators ValidatorRules
}
