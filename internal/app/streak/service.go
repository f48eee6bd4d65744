package streak

import (
	"context"
	"log"
	"time"

	"github.com/streakforge/streakd/internal/config"
	"github.com/streakforge/streakd/internal/domain"
	"github.com/streakforge/streakd/internal/infra/metrics"
)

// Service orchestrates streak transitions for one update request:
// it validates each explicit action, applies the per-action transition,
// then lazily re-evaluates every tracked-but-unmentioned type for the user.
type Service struct {
	cfg        *config.Provider
	store      domain.RecordStore
	classifier domain.ContentClassifier
}

// NewService creates the streak calculator service. classifier may be nil
// when no activity type has AI validation enabled; an action that still
// requests it is then rejected as classifier-unavailable.
func NewService(cfg *config.Provider, store domain.RecordStore, classifier domain.ContentClassifier) *Service {
	return &Service{cfg: cfg, store: store, classifier: classifier}
}

// Process applies one request for a user and returns one verdict per
// activity type: every type carried in the request (unconfigured and
// disabled types omitted) plus every type ever tracked for the user.
//
// The whole read-compute-write cycle runs inside the user's critical
// section and commits atomically; the only returned errors are
// configuration faults and store commit failures.
func (s *Service) Process(ctx context.Context, userID string, eventTime time.Time, actions []domain.Action) (map[string]domain.Verdict, error) {
	rules := s.cfg.Rules()
	tiers, err := s.cfg.Tiers()
	if err != nil {
		return nil, err
	}

	out := make(map[string]domain.Verdict)
	today := domain.DateOf(eventTime)

	err = s.store.Update(userID, func(view domain.RecordView) error {
		mentioned := make(map[string]bool)

		for _, act := range actions {
			mentioned[act.Type] = true

			cfg, ok, err := s.cfg.ActivityType(act.Type)
			if err != nil {
				return err
			}
			if !ok || !cfg.Enabled {
				log.Printf("[streak] user=%s type=%q not configured or disabled, skipping", userID, act.Type)
				continue
			}

			out[act.Type] = s.applyAction(ctx, view, act, cfg, eventTime, today, rules, tiers)
		}

		// Lazy re-evaluation: any type tracked for this user but absent
		// from the request surfaces as lost once its deadline has passed.
		for _, typ := range view.Types() {
			if mentioned[typ] {
				continue
			}
			out[typ] = reevaluate(view, typ, eventTime, rules, tiers)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// applyAction runs the per-action transition (validation verdict included).
// A panic while processing one type is contained here: the record is left
// untouched and a neutral verdict is reported, so the remaining types in
// the request still proceed.
func (s *Service) applyAction(ctx context.Context, view domain.RecordView, act domain.Action,
	cfg domain.ActivityTypeConfig, eventTime, today time.Time,
	rules domain.DeadlineRules, tiers []domain.Tier) (v domain.Verdict) {

	rec, tracked := view.Get(act.Type)
	if !tracked {
		rec = domain.NoneRecord()
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[streak] panic processing type=%q: %v", act.Type, r)
			v = verdictFor(rec, nil, tiers)
		}
	}()

	valid, reason := s.validateAction(ctx, act, cfg)

	var next domain.StreakRecord
	switch {
	case !valid:
		metrics.ValidationFailures.WithLabelValues(act.Type).Inc()
		if rec.HasAnchor() && rec.CurrentStreak > 0 {
			if eventTime.After(EffectiveDeadline(rec.LastEventDate, rules)) {
				// The invalid action arrived past the old streak's window.
				next = domain.LostRecord()
				metrics.StreaksLost.Inc()
			} else {
				// Still inside the window: an invalid action neither
				// advances nor breaks the streak.
				next = rec
			}
		} else {
			next = domain.NoneRecord()
		}

	case !rec.HasAnchor():
		// First-ever valid action for this pair.
		next = domain.StreakRecord{CurrentStreak: 1, LastEventDate: today, Status: domain.StatusActive}
		metrics.ActionsProcessed.WithLabelValues(act.Type, "started").Inc()

	case today.Equal(rec.LastEventDate):
		// Same-day actions are idempotent.
		next = rec
		next.Status = domain.StatusActive
		metrics.ActionsProcessed.WithLabelValues(act.Type, "unchanged").Inc()

	default:
		if !eventTime.After(EffectiveDeadline(rec.LastEventDate, rules)) {
			// On time (grace included): the slot is credited to the
			// expected next day even if the event's calendar day is later.
			next = domain.StreakRecord{
				CurrentStreak: rec.CurrentStreak + 1,
				LastEventDate: rec.LastEventDate.AddDate(0, 0, 1),
				Status:        domain.StatusActive,
			}
			metrics.ActionsProcessed.WithLabelValues(act.Type, "extended").Inc()
		} else {
			next = domain.StreakRecord{CurrentStreak: 1, LastEventDate: today, Status: domain.StatusActive}
			metrics.ActionsProcessed.WithLabelValues(act.Type, "restarted").Inc()
		}
	}

	view.Put(act.Type, next)

	var deadline *time.Time
	if next.Status == domain.StatusActive && next.HasAnchor() {
		d := StrictDeadline(next.LastEventDate, rules)
		deadline = &d
	}

	v = verdictFor(next, deadline, tiers)
	v.Validated = &valid
	if !valid {
		v.RejectionReason = reason
	}
	return v
}

// reevaluate applies the lazy expiry check for one untouched type, using the
// same effective-deadline formula and request timestamp as applyAction.
func reevaluate(view domain.RecordView, typ string, eventTime time.Time,
	rules domain.DeadlineRules, tiers []domain.Tier) domain.Verdict {

	rec, _ := view.Get(typ)

	var deadline *time.Time
	switch {
	case rec.Status == domain.StatusActive && rec.HasAnchor() && rec.CurrentStreak > 0:
		if eventTime.After(EffectiveDeadline(rec.LastEventDate, rules)) {
			rec = domain.LostRecord()
			view.Put(typ, rec)
			metrics.StreaksLost.Inc()
			metrics.LazyExpiries.Inc()
		} else {
			d := StrictDeadline(rec.LastEventDate, rules)
			deadline = &d
		}
	case rec.CurrentStreak == 0 && rec.Status != domain.StatusLost:
		// Normalize stray zero records to an explicit tombstone.
		if rec.Status != domain.StatusNone {
			rec = domain.NoneRecord()
			view.Put(typ, rec)
		}
	}

	return verdictFor(rec, deadline, tiers)
}

func verdictFor(rec domain.StreakRecord, deadline *time.Time, tiers []domain.Tier) domain.Verdict {
	return domain.Verdict{
		CurrentStreak:   rec.CurrentStreak,
		Status:          rec.Status,
		Tier:            ResolveTier(rec.CurrentStreak, tiers),
		NextDeadlineUTC: deadline,
	}
}

// Snapshot reports a user's tracked records without mutating state.
// Deadlines reflect the stored anchors; no expiry is applied.
func (s *Service) Snapshot(userID string) (map[string]domain.Verdict, error) {
	tiers, err := s.cfg.Tiers()
	if err != nil {
		return nil, err
	}
	rules := s.cfg.Rules()

	recs, err := s.store.Snapshot(userID)
	if err != nil {
		return nil, err
	}

	out := make(map[string]domain.Verdict, len(recs))
	for typ, rec := range recs {
		var deadline *time.Time
		if rec.Status == domain.StatusActive && rec.HasAnchor() {
			d := StrictDeadline(rec.LastEventDate, rules)
			deadline = &d
		}
		out[typ] = verdictFor(rec, deadline, tiers)
	}
	return out, nil
}
