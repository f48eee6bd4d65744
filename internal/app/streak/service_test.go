package streak_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/streakforge/streakd/internal/app/streak"
	"github.com/streakforge/streakd/internal/config"
	"github.com/streakforge/streakd/internal/domain"
	"github.com/streakforge/streakd/internal/infra/store"
)

func ts(y int, m time.Month, d, hh, mm, ss int) time.Time {
	return time.Date(y, m, d, hh, mm, ss, 0, time.UTC)
}

// testProvider builds the canonical in-memory test configuration:
// midnight reset, -1s buffer, bronze/silver/gold tiers, and the three
// standard activity types plus a disabled "legacy" one.
func testProvider(graceHours float64) *config.Provider {
	return config.FromTree(map[string]any{
		"daily_reset_hour_utc":         int64(0),
		"next_deadline_buffer_seconds": int64(-1),
		"grace_period_hours":           graceHours,
		"streak_tiers": []map[string]any{
			{"name": "bronze", "min_streak": int64(3)},
			{"name": "silver", "min_streak": int64(7)},
			{"name": "gold", "min_streak": int64(14)},
		},
		"activity_types": map[string]any{
			"login": map[string]any{"enabled": true},
			"quiz": map[string]any{
				"enabled": true,
				"validators": map[string]any{
					"min_score":          int64(5),
					"max_time_taken_sec": int64(300),
				},
			},
			"help_post": map[string]any{
				"enabled": true,
				"validators": map[string]any{
					"min_word_count":        int64(20),
					"ai_validation_enabled": false,
				},
			},
			"legacy": map[string]any{"enabled": false},
		},
	})
}

func newService(graceHours float64, clf domain.ContentClassifier) *streak.Service {
	return streak.NewService(testProvider(graceHours), store.NewMemory(), clf)
}

type stubClassifier struct {
	verdict domain.ClassifierVerdict
	err     error
	panics  bool
}

func (c *stubClassifier) ValidateContent(ctx context.Context, text string) (domain.ClassifierVerdict, error) {
	if c.panics {
		panic("classifier blew up")
	}
	return c.verdict, c.err
}

func login() domain.Action {
	return domain.Action{Type: "login"}
}

func quiz(score, timeTaken float64) domain.Action {
	return domain.Action{Type: "quiz", Metadata: map[string]any{
		"score":          score,
		"time_taken_sec": timeTaken,
	}}
}

func helpPost(wordCount float64, content string) domain.Action {
	return domain.Action{Type: "help_post", Metadata: map[string]any{
		"word_count": wordCount,
		"content":    content,
	}}
}

func process(t *testing.T, svc *streak.Service, user string, at time.Time, actions ...domain.Action) map[string]domain.Verdict {
	t.Helper()
	out, err := svc.Process(context.Background(), user, at, actions)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	return out
}

// ─── Transitions ────────────────────────────────────────────────────────────

func TestFirstActionStartsStreak(t *testing.T) {
	svc := newService(0, nil)

	out := process(t, svc, "alice", ts(2025, 7, 1, 12, 0, 0), login())
	v, ok := out["login"]
	if !ok {
		t.Fatal("no login verdict in response")
	}
	if v.CurrentStreak != 1 || v.Status != domain.StatusActive {
		t.Errorf("got streak=%d status=%s, want 1/active", v.CurrentStreak, v.Status)
	}
	if v.Tier != "none" {
		t.Errorf("tier = %q, want none below the bronze threshold", v.Tier)
	}
	if v.Validated == nil || !*v.Validated {
		t.Error("validated should be true for a valid action")
	}
	want := ts(2025, 7, 2, 23, 59, 59)
	if v.NextDeadlineUTC == nil || !v.NextDeadlineUTC.Equal(want) {
		t.Errorf("next deadline = %v, want %v", v.NextDeadlineUTC, want)
	}
}

func TestSameDayActionsAreIdempotent(t *testing.T) {
	svc := newService(0, nil)

	process(t, svc, "alice", ts(2025, 7, 1, 9, 0, 0), login())
	out := process(t, svc, "alice", ts(2025, 7, 1, 22, 0, 0), login())
	if v := out["login"]; v.CurrentStreak != 1 || v.Status != domain.StatusActive {
		t.Errorf("second same-day action changed the record: %+v", v)
	}
}

func TestNextDayContinuation(t *testing.T) {
	svc := newService(0, nil)

	process(t, svc, "alice", ts(2025, 7, 1, 12, 0, 0), login())
	out := process(t, svc, "alice", ts(2025, 7, 2, 12, 0, 0), login())
	if v := out["login"]; v.CurrentStreak != 2 || v.Status != domain.StatusActive {
		t.Errorf("got streak=%d status=%s, want 2/active", v.CurrentStreak, v.Status)
	}
}

func TestStreakGrowsMonotonically(t *testing.T) {
	svc := newService(0, nil)

	for i := 0; i < 10; i++ {
		out := process(t, svc, "alice", ts(2025, 7, 1+i, 12, 0, 0), login())
		if v := out["login"]; v.CurrentStreak != i+1 {
			t.Fatalf("day %d: streak = %d, want %d", i+1, v.CurrentStreak, i+1)
		}
	}
}

func TestMissedDayRestartsStreak(t *testing.T) {
	svc := newService(0, nil)

	process(t, svc, "alice", ts(2025, 7, 1, 12, 0, 0), login())
	out := process(t, svc, "alice", ts(2025, 7, 5, 12, 0, 0), login())
	if v := out["login"]; v.CurrentStreak != 1 || v.Status != domain.StatusActive {
		t.Errorf("got streak=%d status=%s, want 1/active after a gap", v.CurrentStreak, v.Status)
	}
}

// ─── Grace window ───────────────────────────────────────────────────────────

func TestGraceWindowBanksTheMissedDay(t *testing.T) {
	svc := newService(6, nil) // effective deadline = strict + 6h

	process(t, svc, "alice", ts(2025, 7, 1, 12, 0, 0), login())

	// Strict deadline for the July 1 anchor is July 2 23:59:59; the grace
	// window runs until July 3 05:59:59. Landing inside it continues the
	// streak and credits the slot to July 2, not July 3.
	out := process(t, svc, "alice", ts(2025, 7, 3, 5, 59, 29), login())
	v := out["login"]
	if v.CurrentStreak != 2 || v.Status != domain.StatusActive {
		t.Fatalf("got streak=%d status=%s, want 2/active", v.CurrentStreak, v.Status)
	}
	want := ts(2025, 7, 3, 23, 59, 59) // strict deadline for the July 2 credit
	if v.NextDeadlineUTC == nil || !v.NextDeadlineUTC.Equal(want) {
		t.Errorf("next deadline = %v, want %v", v.NextDeadlineUTC, want)
	}
}

func TestGraceBoundaryIsInclusive(t *testing.T) {
	edge := ts(2025, 7, 3, 5, 59, 59) // exactly the effective deadline

	svc := newService(6, nil)
	process(t, svc, "alice", ts(2025, 7, 1, 12, 0, 0), login())
	if v := process(t, svc, "alice", edge, login())["login"]; v.CurrentStreak != 2 {
		t.Errorf("action at the effective deadline: streak = %d, want 2", v.CurrentStreak)
	}

	svc = newService(6, nil)
	process(t, svc, "bob", ts(2025, 7, 1, 12, 0, 0), login())
	if v := process(t, svc, "bob", edge.Add(time.Second), login())["login"]; v.CurrentStreak != 1 {
		t.Errorf("action one second past the effective deadline: streak = %d, want 1", v.CurrentStreak)
	}
}

// ─── Validation verdicts ────────────────────────────────────────────────────

func TestQuizBelowMinScoreIsRejected(t *testing.T) {
	svc := newService(0, nil)

	out := process(t, svc, "alice", ts(2025, 7, 1, 12, 0, 0), quiz(2, 100))
	v := out["quiz"]
	if v.Validated == nil || *v.Validated {
		t.Fatal("low-score quiz should be rejected")
	}
	if !strings.Contains(v.RejectionReason, "score") {
		t.Errorf("rejection reason %q does not mention the score", v.RejectionReason)
	}
	if v.CurrentStreak != 0 || v.Status != domain.StatusNone {
		t.Errorf("rejected first action left state %+v, want 0/none", v)
	}
}

func TestQuizOverTimeLimitIsRejected(t *testing.T) {
	svc := newService(0, nil)

	v := process(t, svc, "alice", ts(2025, 7, 1, 12, 0, 0), quiz(9, 301))["quiz"]
	if v.Validated == nil || *v.Validated {
		t.Fatal("over-time quiz should be rejected")
	}
	if !strings.Contains(v.RejectionReason, "time") {
		t.Errorf("rejection reason %q does not mention time", v.RejectionReason)
	}
}

func TestMissingMetadataFailsClosed(t *testing.T) {
	svc := newService(0, nil)

	v := process(t, svc, "alice", ts(2025, 7, 1, 12, 0, 0),
		domain.Action{Type: "quiz", Metadata: map[string]any{"time_taken_sec": 30}})["quiz"]
	if v.Validated == nil || *v.Validated {
		t.Fatal("quiz without a score should be rejected")
	}
	if !strings.Contains(v.RejectionReason, "N/A") {
		t.Errorf("rejection reason %q should report the missing field as N/A", v.RejectionReason)
	}
}

func TestInvalidActionInsideWindowKeepsStreak(t *testing.T) {
	svc := newService(0, nil)

	process(t, svc, "alice", ts(2025, 7, 1, 12, 0, 0), quiz(9, 100))
	out := process(t, svc, "alice", ts(2025, 7, 2, 12, 0, 0), quiz(2, 100))
	v := out["quiz"]
	if v.CurrentStreak != 1 || v.Status != domain.StatusActive {
		t.Errorf("invalid action inside the window changed state to %+v, want 1/active", v)
	}
	if v.Validated == nil || *v.Validated {
		t.Error("verdict should still report the rejection")
	}
	want := ts(2025, 7, 2, 23, 59, 59) // deadline of the stored July 1 anchor
	if v.NextDeadlineUTC == nil || !v.NextDeadlineUTC.Equal(want) {
		t.Errorf("next deadline = %v, want %v", v.NextDeadlineUTC, want)
	}
}

func TestInvalidActionPastWindowLosesStreak(t *testing.T) {
	svc := newService(0, nil)

	process(t, svc, "alice", ts(2025, 7, 1, 12, 0, 0), quiz(9, 100))
	v := process(t, svc, "alice", ts(2025, 7, 5, 12, 0, 0), quiz(2, 100))["quiz"]
	if v.CurrentStreak != 0 || v.Status != domain.StatusLost {
		t.Errorf("got %+v, want 0/lost: the invalid action arrived after expiry", v)
	}
	if v.NextDeadlineUTC != nil {
		t.Error("a lost streak has no next deadline")
	}
}

// ─── Lazy re-evaluation ─────────────────────────────────────────────────────

func TestLazyExpiryOfUnmentionedTypes(t *testing.T) {
	svc := newService(0, nil)

	process(t, svc, "alice", ts(2025, 7, 1, 12, 0, 0), login(), quiz(9, 100))

	// Two days later only a help post arrives; the login and quiz streaks
	// expired in the meantime and must surface as lost in the same response.
	out := process(t, svc, "alice", ts(2025, 7, 3, 12, 0, 0), helpPost(25, ""))

	if v := out["help_post"]; v.CurrentStreak != 1 || v.Status != domain.StatusActive {
		t.Errorf("help_post = %+v, want 1/active", v)
	}
	for _, typ := range []string{"login", "quiz"} {
		v, ok := out[typ]
		if !ok {
			t.Fatalf("no %s verdict for the tracked type", typ)
		}
		if v.CurrentStreak != 0 || v.Status != domain.StatusLost {
			t.Errorf("%s = %+v, want 0/lost", typ, v)
		}
		if v.Validated != nil {
			t.Errorf("%s was not in the request; verdict must not carry validated", typ)
		}
	}
}

func TestLazyCheckLeavesLiveStreaksAlone(t *testing.T) {
	svc := newService(0, nil)

	process(t, svc, "alice", ts(2025, 7, 1, 12, 0, 0), login())
	out := process(t, svc, "alice", ts(2025, 7, 2, 12, 0, 0), helpPost(25, ""))

	v := out["login"]
	if v.CurrentStreak != 1 || v.Status != domain.StatusActive {
		t.Errorf("login = %+v, want untouched 1/active inside its window", v)
	}
	want := ts(2025, 7, 2, 23, 59, 59)
	if v.NextDeadlineUTC == nil || !v.NextDeadlineUTC.Equal(want) {
		t.Errorf("login deadline = %v, want %v", v.NextDeadlineUTC, want)
	}
}

func TestLazyExpiryIsConsistentWithDirectAction(t *testing.T) {
	at := ts(2025, 7, 3, 12, 0, 0)

	direct := newService(0, nil)
	process(t, direct, "u", ts(2025, 7, 1, 12, 0, 0), login())
	dv := process(t, direct, "u", at, login())["login"]

	lazy := newService(0, nil)
	process(t, lazy, "u", ts(2025, 7, 1, 12, 0, 0), login())
	lv := process(t, lazy, "u", at, helpPost(25, ""))["login"]

	// The direct action restarts at 1 while the lazy path only marks the
	// loss, but both agree the old streak is dead at this instant.
	if dv.CurrentStreak != 1 || dv.Status != domain.StatusActive {
		t.Errorf("direct = %+v, want restarted 1/active", dv)
	}
	if lv.CurrentStreak != 0 || lv.Status != domain.StatusLost {
		t.Errorf("lazy = %+v, want 0/lost", lv)
	}
}

// ─── Type filtering and fault isolation ─────────────────────────────────────

func TestUnknownAndDisabledTypesAreOmitted(t *testing.T) {
	svc := newService(0, nil)

	out := process(t, svc, "alice", ts(2025, 7, 1, 12, 0, 0),
		login(),
		domain.Action{Type: "yoga"},
		domain.Action{Type: "legacy"},
	)
	if _, ok := out["yoga"]; ok {
		t.Error("unconfigured type must not appear in the response")
	}
	if _, ok := out["legacy"]; ok {
		t.Error("disabled type must not appear in the response")
	}
	if v := out["login"]; v.CurrentStreak != 1 {
		t.Errorf("login was not processed alongside skipped types: %+v", v)
	}
}

func TestPanicInOneTypeDoesNotSinkTheRequest(t *testing.T) {
	cfg := testProvider(0)
	cfg.Set("activity_types.help_post.validators.ai_validation_enabled", true)
	svc := streak.NewService(cfg, store.NewMemory(), &stubClassifier{panics: true})

	out := process(t, svc, "alice", ts(2025, 7, 1, 12, 0, 0), helpPost(25, "x"), login())
	if v := out["login"]; v.CurrentStreak != 1 || v.Status != domain.StatusActive {
		t.Errorf("login = %+v, want 1/active despite the help_post panic", v)
	}
	if v := out["help_post"]; v.CurrentStreak != 0 {
		t.Errorf("help_post after a panic = %+v, want untouched state", v)
	}
}

// ─── Classifier delegation ──────────────────────────────────────────────────

func TestClassifierAcceptContinuesTransition(t *testing.T) {
	cfg := testProvider(0)
	cfg.Set("activity_types.help_post.validators.ai_validation_enabled", true)
	svc := streak.NewService(cfg, store.NewMemory(),
		&stubClassifier{verdict: domain.ClassifierVerdict{IsGood: true}})

	v := process(t, svc, "alice", ts(2025, 7, 1, 12, 0, 0), helpPost(25, "a real question"))["help_post"]
	if v.Validated == nil || !*v.Validated || v.CurrentStreak != 1 {
		t.Errorf("accepted post should start the streak, got %+v", v)
	}
}

func TestClassifierRejectIsAVerdict(t *testing.T) {
	cfg := testProvider(0)
	cfg.Set("activity_types.help_post.validators.ai_validation_enabled", true)
	svc := streak.NewService(cfg, store.NewMemory(),
		&stubClassifier{verdict: domain.ClassifierVerdict{IsGood: false, Reason: "content classified as low quality"}})

	v := process(t, svc, "alice", ts(2025, 7, 1, 12, 0, 0), helpPost(25, "spam"))["help_post"]
	if v.Validated == nil || *v.Validated {
		t.Fatal("classifier rejection must reject the action")
	}
	if v.RejectionReason != "content classified as low quality" {
		t.Errorf("rejection reason = %q", v.RejectionReason)
	}
}

func TestClassifierUnavailableRejectsNotAccepts(t *testing.T) {
	cfg := testProvider(0)
	cfg.Set("activity_types.help_post.validators.ai_validation_enabled", true)

	cases := map[string]domain.ContentClassifier{
		"nil classifier":   nil,
		"erroring backend": &stubClassifier{err: errors.New("connection refused")},
	}
	for name, clf := range cases {
		svc := streak.NewService(cfg, store.NewMemory(), clf)
		v := process(t, svc, "alice", ts(2025, 7, 1, 12, 0, 0), helpPost(25, "text"))["help_post"]
		if v.Validated == nil || *v.Validated {
			t.Errorf("%s: unavailability silently accepted the action", name)
		}
		if !strings.Contains(v.RejectionReason, "unavailable") {
			t.Errorf("%s: reason %q does not name unavailability", name, v.RejectionReason)
		}
	}
}

func TestStructuralCheckShortCircuitsClassifier(t *testing.T) {
	cfg := testProvider(0)
	cfg.Set("activity_types.help_post.validators.ai_validation_enabled", true)
	svc := streak.NewService(cfg, store.NewMemory(), &stubClassifier{panics: true})

	// Word count below the minimum fails before the classifier is consulted.
	v := process(t, svc, "alice", ts(2025, 7, 1, 12, 0, 0), helpPost(5, "short"))["help_post"]
	if v.Validated == nil || *v.Validated {
		t.Fatal("short post should be structurally rejected")
	}
	if !strings.Contains(v.RejectionReason, "word count") {
		t.Errorf("reason = %q, want the structural word-count failure", v.RejectionReason)
	}
}

// ─── Errors and snapshots ───────────────────────────────────────────────────

func TestMalformedTiersIsARequestError(t *testing.T) {
	cfg := testProvider(0)
	cfg.Set("streak_tiers", "oops")
	svc := streak.NewService(cfg, store.NewMemory(), nil)

	_, err := svc.Process(context.Background(), "alice", ts(2025, 7, 1, 12, 0, 0), []domain.Action{login()})
	if !errors.Is(err, domain.ErrConfigInvalid) {
		t.Errorf("err = %v, want ErrConfigInvalid", err)
	}
}

func TestEmptyUserIDRejected(t *testing.T) {
	svc := newService(0, nil)

	_, err := svc.Process(context.Background(), "", ts(2025, 7, 1, 12, 0, 0), []domain.Action{login()})
	if !errors.Is(err, domain.ErrUserIDEmpty) {
		t.Errorf("err = %v, want ErrUserIDEmpty", err)
	}
}

func TestSnapshotDoesNotExpire(t *testing.T) {
	st := store.NewMemory()
	svc := streak.NewService(testProvider(0), st, nil)

	process(t, svc, "alice", ts(2025, 7, 1, 12, 0, 0), login())

	// A read long after the deadline reports the stored state untouched;
	// only an update request applies expiry.
	out, err := svc.Snapshot("alice")
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if v := out["login"]; v.CurrentStreak != 1 || v.Status != domain.StatusActive {
		t.Errorf("snapshot = %+v, want stored 1/active", v)
	}

	recs, err := st.Snapshot("alice")
	if err != nil {
		t.Fatalf("store snapshot: %v", err)
	}
	if rec := recs["login"]; rec.Status != domain.StatusActive {
		t.Errorf("snapshot mutated the record to %+v", rec)
	}
}

func TestUsersDoNotShareStreaks(t *testing.T) {
	svc := newService(0, nil)

	process(t, svc, "alice", ts(2025, 7, 1, 12, 0, 0), login())
	out := process(t, svc, "bob", ts(2025, 7, 1, 12, 0, 0), login())
	if v := out["login"]; v.CurrentStreak != 1 {
		t.Errorf("bob inherited alice's streak: %+v", v)
	}
}
