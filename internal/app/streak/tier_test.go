package streak_test

import (
	"testing"

	"github.com/streakforge/streakd/internal/app/streak"
	"github.com/streakforge/streakd/internal/domain"
)

var testTiers = []domain.Tier{
	{Name: "bronze", MinStreak: 3},
	{Name: "silver", MinStreak: 7},
	{Name: "gold", MinStreak: 14},
}

func TestResolveTier(t *testing.T) {
	cases := []struct {
		streak int
		want   string
	}{
		{0, "none"},
		{2, "none"},
		{3, "bronze"},
		{6, "bronze"},
		{7, "silver"},
		{13, "silver"},
		{14, "gold"},
		{1000, "gold"},
	}
	for _, c := range cases {
		if got := streak.ResolveTier(c.streak, testTiers); got != c.want {
			t.Errorf("ResolveTier(%d) = %q, want %q", c.streak, got, c.want)
		}
	}
}

func TestResolveTier_NoTiersConfigured(t *testing.T) {
	if got := streak.ResolveTier(10, nil); got != "none" {
		t.Errorf("ResolveTier with no tiers = %q, want none", got)
	}
}

func TestResolveTier_ZeroThresholdIsDefault(t *testing.T) {
	tiers := []domain.Tier{
		{Name: "newbie", MinStreak: 0},
		{Name: "regular", MinStreak: 5},
	}
	if got := streak.ResolveTier(0, tiers); got != "newbie" {
		t.Errorf("ResolveTier(0) = %q, want newbie", got)
	}
	if got := streak.ResolveTier(4, tiers); got != "newbie" {
		t.Errorf("ResolveTier(4) = %q, want newbie", got)
	}
	if got := streak.ResolveTier(5, tiers); got != "regular" {
		t.Errorf("ResolveTier(5) = %q, want regular", got)
	}
}

// Raising the streak must never lower the resolved tier.
func TestResolveTier_Monotonic(t *testing.T) {
	rank := map[string]int{"none": 0, "bronze": 1, "silver": 2, "gold": 3}
	prev := 0
	for s := 0; s <= 20; s++ {
		cur := rank[streak.ResolveTier(s, testTiers)]
		if cur < prev {
			t.Fatalf("tier decreased at streak %d", s)
		}
		prev = cur
	}
}
