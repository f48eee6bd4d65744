package streak

import "github.com/streakforge/streakd/internal/domain"

// ResolveTier maps a streak length onto the configured tier ladder.
//
// The highest threshold satisfied by currentStreak wins. When no threshold
// is met (or no tiers are configured) the tier is "none"; a configured
// min_streak 0 tier always qualifies, which is how a "lowest tier" default
// falls out without a special case. Deterministic and total: malformed
// tier lists are rejected at config load, never here.
func ResolveTier(currentStreak int, tiers []domain.Tier) string {
	name := "none"
	best := -1
	for _, t := range tiers {
		if t.MinStreak <= currentStreak && t.MinStreak > best {
			name = t.Name
			best = t.MinStreak
		}
	}
	return name
}
