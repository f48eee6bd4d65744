package classifier

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sony/gobreaker/v2"

	"github.com/streakforge/streakd/internal/domain"
	"github.com/streakforge/streakd/internal/infra/metrics"
)

// Guard decorates a ContentClassifier with a circuit breaker and an LRU
// verdict cache. The classifier contract is idempotent and side-effect-free,
// so caching by content hash is sound; an open breaker surfaces as the
// classifier-unavailable outcome, which validation treats as a rejection.
type Guard struct {
	inner   domain.ContentClassifier
	breaker *gobreaker.CircuitBreaker[domain.ClassifierVerdict]
	cache   *lru.Cache[[32]byte, domain.ClassifierVerdict]
}

// NewGuard wraps inner. cacheSize <= 0 disables the verdict cache.
func NewGuard(inner domain.ContentClassifier, cacheSize int) *Guard {
	cb := gobreaker.NewCircuitBreaker[domain.ClassifierVerdict](gobreaker.Settings{
		Name:        "content-classifier",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})

	g := &Guard{inner: inner, breaker: cb}
	if cacheSize > 0 {
		// lru.New only fails on a non-positive size.
		g.cache, _ = lru.New[[32]byte, domain.ClassifierVerdict](cacheSize)
	}
	return g
}

// ValidateContent serves from the cache when possible, otherwise runs the
// inner classifier through the breaker. Negative verdicts are successes;
// only unavailability counts as a breaker failure.
func (g *Guard) ValidateContent(ctx context.Context, text string) (domain.ClassifierVerdict, error) {
	key := sha256.Sum256([]byte(text))
	if g.cache != nil {
		if verdict, ok := g.cache.Get(key); ok {
			metrics.ClassifierCacheHits.Inc()
			return verdict, nil
		}
	}

	verdict, err := g.breaker.Execute(func() (domain.ClassifierVerdict, error) {
		return g.inner.ValidateContent(ctx, text)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return domain.ClassifierVerdict{}, fmt.Errorf("%w: circuit open", domain.ErrClassifierUnavailable)
		}
		return domain.ClassifierVerdict{}, err
	}

	if g.cache != nil {
		g.cache.Add(key, verdict)
	}
	return verdict, nil
}
