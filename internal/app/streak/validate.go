package streak

import (
	"context"
	"errors"
	"fmt"

	"github.com/streakforge/streakd/internal/domain"
	"github.com/streakforge/streakd/internal/infra/metrics"
)

// validateAction applies the structural rules for one action and, when the
// type has AI validation enabled, defers to the content classifier.
// Structural rules fail closed: a missing metadata field violates its bound.
// A classifier that cannot be reached is a rejection, never a silent accept.
func (s *Service) validateAction(ctx context.Context, act domain.Action, cfg domain.ActivityTypeConfig) (bool, string) {
	ok, reason := validateStructural(act, cfg.Validators)
	if !ok {
		return false, reason
	}
	if !cfg.Validators.AIValidationEnabled {
		return true, ""
	}

	content, _ := act.Metadata["content"].(string)
	verdict, err := s.classify(ctx, content)
	if err != nil {
		metrics.ClassifierCalls.WithLabelValues("unavailable").Inc()
		return false, fmt.Sprintf("content classifier unavailable: %v", err)
	}
	if !verdict.IsGood {
		metrics.ClassifierCalls.WithLabelValues("rejected").Inc()
		return false, verdict.Reason
	}
	metrics.ClassifierCalls.WithLabelValues("accepted").Inc()
	return true, ""
}

func (s *Service) classify(ctx context.Context, content string) (domain.ClassifierVerdict, error) {
	if s.classifier == nil {
		return domain.ClassifierVerdict{}, domain.ErrClassifierUnavailable
	}
	verdict, err := s.classifier.ValidateContent(ctx, content)
	if err != nil {
		if !errors.Is(err, domain.ErrClassifierUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrClassifierUnavailable, err)
		}
		return domain.ClassifierVerdict{}, err
	}
	return verdict, nil
}

// validateStructural checks the per-type numeric thresholds.
// A nil threshold means the rule is not configured and always passes.
func validateStructural(act domain.Action, rules domain.ValidatorRules) (bool, string) {
	switch act.Type {
	case "quiz":
		if min := rules.MinScore; min != nil {
			score, ok := numField(act.Metadata, "score")
			if !ok || score < *min {
				return false, fmt.Sprintf("quiz score %s is below minimum %g", fieldRepr(act.Metadata, "score"), *min)
			}
		}
		if max := rules.MaxTimeTakenSec; max != nil {
			taken, ok := numField(act.Metadata, "time_taken_sec")
			if !ok || taken > *max {
				return false, fmt.Sprintf("quiz time %ss exceeds maximum %gs", fieldRepr(act.Metadata, "time_taken_sec"), *max)
			}
		}
	case "help_post":
		if min := rules.MinWordCount; min != nil {
			words, ok := numField(act.Metadata, "word_count")
			if !ok || words < *min {
				return false, fmt.Sprintf("help post word count %s is below minimum %g", fieldRepr(act.Metadata, "word_count"), *min)
			}
		}
	}
	return true, ""
}

// numField reads a numeric metadata field. JSON decoding yields float64,
// tests may supply int.
func numField(md map[string]any, key string) (float64, bool) {
	switch n := md[key].(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func fieldRepr(md map[string]any, key string) string {
	if v, ok := md[key]; ok {
		return fmt.Sprintf("%v", v)
	}
	return "N/A"
}
