// Package scoring computes weighted questionnaire scores and maps them to
// qualification categories.
package scoring

import (
	"fmt"
	"math"

	"github.com/opensource-crm/harrier/internal/domain"
)

// Category thresholds (inclusive lower bounds).
const (
	hotThreshold  = 80
	warmThreshold = 40
)

// ComputeScore computes the total weighted score for a rule set and one
// answer selection per rule. selections[i] is the chosen answer label for
// rules[i].
//
// Each rule contributes points * weight / 100; contributions accumulate in
// float64 and the total is rounded half-up exactly once, after summation.
// Rounding per rule and re-summing drifts and must not be reintroduced.
//
// An empty rule set yields 0 with no error (unconfigured tenant). A
// selection missing from its rule's answer table yields a
// *domain.InvalidAnswerError and no partial score.
func ComputeScore(rules []*domain.ScoringRule, selections []string) (int, error) {
	if len(rules) == 0 {
		return 0, nil
	}
	if len(selections) != len(rules) {
		return 0, fmt.Errorf("expected %d answer selections, got %d", len(rules), len(selections))
	}

	var total float64
	for i, rule := range rules {
		points, ok := rule.Answers[selections[i]]
		if !ok {
			return 0, &domain.InvalidAnswerError{
				RuleID:   rule.ID,
				Question: rule.Question,
				Answer:   selections[i],
			}
		}
		total += float64(points) * float64(rule.Weight) / 100.0
	}

	return roundHalfUp(total), nil
}

// Categorize maps a score to its qualification tier. Lower bounds are
// inclusive: 80 is hot, 40 is warm. Categorize never returns unqualified;
// the orchestrator substitutes that for the zero-rule case.
func Categorize(score int) domain.Category {
	switch {
	case score >= hotThreshold:
		return domain.CategoryHot
	case score >= warmThreshold:
		return domain.CategoryWarm
	default:
		return domain.CategoryCold
	}
}

// ValidateRuleSet validates every rule in a replacement rule set before it
// is persisted, so malformed shapes never reach the calculator.
func ValidateRuleSet(rules []*domain.ScoringRule) error {
	for _, rule := range rules {
		if err := rule.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
