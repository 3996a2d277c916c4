// Package domain defines the core interfaces and types for Harrier.
package domain

import (
	"fmt"
	"time"
)

// ScoringRule is one weighted questionnaire question with an enumerated
// answer table. A rule belongs to exactly one tenant; rule sets are replaced
// wholesale and soft-deactivated rather than physically removed.
type ScoringRule struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	// Question presented to the lead during qualification.
	Question string `json:"question"`

	// Weight is the rule's percentage contribution: each rule contributes
	// points * weight / 100 to the total score.
	Weight int `json:"weight"`

	// Answers maps an answer label to its point value (0-100).
	Answers map[string]int `json:"answers"`

	// Position determines rule order within the tenant's rule set.
	Position int `json:"position"`

	// Whether the rule is active.
	Active bool `json:"active"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Validate checks the rule shape at configuration-load time so malformed
// weights or answer tables never reach the calculator.
func (r *ScoringRule) Validate() error {
	if r.Question == "" {
		return fmt.Errorf("scoring rule %s: question is required", r.ID)
	}
	if r.Weight <= 0 {
		return fmt.Errorf("scoring rule %s: weight must be positive, got %d", r.ID, r.Weight)
	}
	if len(r.Answers) == 0 {
		return fmt.Errorf("scoring rule %s: answer table must not be empty", r.ID)
	}
	for label, points := range r.Answers {
		if label == "" {
			return fmt.Errorf("scoring rule %s: answer label must not be empty", r.ID)
		}
		if points < 0 || points > 100 {
			return fmt.Errorf("scoring rule %s: answer %q points must be in [0,100], got %d", r.ID, label, points)
		}
	}
	return nil
}

// InvalidAnswerError reports an answer selection that does not exist in its
// rule's answer table. It aborts qualification for the lead.
type InvalidAnswerError struct {
	RuleID   string
	Question string
	Answer   string
}

func (e *InvalidAnswerError) Error() string {
	return fmt.Sprintf("invalid answer %q for question %q (rule %s)", e.Answer, e.Question, e.RuleID)
}

// Category is the qualification tier assigned to a lead.
type Category string

const (
	CategoryHot         Category = "hot"
	CategoryWarm        Category = "warm"
	CategoryCold        Category = "cold"
	CategoryUnqualified Category = "unqualified"
)

// Valid reports whether c is a known qualification category.
func (c Category) Valid() bool {
	switch c {
	case CategoryHot, CategoryWarm, CategoryCold, CategoryUnqualified:
		return true
	}
	return false
}
