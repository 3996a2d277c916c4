package domain

import (
	"fmt"
	"time"
)

// GuardRule is an optional per-tenant pre-screening rule: a CEL expression
// over lead attributes that, when it evaluates to true, marks the lead
// unqualified before any questionnaire runs.
type GuardRule struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	Name     string `json:"name"`

	// Expression is a CEL expression over name, email, phone, source and
	// metadata. Must evaluate to bool; true blocks the lead.
	Expression string `json:"expression"`

	// Reason is recorded on leads blocked by this guard.
	Reason string `json:"reason"`

	Active bool `json:"active"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Validate checks the guard shape. Expression compilation is the guard
// engine's responsibility.
func (g *GuardRule) Validate() error {
	if g.Name == "" {
		return fmt.Errorf("guard rule %s: name is required", g.ID)
	}
	if g.Expression == "" {
		return fmt.Errorf("guard rule %s: expression is required", g.ID)
	}
	return nil
}
