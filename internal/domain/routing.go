package domain

import (
	"fmt"
	"time"
)

// RoutingMethod selects how a qualified lead is assigned to an agent.
type RoutingMethod string

const (
	// MethodSkillBased assigns the first agent in the eligible sequence
	// (most senior by list order).
	MethodSkillBased RoutingMethod = "skill_based"

	// MethodRoundRobin assigns a uniformly random eligible agent.
	MethodRoundRobin RoutingMethod = "round_robin"

	// MethodAutomation leaves the lead unassigned for automated follow-up.
	MethodAutomation RoutingMethod = "automation"
)

// Valid reports whether m is a known routing method.
func (m RoutingMethod) Valid() bool {
	switch m {
	case MethodSkillBased, MethodRoundRobin, MethodAutomation:
		return true
	}
	return false
}

// RoutingRule is the per-tenant, per-category assignment policy. One rule
// exists per (tenant, category) pair; absence means no routing is configured
// for that category, which is distinct from an explicit automation policy.
type RoutingRule struct {
	TenantID  string        `json:"tenantId"`
	Category  Category      `json:"category"`
	Method    RoutingMethod `json:"method"`
	Notify    bool          `json:"notify"`
	UpdatedAt time.Time     `json:"updatedAt,omitempty"`
}

// Validate checks the rule at configuration time.
func (r *RoutingRule) Validate() error {
	if !r.Category.Valid() {
		return fmt.Errorf("routing rule: unknown category %q", r.Category)
	}
	if !r.Method.Valid() {
		return fmt.Errorf("routing rule for %s: unknown method %q", r.Category, r.Method)
	}
	return nil
}

// Agent is a sales representative eligible to receive routed leads.
type Agent struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`
	Name     string `json:"name"`
	Email    string `json:"email,omitempty"`

	// Role gates eligibility: only active sales agents receive leads.
	Role   string `json:"role"`
	Active bool   `json:"active"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// RoleSalesAgent is the capability required for lead assignment.
const RoleSalesAgent = "sales_agent"
