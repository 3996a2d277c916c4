package domain

import (
	"time"

	"github.com/google/uuid"
)

// Tenant is an isolated customer account owning its own rules, agents and
// leads.
type Tenant struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	// Plan determines the lead limit.
	Plan string `json:"plan"`

	// LeadLimit is the maximum number of leads the tenant may hold.
	// Zero or negative means unlimited.
	LeadLimit int `json:"leadLimit"`

	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Subscription plans.
const (
	PlanStarter = "starter"
	PlanGrowth  = "growth"
	PlanPro     = "pro"
)

// PlanLeadLimit returns the default lead limit for a plan. Unknown plans get
// the starter limit.
func PlanLeadLimit(plan string) int {
	switch plan {
	case PlanGrowth:
		return 2000
	case PlanPro:
		return 0 // unlimited
	default:
		return 500
	}
}

// DefaultScoringRules returns the questionnaire a freshly onboarded tenant
// starts with. Tenant admins replace it wholesale via the API.
func DefaultScoringRules(tenantID string) []*ScoringRule {
	return []*ScoringRule{
		{
			ID:       uuid.NewString(),
			TenantID: tenantID,
			Question: "What is your budget range?",
			Weight:   25,
			Answers:  map[string]int{"Under $5k": 20, "$5k-$20k": 60, "Above $20k": 100},
			Position: 1,
			Active:   true,
		},
		{
			ID:       uuid.NewString(),
			TenantID: tenantID,
			Question: "What is your timeline?",
			Weight:   25,
			Answers:  map[string]int{"Immediately": 100, "Within 1 month": 70, "3+ months": 30},
			Position: 2,
			Active:   true,
		},
		{
			ID:       uuid.NewString(),
			TenantID: tenantID,
			Question: "Are you the decision maker?",
			Weight:   30,
			Answers:  map[string]int{"Yes": 100, "Influence": 60, "Just researching": 20},
			Position: 3,
			Active:   true,
		},
		{
			ID:       uuid.NewString(),
			TenantID: tenantID,
			Question: "How urgent is this requirement?",
			Weight:   20,
			Answers:  map[string]int{"Critical": 100, "Important": 60, "Nice to have": 30},
			Position: 4,
			Active:   true,
		},
	}
}

// DefaultRoutingRules returns the assignment policy a freshly onboarded
// tenant starts with: hot leads to senior agents with notification, warm
// leads rotated, cold leads left to automation.
func DefaultRoutingRules(tenantID string) []*RoutingRule {
	return []*RoutingRule{
		{TenantID: tenantID, Category: CategoryHot, Method: MethodSkillBased, Notify: true},
		{TenantID: tenantID, Category: CategoryWarm, Method: MethodRoundRobin, Notify: false},
		{TenantID: tenantID, Category: CategoryCold, Method: MethodAutomation, Notify: false},
	}
}
