package domain

import (
	"time"
)

// Qualification is the complete outcome of qualifying and routing one lead.
type Qualification struct {
	LeadID   string `json:"leadId"`
	TenantID string `json:"tenantId"`

	Score    int      `json:"score"`
	Category Category `json:"category"`

	// AssigneeID is empty when no agent was assigned (automation method,
	// absent policy, or empty agent pool).
	AssigneeID string `json:"assigneeId,omitempty"`

	// Notify is the matched routing rule's notification flag; false when no
	// rule matched or no agent was assigned.
	Notify bool `json:"notify"`

	// GuardReason is set when a qualification guard blocked the lead.
	GuardReason string `json:"guardReason,omitempty"`

	// Transcript holds one exchange per rule evaluated, in rule order.
	Transcript []Exchange `json:"transcript"`

	Timestamp time.Time `json:"timestamp"`

	Metadata QualificationMetadata `json:"metadata"`
}

// QualificationMetadata contains processing information.
type QualificationMetadata struct {
	TraceID        string `json:"traceId"`
	RulesEvaluated int    `json:"rulesEvaluated"`
	GuardsChecked  int    `json:"guardsChecked"`
	ScoreMs        int64  `json:"scoreMs"`
	RouteMs        int64  `json:"routeMs"`
	TotalMs        int64  `json:"totalMs"`
	EngineVersion  string `json:"engineVersion"`
}

// Assigned reports whether the qualification selected an agent.
func (q *Qualification) Assigned() bool {
	return q.AssigneeID != ""
}
