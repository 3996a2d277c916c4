package domain

import (
	"time"
)

// Lead is a prospective customer record being qualified and routed.
type Lead struct {
	ID       string `json:"id"`
	TenantID string `json:"tenantId"`

	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
	Source string `json:"source,omitempty"`

	// Qualification outcome. Owned by the lead's lifecycle: written once by
	// the qualification pipeline, never persisted independently.
	Score           int      `json:"score"`
	Category        Category `json:"category"`
	Status          string   `json:"status"`
	AssignedAgentID string   `json:"assignedAgentId,omitempty"`

	Metadata map[string]any `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Lead lifecycle statuses.
const (
	LeadStatusNew       = "new"
	LeadStatusQualified = "qualified"
)

// LeadFilter narrows lead listings. Zero values mean "no constraint".
type LeadFilter struct {
	Category Category
	Status   string
	Assigned *bool
	Search   string
}

// Exchange is one question/answer pair from a lead's qualification
// transcript, in rule order. Append-only, owned by the lead.
type Exchange struct {
	Seq       int       `json:"seq"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}
