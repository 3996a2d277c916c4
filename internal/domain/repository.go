package domain

import (
	"context"
	"time"
)

// Repository defines the interface for data persistence.
// All methods require tenantID for strict multi-tenancy isolation.
type Repository interface {
	// Tenant operations
	SaveTenant(ctx context.Context, tenant *Tenant) error
	GetTenant(ctx context.Context, tenantID string) (*Tenant, error)
	ListTenants(ctx context.Context) ([]*Tenant, error)

	// Lead operations
	SaveLead(ctx context.Context, tenantID string, lead *Lead) error
	GetLead(ctx context.Context, tenantID string, leadID string) (*Lead, error)
	ListLeads(ctx context.Context, tenantID string, filter LeadFilter) ([]*Lead, error)
	CountLeads(ctx context.Context, tenantID string) (int64, error)

	// UpdateLeadQualification writes the qualification outcome onto the lead
	// row. assigneeID may be empty for unassigned leads.
	UpdateLeadQualification(ctx context.Context, tenantID string, leadID string, score int, category Category, assigneeID string) error

	// Scoring rule operations. Rule sets are replaced wholesale: the previous
	// set is soft-deactivated, never physically removed from read paths.
	ReplaceScoringRules(ctx context.Context, tenantID string, rules []*ScoringRule) error
	ActiveScoringRules(ctx context.Context, tenantID string) ([]*ScoringRule, error)

	// Guard rule operations
	ReplaceGuardRules(ctx context.Context, tenantID string, rules []*GuardRule) error
	ActiveGuardRules(ctx context.Context, tenantID string) ([]*GuardRule, error)

	// Routing rule operations. RoutingRule returns (nil, nil) when no rule is
	// configured for the category: a valid "leave unassigned" state.
	SaveRoutingRule(ctx context.Context, tenantID string, rule *RoutingRule) error
	RoutingRule(ctx context.Context, tenantID string, category Category) (*RoutingRule, error)
	ListRoutingRules(ctx context.Context, tenantID string) ([]*RoutingRule, error)

	// Agent operations. EligibleAgents returns active sales agents in
	// seniority order (list order is the assignment order for skill-based
	// routing). Recomputed on every call; never cached.
	SaveAgent(ctx context.Context, tenantID string, agent *Agent) error
	EligibleAgents(ctx context.Context, tenantID string) ([]*Agent, error)

	// Transcript operations. Exchanges are append-only; sequence numbers are
	// assigned by the store and any caller-supplied Seq is ignored.
	AppendExchange(ctx context.Context, tenantID string, leadID string, exchange *Exchange) error
	GetTranscript(ctx context.Context, tenantID string, leadID string) ([]Exchange, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `json:"driver"`

	// SQLite specific
	SQLitePath string `json:"sqlitePath"`

	// PostgreSQL specific
	PostgresHost     string `json:"postgresHost"`
	PostgresPort     int    `json:"postgresPort"`
	PostgresUser     string `json:"postgresUser"`
	PostgresPassword string `json:"postgresPassword"`
	PostgresDB       string `json:"postgresDb"`
	PostgresSSLMode  string `json:"postgresSslMode"`

	// Connection pool settings
	MaxOpenConns    int           `json:"maxOpenConns"`
	MaxIdleConns    int           `json:"maxIdleConns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime"`
}
