// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-crm/harrier/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTenant stores a tenant, replacing any existing record.
func (r *SQLRepository) SaveTenant(ctx context.Context, tenant *domain.Tenant) error {
	if tenant == nil || tenant.ID == "" {
		return fmt.Errorf("%w: tenant id is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO tenants (id, name, plan, lead_limit, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			plan = excluded.plan,
			lead_limit = excluded.lead_limit
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tenant.ID, tenant.Name, tenant.Plan, tenant.LeadLimit, tenant.CreatedAt,
	)
	return err
}

// GetTenant retrieves a tenant by ID.
func (r *SQLRepository) GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `SELECT id, name, plan, lead_limit, created_at FROM tenants WHERE id = ?`

	var t domain.Tenant
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID).Scan(
		&t.ID, &t.Name, &t.Plan, &t.LeadLimit, &t.CreatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return &t, nil
}

// ListTenants retrieves all tenants.
func (r *SQLRepository) ListTenants(ctx context.Context) ([]*domain.Tenant, error) {
	query := `SELECT id, name, plan, lead_limit, created_at FROM tenants ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []*domain.Tenant
	for rows.Next() {
		var t domain.Tenant
		if err := rows.Scan(&t.ID, &t.Name, &t.Plan, &t.LeadLimit, &t.CreatedAt); err != nil {
			return nil, err
		}
		tenants = append(tenants, &t)
	}

	return tenants, rows.Err()
}

// SaveLead stores a lead with tenant isolation.
func (r *SQLRepository) SaveLead(ctx context.Context, tenantID string, lead *domain.Lead) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	metadata, _ := json.Marshal(lead.Metadata)

	query := `
		INSERT INTO leads (
			id, tenant_id, name, email, phone, source,
			score, category, status, assigned_agent_id,
			metadata, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		lead.ID, tenantID, lead.Name, lead.Email, lead.Phone, lead.Source,
		lead.Score, string(lead.Category), lead.Status, lead.AssignedAgentID,
		string(metadata), lead.CreatedAt, lead.UpdatedAt,
	)
	return err
}

// GetLead retrieves a lead by ID with tenant isolation.
func (r *SQLRepository) GetLead(ctx context.Context, tenantID string, leadID string) (*domain.Lead, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, email, phone, source,
			   score, category, status, assigned_agent_id,
			   metadata, created_at, updated_at
		FROM leads
		WHERE tenant_id = ? AND id = ?
	`

	lead, err := scanLead(r.db.QueryRowContext(ctx, r.rebind(query), tenantID, leadID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return lead, nil
}

// ListLeads retrieves leads matching the filter with tenant isolation.
func (r *SQLRepository) ListLeads(ctx context.Context, tenantID string, filter domain.LeadFilter) ([]*domain.Lead, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, email, phone, source,
			   score, category, status, assigned_agent_id,
			   metadata, created_at, updated_at
		FROM leads
		WHERE tenant_id = ?
	`
	args := []any{tenantID}

	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, string(filter.Category))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.Assigned != nil {
		if *filter.Assigned {
			query += ` AND assigned_agent_id != ''`
		} else {
			query += ` AND assigned_agent_id = ''`
		}
	}
	if filter.Search != "" {
		query += ` AND (name LIKE ? OR email LIKE ?)`
		pattern := "%" + filter.Search + "%"
		args = append(args, pattern, pattern)
	}

	query += ` ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []*domain.Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, lead)
	}

	return leads, rows.Err()
}

// CountLeads counts all leads for a tenant.
func (r *SQLRepository) CountLeads(ctx context.Context, tenantID string) (int64, error) {
	if tenantID == "" {
		return 0, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	var count int64
	query := `SELECT COUNT(*) FROM leads WHERE tenant_id = ?`
	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID).Scan(&count)
	return count, err
}

// UpdateLeadQualification writes a qualification outcome onto the lead row.
func (r *SQLRepository) UpdateLeadQualification(ctx context.Context, tenantID string, leadID string, score int, category domain.Category, assigneeID string) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		UPDATE leads
		SET score = ?, category = ?, status = ?, assigned_agent_id = ?, updated_at = ?
		WHERE tenant_id = ? AND id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		score, string(category), domain.LeadStatusQualified, assigneeID,
		time.Now().UTC(), tenantID, leadID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// ReplaceScoringRules swaps a tenant's scoring rule set wholesale: previous
// rules are deactivated and the new set inserted, in one transaction.
func (r *SQLRepository) ReplaceScoringRules(ctx context.Context, tenantID string, rules []*domain.ScoringRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.rebind(`UPDATE scoring_rules SET active = 0 WHERE tenant_id = ?`), tenantID); err != nil {
		return err
	}

	insert := `
		INSERT INTO scoring_rules (id, tenant_id, question, weight, answers, position, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			question = excluded.question,
			weight = excluded.weight,
			answers = excluded.answers,
			position = excluded.position,
			active = 1
	`

	now := time.Now().UTC()
	for i, rule := range rules {
		answers, _ := json.Marshal(rule.Answers)
		createdAt := rule.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		position := rule.Position
		if position == 0 {
			position = i + 1
		}
		if _, err := tx.ExecContext(ctx, r.rebind(insert),
			rule.ID, tenantID, rule.Question, rule.Weight, string(answers), position, createdAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ActiveScoringRules retrieves a tenant's active rules in questionnaire order.
func (r *SQLRepository) ActiveScoringRules(ctx context.Context, tenantID string) ([]*domain.ScoringRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, question, weight, answers, position, active, created_at
		FROM scoring_rules
		WHERE tenant_id = ? AND active = 1
		ORDER BY position
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.ScoringRule
	for rows.Next() {
		var rule domain.ScoringRule
		var answers string
		var active int

		if err := rows.Scan(
			&rule.ID, &rule.TenantID, &rule.Question, &rule.Weight,
			&answers, &rule.Position, &active, &rule.CreatedAt,
		); err != nil {
			return nil, err
		}

		rule.Active = active == 1
		if err := json.Unmarshal([]byte(answers), &rule.Answers); err != nil {
			return nil, fmt.Errorf("failed to parse answers for rule %s: %w", rule.ID, err)
		}
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// ReplaceGuardRules swaps a tenant's guard rule set wholesale.
func (r *SQLRepository) ReplaceGuardRules(ctx context.Context, tenantID string, rules []*domain.GuardRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.rebind(`UPDATE guard_rules SET active = 0 WHERE tenant_id = ?`), tenantID); err != nil {
		return err
	}

	insert := `
		INSERT INTO guard_rules (id, tenant_id, name, expression, reason, active, created_at)
		VALUES (?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			expression = excluded.expression,
			reason = excluded.reason,
			active = 1
	`

	now := time.Now().UTC()
	for _, rule := range rules {
		createdAt := rule.CreatedAt
		if createdAt.IsZero() {
			createdAt = now
		}
		if _, err := tx.ExecContext(ctx, r.rebind(insert),
			rule.ID, tenantID, rule.Name, rule.Expression, rule.Reason, createdAt,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// ActiveGuardRules retrieves a tenant's active guard rules.
func (r *SQLRepository) ActiveGuardRules(ctx context.Context, tenantID string) ([]*domain.GuardRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, expression, reason, active, created_at
		FROM guard_rules
		WHERE tenant_id = ? AND active = 1
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.GuardRule
	for rows.Next() {
		var rule domain.GuardRule
		var active int

		if err := rows.Scan(
			&rule.ID, &rule.TenantID, &rule.Name, &rule.Expression,
			&rule.Reason, &active, &rule.CreatedAt,
		); err != nil {
			return nil, err
		}

		rule.Active = active == 1
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// SaveRoutingRule upserts the routing policy for one category.
func (r *SQLRepository) SaveRoutingRule(ctx context.Context, tenantID string, rule *domain.RoutingRule) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	notify := 0
	if rule.Notify {
		notify = 1
	}

	query := `
		INSERT INTO routing_rules (tenant_id, category, method, notify, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, category) DO UPDATE SET
			method = excluded.method,
			notify = excluded.notify,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tenantID, string(rule.Category), string(rule.Method), notify, time.Now().UTC(),
	)
	return err
}

// RoutingRule retrieves the policy for a category. Returns (nil, nil) when
// no policy is configured: the lead stays unassigned.
func (r *SQLRepository) RoutingRule(ctx context.Context, tenantID string, category domain.Category) (*domain.RoutingRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT tenant_id, category, method, notify, updated_at
		FROM routing_rules
		WHERE tenant_id = ? AND category = ?
	`

	var rule domain.RoutingRule
	var notify int

	err := r.db.QueryRowContext(ctx, r.rebind(query), tenantID, string(category)).Scan(
		&rule.TenantID, &rule.Category, &rule.Method, &notify, &rule.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rule.Notify = notify == 1
	return &rule, nil
}

// ListRoutingRules retrieves all routing policies for a tenant.
func (r *SQLRepository) ListRoutingRules(ctx context.Context, tenantID string) ([]*domain.RoutingRule, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT tenant_id, category, method, notify, updated_at
		FROM routing_rules
		WHERE tenant_id = ?
		ORDER BY category
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*domain.RoutingRule
	for rows.Next() {
		var rule domain.RoutingRule
		var notify int

		if err := rows.Scan(&rule.TenantID, &rule.Category, &rule.Method, &notify, &rule.UpdatedAt); err != nil {
			return nil, err
		}

		rule.Notify = notify == 1
		rules = append(rules, &rule)
	}

	return rules, rows.Err()
}

// SaveAgent stores an agent with tenant isolation.
func (r *SQLRepository) SaveAgent(ctx context.Context, tenantID string, agent *domain.Agent) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	active := 0
	if agent.Active {
		active = 1
	}

	query := `
		INSERT INTO agents (id, tenant_id, name, email, role, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id, tenant_id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			role = excluded.role,
			active = excluded.active
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		agent.ID, tenantID, agent.Name, agent.Email, agent.Role, active, agent.CreatedAt,
	)
	return err
}

// EligibleAgents retrieves active sales agents in seniority order (earliest
// hire first). Always reads the live table; pools are never cached.
func (r *SQLRepository) EligibleAgents(ctx context.Context, tenantID string) ([]*domain.Agent, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT id, tenant_id, name, email, role, active, created_at
		FROM agents
		WHERE tenant_id = ? AND active = 1 AND role = ?
		ORDER BY created_at, id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, domain.RoleSalesAgent)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var agents []*domain.Agent
	for rows.Next() {
		var agent domain.Agent
		var active int

		if err := rows.Scan(
			&agent.ID, &agent.TenantID, &agent.Name, &agent.Email,
			&agent.Role, &active, &agent.CreatedAt,
		); err != nil {
			return nil, err
		}

		agent.Active = active == 1
		agents = append(agents, &agent)
	}

	return agents, rows.Err()
}

// AppendExchange appends one question/answer pair to a lead's transcript.
// The sequence number continues from the stored maximum.
func (r *SQLRepository) AppendExchange(ctx context.Context, tenantID string, leadID string, exchange *domain.Exchange) error {
	if tenantID == "" {
		return fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		INSERT INTO transcripts (tenant_id, lead_id, seq, question, answer, created_at)
		SELECT ?, ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ?
		FROM transcripts
		WHERE tenant_id = ? AND lead_id = ?
	`

	timestamp := exchange.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tenantID, leadID, exchange.Question, exchange.Answer, timestamp,
		tenantID, leadID,
	)
	return err
}

// GetTranscript retrieves a lead's transcript in exchange order.
func (r *SQLRepository) GetTranscript(ctx context.Context, tenantID string, leadID string) ([]domain.Exchange, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenantID is required", ErrInvalidInput)
	}

	query := `
		SELECT seq, question, answer, created_at
		FROM transcripts
		WHERE tenant_id = ? AND lead_id = ?
		ORDER BY seq
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), tenantID, leadID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transcript []domain.Exchange
	for rows.Next() {
		var e domain.Exchange
		if err := rows.Scan(&e.Seq, &e.Question, &e.Answer, &e.Timestamp); err != nil {
			return nil, err
		}
		transcript = append(transcript, e)
	}

	return transcript, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLead(row scanner) (*domain.Lead, error) {
	var lead domain.Lead
	var category, metadata string

	if err := row.Scan(
		&lead.ID, &lead.TenantID, &lead.Name, &lead.Email, &lead.Phone, &lead.Source,
		&lead.Score, &category, &lead.Status, &lead.AssignedAgentID,
		&metadata, &lead.CreatedAt, &lead.UpdatedAt,
	); err != nil {
		return nil, err
	}

	lead.Category = domain.Category(category)
	if metadata != "" {
		json.Unmarshal([]byte(metadata), &lead.Metadata)
	}

	return &lead, nil
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = append(result, fmt.Sprintf("%d", n)...)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}
