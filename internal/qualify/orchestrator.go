// Package qualify implements the lead qualification pipeline: guard
// screening, questionnaire scoring, categorization, routing, and transcript
// capture.
package qualify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-crm/harrier/internal/domain"
	"github.com/opensource-crm/harrier/internal/routing"
	"github.com/opensource-crm/harrier/internal/scoring"
)

// EngineVersion is stamped into every qualification's metadata.
const EngineVersion = "harrier-1.0"

var tracer = otel.Tracer("harrier-qualify")

// RuleSource supplies a tenant's active scoring rules.
type RuleSource interface {
	ActiveScoringRules(ctx context.Context, tenantID string) ([]*domain.ScoringRule, error)
}

// RoutingSource supplies a tenant's routing policy for a category. A missing
// policy is (nil, nil), not an error.
type RoutingSource interface {
	RoutingRule(ctx context.Context, tenantID string, category domain.Category) (*domain.RoutingRule, error)
}

// AgentSource supplies the live agent pool in seniority order. Pools are
// fetched fresh per qualification and never cached.
type AgentSource interface {
	EligibleAgents(ctx context.Context, tenantID string) ([]*domain.Agent, error)
}

// AnswerProvider selects the lead's answer to one questionnaire rule. The
// default implementation draws at random; integrations supply a real
// conversation-backed provider.
type AnswerProvider interface {
	SelectAnswer(ctx context.Context, rule *domain.ScoringRule) (string, error)
}

// TranscriptSink records question/answer exchanges as they happen. A nil
// sink disables persistence; the transcript is still returned in-memory.
type TranscriptSink interface {
	AppendExchange(ctx context.Context, tenantID, leadID string, exchange *domain.Exchange) error
}

// Screener runs guard rules before scoring. A nil screener skips screening.
type Screener interface {
	Screen(ctx context.Context, lead *domain.Lead) (bool, string, error)
	GuardCount(tenantID string) int
}

// Orchestrator runs the full qualification pipeline for one lead at a time.
type Orchestrator struct {
	rules    RuleSource
	policies RoutingSource
	agents   AgentSource
	answers  AnswerProvider
	sink     TranscriptSink
	screener Screener
	router   *routing.Router
	logger   *slog.Logger
}

// NewOrchestrator wires a qualification pipeline. rules, policies, agents,
// answers, and router are required; sink and screener may be nil.
func NewOrchestrator(rules RuleSource, policies RoutingSource, agents AgentSource, answers AnswerProvider, router *routing.Router, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		rules:    rules,
		policies: policies,
		agents:   agents,
		answers:  answers,
		router:   router,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Option configures optional orchestrator collaborators.
type Option func(*Orchestrator)

// WithTranscriptSink persists exchanges as they are produced.
func WithTranscriptSink(sink TranscriptSink) Option {
	return func(o *Orchestrator) { o.sink = sink }
}

// WithScreener enables guard screening before scoring.
func WithScreener(s Screener) Option {
	return func(o *Orchestrator) { o.screener = s }
}

// WithLogger overrides the default logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = logger }
}

// QualifyAndRoute runs one lead through the pipeline and returns the
// qualification outcome. Any collaborator failure aborts the run; there are
// no retries.
//
// A lead blocked by a guard, or belonging to a tenant with no scoring rules,
// comes back unassigned with category unqualified (score 0) or the computed
// category respectively. Blocked leads skip scoring entirely.
func (o *Orchestrator) QualifyAndRoute(ctx context.Context, lead *domain.Lead) (*domain.Qualification, error) {
	if lead == nil {
		return nil, fmt.Errorf("lead is required")
	}
	if lead.TenantID == "" {
		return nil, fmt.Errorf("lead tenant id is required")
	}

	start := time.Now()
	ctx, span := tracer.Start(ctx, "qualify.lead",
		trace.WithAttributes(
			attribute.String("tenant.id", lead.TenantID),
			attribute.String("lead.id", lead.ID),
		))
	defer span.End()

	qual := &domain.Qualification{
		LeadID:    lead.ID,
		TenantID:  lead.TenantID,
		Timestamp: time.Now().UTC(),
	}
	qual.Metadata.EngineVersion = EngineVersion
	qual.Metadata.TraceID = span.SpanContext().TraceID().String()

	if o.screener != nil {
		qual.Metadata.GuardsChecked = o.screener.GuardCount(lead.TenantID)
		blocked, reason, err := o.screener.Screen(ctx, lead)
		if err != nil {
			return nil, fmt.Errorf("guard screening failed: %w", err)
		}
		if blocked {
			qual.Category = domain.CategoryUnqualified
			qual.GuardReason = reason
			qual.Metadata.TotalMs = time.Since(start).Milliseconds()
			o.logger.Info("lead blocked by guard",
				"tenant_id", lead.TenantID,
				"lead_id", lead.ID,
				"reason", reason)
			return qual, nil
		}
	}

	scoreStart := time.Now()
	rules, err := o.rules.ActiveScoringRules(ctx, lead.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load scoring rules: %w", err)
	}
	qual.Metadata.RulesEvaluated = len(rules)

	transcript, selections, err := o.interview(ctx, lead, rules)
	if err != nil {
		return nil, err
	}
	qual.Transcript = transcript

	score, err := scoring.ComputeScore(rules, selections)
	if err != nil {
		return nil, fmt.Errorf("scoring failed: %w", err)
	}
	qual.Score = score
	qual.Metadata.ScoreMs = time.Since(scoreStart).Milliseconds()

	if len(rules) == 0 {
		qual.Category = domain.CategoryUnqualified
		qual.Metadata.TotalMs = time.Since(start).Milliseconds()
		o.logger.Info("lead unqualified, tenant has no scoring rules",
			"tenant_id", lead.TenantID,
			"lead_id", lead.ID)
		return qual, nil
	}
	qual.Category = scoring.Categorize(score)

	routeStart := time.Now()
	policy, err := o.policies.RoutingRule(ctx, lead.TenantID, qual.Category)
	if err != nil {
		return nil, fmt.Errorf("failed to load routing rule: %w", err)
	}

	agents, err := o.agents.EligibleAgents(ctx, lead.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to load agent pool: %w", err)
	}

	qual.AssigneeID, qual.Notify = o.router.Route(qual.Category, policy, agents)
	qual.Metadata.RouteMs = time.Since(routeStart).Milliseconds()
	qual.Metadata.TotalMs = time.Since(start).Milliseconds()

	span.SetAttributes(
		attribute.Int("lead.score", qual.Score),
		attribute.String("lead.category", string(qual.Category)),
		attribute.Bool("lead.assigned", qual.Assigned()),
	)
	o.logger.Info("lead qualified",
		"tenant_id", lead.TenantID,
		"lead_id", lead.ID,
		"score", qual.Score,
		"category", qual.Category,
		"assignee_id", qual.AssigneeID,
		"notify", qual.Notify,
		"total_ms", qual.Metadata.TotalMs)

	return qual, nil
}

// interview walks the rule set in order, collecting one answer per rule and
// recording each exchange.
func (o *Orchestrator) interview(ctx context.Context, lead *domain.Lead, rules []*domain.ScoringRule) ([]domain.Exchange, []string, error) {
	if len(rules) == 0 {
		return nil, nil, nil
	}

	transcript := make([]domain.Exchange, 0, len(rules))
	selections := make([]string, 0, len(rules))

	for i, rule := range rules {
		answer, err := o.answers.SelectAnswer(ctx, rule)
		if err != nil {
			return nil, nil, fmt.Errorf("answer selection failed for rule %s: %w", rule.ID, err)
		}

		exchange := domain.Exchange{
			Seq:       i + 1,
			Question:  rule.Question,
			Answer:    answer,
			Timestamp: time.Now().UTC(),
		}
		transcript = append(transcript, exchange)
		selections = append(selections, answer)

		if o.sink != nil {
			if err := o.sink.AppendExchange(ctx, lead.TenantID, lead.ID, &exchange); err != nil {
				return nil, nil, fmt.Errorf("failed to persist exchange: %w", err)
			}
		}
	}

	return transcript, selections, nil
}
