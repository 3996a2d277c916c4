// Package guard provides the CEL-Go based pre-qualification screening engine.
//
// Guard rules are per-tenant boolean CEL expressions evaluated over a lead's
// attributes before scoring. A rule that evaluates true blocks the lead from
// qualification and records the rule's reason.
package guard

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"

	"github.com/opensource-crm/harrier/internal/domain"
)

// Engine compiles and evaluates guard rules, keyed by tenant.
type Engine struct {
	mu       sync.RWMutex
	env      *cel.Env
	compiled map[string][]*compiledGuard // tenantID -> guards
	logger   *slog.Logger
}

type compiledGuard struct {
	rule    *domain.GuardRule
	program cel.Program
}

// NewEngine creates a guard evaluation engine.
func NewEngine(logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// Lead attributes exposed to guard expressions.
	env, err := cel.NewEnv(
		cel.Variable("name", cel.StringType),
		cel.Variable("email", cel.StringType),
		cel.Variable("phone", cel.StringType),
		cel.Variable("source", cel.StringType),
		cel.Variable("metadata", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		env:      env,
		compiled: make(map[string][]*compiledGuard),
		logger:   logger,
	}, nil
}

// ValidateRule compiles a guard rule without mutating loaded state.
func (e *Engine) ValidateRule(rule *domain.GuardRule) error {
	if rule == nil {
		return fmt.Errorf("guard rule is required")
	}
	_, err := e.compile(rule)
	return err
}

// LoadTenant replaces the loaded guard set for one tenant. Inactive rules
// are skipped. Replacement is all-or-nothing: a compile failure leaves the
// previously loaded set untouched.
func (e *Engine) LoadTenant(tenantID string, rules []*domain.GuardRule) error {
	guards := make([]*compiledGuard, 0, len(rules))
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		g, err := e.compile(rule)
		if err != nil {
			return err
		}
		guards = append(guards, g)
	}

	e.mu.Lock()
	e.compiled[tenantID] = guards
	e.mu.Unlock()

	return nil
}

// Screen evaluates the tenant's guards against a lead. It returns the first
// blocking rule's reason. Evaluation errors are logged and the rule is
// skipped, so a broken expression never blocks qualification.
func (e *Engine) Screen(ctx context.Context, lead *domain.Lead) (bool, string, error) {
	if lead == nil {
		return false, "", fmt.Errorf("lead is required")
	}

	e.mu.RLock()
	guards := e.compiled[lead.TenantID]
	e.mu.RUnlock()

	if len(guards) == 0 {
		return false, "", nil
	}

	metadata := lead.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	activation := map[string]any{
		"name":     lead.Name,
		"email":    lead.Email,
		"phone":    lead.Phone,
		"source":   lead.Source,
		"metadata": metadata,
	}

	for _, g := range guards {
		out, _, err := g.program.Eval(activation)
		if err != nil {
			e.logger.Warn("guard evaluation failed",
				"tenant_id", lead.TenantID,
				"guard_id", g.rule.ID,
				"error", err)
			continue
		}
		if blocked, ok := out.(types.Bool); ok && bool(blocked) {
			return true, g.rule.Reason, nil
		}
	}

	return false, "", nil
}

// GuardCount returns the number of loaded guards for a tenant.
func (e *Engine) GuardCount(tenantID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiled[tenantID])
}

// Close drops all loaded guards.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiled = make(map[string][]*compiledGuard)
	return nil
}

func (e *Engine) compile(rule *domain.GuardRule) (*compiledGuard, error) {
	ast, issues := e.env.Compile(rule.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile guard %s: %w", rule.ID, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("guard %s: expression must return bool, got %s", rule.ID, ast.OutputType())
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for guard %s: %w", rule.ID, err)
	}

	return &compiledGuard{rule: rule, program: program}, nil
}
