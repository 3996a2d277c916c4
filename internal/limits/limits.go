// Package limits enforces per-plan lead allowances.
//
// Plans cap the number of leads a tenant may hold: starter 500, growth
// 2000, pro unlimited. The authoritative count comes from the repository; a
// cache counter tracks intake velocity for observability without being
// consulted for enforcement.
package limits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/opensource-crm/harrier/internal/domain"
)

// ErrLeadLimitReached is returned when a tenant is at its plan's lead cap.
var ErrLeadLimitReached = errors.New("lead limit reached for plan")

// TenantGetter loads a tenant record.
type TenantGetter interface {
	GetTenant(ctx context.Context, tenantID string) (*domain.Tenant, error)
}

// LeadCounter counts a tenant's stored leads.
type LeadCounter interface {
	CountLeads(ctx context.Context, tenantID string) (int64, error)
}

// Service checks plan allowances before lead intake.
type Service struct {
	tenants TenantGetter
	leads   LeadCounter
	cache   domain.Cache
	logger  *slog.Logger
}

// NewService creates a limit checker. cache may be nil.
func NewService(tenants TenantGetter, leads LeadCounter, cache domain.Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{tenants: tenants, leads: leads, cache: cache, logger: logger}
}

// CheckAllowance returns ErrLeadLimitReached when the tenant has no room
// for another lead. A zero limit means unlimited.
func (s *Service) CheckAllowance(ctx context.Context, tenantID string) error {
	tenant, err := s.tenants.GetTenant(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to load tenant: %w", err)
	}

	limit := tenant.LeadLimit
	if limit <= 0 {
		limit = domain.PlanLeadLimit(tenant.Plan)
	}
	if limit <= 0 {
		return nil
	}

	count, err := s.leads.CountLeads(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to count leads: %w", err)
	}
	if count >= int64(limit) {
		s.logger.Warn("lead limit reached",
			"tenant_id", tenantID,
			"plan", tenant.Plan,
			"limit", limit,
			"count", count)
		return fmt.Errorf("%w %s (%d/%d)", ErrLeadLimitReached, tenant.Plan, count, limit)
	}

	return nil
}

// RecordLead bumps the tenant's daily intake counter. Counter failures are
// logged, never surfaced.
func (s *Service) RecordLead(ctx context.Context, tenantID string) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.IncrementCounter(ctx, tenantID, "leads:intake", 24*time.Hour); err != nil {
		s.logger.Warn("failed to record lead intake", "tenant_id", tenantID, "error", err)
	}
}
