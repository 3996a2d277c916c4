package qualify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/opensource-crm/harrier/internal/domain"
)

const ruleSetCacheKey = "scoring_rules:active"

// CachedRuleSource wraps a RuleSource with a per-tenant snapshot cache. The
// snapshot is invalidated whenever a tenant's rule set is replaced, so rule
// edits take one Invalidate call to become visible.
//
// Cache failures degrade to the underlying source; they never fail a
// qualification.
type CachedRuleSource struct {
	src    RuleSource
	cache  domain.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedRuleSource wraps src. A zero ttl defaults to one minute.
func NewCachedRuleSource(src RuleSource, cache domain.Cache, ttl time.Duration, logger *slog.Logger) *CachedRuleSource {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedRuleSource{src: src, cache: cache, ttl: ttl, logger: logger}
}

// ActiveScoringRules returns the cached snapshot when present, otherwise
// reads through and caches the result.
func (c *CachedRuleSource) ActiveScoringRules(ctx context.Context, tenantID string) ([]*domain.ScoringRule, error) {
	if data, err := c.cache.Get(ctx, tenantID, ruleSetCacheKey); err == nil && data != nil {
		var rules []*domain.ScoringRule
		if err := json.Unmarshal(data, &rules); err == nil {
			return rules, nil
		}
		// Corrupt snapshot, drop it and read through.
		_ = c.cache.Delete(ctx, tenantID, ruleSetCacheKey)
	}

	rules, err := c.src.ActiveScoringRules(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(rules); err == nil {
		if err := c.cache.Set(ctx, tenantID, ruleSetCacheKey, data, c.ttl); err != nil {
			c.logger.Warn("failed to cache rule set snapshot",
				"tenant_id", tenantID,
				"error", err)
		}
	}

	return rules, nil
}

// Invalidate drops a tenant's cached snapshot. Call after replacing the
// tenant's scoring rules.
func (c *CachedRuleSource) Invalidate(ctx context.Context, tenantID string) {
	if err := c.cache.Delete(ctx, tenantID, ruleSetCacheKey); err != nil {
		c.logger.Warn("failed to invalidate rule set snapshot",
			"tenant_id", tenantID,
			"error", err)
	}
}
