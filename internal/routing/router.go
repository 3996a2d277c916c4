// Package routing assigns qualified leads to agents according to the
// tenant's per-category routing policy.
package routing

import (
	"math/rand"
	"sync"
	"time"

	"github.com/opensource-crm/harrier/internal/domain"
)

// Router resolves a routing decision for a categorized lead. It is safe for
// concurrent use.
type Router struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewRouter creates a router seeded from the clock.
func NewRouter() *Router {
	return NewRouterWithSource(rand.NewSource(time.Now().UnixNano()))
}

// NewRouterWithSource creates a router with a caller-supplied random source,
// for deterministic tests.
func NewRouterWithSource(src rand.Source) *Router {
	return &Router{rng: rand.New(src)}
}

// Route picks an assignee for a lead. The returned bool reports whether the
// policy's notify flag is set; it is false whenever no assignment is made.
//
// Precedence, checked against the freshly fetched agent pool:
//   - hot leads and skill_based policies take the first agent in seniority
//     order
//   - round_robin policies pick uniformly at random
//   - automation policies, a missing policy, or an empty pool assign no one
//
// A missing policy never assigns, regardless of category.
func (r *Router) Route(category domain.Category, policy *domain.RoutingRule, agents []*domain.Agent) (string, bool) {
	if len(agents) == 0 || policy == nil {
		return "", false
	}

	if category == domain.CategoryHot || policy.Method == domain.MethodSkillBased {
		return agents[0].ID, policy.Notify
	}

	switch policy.Method {
	case domain.MethodRoundRobin:
		r.mu.Lock()
		idx := r.rng.Intn(len(agents))
		r.mu.Unlock()
		return agents[idx].ID, policy.Notify
	default:
		// automation and anything unrecognized stays unassigned
		return "", false
	}
}
