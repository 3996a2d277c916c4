package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/opensource-crm/harrier/internal/domain"
	"github.com/opensource-crm/harrier/internal/guard"
	"github.com/opensource-crm/harrier/internal/limits"
	"github.com/opensource-crm/harrier/internal/metrics"
	"github.com/opensource-crm/harrier/internal/qualify"
	"github.com/opensource-crm/harrier/internal/repository"
	"github.com/opensource-crm/harrier/internal/scoring"
	"github.com/opensource-crm/harrier/internal/worker"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo         domain.Repository
	cache        domain.Cache
	bus          domain.EventBus
	orchestrator *qualify.Orchestrator
	guards       *guard.Engine
	limits       *limits.Service
	ruleSource   *qualify.CachedRuleSource
	metrics      *metrics.Metrics
	validate     *validator.Validate
	version      string
	async        bool
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, orchestrator *qualify.Orchestrator, guards *guard.Engine, limitSvc *limits.Service, ruleSource *qualify.CachedRuleSource, m *metrics.Metrics, version string, async bool) *Handler {
	return &Handler{
		repo:         repo,
		cache:        cache,
		bus:          bus,
		orchestrator: orchestrator,
		guards:       guards,
		limits:       limitSvc,
		ruleSource:   ruleSource,
		metrics:      m,
		validate:     validator.New(),
		version:      version,
		async:        async,
	}
}

// ============================================================================
// TENANT HANDLERS
// ============================================================================

// CreateTenantRequest is the request body for POST /tenants.
type CreateTenantRequest struct {
	ID        string `json:"id"`
	Name      string `json:"name" validate:"required"`
	Plan      string `json:"plan" validate:"omitempty,oneof=starter growth pro"`
	LeadLimit int    `json:"leadLimit" validate:"gte=0"`
}

// CreateTenant onboards a tenant and seeds its default scoring and routing
// rules so qualification works out of the box.
func (h *Handler) CreateTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req CreateTenantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Plan == "" {
		req.Plan = domain.PlanStarter
	}

	tenant := &domain.Tenant{
		ID:        req.ID,
		Name:      req.Name,
		Plan:      req.Plan,
		LeadLimit: req.LeadLimit,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.repo.SaveTenant(ctx, tenant); err != nil {
		slog.Error("failed to save tenant", "id", tenant.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save tenant",
		})
		return
	}

	// Seed the starter questionnaire and routing policy.
	if err := h.repo.ReplaceScoringRules(ctx, tenant.ID, domain.DefaultScoringRules(tenant.ID)); err != nil {
		slog.Error("failed to seed scoring rules", "tenant_id", tenant.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to seed scoring rules",
		})
		return
	}
	for _, rule := range domain.DefaultRoutingRules(tenant.ID) {
		if err := h.repo.SaveRoutingRule(ctx, tenant.ID, rule); err != nil {
			slog.Error("failed to seed routing rule", "tenant_id", tenant.ID, "category", rule.Category, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to seed routing rules",
			})
			return
		}
	}

	slog.Info("tenant created", "id", tenant.ID, "plan", tenant.Plan)
	writeJSON(w, http.StatusCreated, tenant)
}

// GetTenant retrieves a tenant by ID.
func (h *Handler) GetTenant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := chi.URLParam(r, "id")

	tenant, err := h.repo.GetTenant(ctx, tenantID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "tenant not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, tenant)
}

// ListTenants returns all tenants.
func (h *Handler) ListTenants(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.repo.ListTenants(r.Context())
	if err != nil {
		slog.Error("failed to list tenants", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list tenants",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tenants": tenants,
		"count":   len(tenants),
	})
}

// ============================================================================
// LEAD HANDLERS
// ============================================================================

// LeadRequest is the request body for POST /leads.
type LeadRequest struct {
	Name     string                 `json:"name" validate:"required"`
	Email    string                 `json:"email" validate:"omitempty,email"`
	Phone    string                 `json:"phone"`
	Source   string                 `json:"source"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// LeadResponse is the response for POST /leads.
type LeadResponse struct {
	LeadID     string          `json:"leadId"`
	Status     string          `json:"status"`
	Score      int             `json:"score"`
	Category   domain.Category `json:"category"`
	AssigneeID string          `json:"assigneeId,omitempty"`
	Notify     bool            `json:"notify"`
	Metadata   struct {
		TraceID  string `json:"traceId"`
		IngestMs int64  `json:"ingestMs"`
		TotalMs  int64  `json:"totalMs"`
		Version  string `json:"version"`
	} `json:"metadata"`
}

// CreateLead handles POST /leads: intake, plan-limit enforcement, and either
// synchronous qualification or hand-off to the async pipeline.
func (h *Handler) CreateLead(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	traceID := GetTraceID(ctx)

	var req LeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	// Plan limit check happens before anything is persisted.
	if h.limits != nil {
		if err := h.limits.CheckAllowance(ctx, tenantID); err != nil {
			if errors.Is(err, limits.ErrLeadLimitReached) {
				if h.metrics != nil {
					h.metrics.LimitRejections.Inc()
				}
				writeJSON(w, http.StatusForbidden, map[string]string{
					"error": err.Error(),
				})
				return
			}
			slog.Error("lead allowance check failed", "tenant_id", tenantID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "lead allowance check failed",
			})
			return
		}
	}

	lead := &domain.Lead{
		ID:        uuid.New().String(),
		TenantID:  tenantID,
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Source:    req.Source,
		Status:    domain.LeadStatusNew,
		Metadata:  req.Metadata,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if err := h.repo.SaveLead(ctx, tenantID, lead); err != nil {
		slog.Error("failed to save lead", "id", lead.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save lead",
		})
		return
	}

	if h.limits != nil {
		h.limits.RecordLead(ctx, tenantID)
	}

	ingestMs := time.Since(start).Milliseconds()

	if h.async {
		h.enqueueLead(ctx, lead, traceID)

		resp := LeadResponse{
			LeadID:   lead.ID,
			Status:   "accepted",
			Category: "",
		}
		resp.Metadata.TraceID = traceID
		resp.Metadata.IngestMs = ingestMs
		resp.Metadata.TotalMs = time.Since(start).Milliseconds()
		resp.Metadata.Version = h.version
		writeJSON(w, http.StatusAccepted, resp)
		return
	}

	qual, err := h.orchestrator.QualifyAndRoute(ctx, lead)
	if err != nil {
		var invalid *domain.InvalidAnswerError
		if errors.As(err, &invalid) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{
				"error": invalid.Error(),
			})
			return
		}
		slog.Error("qualification failed", "lead_id", lead.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "qualification failed",
		})
		return
	}

	if err := h.repo.UpdateLeadQualification(ctx, tenantID, lead.ID, qual.Score, qual.Category, qual.AssigneeID); err != nil {
		slog.Error("failed to record qualification", "lead_id", lead.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to record qualification",
		})
		return
	}

	h.observeOutcome(r, qual)
	h.publishOutcome(ctx, tenantID, qual)

	resp := LeadResponse{
		LeadID:     lead.ID,
		Status:     domain.LeadStatusQualified,
		Score:      qual.Score,
		Category:   qual.Category,
		AssigneeID: qual.AssigneeID,
		Notify:     qual.Notify,
	}
	resp.Metadata.TraceID = traceID
	resp.Metadata.IngestMs = ingestMs
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	writeJSON(w, http.StatusCreated, resp)
}

// enqueueLead publishes the lead to the qualification topic for the worker.
func (h *Handler) enqueueLead(ctx context.Context, lead *domain.Lead, traceID string) {
	msg := worker.LeadMessage{
		LeadID:   lead.ID,
		TenantID: lead.TenantID,
		TraceID:  traceID,
	}
	payload, err := json.Marshal(msg)
	if err != nil {
		slog.Error("failed to marshal lead message", "lead_id", lead.ID, "error", err)
		return
	}
	if err := h.bus.Publish(ctx, lead.TenantID, domain.TopicLeadCreated, payload); err != nil {
		slog.Error("failed to enqueue lead", "lead_id", lead.ID, "error", err)
	}
}

// observeOutcome records Prometheus metrics for a completed qualification.
func (h *Handler) observeOutcome(r *http.Request, qual *domain.Qualification) {
	if h.metrics == nil {
		return
	}
	var method domain.RoutingMethod
	if qual.Assigned() {
		if policy, err := h.repo.RoutingRule(r.Context(), qual.TenantID, qual.Category); err == nil && policy != nil {
			method = policy.Method
		}
	}
	h.metrics.ObserveQualification(qual, method)
}

// publishOutcome emits lifecycle events for a completed qualification.
// Publish failures are logged, never surfaced to the caller.
func (h *Handler) publishOutcome(ctx context.Context, tenantID string, qual *domain.Qualification) {
	if h.bus == nil {
		return
	}
	payload, err := json.Marshal(qual)
	if err != nil {
		slog.Error("failed to marshal qualification", "lead_id", qual.LeadID, "error", err)
		return
	}

	if err := h.bus.Publish(ctx, tenantID, domain.TopicLeadQualified, payload); err != nil {
		slog.Error("failed to publish qualified event", "lead_id", qual.LeadID, "error", err)
	}
	if qual.Assigned() {
		if err := h.bus.Publish(ctx, tenantID, domain.TopicLeadAssigned, payload); err != nil {
			slog.Error("failed to publish assigned event", "lead_id", qual.LeadID, "error", err)
		}
	}
	if qual.Notify {
		if err := h.bus.Publish(ctx, tenantID, domain.TopicNotification, payload); err != nil {
			slog.Error("failed to publish notification", "lead_id", qual.LeadID, "error", err)
		}
	}
}

// GetLead retrieves a lead by ID.
func (h *Handler) GetLead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	leadID := chi.URLParam(r, "id")

	lead, err := h.repo.GetLead(ctx, tenantID, leadID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			slog.Error("failed to get lead", "id", leadID, "error", err)
		}
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "lead not found",
		})
		return
	}

	writeJSON(w, http.StatusOK, lead)
}

// ListLeads returns leads for the tenant, optionally filtered by category,
// status, assignment, or a name/email search term.
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	q := r.URL.Query()
	filter := domain.LeadFilter{
		Category: domain.Category(q.Get("category")),
		Status:   q.Get("status"),
		Search:   q.Get("search"),
	}
	switch q.Get("assigned") {
	case "true":
		assigned := true
		filter.Assigned = &assigned
	case "false":
		assigned := false
		filter.Assigned = &assigned
	}

	if filter.Category != "" && !filter.Category.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "unknown category",
		})
		return
	}

	leads, err := h.repo.ListLeads(ctx, tenantID, filter)
	if err != nil {
		slog.Error("failed to list leads", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list leads",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"leads": leads,
		"count": len(leads),
	})
}

// GetTranscript returns the question/answer transcript recorded while
// qualifying a lead, in rule order.
func (h *Handler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	leadID := chi.URLParam(r, "id")

	if _, err := h.repo.GetLead(ctx, tenantID, leadID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "lead not found",
		})
		return
	}

	transcript, err := h.repo.GetTranscript(ctx, tenantID, leadID)
	if err != nil {
		slog.Error("failed to get transcript", "lead_id", leadID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get transcript",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"leadId":     leadID,
		"transcript": transcript,
		"count":      len(transcript),
	})
}

// ============================================================================
// SCORING RULE HANDLERS
// ============================================================================

// ScoringRuleRequest is one questionnaire rule in PUT /scoring-rules.
type ScoringRuleRequest struct {
	ID       string         `json:"id"`
	Question string         `json:"question" validate:"required"`
	Weight   int            `json:"weight" validate:"gt=0"`
	Answers  map[string]int `json:"answers" validate:"required,min=1"`
	Position int            `json:"position"`
}

// ReplaceScoringRules replaces the tenant's questionnaire wholesale. The old
// rule set is soft-deactivated and the cached snapshot invalidated.
func (h *Handler) ReplaceScoringRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var reqs []ScoringRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	rules := make([]*domain.ScoringRule, 0, len(reqs))
	for i, req := range reqs {
		if err := h.validate.Struct(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		id := req.ID
		if id == "" {
			id = uuid.New().String()
		}
		position := req.Position
		if position == 0 {
			position = i + 1
		}
		rules = append(rules, &domain.ScoringRule{
			ID:       id,
			TenantID: tenantID,
			Question: req.Question,
			Weight:   req.Weight,
			Answers:  req.Answers,
			Position: position,
			Active:   true,
		})
	}

	if err := scoring.ValidateRuleSet(rules); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if err := h.repo.ReplaceScoringRules(ctx, tenantID, rules); err != nil {
		slog.Error("failed to replace scoring rules", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to replace scoring rules",
		})
		return
	}

	if h.ruleSource != nil {
		h.ruleSource.Invalidate(ctx, tenantID)
	}

	slog.Info("scoring rules replaced", "tenant_id", tenantID, "count", len(rules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": rules,
		"count": len(rules),
	})
}

// ListScoringRules returns the tenant's active questionnaire in rule order.
func (h *Handler) ListScoringRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	rules, err := h.repo.ActiveScoringRules(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list scoring rules", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list scoring rules",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": rules,
		"count": len(rules),
	})
}

// ============================================================================
// ROUTING RULE HANDLERS
// ============================================================================

// RoutingRuleRequest is one per-category policy in PUT /routing-rules.
type RoutingRuleRequest struct {
	Category domain.Category      `json:"category" validate:"required"`
	Method   domain.RoutingMethod `json:"method" validate:"required"`
	Notify   bool                 `json:"notify"`
}

// PutRoutingRules upserts per-category assignment policies.
func (h *Handler) PutRoutingRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var reqs []RoutingRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	rules := make([]*domain.RoutingRule, 0, len(reqs))
	for _, req := range reqs {
		rule := &domain.RoutingRule{
			TenantID:  tenantID,
			Category:  req.Category,
			Method:    req.Method,
			Notify:    req.Notify,
			UpdatedAt: time.Now().UTC(),
		}
		if err := rule.Validate(); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		rules = append(rules, rule)
	}

	for _, rule := range rules {
		if err := h.repo.SaveRoutingRule(ctx, tenantID, rule); err != nil {
			slog.Error("failed to save routing rule", "tenant_id", tenantID, "category", rule.Category, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to save routing rules",
			})
			return
		}
	}

	slog.Info("routing rules updated", "tenant_id", tenantID, "count", len(rules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": rules,
		"count": len(rules),
	})
}

// ListRoutingRules returns the tenant's assignment policies.
func (h *Handler) ListRoutingRules(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	rules, err := h.repo.ListRoutingRules(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list routing rules", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list routing rules",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": rules,
		"count": len(rules),
	})
}

// ============================================================================
// GUARD RULE HANDLERS
// ============================================================================

// GuardRuleRequest is one pre-screening rule in PUT /guards.
type GuardRuleRequest struct {
	ID         string `json:"id"`
	Name       string `json:"name" validate:"required"`
	Expression string `json:"expression" validate:"required"`
	Reason     string `json:"reason"`
	Active     bool   `json:"active"`
}

// PutGuards replaces the tenant's guard rules wholesale. Every expression is
// compiled before anything is persisted; a single bad expression rejects the
// whole set.
func (h *Handler) PutGuards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var reqs []GuardRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	rules := make([]*domain.GuardRule, 0, len(reqs))
	for _, req := range reqs {
		if err := h.validate.Struct(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
			return
		}
		id := req.ID
		if id == "" {
			id = uuid.New().String()
		}
		rule := &domain.GuardRule{
			ID:         id,
			TenantID:   tenantID,
			Name:       req.Name,
			Expression: req.Expression,
			Reason:     req.Reason,
			Active:     req.Active,
		}
		if h.guards != nil {
			if err := h.guards.ValidateRule(rule); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{
					"error": "invalid CEL expression: " + err.Error(),
				})
				return
			}
		}
		rules = append(rules, rule)
	}

	if err := h.repo.ReplaceGuardRules(ctx, tenantID, rules); err != nil {
		slog.Error("failed to replace guard rules", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to replace guard rules",
		})
		return
	}

	// Hot-reload the screening engine with the new set.
	if h.guards != nil {
		if err := h.guards.LoadTenant(tenantID, rules); err != nil {
			slog.Error("failed to load guard rules into engine", "tenant_id", tenantID, "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{
				"error": "failed to load guard rules: " + err.Error(),
			})
			return
		}
	}

	slog.Info("guard rules replaced", "tenant_id", tenantID, "count", len(rules))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": rules,
		"count": len(rules),
	})
}

// ListGuards returns the tenant's active guard rules.
func (h *Handler) ListGuards(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	rules, err := h.repo.ActiveGuardRules(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list guard rules", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list guard rules",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": rules,
		"count": len(rules),
	})
}

// ============================================================================
// AGENT HANDLERS
// ============================================================================

// AgentRequest is the request body for POST /agents.
type AgentRequest struct {
	ID     string `json:"id"`
	Name   string `json:"name" validate:"required"`
	Email  string `json:"email" validate:"omitempty,email"`
	Role   string `json:"role" validate:"omitempty,oneof=sales_agent admin"`
	Active *bool  `json:"active"`
}

// CreateAgent registers an agent for lead routing.
func (h *Handler) CreateAgent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req AgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.Role == "" {
		req.Role = domain.RoleSalesAgent
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	agent := &domain.Agent{
		ID:        req.ID,
		TenantID:  tenantID,
		Name:      req.Name,
		Email:     req.Email,
		Role:      req.Role,
		Active:    active,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.repo.SaveAgent(ctx, tenantID, agent); err != nil {
		slog.Error("failed to save agent", "id", agent.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to save agent",
		})
		return
	}

	slog.Info("agent created", "id", agent.ID, "role", agent.Role)
	writeJSON(w, http.StatusCreated, agent)
}

// ListAgents returns the tenant's eligible agent pool in seniority order.
func (h *Handler) ListAgents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	agents, err := h.repo.EligibleAgents(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list agents", "tenant_id", tenantID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list agents",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"agents": agents,
		"count":  len(agents),
	})
}

// ============================================================================
// HEALTH HANDLERS
// ============================================================================

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
