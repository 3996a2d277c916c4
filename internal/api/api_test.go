package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/opensource-crm/harrier/internal/bus"
	"github.com/opensource-crm/harrier/internal/cache"
	"github.com/opensource-crm/harrier/internal/domain"
	"github.com/opensource-crm/harrier/internal/guard"
	"github.com/opensource-crm/harrier/internal/limits"
	"github.com/opensource-crm/harrier/internal/metrics"
	"github.com/opensource-crm/harrier/internal/qualify"
	"github.com/opensource-crm/harrier/internal/repository"
	"github.com/opensource-crm/harrier/internal/routing"
)

// testAnswers replays the highest-scoring answer for every default question,
// so a fresh tenant's lead always lands at score 100 / hot.
var testAnswers = qualify.StaticAnswerProvider{
	"What is your budget range?":          "Above $20k",
	"What is your timeline?":              "Immediately",
	"Are you the decision maker?":         "Yes",
	"How urgent is this requirement?":     "Critical",
	"Do you have an implementation team?": "Yes",
}

// createTestServer wires a server against a temp SQLite store, in-process
// cache, and channel bus, qualifying leads synchronously.
func createTestServer(t *testing.T) *Server {
	t.Helper()

	repo, err := repository.New(domain.RepositoryConfig{
		Driver:     "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "harrier-api-test.db"),
	})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	store, err := cache.New(domain.CacheConfig{Type: "memory", LocalMaxSize: 100})
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	eventBus, err := bus.New(domain.EventBusConfig{Type: "channel", ChannelBufferSize: 64})
	if err != nil {
		t.Fatalf("failed to create bus: %v", err)
	}
	t.Cleanup(func() { eventBus.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	guards, err := guard.NewEngine(logger)
	if err != nil {
		t.Fatalf("failed to create guard engine: %v", err)
	}

	ruleSource := qualify.NewCachedRuleSource(repo, store, time.Minute, logger)
	orchestrator := qualify.NewOrchestrator(ruleSource, repo, repo, testAnswers, routing.NewRouter(),
		qualify.WithTranscriptSink(repo),
		qualify.WithScreener(guards),
		qualify.WithLogger(logger),
	)

	m, reg := metrics.New()

	cfg := domain.ServerConfig{
		Host:         "localhost",
		Port:         8080,
		ReadTimeout:  30,
		WriteTimeout: 30,
	}

	return NewServer(cfg, ServerDeps{
		Repo:         repo,
		Cache:        store,
		Bus:          eventBus,
		Orchestrator: orchestrator,
		Guards:       guards,
		Limits:       limits.NewService(repo, repo, store, logger),
		RuleSource:   ruleSource,
		Metrics:      m,
		Registry:     reg,
		Version:      "test-v1",
		Async:        false,
	})
}

func doJSON(t *testing.T, server *Server, method, path, tenantID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tenantID != "" {
		req.Header.Set("X-Tenant-ID", tenantID)
	}

	rr := httptest.NewRecorder()
	server.Router().ServeHTTP(rr, req)
	return rr
}

// onboardTenant creates a tenant with an eligible agent and returns its ID.
func onboardTenant(t *testing.T, server *Server, req CreateTenantRequest) string {
	t.Helper()

	rr := doJSON(t, server, http.MethodPost, "/tenants", "", req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201 creating tenant, got %d: %s", rr.Code, rr.Body.String())
	}

	var tenant domain.Tenant
	if err := json.Unmarshal(rr.Body.Bytes(), &tenant); err != nil {
		t.Fatalf("failed to parse tenant response: %v", err)
	}

	rr = doJSON(t, server, http.MethodPost, "/agents", tenant.ID, AgentRequest{
		ID:    "agent-001",
		Name:  "Sam Closer",
		Email: "sam@example.com",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201 creating agent, got %d: %s", rr.Code, rr.Body.String())
	}

	return tenant.ID
}

func TestTenantEndpoints(t *testing.T) {
	server := createTestServer(t)

	t.Run("CreateSeedsDefaults", func(t *testing.T) {
		tenantID := onboardTenant(t, server, CreateTenantRequest{Name: "Acme", Plan: "growth"})

		rr := doJSON(t, server, http.MethodGet, "/scoring-rules", tenantID, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != 4 {
			t.Errorf("expected 4 seeded scoring rules, got %d", resp.Count)
		}

		rr = doJSON(t, server, http.MethodGet, "/routing-rules", tenantID, nil)
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != 3 {
			t.Errorf("expected 3 seeded routing rules, got %d", resp.Count)
		}
	})

	t.Run("GetTenant", func(t *testing.T) {
		tenantID := onboardTenant(t, server, CreateTenantRequest{Name: "Globex"})

		rr := doJSON(t, server, http.MethodGet, "/tenants/"+tenantID, "", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}

		var tenant domain.Tenant
		json.Unmarshal(rr.Body.Bytes(), &tenant)
		if tenant.Name != "Globex" {
			t.Errorf("expected name Globex, got %s", tenant.Name)
		}
		if tenant.Plan != domain.PlanStarter {
			t.Errorf("expected default plan starter, got %s", tenant.Plan)
		}
	})

	t.Run("GetTenantNotFound", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/tenants/nope", "", nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})

	t.Run("MissingName", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/tenants", "", CreateTenantRequest{Plan: "starter"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestLeadEndpoints(t *testing.T) {
	server := createTestServer(t)
	tenantID := onboardTenant(t, server, CreateTenantRequest{Name: "Acme"})

	t.Run("CreateQualifiesSynchronously", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/leads", tenantID, LeadRequest{
			Name:   "Jordan Buyer",
			Email:  "jordan@example.com",
			Source: "webinar",
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}

		var resp LeadResponse
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("failed to parse response: %v", err)
		}

		if resp.LeadID == "" {
			t.Error("expected leadId in response")
		}
		if resp.Score != 100 {
			t.Errorf("expected score 100, got %d", resp.Score)
		}
		if resp.Category != domain.CategoryHot {
			t.Errorf("expected category hot, got %s", resp.Category)
		}
		if resp.AssigneeID != "agent-001" {
			t.Errorf("expected assignee agent-001, got %s", resp.AssigneeID)
		}
		if !resp.Notify {
			t.Error("expected notify for hot lead")
		}
		if resp.Metadata.Version != "test-v1" {
			t.Errorf("expected version test-v1, got %s", resp.Metadata.Version)
		}
		if resp.Metadata.TraceID == "" {
			t.Error("expected traceId in metadata")
		}

		// Qualification outcome is persisted on the lead.
		rr = doJSON(t, server, http.MethodGet, "/leads/"+resp.LeadID, tenantID, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		var lead domain.Lead
		json.Unmarshal(rr.Body.Bytes(), &lead)
		if lead.Status != domain.LeadStatusQualified {
			t.Errorf("expected status qualified, got %s", lead.Status)
		}
		if lead.AssignedAgentID != "agent-001" {
			t.Errorf("expected assigned agent agent-001, got %s", lead.AssignedAgentID)
		}

		// One exchange per questionnaire rule, in order.
		rr = doJSON(t, server, http.MethodGet, "/leads/"+resp.LeadID+"/transcript", tenantID, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		var transcript struct {
			Transcript []domain.Exchange `json:"transcript"`
		}
		json.Unmarshal(rr.Body.Bytes(), &transcript)
		if len(transcript.Transcript) != 4 {
			t.Fatalf("expected 4 exchanges, got %d", len(transcript.Transcript))
		}
		if transcript.Transcript[0].Question != "What is your budget range?" {
			t.Errorf("unexpected first question: %s", transcript.Transcript[0].Question)
		}
	})

	t.Run("ListWithCategoryFilter", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/leads?category=hot", tenantID, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rr.Code)
		}
		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count == 0 {
			t.Error("expected at least one hot lead")
		}

		rr = doJSON(t, server, http.MethodGet, "/leads?category=bogus", tenantID, nil)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400 for unknown category, got %d", rr.Code)
		}
	})

	t.Run("MissingTenantID", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/leads", "", LeadRequest{Name: "Nobody"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("MissingName", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/leads", tenantID, LeadRequest{Email: "x@example.com"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidEmail", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPost, "/leads", tenantID, LeadRequest{Name: "Bad Email", Email: "not-an-email"})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/leads", bytes.NewBufferString("not-json"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", tenantID)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})

	t.Run("LeadNotFound", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodGet, "/leads/nope", tenantID, nil)
		if rr.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rr.Code)
		}
	})
}

func TestLeadLimitEnforcement(t *testing.T) {
	server := createTestServer(t)
	tenantID := onboardTenant(t, server, CreateTenantRequest{Name: "Tiny", LeadLimit: 1})

	rr := doJSON(t, server, http.MethodPost, "/leads", tenantID, LeadRequest{Name: "First"})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201 for first lead, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, server, http.MethodPost, "/leads", tenantID, LeadRequest{Name: "Second"})
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected status 403 once limit is reached, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestScoringRuleEndpoints(t *testing.T) {
	server := createTestServer(t)
	tenantID := onboardTenant(t, server, CreateTenantRequest{Name: "Acme"})

	t.Run("ReplaceWholesale", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPut, "/scoring-rules", tenantID, []ScoringRuleRequest{
			{
				Question: "Do you have an implementation team?",
				Weight:   100,
				Answers:  map[string]int{"Yes": 100, "No": 0},
			},
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		rr = doJSON(t, server, http.MethodGet, "/scoring-rules", tenantID, nil)
		var resp struct {
			Count int `json:"count"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Count != 1 {
			t.Fatalf("expected 1 active rule after replace, got %d", resp.Count)
		}

		// The cached snapshot was invalidated: qualification sees the new set.
		rr = doJSON(t, server, http.MethodPost, "/leads", tenantID, LeadRequest{Name: "Post-Replace"})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}
		var lead LeadResponse
		json.Unmarshal(rr.Body.Bytes(), &lead)
		if lead.Score != 100 {
			t.Errorf("expected score 100 from replaced rule set, got %d", lead.Score)
		}
	})

	t.Run("RejectsZeroWeight", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPut, "/scoring-rules", tenantID, []ScoringRuleRequest{
			{Question: "Broken?", Weight: 0, Answers: map[string]int{"Yes": 100}},
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestRoutingRuleEndpoints(t *testing.T) {
	server := createTestServer(t)
	tenantID := onboardTenant(t, server, CreateTenantRequest{Name: "Acme"})

	t.Run("UpsertPolicy", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPut, "/routing-rules", tenantID, []RoutingRuleRequest{
			{Category: domain.CategoryWarm, Method: domain.MethodSkillBased, Notify: true},
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		rr = doJSON(t, server, http.MethodGet, "/routing-rules", tenantID, nil)
		var resp struct {
			Rules []*domain.RoutingRule `json:"rules"`
		}
		json.Unmarshal(rr.Body.Bytes(), &resp)
		for _, rule := range resp.Rules {
			if rule.Category == domain.CategoryWarm && rule.Method != domain.MethodSkillBased {
				t.Errorf("expected warm policy skill_based, got %s", rule.Method)
			}
		}
	})

	t.Run("RejectsUnknownMethod", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPut, "/routing-rules", tenantID, []RoutingRuleRequest{
			{Category: domain.CategoryHot, Method: "carrier-pigeon"},
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestGuardEndpoints(t *testing.T) {
	server := createTestServer(t)
	tenantID := onboardTenant(t, server, CreateTenantRequest{Name: "Acme"})

	t.Run("BlockedLeadSkipsScoring", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPut, "/guards", tenantID, []GuardRuleRequest{
			{
				Name:       "block competitors",
				Expression: `source == "competitor"`,
				Reason:     "competitor research",
				Active:     true,
			},
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}

		rr = doJSON(t, server, http.MethodPost, "/leads", tenantID, LeadRequest{
			Name:   "Sneaky Rival",
			Source: "competitor",
		})
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
		}
		var resp LeadResponse
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Category != domain.CategoryUnqualified {
			t.Errorf("expected category unqualified, got %s", resp.Category)
		}
		if resp.AssigneeID != "" {
			t.Errorf("expected no assignee for blocked lead, got %s", resp.AssigneeID)
		}

		// Untouched leads still flow through.
		rr = doJSON(t, server, http.MethodPost, "/leads", tenantID, LeadRequest{
			Name:   "Genuine Buyer",
			Source: "webinar",
		})
		json.Unmarshal(rr.Body.Bytes(), &resp)
		if resp.Category != domain.CategoryHot {
			t.Errorf("expected category hot, got %s", resp.Category)
		}
	})

	t.Run("RejectsBadExpression", func(t *testing.T) {
		rr := doJSON(t, server, http.MethodPut, "/guards", tenantID, []GuardRuleRequest{
			{Name: "broken", Expression: "source ==", Active: true},
		})
		if rr.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rr.Code)
		}
	})
}

func TestHealthEndpoint(t *testing.T) {
	server := createTestServer(t)

	t.Run("HealthCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}

		var resp map[string]string
		json.Unmarshal(rr.Body.Bytes(), &resp)

		if resp["status"] != "healthy" {
			t.Errorf("expected status 'healthy', got '%s'", resp["status"])
		}
		if resp["version"] != "test-v1" {
			t.Errorf("expected version 'test-v1', got '%s'", resp["version"])
		}
	})

	t.Run("ReadyCheck", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/ready", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})

	t.Run("MetricsExposed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

		rr := httptest.NewRecorder()
		server.Router().ServeHTTP(rr, req)

		if rr.Code != http.StatusOK {
			t.Errorf("expected status 200, got %d", rr.Code)
		}
	})
}

func TestMiddleware(t *testing.T) {
	t.Run("TenantMiddlewareExtractsID", func(t *testing.T) {
		var capturedTenantID string

		handler := TenantMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			capturedTenantID = GetTenantID(r.Context())
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Tenant-ID", "my-tenant-123")

		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedTenantID != "my-tenant-123" {
			t.Errorf("expected tenant ID 'my-tenant-123', got '%s'", capturedTenantID)
		}
	})

	t.Run("TracingMiddlewareSetsRequestID", func(t *testing.T) {
		var capturedRequestID string

		handler := TracingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if v, ok := r.Context().Value(RequestIDKey).(string); ok {
				capturedRequestID = v
			}
			w.WriteHeader(http.StatusOK)
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		if capturedRequestID == "" {
			t.Error("expected request ID to be set")
		}

		if rr.Header().Get("X-Request-ID") == "" {
			t.Error("expected X-Request-ID response header")
		}
	})

	t.Run("RecoverMiddlewareHandlesPanic", func(t *testing.T) {
		handler := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("test panic")
		}))

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rr := httptest.NewRecorder()

		// Should not panic
		handler.ServeHTTP(rr, req)

		if rr.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rr.Code)
		}
	})
}
