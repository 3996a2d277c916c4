//go:build integration
// +build integration

// Package integration provides end-to-end tests for the Harrier lead
// qualification engine.
//
// These tests verify the COMPLETE qualification pipeline:
//
//	Lead → Guards → Questionnaire → Score → Category → Routing → Assignment
//
// Run with: go test -tags=integration -v ./tests/integration/...
//
// UNDERSTANDING THE DOMAIN:
//
// 1. LEAD: A prospective customer submitted to POST /leads
//
// 2. SCORING RULE: One weighted questionnaire question. Each rule has:
//   - Question: what gets asked during qualification
//   - Answers: label → points (0-100)
//   - Weight: percentage contribution (rule contributes points*weight/100)
//
// 3. CATEGORY: Total score maps to a tier:
//   - Score ≥ 80  → hot
//   - Score ≥ 40  → warm
//   - Score < 40  → cold
//   - No rules / guard block → unqualified
//
// 4. ROUTING: Per-category policy decides assignment:
//   - hot or skill_based → first (most senior) agent
//   - round_robin        → random agent from the pool
//   - automation/absent  → no assignment
//
// The server picks answers itself, so deterministic outcomes are arranged by
// uploading rule sets whose every answer carries the same point value.
//
// NOTE: Each test onboards its own tenant; no external seeding is required.
package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"testing"
	"time"
)

// TestConfig holds test environment configuration
type TestConfig struct {
	BaseURL string
}

func getTestConfig() TestConfig {
	baseURL := os.Getenv("HARRIER_TEST_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}
	return TestConfig{BaseURL: baseURL}
}

// ============================================================================
// API Request/Response Types (matching Harrier's API contract)
// ============================================================================

// LeadRequest is the lead sent to POST /leads
type LeadRequest struct {
	Name     string         `json:"name"`
	Email    string         `json:"email,omitempty"`
	Source   string         `json:"source,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// LeadResponse is what POST /leads returns
type LeadResponse struct {
	LeadID     string           `json:"leadId"`
	Status     string           `json:"status"`
	Score      int              `json:"score"`
	Category   string           `json:"category"`
	AssigneeID string           `json:"assigneeId"`
	Notify     bool             `json:"notify"`
	Metadata   ResponseMetadata `json:"metadata"`
}

type ResponseMetadata struct {
	TraceID  string `json:"traceId"`
	IngestMs int64  `json:"ingestMs"`
	TotalMs  int64  `json:"totalMs"`
	Version  string `json:"version"`
}

// Lead mirrors the persisted lead record returned by GET /leads/{id}
type Lead struct {
	ID              string `json:"id"`
	Status          string `json:"status"`
	Score           int    `json:"score"`
	Category        string `json:"category"`
	AssignedAgentID string `json:"assignedAgentId"`
}

// ============================================================================
// Test Helper Functions
// ============================================================================

func doRequest(t *testing.T, config TestConfig, method, path, tenantID string, payload any, wantStatus int, out any) {
	t.Helper()

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("Failed to marshal request: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequest(method, config.BaseURL+path, body)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if tenantID != "" {
		httpReq.Header.Set("X-Tenant-ID", tenantID)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}

	if resp.StatusCode != wantStatus {
		t.Fatalf("Expected status %d, got %d: %s", wantStatus, resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(respBody))
		}
	}
}

// onboardTenant creates a fresh tenant and returns its ID.
func onboardTenant(t *testing.T, config TestConfig, name string) string {
	t.Helper()

	var tenant struct {
		ID string `json:"id"`
	}
	doRequest(t, config, http.MethodPost, "/tenants", "", map[string]any{
		"name": name,
		"plan": "pro",
	}, http.StatusCreated, &tenant)
	return tenant.ID
}

func registerAgent(t *testing.T, config TestConfig, tenantID, agentID, name string) {
	t.Helper()

	doRequest(t, config, http.MethodPost, "/agents", tenantID, map[string]any{
		"id":   agentID,
		"name": name,
	}, http.StatusCreated, nil)
}

// setUniformRules replaces the tenant's questionnaire with a single rule
// whose every answer scores the given points, pinning the total score
// regardless of which answer the server picks.
func setUniformRules(t *testing.T, config TestConfig, tenantID string, points int) {
	t.Helper()

	doRequest(t, config, http.MethodPut, "/scoring-rules", tenantID, []map[string]any{
		{
			"question": "Are you evaluating solutions right now?",
			"weight":   100,
			"answers":  map[string]int{"Yes": points, "Somewhat": points, "No": points},
		},
	}, http.StatusOK, nil)
}

// qualifyLead creates a lead and waits for its qualification outcome,
// covering both the synchronous (201) and async worker (202) paths.
func qualifyLead(t *testing.T, config TestConfig, tenantID string, req LeadRequest) Lead {
	t.Helper()

	raw, _ := json.Marshal(req)
	httpReq, err := http.NewRequest(http.MethodPost, config.BaseURL+"/leads", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		t.Fatalf("Expected status 201 or 202, got %d: %s", resp.StatusCode, string(respBody))
	}

	var created LeadResponse
	if err := json.Unmarshal(respBody, &created); err != nil {
		t.Fatalf("Failed to unmarshal response: %v (body: %s)", err, string(respBody))
	}

	// Poll until the pipeline (sync or async) has recorded the outcome.
	deadline := time.Now().Add(10 * time.Second)
	for {
		var lead Lead
		doRequest(t, config, http.MethodGet, "/leads/"+created.LeadID, tenantID, nil, http.StatusOK, &lead)
		if lead.Status == "qualified" {
			return lead
		}
		if time.Now().After(deadline) {
			t.Fatalf("Lead %s never reached qualified status (last: %s)", created.LeadID, lead.Status)
		}
		time.Sleep(100 * time.Millisecond)
	}
}

// ============================================================================
// SCENARIO 1: Hot lead routed to the most senior agent
// ============================================================================

func TestHotLead_RoutedWithNotification(t *testing.T) {
	/*
	   SCENARIO: Every answer scores 100, so the lead totals 100 → hot.
	   The default routing policy sends hot leads skill_based with notify.

	   EXPECTED BEHAVIOR:
	   - Score 100, category hot
	   - Assigned to the first registered agent (seniority order)
	*/
	config := getTestConfig()

	tenantID := onboardTenant(t, config, "integration-hot")
	registerAgent(t, config, tenantID, "senior-001", "Senior Agent")
	registerAgent(t, config, tenantID, "junior-001", "Junior Agent")
	setUniformRules(t, config, tenantID, 100)

	lead := qualifyLead(t, config, tenantID, LeadRequest{
		Name:  "Hot Prospect",
		Email: "hot@example.com",
	})

	if lead.Score != 100 {
		t.Errorf("Expected score 100, got %d", lead.Score)
	}
	if lead.Category != "hot" {
		t.Errorf("Expected category hot, got %s", lead.Category)
	}
	if lead.AssignedAgentID != "senior-001" {
		t.Errorf("Expected assignment to senior-001, got %q", lead.AssignedAgentID)
	}

	// One exchange per rule, in order.
	var transcript struct {
		Transcript []struct {
			Seq      int    `json:"seq"`
			Question string `json:"question"`
			Answer   string `json:"answer"`
		} `json:"transcript"`
	}
	doRequest(t, config, http.MethodGet, "/leads/"+lead.ID+"/transcript", tenantID, nil, http.StatusOK, &transcript)
	if len(transcript.Transcript) != 1 {
		t.Fatalf("Expected 1 transcript exchange, got %d", len(transcript.Transcript))
	}
	if transcript.Transcript[0].Seq != 1 {
		t.Errorf("Expected first exchange seq 1, got %d", transcript.Transcript[0].Seq)
	}

	t.Logf("✓ Hot lead routed: score=%d, category=%s, agent=%s", lead.Score, lead.Category, lead.AssignedAgentID)
}

// ============================================================================
// SCENARIO 2: Cold lead left to automation
// ============================================================================

func TestColdLead_Unassigned(t *testing.T) {
	/*
	   SCENARIO: Every answer scores 30, so the lead totals 30 → cold.
	   The default cold policy is automation: qualified but never assigned.
	*/
	config := getTestConfig()

	tenantID := onboardTenant(t, config, "integration-cold")
	registerAgent(t, config, tenantID, "agent-001", "Lonely Agent")
	setUniformRules(t, config, tenantID, 30)

	lead := qualifyLead(t, config, tenantID, LeadRequest{Name: "Cold Prospect"})

	if lead.Category != "cold" {
		t.Errorf("Expected category cold, got %s", lead.Category)
	}
	if lead.AssignedAgentID != "" {
		t.Errorf("Expected no assignment for cold lead, got %q", lead.AssignedAgentID)
	}

	t.Logf("✓ Cold lead left to automation: score=%d", lead.Score)
}

// ============================================================================
// SCENARIO 3: Guard rule blocks a lead before scoring
// ============================================================================

func TestGuardedLead_Unqualified(t *testing.T) {
	/*
	   SCENARIO: A guard rule blocks leads sourced from competitors. The
	   questionnaire never runs: score 0, category unqualified, no transcript.
	*/
	config := getTestConfig()

	tenantID := onboardTenant(t, config, "integration-guard")
	registerAgent(t, config, tenantID, "agent-001", "Agent")
	setUniformRules(t, config, tenantID, 100)

	doRequest(t, config, http.MethodPut, "/guards", tenantID, []map[string]any{
		{
			"name":       "block competitors",
			"expression": `source == "competitor"`,
			"reason":     "competitor research",
			"active":     true,
		},
	}, http.StatusOK, nil)

	lead := qualifyLead(t, config, tenantID, LeadRequest{
		Name:   "Undercover Rival",
		Source: "competitor",
	})

	if lead.Category != "unqualified" {
		t.Errorf("Expected category unqualified, got %s", lead.Category)
	}
	if lead.Score != 0 {
		t.Errorf("Expected score 0 for blocked lead, got %d", lead.Score)
	}
	if lead.AssignedAgentID != "" {
		t.Errorf("Expected no assignment for blocked lead, got %q", lead.AssignedAgentID)
	}

	var transcript struct {
		Count int `json:"count"`
	}
	doRequest(t, config, http.MethodGet, "/leads/"+lead.ID+"/transcript", tenantID, nil, http.StatusOK, &transcript)
	if transcript.Count != 0 {
		t.Errorf("Expected empty transcript for blocked lead, got %d exchanges", transcript.Count)
	}

	// A lead from a clean source flows straight through the same guard set.
	clean := qualifyLead(t, config, tenantID, LeadRequest{
		Name:   "Genuine Prospect",
		Source: "webinar",
	})
	if clean.Category != "hot" {
		t.Errorf("Expected clean lead to qualify hot, got %s", clean.Category)
	}

	t.Logf("✓ Guard blocked competitor lead, clean lead qualified %s", clean.Category)
}

// ============================================================================
// SCENARIO 4: Empty agent pool leaves a hot lead unassigned
// ============================================================================

func TestHotLead_EmptyPoolUnassigned(t *testing.T) {
	/*
	   SCENARIO: The tenant has scoring and routing configured but no agents.
	   A hot lead still qualifies, but routing yields no assignment and the
	   notify flag stays down.
	*/
	config := getTestConfig()

	tenantID := onboardTenant(t, config, "integration-noagents")
	setUniformRules(t, config, tenantID, 100)

	lead := qualifyLead(t, config, tenantID, LeadRequest{Name: "Unroutable Prospect"})

	if lead.Category != "hot" {
		t.Errorf("Expected category hot, got %s", lead.Category)
	}
	if lead.AssignedAgentID != "" {
		t.Errorf("Expected no assignment with empty pool, got %q", lead.AssignedAgentID)
	}

	t.Logf("✓ Hot lead with empty pool stayed unassigned")
}

// ============================================================================
// SCENARIO 5: Rounding happens once, after summation
// ============================================================================

func TestWeightedScore_RoundsOnce(t *testing.T) {
	/*
	   SCENARIO: Two rules, each weight 25 with every answer at 33 points.
	   Each contributes 33 * 25 / 100 = 8.25; the total 16.5 rounds half-up
	   to 17. Per-rule rounding would give 8 + 8 = 16, so a score of 17
	   proves the engine accumulates before rounding.
	*/
	config := getTestConfig()

	tenantID := onboardTenant(t, config, "integration-rounding")
	doRequest(t, config, http.MethodPut, "/scoring-rules", tenantID, []map[string]any{
		{
			"question": "First signal?",
			"weight":   25,
			"answers":  map[string]int{"A": 33, "B": 33},
		},
		{
			"question": "Second signal?",
			"weight":   25,
			"answers":  map[string]int{"A": 33, "B": 33},
		},
	}, http.StatusOK, nil)

	lead := qualifyLead(t, config, tenantID, LeadRequest{Name: "Precise Prospect"})

	if lead.Score != 17 {
		t.Errorf("Expected score 17 (16.5 rounded half-up once), got %d", lead.Score)
	}
	if lead.Category != "cold" {
		t.Errorf("Expected category cold, got %s", lead.Category)
	}

	t.Logf("✓ Score rounded once after summation: %d", lead.Score)
}

// ============================================================================
// Smoke check
// ============================================================================

func TestMain(m *testing.M) {
	config := getTestConfig()

	resp, err := http.Get(config.BaseURL + "/health")
	if err != nil {
		fmt.Printf("Harrier not reachable at %s: %v\n", config.BaseURL, err)
		fmt.Println("Start it first: go run cmd/harrier/main.go")
		os.Exit(1)
	}
	resp.Body.Close()

	os.Exit(m.Run())
}
