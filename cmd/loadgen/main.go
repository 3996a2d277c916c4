// Load generator for exercising the Harrier qualification pipeline.
//
// Usage:
//   go run cmd/loadgen/main.go -url http://localhost:8080 -leads 1000
//
// This tool:
//   1. Onboards a throwaway tenant (with default questionnaire and routing)
//   2. Registers a pool of agents
//   3. Fires synthetic leads concurrently at POST /leads
//   4. Reports the category distribution, assignment rate, and throughput
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// LeadRequest is the Harrier API request format.
type LeadRequest struct {
	Name     string         `json:"name"`
	Email    string         `json:"email,omitempty"`
	Phone    string         `json:"phone,omitempty"`
	Source   string         `json:"source,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// LeadResponse is the Harrier API response format.
type LeadResponse struct {
	LeadID     string `json:"leadId"`
	Status     string `json:"status"`
	Score      int    `json:"score"`
	Category   string `json:"category"`
	AssigneeID string `json:"assigneeId"`
	Notify     bool   `json:"notify"`
}

// Metrics tracks load generation results.
type Metrics struct {
	Hot         int64
	Warm        int64
	Cold        int64
	Unqualified int64

	Assigned       int64
	Notified       int64
	TotalProcessed int64
	TotalRejected  int64
	TotalErrors    int64

	ProcessingTimeMs int64
}

var sources = []string{"webinar", "cold-call", "referral", "website", "trade-show"}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "Harrier base URL")
	tenantName := flag.String("tenant", "loadgen", "Tenant name to onboard")
	leadCount := flag.Int("leads", 1000, "Number of leads to send")
	agentCount := flag.Int("agents", 5, "Number of agents to register")
	workers := flag.Int("workers", 10, "Number of concurrent workers")
	verbose := flag.Bool("verbose", false, "Print each lead result")
	flag.Parse()

	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║           HARRIER LOADGEN - Lead Qualification                ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nHarrier URL: %s\n", *baseURL)
	fmt.Printf("Tenant:      %s\n", *tenantName)
	fmt.Printf("Leads:       %d\n", *leadCount)
	fmt.Printf("Agents:      %d\n", *agentCount)
	fmt.Printf("Workers:     %d\n", *workers)
	fmt.Println()

	if err := checkHealth(*baseURL); err != nil {
		fmt.Printf("ERROR: Harrier not reachable at %s: %v\n", *baseURL, err)
		fmt.Println("\nMake sure Harrier is running:")
		fmt.Println("  go run cmd/harrier/main.go")
		os.Exit(1)
	}
	fmt.Println("✓ Harrier is healthy")

	client := &http.Client{Timeout: 10 * time.Second}

	tenantID, err := onboardTenant(client, *baseURL, *tenantName)
	if err != nil {
		fmt.Printf("ERROR: Failed to onboard tenant: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Tenant onboarded: %s\n", tenantID)

	if err := registerAgents(client, *baseURL, tenantID, *agentCount); err != nil {
		fmt.Printf("ERROR: Failed to register agents: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("✓ Registered %d agents\n", *agentCount)

	fmt.Printf("\nFiring %d leads with %d workers...\n", *leadCount, *workers)
	startTime := time.Now()
	metrics := runLoad(*baseURL, tenantID, *leadCount, *workers, *verbose)
	duration := time.Since(startTime)

	printResults(metrics, duration)
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

func onboardTenant(client *http.Client, baseURL, name string) (string, error) {
	body, _ := json.Marshal(map[string]any{
		"name": name,
		"plan": "pro", // unlimited leads
	})

	resp, err := client.Post(baseURL+"/tenants", "application/json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}

	var tenant struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tenant); err != nil {
		return "", err
	}
	return tenant.ID, nil
}

func registerAgents(client *http.Client, baseURL, tenantID string, count int) error {
	for i := 0; i < count; i++ {
		body, _ := json.Marshal(map[string]any{
			"name":  fmt.Sprintf("Agent %03d", i+1),
			"email": fmt.Sprintf("agent%03d@example.com", i+1),
		})

		req, err := http.NewRequest(http.MethodPost, baseURL+"/agents", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Tenant-ID", tenantID)

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusCreated {
			return fmt.Errorf("status %d", resp.StatusCode)
		}
	}
	return nil
}

func runLoad(baseURL, tenantID string, leadCount, numWorkers int, verbose bool) *Metrics {
	metrics := &Metrics{}

	work := make(chan int, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}
			rng := rand.New(rand.NewSource(time.Now().UnixNano()))

			for n := range work {
				start := time.Now()
				result, status, err := createLead(client, baseURL, tenantID, n, rng)
				elapsed := time.Since(start).Milliseconds()

				atomic.AddInt64(&metrics.ProcessingTimeMs, elapsed)
				atomic.AddInt64(&metrics.TotalProcessed, 1)

				if err != nil {
					if status == http.StatusForbidden {
						atomic.AddInt64(&metrics.TotalRejected, 1)
					} else {
						atomic.AddInt64(&metrics.TotalErrors, 1)
					}
					if verbose {
						fmt.Printf("ERROR: lead %d -> %v\n", n, err)
					}
					continue
				}

				switch result.Category {
				case "hot":
					atomic.AddInt64(&metrics.Hot, 1)
				case "warm":
					atomic.AddInt64(&metrics.Warm, 1)
				case "cold":
					atomic.AddInt64(&metrics.Cold, 1)
				default:
					atomic.AddInt64(&metrics.Unqualified, 1)
				}

				if result.AssigneeID != "" {
					atomic.AddInt64(&metrics.Assigned, 1)
				}
				if result.Notify {
					atomic.AddInt64(&metrics.Notified, 1)
				}

				if verbose {
					fmt.Printf("✓ %-10s | Score: %3d | Category: %-11s | Assignee: %-10s | Notify: %v\n",
						result.LeadID[:8],
						result.Score,
						result.Category,
						result.AssigneeID,
						result.Notify,
					)
				}
			}
		}()
	}

	for n := 0; n < leadCount; n++ {
		work <- n
	}
	close(work)

	wg.Wait()

	return metrics
}

func createLead(client *http.Client, baseURL, tenantID string, n int, rng *rand.Rand) (*LeadResponse, int, error) {
	req := LeadRequest{
		Name:   fmt.Sprintf("Lead %06d", n),
		Email:  fmt.Sprintf("lead%06d@example.com", n),
		Source: sources[rng.Intn(len(sources))],
		Metadata: map[string]any{
			"batch": "loadgen",
			"seq":   n,
		},
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, 0, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/leads", bytes.NewReader(body))
	if err != nil {
		return nil, 0, err
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return nil, resp.StatusCode, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result LeadResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, resp.StatusCode, err
	}

	return &result, resp.StatusCode, nil
}

func printResults(m *Metrics, duration time.Duration) {
	fmt.Println("\n╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║                      LOADGEN RESULTS                          ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")

	fmt.Printf("\n📊 INTAKE STATISTICS\n")
	fmt.Printf("   Total Processed:  %d\n", m.TotalProcessed)
	fmt.Printf("   Limit Rejected:   %d\n", m.TotalRejected)
	fmt.Printf("   Errors:           %d\n", m.TotalErrors)

	qualified := m.Hot + m.Warm + m.Cold + m.Unqualified
	fmt.Printf("\n🌡️  CATEGORY DISTRIBUTION\n")
	if qualified > 0 {
		fmt.Printf("   Hot:          %6d (%.1f%%)\n", m.Hot, 100*float64(m.Hot)/float64(qualified))
		fmt.Printf("   Warm:         %6d (%.1f%%)\n", m.Warm, 100*float64(m.Warm)/float64(qualified))
		fmt.Printf("   Cold:         %6d (%.1f%%)\n", m.Cold, 100*float64(m.Cold)/float64(qualified))
		fmt.Printf("   Unqualified:  %6d (%.1f%%)\n", m.Unqualified, 100*float64(m.Unqualified)/float64(qualified))
		fmt.Printf("\n🎯 ROUTING\n")
		fmt.Printf("   Assigned:     %6d (%.1f%%)\n", m.Assigned, 100*float64(m.Assigned)/float64(qualified))
		fmt.Printf("   Notified:     %6d (%.1f%%)\n", m.Notified, 100*float64(m.Notified)/float64(qualified))
	}

	fmt.Printf("\n⚡ PERFORMANCE\n")
	fmt.Printf("   Wall Time:        %v\n", duration.Round(time.Millisecond))
	if m.TotalProcessed > 0 {
		fmt.Printf("   Avg Latency:      %.1f ms\n", float64(m.ProcessingTimeMs)/float64(m.TotalProcessed))
		fmt.Printf("   Throughput:       %.0f leads/sec\n", float64(m.TotalProcessed)/duration.Seconds())
	}
	fmt.Println()
}
