// Package worker provides async lead qualification for the Pro tier.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-crm/harrier/internal/domain"
	"github.com/opensource-crm/harrier/internal/qualify"
)

// Worker qualifies leads asynchronously from the EventBus. The API enqueues
// a LeadMessage on lead creation; the worker runs the pipeline and writes
// the outcome back.
type Worker struct {
	bus          domain.EventBus
	repo         domain.Repository
	orchestrator *qualify.Orchestrator

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// Config holds worker configuration.
type Config struct {
	// TenantIDs is the list of tenants to process (empty = all via the
	// global subscription)
	TenantIDs []string
}

// NewWorker creates a new async worker.
func NewWorker(bus domain.EventBus, repo domain.Repository, orchestrator *qualify.Orchestrator) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:          bus,
		repo:         repo,
		orchestrator: orchestrator,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start begins processing messages for the given tenants.
func (w *Worker) Start(cfg Config) error {
	if len(cfg.TenantIDs) == 0 {
		return w.startGlobalWorker()
	}

	for _, tenantID := range cfg.TenantIDs {
		if err := w.startTenantWorker(tenantID); err != nil {
			slog.Error("failed to start worker for tenant",
				"tenant_id", tenantID,
				"error", err,
			)
			continue
		}
	}

	slog.Info("workers started",
		"tenant_count", len(cfg.TenantIDs),
	)

	return nil
}

// startGlobalWorker starts a worker that processes all tenants.
func (w *Worker) startGlobalWorker() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.GlobalTenant, domain.TopicLeadCreated, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("global worker started")
	return nil
}

// startTenantWorker starts a worker for a specific tenant.
func (w *Worker) startTenantWorker(tenantID string) error {
	sub, err := w.bus.Subscribe(w.ctx, tenantID, domain.TopicLeadCreated, func(ctx context.Context, msg *domain.Message) error {
		return w.processLead(ctx, tenantID, msg)
	})
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	slog.Info("tenant worker started",
		"tenant_id", tenantID,
		"topic", domain.TopicLeadCreated,
	)

	return nil
}

// handleMessage handles messages from the global subscription.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	return w.processLead(ctx, msg.TenantID, msg)
}

// LeadMessage is the message payload for async qualification.
type LeadMessage struct {
	LeadID   string `json:"leadId"`
	TenantID string `json:"tenantId"`
	TraceID  string `json:"traceId,omitempty"`
}

// processLead runs one lead through the qualification pipeline.
func (w *Worker) processLead(ctx context.Context, tenantID string, msg *domain.Message) error {
	start := time.Now()

	var leadMsg LeadMessage
	if err := json.Unmarshal(msg.Payload, &leadMsg); err != nil {
		slog.Error("failed to parse lead message",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}

	// Use message tenant if provided
	if leadMsg.TenantID != "" {
		tenantID = leadMsg.TenantID
	}

	slog.Debug("processing lead",
		"lead_id", leadMsg.LeadID,
		"tenant_id", tenantID,
	)

	lead, err := w.repo.GetLead(ctx, tenantID, leadMsg.LeadID)
	if err != nil {
		slog.Error("failed to load lead",
			"lead_id", leadMsg.LeadID,
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}

	qual, err := w.orchestrator.QualifyAndRoute(ctx, lead)
	if err != nil {
		slog.Error("qualification failed",
			"lead_id", leadMsg.LeadID,
			"tenant_id", tenantID,
			"error", err,
		)
		return err
	}

	if err := w.repo.UpdateLeadQualification(ctx, tenantID, lead.ID, qual.Score, qual.Category, qual.AssigneeID); err != nil {
		slog.Error("failed to save qualification",
			"lead_id", lead.ID,
			"error", err,
		)
		return err
	}

	w.publishOutcome(ctx, tenantID, qual)

	slog.Info("lead processed",
		"lead_id", lead.ID,
		"tenant_id", tenantID,
		"score", qual.Score,
		"category", qual.Category,
		"assignee_id", qual.AssigneeID,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}

// publishOutcome emits the qualified event, plus assignment and notification
// events when they apply. Publish failures are logged, not returned; the
// qualification itself is already durable.
func (w *Worker) publishOutcome(ctx context.Context, tenantID string, qual *domain.Qualification) {
	payload, _ := json.Marshal(qual)

	if err := w.bus.Publish(ctx, tenantID, domain.TopicLeadQualified, payload); err != nil {
		slog.Error("failed to publish qualified event",
			"lead_id", qual.LeadID,
			"error", err,
		)
	}

	if qual.Assigned() {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicLeadAssigned, payload); err != nil {
			slog.Error("failed to publish assigned event",
				"lead_id", qual.LeadID,
				"error", err,
			)
		}
	}

	if qual.Notify {
		if err := w.bus.Publish(ctx, tenantID, domain.TopicNotification, payload); err != nil {
			slog.Error("failed to publish notification",
				"lead_id", qual.LeadID,
				"error", err,
			)
		}
	}
}

// Stop gracefully stops all workers.
func (w *Worker) Stop() error {
	w.cancel()

	for _, sub := range w.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	w.subscriptions = nil

	w.wg.Wait()

	slog.Info("workers stopped")
	return nil
}

// Stats returns worker statistics.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current worker statistics.
func (w *Worker) GetStats() Stats {
	topics := make([]string, len(w.subscriptions))
	for i, sub := range w.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(w.subscriptions),
		Topics:            topics,
	}
}
