package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/pharmalink/pharmalink/internal/ledger"
)

// TenantNotifier delivers a durable notification to one tenant.
type TenantNotifier interface {
	Notify(ctx context.Context, tenantID, kind, message string) error
}

// ExpirySweepJob notifies tenants about batches that expire within the
// horizon.
type ExpirySweepJob struct {
	Ledger   *ledger.Service
	Notifier TenantNotifier
	Logger   *slog.Logger
	Horizon  time.Duration
}

// NewExpirySweepJob initialises the expiry sweep handler.
func NewExpirySweepJob(ledgerSvc *ledger.Service, notifier TenantNotifier, logger *slog.Logger, horizon time.Duration) *ExpirySweepJob {
	if horizon <= 0 {
		horizon = 30 * 24 * time.Hour
	}
	return &ExpirySweepJob{Ledger: ledgerSvc, Notifier: notifier, Logger: logger, Horizon: horizon}
}

// Handle executes one sweep. Each expiring batch yields one
// notification to its owning tenant; a notification failure skips that
// batch but keeps the sweep going.
func (j *ExpirySweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("expiry sweep: handler not configured")
	}
	horizon := j.Horizon
	var payload ExpirySweepPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
		if payload.HorizonHours > 0 {
			horizon = time.Duration(payload.HorizonHours) * time.Hour
		}
	}

	batches, err := j.Ledger.ExpiringSoon(ctx, horizon)
	if err != nil {
		return fmt.Errorf("expiry sweep: %w", err)
	}

	var notified int
	for _, b := range batches {
		message := fmt.Sprintf("batch %s expires on %s (%d units left)",
			b.BatchNumber, b.ExpiryDate.Format("2006-01-02"), b.Quantity)
		if err := j.Notifier.Notify(ctx, b.TenantID, "stock.expiring", message); err != nil {
			j.Logger.Warn("expiry notification failed", "tenant_id", b.TenantID, "batch_id", b.ID, "error", err)
			continue
		}
		notified++
	}

	j.Logger.Info("expiry sweep complete", "expiring", len(batches), "notified", notified)
	return nil
}
