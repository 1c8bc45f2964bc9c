package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/pharmalink/pharmalink/internal/ledger"
)

// LowStockScanJob notifies tenants about products below their minimum
// stock level.
type LowStockScanJob struct {
	Ledger   *ledger.Service
	Notifier TenantNotifier
	Logger   *slog.Logger
}

// NewLowStockScanJob initialises the low stock scan handler.
func NewLowStockScanJob(ledgerSvc *ledger.Service, notifier TenantNotifier, logger *slog.Logger) *LowStockScanJob {
	return &LowStockScanJob{Ledger: ledgerSvc, Notifier: notifier, Logger: logger}
}

// Handle executes one scan across all tenants.
func (j *LowStockScanJob) Handle(ctx context.Context, _ *asynq.Task) error {
	if j == nil {
		return errors.New("low stock scan: handler not configured")
	}

	low, err := j.Ledger.BelowMinStock(ctx)
	if err != nil {
		return fmt.Errorf("low stock scan: %w", err)
	}

	var notified int
	for _, item := range low {
		message := fmt.Sprintf("%s is low on stock: %d left, minimum is %d",
			item.ProductName, item.Available, item.MinStock)
		if err := j.Notifier.Notify(ctx, item.TenantID, "stock.low", message); err != nil {
			j.Logger.Warn("low stock notification failed", "tenant_id", item.TenantID, "product_id", item.ProductID, "error", err)
			continue
		}
		notified++
	}

	j.Logger.Info("low stock scan complete", "low", len(low), "notified", notified)
	return nil
}
