package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pharmalink/pharmalink/internal/shared"
)

// Service coordinates batch ledger operations. Allocation is split into a
// non-mutating planning phase (Allocate) and a mutating commit phase
// (Deduct) so callers can show a quote before committing; the commit
// re-validates against live quantities, which is the safety-critical
// invariant of the whole system.
type Service struct {
	repo Repository
}

// NewService builds a Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Inward creates a new batch or increments an existing one with the same
// (tenant, product, batch number) key.
func (s *Service) Inward(ctx context.Context, in InwardInput) (Batch, error) {
	if in.TenantID == "" || in.ProductID == "" || in.BatchNumber == "" {
		return Batch{}, fmt.Errorf("%w: tenant, product and batch number required", shared.ErrValidation)
	}
	if in.Quantity <= 0 {
		return Batch{}, ErrInvalidQuantity
	}
	if in.CostPrice < 0 || in.MRP < 0 {
		return Batch{}, ErrInvalidPrice
	}
	return s.repo.UpsertInward(ctx, "", in)
}

// Allocate plans a batch split covering qty using FIFO-by-expiry order.
// It is read-only; quantities may change between plan and commit, so
// Deduct re-validates. usableOnly excludes already-expired stock.
func (s *Service) Allocate(ctx context.Context, tenantID, productID string, qty int64, usableOnly bool) ([]Allocation, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}
	batches, err := s.repo.ListAvailable(ctx, tenantID, productID, usableOnly, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	var plan []Allocation
	remaining := qty
	for _, b := range batches {
		if remaining == 0 {
			break
		}
		take := b.Quantity
		if take > remaining {
			take = remaining
		}
		plan = append(plan, Allocation{
			BatchID:     b.ID,
			BatchNumber: b.BatchNumber,
			ExpiryDate:  b.ExpiryDate,
			Quantity:    take,
		})
		remaining -= take
	}
	if remaining > 0 {
		return nil, fmt.Errorf("%w: short %d of %d requested", shared.ErrInsufficientStock, remaining, qty)
	}
	return plan, nil
}

// Deduct decreases one batch's quantity, failing with ErrInsufficientStock
// when the live quantity no longer covers qty. No partial deduction occurs.
func (s *Service) Deduct(ctx context.Context, tenantID, batchID string, qty int64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	return s.repo.Deduct(ctx, tenantID, batchID, qty)
}

// Restock adds quantity back to a batch (returns, compensation).
func (s *Service) Restock(ctx context.Context, tenantID, batchID string, qty int64) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	return s.repo.Restock(ctx, tenantID, batchID, qty)
}

// Get returns a single batch scoped to the tenant.
func (s *Service) Get(ctx context.Context, tenantID, batchID string) (Batch, error) {
	return s.repo.Get(ctx, tenantID, batchID)
}

// Query returns current batches, optionally filtered by product, sorted by
// ascending expiry.
func (s *Service) Query(ctx context.Context, tenantID, productID string) ([]Batch, error) {
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant required", shared.ErrValidation)
	}
	return s.repo.List(ctx, tenantID, productID)
}

// CommitPlan deducts every allocation in the plan, compensating
// already-applied deductions when a later one fails. Returns the lots that
// were committed on success.
func (s *Service) CommitPlan(ctx context.Context, tenantID string, plan []Allocation) ([]Allocation, error) {
	var applied []Allocation
	for _, lot := range plan {
		if err := s.Deduct(ctx, tenantID, lot.BatchID, lot.Quantity); err != nil {
			s.rollback(ctx, tenantID, applied)
			return nil, err
		}
		applied = append(applied, lot)
	}
	return applied, nil
}

// RollbackPlan restores previously committed lots.
func (s *Service) RollbackPlan(ctx context.Context, tenantID string, lots []Allocation) error {
	var failed error
	for _, lot := range lots {
		if err := s.Restock(ctx, tenantID, lot.BatchID, lot.Quantity); err != nil {
			failed = errors.Join(failed, fmt.Errorf("restock batch %s: %w", lot.BatchID, err))
		}
	}
	return failed
}

// ExpiringSoon lists batches with stock that expire before the horizon.
func (s *Service) ExpiringSoon(ctx context.Context, horizon time.Duration) ([]Batch, error) {
	return s.repo.ExpiringWithin(ctx, time.Now().UTC().Add(horizon))
}

// BelowMinStock lists products whose usable stock dropped under the
// configured minimum.
func (s *Service) BelowMinStock(ctx context.Context) ([]LowStock, error) {
	return s.repo.BelowMinStock(ctx)
}

func (s *Service) rollback(ctx context.Context, tenantID string, applied []Allocation) {
	_ = s.RollbackPlan(ctx, tenantID, applied)
}
