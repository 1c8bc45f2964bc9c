package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pharmalink/pharmalink/internal/shared"
)

// memoryRepo mirrors the conditional-update semantics of the SQL
// repository: every quantity mutation checks its precondition and applies
// under one lock, like a single-row atomic statement.
type memoryRepo struct {
	mu      sync.Mutex
	batches map[string]*Batch
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{batches: make(map[string]*Batch)}
}

func (r *memoryRepo) UpsertInward(_ context.Context, id string, in InwardInput) (Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.batches {
		if b.TenantID == in.TenantID && b.ProductID == in.ProductID && b.BatchNumber == in.BatchNumber {
			b.Quantity += in.Quantity
			b.CostPrice = in.CostPrice
			b.MRP = in.MRP
			return *b, nil
		}
	}
	if id == "" {
		id = uuid.NewString()
	}
	b := &Batch{
		ID:          id,
		TenantID:    in.TenantID,
		ProductID:   in.ProductID,
		BatchNumber: in.BatchNumber,
		ExpiryDate:  in.ExpiryDate,
		Quantity:    in.Quantity,
		CostPrice:   in.CostPrice,
		MRP:         in.MRP,
	}
	r.batches[id] = b
	return *b, nil
}

func (r *memoryRepo) Get(_ context.Context, tenantID, batchID string) (Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[batchID]
	if !ok || b.TenantID != tenantID {
		return Batch{}, shared.ErrNotFound
	}
	return *b, nil
}

func (r *memoryRepo) ListAvailable(_ context.Context, tenantID, productID string, usableOnly bool, now time.Time) ([]Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []Batch
	for _, b := range r.batches {
		if b.TenantID != tenantID || b.ProductID != productID || b.Quantity <= 0 {
			continue
		}
		if usableOnly && b.Expired(now) {
			continue
		}
		result = append(result, *b)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ExpiryDate.Equal(result[j].ExpiryDate) {
			return result[i].BatchNumber < result[j].BatchNumber
		}
		return result[i].ExpiryDate.Before(result[j].ExpiryDate)
	})
	return result, nil
}

func (r *memoryRepo) List(_ context.Context, tenantID, productID string) ([]Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []Batch
	for _, b := range r.batches {
		if b.TenantID != tenantID {
			continue
		}
		if productID != "" && b.ProductID != productID {
			continue
		}
		result = append(result, *b)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ExpiryDate.Before(result[j].ExpiryDate)
	})
	return result, nil
}

func (r *memoryRepo) Deduct(_ context.Context, tenantID, batchID string, qty int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[batchID]
	if !ok || b.TenantID != tenantID {
		return shared.ErrNotFound
	}
	if b.Quantity < qty {
		return shared.ErrInsufficientStock
	}
	b.Quantity -= qty
	return nil
}

func (r *memoryRepo) Restock(_ context.Context, tenantID, batchID string, qty int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.batches[batchID]
	if !ok || b.TenantID != tenantID {
		return shared.ErrNotFound
	}
	b.Quantity += qty
	return nil
}

func (r *memoryRepo) ExpiringWithin(_ context.Context, cutoff time.Time) ([]Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []Batch
	for _, b := range r.batches {
		if b.Quantity > 0 && b.ExpiryDate.Before(cutoff) {
			result = append(result, *b)
		}
	}
	return result, nil
}

func (r *memoryRepo) BelowMinStock(context.Context) ([]LowStock, error) {
	return nil, nil
}

func (r *memoryRepo) quantity(batchID string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.batches[batchID].Quantity
}

func expiry(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestInwardAccumulatesSameBatchNumber(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	b1, err := svc.Inward(ctx, InwardInput{TenantID: "t1", ProductID: "p1", BatchNumber: "B1", ExpiryDate: expiry("2025-01-01"), Quantity: 100, CostPrice: 10, MRP: 15})
	require.NoError(t, err)
	require.EqualValues(t, 100, b1.Quantity)

	b2, err := svc.Inward(ctx, InwardInput{TenantID: "t1", ProductID: "p1", BatchNumber: "B1", ExpiryDate: expiry("2025-01-01"), Quantity: 50, CostPrice: 10, MRP: 15})
	require.NoError(t, err)
	require.Equal(t, b1.ID, b2.ID)
	require.EqualValues(t, 150, b2.Quantity)

	batches, err := svc.Query(ctx, "t1", "p1")
	require.NoError(t, err)
	require.Len(t, batches, 1)
}

func TestInwardRejectsBadInput(t *testing.T) {
	svc := NewService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Inward(ctx, InwardInput{TenantID: "t1", ProductID: "p1", BatchNumber: "B1", Quantity: 0})
	require.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.Inward(ctx, InwardInput{TenantID: "t1", ProductID: "p1", BatchNumber: "B1", Quantity: 5, CostPrice: -1})
	require.ErrorIs(t, err, ErrInvalidPrice)

	_, err = svc.Inward(ctx, InwardInput{ProductID: "p1", BatchNumber: "B1", Quantity: 5})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestAllocateOrdersByExpiry(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Inward(ctx, InwardInput{TenantID: "t1", ProductID: "p1", BatchNumber: "LATE", ExpiryDate: expiry("2027-06-01"), Quantity: 40})
	require.NoError(t, err)
	_, err = svc.Inward(ctx, InwardInput{TenantID: "t1", ProductID: "p1", BatchNumber: "SOON", ExpiryDate: expiry("2026-01-01"), Quantity: 30})
	require.NoError(t, err)
	_, err = svc.Inward(ctx, InwardInput{TenantID: "t1", ProductID: "p1", BatchNumber: "MID", ExpiryDate: expiry("2026-09-01"), Quantity: 20})
	require.NoError(t, err)

	plan, err := svc.Allocate(ctx, "t1", "p1", 60, true)
	require.NoError(t, err)
	require.Len(t, plan, 3)
	require.Equal(t, "SOON", plan[0].BatchNumber)
	require.EqualValues(t, 30, plan[0].Quantity)
	require.Equal(t, "MID", plan[1].BatchNumber)
	require.EqualValues(t, 20, plan[1].Quantity)
	require.Equal(t, "LATE", plan[2].BatchNumber)
	require.EqualValues(t, 10, plan[2].Quantity)
}

func TestAllocateExcludesExpiredWhenUsableOnly(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Inward(ctx, InwardInput{TenantID: "t1", ProductID: "p1", BatchNumber: "OLD", ExpiryDate: expiry("2020-01-01"), Quantity: 100})
	require.NoError(t, err)
	_, err = svc.Inward(ctx, InwardInput{TenantID: "t1", ProductID: "p1", BatchNumber: "OK", ExpiryDate: expiry("2030-01-01"), Quantity: 10})
	require.NoError(t, err)

	_, err = svc.Allocate(ctx, "t1", "p1", 50, true)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)

	plan, err := svc.Allocate(ctx, "t1", "p1", 50, false)
	require.NoError(t, err)
	require.Equal(t, "OLD", plan[0].BatchNumber)
}

func TestAllocateInsufficientStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Inward(ctx, InwardInput{TenantID: "t1", ProductID: "p1", BatchNumber: "B1", ExpiryDate: expiry("2030-01-01"), Quantity: 5})
	require.NoError(t, err)

	_, err = svc.Allocate(ctx, "t1", "p1", 6, true)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
}

func TestDeductIsTenantScoped(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	b, err := svc.Inward(ctx, InwardInput{TenantID: "t1", ProductID: "p1", BatchNumber: "B1", ExpiryDate: expiry("2030-01-01"), Quantity: 10})
	require.NoError(t, err)

	err = svc.Deduct(ctx, "t2", b.ID, 1)
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.EqualValues(t, 10, repo.quantity(b.ID))
}

func TestConcurrentDeductNeverOversells(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	b, err := svc.Inward(ctx, InwardInput{TenantID: "t1", ProductID: "p1", BatchNumber: "B1", ExpiryDate: expiry("2030-01-01"), Quantity: 100})
	require.NoError(t, err)

	// Two concurrent sales of 80 against 100 units: exactly one wins.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = svc.Deduct(ctx, "t1", b.ID, 80)
		}(i)
	}
	wg.Wait()

	var failures int
	for _, err := range errs {
		if err != nil {
			require.ErrorIs(t, err, shared.ErrInsufficientStock)
			failures++
		}
	}
	require.Equal(t, 1, failures)
	require.EqualValues(t, 20, repo.quantity(b.ID))
}

func TestConcurrentDeductSumNeverExceedsStart(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	const start, workers, each = 50, 20, 5
	b, err := svc.Inward(ctx, InwardInput{TenantID: "t1", ProductID: "p1", BatchNumber: "B1", ExpiryDate: expiry("2030-01-01"), Quantity: start})
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.Deduct(ctx, "t1", b.ID, each)
		}(i)
	}
	wg.Wait()

	var succeeded int64
	for _, err := range results {
		if err == nil {
			succeeded += each
		}
	}
	require.LessOrEqual(t, succeeded, int64(start))
	require.EqualValues(t, int64(start)-succeeded, repo.quantity(b.ID))
	require.GreaterOrEqual(t, repo.quantity(b.ID), int64(0))
}

func TestCommitPlanCompensatesOnFailure(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	b1, err := svc.Inward(ctx, InwardInput{TenantID: "t1", ProductID: "p1", BatchNumber: "B1", ExpiryDate: expiry("2030-01-01"), Quantity: 10})
	require.NoError(t, err)

	plan := []Allocation{
		{BatchID: b1.ID, Quantity: 10},
		{BatchID: "missing", Quantity: 5},
	}
	_, err = svc.CommitPlan(ctx, "t1", plan)
	require.Error(t, err)
	require.EqualValues(t, 10, repo.quantity(b1.ID), "first deduction must be compensated")
}

func TestCommitPlanSuccess(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	b1, err := svc.Inward(ctx, InwardInput{TenantID: "t1", ProductID: "p1", BatchNumber: "B1", ExpiryDate: expiry("2026-01-01"), Quantity: 30})
	require.NoError(t, err)
	b2, err := svc.Inward(ctx, InwardInput{TenantID: "t1", ProductID: "p1", BatchNumber: "B2", ExpiryDate: expiry("2027-01-01"), Quantity: 30})
	require.NoError(t, err)

	plan, err := svc.Allocate(ctx, "t1", "p1", 45, true)
	require.NoError(t, err)

	lots, err := svc.CommitPlan(ctx, "t1", plan)
	require.NoError(t, err)
	require.Len(t, lots, 2)
	require.EqualValues(t, 0, repo.quantity(b1.ID))
	require.EqualValues(t, 15, repo.quantity(b2.ID))
}

func TestZeroQuantityBatchRetained(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	b, err := svc.Inward(ctx, InwardInput{TenantID: "t1", ProductID: "p1", BatchNumber: "B1", ExpiryDate: expiry("2030-01-01"), Quantity: 10})
	require.NoError(t, err)
	require.NoError(t, svc.Deduct(ctx, "t1", b.ID, 10))

	batches, err := svc.Query(ctx, "t1", "p1")
	require.NoError(t, err)
	require.Len(t, batches, 1, "consumed batches stay for the audit trail")
	require.EqualValues(t, 0, batches[0].Quantity)

	// But they are no longer allocatable.
	_, err = svc.Allocate(ctx, "t1", "p1", 1, true)
	require.ErrorIs(t, err, shared.ErrInsufficientStock)
}

func TestExpiringSoon(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	near := time.Now().UTC().Add(48 * time.Hour).Format("2006-01-02")
	far := time.Now().UTC().Add(90 * 24 * time.Hour).Format("2006-01-02")
	_, err := svc.Inward(ctx, InwardInput{TenantID: "t1", ProductID: "p1", BatchNumber: fmt.Sprintf("N-%s", near), ExpiryDate: expiry(near), Quantity: 5})
	require.NoError(t, err)
	_, err = svc.Inward(ctx, InwardInput{TenantID: "t1", ProductID: "p1", BatchNumber: fmt.Sprintf("F-%s", far), ExpiryDate: expiry(far), Quantity: 5})
	require.NoError(t, err)

	soon, err := svc.ExpiringSoon(ctx, 7*24*time.Hour)
	require.NoError(t, err)
	require.Len(t, soon, 1)
}
