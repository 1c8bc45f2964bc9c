package procurement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pharmalink/pharmalink/internal/ledger"
	"github.com/pharmalink/pharmalink/internal/shared"
)

type memoryRepo struct {
	mu        sync.Mutex
	suppliers map[string]Supplier
	purchases map[string]Purchase
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{suppliers: make(map[string]Supplier), purchases: make(map[string]Purchase)}
}

func (r *memoryRepo) CreateSupplier(_ context.Context, s Supplier) (Supplier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.IsActive = true
	r.suppliers[s.ID] = s
	return s, nil
}

func (r *memoryRepo) GetSupplier(_ context.Context, tenantID, supplierID string) (Supplier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.suppliers[supplierID]
	if !ok || s.TenantID != tenantID {
		return Supplier{}, shared.ErrNotFound
	}
	return s, nil
}

func (r *memoryRepo) ListSuppliers(_ context.Context, tenantID string) ([]Supplier, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []Supplier
	for _, s := range r.suppliers {
		if s.TenantID == tenantID {
			result = append(result, s)
		}
	}
	return result, nil
}

func (r *memoryRepo) CreatePurchase(_ context.Context, p Purchase) (Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.purchases {
		if existing.TenantID == p.TenantID && existing.SupplierID == p.SupplierID && existing.InvoiceNumber == p.InvoiceNumber {
			return Purchase{}, fmt.Errorf("invoice %s already received: %w", p.InvoiceNumber, shared.ErrDuplicateKey)
		}
	}
	p.CreatedAt = time.Now().UTC()
	r.purchases[p.ID] = p
	return p, nil
}

func (r *memoryRepo) DeletePurchase(_ context.Context, tenantID, purchaseID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.purchases[purchaseID]
	if !ok || p.TenantID != tenantID {
		return nil
	}
	delete(r.purchases, purchaseID)
	return nil
}

func (r *memoryRepo) GetPurchase(_ context.Context, tenantID, purchaseID string) (Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.purchases[purchaseID]
	if !ok || p.TenantID != tenantID {
		return Purchase{}, shared.ErrNotFound
	}
	return p, nil
}

func (r *memoryRepo) ListPurchases(_ context.Context, tenantID string, _, _ int) ([]Purchase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []Purchase
	for _, p := range r.purchases {
		if p.TenantID == tenantID {
			result = append(result, p)
		}
	}
	return result, nil
}

// fakeStock counts received quantity per (product, batch number).
type fakeStock struct {
	mu       sync.Mutex
	received map[string]int64
	batchKey map[string]string
	failOn   map[string]bool
}

func (f *fakeStock) Inward(_ context.Context, in ledger.InwardInput) (ledger.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := in.ProductID + "/" + in.BatchNumber
	if f.failOn[key] {
		return ledger.Batch{}, errors.New("ledger unavailable")
	}
	f.received[key] += in.Quantity
	id := uuid.NewString()
	f.batchKey[id] = key
	return ledger.Batch{
		ID:          id,
		TenantID:    in.TenantID,
		ProductID:   in.ProductID,
		BatchNumber: in.BatchNumber,
		Quantity:    f.received[key],
	}, nil
}

func (f *fakeStock) Deduct(_ context.Context, _, batchID string, qty int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key, ok := f.batchKey[batchID]
	if !ok {
		return shared.ErrNotFound
	}
	if f.received[key] < qty {
		return shared.ErrInsufficientStock
	}
	f.received[key] -= qty
	return nil
}

type captureDebits struct {
	mu      sync.Mutex
	amounts []float64
}

func (c *captureDebits) RecordPurchaseDebit(_ context.Context, _, _ string, amount float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.amounts = append(c.amounts, amount)
	return nil
}

var supplierProduct = uuid.NewString()

func newTestService(t *testing.T) (*Service, *fakeStock, *captureDebits, Supplier) {
	t.Helper()
	repo := newMemoryRepo()
	stock := &fakeStock{received: make(map[string]int64), batchKey: make(map[string]string), failOn: make(map[string]bool)}
	debits := &captureDebits{}
	svc := NewService(repo, stock, debits, slog.Default())

	supplier, err := svc.CreateSupplier(context.Background(), Supplier{TenantID: "t1", Name: "MediSupply Co"})
	require.NoError(t, err)
	return svc, stock, debits, supplier
}

func TestInwardPurchaseReceivesStockAndRecordsDebit(t *testing.T) {
	svc, stock, debits, supplier := newTestService(t)

	purchase, err := svc.InwardPurchase(context.Background(), InwardPurchaseInput{
		TenantID:      "t1",
		SupplierID:    supplier.ID,
		InvoiceNumber: "INV-001",
		InvoiceDate:   time.Now().UTC(),
		CreatedBy:     "u1",
		Items: []InwardItem{
			{ProductID: supplierProduct, BatchNumber: "B1", ExpiryDate: time.Now().AddDate(1, 0, 0), Quantity: 100, CostPrice: 5, MRP: 8},
			{ProductID: supplierProduct, BatchNumber: "B2", ExpiryDate: time.Now().AddDate(2, 0, 0), Quantity: 50, CostPrice: 6, MRP: 9},
		},
	})
	require.NoError(t, err)
	require.InDelta(t, 100*5.0+50*6.0, purchase.Total, 0.001)

	require.EqualValues(t, 100, stock.received[supplierProduct+"/B1"])
	require.EqualValues(t, 50, stock.received[supplierProduct+"/B2"])

	require.Len(t, debits.amounts, 1)
	require.InDelta(t, purchase.Total, debits.amounts[0], 0.001)
}

func TestInwardPurchaseRejectsDuplicateInvoiceBeforeStockMoves(t *testing.T) {
	svc, stock, _, supplier := newTestService(t)
	ctx := context.Background()

	in := InwardPurchaseInput{
		TenantID:      "t1",
		SupplierID:    supplier.ID,
		InvoiceNumber: "INV-001",
		InvoiceDate:   time.Now().UTC(),
		Items: []InwardItem{
			{ProductID: supplierProduct, BatchNumber: "B1", ExpiryDate: time.Now().AddDate(1, 0, 0), Quantity: 100, CostPrice: 5},
		},
	}
	_, err := svc.InwardPurchase(ctx, in)
	require.NoError(t, err)

	_, err = svc.InwardPurchase(ctx, in)
	require.ErrorIs(t, err, shared.ErrDuplicateKey)

	// Stock from the rejected resubmission must not have landed.
	require.EqualValues(t, 100, stock.received[supplierProduct+"/B1"])
}

func TestInwardPurchasePartialFailureCompensates(t *testing.T) {
	svc, stock, debits, supplier := newTestService(t)
	ctx := context.Background()

	stock.failOn[supplierProduct+"/B2"] = true

	in := InwardPurchaseInput{
		TenantID:      "t1",
		SupplierID:    supplier.ID,
		InvoiceNumber: "INV-042",
		InvoiceDate:   time.Now().UTC(),
		CreatedBy:     "u1",
		Items: []InwardItem{
			{ProductID: supplierProduct, BatchNumber: "B1", ExpiryDate: time.Now().AddDate(1, 0, 0), Quantity: 100, CostPrice: 5, MRP: 8},
			{ProductID: supplierProduct, BatchNumber: "B2", ExpiryDate: time.Now().AddDate(2, 0, 0), Quantity: 50, CostPrice: 6, MRP: 9},
		},
	}
	_, err := svc.InwardPurchase(ctx, in)
	require.Error(t, err)

	// The first item's inward was rolled back and the purchase row is
	// gone, so nothing half-received is left behind.
	require.EqualValues(t, 0, stock.received[supplierProduct+"/B1"])
	purchases, err := svc.Purchases(ctx, "t1", 0, 0)
	require.NoError(t, err)
	require.Empty(t, purchases)
	require.Empty(t, debits.amounts)

	// The invoice number is free again; the corrected resubmission
	// succeeds in full.
	stock.failOn[supplierProduct+"/B2"] = false
	purchase, err := svc.InwardPurchase(ctx, in)
	require.NoError(t, err)
	require.EqualValues(t, 100, stock.received[supplierProduct+"/B1"])
	require.EqualValues(t, 50, stock.received[supplierProduct+"/B2"])
	require.InDelta(t, 100*5.0+50*6.0, purchase.Total, 0.001)
}

func TestInwardPurchaseValidation(t *testing.T) {
	svc, _, _, supplier := newTestService(t)
	ctx := context.Background()

	_, err := svc.InwardPurchase(ctx, InwardPurchaseInput{TenantID: "t1", SupplierID: supplier.ID, InvoiceNumber: "X"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.InwardPurchase(ctx, InwardPurchaseInput{
		TenantID:      "t1",
		SupplierID:    supplier.ID,
		InvoiceNumber: "X",
		Items:         []InwardItem{{ProductID: supplierProduct, BatchNumber: "B1", Quantity: 0}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.InwardPurchase(ctx, InwardPurchaseInput{
		TenantID:      "t1",
		SupplierID:    uuid.NewString(),
		InvoiceNumber: "X",
		Items:         []InwardItem{{ProductID: supplierProduct, BatchNumber: "B1", Quantity: 1}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}
