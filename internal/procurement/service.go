package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/pharmalink/pharmalink/internal/ledger"
	"github.com/pharmalink/pharmalink/internal/shared"
)

// StockInward receives goods into the batch ledger. Deduct reverses an
// inward when a later item of the same invoice fails.
type StockInward interface {
	Inward(ctx context.Context, in ledger.InwardInput) (ledger.Batch, error)
	Deduct(ctx context.Context, tenantID, batchID string, qty int64) error
}

// PaymentRecorder writes the debit entry for a received invoice.
type PaymentRecorder interface {
	RecordPurchaseDebit(ctx context.Context, tenantID, purchaseID string, amount float64) error
}

// InwardPurchaseInput is a received supplier invoice with its batches.
type InwardPurchaseInput struct {
	TenantID      string
	SupplierID    string
	InvoiceNumber string
	InvoiceDate   time.Time
	CreatedBy     string
	Items         []InwardItem
}

type InwardItem struct {
	ProductID   string
	BatchNumber string
	ExpiryDate  time.Time
	Quantity    int64
	CostPrice   float64
	MRP         float64
}

type Service struct {
	repo     Repository
	stock    StockInward
	payments PaymentRecorder
	logger   *slog.Logger
}

func NewService(repo Repository, stock StockInward, payments PaymentRecorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, stock: stock, payments: payments, logger: logger}
}

// InwardPurchase records a supplier invoice and feeds every item into
// the batch ledger. The invoice uniqueness check runs first, so a
// duplicated submission fails before any stock moves. A mid-invoice
// inward failure is compensated: already received quantities are
// deducted again and the purchase row is removed, releasing the invoice
// number for a corrected resubmission.
func (s *Service) InwardPurchase(ctx context.Context, in InwardPurchaseInput) (Purchase, error) {
	if len(in.Items) == 0 {
		return Purchase{}, fmt.Errorf("%w: purchase needs at least one item", shared.ErrValidation)
	}
	if in.InvoiceNumber == "" {
		return Purchase{}, fmt.Errorf("%w: invoice number required", shared.ErrValidation)
	}
	if _, err := s.repo.GetSupplier(ctx, in.TenantID, in.SupplierID); err != nil {
		return Purchase{}, err
	}

	purchase := Purchase{
		ID:            uuid.NewString(),
		TenantID:      in.TenantID,
		SupplierID:    in.SupplierID,
		InvoiceNumber: in.InvoiceNumber,
		InvoiceDate:   in.InvoiceDate,
		CreatedBy:     in.CreatedBy,
	}
	for _, item := range in.Items {
		if item.Quantity <= 0 {
			return Purchase{}, fmt.Errorf("%w: item quantity must be positive", shared.ErrValidation)
		}
		purchase.Items = append(purchase.Items, PurchaseItem{
			ID:          uuid.NewString(),
			ProductID:   item.ProductID,
			BatchNumber: item.BatchNumber,
			ExpiryDate:  item.ExpiryDate,
			Quantity:    item.Quantity,
			CostPrice:   item.CostPrice,
			MRP:         item.MRP,
		})
		purchase.Total += float64(item.Quantity) * item.CostPrice
	}
	purchase.Total = math.Round(purchase.Total*100) / 100

	created, err := s.repo.CreatePurchase(ctx, purchase)
	if err != nil {
		return Purchase{}, err
	}

	applied := make([]appliedInward, 0, len(created.Items))
	for _, item := range created.Items {
		batch, err := s.stock.Inward(ctx, ledger.InwardInput{
			TenantID:    in.TenantID,
			ProductID:   item.ProductID,
			BatchNumber: item.BatchNumber,
			ExpiryDate:  item.ExpiryDate,
			Quantity:    item.Quantity,
			CostPrice:   item.CostPrice,
			MRP:         item.MRP,
		})
		if err != nil {
			s.compensate(ctx, created, applied)
			return Purchase{}, fmt.Errorf("inward batch %s: %w", item.BatchNumber, err)
		}
		applied = append(applied, appliedInward{batchID: batch.ID, quantity: item.Quantity})
	}

	if s.payments != nil && created.Total > 0 {
		if err := s.payments.RecordPurchaseDebit(ctx, created.TenantID, created.ID, created.Total); err != nil {
			s.logger.Warn("purchase debit entry failed", "purchase_id", created.ID, "error", err)
		}
	}
	return created, nil
}

type appliedInward struct {
	batchID  string
	quantity int64
}

// compensate unwinds a partially received invoice: the quantities that
// already landed are deducted and the purchase row is deleted so the
// invoice number can be submitted again. Failures are logged; the
// conditional deduct cannot over-subtract past zero.
func (s *Service) compensate(ctx context.Context, p Purchase, applied []appliedInward) {
	for _, a := range applied {
		if err := s.stock.Deduct(ctx, p.TenantID, a.batchID, a.quantity); err != nil {
			s.logger.Error("inward compensation failed", "purchase_id", p.ID, "batch_id", a.batchID, "qty", a.quantity, "error", err)
		}
	}
	if err := s.repo.DeletePurchase(ctx, p.TenantID, p.ID); err != nil {
		s.logger.Error("purchase cleanup failed", "purchase_id", p.ID, "invoice", p.InvoiceNumber, "error", err)
	}
}

func (s *Service) CreateSupplier(ctx context.Context, supplier Supplier) (Supplier, error) {
	if supplier.Name == "" {
		return Supplier{}, fmt.Errorf("%w: supplier name required", shared.ErrValidation)
	}
	supplier.ID = uuid.NewString()
	return s.repo.CreateSupplier(ctx, supplier)
}

func (s *Service) Suppliers(ctx context.Context, tenantID string) ([]Supplier, error) {
	return s.repo.ListSuppliers(ctx, tenantID)
}

func (s *Service) Purchase(ctx context.Context, tenantID, purchaseID string) (Purchase, error) {
	return s.repo.GetPurchase(ctx, tenantID, purchaseID)
}

func (s *Service) Purchases(ctx context.Context, tenantID string, limit, offset int) ([]Purchase, error) {
	return s.repo.ListPurchases(ctx, tenantID, limit, offset)
}
