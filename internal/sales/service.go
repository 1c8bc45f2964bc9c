package sales

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/pharmalink/pharmalink/internal/shared"
)

// ProductInfo is the slice of the catalog a sale needs.
type ProductInfo struct {
	ID       string
	Name     string
	Price    float64
	TaxRate  float64
	IsActive bool
}

// Catalog resolves products for pricing. Backed by the catalog package
// in the composed application.
type Catalog interface {
	Product(ctx context.Context, tenantID, productID string) (ProductInfo, error)
}

// PaymentRecorder writes the money entry for a completed sale. The sale
// stands even if recording fails; the error is logged and the entry can
// be re-appended idempotently.
type PaymentRecorder interface {
	RecordSalePayment(ctx context.Context, tenantID, orderID string, amount float64, method string) error
}

// NewSaleInput is the service-level request for a point-of-sale checkout.
type NewSaleInput struct {
	TenantID      string
	CustomerName  string
	CustomerPhone string
	Discount      float64
	PaymentMethod string
	CreatedBy     string
	Lines         []NewSaleLine
}

type NewSaleLine struct {
	ProductID string
	BatchID   string
	Quantity  int64
}

type Service struct {
	repo     Repository
	catalog  Catalog
	payments PaymentRecorder
	logger   *slog.Logger
}

func NewService(repo Repository, catalog Catalog, payments PaymentRecorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, catalog: catalog, payments: payments, logger: logger}
}

// CreateSaleOrder checks out a basket. Pricing comes from the catalog at
// call time and is frozen onto the order lines; stock moves happen
// inside the repository's transaction, so a shortage on any line leaves
// every batch untouched.
func (s *Service) CreateSaleOrder(ctx context.Context, in NewSaleInput) (SaleOrder, error) {
	if len(in.Lines) == 0 {
		return SaleOrder{}, fmt.Errorf("%w: %s", shared.ErrValidation, ErrEmptyOrder)
	}
	if in.Discount < 0 {
		return SaleOrder{}, fmt.Errorf("%w: discount cannot be negative", shared.ErrValidation)
	}

	order := SaleOrder{
		ID:            uuid.NewString(),
		TenantID:      in.TenantID,
		CustomerName:  in.CustomerName,
		CustomerPhone: in.CustomerPhone,
		Discount:      round2(in.Discount),
		PaymentMethod: in.PaymentMethod,
		CreatedBy:     in.CreatedBy,
	}

	for _, l := range in.Lines {
		if l.Quantity <= 0 {
			return SaleOrder{}, fmt.Errorf("%w: line quantity must be positive", shared.ErrValidation)
		}
		product, err := s.catalog.Product(ctx, in.TenantID, l.ProductID)
		if err != nil {
			return SaleOrder{}, err
		}
		if !product.IsActive {
			return SaleOrder{}, fmt.Errorf("%w: product %s is inactive", shared.ErrValidation, product.Name)
		}

		lineTotal := round2(product.Price * float64(l.Quantity))
		order.Lines = append(order.Lines, SaleLine{
			ID:        uuid.NewString(),
			ProductID: l.ProductID,
			BatchID:   l.BatchID,
			Quantity:  l.Quantity,
			UnitPrice: product.Price,
			TaxRate:   product.TaxRate,
			LineTotal: lineTotal,
		})
		order.SubTotal += lineTotal
		order.TaxAmount += round2(lineTotal * product.TaxRate / 100)
	}
	order.SubTotal = round2(order.SubTotal)
	order.TaxAmount = round2(order.TaxAmount)
	order.GrandTotal = round2(order.SubTotal + order.TaxAmount - order.Discount)
	if order.GrandTotal < 0 {
		return SaleOrder{}, fmt.Errorf("%w: discount exceeds order total", shared.ErrValidation)
	}

	number, err := s.repo.GenerateNumber(ctx, in.TenantID, time.Now().UTC())
	if err != nil {
		return SaleOrder{}, err
	}
	order.OrderNumber = number

	created, err := s.repo.Create(ctx, order)
	if err != nil {
		return SaleOrder{}, err
	}

	if s.payments != nil && created.GrandTotal > 0 {
		if err := s.payments.RecordSalePayment(ctx, created.TenantID, created.ID, created.GrandTotal, created.PaymentMethod); err != nil {
			s.logger.Warn("sale payment entry failed", "order_id", created.ID, "error", err)
		}
	}
	return created, nil
}

func (s *Service) Get(ctx context.Context, tenantID, orderID string) (SaleOrder, error) {
	return s.repo.Get(ctx, tenantID, orderID)
}

func (s *Service) List(ctx context.Context, tenantID string, filters ListFilters) ([]SaleOrder, error) {
	return s.repo.List(ctx, tenantID, filters)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
