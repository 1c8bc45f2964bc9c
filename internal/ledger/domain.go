// Package ledger is the stock-of-record: per-tenant, per-product, per-batch
// quantities with expiry metadata. It owns every quantity mutation on the
// platform.
package ledger

import (
	"errors"
	"time"
)

// Batch is the atomic stock unit: a quantity of one product received
// together, tracked with its own expiry and cost. (tenant, product,
// batch number) is unique; quantities never go negative; fully consumed
// batches are retained for the audit trail.
type Batch struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	ProductID   string    `json:"product_id"`
	BatchNumber string    `json:"batch_number"`
	ExpiryDate  time.Time `json:"expiry_date"`
	Quantity    int64     `json:"quantity"`
	CostPrice   float64   `json:"cost_price"`
	MRP         float64   `json:"mrp"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Expired reports whether the batch is past its expiry date.
func (b Batch) Expired(now time.Time) bool {
	return !b.ExpiryDate.IsZero() && b.ExpiryDate.Before(now)
}

// InwardInput describes a stock receipt. Re-supplying an existing batch
// number increments the existing row.
type InwardInput struct {
	TenantID    string
	ProductID   string
	BatchNumber string
	ExpiryDate  time.Time
	Quantity    int64
	CostPrice   float64
	MRP         float64
}

// Allocation binds one batch to a quantity inside an allocation plan.
type Allocation struct {
	BatchID     string    `json:"batch_id"`
	BatchNumber string    `json:"batch_number"`
	ExpiryDate  time.Time `json:"expiry_date"`
	Quantity    int64     `json:"quantity"`
}

// LowStock reports a product whose usable quantity fell below its
// configured minimum.
type LowStock struct {
	TenantID    string `json:"tenant_id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	MinStock    int64  `json:"min_stock"`
	Available   int64  `json:"available"`
}

// ErrInvalidQuantity indicates a non-positive quantity.
var ErrInvalidQuantity = errors.New("ledger: quantity must be positive")

// ErrInvalidPrice indicates a negative price.
var ErrInvalidPrice = errors.New("ledger: price must be >= 0")
