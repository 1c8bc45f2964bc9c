package sales

import (
	"errors"
	"time"
)

// SaleOrder is an immutable point-of-sale snapshot. Lines bind the exact
// batch, quantity and unit price at sale time; nothing on the order is
// ever edited afterwards.
type SaleOrder struct {
	ID            string     `json:"id"`
	TenantID      string     `json:"tenant_id"`
	OrderNumber   string     `json:"order_number"`
	CustomerName  string     `json:"customer_name,omitempty"`
	CustomerPhone string     `json:"customer_phone,omitempty"`
	Lines         []SaleLine `json:"lines"`
	SubTotal      float64    `json:"sub_total"`
	TaxAmount     float64    `json:"tax_amount"`
	Discount      float64    `json:"discount"`
	GrandTotal    float64    `json:"grand_total"`
	PaymentMethod string     `json:"payment_method"`
	CreatedBy     string     `json:"created_by"`
	CreatedAt     time.Time  `json:"created_at"`
}

// SaleLine is one batch deduction inside a sale.
type SaleLine struct {
	ID        string  `json:"id"`
	ProductID string  `json:"product_id"`
	BatchID   string  `json:"batch_id"`
	Quantity  int64   `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	TaxRate   float64 `json:"tax_rate"`
	LineTotal float64 `json:"line_total"`
}

// ErrEmptyOrder rejects sales with no lines.
var ErrEmptyOrder = errors.New("sales: order needs at least one line")

// ListFilters narrows order listings.
type ListFilters struct {
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}
