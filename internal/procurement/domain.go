package procurement

import "time"

// Supplier is a tenant-scoped vendor record.
type Supplier struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	GSTIN     string    `json:"gstin,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Purchase is a received supplier invoice. Each item lands in the batch
// ledger as inward stock; (tenant, supplier, invoice number) is unique
// so the same invoice cannot be received twice.
type Purchase struct {
	ID            string         `json:"id"`
	TenantID      string         `json:"tenant_id"`
	SupplierID    string         `json:"supplier_id"`
	InvoiceNumber string         `json:"invoice_number"`
	InvoiceDate   time.Time      `json:"invoice_date"`
	Items         []PurchaseItem `json:"items"`
	Total         float64        `json:"total"`
	CreatedBy     string         `json:"created_by"`
	CreatedAt     time.Time      `json:"created_at"`
}

// PurchaseItem is one received batch line.
type PurchaseItem struct {
	ID          string    `json:"id"`
	ProductID   string    `json:"product_id"`
	BatchNumber string    `json:"batch_number"`
	ExpiryDate  time.Time `json:"expiry_date"`
	Quantity    int64     `json:"quantity"`
	CostPrice   float64   `json:"cost_price"`
	MRP         float64   `json:"mrp"`
}
