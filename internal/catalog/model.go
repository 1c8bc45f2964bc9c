// Package catalog owns tenant-scoped product metadata. It is consulted by
// the ledger and order engines but never mutates stock quantities itself.
package catalog

import "time"

// Product is a catalog entry owned by one tenant. Products are never
// deleted, only deactivated, because batches and historical orders
// reference them.
type Product struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	SKU           *string   `json:"sku,omitempty"`
	Name          string    `json:"name"`
	Unit          string    `json:"unit"`
	MinStockLevel int64     `json:"min_stock_level"`
	TaxRate       float64   `json:"tax_rate"`
	Price         float64   `json:"price"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ListFilters narrows product listings.
type ListFilters struct {
	Search   string
	IsActive *bool
	Limit    int
	Offset   int
}
