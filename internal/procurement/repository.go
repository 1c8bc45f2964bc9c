package procurement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmalink/pharmalink/internal/shared"
)

// Repository persists suppliers and purchase records.
type Repository interface {
	CreateSupplier(ctx context.Context, s Supplier) (Supplier, error)
	GetSupplier(ctx context.Context, tenantID, supplierID string) (Supplier, error)
	ListSuppliers(ctx context.Context, tenantID string) ([]Supplier, error)
	CreatePurchase(ctx context.Context, p Purchase) (Purchase, error)
	DeletePurchase(ctx context.Context, tenantID, purchaseID string) error
	GetPurchase(ctx context.Context, tenantID, purchaseID string) (Purchase, error)
	ListPurchases(ctx context.Context, tenantID string, limit, offset int) ([]Purchase, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) CreateSupplier(ctx context.Context, s Supplier) (Supplier, error) {
	now := time.Now().UTC()
	s.CreatedAt = now
	s.UpdatedAt = now
	s.IsActive = true
	_, err := r.pool.Exec(ctx, `
		INSERT INTO suppliers (id, tenant_id, name, phone, email, gstin, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), TRUE, $7, $7)`,
		s.ID, s.TenantID, s.Name, s.Phone, s.Email, s.GSTIN, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Supplier{}, fmt.Errorf("supplier %s: %w", s.Name, shared.ErrDuplicateKey)
		}
		return Supplier{}, fmt.Errorf("create supplier: %w", err)
	}
	return s, nil
}

func (r *repository) GetSupplier(ctx context.Context, tenantID, supplierID string) (Supplier, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, name, COALESCE(phone, ''), COALESCE(email, ''), COALESCE(gstin, ''), is_active, created_at, updated_at
		FROM suppliers WHERE tenant_id = $1 AND id = $2`,
		tenantID, supplierID,
	)
	var s Supplier
	err := row.Scan(&s.ID, &s.TenantID, &s.Name, &s.Phone, &s.Email, &s.GSTIN, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, fmt.Errorf("supplier %s: %w", supplierID, shared.ErrNotFound)
	}
	return s, err
}

func (r *repository) ListSuppliers(ctx context.Context, tenantID string) ([]Supplier, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, name, COALESCE(phone, ''), COALESCE(email, ''), COALESCE(gstin, ''), is_active, created_at, updated_at
		FROM suppliers WHERE tenant_id = $1 AND is_active = TRUE
		ORDER BY name ASC`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()

	var result []Supplier
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.ID, &s.TenantID, &s.Name, &s.Phone, &s.Email, &s.GSTIN, &s.IsActive, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan supplier: %w", err)
		}
		result = append(result, s)
	}
	return result, rows.Err()
}

// CreatePurchase inserts the purchase header and items. The invoice
// uniqueness constraint fires here, before any stock moves.
func (r *repository) CreatePurchase(ctx context.Context, p Purchase) (Purchase, error) {
	now := time.Now().UTC()
	p.CreatedAt = now

	_, err := r.pool.Exec(ctx, `
		INSERT INTO purchases (id, tenant_id, supplier_id, invoice_number, invoice_date, total, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.TenantID, p.SupplierID, p.InvoiceNumber, p.InvoiceDate, p.Total, p.CreatedBy, now,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Purchase{}, fmt.Errorf("invoice %s already received: %w", p.InvoiceNumber, shared.ErrDuplicateKey)
		}
		return Purchase{}, fmt.Errorf("create purchase: %w", err)
	}

	for _, item := range p.Items {
		_, err := r.pool.Exec(ctx, `
			INSERT INTO purchase_items (id, purchase_id, product_id, batch_number, expiry_date, quantity, cost_price, mrp)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			item.ID, p.ID, item.ProductID, item.BatchNumber, item.ExpiryDate, item.Quantity, item.CostPrice, item.MRP,
		)
		if err != nil {
			return Purchase{}, fmt.Errorf("insert purchase item: %w", err)
		}
	}
	return p, nil
}

// DeletePurchase removes a purchase whose inward was compensated.
// Items go with it via the cascade.
func (r *repository) DeletePurchase(ctx context.Context, tenantID, purchaseID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM purchases WHERE tenant_id = $1 AND id = $2`, tenantID, purchaseID)
	if err != nil {
		return fmt.Errorf("delete purchase: %w", err)
	}
	return nil
}

func (r *repository) GetPurchase(ctx context.Context, tenantID, purchaseID string) (Purchase, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, supplier_id, invoice_number, invoice_date, total, created_by, created_at
		FROM purchases WHERE tenant_id = $1 AND id = $2`,
		tenantID, purchaseID,
	)
	var p Purchase
	err := row.Scan(&p.ID, &p.TenantID, &p.SupplierID, &p.InvoiceNumber, &p.InvoiceDate, &p.Total, &p.CreatedBy, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Purchase{}, fmt.Errorf("purchase %s: %w", purchaseID, shared.ErrNotFound)
	}
	if err != nil {
		return Purchase{}, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, product_id, batch_number, expiry_date, quantity, cost_price, mrp
		FROM purchase_items WHERE purchase_id = $1 ORDER BY id ASC`,
		purchaseID,
	)
	if err != nil {
		return Purchase{}, fmt.Errorf("list purchase items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var item PurchaseItem
		if err := rows.Scan(&item.ID, &item.ProductID, &item.BatchNumber, &item.ExpiryDate, &item.Quantity, &item.CostPrice, &item.MRP); err != nil {
			return Purchase{}, fmt.Errorf("scan purchase item: %w", err)
		}
		p.Items = append(p.Items, item)
	}
	return p, rows.Err()
}

func (r *repository) ListPurchases(ctx context.Context, tenantID string, limit, offset int) ([]Purchase, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, tenant_id, supplier_id, invoice_number, invoice_date, total, created_by, created_at
		FROM purchases WHERE tenant_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
		tenantID, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	var result []Purchase
	for rows.Next() {
		var p Purchase
		if err := rows.Scan(&p.ID, &p.TenantID, &p.SupplierID, &p.InvoiceNumber, &p.InvoiceDate, &p.Total, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan purchase: %w", err)
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
