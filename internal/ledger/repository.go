package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmalink/pharmalink/internal/shared"
)

// Repository persists batch rows. Quantity mutations are expressed as
// single-row conditional updates, never as read-modify-write round trips.
type Repository interface {
	UpsertInward(ctx context.Context, id string, in InwardInput) (Batch, error)
	Get(ctx context.Context, tenantID, batchID string) (Batch, error)
	ListAvailable(ctx context.Context, tenantID, productID string, usableOnly bool, now time.Time) ([]Batch, error)
	List(ctx context.Context, tenantID, productID string) ([]Batch, error)
	Deduct(ctx context.Context, tenantID, batchID string, qty int64) error
	Restock(ctx context.Context, tenantID, batchID string, qty int64) error
	ExpiringWithin(ctx context.Context, cutoff time.Time) ([]Batch, error)
	BelowMinStock(ctx context.Context) ([]LowStock, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository backed by PostgreSQL.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const batchColumns = `id, tenant_id, product_id, batch_number, expiry_date, quantity, cost_price, mrp, created_at, updated_at`

// UpsertInward creates the batch or atomically increments an existing row
// with the same (tenant, product, batch_number) key. The increment happens
// in the database so concurrent inward calls serialize without lost updates.
func (r *repository) UpsertInward(ctx context.Context, id string, in InwardInput) (Batch, error) {
	const query = `INSERT INTO batches (id, tenant_id, product_id, batch_number, expiry_date, quantity, cost_price, mrp, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		ON CONFLICT (tenant_id, product_id, batch_number)
		DO UPDATE SET quantity = batches.quantity + EXCLUDED.quantity,
		              cost_price = EXCLUDED.cost_price,
		              mrp = EXCLUDED.mrp,
		              updated_at = EXCLUDED.updated_at
		RETURNING ` + batchColumns
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx, query,
		id, in.TenantID, in.ProductID, in.BatchNumber, in.ExpiryDate, in.Quantity, in.CostPrice, in.MRP, now)
	return scanBatch(row)
}

func (r *repository) Get(ctx context.Context, tenantID, batchID string) (Batch, error) {
	const query = `SELECT ` + batchColumns + ` FROM batches WHERE tenant_id = $1 AND id = $2`
	b, err := scanBatch(r.pool.QueryRow(ctx, query, tenantID, batchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Batch{}, shared.ErrNotFound
		}
		return Batch{}, err
	}
	return b, nil
}

// ListAvailable returns batches with stock ordered by ascending expiry,
// the FIFO-by-expiry allocation order.
func (r *repository) ListAvailable(ctx context.Context, tenantID, productID string, usableOnly bool, now time.Time) ([]Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches
		WHERE tenant_id = $1 AND product_id = $2 AND quantity > 0`
	args := []any{tenantID, productID}
	if usableOnly {
		query += ` AND expiry_date >= $3`
		args = append(args, now)
	}
	query += ` ORDER BY expiry_date ASC, batch_number ASC`
	return r.queryBatches(ctx, query, args...)
}

func (r *repository) List(ctx context.Context, tenantID, productID string) ([]Batch, error) {
	query := `SELECT ` + batchColumns + ` FROM batches WHERE tenant_id = $1`
	args := []any{tenantID}
	if productID != "" {
		query += ` AND product_id = $2`
		args = append(args, productID)
	}
	query += ` ORDER BY expiry_date ASC, batch_number ASC`
	return r.queryBatches(ctx, query, args...)
}

// Deduct is the only mutation that decreases quantity. The precondition is
// checked in the same statement that decrements, so a plan made from stale
// reads can never push a batch negative.
func (r *repository) Deduct(ctx context.Context, tenantID, batchID string, qty int64) error {
	const query = `UPDATE batches SET quantity = quantity - $3, updated_at = $4
		WHERE tenant_id = $1 AND id = $2 AND quantity >= $3`
	tag, err := r.pool.Exec(ctx, query, tenantID, batchID, qty, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.Get(ctx, tenantID, batchID); err != nil {
			return err
		}
		return shared.ErrInsufficientStock
	}
	return nil
}

// Restock increments quantity; used for returns and for compensating a
// partially applied multi-batch deduction.
func (r *repository) Restock(ctx context.Context, tenantID, batchID string, qty int64) error {
	const query = `UPDATE batches SET quantity = quantity + $3, updated_at = $4
		WHERE tenant_id = $1 AND id = $2`
	tag, err := r.pool.Exec(ctx, query, tenantID, batchID, qty, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) ExpiringWithin(ctx context.Context, cutoff time.Time) ([]Batch, error) {
	const query = `SELECT ` + batchColumns + ` FROM batches
		WHERE quantity > 0 AND expiry_date <= $1
		ORDER BY tenant_id, expiry_date ASC`
	return r.queryBatches(ctx, query, cutoff)
}

func (r *repository) BelowMinStock(ctx context.Context) ([]LowStock, error) {
	const query = `SELECT p.tenant_id, p.id, p.name, p.min_stock_level, COALESCE(SUM(b.quantity), 0) AS available
		FROM products p
		LEFT JOIN batches b ON b.tenant_id = p.tenant_id AND b.product_id = p.id AND b.expiry_date >= NOW()
		WHERE p.is_active AND p.min_stock_level > 0
		GROUP BY p.tenant_id, p.id, p.name, p.min_stock_level
		HAVING COALESCE(SUM(b.quantity), 0) < p.min_stock_level`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []LowStock
	for rows.Next() {
		var ls LowStock
		if err := rows.Scan(&ls.TenantID, &ls.ProductID, &ls.ProductName, &ls.MinStock, &ls.Available); err != nil {
			return nil, err
		}
		result = append(result, ls)
	}
	return result, rows.Err()
}

func (r *repository) queryBatches(ctx context.Context, query string, args ...any) ([]Batch, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var batches []Batch
	for rows.Next() {
		var b Batch
		if err := rows.Scan(&b.ID, &b.TenantID, &b.ProductID, &b.BatchNumber, &b.ExpiryDate, &b.Quantity, &b.CostPrice, &b.MRP, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func scanBatch(row pgx.Row) (Batch, error) {
	var b Batch
	err := row.Scan(&b.ID, &b.TenantID, &b.ProductID, &b.BatchNumber, &b.ExpiryDate, &b.Quantity, &b.CostPrice, &b.MRP, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}
