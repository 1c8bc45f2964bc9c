package catalog

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmalink/pharmalink/internal/shared"
)

// Repository persists products. Every query is tenant-scoped.
type Repository interface {
	List(ctx context.Context, tenantID string, filters ListFilters) ([]Product, int, error)
	Get(ctx context.Context, tenantID, id string) (Product, error)
	Create(ctx context.Context, p Product) (Product, error)
	Update(ctx context.Context, tenantID, id string, p Product) error
	Deactivate(ctx context.Context, tenantID, id string) error
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository constructs a Repository backed by PostgreSQL.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

const productColumns = `id, tenant_id, sku, name, unit, min_stock_level, tax_rate, price, is_active, created_at, updated_at`

func (r *repository) List(ctx context.Context, tenantID string, filters ListFilters) ([]Product, int, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE tenant_id = $1`
	countQuery := `SELECT COUNT(*) FROM products WHERE tenant_id = $1`
	args := []any{tenantID}
	argCount := 1

	if filters.Search != "" {
		argCount++
		cond := ` AND (name ILIKE $` + strconv.Itoa(argCount) + ` OR sku ILIKE $` + strconv.Itoa(argCount) + `)`
		query += cond
		countQuery += cond
		args = append(args, "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		argCount++
		cond := ` AND is_active = $` + strconv.Itoa(argCount)
		query += cond
		countQuery += cond
		args = append(args, *filters.IsActive)
	}

	var total int
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY name`
	if filters.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filters.Limit)
		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		args = append(args, filters.Offset)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.TenantID, &p.SKU, &p.Name, &p.Unit, &p.MinStockLevel, &p.TaxRate, &p.Price, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, tenantID, id string) (Product, error) {
	const query = `SELECT ` + productColumns + ` FROM products WHERE tenant_id = $1 AND id = $2`
	var p Product
	err := r.db.QueryRow(ctx, query, tenantID, id).Scan(&p.ID, &p.TenantID, &p.SKU, &p.Name, &p.Unit, &p.MinStockLevel, &p.TaxRate, &p.Price, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, shared.ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (r *repository) Create(ctx context.Context, p Product) (Product, error) {
	const query = `INSERT INTO products (id, tenant_id, sku, name, unit, min_stock_level, tax_rate, price, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	_, err := r.db.Exec(ctx, query, p.ID, p.TenantID, p.SKU, p.Name, p.Unit, p.MinStockLevel, p.TaxRate, p.Price, p.IsActive, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Product{}, shared.ErrDuplicateKey
		}
		return Product{}, err
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	return p, nil
}

func (r *repository) Update(ctx context.Context, tenantID, id string, p Product) error {
	const query = `UPDATE products SET sku = $1, name = $2, unit = $3, min_stock_level = $4, tax_rate = $5, price = $6, updated_at = $7
		WHERE tenant_id = $8 AND id = $9`
	tag, err := r.db.Exec(ctx, query, p.SKU, p.Name, p.Unit, p.MinStockLevel, p.TaxRate, p.Price, time.Now().UTC(), tenantID, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return shared.ErrDuplicateKey
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func (r *repository) Deactivate(ctx context.Context, tenantID, id string) error {
	const query = `UPDATE products SET is_active = FALSE, updated_at = $1 WHERE tenant_id = $2 AND id = $3`
	tag, err := r.db.Exec(ctx, query, time.Now().UTC(), tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
