package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmalink/pharmalink/internal/platform/db"
	"github.com/pharmalink/pharmalink/internal/shared"
)

// Repository persists sale orders. Create is all-or-nothing: stock
// deductions and the order snapshot land in one transaction or not at
// all.
type Repository interface {
	Create(ctx context.Context, order SaleOrder) (SaleOrder, error)
	Get(ctx context.Context, tenantID, orderID string) (SaleOrder, error)
	List(ctx context.Context, tenantID string, filters ListFilters) ([]SaleOrder, error)
	GenerateNumber(ctx context.Context, tenantID string, date time.Time) (string, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

// Create deducts every line's batch with a conditional update and writes
// the order plus lines, all inside one transaction. A batch short on
// stock fails the conditional update, aborting the whole sale.
func (r *repository) Create(ctx context.Context, order SaleOrder) (SaleOrder, error) {
	now := time.Now().UTC()
	order.CreatedAt = now

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for _, line := range order.Lines {
			tag, err := tx.Exec(ctx, `
				UPDATE batches SET quantity = quantity - $3, updated_at = $4
				WHERE tenant_id = $1 AND id = $2 AND quantity >= $3`,
				order.TenantID, line.BatchID, line.Quantity, now,
			)
			if err != nil {
				return fmt.Errorf("deduct batch %s: %w", line.BatchID, err)
			}
			if tag.RowsAffected() == 0 {
				var exists bool
				if err := tx.QueryRow(ctx,
					`SELECT EXISTS (SELECT 1 FROM batches WHERE tenant_id = $1 AND id = $2)`,
					order.TenantID, line.BatchID,
				).Scan(&exists); err != nil {
					return fmt.Errorf("check batch %s: %w", line.BatchID, err)
				}
				if !exists {
					return fmt.Errorf("batch %s: %w", line.BatchID, shared.ErrNotFound)
				}
				return fmt.Errorf("batch %s: %w", line.BatchID, shared.ErrInsufficientStock)
			}
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO sale_orders (id, tenant_id, order_number, customer_name, customer_phone,
				sub_total, tax_amount, discount, grand_total, payment_method, created_by, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			order.ID, order.TenantID, order.OrderNumber, order.CustomerName, order.CustomerPhone,
			order.SubTotal, order.TaxAmount, order.Discount, order.GrandTotal, order.PaymentMethod,
			order.CreatedBy, now,
		)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return fmt.Errorf("order number %s: %w", order.OrderNumber, shared.ErrDuplicateKey)
			}
			return fmt.Errorf("insert sale order: %w", err)
		}

		for _, line := range order.Lines {
			_, err := tx.Exec(ctx, `
				INSERT INTO sale_order_lines (id, order_id, product_id, batch_id, quantity, unit_price, tax_rate, line_total)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				line.ID, order.ID, line.ProductID, line.BatchID, line.Quantity, line.UnitPrice, line.TaxRate, line.LineTotal,
			)
			if err != nil {
				return fmt.Errorf("insert sale line: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return SaleOrder{}, err
	}
	return order, nil
}

func (r *repository) Get(ctx context.Context, tenantID, orderID string) (SaleOrder, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, tenant_id, order_number, COALESCE(customer_name, ''), COALESCE(customer_phone, ''),
			sub_total, tax_amount, discount, grand_total, payment_method, created_by, created_at
		FROM sale_orders WHERE tenant_id = $1 AND id = $2`,
		tenantID, orderID,
	)
	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return SaleOrder{}, fmt.Errorf("sale order %s: %w", orderID, shared.ErrNotFound)
	}
	if err != nil {
		return SaleOrder{}, err
	}

	lines, err := r.pool.Query(ctx, `
		SELECT id, product_id, batch_id, quantity, unit_price, tax_rate, line_total
		FROM sale_order_lines WHERE order_id = $1
		ORDER BY id ASC`,
		orderID,
	)
	if err != nil {
		return SaleOrder{}, fmt.Errorf("list sale lines: %w", err)
	}
	defer lines.Close()

	for lines.Next() {
		var l SaleLine
		if err := lines.Scan(&l.ID, &l.ProductID, &l.BatchID, &l.Quantity, &l.UnitPrice, &l.TaxRate, &l.LineTotal); err != nil {
			return SaleOrder{}, fmt.Errorf("scan sale line: %w", err)
		}
		order.Lines = append(order.Lines, l)
	}
	return order, lines.Err()
}

func (r *repository) List(ctx context.Context, tenantID string, filters ListFilters) ([]SaleOrder, error) {
	if filters.Limit <= 0 || filters.Limit > 200 {
		filters.Limit = 50
	}
	query := `
		SELECT id, tenant_id, order_number, COALESCE(customer_name, ''), COALESCE(customer_phone, ''),
			sub_total, tax_amount, discount, grand_total, payment_method, created_by, created_at
		FROM sale_orders WHERE tenant_id = $1`
	args := []any{tenantID}
	if !filters.From.IsZero() {
		args = append(args, filters.From)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if !filters.To.IsZero() {
		args = append(args, filters.To)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	args = append(args, filters.Limit, filters.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sale orders: %w", err)
	}
	defer rows.Close()

	var result []SaleOrder
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sale order: %w", err)
		}
		result = append(result, order)
	}
	return result, rows.Err()
}

// GenerateNumber hands out POS-{YY}{MM}-{SEQ} numbers from an atomic
// per-tenant, per-month sequence row.
func (r *repository) GenerateNumber(ctx context.Context, tenantID string, date time.Time) (string, error) {
	var seq int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO document_sequences (tenant_id, doc_type, period, seq)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (tenant_id, doc_type, period)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq`,
		tenantID, "POS", date.Format("200601"),
	).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("generate order number: %w", err)
	}
	return fmt.Sprintf("POS-%s-%04d", date.Format("0601"), seq), nil
}

func scanOrder(row pgx.Row) (SaleOrder, error) {
	var o SaleOrder
	err := row.Scan(&o.ID, &o.TenantID, &o.OrderNumber, &o.CustomerName, &o.CustomerPhone,
		&o.SubTotal, &o.TaxAmount, &o.Discount, &o.GrandTotal, &o.PaymentMethod, &o.CreatedBy, &o.CreatedAt)
	return o, err
}
