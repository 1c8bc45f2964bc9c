package b2b

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmalink/pharmalink/internal/platform/db"
	"github.com/pharmalink/pharmalink/internal/shared"
)

// Repository persists distributor orders, their lines, lots and the
// append-only timeline.
type Repository interface {
	Create(ctx context.Context, order Order) (Order, error)
	Get(ctx context.Context, orderID string) (Order, error)
	ListForTenant(ctx context.Context, tenantID string, filters ListFilters) ([]Order, error)
	// UpdateStatus moves the order from expected to next and appends the
	// timeline entry in one transaction. The expected-status guard makes
	// concurrent transitions first-writer-wins.
	UpdateStatus(ctx context.Context, orderID string, expected, next Status, entry TimelineEntry) (Order, error)
	SetAssignee(ctx context.Context, orderID, assigneeID string) error
	SetDeliveryOTP(ctx context.Context, orderID, otp string) error
	SaveLots(ctx context.Context, orderID string, lots map[string][]Lot) error
	Timeline(ctx context.Context, orderID string) ([]TimelineEntry, error)
	GenerateNumber(ctx context.Context, distributorID string, date time.Time) (string, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const orderColumns = `id, order_number, pharmacy_id, distributor_id, status, sub_total, grand_total,
	assignee_id, COALESCE(delivery_otp, ''), COALESCE(notes, ''), created_by, created_at, updated_at`

func (r *repository) Create(ctx context.Context, order Order) (Order, error) {
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO b2b_orders (id, order_number, pharmacy_id, distributor_id, status,
				sub_total, grand_total, delivery_otp, notes, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), NULLIF($9, ''), $10, $11, $11)`,
			order.ID, order.OrderNumber, order.PharmacyID, order.DistributorID, order.Status,
			order.SubTotal, order.GrandTotal, order.DeliveryOTP, order.Notes, order.CreatedBy, now,
		)
		if err != nil {
			return fmt.Errorf("insert b2b order: %w", err)
		}
		for _, line := range order.Lines {
			_, err := tx.Exec(ctx, `
				INSERT INTO b2b_order_lines (id, order_id, product_id, quantity, unit_price, line_total)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				line.ID, order.ID, line.ProductID, line.Quantity, line.UnitPrice, line.LineTotal,
			)
			if err != nil {
				return fmt.Errorf("insert b2b line: %w", err)
			}
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO b2b_order_timeline (order_id, status, actor_id, remark, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			order.ID, order.Status, order.CreatedBy, "order placed", now,
		)
		if err != nil {
			return fmt.Errorf("insert timeline entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

func (r *repository) Get(ctx context.Context, orderID string) (Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM b2b_orders WHERE id = $1`, orderID)
	order, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("b2b order %s: %w", orderID, shared.ErrNotFound)
	}
	if err != nil {
		return Order{}, err
	}

	lines, err := r.loadLines(ctx, orderID)
	if err != nil {
		return Order{}, err
	}
	order.Lines = lines
	return order, nil
}

func (r *repository) loadLines(ctx context.Context, orderID string) ([]Line, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, product_id, quantity, unit_price, line_total
		FROM b2b_order_lines WHERE order_id = $1 ORDER BY id ASC`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("list b2b lines: %w", err)
	}
	defer rows.Close()

	var lines []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ID, &l.ProductID, &l.Quantity, &l.UnitPrice, &l.LineTotal); err != nil {
			return nil, fmt.Errorf("scan b2b line: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range lines {
		lots, err := r.loadLots(ctx, lines[i].ID)
		if err != nil {
			return nil, err
		}
		lines[i].Lots = lots
	}
	return lines, nil
}

func (r *repository) loadLots(ctx context.Context, lineID string) ([]Lot, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT batch_id, batch_number, expiry_date, quantity
		FROM b2b_order_lots WHERE line_id = $1 ORDER BY expiry_date ASC`,
		lineID,
	)
	if err != nil {
		return nil, fmt.Errorf("list b2b lots: %w", err)
	}
	defer rows.Close()

	var lots []Lot
	for rows.Next() {
		var l Lot
		if err := rows.Scan(&l.BatchID, &l.BatchNumber, &l.ExpiryDate, &l.Quantity); err != nil {
			return nil, fmt.Errorf("scan b2b lot: %w", err)
		}
		lots = append(lots, l)
	}
	return lots, rows.Err()
}

func (r *repository) ListForTenant(ctx context.Context, tenantID string, filters ListFilters) ([]Order, error) {
	if filters.Limit <= 0 || filters.Limit > 200 {
		filters.Limit = 50
	}
	query := `SELECT ` + orderColumns + ` FROM b2b_orders WHERE (pharmacy_id = $1 OR distributor_id = $1)`
	args := []any{tenantID}
	if filters.Status != "" {
		args = append(args, filters.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	args = append(args, filters.Limit, filters.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list b2b orders: %w", err)
	}
	defer rows.Close()

	var result []Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan b2b order: %w", err)
		}
		result = append(result, order)
	}
	return result, rows.Err()
}

func (r *repository) UpdateStatus(ctx context.Context, orderID string, expected, next Status, entry TimelineEntry) (Order, error) {
	var order Order
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		now := time.Now().UTC()
		row := tx.QueryRow(ctx, `
			UPDATE b2b_orders SET status = $3, updated_at = $4
			WHERE id = $1 AND status = $2
			RETURNING `+orderColumns,
			orderID, expected, next, now,
		)
		var err error
		order, err = scanOrder(row)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("order %s is no longer %s: %w", orderID, expected, shared.ErrInvalidTransition)
		}
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO b2b_order_timeline (order_id, status, actor_id, remark, created_at)
			VALUES ($1, $2, $3, $4, $5)`,
			orderID, next, entry.ActorID, entry.Remark, now,
		)
		if err != nil {
			return fmt.Errorf("append timeline entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

func (r *repository) SetAssignee(ctx context.Context, orderID, assigneeID string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE b2b_orders SET assignee_id = $2, updated_at = $3 WHERE id = $1`,
		orderID, assigneeID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set assignee: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("b2b order %s: %w", orderID, shared.ErrNotFound)
	}
	return nil
}

func (r *repository) SetDeliveryOTP(ctx context.Context, orderID, otp string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE b2b_orders SET delivery_otp = $2, updated_at = $3 WHERE id = $1`,
		orderID, otp, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("set delivery otp: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("b2b order %s: %w", orderID, shared.ErrNotFound)
	}
	return nil
}

// SaveLots binds the committed distributor batches to each line, keyed
// by line id.
func (r *repository) SaveLots(ctx context.Context, orderID string, lots map[string][]Lot) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		for lineID, lineLots := range lots {
			for _, lot := range lineLots {
				_, err := tx.Exec(ctx, `
					INSERT INTO b2b_order_lots (line_id, batch_id, batch_number, expiry_date, quantity)
					VALUES ($1, $2, $3, $4, $5)`,
					lineID, lot.BatchID, lot.BatchNumber, lot.ExpiryDate, lot.Quantity,
				)
				if err != nil {
					return fmt.Errorf("insert lot for order %s: %w", orderID, err)
				}
			}
		}
		return nil
	})
}

func (r *repository) Timeline(ctx context.Context, orderID string) ([]TimelineEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, status, actor_id, COALESCE(remark, ''), created_at
		FROM b2b_order_timeline WHERE order_id = $1
		ORDER BY created_at ASC, id ASC`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}
	defer rows.Close()

	var result []TimelineEntry
	for rows.Next() {
		var e TimelineEntry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Status, &e.ActorID, &e.Remark, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan timeline entry: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// GenerateNumber hands out B2B-{YY}{MM}-{SEQ} numbers from the shared
// per-tenant sequence table.
func (r *repository) GenerateNumber(ctx context.Context, distributorID string, date time.Time) (string, error) {
	var seq int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO document_sequences (tenant_id, doc_type, period, seq)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (tenant_id, doc_type, period)
		DO UPDATE SET seq = document_sequences.seq + 1
		RETURNING seq`,
		distributorID, "B2B", date.Format("200601"),
	).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("generate order number: %w", err)
	}
	return fmt.Sprintf("B2B-%s-%04d", date.Format("0601"), seq), nil
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.PharmacyID, &o.DistributorID, &o.Status,
		&o.SubTotal, &o.GrandTotal, &o.AssigneeID, &o.DeliveryOTP, &o.Notes,
		&o.CreatedBy, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}
