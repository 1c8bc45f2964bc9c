// Package payments keeps an append-only money trail for orders and
// purchases. Entries are never updated or deleted; corrections are new
// entries in the opposite direction.
package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pharmalink/pharmalink/internal/shared"
)

// EntryType is the direction of a payment entry.
type EntryType string

const (
	Credit EntryType = "credit"
	Debit  EntryType = "debit"
)

// RefKind names the document a payment entry belongs to.
type RefKind string

const (
	RefSaleOrder RefKind = "sale_order"
	RefPurchase  RefKind = "purchase"
	RefB2BOrder  RefKind = "b2b_order"
)

// Entry is one immutable payment record. (tenant, ref kind, ref id, seq)
// is unique, which makes retried appends idempotent.
type Entry struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	RefKind   RefKind   `json:"ref_kind"`
	RefID     string    `json:"ref_id"`
	Seq       int       `json:"seq"`
	Type      EntryType `json:"type"`
	Amount    float64   `json:"amount"`
	Method    string    `json:"method"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists payment entries.
type Store interface {
	Append(ctx context.Context, e Entry) error
	ListByRef(ctx context.Context, tenantID string, kind RefKind, refID string) ([]Entry, error)
}

type store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) Store {
	return &store{pool: pool}
}

// Append writes one entry. A duplicate (tenant, ref, seq) means the same
// logical entry was already recorded, so the write succeeds silently.
func (s *store) Append(ctx context.Context, e Entry) error {
	if e.Amount <= 0 {
		return fmt.Errorf("%w: payment amount must be positive", shared.ErrValidation)
	}
	if e.Type != Credit && e.Type != Debit {
		return fmt.Errorf("%w: unknown entry type %q", shared.ErrValidation, e.Type)
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO payment_entries (id, tenant_id, ref_kind, ref_id, seq, entry_type, amount, method, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.TenantID, e.RefKind, e.RefID, e.Seq, e.Type, e.Amount, e.Method, e.Note, time.Now().UTC(),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil
		}
		return fmt.Errorf("append payment entry: %w", err)
	}
	return nil
}

func (s *store) ListByRef(ctx context.Context, tenantID string, kind RefKind, refID string) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, ref_kind, ref_id, seq, entry_type, amount, method, COALESCE(note, ''), created_at
		FROM payment_entries
		WHERE tenant_id = $1 AND ref_kind = $2 AND ref_id = $3
		ORDER BY seq ASC`,
		tenantID, kind, refID,
	)
	if err != nil {
		return nil, fmt.Errorf("list payment entries: %w", err)
	}
	defer rows.Close()

	var result []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.RefKind, &e.RefID, &e.Seq, &e.Type, &e.Amount, &e.Method, &e.Note, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan payment entry: %w", err)
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// Paid sums the credit entries of one reference.
func Paid(entries []Entry) float64 {
	var total float64
	for _, e := range entries {
		switch e.Type {
		case Credit:
			total += e.Amount
		case Debit:
			total -= e.Amount
		}
	}
	return total
}
