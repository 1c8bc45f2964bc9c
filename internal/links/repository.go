package links

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

// Repository persists pharmacy-distributor links.
type Repository interface {
	Create(ctx context.Context, link Link) (Link, error)
	Get(ctx context.Context, id string) (Link, error)
	GetPair(ctx context.Context, pharmacyID, distributorID string) (Link, error)
	ListForTenant(ctx context.Context, tenantID string, status Status) ([]Link, error)
	Respond(ctx context.Context, id string, status Status, respondedBy string, terms Terms) (Link, error)
	Revive(ctx context.Context, id, requestedBy string) (Link, error)
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const linkColumns = `id, pharmacy_id, distributor_id, status, requested_by, COALESCE(responded_by, ''), credit_limit, COALESCE(payment_terms, ''), created_at, updated_at`

func (r *repository) Create(ctx context.Context, link Link) (Link, error) {
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx, `
		INSERT INTO links (id, pharmacy_id, distributor_id, status, requested_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING `+linkColumns,
		link.ID, link.PharmacyID, link.DistributorID, link.Status, link.RequestedBy, now,
	)
	created, err := scanLink(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Link{}, fmt.Errorf("link %s -> %s: %w", link.PharmacyID, link.DistributorID, shared.ErrDuplicateKey)
		}
		return Link{}, fmt.Errorf("create link: %w", err)
	}
	return created, nil
}

func (r *repository) Get(ctx context.Context, id string) (Link, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+linkColumns+` FROM links WHERE id = $1`, id)
	link, err := scanLink(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Link{}, fmt.Errorf("link %s: %w", id, shared.ErrNotFound)
	}
	return link, err
}

func (r *repository) GetPair(ctx context.Context, pharmacyID, distributorID string) (Link, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+linkColumns+` FROM links WHERE pharmacy_id = $1 AND distributor_id = $2`,
		pharmacyID, distributorID,
	)
	link, err := scanLink(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Link{}, fmt.Errorf("link %s -> %s: %w", pharmacyID, distributorID, shared.ErrNotFound)
	}
	return link, err
}

func (r *repository) ListForTenant(ctx context.Context, tenantID string, status Status) ([]Link, error) {
	query := `SELECT ` + linkColumns + ` FROM links WHERE (pharmacy_id = $1 OR distributor_id = $1)`
	args := []any{tenantID}
	if status != "" {
		query += ` AND status = $2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list links: %w", err)
	}
	defer rows.Close()

	var result []Link
	for rows.Next() {
		link, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("scan link: %w", err)
		}
		result = append(result, link)
	}
	return result, rows.Err()
}

// Respond moves a PENDING link to APPROVED or REJECTED. The status guard
// in the WHERE clause makes concurrent responses first-writer-wins.
func (r *repository) Respond(ctx context.Context, id string, status Status, respondedBy string, terms Terms) (Link, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE links SET status = $2, responded_by = $3, credit_limit = $4, payment_terms = $5, updated_at = $6
		WHERE id = $1 AND status = 'PENDING'
		RETURNING `+linkColumns,
		id, status, respondedBy, terms.CreditLimit, terms.PaymentTerms, time.Now().UTC(),
	)
	link, err := scanLink(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Link{}, fmt.Errorf("link %s not pending: %w", id, shared.ErrInvalidTransition)
	}
	return link, err
}

// Revive returns a REJECTED link to PENDING for a fresh decision.
func (r *repository) Revive(ctx context.Context, id, requestedBy string) (Link, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE links SET status = 'PENDING', requested_by = $2, responded_by = NULL,
			credit_limit = NULL, payment_terms = NULL, updated_at = $3
		WHERE id = $1 AND status = 'REJECTED'
		RETURNING `+linkColumns,
		id, requestedBy, time.Now().UTC(),
	)
	link, err := scanLink(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Link{}, fmt.Errorf("link %s not rejected: %w", id, shared.ErrInvalidTransition)
	}
	return link, err
}

func scanLink(row pgx.Row) (Link, error) {
	var l Link
	err := row.Scan(&l.ID, &l.PharmacyID, &l.DistributorID, &l.Status, &l.RequestedBy, &l.RespondedBy, &l.CreditLimit, &l.PaymentTerms, &l.CreatedAt, &l.UpdatedAt)
	return l, err
}
