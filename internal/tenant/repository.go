package tenant

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/google/uuid"

	"github.com/pharmalink/pharmalink/internal/shared"
)

// Repository persists tenant records.
type Repository interface {
	Create(ctx context.Context, t Tenant) (Tenant, error)
	Get(ctx context.Context, id string) (Tenant, error)
	GetBySubdomain(ctx context.Context, subdomain string) (Tenant, error)
	List(ctx context.Context) ([]Tenant, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository backed by PostgreSQL.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) Create(ctx context.Context, t Tenant) (Tenant, error) {
	const query = `INSERT INTO tenants (id, subdomain, name, type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)`
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	_, err := r.pool.Exec(ctx, query, t.ID, t.Subdomain, t.Name, t.Type, t.Status, now)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Tenant{}, shared.ErrDuplicateKey
		}
		return Tenant{}, err
	}
	t.CreatedAt = now
	t.UpdatedAt = now
	return t, nil
}

func (r *repository) Get(ctx context.Context, id string) (Tenant, error) {
	const query = `SELECT id, subdomain, name, type, status, created_at, updated_at FROM tenants WHERE id = $1`
	return r.scanOne(ctx, query, id)
}

func (r *repository) GetBySubdomain(ctx context.Context, subdomain string) (Tenant, error) {
	const query = `SELECT id, subdomain, name, type, status, created_at, updated_at FROM tenants WHERE subdomain = $1`
	return r.scanOne(ctx, query, subdomain)
}

func (r *repository) List(ctx context.Context) ([]Tenant, error) {
	const query = `SELECT id, subdomain, name, type, status, created_at, updated_at FROM tenants ORDER BY name`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tenants []Tenant
	for rows.Next() {
		var t Tenant
		if err := rows.Scan(&t.ID, &t.Subdomain, &t.Name, &t.Type, &t.Status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (r *repository) scanOne(ctx context.Context, query string, arg any) (Tenant, error) {
	var t Tenant
	err := r.pool.QueryRow(ctx, query, arg).Scan(&t.ID, &t.Subdomain, &t.Name, &t.Type, &t.Status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, shared.ErrNotFound
		}
		return Tenant{}, err
	}
	return t, nil
}
