package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists chat messages and notifications.
type Repository interface {
	AppendMessage(ctx context.Context, m ChatMessage) (ChatMessage, error)
	ListMessages(ctx context.Context, orderID string, limit int) ([]ChatMessage, error)
	CreateNotification(ctx context.Context, n Notification) (Notification, error)
	ListNotifications(ctx context.Context, tenantID string, unreadOnly bool, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, tenantID, notificationID string) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) AppendMessage(ctx context.Context, m ChatMessage) (ChatMessage, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO chat_messages (order_id, sender_id, tenant_id, body, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`,
		m.OrderID, m.SenderID, m.TenantID, m.Body, time.Now().UTC(),
	)
	if err := row.Scan(&m.ID, &m.CreatedAt); err != nil {
		return ChatMessage{}, fmt.Errorf("append chat message: %w", err)
	}
	return m, nil
}

func (r *repository) ListMessages(ctx context.Context, orderID string, limit int) ([]ChatMessage, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, order_id, sender_id, tenant_id, body, created_at
		FROM chat_messages
		WHERE order_id = $1
		ORDER BY created_at ASC, id ASC
		LIMIT $2`,
		orderID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list chat messages: %w", err)
	}
	defer rows.Close()

	var result []ChatMessage
	for rows.Next() {
		var m ChatMessage
		if err := rows.Scan(&m.ID, &m.OrderID, &m.SenderID, &m.TenantID, &m.Body, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan chat message: %w", err)
		}
		result = append(result, m)
	}
	return result, rows.Err()
}

func (r *repository) CreateNotification(ctx context.Context, n Notification) (Notification, error) {
	n.CreatedAt = time.Now().UTC()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (id, tenant_id, kind, message, read, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)`,
		n.ID, n.TenantID, n.Kind, n.Message, n.CreatedAt,
	)
	if err != nil {
		return Notification{}, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

func (r *repository) ListNotifications(ctx context.Context, tenantID string, unreadOnly bool, limit int) ([]Notification, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := `
		SELECT id, tenant_id, kind, message, read, created_at
		FROM notifications
		WHERE tenant_id = $1`
	if unreadOnly {
		query += ` AND read = FALSE`
	}
	query += ` ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, query, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var result []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.TenantID, &n.Kind, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (r *repository) MarkRead(ctx context.Context, tenantID, notificationID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notifications SET read = TRUE WHERE tenant_id = $1 AND id = $2`,
		tenantID, notificationID,
	)
	if err != nil {
		return fmt.Errorf("mark notification read: %w", err)
	}
	return nil
}
