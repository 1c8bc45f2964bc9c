package messaging

import "time"

// ChatMessage is one line of conversation on a distributor order. Rows
// are append-only; (created_at, serial) read order is the causal order.
type ChatMessage struct {
	ID        int64     `json:"id"`
	OrderID   string    `json:"order_id"`
	SenderID  string    `json:"sender_id"`
	TenantID  string    `json:"tenant_id"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// Notification targets a single tenant. Read state is per notification,
// not per user.
type Notification struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}
