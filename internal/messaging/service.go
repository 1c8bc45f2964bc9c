package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pharmalink/pharmalink/internal/shared"
)

// Publisher pushes a realtime event at tenant rooms. Delivery is best
// effort; durable state never depends on it.
type Publisher interface {
	Publish(ctx context.Context, tenantID, kind string, payload any)
}

type Service struct {
	repo      Repository
	publisher Publisher
	logger    *slog.Logger
}

func NewService(repo Repository, publisher Publisher, logger *slog.Logger) *Service {
	return &Service{repo: repo, publisher: publisher, logger: logger}
}

// SendMessage stores a chat line on an order and then fans it out to the
// participant tenants. The write is the source of truth; fan-out is
// fire and forget.
func (s *Service) SendMessage(ctx context.Context, m ChatMessage, recipientTenants []string) (ChatMessage, error) {
	if m.Body == "" {
		return ChatMessage{}, fmt.Errorf("%w: message body required", shared.ErrValidation)
	}
	if m.OrderID == "" || m.SenderID == "" || m.TenantID == "" {
		return ChatMessage{}, fmt.Errorf("%w: order, sender and tenant required", shared.ErrValidation)
	}

	stored, err := s.repo.AppendMessage(ctx, m)
	if err != nil {
		return ChatMessage{}, err
	}

	if s.publisher != nil {
		for _, tenantID := range recipientTenants {
			s.publisher.Publish(ctx, tenantID, "receive_message", stored)
		}
	}
	return stored, nil
}

// SendNotification stores a notification for one tenant and publishes it
// to that tenant's room.
func (s *Service) SendNotification(ctx context.Context, tenantID, kind, message string) (Notification, error) {
	if tenantID == "" || kind == "" {
		return Notification{}, fmt.Errorf("%w: tenant and kind required", shared.ErrValidation)
	}

	stored, err := s.repo.CreateNotification(ctx, Notification{
		ID:       uuid.NewString(),
		TenantID: tenantID,
		Kind:     kind,
		Message:  message,
	})
	if err != nil {
		return Notification{}, err
	}

	if s.publisher != nil {
		s.publisher.Publish(ctx, tenantID, "receive_notification", stored)
	}
	return stored, nil
}

// Notify satisfies the notifier ports of the links and b2b modules.
func (s *Service) Notify(ctx context.Context, tenantID, kind, message string) error {
	_, err := s.SendNotification(ctx, tenantID, kind, message)
	return err
}

func (s *Service) Messages(ctx context.Context, orderID string, limit int) ([]ChatMessage, error) {
	return s.repo.ListMessages(ctx, orderID, limit)
}

func (s *Service) Notifications(ctx context.Context, tenantID string, unreadOnly bool, limit int) ([]Notification, error) {
	return s.repo.ListNotifications(ctx, tenantID, unreadOnly, limit)
}

func (s *Service) MarkRead(ctx context.Context, tenantID, notificationID string) error {
	return s.repo.MarkRead(ctx, tenantID, notificationID)
}
