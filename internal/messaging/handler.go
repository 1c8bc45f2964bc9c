package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pharmalink/pharmalink/internal/platform/httpx"
	"github.com/pharmalink/pharmalink/internal/shared"
)

// OrderDirectory resolves the two parties of a distributor order so
// chat stays between them. Backed by the b2b package.
type OrderDirectory interface {
	Participants(ctx context.Context, orderID string) (pharmacyID, distributorID string, err error)
}

// Handler wires chat and notification HTTP endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	orders   OrderDirectory
	validate *validator.Validate
}

func NewHandler(logger *slog.Logger, service *Service, orders OrderDirectory) *Handler {
	return &Handler{logger: logger, service: service, orders: orders, validate: validator.New()}
}

// MountRoutes registers messaging routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/messages/{orderID}", h.handleListMessages)
	r.Post("/messages", h.handleSendMessage)
	r.Get("/notifications", h.handleListNotifications)
	r.Post("/notifications", h.handleSendNotification)
	r.Post("/notifications/{notificationID}/read", h.handleMarkRead)
}

type sendMessageRequest struct {
	OrderID string `json:"order_id" validate:"required,uuid4"`
	Body    string `json:"body" validate:"required,min=1,max=2000"`
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	var req sendMessageRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation", "invalid request", err.Error())
		return
	}

	pharmacyID, distributorID, err := h.orders.Participants(r.Context(), req.OrderID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if identity.TenantID != pharmacyID && identity.TenantID != distributorID {
		httpx.RespondError(w, fmt.Errorf("not a party to this order: %w", shared.ErrForbidden))
		return
	}

	msg, err := h.service.SendMessage(r.Context(), ChatMessage{
		OrderID:  req.OrderID,
		SenderID: identity.UserID,
		TenantID: identity.TenantID,
		Body:     req.Body,
	}, []string{pharmacyID, distributorID})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Debug("chat message stored", slog.String("order_id", msg.OrderID), slog.Int64("message_id", msg.ID))
	httpx.JSON(w, http.StatusCreated, msg)
}

func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	orderID := chi.URLParam(r, "orderID")

	pharmacyID, distributorID, err := h.orders.Participants(r.Context(), orderID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if identity.TenantID != pharmacyID && identity.TenantID != distributorID {
		httpx.RespondError(w, fmt.Errorf("not a party to this order: %w", shared.ErrForbidden))
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	messages, err := h.service.Messages(r.Context(), orderID, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"messages": messages})
}

type sendNotificationRequest struct {
	OrderID string `json:"order_id" validate:"required,uuid4"`
	Kind    string `json:"kind" validate:"required,max=50"`
	Message string `json:"message" validate:"required,min=1,max=500"`
}

// handleSendNotification lets a party to an order nudge the other
// party. The notification lands on the counterparty's tenant, never the
// sender's own.
func (h *Handler) handleSendNotification(w http.ResponseWriter, r *http.Request) {
	identity, ok := shared.IdentityFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}

	var req sendNotificationRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation", "invalid request", err.Error())
		return
	}

	pharmacyID, distributorID, err := h.orders.Participants(r.Context(), req.OrderID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var target string
	switch identity.TenantID {
	case pharmacyID:
		target = distributorID
	case distributorID:
		target = pharmacyID
	default:
		httpx.RespondError(w, fmt.Errorf("not a party to this order: %w", shared.ErrForbidden))
		return
	}

	stored, err := h.service.SendNotification(r.Context(), target, req.Kind, req.Message)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.logger.Debug("notification sent", slog.String("order_id", req.OrderID), slog.String("tenant_id", target))
	httpx.JSON(w, http.StatusCreated, stored)
}

func (h *Handler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := shared.TenantFromContext(r.Context())
	q := r.URL.Query()

	limit, _ := strconv.Atoi(q.Get("limit"))
	unreadOnly := q.Get("unread") == "true"

	notifications, err := h.service.Notifications(r.Context(), tenantID, unreadOnly, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"notifications": notifications})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	tenantID, _ := shared.TenantFromContext(r.Context())

	if err := h.service.MarkRead(r.Context(), tenantID, chi.URLParam(r, "notificationID")); err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
