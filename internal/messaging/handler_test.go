package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/pharmalink/pharmalink/internal/shared"
)

type stubOrders struct {
	pharmacyID    string
	distributorID string
	err           error
}

func (s stubOrders) Participants(context.Context, string) (string, string, error) {
	return s.pharmacyID, s.distributorID, s.err
}

func newNotifyRouter(svc *Service, orders OrderDirectory, identity shared.Identity) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithIdentity(req.Context(), identity)
			ctx = shared.ContextWithTenant(ctx, identity.TenantID)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	NewHandler(slog.Default(), svc, orders).MountRoutes(r)
	return r
}

func postNotification(t *testing.T, router http.Handler, body map[string]any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/notifications", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSendNotificationTargetsCounterparty(t *testing.T) {
	repo := &memoryRepo{}
	pub := &capturePublisher{}
	svc := NewService(repo, pub, slog.Default())
	orders := stubOrders{pharmacyID: "pharmacy-1", distributorID: "distributor-1"}

	sender := shared.Identity{UserID: "u1", TenantID: "pharmacy-1", Role: shared.RoleStaff}
	router := newNotifyRouter(svc, orders, sender)

	rec := postNotification(t, router, map[string]any{
		"order_id": "8f14e45f-ceea-4672-9b39-0c8a7b2f3a11",
		"kind":     "order.query",
		"message":  "please confirm the delivery window",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	stored, err := svc.Notifications(context.Background(), "distributor-1", false, 0)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, "order.query", stored[0].Kind)

	own, err := svc.Notifications(context.Background(), "pharmacy-1", false, 0)
	require.NoError(t, err)
	require.Empty(t, own, "the sender never notifies itself")

	require.Len(t, pub.events, 1)
	require.Equal(t, "receive_notification", pub.events[0].kind)
	require.Equal(t, "distributor-1", pub.events[0].tenantID)
}

func TestSendNotificationRejectsOutsider(t *testing.T) {
	svc := NewService(&memoryRepo{}, &capturePublisher{}, slog.Default())
	orders := stubOrders{pharmacyID: "pharmacy-1", distributorID: "distributor-1"}

	outsider := shared.Identity{UserID: "u9", TenantID: "elsewhere", Role: shared.RoleStaff}
	router := newNotifyRouter(svc, orders, outsider)

	rec := postNotification(t, router, map[string]any{
		"order_id": "8f14e45f-ceea-4672-9b39-0c8a7b2f3a11",
		"kind":     "order.query",
		"message":  "hello",
	})
	require.Equal(t, http.StatusForbidden, rec.Code)
}
