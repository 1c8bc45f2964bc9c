package bus

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/pharmalink/pharmalink/internal/platform/httpx"
	"github.com/pharmalink/pharmalink/internal/shared"
)

// Handler exposes the SSE stream. Publishing endpoints live with the
// messaging handler since publishes must hit the durable stores first.
type Handler struct {
	logger *slog.Logger
	bus    *Bus
}

func NewHandler(logger *slog.Logger, bus *Bus) *Handler {
	return &Handler{logger: logger, bus: bus}
}

// MountRoutes registers the event stream.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stream", h.handleStream)
}

// handleStream joins the caller's tenant room and relays events as
// server-sent events until the client goes away.
func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := shared.TenantFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.Problem(w, http.StatusInternalServerError, "streaming-unsupported", "streaming unsupported", "response writer cannot flush")
		return
	}

	connID := uuid.NewString()
	sub := h.bus.Join(connID, tenantID)
	defer h.bus.Leave(connID, tenantID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "event: connected\ndata: {\"conn_id\":%q}\n\n", connID)
	flusher.Flush()

	h.logger.Debug("event stream opened", "tenant_id", tenantID, "conn_id", connID)

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.C:
			if !ok {
				// Evicted as a slow consumer.
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Warn("dropping unencodable event", "kind", event.Kind, "error", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, data)
			flusher.Flush()
		}
	}
}
