package bus

import (
	"context"
	"log/slog"
	"time"

	"github.com/pharmalink/pharmalink/internal/shared"
)

// Publisher is the fire-and-forget facade the domain services use. The
// publish happens on its own goroutine with a detached context so a
// finished request cannot cancel an in-flight fan-out.
type Publisher struct {
	bridge  *Bridge
	logger  *slog.Logger
	observe func(kind, outcome string)
}

// NewPublisher wraps the bridge. observe may be nil.
func NewPublisher(bridge *Bridge, logger *slog.Logger, observe func(kind, outcome string)) *Publisher {
	if observe == nil {
		observe = func(string, string) {}
	}
	return &Publisher{bridge: bridge, logger: logger, observe: observe}
}

func (p *Publisher) Publish(ctx context.Context, tenantID, kind string, payload any) {
	event := Event{Kind: kind, TenantID: tenantID, Payload: payload, At: time.Now().UTC()}

	detached := context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(detached, 5*time.Second)
		defer cancel()
		err := shared.Retry(ctx, 200*time.Millisecond, func() error {
			return p.bridge.Publish(ctx, event)
		})
		if err != nil {
			p.logger.Warn("event publish failed", "tenant_id", tenantID, "kind", kind, "error", err)
			p.observe(kind, "error")
			return
		}
		p.observe(kind, "ok")
	}()
}
