package links

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/pharmalink/pharmalink/internal/shared"
)

// Directory answers what kind of tenant an ID refers to. Backed by the
// tenant package in the composed application.
type Directory interface {
	IsPharmacy(ctx context.Context, tenantID string) (bool, error)
	IsDistributor(ctx context.Context, tenantID string) (bool, error)
}

// Notifier delivers a durable notification to one tenant. Failures are
// logged, never surfaced: linking must not depend on the notification
// path being healthy.
type Notifier interface {
	Notify(ctx context.Context, tenantID, kind, message string) error
}

type Service struct {
	repo     Repository
	dir      Directory
	notifier Notifier
	logger   *slog.Logger
}

func NewService(repo Repository, dir Directory, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{repo: repo, dir: dir, notifier: notifier, logger: logger}
}

// Request asks a distributor for a trading link on behalf of a pharmacy.
// The pair is unique: a PENDING or APPROVED link makes a new request fail
// with ErrDuplicateKey. A REJECTED one goes back to PENDING for a fresh
// decision.
func (s *Service) Request(ctx context.Context, pharmacyID, distributorID, requestedBy string) (Link, error) {
	if pharmacyID == distributorID {
		return Link{}, fmt.Errorf("%w: cannot link a tenant to itself", shared.ErrValidation)
	}
	if ok, err := s.dir.IsPharmacy(ctx, pharmacyID); err != nil {
		return Link{}, err
	} else if !ok {
		return Link{}, fmt.Errorf("%w: %s is not a pharmacy", shared.ErrValidation, pharmacyID)
	}
	if ok, err := s.dir.IsDistributor(ctx, distributorID); err != nil {
		return Link{}, err
	} else if !ok {
		return Link{}, fmt.Errorf("%w: %s is not a distributor", shared.ErrValidation, distributorID)
	}

	existing, err := s.repo.GetPair(ctx, pharmacyID, distributorID)
	switch {
	case err == nil:
		if existing.Status != StatusRejected {
			return Link{}, fmt.Errorf("link %s -> %s already %s: %w", pharmacyID, distributorID, existing.Status, shared.ErrDuplicateKey)
		}
		revived, err := s.repo.Revive(ctx, existing.ID, requestedBy)
		if err != nil {
			return Link{}, err
		}
		s.notify(ctx, revived.DistributorID, "link.requested", fmt.Sprintf("link request from pharmacy %s", pharmacyID))
		return revived, nil
	case errors.Is(err, shared.ErrNotFound):
		// fall through to create
	default:
		return Link{}, err
	}

	link, err := s.repo.Create(ctx, Link{
		ID:            uuid.NewString(),
		PharmacyID:    pharmacyID,
		DistributorID: distributorID,
		Status:        StatusPending,
		RequestedBy:   requestedBy,
	})
	if err != nil {
		return Link{}, err
	}

	s.notify(ctx, link.DistributorID, "link.requested", fmt.Sprintf("link request from pharmacy %s", pharmacyID))
	return link, nil
}

// Respond lets the distributor side approve or reject a pending request.
// Terms are recorded only on approval.
func (s *Service) Respond(ctx context.Context, linkID, distributorID, respondedBy string, approve bool, terms Terms) (Link, error) {
	link, err := s.repo.Get(ctx, linkID)
	if err != nil {
		return Link{}, err
	}
	if link.DistributorID != distributorID {
		return Link{}, fmt.Errorf("%w: link belongs to another distributor", shared.ErrForbidden)
	}

	status := StatusRejected
	if approve {
		status = StatusApproved
	} else {
		terms = Terms{}
	}
	updated, err := s.repo.Respond(ctx, linkID, status, respondedBy, terms)
	if err != nil {
		return Link{}, err
	}

	s.notify(ctx, updated.PharmacyID, "link.responded", fmt.Sprintf("link request %s", updated.Status))
	return updated, nil
}

// IsApproved reports whether the pair has an APPROVED link. The b2b
// module gates order placement on it.
func (s *Service) IsApproved(ctx context.Context, pharmacyID, distributorID string) (bool, error) {
	link, err := s.repo.GetPair(ctx, pharmacyID, distributorID)
	if errors.Is(err, shared.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return link.Status == StatusApproved, nil
}

func (s *Service) List(ctx context.Context, tenantID string, status Status) ([]Link, error) {
	return s.repo.ListForTenant(ctx, tenantID, status)
}

func (s *Service) notify(ctx context.Context, tenantID, kind, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, tenantID, kind, message); err != nil {
		s.logger.Warn("link notification failed", "tenant_id", tenantID, "kind", kind, "error", err)
	}
}
