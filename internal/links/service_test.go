package links

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/pharmalink/pharmalink/internal/shared"
)

type memoryRepo struct {
	mu    sync.Mutex
	links map[string]*Link
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{links: make(map[string]*Link)}
}

func (r *memoryRepo) Create(_ context.Context, link Link) (Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		if l.PharmacyID == link.PharmacyID && l.DistributorID == link.DistributorID {
			return Link{}, shared.ErrDuplicateKey
		}
	}
	now := time.Now().UTC()
	link.CreatedAt = now
	link.UpdatedAt = now
	stored := link
	r.links[link.ID] = &stored
	return link, nil
}

func (r *memoryRepo) Get(_ context.Context, id string) (Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[id]
	if !ok {
		return Link{}, shared.ErrNotFound
	}
	return *l, nil
}

func (r *memoryRepo) GetPair(_ context.Context, pharmacyID, distributorID string) (Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.links {
		if l.PharmacyID == pharmacyID && l.DistributorID == distributorID {
			return *l, nil
		}
	}
	return Link{}, shared.ErrNotFound
}

func (r *memoryRepo) ListForTenant(_ context.Context, tenantID string, status Status) ([]Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []Link
	for _, l := range r.links {
		if l.PharmacyID != tenantID && l.DistributorID != tenantID {
			continue
		}
		if status != "" && l.Status != status {
			continue
		}
		result = append(result, *l)
	}
	return result, nil
}

func (r *memoryRepo) Respond(_ context.Context, id string, status Status, respondedBy string, terms Terms) (Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[id]
	if !ok || l.Status != StatusPending {
		return Link{}, shared.ErrInvalidTransition
	}
	l.Status = status
	l.RespondedBy = respondedBy
	l.CreditLimit = terms.CreditLimit
	l.PaymentTerms = terms.PaymentTerms
	return *l, nil
}

func (r *memoryRepo) Revive(_ context.Context, id, requestedBy string) (Link, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.links[id]
	if !ok || l.Status != StatusRejected {
		return Link{}, shared.ErrInvalidTransition
	}
	l.Status = StatusPending
	l.RequestedBy = requestedBy
	l.RespondedBy = ""
	return *l, nil
}

type stubDirectory struct {
	pharmacies   map[string]bool
	distributors map[string]bool
}

func (d stubDirectory) IsPharmacy(_ context.Context, id string) (bool, error) {
	return d.pharmacies[id], nil
}

func (d stubDirectory) IsDistributor(_ context.Context, id string) (bool, error) {
	return d.distributors[id], nil
}

type capturedNotice struct {
	tenantID string
	kind     string
}

type captureNotifier struct {
	mu      sync.Mutex
	notices []capturedNotice
	fail    bool
}

func (n *captureNotifier) Notify(_ context.Context, tenantID, kind, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return fmt.Errorf("notifier down")
	}
	n.notices = append(n.notices, capturedNotice{tenantID: tenantID, kind: kind})
	return nil
}

var (
	pharmacyA   = uuid.NewString()
	distributor = uuid.NewString()
)

func newTestService(notifier Notifier) (*Service, *memoryRepo) {
	repo := newMemoryRepo()
	dir := stubDirectory{
		pharmacies:   map[string]bool{pharmacyA: true},
		distributors: map[string]bool{distributor: true},
	}
	return NewService(repo, dir, notifier, slog.Default()), repo
}

func TestRequestCreatesPendingAndNotifies(t *testing.T) {
	notifier := &captureNotifier{}
	svc, _ := newTestService(notifier)

	link, err := svc.Request(context.Background(), pharmacyA, distributor, "u1")
	require.NoError(t, err)
	require.Equal(t, StatusPending, link.Status)
	require.Equal(t, pharmacyA, link.PharmacyID)

	require.Len(t, notifier.notices, 1)
	require.Equal(t, distributor, notifier.notices[0].tenantID)
	require.Equal(t, "link.requested", notifier.notices[0].kind)
}

func TestRequestWhilePendingIsDuplicate(t *testing.T) {
	svc, _ := newTestService(&captureNotifier{})
	ctx := context.Background()

	first, err := svc.Request(ctx, pharmacyA, distributor, "u1")
	require.NoError(t, err)

	_, err = svc.Request(ctx, pharmacyA, distributor, "u1")
	require.ErrorIs(t, err, shared.ErrDuplicateKey)

	kept, err := svc.repo.Get(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, kept.Status)
}

func TestRequestAfterApprovalIsDuplicate(t *testing.T) {
	svc, _ := newTestService(&captureNotifier{})
	ctx := context.Background()

	link, err := svc.Request(ctx, pharmacyA, distributor, "u1")
	require.NoError(t, err)
	_, err = svc.Respond(ctx, link.ID, distributor, "d1", true, Terms{})
	require.NoError(t, err)

	_, err = svc.Request(ctx, pharmacyA, distributor, "u1")
	require.ErrorIs(t, err, shared.ErrDuplicateKey)

	ok, err := svc.IsApproved(ctx, pharmacyA, distributor)
	require.NoError(t, err)
	require.True(t, ok, "duplicate request must not disturb the approved link")
}

func TestRequestRevivesRejectedLink(t *testing.T) {
	notifier := &captureNotifier{}
	svc, _ := newTestService(notifier)
	ctx := context.Background()

	link, err := svc.Request(ctx, pharmacyA, distributor, "u1")
	require.NoError(t, err)
	_, err = svc.Respond(ctx, link.ID, distributor, "d1", false, Terms{})
	require.NoError(t, err)

	revived, err := svc.Request(ctx, pharmacyA, distributor, "u2")
	require.NoError(t, err)
	require.Equal(t, link.ID, revived.ID)
	require.Equal(t, StatusPending, revived.Status)
	require.Equal(t, "u2", revived.RequestedBy)
	require.Empty(t, revived.RespondedBy)

	// request, rejection, revived request
	require.Len(t, notifier.notices, 3)
	require.Equal(t, distributor, notifier.notices[2].tenantID)
	require.Equal(t, "link.requested", notifier.notices[2].kind)
}

func TestRequestRejectsInvalidParties(t *testing.T) {
	svc, _ := newTestService(&captureNotifier{})
	ctx := context.Background()

	_, err := svc.Request(ctx, pharmacyA, pharmacyA, "u1")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Request(ctx, distributor, pharmacyA, "u1")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestRespondApproveEnablesOrdering(t *testing.T) {
	svc, _ := newTestService(&captureNotifier{})
	ctx := context.Background()

	link, err := svc.Request(ctx, pharmacyA, distributor, "u1")
	require.NoError(t, err)

	ok, err := svc.IsApproved(ctx, pharmacyA, distributor)
	require.NoError(t, err)
	require.False(t, ok, "pending link must not authorize orders")

	limit := 50000.0
	updated, err := svc.Respond(ctx, link.ID, distributor, "d1", true, Terms{CreditLimit: &limit, PaymentTerms: "NET30"})
	require.NoError(t, err)
	require.Equal(t, StatusApproved, updated.Status)
	require.NotNil(t, updated.CreditLimit)
	require.Equal(t, "NET30", updated.PaymentTerms)

	ok, err = svc.IsApproved(ctx, pharmacyA, distributor)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRespondByWrongDistributorForbidden(t *testing.T) {
	svc, _ := newTestService(&captureNotifier{})
	ctx := context.Background()

	link, err := svc.Request(ctx, pharmacyA, distributor, "u1")
	require.NoError(t, err)

	_, err = svc.Respond(ctx, link.ID, uuid.NewString(), "x", true, Terms{})
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestRespondTwiceFails(t *testing.T) {
	svc, _ := newTestService(&captureNotifier{})
	ctx := context.Background()

	link, err := svc.Request(ctx, pharmacyA, distributor, "u1")
	require.NoError(t, err)

	_, err = svc.Respond(ctx, link.ID, distributor, "d1", true, Terms{})
	require.NoError(t, err)
	_, err = svc.Respond(ctx, link.ID, distributor, "d1", false, Terms{})
	require.ErrorIs(t, err, shared.ErrInvalidTransition)
}

func TestNotifierFailureDoesNotBlockRequest(t *testing.T) {
	svc, _ := newTestService(&captureNotifier{fail: true})

	link, err := svc.Request(context.Background(), pharmacyA, distributor, "u1")
	require.NoError(t, err)
	require.Equal(t, StatusPending, link.Status)
}
