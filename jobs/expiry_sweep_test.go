package jobs

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pharmalink/pharmalink/internal/ledger"
	"github.com/pharmalink/pharmalink/internal/shared"
)

type stubLedgerRepo struct {
	batches  []ledger.Batch
	lowStock []ledger.LowStock
}

func (s *stubLedgerRepo) UpsertInward(context.Context, string, ledger.InwardInput) (ledger.Batch, error) {
	return ledger.Batch{}, errors.New("not implemented")
}

func (s *stubLedgerRepo) Get(context.Context, string, string) (ledger.Batch, error) {
	return ledger.Batch{}, shared.ErrNotFound
}

func (s *stubLedgerRepo) ListAvailable(context.Context, string, string, bool, time.Time) ([]ledger.Batch, error) {
	return nil, nil
}

func (s *stubLedgerRepo) List(context.Context, string, string) ([]ledger.Batch, error) {
	return nil, nil
}

func (s *stubLedgerRepo) Deduct(context.Context, string, string, int64) error { return nil }

func (s *stubLedgerRepo) Restock(context.Context, string, string, int64) error { return nil }

func (s *stubLedgerRepo) ExpiringWithin(_ context.Context, cutoff time.Time) ([]ledger.Batch, error) {
	var out []ledger.Batch
	for _, b := range s.batches {
		if b.ExpiryDate.Before(cutoff) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *stubLedgerRepo) BelowMinStock(context.Context) ([]ledger.LowStock, error) {
	return s.lowStock, nil
}

type recordingNotifier struct {
	failFor map[string]bool
	sent    []string
}

func (n *recordingNotifier) Notify(_ context.Context, tenantID, kind, _ string) error {
	if n.failFor[tenantID] {
		return errors.New("notification store down")
	}
	n.sent = append(n.sent, tenantID+"/"+kind)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestExpirySweepNotifiesOwningTenants(t *testing.T) {
	now := time.Now().UTC()
	repo := &stubLedgerRepo{batches: []ledger.Batch{
		{ID: "b1", TenantID: "pharmacy-1", BatchNumber: "AMX-01", ExpiryDate: now.Add(5 * 24 * time.Hour), Quantity: 40},
		{ID: "b2", TenantID: "pharmacy-2", BatchNumber: "PCM-09", ExpiryDate: now.Add(10 * 24 * time.Hour), Quantity: 12},
		{ID: "b3", TenantID: "pharmacy-1", BatchNumber: "CTZ-77", ExpiryDate: now.Add(90 * 24 * time.Hour), Quantity: 7},
	}}
	notifier := &recordingNotifier{}

	job := NewExpirySweepJob(ledger.NewService(repo), notifier, testLogger(), 30*24*time.Hour)
	task, err := NewExpirySweepTask(ExpirySweepPayload{})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []string{"pharmacy-1/stock.expiring", "pharmacy-2/stock.expiring"}, notifier.sent)
}

func TestExpirySweepPayloadOverridesHorizon(t *testing.T) {
	now := time.Now().UTC()
	repo := &stubLedgerRepo{batches: []ledger.Batch{
		{ID: "b1", TenantID: "pharmacy-1", BatchNumber: "AMX-01", ExpiryDate: now.Add(48 * time.Hour), Quantity: 40},
		{ID: "b2", TenantID: "pharmacy-2", BatchNumber: "PCM-09", ExpiryDate: now.Add(200 * time.Hour), Quantity: 12},
	}}
	notifier := &recordingNotifier{}

	job := NewExpirySweepJob(ledger.NewService(repo), notifier, testLogger(), 30*24*time.Hour)
	task, err := NewExpirySweepTask(ExpirySweepPayload{HorizonHours: 72})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []string{"pharmacy-1/stock.expiring"}, notifier.sent)
}

func TestExpirySweepSkipsFailedTenants(t *testing.T) {
	now := time.Now().UTC()
	repo := &stubLedgerRepo{batches: []ledger.Batch{
		{ID: "b1", TenantID: "pharmacy-1", BatchNumber: "AMX-01", ExpiryDate: now.Add(24 * time.Hour), Quantity: 40},
		{ID: "b2", TenantID: "pharmacy-2", BatchNumber: "PCM-09", ExpiryDate: now.Add(24 * time.Hour), Quantity: 12},
	}}
	notifier := &recordingNotifier{failFor: map[string]bool{"pharmacy-1": true}}

	job := NewExpirySweepJob(ledger.NewService(repo), notifier, testLogger(), 30*24*time.Hour)
	task, err := NewExpirySweepTask(ExpirySweepPayload{})
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []string{"pharmacy-2/stock.expiring"}, notifier.sent)
}

func TestLowStockScanNotifies(t *testing.T) {
	repo := &stubLedgerRepo{lowStock: []ledger.LowStock{
		{TenantID: "pharmacy-1", ProductID: "p1", ProductName: "Amoxicillin 250mg", MinStock: 50, Available: 12},
	}}
	notifier := &recordingNotifier{}

	job := NewLowStockScanJob(ledger.NewService(repo), notifier, testLogger())
	require.NoError(t, job.Handle(context.Background(), NewLowStockScanTask()))
	require.Equal(t, []string{"pharmacy-1/stock.low"}, notifier.sent)
}
