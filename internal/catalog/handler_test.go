package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/pharmalink/pharmalink/internal/shared"
)

type memoryRepo struct {
	products map[string]Product
	nextID   int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{products: make(map[string]Product), nextID: 1}
}

func (m *memoryRepo) List(_ context.Context, tenantID string, filters ListFilters) ([]Product, int, error) {
	var out []Product
	for _, p := range m.products {
		if p.TenantID != tenantID {
			continue
		}
		if filters.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filters.Search)) {
			continue
		}
		if filters.IsActive != nil && p.IsActive != *filters.IsActive {
			continue
		}
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *memoryRepo) Get(_ context.Context, tenantID, id string) (Product, error) {
	p, ok := m.products[id]
	if !ok || p.TenantID != tenantID {
		return Product{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *memoryRepo) Create(_ context.Context, p Product) (Product, error) {
	for _, existing := range m.products {
		if existing.TenantID == p.TenantID && existing.SKU != nil && p.SKU != nil && *existing.SKU == *p.SKU {
			return Product{}, shared.ErrDuplicateKey
		}
	}
	p.ID = fmt.Sprintf("prod-%d", m.nextID)
	m.nextID++
	m.products[p.ID] = p
	return p, nil
}

func (m *memoryRepo) Update(_ context.Context, tenantID, id string, p Product) error {
	existing, ok := m.products[id]
	if !ok || existing.TenantID != tenantID {
		return shared.ErrNotFound
	}
	existing.SKU = p.SKU
	existing.Name = p.Name
	existing.Unit = p.Unit
	existing.MinStockLevel = p.MinStockLevel
	existing.TaxRate = p.TaxRate
	existing.Price = p.Price
	m.products[id] = existing
	return nil
}

func (m *memoryRepo) Deactivate(_ context.Context, tenantID, id string) error {
	existing, ok := m.products[id]
	if !ok || existing.TenantID != tenantID {
		return shared.ErrNotFound
	}
	existing.IsActive = false
	m.products[id] = existing
	return nil
}

func newTestRouter(repo Repository, tenantID string) http.Handler {
	h := NewHandler(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)), repo)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithTenant(req.Context(), tenantID)))
		})
	})
	h.MountRoutes(r)
	return r
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateAndGetProduct(t *testing.T) {
	router := newTestRouter(newMemoryRepo(), "tenant-a")

	rec := doJSON(t, router, http.MethodPost, "/products", map[string]any{
		"name": "Paracetamol 500mg", "unit": "strip", "price": 24.5, "tax_rate": 12.0,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)
	require.True(t, created.IsActive)

	rec = doJSON(t, router, http.MethodGet, "/products/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateProductValidation(t *testing.T) {
	router := newTestRouter(newMemoryRepo(), "tenant-a")

	rec := doJSON(t, router, http.MethodPost, "/products", map[string]any{
		"name": "X", "unit": "strip",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Header().Get("Content-Type"), "application/json")
}

func TestDuplicateSKUConflicts(t *testing.T) {
	router := newTestRouter(newMemoryRepo(), "tenant-a")

	body := map[string]any{"sku": "PCM-500", "name": "Paracetamol 500mg", "unit": "strip", "price": 24.5}
	rec := doJSON(t, router, http.MethodPost, "/products", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/products", body)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestProductsAreTenantScoped(t *testing.T) {
	repo := newMemoryRepo()
	routerA := newTestRouter(repo, "tenant-a")
	routerB := newTestRouter(repo, "tenant-b")

	rec := doJSON(t, routerA, http.MethodPost, "/products", map[string]any{
		"name": "Amoxicillin 250mg", "unit": "strip", "price": 80.0,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, routerB, http.MethodGet, "/products/"+created.ID, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeactivateHidesFromActiveList(t *testing.T) {
	repo := newMemoryRepo()
	router := newTestRouter(repo, "tenant-a")

	rec := doJSON(t, router, http.MethodPost, "/products", map[string]any{
		"name": "Cetirizine 10mg", "unit": "strip", "price": 30.0,
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, router, http.MethodDelete, "/products/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/products?active=true", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Zero(t, listed.Total)
}
