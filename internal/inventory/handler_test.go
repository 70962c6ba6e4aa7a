package inventory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/stockscan/stockscan/internal/shared"
)

type recordingCleaner struct {
	mu    sync.Mutex
	calls []string
}

func (c *recordingCleaner) ScheduleSessionCleanup(_ context.Context, userID, scanID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, userID+"/"+scanID)
	return nil
}

func newTestRouter(t *testing.T) (http.Handler, *recordingCleaner, *KVRepository) {
	t.Helper()
	svc, repo, _ := newTestService(t, ServiceConfig{})
	cleaner := &recordingCleaner{}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithUserID(req.Context(), req.Header.Get(shared.UserIDHeader))
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	NewHandler(discardLogger(), svc, cleaner).MountRoutes(r)
	return r, cleaner, repo
}

func doRequest(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(shared.UserIDHeader, testUser)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerFinalizeSchedulesCleanup(t *testing.T) {
	h, cleaner, repo := newTestRouter(t)

	rec := doRequest(h, http.MethodPost, "/inventory/finalize", `{
		"products": [{"barcode": "111", "description": "Milk", "quantity": "2", "unitPrice": 4.5}],
		"fileName": "milk.pdf",
		"scanId": "scan-1700000000000-abcd1234",
		"extractedTotalAmount": "9.00"
	}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result FinalizeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Equal(t, 9.0, result.Invoice.TotalAmount)
	require.Equal(t, SourceUpload, result.Invoice.Source)
	require.Equal(t, []string{testUser + "/scan-1700000000000-abcd1234"}, cleaner.calls)

	products, err := repo.LoadProducts(context.Background(), testUser)
	require.NoError(t, err)
	require.Len(t, products, 1)
}

func TestHandlerFinalizeRejectsScanIDWithUserSeparator(t *testing.T) {
	h, cleaner, repo := newTestRouter(t)

	rec := doRequest(h, http.MethodPost, "/inventory/finalize", `{
		"products": [{"barcode": "111", "quantity": 1, "unitPrice": 1}],
		"scanId": "s_v"
	}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	require.Empty(t, cleaner.calls)

	products, err := repo.LoadProducts(context.Background(), testUser)
	require.NoError(t, err)
	require.Empty(t, products)
}

func TestHandlerSyncUsesProviderSource(t *testing.T) {
	h, cleaner, _ := newTestRouter(t)

	rec := doRequest(h, http.MethodPost, "/inventory/sync/Caspit", `{"products":[{"barcode":1,"quantity":5}]}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result FinalizeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Nil(t, result.Invoice)
	require.Equal(t, 1, result.Created)
	require.Empty(t, cleaner.calls)

	rec = doRequest(h, http.MethodGet, "/invoices", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[]`, rec.Body.String())
}

func TestHandlerPriceCheck(t *testing.T) {
	h, _, repo := newTestRouter(t)
	require.NoError(t, repo.SaveProducts(context.Background(), testUser, []Product{
		{ID: "p1", Barcode: "111", Description: "Milk", UnitPrice: 10},
	}))

	rec := doRequest(h, http.MethodPost, "/inventory/price-check", `{"products":[{"barcode":"111","quantity":1,"unitPrice":12.5}]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var result PriceCheckResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Discrepancies, 1)
	require.Empty(t, result.ToSaveDirectly)
}

func TestHandlerRejectsBadRequests(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rec := doRequest(h, http.MethodPost, "/inventory/price-check", `{"products":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(h, http.MethodPost, "/inventory/finalize", `{"products":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(h, http.MethodPost, "/inventory/finalize", `{"products":[],"paymentStatus":"maybe"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doRequest(h, http.MethodGet, "/inventory/products/missing", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestHandlerInvoiceRoutes(t *testing.T) {
	h, _, _ := newTestRouter(t)

	rec := doRequest(h, http.MethodPost, "/invoices/pending", `{"id":"temp-42","fileName":"scan.jpg"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doRequest(h, http.MethodPost, "/invoices/temp-42/processing", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(h, http.MethodPut, "/invoices/temp-42/payment-status", `{"paymentStatus":"paid"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var inv InvoiceHistoryItem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &inv))
	require.Equal(t, PaymentStatusPaid, inv.PaymentStatus)
	require.Equal(t, InvoiceStatusProcessing, inv.Status)

	rec = doRequest(h, http.MethodPatch, "/invoices/temp-42", `{"status":"completed","totalAmount":"12.30"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(h, http.MethodDelete, "/invoices/temp-42", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestHandlerProductRoutes(t *testing.T) {
	h, _, repo := newTestRouter(t)
	require.NoError(t, repo.SaveProducts(context.Background(), testUser, []Product{
		{ID: "p1", Barcode: "111", Description: "Milk", Quantity: 1, UnitPrice: 2},
	}))

	rec := doRequest(h, http.MethodPatch, "/inventory/products/p1", `{"quantity":"7"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var p Product
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	require.Equal(t, 7.0, p.Quantity)
	require.Equal(t, 14.0, p.LineTotal)

	rec = doRequest(h, http.MethodDelete, "/inventory/products/p1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = doRequest(h, http.MethodDelete, "/inventory/products", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
}
