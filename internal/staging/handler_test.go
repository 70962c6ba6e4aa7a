package staging

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/stockscan/stockscan/internal/kvstore"
	"github.com/stockscan/stockscan/internal/shared"
)

func newStagingRouter(t *testing.T) (http.Handler, *Janitor) {
	t.Helper()
	j, _, _ := newTestJanitor(t, kvstore.NewMemoryStore(0), Config{ImageMaxBytes: 64})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := shared.ContextWithUserID(req.Context(), req.Header.Get(shared.UserIDHeader))
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	NewHandler(nil, j).MountRoutes(r)
	return r, j
}

func send(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(shared.UserIDHeader, "u1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerScanSessionFlow(t *testing.T) {
	h, _ := newStagingRouter(t)

	rec := send(h, http.MethodPost, "/staging/sessions", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	scanID := created["scanId"]
	require.NotEmpty(t, scanID)

	rec = send(h, http.MethodPut, "/staging/"+scanID+"/scan-result", `{"products":[{"barcode":"1"}]}`)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = send(h, http.MethodGet, "/staging/"+scanID+"/scan-result", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"products":[{"barcode":"1"}]}`, rec.Body.String())

	rec = send(h, http.MethodPut, "/staging/"+scanID+"/images/original", `{"dataUri":"data:image/png;base64,AA"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"stored":true}`, rec.Body.String())

	rec = send(h, http.MethodPut, "/staging/"+scanID+"/images/compressed", `{"dataUri":"`+strings.Repeat("A", 100)+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"stored":false}`, rec.Body.String())

	rec = send(h, http.MethodDelete, "/staging/"+scanID, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = send(h, http.MethodGet, "/staging/"+scanID+"/scan-result", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerRejectsUnknownImageKind(t *testing.T) {
	h, _ := newStagingRouter(t)
	rec := send(h, http.MethodPut, "/staging/scan-1/images/thumbnail", `{"dataUri":"x"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerSweep(t *testing.T) {
	h, j := newStagingRouter(t)
	old := scanIDAt(testNow.Add(-30 * time.Hour))
	rec := send(h, http.MethodPut, "/staging/"+old+"/scan-result", `{}`)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = send(h, http.MethodPost, "/staging/sweep", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var report SweepReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	require.Equal(t, 1, report.Expired)
	require.False(t, report.Aggressive)

	_, err := j.LoadScanResult(context.Background(), "u1", old)
	require.ErrorIs(t, err, ErrScanResultNotFound)
}
