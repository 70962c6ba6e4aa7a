package httpx

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stockscan/stockscan/internal/shared"
)

func TestRespondErrorMapsDomainErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
		title  string
	}{
		{fmt.Errorf("product p1: %w", shared.ErrNotFound), http.StatusNotFound, "Not Found"},
		{fmt.Errorf("source: %w", shared.ErrValidation), http.StatusBadRequest, "Validation Failed"},
		{fmt.Errorf("write: %w", shared.ErrCapacityExceeded), http.StatusInsufficientStorage, "Storage Full"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "Internal Error"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		RespondError(rec, tc.err)
		require.Equal(t, tc.status, rec.Code)
		require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

		var body ProblemDetail
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
		require.Equal(t, tc.title, body.Title)
		require.Equal(t, tc.status, body.Status)
	}
}

func TestDecodeJSON(t *testing.T) {
	var target struct {
		Name string `json:"name"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"milk"}`))
	require.NoError(t, DecodeJSON(httptest.NewRecorder(), req, &target))
	require.Equal(t, "milk", target.Name)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
	err := DecodeJSON(httptest.NewRecorder(), req, &target)
	require.ErrorContains(t, err, "malformed JSON")
}

func TestDecodeJSONRejectsOversizedBody(t *testing.T) {
	var target map[string]string
	payload := `{"blob":"` + strings.Repeat("a", MaxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
	err := DecodeJSON(httptest.NewRecorder(), req, &target)
	require.ErrorContains(t, err, "request body exceeds")
}
