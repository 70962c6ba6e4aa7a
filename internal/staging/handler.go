package staging

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stockscan/stockscan/internal/platform/httpx"
	"github.com/stockscan/stockscan/internal/shared"
)

// Handler exposes staging writes and sweeps over HTTP.
type Handler struct {
	logger    *slog.Logger
	janitor   *Janitor
	validator *validator.Validate
}

// NewHandler constructs staging handler.
func NewHandler(logger *slog.Logger, janitor *Janitor) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, janitor: janitor, validator: validator.New()}
}

// MountRoutes registers staging routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/staging", func(r chi.Router) {
		r.Post("/sessions", h.handleNewSession)
		r.Post("/sweep", h.handleSweep)
		r.Put("/{scanID}/scan-result", h.handlePutScanResult)
		r.Get("/{scanID}/scan-result", h.handleGetScanResult)
		r.Put("/{scanID}/images/{kind}", h.handlePutImage)
		r.Delete("/{scanID}", h.handleClearSession)
	})
}

type imageRequest struct {
	DataURI string `json:"dataUri" validate:"required"`
}

type sweepRequest struct {
	Aggressive bool `json:"aggressive"`
}

func (h *Handler) handleNewSession(w http.ResponseWriter, _ *http.Request) {
	httpx.JSON(w, http.StatusCreated, map[string]string{"scanId": h.janitor.NewScanID()})
}

func (h *Handler) handleSweep(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
			httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
			return
		}
	}
	report, err := h.janitor.Sweep(r.Context(), req.Aggressive)
	if err != nil {
		h.logger.Error("staging sweep failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) handlePutScanResult(w http.ResponseWriter, r *http.Request) {
	var payload json.RawMessage
	if err := httpx.DecodeJSON(w, r, &payload); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return
	}
	userID := shared.UserIDFromContext(r.Context())
	if err := h.janitor.StageScanResult(r.Context(), userID, chi.URLParam(r, "scanID"), payload); err != nil {
		h.respondError(w, "stage scan result", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleGetScanResult(w http.ResponseWriter, r *http.Request) {
	userID := shared.UserIDFromContext(r.Context())
	payload, err := h.janitor.LoadScanResult(r.Context(), userID, chi.URLParam(r, "scanID"))
	if err != nil {
		h.respondError(w, "load scan result", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (h *Handler) handlePutImage(w http.ResponseWriter, r *http.Request) {
	kind, ok := ParseImageKind(chi.URLParam(r, "kind"))
	if !ok {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "image kind must be original or compressed")
		return
	}
	var req imageRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	userID := shared.UserIDFromContext(r.Context())
	stored, err := h.janitor.StageImage(r.Context(), userID, chi.URLParam(r, "scanID"), kind, req.DataURI)
	if err != nil {
		h.respondError(w, "stage image", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"stored": stored})
}

func (h *Handler) handleClearSession(w http.ResponseWriter, r *http.Request) {
	userID := shared.UserIDFromContext(r.Context())
	if err := h.janitor.ClearSession(r.Context(), userID, chi.URLParam(r, "scanID")); err != nil {
		h.respondError(w, "clear session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrValidation) {
		h.logger.Info("staging: "+op+" rejected", slog.Any("error", err))
	} else {
		h.logger.Error("staging: "+op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
