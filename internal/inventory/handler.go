package inventory

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/stockscan/stockscan/internal/platform/httpx"
	"github.com/stockscan/stockscan/internal/shared"
)

// SessionCleaner removes staging data once a scan session is committed.
type SessionCleaner interface {
	ScheduleSessionCleanup(ctx context.Context, userID, scanID string) error
}

// Handler wires HTTP endpoints for inventory and invoice history.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	cleaner   SessionCleaner
	validator *validator.Validate
}

// NewHandler constructs inventory handler. cleaner may be nil.
func NewHandler(logger *slog.Logger, service *Service, cleaner SessionCleaner) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, cleaner: cleaner, validator: validator.New()}
}

// MountRoutes registers inventory and invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/inventory", func(r chi.Router) {
		r.Post("/price-check", h.handlePriceCheck)
		r.Post("/finalize", h.handleFinalize)
		r.Post("/sync/{provider}", h.handleSync)
		r.Get("/products", h.handleListProducts)
		r.Delete("/products", h.handleClearInventory)
		r.Get("/products/{id}", h.handleGetProduct)
		r.Patch("/products/{id}", h.handleUpdateProduct)
		r.Delete("/products/{id}", h.handleDeleteProduct)
	})
	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", h.handleListInvoices)
		r.Post("/pending", h.handleRegisterPending)
		r.Post("/{id}/processing", h.handleMarkProcessing)
		r.Patch("/{id}", h.handleUpdateInvoice)
		r.Put("/{id}/payment-status", h.handlePaymentStatus)
		r.Delete("/{id}", h.handleDeleteInvoice)
	})
}

type priceCheckRequest struct {
	Products []ExternalProductLine `json:"products" validate:"required,min=1"`
}

type finalizeRequest struct {
	Products                []ExternalProductLine `json:"products" validate:"required"`
	FileName                string                `json:"fileName" validate:"max=255"`
	OriginalFileName        string                `json:"originalFileName" validate:"max=255"`
	Source                  string                `json:"source"`
	TempInvoiceID           string                `json:"tempInvoiceId" validate:"max=128"`
	ScanID                  string                `json:"scanId" validate:"max=128,excludes=_"`
	InvoiceNumber           string                `json:"extractedInvoiceNumber" validate:"max=128"`
	SupplierName            string                `json:"supplierName" validate:"max=255"`
	ExtractedTotal          *FlexFloat            `json:"extractedTotalAmount"`
	PaymentStatus           string                `json:"paymentStatus" validate:"omitempty,oneof=unpaid pending_payment paid"`
	InvoiceDataURI          string                `json:"invoiceDataUri"`
	OriginalImagePreviewURI string                `json:"originalImagePreviewUri"`
	CompressedImageURI      string                `json:"compressedImageForFinalRecordUri"`
}

type syncRequest struct {
	Products []ExternalProductLine `json:"products" validate:"required"`
}

type productPatchRequest struct {
	CatalogNumber *string    `json:"catalogNumber" validate:"omitempty,max=128"`
	Barcode       *string    `json:"barcode" validate:"omitempty,max=128"`
	Description   *string    `json:"description" validate:"omitempty,max=512"`
	ShortName     *string    `json:"shortName" validate:"omitempty,max=128"`
	Quantity      *FlexFloat `json:"quantity"`
	UnitPrice     *FlexFloat `json:"unitPrice"`
	SalePrice     *FlexFloat `json:"salePrice"`
	MinStockLevel *FlexFloat `json:"minStockLevel"`
	MaxStockLevel *FlexFloat `json:"maxStockLevel"`
}

type pendingInvoiceRequest struct {
	ID               string `json:"id" validate:"max=128"`
	FileName         string `json:"fileName" validate:"max=255"`
	OriginalFileName string `json:"originalFileName" validate:"max=255"`
}

type invoicePatchRequest struct {
	FileName      *string    `json:"fileName" validate:"omitempty,max=255"`
	InvoiceNumber *string    `json:"invoiceNumber" validate:"omitempty,max=128"`
	SupplierName  *string    `json:"supplierName" validate:"omitempty,max=255"`
	TotalAmount   *FlexFloat `json:"totalAmount"`
	Status        *string    `json:"status" validate:"omitempty,oneof=pending processing completed error"`
	PaymentStatus *string    `json:"paymentStatus" validate:"omitempty,oneof=unpaid pending_payment paid"`
	ErrorMessage  *string    `json:"errorMessage"`
}

type paymentStatusRequest struct {
	PaymentStatus string `json:"paymentStatus" validate:"required,oneof=unpaid pending_payment paid"`
}

func (h *Handler) handlePriceCheck(w http.ResponseWriter, r *http.Request) {
	var req priceCheckRequest
	if !h.decode(w, r, &req) {
		return
	}
	result, err := h.service.CheckPrices(r.Context(), shared.UserIDFromContext(r.Context()), NormalizeLines(req.Products))
	if err != nil {
		h.respondError(w, "price check", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleFinalize(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if !h.decode(w, r, &req) {
		return
	}
	source := req.Source
	if source == "" {
		source = SourceUpload
	}
	in := FinalizeInput{
		UserID:                  shared.UserIDFromContext(r.Context()),
		Lines:                   NormalizeLines(req.Products),
		FileName:                req.FileName,
		OriginalFileName:        req.OriginalFileName,
		Source:                  source,
		TempInvoiceID:           req.TempInvoiceID,
		ScanID:                  req.ScanID,
		InvoiceNumber:           req.InvoiceNumber,
		SupplierName:            req.SupplierName,
		ExtractedTotal:          flexPtr(req.ExtractedTotal),
		PaymentStatus:           PaymentStatus(req.PaymentStatus),
		InvoiceDataURI:          req.InvoiceDataURI,
		OriginalImagePreviewURI: req.OriginalImagePreviewURI,
		CompressedImageURI:      req.CompressedImageURI,
	}
	h.finalize(w, r, in)
}

func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	provider := strings.ToLower(strings.TrimSpace(chi.URLParam(r, "provider")))
	if provider == "" {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "provider required")
		return
	}
	var req syncRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.finalize(w, r, FinalizeInput{
		UserID: shared.UserIDFromContext(r.Context()),
		Lines:  NormalizeLines(req.Products),
		Source: provider + SyncSourceSuffix,
	})
}

func (h *Handler) finalize(w http.ResponseWriter, r *http.Request, in FinalizeInput) {
	result, err := h.service.Finalize(r.Context(), in)
	if err != nil {
		if IsHandled(err) {
			h.logger.Info("finalize failed after partial batch was recorded", slog.Any("error", err))
			httpx.Problem(w, http.StatusInternalServerError, "Invoice Not Saved", "some lines failed and the invoice record could not be saved")
			return
		}
		h.respondError(w, "finalize", err)
		return
	}
	if result.ScanID != "" && h.cleaner != nil {
		if err := h.cleaner.ScheduleSessionCleanup(r.Context(), in.UserID, result.ScanID); err != nil {
			h.logger.Warn("schedule staging cleanup", slog.String("scan_id", result.ScanID), slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.GetProducts(r.Context(), shared.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "list products", err)
		return
	}
	httpx.JSON(w, http.StatusOK, products)
}

func (h *Handler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.service.GetProductByID(r.Context(), shared.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "get product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productPatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	patch := ProductPatch{
		CatalogNumber: req.CatalogNumber,
		Barcode:       req.Barcode,
		Description:   req.Description,
		ShortName:     req.ShortName,
		Quantity:      flexPtr(req.Quantity),
		UnitPrice:     flexPtr(req.UnitPrice),
		SalePrice:     flexPtr(req.SalePrice),
		MinStockLevel: flexPtr(req.MinStockLevel),
		MaxStockLevel: flexPtr(req.MaxStockLevel),
	}
	product, err := h.service.UpdateProduct(r.Context(), shared.UserIDFromContext(r.Context()), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.respondError(w, "update product", err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) handleDeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteProduct(r.Context(), shared.UserIDFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, "delete product", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleClearInventory(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ClearInventory(r.Context(), shared.UserIDFromContext(r.Context())); err != nil {
		h.respondError(w, "clear inventory", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.service.GetInvoices(r.Context(), shared.UserIDFromContext(r.Context()))
	if err != nil {
		h.respondError(w, "list invoices", err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoices)
}

func (h *Handler) handleRegisterPending(w http.ResponseWriter, r *http.Request) {
	var req pendingInvoiceRequest
	if !h.decode(w, r, &req) {
		return
	}
	inv, err := h.service.RegisterPendingInvoice(r.Context(), shared.UserIDFromContext(r.Context()), PendingInvoiceInput{
		ID:               req.ID,
		FileName:         req.FileName,
		OriginalFileName: req.OriginalFileName,
	})
	if err != nil {
		h.respondError(w, "register pending invoice", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) handleMarkProcessing(w http.ResponseWriter, r *http.Request) {
	inv, err := h.service.MarkInvoiceProcessing(r.Context(), shared.UserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, "mark invoice processing", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) handleUpdateInvoice(w http.ResponseWriter, r *http.Request) {
	var req invoicePatchRequest
	if !h.decode(w, r, &req) {
		return
	}
	patch := InvoicePatch{
		FileName:      req.FileName,
		InvoiceNumber: req.InvoiceNumber,
		SupplierName:  req.SupplierName,
		TotalAmount:   flexPtr(req.TotalAmount),
		ErrorMessage:  req.ErrorMessage,
	}
	if req.Status != nil {
		status := InvoiceStatus(*req.Status)
		patch.Status = &status
	}
	if req.PaymentStatus != nil {
		payment := PaymentStatus(*req.PaymentStatus)
		patch.PaymentStatus = &payment
	}
	inv, err := h.service.UpdateInvoice(r.Context(), shared.UserIDFromContext(r.Context()), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.respondError(w, "update invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req paymentStatusRequest
	if !h.decode(w, r, &req) {
		return
	}
	inv, err := h.service.UpdateInvoicePaymentStatus(r.Context(), shared.UserIDFromContext(r.Context()), chi.URLParam(r, "id"), PaymentStatus(req.PaymentStatus))
	if err != nil {
		h.respondError(w, "update payment status", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) handleDeleteInvoice(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteInvoice(r.Context(), shared.UserIDFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, "delete invoice", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(w, r, target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Malformed Request", err.Error())
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, shared.ErrNotFound) || errors.Is(err, shared.ErrValidation) {
		h.logger.Info(op+" rejected", slog.Any("error", err))
	} else {
		h.logger.Error(op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
