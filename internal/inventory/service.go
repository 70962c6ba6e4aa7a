package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stockscan/stockscan/internal/shared"
)

// Service coordinates inventory and invoice history operations for each user.
type Service struct {
	repo     Repository
	governor Governor
	locks    *shared.UserLocks
	logger   *slog.Logger
	metrics  Recorder
	now      func() time.Time
	newID    func() string
}

// ServiceConfig groups capacity settings.
type ServiceConfig struct {
	MaxInventoryItems      int
	MaxInvoiceHistoryItems int
}

// NewService builds Service. Zero capacities fall back to the package defaults.
func NewService(repo Repository, logger *slog.Logger, metrics Recorder, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = nopRecorder{}
	}
	if cfg.MaxInventoryItems <= 0 {
		cfg.MaxInventoryItems = DefaultMaxInventoryItems
	}
	if cfg.MaxInvoiceHistoryItems <= 0 {
		cfg.MaxInvoiceHistoryItems = DefaultMaxInvoiceHistoryItems
	}
	return &Service{
		repo: repo,
		governor: Governor{
			MaxInventoryItems:      cfg.MaxInventoryItems,
			MaxInvoiceHistoryItems: cfg.MaxInvoiceHistoryItems,
		},
		locks:   shared.NewUserLocks(),
		logger:  logger,
		metrics: metrics,
		now:     func() time.Time { return time.Now().UTC() },
		newID:   func() string { return uuid.NewString() },
	}
}

// GetProducts lists the user's inventory.
func (s *Service) GetProducts(ctx context.Context, userID string) ([]Product, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	return s.repo.LoadProducts(ctx, userID)
}

// GetProductByID returns one product.
func (s *Service) GetProductByID(ctx context.Context, userID, id string) (Product, error) {
	products, err := s.GetProducts(ctx, userID)
	if err != nil {
		return Product{}, err
	}
	idx := indexOfProduct(products, id)
	if idx < 0 {
		return Product{}, ErrProductNotFound
	}
	return products[idx], nil
}

// UpdateProduct applies a direct field edit. Quantity set here overrides instead of accumulating.
func (s *Service) UpdateProduct(ctx context.Context, userID, id string, patch ProductPatch) (Product, error) {
	if userID == "" {
		return Product{}, ErrUserRequired
	}
	unlock := s.locks.Lock(userID)
	defer unlock()

	products, err := s.repo.LoadProducts(ctx, userID)
	if err != nil {
		return Product{}, err
	}
	idx := indexOfProduct(products, id)
	if idx < 0 {
		return Product{}, ErrProductNotFound
	}
	updated, err := applyProductPatch(products[idx], patch)
	if err != nil {
		return Product{}, err
	}
	for i := range products {
		if i == idx {
			continue
		}
		if patch.Barcode != nil && updated.Barcode != "" && products[i].Barcode == updated.Barcode {
			return Product{}, ErrIdentityConflict
		}
		if patch.CatalogNumber != nil && updated.CatalogNumber != CatalogNumberUnknown && products[i].CatalogNumber == updated.CatalogNumber {
			return Product{}, ErrIdentityConflict
		}
	}
	updated.LastUpdated = s.now()
	updated.Recompute()
	products[idx] = updated
	if err := s.repo.SaveProducts(ctx, userID, products); err != nil {
		return Product{}, fmt.Errorf("inventory: save inventory: %w", err)
	}
	return updated, nil
}

// DeleteProduct removes one product.
func (s *Service) DeleteProduct(ctx context.Context, userID, id string) error {
	if userID == "" {
		return ErrUserRequired
	}
	unlock := s.locks.Lock(userID)
	defer unlock()

	products, err := s.repo.LoadProducts(ctx, userID)
	if err != nil {
		return err
	}
	idx := indexOfProduct(products, id)
	if idx < 0 {
		return ErrProductNotFound
	}
	products = append(products[:idx], products[idx+1:]...)
	if err := s.repo.SaveProducts(ctx, userID, products); err != nil {
		return fmt.Errorf("inventory: save inventory: %w", err)
	}
	return nil
}

// ClearInventory removes every product of the user.
func (s *Service) ClearInventory(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUserRequired
	}
	unlock := s.locks.Lock(userID)
	defer unlock()

	if err := s.repo.SaveProducts(ctx, userID, []Product{}); err != nil {
		return fmt.Errorf("inventory: clear inventory: %w", err)
	}
	s.logger.Info("inventory cleared", slog.String("user_id", userID))
	return nil
}

// GetInvoices lists invoice history, newest first.
func (s *Service) GetInvoices(ctx context.Context, userID string) ([]InvoiceHistoryItem, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	invoices, err := s.repo.LoadInvoices(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(invoices, func(i, j int) bool {
		return invoices[i].UploadTime.After(invoices[j].UploadTime)
	})
	return invoices, nil
}

// RegisterPendingInvoice stores a provisional record when a scan starts.
func (s *Service) RegisterPendingInvoice(ctx context.Context, userID string, in PendingInvoiceInput) (InvoiceHistoryItem, error) {
	if userID == "" {
		return InvoiceHistoryItem{}, ErrUserRequired
	}
	unlock := s.locks.Lock(userID)
	defer unlock()

	invoices, err := s.repo.LoadInvoices(ctx, userID)
	if err != nil {
		return InvoiceHistoryItem{}, err
	}
	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = TempIDPrefix + s.newID()
	}
	if indexOfInvoice(invoices, id) >= 0 {
		return InvoiceHistoryItem{}, ErrDuplicateInvoice
	}
	now := s.now()
	fileName := in.FileName
	if fileName == "" {
		fileName = "invoice_" + now.Format("20060102_150405")
	}
	inv := InvoiceHistoryItem{
		ID:               id,
		FileName:         fileName,
		OriginalFileName: in.OriginalFileName,
		UploadTime:       now,
		Status:           InvoiceStatusPending,
		Source:           SourceUpload,
		PaymentStatus:    PaymentStatusUnpaid,
	}
	invoices, pruned := s.governor.PruneInvoices(append(invoices, inv))
	if err := s.repo.SaveInvoices(ctx, userID, invoices); err != nil {
		return InvoiceHistoryItem{}, fmt.Errorf("inventory: save invoice history: %w", err)
	}
	if pruned {
		s.metrics.ObservePrune(InvoiceHistoryKey)
	}
	return inv, nil
}

// MarkInvoiceProcessing moves a pending invoice to processing.
func (s *Service) MarkInvoiceProcessing(ctx context.Context, userID, id string) (InvoiceHistoryItem, error) {
	return s.mutateInvoice(ctx, userID, id, func(inv *InvoiceHistoryItem) error {
		if !CanTransition(inv.Status, InvoiceStatusProcessing) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, inv.Status, InvoiceStatusProcessing)
		}
		inv.Status = InvoiceStatusProcessing
		return nil
	})
}

// UpdateInvoice applies an explicit human edit, which may overwrite the status.
func (s *Service) UpdateInvoice(ctx context.Context, userID, id string, patch InvoicePatch) (InvoiceHistoryItem, error) {
	return s.mutateInvoice(ctx, userID, id, func(inv *InvoiceHistoryItem) error {
		if patch.Status != nil && !patch.Status.Valid() {
			return ErrInvalidStatus
		}
		if patch.PaymentStatus != nil && !patch.PaymentStatus.Valid() {
			return ErrInvalidStatus
		}
		if patch.TotalAmount != nil && (!finite(*patch.TotalAmount) || *patch.TotalAmount < 0) {
			return ErrInvalidPrice
		}
		if patch.FileName != nil && strings.TrimSpace(*patch.FileName) != "" {
			inv.FileName = strings.TrimSpace(*patch.FileName)
		}
		if patch.InvoiceNumber != nil {
			inv.InvoiceNumber = strings.TrimSpace(*patch.InvoiceNumber)
		}
		if patch.SupplierName != nil {
			inv.SupplierName = strings.TrimSpace(*patch.SupplierName)
		}
		if patch.TotalAmount != nil {
			inv.TotalAmount = round2(*patch.TotalAmount)
		}
		if patch.Status != nil {
			inv.Status = *patch.Status
		}
		if patch.PaymentStatus != nil {
			inv.PaymentStatus = *patch.PaymentStatus
		}
		if patch.ErrorMessage != nil {
			inv.ErrorMessage = *patch.ErrorMessage
		}
		return nil
	})
}

// UpdateInvoicePaymentStatus sets the payment status.
func (s *Service) UpdateInvoicePaymentStatus(ctx context.Context, userID, id string, status PaymentStatus) (InvoiceHistoryItem, error) {
	if !status.Valid() {
		return InvoiceHistoryItem{}, ErrInvalidStatus
	}
	return s.mutateInvoice(ctx, userID, id, func(inv *InvoiceHistoryItem) error {
		inv.PaymentStatus = status
		return nil
	})
}

// DeleteInvoice removes one invoice record.
func (s *Service) DeleteInvoice(ctx context.Context, userID, id string) error {
	if userID == "" {
		return ErrUserRequired
	}
	unlock := s.locks.Lock(userID)
	defer unlock()

	invoices, err := s.repo.LoadInvoices(ctx, userID)
	if err != nil {
		return err
	}
	idx := indexOfInvoice(invoices, id)
	if idx < 0 {
		return ErrInvoiceNotFound
	}
	invoices = append(invoices[:idx], invoices[idx+1:]...)
	if err := s.repo.SaveInvoices(ctx, userID, invoices); err != nil {
		return fmt.Errorf("inventory: save invoice history: %w", err)
	}
	return nil
}

func (s *Service) mutateInvoice(ctx context.Context, userID, id string, fn func(*InvoiceHistoryItem) error) (InvoiceHistoryItem, error) {
	if userID == "" {
		return InvoiceHistoryItem{}, ErrUserRequired
	}
	unlock := s.locks.Lock(userID)
	defer unlock()

	invoices, err := s.repo.LoadInvoices(ctx, userID)
	if err != nil {
		return InvoiceHistoryItem{}, err
	}
	idx := indexOfInvoice(invoices, id)
	if idx < 0 {
		return InvoiceHistoryItem{}, ErrInvoiceNotFound
	}
	if err := fn(&invoices[idx]); err != nil {
		return InvoiceHistoryItem{}, err
	}
	if err := s.repo.SaveInvoices(ctx, userID, invoices); err != nil {
		return InvoiceHistoryItem{}, fmt.Errorf("inventory: save invoice history: %w", err)
	}
	return invoices[idx], nil
}

func applyProductPatch(p Product, patch ProductPatch) (Product, error) {
	if patch.Quantity != nil {
		if !finite(*patch.Quantity) || *patch.Quantity < 0 {
			return Product{}, ErrInvalidQuantity
		}
		p.Quantity = *patch.Quantity
	}
	for _, price := range []*float64{patch.UnitPrice, patch.SalePrice} {
		if price != nil && (!finite(*price) || *price < 0) {
			return Product{}, ErrInvalidPrice
		}
	}
	if patch.UnitPrice != nil {
		p.UnitPrice = *patch.UnitPrice
	}
	if patch.SalePrice != nil {
		p.SalePrice = patch.SalePrice
	}
	if patch.CatalogNumber != nil {
		p.CatalogNumber = strings.TrimSpace(*patch.CatalogNumber)
		if p.CatalogNumber == "" {
			p.CatalogNumber = CatalogNumberUnknown
		}
	}
	if patch.Barcode != nil {
		p.Barcode = strings.TrimSpace(*patch.Barcode)
	}
	if patch.Description != nil {
		p.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.ShortName != nil {
		p.ShortName = strings.TrimSpace(*patch.ShortName)
	}
	if p.ShortName == "" {
		p.ShortName = shortNameFrom(p.Description)
	}
	if patch.MinStockLevel != nil {
		p.MinStockLevel = patch.MinStockLevel
	}
	if patch.MaxStockLevel != nil {
		p.MaxStockLevel = patch.MaxStockLevel
	}
	return p, nil
}

func indexOfProduct(products []Product, id string) int {
	for i := range products {
		if products[i].ID == id {
			return i
		}
	}
	return -1
}

func indexOfInvoice(invoices []InvoiceHistoryItem, id string) int {
	for i := range invoices {
		if invoices[i].ID == id {
			return i
		}
	}
	return -1
}
