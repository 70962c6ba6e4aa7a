package inventory

import (
	"strings"
	"time"
)

const (
	// CatalogNumberUnknown marks a line whose supplier catalog number was not captured.
	CatalogNumberUnknown = "N/A"
	// TempIDPrefix marks provisional ids assigned before a record is committed.
	TempIDPrefix = "temp-"
	// SourceUpload tags batches that originate from a scanned document.
	SourceUpload = "upload"
	// SyncSourceSuffix tags batches pulled from a point-of-sale system.
	SyncSourceSuffix = "_sync"
)

// InvoiceStatus tracks the processing state of a scanned document.
type InvoiceStatus string

const (
	InvoiceStatusPending    InvoiceStatus = "pending"
	InvoiceStatusProcessing InvoiceStatus = "processing"
	InvoiceStatusCompleted  InvoiceStatus = "completed"
	InvoiceStatusError      InvoiceStatus = "error"
)

// Valid reports whether s is a known status.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusProcessing, InvoiceStatusCompleted, InvoiceStatusError:
		return true
	}
	return false
}

// CanTransition reports whether the lifecycle allows moving from one status to another
// without a human edit. Completed and error are terminal.
func CanTransition(from, to InvoiceStatus) bool {
	switch from {
	case InvoiceStatusPending:
		return to == InvoiceStatusProcessing || to == InvoiceStatusCompleted || to == InvoiceStatusError
	case InvoiceStatusProcessing:
		return to == InvoiceStatusCompleted || to == InvoiceStatusError
	}
	return false
}

// PaymentStatus tracks settlement of an invoice.
type PaymentStatus string

const (
	PaymentStatusUnpaid         PaymentStatus = "unpaid"
	PaymentStatusPendingPayment PaymentStatus = "pending_payment"
	PaymentStatusPaid           PaymentStatus = "paid"
)

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusUnpaid, PaymentStatusPendingPayment, PaymentStatusPaid:
		return true
	}
	return false
}

// Product is one inventory line. LineTotal is derived from Quantity and UnitPrice.
type Product struct {
	ID            string    `json:"id"`
	CatalogNumber string    `json:"catalogNumber"`
	Barcode       string    `json:"barcode,omitempty"`
	Description   string    `json:"description"`
	ShortName     string    `json:"shortName,omitempty"`
	Quantity      float64   `json:"quantity"`
	UnitPrice     float64   `json:"unitPrice"`
	SalePrice     *float64  `json:"salePrice,omitempty"`
	LineTotal     float64   `json:"lineTotal"`
	MinStockLevel *float64  `json:"minStockLevel,omitempty"`
	MaxStockLevel *float64  `json:"maxStockLevel,omitempty"`
	LastUpdated   time.Time `json:"lastUpdated"`
}

func (p *Product) RecordID() string      { return p.ID }
func (p *Product) SetRecordID(id string) { p.ID = id }
func (p *Product) RecordName() string {
	if p.ShortName != "" {
		return p.ShortName
	}
	return p.Description
}

// Recompute refreshes the derived line total.
func (p *Product) Recompute() {
	p.LineTotal = lineTotal(p.Quantity, p.UnitPrice)
}

// HasIdentity reports whether the line carries any field that can identify a product.
func (p Product) HasIdentity() bool {
	return p.Barcode != "" || p.Description != "" || (p.CatalogNumber != "" && p.CatalogNumber != CatalogNumberUnknown)
}

// InvoiceHistoryItem summarises one finalised scan.
type InvoiceHistoryItem struct {
	ID                               string        `json:"id"`
	FileName                         string        `json:"fileName"`
	OriginalFileName                 string        `json:"originalFileName,omitempty"`
	UploadTime                       time.Time     `json:"uploadTime"`
	Status                           InvoiceStatus `json:"status"`
	Source                           string        `json:"source,omitempty"`
	InvoiceNumber                    string        `json:"invoiceNumber,omitempty"`
	SupplierName                     string        `json:"supplierName,omitempty"`
	TotalAmount                      float64       `json:"totalAmount"`
	ErrorMessage                     string        `json:"errorMessage,omitempty"`
	PaymentStatus                    PaymentStatus `json:"paymentStatus"`
	InvoiceDataURI                   string        `json:"invoiceDataUri,omitempty"`
	OriginalImagePreviewURI          string        `json:"originalImagePreviewUri,omitempty"`
	CompressedImageForFinalRecordURI string        `json:"compressedImageForFinalRecordUri,omitempty"`
}

func (i *InvoiceHistoryItem) RecordID() string      { return i.ID }
func (i *InvoiceHistoryItem) SetRecordID(id string) { i.ID = id }
func (i *InvoiceHistoryItem) RecordName() string    { return i.FileName }

// ProductPriceDiscrepancy reports an existing product whose stored unit price differs from an incoming line.
type ProductPriceDiscrepancy struct {
	Product
	ExistingUnitPrice float64 `json:"existingUnitPrice"`
	NewUnitPrice      float64 `json:"newUnitPrice"`
	Incoming          Product `json:"incoming"`
}

// PriceCheckResult splits a batch into lines safe to commit and lines awaiting confirmation.
type PriceCheckResult struct {
	ToSaveDirectly []Product                 `json:"toSaveDirectly"`
	Discrepancies  []ProductPriceDiscrepancy `json:"discrepancies"`
}

// FinalizeInput describes a confirmed batch.
type FinalizeInput struct {
	UserID           string
	Lines            []Product
	FileName         string
	OriginalFileName string
	Source           string
	TempInvoiceID    string
	ScanID           string
	InvoiceNumber    string
	SupplierName     string
	// ExtractedTotal overrides the computed sum when set.
	ExtractedTotal          *float64
	PaymentStatus           PaymentStatus
	InvoiceDataURI          string
	OriginalImagePreviewURI string
	CompressedImageURI      string
}

// FinalizeResult reports what a commit changed.
type FinalizeResult struct {
	InventoryPruned bool                `json:"inventoryPruned"`
	InvoicePruned   bool                `json:"invoicePruned"`
	Invoice         *InvoiceHistoryItem `json:"invoice,omitempty"`
	Created         int                 `json:"created"`
	Updated         int                 `json:"updated"`
	Skipped         int                 `json:"skipped"`
	Failures        []LineFailure       `json:"failures,omitempty"`
	ScanID          string              `json:"scanId,omitempty"`
}

// ProductPatch carries a partial product edit. Nil fields are left untouched.
type ProductPatch struct {
	CatalogNumber *string
	Barcode       *string
	Description   *string
	ShortName     *string
	Quantity      *float64
	UnitPrice     *float64
	SalePrice     *float64
	MinStockLevel *float64
	MaxStockLevel *float64
}

// InvoicePatch carries a partial invoice edit. Nil fields are left untouched.
type InvoicePatch struct {
	FileName      *string
	InvoiceNumber *string
	SupplierName  *string
	TotalAmount   *float64
	Status        *InvoiceStatus
	PaymentStatus *PaymentStatus
	ErrorMessage  *string
}

// PendingInvoiceInput registers a provisional invoice when a scan starts.
type PendingInvoiceInput struct {
	ID               string
	FileName         string
	OriginalFileName string
}

// IsTemporaryID reports whether id is absent or provisional.
func IsTemporaryID(id string) bool {
	return id == "" || strings.HasPrefix(id, TempIDPrefix)
}

// IsSyncSource reports whether source tags a point-of-sale sync batch.
func IsSyncSource(source string) bool {
	return len(source) > len(SyncSourceSuffix) && strings.HasSuffix(source, SyncSourceSuffix)
}
