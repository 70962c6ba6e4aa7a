package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type mergeOutcome struct {
	products []Product
	total    decimal.Decimal
	created  int
	updated  int
	skipped  int
	failures []LineFailure
}

// Finalize merges a confirmed batch into the inventory and, for uploads, records the invoice.
// Inventory is always written before invoice history.
func (s *Service) Finalize(ctx context.Context, in FinalizeInput) (FinalizeResult, error) {
	if in.UserID == "" {
		return FinalizeResult{}, ErrUserRequired
	}
	upload := in.Source == SourceUpload
	if !upload && !IsSyncSource(in.Source) {
		return FinalizeResult{}, ErrInvalidSource
	}

	unlock := s.locks.Lock(in.UserID)
	defer unlock()

	var (
		products []Product
		invoices []InvoiceHistoryItem
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		products, err = s.repo.LoadProducts(gctx, in.UserID)
		return err
	})
	if upload {
		g.Go(func() error {
			var err error
			invoices, err = s.repo.LoadInvoices(gctx, in.UserID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return FinalizeResult{}, fmt.Errorf("inventory: load snapshot: %w", err)
	}

	// No cancellation once merging starts: both writes must land together.
	ctx = context.WithoutCancel(ctx)
	now := s.now()
	out := s.mergeLines(products, in.Lines, now)

	result := FinalizeResult{
		Created:  out.created,
		Updated:  out.updated,
		Skipped:  out.skipped,
		Failures: out.failures,
	}

	pruned, inventoryPruned := s.governor.PruneInventory(out.products)
	if err := s.repo.SaveProducts(ctx, in.UserID, pruned); err != nil {
		return FinalizeResult{}, fmt.Errorf("inventory: save inventory: %w", err)
	}
	result.InventoryPruned = inventoryPruned
	if inventoryPruned {
		s.metrics.ObservePrune(InventoryKey)
		s.logger.Warn("inventory pruned to capacity",
			slog.String("user_id", in.UserID),
			slog.Int("limit", s.governor.MaxInventoryItems),
			slog.Int("before", len(out.products)))
	}

	status := InvoiceStatusCompleted
	errorMessage := ""
	if len(out.failures) > 0 {
		status = InvoiceStatusError
		errorMessage = (&PartialBatchError{Failures: out.failures, Total: len(in.Lines)}).Error()
		s.logger.Warn("inventory batch partially failed",
			slog.String("user_id", in.UserID),
			slog.String("source", in.Source),
			slog.String("detail", errorMessage))
	}

	if !upload {
		s.metrics.ObserveFinalize(in.Source, status, len(in.Lines))
		s.logger.Info("inventory sync merged",
			slog.String("user_id", in.UserID),
			slog.String("source", in.Source),
			slog.Int("created", out.created),
			slog.Int("updated", out.updated))
		return result, nil
	}

	total := round2(out.total.InexactFloat64())
	if in.ExtractedTotal != nil && finite(*in.ExtractedTotal) {
		total = round2(*in.ExtractedTotal)
	}
	invoices, invoice := upsertInvoice(invoices, in, invoiceOutcome{
		status:       status,
		errorMessage: errorMessage,
		total:        total,
		now:          now,
		newID:        s.newID,
	})
	invoices, invoicePruned := s.governor.PruneInvoices(invoices)
	invoiceKept := indexOfInvoice(invoices, invoice.ID) >= 0
	if err := s.repo.SaveInvoices(ctx, in.UserID, invoices); err != nil {
		err = fmt.Errorf("inventory: save invoice history: %w", err)
		if len(out.failures) > 0 {
			err = MarkHandled(err)
		}
		return result, err
	}
	if invoicePruned {
		s.metrics.ObservePrune(InvoiceHistoryKey)
	}
	s.metrics.ObserveFinalize(in.Source, status, len(in.Lines))

	result.InvoicePruned = invoicePruned
	result.ScanID = in.ScanID
	if result.ScanID == "" {
		result.ScanID = in.TempInvoiceID
	}
	if !invoiceKept {
		// An upserted record keeps its original upload time and can be the oldest entry.
		s.logger.Warn("finalized invoice dropped by history cap",
			slog.String("user_id", in.UserID),
			slog.String("invoice_id", invoice.ID),
			slog.Int("limit", s.governor.MaxInvoiceHistoryItems))
		return result, nil
	}
	result.Invoice = &invoice
	s.logger.Info("invoice finalized",
		slog.String("user_id", in.UserID),
		slog.String("invoice_id", invoice.ID),
		slog.String("status", string(status)),
		slog.Float64("total", invoice.TotalAmount))
	return result, nil
}

func (s *Service) mergeLines(existing, lines []Product, now time.Time) mergeOutcome {
	out := mergeOutcome{
		products: append(make([]Product, 0, len(existing)+len(lines)), existing...),
		total:    decimal.Zero,
	}
	for i, raw := range lines {
		line := prepareLine(raw)
		if err := validateLine(line); err != nil {
			out.failures = append(out.failures, LineFailure{Index: i, Reference: lineReference(line), Reason: err.Error()})
			continue
		}
		idx := ResolveIdentity(out.products, line)
		if idx >= 0 {
			var dropped []string
			line, dropped = keepIdentityUnique(out.products, idx, line)
			if len(dropped) > 0 {
				s.logger.Warn("merge kept stored identity to avoid a duplicate",
					slog.Int("index", i),
					slog.String("product_id", out.products[idx].ID),
					slog.Any("fields", dropped))
			}
			mergeInto(&out.products[idx], line, strings.TrimSpace(raw.ShortName), now)
			out.updated++
		} else {
			if !line.HasIdentity() {
				out.skipped++
				s.logger.Debug("skipping unidentifiable line", slog.Int("index", i))
				continue
			}
			if IsTemporaryID(line.ID) {
				line.ID = s.newID()
			}
			line.LastUpdated = now
			out.products = append(out.products, line)
			out.created++
		}
		out.total = out.total.Add(decimal.NewFromFloat(line.LineTotal))
	}
	return out
}

func validateLine(line Product) error {
	if !finite(line.Quantity) || line.Quantity < 0 {
		return ErrInvalidQuantity
	}
	if !finite(line.UnitPrice) || line.UnitPrice < 0 {
		return ErrInvalidPrice
	}
	if line.SalePrice != nil && (!finite(*line.SalePrice) || *line.SalePrice < 0) {
		return ErrInvalidPrice
	}
	return nil
}

func mergeInto(p *Product, line Product, explicitShortName string, now time.Time) {
	p.Quantity = addQuantity(p.Quantity, line.Quantity)
	if line.UnitPrice != 0 {
		p.UnitPrice = line.UnitPrice
	}
	if line.Description != "" {
		p.Description = line.Description
	}
	if explicitShortName != "" {
		p.ShortName = explicitShortName
	} else if p.ShortName == "" {
		p.ShortName = line.ShortName
	}
	if line.Barcode != "" {
		p.Barcode = line.Barcode
	}
	if line.CatalogNumber != "" && line.CatalogNumber != CatalogNumberUnknown {
		p.CatalogNumber = line.CatalogNumber
	}
	if line.SalePrice != nil {
		p.SalePrice = line.SalePrice
	}
	if line.MinStockLevel != nil {
		p.MinStockLevel = line.MinStockLevel
	}
	if line.MaxStockLevel != nil {
		p.MaxStockLevel = line.MaxStockLevel
	}
	p.LastUpdated = now
	p.Recompute()
}

func lineReference(p Product) string {
	switch {
	case p.Barcode != "":
		return p.Barcode
	case p.CatalogNumber != "" && p.CatalogNumber != CatalogNumberUnknown:
		return p.CatalogNumber
	default:
		return p.ShortName
	}
}

type invoiceOutcome struct {
	status       InvoiceStatus
	errorMessage string
	total        float64
	now          time.Time
	newID        func() string
}

// upsertInvoice updates the record matching in.TempInvoiceID in place or appends a new one.
func upsertInvoice(invoices []InvoiceHistoryItem, in FinalizeInput, out invoiceOutcome) ([]InvoiceHistoryItem, InvoiceHistoryItem) {
	if in.TempInvoiceID != "" {
		for i := range invoices {
			if invoices[i].ID != in.TempInvoiceID {
				continue
			}
			inv := &invoices[i]
			inv.Status = out.status
			inv.TotalAmount = out.total
			inv.ErrorMessage = out.errorMessage
			inv.Source = in.Source
			if !inv.PaymentStatus.Valid() {
				inv.PaymentStatus = PaymentStatusUnpaid
			}
			setIfPresent(&inv.FileName, in.FileName)
			setIfPresent(&inv.OriginalFileName, in.OriginalFileName)
			setIfPresent(&inv.InvoiceNumber, in.InvoiceNumber)
			setIfPresent(&inv.SupplierName, in.SupplierName)
			setIfPresent(&inv.InvoiceDataURI, in.InvoiceDataURI)
			setIfPresent(&inv.OriginalImagePreviewURI, in.OriginalImagePreviewURI)
			setIfPresent(&inv.CompressedImageForFinalRecordURI, in.CompressedImageURI)
			return invoices, *inv
		}
	}

	id := in.TempInvoiceID
	if id == "" {
		id = out.newID()
	}
	fileName := in.FileName
	if fileName == "" {
		fileName = "invoice_" + out.now.Format("20060102_150405")
	}
	payment := in.PaymentStatus
	if !payment.Valid() {
		payment = PaymentStatusUnpaid
	}
	inv := InvoiceHistoryItem{
		ID:                               id,
		FileName:                         fileName,
		OriginalFileName:                 in.OriginalFileName,
		UploadTime:                       out.now,
		Status:                           out.status,
		Source:                           in.Source,
		InvoiceNumber:                    in.InvoiceNumber,
		SupplierName:                     in.SupplierName,
		TotalAmount:                      out.total,
		ErrorMessage:                     out.errorMessage,
		PaymentStatus:                    payment,
		InvoiceDataURI:                   in.InvoiceDataURI,
		OriginalImagePreviewURI:          in.OriginalImagePreviewURI,
		CompressedImageForFinalRecordURI: in.CompressedImageURI,
	}
	return append(invoices, inv), inv
}

func setIfPresent(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}
