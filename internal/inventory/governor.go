package inventory

import "sort"

const (
	// DefaultMaxInventoryItems bounds the stored inventory collection.
	DefaultMaxInventoryItems = 500
	// DefaultMaxInvoiceHistoryItems bounds the stored invoice history.
	DefaultMaxInvoiceHistoryItems = 50
)

// Governor caps the hot collections before they are written.
type Governor struct {
	MaxInventoryItems      int
	MaxInvoiceHistoryItems int
}

// PruneInventory keeps the highest-quantity products when over the cap.
func (g Governor) PruneInventory(products []Product) ([]Product, bool) {
	limit := g.MaxInventoryItems
	if limit <= 0 || len(products) <= limit {
		return products, false
	}
	sorted := append([]Product(nil), products...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Quantity > sorted[j].Quantity
	})
	return sorted[:limit], true
}

// PruneInvoices keeps the most recent invoices when over the cap.
func (g Governor) PruneInvoices(invoices []InvoiceHistoryItem) ([]InvoiceHistoryItem, bool) {
	limit := g.MaxInvoiceHistoryItems
	if limit <= 0 || len(invoices) <= limit {
		return invoices, false
	}
	sorted := append([]InvoiceHistoryItem(nil), invoices...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].UploadTime.After(sorted[j].UploadTime)
	})
	return sorted[:limit], true
}
