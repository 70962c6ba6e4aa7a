package inventory

import (
	"context"

	"github.com/stockscan/stockscan/internal/kvstore"
)

const (
	// InventoryKey is the base key of the per-user product collection.
	InventoryKey = "inventory_items"
	// InvoiceHistoryKey is the base key of the per-user invoice history.
	InvoiceHistoryKey = "invoice_history"
)

// Repository loads and stores whole per-user snapshots.
type Repository interface {
	LoadProducts(ctx context.Context, userID string) ([]Product, error)
	SaveProducts(ctx context.Context, userID string, products []Product) error
	LoadInvoices(ctx context.Context, userID string) ([]InvoiceHistoryItem, error)
	SaveInvoices(ctx context.Context, userID string, invoices []InvoiceHistoryItem) error
}

// KVRepository persists snapshots through the key-value adapter.
type KVRepository struct {
	kv *kvstore.Adapter
}

// NewRepository constructs KVRepository.
func NewRepository(kv *kvstore.Adapter) *KVRepository {
	return &KVRepository{kv: kv}
}

// LoadProducts reads the inventory, recomputing every line total.
func (r *KVRepository) LoadProducts(ctx context.Context, userID string) ([]Product, error) {
	products, err := kvstore.ReadCollection[Product](ctx, r.kv, InventoryKey, userID, nil)
	if err != nil {
		return nil, err
	}
	for i := range products {
		products[i].Recompute()
	}
	return products, nil
}

// SaveProducts writes the inventory.
func (r *KVRepository) SaveProducts(ctx context.Context, userID string, products []Product) error {
	for i := range products {
		products[i].Recompute()
	}
	return kvstore.Write(ctx, r.kv, InventoryKey, userID, products)
}

// LoadInvoices reads the invoice history.
func (r *KVRepository) LoadInvoices(ctx context.Context, userID string) ([]InvoiceHistoryItem, error) {
	return kvstore.ReadCollection[InvoiceHistoryItem](ctx, r.kv, InvoiceHistoryKey, userID, nil)
}

// SaveInvoices writes the invoice history.
func (r *KVRepository) SaveInvoices(ctx context.Context, userID string, invoices []InvoiceHistoryItem) error {
	return kvstore.Write(ctx, r.kv, InvoiceHistoryKey, userID, invoices)
}

var _ Repository = (*KVRepository)(nil)
