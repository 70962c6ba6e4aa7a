package inventory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPruneInventoryKeepsHighestQuantities(t *testing.T) {
	g := Governor{MaxInventoryItems: 3}
	products := []Product{
		{ID: "a", Quantity: 1},
		{ID: "b", Quantity: 9},
		{ID: "c", Quantity: 5},
		{ID: "d", Quantity: 5},
		{ID: "e", Quantity: 0},
	}

	kept, pruned := g.PruneInventory(products)
	require.True(t, pruned)
	require.Len(t, kept, 3)
	require.Equal(t, []string{"b", "c", "d"}, []string{kept[0].ID, kept[1].ID, kept[2].ID})
	require.Equal(t, "a", products[0].ID, "input must not be reordered")
}

func TestPruneInventoryUnderLimit(t *testing.T) {
	g := Governor{MaxInventoryItems: 3}
	products := []Product{{ID: "a"}, {ID: "b"}}
	kept, pruned := g.PruneInventory(products)
	require.False(t, pruned)
	require.Equal(t, products, kept)
}

func TestPruneInvoicesKeepsNewest(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	g := Governor{MaxInvoiceHistoryItems: 2}
	invoices := []InvoiceHistoryItem{
		{ID: "old", UploadTime: base},
		{ID: "newest", UploadTime: base.Add(2 * time.Hour)},
		{ID: "mid", UploadTime: base.Add(time.Hour)},
	}

	kept, pruned := g.PruneInvoices(invoices)
	require.True(t, pruned)
	require.Equal(t, "newest", kept[0].ID)
	require.Equal(t, "mid", kept[1].ID)
}
