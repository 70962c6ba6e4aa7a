package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckPricesFlagsChangedUnitPrice(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService(t, ServiceConfig{})
	require.NoError(t, repo.SaveProducts(ctx, testUser, []Product{
		{ID: "p1", Barcode: "111", Description: "Milk", Quantity: 3, UnitPrice: 10.00},
	}))

	result, err := svc.CheckPrices(ctx, testUser, []Product{
		{Barcode: "111", Description: "Milk", Quantity: 2, UnitPrice: 12.50},
		{Barcode: "555", Description: "Bread", Quantity: 1, UnitPrice: 4},
	})
	require.NoError(t, err)
	require.Len(t, result.Discrepancies, 1)
	d := result.Discrepancies[0]
	require.Equal(t, "p1", d.ID)
	require.Equal(t, 10.00, d.ExistingUnitPrice)
	require.Equal(t, 12.50, d.NewUnitPrice)
	require.Equal(t, 2.0, d.Incoming.Quantity)

	require.Len(t, result.ToSaveDirectly, 1)
	require.Equal(t, "555", result.ToSaveDirectly[0].Barcode)
}

func TestCheckPricesIgnoresSubEpsilonDifference(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService(t, ServiceConfig{})
	require.NoError(t, repo.SaveProducts(ctx, testUser, []Product{
		{ID: "p1", CatalogNumber: "C-1", Description: "Milk", UnitPrice: 10.00},
	}))

	result, err := svc.CheckPrices(ctx, testUser, []Product{
		{CatalogNumber: "C-1", Quantity: 2, UnitPrice: 10.0005},
	})
	require.NoError(t, err)
	require.Empty(t, result.Discrepancies)
	require.Len(t, result.ToSaveDirectly, 1)
	line := result.ToSaveDirectly[0]
	require.Equal(t, "p1", line.ID)
	require.Equal(t, 10.00, line.UnitPrice)
	require.Equal(t, 20.00, line.LineTotal)
}

func TestCheckPricesZeroIncomingPriceKeepsStored(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService(t, ServiceConfig{})
	require.NoError(t, repo.SaveProducts(ctx, testUser, []Product{
		{ID: "p1", Barcode: "111", UnitPrice: 7.5},
	}))

	result, err := svc.CheckPrices(ctx, testUser, []Product{{Barcode: "111", Quantity: 2}})
	require.NoError(t, err)
	require.Empty(t, result.Discrepancies)
	require.Equal(t, 7.5, result.ToSaveDirectly[0].UnitPrice)
	require.Equal(t, 15.0, result.ToSaveDirectly[0].LineTotal)
}

func TestCheckPricesDoesNotWrite(t *testing.T) {
	ctx := context.Background()
	svc, repo, _ := newTestService(t, ServiceConfig{})

	_, err := svc.CheckPrices(ctx, testUser, []Product{{Barcode: "1", Quantity: 1, UnitPrice: 1}})
	require.NoError(t, err)
	products, err := repo.LoadProducts(ctx, testUser)
	require.NoError(t, err)
	require.Empty(t, products)
}

func TestCheckPricesRequiresUser(t *testing.T) {
	svc, _, _ := newTestService(t, ServiceConfig{})
	_, err := svc.CheckPrices(context.Background(), "", nil)
	require.ErrorIs(t, err, ErrUserRequired)
}
