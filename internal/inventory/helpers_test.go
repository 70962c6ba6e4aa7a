package inventory

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stockscan/stockscan/internal/kvstore"
)

const testUser = "user-1"

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, cfg ServiceConfig) (*Service, *KVRepository, *testClock) {
	t.Helper()
	repo := NewRepository(kvstore.NewAdapter(kvstore.NewMemoryStore(0)))
	svc, clock := newServiceWithRepo(repo, cfg)
	return svc, repo, clock
}

func newServiceWithRepo(repo Repository, cfg ServiceConfig) (*Service, *testClock) {
	svc := NewService(repo, discardLogger(), nil, cfg)
	clock := &testClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	seq := 0
	svc.now = clock.Now
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("id-%03d", seq)
	}
	return svc, clock
}

type failingRepo struct {
	Repository
	saveProductsErr error
	saveInvoicesErr error
}

func (r *failingRepo) SaveProducts(ctx context.Context, userID string, products []Product) error {
	if r.saveProductsErr != nil {
		return r.saveProductsErr
	}
	return r.Repository.SaveProducts(ctx, userID, products)
}

func (r *failingRepo) SaveInvoices(ctx context.Context, userID string, invoices []InvoiceHistoryItem) error {
	if r.saveInvoicesErr != nil {
		return r.saveInvoicesErr
	}
	return r.Repository.SaveInvoices(ctx, userID, invoices)
}

func floatPtr(v float64) *float64 { return &v }

func strPtr(v string) *string { return &v }
