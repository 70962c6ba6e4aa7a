package app

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stockscan/stockscan/internal/inventory"
	jobmetrics "github.com/stockscan/stockscan/internal/jobs"
	"github.com/stockscan/stockscan/internal/kvstore"
	"github.com/stockscan/stockscan/internal/observability"
	"github.com/stockscan/stockscan/internal/staging"
)

// Components holds the domain services built on one store.
type Components struct {
	Adapter    *kvstore.Adapter
	Janitor    *staging.Janitor
	Inventory  *inventory.Service
	JobMetrics *jobmetrics.Metrics
}

// BuildComponents wires the adapter, janitor and inventory service. The janitor's aggressive
// sweep is installed as the adapter's capacity recovery.
func BuildComponents(cfg *Config, logger *slog.Logger, store kvstore.Store, registerer prometheus.Registerer) *Components {
	adapter := kvstore.NewAdapter(store,
		kvstore.WithLogger(logger),
		kvstore.WithMaxValueBytes(cfg.StorageMaxValueBytes),
	)
	jobMetrics := jobmetrics.NewMetrics(registerer)
	janitor := staging.NewJanitor(adapter, logger, staging.Config{
		MaxAge:        cfg.StagingMaxAge,
		ImageMaxBytes: cfg.StagingImageMaxBytes,
	}, jobMetrics)
	adapter.SetCapacityRecovery(janitor.RecoverCapacity)

	var recorder inventory.Recorder
	if registerer != nil {
		recorder = observability.NewInventoryMetrics(registerer)
	}
	service := inventory.NewService(inventory.NewRepository(adapter), logger, recorder, inventory.ServiceConfig{
		MaxInventoryItems:      cfg.MaxInventoryItems,
		MaxInvoiceHistoryItems: cfg.MaxInvoiceHistoryItems,
	})
	return &Components{Adapter: adapter, Janitor: janitor, Inventory: service, JobMetrics: jobMetrics}
}

// StartupSweep runs a non-aggressive staging sweep, logging rather than failing.
func (c *Components) StartupSweep(ctx context.Context, logger *slog.Logger) {
	report, err := c.Janitor.Sweep(ctx, false)
	if err != nil {
		logger.Warn("startup staging sweep", slog.Any("error", err))
		return
	}
	logger.Info("startup staging sweep", slog.Int("scanned", report.Scanned), slog.Int("removed", report.Removed()))
}
