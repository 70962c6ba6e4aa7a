package observability

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/stockscan/stockscan/internal/inventory"
)

// InventoryMetrics records merge outcomes and capacity pruning.
type InventoryMetrics struct {
	finalized *prometheus.CounterVec
	lines     *prometheus.CounterVec
	pruned    *prometheus.CounterVec
}

// NewInventoryMetrics registers inventory collectors on registerer.
func NewInventoryMetrics(registerer prometheus.Registerer) *InventoryMetrics {
	finalized := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockscan_inventory_finalize_total",
		Help: "Finalised batches by source kind and resulting invoice status.",
	}, []string{"source", "status"})
	lines := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockscan_inventory_lines_total",
		Help: "Product lines submitted to finalize by source kind.",
	}, []string{"source"})
	pruned := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stockscan_capacity_pruned_total",
		Help: "Writes truncated by the capacity governor per collection.",
	}, []string{"collection"})
	registerer.MustRegister(finalized, lines, pruned)
	return &InventoryMetrics{finalized: finalized, lines: lines, pruned: pruned}
}

// ObserveFinalize implements inventory.Recorder.
func (m *InventoryMetrics) ObserveFinalize(source string, status inventory.InvoiceStatus, lines int) {
	if m == nil {
		return
	}
	kind := sourceKind(source)
	m.finalized.WithLabelValues(kind, string(status)).Inc()
	m.lines.WithLabelValues(kind).Add(float64(lines))
}

// ObservePrune implements inventory.Recorder.
func (m *InventoryMetrics) ObservePrune(collection string) {
	if m == nil {
		return
	}
	m.pruned.WithLabelValues(collection).Inc()
}

// sourceKind keeps label cardinality bounded: provider names come from the URL.
func sourceKind(source string) string {
	if inventory.IsSyncSource(source) {
		return "sync"
	}
	return source
}

var _ inventory.Recorder = (*InventoryMetrics)(nil)
