package inventory

import (
	"context"
	"log/slog"
	"math"
)

// CheckPrices classifies a batch against the stored inventory without writing anything.
func (s *Service) CheckPrices(ctx context.Context, userID string, lines []Product) (PriceCheckResult, error) {
	if userID == "" {
		return PriceCheckResult{}, ErrUserRequired
	}
	products, err := s.repo.LoadProducts(ctx, userID)
	if err != nil {
		return PriceCheckResult{}, err
	}
	result := classifyPrices(products, lines)
	s.logger.Debug("inventory price check",
		slog.String("user_id", userID),
		slog.Int("lines", len(lines)),
		slog.Int("discrepancies", len(result.Discrepancies)))
	return result, nil
}

func classifyPrices(products, lines []Product) PriceCheckResult {
	result := PriceCheckResult{
		ToSaveDirectly: make([]Product, 0, len(lines)),
		Discrepancies:  []ProductPriceDiscrepancy{},
	}
	for _, raw := range lines {
		line := prepareLine(raw)
		idx := ResolveIdentity(products, line)
		if idx < 0 {
			result.ToSaveDirectly = append(result.ToSaveDirectly, line)
			continue
		}
		current := products[idx]
		if line.UnitPrice != 0 && math.Abs(current.UnitPrice-line.UnitPrice) > priceEpsilon {
			result.Discrepancies = append(result.Discrepancies, ProductPriceDiscrepancy{
				Product:           current,
				ExistingUnitPrice: current.UnitPrice,
				NewUnitPrice:      line.UnitPrice,
				Incoming:          line,
			})
			continue
		}
		line.UnitPrice = current.UnitPrice
		if IsTemporaryID(line.ID) {
			line.ID = current.ID
		}
		line.Recompute()
		result.ToSaveDirectly = append(result.ToSaveDirectly, line)
	}
	return result
}
