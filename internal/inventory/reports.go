package inventory

import (
	"context"
	"time"
)

const usageWindowDays = 30

// Valuation computes stock value per product and in total.
func (s *Service) Valuation(ctx context.Context) (ValuationReport, error) {
	products, err := s.repo.AllProducts(ctx)
	if err != nil {
		return ValuationReport{}, err
	}
	report := ValuationReport{Products: make([]ProductValuation, 0, len(products))}
	for _, p := range products {
		value := float64(p.StockQuantity) * p.UnitPrice
		report.TotalValuation += value
		report.Products = append(report.Products, ProductValuation{
			ProductID:     p.ID,
			ProductName:   p.Name,
			SKU:           p.SKU,
			StockQuantity: p.StockQuantity,
			UnitPrice:     p.UnitPrice,
			Valuation:     value,
		})
	}
	return report, nil
}

// StockMovements summarises movements per product over a period. Starting
// stock is derived backwards from the current stock and the period's
// movement totals.
func (s *Service) StockMovements(ctx context.Context, from, to time.Time, productID int64) (MovementReport, error) {
	movements, err := s.repo.ListMovements(ctx, MovementFilter{ProductID: productID, From: from, To: to, Limit: -1})
	if err != nil {
		return MovementReport{}, err
	}
	products, err := s.repo.AllProducts(ctx)
	if err != nil {
		return MovementReport{}, err
	}
	byID := make(map[int64]Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	summaries := make(map[int64]*ProductMovementSummary)
	var order []int64
	for _, mv := range movements {
		summary, ok := summaries[mv.ProductID]
		if !ok {
			product := byID[mv.ProductID]
			name := product.Name
			if name == "" {
				name = "Unknown"
			}
			summary = &ProductMovementSummary{
				ProductID:   mv.ProductID,
				ProductName: name,
				EndingStock: product.StockQuantity,
			}
			summaries[mv.ProductID] = summary
			order = append(order, mv.ProductID)
		}
		switch mv.Kind {
		case MovementIn:
			summary.InQuantity += mv.Quantity
		case MovementOut:
			summary.OutQuantity += mv.Quantity
		case MovementAdjustment:
			summary.AdjustmentQuantity += mv.Quantity
		}
		summary.Movements = append(summary.Movements, MovementLine{
			ID:        mv.ID,
			Date:      mv.MovementDate,
			Kind:      mv.Kind,
			Quantity:  mv.Quantity,
			Reference: mv.Reference,
		})
	}

	report := MovementReport{From: from, To: to}
	for _, id := range order {
		summary := summaries[id]
		summary.StartingStock = summary.EndingStock - summary.InQuantity + summary.OutQuantity - summary.AdjustmentQuantity
		report.ProductMovements = append(report.ProductMovements, *summary)
	}
	return report, nil
}

// LowStock lists products at or below their reorder level with the projected
// days until stockout based on trailing outgoing usage.
func (s *Service) LowStock(ctx context.Context) (LowStockReport, error) {
	products, err := s.repo.LowStockProducts(ctx)
	if err != nil {
		return LowStockReport{}, err
	}
	since := s.now().UTC().AddDate(0, 0, -usageWindowDays)
	report := LowStockReport{Products: make([]LowStockProduct, 0, len(products))}
	for _, p := range products {
		outgoing, err := s.repo.OutgoingTotalSince(ctx, p.ID, since)
		if err != nil {
			return LowStockReport{}, err
		}
		line := LowStockProduct{
			ProductID:       p.ID,
			ProductName:     p.Name,
			SKU:             p.SKU,
			StockQuantity:   p.StockQuantity,
			ReorderLevel:    p.ReorderLevel,
			ReorderQuantity: p.ReorderQuantity,
			Status:          "Low Stock",
		}
		if p.StockQuantity == 0 {
			line.Status = "Out of Stock"
		}
		if outgoing > 0 {
			avgDaily := float64(outgoing) / float64(usageWindowDays)
			days := float64(p.StockQuantity) / avgDaily
			line.DaysToStockout = &days
		}
		report.Products = append(report.Products, line)
	}
	report.LowStockCount = len(report.Products)
	return report, nil
}
