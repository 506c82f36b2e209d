package sales

import (
	"context"
	"sort"
	"time"
)

// SalesByCustomer groups non-cancelled orders in the range per customer.
func (s *Service) SalesByCustomer(ctx context.Context, from, to time.Time) (CustomerSalesReport, error) {
	orders, err := s.repo.OrdersBetween(ctx, from, to)
	if err != nil {
		return CustomerSalesReport{}, err
	}
	totals := make(map[int64]*CustomerSales)
	var ids []int64
	for _, order := range orders {
		entry, ok := totals[order.CustomerID]
		if !ok {
			entry = &CustomerSales{CustomerID: order.CustomerID}
			totals[order.CustomerID] = entry
			ids = append(ids, order.CustomerID)
		}
		entry.OrderCount++
		entry.TotalSales += order.TotalAmount
	}

	names, err := s.repo.CustomerNames(ctx, ids)
	if err != nil {
		return CustomerSalesReport{}, err
	}
	report := CustomerSalesReport{From: from, To: to, Customers: make([]CustomerSales, 0, len(ids))}
	for _, id := range ids {
		entry := totals[id]
		entry.CustomerName = names[id]
		if entry.CustomerName == "" {
			entry.CustomerName = "Unknown"
		}
		report.Customers = append(report.Customers, *entry)
	}
	return report, nil
}

// SalesByProduct groups the order lines of non-cancelled orders in the range
// per product.
func (s *Service) SalesByProduct(ctx context.Context, from, to time.Time) (ProductSalesReport, error) {
	items, err := s.repo.ItemsBetween(ctx, from, to)
	if err != nil {
		return ProductSalesReport{}, err
	}
	totals := make(map[int64]*ProductSales)
	var ids []int64
	for _, item := range items {
		entry, ok := totals[item.ProductID]
		if !ok {
			entry = &ProductSales{ProductID: item.ProductID}
			totals[item.ProductID] = entry
			ids = append(ids, item.ProductID)
		}
		entry.QuantitySold += item.Quantity
		entry.TotalSales += item.TotalPrice
	}

	names, err := s.repo.ProductNames(ctx, ids)
	if err != nil {
		return ProductSalesReport{}, err
	}
	report := ProductSalesReport{From: from, To: to, Products: make([]ProductSales, 0, len(ids))}
	for _, id := range ids {
		entry := totals[id]
		entry.ProductName = names[id]
		if entry.ProductName == "" {
			entry.ProductName = "Unknown"
		}
		report.Products = append(report.Products, *entry)
	}
	return report, nil
}

// Trend buckets non-cancelled orders in the range by period key, sorted by
// period.
func (s *Service) Trend(ctx context.Context, from, to time.Time, interval string) (TrendReport, error) {
	orders, err := s.repo.OrdersBetween(ctx, from, to)
	if err != nil {
		return TrendReport{}, err
	}
	buckets := make(map[string]*TrendPoint)
	for _, order := range orders {
		key := PeriodKey(order.OrderDate, interval)
		point, ok := buckets[key]
		if !ok {
			point = &TrendPoint{Period: key}
			buckets[key] = point
		}
		point.OrderCount++
		point.TotalSales += order.TotalAmount
	}

	report := TrendReport{From: from, To: to, Interval: interval, Points: make([]TrendPoint, 0, len(buckets))}
	for _, point := range buckets {
		report.Points = append(report.Points, *point)
	}
	sort.Slice(report.Points, func(i, j int) bool {
		return report.Points[i].Period < report.Points[j].Period
	})
	return report, nil
}
