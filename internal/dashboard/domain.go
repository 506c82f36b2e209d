package dashboard

import "time"

// FinancialKPIs are the headline figures of the summary.
type FinancialKPIs struct {
	TotalRevenue  float64 `json:"total_revenue"`
	TotalExpenses float64 `json:"total_expenses"`
	ProfitLoss    float64 `json:"profit_loss"`
}

// TrendMonth is one month's bucket of the six-month sales trend.
type TrendMonth struct {
	Month      string  `json:"month"`
	TotalSales float64 `json:"total_sales"`
	OrderCount int     `json:"order_count"`
}

// Notification is one recent pending process event.
type Notification struct {
	ID      int64     `json:"id"`
	Message string    `json:"message"`
	Date    time.Time `json:"date"`
}

// Summary is the dashboard payload.
type Summary struct {
	FinancialKPIs FinancialKPIs  `json:"financial_kpis"`
	ActiveOrders  int            `json:"active_orders"`
	LowStockItems int            `json:"low_stock_items"`
	SalesTrend    []TrendMonth   `json:"sales_trend"`
	Notifications []Notification `json:"notifications"`
}

// OrderTotal is the minimal order projection the trend needs.
type OrderTotal struct {
	Date   time.Time
	Amount float64
}
