package sales

import (
	"fmt"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Status is an order workflow state.
type Status string

const (
	StatusDraft      Status = "draft"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var validStatuses = []Status{StatusDraft, StatusConfirmed, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled}

// IsValidStatus reports whether s is a known order status.
func IsValidStatus(s Status) bool {
	for _, valid := range validStatuses {
		if s == valid {
			return true
		}
	}
	return false
}

// Customer is a sales counterparty.
type Customer struct {
	ID            int64
	Name          string
	ContactPerson string
	Email         string
	Phone         string
	Address       string
	CreditLimit   float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// CustomerInput carries the fields for a new customer.
type CustomerInput struct {
	Name          string
	ContactPerson string
	Email         string
	Phone         string
	Address       string
	CreditLimit   float64
}

// CustomerPatch carries a partial customer update. Absent fields keep their
// current values.
type CustomerPatch struct {
	Name          shared.Optional[string]  `json:"name"`
	ContactPerson shared.Optional[string]  `json:"contact_person"`
	Email         shared.Optional[string]  `json:"email"`
	Phone         shared.Optional[string]  `json:"phone"`
	Address       shared.Optional[string]  `json:"address"`
	CreditLimit   shared.Optional[float64] `json:"credit_limit"`
}

// Order is a sales order with its line items.
type Order struct {
	ID           int64
	OrderNumber  string
	CustomerID   int64
	OrderDate    time.Time
	RequiredDate time.Time
	ShippedDate  *time.Time
	Status       Status
	TotalAmount  float64
	Items        []OrderItem
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OrderItem is one order line.
type OrderItem struct {
	ID         int64
	OrderID    int64
	ProductID  int64
	Quantity   int64
	UnitPrice  float64
	Discount   float64
	TotalPrice float64
}

// OrderItemInput carries one new order line.
type OrderItemInput struct {
	ProductID  int64
	Quantity   int64
	UnitPrice  float64
	Discount   float64
	TotalPrice float64
}

// OrderInput carries the fields for a new order.
type OrderInput struct {
	OrderNumber  string
	CustomerID   int64
	OrderDate    time.Time
	RequiredDate time.Time
	Status       Status
	TotalAmount  float64
	Items        []OrderItemInput
}

// OrderFilter narrows order listings.
type OrderFilter struct {
	CustomerID int64
	Status     Status
	From       time.Time
	To         time.Time
	Offset     int
	Limit      int
}

// Shipment is created when an order transitions to shipped.
type Shipment struct {
	ID             int64
	ShipmentNumber string
	OrderID        int64
	ShipmentDate   time.Time
	Carrier        string
	TrackingNumber string
	Status         Status
	CreatedAt      time.Time
}

// LowStockMessage is the alert text attached to an order placed against
// insufficient stock. Unlike a direct outbound movement, the order itself
// still goes through.
func LowStockMessage(p inventory.Product, requested int64) string {
	return fmt.Sprintf("Low stock for product %s (ID: %d). Required: %d, Available: %d",
		p.Name, p.ID, requested, p.StockQuantity)
}

// CustomerSales aggregates one customer's orders over a period.
type CustomerSales struct {
	CustomerID   int64   `json:"customer_id"`
	CustomerName string  `json:"customer_name"`
	OrderCount   int64   `json:"order_count"`
	TotalSales   float64 `json:"total_sales"`
}

// CustomerSalesReport is the sales-by-customer rollup.
type CustomerSalesReport struct {
	From      time.Time       `json:"start_date"`
	To        time.Time       `json:"end_date"`
	Customers []CustomerSales `json:"sales_by_customer"`
}

// ProductSales aggregates one product's sold lines over a period.
type ProductSales struct {
	ProductID    int64   `json:"product_id"`
	ProductName  string  `json:"product_name"`
	QuantitySold int64   `json:"quantity_sold"`
	TotalSales   float64 `json:"total_sales"`
}

// ProductSalesReport is the sales-by-product rollup.
type ProductSalesReport struct {
	From     time.Time      `json:"start_date"`
	To       time.Time      `json:"end_date"`
	Products []ProductSales `json:"sales_by_product"`
}

// TrendPoint is one bucket of the sales trend.
type TrendPoint struct {
	Period     string  `json:"period"`
	OrderCount int64   `json:"order_count"`
	TotalSales float64 `json:"total_sales"`
}

// TrendReport buckets non-cancelled orders by period key.
type TrendReport struct {
	From     time.Time    `json:"start_date"`
	To       time.Time    `json:"end_date"`
	Interval string       `json:"interval"`
	Points   []TrendPoint `json:"sales_trend"`
}

// PeriodKey renders the trend bucket key for t. Unknown intervals fall back
// to monthly buckets.
func PeriodKey(t time.Time, interval string) string {
	switch interval {
	case "day":
		return t.Format("2006-01-02")
	case "week":
		_, week := t.ISOWeek()
		return fmt.Sprintf("%d-W%d", t.Year(), week)
	case "month":
		return t.Format("2006-01")
	case "quarter":
		quarter := (int(t.Month())-1)/3 + 1
		return fmt.Sprintf("%d-Q%d", t.Year(), quarter)
	case "year":
		return fmt.Sprintf("%d", t.Year())
	default:
		return t.Format("2006-01")
	}
}
