package inventory

import (
	"fmt"
	"time"
)

// MovementKind enumerates supported inventory movements.
type MovementKind string

const (
	// MovementIn represents an inbound movement.
	MovementIn MovementKind = "in"
	// MovementOut represents an outbound movement.
	MovementOut MovementKind = "out"
	// MovementAdjustment sets the stock level to an absolute quantity.
	MovementAdjustment MovementKind = "adjustment"
)

// IsValidMovementKind reports membership in the accepted kind set.
func IsValidMovementKind(k MovementKind) bool {
	return k == MovementIn || k == MovementOut || k == MovementAdjustment
}

// Product tracks stock per SKU.
type Product struct {
	ID              int64
	SKU             string
	Name            string
	Description     string
	Category        string
	UnitPrice       float64
	StockQuantity   int64
	ReorderLevel    int64
	ReorderQuantity int64
	LeadTimeDays    int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ProductInput describes a new or replaced product.
type ProductInput struct {
	SKU             string
	Name            string
	Description     string
	Category        string
	UnitPrice       float64
	StockQuantity   int64
	ReorderLevel    int64
	ReorderQuantity int64
	LeadTimeDays    int64
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	Category string
	LowStock bool
	Offset   int
	Limit    int
}

// Movement is the append-only audit record of a stock change. Quantity is
// always the unsigned magnitude; the kind carries the direction.
type Movement struct {
	ID           int64
	ProductID    int64
	Quantity     int64
	Kind         MovementKind
	Reference    string
	MovementDate time.Time
	CreatedAt    time.Time
}

// MovementInput describes a requested movement.
type MovementInput struct {
	ProductID    int64
	Quantity     int64
	Kind         MovementKind
	Reference    string
	MovementDate time.Time
}

// MovementFilter narrows movement listings.
type MovementFilter struct {
	ProductID int64
	Kind      MovementKind
	From      time.Time
	To        time.Time
	Offset    int
	Limit     int
}

// ReorderMessage is the alert text raised when stock ends at or below the
// reorder level.
func ReorderMessage(p Product, stock int64) string {
	return fmt.Sprintf("Reorder point reached for product %s (ID: %d). Current stock: %d, Reorder level: %d",
		p.Name, p.ID, stock, p.ReorderLevel)
}

// ShortageMessage is the alert text raised when a direct outbound movement
// exceeds stock on hand.
func ShortageMessage(p Product, requested int64) string {
	return fmt.Sprintf("Insufficient stock for product %s (ID: %d). Required: %d, Available: %d",
		p.Name, p.ID, requested, p.StockQuantity)
}

// ProductValuation is one line of the valuation report.
type ProductValuation struct {
	ProductID     int64   `json:"product_id"`
	ProductName   string  `json:"product_name"`
	SKU           string  `json:"sku"`
	StockQuantity int64   `json:"stock_quantity"`
	UnitPrice     float64 `json:"unit_price"`
	Valuation     float64 `json:"valuation"`
}

// ValuationReport sums stock value across all products.
type ValuationReport struct {
	TotalValuation float64            `json:"total_valuation"`
	Products       []ProductValuation `json:"products"`
}

// MovementLine is one movement inside the stock movement summary.
type MovementLine struct {
	ID        int64        `json:"id"`
	Date      time.Time    `json:"date"`
	Kind      MovementKind `json:"type"`
	Quantity  int64        `json:"quantity"`
	Reference string       `json:"reference"`
}

// ProductMovementSummary aggregates one product's movements in a period.
type ProductMovementSummary struct {
	ProductID          int64          `json:"product_id"`
	ProductName        string         `json:"product_name"`
	StartingStock      int64          `json:"starting_stock"`
	InQuantity         int64          `json:"in_quantity"`
	OutQuantity        int64          `json:"out_quantity"`
	AdjustmentQuantity int64          `json:"adjustment_quantity"`
	EndingStock        int64          `json:"ending_stock"`
	Movements          []MovementLine `json:"movements"`
}

// MovementReport is the stock movement summary over a period.
type MovementReport struct {
	From             time.Time                `json:"start_date"`
	To               time.Time                `json:"end_date"`
	ProductMovements []ProductMovementSummary `json:"product_movements"`
}

// LowStockProduct is one line of the low stock report. DaysToStockout is nil
// when there was no outgoing usage in the trailing window.
type LowStockProduct struct {
	ProductID       int64    `json:"product_id"`
	ProductName     string   `json:"product_name"`
	SKU             string   `json:"sku"`
	StockQuantity   int64    `json:"stock_quantity"`
	ReorderLevel    int64    `json:"reorder_level"`
	ReorderQuantity int64    `json:"reorder_quantity"`
	DaysToStockout  *float64 `json:"days_to_stockout"`
	Status          string   `json:"status"`
}

// LowStockReport lists products at or below their reorder level.
type LowStockReport struct {
	LowStockCount int               `json:"low_stock_count"`
	Products      []LowStockProduct `json:"products"`
}
