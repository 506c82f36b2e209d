package procurement

import "time"

// Status is a purchase order workflow state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusReceived  Status = "received"
	StatusCancelled Status = "cancelled"
)

var validStatuses = []Status{StatusDraft, StatusSent, StatusReceived, StatusCancelled}

// IsValidStatus reports whether s is a known purchase order status.
func IsValidStatus(s Status) bool {
	for _, valid := range validStatuses {
		if s == valid {
			return true
		}
	}
	return false
}

// Supplier is a procurement counterparty.
type Supplier struct {
	ID            int64
	Name          string
	ContactPerson string
	Email         string
	Phone         string
	Address       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SupplierInput carries the fields for a new supplier.
type SupplierInput struct {
	Name          string
	ContactPerson string
	Email         string
	Phone         string
	Address       string
}

// PurchaseOrder is a purchase order with its line items.
type PurchaseOrder struct {
	ID                   int64
	PONumber             string
	SupplierID           int64
	OrderDate            time.Time
	ExpectedDeliveryDate time.Time
	Status               Status
	TotalAmount          float64
	Items                []PurchaseOrderItem
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// PurchaseOrderItem is one purchase order line.
type PurchaseOrderItem struct {
	ID              int64
	PurchaseOrderID int64
	ProductID       int64
	Quantity        int64
	UnitPrice       float64
	TotalPrice      float64
}

// PurchaseOrderItemInput carries one new purchase order line.
type PurchaseOrderItemInput struct {
	ProductID  int64
	Quantity   int64
	UnitPrice  float64
	TotalPrice float64
}

// PurchaseOrderInput carries the fields for a new purchase order.
type PurchaseOrderInput struct {
	PONumber             string
	SupplierID           int64
	OrderDate            time.Time
	ExpectedDeliveryDate time.Time
	Status               Status
	TotalAmount          float64
	Items                []PurchaseOrderItemInput
}

// PurchaseOrderFilter narrows purchase order listings.
type PurchaseOrderFilter struct {
	SupplierID int64
	Status     Status
	From       time.Time
	To         time.Time
	Offset     int
	Limit      int
}
