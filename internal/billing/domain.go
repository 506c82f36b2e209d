package billing

import "time"

// Status is an invoice workflow state.
type Status string

const (
	StatusDraft   Status = "draft"
	StatusSent    Status = "sent"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

var validStatuses = []Status{StatusDraft, StatusSent, StatusPaid, StatusOverdue}

// IsValidStatus reports whether s is a known invoice status.
func IsValidStatus(s Status) bool {
	for _, valid := range validStatuses {
		if s == valid {
			return true
		}
	}
	return false
}

// Invoice is a customer invoice, optionally tied to an order.
type Invoice struct {
	ID            int64
	InvoiceNumber string
	CustomerID    int64
	OrderID       *int64
	Amount        float64
	TaxAmount     float64
	TotalAmount   float64
	IssueDate     time.Time
	DueDate       time.Time
	Status        Status
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// InvoiceInput carries the fields for a new invoice.
type InvoiceInput struct {
	InvoiceNumber string
	CustomerID    int64
	OrderID       *int64
	Amount        float64
	TaxAmount     float64
	TotalAmount   float64
	IssueDate     time.Time
	DueDate       time.Time
	Status        Status
}

// InvoiceFilter narrows invoice listings.
type InvoiceFilter struct {
	CustomerID int64
	OrderID    int64
	Status     Status
	From       time.Time
	To         time.Time
	Offset     int
	Limit      int
}
