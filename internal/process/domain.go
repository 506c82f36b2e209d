package process

import "time"

// EventType classifies a process event.
type EventType string

const (
	EventTypeAlert        EventType = "alert"
	EventTypeNotification EventType = "notification"
	EventTypeApproval     EventType = "approval"
)

// Status enumerates process event statuses.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusResolved   Status = "resolved"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
)

// ValidStatuses lists every accepted status value.
var ValidStatuses = []Status{StatusPending, StatusInProgress, StatusResolved, StatusApproved, StatusRejected}

// IsValidStatus reports membership in the accepted status set.
func IsValidStatus(s Status) bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status stamps resolved_at.
func (s Status) IsTerminal() bool {
	return s == StatusResolved || s == StatusApproved || s == StatusRejected
}

// Severity grades an event.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Event is the unified sink record for alerts, notifications and approvals
// raised by any workflow.
type Event struct {
	ID              int64
	EventType       EventType
	Description     string
	Status          Status
	Severity        Severity
	OrderID         *int64
	PurchaseOrderID *int64
	ProjectID       *int64
	ShipmentID      *int64
	CreatedBy       *int64
	AssignedTo      *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ResolvedAt      *time.Time
}

// EventInput describes a new event.
type EventInput struct {
	EventType       EventType
	Description     string
	Severity        Severity
	OrderID         *int64
	PurchaseOrderID *int64
	ProjectID       *int64
	ShipmentID      *int64
	CreatedBy       *int64
	AssignedTo      *int64
}

// EventFilter narrows event listings.
type EventFilter struct {
	EventType       EventType
	Status          Status
	Severity        Severity
	OrderID         int64
	PurchaseOrderID int64
	ProjectID       int64
	ShipmentID      int64
	AssignedTo      int64
	From            time.Time
	To              time.Time
	Offset          int
	Limit           int
}

// ActiveAlert is an unresolved alert annotated with the entity it points at.
type ActiveAlert struct {
	ID          int64     `json:"id"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Severity    Severity  `json:"severity"`
	CreatedAt   time.Time `json:"created_at"`
	EntityType  string    `json:"entity_type,omitempty"`
	EntityID    int64     `json:"entity_id,omitempty"`
}

// AlertSummary groups active alerts by severity.
type AlertSummary struct {
	TotalAlerts    int           `json:"total_alerts"`
	HighPriority   int           `json:"high_priority"`
	MediumPriority int           `json:"medium_priority"`
	LowPriority    int           `json:"low_priority"`
	High           []ActiveAlert `json:"high"`
	Medium         []ActiveAlert `json:"medium"`
	Low            []ActiveAlert `json:"low"`
}

// DelayedShipment is a shipment stuck in the delayed status, annotated with
// the order and customer it belongs to.
type DelayedShipment struct {
	ShipmentID     int64     `json:"shipment_id"`
	ShipmentNumber string    `json:"shipment_number"`
	OrderID        int64     `json:"order_id"`
	OrderNumber    string    `json:"order_number"`
	CustomerID     int64     `json:"customer_id"`
	CustomerName   string    `json:"customer_name"`
	ShipmentDate   time.Time `json:"shipment_date"`
	Carrier        string    `json:"carrier"`
	TrackingNumber string    `json:"tracking_number"`
}

// DelayedShipmentsReport lists every delayed shipment.
type DelayedShipmentsReport struct {
	DelayedCount int               `json:"delayed_count"`
	Shipments    []DelayedShipment `json:"shipments"`
}

// Performance aggregates resolution statistics over a period.
type Performance struct {
	From               time.Time      `json:"start_date"`
	To                 time.Time      `json:"end_date"`
	TotalEvents        int            `json:"total_events"`
	ResolvedEvents     int            `json:"resolved_events"`
	PendingEvents      int            `json:"pending_events"`
	ResolutionRate     float64        `json:"resolution_rate"`
	AvgResolutionHours float64        `json:"avg_resolution_time_hours"`
	EventBreakdown     map[string]int `json:"event_breakdown"`
}
