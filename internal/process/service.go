package process

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts persistence for process events.
type RepositoryPort interface {
	InsertEvent(ctx context.Context, input EventInput) (Event, error)
	GetEvent(ctx context.Context, id int64) (Event, error)
	ListEvents(ctx context.Context, filter EventFilter) ([]Event, error)
	UpdateEventStatus(ctx context.Context, id int64, status Status, assignedTo *int64, resolvedAt *time.Time) (Event, error)
	ActiveAlerts(ctx context.Context, severity Severity, entityType string) ([]Event, error)
	EventsBetween(ctx context.Context, from, to time.Time) ([]Event, error)
	DelayedShipments(ctx context.Context) ([]DelayedShipment, error)
}

// UserDirectory resolves assignee references.
type UserDirectory interface {
	UserExists(ctx context.Context, id int64) (bool, error)
}

// Service coordinates process event workflows.
type Service struct {
	repo    RepositoryPort
	users   UserDirectory
	metrics *observability.Metrics
	now     func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, users UserDirectory, metrics *observability.Metrics) *Service {
	return &Service{repo: repo, users: users, metrics: metrics, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Record appends a new event to the sink.
func (s *Service) Record(ctx context.Context, input EventInput) (Event, error) {
	if input.EventType == "" {
		return Event{}, shared.NewValidation("event_type", "required")
	}
	switch input.Severity {
	case SeverityLow, SeverityMedium, SeverityHigh:
	case "":
		input.Severity = SeverityLow
	default:
		return Event{}, shared.NewValidation("severity", fmt.Sprintf("unknown severity %q", input.Severity))
	}
	if input.AssignedTo != nil {
		ok, err := s.users.UserExists(ctx, *input.AssignedTo)
		if err != nil {
			return Event{}, err
		}
		if !ok {
			return Event{}, shared.NewNotFound("user", *input.AssignedTo)
		}
	}
	ev, err := s.repo.InsertEvent(ctx, input)
	if err != nil {
		return Event{}, err
	}
	s.metrics.RecordProcessEvent(string(ev.Severity))
	return ev, nil
}

// Get returns one event.
func (s *Service) Get(ctx context.Context, id int64) (Event, error) {
	return s.repo.GetEvent(ctx, id)
}

// List returns events matching the filter.
func (s *Service) List(ctx context.Context, filter EventFilter) ([]Event, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.repo.ListEvents(ctx, filter)
}

// UpdateStatus validates and applies a status transition. Assignees must be
// existing users; terminal statuses stamp the resolution time.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status Status, assignedTo *int64) (Event, error) {
	if !IsValidStatus(status) {
		return Event{}, shared.NewValidation("status", fmt.Sprintf("must be one of %v", ValidStatuses))
	}
	if _, err := s.repo.GetEvent(ctx, id); err != nil {
		return Event{}, err
	}
	if assignedTo != nil {
		ok, err := s.users.UserExists(ctx, *assignedTo)
		if err != nil {
			return Event{}, err
		}
		if !ok {
			return Event{}, shared.NewNotFound("user", *assignedTo)
		}
	}
	var resolvedAt *time.Time
	if status.IsTerminal() {
		now := s.now().UTC()
		resolvedAt = &now
	}
	return s.repo.UpdateEventStatus(ctx, id, status, assignedTo, resolvedAt)
}

// ActiveAlerts groups unresolved alerts by severity, annotated with the
// entity each one references.
func (s *Service) ActiveAlerts(ctx context.Context, severity Severity, entityType string) (AlertSummary, error) {
	events, err := s.repo.ActiveAlerts(ctx, severity, entityType)
	if err != nil {
		return AlertSummary{}, err
	}
	summary := AlertSummary{}
	for _, ev := range events {
		alert := ActiveAlert{
			ID:          ev.ID,
			Description: ev.Description,
			Status:      ev.Status,
			Severity:    ev.Severity,
			CreatedAt:   ev.CreatedAt,
		}
		switch {
		case ev.OrderID != nil:
			alert.EntityType, alert.EntityID = "order", *ev.OrderID
		case ev.PurchaseOrderID != nil:
			alert.EntityType, alert.EntityID = "purchase_order", *ev.PurchaseOrderID
		case ev.ProjectID != nil:
			alert.EntityType, alert.EntityID = "project", *ev.ProjectID
		case ev.ShipmentID != nil:
			alert.EntityType, alert.EntityID = "shipment", *ev.ShipmentID
		}
		summary.TotalAlerts++
		switch ev.Severity {
		case SeverityHigh:
			summary.HighPriority++
			summary.High = append(summary.High, alert)
		case SeverityMedium:
			summary.MediumPriority++
			summary.Medium = append(summary.Medium, alert)
		default:
			summary.LowPriority++
			summary.Low = append(summary.Low, alert)
		}
	}
	return summary, nil
}

// DelayedShipments lists shipments flagged delayed, with their order and
// customer context.
func (s *Service) DelayedShipments(ctx context.Context) (DelayedShipmentsReport, error) {
	shipments, err := s.repo.DelayedShipments(ctx)
	if err != nil {
		return DelayedShipmentsReport{}, err
	}
	if shipments == nil {
		shipments = []DelayedShipment{}
	}
	return DelayedShipmentsReport{DelayedCount: len(shipments), Shipments: shipments}, nil
}

// Performance computes resolution statistics for events created in the range.
func (s *Service) Performance(ctx context.Context, from, to time.Time) (Performance, error) {
	events, err := s.repo.EventsBetween(ctx, from, to)
	if err != nil {
		return Performance{}, err
	}
	perf := Performance{
		From:           from,
		To:             to,
		TotalEvents:    len(events),
		EventBreakdown: map[string]int{"alert": 0, "notification": 0, "approval": 0, "other": 0},
	}
	var totalResolution time.Duration
	for _, ev := range events {
		if ev.ResolvedAt != nil {
			perf.ResolvedEvents++
			totalResolution += ev.ResolvedAt.Sub(ev.CreatedAt)
			switch ev.EventType {
			case EventTypeAlert, EventTypeNotification, EventTypeApproval:
				perf.EventBreakdown[string(ev.EventType)]++
			default:
				perf.EventBreakdown["other"]++
			}
		}
		if ev.Status == StatusPending || ev.Status == StatusInProgress {
			perf.PendingEvents++
		}
	}
	if perf.TotalEvents > 0 {
		perf.ResolutionRate = float64(perf.ResolvedEvents) / float64(perf.TotalEvents)
	}
	if perf.ResolvedEvents > 0 {
		perf.AvgResolutionHours = (totalResolution / time.Duration(perf.ResolvedEvents)).Hours()
	}
	return perf, nil
}
