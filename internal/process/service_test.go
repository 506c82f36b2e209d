package process

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryRepo struct {
	events  map[int64]Event
	delayed []DelayedShipment
	nextID  int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{events: make(map[int64]Event)}
}

func (r *memoryRepo) InsertEvent(ctx context.Context, input EventInput) (Event, error) {
	r.nextID++
	ev := Event{
		ID:          r.nextID,
		EventType:   input.EventType,
		Description: input.Description,
		Status:      StatusPending,
		Severity:    input.Severity,
		OrderID:     input.OrderID,
		AssignedTo:  input.AssignedTo,
		CreatedAt:   time.Now().UTC(),
	}
	r.events[ev.ID] = ev
	return ev, nil
}

func (r *memoryRepo) GetEvent(ctx context.Context, id int64) (Event, error) {
	ev, ok := r.events[id]
	if !ok {
		return Event{}, shared.NewNotFound("process event", id)
	}
	return ev, nil
}

func (r *memoryRepo) ListEvents(ctx context.Context, filter EventFilter) ([]Event, error) {
	var out []Event
	for _, ev := range r.events {
		out = append(out, ev)
	}
	return out, nil
}

func (r *memoryRepo) UpdateEventStatus(ctx context.Context, id int64, status Status, assignedTo *int64, resolvedAt *time.Time) (Event, error) {
	ev, ok := r.events[id]
	if !ok {
		return Event{}, shared.NewNotFound("process event", id)
	}
	ev.Status = status
	if assignedTo != nil {
		ev.AssignedTo = assignedTo
	}
	if resolvedAt != nil {
		ev.ResolvedAt = resolvedAt
	}
	r.events[id] = ev
	return ev, nil
}

func (r *memoryRepo) ActiveAlerts(ctx context.Context, severity Severity, entityType string) ([]Event, error) {
	var out []Event
	for _, ev := range r.events {
		if ev.EventType != EventTypeAlert {
			continue
		}
		if ev.Status != StatusPending && ev.Status != StatusInProgress {
			continue
		}
		if severity != "" && ev.Severity != severity {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (r *memoryRepo) EventsBetween(ctx context.Context, from, to time.Time) ([]Event, error) {
	var out []Event
	for _, ev := range r.events {
		if !ev.CreatedAt.Before(from) && !ev.CreatedAt.After(to) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (r *memoryRepo) DelayedShipments(ctx context.Context) ([]DelayedShipment, error) {
	return r.delayed, nil
}

type staticUsers map[int64]bool

func (u staticUsers) UserExists(ctx context.Context, id int64) (bool, error) {
	return u[id], nil
}

func TestUpdateStatusRejectsUnknownValue(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, staticUsers{}, nil)
	ctx := context.Background()

	ev, err := svc.Record(ctx, EventInput{EventType: EventTypeAlert, Description: "stock check", Severity: SeverityLow})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, ev.ID, "escalated", nil)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestUpdateStatusValidatesAssignee(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, staticUsers{7: true}, nil)
	ctx := context.Background()

	ev, err := svc.Record(ctx, EventInput{EventType: EventTypeApproval, Description: "approve PO", Severity: SeverityMedium})
	require.NoError(t, err)

	missing := int64(99)
	_, err = svc.UpdateStatus(ctx, ev.ID, StatusInProgress, &missing)
	require.ErrorIs(t, err, shared.ErrNotFound)

	assignee := int64(7)
	updated, err := svc.UpdateStatus(ctx, ev.ID, StatusInProgress, &assignee)
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedTo)
	require.Equal(t, int64(7), *updated.AssignedTo)
	require.Nil(t, updated.ResolvedAt)
}

func TestTerminalStatusStampsResolvedAt(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, staticUsers{}, nil)
	frozen := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return frozen })
	ctx := context.Background()

	for _, status := range []Status{StatusResolved, StatusApproved, StatusRejected} {
		ev, err := svc.Record(ctx, EventInput{EventType: EventTypeAlert, Description: "x", Severity: SeverityLow})
		require.NoError(t, err)

		updated, err := svc.UpdateStatus(ctx, ev.ID, status, nil)
		require.NoError(t, err)
		require.NotNil(t, updated.ResolvedAt)
		require.Equal(t, frozen, *updated.ResolvedAt)
	}
}

func TestActiveAlertsGroupsBySeverity(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, staticUsers{}, nil)
	ctx := context.Background()

	orderID := int64(42)
	_, err := svc.Record(ctx, EventInput{EventType: EventTypeAlert, Description: "shortage", Severity: SeverityHigh, OrderID: &orderID})
	require.NoError(t, err)
	_, err = svc.Record(ctx, EventInput{EventType: EventTypeAlert, Description: "reorder", Severity: SeverityMedium})
	require.NoError(t, err)
	_, err = svc.Record(ctx, EventInput{EventType: EventTypeNotification, Description: "fyi", Severity: SeverityLow})
	require.NoError(t, err)

	summary, err := svc.ActiveAlerts(ctx, "", "")
	require.NoError(t, err)
	require.Equal(t, 2, summary.TotalAlerts)
	require.Equal(t, 1, summary.HighPriority)
	require.Equal(t, 1, summary.MediumPriority)
	require.Len(t, summary.High, 1)
	require.Equal(t, "order", summary.High[0].EntityType)
	require.Equal(t, int64(42), summary.High[0].EntityID)
}

func TestPerformanceComputesResolutionStats(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, staticUsers{}, nil)
	ctx := context.Background()

	created := time.Now().UTC().Add(-4 * time.Hour)
	resolved := created.Add(2 * time.Hour)
	repo.events[1] = Event{ID: 1, EventType: EventTypeAlert, Status: StatusResolved, CreatedAt: created, ResolvedAt: &resolved}
	repo.events[2] = Event{ID: 2, EventType: EventTypeNotification, Status: StatusPending, CreatedAt: created}

	perf, err := svc.Performance(ctx, created.Add(-time.Hour), time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, 2, perf.TotalEvents)
	require.Equal(t, 1, perf.ResolvedEvents)
	require.Equal(t, 1, perf.PendingEvents)
	require.InDelta(t, 0.5, perf.ResolutionRate, 0.0001)
	require.InDelta(t, 2.0, perf.AvgResolutionHours, 0.0001)
	require.Equal(t, 1, perf.EventBreakdown["alert"])
}

func TestDelayedShipmentsReport(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, staticUsers{}, nil)
	ctx := context.Background()

	shipped := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	repo.delayed = []DelayedShipment{
		{ShipmentID: 1, ShipmentNumber: "SHP-001", OrderID: 10, OrderNumber: "ORD-010", CustomerID: 3, CustomerName: "Acme Industrial", ShipmentDate: shipped, Carrier: "Default Carrier", TrackingNumber: "TRK-1"},
		{ShipmentID: 2, ShipmentNumber: "SHP-002", OrderID: 11, OrderNumber: "ORD-011", CustomerID: 0, CustomerName: "Unknown", ShipmentDate: shipped.Add(24 * time.Hour), Carrier: "Default Carrier", TrackingNumber: ""},
	}

	report, err := svc.DelayedShipments(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, report.DelayedCount)
	require.Equal(t, "SHP-001", report.Shipments[0].ShipmentNumber)
	require.Equal(t, "Unknown", report.Shipments[1].CustomerName)
}

func TestDelayedShipmentsEmpty(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, staticUsers{}, nil)

	report, err := svc.DelayedShipments(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, report.DelayedCount)
	require.NotNil(t, report.Shipments)
}
