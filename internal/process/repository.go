package process

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository persists process events in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const eventColumns = `id, event_type, description, status, severity,
	order_id, purchase_order_id, project_id, shipment_id,
	created_by, assigned_to, created_at, updated_at, resolved_at`

func scanEvent(row pgx.Row) (Event, error) {
	var ev Event
	var orderID, poID, projectID, shipmentID, createdBy, assignedTo pgtype.Int8
	var resolvedAt pgtype.Timestamptz
	err := row.Scan(
		&ev.ID, &ev.EventType, &ev.Description, &ev.Status, &ev.Severity,
		&orderID, &poID, &projectID, &shipmentID,
		&createdBy, &assignedTo, &ev.CreatedAt, &ev.UpdatedAt, &resolvedAt,
	)
	if err != nil {
		return Event{}, err
	}
	ev.OrderID = int8Ptr(orderID)
	ev.PurchaseOrderID = int8Ptr(poID)
	ev.ProjectID = int8Ptr(projectID)
	ev.ShipmentID = int8Ptr(shipmentID)
	ev.CreatedBy = int8Ptr(createdBy)
	ev.AssignedTo = int8Ptr(assignedTo)
	if resolvedAt.Valid {
		t := resolvedAt.Time
		ev.ResolvedAt = &t
	}
	return ev, nil
}

// InsertEvent appends an event with status pending.
func (r *Repository) InsertEvent(ctx context.Context, input EventInput) (Event, error) {
	return insertEvent(ctx, r.pool, input)
}

// InsertEventTx appends an event inside an existing transaction. Workflow
// modules use this so alert emission commits or rolls back with the
// triggering mutation.
func InsertEventTx(ctx context.Context, tx pgx.Tx, input EventInput) (Event, error) {
	return insertEvent(ctx, tx, input)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func insertEvent(ctx context.Context, q querier, input EventInput) (Event, error) {
	query := `
		INSERT INTO process_events (
			event_type, description, status, severity,
			order_id, purchase_order_id, project_id, shipment_id,
			created_by, assigned_to, created_at, updated_at
		) VALUES ($1, $2, 'pending', $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING ` + eventColumns
	row := q.QueryRow(ctx, query,
		input.EventType,
		input.Description,
		input.Severity,
		ptrInt8(input.OrderID),
		ptrInt8(input.PurchaseOrderID),
		ptrInt8(input.ProjectID),
		ptrInt8(input.ShipmentID),
		ptrInt8(input.CreatedBy),
		ptrInt8(input.AssignedTo),
	)
	return scanEvent(row)
}

// GetEvent fetches one event by id.
func (r *Repository) GetEvent(ctx context.Context, id int64) (Event, error) {
	query := `SELECT ` + eventColumns + ` FROM process_events WHERE id = $1`
	ev, err := scanEvent(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Event{}, shared.NewNotFound("process event", id)
	}
	return ev, err
}

// ListEvents returns events matching the filter, newest first.
func (r *Repository) ListEvents(ctx context.Context, filter EventFilter) ([]Event, error) {
	query := `SELECT ` + eventColumns + ` FROM process_events WHERE 1=1`
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(" AND %s $%d", cond, len(args))
	}
	if filter.EventType != "" {
		add("event_type =", filter.EventType)
	}
	if filter.Status != "" {
		add("status =", filter.Status)
	}
	if filter.Severity != "" {
		add("severity =", filter.Severity)
	}
	if filter.OrderID != 0 {
		add("order_id =", filter.OrderID)
	}
	if filter.PurchaseOrderID != 0 {
		add("purchase_order_id =", filter.PurchaseOrderID)
	}
	if filter.ProjectID != 0 {
		add("project_id =", filter.ProjectID)
	}
	if filter.ShipmentID != 0 {
		add("shipment_id =", filter.ShipmentID)
	}
	if filter.AssignedTo != 0 {
		add("assigned_to =", filter.AssignedTo)
	}
	if !filter.From.IsZero() {
		add("created_at >=", filter.From)
	}
	if !filter.To.IsZero() {
		add("created_at <=", filter.To)
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// UpdateEventStatus applies the status, optional assignee and resolution time.
func (r *Repository) UpdateEventStatus(ctx context.Context, id int64, status Status, assignedTo *int64, resolvedAt *time.Time) (Event, error) {
	query := `
		UPDATE process_events
		SET status = $2,
			assigned_to = COALESCE($3, assigned_to),
			resolved_at = COALESCE($4, resolved_at),
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + eventColumns
	var resolved pgtype.Timestamptz
	if resolvedAt != nil {
		resolved = pgtype.Timestamptz{Time: *resolvedAt, Valid: true}
	}
	ev, err := scanEvent(r.pool.QueryRow(ctx, query, id, status, ptrInt8(assignedTo), resolved))
	if errors.Is(err, pgx.ErrNoRows) {
		return Event{}, shared.NewNotFound("process event", id)
	}
	return ev, err
}

// ActiveAlerts returns unresolved alert events, optionally narrowed by
// severity and referenced entity kind.
func (r *Repository) ActiveAlerts(ctx context.Context, severity Severity, entityType string) ([]Event, error) {
	query := `SELECT ` + eventColumns + ` FROM process_events
		WHERE event_type = 'alert' AND status IN ('pending', 'in-progress')`
	var args []any
	if severity != "" {
		args = append(args, severity)
		query += fmt.Sprintf(" AND severity = $%d", len(args))
	}
	switch entityType {
	case "order":
		query += " AND order_id IS NOT NULL"
	case "purchase_order":
		query += " AND purchase_order_id IS NOT NULL"
	case "project":
		query += " AND project_id IS NOT NULL"
	case "shipment":
		query += " AND shipment_id IS NOT NULL"
	}
	query += " ORDER BY created_at DESC"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

// DelayedShipments returns shipments with status delayed, joined to their
// order and customer. Missing customers are reported as Unknown.
func (r *Repository) DelayedShipments(ctx context.Context) ([]DelayedShipment, error) {
	query := `SELECT s.id, s.shipment_number, s.order_id, o.order_number,
			o.customer_id, COALESCE(c.name, 'Unknown'),
			s.shipment_date, s.carrier, s.tracking_number
		FROM shipments s
		JOIN orders o ON o.id = s.order_id
		LEFT JOIN customers c ON c.id = o.customer_id
		WHERE s.status = 'delayed'
		ORDER BY s.shipment_date`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DelayedShipment
	for rows.Next() {
		var ds DelayedShipment
		if err := rows.Scan(
			&ds.ShipmentID, &ds.ShipmentNumber, &ds.OrderID, &ds.OrderNumber,
			&ds.CustomerID, &ds.CustomerName,
			&ds.ShipmentDate, &ds.Carrier, &ds.TrackingNumber,
		); err != nil {
			return nil, err
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

// EventsBetween returns every event created in the range.
func (r *Repository) EventsBetween(ctx context.Context, from, to time.Time) ([]Event, error) {
	query := `SELECT ` + eventColumns + ` FROM process_events
		WHERE created_at >= $1 AND created_at <= $2
		ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEvents(rows)
}

func collectEvents(rows pgx.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func int8Ptr(v pgtype.Int8) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

func ptrInt8(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}
