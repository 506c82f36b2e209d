package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/process"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository persists customers, orders and shipments in Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const customerColumns = `id, name, contact_person, email, phone, address, credit_limit, created_at, updated_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.ContactPerson, &c.Email, &c.Phone, &c.Address,
		&c.CreditLimit, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// InsertCustomer stores a new customer.
func (r *Repository) InsertCustomer(ctx context.Context, input CustomerInput) (Customer, error) {
	query := `
		INSERT INTO customers (name, contact_person, email, phone, address, credit_limit)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + customerColumns
	c, err := scanCustomer(r.pool.QueryRow(ctx, query,
		input.Name, input.ContactPerson, input.Email, input.Phone, input.Address, input.CreditLimit))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Customer{}, shared.ErrDuplicate
	}
	return c, err
}

// GetCustomer fetches one customer by id.
func (r *Repository) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	c, err := scanCustomer(r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, shared.NewNotFound("customer", id)
	}
	return c, err
}

// ListCustomers returns customers ordered by name.
func (r *Repository) ListCustomers(ctx context.Context, limit, offset int) ([]Customer, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+customerColumns+` FROM customers ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateCustomer applies the present patch fields.
func (r *Repository) UpdateCustomer(ctx context.Context, id int64, patch CustomerPatch) (Customer, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id}
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if v, ok := patch.Name.Get(); ok {
		set("name", v)
	}
	if v, ok := patch.ContactPerson.Get(); ok {
		set("contact_person", v)
	}
	if v, ok := patch.Email.Get(); ok {
		set("email", v)
	}
	if v, ok := patch.Phone.Get(); ok {
		set("phone", v)
	}
	if v, ok := patch.Address.Get(); ok {
		set("address", v)
	}
	if v, ok := patch.CreditLimit.Get(); ok {
		set("credit_limit", v)
	}

	query := `UPDATE customers SET ` + joinSets(sets) + ` WHERE id = $1 RETURNING ` + customerColumns
	c, err := scanCustomer(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, shared.NewNotFound("customer", id)
	}
	return c, err
}

func joinSets(sets []string) string {
	out := sets[0]
	for _, s := range sets[1:] {
		out += ", " + s
	}
	return out
}

const orderColumns = `id, order_number, customer_id, order_date, required_date, shipped_date, status, total_amount, created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o       Order
		shipped pgtype.Timestamptz
	)
	err := row.Scan(&o.ID, &o.OrderNumber, &o.CustomerID, &o.OrderDate, &o.RequiredDate,
		&shipped, &o.Status, &o.TotalAmount, &o.CreatedAt, &o.UpdatedAt)
	if shipped.Valid {
		t := shipped.Time
		o.ShippedDate = &t
	}
	return o, err
}

const orderItemColumns = `id, order_id, product_id, quantity, unit_price, discount, total_price`

func scanOrderItem(row pgx.Row) (OrderItem, error) {
	var item OrderItem
	err := row.Scan(&item.ID, &item.OrderID, &item.ProductID, &item.Quantity,
		&item.UnitPrice, &item.Discount, &item.TotalPrice)
	return item, err
}

// GetOrder fetches one order with its items.
func (r *Repository) GetOrder(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, shared.NewNotFound("order", id)
	}
	if err != nil {
		return Order{}, err
	}
	o.Items, err = orderItems(ctx, r.pool, id)
	return o, err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func orderItems(ctx context.Context, q querier, orderID int64) ([]OrderItem, error) {
	rows, err := q.Query(ctx,
		`SELECT `+orderItemColumns+` FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		item, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// ListOrders returns orders matching the filter, newest first, without items.
func (r *Repository) ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE 1=1`
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(" AND "+cond, len(args))
	}
	if filter.CustomerID > 0 {
		add("customer_id = $%d", filter.CustomerID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if !filter.From.IsZero() {
		add("order_date >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("order_date <= $%d", filter.To)
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY order_date DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// OrdersBetween returns the non-cancelled orders dated in the range.
func (r *Repository) OrdersBetween(ctx context.Context, from, to time.Time) ([]Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE order_date >= $1 AND order_date <= $2 AND status <> $3
		 ORDER BY order_date`, from, to, StatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// ItemsBetween returns the lines of non-cancelled orders dated in the range.
func (r *Repository) ItemsBetween(ctx context.Context, from, to time.Time) ([]OrderItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.unit_price, oi.discount, oi.total_price
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		WHERE o.order_date >= $1 AND o.order_date <= $2 AND o.status <> $3
		ORDER BY oi.id`, from, to, StatusCancelled)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		item, err := scanOrderItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// CustomerNames resolves customer display names for the report rollups.
func (r *Repository) CustomerNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	return names(ctx, r.pool, `SELECT id, name FROM customers WHERE id = ANY($1)`, ids)
}

// ProductNames resolves product display names for the report rollups.
func (r *Repository) ProductNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	return names(ctx, r.pool, `SELECT id, name FROM products WHERE id = ANY($1)`, ids)
}

func names(ctx context.Context, q querier, query string, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	return out, rows.Err()
}

// InsertOrder stores the order row. Items are inserted separately so each
// line shares the surrounding transaction with its stock effects.
func (t *txRepo) InsertOrder(ctx context.Context, input OrderInput) (Order, error) {
	query := `
		INSERT INTO orders (order_number, customer_id, order_date, required_date, status, total_amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + orderColumns
	o, err := scanOrder(t.tx.QueryRow(ctx, query,
		input.OrderNumber, input.CustomerID, input.OrderDate, input.RequiredDate, input.Status, input.TotalAmount))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Order{}, shared.ErrDuplicate
	}
	return o, err
}

func (t *txRepo) InsertOrderItem(ctx context.Context, orderID int64, item OrderItemInput) (OrderItem, error) {
	query := `
		INSERT INTO order_items (order_id, product_id, quantity, unit_price, discount, total_price)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + orderItemColumns
	return scanOrderItem(t.tx.QueryRow(ctx, query,
		orderID, item.ProductID, item.Quantity, item.UnitPrice, item.Discount, item.TotalPrice))
}

func (t *txRepo) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	o, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, shared.NewNotFound("order", id)
	}
	return o, err
}

func (t *txRepo) OrderItems(ctx context.Context, orderID int64) ([]OrderItem, error) {
	return orderItems(ctx, t.tx, orderID)
}

func (t *txRepo) SetOrderStatus(ctx context.Context, id int64, status Status, shippedDate *time.Time) error {
	if shippedDate != nil {
		_, err := t.tx.Exec(ctx,
			`UPDATE orders SET status = $2, shipped_date = $3, updated_at = now() WHERE id = $1`,
			id, status, *shippedDate)
		return err
	}
	_, err := t.tx.Exec(ctx, `UPDATE orders SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	return err
}

func (t *txRepo) InsertShipment(ctx context.Context, shipment Shipment) (Shipment, error) {
	query := `
		INSERT INTO shipments (shipment_number, order_id, shipment_date, carrier, tracking_number, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, shipment_number, order_id, shipment_date, carrier, tracking_number, status, created_at`
	var s Shipment
	err := t.tx.QueryRow(ctx, query,
		shipment.ShipmentNumber, shipment.OrderID, shipment.ShipmentDate,
		shipment.Carrier, shipment.TrackingNumber, shipment.Status,
	).Scan(&s.ID, &s.ShipmentNumber, &s.OrderID, &s.ShipmentDate, &s.Carrier, &s.TrackingNumber, &s.Status, &s.CreatedAt)
	return s, err
}

func (t *txRepo) GetProductForUpdate(ctx context.Context, id int64) (inventory.Product, error) {
	return inventory.GetProductForUpdateTx(ctx, t.tx, id)
}

func (t *txRepo) SetStock(ctx context.Context, productID, quantity int64) error {
	return inventory.SetStockTx(ctx, t.tx, productID, quantity)
}

func (t *txRepo) InsertMovement(ctx context.Context, input inventory.MovementInput) (inventory.Movement, error) {
	return inventory.InsertMovementTx(ctx, t.tx, input)
}

func (t *txRepo) InsertEvent(ctx context.Context, input process.EventInput) (process.Event, error) {
	return process.InsertEventTx(ctx, t.tx, input)
}
