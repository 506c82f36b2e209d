package procurement

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository persists suppliers and purchase orders in Postgres.
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

const supplierColumns = `id, name, contact_person, email, phone, address, created_at, updated_at`

func scanSupplier(row pgx.Row) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.Name, &s.ContactPerson, &s.Email, &s.Phone, &s.Address, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

// InsertSupplier stores a new supplier.
func (r *Repository) InsertSupplier(ctx context.Context, input SupplierInput) (Supplier, error) {
	query := `
		INSERT INTO suppliers (name, contact_person, email, phone, address)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + supplierColumns
	s, err := scanSupplier(r.pool.QueryRow(ctx, query,
		input.Name, input.ContactPerson, input.Email, input.Phone, input.Address))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Supplier{}, shared.ErrDuplicate
	}
	return s, err
}

// GetSupplier fetches one supplier by id.
func (r *Repository) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	s, err := scanSupplier(r.pool.QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, shared.NewNotFound("supplier", id)
	}
	return s, err
}

// ListSuppliers returns suppliers ordered by name.
func (r *Repository) ListSuppliers(ctx context.Context, limit, offset int) ([]Supplier, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+supplierColumns+` FROM suppliers ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const poColumns = `id, po_number, supplier_id, order_date, expected_delivery_date, status, total_amount, created_at, updated_at`

func scanPurchaseOrder(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(&po.ID, &po.PONumber, &po.SupplierID, &po.OrderDate, &po.ExpectedDeliveryDate,
		&po.Status, &po.TotalAmount, &po.CreatedAt, &po.UpdatedAt)
	return po, err
}

const poItemColumns = `id, purchase_order_id, product_id, quantity, unit_price, total_price`

func scanPurchaseOrderItem(row pgx.Row) (PurchaseOrderItem, error) {
	var item PurchaseOrderItem
	err := row.Scan(&item.ID, &item.PurchaseOrderID, &item.ProductID, &item.Quantity, &item.UnitPrice, &item.TotalPrice)
	return item, err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func purchaseOrderItems(ctx context.Context, q querier, poID int64) ([]PurchaseOrderItem, error) {
	rows, err := q.Query(ctx,
		`SELECT `+poItemColumns+` FROM purchase_order_items WHERE purchase_order_id = $1 ORDER BY id`, poID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PurchaseOrderItem
	for rows.Next() {
		item, err := scanPurchaseOrderItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// GetPurchaseOrder fetches one purchase order with its items.
func (r *Repository) GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, err := scanPurchaseOrder(r.pool.QueryRow(ctx,
		`SELECT `+poColumns+` FROM purchase_orders WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, shared.NewNotFound("purchase order", id)
	}
	if err != nil {
		return PurchaseOrder{}, err
	}
	po.Items, err = purchaseOrderItems(ctx, r.pool, id)
	return po, err
}

// ListPurchaseOrders returns purchase orders matching the filter, newest
// first, without items.
func (r *Repository) ListPurchaseOrders(ctx context.Context, filter PurchaseOrderFilter) ([]PurchaseOrder, error) {
	query := `SELECT ` + poColumns + ` FROM purchase_orders WHERE 1=1`
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(" AND "+cond, len(args))
	}
	if filter.SupplierID > 0 {
		add("supplier_id = $%d", filter.SupplierID)
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

	var out []PurchaseOrder
	for rows.Next() {
		po, err := scanPurchaseOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, po)
	}
	return out, rows.Err()
}

func (t *txRepo) InsertPurchaseOrder(ctx context.Context, input PurchaseOrderInput) (PurchaseOrder, error) {
	query := `
		INSERT INTO purchase_orders (po_number, supplier_id, order_date, expected_delivery_date, status, total_amount)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + poColumns
	po, err := scanPurchaseOrder(t.tx.QueryRow(ctx, query,
		input.PONumber, input.SupplierID, input.OrderDate, input.ExpectedDeliveryDate, input.Status, input.TotalAmount))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return PurchaseOrder{}, shared.ErrDuplicate
	}
	return po, err
}

func (t *txRepo) InsertPurchaseOrderItem(ctx context.Context, poID int64, item PurchaseOrderItemInput) (PurchaseOrderItem, error) {
	query := `
		INSERT INTO purchase_order_items (purchase_order_id, product_id, quantity, unit_price, total_price)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING ` + poItemColumns
	return scanPurchaseOrderItem(t.tx.QueryRow(ctx, query,
		poID, item.ProductID, item.Quantity, item.UnitPrice, item.TotalPrice))
}

func (t *txRepo) GetPurchaseOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error) {
	po, err := scanPurchaseOrder(t.tx.QueryRow(ctx,
		`SELECT `+poColumns+` FROM purchase_orders WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, shared.NewNotFound("purchase order", id)
	}
	return po, err
}

func (t *txRepo) PurchaseOrderItems(ctx context.Context, poID int64) ([]PurchaseOrderItem, error) {
	return purchaseOrderItems(ctx, t.tx, poID)
}

func (t *txRepo) SetPurchaseOrderStatus(ctx context.Context, id int64, status Status) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE purchase_orders SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	return err
}

func (t *txRepo) ProductExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE id = $1)`, id).Scan(&exists)
	return exists, err
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
