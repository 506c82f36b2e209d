package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/process"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository persists inventory data in PostgreSQL.
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

const productColumns = `id, sku, name, description, category, unit_price,
	stock_quantity, reorder_level, reorder_quantity, lead_time_days, created_at, updated_at`

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Description, &p.Category, &p.UnitPrice,
		&p.StockQuantity, &p.ReorderLevel, &p.ReorderQuantity, &p.LeadTimeDays, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// InsertProduct stores a new product.
func (r *Repository) InsertProduct(ctx context.Context, input ProductInput) (Product, error) {
	query := `
		INSERT INTO products (sku, name, description, category, unit_price,
			stock_quantity, reorder_level, reorder_quantity, lead_time_days, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		RETURNING ` + productColumns
	p, err := scanProduct(r.pool.QueryRow(ctx, query,
		input.SKU, input.Name, input.Description, input.Category, input.UnitPrice,
		input.StockQuantity, input.ReorderLevel, input.ReorderQuantity, input.LeadTimeDays))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Product{}, shared.ErrDuplicate
	}
	return p, err
}

// GetProduct fetches one product by id.
func (r *Repository) GetProduct(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.NewNotFound("product", id)
	}
	return p, err
}

// ListProducts returns products matching the filter.
func (r *Repository) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE 1=1`
	var args []any
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if filter.LowStock {
		query += " AND stock_quantity <= reorder_level"
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

// UpdateProduct replaces the product's fields.
func (r *Repository) UpdateProduct(ctx context.Context, id int64, input ProductInput) (Product, error) {
	query := `
		UPDATE products
		SET sku = $2, name = $3, description = $4, category = $5, unit_price = $6,
			stock_quantity = $7, reorder_level = $8, reorder_quantity = $9, lead_time_days = $10,
			updated_at = NOW()
		WHERE id = $1
		RETURNING ` + productColumns
	p, err := scanProduct(r.pool.QueryRow(ctx, query,
		id, input.SKU, input.Name, input.Description, input.Category, input.UnitPrice,
		input.StockQuantity, input.ReorderLevel, input.ReorderQuantity, input.LeadTimeDays))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.NewNotFound("product", id)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Product{}, shared.ErrDuplicate
	}
	return p, err
}

const movementColumns = `id, product_id, quantity, movement_type, reference, movement_date, created_at`

func scanMovement(row pgx.Row) (Movement, error) {
	var m Movement
	err := row.Scan(&m.ID, &m.ProductID, &m.Quantity, &m.Kind, &m.Reference, &m.MovementDate, &m.CreatedAt)
	return m, err
}

// ListMovements returns movements matching the filter, newest first.
// A negative limit disables pagination (report queries).
func (r *Repository) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	query := `SELECT ` + movementColumns + ` FROM inventory_movements WHERE 1=1`
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(" AND %s $%d", cond, len(args))
	}
	if filter.ProductID != 0 {
		add("product_id =", filter.ProductID)
	}
	if filter.Kind != "" {
		add("movement_type =", filter.Kind)
	}
	if !filter.From.IsZero() {
		add("movement_date >=", filter.From)
	}
	if !filter.To.IsZero() {
		add("movement_date <=", filter.To)
	}
	query += " ORDER BY movement_date DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// RecordAlert inserts a process event outside any workflow transaction.
func (r *Repository) RecordAlert(ctx context.Context, input process.EventInput) (process.Event, error) {
	return process.NewRepository(r.pool).InsertEvent(ctx, input)
}

// AllProducts returns every product ordered by id.
func (r *Repository) AllProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

// LowStockProducts returns products at or below their reorder level.
func (r *Repository) LowStockProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE stock_quantity <= reorder_level ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectProducts(rows)
}

// OutgoingTotalSince sums outbound quantities for a product since the cutoff.
func (r *Repository) OutgoingTotalSince(ctx context.Context, productID int64, since time.Time) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0)
		FROM inventory_movements
		WHERE product_id = $1 AND movement_type = 'out' AND movement_date >= $2`,
		productID, since).Scan(&total)
	return total, err
}

func collectProducts(rows pgx.Rows) ([]Product, error) {
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *txRepo) GetProductForUpdate(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(r.tx.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.NewNotFound("product", id)
	}
	return p, err
}

func (r *txRepo) SetStock(ctx context.Context, productID, quantity int64) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE products SET stock_quantity = $2, updated_at = NOW() WHERE id = $1`, productID, quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NewNotFound("product", productID)
	}
	return nil
}

func (r *txRepo) InsertMovement(ctx context.Context, input MovementInput) (Movement, error) {
	return InsertMovementTx(ctx, r.tx, input)
}

// InsertMovementTx appends a movement inside an existing transaction. The
// order and procurement workflows share it so their stock effects commit
// with the owning document.
func InsertMovementTx(ctx context.Context, tx pgx.Tx, input MovementInput) (Movement, error) {
	query := `
		INSERT INTO inventory_movements (product_id, quantity, movement_type, reference, movement_date, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		RETURNING ` + movementColumns
	return scanMovement(tx.QueryRow(ctx, query,
		input.ProductID, input.Quantity, input.Kind, input.Reference, input.MovementDate))
}

// GetProductForUpdateTx locks and returns a product row inside an existing
// transaction.
func GetProductForUpdateTx(ctx context.Context, tx pgx.Tx, id int64) (Product, error) {
	p, err := scanProduct(tx.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, shared.NewNotFound("product", id)
	}
	return p, err
}

// SetStockTx updates a product's stock inside an existing transaction.
func SetStockTx(ctx context.Context, tx pgx.Tx, productID, quantity int64) error {
	tag, err := tx.Exec(ctx,
		`UPDATE products SET stock_quantity = $2, updated_at = NOW() WHERE id = $1`, productID, quantity)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NewNotFound("product", productID)
	}
	return nil
}

func (r *txRepo) InsertEvent(ctx context.Context, input process.EventInput) (process.Event, error) {
	return process.InsertEventTx(ctx, r.tx, input)
}
