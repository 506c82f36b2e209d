package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository persists invoices in Postgres.
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

const invoiceColumns = `id, invoice_number, customer_id, order_id, amount, tax_amount, total_amount, issue_date, due_date, status, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var (
		inv     Invoice
		orderID pgtype.Int8
	)
	err := row.Scan(&inv.ID, &inv.InvoiceNumber, &inv.CustomerID, &orderID,
		&inv.Amount, &inv.TaxAmount, &inv.TotalAmount, &inv.IssueDate, &inv.DueDate,
		&inv.Status, &inv.CreatedAt, &inv.UpdatedAt)
	if orderID.Valid {
		v := orderID.Int64
		inv.OrderID = &v
	}
	return inv, err
}

// InsertInvoice stores a new invoice.
func (r *Repository) InsertInvoice(ctx context.Context, input InvoiceInput) (Invoice, error) {
	query := `
		INSERT INTO invoices (invoice_number, customer_id, order_id, amount, tax_amount, total_amount, issue_date, due_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + invoiceColumns
	inv, err := scanInvoice(r.pool.QueryRow(ctx, query,
		input.InvoiceNumber, input.CustomerID, nullableInt8(input.OrderID),
		input.Amount, input.TaxAmount, input.TotalAmount, input.IssueDate, input.DueDate, input.Status))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Invoice{}, shared.ErrDuplicate
	}
	return inv, err
}

// GetInvoice fetches one invoice by id.
func (r *Repository) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	inv, err := scanInvoice(r.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, shared.NewNotFound("invoice", id)
	}
	return inv, err
}

// ListInvoices returns invoices matching the filter, newest first.
func (r *Repository) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE 1=1`
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(" AND "+cond, len(args))
	}
	if filter.CustomerID > 0 {
		add("customer_id = $%d", filter.CustomerID)
	}
	if filter.OrderID > 0 {
		add("order_id = $%d", filter.OrderID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if !filter.From.IsZero() {
		add("issue_date >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("issue_date <= $%d", filter.To)
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY issue_date DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// GetInvoiceForUpdate locks and returns one invoice.
func (t *txRepo) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	inv, err := scanInvoice(t.tx.QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, shared.NewNotFound("invoice", id)
	}
	return inv, err
}

// SetInvoiceStatus assigns the status and returns the updated invoice.
func (t *txRepo) SetInvoiceStatus(ctx context.Context, id int64, status Status) (Invoice, error) {
	inv, err := scanInvoice(t.tx.QueryRow(ctx,
		`UPDATE invoices SET status = $2, updated_at = now() WHERE id = $1 RETURNING `+invoiceColumns, id, status))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, shared.NewNotFound("invoice", id)
	}
	return inv, err
}

// PostPayment records the payment credit on the workflow's transaction.
func (t *txRepo) PostPayment(ctx context.Context, input ledger.PaymentInput) (ledger.Transaction, error) {
	return ledger.PostPaymentTx(ctx, t.tx, input)
}

// CustomerExists reports whether the customer row exists.
func (r *Repository) CustomerExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// OrderExists reports whether the order row exists.
func (r *Repository) OrderExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}

// MarkOverdue flips sent invoices past their due date to overdue.
func (r *Repository) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE invoices SET status = $1, updated_at = now() WHERE status = $2 AND due_date < $3`,
		StatusOverdue, StatusSent, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func nullableInt8(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}
