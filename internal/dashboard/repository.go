package dashboard

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository runs the summary's aggregate queries against Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Revenue sums credit transactions booked against revenue accounts.
func (r *Repository) Revenue(ctx context.Context) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(t.amount), 0)
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		WHERE t.type = 'credit' AND a.type = 'revenue'`).Scan(&total)
	return total, err
}

// Expenses sums debit transactions booked against expense accounts.
func (r *Repository) Expenses(ctx context.Context) (float64, error) {
	var total float64
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(t.amount), 0)
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		WHERE t.type = 'debit' AND a.type = 'expense'`).Scan(&total)
	return total, err
}

// ActiveOrders counts orders in any non-cancelled state.
func (r *Repository) ActiveOrders(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE status <> 'cancelled'`).Scan(&count)
	return count, err
}

// LowStockItems counts products at or below their reorder level.
func (r *Repository) LowStockItems(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM products WHERE stock_quantity <= reorder_level`).Scan(&count)
	return count, err
}

// OrdersSince returns the date and total of every order placed after since.
func (r *Repository) OrdersSince(ctx context.Context, since time.Time) ([]OrderTotal, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT order_date, total_amount FROM orders WHERE order_date >= $1 ORDER BY order_date`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderTotal
	for rows.Next() {
		var o OrderTotal
		if err := rows.Scan(&o.Date, &o.Amount); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// RecentPendingEvents returns the newest pending process events.
func (r *Repository) RecentPendingEvents(ctx context.Context, limit int) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, description, created_at
		FROM process_events
		WHERE status = 'pending'
		ORDER BY created_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.Message, &n.Date); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
