package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meridian-erp/meridian-erp/internal/platform/db"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Repository persists ledger data in PostgreSQL.
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

const accountColumns = `id, account_code, name, type, balance, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.Balance, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// InsertAccount creates an account with a zero balance.
func (r *Repository) InsertAccount(ctx context.Context, input AccountInput) (Account, error) {
	query := `
		INSERT INTO accounts (account_code, name, type, balance, created_at, updated_at)
		VALUES ($1, $2, $3, 0, NOW(), NOW())
		RETURNING ` + accountColumns
	a, err := scanAccount(r.pool.QueryRow(ctx, query, input.Code, input.Name, input.Type))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Account{}, shared.ErrDuplicate
	}
	return a, err
}

// GetAccount fetches one account by id.
func (r *Repository) GetAccount(ctx context.Context, id int64) (Account, error) {
	a, err := scanAccount(r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, shared.NewNotFound("account", id)
	}
	return a, err
}

// ListAccounts returns accounts ordered by code.
func (r *Repository) ListAccounts(ctx context.Context, limit, offset int) ([]Account, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts ORDER BY account_code LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAccounts(rows)
}

// UpdateAccount replaces the descriptive fields, leaving the balance alone.
func (r *Repository) UpdateAccount(ctx context.Context, id int64, input AccountInput) (Account, error) {
	query := `
		UPDATE accounts SET account_code = $2, name = $3, type = $4, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + accountColumns
	a, err := scanAccount(r.pool.QueryRow(ctx, query, id, input.Code, input.Name, input.Type))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, shared.NewNotFound("account", id)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Account{}, shared.ErrDuplicate
	}
	return a, err
}

// AccountsByType returns accounts of one type ordered by code.
func (r *Repository) AccountsByType(ctx context.Context, t AccountType) ([]Account, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE type = $1 ORDER BY account_code`, t)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAccounts(rows)
}

// CashAccounts returns asset accounts whose name mentions cash.
func (r *Repository) CashAccounts(ctx context.Context) ([]Account, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE type = 'asset' AND name ILIKE '%cash%' ORDER BY account_code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAccounts(rows)
}

func collectAccounts(rows pgx.Rows) ([]Account, error) {
	var out []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const transactionColumns = `id, transaction_date, amount, description, type, account_id, order_id, project_id, created_at, updated_at`

func scanTransaction(row pgx.Row) (Transaction, error) {
	var t Transaction
	var orderID, projectID pgtype.Int8
	err := row.Scan(&t.ID, &t.Date, &t.Amount, &t.Description, &t.Kind, &t.AccountID,
		&orderID, &projectID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Transaction{}, err
	}
	if orderID.Valid {
		v := orderID.Int64
		t.OrderID = &v
	}
	if projectID.Valid {
		v := projectID.Int64
		t.ProjectID = &v
	}
	return t, nil
}

// GetTransaction fetches one transaction by id.
func (r *Repository) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	t, err := scanTransaction(r.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, shared.NewNotFound("transaction", id)
	}
	return t, err
}

// ListTransactions returns transactions matching the filter, newest first.
// A negative limit disables pagination (report queries).
func (r *Repository) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE 1=1`
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(" AND %s $%d", cond, len(args))
	}
	if filter.AccountID != 0 {
		add("account_id =", filter.AccountID)
	}
	if len(filter.AccountIDs) > 0 {
		add("account_id = ANY", filter.AccountIDs)
	}
	if filter.OrderID != 0 {
		add("order_id =", filter.OrderID)
	}
	if filter.ProjectID != 0 {
		add("project_id =", filter.ProjectID)
	}
	if filter.Kind != "" {
		add("type =", filter.Kind)
	}
	if !filter.From.IsZero() {
		add("transaction_date >=", filter.From)
	}
	if !filter.To.IsZero() {
		add("transaction_date <=", filter.To)
	}
	query += " ORDER BY transaction_date DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit, filter.Offset)
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *txRepo) GetAccountForUpdate(ctx context.Context, id int64) (Account, error) {
	a, err := scanAccount(r.tx.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, shared.NewNotFound("account", id)
	}
	return a, err
}

func (r *txRepo) GetAccountByCodeForUpdate(ctx context.Context, code string) (Account, error) {
	a, err := scanAccount(r.tx.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE account_code = $1 FOR UPDATE`, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, fmt.Errorf("account %q %w", code, shared.ErrNotFound)
	}
	return a, err
}

func (r *txRepo) AddToBalance(ctx context.Context, accountID int64, delta float64) error {
	tag, err := r.tx.Exec(ctx,
		`UPDATE accounts SET balance = balance + $2, updated_at = NOW() WHERE id = $1`, accountID, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NewNotFound("account", accountID)
	}
	return nil
}

func (r *txRepo) InsertTransaction(ctx context.Context, input TransactionInput) (Transaction, error) {
	query := `
		INSERT INTO transactions (transaction_date, amount, description, type, account_id, order_id, project_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING ` + transactionColumns
	return scanTransaction(r.tx.QueryRow(ctx, query,
		input.Date, input.Amount, input.Description, input.Kind, input.AccountID,
		nullableInt8(input.OrderID), nullableInt8(input.ProjectID)))
}

func (r *txRepo) GetTransactionForUpdate(ctx context.Context, id int64) (Transaction, error) {
	t, err := scanTransaction(r.tx.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, shared.NewNotFound("transaction", id)
	}
	return t, err
}

func (r *txRepo) UpdateTransaction(ctx context.Context, id int64, fields TransactionInput) (Transaction, error) {
	query := `
		UPDATE transactions
		SET transaction_date = $2, amount = $3, description = $4, type = $5,
			account_id = $6, order_id = $7, project_id = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + transactionColumns
	t, err := scanTransaction(r.tx.QueryRow(ctx, query,
		id, fields.Date, fields.Amount, fields.Description, fields.Kind, fields.AccountID,
		nullableInt8(fields.OrderID), nullableInt8(fields.ProjectID)))
	if errors.Is(err, pgx.ErrNoRows) {
		return Transaction{}, shared.NewNotFound("transaction", id)
	}
	return t, err
}

func (r *txRepo) DeleteTransaction(ctx context.Context, id int64) error {
	tag, err := r.tx.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.NewNotFound("transaction", id)
	}
	return nil
}

// PostPaymentTx records a payment credit inside an existing transaction.
// Workflow repositories in other packages call this so the posting commits
// or rolls back with the rest of their workflow.
func PostPaymentTx(ctx context.Context, tx pgx.Tx, input PaymentInput) (Transaction, error) {
	return postPaymentTx(ctx, &txRepo{tx: tx}, input)
}

func nullableInt8(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}
