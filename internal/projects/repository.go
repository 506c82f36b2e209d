package projects

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

// Repository persists projects and tasks in Postgres.
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

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const projectColumns = `id, project_code, name, description, customer_id, start_date, end_date, budget, status, created_at, updated_at`

func scanProject(row pgx.Row) (Project, error) {
	var (
		p        Project
		customer pgtype.Int8
	)
	err := row.Scan(&p.ID, &p.ProjectCode, &p.Name, &p.Description, &customer,
		&p.StartDate, &p.EndDate, &p.Budget, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if customer.Valid {
		id := customer.Int64
		p.CustomerID = &id
	}
	return p, err
}

const taskColumns = `id, project_id, name, description, start_date, end_date, assigned_to, status, progress, created_at, updated_at`

func scanTask(row pgx.Row) (Task, error) {
	var (
		t        Task
		assignee pgtype.Int8
	)
	err := row.Scan(&t.ID, &t.ProjectID, &t.Name, &t.Description, &t.StartDate, &t.EndDate,
		&assignee, &t.Status, &t.Progress, &t.CreatedAt, &t.UpdatedAt)
	if assignee.Valid {
		id := assignee.Int64
		t.AssignedTo = &id
	}
	return t, err
}

func nullableInt8(v *int64) pgtype.Int8 {
	if v == nil {
		return pgtype.Int8{}
	}
	return pgtype.Int8{Int64: *v, Valid: true}
}

func insertProject(ctx context.Context, q querier, input ProjectInput) (Project, error) {
	query := `
		INSERT INTO projects (project_code, name, description, customer_id, start_date, end_date, budget, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + projectColumns
	p, err := scanProject(q.QueryRow(ctx, query,
		input.ProjectCode, input.Name, input.Description, nullableInt8(input.CustomerID),
		input.StartDate, input.EndDate, input.Budget, input.Status))
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return Project{}, shared.ErrDuplicate
	}
	return p, err
}

func insertTask(ctx context.Context, q querier, projectID int64, input TaskInput) (Task, error) {
	query := `
		INSERT INTO tasks (project_id, name, description, start_date, end_date, assigned_to, status, progress)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING ` + taskColumns
	return scanTask(q.QueryRow(ctx, query,
		projectID, input.Name, input.Description, input.StartDate, input.EndDate,
		nullableInt8(input.AssignedTo), input.Status, input.Progress))
}

func (t *txRepo) InsertProject(ctx context.Context, input ProjectInput) (Project, error) {
	return insertProject(ctx, t.tx, input)
}

func (t *txRepo) InsertTask(ctx context.Context, projectID int64, input TaskInput) (Task, error) {
	return insertTask(ctx, t.tx, projectID, input)
}

// GetProject fetches one project with its tasks.
func (r *Repository) GetProject(ctx context.Context, id int64) (Project, error) {
	p, err := scanProject(r.pool.QueryRow(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Project{}, shared.NewNotFound("project", id)
	}
	if err != nil {
		return Project{}, err
	}
	p.Tasks, err = r.ProjectTasks(ctx, id)
	return p, err
}

// ListProjects returns projects matching the filter, newest first, without tasks.
func (r *Repository) ListProjects(ctx context.Context, filter ProjectFilter) ([]Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE 1=1`
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
		add("start_date >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		add("start_date <= $%d", filter.To)
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY start_date DESC, id DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateProject applies the present patch fields.
func (r *Repository) UpdateProject(ctx context.Context, id int64, patch ProjectPatch) (Project, error) {
	sets := []string{"updated_at = now()"}
	args := []any{id}
	set := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if v, ok := patch.Name.Get(); ok {
		set("name", v)
	}
	if v, ok := patch.Description.Get(); ok {
		set("description", v)
	}
	if v, ok := patch.CustomerID.Get(); ok {
		set("customer_id", nullableInt8(v))
	}
	if v, ok := patch.StartDate.Get(); ok {
		set("start_date", v)
	}
	if v, ok := patch.EndDate.Get(); ok {
		set("end_date", v)
	}
	if v, ok := patch.Budget.Get(); ok {
		set("budget", v)
	}

	query := `UPDATE projects SET ` + joinSets(sets) + ` WHERE id = $1 RETURNING ` + projectColumns
	p, err := scanProject(r.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return Project{}, shared.NewNotFound("project", id)
	}
	return p, err
}

func joinSets(sets []string) string {
	out := sets[0]
	for _, s := range sets[1:] {
		out += ", " + s
	}
	return out
}

// SetProjectStatus updates the status of one project.
func (r *Repository) SetProjectStatus(ctx context.Context, id int64, status Status) (Project, error) {
	query := `UPDATE projects SET status = $2, updated_at = now() WHERE id = $1 RETURNING ` + projectColumns
	p, err := scanProject(r.pool.QueryRow(ctx, query, id, status))
	if errors.Is(err, pgx.ErrNoRows) {
		return Project{}, shared.NewNotFound("project", id)
	}
	return p, err
}

// InsertTask stores a new task under the project.
func (r *Repository) InsertTask(ctx context.Context, projectID int64, input TaskInput) (Task, error) {
	return insertTask(ctx, r.pool, projectID, input)
}

// GetTask fetches one task by id.
func (r *Repository) GetTask(ctx context.Context, id int64) (Task, error) {
	t, err := scanTask(r.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, shared.NewNotFound("task", id)
	}
	return t, err
}

// ListTasks returns tasks matching the filter.
func (r *Repository) ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		query += fmt.Sprintf(" AND "+cond, len(args))
	}
	if filter.ProjectID > 0 {
		add("project_id = $%d", filter.ProjectID)
	}
	if filter.AssignedTo > 0 {
		add("assigned_to = $%d", filter.AssignedTo)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	args = append(args, filter.Limit, filter.Offset)
	query += fmt.Sprintf(" ORDER BY end_date, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	return r.queryTasks(ctx, query, args...)
}

// UpdateTask replaces the mutable fields of one task.
func (r *Repository) UpdateTask(ctx context.Context, id int64, input TaskInput) (Task, error) {
	query := `
		UPDATE tasks
		SET name = $2, description = $3, start_date = $4, end_date = $5,
		    assigned_to = $6, status = $7, progress = $8, updated_at = now()
		WHERE id = $1
		RETURNING ` + taskColumns
	t, err := scanTask(r.pool.QueryRow(ctx, query, id,
		input.Name, input.Description, input.StartDate, input.EndDate,
		nullableInt8(input.AssignedTo), input.Status, input.Progress))
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, shared.NewNotFound("task", id)
	}
	return t, err
}

// SetTaskStatus updates the status and progress of one task.
func (r *Repository) SetTaskStatus(ctx context.Context, id int64, status TaskStatus, progress int64) (Task, error) {
	query := `UPDATE tasks SET status = $2, progress = $3, updated_at = now() WHERE id = $1 RETURNING ` + taskColumns
	t, err := scanTask(r.pool.QueryRow(ctx, query, id, status, progress))
	if errors.Is(err, pgx.ErrNoRows) {
		return Task{}, shared.NewNotFound("task", id)
	}
	return t, err
}

// ProjectTasks returns all tasks of one project ordered by id.
func (r *Repository) ProjectTasks(ctx context.Context, projectID int64) ([]Task, error) {
	return r.queryTasks(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE project_id = $1 ORDER BY id`, projectID)
}

// ActiveAssignedTasks returns the unfinished tasks that have an assignee.
func (r *Repository) ActiveAssignedTasks(ctx context.Context) ([]Task, error) {
	return r.queryTasks(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE assigned_to IS NOT NULL AND status IN ($1, $2)
		ORDER BY assigned_to, id`, TaskNotStarted, TaskInProgress)
}

func (r *Repository) queryTasks(ctx context.Context, query string, args ...any) ([]Task, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ProjectNames resolves project display names for the allocation report.
func (r *Repository) ProjectNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT id, name FROM projects WHERE id = ANY($1)`, ids)
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

// CustomerExists reports whether a customer id exists.
func (r *Repository) CustomerExists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM customers WHERE id = $1)`, id).Scan(&exists)
	return exists, err
}
