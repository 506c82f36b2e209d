package projects

import (
	"context"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	GetProject(ctx context.Context, id int64) (Project, error)
	ListProjects(ctx context.Context, filter ProjectFilter) ([]Project, error)
	UpdateProject(ctx context.Context, id int64, patch ProjectPatch) (Project, error)
	SetProjectStatus(ctx context.Context, id int64, status Status) (Project, error)
	InsertTask(ctx context.Context, projectID int64, input TaskInput) (Task, error)
	GetTask(ctx context.Context, id int64) (Task, error)
	ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error)
	UpdateTask(ctx context.Context, id int64, input TaskInput) (Task, error)
	SetTaskStatus(ctx context.Context, id int64, status TaskStatus, progress int64) (Task, error)
	ProjectTasks(ctx context.Context, projectID int64) ([]Task, error)
	ActiveAssignedTasks(ctx context.Context) ([]Task, error)
	ProjectNames(ctx context.Context, ids []int64) (map[int64]string, error)
	CustomerExists(ctx context.Context, id int64) (bool, error)
}

// TxRepository exposes the transactional operations of project creation.
type TxRepository interface {
	InsertProject(ctx context.Context, input ProjectInput) (Project, error)
	InsertTask(ctx context.Context, projectID int64, input TaskInput) (Task, error)
}

// UserDirectory validates and names task assignees.
type UserDirectory interface {
	UserExists(ctx context.Context, id int64) (bool, error)
	UserNames(ctx context.Context, ids []int64) (map[int64]string, error)
}

// LedgerPort is the ledger surface the performance report needs.
type LedgerPort interface {
	ListTransactions(ctx context.Context, filter ledger.TransactionFilter) ([]ledger.Transaction, error)
}

// Service coordinates the project and task workflow.
type Service struct {
	repo  RepositoryPort
	users UserDirectory
	books LedgerPort
	now   func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, users UserDirectory, books LedgerPort) *Service {
	return &Service{repo: repo, users: users, books: books, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

func (s *Service) checkAssignee(ctx context.Context, assignedTo *int64) error {
	if assignedTo == nil {
		return nil
	}
	ok, err := s.users.UserExists(ctx, *assignedTo)
	if err != nil {
		return err
	}
	if !ok {
		return shared.NewNotFound("user", *assignedTo)
	}
	return nil
}

// CreateProject creates a project and its initial tasks in one transaction.
// An invalid customer or task assignee aborts the whole creation.
func (s *Service) CreateProject(ctx context.Context, input ProjectInput) (Project, error) {
	if input.Name == "" {
		return Project{}, shared.NewValidation("name", "required")
	}
	if input.Status == "" {
		input.Status = StatusPlanning
	}
	if !IsValidStatus(input.Status) {
		return Project{}, shared.NewValidation("status", "unknown project status")
	}
	if input.CustomerID != nil {
		ok, err := s.repo.CustomerExists(ctx, *input.CustomerID)
		if err != nil {
			return Project{}, err
		}
		if !ok {
			return Project{}, shared.NewNotFound("customer", *input.CustomerID)
		}
	}
	for i := range input.Tasks {
		task := &input.Tasks[i]
		if task.Status == "" {
			task.Status = TaskNotStarted
		}
		if !IsValidTaskStatus(task.Status) {
			return Project{}, shared.NewValidation("status", "unknown task status")
		}
		if task.Progress < 0 || task.Progress > 100 {
			return Project{}, shared.NewValidation("progress", "must be between 0 and 100")
		}
	}

	var created Project
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		project, err := tx.InsertProject(ctx, input)
		if err != nil {
			return err
		}
		for _, taskInput := range input.Tasks {
			if err := s.checkAssignee(ctx, taskInput.AssignedTo); err != nil {
				return err
			}
			task, err := tx.InsertTask(ctx, project.ID, taskInput)
			if err != nil {
				return err
			}
			project.Tasks = append(project.Tasks, task)
		}
		created = project
		return nil
	})
	if err != nil {
		return Project{}, err
	}
	return created, nil
}

// GetProject returns one project with its tasks.
func (s *Service) GetProject(ctx context.Context, id int64) (Project, error) {
	return s.repo.GetProject(ctx, id)
}

// ListProjects returns projects matching the filter.
func (s *Service) ListProjects(ctx context.Context, filter ProjectFilter) ([]Project, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.repo.ListProjects(ctx, filter)
}

// UpdateProject applies a partial update.
func (s *Service) UpdateProject(ctx context.Context, id int64, patch ProjectPatch) (Project, error) {
	if name, ok := patch.Name.Get(); ok && name == "" {
		return Project{}, shared.NewValidation("name", "must not be empty")
	}
	if customerID, ok := patch.CustomerID.Get(); ok && customerID != nil {
		exists, err := s.repo.CustomerExists(ctx, *customerID)
		if err != nil {
			return Project{}, err
		}
		if !exists {
			return Project{}, shared.NewNotFound("customer", *customerID)
		}
	}
	return s.repo.UpdateProject(ctx, id, patch)
}

// UpdateProjectStatus assigns a new project status.
func (s *Service) UpdateProjectStatus(ctx context.Context, id int64, status Status) (Project, error) {
	if !IsValidStatus(status) {
		return Project{}, shared.NewValidation("status", "unknown project status")
	}
	return s.repo.SetProjectStatus(ctx, id, status)
}

// CreateTask adds a task to an existing project.
func (s *Service) CreateTask(ctx context.Context, projectID int64, input TaskInput) (Task, error) {
	if input.Name == "" {
		return Task{}, shared.NewValidation("name", "required")
	}
	if input.Status == "" {
		input.Status = TaskNotStarted
	}
	if !IsValidTaskStatus(input.Status) {
		return Task{}, shared.NewValidation("status", "unknown task status")
	}
	if input.Progress < 0 || input.Progress > 100 {
		return Task{}, shared.NewValidation("progress", "must be between 0 and 100")
	}
	if _, err := s.repo.GetProject(ctx, projectID); err != nil {
		return Task{}, err
	}
	if err := s.checkAssignee(ctx, input.AssignedTo); err != nil {
		return Task{}, err
	}
	return s.repo.InsertTask(ctx, projectID, input)
}

// GetTask returns one task.
func (s *Service) GetTask(ctx context.Context, id int64) (Task, error) {
	return s.repo.GetTask(ctx, id)
}

// ListTasks returns tasks matching the filter.
func (s *Service) ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.repo.ListTasks(ctx, filter)
}

// UpdateTask replaces the task's fields.
func (s *Service) UpdateTask(ctx context.Context, id int64, input TaskInput) (Task, error) {
	if input.Name == "" {
		return Task{}, shared.NewValidation("name", "required")
	}
	if !IsValidTaskStatus(input.Status) {
		return Task{}, shared.NewValidation("status", "unknown task status")
	}
	if input.Progress < 0 || input.Progress > 100 {
		return Task{}, shared.NewValidation("progress", "must be between 0 and 100")
	}
	if err := s.checkAssignee(ctx, input.AssignedTo); err != nil {
		return Task{}, err
	}
	return s.repo.UpdateTask(ctx, id, input)
}

// UpdateTaskStatus assigns a new task status with an optional progress value.
// Completing a task forces progress to 100 regardless of the supplied value.
func (s *Service) UpdateTaskStatus(ctx context.Context, id int64, status TaskStatus, progress *int64) (Task, error) {
	if !IsValidTaskStatus(status) {
		return Task{}, shared.NewValidation("status", "unknown task status")
	}
	if progress != nil && (*progress < 0 || *progress > 100) {
		return Task{}, shared.NewValidation("progress", "must be between 0 and 100")
	}
	task, err := s.repo.GetTask(ctx, id)
	if err != nil {
		return Task{}, err
	}
	next := task.Progress
	if progress != nil {
		next = *progress
	}
	if status == TaskCompleted {
		next = 100
	}
	return s.repo.SetTaskStatus(ctx, id, status, next)
}
