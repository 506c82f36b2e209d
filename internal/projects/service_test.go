package projects

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryRepo struct {
	projects  map[int64]Project
	tasks     map[int64]Task
	customers map[int64]bool
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		projects:  map[int64]Project{},
		tasks:     map[int64]Task{},
		customers: map[int64]bool{},
		nextID:    1,
	}
}

func snapshot[V any](src map[int64]V) map[int64]V {
	out := make(map[int64]V, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	projects, tasks, nextID := snapshot(m.projects), snapshot(m.tasks), m.nextID
	if err := fn(ctx, (*memoryTx)(m)); err != nil {
		m.projects, m.tasks, m.nextID = projects, tasks, nextID
		return err
	}
	return nil
}

type memoryTx memoryRepo

func (m *memoryTx) InsertProject(ctx context.Context, input ProjectInput) (Project, error) {
	return (*memoryRepo)(m).insertProject(input)
}

func (m *memoryTx) InsertTask(ctx context.Context, projectID int64, input TaskInput) (Task, error) {
	return (*memoryRepo)(m).InsertTask(ctx, projectID, input)
}

func (m *memoryRepo) insertProject(input ProjectInput) (Project, error) {
	p := Project{
		ID:          m.nextID,
		ProjectCode: input.ProjectCode,
		Name:        input.Name,
		Description: input.Description,
		CustomerID:  input.CustomerID,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		Budget:      input.Budget,
		Status:      input.Status,
	}
	m.nextID++
	m.projects[p.ID] = p
	return p, nil
}

func (m *memoryRepo) GetProject(_ context.Context, id int64) (Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return Project{}, shared.NewNotFound("project", id)
	}
	return p, nil
}

func (m *memoryRepo) ListProjects(_ context.Context, filter ProjectFilter) ([]Project, error) {
	var out []Project
	for id := int64(1); id < m.nextID; id++ {
		p, ok := m.projects[id]
		if !ok {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (m *memoryRepo) UpdateProject(_ context.Context, id int64, patch ProjectPatch) (Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return Project{}, shared.NewNotFound("project", id)
	}
	if v, ok := patch.Name.Get(); ok {
		p.Name = v
	}
	if v, ok := patch.Description.Get(); ok {
		p.Description = v
	}
	if v, ok := patch.CustomerID.Get(); ok {
		p.CustomerID = v
	}
	if v, ok := patch.Budget.Get(); ok {
		p.Budget = v
	}
	m.projects[id] = p
	return p, nil
}

func (m *memoryRepo) SetProjectStatus(_ context.Context, id int64, status Status) (Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return Project{}, shared.NewNotFound("project", id)
	}
	p.Status = status
	m.projects[id] = p
	return p, nil
}

func (m *memoryRepo) InsertTask(_ context.Context, projectID int64, input TaskInput) (Task, error) {
	t := Task{
		ID:          m.nextID,
		ProjectID:   projectID,
		Name:        input.Name,
		Description: input.Description,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		AssignedTo:  input.AssignedTo,
		Status:      input.Status,
		Progress:    input.Progress,
	}
	m.nextID++
	m.tasks[t.ID] = t
	return t, nil
}

func (m *memoryRepo) GetTask(_ context.Context, id int64) (Task, error) {
	t, ok := m.tasks[id]
	if !ok {
		return Task{}, shared.NewNotFound("task", id)
	}
	return t, nil
}

func (m *memoryRepo) ListTasks(_ context.Context, filter TaskFilter) ([]Task, error) {
	var out []Task
	for id := int64(1); id < m.nextID; id++ {
		t, ok := m.tasks[id]
		if !ok {
			continue
		}
		if filter.ProjectID > 0 && t.ProjectID != filter.ProjectID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *memoryRepo) UpdateTask(_ context.Context, id int64, input TaskInput) (Task, error) {
	t, ok := m.tasks[id]
	if !ok {
		return Task{}, shared.NewNotFound("task", id)
	}
	t.Name = input.Name
	t.Description = input.Description
	t.StartDate = input.StartDate
	t.EndDate = input.EndDate
	t.AssignedTo = input.AssignedTo
	t.Status = input.Status
	t.Progress = input.Progress
	m.tasks[id] = t
	return t, nil
}

func (m *memoryRepo) SetTaskStatus(_ context.Context, id int64, status TaskStatus, progress int64) (Task, error) {
	t, ok := m.tasks[id]
	if !ok {
		return Task{}, shared.NewNotFound("task", id)
	}
	t.Status = status
	t.Progress = progress
	m.tasks[id] = t
	return t, nil
}

func (m *memoryRepo) ProjectTasks(_ context.Context, projectID int64) ([]Task, error) {
	var out []Task
	for id := int64(1); id < m.nextID; id++ {
		t, ok := m.tasks[id]
		if ok && t.ProjectID == projectID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memoryRepo) ActiveAssignedTasks(_ context.Context) ([]Task, error) {
	var out []Task
	for id := int64(1); id < m.nextID; id++ {
		t, ok := m.tasks[id]
		if !ok || t.AssignedTo == nil {
			continue
		}
		if t.Status == TaskNotStarted || t.Status == TaskInProgress {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memoryRepo) ProjectNames(_ context.Context, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	for _, id := range ids {
		if p, ok := m.projects[id]; ok {
			out[id] = p.Name
		}
	}
	return out, nil
}

func (m *memoryRepo) CustomerExists(_ context.Context, id int64) (bool, error) {
	return m.customers[id], nil
}

type staticUsers map[int64]string

func (u staticUsers) UserExists(_ context.Context, id int64) (bool, error) {
	_, ok := u[id]
	return ok, nil
}

func (u staticUsers) UserNames(_ context.Context, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	for _, id := range ids {
		if name, ok := u[id]; ok {
			out[id] = name
		}
	}
	return out, nil
}

type fakeBooks struct {
	transactions []ledger.Transaction
}

func (f *fakeBooks) ListTransactions(_ context.Context, filter ledger.TransactionFilter) ([]ledger.Transaction, error) {
	var out []ledger.Transaction
	for _, t := range f.transactions {
		if filter.ProjectID > 0 && (t.ProjectID == nil || *t.ProjectID != filter.ProjectID) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func ptr[T any](v T) *T { return &v }

func newTestService(repo *memoryRepo, users staticUsers, books *fakeBooks) *Service {
	svc := NewService(repo, users, books)
	svc.WithNow(func() time.Time {
		return time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	})
	return svc
}

func TestCreateProjectWithTasks(t *testing.T) {
	repo := newMemoryRepo()
	repo.customers[4] = true
	svc := newTestService(repo, staticUsers{7: "Dana Reyes"}, &fakeBooks{})

	p, err := svc.CreateProject(context.Background(), ProjectInput{
		ProjectCode: "PRJ-100",
		Name:        "Warehouse rollout",
		CustomerID:  ptr(int64(4)),
		StartDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		Budget:      5000,
		Tasks: []TaskInput{
			{Name: "Site survey", AssignedTo: ptr(int64(7))},
			{Name: "Racking install", Status: TaskInProgress, Progress: 20},
		},
	})
	require.NoError(t, err)
	require.Equal(t, StatusPlanning, p.Status)
	require.Len(t, p.Tasks, 2)
	require.Equal(t, TaskNotStarted, p.Tasks[0].Status)
	require.Equal(t, TaskInProgress, p.Tasks[1].Status)
	require.Equal(t, p.ID, p.Tasks[0].ProjectID)
}

func TestCreateProjectUnknownAssigneeRollsBack(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, staticUsers{}, &fakeBooks{})

	_, err := svc.CreateProject(context.Background(), ProjectInput{
		ProjectCode: "PRJ-101",
		Name:        "Doomed",
		Tasks: []TaskInput{
			{Name: "Orphan work", AssignedTo: ptr(int64(99))},
		},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
	// The project insert must not survive the failed task cascade.
	require.Empty(t, repo.projects)
	require.Empty(t, repo.tasks)
}

func TestCreateProjectUnknownCustomer(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, staticUsers{}, &fakeBooks{})

	_, err := svc.CreateProject(context.Background(), ProjectInput{
		Name:       "No such customer",
		CustomerID: ptr(int64(12)),
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateTaskStatusCompletedForcesProgress(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, staticUsers{}, &fakeBooks{})
	task, err := repo.InsertTask(context.Background(), 1, TaskInput{Name: "Wiring", Status: TaskInProgress, Progress: 30})
	require.NoError(t, err)

	updated, err := svc.UpdateTaskStatus(context.Background(), task.ID, TaskInProgress, ptr(int64(55)))
	require.NoError(t, err)
	require.Equal(t, int64(55), updated.Progress)

	updated, err = svc.UpdateTaskStatus(context.Background(), task.ID, TaskCompleted, nil)
	require.NoError(t, err)
	require.Equal(t, TaskCompleted, updated.Status)
	require.Equal(t, int64(100), updated.Progress)
}

func TestUpdateTaskStatusValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, staticUsers{}, &fakeBooks{})
	task, err := repo.InsertTask(context.Background(), 1, TaskInput{Name: "Wiring", Status: TaskNotStarted})
	require.NoError(t, err)

	_, err = svc.UpdateTaskStatus(context.Background(), task.ID, "archived", nil)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.UpdateTaskStatus(context.Background(), task.ID, TaskInProgress, ptr(int64(150)))
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPerformanceReport(t *testing.T) {
	repo := newMemoryRepo()
	project, err := repo.insertProject(ProjectInput{
		ProjectCode: "PRJ-200",
		Name:        "Depot refit",
		StartDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, 3, 21, 0, 0, 0, 0, time.UTC),
		Budget:      1000,
		Status:      StatusActive,
	})
	require.NoError(t, err)
	_, err = repo.InsertTask(context.Background(), project.ID, TaskInput{Name: "Demolition", Status: TaskCompleted, Progress: 100})
	require.NoError(t, err)
	_, err = repo.InsertTask(context.Background(), project.ID, TaskInput{Name: "Fit-out", Status: TaskInProgress, Progress: 40})
	require.NoError(t, err)

	books := &fakeBooks{transactions: []ledger.Transaction{
		{Amount: 600, Kind: ledger.KindDebit, ProjectID: ptr(project.ID)},
		{Amount: 900, Kind: ledger.KindCredit, ProjectID: ptr(project.ID)},
		{Amount: 50, Kind: ledger.KindDebit, ProjectID: nil},
	}}
	svc := newTestService(repo, staticUsers{}, books)

	report, err := svc.Performance(context.Background(), project.ID)
	require.NoError(t, err)
	require.Equal(t, 2, report.TaskStatistics.TotalTasks)
	require.Equal(t, 1, report.TaskStatistics.CompletedTasks)
	require.InDelta(t, 0.5, report.TaskStatistics.CompletionRate, 1e-9)
	require.InDelta(t, 70, report.OverallProgress, 1e-9)

	require.InDelta(t, 600, report.Financials.TotalExpenses, 1e-9)
	require.InDelta(t, 900, report.Financials.TotalRevenue, 1e-9)
	require.InDelta(t, 300, report.Financials.ProfitLoss, 1e-9)
	require.InDelta(t, 60, report.Financials.BudgetUtilization, 1e-9)

	require.Equal(t, 20, report.Timeline.TotalDays)
	require.Equal(t, 13, report.Timeline.ElapsedDays)
	require.Equal(t, 6, report.Timeline.RemainingDays)

	// 65% of the timeline has passed; progress 70 and spend 60 both beat it.
	require.True(t, report.OnTrack)
}

func TestPerformanceReportBehindSchedule(t *testing.T) {
	repo := newMemoryRepo()
	project, err := repo.insertProject(ProjectInput{
		ProjectCode: "PRJ-201",
		Name:        "Slow burn",
		StartDate:   time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:     time.Date(2026, 3, 21, 0, 0, 0, 0, time.UTC),
		Budget:      1000,
		Status:      StatusActive,
	})
	require.NoError(t, err)
	_, err = repo.InsertTask(context.Background(), project.ID, TaskInput{Name: "Fit-out", Status: TaskInProgress, Progress: 10})
	require.NoError(t, err)

	svc := newTestService(repo, staticUsers{}, &fakeBooks{})
	report, err := svc.Performance(context.Background(), project.ID)
	require.NoError(t, err)
	require.False(t, report.OnTrack)
}

func TestResourceAllocationReport(t *testing.T) {
	repo := newMemoryRepo()
	alpha, err := repo.insertProject(ProjectInput{ProjectCode: "PRJ-300", Name: "Alpha", Status: StatusActive})
	require.NoError(t, err)
	beta, err := repo.insertProject(ProjectInput{ProjectCode: "PRJ-301", Name: "Beta", Status: StatusActive})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = repo.InsertTask(ctx, alpha.ID, TaskInput{Name: "Survey", AssignedTo: ptr(int64(7)), Status: TaskInProgress})
	require.NoError(t, err)
	_, err = repo.InsertTask(ctx, beta.ID, TaskInput{Name: "Cabling", AssignedTo: ptr(int64(7)), Status: TaskNotStarted})
	require.NoError(t, err)
	_, err = repo.InsertTask(ctx, beta.ID, TaskInput{Name: "Sign-off", AssignedTo: ptr(int64(9)), Status: TaskInProgress})
	require.NoError(t, err)
	// Completed and unassigned tasks stay out of the workload.
	_, err = repo.InsertTask(ctx, beta.ID, TaskInput{Name: "Kickoff", AssignedTo: ptr(int64(7)), Status: TaskCompleted, Progress: 100})
	require.NoError(t, err)
	_, err = repo.InsertTask(ctx, beta.ID, TaskInput{Name: "Backlog", Status: TaskNotStarted})
	require.NoError(t, err)

	svc := newTestService(repo, staticUsers{7: "Dana Reyes", 9: "Lee Okafor"}, &fakeBooks{})
	report, err := svc.ResourceAllocationReport(ctx)
	require.NoError(t, err)

	require.Equal(t, 2, report.Summary.TotalUsers)
	require.Equal(t, 3, report.Summary.TotalTasks)
	require.Len(t, report.Allocations, 2)

	dana := report.Allocations[0]
	require.Equal(t, "Dana Reyes", dana.UserName)
	require.Equal(t, 2, dana.TaskCount)
	require.Equal(t, []string{"Alpha", "Beta"}, dana.Projects)
	require.Equal(t, []string{"Survey", "Cabling"}, dana.Tasks)

	lee := report.Allocations[1]
	require.Equal(t, "Lee Okafor", lee.UserName)
	require.Equal(t, 1, lee.TaskCount)
	require.Equal(t, []string{"Beta"}, lee.Projects)
}
