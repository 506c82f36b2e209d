package projects

import (
	"time"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// Status is a project workflow state.
type Status string

const (
	StatusPlanning  Status = "planning"
	StatusActive    Status = "active"
	StatusOnHold    Status = "on-hold"
	StatusCompleted Status = "completed"
)

var validStatuses = []Status{StatusPlanning, StatusActive, StatusOnHold, StatusCompleted}

// IsValidStatus reports whether s is a known project status.
func IsValidStatus(s Status) bool {
	for _, valid := range validStatuses {
		if s == valid {
			return true
		}
	}
	return false
}

// TaskStatus is a task workflow state.
type TaskStatus string

const (
	TaskNotStarted TaskStatus = "not-started"
	TaskInProgress TaskStatus = "in-progress"
	TaskCompleted  TaskStatus = "completed"
	TaskDelayed    TaskStatus = "delayed"
)

var validTaskStatuses = []TaskStatus{TaskNotStarted, TaskInProgress, TaskCompleted, TaskDelayed}

// IsValidTaskStatus reports whether s is a known task status.
func IsValidTaskStatus(s TaskStatus) bool {
	for _, valid := range validTaskStatuses {
		if s == valid {
			return true
		}
	}
	return false
}

// Project groups tasks under a budget and timeline.
type Project struct {
	ID          int64
	ProjectCode string
	Name        string
	Description string
	CustomerID  *int64
	StartDate   time.Time
	EndDate     time.Time
	Budget      float64
	Status      Status
	Tasks       []Task
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProjectInput carries the fields for a new project and its initial tasks.
type ProjectInput struct {
	ProjectCode string
	Name        string
	Description string
	CustomerID  *int64
	StartDate   time.Time
	EndDate     time.Time
	Budget      float64
	Status      Status
	Tasks       []TaskInput
}

// ProjectPatch carries a partial project update. Absent fields keep their
// current values.
type ProjectPatch struct {
	Name        shared.Optional[string]    `json:"name"`
	Description shared.Optional[string]    `json:"description"`
	CustomerID  shared.Optional[*int64]    `json:"customer_id"`
	StartDate   shared.Optional[time.Time] `json:"start_date"`
	EndDate     shared.Optional[time.Time] `json:"end_date"`
	Budget      shared.Optional[float64]   `json:"budget"`
}

// ProjectFilter narrows project listings.
type ProjectFilter struct {
	CustomerID int64
	Status     Status
	From       time.Time
	To         time.Time
	Offset     int
	Limit      int
}

// Task is one unit of project work.
type Task struct {
	ID          int64
	ProjectID   int64
	Name        string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	AssignedTo  *int64
	Status      TaskStatus
	Progress    int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskInput carries the fields for a new task.
type TaskInput struct {
	Name        string
	Description string
	StartDate   time.Time
	EndDate     time.Time
	AssignedTo  *int64
	Status      TaskStatus
	Progress    int64
}

// TaskFilter narrows task listings.
type TaskFilter struct {
	ProjectID  int64
	AssignedTo int64
	Status     TaskStatus
	Offset     int
	Limit      int
}

// TaskStatistics summarises a project's task states.
type TaskStatistics struct {
	TotalTasks      int     `json:"total_tasks"`
	CompletedTasks  int     `json:"completed_tasks"`
	InProgressTasks int     `json:"in_progress_tasks"`
	NotStartedTasks int     `json:"not_started_tasks"`
	DelayedTasks    int     `json:"delayed_tasks"`
	CompletionRate  float64 `json:"completion_rate"`
}

// FinancialStatistics summarises a project's booked transactions.
type FinancialStatistics struct {
	TotalExpenses     float64 `json:"total_expenses"`
	TotalRevenue      float64 `json:"total_revenue"`
	BudgetUtilization float64 `json:"budget_utilization"`
	ProfitLoss        float64 `json:"profit_loss"`
}

// Timeline summarises a project's schedule position.
type Timeline struct {
	TotalDays     int `json:"total_days"`
	ElapsedDays   int `json:"elapsed_days"`
	RemainingDays int `json:"remaining_days"`
}

// PerformanceReport is the per-project performance rollup.
type PerformanceReport struct {
	ProjectID       int64               `json:"project_id"`
	ProjectName     string              `json:"project_name"`
	Status          Status              `json:"status"`
	StartDate       time.Time           `json:"start_date"`
	EndDate         time.Time           `json:"end_date"`
	Budget          float64             `json:"budget"`
	TaskStatistics  TaskStatistics      `json:"task_statistics"`
	OverallProgress float64             `json:"overall_progress"`
	Financials      FinancialStatistics `json:"financial_statistics"`
	Timeline        Timeline            `json:"timeline"`
	OnTrack         bool                `json:"on_track"`
}

// ResourceAllocation is one assignee's active workload.
type ResourceAllocation struct {
	UserID    int64    `json:"user_id"`
	UserName  string   `json:"user_name"`
	TaskCount int      `json:"task_count"`
	Projects  []string `json:"projects"`
	Tasks     []string `json:"tasks"`
}

// WorkloadSummary totals the allocation report.
type WorkloadSummary struct {
	TotalUsers int `json:"total_users"`
	TotalTasks int `json:"total_tasks"`
}

// AllocationReport maps active tasks to their assignees.
type AllocationReport struct {
	Allocations []ResourceAllocation `json:"resource_allocations"`
	Summary     WorkloadSummary      `json:"workload_summary"`
}
