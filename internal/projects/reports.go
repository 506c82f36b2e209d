package projects

import (
	"context"
	"sort"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
)

// Performance computes the per-project performance rollup: task statistics,
// booked financials against budget, timeline position and the on-track flag.
func (s *Service) Performance(ctx context.Context, projectID int64) (PerformanceReport, error) {
	project, err := s.repo.GetProject(ctx, projectID)
	if err != nil {
		return PerformanceReport{}, err
	}
	tasks, err := s.repo.ProjectTasks(ctx, projectID)
	if err != nil {
		return PerformanceReport{}, err
	}

	stats := TaskStatistics{TotalTasks: len(tasks)}
	var progressSum int64
	for _, task := range tasks {
		progressSum += task.Progress
		switch task.Status {
		case TaskCompleted:
			stats.CompletedTasks++
		case TaskInProgress:
			stats.InProgressTasks++
		case TaskNotStarted:
			stats.NotStartedTasks++
		case TaskDelayed:
			stats.DelayedTasks++
		}
	}
	var overallProgress float64
	if stats.TotalTasks > 0 {
		stats.CompletionRate = float64(stats.CompletedTasks) / float64(stats.TotalTasks)
		overallProgress = float64(progressSum) / float64(stats.TotalTasks)
	}

	transactions, err := s.books.ListTransactions(ctx, ledger.TransactionFilter{ProjectID: projectID, Limit: -1})
	if err != nil {
		return PerformanceReport{}, err
	}
	fin := FinancialStatistics{}
	for _, t := range transactions {
		switch t.Kind {
		case ledger.KindDebit:
			fin.TotalExpenses += t.Amount
		case ledger.KindCredit:
			fin.TotalRevenue += t.Amount
		}
	}
	fin.ProfitLoss = fin.TotalRevenue - fin.TotalExpenses
	if project.Budget > 0 {
		fin.BudgetUtilization = fin.TotalExpenses / project.Budget * 100
	}

	now := s.now().UTC()
	timeline := Timeline{TotalDays: int(project.EndDate.Sub(project.StartDate).Hours() / 24)}
	if now.After(project.StartDate) {
		timeline.ElapsedDays = int(now.Sub(project.StartDate).Hours() / 24)
	}
	if now.Before(project.EndDate) {
		timeline.RemainingDays = int(project.EndDate.Sub(now).Hours() / 24)
	}
	var timelineProgress float64
	if timeline.TotalDays > 0 {
		timelineProgress = float64(timeline.ElapsedDays) / float64(timeline.TotalDays) * 100
	}

	return PerformanceReport{
		ProjectID:       project.ID,
		ProjectName:     project.Name,
		Status:          project.Status,
		StartDate:       project.StartDate,
		EndDate:         project.EndDate,
		Budget:          project.Budget,
		TaskStatistics:  stats,
		OverallProgress: overallProgress,
		Financials:      fin,
		Timeline:        timeline,
		OnTrack:         overallProgress >= timelineProgress && fin.BudgetUtilization <= timelineProgress,
	}, nil
}

// ResourceAllocationReport maps unfinished assigned tasks to their assignees.
func (s *Service) ResourceAllocationReport(ctx context.Context) (AllocationReport, error) {
	tasks, err := s.repo.ActiveAssignedTasks(ctx)
	if err != nil {
		return AllocationReport{}, err
	}

	byUser := make(map[int64]*ResourceAllocation)
	var userIDs, projectIDs []int64
	projectSeen := make(map[int64]bool)
	userProjects := make(map[int64]map[int64]bool)
	for _, task := range tasks {
		userID := *task.AssignedTo
		alloc, ok := byUser[userID]
		if !ok {
			alloc = &ResourceAllocation{UserID: userID}
			byUser[userID] = alloc
			userIDs = append(userIDs, userID)
			userProjects[userID] = make(map[int64]bool)
		}
		alloc.TaskCount++
		alloc.Tasks = append(alloc.Tasks, task.Name)
		userProjects[userID][task.ProjectID] = true
		if !projectSeen[task.ProjectID] {
			projectSeen[task.ProjectID] = true
			projectIDs = append(projectIDs, task.ProjectID)
		}
	}

	userNames, err := s.users.UserNames(ctx, userIDs)
	if err != nil {
		return AllocationReport{}, err
	}
	projectNames, err := s.repo.ProjectNames(ctx, projectIDs)
	if err != nil {
		return AllocationReport{}, err
	}

	report := AllocationReport{Allocations: make([]ResourceAllocation, 0, len(userIDs))}
	for _, userID := range userIDs {
		alloc := byUser[userID]
		alloc.UserName = userNames[userID]
		if alloc.UserName == "" {
			alloc.UserName = "Unknown"
		}
		for projectID := range userProjects[userID] {
			if name := projectNames[projectID]; name != "" {
				alloc.Projects = append(alloc.Projects, name)
			}
		}
		sort.Strings(alloc.Projects)
		report.Summary.TotalTasks += alloc.TaskCount
		report.Allocations = append(report.Allocations, *alloc)
	}
	report.Summary.TotalUsers = len(report.Allocations)
	return report, nil
}
