package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/meridian-erp/meridian-erp/internal/observability"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInvoiceOverdueScan flips sent invoices past their due date to overdue.
	TaskInvoiceOverdueScan = "invoice:overdue_scan"
	// TaskDashboardWarmup recomputes the cached dashboard summary.
	TaskDashboardWarmup = "dashboard:warmup"
)

// InvoiceScanner is the billing surface the overdue scan drives.
type InvoiceScanner interface {
	MarkOverdue(ctx context.Context) (int64, error)
}

// DashboardWarmer refreshes the cached dashboard summary.
type DashboardWarmer interface {
	Warm(ctx context.Context) error
}

// Tasks bundles the job handlers with their dependencies.
type Tasks struct {
	logger    *slog.Logger
	metrics   *observability.Metrics
	invoices  InvoiceScanner
	dashboard DashboardWarmer
}

// NewTasks constructs Tasks.
func NewTasks(logger *slog.Logger, metrics *observability.Metrics, invoices InvoiceScanner, dashboard DashboardWarmer) *Tasks {
	return &Tasks{logger: logger, metrics: metrics, invoices: invoices, dashboard: dashboard}
}

// NewInvoiceOverdueScanTask constructs the payload-less overdue scan task.
func NewInvoiceOverdueScanTask() *asynq.Task {
	return asynq.NewTask(TaskInvoiceOverdueScan, nil)
}

// NewDashboardWarmupTask constructs the payload-less warmup task.
func NewDashboardWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskDashboardWarmup, nil)
}

// HandleInvoiceOverdueScan processes TaskInvoiceOverdueScan tasks.
func (t *Tasks) HandleInvoiceOverdueScan(ctx context.Context, _ *asynq.Task) error {
	started := time.Now()
	changed, err := t.invoices.MarkOverdue(ctx)
	if err != nil {
		t.metrics.RecordJob(TaskInvoiceOverdueScan, "error")
		t.logger.Error("invoice overdue scan", slog.Any("error", err))
		return err
	}
	t.metrics.RecordJob(TaskInvoiceOverdueScan, "ok")
	t.logger.Info("invoice overdue scan",
		slog.Int64("marked_overdue", changed),
		slog.Duration("took", time.Since(started)))
	return nil
}

// HandleDashboardWarmup processes TaskDashboardWarmup tasks.
func (t *Tasks) HandleDashboardWarmup(ctx context.Context, _ *asynq.Task) error {
	if err := t.dashboard.Warm(ctx); err != nil {
		t.metrics.RecordJob(TaskDashboardWarmup, "error")
		t.logger.Error("dashboard warmup", slog.Any("error", err))
		return err
	}
	t.metrics.RecordJob(TaskDashboardWarmup, "ok")
	return nil
}
