package jobs

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/observability"
)

type stubScanner struct {
	changed int64
	err     error
	calls   int
}

func (s *stubScanner) MarkOverdue(context.Context) (int64, error) {
	s.calls++
	return s.changed, s.err
}

type stubWarmer struct {
	err   error
	calls int
}

func (s *stubWarmer) Warm(context.Context) error {
	s.calls++
	return s.err
}

func newTestTasks(scanner *stubScanner, warmer *stubWarmer) *Tasks {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTasks(logger, observability.NewMetrics(), scanner, warmer)
}

func TestHandleInvoiceOverdueScan(t *testing.T) {
	scanner := &stubScanner{changed: 3}
	tasks := newTestTasks(scanner, &stubWarmer{})

	err := tasks.HandleInvoiceOverdueScan(context.Background(), asynq.NewTask(TaskInvoiceOverdueScan, nil))
	require.NoError(t, err)
	require.Equal(t, 1, scanner.calls)
}

func TestHandleInvoiceOverdueScanPropagatesError(t *testing.T) {
	scanner := &stubScanner{err: errors.New("db down")}
	tasks := newTestTasks(scanner, &stubWarmer{})

	err := tasks.HandleInvoiceOverdueScan(context.Background(), asynq.NewTask(TaskInvoiceOverdueScan, nil))
	require.Error(t, err)
}

func TestHandleDashboardWarmup(t *testing.T) {
	warmer := &stubWarmer{}
	tasks := newTestTasks(&stubScanner{}, warmer)

	err := tasks.HandleDashboardWarmup(context.Background(), asynq.NewTask(TaskDashboardWarmup, nil))
	require.NoError(t, err)
	require.Equal(t, 1, warmer.calls)
}
