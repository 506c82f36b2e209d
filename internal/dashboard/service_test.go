package dashboard

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

type countingRepo struct {
	revenue       float64
	expenses      float64
	activeOrders  int
	lowStock      int
	orders        []OrderTotal
	notifications []Notification
	calls         int
	sinceSeen     time.Time
}

func (r *countingRepo) Revenue(context.Context) (float64, error) {
	r.calls++
	return r.revenue, nil
}

func (r *countingRepo) Expenses(context.Context) (float64, error) {
	return r.expenses, nil
}

func (r *countingRepo) ActiveOrders(context.Context) (int, error) {
	return r.activeOrders, nil
}

func (r *countingRepo) LowStockItems(context.Context) (int, error) {
	return r.lowStock, nil
}

func (r *countingRepo) OrdersSince(_ context.Context, since time.Time) ([]OrderTotal, error) {
	r.sinceSeen = since
	return r.orders, nil
}

func (r *countingRepo) RecentPendingEvents(context.Context, int) ([]Notification, error) {
	return r.notifications, nil
}

func newTestService(t *testing.T, repo *countingRepo) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	svc := NewService(repo, client, time.Minute)
	svc.WithNow(func() time.Time {
		return time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	})
	return svc
}

func TestSummaryComposition(t *testing.T) {
	repo := &countingRepo{
		revenue:      900,
		expenses:     600,
		activeOrders: 4,
		lowStock:     2,
		orders: []OrderTotal{
			{Date: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), Amount: 100},
			{Date: time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC), Amount: 150},
			{Date: time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC), Amount: 40},
		},
		notifications: []Notification{{ID: 9, Message: "Reorder point reached"}},
	}
	svc := newTestService(t, repo)

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 900, summary.FinancialKPIs.TotalRevenue, 1e-9)
	require.InDelta(t, 600, summary.FinancialKPIs.TotalExpenses, 1e-9)
	require.InDelta(t, 300, summary.FinancialKPIs.ProfitLoss, 1e-9)
	require.Equal(t, 4, summary.ActiveOrders)
	require.Equal(t, 2, summary.LowStockItems)
	require.Len(t, summary.Notifications, 1)

	require.Equal(t, []TrendMonth{
		{Month: "2026-01", TotalSales: 250, OrderCount: 2},
		{Month: "2026-02", TotalSales: 40, OrderCount: 1},
	}, summary.SalesTrend)

	// The trend window trails the frozen clock by 180 days.
	require.Equal(t, time.Date(2025, 9, 15, 10, 30, 0, 0, time.UTC), repo.sinceSeen)
}

func TestSummaryServedFromCache(t *testing.T) {
	repo := &countingRepo{revenue: 100}
	svc := newTestService(t, repo)

	first, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, repo.calls)

	repo.revenue = 999
	second, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, repo.calls)
	require.Equal(t, first.FinancialKPIs, second.FinancialKPIs)
}

func TestWarmOverwritesCache(t *testing.T) {
	repo := &countingRepo{revenue: 100}
	svc := newTestService(t, repo)

	_, err := svc.Summary(context.Background())
	require.NoError(t, err)

	repo.revenue = 500
	require.NoError(t, svc.Warm(context.Background()))

	summary, err := svc.Summary(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 500, summary.FinancialKPIs.TotalRevenue, 1e-9)
	require.Equal(t, 2, repo.calls)
}

func TestSummaryWithoutCacheRecomputes(t *testing.T) {
	repo := &countingRepo{revenue: 100}
	svc := NewService(repo, nil, time.Minute)

	_, err := svc.Summary(context.Background())
	require.NoError(t, err)
	_, err = svc.Summary(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, repo.calls)
}
