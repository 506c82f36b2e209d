package dashboard

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	cacheKey      = "dashboard:summary"
	trendWindow   = 180 * 24 * time.Hour
	recentEvents  = 5
	trendMonthKey = "2006-01"
)

// RepositoryPort provides the aggregate queries the summary composes.
type RepositoryPort interface {
	Revenue(ctx context.Context) (float64, error)
	Expenses(ctx context.Context) (float64, error)
	ActiveOrders(ctx context.Context) (int, error)
	LowStockItems(ctx context.Context) (int, error)
	OrdersSince(ctx context.Context, since time.Time) ([]OrderTotal, error)
	RecentPendingEvents(ctx context.Context, limit int) ([]Notification, error)
}

// Service computes and caches the dashboard summary.
type Service struct {
	repo  RepositoryPort
	cache *redis.Client
	ttl   time.Duration
	group singleflight.Group
	now   func() time.Time
}

// NewService builds Service. A nil cache client disables caching.
func NewService(repo RepositoryPort, cache *redis.Client, ttl time.Duration) *Service {
	return &Service{repo: repo, cache: cache, ttl: ttl, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// Summary returns the cached dashboard summary, computing it on a miss.
// Concurrent misses share one computation.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	if s.cache != nil {
		payload, err := s.cache.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var cached Summary
			if err := json.Unmarshal(payload, &cached); err == nil {
				return cached, nil
			}
		} else if err != redis.Nil {
			return Summary{}, err
		}
	}

	v, err, _ := s.group.Do(cacheKey, func() (any, error) {
		summary, err := s.compute(ctx)
		if err != nil {
			return Summary{}, err
		}
		if err := s.store(ctx, summary); err != nil {
			return Summary{}, err
		}
		return summary, nil
	})
	if err != nil {
		return Summary{}, err
	}
	return v.(Summary), nil
}

// Warm recomputes the summary and overwrites the cached copy.
func (s *Service) Warm(ctx context.Context) error {
	summary, err := s.compute(ctx)
	if err != nil {
		return err
	}
	return s.store(ctx, summary)
}

func (s *Service) store(ctx context.Context, summary Summary) error {
	if s.cache == nil {
		return nil
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, cacheKey, raw, s.ttl).Err()
}

func (s *Service) compute(ctx context.Context) (Summary, error) {
	var (
		summary Summary
		orders  []OrderTotal
	)
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := s.repo.Revenue(ctx)
		summary.FinancialKPIs.TotalRevenue = v
		return err
	})
	g.Go(func() error {
		v, err := s.repo.Expenses(ctx)
		summary.FinancialKPIs.TotalExpenses = v
		return err
	})
	g.Go(func() error {
		v, err := s.repo.ActiveOrders(ctx)
		summary.ActiveOrders = v
		return err
	})
	g.Go(func() error {
		v, err := s.repo.LowStockItems(ctx)
		summary.LowStockItems = v
		return err
	})
	g.Go(func() error {
		v, err := s.repo.OrdersSince(ctx, s.now().UTC().Add(-trendWindow))
		orders = v
		return err
	})
	g.Go(func() error {
		v, err := s.repo.RecentPendingEvents(ctx, recentEvents)
		summary.Notifications = v
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	summary.FinancialKPIs.ProfitLoss = summary.FinancialKPIs.TotalRevenue - summary.FinancialKPIs.TotalExpenses
	summary.SalesTrend = bucketByMonth(orders)
	if summary.Notifications == nil {
		summary.Notifications = []Notification{}
	}
	return summary, nil
}

func bucketByMonth(orders []OrderTotal) []TrendMonth {
	byMonth := make(map[string]*TrendMonth)
	for _, o := range orders {
		key := o.Date.Format(trendMonthKey)
		bucket, ok := byMonth[key]
		if !ok {
			bucket = &TrendMonth{Month: key}
			byMonth[key] = bucket
		}
		bucket.TotalSales += o.Amount
		bucket.OrderCount++
	}
	out := make([]TrendMonth, 0, len(byMonth))
	for _, bucket := range byMonth {
		out = append(out, *bucket)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}
