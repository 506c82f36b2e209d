package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/process"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	InsertProduct(ctx context.Context, input ProductInput) (Product, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error)
	UpdateProduct(ctx context.Context, id int64, input ProductInput) (Product, error)
	ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error)
	// RecordAlert inserts a process event outside any workflow transaction.
	// The shortage alert uses it so the alert survives the rolled back
	// movement.
	RecordAlert(ctx context.Context, input process.EventInput) (process.Event, error)
	AllProducts(ctx context.Context) ([]Product, error)
	LowStockProducts(ctx context.Context) ([]Product, error)
	OutgoingTotalSince(ctx context.Context, productID int64, since time.Time) (int64, error)
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetProductForUpdate(ctx context.Context, id int64) (Product, error)
	SetStock(ctx context.Context, productID, quantity int64) error
	InsertMovement(ctx context.Context, input MovementInput) (Movement, error)
	InsertEvent(ctx context.Context, input process.EventInput) (process.Event, error)
}

// Service coordinates inventory operations.
type Service struct {
	repo    RepositoryPort
	metrics *observability.Metrics
	now     func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, metrics *observability.Metrics) *Service {
	return &Service{repo: repo, metrics: metrics, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// CreateProduct stores a new product.
func (s *Service) CreateProduct(ctx context.Context, input ProductInput) (Product, error) {
	if input.SKU == "" {
		return Product{}, shared.NewValidation("sku", "required")
	}
	if input.StockQuantity < 0 {
		return Product{}, shared.NewValidation("stock_quantity", "must not be negative")
	}
	return s.repo.InsertProduct(ctx, input)
}

// GetProduct returns one product.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	return s.repo.GetProduct(ctx, id)
}

// ListProducts returns products matching the filter.
func (s *Service) ListProducts(ctx context.Context, filter ProductFilter) ([]Product, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.repo.ListProducts(ctx, filter)
}

// UpdateProduct replaces the product's fields.
func (s *Service) UpdateProduct(ctx context.Context, id int64, input ProductInput) (Product, error) {
	if input.SKU == "" {
		return Product{}, shared.NewValidation("sku", "required")
	}
	return s.repo.UpdateProduct(ctx, id, input)
}

// ListMovements returns movements matching the filter.
func (s *Service) ListMovements(ctx context.Context, filter MovementFilter) ([]Movement, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.repo.ListMovements(ctx, filter)
}

// ApplyMovement records a movement and updates the product's stock in one
// transaction. Outbound movements exceeding stock on hand fail without
// mutating anything; the shortage alert is still recorded. Every successful
// movement ending at or below the reorder level raises a reorder alert.
func (s *Service) ApplyMovement(ctx context.Context, input MovementInput) (Movement, error) {
	if !IsValidMovementKind(input.Kind) {
		return Movement{}, shared.NewValidation("movement_type", "must be in, out or adjustment")
	}
	if input.Quantity <= 0 && input.Kind != MovementAdjustment {
		return Movement{}, shared.NewValidation("quantity", "must be positive")
	}
	if input.Quantity < 0 {
		return Movement{}, shared.NewValidation("quantity", "must not be negative")
	}
	if input.MovementDate.IsZero() {
		input.MovementDate = s.now().UTC()
	}

	var (
		created  Movement
		shortage *shared.InsufficientStockError
		alert    process.EventInput
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.GetProductForUpdate(ctx, input.ProductID)
		if err != nil {
			return err
		}
		var newStock int64
		switch input.Kind {
		case MovementIn:
			newStock = product.StockQuantity + input.Quantity
		case MovementOut:
			if product.StockQuantity < input.Quantity {
				shortage = &shared.InsufficientStockError{
					ProductID: product.ID,
					Requested: input.Quantity,
					Available: product.StockQuantity,
				}
				alert = process.EventInput{
					EventType:   process.EventTypeAlert,
					Description: ShortageMessage(product, input.Quantity),
					Severity:    process.SeverityHigh,
				}
				return shortage
			}
			newStock = product.StockQuantity - input.Quantity
		case MovementAdjustment:
			newStock = input.Quantity
		}

		created, err = tx.InsertMovement(ctx, input)
		if err != nil {
			return err
		}
		if err := tx.SetStock(ctx, product.ID, newStock); err != nil {
			return err
		}
		if newStock <= product.ReorderLevel {
			if _, err := tx.InsertEvent(ctx, process.EventInput{
				EventType:   process.EventTypeAlert,
				Description: ReorderMessage(product, newStock),
				Severity:    process.SeverityMedium,
			}); err != nil {
				return err
			}
			s.metrics.RecordProcessEvent(string(process.SeverityMedium))
		}
		return nil
	})
	if err != nil {
		if shortage != nil && errors.Is(err, shared.ErrInsufficientStock) {
			if _, alertErr := s.repo.RecordAlert(ctx, alert); alertErr != nil {
				return Movement{}, fmt.Errorf("record shortage alert: %w", alertErr)
			}
			s.metrics.RecordProcessEvent(string(process.SeverityHigh))
		}
		return Movement{}, err
	}
	return created, nil
}
