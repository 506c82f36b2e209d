package sales

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/observability"
	"github.com/meridian-erp/meridian-erp/internal/process"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	InsertCustomer(ctx context.Context, input CustomerInput) (Customer, error)
	GetCustomer(ctx context.Context, id int64) (Customer, error)
	ListCustomers(ctx context.Context, limit, offset int) ([]Customer, error)
	UpdateCustomer(ctx context.Context, id int64, patch CustomerPatch) (Customer, error)
	GetOrder(ctx context.Context, id int64) (Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error)
	OrdersBetween(ctx context.Context, from, to time.Time) ([]Order, error)
	// ItemsBetween returns the lines of non-cancelled orders dated in the
	// range, for the by-product rollup.
	ItemsBetween(ctx context.Context, from, to time.Time) ([]OrderItem, error)
	CustomerNames(ctx context.Context, ids []int64) (map[int64]string, error)
	ProductNames(ctx context.Context, ids []int64) (map[int64]string, error)
}

// TxRepository exposes the transactional operations of the order workflow.
type TxRepository interface {
	InsertOrder(ctx context.Context, input OrderInput) (Order, error)
	InsertOrderItem(ctx context.Context, orderID int64, item OrderItemInput) (OrderItem, error)
	GetOrderForUpdate(ctx context.Context, id int64) (Order, error)
	OrderItems(ctx context.Context, orderID int64) ([]OrderItem, error)
	SetOrderStatus(ctx context.Context, id int64, status Status, shippedDate *time.Time) error
	InsertShipment(ctx context.Context, shipment Shipment) (Shipment, error)
	GetProductForUpdate(ctx context.Context, id int64) (inventory.Product, error)
	SetStock(ctx context.Context, productID, quantity int64) error
	InsertMovement(ctx context.Context, input inventory.MovementInput) (inventory.Movement, error)
	InsertEvent(ctx context.Context, input process.EventInput) (process.Event, error)
}

// Service coordinates the sales workflow.
type Service struct {
	repo    RepositoryPort
	metrics *observability.Metrics
	carrier string
	now     func() time.Time
}

// NewService builds Service. carrier names the carrier stamped on shipments.
func NewService(repo RepositoryPort, metrics *observability.Metrics, carrier string) *Service {
	return &Service{repo: repo, metrics: metrics, carrier: carrier, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// CreateCustomer stores a new customer.
func (s *Service) CreateCustomer(ctx context.Context, input CustomerInput) (Customer, error) {
	if input.Name == "" {
		return Customer{}, shared.NewValidation("name", "required")
	}
	return s.repo.InsertCustomer(ctx, input)
}

// GetCustomer returns one customer.
func (s *Service) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	return s.repo.GetCustomer(ctx, id)
}

// ListCustomers returns customers, paginated.
func (s *Service) ListCustomers(ctx context.Context, limit, offset int) ([]Customer, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListCustomers(ctx, limit, offset)
}

// UpdateCustomer applies a partial update.
func (s *Service) UpdateCustomer(ctx context.Context, id int64, patch CustomerPatch) (Customer, error) {
	if name, ok := patch.Name.Get(); ok && name == "" {
		return Customer{}, shared.NewValidation("name", "must not be empty")
	}
	return s.repo.UpdateCustomer(ctx, id, patch)
}

// CreateOrder creates an order with its lines in one transaction. Every line
// records an outbound movement and decrements stock even when stock is short;
// shortage only raises a high severity alert tied to the order. A missing
// customer or product aborts the whole order.
func (s *Service) CreateOrder(ctx context.Context, input OrderInput) (Order, error) {
	if len(input.Items) == 0 {
		return Order{}, shared.NewValidation("items", "at least one item required")
	}
	if input.Status == "" {
		input.Status = StatusDraft
	}
	if !IsValidStatus(input.Status) {
		return Order{}, shared.NewValidation("status", "unknown order status")
	}
	if _, err := s.repo.GetCustomer(ctx, input.CustomerID); err != nil {
		return Order{}, err
	}

	now := s.now().UTC()
	if input.OrderDate.IsZero() {
		input.OrderDate = now
	}
	if input.OrderNumber == "" {
		input.OrderNumber = fmt.Sprintf("ORD-%d", now.UnixNano())
	}
	for i := range input.Items {
		item := &input.Items[i]
		if item.Quantity <= 0 {
			return Order{}, shared.NewValidation("quantity", "must be positive")
		}
		if item.TotalPrice == 0 {
			item.TotalPrice = float64(item.Quantity)*item.UnitPrice - item.Discount
		}
	}
	if input.TotalAmount == 0 {
		for _, item := range input.Items {
			input.TotalAmount += item.TotalPrice
		}
	}

	var created Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.InsertOrder(ctx, input)
		if err != nil {
			return err
		}
		for _, item := range input.Items {
			product, err := tx.GetProductForUpdate(ctx, item.ProductID)
			if err != nil {
				return err
			}
			if product.StockQuantity < item.Quantity {
				orderID := order.ID
				if _, err := tx.InsertEvent(ctx, process.EventInput{
					EventType:   process.EventTypeAlert,
					Description: LowStockMessage(product, item.Quantity),
					Severity:    process.SeverityHigh,
					OrderID:     &orderID,
				}); err != nil {
					return err
				}
				s.metrics.RecordProcessEvent(string(process.SeverityHigh))
			}
			line, err := tx.InsertOrderItem(ctx, order.ID, item)
			if err != nil {
				return err
			}
			order.Items = append(order.Items, line)

			if _, err := tx.InsertMovement(ctx, inventory.MovementInput{
				ProductID:    item.ProductID,
				Quantity:     item.Quantity,
				Kind:         inventory.MovementOut,
				Reference:    fmt.Sprintf("Order #%s", order.OrderNumber),
				MovementDate: now,
			}); err != nil {
				return err
			}
			newStock := product.StockQuantity - item.Quantity
			if err := tx.SetStock(ctx, product.ID, newStock); err != nil {
				return err
			}
			if newStock <= product.ReorderLevel {
				if _, err := tx.InsertEvent(ctx, process.EventInput{
					EventType:   process.EventTypeAlert,
					Description: inventory.ReorderMessage(product, newStock),
					Severity:    process.SeverityMedium,
				}); err != nil {
					return err
				}
				s.metrics.RecordProcessEvent(string(process.SeverityMedium))
			}
		}
		created = order
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return created, nil
}

// GetOrder returns one order with its items.
func (s *Service) GetOrder(ctx context.Context, id int64) (Order, error) {
	return s.repo.GetOrder(ctx, id)
}

// ListOrders returns orders matching the filter.
func (s *Service) ListOrders(ctx context.Context, filter OrderFilter) ([]Order, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.repo.ListOrders(ctx, filter)
}

// UpdateOrderStatus assigns a new status. Entering cancelled restores stock
// through inbound movements; entering shipped creates the shipment and stamps
// shipped_date. Both side effects run at most once, so repeating a status is
// a no-op beyond the assignment itself.
func (s *Service) UpdateOrderStatus(ctx context.Context, id int64, status Status) (Order, error) {
	if !IsValidStatus(status) {
		return Order{}, shared.NewValidation("status", "unknown order status")
	}
	var updated Order
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		now := s.now().UTC()

		if status == StatusCancelled && order.Status != StatusCancelled {
			items, err := tx.OrderItems(ctx, order.ID)
			if err != nil {
				return err
			}
			for _, item := range items {
				if _, err := tx.InsertMovement(ctx, inventory.MovementInput{
					ProductID:    item.ProductID,
					Quantity:     item.Quantity,
					Kind:         inventory.MovementIn,
					Reference:    fmt.Sprintf("Cancelled Order #%s", order.OrderNumber),
					MovementDate: now,
				}); err != nil {
					return err
				}
				product, err := tx.GetProductForUpdate(ctx, item.ProductID)
				if err != nil {
					return err
				}
				if err := tx.SetStock(ctx, product.ID, product.StockQuantity+item.Quantity); err != nil {
					return err
				}
			}
		}

		var shippedDate *time.Time
		if status == StatusShipped && order.Status != StatusShipped {
			if _, err := tx.InsertShipment(ctx, Shipment{
				ShipmentNumber: fmt.Sprintf("SHP-%s-%d", now.Format("20060102"), order.ID),
				OrderID:        order.ID,
				ShipmentDate:   now,
				Carrier:        s.carrier,
				TrackingNumber: fmt.Sprintf("TRK-%d-%s", order.ID, now.Format("200601021504")),
				Status:         StatusShipped,
			}); err != nil {
				return err
			}
			shippedDate = &now
		}

		if err := tx.SetOrderStatus(ctx, order.ID, status, shippedDate); err != nil {
			return err
		}
		order.Status = status
		if shippedDate != nil {
			order.ShippedDate = shippedDate
		}
		updated = order
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	return updated, nil
}
