package procurement

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	InsertSupplier(ctx context.Context, input SupplierInput) (Supplier, error)
	GetSupplier(ctx context.Context, id int64) (Supplier, error)
	ListSuppliers(ctx context.Context, limit, offset int) ([]Supplier, error)
	GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error)
	ListPurchaseOrders(ctx context.Context, filter PurchaseOrderFilter) ([]PurchaseOrder, error)
}

// TxRepository exposes the transactional operations of the procurement
// workflow.
type TxRepository interface {
	InsertPurchaseOrder(ctx context.Context, input PurchaseOrderInput) (PurchaseOrder, error)
	InsertPurchaseOrderItem(ctx context.Context, poID int64, item PurchaseOrderItemInput) (PurchaseOrderItem, error)
	GetPurchaseOrderForUpdate(ctx context.Context, id int64) (PurchaseOrder, error)
	PurchaseOrderItems(ctx context.Context, poID int64) ([]PurchaseOrderItem, error)
	SetPurchaseOrderStatus(ctx context.Context, id int64, status Status) error
	ProductExists(ctx context.Context, id int64) (bool, error)
	GetProductForUpdate(ctx context.Context, id int64) (inventory.Product, error)
	SetStock(ctx context.Context, productID, quantity int64) error
	InsertMovement(ctx context.Context, input inventory.MovementInput) (inventory.Movement, error)
}

// Service coordinates the procurement workflow.
type Service struct {
	repo RepositoryPort
	now  func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// CreateSupplier stores a new supplier.
func (s *Service) CreateSupplier(ctx context.Context, input SupplierInput) (Supplier, error) {
	if input.Name == "" {
		return Supplier{}, shared.NewValidation("name", "required")
	}
	return s.repo.InsertSupplier(ctx, input)
}

// GetSupplier returns one supplier.
func (s *Service) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	return s.repo.GetSupplier(ctx, id)
}

// ListSuppliers returns suppliers, paginated.
func (s *Service) ListSuppliers(ctx context.Context, limit, offset int) ([]Supplier, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListSuppliers(ctx, limit, offset)
}

// CreatePurchaseOrder creates a purchase order with its lines in one
// transaction. A missing supplier or product aborts the whole order.
// Stock does not move until the order is received.
func (s *Service) CreatePurchaseOrder(ctx context.Context, input PurchaseOrderInput) (PurchaseOrder, error) {
	if len(input.Items) == 0 {
		return PurchaseOrder{}, shared.NewValidation("items", "at least one item required")
	}
	if input.Status == "" {
		input.Status = StatusDraft
	}
	if !IsValidStatus(input.Status) {
		return PurchaseOrder{}, shared.NewValidation("status", "unknown purchase order status")
	}
	if _, err := s.repo.GetSupplier(ctx, input.SupplierID); err != nil {
		return PurchaseOrder{}, err
	}

	now := s.now().UTC()
	if input.OrderDate.IsZero() {
		input.OrderDate = now
	}
	if input.PONumber == "" {
		input.PONumber = fmt.Sprintf("PO-%d", now.UnixNano())
	}
	for i := range input.Items {
		item := &input.Items[i]
		if item.Quantity <= 0 {
			return PurchaseOrder{}, shared.NewValidation("quantity", "must be positive")
		}
		if item.TotalPrice == 0 {
			item.TotalPrice = float64(item.Quantity) * item.UnitPrice
		}
	}
	if input.TotalAmount == 0 {
		for _, item := range input.Items {
			input.TotalAmount += item.TotalPrice
		}
	}

	var created PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.InsertPurchaseOrder(ctx, input)
		if err != nil {
			return err
		}
		for _, item := range input.Items {
			ok, err := tx.ProductExists(ctx, item.ProductID)
			if err != nil {
				return err
			}
			if !ok {
				return shared.NewNotFound("product", item.ProductID)
			}
			line, err := tx.InsertPurchaseOrderItem(ctx, po.ID, item)
			if err != nil {
				return err
			}
			po.Items = append(po.Items, line)
		}
		created = po
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	return created, nil
}

// GetPurchaseOrder returns one purchase order with its items.
func (s *Service) GetPurchaseOrder(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.GetPurchaseOrder(ctx, id)
}

// ListPurchaseOrders returns purchase orders matching the filter.
func (s *Service) ListPurchaseOrders(ctx context.Context, filter PurchaseOrderFilter) ([]PurchaseOrder, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.repo.ListPurchaseOrders(ctx, filter)
}

// UpdateStatus assigns a new status. Entering received books an inbound
// movement and stock increment per line, exactly once; receipts are
// unconditional, no shortage or reorder checks apply.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status Status) (PurchaseOrder, error) {
	if !IsValidStatus(status) {
		return PurchaseOrder{}, shared.NewValidation("status", "unknown purchase order status")
	}
	var updated PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetPurchaseOrderForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if status == StatusReceived && po.Status != StatusReceived {
			items, err := tx.PurchaseOrderItems(ctx, po.ID)
			if err != nil {
				return err
			}
			now := s.now().UTC()
			for _, item := range items {
				if _, err := tx.InsertMovement(ctx, inventory.MovementInput{
					ProductID:    item.ProductID,
					Quantity:     item.Quantity,
					Kind:         inventory.MovementIn,
					Reference:    fmt.Sprintf("PO #%s", po.PONumber),
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
		if err := tx.SetPurchaseOrderStatus(ctx, po.ID, status); err != nil {
			return err
		}
		po.Status = status
		updated = po
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	return updated, nil
}
