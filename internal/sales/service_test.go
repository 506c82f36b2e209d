package sales

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/inventory"
	"github.com/meridian-erp/meridian-erp/internal/process"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryRepo struct {
	customers map[int64]Customer
	products  map[int64]inventory.Product
	orders    map[int64]Order
	items     []OrderItem
	movements []inventory.Movement
	events    []process.Event
	shipments []Shipment
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		customers: map[int64]Customer{},
		products:  map[int64]inventory.Product{},
		orders:    map[int64]Order{},
		nextID:    1,
	}
}

func (m *memoryRepo) id() int64 {
	id := m.nextID
	m.nextID++
	return id
}

func (m *memoryRepo) seedCustomer(c Customer) Customer {
	c.ID = m.id()
	m.customers[c.ID] = c
	return c
}

func (m *memoryRepo) seedProduct(p inventory.Product) inventory.Product {
	p.ID = m.id()
	m.products[p.ID] = p
	return p
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	customers := snapshot(m.customers)
	products := snapshot(m.products)
	orders := snapshot(m.orders)
	items, movements, events, shipments := len(m.items), len(m.movements), len(m.events), len(m.shipments)
	nextID := m.nextID
	if err := fn(ctx, (*memoryTx)(m)); err != nil {
		m.customers, m.products, m.orders = customers, products, orders
		m.items = m.items[:items]
		m.movements = m.movements[:movements]
		m.events = m.events[:events]
		m.shipments = m.shipments[:shipments]
		m.nextID = nextID
		return err
	}
	return nil
}

func snapshot[V any](in map[int64]V) map[int64]V {
	out := make(map[int64]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (m *memoryRepo) InsertCustomer(_ context.Context, input CustomerInput) (Customer, error) {
	return m.seedCustomer(Customer{
		Name:          input.Name,
		ContactPerson: input.ContactPerson,
		Email:         input.Email,
		Phone:         input.Phone,
		Address:       input.Address,
		CreditLimit:   input.CreditLimit,
	}), nil
}

func (m *memoryRepo) GetCustomer(_ context.Context, id int64) (Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return Customer{}, shared.NewNotFound("customer", id)
	}
	return c, nil
}

func (m *memoryRepo) ListCustomers(_ context.Context, _, _ int) ([]Customer, error) {
	var out []Customer
	for id := int64(1); id < m.nextID; id++ {
		if c, ok := m.customers[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memoryRepo) UpdateCustomer(_ context.Context, id int64, patch CustomerPatch) (Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return Customer{}, shared.NewNotFound("customer", id)
	}
	if v, ok := patch.Name.Get(); ok {
		c.Name = v
	}
	if v, ok := patch.Email.Get(); ok {
		c.Email = v
	}
	if v, ok := patch.CreditLimit.Get(); ok {
		c.CreditLimit = v
	}
	m.customers[id] = c
	return c, nil
}

func (m *memoryRepo) GetOrder(_ context.Context, id int64) (Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return Order{}, shared.NewNotFound("order", id)
	}
	for _, item := range m.items {
		if item.OrderID == id {
			o.Items = append(o.Items, item)
		}
	}
	return o, nil
}

func (m *memoryRepo) ListOrders(_ context.Context, _ OrderFilter) ([]Order, error) {
	var out []Order
	for id := int64(1); id < m.nextID; id++ {
		if o, ok := m.orders[id]; ok {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memoryRepo) OrdersBetween(_ context.Context, from, to time.Time) ([]Order, error) {
	var out []Order
	for id := int64(1); id < m.nextID; id++ {
		o, ok := m.orders[id]
		if !ok || o.Status == StatusCancelled {
			continue
		}
		if o.OrderDate.Before(from) || o.OrderDate.After(to) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (m *memoryRepo) ItemsBetween(_ context.Context, from, to time.Time) ([]OrderItem, error) {
	var out []OrderItem
	for _, item := range m.items {
		o, ok := m.orders[item.OrderID]
		if !ok || o.Status == StatusCancelled {
			continue
		}
		if o.OrderDate.Before(from) || o.OrderDate.After(to) {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (m *memoryRepo) CustomerNames(_ context.Context, ids []int64) (map[int64]string, error) {
	out := map[int64]string{}
	for _, id := range ids {
		if c, ok := m.customers[id]; ok {
			out[id] = c.Name
		}
	}
	return out, nil
}

func (m *memoryRepo) ProductNames(_ context.Context, ids []int64) (map[int64]string, error) {
	out := map[int64]string{}
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out[id] = p.Name
		}
	}
	return out, nil
}

type memoryTx memoryRepo

func (t *memoryTx) InsertOrder(_ context.Context, input OrderInput) (Order, error) {
	o := Order{
		ID:           (*memoryRepo)(t).id(),
		OrderNumber:  input.OrderNumber,
		CustomerID:   input.CustomerID,
		OrderDate:    input.OrderDate,
		RequiredDate: input.RequiredDate,
		Status:       input.Status,
		TotalAmount:  input.TotalAmount,
	}
	t.orders[o.ID] = o
	return o, nil
}

func (t *memoryTx) InsertOrderItem(_ context.Context, orderID int64, item OrderItemInput) (OrderItem, error) {
	line := OrderItem{
		ID:         int64(len(t.items) + 1),
		OrderID:    orderID,
		ProductID:  item.ProductID,
		Quantity:   item.Quantity,
		UnitPrice:  item.UnitPrice,
		Discount:   item.Discount,
		TotalPrice: item.TotalPrice,
	}
	t.items = append(t.items, line)
	return line, nil
}

func (t *memoryTx) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	o, ok := t.orders[id]
	if !ok {
		return Order{}, shared.NewNotFound("order", id)
	}
	return o, nil
}

func (t *memoryTx) OrderItems(_ context.Context, orderID int64) ([]OrderItem, error) {
	var out []OrderItem
	for _, item := range t.items {
		if item.OrderID == orderID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (t *memoryTx) SetOrderStatus(_ context.Context, id int64, status Status, shippedDate *time.Time) error {
	o, ok := t.orders[id]
	if !ok {
		return shared.NewNotFound("order", id)
	}
	o.Status = status
	if shippedDate != nil {
		o.ShippedDate = shippedDate
	}
	t.orders[id] = o
	return nil
}

func (t *memoryTx) InsertShipment(_ context.Context, shipment Shipment) (Shipment, error) {
	shipment.ID = int64(len(t.shipments) + 1)
	t.shipments = append(t.shipments, shipment)
	return shipment, nil
}

func (t *memoryTx) GetProductForUpdate(_ context.Context, id int64) (inventory.Product, error) {
	p, ok := t.products[id]
	if !ok {
		return inventory.Product{}, shared.NewNotFound("product", id)
	}
	return p, nil
}

func (t *memoryTx) SetStock(_ context.Context, productID, quantity int64) error {
	p, ok := t.products[productID]
	if !ok {
		return shared.NewNotFound("product", productID)
	}
	p.StockQuantity = quantity
	t.products[productID] = p
	return nil
}

func (t *memoryTx) InsertMovement(_ context.Context, input inventory.MovementInput) (inventory.Movement, error) {
	movement := inventory.Movement{
		ID:           int64(len(t.movements) + 1),
		ProductID:    input.ProductID,
		Quantity:     input.Quantity,
		Kind:         input.Kind,
		Reference:    input.Reference,
		MovementDate: input.MovementDate,
	}
	t.movements = append(t.movements, movement)
	return movement, nil
}

func (t *memoryTx) InsertEvent(_ context.Context, input process.EventInput) (process.Event, error) {
	event := process.Event{
		ID:          int64(len(t.events) + 1),
		EventType:   input.EventType,
		Description: input.Description,
		Status:      process.StatusPending,
		Severity:    input.Severity,
		OrderID:     input.OrderID,
	}
	t.events = append(t.events, event)
	return event, nil
}

func newTestService(repo *memoryRepo) *Service {
	svc := NewService(repo, nil, "Default Carrier")
	svc.WithNow(func() time.Time {
		return time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
	})
	return svc
}

func TestCreateOrderRoundTrip(t *testing.T) {
	repo := newMemoryRepo()
	customer := repo.seedCustomer(Customer{Name: "Acme"})
	p1 := repo.seedProduct(inventory.Product{Name: "Widget", StockQuantity: 100, ReorderLevel: 5})
	p2 := repo.seedProduct(inventory.Product{Name: "Gadget", StockQuantity: 50, ReorderLevel: 5})
	svc := newTestService(repo)

	order, err := svc.CreateOrder(context.Background(), OrderInput{
		CustomerID: customer.ID,
		Items: []OrderItemInput{
			{ProductID: p1.ID, Quantity: 10, UnitPrice: 2.5},
			{ProductID: p2.ID, Quantity: 4, UnitPrice: 10},
		},
	})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, order.Status)
	require.NotEmpty(t, order.OrderNumber)
	require.Len(t, order.Items, 2)
	require.InDelta(t, 65.0, order.TotalAmount, 0.001)

	require.Len(t, repo.items, 2)
	require.Len(t, repo.movements, 2)
	for _, mv := range repo.movements {
		require.Equal(t, inventory.MovementOut, mv.Kind)
		require.Equal(t, fmt.Sprintf("Order #%s", order.OrderNumber), mv.Reference)
	}
	require.EqualValues(t, 90, repo.products[p1.ID].StockQuantity)
	require.EqualValues(t, 46, repo.products[p2.ID].StockQuantity)
	require.Empty(t, repo.events)
}

func TestCreateOrderShortageDoesNotBlock(t *testing.T) {
	repo := newMemoryRepo()
	customer := repo.seedCustomer(Customer{Name: "Acme"})
	product := repo.seedProduct(inventory.Product{Name: "Widget", StockQuantity: 3, ReorderLevel: 2})
	svc := newTestService(repo)

	order, err := svc.CreateOrder(context.Background(), OrderInput{
		CustomerID: customer.ID,
		Items:      []OrderItemInput{{ProductID: product.ID, Quantity: 10, UnitPrice: 1}},
	})
	require.NoError(t, err, "shortage must not block order creation")
	require.EqualValues(t, -7, repo.products[product.ID].StockQuantity, "stock may go negative")

	require.Len(t, repo.events, 2)
	low := repo.events[0]
	require.Equal(t, process.SeverityHigh, low.Severity)
	require.NotNil(t, low.OrderID)
	require.Equal(t, order.ID, *low.OrderID)
	require.Equal(t,
		fmt.Sprintf("Low stock for product Widget (ID: %d). Required: 10, Available: 3", product.ID),
		low.Description)
	require.Equal(t, process.SeverityMedium, repo.events[1].Severity)
}

func TestCreateOrderUnknownProductRollsBack(t *testing.T) {
	repo := newMemoryRepo()
	customer := repo.seedCustomer(Customer{Name: "Acme"})
	product := repo.seedProduct(inventory.Product{Name: "Widget", StockQuantity: 100, ReorderLevel: 5})
	svc := newTestService(repo)

	_, err := svc.CreateOrder(context.Background(), OrderInput{
		CustomerID: customer.ID,
		Items: []OrderItemInput{
			{ProductID: product.ID, Quantity: 10, UnitPrice: 1},
			{ProductID: 999, Quantity: 1, UnitPrice: 1},
		},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
	require.Empty(t, repo.orders)
	require.Empty(t, repo.items)
	require.Empty(t, repo.movements)
	require.EqualValues(t, 100, repo.products[product.ID].StockQuantity)
}

func TestCreateOrderUnknownCustomer(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.CreateOrder(context.Background(), OrderInput{
		CustomerID: 42,
		Items:      []OrderItemInput{{ProductID: 1, Quantity: 1, UnitPrice: 1}},
	})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateOrderStatusCancelRestoresStockOnce(t *testing.T) {
	repo := newMemoryRepo()
	customer := repo.seedCustomer(Customer{Name: "Acme"})
	product := repo.seedProduct(inventory.Product{Name: "Widget", StockQuantity: 100, ReorderLevel: 5})
	svc := newTestService(repo)

	order, err := svc.CreateOrder(context.Background(), OrderInput{
		CustomerID: customer.ID,
		Items:      []OrderItemInput{{ProductID: product.ID, Quantity: 30, UnitPrice: 1}},
	})
	require.NoError(t, err)
	require.EqualValues(t, 70, repo.products[product.ID].StockQuantity)

	cancelled, err := svc.UpdateOrderStatus(context.Background(), order.ID, StatusCancelled)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.EqualValues(t, 100, repo.products[product.ID].StockQuantity)
	require.Len(t, repo.movements, 2)
	restock := repo.movements[1]
	require.Equal(t, inventory.MovementIn, restock.Kind)
	require.Equal(t, fmt.Sprintf("Cancelled Order #%s", order.OrderNumber), restock.Reference)

	// Cancelling again must not restock a second time.
	_, err = svc.UpdateOrderStatus(context.Background(), order.ID, StatusCancelled)
	require.NoError(t, err)
	require.EqualValues(t, 100, repo.products[product.ID].StockQuantity)
	require.Len(t, repo.movements, 2)
}

func TestUpdateOrderStatusShipCreatesShipmentOnce(t *testing.T) {
	repo := newMemoryRepo()
	customer := repo.seedCustomer(Customer{Name: "Acme"})
	product := repo.seedProduct(inventory.Product{Name: "Widget", StockQuantity: 100, ReorderLevel: 5})
	svc := newTestService(repo)

	order, err := svc.CreateOrder(context.Background(), OrderInput{
		CustomerID: customer.ID,
		Items:      []OrderItemInput{{ProductID: product.ID, Quantity: 1, UnitPrice: 1}},
	})
	require.NoError(t, err)

	shipped, err := svc.UpdateOrderStatus(context.Background(), order.ID, StatusShipped)
	require.NoError(t, err)
	require.Equal(t, StatusShipped, shipped.Status)
	require.NotNil(t, shipped.ShippedDate)
	require.Len(t, repo.shipments, 1)

	shipment := repo.shipments[0]
	require.Equal(t, fmt.Sprintf("SHP-20260314-%d", order.ID), shipment.ShipmentNumber)
	require.Equal(t, fmt.Sprintf("TRK-%d-202603141030", order.ID), shipment.TrackingNumber)
	require.Equal(t, "Default Carrier", shipment.Carrier)

	// Repeating the status is idempotent for the side effect.
	_, err = svc.UpdateOrderStatus(context.Background(), order.ID, StatusShipped)
	require.NoError(t, err)
	require.Len(t, repo.shipments, 1)
}

func TestUpdateOrderStatusValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	_, err := svc.UpdateOrderStatus(context.Background(), 1, "archived")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.UpdateOrderStatus(context.Background(), 99, StatusConfirmed)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestSalesReports(t *testing.T) {
	repo := newMemoryRepo()
	acme := repo.seedCustomer(Customer{Name: "Acme"})
	globex := repo.seedCustomer(Customer{Name: "Globex"})
	widget := repo.seedProduct(inventory.Product{Name: "Widget", StockQuantity: 1000, ReorderLevel: 0})
	svc := newTestService(repo)

	mkOrder := func(customerID int64, date time.Time, qty int64, price float64) Order {
		o, err := svc.CreateOrder(context.Background(), OrderInput{
			CustomerID: customerID,
			OrderDate:  date,
			Items:      []OrderItemInput{{ProductID: widget.ID, Quantity: qty, UnitPrice: price}},
		})
		require.NoError(t, err)
		return o
	}
	jan := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC)
	mkOrder(acme.ID, jan, 2, 100)
	mkOrder(acme.ID, feb, 1, 50)
	cancelled := mkOrder(globex.ID, feb, 3, 10)
	_, err := svc.UpdateOrderStatus(context.Background(), cancelled.ID, StatusCancelled)
	require.NoError(t, err)

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)

	byCustomer, err := svc.SalesByCustomer(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, byCustomer.Customers, 1, "cancelled orders are excluded")
	require.Equal(t, "Acme", byCustomer.Customers[0].CustomerName)
	require.EqualValues(t, 2, byCustomer.Customers[0].OrderCount)
	require.InDelta(t, 250.0, byCustomer.Customers[0].TotalSales, 0.001)

	byProduct, err := svc.SalesByProduct(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, byProduct.Products, 1)
	require.Equal(t, "Widget", byProduct.Products[0].ProductName)
	require.EqualValues(t, 3, byProduct.Products[0].QuantitySold)
	require.InDelta(t, 250.0, byProduct.Products[0].TotalSales, 0.001)

	trend, err := svc.Trend(context.Background(), from, to, "month")
	require.NoError(t, err)
	require.Len(t, trend.Points, 2)
	require.Equal(t, "2026-01", trend.Points[0].Period)
	require.Equal(t, "2026-02", trend.Points[1].Period)
	require.InDelta(t, 200.0, trend.Points[0].TotalSales, 0.001)
}

func TestPeriodKey(t *testing.T) {
	d := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	require.Equal(t, "2024-03-20", PeriodKey(d, "day"))
	require.Equal(t, "2024-W12", PeriodKey(d, "week"))
	require.Equal(t, "2024-03", PeriodKey(d, "month"))
	require.Equal(t, "2024-Q1", PeriodKey(d, "quarter"))
	require.Equal(t, "2024", PeriodKey(d, "year"))
	require.Equal(t, "2024-03", PeriodKey(d, "fortnight"))
}
