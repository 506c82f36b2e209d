package billing

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

type memoryRepo struct {
	invoices  map[int64]Invoice
	customers map[int64]bool
	orders    map[int64]bool
	balances  map[string]float64
	payments  []ledger.Transaction
	statusErr error
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		invoices:  map[int64]Invoice{},
		customers: map[int64]bool{},
		orders:    map[int64]bool{},
		balances:  map[string]float64{},
		nextID:    1,
	}
}

func snapshot[K comparable, V any](src map[K]V) map[K]V {
	out := make(map[K]V, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	invoices, balances := snapshot(m.invoices), snapshot(m.balances)
	payments, nextID := m.payments, m.nextID
	if err := fn(ctx, (*memoryTx)(m)); err != nil {
		m.invoices, m.balances = invoices, balances
		m.payments, m.nextID = payments, nextID
		return err
	}
	return nil
}

type memoryTx memoryRepo

func (m *memoryTx) GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error) {
	return (*memoryRepo)(m).GetInvoice(ctx, id)
}

func (m *memoryTx) SetInvoiceStatus(_ context.Context, id int64, status Status) (Invoice, error) {
	if m.statusErr != nil {
		return Invoice{}, m.statusErr
	}
	inv, ok := m.invoices[id]
	if !ok {
		return Invoice{}, shared.NewNotFound("invoice", id)
	}
	inv.Status = status
	m.invoices[id] = inv
	return inv, nil
}

func (m *memoryTx) PostPayment(_ context.Context, input ledger.PaymentInput) (ledger.Transaction, error) {
	if _, ok := m.balances[input.AccountCode]; !ok {
		return ledger.Transaction{}, fmt.Errorf("account %q %w", input.AccountCode, shared.ErrNotFound)
	}
	tx := ledger.Transaction{
		ID:          int64(len(m.payments) + 1),
		Date:        input.Date,
		Amount:      input.Amount,
		Description: input.Description,
		Kind:        ledger.KindCredit,
		OrderID:     input.OrderID,
	}
	m.payments = append(m.payments, tx)
	m.balances[input.AccountCode] += input.Amount
	return tx, nil
}

func (m *memoryRepo) InsertInvoice(_ context.Context, input InvoiceInput) (Invoice, error) {
	inv := Invoice{
		ID:            m.nextID,
		InvoiceNumber: input.InvoiceNumber,
		CustomerID:    input.CustomerID,
		OrderID:       input.OrderID,
		Amount:        input.Amount,
		TaxAmount:     input.TaxAmount,
		TotalAmount:   input.TotalAmount,
		IssueDate:     input.IssueDate,
		DueDate:       input.DueDate,
		Status:        input.Status,
	}
	m.nextID++
	m.invoices[inv.ID] = inv
	return inv, nil
}

func (m *memoryRepo) GetInvoice(_ context.Context, id int64) (Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return Invoice{}, shared.NewNotFound("invoice", id)
	}
	return inv, nil
}

func (m *memoryRepo) ListInvoices(_ context.Context, filter InvoiceFilter) ([]Invoice, error) {
	var out []Invoice
	for id := int64(1); id < m.nextID; id++ {
		inv, ok := m.invoices[id]
		if !ok {
			continue
		}
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (m *memoryRepo) CustomerExists(_ context.Context, id int64) (bool, error) {
	return m.customers[id], nil
}

func (m *memoryRepo) OrderExists(_ context.Context, id int64) (bool, error) {
	return m.orders[id], nil
}

func (m *memoryRepo) MarkOverdue(_ context.Context, now time.Time) (int64, error) {
	var changed int64
	for id, inv := range m.invoices {
		if inv.Status == StatusSent && inv.DueDate.Before(now) {
			inv.Status = StatusOverdue
			m.invoices[id] = inv
			changed++
		}
	}
	return changed, nil
}

func TestCreateInvoice(t *testing.T) {
	repo := newMemoryRepo()
	repo.customers[1] = true
	svc := NewService(repo, "1100")

	invoice, err := svc.CreateInvoice(context.Background(), InvoiceInput{
		CustomerID: 1,
		Amount:     100,
		TaxAmount:  19,
		DueDate:    time.Now().AddDate(0, 0, 30),
	})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, invoice.Status)
	require.NotEmpty(t, invoice.InvoiceNumber)
	require.InDelta(t, 119.0, invoice.TotalAmount, 0.001)
}

func TestCreateInvoiceValidatesReferences(t *testing.T) {
	repo := newMemoryRepo()
	repo.customers[1] = true
	svc := NewService(repo, "1100")

	_, err := svc.CreateInvoice(context.Background(), InvoiceInput{CustomerID: 9})
	require.ErrorIs(t, err, shared.ErrNotFound)

	orderID := int64(5)
	_, err = svc.CreateInvoice(context.Background(), InvoiceInput{CustomerID: 1, OrderID: &orderID})
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateStatusPaidPostsPaymentOnce(t *testing.T) {
	repo := newMemoryRepo()
	repo.customers[1] = true
	repo.orders[7] = true
	repo.balances["1100"] = 0
	svc := NewService(repo, "1100")

	orderID := int64(7)
	invoice, err := svc.CreateInvoice(context.Background(), InvoiceInput{
		CustomerID:    1,
		OrderID:       &orderID,
		InvoiceNumber: "INV-1001",
		Amount:        200,
		TaxAmount:     40,
		DueDate:       time.Now().AddDate(0, 0, 14),
	})
	require.NoError(t, err)

	paid, err := svc.UpdateStatus(context.Background(), invoice.ID, StatusPaid)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)
	require.Len(t, repo.payments, 1)
	require.InDelta(t, 240.0, repo.balances["1100"], 0.001)

	payment := repo.payments[0]
	require.InDelta(t, 240.0, payment.Amount, 0.001)
	require.Equal(t, "Payment for invoice #INV-1001", payment.Description)
	require.NotNil(t, payment.OrderID)
	require.EqualValues(t, 7, *payment.OrderID)

	// Paying again must not post a second credit.
	_, err = svc.UpdateStatus(context.Background(), invoice.ID, StatusPaid)
	require.NoError(t, err)
	require.Len(t, repo.payments, 1)
}

func TestUpdateStatusPaidRollsBackPostingOnFailure(t *testing.T) {
	repo := newMemoryRepo()
	repo.customers[1] = true
	repo.balances["1100"] = 0
	svc := NewService(repo, "1100")

	invoice, err := svc.CreateInvoice(context.Background(), InvoiceInput{
		CustomerID:    1,
		InvoiceNumber: "INV-2001",
		Amount:        300,
		DueDate:       time.Now().AddDate(0, 0, 14),
		Status:        StatusSent,
	})
	require.NoError(t, err)

	boom := errors.New("update lost connection")
	repo.statusErr = boom
	_, err = svc.UpdateStatus(context.Background(), invoice.ID, StatusPaid)
	require.ErrorIs(t, err, boom)

	// The failed status flip must take the posting down with it.
	require.Empty(t, repo.payments)
	require.InDelta(t, 0.0, repo.balances["1100"], 0.001)
	got, _ := repo.GetInvoice(context.Background(), invoice.ID)
	require.Equal(t, StatusSent, got.Status)

	repo.statusErr = nil
	paid, err := svc.UpdateStatus(context.Background(), invoice.ID, StatusPaid)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, paid.Status)
	require.Len(t, repo.payments, 1)
}

func TestUpdateStatusPaidUnknownReceivableAccount(t *testing.T) {
	repo := newMemoryRepo()
	repo.customers[1] = true
	svc := NewService(repo, "9999")

	invoice, err := svc.CreateInvoice(context.Background(), InvoiceInput{
		CustomerID:    1,
		InvoiceNumber: "INV-3001",
		Amount:        50,
		DueDate:       time.Now().AddDate(0, 0, 14),
		Status:        StatusSent,
	})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(context.Background(), invoice.ID, StatusPaid)
	require.ErrorIs(t, err, shared.ErrNotFound)

	got, _ := repo.GetInvoice(context.Background(), invoice.ID)
	require.Equal(t, StatusSent, got.Status)
	require.Empty(t, repo.payments)
}

func TestUpdateStatusValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, "1100")

	_, err := svc.UpdateStatus(context.Background(), 1, "void")
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.UpdateStatus(context.Background(), 1, StatusSent)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestMarkOverdue(t *testing.T) {
	repo := newMemoryRepo()
	repo.customers[1] = true
	svc := NewService(repo, "1100")
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	svc.WithNow(func() time.Time { return now })

	mk := func(due time.Time, status Status) Invoice {
		inv, err := svc.CreateInvoice(context.Background(), InvoiceInput{
			CustomerID:    1,
			InvoiceNumber: fmt.Sprintf("INV-%d", repo.nextID),
			Amount:        10,
			DueDate:       due,
			Status:        status,
		})
		require.NoError(t, err)
		return inv
	}
	late := mk(now.AddDate(0, 0, -5), StatusSent)
	current := mk(now.AddDate(0, 0, 5), StatusSent)
	draft := mk(now.AddDate(0, 0, -5), StatusDraft)

	changed, err := svc.MarkOverdue(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 1, changed)

	got, _ := repo.GetInvoice(context.Background(), late.ID)
	require.Equal(t, StatusOverdue, got.Status)
	got, _ = repo.GetInvoice(context.Background(), current.ID)
	require.Equal(t, StatusSent, got.Status)
	got, _ = repo.GetInvoice(context.Background(), draft.ID)
	require.Equal(t, StatusDraft, got.Status)
}
