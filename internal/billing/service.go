package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/ledger"
	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	InsertInvoice(ctx context.Context, input InvoiceInput) (Invoice, error)
	GetInvoice(ctx context.Context, id int64) (Invoice, error)
	ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error)
	CustomerExists(ctx context.Context, id int64) (bool, error)
	OrderExists(ctx context.Context, id int64) (bool, error)
	// MarkOverdue flips sent invoices past their due date to overdue and
	// returns how many changed. The worker's cron scan drives it.
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
}

// TxRepository is the transactional surface of the repository. The paid
// transition posts its ledger credit and flips the invoice status on the
// same transaction, so neither effect is visible without the other.
type TxRepository interface {
	GetInvoiceForUpdate(ctx context.Context, id int64) (Invoice, error)
	SetInvoiceStatus(ctx context.Context, id int64, status Status) (Invoice, error)
	PostPayment(ctx context.Context, input ledger.PaymentInput) (ledger.Transaction, error)
}

// Service coordinates the invoice workflow.
type Service struct {
	repo              RepositoryPort
	receivableAccount string
	now               func() time.Time
}

// NewService builds Service. receivableAccount is the account code credited
// on payment.
func NewService(repo RepositoryPort, receivableAccount string) *Service {
	return &Service{repo: repo, receivableAccount: receivableAccount, now: time.Now}
}

// WithNow overrides the service clock for testing.
func (s *Service) WithNow(fn func() time.Time) {
	if fn != nil {
		s.now = fn
	}
}

// CreateInvoice stores a new invoice after validating its references.
func (s *Service) CreateInvoice(ctx context.Context, input InvoiceInput) (Invoice, error) {
	if input.Status == "" {
		input.Status = StatusDraft
	}
	if !IsValidStatus(input.Status) {
		return Invoice{}, shared.NewValidation("status", "unknown invoice status")
	}
	if input.TotalAmount == 0 {
		input.TotalAmount = input.Amount + input.TaxAmount
	}
	ok, err := s.repo.CustomerExists(ctx, input.CustomerID)
	if err != nil {
		return Invoice{}, err
	}
	if !ok {
		return Invoice{}, shared.NewNotFound("customer", input.CustomerID)
	}
	if input.OrderID != nil {
		ok, err := s.repo.OrderExists(ctx, *input.OrderID)
		if err != nil {
			return Invoice{}, err
		}
		if !ok {
			return Invoice{}, shared.NewNotFound("order", *input.OrderID)
		}
	}

	now := s.now().UTC()
	if input.IssueDate.IsZero() {
		input.IssueDate = now
	}
	if input.InvoiceNumber == "" {
		input.InvoiceNumber = fmt.Sprintf("INV-%d", now.UnixNano())
	}
	return s.repo.InsertInvoice(ctx, input)
}

// GetInvoice returns one invoice.
func (s *Service) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	return s.repo.GetInvoice(ctx, id)
}

// ListInvoices returns invoices matching the filter.
func (s *Service) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.repo.ListInvoices(ctx, filter)
}

// UpdateStatus assigns a new status. Entering paid posts one credit against
// the receivable account for the invoice total, on the same transaction as
// the status flip; paying an already paid invoice does not post again.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status Status) (Invoice, error) {
	if !IsValidStatus(status) {
		return Invoice{}, shared.NewValidation("status", "unknown invoice status")
	}
	var updated Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		invoice, err := tx.GetInvoiceForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if status == StatusPaid && invoice.Status != StatusPaid {
			_, err := tx.PostPayment(ctx, ledger.PaymentInput{
				AccountCode: s.receivableAccount,
				Amount:      invoice.TotalAmount,
				Description: fmt.Sprintf("Payment for invoice #%s", invoice.InvoiceNumber),
				Date:        s.now().UTC(),
				OrderID:     invoice.OrderID,
			})
			if err != nil {
				return fmt.Errorf("post payment: %w", err)
			}
		}
		updated, err = tx.SetInvoiceStatus(ctx, id, status)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	return updated, nil
}

// MarkOverdue flips sent invoices past their due date to overdue.
func (s *Service) MarkOverdue(ctx context.Context) (int64, error) {
	return s.repo.MarkOverdue(ctx, s.now().UTC())
}
