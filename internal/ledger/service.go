package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	InsertAccount(ctx context.Context, input AccountInput) (Account, error)
	GetAccount(ctx context.Context, id int64) (Account, error)
	ListAccounts(ctx context.Context, limit, offset int) ([]Account, error)
	UpdateAccount(ctx context.Context, id int64, input AccountInput) (Account, error)
	GetTransaction(ctx context.Context, id int64) (Transaction, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error)
	AccountsByType(ctx context.Context, t AccountType) ([]Account, error)
	CashAccounts(ctx context.Context) ([]Account, error)
}

// TxRepository exposes transactional operations used by the service.
type TxRepository interface {
	GetAccountForUpdate(ctx context.Context, id int64) (Account, error)
	GetAccountByCodeForUpdate(ctx context.Context, code string) (Account, error)
	AddToBalance(ctx context.Context, accountID int64, delta float64) error
	InsertTransaction(ctx context.Context, input TransactionInput) (Transaction, error)
	GetTransactionForUpdate(ctx context.Context, id int64) (Transaction, error)
	UpdateTransaction(ctx context.Context, id int64, fields TransactionInput) (Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
}

// Service coordinates ledger operations.
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

// CreateAccount opens an account with a zero balance.
func (s *Service) CreateAccount(ctx context.Context, input AccountInput) (Account, error) {
	if input.Code == "" {
		return Account{}, shared.NewValidation("account_code", "required")
	}
	if !IsValidAccountType(input.Type) {
		return Account{}, shared.NewValidation("type", fmt.Sprintf("must be one of %v", ValidAccountTypes))
	}
	return s.repo.InsertAccount(ctx, input)
}

// GetAccount returns one account.
func (s *Service) GetAccount(ctx context.Context, id int64) (Account, error) {
	return s.repo.GetAccount(ctx, id)
}

// ListAccounts returns accounts ordered by code.
func (s *Service) ListAccounts(ctx context.Context, limit, offset int) ([]Account, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListAccounts(ctx, limit, offset)
}

// UpdateAccount replaces the descriptive fields of an account. The balance
// is never touched here.
func (s *Service) UpdateAccount(ctx context.Context, id int64, input AccountInput) (Account, error) {
	if !IsValidAccountType(input.Type) {
		return Account{}, shared.NewValidation("type", fmt.Sprintf("must be one of %v", ValidAccountTypes))
	}
	return s.repo.UpdateAccount(ctx, id, input)
}

// CreateTransaction stores the transaction and applies its balance effect to
// the referenced account in one transaction.
func (s *Service) CreateTransaction(ctx context.Context, input TransactionInput) (Transaction, error) {
	if input.Amount <= 0 {
		return Transaction{}, shared.NewValidation("amount", "must be positive")
	}
	if !IsValidKind(input.Kind) {
		return Transaction{}, shared.NewValidation("type", "must be credit or debit")
	}
	if input.Date.IsZero() {
		input.Date = s.now().UTC()
	}
	var created Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		account, err := tx.GetAccountForUpdate(ctx, input.AccountID)
		if err != nil {
			return err
		}
		created, err = tx.InsertTransaction(ctx, input)
		if err != nil {
			return err
		}
		return tx.AddToBalance(ctx, account.ID, Effect(input.Kind, input.Amount))
	})
	if err != nil {
		return Transaction{}, err
	}
	return created, nil
}

// GetTransaction returns one transaction.
func (s *Service) GetTransaction(ctx context.Context, id int64) (Transaction, error) {
	return s.repo.GetTransaction(ctx, id)
}

// ListTransactions returns transactions matching the filter.
func (s *Service) ListTransactions(ctx context.Context, filter TransactionFilter) ([]Transaction, error) {
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	return s.repo.ListTransactions(ctx, filter)
}

// UpdateTransaction merges the patch onto the stored transaction, reverses
// the old balance effect and applies the new one. When the account reference
// changes, the reversal lands on the old account and the new effect on the
// new one.
func (s *Service) UpdateTransaction(ctx context.Context, id int64, patch TransactionPatch) (Transaction, error) {
	var updated Transaction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		old, err := tx.GetTransactionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		merged := TransactionInput{
			Date:        old.Date,
			Amount:      old.Amount,
			Description: old.Description,
			Kind:        old.Kind,
			AccountID:   old.AccountID,
			OrderID:     old.OrderID,
			ProjectID:   old.ProjectID,
		}
		if v, ok := patch.Date.Get(); ok {
			merged.Date = v
		}
		if v, ok := patch.Amount.Get(); ok {
			merged.Amount = v
		}
		if v, ok := patch.Description.Get(); ok {
			merged.Description = v
		}
		if v, ok := patch.Kind.Get(); ok {
			merged.Kind = v
		}
		if v, ok := patch.AccountID.Get(); ok {
			merged.AccountID = v
		}
		if v, ok := patch.OrderID.Get(); ok {
			merged.OrderID = v
		}
		if v, ok := patch.ProjectID.Get(); ok {
			merged.ProjectID = v
		}
		if merged.Amount <= 0 {
			return shared.NewValidation("amount", "must be positive")
		}
		if !IsValidKind(merged.Kind) {
			return shared.NewValidation("type", "must be credit or debit")
		}
		if _, err := tx.GetAccountForUpdate(ctx, merged.AccountID); err != nil {
			return err
		}
		if err := tx.AddToBalance(ctx, old.AccountID, -Effect(old.Kind, old.Amount)); err != nil {
			return err
		}
		if err := tx.AddToBalance(ctx, merged.AccountID, Effect(merged.Kind, merged.Amount)); err != nil {
			return err
		}
		updated, err = tx.UpdateTransaction(ctx, id, merged)
		return err
	})
	if err != nil {
		return Transaction{}, err
	}
	return updated, nil
}

// DeleteTransaction reverses the balance effect and removes the record. When
// the referenced account no longer exists the reversal is skipped.
func (s *Service) DeleteTransaction(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		old, err := tx.GetTransactionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		_, err = tx.GetAccountForUpdate(ctx, old.AccountID)
		switch {
		case err == nil:
			if err := tx.AddToBalance(ctx, old.AccountID, -Effect(old.Kind, old.Amount)); err != nil {
				return err
			}
		case errors.Is(err, shared.ErrNotFound):
			// account removed out of band, nothing to reverse
		default:
			return err
		}
		return tx.DeleteTransaction(ctx, id)
	})
}

// postPaymentTx credits the account identified by code on an already open
// transaction. Billing drives it through PostPaymentTx so the invoice status
// flip and the posting commit together.
func postPaymentTx(ctx context.Context, tx TxRepository, input PaymentInput) (Transaction, error) {
	if input.Amount <= 0 {
		return Transaction{}, shared.NewValidation("amount", "must be positive")
	}
	account, err := tx.GetAccountByCodeForUpdate(ctx, input.AccountCode)
	if err != nil {
		return Transaction{}, err
	}
	created, err := tx.InsertTransaction(ctx, TransactionInput{
		Date:        input.Date,
		Amount:      input.Amount,
		Description: input.Description,
		Kind:        KindCredit,
		AccountID:   account.ID,
		OrderID:     input.OrderID,
	})
	if err != nil {
		return Transaction{}, err
	}
	return created, tx.AddToBalance(ctx, account.ID, input.Amount)
}
