package ledger

import (
	"time"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

// AccountType enumerates ledger account classes.
type AccountType string

const (
	AccountTypeAsset     AccountType = "asset"
	AccountTypeLiability AccountType = "liability"
	AccountTypeEquity    AccountType = "equity"
	AccountTypeRevenue   AccountType = "revenue"
	AccountTypeExpense   AccountType = "expense"
)

// ValidAccountTypes lists every accepted account type.
var ValidAccountTypes = []AccountType{
	AccountTypeAsset, AccountTypeLiability, AccountTypeEquity,
	AccountTypeRevenue, AccountTypeExpense,
}

// IsValidAccountType reports membership in the accepted type set.
func IsValidAccountType(t AccountType) bool {
	for _, v := range ValidAccountTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Account is a ledger account. Balance is the running sum of applied
// transaction effects since creation and is never set directly.
type Account struct {
	ID        int64
	Code      string
	Name      string
	Type      AccountType
	Balance   float64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AccountInput describes a new or replaced account. Balance is not part of
// the input; accounts start at zero.
type AccountInput struct {
	Code string
	Name string
	Type AccountType
}

// TransactionKind is the direction of a balance effect.
type TransactionKind string

const (
	KindCredit TransactionKind = "credit"
	KindDebit  TransactionKind = "debit"
)

// IsValidKind reports whether k is credit or debit.
func IsValidKind(k TransactionKind) bool {
	return k == KindCredit || k == KindDebit
}

// Effect returns the signed balance delta of a kind/amount pair.
func Effect(kind TransactionKind, amount float64) float64 {
	if kind == KindDebit {
		return -amount
	}
	return amount
}

// Transaction mutates exactly one account's balance when created, and is
// reversible on update and delete.
type Transaction struct {
	ID          int64
	Date        time.Time
	Amount      float64
	Description string
	Kind        TransactionKind
	AccountID   int64
	OrderID     *int64
	ProjectID   *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TransactionInput describes a new transaction.
type TransactionInput struct {
	Date        time.Time
	Amount      float64
	Description string
	Kind        TransactionKind
	AccountID   int64
	OrderID     *int64
	ProjectID   *int64
}

// PaymentInput describes a payment credit posted on behalf of another
// module, addressed by account code.
type PaymentInput struct {
	AccountCode string
	Amount      float64
	Description string
	Date        time.Time
	OrderID     *int64
}

// TransactionPatch enumerates the mutable transaction fields. Each field
// distinguishes unset from explicitly provided; nullable references use a
// pointer value so present-with-nil clears them.
type TransactionPatch struct {
	Date        shared.Optional[time.Time]       `json:"transaction_date"`
	Amount      shared.Optional[float64]         `json:"amount"`
	Description shared.Optional[string]          `json:"description"`
	Kind        shared.Optional[TransactionKind] `json:"type"`
	AccountID   shared.Optional[int64]           `json:"account_id"`
	OrderID     shared.Optional[*int64]          `json:"order_id"`
	ProjectID   shared.Optional[*int64]          `json:"project_id"`
}

// TransactionFilter narrows transaction listings.
type TransactionFilter struct {
	AccountID  int64
	AccountIDs []int64
	OrderID    int64
	ProjectID  int64
	Kind       TransactionKind
	From       time.Time
	To         time.Time
	Offset     int
	Limit      int
}

// AccountAmount is a per-account line in a report breakdown.
type AccountAmount struct {
	AccountID   int64   `json:"account_id"`
	AccountName string  `json:"account_name"`
	Amount      float64 `json:"amount"`
}

// IncomeStatement summarises revenue and expenses over a period.
type IncomeStatement struct {
	From             time.Time       `json:"start_date"`
	To               time.Time       `json:"end_date"`
	TotalRevenue     float64         `json:"total_revenue"`
	TotalExpenses    float64         `json:"total_expenses"`
	NetIncome        float64         `json:"net_income"`
	RevenueBreakdown []AccountAmount `json:"revenue_breakdown"`
	ExpenseBreakdown []AccountAmount `json:"expense_breakdown"`
}

// BalanceLine is a per-account balance in the balance sheet.
type BalanceLine struct {
	AccountID   int64   `json:"account_id"`
	AccountName string  `json:"account_name"`
	Balance     float64 `json:"balance"`
}

// BalanceSheet groups current balances by account type at a point in time.
type BalanceSheet struct {
	Date             time.Time     `json:"date"`
	TotalAssets      float64       `json:"total_assets"`
	TotalLiabilities float64       `json:"total_liabilities"`
	TotalEquity      float64       `json:"total_equity"`
	Assets           []BalanceLine `json:"assets"`
	Liabilities      []BalanceLine `json:"liabilities"`
	Equity           []BalanceLine `json:"equity"`
}

// CashFlowEntry is a single transaction in the cash flow statement.
type CashFlowEntry struct {
	ID          int64           `json:"id"`
	Date        time.Time       `json:"date"`
	Amount      float64         `json:"amount"`
	Kind        TransactionKind `json:"type"`
	Description string          `json:"description"`
}

// CashFlow summarises movements on cash accounts over a period.
type CashFlow struct {
	From         time.Time       `json:"start_date"`
	To           time.Time       `json:"end_date"`
	CashInflows  float64         `json:"cash_inflows"`
	CashOutflows float64         `json:"cash_outflows"`
	NetCashFlow  float64         `json:"net_cash_flow"`
	Transactions []CashFlowEntry `json:"transactions"`
}
