package ledger

import (
	"context"
	"time"
)

// IncomeStatement sums credit transactions on revenue accounts and debit
// transactions on expense accounts over the period, with per-account
// breakdowns.
func (s *Service) IncomeStatement(ctx context.Context, from, to time.Time) (IncomeStatement, error) {
	report := IncomeStatement{From: from, To: to}

	revenueAccounts, err := s.repo.AccountsByType(ctx, AccountTypeRevenue)
	if err != nil {
		return IncomeStatement{}, err
	}
	report.TotalRevenue, report.RevenueBreakdown, err = s.sumByAccount(ctx, revenueAccounts, KindCredit, from, to)
	if err != nil {
		return IncomeStatement{}, err
	}

	expenseAccounts, err := s.repo.AccountsByType(ctx, AccountTypeExpense)
	if err != nil {
		return IncomeStatement{}, err
	}
	report.TotalExpenses, report.ExpenseBreakdown, err = s.sumByAccount(ctx, expenseAccounts, KindDebit, from, to)
	if err != nil {
		return IncomeStatement{}, err
	}

	report.NetIncome = report.TotalRevenue - report.TotalExpenses
	return report, nil
}

func (s *Service) sumByAccount(ctx context.Context, accounts []Account, kind TransactionKind, from, to time.Time) (float64, []AccountAmount, error) {
	if len(accounts) == 0 {
		return 0, nil, nil
	}
	ids := make([]int64, 0, len(accounts))
	for _, a := range accounts {
		ids = append(ids, a.ID)
	}
	txs, err := s.repo.ListTransactions(ctx, TransactionFilter{
		AccountIDs: ids,
		Kind:       kind,
		From:       from,
		To:         to,
		Limit:      -1,
	})
	if err != nil {
		return 0, nil, err
	}
	perAccount := make(map[int64]float64, len(accounts))
	var total float64
	for _, tx := range txs {
		perAccount[tx.AccountID] += tx.Amount
		total += tx.Amount
	}
	breakdown := make([]AccountAmount, 0, len(accounts))
	for _, a := range accounts {
		breakdown = append(breakdown, AccountAmount{
			AccountID:   a.ID,
			AccountName: a.Name,
			Amount:      perAccount[a.ID],
		})
	}
	return total, breakdown, nil
}

// BalanceSheet groups current balances by account type. Balances are running
// totals, so the statement is point-in-time rather than date-filtered.
func (s *Service) BalanceSheet(ctx context.Context) (BalanceSheet, error) {
	report := BalanceSheet{Date: s.now().UTC()}

	fill := func(t AccountType, total *float64, lines *[]BalanceLine) error {
		accounts, err := s.repo.AccountsByType(ctx, t)
		if err != nil {
			return err
		}
		for _, a := range accounts {
			*total += a.Balance
			*lines = append(*lines, BalanceLine{AccountID: a.ID, AccountName: a.Name, Balance: a.Balance})
		}
		return nil
	}
	if err := fill(AccountTypeAsset, &report.TotalAssets, &report.Assets); err != nil {
		return BalanceSheet{}, err
	}
	if err := fill(AccountTypeLiability, &report.TotalLiabilities, &report.Liabilities); err != nil {
		return BalanceSheet{}, err
	}
	if err := fill(AccountTypeEquity, &report.TotalEquity, &report.Equity); err != nil {
		return BalanceSheet{}, err
	}
	return report, nil
}

// CashFlow totals credits and debits on cash accounts (asset accounts whose
// name mentions cash) over the period.
func (s *Service) CashFlow(ctx context.Context, from, to time.Time) (CashFlow, error) {
	report := CashFlow{From: from, To: to}

	cashAccounts, err := s.repo.CashAccounts(ctx)
	if err != nil {
		return CashFlow{}, err
	}
	if len(cashAccounts) == 0 {
		return report, nil
	}
	ids := make([]int64, 0, len(cashAccounts))
	for _, a := range cashAccounts {
		ids = append(ids, a.ID)
	}
	txs, err := s.repo.ListTransactions(ctx, TransactionFilter{
		AccountIDs: ids,
		From:       from,
		To:         to,
		Limit:      -1,
	})
	if err != nil {
		return CashFlow{}, err
	}
	for _, tx := range txs {
		if tx.Kind == KindCredit {
			report.CashInflows += tx.Amount
		} else {
			report.CashOutflows += tx.Amount
		}
		report.Transactions = append(report.Transactions, CashFlowEntry{
			ID:          tx.ID,
			Date:        tx.Date,
			Amount:      tx.Amount,
			Kind:        tx.Kind,
			Description: tx.Description,
		})
	}
	report.NetCashFlow = report.CashInflows - report.CashOutflows
	return report, nil
}
