package ledger

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func seedReportData(t *testing.T) (*memoryRepo, *Service) {
	t.Helper()
	repo := newMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	cash := repo.addAccount("1000", "Petty cash", AccountTypeAsset)
	sales := repo.addAccount("4000", "Sales", AccountTypeRevenue)
	rent := repo.addAccount("5000", "Rent", AccountTypeExpense)

	mustCreate := func(input TransactionInput) {
		_, err := svc.CreateTransaction(ctx, input)
		require.NoError(t, err)
	}
	now := time.Now().UTC()
	mustCreate(TransactionInput{Date: now, Amount: 1200, Kind: KindCredit, AccountID: sales.ID})
	mustCreate(TransactionInput{Date: now, Amount: 300, Kind: KindCredit, AccountID: sales.ID})
	mustCreate(TransactionInput{Date: now, Amount: 450, Kind: KindDebit, AccountID: rent.ID})
	mustCreate(TransactionInput{Date: now, Amount: 200, Kind: KindCredit, AccountID: cash.ID})
	mustCreate(TransactionInput{Date: now, Amount: 80, Kind: KindDebit, AccountID: cash.ID})
	return repo, svc
}

func TestIncomeStatement(t *testing.T) {
	_, svc := seedReportData(t)

	from := time.Now().UTC().Add(-time.Hour)
	to := time.Now().UTC().Add(time.Hour)
	report, err := svc.IncomeStatement(context.Background(), from, to)
	require.NoError(t, err)
	require.InDelta(t, 1500.0, report.TotalRevenue, 0.0001)
	require.InDelta(t, 450.0, report.TotalExpenses, 0.0001)
	require.InDelta(t, 1050.0, report.NetIncome, 0.0001)
	require.Len(t, report.RevenueBreakdown, 1)
	require.InDelta(t, 1500.0, report.RevenueBreakdown[0].Amount, 0.0001)
}

func TestBalanceSheetGroupsByType(t *testing.T) {
	repo, svc := seedReportData(t)
	repo.addAccount("2000", "Loans", AccountTypeLiability)

	report, err := svc.BalanceSheet(context.Background())
	require.NoError(t, err)
	require.InDelta(t, 120.0, report.TotalAssets, 0.0001)
	require.InDelta(t, 0.0, report.TotalLiabilities, 0.0001)
	require.Len(t, report.Assets, 1)
	require.Len(t, report.Liabilities, 1)
}

func TestCashFlowRestrictsToCashAccounts(t *testing.T) {
	_, svc := seedReportData(t)

	from := time.Now().UTC().Add(-time.Hour)
	to := time.Now().UTC().Add(time.Hour)
	report, err := svc.CashFlow(context.Background(), from, to)
	require.NoError(t, err)
	require.InDelta(t, 200.0, report.CashInflows, 0.0001)
	require.InDelta(t, 80.0, report.CashOutflows, 0.0001)
	require.InDelta(t, 120.0, report.NetCashFlow, 0.0001)
	require.Len(t, report.Transactions, 2)
}

func TestWriteIncomeStatementCSV(t *testing.T) {
	_, svc := seedReportData(t)

	from := time.Now().UTC().Add(-time.Hour)
	to := time.Now().UTC().Add(time.Hour)
	report, err := svc.IncomeStatement(context.Background(), from, to)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteIncomeStatementCSV(&buf, report))

	out := buf.String()
	require.True(t, strings.HasPrefix(out, "section,account,amount"))
	require.Contains(t, out, "revenue,Sales")
	require.Contains(t, out, "net_income")
	require.Contains(t, out, "1,050.00")
}
