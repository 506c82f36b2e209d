package ledger

import (
	"encoding/csv"
	"io"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// WriteIncomeStatementCSV renders an income statement as CSV with grouped
// amount formatting.
func WriteIncomeStatementCSV(w io.Writer, report IncomeStatement) error {
	printer := message.NewPrinter(language.English)
	cw := csv.NewWriter(w)

	rows := [][]string{
		{"section", "account", "amount"},
	}
	for _, line := range report.RevenueBreakdown {
		rows = append(rows, []string{"revenue", line.AccountName, printer.Sprintf("%.2f", line.Amount)})
	}
	for _, line := range report.ExpenseBreakdown {
		rows = append(rows, []string{"expense", line.AccountName, printer.Sprintf("%.2f", line.Amount)})
	}
	rows = append(rows,
		[]string{"total", "total_revenue", printer.Sprintf("%.2f", report.TotalRevenue)},
		[]string{"total", "total_expenses", printer.Sprintf("%.2f", report.TotalExpenses)},
		[]string{"total", "net_income", printer.Sprintf("%.2f", report.NetIncome)},
	)
	if err := cw.WriteAll(rows); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}
