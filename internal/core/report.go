package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TaxRate is the flat placeholder rate applied to quarterly profit.
var TaxRate = decimal.RequireFromString("0.20")

// Figures are the aggregated totals for a period, in the user's base currency.
type Figures struct {
	TotalIncome   decimal.Decimal `json:"totalIncome"`
	TotalExpenses decimal.Decimal `json:"totalExpenses"`
	TaxDue        decimal.Decimal `json:"taxDue"`
}

// Profit is income minus expenses and may be negative.
func (f Figures) Profit() decimal.Decimal {
	return f.TotalIncome.Sub(f.TotalExpenses)
}

// EstimateTax applies TaxRate to profit, floored at zero.
func EstimateTax(profit decimal.Decimal) decimal.Decimal {
	tax := RoundMoney(profit.Mul(TaxRate))
	if tax.IsNegative() {
		return decimal.Zero
	}
	return tax
}

// Aggregate sums converted amounts by type for transactions dated within
// [start, end], both bounds inclusive.
func Aggregate(txs []Transaction, start, end Date) Figures {
	income, expenses := decimal.Zero, decimal.Zero
	for _, tx := range txs {
		if !tx.Date.Within(start, end) {
			continue
		}
		switch tx.Type {
		case Income:
			income = income.Add(tx.ConvertedAmount)
		case Expense:
			expenses = expenses.Add(tx.ConvertedAmount)
		}
	}
	f := Figures{TotalIncome: RoundMoney(income), TotalExpenses: RoundMoney(expenses)}
	f.TaxDue = EstimateTax(f.Profit())
	return f
}

// DraftReport builds a draft for q from the user's transactions.
func DraftReport(userID int64, q TaxQuarter, txs []Transaction) NewTaxReport {
	f := Aggregate(txs, q.Start(), q.End())
	return NewTaxReport{
		UserID:        userID,
		Year:          q.Year,
		Quarter:       q.Quarter,
		StartDate:     q.Start(),
		EndDate:       q.End(),
		TotalIncome:   f.TotalIncome,
		TotalExpenses: f.TotalExpenses,
		TaxDue:        f.TaxDue,
		Status:        StatusDraft,
	}
}

// SubmissionReference returns a reference of the form MTD-ITSA-2024-Q1-1A2B3C4D.
func SubmissionReference(year, quarter int) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("MTD-ITSA-%d-Q%d-%s", year, quarter, strings.ToUpper(id[:8]))
}

// IsFinal reports whether the report has left the draft state.
func (r TaxReport) IsFinal() bool {
	return r.Status == StatusSubmitted || r.Status == StatusConfirmed
}

// Period returns the quarter the report covers.
func (r TaxReport) Period() TaxQuarter {
	return TaxQuarter{Year: r.Year, Quarter: r.Quarter}
}
