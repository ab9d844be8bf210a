package core

import (
	"time"

	"github.com/shopspring/decimal"
)

const recentTransactionLimit = 5

// MTD compliance labels shown on the dashboard.
const (
	MTDCompliant    = "Compliant"
	MTDNotCompliant = "Not Compliant"
)

// Summary is the dashboard overview for one user, in their base currency.
type Summary struct {
	TotalRevenue         decimal.Decimal `json:"totalRevenue"`
	TotalExpenses        decimal.Decimal `json:"totalExpenses"`
	YearlyRevenue        decimal.Decimal `json:"yearlyRevenue"`
	YearlyExpenses       decimal.Decimal `json:"yearlyExpenses"`
	LastYearRevenue      decimal.Decimal `json:"lastYearRevenue"`
	RevenueChangePercent *int64          `json:"revenueChangePercent"`
	EstimatedTax         decimal.Decimal `json:"estimatedTax"`
	MTDStatus            string          `json:"mtdStatus"`
	LastFiled            *time.Time      `json:"lastFiled"`
	RecentTransactions   []Transaction   `json:"recentTransactions"`
	NextDeadline         DeadlineInfo    `json:"nextDeadline"`
}

// Summarize builds the dashboard from a user's transactions and reports.
// Yearly figures use now's calendar year; txs are expected newest first.
func Summarize(txs []Transaction, reports []TaxReport, now time.Time) Summary {
	year := now.UTC().Year()
	var s Summary
	for _, tx := range txs {
		y := tx.Date.Year()
		switch tx.Type {
		case Income:
			s.TotalRevenue = s.TotalRevenue.Add(tx.ConvertedAmount)
			if y == year {
				s.YearlyRevenue = s.YearlyRevenue.Add(tx.ConvertedAmount)
			} else if y == year-1 {
				s.LastYearRevenue = s.LastYearRevenue.Add(tx.ConvertedAmount)
			}
		case Expense:
			s.TotalExpenses = s.TotalExpenses.Add(tx.ConvertedAmount)
			if y == year {
				s.YearlyExpenses = s.YearlyExpenses.Add(tx.ConvertedAmount)
			}
		}
	}

	if s.LastYearRevenue.IsPositive() {
		pct := s.YearlyRevenue.Sub(s.LastYearRevenue).
			DivRound(s.LastYearRevenue, 4).
			Mul(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
		s.RevenueChangePercent = &pct
	}
	s.EstimatedTax = EstimateTax(s.YearlyRevenue.Sub(s.YearlyExpenses))

	s.MTDStatus = MTDNotCompliant
	for _, r := range reports {
		if !r.IsFinal() {
			continue
		}
		s.MTDStatus = MTDCompliant
		if r.SubmissionDate != nil && (s.LastFiled == nil || r.SubmissionDate.After(*s.LastFiled)) {
			d := *r.SubmissionDate
			s.LastFiled = &d
		}
	}

	n := len(txs)
	if n > recentTransactionLimit {
		n = recentTransactionLimit
	}
	s.RecentTransactions = append([]Transaction{}, txs[:n]...)
	s.NextDeadline = UpcomingDeadline(now, reports)
	return s
}
