package core

import (
	"regexp"
	"testing"

	"github.com/shopspring/decimal"
)

func tx(date Date, typ TransactionType, converted string) Transaction {
	return Transaction{Date: date, Type: typ, ConvertedAmount: decimal.RequireFromString(converted), Currency: "GBP", UserID: 1}
}

func TestAggregate(t *testing.T) {
	q := TaxQuarter{2024, 1}
	txs := []Transaction{
		tx(NewDate(2024, 3, 31), Income, "999"), // day before start
		tx(NewDate(2024, 4, 1), Income, "1000"),
		tx(NewDate(2024, 5, 10), Income, "720.34"),
		tx(NewDate(2024, 6, 30), Expense, "142.50"),
		tx(NewDate(2024, 6, 30), Expense, "38.16"),
		tx(NewDate(2024, 7, 1), Expense, "500"), // day after end
	}
	f := Aggregate(txs, q.Start(), q.End())
	if MoneyString(f.TotalIncome) != "1720.34" {
		t.Fatalf("income: got %s", f.TotalIncome)
	}
	if MoneyString(f.TotalExpenses) != "180.66" {
		t.Fatalf("expenses: got %s", f.TotalExpenses)
	}
	// (1720.34 - 180.66) * 0.20 = 307.936
	if MoneyString(f.TaxDue) != "307.94" {
		t.Fatalf("tax: got %s", f.TaxDue)
	}
}

func TestAggregateFloorsTaxAtZero(t *testing.T) {
	txs := []Transaction{
		tx(NewDate(2024, 4, 2), Income, "100"),
		tx(NewDate(2024, 4, 3), Expense, "400"),
	}
	f := Aggregate(txs, NewDate(2024, 4, 1), NewDate(2024, 6, 30))
	if !f.TaxDue.IsZero() {
		t.Fatalf("expected zero tax on a loss, got %s", f.TaxDue)
	}
	if !f.Profit().Equal(decimal.NewFromInt(-300)) {
		t.Fatalf("unexpected profit %s", f.Profit())
	}
}

func TestAggregateEmpty(t *testing.T) {
	f := Aggregate(nil, NewDate(2024, 4, 1), NewDate(2024, 6, 30))
	if !f.TotalIncome.IsZero() || !f.TotalExpenses.IsZero() || !f.TaxDue.IsZero() {
		t.Fatalf("expected zero figures, got %+v", f)
	}
}

func TestDraftReport(t *testing.T) {
	q := TaxQuarter{2024, 4}
	r := DraftReport(3, q, []Transaction{tx(NewDate(2025, 2, 1), Income, "50")})
	if r.Status != StatusDraft {
		t.Fatalf("expected draft, got %s", r.Status)
	}
	if r.StartDate.String() != "2025-01-01" || r.EndDate.String() != "2025-03-31" {
		t.Fatalf("unexpected period %s..%s", r.StartDate, r.EndDate)
	}
	if r.UserID != 3 || MoneyString(r.TaxDue) != "10.00" {
		t.Fatalf("unexpected draft %+v", r)
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("draft should validate: %v", err)
	}
}

func TestSubmissionReference(t *testing.T) {
	pattern := regexp.MustCompile(`^MTD-ITSA-2024-Q1-[0-9A-F]{8}$`)
	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		ref := SubmissionReference(2024, 1)
		if !pattern.MatchString(ref) {
			t.Fatalf("unexpected reference %q", ref)
		}
		if seen[ref] {
			t.Fatalf("duplicate reference %q", ref)
		}
		seen[ref] = true
	}
}

func TestReportIsFinal(t *testing.T) {
	for status, want := range map[ReportStatus]bool{
		StatusDraft:     false,
		StatusSubmitted: true,
		StatusConfirmed: true,
	} {
		if got := (TaxReport{Status: status}).IsFinal(); got != want {
			t.Fatalf("%s: expected %v", status, want)
		}
	}
}
