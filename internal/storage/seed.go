package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taxledger/internal/core"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

// Credentials of the demo ledger owner created by SeedDemo.
const (
	DemoUsername = "john.smith"
	DemoPassword = "password123"
)

// DefaultCurrencies is the reference set installed into an empty store.
var DefaultCurrencies = []core.NewCurrency{
	{Code: "GBP", Name: "British Pound", Symbol: "£", Rate: decimal.RequireFromString("1.0")},
	{Code: "EUR", Name: "Euro", Symbol: "€", Rate: decimal.RequireFromString("1.18")},
	{Code: "USD", Name: "US Dollar", Symbol: "$", Rate: decimal.RequireFromString("1.31")},
	{Code: "CAD", Name: "Canadian Dollar", Symbol: "$", Rate: decimal.RequireFromString("1.78")},
	{Code: "AUD", Name: "Australian Dollar", Symbol: "$", Rate: decimal.RequireFromString("1.92")},
}

// SeedCurrencies installs DefaultCurrencies when no currency exists yet.
func SeedCurrencies(ctx context.Context, s CurrencyStore) error {
	existing, err := s.GetCurrencies(ctx)
	if err != nil {
		return fmt.Errorf("list currencies: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	for _, c := range DefaultCurrencies {
		if _, err := s.CreateCurrency(ctx, c); err != nil && !errors.Is(err, core.ErrConflict) {
			return fmt.Errorf("seed currency %s: %w", c.Code, err)
		}
	}
	return nil
}

// SeedDemo creates the demo user with categories, a month of transactions
// and one filed report. It is a no-op when the demo user already exists.
// Transaction dates are relative to now.
func SeedDemo(ctx context.Context, s Store, now time.Time) error {
	if err := SeedCurrencies(ctx, s); err != nil {
		return err
	}

	_, err := s.GetUserByUsername(ctx, DemoUsername)
	if err == nil {
		return nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("look up demo user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash demo password: %w", err)
	}
	user, err := s.CreateUser(ctx, core.NewUser{
		Username:     DemoUsername,
		Password:     string(hash),
		FullName:     "John Smith",
		BusinessType: core.SoleTrader,
		BaseCurrency: "GBP",
	})
	if err != nil {
		return fmt.Errorf("create demo user: %w", err)
	}

	cats := map[string]int64{}
	for _, c := range []core.NewCategory{
		{Name: "Sales", Type: core.Income},
		{Name: "Property Income", Type: core.Income},
		{Name: "Office Expenses", Type: core.Expense},
		{Name: "Subscriptions", Type: core.Expense},
	} {
		c.UserID = user.ID
		created, err := s.CreateCategory(ctx, c)
		if err != nil {
			return fmt.Errorf("create demo category %s: %w", c.Name, err)
		}
		cats[c.Name] = created.ID
	}

	y, m := now.Year(), int(now.Month())
	for _, tx := range []struct {
		date      core.Date
		desc      string
		amount    string
		currency  string
		converted string
		typ       core.TransactionType
		category  string
	}{
		{core.NewDate(y, m, 12), "Client Payment - Website Development", "1200", "GBP", "1200", core.Income, "Sales"},
		{core.NewDate(y, m, 8), "Consulting Service", "850", "EUR", "720.45", core.Income, "Sales"},
		{core.NewDate(y, m, 5), "Office Supplies", "142.50", "GBP", "142.50", core.Expense, "Office Expenses"},
		{core.NewDate(y, m, 1), "Software Subscription", "49.99", "USD", "38.25", core.Expense, "Subscriptions"},
		{core.NewDate(y, m-1, 28), "Rental Income", "975", "GBP", "975", core.Income, "Property Income"},
	} {
		catID := cats[tx.category]
		_, err := s.CreateTransaction(ctx, core.NewTransaction{
			Date:            tx.date,
			Description:     tx.desc,
			Amount:          decimal.RequireFromString(tx.amount),
			Currency:        tx.currency,
			ConvertedAmount: decimal.RequireFromString(tx.converted),
			Type:            tx.typ,
			CategoryID:      &catID,
			UserID:          user.ID,
		})
		if err != nil {
			return fmt.Errorf("create demo transaction %q: %w", tx.desc, err)
		}
	}

	q := core.TaxQuarter{Year: 2023, Quarter: 3}
	report, err := s.CreateTaxReport(ctx, core.NewTaxReport{
		UserID:        user.ID,
		Year:          q.Year,
		Quarter:       q.Quarter,
		StartDate:     q.Start(),
		EndDate:       q.End(),
		TotalIncome:   decimal.RequireFromString("15000"),
		TotalExpenses: decimal.RequireFromString("4200"),
		TaxDue:        decimal.RequireFromString("2160"),
		Status:        core.StatusDraft,
	})
	if err != nil {
		return fmt.Errorf("create demo report: %w", err)
	}
	if _, err := s.UpdateTaxReport(ctx, report.ID, core.StatusSubmitted, "MTD-ITSA-2023-Q3-123456"); err != nil {
		return fmt.Errorf("file demo report: %w", err)
	}
	return nil
}
