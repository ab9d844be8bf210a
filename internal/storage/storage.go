// Package storage defines the persistence contract shared by every backend.
//
// Implementations live in sub-packages (memory, sqlite, postgres) and are
// checked against the same behaviour by storagetest.Run.
package storage

import (
	"context"

	"taxledger/internal/core"

	"github.com/shopspring/decimal"
)

// Store is the full persistence surface used by the services.
//
// Lookups of absent rows fail with an error matching core.ErrNotFound.
// Uniqueness violations match core.ErrConflict (and core.ErrStorage).
// Any other backend failure matches core.ErrStorage.
type Store interface {
	UserStore
	CurrencyStore
	CategoryStore
	TransactionStore
	TaxReportStore

	// Ping checks that the backend is reachable.
	Ping(ctx context.Context) error
	Close() error
}

type UserStore interface {
	GetUser(ctx context.Context, id int64) (core.User, error)
	GetUserByUsername(ctx context.Context, username string) (core.User, error)
	CreateUser(ctx context.Context, u core.NewUser) (core.User, error)
}

// CurrencyStore holds process-wide reference data, ordered by code.
type CurrencyStore interface {
	GetCurrencies(ctx context.Context) ([]core.Currency, error)
	GetCurrency(ctx context.Context, code string) (core.Currency, error)
	// CreateCurrency never overwrites an existing code.
	CreateCurrency(ctx context.Context, c core.NewCurrency) (core.Currency, error)
	// UpdateCurrency replaces the rate and stamps LastUpdated with the current time.
	UpdateCurrency(ctx context.Context, code string, rate decimal.Decimal) (core.Currency, error)
}

// CategoryStore returns categories ordered by id.
type CategoryStore interface {
	GetCategories(ctx context.Context, userID int64) ([]core.Category, error)
	GetCategory(ctx context.Context, id int64) (core.Category, error)
	CreateCategory(ctx context.Context, c core.NewCategory) (core.Category, error)
}

// TransactionStore returns transactions newest first, ties broken by id
// descending. ConvertedAmount is persisted exactly as supplied.
type TransactionStore interface {
	GetTransactions(ctx context.Context, userID int64, filter core.TransactionFilter) ([]core.Transaction, error)
	GetTransaction(ctx context.Context, id int64) (core.Transaction, error)
	CreateTransaction(ctx context.Context, t core.NewTransaction) (core.Transaction, error)
}

// TaxReportStore returns reports ordered by year then quarter, newest
// first, ties broken by id descending.
type TaxReportStore interface {
	GetTaxReports(ctx context.Context, userID int64) ([]core.TaxReport, error)
	GetTaxReport(ctx context.Context, id int64) (core.TaxReport, error)
	// CreateTaxReport always starts with no submission date or reference.
	CreateTaxReport(ctx context.Context, r core.NewTaxReport) (core.TaxReport, error)
	// UpdateTaxReport sets the status. The submission date is stamped only
	// when status is submitted; reference replaces the stored one only when
	// it is non-empty.
	UpdateTaxReport(ctx context.Context, id int64, status core.ReportStatus, reference string) (core.TaxReport, error)
}
