// Package postgres implements storage.Store on PostgreSQL through a pgx pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"taxledger/internal/core"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repository struct {
	Pool *pgxpool.Pool
}

// NewRepository migrates the schema and opens a connection pool.
func NewRepository(ctx context.Context, databaseURL string) (*Repository, error) {
	if err := RunMigrations(databaseURL); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("PostgreSQL repository ready")
	return &Repository{Pool: pool}, nil
}

func (r *Repository) Close() error {
	if r.Pool != nil {
		r.Pool.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.Pool.Ping(ctx); err != nil {
		return core.StorageFailure("ping", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func notFoundOr(err error, entity string, key any, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return core.NotFound(entity, key)
	}
	return core.StorageFailure(op, err)
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return d, nil
}

// Users

const userColumns = "id, username, password, full_name, business_type, base_currency"

func scanUser(row scanner) (core.User, error) {
	var u core.User
	var bt string
	if err := row.Scan(&u.ID, &u.Username, &u.Password, &u.FullName, &bt, &u.BaseCurrency); err != nil {
		return core.User{}, err
	}
	u.BusinessType = core.BusinessType(bt)
	return u, nil
}

func (r *Repository) GetUser(ctx context.Context, id int64) (core.User, error) {
	u, err := scanUser(r.Pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		return core.User{}, notFoundOr(err, "user", id, "get user")
	}
	return u, nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	u, err := scanUser(r.Pool.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE username = $1", username))
	if err != nil {
		return core.User{}, notFoundOr(err, "user", username, "get user by username")
	}
	return u, nil
}

func (r *Repository) CreateUser(ctx context.Context, in core.NewUser) (core.User, error) {
	row := r.Pool.QueryRow(ctx,
		`INSERT INTO users (username, password, full_name, business_type, base_currency)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT DO NOTHING
		 RETURNING `+userColumns,
		in.Username, in.Password, in.FullName, string(in.BusinessType), in.BaseCurrency,
	)
	u, err := scanUser(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.User{}, core.Conflict("user", in.Username)
	}
	if err != nil {
		return core.User{}, core.StorageFailure("create user", err)
	}
	return u, nil
}

// Currencies

const currencyColumns = "code, name, symbol, rate::text, last_updated"

func scanCurrency(row scanner) (core.Currency, error) {
	var c core.Currency
	var rate string
	if err := row.Scan(&c.Code, &c.Name, &c.Symbol, &rate, &c.LastUpdated); err != nil {
		return core.Currency{}, err
	}
	var err error
	if c.Rate, err = parseDecimal(rate); err != nil {
		return core.Currency{}, err
	}
	c.LastUpdated = c.LastUpdated.UTC()
	return c, nil
}

func (r *Repository) GetCurrencies(ctx context.Context) ([]core.Currency, error) {
	rows, err := r.Pool.Query(ctx, "SELECT "+currencyColumns+" FROM currencies ORDER BY code")
	if err != nil {
		return nil, core.StorageFailure("list currencies", err)
	}
	defer rows.Close()
	out := []core.Currency{}
	for rows.Next() {
		c, err := scanCurrency(rows)
		if err != nil {
			return nil, core.StorageFailure("scan currency", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, core.StorageFailure("list currencies", err)
	}
	return out, nil
}

func (r *Repository) GetCurrency(ctx context.Context, code string) (core.Currency, error) {
	c, err := scanCurrency(r.Pool.QueryRow(ctx, "SELECT "+currencyColumns+" FROM currencies WHERE code = $1", code))
	if err != nil {
		return core.Currency{}, notFoundOr(err, "currency", code, "get currency")
	}
	return c, nil
}

func (r *Repository) CreateCurrency(ctx context.Context, in core.NewCurrency) (core.Currency, error) {
	row := r.Pool.QueryRow(ctx,
		`INSERT INTO currencies (code, name, symbol, rate, last_updated)
		 VALUES ($1, $2, $3, $4::text::numeric, $5)
		 ON CONFLICT DO NOTHING
		 RETURNING `+currencyColumns,
		in.Code, in.Name, in.Symbol, in.Rate.String(), time.Now().UTC(),
	)
	c, err := scanCurrency(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Currency{}, core.Conflict("currency", in.Code)
	}
	if err != nil {
		return core.Currency{}, core.StorageFailure("create currency", err)
	}
	return c, nil
}

func (r *Repository) UpdateCurrency(ctx context.Context, code string, rate decimal.Decimal) (core.Currency, error) {
	row := r.Pool.QueryRow(ctx,
		`UPDATE currencies SET rate = $1::text::numeric, last_updated = $2
		 WHERE code = $3
		 RETURNING `+currencyColumns,
		rate.String(), time.Now().UTC(), code,
	)
	c, err := scanCurrency(row)
	if err != nil {
		return core.Currency{}, notFoundOr(err, "currency", code, "update currency")
	}
	return c, nil
}

// Categories

const categoryColumns = "id, name, type, user_id"

func scanCategory(row scanner) (core.Category, error) {
	var c core.Category
	var typ string
	if err := row.Scan(&c.ID, &c.Name, &typ, &c.UserID); err != nil {
		return core.Category{}, err
	}
	c.Type = core.TransactionType(typ)
	return c, nil
}

func (r *Repository) GetCategories(ctx context.Context, userID int64) ([]core.Category, error) {
	rows, err := r.Pool.Query(ctx, "SELECT "+categoryColumns+" FROM categories WHERE user_id = $1 ORDER BY id", userID)
	if err != nil {
		return nil, core.StorageFailure("list categories", err)
	}
	defer rows.Close()
	out := []core.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, core.StorageFailure("scan category", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, core.StorageFailure("list categories", err)
	}
	return out, nil
}

func (r *Repository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	c, err := scanCategory(r.Pool.QueryRow(ctx, "SELECT "+categoryColumns+" FROM categories WHERE id = $1", id))
	if err != nil {
		return core.Category{}, notFoundOr(err, "category", id, "get category")
	}
	return c, nil
}

func (r *Repository) CreateCategory(ctx context.Context, in core.NewCategory) (core.Category, error) {
	row := r.Pool.QueryRow(ctx,
		"INSERT INTO categories (name, type, user_id) VALUES ($1, $2, $3) RETURNING "+categoryColumns,
		in.Name, string(in.Type), in.UserID,
	)
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, core.StorageFailure("create category", err)
	}
	return c, nil
}

// Transactions

const transactionColumns = "id, date, description, amount::text, currency, converted_amount::text, type, category_id, user_id"

func scanTransaction(row scanner) (core.Transaction, error) {
	var (
		tx                core.Transaction
		date              time.Time
		amount, converted string
		typ               string
	)
	if err := row.Scan(&tx.ID, &date, &tx.Description, &amount, &tx.Currency, &converted, &typ, &tx.CategoryID, &tx.UserID); err != nil {
		return core.Transaction{}, err
	}
	var err error
	if tx.Amount, err = parseDecimal(amount); err != nil {
		return core.Transaction{}, err
	}
	if tx.ConvertedAmount, err = parseDecimal(converted); err != nil {
		return core.Transaction{}, err
	}
	tx.Date = core.DateOf(date)
	tx.Type = core.TransactionType(typ)
	return tx, nil
}

func (r *Repository) GetTransactions(ctx context.Context, userID int64, f core.TransactionFilter) ([]core.Transaction, error) {
	var q strings.Builder
	q.WriteString("SELECT " + transactionColumns + " FROM transactions WHERE user_id = $1")
	args := []any{userID}
	add := func(clause string, v any) {
		args = append(args, v)
		fmt.Fprintf(&q, " AND "+clause, len(args))
	}
	if f.StartDate != nil {
		add("date >= $%d", f.StartDate.Time)
	}
	if f.EndDate != nil {
		add("date <= $%d", f.EndDate.Time)
	}
	if f.Type != "" {
		add("type = $%d", string(f.Type))
	}
	if f.Currency != "" {
		add("currency = $%d", f.Currency)
	}
	q.WriteString(" ORDER BY date DESC, id DESC")

	rows, err := r.Pool.Query(ctx, q.String(), args...)
	if err != nil {
		return nil, core.StorageFailure("list transactions", err)
	}
	defer rows.Close()
	out := []core.Transaction{}
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, core.StorageFailure("scan transaction", err)
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, core.StorageFailure("list transactions", err)
	}
	return out, nil
}

func (r *Repository) GetTransaction(ctx context.Context, id int64) (core.Transaction, error) {
	tx, err := scanTransaction(r.Pool.QueryRow(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = $1", id))
	if err != nil {
		return core.Transaction{}, notFoundOr(err, "transaction", id, "get transaction")
	}
	return tx, nil
}

func (r *Repository) CreateTransaction(ctx context.Context, in core.NewTransaction) (core.Transaction, error) {
	row := r.Pool.QueryRow(ctx,
		`INSERT INTO transactions (date, description, amount, currency, converted_amount, type, category_id, user_id)
		 VALUES ($1, $2, $3::text::numeric, $4, $5::text::numeric, $6, $7, $8)
		 RETURNING `+transactionColumns,
		in.Date.Time, in.Description, in.Amount.String(), in.Currency,
		in.ConvertedAmount.String(), string(in.Type), in.CategoryID, in.UserID,
	)
	tx, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, core.StorageFailure("create transaction", err)
	}
	return tx, nil
}

// Tax reports

const reportColumns = `id, user_id, year, quarter, start_date, end_date,
	total_income::text, total_expenses::text, tax_due::text, status, submission_date, hmrc_reference`

func scanReport(row scanner) (core.TaxReport, error) {
	var (
		rep                      core.TaxReport
		start, end               time.Time
		income, expenses, taxDue string
		status                   string
		reference                *string
	)
	if err := row.Scan(&rep.ID, &rep.UserID, &rep.Year, &rep.Quarter, &start, &end,
		&income, &expenses, &taxDue, &status, &rep.SubmissionDate, &reference); err != nil {
		return core.TaxReport{}, err
	}
	var err error
	if rep.TotalIncome, err = parseDecimal(income); err != nil {
		return core.TaxReport{}, err
	}
	if rep.TotalExpenses, err = parseDecimal(expenses); err != nil {
		return core.TaxReport{}, err
	}
	if rep.TaxDue, err = parseDecimal(taxDue); err != nil {
		return core.TaxReport{}, err
	}
	rep.StartDate = core.DateOf(start)
	rep.EndDate = core.DateOf(end)
	rep.Status = core.ReportStatus(status)
	if rep.SubmissionDate != nil {
		t := rep.SubmissionDate.UTC()
		rep.SubmissionDate = &t
	}
	if reference != nil {
		rep.HMRCReference = *reference
	}
	return rep, nil
}

func (r *Repository) GetTaxReports(ctx context.Context, userID int64) ([]core.TaxReport, error) {
	rows, err := r.Pool.Query(ctx,
		"SELECT "+reportColumns+" FROM tax_reports WHERE user_id = $1 ORDER BY year DESC, quarter DESC, id DESC", userID)
	if err != nil {
		return nil, core.StorageFailure("list tax reports", err)
	}
	defer rows.Close()
	out := []core.TaxReport{}
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, core.StorageFailure("scan tax report", err)
		}
		out = append(out, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, core.StorageFailure("list tax reports", err)
	}
	return out, nil
}

func (r *Repository) GetTaxReport(ctx context.Context, id int64) (core.TaxReport, error) {
	rep, err := scanReport(r.Pool.QueryRow(ctx, "SELECT "+reportColumns+" FROM tax_reports WHERE id = $1", id))
	if err != nil {
		return core.TaxReport{}, notFoundOr(err, "tax report", id, "get tax report")
	}
	return rep, nil
}

func (r *Repository) CreateTaxReport(ctx context.Context, in core.NewTaxReport) (core.TaxReport, error) {
	row := r.Pool.QueryRow(ctx,
		`INSERT INTO tax_reports (user_id, year, quarter, start_date, end_date, total_income, total_expenses, tax_due, status)
		 VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7::text::numeric, $8::text::numeric, $9)
		 RETURNING `+reportColumns,
		in.UserID, in.Year, in.Quarter, in.StartDate.Time, in.EndDate.Time,
		in.TotalIncome.String(), in.TotalExpenses.String(), in.TaxDue.String(), string(in.Status),
	)
	rep, err := scanReport(row)
	if err != nil {
		return core.TaxReport{}, core.StorageFailure("create tax report", err)
	}
	return rep, nil
}

func (r *Repository) UpdateTaxReport(ctx context.Context, id int64, status core.ReportStatus, reference string) (core.TaxReport, error) {
	row := r.Pool.QueryRow(ctx,
		`UPDATE tax_reports SET
			status = $1,
			submission_date = CASE WHEN $1 = 'submitted' THEN $2 ELSE submission_date END,
			hmrc_reference = COALESCE(NULLIF($3, ''), hmrc_reference)
		 WHERE id = $4
		 RETURNING `+reportColumns,
		string(status), time.Now().UTC(), reference, id,
	)
	rep, err := scanReport(row)
	if err != nil {
		return core.TaxReport{}, notFoundOr(err, "tax report", id, "update tax report")
	}
	return rep, nil
}
