// Package sqlite implements storage.Store on an embedded SQLite database
// using the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"taxledger/internal/core"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = time.RFC3339Nano

	dsnPragmas = "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
)

type Repository struct {
	db *sql.DB
}

// NewRepository opens (creating if needed) the database file at dbPath and
// brings its schema up to date.
func NewRepository(dbPath string) (*Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+dsnPragmas)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("SQLite repository ready", "db_path", dbPath)
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return core.StorageFailure("ping", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func notFoundOr(err error, entity string, key any, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
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

func parseDate(s string) (core.Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return core.Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return core.Date{Time: t}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
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
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	u, err := scanUser(row)
	if err != nil {
		return core.User{}, notFoundOr(err, "user", id, "get user")
	}
	return u, nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE username = ?", username)
	u, err := scanUser(row)
	if err != nil {
		return core.User{}, notFoundOr(err, "user", username, "get user by username")
	}
	return u, nil
}

func (r *Repository) CreateUser(ctx context.Context, in core.NewUser) (core.User, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (username, password, full_name, business_type, base_currency)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
		RETURNING id`,
		in.Username, in.Password, in.FullName, string(in.BusinessType), in.BaseCurrency,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.Conflict("user", in.Username)
	}
	if err != nil {
		return core.User{}, core.StorageFailure("create user", err)
	}
	return core.User{
		ID:           id,
		Username:     in.Username,
		Password:     in.Password,
		FullName:     in.FullName,
		BusinessType: in.BusinessType,
		BaseCurrency: in.BaseCurrency,
	}, nil
}

// Currencies

const currencyColumns = "code, name, symbol, rate, last_updated"

func scanCurrency(row scanner) (core.Currency, error) {
	var c core.Currency
	var rate, updated string
	if err := row.Scan(&c.Code, &c.Name, &c.Symbol, &rate, &updated); err != nil {
		return core.Currency{}, err
	}
	var err error
	if c.Rate, err = parseDecimal(rate); err != nil {
		return core.Currency{}, err
	}
	if c.LastUpdated, err = time.Parse(timeLayout, updated); err != nil {
		return core.Currency{}, fmt.Errorf("parse last_updated: %w", err)
	}
	return c, nil
}

func (r *Repository) GetCurrencies(ctx context.Context) ([]core.Currency, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+currencyColumns+" FROM currencies ORDER BY code")
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
	row := r.db.QueryRowContext(ctx, "SELECT "+currencyColumns+" FROM currencies WHERE code = ?", code)
	c, err := scanCurrency(row)
	if err != nil {
		return core.Currency{}, notFoundOr(err, "currency", code, "get currency")
	}
	return c, nil
}

func (r *Repository) CreateCurrency(ctx context.Context, in core.NewCurrency) (core.Currency, error) {
	now := time.Now().UTC()
	var code string
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO currencies (code, name, symbol, rate, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
		RETURNING code`,
		in.Code, in.Name, in.Symbol, in.Rate.String(), formatTime(now),
	).Scan(&code)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Currency{}, core.Conflict("currency", in.Code)
	}
	if err != nil {
		return core.Currency{}, core.StorageFailure("create currency", err)
	}
	return core.Currency{Code: code, Name: in.Name, Symbol: in.Symbol, Rate: in.Rate, LastUpdated: now}, nil
}

func (r *Repository) UpdateCurrency(ctx context.Context, code string, rate decimal.Decimal) (core.Currency, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE currencies SET rate = ?, last_updated = ?
		WHERE code = ?
		RETURNING `+currencyColumns,
		rate.String(), formatTime(time.Now()), code,
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
	rows, err := r.db.QueryContext(ctx, "SELECT "+categoryColumns+" FROM categories WHERE user_id = ? ORDER BY id", userID)
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
	row := r.db.QueryRowContext(ctx, "SELECT "+categoryColumns+" FROM categories WHERE id = ?", id)
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, notFoundOr(err, "category", id, "get category")
	}
	return c, nil
}

func (r *Repository) CreateCategory(ctx context.Context, in core.NewCategory) (core.Category, error) {
	row := r.db.QueryRowContext(ctx,
		"INSERT INTO categories (name, type, user_id) VALUES (?, ?, ?) RETURNING "+categoryColumns,
		in.Name, string(in.Type), in.UserID,
	)
	c, err := scanCategory(row)
	if err != nil {
		return core.Category{}, core.StorageFailure("create category", err)
	}
	return c, nil
}

// Transactions

const transactionColumns = "id, date, description, amount, currency, converted_amount, type, category_id, user_id"

func scanTransaction(row scanner) (core.Transaction, error) {
	var (
		tx                      core.Transaction
		date, amount, converted string
		typ                     string
		categoryID              sql.NullInt64
	)
	if err := row.Scan(&tx.ID, &date, &tx.Description, &amount, &tx.Currency, &converted, &typ, &categoryID, &tx.UserID); err != nil {
		return core.Transaction{}, err
	}
	var err error
	if tx.Date, err = parseDate(date); err != nil {
		return core.Transaction{}, err
	}
	if tx.Amount, err = parseDecimal(amount); err != nil {
		return core.Transaction{}, err
	}
	if tx.ConvertedAmount, err = parseDecimal(converted); err != nil {
		return core.Transaction{}, err
	}
	tx.Type = core.TransactionType(typ)
	if categoryID.Valid {
		id := categoryID.Int64
		tx.CategoryID = &id
	}
	return tx, nil
}

func (r *Repository) GetTransactions(ctx context.Context, userID int64, f core.TransactionFilter) ([]core.Transaction, error) {
	var q strings.Builder
	q.WriteString("SELECT " + transactionColumns + " FROM transactions WHERE user_id = ?")
	args := []any{userID}
	if f.StartDate != nil {
		q.WriteString(" AND date >= ?")
		args = append(args, f.StartDate.String())
	}
	if f.EndDate != nil {
		q.WriteString(" AND date <= ?")
		args = append(args, f.EndDate.String())
	}
	if f.Type != "" {
		q.WriteString(" AND type = ?")
		args = append(args, string(f.Type))
	}
	if f.Currency != "" {
		q.WriteString(" AND currency = ?")
		args = append(args, f.Currency)
	}
	q.WriteString(" ORDER BY date DESC, id DESC")

	rows, err := r.db.QueryContext(ctx, q.String(), args...)
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
	row := r.db.QueryRowContext(ctx, "SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	tx, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, notFoundOr(err, "transaction", id, "get transaction")
	}
	return tx, nil
}

func (r *Repository) CreateTransaction(ctx context.Context, in core.NewTransaction) (core.Transaction, error) {
	var categoryID sql.NullInt64
	if in.CategoryID != nil {
		categoryID = sql.NullInt64{Int64: *in.CategoryID, Valid: true}
	}
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO transactions (date, description, amount, currency, converted_amount, type, category_id, user_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+transactionColumns,
		in.Date.String(), in.Description, in.Amount.String(), in.Currency,
		in.ConvertedAmount.String(), string(in.Type), categoryID, in.UserID,
	)
	tx, err := scanTransaction(row)
	if err != nil {
		return core.Transaction{}, core.StorageFailure("create transaction", err)
	}
	return tx, nil
}

// Tax reports

const reportColumns = "id, user_id, year, quarter, start_date, end_date, total_income, total_expenses, tax_due, status, submission_date, hmrc_reference"

func scanReport(row scanner) (core.TaxReport, error) {
	var (
		rep                      core.TaxReport
		start, end               string
		income, expenses, taxDue string
		status                   string
		submitted, reference     sql.NullString
	)
	if err := row.Scan(&rep.ID, &rep.UserID, &rep.Year, &rep.Quarter, &start, &end,
		&income, &expenses, &taxDue, &status, &submitted, &reference); err != nil {
		return core.TaxReport{}, err
	}
	var err error
	if rep.StartDate, err = parseDate(start); err != nil {
		return core.TaxReport{}, err
	}
	if rep.EndDate, err = parseDate(end); err != nil {
		return core.TaxReport{}, err
	}
	if rep.TotalIncome, err = parseDecimal(income); err != nil {
		return core.TaxReport{}, err
	}
	if rep.TotalExpenses, err = parseDecimal(expenses); err != nil {
		return core.TaxReport{}, err
	}
	if rep.TaxDue, err = parseDecimal(taxDue); err != nil {
		return core.TaxReport{}, err
	}
	rep.Status = core.ReportStatus(status)
	if submitted.Valid {
		t, err := time.Parse(timeLayout, submitted.String)
		if err != nil {
			return core.TaxReport{}, fmt.Errorf("parse submission_date: %w", err)
		}
		rep.SubmissionDate = &t
	}
	rep.HMRCReference = reference.String
	return rep, nil
}

func (r *Repository) GetTaxReports(ctx context.Context, userID int64) ([]core.TaxReport, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+reportColumns+" FROM tax_reports WHERE user_id = ? ORDER BY year DESC, quarter DESC, id DESC", userID)
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
	row := r.db.QueryRowContext(ctx, "SELECT "+reportColumns+" FROM tax_reports WHERE id = ?", id)
	rep, err := scanReport(row)
	if err != nil {
		return core.TaxReport{}, notFoundOr(err, "tax report", id, "get tax report")
	}
	return rep, nil
}

func (r *Repository) CreateTaxReport(ctx context.Context, in core.NewTaxReport) (core.TaxReport, error) {
	row := r.db.QueryRowContext(ctx, `
		INSERT INTO tax_reports (user_id, year, quarter, start_date, end_date, total_income, total_expenses, tax_due, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING `+reportColumns,
		in.UserID, in.Year, in.Quarter, in.StartDate.String(), in.EndDate.String(),
		in.TotalIncome.String(), in.TotalExpenses.String(), in.TaxDue.String(), string(in.Status),
	)
	rep, err := scanReport(row)
	if err != nil {
		return core.TaxReport{}, core.StorageFailure("create tax report", err)
	}
	return rep, nil
}

func (r *Repository) UpdateTaxReport(ctx context.Context, id int64, status core.ReportStatus, reference string) (core.TaxReport, error) {
	row := r.db.QueryRowContext(ctx, `
		UPDATE tax_reports SET
			status = ?,
			submission_date = CASE WHEN ? = 'submitted' THEN ? ELSE submission_date END,
			hmrc_reference = CASE WHEN ? <> '' THEN ? ELSE hmrc_reference END
		WHERE id = ?
		RETURNING `+reportColumns,
		string(status), string(status), formatTime(time.Now()), reference, reference, id,
	)
	rep, err := scanReport(row)
	if err != nil {
		return core.TaxReport{}, notFoundOr(err, "tax report", id, "update tax report")
	}
	return rep, nil
}
