// Package memory is a process-local storage.Store guarded by a single mutex.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"taxledger/internal/core"

	"github.com/shopspring/decimal"
)

type Store struct {
	mu sync.Mutex

	users        map[int64]core.User
	currencies   map[string]core.Currency
	categories   map[int64]core.Category
	transactions map[int64]core.Transaction
	reports      map[int64]core.TaxReport

	nextUser, nextCategory, nextTransaction, nextReport int64

	now func() time.Time
}

func New() *Store {
	return &Store{
		users:        map[int64]core.User{},
		currencies:   map[string]core.Currency{},
		categories:   map[int64]core.Category{},
		transactions: map[int64]core.Transaction{},
		reports:      map[int64]core.TaxReport{},
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Ping(context.Context) error { return nil }

// checkRefs mirrors the foreign keys of the SQL schemas. Callers hold mu.
func (s *Store) checkRefs(op string, userID int64, categoryID *int64) error {
	if _, ok := s.users[userID]; !ok {
		return core.StorageFailure(op, fmt.Errorf("foreign key: user %d does not exist", userID))
	}
	if categoryID != nil {
		if _, ok := s.categories[*categoryID]; !ok {
			return core.StorageFailure(op, fmt.Errorf("foreign key: category %d does not exist", *categoryID))
		}
	}
	return nil
}

func (s *Store) Close() error { return nil }

func (s *Store) GetUser(_ context.Context, id int64) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return core.User{}, core.NotFound("user", id)
	}
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return core.User{}, core.NotFound("user", username)
}

func (s *Store) CreateUser(_ context.Context, in core.NewUser) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == in.Username {
			return core.User{}, core.Conflict("user", in.Username)
		}
	}
	s.nextUser++
	u := core.User{
		ID:           s.nextUser,
		Username:     in.Username,
		Password:     in.Password,
		FullName:     in.FullName,
		BusinessType: in.BusinessType,
		BaseCurrency: in.BaseCurrency,
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) GetCurrencies(context.Context) ([]core.Currency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Currency, 0, len(s.currencies))
	for _, c := range s.currencies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (s *Store) GetCurrency(_ context.Context, code string) (core.Currency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.currencies[code]
	if !ok {
		return core.Currency{}, core.NotFound("currency", code)
	}
	return c, nil
}

func (s *Store) CreateCurrency(_ context.Context, in core.NewCurrency) (core.Currency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.currencies[in.Code]; ok {
		return core.Currency{}, core.Conflict("currency", in.Code)
	}
	c := core.Currency{
		Code:        in.Code,
		Name:        in.Name,
		Symbol:      in.Symbol,
		Rate:        in.Rate,
		LastUpdated: s.now(),
	}
	s.currencies[c.Code] = c
	return c, nil
}

func (s *Store) UpdateCurrency(_ context.Context, code string, rate decimal.Decimal) (core.Currency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.currencies[code]
	if !ok {
		return core.Currency{}, core.NotFound("currency", code)
	}
	c.Rate = rate
	c.LastUpdated = s.now()
	s.currencies[code] = c
	return c, nil
}

func (s *Store) GetCategories(_ context.Context, userID int64) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Category{}
	for _, c := range s.categories {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetCategory(_ context.Context, id int64) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return core.Category{}, core.NotFound("category", id)
	}
	return c, nil
}

func (s *Store) CreateCategory(_ context.Context, in core.NewCategory) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkRefs("create category", in.UserID, nil); err != nil {
		return core.Category{}, err
	}
	s.nextCategory++
	c := core.Category{ID: s.nextCategory, Name: in.Name, Type: in.Type, UserID: in.UserID}
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) GetTransactions(_ context.Context, userID int64, filter core.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Transaction{}
	for _, tx := range s.transactions {
		if tx.UserID == userID && filter.Matches(tx) {
			out = append(out, copyTransaction(tx))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) GetTransaction(_ context.Context, id int64) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, ok := s.transactions[id]
	if !ok {
		return core.Transaction{}, core.NotFound("transaction", id)
	}
	return copyTransaction(tx), nil
}

func (s *Store) CreateTransaction(_ context.Context, in core.NewTransaction) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkRefs("create transaction", in.UserID, in.CategoryID); err != nil {
		return core.Transaction{}, err
	}
	s.nextTransaction++
	tx := core.Transaction{
		ID:              s.nextTransaction,
		Date:            in.Date,
		Description:     in.Description,
		Amount:          in.Amount,
		Currency:        in.Currency,
		ConvertedAmount: in.ConvertedAmount,
		Type:            in.Type,
		CategoryID:      copyID(in.CategoryID),
		UserID:          in.UserID,
	}
	s.transactions[tx.ID] = tx
	return copyTransaction(tx), nil
}

func (s *Store) GetTaxReports(_ context.Context, userID int64) ([]core.TaxReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.TaxReport{}
	for _, r := range s.reports {
		if r.UserID == userID {
			out = append(out, copyReport(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Year != b.Year {
			return a.Year > b.Year
		}
		if a.Quarter != b.Quarter {
			return a.Quarter > b.Quarter
		}
		return a.ID > b.ID
	})
	return out, nil
}

func (s *Store) GetTaxReport(_ context.Context, id int64) (core.TaxReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return core.TaxReport{}, core.NotFound("tax report", id)
	}
	return copyReport(r), nil
}

func (s *Store) CreateTaxReport(_ context.Context, in core.NewTaxReport) (core.TaxReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkRefs("create tax report", in.UserID, nil); err != nil {
		return core.TaxReport{}, err
	}
	s.nextReport++
	r := core.TaxReport{
		ID:            s.nextReport,
		UserID:        in.UserID,
		Year:          in.Year,
		Quarter:       in.Quarter,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		TotalIncome:   in.TotalIncome,
		TotalExpenses: in.TotalExpenses,
		TaxDue:        in.TaxDue,
		Status:        in.Status,
	}
	s.reports[r.ID] = r
	return copyReport(r), nil
}

func (s *Store) UpdateTaxReport(_ context.Context, id int64, status core.ReportStatus, reference string) (core.TaxReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return core.TaxReport{}, core.NotFound("tax report", id)
	}
	r.Status = status
	if status == core.StatusSubmitted {
		now := s.now()
		r.SubmissionDate = &now
	}
	if reference != "" {
		r.HMRCReference = reference
	}
	s.reports[id] = r
	return copyReport(r), nil
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func copyTransaction(tx core.Transaction) core.Transaction {
	tx.CategoryID = copyID(tx.CategoryID)
	return tx
}

func copyReport(r core.TaxReport) core.TaxReport {
	if r.SubmissionDate != nil {
		d := *r.SubmissionDate
		r.SubmissionDate = &d
	}
	return r
}
