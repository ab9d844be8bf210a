// Package storagetest holds the behaviour every storage.Store must share.
// Backends call Run from their own tests.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"taxledger/internal/core"
	"taxledger/internal/storage"

	"github.com/shopspring/decimal"
)

// Factory returns an empty store. Cleanup is registered by the factory.
type Factory func(t *testing.T) storage.Store

// Run executes the shared suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"Users", testUsers},
		{"Currencies", testCurrencies},
		{"Categories", testCategories},
		{"TransactionOrdering", testTransactionOrdering},
		{"TransactionFilters", testTransactionFilters},
		{"TransactionRoundTrip", testTransactionRoundTrip},
		{"TaxReports", testTaxReports},
		{"SubmitKeepsReference", testSubmitKeepsReference},
		{"OrphanReferences", testOrphanReferences},
		{"ConcurrentCreates", testConcurrentCreates},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.fn(t, newStore(t))
		})
	}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func mustUser(t *testing.T, s storage.Store, username string) core.User {
	t.Helper()
	u, err := s.CreateUser(context.Background(), core.NewUser{
		Username:     username,
		Password:     "password123",
		FullName:     "Test " + username,
		BusinessType: core.SoleTrader,
		BaseCurrency: "GBP",
	})
	if err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return u
}

func mustTransaction(t *testing.T, s storage.Store, in core.NewTransaction) core.Transaction {
	t.Helper()
	tx, err := s.CreateTransaction(context.Background(), in)
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	return tx
}

func newTx(userID int64, date core.Date, typ core.TransactionType, currency, amount string) core.NewTransaction {
	return core.NewTransaction{
		Date:            date,
		Description:     fmt.Sprintf("%s %s %s", typ, currency, amount),
		Amount:          dec(amount),
		Currency:        currency,
		ConvertedAmount: dec(amount),
		Type:            typ,
		UserID:          userID,
	}
}

func testUsers(t *testing.T, s storage.Store) {
	ctx := context.Background()
	a := mustUser(t, s, "john.smith")
	b := mustUser(t, s, "jane.doe")
	if a.ID == b.ID || a.ID <= 0 || b.ID <= 0 {
		t.Fatalf("expected distinct positive ids, got %d and %d", a.ID, b.ID)
	}

	got, err := s.GetUser(ctx, a.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got != a {
		t.Fatalf("expected %+v, got %+v", a, got)
	}
	byName, err := s.GetUserByUsername(ctx, "jane.doe")
	if err != nil || byName.ID != b.ID {
		t.Fatalf("get by username: %+v %v", byName, err)
	}

	_, err = s.CreateUser(ctx, core.NewUser{Username: "john.smith", Password: "x", FullName: "x", BusinessType: core.Landlord, BaseCurrency: "GBP"})
	if !errors.Is(err, core.ErrConflict) || !errors.Is(err, core.ErrStorage) {
		t.Fatalf("expected conflict on duplicate username, got %v", err)
	}

	if _, err := s.GetUser(ctx, 9999); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.GetUserByUsername(ctx, "nobody"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func testCurrencies(t *testing.T, s storage.Store) {
	ctx := context.Background()
	for _, c := range []core.NewCurrency{
		{Code: "USD", Name: "US Dollar", Symbol: "$", Rate: dec("1.31")},
		{Code: "EUR", Name: "Euro", Symbol: "€", Rate: dec("1.18")},
		{Code: "GBP", Name: "British Pound", Symbol: "£", Rate: dec("1")},
	} {
		if _, err := s.CreateCurrency(ctx, c); err != nil {
			t.Fatalf("create %s: %v", c.Code, err)
		}
	}

	_, err := s.CreateCurrency(ctx, core.NewCurrency{Code: "EUR", Name: "Other", Symbol: "E", Rate: dec("9")})
	if !errors.Is(err, core.ErrConflict) || !errors.Is(err, core.ErrStorage) {
		t.Fatalf("expected conflict on duplicate code, got %v", err)
	}
	eur, err := s.GetCurrency(ctx, "EUR")
	if err != nil {
		t.Fatalf("get EUR: %v", err)
	}
	if eur.Name != "Euro" || !eur.Rate.Equal(dec("1.18")) {
		t.Fatalf("duplicate create overwrote EUR: %+v", eur)
	}

	all, err := s.GetCurrencies(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var codes []string
	for _, c := range all {
		codes = append(codes, c.Code)
	}
	if fmt.Sprint(codes) != "[EUR GBP USD]" {
		t.Fatalf("expected currencies ordered by code, got %v", codes)
	}

	before := eur.LastUpdated
	time.Sleep(5 * time.Millisecond)
	updated, err := s.UpdateCurrency(ctx, "EUR", dec("1.1725"))
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.Rate.Equal(dec("1.1725")) || !updated.LastUpdated.After(before) {
		t.Fatalf("update did not apply: %+v (before %s)", updated, before)
	}
	reread, _ := s.GetCurrency(ctx, "EUR")
	if !reread.Rate.Equal(dec("1.1725")) {
		t.Fatalf("update not persisted: %+v", reread)
	}

	if _, err := s.UpdateCurrency(ctx, "JPY", dec("180")); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found updating JPY, got %v", err)
	}
	if _, err := s.GetCurrency(ctx, "JPY"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func testCategories(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "cats")
	other := mustUser(t, s, "other")

	var ids []int64
	for _, c := range []core.NewCategory{
		{Name: "Sales", Type: core.Income, UserID: u.ID},
		{Name: "Office Expenses", Type: core.Expense, UserID: u.ID},
		{Name: "Rent", Type: core.Income, UserID: other.ID},
	} {
		created, err := s.CreateCategory(ctx, c)
		if err != nil {
			t.Fatalf("create category: %v", err)
		}
		if created.Name != c.Name || created.Type != c.Type || created.UserID != c.UserID {
			t.Fatalf("unexpected category %+v", created)
		}
		ids = append(ids, created.ID)
	}

	list, err := s.GetCategories(ctx, u.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != ids[0] || list[1].ID != ids[1] {
		t.Fatalf("expected the user's two categories in id order, got %+v", list)
	}

	empty, err := s.GetCategories(ctx, 424242)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty list, got %v %v", empty, err)
	}

	got, err := s.GetCategory(ctx, ids[2])
	if err != nil || got.Name != "Rent" {
		t.Fatalf("get category: %+v %v", got, err)
	}
	if _, err := s.GetCategory(ctx, 9999); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func testTransactionOrdering(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "ordering")
	first := mustTransaction(t, s, newTx(u.ID, core.NewDate(2024, 5, 1), core.Income, "GBP", "10"))
	second := mustTransaction(t, s, newTx(u.ID, core.NewDate(2024, 5, 1), core.Expense, "GBP", "20"))
	older := mustTransaction(t, s, newTx(u.ID, core.NewDate(2024, 4, 1), core.Income, "GBP", "30"))
	newer := mustTransaction(t, s, newTx(u.ID, core.NewDate(2024, 6, 1), core.Income, "GBP", "40"))

	list, err := s.GetTransactions(ctx, u.ID, core.TransactionFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []int64{newer.ID, second.ID, first.ID, older.ID}
	if len(list) != len(want) {
		t.Fatalf("expected %d transactions, got %d", len(want), len(list))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Fatalf("position %d: expected id %d, got %d", i, id, list[i].ID)
		}
	}

	none, err := s.GetTransactions(ctx, 424242, core.TransactionFilter{})
	if err != nil || len(none) != 0 {
		t.Fatalf("expected no transactions for unknown user, got %v %v", none, err)
	}
}

func testTransactionFilters(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "filters")
	other := mustUser(t, s, "someone.else")
	mustTransaction(t, s, newTx(u.ID, core.NewDate(2024, 3, 31), core.Income, "GBP", "1"))
	mustTransaction(t, s, newTx(u.ID, core.NewDate(2024, 4, 1), core.Income, "EUR", "2"))
	mustTransaction(t, s, newTx(u.ID, core.NewDate(2024, 5, 15), core.Expense, "USD", "3"))
	mustTransaction(t, s, newTx(u.ID, core.NewDate(2024, 6, 30), core.Expense, "GBP", "4"))
	mustTransaction(t, s, newTx(u.ID, core.NewDate(2024, 7, 1), core.Income, "GBP", "5"))
	mustTransaction(t, s, newTx(other.ID, core.NewDate(2024, 5, 1), core.Income, "GBP", "6"))

	start, end := core.NewDate(2024, 4, 1), core.NewDate(2024, 6, 30)
	cases := []struct {
		name   string
		filter core.TransactionFilter
		want   []string
	}{
		{"none", core.TransactionFilter{}, []string{"5", "4", "3", "2", "1"}},
		{"range inclusive", core.TransactionFilter{StartDate: &start, EndDate: &end}, []string{"4", "3", "2"}},
		{"start only", core.TransactionFilter{StartDate: &end}, []string{"5", "4"}},
		{"end only", core.TransactionFilter{EndDate: &start}, []string{"2", "1"}},
		{"type", core.TransactionFilter{Type: core.Expense}, []string{"4", "3"}},
		{"currency", core.TransactionFilter{Currency: "GBP"}, []string{"5", "4", "1"}},
		{"combined", core.TransactionFilter{StartDate: &start, EndDate: &end, Type: core.Income, Currency: "EUR"}, []string{"2"}},
		{"no match", core.TransactionFilter{Currency: "CAD"}, nil},
	}
	for _, tc := range cases {
		list, err := s.GetTransactions(ctx, u.ID, tc.filter)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		var got []string
		for _, tx := range list {
			got = append(got, tx.Amount.String())
		}
		if fmt.Sprint(got) != fmt.Sprint(tc.want) {
			t.Fatalf("%s: expected amounts %v, got %v", tc.name, tc.want, got)
		}
	}
}

func testTransactionRoundTrip(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "roundtrip")
	cat, err := s.CreateCategory(ctx, core.NewCategory{Name: "Sales", Type: core.Income, UserID: u.ID})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}

	in := core.NewTransaction{
		Date:        core.NewDate(2024, 5, 10),
		Description: "Consulting services - EU client",
		Amount:      dec("850.00"),
		Currency:    "EUR",
		// stored exactly as supplied, whatever the current rates say
		ConvertedAmount: dec("720.45"),
		Type:            core.Income,
		CategoryID:      &cat.ID,
		UserID:          u.ID,
	}
	created := mustTransaction(t, s, in)
	got, err := s.GetTransaction(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Date.Equal(in.Date.Time) || got.Description != in.Description || got.Currency != "EUR" || got.Type != core.Income {
		t.Fatalf("fields lost: %+v", got)
	}
	if !got.Amount.Equal(in.Amount) || !got.ConvertedAmount.Equal(dec("720.45")) {
		t.Fatalf("amounts changed: %s / %s", got.Amount, got.ConvertedAmount)
	}
	if got.CategoryID == nil || *got.CategoryID != cat.ID {
		t.Fatalf("category lost: %v", got.CategoryID)
	}

	bare := mustTransaction(t, s, newTx(u.ID, core.NewDate(2024, 5, 11), core.Expense, "GBP", "142.50"))
	if bare.CategoryID != nil {
		t.Fatalf("expected nil category, got %v", *bare.CategoryID)
	}

	if _, err := s.GetTransaction(ctx, 9999); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func newReport(userID int64, year, quarter int, status core.ReportStatus) core.NewTaxReport {
	q := core.TaxQuarter{Year: year, Quarter: quarter}
	return core.NewTaxReport{
		UserID:        userID,
		Year:          year,
		Quarter:       quarter,
		StartDate:     q.Start(),
		EndDate:       q.End(),
		TotalIncome:   dec("15000.00"),
		TotalExpenses: dec("4200.00"),
		TaxDue:        dec("2160.00"),
		Status:        status,
	}
}

func testTaxReports(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "reports")

	a, err := s.CreateTaxReport(ctx, newReport(u.ID, 2023, 4, core.StatusSubmitted))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.SubmissionDate != nil || a.HMRCReference != "" {
		t.Fatalf("new report must not carry submission data: %+v", a)
	}
	if a.StartDate.String() != "2024-01-01" || a.EndDate.String() != "2024-03-31" || !a.TaxDue.Equal(dec("2160")) {
		t.Fatalf("fields lost: %+v", a)
	}
	b, _ := s.CreateTaxReport(ctx, newReport(u.ID, 2024, 1, core.StatusDraft))
	c, _ := s.CreateTaxReport(ctx, newReport(u.ID, 2023, 2, core.StatusDraft))
	d, _ := s.CreateTaxReport(ctx, newReport(u.ID, 2024, 1, core.StatusDraft))

	list, err := s.GetTaxReports(ctx, u.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []int64{d.ID, b.ID, a.ID, c.ID}
	if len(list) != len(want) {
		t.Fatalf("expected %d reports, got %d", len(want), len(list))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Fatalf("position %d: expected id %d, got %d", i, id, list[i].ID)
		}
	}

	submitted, err := s.UpdateTaxReport(ctx, b.ID, core.StatusSubmitted, "MTD-ITSA-2024-Q1-ABCDEF12")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if submitted.Status != core.StatusSubmitted || submitted.SubmissionDate == nil || submitted.HMRCReference != "MTD-ITSA-2024-Q1-ABCDEF12" {
		t.Fatalf("unexpected submitted report %+v", submitted)
	}

	confirmed, err := s.UpdateTaxReport(ctx, b.ID, core.StatusConfirmed, "")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != core.StatusConfirmed || confirmed.HMRCReference != "MTD-ITSA-2024-Q1-ABCDEF12" {
		t.Fatalf("reference must survive an empty update: %+v", confirmed)
	}
	if confirmed.SubmissionDate == nil || !confirmed.SubmissionDate.Equal(*submitted.SubmissionDate) {
		t.Fatalf("submission date must be preserved: %v vs %v", confirmed.SubmissionDate, submitted.SubmissionDate)
	}

	reread, err := s.GetTaxReport(ctx, b.ID)
	if err != nil || reread.Status != core.StatusConfirmed {
		t.Fatalf("update not persisted: %+v %v", reread, err)
	}

	if _, err := s.UpdateTaxReport(ctx, 9999, core.StatusSubmitted, "x"); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := s.GetTaxReport(ctx, 9999); !errors.Is(err, core.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func testSubmitKeepsReference(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "resubmit")
	r, err := s.CreateTaxReport(ctx, newReport(u.ID, 2024, 2, core.StatusDraft))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := s.UpdateTaxReport(ctx, r.ID, core.StatusDraft, "MTD-ITSA-2024-Q2-0A1B2C3D"); err != nil {
		t.Fatalf("set reference: %v", err)
	}

	got, err := s.UpdateTaxReport(ctx, r.ID, core.StatusSubmitted, "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if got.HMRCReference != "MTD-ITSA-2024-Q2-0A1B2C3D" {
		t.Errorf("reference = %q, want the earlier one kept", got.HMRCReference)
	}
	if got.Status != core.StatusSubmitted || got.SubmissionDate == nil {
		t.Errorf("submitting must stamp the submission date: %+v", got)
	}
}

// testOrphanReferences checks that rows pointing at a missing user or
// category are refused with a storage error and leave nothing behind.
func testOrphanReferences(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "owner")
	missingCat := int64(12345)

	withCategory := newTx(u.ID, core.NewDate(2024, 5, 1), core.Income, "GBP", "10")
	withCategory.CategoryID = &missingCat

	tests := []struct {
		name string
		call func() error
	}{
		{"category without user", func() error {
			_, err := s.CreateCategory(ctx, core.NewCategory{Name: "Sales", Type: core.Income, UserID: 999})
			return err
		}},
		{"transaction without user", func() error {
			_, err := s.CreateTransaction(ctx, newTx(999, core.NewDate(2024, 5, 1), core.Income, "GBP", "10"))
			return err
		}},
		{"transaction without category", func() error {
			_, err := s.CreateTransaction(ctx, withCategory)
			return err
		}},
		{"report without user", func() error {
			_, err := s.CreateTaxReport(ctx, newReport(999, 2024, 1, core.StatusDraft))
			return err
		}},
	}
	for _, tt := range tests {
		err := tt.call()
		if !errors.Is(err, core.ErrStorage) {
			t.Errorf("%s: expected a storage error, got %v", tt.name, err)
		}
		if errors.Is(err, core.ErrNotFound) || errors.Is(err, core.ErrConflict) {
			t.Errorf("%s: unexpected error kind %v", tt.name, err)
		}
	}

	if cats, _ := s.GetCategories(ctx, 999); len(cats) != 0 {
		t.Errorf("orphan categories stored: %+v", cats)
	}
	if txs, _ := s.GetTransactions(ctx, u.ID, core.TransactionFilter{}); len(txs) != 0 {
		t.Errorf("orphan transactions stored: %+v", txs)
	}
	if reports, _ := s.GetTaxReports(ctx, 999); len(reports) != 0 {
		t.Errorf("orphan reports stored: %+v", reports)
	}
}

func testConcurrentCreates(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "concurrent")
	const n = 20

	var wg sync.WaitGroup
	ids := make(chan int64, n)
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tx, err := s.CreateTransaction(ctx, newTx(u.ID, core.NewDate(2024, 5, 1+i%28), core.Income, "GBP", fmt.Sprint(i+1)))
			if err != nil {
				errs <- err
				return
			}
			ids <- tx.ID
		}(i)
	}
	wg.Wait()
	close(ids)
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent create: %v", err)
	}
	seen := map[int64]bool{}
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %d", id)
		}
		seen[id] = true
	}
	list, err := s.GetTransactions(ctx, u.ID, core.TransactionFilter{})
	if err != nil || len(list) != n {
		t.Fatalf("expected %d stored transactions, got %d (%v)", n, len(list), err)
	}
}
