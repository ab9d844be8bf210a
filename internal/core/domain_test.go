package core

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want Date
		ok   bool
	}{
		{"2024-05-01", NewDate(2024, 5, 1), true},
		{" 2024-12-31 ", NewDate(2024, 12, 31), true},
		{"2024-05-01T10:30:00Z", NewDate(2024, 5, 1), true},
		{"2024-05-01T00:30:00+02:00", NewDate(2024, 4, 30), true},
		{"01/05/2024", Date{}, false},
		{"", Date{}, false},
	}
	for _, tc := range cases {
		got, err := ParseDate(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(tc.want.Time) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.want, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestDateJSON(t *testing.T) {
	b, err := json.Marshal(NewDate(2024, 4, 1))
	if err != nil || string(b) != `"2024-04-01"` {
		t.Fatalf("marshal: got %s err=%v", b, err)
	}
	var d Date
	if err := json.Unmarshal([]byte(`"2025-01-31"`), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !d.Equal(NewDate(2025, 1, 31).Time) {
		t.Fatalf("unexpected date %s", d)
	}
	if err := json.Unmarshal([]byte(`20250131`), &d); err == nil {
		t.Fatalf("expected error for numeric date")
	}
}

func TestDateWithin(t *testing.T) {
	start, end := NewDate(2024, 4, 1), NewDate(2024, 6, 30)
	cases := []struct {
		d    Date
		want bool
	}{
		{NewDate(2024, 4, 1), true},
		{NewDate(2024, 6, 30), true},
		{NewDate(2024, 5, 15), true},
		{NewDate(2024, 3, 31), false},
		{NewDate(2024, 7, 1), false},
	}
	for _, tc := range cases {
		if got := tc.d.Within(start, end); got != tc.want {
			t.Fatalf("%s within: expected %v, got %v", tc.d, tc.want, got)
		}
	}
}

func TestUserJSONOmitsPassword(t *testing.T) {
	b, err := json.Marshal(User{ID: 1, Username: "john.smith", Password: "secret123"})
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatal(err)
	}
	if _, ok := m["password"]; ok {
		t.Fatalf("password leaked: %s", b)
	}
	if m["username"] != "john.smith" {
		t.Fatalf("unexpected payload %s", b)
	}
}

func TestNewTransactionValidate(t *testing.T) {
	good := NewTransaction{
		Date:        NewDate(2025, 1, 1),
		Description: "ok",
		Amount:      decimal.RequireFromString("10.00"),
		Currency:    "GBP",
		Type:        Income,
		UserID:      1,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	mutate := func(f func(*NewTransaction)) NewTransaction {
		tx := good
		f(&tx)
		return tx
	}
	bads := []NewTransaction{
		mutate(func(tx *NewTransaction) { tx.Date = Date{} }),
		mutate(func(tx *NewTransaction) { tx.Description = " " }),
		mutate(func(tx *NewTransaction) { tx.Amount = decimal.Zero }),
		mutate(func(tx *NewTransaction) { tx.Amount = decimal.NewFromInt(-5) }),
		mutate(func(tx *NewTransaction) { tx.Currency = "gbp" }),
		mutate(func(tx *NewTransaction) { tx.Currency = "POUND" }),
		mutate(func(tx *NewTransaction) { tx.Type = "transfer" }),
		mutate(func(tx *NewTransaction) { tx.UserID = 0 }),
	}
	for i, tx := range bads {
		err := tx.Validate()
		if err == nil {
			t.Fatalf("case %d expected error", i)
		}
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("case %d expected validation kind, got %v", i, err)
		}
	}
}

func TestValidationCollectsEveryProblem(t *testing.T) {
	err := NewUser{}.Validate()
	var v *ValidationError
	if !errors.As(err, &v) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(v.Problems) != 5 {
		t.Fatalf("expected 5 problems, got %d: %v", len(v.Problems), err)
	}
}

func TestNewCurrencyValidate(t *testing.T) {
	good := NewCurrency{Code: "EUR", Name: "Euro", Symbol: "€", Rate: decimal.RequireFromString("1.18")}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bad := good
	bad.Rate = decimal.Zero
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for zero rate")
	}
}

func TestNewTaxReportValidate(t *testing.T) {
	q := TaxQuarter{Year: 2024, Quarter: 1}
	good := NewTaxReport{UserID: 1, Year: 2024, Quarter: 1, StartDate: q.Start(), EndDate: q.End(), Status: StatusDraft}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	bads := []NewTaxReport{
		{UserID: 1, Year: 2024, Quarter: 5, StartDate: q.Start(), EndDate: q.End(), Status: StatusDraft},
		{UserID: 1, Year: 2024, Quarter: 1, StartDate: q.End(), EndDate: q.Start(), Status: StatusDraft},
		{UserID: 1, Year: 2024, Quarter: 1, StartDate: q.Start(), EndDate: q.End(), Status: "filed"},
		{UserID: 1, Year: 2024, Quarter: 1, StartDate: q.Start(), EndDate: q.End(), Status: StatusDraft, TaxDue: decimal.NewFromInt(-1)},
	}
	for i, r := range bads {
		if err := r.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestErrorKinds(t *testing.T) {
	cases := []struct {
		err  error
		kind error
	}{
		{NotFound("user", 7), ErrNotFound},
		{&ConversionError{From: "JPY", To: "GBP"}, ErrConversion},
		{&StorageError{Op: "get user", Err: errors.New("boom")}, ErrStorage},
		{Conflict("currency", "EUR"), ErrConflict},
		{Conflict("currency", "EUR"), ErrStorage},
		{NewValidationError("amount", "must be positive"), ErrValidation},
	}
	for i, tc := range cases {
		wrapped := errors.Join(errors.New("context"), tc.err)
		if !errors.Is(wrapped, tc.kind) {
			t.Fatalf("case %d: %v is not %v", i, tc.err, tc.kind)
		}
	}
	if errors.Is(NotFound("user", 1), ErrStorage) {
		t.Fatalf("not found must not be a storage failure")
	}
}

func TestStorageFailureKeepsDomainKinds(t *testing.T) {
	nf := NotFound("report", 3)
	if got := StorageFailure("get report", nf); got != nf {
		t.Fatalf("expected not found to pass through, got %v", got)
	}
	raw := errors.New("disk full")
	got := StorageFailure("create user", raw)
	if !errors.Is(got, ErrStorage) || !errors.Is(got, raw) {
		t.Fatalf("expected wrapped storage error, got %v", got)
	}
	if StorageFailure("noop", nil) != nil {
		t.Fatalf("nil must stay nil")
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode(" eur "); got != "EUR" {
		t.Fatalf("got %q", got)
	}
}
