package core

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	SoleTrader BusinessType = "sole_trader"
	Landlord   BusinessType = "landlord"

	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	StatusDraft     ReportStatus = "draft"
	StatusSubmitted ReportStatus = "submitted"
	StatusConfirmed ReportStatus = "confirmed"
)

// BaseCurrency is the currency every exchange rate is expressed against.
const BaseCurrency = "GBP"

const dateLayout = "2006-01-02"

type (
	BusinessType    string
	TransactionType string
	ReportStatus    string

	// Date is a calendar day stored as midnight UTC.
	Date struct {
		time.Time
	}

	User struct {
		ID           int64        `json:"id"`
		Username     string       `json:"username"`
		Password     string       `json:"-"`
		FullName     string       `json:"fullName"`
		BusinessType BusinessType `json:"businessType"`
		BaseCurrency string       `json:"baseCurrency"`
	}

	NewUser struct {
		Username     string
		Password     string
		FullName     string
		BusinessType BusinessType
		BaseCurrency string
	}

	// Currency is process-wide reference data. Rate is units of this
	// currency per one unit of BaseCurrency.
	Currency struct {
		Code        string          `json:"code"`
		Name        string          `json:"name"`
		Symbol      string          `json:"symbol"`
		Rate        decimal.Decimal `json:"rate"`
		LastUpdated time.Time       `json:"lastUpdated"`
	}

	NewCurrency struct {
		Code   string
		Name   string
		Symbol string
		Rate   decimal.Decimal
	}

	Category struct {
		ID     int64           `json:"id"`
		Name   string          `json:"name"`
		Type   TransactionType `json:"type"`
		UserID int64           `json:"userId"`
	}

	NewCategory struct {
		Name   string
		Type   TransactionType
		UserID int64
	}

	// Transaction keeps the original amount and its value in the owner's
	// base currency, computed when the transaction was recorded.
	Transaction struct {
		ID              int64           `json:"id"`
		Date            Date            `json:"date"`
		Description     string          `json:"description"`
		Amount          decimal.Decimal `json:"amount"`
		Currency        string          `json:"currency"`
		ConvertedAmount decimal.Decimal `json:"convertedAmount"`
		Type            TransactionType `json:"type"`
		CategoryID      *int64          `json:"categoryId"`
		UserID          int64           `json:"userId"`
	}

	NewTransaction struct {
		Date            Date
		Description     string
		Amount          decimal.Decimal
		Currency        string
		ConvertedAmount decimal.Decimal
		Type            TransactionType
		CategoryID      *int64
		UserID          int64
	}

	// TransactionFilter fields are optional; the ones that are set are ANDed.
	TransactionFilter struct {
		StartDate *Date
		EndDate   *Date
		Type      TransactionType
		Currency  string
	}

	TaxReport struct {
		ID             int64           `json:"id"`
		UserID         int64           `json:"userId"`
		Year           int             `json:"year"`
		Quarter        int             `json:"quarter"`
		StartDate      Date            `json:"startDate"`
		EndDate        Date            `json:"endDate"`
		TotalIncome    decimal.Decimal `json:"totalIncome"`
		TotalExpenses  decimal.Decimal `json:"totalExpenses"`
		TaxDue         decimal.Decimal `json:"taxDue"`
		Status         ReportStatus    `json:"status"`
		SubmissionDate *time.Time      `json:"submissionDate"`
		HMRCReference  string          `json:"hmrcReference,omitempty"`
	}

	NewTaxReport struct {
		UserID        int64
		Year          int
		Quarter       int
		StartDate     Date
		EndDate       Date
		TotalIncome   decimal.Decimal
		TotalExpenses decimal.Decimal
		TaxDue        decimal.Decimal
		Status        ReportStatus
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	t = t.UTC()
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// ParseDate accepts YYYY-MM-DD or a full RFC 3339 timestamp.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(dateLayout, s); err == nil {
		return Date{Time: t}, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: expected YYYY-MM-DD", s)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return d.Format(dateLayout)
}

// IsEmpty returns true if the date is zero (for optional dates)
func (d Date) IsEmpty() bool {
	return d.IsZero()
}

// Within reports whether start <= d <= end.
func (d Date) Within(start, end Date) bool {
	return !d.Before(start.Time) && !d.After(end.Time)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("date must be a string: %w", err)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (b BusinessType) IsValid() bool {
	return b == SoleTrader || b == Landlord
}

func (t TransactionType) IsValid() bool {
	return t == Income || t == Expense
}

func (s ReportStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusConfirmed:
		return true
	}
	return false
}

// NormalizeCode upper-cases and trims a currency code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func validCode(code string) bool {
	if len(code) != 3 {
		return false
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}

func (u NewUser) Validate() error {
	v := &ValidationError{}
	if strings.TrimSpace(u.Username) == "" {
		v.Add("username", "is required")
	}
	if len(u.Password) < 8 {
		v.Add("password", "must be at least 8 characters")
	}
	if strings.TrimSpace(u.FullName) == "" {
		v.Add("fullName", "is required")
	}
	if !u.BusinessType.IsValid() {
		v.Add("businessType", "must be sole_trader or landlord")
	}
	if !validCode(u.BaseCurrency) {
		v.Add("baseCurrency", "must be a 3-letter currency code")
	}
	return v.OrNil()
}

func (c NewCurrency) Validate() error {
	v := &ValidationError{}
	if !validCode(c.Code) {
		v.Add("code", "must be a 3-letter currency code")
	}
	if strings.TrimSpace(c.Name) == "" {
		v.Add("name", "is required")
	}
	if strings.TrimSpace(c.Symbol) == "" {
		v.Add("symbol", "is required")
	}
	if !c.Rate.IsPositive() {
		v.Add("rate", "must be positive")
	}
	return v.OrNil()
}

func (c NewCategory) Validate() error {
	v := &ValidationError{}
	if strings.TrimSpace(c.Name) == "" {
		v.Add("name", "is required")
	}
	if len(c.Name) > 100 {
		v.Add("name", "too long (max 100 characters)")
	}
	if !c.Type.IsValid() {
		v.Add("type", "must be income or expense")
	}
	if c.UserID <= 0 {
		v.Add("userId", "is required")
	}
	return v.OrNil()
}

func (t NewTransaction) Validate() error {
	v := &ValidationError{}
	if t.Date.IsZero() {
		v.Add("date", "is required")
	}
	if strings.TrimSpace(t.Description) == "" {
		v.Add("description", "is required")
	}
	if len(t.Description) > 200 {
		v.Add("description", "too long (max 200 characters)")
	}
	if !t.Amount.IsPositive() {
		v.Add("amount", "must be positive")
	}
	if !validCode(t.Currency) {
		v.Add("currency", "must be a 3-letter currency code")
	}
	if t.ConvertedAmount.IsNegative() {
		v.Add("convertedAmount", "must not be negative")
	}
	if !t.Type.IsValid() {
		v.Add("type", "must be income or expense")
	}
	if t.UserID <= 0 {
		v.Add("userId", "is required")
	}
	return v.OrNil()
}

func (r NewTaxReport) Validate() error {
	v := &ValidationError{}
	if r.UserID <= 0 {
		v.Add("userId", "is required")
	}
	if r.Year < 2000 || r.Year > 2100 {
		v.Add("year", "out of range")
	}
	if r.Quarter < 1 || r.Quarter > 4 {
		v.Add("quarter", "must be between 1 and 4")
	}
	if r.StartDate.IsZero() || r.EndDate.IsZero() {
		v.Add("period", "start and end dates are required")
	} else if r.EndDate.Before(r.StartDate.Time) {
		v.Add("period", "end date must not be before start date")
	}
	if r.TaxDue.IsNegative() {
		v.Add("taxDue", "must not be negative")
	}
	if !r.Status.IsValid() {
		v.Add("status", "must be draft, submitted or confirmed")
	}
	return v.OrNil()
}

// Matches reports whether tx satisfies every set field of f.
func (f TransactionFilter) Matches(tx Transaction) bool {
	if f.StartDate != nil && tx.Date.Before(f.StartDate.Time) {
		return false
	}
	if f.EndDate != nil && tx.Date.After(f.EndDate.Time) {
		return false
	}
	if f.Type != "" && tx.Type != f.Type {
		return false
	}
	if f.Currency != "" && tx.Currency != f.Currency {
		return false
	}
	return true
}
