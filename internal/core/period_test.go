package core

import (
	"testing"
	"time"
)

func at(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestQuarterFor(t *testing.T) {
	cases := []struct {
		day  Date
		want TaxQuarter
	}{
		{NewDate(2024, 4, 1), TaxQuarter{2024, 1}},
		{NewDate(2024, 6, 30), TaxQuarter{2024, 1}},
		{NewDate(2024, 7, 1), TaxQuarter{2024, 2}},
		{NewDate(2024, 9, 30), TaxQuarter{2024, 2}},
		{NewDate(2024, 10, 1), TaxQuarter{2024, 3}},
		{NewDate(2024, 12, 31), TaxQuarter{2024, 3}},
		{NewDate(2025, 1, 1), TaxQuarter{2024, 4}},
		{NewDate(2025, 3, 31), TaxQuarter{2024, 4}},
	}
	for _, tc := range cases {
		if got := QuarterFor(tc.day.Time); got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.day, tc.want, got)
		}
	}
}

func TestQuarterBoundsAndDeadlines(t *testing.T) {
	cases := []struct {
		q                    TaxQuarter
		start, end, deadline string
	}{
		{TaxQuarter{2024, 1}, "2024-04-01", "2024-06-30", "2024-07-31"},
		{TaxQuarter{2024, 2}, "2024-07-01", "2024-09-30", "2024-10-31"},
		{TaxQuarter{2024, 3}, "2024-10-01", "2024-12-31", "2025-01-31"},
		{TaxQuarter{2024, 4}, "2025-01-01", "2025-03-31", "2025-04-30"},
	}
	for _, tc := range cases {
		if got := tc.q.Start().String(); got != tc.start {
			t.Fatalf("%s start: expected %s, got %s", tc.q, tc.start, got)
		}
		if got := tc.q.End().String(); got != tc.end {
			t.Fatalf("%s end: expected %s, got %s", tc.q, tc.end, got)
		}
		if got := tc.q.Deadline().String(); got != tc.deadline {
			t.Fatalf("%s deadline: expected %s, got %s", tc.q, tc.deadline, got)
		}
	}
}

func TestQuartersTileTheYear(t *testing.T) {
	q := TaxQuarter{2023, 1}
	for i := 0; i < 8; i++ {
		next := q.Next()
		if !next.Start().Equal(q.End().AddDate(0, 0, 1)) {
			t.Fatalf("%s does not follow %s", next, q)
		}
		if next.Previous() != q {
			t.Fatalf("previous of %s is not %s", next, q)
		}
		q = next
	}
}

func TestNextDeadline(t *testing.T) {
	cases := []struct {
		now  string
		want TaxQuarter
	}{
		{"2024-07-15T09:00:00Z", TaxQuarter{2024, 1}},
		{"2024-07-31T23:00:00Z", TaxQuarter{2024, 1}},
		{"2024-08-01T00:00:00Z", TaxQuarter{2024, 2}},
		{"2025-01-10T12:00:00Z", TaxQuarter{2024, 3}},
		{"2025-02-01T12:00:00Z", TaxQuarter{2024, 4}},
		{"2025-04-15T12:00:00Z", TaxQuarter{2024, 4}},
		{"2025-05-01T12:00:00Z", TaxQuarter{2025, 1}},
	}
	for _, tc := range cases {
		now := at(tc.now)
		got := NextDeadline(now)
		if got != tc.want {
			t.Fatalf("%s: expected %s, got %s", tc.now, tc.want, got)
		}
		if got.Deadline().Before(DateOf(now).Time) {
			t.Fatalf("%s: deadline %s already passed", tc.now, got.Deadline())
		}
	}
}

func TestDaysUntil(t *testing.T) {
	deadline := NewDate(2024, 7, 31)
	cases := []struct {
		now  string
		want int
	}{
		{"2024-07-15T00:00:00Z", 16},
		{"2024-07-15T12:00:00Z", 16},
		{"2024-07-30T23:59:00Z", 1},
		{"2024-07-31T00:00:00Z", 0},
		{"2024-07-31T10:00:00Z", 0},
		{"2024-08-02T00:00:00Z", -2},
	}
	for _, tc := range cases {
		if got := DaysUntil(deadline, at(tc.now)); got != tc.want {
			t.Fatalf("%s: expected %d, got %d", tc.now, tc.want, got)
		}
	}
}

func TestIsPrepared(t *testing.T) {
	q := TaxQuarter{2024, 1}
	cases := []struct {
		name    string
		reports []TaxReport
		want    bool
	}{
		{"none", nil, false},
		{"draft", []TaxReport{{Year: 2024, Quarter: 1, Status: StatusDraft}}, true},
		{"submitted", []TaxReport{{Year: 2024, Quarter: 1, Status: StatusSubmitted}}, true},
		{"confirmed only", []TaxReport{{Year: 2024, Quarter: 1, Status: StatusConfirmed}}, false},
		{"other quarter", []TaxReport{{Year: 2024, Quarter: 2, Status: StatusDraft}}, false},
		{"other year", []TaxReport{{Year: 2023, Quarter: 1, Status: StatusSubmitted}}, false},
	}
	for _, tc := range cases {
		if got := IsPrepared(tc.reports, q); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestUpcomingDeadline(t *testing.T) {
	now := at("2024-10-15T00:00:00Z")
	info := UpcomingDeadline(now, []TaxReport{{Year: 2024, Quarter: 2, Status: StatusDraft}})
	if info.Year != 2024 || info.Quarter != 2 {
		t.Fatalf("unexpected quarter %d-Q%d", info.Year, info.Quarter)
	}
	if info.Deadline.String() != "2024-10-31" || info.DaysUntil != 16 || !info.Prepared {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestNewTaxQuarter(t *testing.T) {
	if _, err := NewTaxQuarter(2024, 0); err == nil {
		t.Fatalf("expected error for quarter 0")
	}
	if _, err := NewTaxQuarter(1999, 1); err == nil {
		t.Fatalf("expected error for year 1999")
	}
	if q, err := NewTaxQuarter(2024, 4); err != nil || q.String() != "2024-Q4" {
		t.Fatalf("unexpected %v %v", q, err)
	}
}
