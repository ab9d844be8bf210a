package core

import (
	"fmt"
	"math"
	"time"
)

// TaxQuarter identifies one MTD quarter. Year is the calendar year in which
// the tax year starts, so quarter 4 of 2024 runs from January to March 2025.
type TaxQuarter struct {
	Year    int `json:"year"`
	Quarter int `json:"quarter"`
}

// NewTaxQuarter validates the pair before returning it.
func NewTaxQuarter(year, quarter int) (TaxQuarter, error) {
	q := TaxQuarter{Year: year, Quarter: quarter}
	if err := q.Validate(); err != nil {
		return TaxQuarter{}, err
	}
	return q, nil
}

func (q TaxQuarter) Validate() error {
	v := &ValidationError{}
	if q.Year < 2000 || q.Year > 2100 {
		v.Add("year", "out of range")
	}
	if q.Quarter < 1 || q.Quarter > 4 {
		v.Add("quarter", "must be between 1 and 4")
	}
	return v.OrNil()
}

func (q TaxQuarter) String() string {
	return fmt.Sprintf("%d-Q%d", q.Year, q.Quarter)
}

// QuarterFor returns the quarter containing t's calendar day.
func QuarterFor(t time.Time) TaxQuarter {
	d := DateOf(t)
	m := int(d.Month())
	if m <= 3 {
		return TaxQuarter{Year: d.Year() - 1, Quarter: 4}
	}
	return TaxQuarter{Year: d.Year(), Quarter: (m-4)/3 + 1}
}

// Start is the first day of the quarter.
func (q TaxQuarter) Start() Date {
	// Q1 starts in April; each quarter adds three months and Q4 rolls into
	// the next calendar year through time.Date normalisation.
	return NewDate(q.Year, 4+(q.Quarter-1)*3, 1)
}

// End is the last day of the quarter.
func (q TaxQuarter) End() Date {
	s := q.Start()
	return NewDate(s.Year(), int(s.Month())+3, 0)
}

// Deadline is the last day of the month following the quarter end.
func (q TaxQuarter) Deadline() Date {
	e := q.End()
	return NewDate(e.Year(), int(e.Month())+2, 0)
}

func (q TaxQuarter) Previous() TaxQuarter {
	if q.Quarter == 1 {
		return TaxQuarter{Year: q.Year - 1, Quarter: 4}
	}
	return TaxQuarter{Year: q.Year, Quarter: q.Quarter - 1}
}

func (q TaxQuarter) Next() TaxQuarter {
	if q.Quarter == 4 {
		return TaxQuarter{Year: q.Year + 1, Quarter: 1}
	}
	return TaxQuarter{Year: q.Year, Quarter: q.Quarter + 1}
}

// NextDeadline returns the quarter whose deadline is the earliest one on or
// after now's calendar day.
func NextDeadline(now time.Time) TaxQuarter {
	today := DateOf(now)
	current := QuarterFor(today.Time)
	prev := current.Previous()
	if !prev.Deadline().Before(today.Time) {
		return prev
	}
	return current
}

// DaysUntil is the ceiling of the days between now and the start of the
// deadline day. It goes negative once the deadline has passed.
func DaysUntil(deadline Date, now time.Time) int {
	return int(math.Ceil(deadline.Sub(now).Hours() / 24))
}

// IsPrepared reports whether a draft or submitted report already exists for q.
func IsPrepared(reports []TaxReport, q TaxQuarter) bool {
	for _, r := range reports {
		if r.Year != q.Year || r.Quarter != q.Quarter {
			continue
		}
		if r.Status == StatusDraft || r.Status == StatusSubmitted {
			return true
		}
	}
	return false
}

// DeadlineInfo summarises the upcoming filing obligation for a user.
type DeadlineInfo struct {
	Year      int  `json:"year"`
	Quarter   int  `json:"quarter"`
	StartDate Date `json:"startDate"`
	EndDate   Date `json:"endDate"`
	Deadline  Date `json:"deadline"`
	DaysUntil int  `json:"daysUntil"`
	Prepared  bool `json:"prepared"`
}

// UpcomingDeadline combines NextDeadline, DaysUntil and IsPrepared.
func UpcomingDeadline(now time.Time, reports []TaxReport) DeadlineInfo {
	q := NextDeadline(now)
	return DeadlineInfo{
		Year:      q.Year,
		Quarter:   q.Quarter,
		StartDate: q.Start(),
		EndDate:   q.End(),
		Deadline:  q.Deadline(),
		DaysUntil: DaysUntil(q.Deadline(), now),
		Prepared:  IsPrepared(reports, q),
	}
}
