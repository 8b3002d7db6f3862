// Package recurrence schedules repeating transactions and subscription renewals.
//
// Intervals are fixed day offsets: a "month" is 30 days and a "year" 365.
// Dates drift against the calendar over time; that is accepted.
package recurrence

import (
	"errors"

	"ledger/internal/date"
)

var (
	ErrUnknownType  = errors.New("unknown recurrence type")
	ErrUnknownCycle = errors.New("unknown billing cycle")
)

// Type is the recurrence vocabulary of income and expense templates.
type Type string

const (
	None      Type = "none"
	Daily     Type = "daily"
	Weekly    Type = "weekly"
	Monthly   Type = "monthly"
	Quarterly Type = "quarterly"
	Yearly    Type = "yearly"
)

var typeDays = map[Type]int{
	Daily:     1,
	Weekly:    7,
	Monthly:   30,
	Quarterly: 90,
	Yearly:    365,
}

func ParseType(raw string) (Type, error) {
	t := Type(raw)
	if t == "" {
		return None, nil
	}
	if t == None {
		return t, nil
	}
	if _, ok := typeDays[t]; !ok {
		return "", ErrUnknownType
	}
	return t, nil
}

// Days returns the interval length, zero for None.
func (t Type) Days() int { return typeDays[t] }

// Next is from plus one interval.
func Next(from date.Date, t Type) (date.Date, error) {
	days, ok := typeDays[t]
	if !ok {
		return date.Date{}, ErrUnknownType
	}
	return from.AddDays(days), nil
}

// Cycle is the billing vocabulary of subscriptions.
type Cycle string

const (
	CycleMonthly      Cycle = "monthly"
	CycleQuarterly    Cycle = "quarterly"
	CycleSemiAnnually Cycle = "semi_annually"
	CycleYearly       Cycle = "yearly"
)

var cycleDays = map[Cycle]int{
	CycleMonthly:      30,
	CycleQuarterly:    90,
	CycleSemiAnnually: 180,
	CycleYearly:       365,
}

// cycleMonths is used to express a cycle's cost per month.
var cycleMonths = map[Cycle]int64{
	CycleMonthly:      1,
	CycleQuarterly:    3,
	CycleSemiAnnually: 6,
	CycleYearly:       12,
}

func ParseCycle(raw string) (Cycle, error) {
	c := Cycle(raw)
	if _, ok := cycleDays[c]; !ok {
		return "", ErrUnknownCycle
	}
	return c, nil
}

func (c Cycle) Days() int { return cycleDays[c] }

func (c Cycle) Months() int64 { return cycleMonths[c] }

func NextBilling(from date.Date, c Cycle) (date.Date, error) {
	days, ok := cycleDays[c]
	if !ok {
		return date.Date{}, ErrUnknownCycle
	}
	return from.AddDays(days), nil
}

// Schedule is the recurrence state carried by a template record.
type Schedule struct {
	Recurring bool
	Type      Type
	Start     date.Date
	Next      *date.Date
	End       *date.Date
}

// Advance moves the schedule one interval forward from Next, or from Start
// when Next is unset. Crossing End makes the schedule terminal: Recurring
// becomes false and Next nil.
func Advance(s Schedule) (Schedule, error) {
	if !s.Recurring || s.Type == None || s.Type == "" {
		s.Recurring = false
		s.Next = nil
		return s, nil
	}
	from := s.Start
	if s.Next != nil {
		from = *s.Next
	}
	next, err := Next(from, s.Type)
	if err != nil {
		return s, err
	}
	if s.End != nil && next.After(*s.End) {
		s.Recurring = false
		s.Next = nil
		return s, nil
	}
	s.Next = &next
	return s, nil
}

// Due reports whether a recurring schedule has an occurrence on or before asOf.
func (s Schedule) Due(asOf date.Date) bool {
	return s.Recurring && s.Next != nil && !s.Next.After(asOf)
}
