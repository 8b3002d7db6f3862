// Package date provides a calendar date with day granularity.
package date

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Layout is the ISO 8601 calendar date layout used on the wire and in storage.
const Layout = "2006-01-02"

// Date is a calendar day without a time component. The zero value is "no date".
type Date struct {
	y int
	m time.Month
	d int
}

func New(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{t.Year(), t.Month(), t.Day()}
}

// FromTime keeps the calendar day of t in its own location.
func FromTime(t time.Time) Date {
	return New(t.Date())
}

func Today() Date { return FromTime(time.Now()) }

func Parse(raw string) (Date, error) {
	t, err := time.Parse(Layout, strings.TrimSpace(raw))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", raw, err)
	}
	return FromTime(t), nil
}

func MustParse(raw string) Date {
	d, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Date) Time() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

func (d Date) IsZero() bool { return d.y == 0 && d.m == 0 && d.d == 0 }

func (d Date) Year() int { return d.y }

func (d Date) Month() time.Month { return d.m }

func (d Date) Day() int { return d.d }

// AddDays moves the date by n days, n may be negative.
func (d Date) AddDays(n int) Date { return New(d.y, d.m, d.d+n) }

func (d Date) Before(x Date) bool { return d.Time().Before(x.Time()) }

func (d Date) After(x Date) bool { return d.Time().After(x.Time()) }

func (d Date) Equal(x Date) bool { return d == x }

// DaysUntil returns the number of days from d to x, negative when x is earlier.
func (d Date) DaysUntil(x Date) int {
	return int(x.Time().Sub(d.Time()).Hours() / 24)
}

func (d Date) StartOfMonth() Date { return New(d.y, d.m, 1) }

func (d Date) EndOfMonth() Date { return New(d.y, d.m+1, 0) }

func (d Date) StartOfYear() Date { return New(d.y, time.January, 1) }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(Layout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil || *raw == "" {
		*d = Date{}
		return nil
	}
	parsed, err := Parse(*raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan reads DATE columns as returned by lib/pq.
func (d *Date) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*d = Date{}
		return nil
	case time.Time:
		*d = New(v.Year(), v.Month(), v.Day())
		return nil
	case []byte:
		return d.scanString(string(v))
	case string:
		return d.scanString(v)
	default:
		return fmt.Errorf("cannot scan %T into date", value)
	}
}

func (d *Date) scanString(raw string) error {
	if len(raw) > len(Layout) {
		raw = raw[:len(Layout)]
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.String(), nil
}

// Range is an inclusive span of days.
type Range struct {
	From, To Date
}

// Days lists every day of the range in order, empty when To is before From.
func (r Range) Days() []Date {
	if r.To.Before(r.From) {
		return nil
	}
	days := make([]Date, 0, r.From.DaysUntil(r.To)+1)
	for d := r.From; !d.After(r.To); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

func (r Range) Contains(d Date) bool {
	return !d.Before(r.From) && !d.After(r.To)
}
