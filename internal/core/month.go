package core

import (
	"fmt"
	"time"
)

// MonthKey identifies a calendar month, canonically "YYYY-MM".
type MonthKey string

// MonthOf returns the month key of t as seen in loc.
func MonthOf(t time.Time, loc *time.Location) MonthKey {
	if loc == nil {
		loc = time.Local
	}
	t = t.In(loc)
	return MonthKey(fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month())))
}

// ParseMonthKey validates s as exactly four digits, a hyphen and two digits
// with a month in 01..12.
func ParseMonthKey(s string) (MonthKey, error) {
	if len(s) != 7 || s[4] != '-' {
		return "", ErrInvalidMonth
	}
	for i, r := range s {
		if i == 4 {
			continue
		}
		if r < '0' || r > '9' {
			return "", ErrInvalidMonth
		}
	}
	month := int(s[5]-'0')*10 + int(s[6]-'0')
	if month < 1 || month > 12 {
		return "", ErrInvalidMonth
	}
	return MonthKey(s), nil
}

// YearMonth splits a valid key into its parts.
func (k MonthKey) YearMonth() (int, time.Month) {
	year := int(k[0]-'0')*1000 + int(k[1]-'0')*100 + int(k[2]-'0')*10 + int(k[3]-'0')
	month := int(k[5]-'0')*10 + int(k[6]-'0')
	return year, time.Month(month)
}

// Window returns the month as the half-open interval [start, end) in loc.
// end-1ns is the last instant of the month, so this covers exactly the
// inclusive start-of-month to end-of-month range.
func (k MonthKey) Window(loc *time.Location) (start, end time.Time) {
	if loc == nil {
		loc = time.Local
	}
	year, month := k.YearMonth()
	start = time.Date(year, month, 1, 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 1, 0)
}

// Contains reports whether t falls inside the month in loc.
func (k MonthKey) Contains(t time.Time, loc *time.Location) bool {
	start, end := k.Window(loc)
	return !t.Before(start) && t.Before(end)
}

func (k MonthKey) String() string {
	return string(k)
}
