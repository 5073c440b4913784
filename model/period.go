package model

import (
	"fmt"
	"time"
)

// Period keys identify one settlement run. Weekly keys use the ISO week
// ("2025-W10"), quarterly keys the calendar quarter ("2025-Q1"). Both are
// produced and parsed only here so every component agrees on the format.

// WeekKeyOf returns the ISO week key for the given time.
func WeekKeyOf(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// PrevWeekKey returns the key of the ISO week before the given time.
// Used by the cron entry point to settle the week that just closed.
func PrevWeekKey(t time.Time) string {
	return WeekKeyOf(t.AddDate(0, 0, -7))
}

// ParseWeekKey validates and splits a "YYYY-Www" key.
func ParseWeekKey(key string) (year int, week int, err error) {
	if _, err = fmt.Sscanf(key, "%4d-W%2d", &year, &week); err != nil {
		return 0, 0, fmt.Errorf("invalid week key %q", key)
	}
	if len(key) != 8 || key[4] != '-' || key[5] != 'W' {
		return 0, 0, fmt.Errorf("invalid week key %q", key)
	}
	if week < 1 || week > isoWeeksIn(year) || year < 2000 {
		return 0, 0, fmt.Errorf("invalid week key %q", key)
	}
	return year, week, nil
}

// isoWeeksIn returns the number of ISO weeks in a year, 52 or 53.
// Dec 28th is always inside the year's last ISO week.
func isoWeeksIn(year int) int {
	_, week := time.Date(year, 12, 28, 0, 0, 0, 0, time.UTC).ISOWeek()
	return week
}

// WeekKeyRange returns the [from, to) UTC window of an ISO week key.
func WeekKeyRange(key string) (from, to time.Time, err error) {
	year, week, err := ParseWeekKey(key)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	// Jan 4th is always inside ISO week 1; walk back to its Monday.
	jan4 := time.Date(year, 1, 4, 0, 0, 0, 0, time.UTC)
	weekday := int(jan4.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	week1Monday := jan4.AddDate(0, 0, 1-weekday)
	from = week1Monday.AddDate(0, 0, (week-1)*7)
	return from, from.AddDate(0, 0, 7), nil
}

// QuarterKeyRange returns the [from, to) UTC window of a quarter key.
func QuarterKeyRange(key string) (from, to time.Time, err error) {
	year, quarter, err := ParseQuarterKey(key)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	from = time.Date(year, time.Month((quarter-1)*3+1), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 3, 0), nil
}

// QuarterKeyOf returns the quarter key for the given time.
func QuarterKeyOf(t time.Time) string {
	quarter := (int(t.Month())-1)/3 + 1
	return fmt.Sprintf("%04d-Q%d", t.Year(), quarter)
}

// PrevQuarterKey returns the key of the quarter before the given time.
func PrevQuarterKey(t time.Time) string {
	year := t.Year()
	quarter := (int(t.Month())-1)/3 + 1
	quarter--
	if quarter == 0 {
		quarter = 4
		year--
	}
	return fmt.Sprintf("%04d-Q%d", year, quarter)
}

// ParseQuarterKey validates and splits a "YYYY-Qn" key.
func ParseQuarterKey(key string) (year int, quarter int, err error) {
	if _, err = fmt.Sscanf(key, "%4d-Q%1d", &year, &quarter); err != nil {
		return 0, 0, fmt.Errorf("invalid quarter key %q", key)
	}
	if len(key) != 7 || key[4] != '-' || key[5] != 'Q' {
		return 0, 0, fmt.Errorf("invalid quarter key %q", key)
	}
	if quarter < 1 || quarter > 4 || year < 2000 {
		return 0, 0, fmt.Errorf("invalid quarter key %q", key)
	}
	return year, quarter, nil
}
