// Package datekey handles calendar-day keys ("YYYY-MM-DD") and the range
// arithmetic built on top of them.
package datekey

import (
	"fmt"
	"strconv"
	"time"
)

const Layout = "2006-01-02"

const (
	weekPrefix = "week:"
	yearPrefix = "year:"
)

func Format(t time.Time) string {
	return t.Format(Layout)
}

// FromMillis returns the local calendar day that contains the epoch-ms instant.
func FromMillis(ms int64, loc *time.Location) string {
	return Format(time.UnixMilli(ms).In(loc))
}

// Parse returns local midnight of the given day.
func Parse(key string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(Layout, key, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date key %q: %w", key, err)
	}
	return t, nil
}

// DayBounds returns [start, end) of the local day in epoch milliseconds.
func DayBounds(key string, loc *time.Location) (int64, int64, error) {
	day, err := Parse(key, loc)
	if err != nil {
		return 0, 0, err
	}
	next := time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, loc)
	return day.UnixMilli(), next.UnixMilli(), nil
}

func AddDays(key string, n int) (string, error) {
	day, err := Parse(key, time.UTC)
	if err != nil {
		return "", err
	}
	return Format(day.AddDate(0, 0, n)), nil
}

// WeekStart returns the Monday of the ISO week containing key.
func WeekStart(key string) (string, error) {
	day, err := Parse(key, time.UTC)
	if err != nil {
		return "", err
	}
	offset := (int(day.Weekday()) + 6) % 7
	return Format(day.AddDate(0, 0, -offset)), nil
}

// WeekSpan returns the Monday and Sunday of the ISO week containing key.
func WeekSpan(key string) (string, string, error) {
	start, err := WeekStart(key)
	if err != nil {
		return "", "", err
	}
	end, err := AddDays(start, 6)
	if err != nil {
		return "", "", err
	}
	return start, end, nil
}

func YearSpan(year int) (string, string) {
	return fmt.Sprintf("%04d-01-01", year), fmt.Sprintf("%04d-12-31", year)
}

func Year(key string) (int, error) {
	day, err := Parse(key, time.UTC)
	if err != nil {
		return 0, err
	}
	return day.Year(), nil
}

func DayOfYear(key string) (int, error) {
	day, err := Parse(key, time.UTC)
	if err != nil {
		return 0, err
	}
	return day.YearDay(), nil
}

func DaysInYear(year int) int {
	return time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC).YearDay()
}

func WeekRangeKey(weekStart string) string {
	return weekPrefix + weekStart
}

func YearRangeKey(year int) string {
	return yearPrefix + strconv.Itoa(year)
}

// Range lists every day key in [from, to]; an inverted range is empty.
func Range(from, to string) ([]string, error) {
	start, err := Parse(from, time.UTC)
	if err != nil {
		return nil, err
	}
	end, err := Parse(to, time.UTC)
	if err != nil {
		return nil, err
	}
	keys := []string{}
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		keys = append(keys, Format(day))
	}
	return keys, nil
}

func Valid(key string) bool {
	_, err := time.Parse(Layout, key)
	return err == nil
}
