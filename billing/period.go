package billing

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseGranularity accepts "monthly" or "yearly" in any case.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case Monthly, Yearly:
		return g, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidGranularity, s)
	}
}

func (g Granularity) valid() bool {
	return g == Monthly || g == Yearly
}

// Period keys carry four-digit years.
const (
	minYear = 0
	maxYear = 9999
)

func yearInRange(year int) bool {
	return year >= minYear && year <= maxYear
}

// PeriodKeyOf returns the key of the period containing date, "YYYY-MM" for
// monthly and "YYYY" for yearly periods.
func PeriodKeyOf(date time.Time, g Granularity, loc *time.Location) string {
	d := date.In(location(loc))
	if g == Yearly {
		return fmt.Sprintf("%04d", d.Year())
	}
	return fmt.Sprintf("%04d-%02d", d.Year(), int(d.Month()))
}

// PeriodRange returns the first and last instant of the period named by key.
func PeriodRange(key string, g Granularity, loc *time.Location) (time.Time, time.Time, error) {
	year, month, err := parsePeriodKey(key, g)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, location(loc))
	var next time.Time
	if g == Yearly {
		next = start.AddDate(1, 0, 0)
	} else {
		next = start.AddDate(0, 1, 0)
	}
	return start, next.Add(-time.Nanosecond), nil
}

// NextPeriodKey returns the key of the period immediately after key.
func NextPeriodKey(key string, g Granularity) (string, error) {
	year, month, err := parsePeriodKey(key, g)
	if err != nil {
		return "", err
	}
	if (g == Yearly || month == time.December) && !yearInRange(year+1) {
		return "", fmt.Errorf("%w: no period after %q", ErrInvalidPeriodKey, key)
	}
	if g == Yearly {
		return fmt.Sprintf("%04d", year+1), nil
	}
	if month == time.December {
		return fmt.Sprintf("%04d-01", year+1), nil
	}
	return fmt.Sprintf("%04d-%02d", year, int(month)+1), nil
}

func parsePeriodKey(key string, g Granularity) (int, time.Month, error) {
	switch g {
	case Yearly:
		if len(key) != 4 {
			return 0, 0, fmt.Errorf("%w: %q is not YYYY", ErrInvalidPeriodKey, key)
		}
		year, err := strconv.Atoi(key)
		if err != nil || !yearInRange(year) {
			return 0, 0, fmt.Errorf("%w: %q is not a year", ErrInvalidPeriodKey, key)
		}
		return year, time.January, nil
	case Monthly:
		if len(key) != 7 || key[4] != '-' {
			return 0, 0, fmt.Errorf("%w: %q is not YYYY-MM", ErrInvalidPeriodKey, key)
		}
		year, err := strconv.Atoi(key[:4])
		if err != nil || !yearInRange(year) {
			return 0, 0, fmt.Errorf("%w: %q has no valid year", ErrInvalidPeriodKey, key)
		}
		month, err := strconv.Atoi(key[5:])
		if err != nil || month < 1 || month > 12 {
			return 0, 0, fmt.Errorf("%w: %q has no valid month", ErrInvalidPeriodKey, key)
		}
		return year, time.Month(month), nil
	default:
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidGranularity, g)
	}
}

// Keys handed to these come from PeriodKeyOf or NextPeriodKey, so a parse
// failure is a bug in the caller.

func mustPeriodRange(key string, g Granularity, loc *time.Location) (time.Time, time.Time) {
	start, end, err := PeriodRange(key, g, loc)
	if err != nil {
		panic(err)
	}
	return start, end
}

func mustNextPeriodKey(key string, g Granularity) string {
	next, err := NextPeriodKey(key, g)
	if err != nil {
		panic(err)
	}
	return next
}

// keysBetween lists every key from first to last inclusive.
func keysBetween(first, last string, g Granularity) []string {
	var keys []string
	if first > last {
		return keys
	}
	for k := first; ; k = mustNextPeriodKey(k, g) {
		keys = append(keys, k)
		if k == last {
			return keys
		}
	}
}

// yearKeys lists the period keys making up the calendar years from..to.
func yearKeys(from, to int, g Granularity) []string {
	if from > to {
		return nil
	}
	if g == Yearly {
		return keysBetween(fmt.Sprintf("%04d", from), fmt.Sprintf("%04d", to), g)
	}
	return keysBetween(fmt.Sprintf("%04d-01", from), fmt.Sprintf("%04d-12", to), g)
}

func location(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
