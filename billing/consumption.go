package billing

import (
	"sort"
	"time"
)

// ConsumptionBetween returns the consumption of one meter during the period
// currentKey as the difference between the reading closing that period and the
// reading closing previousKey. previousKey is empty for the first period.
//
// When a period holds no reading the nearest reading outside it is used: the
// first one after the previous period for the current side, the last one before
// the current period for the previous side. Consumption is zero when either
// side is missing or both resolve to the same reading.
func ConsumptionBetween(readings []MeterReading, currentKey, previousKey string, g Granularity, loc *time.Location) float64 {
	if previousKey == "" {
		return 0
	}
	sorted := sortedByDate(readings)
	curStart, curEnd := mustPeriodRange(currentKey, g, loc)
	prevStart, prevEnd := mustPeriodRange(previousKey, g, loc)

	current := lastWithin(sorted, curStart, curEnd)
	if current < 0 {
		current = firstAfter(sorted, prevEnd)
	}
	previous := lastWithin(sorted, prevStart, prevEnd)
	if previous < 0 {
		previous = lastBefore(sorted, curStart)
	}
	if current < 0 || previous < 0 || current == previous {
		return 0
	}
	return sorted[current].Amount - sorted[previous].Amount
}

// ConsumptionWithin estimates the consumption over [start, end] from the
// readings inside it, scaling the observed rate up to the whole period.
func ConsumptionWithin(readings []MeterReading, start, end time.Time) float64 {
	var inside []MeterReading
	for _, r := range readings {
		if !r.Date.Before(start) && !r.Date.After(end) {
			inside = append(inside, r)
		}
	}
	if len(inside) < 2 {
		return 0
	}
	sort.SliceStable(inside, func(i, j int) bool { return inside[i].Date.Before(inside[j].Date) })

	first, last := inside[0], inside[len(inside)-1]
	actual := last.Amount - first.Amount
	span := last.Date.Sub(first.Date)
	if span == 0 {
		return actual
	}
	rate := actual / span.Seconds()
	return rate * end.Sub(start).Seconds()
}

func sortedByDate(readings []MeterReading) []MeterReading {
	out := make([]MeterReading, len(readings))
	copy(out, readings)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// lastWithin, firstAfter and lastBefore return an index into sorted, or -1.

func lastWithin(sorted []MeterReading, start, end time.Time) int {
	found := -1
	for i, r := range sorted {
		if r.Date.After(end) {
			break
		}
		if !r.Date.Before(start) {
			found = i
		}
	}
	return found
}

func firstAfter(sorted []MeterReading, t time.Time) int {
	for i, r := range sorted {
		if r.Date.After(t) {
			return i
		}
	}
	return -1
}

func lastBefore(sorted []MeterReading, t time.Time) int {
	found := -1
	for i, r := range sorted {
		if !r.Date.Before(t) {
			break
		}
		found = i
	}
	return found
}
