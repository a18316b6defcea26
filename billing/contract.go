package billing

import "time"

// ResolveContract picks the contract for energyType that covers the period
// [start, end]. When several overlap the period the one with the longest
// overlap wins; ties go to the earliest in contracts.
func ResolveContract(start, end time.Time, energyType EnergyType, contracts []Contract) (Contract, bool) {
	var (
		best        Contract
		bestOverlap time.Duration
		found       bool
	)
	for _, c := range contracts {
		if c.EnergyType != energyType {
			continue
		}
		cEnd := c.end()
		if c.StartDate.After(end) || cEnd.Before(start) {
			continue
		}
		overlap := minTime(cEnd, end).Sub(maxTime(c.StartDate, start))
		if !found || overlap > bestOverlap {
			best, bestOverlap, found = c, overlap, true
		}
	}
	return best, found
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
