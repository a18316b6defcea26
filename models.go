package main

import (
	"sort"
	"time"

	"github.com/mgazza/energy-costs/billing"
)

// MeterInfo identifies a meter point on an Octopus account.
type MeterInfo struct {
	ProductCode  string
	TariffCode   string
	SerialNumber string
	Mpan         string // used for both mpan/mprn
}

// UnitRate is a unit price valid over an interval. Nil bounds are open.
type UnitRate struct {
	Rate      float64
	ValidFrom *time.Time
	ValidTo   *time.Time
}

// usageSample is energy used in one interval starting at At, in kWh.
type usageSample struct {
	At  time.Time
	KWh float64
}

// cumulativeReadings turns interval usage into one cumulative reading per day,
// dated at the last second of that day in loc.
func cumulativeReadings(samples []usageSample, energyType billing.EnergyType, loc *time.Location) []billing.MeterReading {
	sorted := make([]usageSample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].At.Before(sorted[j].At) })

	var readings []billing.MeterReading
	var total float64
	for i, s := range sorted {
		total += s.KWh
		day := endOfDay(s.At, loc)
		if i+1 < len(sorted) && endOfDay(sorted[i+1].At, loc).Equal(day) {
			continue
		}
		readings = append(readings, billing.MeterReading{Date: day, EnergyType: energyType, Amount: total})
	}
	return readings
}

// lastPerDay keeps the highest value of an already cumulative counter for each
// day in loc.
func lastPerDay(samples []usageSample, energyType billing.EnergyType, loc *time.Location) []billing.MeterReading {
	byDay := make(map[time.Time]float64)
	for _, s := range samples {
		day := endOfDay(s.At, loc)
		if v, ok := byDay[day]; !ok || s.KWh > v {
			byDay[day] = s.KWh
		}
	}

	readings := make([]billing.MeterReading, 0, len(byDay))
	for day, v := range byDay {
		readings = append(readings, billing.MeterReading{Date: day, EnergyType: energyType, Amount: v})
	}
	sort.Slice(readings, func(i, j int) bool { return readings[i].Date.Before(readings[j].Date) })
	return readings
}

func truncateToMidnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time, loc *time.Location) time.Time {
	return truncateToMidnight(t.In(loc)).AddDate(0, 0, 1).Add(-time.Second)
}

// unitRatesToContracts prices energyType with each rate as the working price.
// A rate without a start begins at from. Back to back rates with the same
// price are merged into one contract.
func unitRatesToContracts(rates []UnitRate, energyType billing.EnergyType, basePrice float64, from time.Time) []billing.Contract {
	contracts := make([]billing.Contract, 0, len(rates))
	for _, r := range rates {
		start := from
		if r.ValidFrom != nil {
			start = *r.ValidFrom
		}
		contracts = append(contracts, billing.Contract{
			EnergyType:   energyType,
			StartDate:    start,
			EndDate:      r.ValidTo,
			BasePrice:    basePrice,
			WorkingPrice: r.Rate,
		})
	}
	sort.SliceStable(contracts, func(i, j int) bool { return contracts[i].StartDate.Before(contracts[j].StartDate) })

	merged := contracts[:0]
	for _, c := range contracts {
		if n := len(merged); n > 0 {
			last := &merged[n-1]
			if last.EndDate != nil && last.EndDate.Equal(c.StartDate) && last.WorkingPrice == c.WorkingPrice {
				last.EndDate = c.EndDate
				continue
			}
		}
		merged = append(merged, c)
	}
	return merged
}

// farFuture stands in for the end of an open contract while measuring overlaps.
var farFuture = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// blendContracts replaces contracts with one contract per energy type and
// period of g touching [from, to]. Its working price is the mean of the
// overlapping working prices weighted by overlap, and its base price is that
// of the longest overlap. Half-hourly tariffs thus price a whole period
// instead of its first slot.
func blendContracts(contracts []billing.Contract, g billing.Granularity, loc *time.Location, from, to time.Time) []billing.Contract {
	byType := make(map[billing.EnergyType][]billing.Contract)
	var types []billing.EnergyType
	for _, c := range contracts {
		if _, ok := byType[c.EnergyType]; !ok {
			types = append(types, c.EnergyType)
		}
		byType[c.EnergyType] = append(byType[c.EnergyType], c)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	var blended []billing.Contract
	first, last := billing.PeriodKeyOf(from, g, loc), billing.PeriodKeyOf(to, g, loc)
	if first > last {
		return blended
	}
	for key := first; ; {
		start, end, err := billing.PeriodRange(key, g, loc)
		if err != nil {
			break
		}
		for _, t := range types {
			if c, ok := blendPeriod(byType[t], start, end); ok {
				blended = append(blended, c)
			}
		}
		if key == last {
			break
		}
		if key, err = billing.NextPeriodKey(key, g); err != nil {
			break
		}
	}
	return blended
}

func blendPeriod(contracts []billing.Contract, start, end time.Time) (billing.Contract, bool) {
	var (
		weighted, covered float64
		longest           time.Duration
		out               billing.Contract
		first, lastEnd    time.Time
		uniform           = true
	)
	for _, c := range contracts {
		cEnd := farFuture
		if c.EndDate != nil {
			cEnd = *c.EndDate
		}
		from, to := c.StartDate, cEnd
		if from.Before(start) {
			from = start
		}
		if to.After(end) {
			to = end
		}
		overlap := to.Sub(from)
		if overlap <= 0 {
			continue
		}
		if covered > 0 && c.WorkingPrice != out.WorkingPrice {
			uniform = false
		}
		out.WorkingPrice = c.WorkingPrice
		weighted += c.WorkingPrice * overlap.Seconds()
		covered += overlap.Seconds()
		if overlap > longest {
			longest = overlap
			out.EnergyType = c.EnergyType
			out.BasePrice = c.BasePrice
		}
		if first.IsZero() || from.Before(first) {
			first = from
		}
		if to.After(lastEnd) {
			lastEnd = to
		}
	}
	if covered == 0 {
		return billing.Contract{}, false
	}
	out.StartDate = first
	out.EndDate = &lastEnd
	if !uniform {
		out.WorkingPrice = weighted / covered
	}
	return out, true
}
