package billing

import (
	"sort"
	"time"
)

// aggregate produces one data point for every period holding at least one
// reading, in chronological order.
func aggregate(readings []MeterReading, contracts []Contract, g Granularity, loc *time.Location) []CostDataPoint {
	byType := groupByType(readings)
	types := sortedTypes(byType)
	keys := periodKeys(readings, g, loc)

	points := make([]CostDataPoint, 0, len(keys))
	for i, key := range keys {
		previous := ""
		if i > 0 {
			previous = keys[i-1]
		}
		start, end := mustPeriodRange(key, g, loc)
		p := newPoint(key, start, end, types, StatusActual)
		for _, t := range types {
			var consumption float64
			if g == Monthly {
				consumption = ConsumptionBetween(byType[t], key, previous, g, loc)
			} else {
				consumption = ConsumptionWithin(byType[t], start, end)
			}
			if consumption <= 0 {
				continue
			}
			b := price(consumption, start, end, t, contracts)
			p.Costs[t] = b.TotalCost
			p.Breakdown[t] = b
		}
		p.TotalCost = sumCosts(p.Costs)
		points = append(points, p)
	}
	return points
}

// price applies the contract covering the period to consumption. Without a
// contract the consumption is kept and everything else is zero.
func price(consumption float64, start, end time.Time, t EnergyType, contracts []Contract) Breakdown {
	b := Breakdown{Consumption: consumption}
	c, ok := ResolveContract(start, end, t, contracts)
	if !ok {
		return b
	}
	b.BasePrice = c.BasePrice
	b.WorkingPrice = c.WorkingPrice
	b.TotalCost = c.BasePrice + consumption*c.WorkingPrice
	return b
}

func groupByType(readings []MeterReading) map[EnergyType][]MeterReading {
	out := make(map[EnergyType][]MeterReading)
	for _, r := range readings {
		out[r.EnergyType] = append(out[r.EnergyType], r)
	}
	for t, rs := range out {
		out[t] = sortedByDate(rs)
	}
	return out
}

func sortedTypes[V any](m map[EnergyType]V) []EnergyType {
	types := make([]EnergyType, 0, len(m))
	for t := range m {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func periodKeys(readings []MeterReading, g Granularity, loc *time.Location) []string {
	seen := make(map[string]struct{})
	var keys []string
	for _, r := range readings {
		k := PeriodKeyOf(r.Date, g, loc)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func newPoint(key string, start, end time.Time, types []EnergyType, status Status) CostDataPoint {
	costs := make(map[EnergyType]float64, len(types))
	for _, t := range types {
		costs[t] = 0
	}
	return CostDataPoint{
		PeriodKey:   key,
		PeriodStart: start,
		PeriodEnd:   end,
		Costs:       costs,
		Breakdown:   make(map[EnergyType]Breakdown),
		Status:      status,
	}
}

// sumCosts adds costs in type order so equal inputs give bit-identical totals.
func sumCosts(costs map[EnergyType]float64) float64 {
	var total float64
	for _, t := range sortedTypes(costs) {
		total += costs[t]
	}
	return total
}

func sortPoints(points []CostDataPoint) {
	sort.SliceStable(points, func(i, j int) bool {
		return points[i].PeriodStart.Before(points[j].PeriodStart)
	})
}
