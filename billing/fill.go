package billing

import "time"

// padRange returns exactly one point per key: existing points are kept, missing
// keys get zero-valued placeholders and points outside keys are dropped.
func padRange(points []CostDataPoint, keys []string, types []EnergyType, g Granularity, loc *time.Location) []CostDataPoint {
	byKey := make(map[string]CostDataPoint, len(points))
	for _, p := range points {
		byKey[p.PeriodKey] = p
	}
	out := make([]CostDataPoint, 0, len(keys))
	for _, k := range keys {
		if p, ok := byKey[k]; ok {
			out = append(out, p)
			continue
		}
		start, end := mustPeriodRange(k, g, loc)
		out = append(out, newPoint(k, start, end, types, StatusEmpty))
	}
	return out
}

// interpolateGaps fills zero-valued periods lying between the first and the
// last period with a cost, inserting periods missing from that stretch. Each
// filled period gets the mean of its nearest costed neighbours per type.
func interpolateGaps(points []CostDataPoint, types []EnergyType, g Granularity, loc *time.Location) []CostDataPoint {
	dense := densify(points, types, g, loc)

	first, last := costedBounds(dense)
	if first < 0 || last-first < 2 {
		return dense
	}

	out := make([]CostDataPoint, len(dense))
	copy(out, dense)
	for i := first + 1; i < last; i++ {
		if dense[i].TotalCost != 0 {
			continue
		}
		prior, next := nearestCosted(dense, i, -1), nearestCosted(dense, i, 1)
		if prior < 0 || next < 0 {
			continue
		}
		out[i] = interpolated(dense[i], dense[prior], dense[next])
	}
	return out
}

// densify inserts placeholders for keys missing between the first and last
// costed points.
func densify(points []CostDataPoint, types []EnergyType, g Granularity, loc *time.Location) []CostDataPoint {
	first, last := costedBounds(points)
	if first < 0 {
		out := make([]CostDataPoint, len(points))
		copy(out, points)
		return out
	}

	out := make([]CostDataPoint, 0, len(points))
	out = append(out, points[:first]...)
	out = append(out, padRange(points[first:last+1], keysBetween(points[first].PeriodKey, points[last].PeriodKey, g), types, g, loc)...)
	out = append(out, points[last+1:]...)
	return out
}

// costedBounds returns the indexes of the first and last points with a cost,
// or -1, -1.
func costedBounds(points []CostDataPoint) (int, int) {
	first, last := -1, -1
	for i, p := range points {
		if p.TotalCost > 0 {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	return first, last
}

func nearestCosted(points []CostDataPoint, from, step int) int {
	for i := from + step; i >= 0 && i < len(points); i += step {
		if points[i].TotalCost > 0 {
			return i
		}
	}
	return -1
}

func interpolated(placeholder, prior, next CostDataPoint) CostDataPoint {
	costs := make(map[EnergyType]float64, len(prior.Costs))
	for t := range placeholder.Costs {
		costs[t] = 0
	}
	for t := range prior.Costs {
		costs[t] = (prior.Costs[t] + next.Costs[t]) / 2
	}
	for t := range next.Costs {
		costs[t] = (prior.Costs[t] + next.Costs[t]) / 2
	}

	breakdown := placeholder.Breakdown
	if breakdown == nil {
		breakdown = make(map[EnergyType]Breakdown)
	}
	return CostDataPoint{
		PeriodKey:      placeholder.PeriodKey,
		PeriodStart:    placeholder.PeriodStart,
		PeriodEnd:      placeholder.PeriodEnd,
		Costs:          costs,
		TotalCost:      sumCosts(costs),
		Breakdown:      breakdown,
		IsInterpolated: true,
		Status:         StatusInterpolated,
	}
}
