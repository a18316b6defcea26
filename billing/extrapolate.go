package billing

import (
	"math"
	"time"
)

// recentWindow is how many of the latest actual periods feed the averages.
const recentWindow = 3

// projector produces the figures for a period step periods after the last
// actual one.
type projector interface {
	project(step int) (map[EnergyType]float64, map[EnergyType]Breakdown)
}

// extrapolate fills the zero-valued periods after the last actual period and,
// when appendCount is positive, appends that many further periods.
func extrapolate(points []CostDataPoint, types []EnergyType, g Granularity, loc *time.Location, appendCount int) []CostDataPoint {
	out := make([]CostDataPoint, len(points))
	copy(out, points)

	actual := actualIndexes(points)
	if len(actual) == 0 {
		return out
	}
	history := make([]CostDataPoint, len(actual))
	for i, idx := range actual {
		history[i] = points[idx]
	}

	var model projector
	if g == Yearly && len(history) >= 2 {
		model = newTrendModel(history, types)
	} else {
		model = newAverageModel(recent(history), types)
	}

	lastActual := actual[len(actual)-1]
	lastKey := points[lastActual].PeriodKey
	for i := lastActual + 1; i < len(out); i++ {
		if out[i].TotalCost != 0 {
			continue
		}
		out[i] = extrapolated(out[i], model, stepsBetween(lastKey, out[i].PeriodKey, g))
	}

	key := out[len(out)-1].PeriodKey
	for n := 0; n < appendCount; n++ {
		next, err := NextPeriodKey(key, g)
		if err != nil {
			break
		}
		key = next
		start, end := mustPeriodRange(key, g, loc)
		out = append(out, extrapolated(newPoint(key, start, end, types, StatusEmpty), model, stepsBetween(lastKey, key, g)))
	}
	return out
}

// actualIndexes lists the points carrying a cost of their own, that is with a
// cost and not interpolated.
func actualIndexes(points []CostDataPoint) []int {
	var idx []int
	for i, p := range points {
		if p.TotalCost > 0 && !p.IsInterpolated {
			idx = append(idx, i)
		}
	}
	return idx
}

func recent(history []CostDataPoint) []CostDataPoint {
	if len(history) <= recentWindow {
		return history
	}
	return history[len(history)-recentWindow:]
}

func stepsBetween(from, to string, g Granularity) int {
	return len(keysBetween(from, to, g)) - 1
}

func extrapolated(p CostDataPoint, model projector, step int) CostDataPoint {
	costs, breakdown := model.project(step)
	return CostDataPoint{
		PeriodKey:      p.PeriodKey,
		PeriodStart:    p.PeriodStart,
		PeriodEnd:      p.PeriodEnd,
		Costs:          costs,
		TotalCost:      sumCosts(costs),
		Breakdown:      breakdown,
		IsExtrapolated: true,
		Status:         StatusExtrapolated,
	}
}

// averageModel projects the mean of the recent periods, the same for every step.
type averageModel struct {
	costs     map[EnergyType]float64
	breakdown map[EnergyType]Breakdown
}

func newAverageModel(window []CostDataPoint, types []EnergyType) averageModel {
	m := averageModel{
		costs:     make(map[EnergyType]float64, len(types)),
		breakdown: make(map[EnergyType]Breakdown),
	}
	for _, t := range types {
		var sum float64
		for _, p := range window {
			sum += p.Costs[t]
		}
		m.costs[t] = sum / float64(len(window))

		if b, ok := meanBreakdown(window, t); ok {
			b.TotalCost = m.costs[t]
			m.breakdown[t] = b
		}
	}
	return m
}

func (m averageModel) project(int) (map[EnergyType]float64, map[EnergyType]Breakdown) {
	costs := make(map[EnergyType]float64, len(m.costs))
	for t, c := range m.costs {
		costs[t] = c
	}
	breakdown := make(map[EnergyType]Breakdown, len(m.breakdown))
	for t, b := range m.breakdown {
		breakdown[t] = b
	}
	return costs, breakdown
}

// trendModel projects cost and consumption along least squares lines fitted
// over the actual periods, indexed 0..n-1.
type trendModel struct {
	lastIndex   int
	types       []EnergyType
	cost        map[EnergyType]trendline
	consumption map[EnergyType]trendline
	prices      map[EnergyType]Breakdown
}

func newTrendModel(history []CostDataPoint, types []EnergyType) trendModel {
	m := trendModel{
		lastIndex:   len(history) - 1,
		types:       types,
		cost:        make(map[EnergyType]trendline, len(types)),
		consumption: make(map[EnergyType]trendline, len(types)),
		prices:      make(map[EnergyType]Breakdown),
	}
	for _, t := range types {
		var costPts, consumptionPts []trendPoint
		for i, p := range history {
			cost, consumption := p.Costs[t], p.Breakdown[t].Consumption
			if cost == 0 && consumption == 0 {
				continue
			}
			costPts = append(costPts, trendPoint{x: float64(i), y: cost})
			consumptionPts = append(consumptionPts, trendPoint{x: float64(i), y: consumption})
		}
		m.cost[t] = fitTrendline(costPts)
		m.consumption[t] = fitTrendline(consumptionPts)

		if b, ok := meanBreakdown(recent(history), t); ok {
			m.prices[t] = Breakdown{BasePrice: b.BasePrice, WorkingPrice: b.WorkingPrice}
		}
	}
	return m
}

func (m trendModel) project(step int) (map[EnergyType]float64, map[EnergyType]Breakdown) {
	x := float64(m.lastIndex + step)
	costs := make(map[EnergyType]float64, len(m.types))
	breakdown := make(map[EnergyType]Breakdown)
	for _, t := range m.types {
		cost := math.Max(0, m.cost[t].at(x))
		costs[t] = cost

		prices, ok := m.prices[t]
		consumption := math.Max(0, m.consumption[t].at(x))
		if !ok || consumption == 0 {
			continue
		}
		breakdown[t] = Breakdown{
			Consumption:  consumption,
			BasePrice:    prices.BasePrice,
			WorkingPrice: prices.WorkingPrice,
			TotalCost:    cost,
		}
	}
	return costs, breakdown
}

// meanBreakdown averages the breakdown of t over the points that have one.
func meanBreakdown(points []CostDataPoint, t EnergyType) (Breakdown, bool) {
	var sum Breakdown
	n := 0
	for _, p := range points {
		b, ok := p.Breakdown[t]
		if !ok {
			continue
		}
		sum.Consumption += b.Consumption
		sum.BasePrice += b.BasePrice
		sum.WorkingPrice += b.WorkingPrice
		sum.TotalCost += b.TotalCost
		n++
	}
	if n == 0 {
		return Breakdown{}, false
	}
	f := float64(n)
	return Breakdown{
		Consumption:  sum.Consumption / f,
		BasePrice:    sum.BasePrice / f,
		WorkingPrice: sum.WorkingPrice / f,
		TotalCost:    sum.TotalCost / f,
	}, true
}
