package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtrapolateAverageAppends(t *testing.T) {
	points := []CostDataPoint{
		costPoint("2023-12", Monthly, map[EnergyType]float64{Power: 1000}),
		costPoint("2024-01", Monthly, map[EnergyType]float64{Power: 30}),
		costPoint("2024-02", Monthly, map[EnergyType]float64{Power: 60}),
		costPoint("2024-03", Monthly, map[EnergyType]float64{Power: 90}),
	}

	out := extrapolate(points, testTypes, Monthly, nil, 3)

	require.Equal(t, []string{"2023-12", "2024-01", "2024-02", "2024-03", "2024-04", "2024-05", "2024-06"}, keysOf(out))
	for _, p := range out[:4] {
		assert.False(t, p.IsExtrapolated, p.PeriodKey)
	}
	for _, p := range out[4:] {
		assert.True(t, p.IsExtrapolated, p.PeriodKey)
		assert.False(t, p.IsInterpolated, p.PeriodKey)
		assert.Equal(t, StatusExtrapolated, p.Status, p.PeriodKey)
		assert.Equal(t, 60.0, p.Costs[Power], p.PeriodKey)
		assert.Equal(t, 0.0, p.Costs[Gas], p.PeriodKey)
		assert.Equal(t, 60.0, p.TotalCost, p.PeriodKey)
		assert.Equal(t, Breakdown{Consumption: 60, WorkingPrice: 1, TotalCost: 60}, p.Breakdown[Power], p.PeriodKey)
		assert.NotContains(t, p.Breakdown, Gas, p.PeriodKey)
	}
}

func TestExtrapolateIgnoresInterpolatedHistory(t *testing.T) {
	gap := costPoint("2024-02", Monthly, map[EnergyType]float64{Power: 1000})
	gap.IsInterpolated = true
	gap.Status = StatusInterpolated
	points := []CostDataPoint{
		costPoint("2024-01", Monthly, map[EnergyType]float64{Power: 30}),
		gap,
		costPoint("2024-03", Monthly, map[EnergyType]float64{Power: 60}),
	}

	out := extrapolate(points, testTypes, Monthly, nil, 1)

	require.Len(t, out, 4)
	assert.Equal(t, 45.0, out[3].TotalCost)
}

func TestExtrapolateFillsExistingPlaceholders(t *testing.T) {
	start, end := mustPeriodRange("2024-03", Monthly, nil)
	points := []CostDataPoint{
		costPoint("2024-01", Monthly, map[EnergyType]float64{Power: 30}),
		costPoint("2024-02", Monthly, nil),
		newPoint("2024-03", start, end, testTypes, StatusEmpty),
	}

	out := extrapolate(points, testTypes, Monthly, nil, 0)

	require.Len(t, out, 3)
	assert.False(t, out[0].IsExtrapolated)
	for _, p := range out[1:] {
		assert.True(t, p.IsExtrapolated, p.PeriodKey)
		assert.Equal(t, 30.0, p.TotalCost, p.PeriodKey)
	}
	assert.Equal(t, StatusEmpty, points[2].Status)
}

func TestExtrapolateTrendline(t *testing.T) {
	points := []CostDataPoint{
		costPoint("2021", Yearly, map[EnergyType]float64{Power: 100}),
		costPoint("2022", Yearly, map[EnergyType]float64{Power: 200}),
		costPoint("2023", Yearly, map[EnergyType]float64{Power: 300}),
	}

	out := extrapolate(points, testTypes, Yearly, nil, 2)

	require.Equal(t, []string{"2021", "2022", "2023", "2024", "2025"}, keysOf(out))
	assert.InDelta(t, 400.0, out[3].Costs[Power], 1e-9)
	assert.InDelta(t, 400.0, out[3].Breakdown[Power].Consumption, 1e-9)
	assert.Equal(t, 1.0, out[3].Breakdown[Power].WorkingPrice)
	assert.InDelta(t, 500.0, out[4].TotalCost, 1e-9)
	assert.Zero(t, out[4].Costs[Gas])
	assert.True(t, out[4].IsExtrapolated)
}

func TestExtrapolateTrendlineClampsAtZero(t *testing.T) {
	points := []CostDataPoint{
		costPoint("2021", Yearly, map[EnergyType]float64{Power: 300}),
		costPoint("2022", Yearly, map[EnergyType]float64{Power: 200}),
		costPoint("2023", Yearly, map[EnergyType]float64{Power: 100}),
	}

	out := extrapolate(points, testTypes, Yearly, nil, 2)

	require.Len(t, out, 5)
	for _, p := range out[3:] {
		assert.True(t, p.IsExtrapolated, p.PeriodKey)
		assert.InDelta(t, 0.0, p.TotalCost, 1e-9, p.PeriodKey)
		assert.GreaterOrEqual(t, p.Costs[Power], 0.0, p.PeriodKey)
	}
}

func TestExtrapolateYearlyWithOneActualUsesAverage(t *testing.T) {
	points := []CostDataPoint{
		costPoint("2022", Yearly, nil),
		costPoint("2023", Yearly, map[EnergyType]float64{Power: 50}),
	}

	out := extrapolate(points, testTypes, Yearly, nil, 2)

	require.Equal(t, []string{"2022", "2023", "2024", "2025"}, keysOf(out))
	assert.Equal(t, 50.0, out[2].TotalCost)
	assert.Equal(t, 50.0, out[3].TotalCost)
	assert.False(t, out[0].IsExtrapolated)
}

func TestExtrapolateWithoutHistory(t *testing.T) {
	points := []CostDataPoint{
		costPoint("2024-01", Monthly, nil),
		costPoint("2024-02", Monthly, nil),
	}

	out := extrapolate(points, testTypes, Monthly, nil, 3)

	assert.Equal(t, points, out)
}
