package billing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func powerReading(d time.Time, amount float64) MeterReading {
	return MeterReading{Date: d, EnergyType: Power, Amount: amount}
}

func TestConsumptionBetween(t *testing.T) {
	tests := []struct {
		name     string
		readings []MeterReading
		current  string
		previous string
		expect   float64
	}{
		{
			name: "Readings in both periods",
			readings: []MeterReading{
				powerReading(date(2024, 1, 31), 1100),
				powerReading(date(2023, 12, 31), 1000),
			},
			current:  "2024-01",
			previous: "2023-12",
			expect:   100,
		},
		{
			name: "Latest reading of each period is used",
			readings: []MeterReading{
				powerReading(date(2024, 1, 5), 1010),
				powerReading(date(2024, 1, 31), 1100),
				powerReading(date(2024, 2, 10), 1150),
				powerReading(date(2024, 2, 28), 1190),
			},
			current:  "2024-02",
			previous: "2024-01",
			expect:   90,
		},
		{
			name: "Previous falls back to latest before current period",
			readings: []MeterReading{
				powerReading(date(2024, 1, 15), 1000),
				powerReading(date(2024, 4, 15), 1300),
			},
			current:  "2024-04",
			previous: "2024-03",
			expect:   300,
		},
		{
			name: "Current falls back to earliest after previous period",
			readings: []MeterReading{
				powerReading(date(2024, 1, 15), 1000),
				powerReading(date(2024, 4, 15), 1300),
				powerReading(date(2024, 5, 15), 1400),
			},
			current:  "2024-02",
			previous: "2024-01",
			expect:   300,
		},
		{
			name: "No previous period",
			readings: []MeterReading{
				powerReading(date(2024, 1, 15), 1000),
				powerReading(date(2024, 1, 20), 1300),
			},
			current: "2024-01",
			expect:  0,
		},
		{
			name: "Nothing before the current period",
			readings: []MeterReading{
				powerReading(date(2024, 2, 15), 1000),
			},
			current:  "2024-02",
			previous: "2024-01",
			expect:   0,
		},
		{
			name: "Both sides resolve to the same reading",
			readings: []MeterReading{
				powerReading(date(2024, 3, 15), 1000),
			},
			current:  "2024-05",
			previous: "2024-02",
			expect:   0,
		},
		{
			name: "Nothing after the previous period",
			readings: []MeterReading{
				powerReading(date(2024, 3, 15), 1000),
			},
			current:  "2024-04",
			previous: "2024-03",
			expect:   0,
		},
		{
			name: "Decreasing counter propagates",
			readings: []MeterReading{
				powerReading(date(2024, 1, 31), 1100),
				powerReading(date(2024, 2, 29), 1050),
			},
			current:  "2024-02",
			previous: "2024-01",
			expect:   -50,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got := ConsumptionBetween(test.readings, test.current, test.previous, Monthly, nil)
			assert.Equal(t, test.expect, got)
		})
	}
}

func TestConsumptionBetweenDoesNotReorderInput(t *testing.T) {
	readings := []MeterReading{
		powerReading(date(2024, 2, 29), 1200),
		powerReading(date(2024, 1, 31), 1100),
	}
	ConsumptionBetween(readings, "2024-02", "2024-01", Monthly, nil)
	assert.Equal(t, date(2024, 2, 29), readings[0].Date)
}

func TestConsumptionWithin(t *testing.T) {
	start := date(2024, 1, 1)
	end := date(2024, 1, 31)

	t.Run("No readings", func(t *testing.T) {
		assert.Equal(t, 0.0, ConsumptionWithin(nil, start, end))
	})

	t.Run("Single reading", func(t *testing.T) {
		assert.Equal(t, 0.0, ConsumptionWithin([]MeterReading{powerReading(date(2024, 1, 10), 50)}, start, end))
	})

	t.Run("Readings outside are ignored", func(t *testing.T) {
		readings := []MeterReading{
			powerReading(date(2023, 12, 1), 0),
			powerReading(date(2024, 1, 10), 50),
			powerReading(date(2024, 2, 10), 500),
		}
		assert.Equal(t, 0.0, ConsumptionWithin(readings, start, end))
	})

	t.Run("Same timestamp returns raw delta", func(t *testing.T) {
		at := date(2024, 1, 10)
		readings := []MeterReading{powerReading(at, 50), powerReading(at, 80)}
		assert.Equal(t, 30.0, ConsumptionWithin(readings, start, end))
	})

	t.Run("Partial coverage scales to the period", func(t *testing.T) {
		readings := []MeterReading{
			powerReading(date(2024, 1, 16), 150),
			powerReading(date(2024, 1, 1), 0),
		}
		assert.InDelta(t, 300.0, ConsumptionWithin(readings, start, end), 1e-9)
	})

	t.Run("Full coverage is unscaled", func(t *testing.T) {
		readings := []MeterReading{
			powerReading(start, 100),
			powerReading(date(2024, 1, 11), 150),
			powerReading(end, 400),
		}
		assert.InDelta(t, 300.0, ConsumptionWithin(readings, start, end), 1e-9)
	})
}
