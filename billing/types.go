// Package billing turns cumulative meter readings and pricing contracts into
// per-period consumption and cost figures, filling gaps between known periods
// and projecting periods beyond the last one.
package billing

import (
	"errors"
	"time"
)

// EnergyType identifies a metered commodity. Any non-empty string is accepted.
type EnergyType string

const (
	Power EnergyType = "power"
	Gas   EnergyType = "gas"
)

// Granularity is the size of a reporting period.
type Granularity string

const (
	Monthly Granularity = "monthly"
	Yearly  Granularity = "yearly"
)

var (
	ErrInvalidGranularity = errors.New("invalid granularity")
	ErrInvalidPeriodKey   = errors.New("invalid period key")
	ErrInvalidOptions     = errors.New("invalid options")
)

// openEnded stands in for a missing contract end date.
var openEnded = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// MeterReading is a single observation of a cumulative meter counter.
type MeterReading struct {
	Date       time.Time  `json:"date"`
	EnergyType EnergyType `json:"energyType"`
	Amount     float64    `json:"amount"`
}

// Contract prices one energy type over a time interval. A nil EndDate means the
// contract has no end.
type Contract struct {
	EnergyType   EnergyType `json:"energyType"`
	StartDate    time.Time  `json:"startDate"`
	EndDate      *time.Time `json:"endDate,omitempty"`
	BasePrice    float64    `json:"basePrice"`
	WorkingPrice float64    `json:"workingPrice"`
}

func (c Contract) end() time.Time {
	if c.EndDate == nil {
		return openEnded
	}
	return *c.EndDate
}

// Breakdown is the per-type detail behind a period's cost.
type Breakdown struct {
	Consumption  float64 `json:"consumption"`
	BasePrice    float64 `json:"basePrice"`
	WorkingPrice float64 `json:"workingPrice"`
	TotalCost    float64 `json:"totalCost"`
}

// Status tells where a data point's figures came from.
type Status string

const (
	StatusEmpty        Status = "empty"
	StatusActual       Status = "actual"
	StatusInterpolated Status = "interpolated"
	StatusExtrapolated Status = "extrapolated"
)

// CostDataPoint is one period of output.
type CostDataPoint struct {
	PeriodKey      string                   `json:"periodKey"`
	PeriodStart    time.Time                `json:"periodStart"`
	PeriodEnd      time.Time                `json:"periodEnd"`
	Costs          map[EnergyType]float64   `json:"costs"`
	TotalCost      float64                  `json:"totalCost"`
	Breakdown      map[EnergyType]Breakdown `json:"breakdown"`
	IsInterpolated bool                     `json:"isInterpolated"`
	IsExtrapolated bool                     `json:"isExtrapolated"`
	Status         Status                   `json:"status"`
}

// YearRange asks for every year from Past years before the earliest data up to
// Future years after the current one.
type YearRange struct {
	Past   int `json:"past"`
	Future int `json:"future"`
}

// Options controls padding and extrapolation.
type Options struct {
	IncludeExtrapolation bool
	Year                 *int
	YearRange            *YearRange
	// AsOf is the instant treated as "now" for year range bounds. Zero means the
	// calculator's clock.
	AsOf time.Time
	// ExtrapolatePeriods is how many periods are appended when no year or year
	// range was requested. Zero or less means three.
	ExtrapolatePeriods int
	// Location determines calendar boundaries. Nil means UTC.
	Location *time.Location
}

// DefaultOptions returns options with extrapolation enabled.
func DefaultOptions() Options {
	return Options{
		IncludeExtrapolation: true,
		ExtrapolatePeriods:   defaultExtrapolatePeriods,
	}
}

const defaultExtrapolatePeriods = 3
