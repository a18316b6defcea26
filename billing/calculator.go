package billing

import (
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Calculator runs the cost pipeline. The zero value is not usable; use
// NewCalculator.
type Calculator struct {
	logger *zap.Logger
	now    func() time.Time
}

// CalculatorOption configures a Calculator.
type CalculatorOption func(*Calculator)

// WithLogger sets the logger used for debug output.
func WithLogger(logger *zap.Logger) CalculatorOption {
	return func(c *Calculator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock sets the clock used when Options.AsOf is zero.
func WithClock(now func() time.Time) CalculatorOption {
	return func(c *Calculator) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCalculator creates a calculator with a no-op logger and the wall clock.
func NewCalculator(opts ...CalculatorOption) *Calculator {
	c := &Calculator{
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CalculateCosts runs the pipeline with a default calculator.
func CalculateCosts(readings []MeterReading, contracts []Contract, g Granularity, opts Options) ([]CostDataPoint, error) {
	return NewCalculator().Calculate(readings, contracts, g, opts)
}

// Calculate computes one data point per period, sorted by period start.
//
// Periods holding readings are priced first. A requested year or year range is
// then padded with placeholders, zero-valued periods between costed ones are
// interpolated and, if asked for, periods after the last costed one are
// extrapolated: in place when a year or range was requested, otherwise by
// appending Options.ExtrapolatePeriods new periods.
func (c *Calculator) Calculate(readings []MeterReading, contracts []Contract, g Granularity, opts Options) ([]CostDataPoint, error) {
	if err := validate(g, opts); err != nil {
		return nil, err
	}
	loc := location(opts.Location)
	for _, r := range readings {
		if y := r.Date.In(loc).Year(); !yearInRange(y) {
			return nil, fmt.Errorf("%w: %s reading in year %d", ErrInvalidOptions, r.EnergyType, y)
		}
	}

	var from, to int
	fixedRange := opts.Year != nil || opts.YearRange != nil
	switch {
	case opts.Year != nil:
		from, to = *opts.Year, *opts.Year
	case opts.YearRange != nil:
		asOf := opts.AsOf
		if asOf.IsZero() {
			asOf = c.now()
		}
		current := asOf.In(loc).Year()
		from = current
		for _, r := range readings {
			if y := r.Date.In(loc).Year(); y < from {
				from = y
			}
		}
		from -= opts.YearRange.Past
		to = current + opts.YearRange.Future
	}
	if fixedRange && (!yearInRange(from) || !yearInRange(to)) {
		return nil, fmt.Errorf("%w: years %d to %d outside %04d to %04d", ErrInvalidOptions, from, to, minYear, maxYear)
	}

	if len(readings) == 0 && !fixedRange {
		return []CostDataPoint{}, nil
	}

	types := sortedTypes(groupByType(readings))
	log := c.logger.With(zap.String("granularity", string(g)))

	points := aggregate(readings, contracts, g, loc)
	log.Debug("aggregated periods", zap.Int("readings", len(readings)), zap.Int("periods", len(points)))

	if fixedRange {
		points = padRange(points, yearKeys(from, to, g), types, g, loc)
	}

	points = interpolateGaps(points, types, g, loc)
	log.Debug("interpolated gaps", zap.Int("interpolated", CountStatus(points, StatusInterpolated)))

	if opts.IncludeExtrapolation {
		appendCount := 0
		if !fixedRange {
			appendCount = opts.ExtrapolatePeriods
			if appendCount <= 0 {
				appendCount = defaultExtrapolatePeriods
			}
		}
		points = extrapolate(points, types, g, loc, appendCount)
		log.Debug("extrapolated periods", zap.Int("extrapolated", CountStatus(points, StatusExtrapolated)), zap.Bool("fixed_range", fixedRange))
	}

	sortPoints(points)
	return points, nil
}

func validate(g Granularity, opts Options) error {
	if !g.valid() {
		return fmt.Errorf("%w: %q", ErrInvalidGranularity, g)
	}
	if opts.Year != nil && opts.YearRange != nil {
		return fmt.Errorf("%w: year and year range are mutually exclusive", ErrInvalidOptions)
	}
	if r := opts.YearRange; r != nil && (r.Past < 0 || r.Future < 0) {
		return fmt.Errorf("%w: year range offsets must not be negative", ErrInvalidOptions)
	}
	return nil
}

// AvailableYears returns the distinct calendar years of readings in loc, newest
// first. A nil loc means UTC, as for period keys.
func AvailableYears(readings []MeterReading, loc *time.Location) []int {
	loc = location(loc)
	seen := make(map[int]struct{})
	var years []int
	for _, r := range readings {
		y := r.Date.In(loc).Year()
		if _, ok := seen[y]; ok {
			continue
		}
		seen[y] = struct{}{}
		years = append(years, y)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(years)))
	return years
}

// CountStatus returns how many points carry status s.
func CountStatus(points []CostDataPoint, s Status) int {
	n := 0
	for _, p := range points {
		if p.Status == s {
			n++
		}
	}
	return n
}
