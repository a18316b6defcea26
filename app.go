package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mgazza/energy-costs/billing"
)

// Config contains configuration for the application.
type Config struct {
	OctopusAPIKey    string
	OctopusAccountID string
	GivAPIKey        string
	GivSerial        string
	GeoUsername      string
	GeoPassword      string
	PowerSource      string

	CacheDirectory string
	CacheMaxAge    time.Duration
	Database       string

	Output       string
	OutputFormat string
	ListenAddr   string

	Granularity        string
	Extrapolate        bool
	ExtrapolatePeriods int
	Year               int
	YearRange          bool
	PastYears          int
	FutureYears        int
	Timezone           string

	BasePricePower float64
	BasePriceGas   float64
	GasUnitRate    float64

	StartTime *time.Time
	EndTime   time.Time

	Log LogConfig
}

func (c *Config) validateAPI() error {
	if c.OctopusAPIKey == "" || c.OctopusAccountID == "" {
		return fmt.Errorf("octopus API key and account ID are required")
	}
	switch c.powerSource() {
	case powerFromOctopus:
	case powerFromGivEnergy:
		if c.GivAPIKey == "" || c.GivSerial == "" {
			return fmt.Errorf("GivEnergy API key and inverter serial are required for power source %q", powerFromGivEnergy)
		}
	case powerFromGeo:
		if c.GeoUsername == "" {
			return fmt.Errorf("GEO username and password are required for power source %q", powerFromGeo)
		}
	default:
		return fmt.Errorf("unknown power source %q", c.PowerSource)
	}
	if c.GeoUsername != "" && c.GeoPassword == "" {
		return fmt.Errorf("GEO password is required with a GEO username")
	}
	return nil
}

// powerSource picks the inverter when one is configured, else the smart meter.
func (c *Config) powerSource() string {
	if c.PowerSource != "" {
		return c.PowerSource
	}
	if c.GivAPIKey != "" && c.GivSerial != "" {
		return powerFromGivEnergy
	}
	return powerFromOctopus
}

func (c *Config) location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) granularity() (billing.Granularity, error) {
	return billing.ParseGranularity(c.Granularity)
}

// options translates the report flags into calculation options.
func (c *Config) options() billing.Options {
	opts := billing.Options{
		IncludeExtrapolation: c.Extrapolate,
		ExtrapolatePeriods:   c.ExtrapolatePeriods,
		AsOf:                 c.EndTime,
	}
	if c.Year != 0 {
		year := c.Year
		opts.Year = &year
	}
	if c.YearRange {
		opts.YearRange = &billing.YearRange{Past: c.PastYears, Future: c.FutureYears}
	}
	return opts
}

// App manages application dependencies and logic.
type App struct {
	Config     *Config
	Logger     *zap.Logger
	Source     Source
	Calculator *billing.Calculator
	Location   *time.Location

	store *Store
}

// NewApp wires the reading source: the local database when one is configured,
// otherwise the energy APIs.
func NewApp(ctx context.Context, config *Config, logger *zap.Logger) (*App, error) {
	loc, err := config.location()
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:     config,
		Logger:     logger,
		Calculator: billing.NewCalculator(billing.WithLogger(logger.Named("billing"))),
		Location:   loc,
	}

	if config.Database != "" {
		app.store, err = OpenStore(config.Database)
		if err != nil {
			return nil, err
		}
		app.Source = app.store
		logger.Info("reading from database", zap.String("path", config.Database))
		return app, nil
	}

	app.Source, err = newAPISource(ctx, config, loc, logger)
	if err != nil {
		return nil, err
	}
	return app, nil
}

func (app *App) Close() error {
	if app.store != nil {
		return app.store.Close()
	}
	return nil
}

// window is the span of data needed for opts: from the configured start, or
// the start of last year, until the configured end. Without a configured start
// a year range reaches back its Past years further. A requested year also
// pulls in the month before it so its first period has a predecessor.
func (app *App) window(opts billing.Options) (time.Time, time.Time) {
	end := app.Config.EndTime
	if end.IsZero() {
		end = time.Now()
	}
	end = end.In(app.Location)

	var start time.Time
	if app.Config.StartTime != nil {
		start = app.Config.StartTime.In(app.Location)
	} else {
		from := end.Year() - 1
		if opts.YearRange != nil && opts.YearRange.Past > 0 {
			from -= opts.YearRange.Past
		}
		start = time.Date(from, time.January, 1, 0, 0, 0, 0, app.Location)
	}
	if opts.Year != nil {
		before := time.Date(*opts.Year-1, time.December, 1, 0, 0, 0, 0, app.Location)
		if before.Before(start) {
			start = before
		}
	}
	return start, end
}

func (app *App) load(ctx context.Context, start, end time.Time) ([]billing.MeterReading, []billing.Contract, error) {
	var readings []billing.MeterReading
	var contracts []billing.Contract

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		readings, err = app.Source.Readings(gctx, start, end)
		return err
	})
	g.Go(func() error {
		var err error
		contracts, err = app.Source.Contracts(gctx, start, end)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return readings, contracts, nil
}

// Costs loads the data covering opts and runs the cost calculation.
func (app *App) Costs(ctx context.Context, g billing.Granularity, opts billing.Options) (points []billing.CostDataPoint, err error) {
	started := time.Now()
	defer func() { recordCalculation(g, started, points, err) }()

	opts.Location = app.Location
	start, end := app.window(opts)
	readings, contracts, err := app.load(ctx, start, end)
	if err != nil {
		return nil, err
	}

	contracts = blendContracts(contracts, g, app.Location, start, end)
	points, err = app.Calculator.Calculate(readings, contracts, g, opts)
	if err != nil {
		return nil, err
	}
	app.Logger.Info("calculated costs",
		zap.String("granularity", string(g)),
		zap.Int("readings", len(readings)),
		zap.Int("contracts", len(contracts)),
		zap.Int("periods", len(points)),
		zap.Int("interpolated", billing.CountStatus(points, billing.StatusInterpolated)),
		zap.Int("extrapolated", billing.CountStatus(points, billing.StatusExtrapolated)))
	return points, nil
}

// Years lists the calendar years holding readings, newest first.
func (app *App) Years(ctx context.Context) ([]int, error) {
	start, end := app.window(billing.Options{})
	if app.store != nil {
		start = time.Time{}
	}
	readings, err := app.Source.Readings(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return billing.AvailableYears(readings, app.Location), nil
}

// Run computes the report and writes it to the configured output.
func (app *App) Run(ctx context.Context) error {
	g, err := app.Config.granularity()
	if err != nil {
		return err
	}

	points, err := app.Costs(ctx, g, app.Config.options())
	if err != nil {
		return fmt.Errorf("failed to calculate costs: %w", err)
	}

	if err := writeReport(app.Config.Output, app.Config.OutputFormat, points); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	app.Logger.Info("wrote report", zap.String("output", app.Config.Output), zap.String("format", app.Config.OutputFormat))
	return nil
}

// Sync copies readings and contracts for the configured window from the APIs
// into the database.
func Sync(ctx context.Context, config *Config, logger *zap.Logger) error {
	if config.Database == "" {
		return fmt.Errorf("a database path is required to sync")
	}
	loc, err := config.location()
	if err != nil {
		return err
	}

	source, err := newAPISource(ctx, config, loc, logger)
	if err != nil {
		return err
	}
	store, err := OpenStore(config.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	app := &App{Config: config, Logger: logger, Source: source, Location: loc, store: store}
	start, end := app.window(config.options())
	readings, contracts, err := app.load(ctx, start, end)
	if err != nil {
		return err
	}

	if err := store.SaveReadings(ctx, readings); err != nil {
		return fmt.Errorf("failed to store readings: %w", err)
	}
	if err := store.SaveContracts(ctx, contracts); err != nil {
		return fmt.Errorf("failed to store contracts: %w", err)
	}
	logger.Info("synced",
		zap.Time("from", start),
		zap.Time("to", end),
		zap.Int("readings", len(readings)),
		zap.Int("contracts", len(contracts)))
	return nil
}
