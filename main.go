package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// envOrString returns the environment variable value if set, otherwise returns the default value.
func envOrString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envOrInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envOrFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

var (
	config    = &Config{}
	startTime string
	endTime   string
	logger    = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "energy-costs",
	Short: "Monthly and yearly energy costs from smart meter data",
	Long: `energy-costs turns cumulative power and gas readings into per-period
consumption and cost, filling missing months and projecting the next ones.

Readings come from Octopus Energy, a GivEnergy inverter or a GEO display,
or from a local database filled with "energy-costs sync".

Examples:
  energy-costs --granularity monthly --year 2024
  energy-costs --granularity yearly --year-range --past 1 --future 2 --format json
  energy-costs sync --db energy.db
  energy-costs serve --db energy.db`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	RunE:              runReport,
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Write the cost report (default command)",
	RunE:  runReport,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Copy readings and tariffs from the APIs into the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		return Sync(cmd.Context(), config, logger)
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve costs over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := NewApp(cmd.Context(), config, logger)
		if err != nil {
			return err
		}
		defer app.Close()
		return NewServer(app).ListenAndServe(cmd.Context(), config.ListenAddr)
	},
}

var yearsCmd = &cobra.Command{
	Use:   "years",
	Short: "List the years holding readings, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := NewApp(cmd.Context(), config, logger)
		if err != nil {
			return err
		}
		defer app.Close()

		years, err := app.Years(cmd.Context())
		if err != nil {
			return err
		}
		for _, y := range years {
			fmt.Fprintln(cmd.OutOrStdout(), y)
		}
		return nil
	},
}

func init() {
	// Values from .env are visible to the flag defaults below.
	_ = godotenv.Load()

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&config.OctopusAPIKey, "apikey", envOrString("OCTOPUS_API_KEY", ""), "Octopus API key")
	pf.StringVar(&config.OctopusAccountID, "accountID", envOrString("OCTOPUS_ACCOUNT_ID", ""), "Octopus Account ID")
	pf.StringVar(&config.GivAPIKey, "givApikey", envOrString("GIVENERGY_API_KEY", ""), "GivEnergy API key")
	pf.StringVar(&config.GivSerial, "inverterSerial", envOrString("GIVENERGY_SERIAL", ""), "GivEnergy inverter serial number")
	pf.StringVar(&config.GeoUsername, "geoUser", envOrString("GEO_USERNAME", ""), "Geo Username")
	pf.StringVar(&config.GeoPassword, "geoPassword", envOrString("GEO_PASSWORD", ""), "Geo Password")
	pf.StringVar(&config.PowerSource, "powerSource", envOrString("POWER_SOURCE", ""), "Power readings from octopus, givenergy or geo (default: givenergy when configured, else octopus)")
	pf.StringVar(&config.CacheDirectory, "cache", envOrString("CACHE_DIR", "disable"), "Directory for HTTP cache ('disable' to disable, empty for temporary directory)")
	pf.DurationVar(&config.CacheMaxAge, "cacheMaxAge", envOrDuration("CACHE_MAX_AGE", 0), "Maximum age of cached API responses (0 keeps them forever)")
	pf.StringVar(&config.Database, "db", envOrString("ENERGY_DB", ""), "SQLite database with synced readings (read instead of the APIs)")
	pf.StringVar(&startTime, "startTime", envOrString("START_TIME", ""), "Start of the data window (RFC3339, default start of last year)")
	pf.StringVar(&endTime, "endTime", envOrString("END_TIME", ""), "End of the data window and the current date for year ranges (RFC3339, default now)")
	pf.StringVar(&config.Timezone, "timezone", envOrString("TIMEZONE", ""), "IANA time zone for period boundaries (default local)")

	pf.StringVar(&config.Granularity, "granularity", envOrString("GRANULARITY", "monthly"), "Period size: monthly or yearly")
	pf.BoolVar(&config.Extrapolate, "extrapolate", envOrBool("EXTRAPOLATE", true), "Project periods after the last one with costs")
	pf.IntVar(&config.ExtrapolatePeriods, "periods", envOrInt("EXTRAPOLATE_PERIODS", 3), "Periods appended when no year is requested")
	pf.IntVar(&config.Year, "year", envOrInt("YEAR", 0), "Report every period of this calendar year")
	pf.BoolVar(&config.YearRange, "year-range", envOrBool("YEAR_RANGE", false), "Report every year from the first data minus --past to now plus --future")
	pf.IntVar(&config.PastYears, "past", envOrInt("PAST_YEARS", 0), "Years before the first data for --year-range")
	pf.IntVar(&config.FutureYears, "future", envOrInt("FUTURE_YEARS", 1), "Years after the current one for --year-range")

	pf.Float64Var(&config.BasePricePower, "basePricePower", envOrFloat("BASE_PRICE_POWER", 0), "Fixed power charge per period")
	pf.Float64Var(&config.BasePriceGas, "basePriceGas", envOrFloat("BASE_PRICE_GAS", 0), "Fixed gas charge per period")
	pf.Float64Var(&config.GasUnitRate, "gasUnitRate", envOrFloat("GAS_UNIT_RATE", 0), "Gas price per kWh replacing the Octopus gas tariff (0 uses the tariff)")

	pf.StringVar(&config.Log.Level, "logLevel", envOrString("LOG_LEVEL", "info"), "Log level")
	pf.StringVar(&config.Log.Format, "logFormat", envOrString("LOG_FORMAT", "console"), "Log format: console or json")
	pf.StringVar(&config.Log.Output, "logOutput", envOrString("LOG_OUTPUT", "stderr"), "Log destination: stdout, stderr or a file path")
	pf.BoolVar(&config.Log.Development, "logDevelopment", envOrBool("LOG_DEVELOPMENT", false), "Development logging with stack traces on errors")

	for _, cmd := range []*cobra.Command{rootCmd, reportCmd} {
		cmd.Flags().StringVar(&config.Output, "out", envOrString("OUTPUT", "-"), "Output file ('-' for stdout)")
		cmd.Flags().StringVar(&config.OutputFormat, "format", envOrString("OUTPUT_FORMAT", formatCSV), "Output format: csv or json")
	}
	serveCmd.Flags().StringVar(&config.ListenAddr, "listen", envOrString("LISTEN_ADDR", ":8080"), "HTTP listen address")

	rootCmd.AddCommand(reportCmd, syncCmd, serveCmd, yearsCmd)
}

// setup parses the time flags and builds the logger.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	if startTime != "" {
		t, err := time.Parse(time.RFC3339, startTime)
		if err != nil {
			return fmt.Errorf("invalid startTime format: %w", err)
		}
		config.StartTime = &t
	}
	if endTime != "" {
		if config.EndTime, err = time.Parse(time.RFC3339, endTime); err != nil {
			return fmt.Errorf("invalid endTime format: %w", err)
		}
	}

	logger, err = newLogger(config.Log)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	app, err := NewApp(cmd.Context(), config, logger)
	if err != nil {
		return err
	}
	defer app.Close()
	return app.Run(cmd.Context())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	_ = logger.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}
