package main

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mgazza/energy-costs/billing"
)

func TestConfigOptions(t *testing.T) {
	cfg := &Config{Extrapolate: true, ExtrapolatePeriods: 4, Year: 2024, EndTime: utcDate(2025, 6, 1)}
	opts := cfg.options()
	require.NotNil(t, opts.Year)
	assert.Equal(t, 2024, *opts.Year)
	assert.Nil(t, opts.YearRange)
	assert.True(t, opts.IncludeExtrapolation)
	assert.Equal(t, 4, opts.ExtrapolatePeriods)
	assert.Equal(t, utcDate(2025, 6, 1), opts.AsOf)

	cfg = &Config{YearRange: true, PastYears: 2, FutureYears: 1}
	opts = cfg.options()
	assert.Nil(t, opts.Year)
	assert.Equal(t, &billing.YearRange{Past: 2, Future: 1}, opts.YearRange)
}

func TestConfigValidateAPI(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "Octopus only", cfg: Config{OctopusAPIKey: "k", OctopusAccountID: "A-1"}},
		{name: "Missing account", cfg: Config{OctopusAPIKey: "k"}, wantErr: true},
		{name: "GivEnergy", cfg: Config{OctopusAPIKey: "k", OctopusAccountID: "A-1", GivAPIKey: "g", GivSerial: "S"}},
		{name: "GivEnergy without serial", cfg: Config{OctopusAPIKey: "k", OctopusAccountID: "A-1", PowerSource: powerFromGivEnergy, GivAPIKey: "g"}, wantErr: true},
		{name: "GEO power", cfg: Config{OctopusAPIKey: "k", OctopusAccountID: "A-1", PowerSource: powerFromGeo, GeoUsername: "u", GeoPassword: "p"}},
		{name: "GEO without password", cfg: Config{OctopusAPIKey: "k", OctopusAccountID: "A-1", GeoUsername: "u"}, wantErr: true},
		{name: "Unknown power source", cfg: Config{OctopusAPIKey: "k", OctopusAccountID: "A-1", PowerSource: "solar"}, wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := test.cfg.validateAPI()
			if test.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestConfigPowerSource(t *testing.T) {
	assert.Equal(t, powerFromOctopus, (&Config{}).powerSource())
	assert.Equal(t, powerFromOctopus, (&Config{GivSerial: "S"}).powerSource())
	assert.Equal(t, powerFromGivEnergy, (&Config{GivAPIKey: "g", GivSerial: "S"}).powerSource())
	assert.Equal(t, powerFromGeo, (&Config{GivAPIKey: "g", GivSerial: "S", PowerSource: powerFromGeo}).powerSource())
}

func TestConfigLocation(t *testing.T) {
	loc, err := (&Config{}).location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)

	_, err = (&Config{Timezone: "Not/AZone"}).location()
	require.Error(t, err)
}

func TestAppWindow(t *testing.T) {
	app := testApp(&staticSource{})
	app.Config.StartTime = nil

	start, end := app.window(billing.Options{})
	assert.Equal(t, utcDate(2023, 1, 1), start)
	assert.Equal(t, utcDate(2024, 6, 1), end)

	year := 2021
	start, _ = app.window(billing.Options{Year: &year})
	assert.Equal(t, utcDate(2020, 12, 1), start)

	start, _ = app.window(billing.Options{YearRange: &billing.YearRange{Past: 3, Future: 1}})
	assert.Equal(t, utcDate(2020, 1, 1), start)

	configured := utcDate(2019, 5, 1)
	app.Config.StartTime = &configured
	start, _ = app.window(billing.Options{Year: &year})
	assert.Equal(t, configured, start)

	start, _ = app.window(billing.Options{YearRange: &billing.YearRange{Past: 3}})
	assert.Equal(t, configured, start)
}

func TestAppRunWritesReport(t *testing.T) {
	app := testApp(monthEndSource())
	app.Config.Output = filepath.Join(t.TempDir(), "costs.csv")
	app.Config.OutputFormat = formatCSV
	app.Config.Extrapolate = true

	require.NoError(t, app.Run(context.Background()))

	f, err := os.Open(app.Config.Output)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 1+3+3)
	assert.Equal(t, "2024-01", records[2][0])
	assert.Equal(t, "35.00", records[2][len(records[2])-1])
	assert.Equal(t, "extrapolated", records[6][3])
}

func TestAppRunRejectsGranularity(t *testing.T) {
	app := testApp(monthEndSource())
	app.Config.Granularity = "weekly"
	require.ErrorIs(t, app.Run(context.Background()), billing.ErrInvalidGranularity)
}

func TestNewAppWithDatabase(t *testing.T) {
	ctx := context.Background()
	cfg := &Config{Database: filepath.Join(t.TempDir(), "energy.db"), Timezone: "UTC", Granularity: "monthly"}

	app, err := NewApp(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer app.Close()
	require.IsType(t, &Store{}, app.Source)

	require.NoError(t, app.store.SaveReadings(ctx, monthEndSource().readings))
	require.NoError(t, app.store.SaveContracts(ctx, monthEndSource().contracts))

	years, err := app.Years(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2024, 2023}, years)

	start := utcDate(2023, 1, 1)
	cfg.StartTime = &start
	cfg.EndTime = utcDate(2024, 6, 1)
	points, err := app.Costs(ctx, billing.Monthly, cfg.options())
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, 35.0, points[2].TotalCost)
}
