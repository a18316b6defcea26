package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mgazza/energy-costs/billing"
)

// errSource marks failures to load readings or contracts.
var errSource = errors.New("source unavailable")

// Source supplies meter readings and pricing contracts for a time window.
type Source interface {
	Readings(ctx context.Context, start, end time.Time) ([]billing.MeterReading, error)
	Contracts(ctx context.Context, start, end time.Time) ([]billing.Contract, error)
}

// Power readings can come from any of these.
const (
	powerFromOctopus   = "octopus"
	powerFromGivEnergy = "givenergy"
	powerFromGeo       = "geo"
)

// apiSource reads power and gas from the energy APIs and prices them with the
// Octopus import and gas tariffs. A configured gas unit rate replaces the gas
// tariff.
type apiSource struct {
	octopus     *OctopusService
	giv         *GivEnergyService
	geo         *GeoTogetherService
	importMeter *MeterInfo
	gasMeter    *MeterInfo
	serial      string
	powerFrom   string
	loc         *time.Location

	basePricePower float64
	basePriceGas   float64
	gasUnitRate    float64

	logger *zap.Logger
}

func (s *apiSource) Readings(ctx context.Context, start, end time.Time) ([]billing.MeterReading, error) {
	var power, gas []billing.MeterReading
	var geoReadings map[billing.EnergyType][]billing.MeterReading

	g, ctx := errgroup.WithContext(ctx)
	if s.geo != nil {
		g.Go(func() error {
			var err error
			geoReadings, err = s.geo.FetchReadings(ctx, start, end, s.loc)
			if err != nil {
				return fmt.Errorf("failed to fetch GEO data: %w", err)
			}
			return nil
		})
	}
	switch s.powerFrom {
	case powerFromGivEnergy:
		g.Go(func() error {
			var err error
			power, err = s.giv.FetchImportReadings(ctx, s.serial, start, end, s.loc)
			if err != nil {
				return fmt.Errorf("failed to fetch GivEnergy data: %w", err)
			}
			return nil
		})
	case powerFromOctopus:
		g.Go(func() error {
			samples, err := s.octopus.GetMeterConsumption(ctx, s.importMeter, start, end)
			if err != nil {
				return fmt.Errorf("failed to fetch Octopus data: %w", err)
			}
			power = cumulativeReadings(samples, billing.Power, s.loc)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		sourceErrorsTotal.WithLabelValues("readings").Inc()
		return nil, fmt.Errorf("%w: %w", errSource, err)
	}

	if s.powerFrom == powerFromGeo {
		power = geoReadings[billing.Power]
	}
	gas = geoReadings[billing.Gas]

	readings := make([]billing.MeterReading, 0, len(power)+len(gas))
	readings = append(readings, power...)
	readings = append(readings, gas...)
	sort.SliceStable(readings, func(i, j int) bool { return readings[i].Date.Before(readings[j].Date) })

	s.logger.Info("loaded readings",
		zap.String("power_source", s.powerFrom),
		zap.Int("power", len(power)),
		zap.Int("gas", len(gas)))
	return readings, nil
}

func (s *apiSource) Contracts(ctx context.Context, start, end time.Time) ([]billing.Contract, error) {
	rates, err := s.octopus.FetchTariffs(ctx, s.importMeter.ProductCode, s.importMeter.TariffCode, start, end)
	if err != nil {
		sourceErrorsTotal.WithLabelValues("contracts").Inc()
		return nil, fmt.Errorf("%w: failed to fetch import tariffs: %w", errSource, err)
	}
	contracts := unitRatesToContracts(rates, billing.Power, s.basePricePower, start)

	switch {
	case s.gasUnitRate > 0:
		contracts = append(contracts, billing.Contract{
			EnergyType:   billing.Gas,
			StartDate:    start,
			BasePrice:    s.basePriceGas,
			WorkingPrice: s.gasUnitRate,
		})
	case s.gasMeter != nil:
		gasRates, err := s.octopus.FetchGasTariffs(ctx, s.gasMeter.ProductCode, s.gasMeter.TariffCode, start, end)
		if err != nil {
			sourceErrorsTotal.WithLabelValues("contracts").Inc()
			return nil, fmt.Errorf("%w: failed to fetch gas tariffs: %w", errSource, err)
		}
		contracts = append(contracts, unitRatesToContracts(gasRates, billing.Gas, s.basePriceGas, start)...)
	default:
		s.logger.Warn("gas is unpriced: no gas tariff on the account and no gas unit rate configured")
	}
	s.logger.Info("loaded contracts", zap.Int("contracts", len(contracts)))
	return contracts, nil
}

// newAPISource logs in to the configured APIs and discovers the import meter.
func newAPISource(ctx context.Context, cfg *Config, loc *time.Location, logger *zap.Logger) (*apiSource, error) {
	if err := cfg.validateAPI(); err != nil {
		return nil, err
	}
	rt, err := newTransport(cfg.CacheDirectory, cfg.CacheMaxAge, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}

	s := &apiSource{
		octopus:        NewOctopusService(rt, cfg.OctopusAPIKey, logger),
		serial:         cfg.GivSerial,
		powerFrom:      cfg.powerSource(),
		loc:            loc,
		basePricePower: cfg.BasePricePower,
		basePriceGas:   cfg.BasePriceGas,
		gasUnitRate:    cfg.GasUnitRate,
		logger:         logger.Named("source"),
	}

	s.importMeter, s.gasMeter, err = s.octopus.GetMetersAndTariff(ctx, cfg.OctopusAccountID)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to get meter and tariff details: %w", errSource, err)
	}

	if cfg.GivAPIKey != "" {
		s.giv = NewGivEnergyService(rt, cfg.GivAPIKey, logger)
	}
	if cfg.GeoUsername != "" {
		s.geo, err = NewGeoTogetherService(ctx, rt, cfg.GeoUsername, cfg.GeoPassword, logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errSource, err)
		}
	}
	return s, nil
}
