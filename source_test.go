package main

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mgazza/energy-costs/billing"
)

func octopusOnlySource(rt http.RoundTripper) *apiSource {
	return &apiSource{
		octopus:        NewOctopusService(rt, "dummyKey", zap.NewNop()),
		importMeter:    &MeterInfo{ProductCode: "VAR-22-11-01", TariffCode: "E-1R-VAR-22-11-01-C", SerialNumber: "21L000", Mpan: "1200000000000"},
		powerFrom:      powerFromOctopus,
		loc:            time.UTC,
		basePricePower: 45,
		basePriceGas:   30,
		gasUnitRate:    7.5,
		logger:         zap.NewNop(),
	}
}

func TestAPISourceReadingsFromOctopus(t *testing.T) {
	rt := &MockRoundTripper{
		Handler: func(req *http.Request) (*http.Response, error) {
			require.True(t, strings.Contains(req.URL.Path, "/consumption"), "Unexpected request URL %s", req.URL)
			return jsonResponse(http.StatusOK, `{
				"count": 3,
				"next": null,
				"results": [
					{"consumption": 1.5, "interval_start": "2024-01-02T10:00:00Z", "interval_end": "2024-01-02T10:30:00Z"},
					{"consumption": 0.5, "interval_start": "2024-01-01T10:00:00Z", "interval_end": "2024-01-01T10:30:00Z"},
					{"consumption": 1.0, "interval_start": "2024-01-01T10:30:00Z", "interval_end": "2024-01-01T11:00:00Z"}
				]
			}`), nil
		},
	}

	readings, err := octopusOnlySource(rt).Readings(context.Background(), utcDate(2024, 1, 1), utcDate(2024, 1, 3))
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.Equal(t, billing.Power, readings[0].EnergyType)
	assert.Equal(t, 1.5, readings[0].Amount)
	assert.Equal(t, 3.0, readings[1].Amount)
}

func TestAPISourceContractsFromGasTariff(t *testing.T) {
	var gasRequests int
	rt := &MockRoundTripper{
		Handler: func(req *http.Request) (*http.Response, error) {
			if strings.Contains(req.URL.Path, "gas-tariffs") {
				gasRequests++
				return jsonResponse(http.StatusOK, `{
					"count": 1,
					"next": null,
					"results": [
						{"value_exc_vat": 6.0, "value_inc_vat": 6.3, "valid_from": "2023-04-01T00:00:00Z", "valid_to": null}
					]
				}`), nil
			}
			return jsonResponse(http.StatusOK, `{
				"count": 1,
				"next": null,
				"results": [
					{"value_exc_vat": 23.0, "value_inc_vat": 24.15, "valid_from": "2023-04-01T00:00:00Z", "valid_to": null}
				]
			}`), nil
		},
	}

	src := octopusOnlySource(rt)
	src.gasUnitRate = 0
	src.gasMeter = &MeterInfo{ProductCode: "VAR-22-11-01", TariffCode: "G-1R-VAR-22-11-01-C", Mpan: "3000000000"}

	contracts, err := src.Contracts(context.Background(), utcDate(2024, 1, 1), utcDate(2024, 6, 1))
	require.NoError(t, err)
	require.Len(t, contracts, 2)
	assert.Equal(t, 1, gasRequests)

	gas := contracts[1]
	assert.Equal(t, billing.Gas, gas.EnergyType)
	assert.Equal(t, 30.0, gas.BasePrice)
	assert.Equal(t, 6.3, gas.WorkingPrice)
	assert.Nil(t, gas.EndDate)

	src.gasUnitRate = 7.5
	contracts, err = src.Contracts(context.Background(), utcDate(2024, 1, 1), utcDate(2024, 6, 1))
	require.NoError(t, err)
	require.Len(t, contracts, 2)
	assert.Equal(t, 7.5, contracts[1].WorkingPrice)
	assert.Equal(t, 1, gasRequests)
}

func TestAPISourceContracts(t *testing.T) {
	rt := &MockRoundTripper{
		Handler: func(req *http.Request) (*http.Response, error) {
			require.Contains(t, req.URL.Path, "standard-unit-rates")
			return jsonResponse(http.StatusOK, `{
				"count": 1,
				"next": null,
				"results": [
					{"value_exc_vat": 23.0, "value_inc_vat": 24.15, "valid_from": "2023-04-01T00:00:00Z", "valid_to": null}
				]
			}`), nil
		},
	}

	start := utcDate(2024, 1, 1)
	contracts, err := octopusOnlySource(rt).Contracts(context.Background(), start, utcDate(2024, 6, 1))
	require.NoError(t, err)
	require.Len(t, contracts, 2)

	power, gas := contracts[0], contracts[1]
	assert.Equal(t, billing.Power, power.EnergyType)
	assert.Equal(t, 45.0, power.BasePrice)
	assert.Equal(t, 24.15, power.WorkingPrice)
	assert.Nil(t, power.EndDate)

	assert.Equal(t, billing.Gas, gas.EnergyType)
	assert.Equal(t, start, gas.StartDate)
	assert.Equal(t, 30.0, gas.BasePrice)
	assert.Equal(t, 7.5, gas.WorkingPrice)
}

func TestAPISourceFailureIsSourceError(t *testing.T) {
	rt := &MockRoundTripper{
		Handler: func(req *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusInternalServerError, `{"detail": "boom"}`), nil
		},
	}
	src := octopusOnlySource(rt)

	_, err := src.Readings(context.Background(), utcDate(2024, 1, 1), utcDate(2024, 1, 3))
	require.ErrorIs(t, err, errSource)

	_, err = src.Contracts(context.Background(), utcDate(2024, 1, 1), utcDate(2024, 1, 3))
	require.ErrorIs(t, err, errSource)
}
