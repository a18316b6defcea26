package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mgazza/energy-costs/billing"
)

func TestFetchImportReadings(t *testing.T) {
	// Expected call to the GivEnergy API: GET /inverter/{serial}/data-points/{date}
	mockRoundTripper := &MockRoundTripper{
		Handler: func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "/v1/inverter/ABC12345/data-points/2025-01-01", req.URL.Path, "Unexpected request URL")

			return jsonResponse(http.StatusOK, `{
				"data": [
					{"time": "2025-01-01T00:00:00Z", "total": {"grid": {"import": 1842.3, "export": 1629.9}}},
					{"time": "2025-01-01T00:30:00Z", "total": {"grid": {"import": 1845.4, "export": 1630}}}
				],
				"meta": {"current_page": 1, "last_page": 1}
			}`), nil
		},
	}

	givService := NewGivEnergyService(mockRoundTripper, "dummyBearerToken", zap.NewNop())
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 1, 23, 59, 59, 0, time.UTC)

	readings, err := givService.FetchImportReadings(context.Background(), "ABC12345", start, end, time.UTC)
	require.NoError(t, err, "Expected no error while fetching inverter data")
	require.Len(t, readings, 1, "Expected one reading per day")
	require.Equal(t, billing.Power, readings[0].EnergyType)
	require.Equal(t, 1845.4, readings[0].Amount, "Unexpected cumulative import")
	require.Equal(t, time.Date(2025, 1, 1, 23, 59, 59, 0, time.UTC), readings[0].Date)
}

func TestFetchImportReadingsPerDay(t *testing.T) {
	calls := 0
	mockRoundTripper := &MockRoundTripper{
		Handler: func(req *http.Request) (*http.Response, error) {
			calls++
			if req.URL.Path == "/v1/inverter/ABC12345/data-points/2025-01-02" {
				return jsonResponse(http.StatusOK, `{
					"data": [{"time": "2025-01-02T12:00:00Z", "total": {"grid": {"import": 1850.0, "export": 1630}}}],
					"meta": {"current_page": 1, "last_page": 1}
				}`), nil
			}
			return jsonResponse(http.StatusOK, `{
				"data": [{"time": "2025-01-01T12:00:00Z", "total": {"grid": {"import": 1845.4, "export": 1630}}}],
				"meta": {"current_page": 1, "last_page": 1}
			}`), nil
		},
	}

	givService := NewGivEnergyService(mockRoundTripper, "dummyBearerToken", zap.NewNop())
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)

	readings, err := givService.FetchImportReadings(context.Background(), "ABC12345", start, end, time.UTC)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
	require.Len(t, readings, 2)
	require.Equal(t, 1845.4, readings[0].Amount)
	require.Equal(t, 1850.0, readings[1].Amount)
}
