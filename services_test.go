package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/mgazza/energy-costs/billing"
)

// MockRoundTripper is a mock implementation of http.RoundTripper.
type MockRoundTripper struct {
	Handler func(req *http.Request) (*http.Response, error)
}

func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return m.Handler(req)
}

func jsonResponse(status int, body string) *http.Response {
	header := make(http.Header)
	header.Set("Content-Type", "application/json")
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewReader([]byte(body))),
		Header:     header,
	}
}

// staticSource serves fixed readings and contracts.
type staticSource struct {
	readings  []billing.MeterReading
	contracts []billing.Contract
	err       error
}

func (s *staticSource) Readings(ctx context.Context, start, end time.Time) ([]billing.MeterReading, error) {
	return s.readings, s.err
}

func (s *staticSource) Contracts(ctx context.Context, start, end time.Time) ([]billing.Contract, error) {
	return s.contracts, s.err
}

func utcDate(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
