package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	httptransport "github.com/go-openapi/runtime/client"
	strfmt "github.com/go-openapi/strfmt"
	giv "github.com/mgazza/go-givenergy/client"
	"github.com/mgazza/go-givenergy/client/inverter_data"
	"go.uber.org/zap"

	"github.com/mgazza/energy-costs/billing"
)

// GivEnergyService handles interactions with the GivEnergy API.
type GivEnergyService struct {
	Client *giv.GivEnergyAPIDocumentationV1350
	logger *zap.Logger
}

// NewGivEnergyService creates a new GivEnergyService with pre-configured authentication.
func NewGivEnergyService(tr http.RoundTripper, bearerToken string, logger *zap.Logger) *GivEnergyService {
	cfg := giv.DefaultTransportConfig()
	transport := httptransport.New(cfg.Host, cfg.BasePath, cfg.Schemes)
	transport.Transport = tr
	transport.DefaultAuthentication = httptransport.BearerToken(bearerToken)

	client := giv.New(transport, strfmt.Default)
	return &GivEnergyService{
		Client: client,
		logger: logger.Named("givenergy"),
	}
}

// FetchImportReadings returns one cumulative grid import reading per day from
// the inverter's own counter.
func (s *GivEnergyService) FetchImportReadings(ctx context.Context, serial string, start, end time.Time, loc *time.Location) ([]billing.MeterReading, error) {
	var samples []usageSample
	pageSize := int64(500)

	for day := truncateToMidnight(start.In(loc)); day.Before(end); day = day.AddDate(0, 0, 1) {
		s.logger.Debug("getting inverter data", zap.String("date", day.Format("2006-01-02")))
		page := int64(1)
		params := inverter_data.NewGetDataPoints2Params().
			WithContext(ctx).
			WithDate(day.Format("2006-01-02")).
			WithInverterSerialNumber(serial).
			WithPageSize(&pageSize)

		for {
			params.WithPage(&page)
			response, err := s.Client.InverterData.GetDataPoints2(params, nil)
			if err != nil {
				return nil, fmt.Errorf("failed to fetch inverter data: %w", err)
			}

			for _, d := range response.Payload.Data {
				samples = append(samples, usageSample{
					At:  time.Time(d.Time),
					KWh: d.Total.Grid.Import,
				})
			}

			if response.Payload.Meta.CurrentPage == response.Payload.Meta.LastPage {
				break
			}
			page++
		}
	}

	readings := lastPerDay(samples, billing.Power, loc)
	s.logger.Info("fetched inverter data", zap.Int("records", len(samples)), zap.Int("days", len(readings)))
	return readings, nil
}
