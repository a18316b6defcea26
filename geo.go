package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	httptransport "github.com/go-openapi/runtime/client"
	"github.com/go-openapi/strfmt"
	geo "github.com/mgazza/go-geotogether/client"
	geoops "github.com/mgazza/go-geotogether/client/operations"
	"go.uber.org/zap"

	"github.com/mgazza/energy-costs/billing"
)

// geoEnergyTypes maps GEO reading types onto metered commodities.
var geoEnergyTypes = map[string]billing.EnergyType{
	"IMPORT":     billing.Power,
	"GAS_ENERGY": billing.Gas,
}

// GeoTogetherService handles interactions with the Geo Together API.
type GeoTogetherService struct {
	Client *geo.GeoTogetherAPI
	logger *zap.Logger
}

// NewGeoTogetherService creates a new GeoTogetherService with authentication.
func NewGeoTogetherService(ctx context.Context, tr http.RoundTripper, username, password string, logger *zap.Logger) (*GeoTogetherService, error) {
	cfg := geo.DefaultTransportConfig()
	transport := httptransport.New(cfg.Host, cfg.BasePath, cfg.Schemes)
	transport.Transport = tr
	nc := geo.New(transport, strfmt.Default)

	p := geoops.NewPostUsersserviceV2LoginParams().WithContext(ctx).WithBody(geoops.PostUsersserviceV2LoginBody{
		Identity: username,
		Password: password,
	})
	r, err := nc.Operations.PostUsersserviceV2Login(p, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize GeoTogether client: %w", err)
	}

	if !r.IsSuccess() {
		return nil, fmt.Errorf("failed to call GeoTogether login: %v", r.Error())
	}

	transport.DefaultAuthentication = httptransport.BearerToken(r.Payload.AccessToken)

	return &GeoTogetherService{Client: nc, logger: logger.Named("geo")}, nil
}

// GetUserSystemID returns the first system with paired devices.
func (s *GeoTogetherService) GetUserSystemID(ctx context.Context) (string, error) {
	r, err := s.Client.Operations.GetAPIUserapiV2UserDetailSystems(
		geoops.NewGetAPIUserapiV2UserDetailSystemsParams().
			WithContext(ctx).
			WithSystemDetails(true), nil)
	if err != nil {
		return "", fmt.Errorf("failed to fetch systems: %w", err)
	}
	if !r.IsSuccess() {
		return "", fmt.Errorf("failed to fetch systems: %v", r.Error())
	}

	for _, m := range r.Payload.SystemDetails {
		if len(m.Devices) > 0 {
			return m.SystemID, nil
		}
	}
	return "", fmt.Errorf("no systems with devices")
}

func (s *GeoTogetherService) GetSystemReadings(ctx context.Context, systemID string, startDate time.Time, endDate *time.Time) ([]*geoops.GetEpochserviceV1SystemSystemIDReadingsOKBodyItems0, error) {
	p := geoops.NewGetEpochserviceV1SystemSystemIDReadingsParams().
		WithContext(ctx).
		WithSystemID(systemID).
		WithStartDate(strfmt.Date(startDate))

	if endDate != nil {
		p = p.WithEndDate(strfmt.Date(*endDate))
	}

	r, err := s.Client.Operations.GetEpochserviceV1SystemSystemIDReadings(p, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch readings: %w", err)
	}
	if !r.IsSuccess() {
		return nil, fmt.Errorf("failed to fetch readings: %v", r.Error())
	}

	return r.Payload, nil
}

// FetchReadings returns cumulative daily readings per commodity built from the
// 15 minute energy buckets between startDate and endDate.
func (s *GeoTogetherService) FetchReadings(ctx context.Context, startDate, endDate time.Time, loc *time.Location) (map[billing.EnergyType][]billing.MeterReading, error) {
	systemID, err := s.GetUserSystemID(ctx)
	if err != nil {
		return nil, fmt.Errorf("getting user system id: %w", err)
	}

	ed := &endDate
	// Ensure the end date includes at least the full day
	if startDate.Year() == endDate.Year() && startDate.YearDay() == endDate.YearDay() {
		ed1 := endDate.Add(24 * time.Hour)
		ed = &ed1
		if ed.After(time.Now()) {
			ed = nil
		}
	}

	groups, err := s.GetSystemReadings(ctx, systemID, startDate, ed)
	if err != nil {
		return nil, fmt.Errorf("getting system readings: %w", err)
	}

	samples := make(map[billing.EnergyType][]usageSample)
	for _, group := range groups {
		at := time.Unix(int64(group.StartTimestamp), 0)
		if at.Before(startDate) || !at.Before(endDate) {
			continue
		}
		for _, reading := range group.Readings {
			energyType, ok := geoEnergyTypes[reading.EnergyType]
			if !ok {
				continue
			}
			samples[energyType] = append(samples[energyType], usageSample{
				At:  at,
				KWh: float64(reading.EnergyWattHours) / 1000,
			})
		}
	}

	out := make(map[billing.EnergyType][]billing.MeterReading, len(samples))
	for energyType, ss := range samples {
		out[energyType] = cumulativeReadings(ss, energyType, loc)
	}
	s.logger.Info("fetched GEO readings", zap.Int("groups", len(groups)), zap.Int("commodities", len(out)))
	return out, nil
}
