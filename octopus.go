package main

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-openapi/runtime"
	httptransport "github.com/go-openapi/runtime/client"
	"github.com/go-openapi/strfmt"
	octopus "github.com/mgazza/go-octopus-energy/client"
	"github.com/mgazza/go-octopus-energy/client/accounts"
	"github.com/mgazza/go-octopus-energy/client/electricity_meter_points"
	"github.com/mgazza/go-octopus-energy/client/products"
	"go.uber.org/zap"
)

// OctopusService handles interactions with the Octopus Energy API.
type OctopusService struct {
	Client    *octopus.OctopusEnergyRESTAPI
	transport runtime.ClientTransport
	logger    *zap.Logger
}

// NewOctopusService creates a new OctopusService with pre-configured authentication.
func NewOctopusService(rt http.RoundTripper, apiKey string, logger *zap.Logger) *OctopusService {
	cfg := octopus.DefaultTransportConfig()
	transport := httptransport.New(cfg.Host, cfg.BasePath, cfg.Schemes)
	transport.Transport = rt
	transport.DefaultAuthentication = httptransport.BasicAuth(apiKey, "")

	client := octopus.New(transport, strfmt.Default)
	return &OctopusService{
		Client:    client,
		transport: transport,
		logger:    logger.Named("octopus"),
	}
}

// GetMetersAndTariff fetches meter information and tariff details.
// returns the import and gas meter; the gas meter is nil when the account has none
func (s *OctopusService) GetMetersAndTariff(ctx context.Context, accountID string) (*MeterInfo, *MeterInfo, error) {
	params := accounts.NewGetAccountParams().WithContext(ctx).WithAccountID(accountID)
	response, err := s.Client.Accounts.GetAccount(params, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch account details: %w", err)
	}

	if len(response.Payload.Properties) < 1 {
		return nil, nil, fmt.Errorf("no properties found on the account")
	}

	property := response.Payload.Properties[0]

	productResponse, err := s.Client.Products.ListProducts(products.NewListProductsParams().WithContext(ctx), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch products: %w", err)
	}

	findProductCode := func(tariffCode string) string {
		for _, p := range productResponse.Payload.Results {
			if p.Code != nil && strings.Contains(tariffCode, *p.Code) {
				return *p.Code
			}
		}
		return ""
	}

	var importMeter, exportMeter, gasMeter *MeterInfo
	for _, meterPoint := range property.ElectricityMeterPoints {
		if len(meterPoint.Meters) < 1 || len(meterPoint.Agreements) < 1 {
			continue
		}

		tariffCode := meterPoint.Agreements[len(meterPoint.Agreements)-1].TariffCode
		meter := &MeterInfo{
			ProductCode:  findProductCode(tariffCode),
			TariffCode:   tariffCode,
			SerialNumber: meterPoint.Meters[0].SerialNumber,
			Mpan:         meterPoint.Mpan,
		}
		if meterPoint.IsExport {
			exportMeter = meter
		} else {
			importMeter = meter
		}
	}

	for _, meterPoint := range property.GasMeterPoints {
		if len(meterPoint.Meters) < 1 || len(meterPoint.Agreements) < 1 {
			continue
		}

		tariffCode := meterPoint.Agreements[len(meterPoint.Agreements)-1].TariffCode
		gasMeter = &MeterInfo{
			ProductCode:  findProductCode(tariffCode),
			TariffCode:   tariffCode,
			SerialNumber: meterPoint.Meters[0].SerialNumber,
			Mpan:         meterPoint.Mprn,
		}
	}

	if importMeter == nil {
		return nil, nil, fmt.Errorf("no import meter found on account %s", accountID)
	}

	s.logger.Info("discovered meters",
		zap.String("import_mpan", importMeter.Mpan),
		zap.String("tariff", importMeter.TariffCode),
		zap.Bool("export", exportMeter != nil),
		zap.Bool("gas", gasMeter != nil))

	return importMeter, gasMeter, nil
}

// FetchTariffs fetches tariff data for the specified parameters.
func (s *OctopusService) FetchTariffs(ctx context.Context, productCode, tariffCode string, start, end time.Time) ([]UnitRate, error) {
	var rates []UnitRate
	pageSize := int64(672) // Fetch two weeks of half-hour slots per page
	page := int64(1)

	params := products.NewListElectricityTariffStandardUnitRatesParams().
		WithContext(ctx).
		WithProductCode(productCode).
		WithTariffCode(tariffCode).
		WithPeriodFrom((*strfmt.DateTime)(&start)).
		WithPeriodTo((*strfmt.DateTime)(&end)).
		WithPageSize(&pageSize)

	for {
		params.WithPage(&page)
		response, err := s.Client.Products.ListElectricityTariffStandardUnitRates(params, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch tariffs: %w", err)
		}

		for _, rate := range response.Payload.Results {
			rates = append(rates, UnitRate{
				Rate:      rate.ValueIncVat,
				ValidFrom: (*time.Time)(rate.ValidFrom),
				ValidTo:   (*time.Time)(rate.ValidTo),
			})
		}

		if response.Payload.Next == nil {
			break
		}

		page++
	}

	s.logger.Debug("fetched tariffs", zap.String("tariff", tariffCode), zap.Int("rates", len(rates)))
	return rates, nil
}

// GetMeterConsumption fetches the half-hourly consumption of meter between
// start and end.
func (s *OctopusService) GetMeterConsumption(ctx context.Context, meter *MeterInfo, start, end time.Time) ([]usageSample, error) {
	var samples []usageSample
	page := int64(1)
	pageSize := int64(336) // two weeks of 30 mins
	params := electricity_meter_points.NewListConsumptionForAnElectricityMeterParams().
		WithContext(ctx).
		WithMpan(meter.Mpan).
		WithSerialNumber(meter.SerialNumber).
		WithPeriodFrom((*strfmt.DateTime)(&start)).
		WithPeriodTo((*strfmt.DateTime)(&end)).
		WithPageSize(&pageSize)

	for {
		params.WithPage(&page)
		response, err := s.Client.ElectricityMeterPoints.ListConsumptionForAnElectricityMeter(params, nil)
		if err != nil {
			return nil, fmt.Errorf("error querying octopus data: %w", err)
		}
		if !response.IsSuccess() {
			return nil, fmt.Errorf("error querying octopus data: %v", response.Error())
		}

		for _, r := range response.Payload.Results {
			if r.IntervalStart == nil {
				continue
			}
			samples = append(samples, usageSample{
				At:  time.Time(*r.IntervalStart).Truncate(30 * time.Minute),
				KWh: r.Consumption,
			})
		}

		if response.Payload.Next == nil {
			break
		}
		page++
	}

	s.logger.Info("fetched consumption", zap.String("mpan", meter.Mpan), zap.Int("records", len(samples)))
	return samples, nil
}

// gasUnitRatesPage is one page of the gas standard unit rates endpoint.
type gasUnitRatesPage struct {
	Next    *string `json:"next"`
	Results []struct {
		ValueIncVat float64          `json:"value_inc_vat"`
		ValidFrom   *strfmt.DateTime `json:"valid_from"`
		ValidTo     *strfmt.DateTime `json:"valid_to"`
	} `json:"results"`
}

// FetchGasTariffs fetches the gas unit rates of a tariff. The operation is
// submitted on the client's transport so it shares authentication and caching.
func (s *OctopusService) FetchGasTariffs(ctx context.Context, productCode, tariffCode string, start, end time.Time) ([]UnitRate, error) {
	const opID = "listGasTariffStandardUnitRates"
	var rates []UnitRate

	for page := 1; ; page++ {
		params := runtime.ClientRequestWriterFunc(func(r runtime.ClientRequest, _ strfmt.Registry) error {
			if err := r.SetPathParam("product_code", productCode); err != nil {
				return err
			}
			if err := r.SetPathParam("tariff_code", tariffCode); err != nil {
				return err
			}
			if err := r.SetQueryParam("period_from", strfmt.DateTime(start).String()); err != nil {
				return err
			}
			if err := r.SetQueryParam("period_to", strfmt.DateTime(end).String()); err != nil {
				return err
			}
			if err := r.SetQueryParam("page_size", "1500"); err != nil {
				return err
			}
			return r.SetQueryParam("page", strconv.Itoa(page))
		})
		reader := runtime.ClientResponseReaderFunc(func(resp runtime.ClientResponse, consumer runtime.Consumer) (interface{}, error) {
			if resp.Code() != http.StatusOK {
				return nil, runtime.NewAPIError(opID, resp.Message(), resp.Code())
			}
			result := &gasUnitRatesPage{}
			if err := consumer.Consume(resp.Body(), result); err != nil {
				return nil, err
			}
			return result, nil
		})

		result, err := s.transport.Submit(&runtime.ClientOperation{
			ID:                 opID,
			Method:             http.MethodGet,
			PathPattern:        "/products/{product_code}/gas-tariffs/{tariff_code}/standard-unit-rates/",
			ProducesMediaTypes: []string{"application/json"},
			ConsumesMediaTypes: []string{"application/json"},
			Params:             params,
			Reader:             reader,
			Context:            ctx,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch gas tariffs: %w", err)
		}

		response := result.(*gasUnitRatesPage)
		for _, rate := range response.Results {
			rates = append(rates, UnitRate{
				Rate:      rate.ValueIncVat,
				ValidFrom: (*time.Time)(rate.ValidFrom),
				ValidTo:   (*time.Time)(rate.ValidTo),
			})
		}
		if response.Next == nil {
			break
		}
	}

	s.logger.Debug("fetched gas tariffs", zap.String("tariff", tariffCode), zap.Int("rates", len(rates)))
	return rates, nil
}
