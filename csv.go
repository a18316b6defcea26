package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mgazza/energy-costs/billing"
)

// formatMoney rounds half to even at two decimal places.
func formatMoney(val float64) string {
	return decimal.NewFromFloat(val).StringFixedBank(2)
}

// formatEnergy prints kWh with meter precision.
func formatEnergy(val float64) string {
	return decimal.NewFromFloat(val).StringFixed(3)
}

// reportTypes returns every energy type priced in points, sorted.
func reportTypes(points []billing.CostDataPoint) []billing.EnergyType {
	seen := make(map[billing.EnergyType]struct{})
	var types []billing.EnergyType
	for _, p := range points {
		for t := range p.Costs {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			types = append(types, t)
		}
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// writeCSV writes one row per period with consumption and cost per energy type.
func writeCSV(w io.Writer, points []billing.CostDataPoint) error {
	writer := csv.NewWriter(w)
	types := reportTypes(points)

	header := []string{"Period", "Start", "End", "Status", "Interpolated", "Extrapolated"}
	for _, t := range types {
		header = append(header,
			fmt.Sprintf("%s_Consumption", t),
			fmt.Sprintf("%s_WorkingPrice", t),
			fmt.Sprintf("%s_Cost", t))
	}
	header = append(header, "Total_Cost")
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, p := range points {
		record := []string{
			p.PeriodKey,
			p.PeriodStart.Format(time.RFC3339),
			p.PeriodEnd.Format(time.RFC3339),
			string(p.Status),
			strconv.FormatBool(p.IsInterpolated),
			strconv.FormatBool(p.IsExtrapolated),
		}
		for _, t := range types {
			consumption, workingPrice := "", ""
			if b, ok := p.Breakdown[t]; ok {
				consumption = formatEnergy(b.Consumption)
				workingPrice = strconv.FormatFloat(b.WorkingPrice, 'f', -1, 64)
			}
			record = append(record, consumption, workingPrice, formatMoney(p.Costs[t]))
		}
		record = append(record, formatMoney(p.TotalCost))
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
