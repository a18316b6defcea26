package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mgazza/energy-costs/billing"
)

const (
	formatCSV  = "csv"
	formatJSON = "json"
)

// writeReport writes points to path in format. An empty path or "-" means
// standard output.
func writeReport(path, format string, points []billing.CostDataPoint) error {
	if format != formatCSV && format != formatJSON {
		return fmt.Errorf("unknown output format %q", format)
	}

	var w io.Writer = os.Stdout
	if path != "" && path != "-" {
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}
	return encodeReport(w, format, points)
}

func encodeReport(w io.Writer, format string, points []billing.CostDataPoint) error {
	if format == formatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(points)
	}
	return writeCSV(w, points)
}
