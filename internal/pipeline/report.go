package pipeline

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// reportColumns is the final report header.
var reportColumns = []string{
	"status",
	"internal_pn",
	"manufacturer_pn",
	"found_part",
	"manufacturer",
	"file_or_url",
	"message",
}

// WriteReport writes the run report to reportDir, sorted by status
// priority (success-like first) then internal id. Returns the report
// path. Called even after an interrupt so partial results are never lost.
func WriteReport(reportDir string, results []ResultRecord) (string, error) {
	if err := os.MkdirAll(reportDir, 0755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}

	sorted := make([]ResultRecord, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		pi, pj := statusPriority[sorted[i].Status], statusPriority[sorted[j].Status]
		if pi != pj {
			return pi < pj
		}
		return sorted[i].InternalID < sorted[j].InternalID
	})

	path := filepath.Join(reportDir, fmt.Sprintf("report_%s.csv", time.Now().Format("20060102_150405")))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(reportColumns); err != nil {
		return "", fmt.Errorf("write report header: %w", err)
	}
	for _, r := range sorted {
		fileOrURL := r.FilePath
		if fileOrURL == "" {
			fileOrURL = r.DatasheetURL
		}
		row := []string{
			string(r.Status),
			r.InternalID,
			r.ManufacturerPartNumber,
			r.FoundPart,
			r.Manufacturer,
			fileOrURL,
			r.Message,
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write report row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush report: %w", err)
	}
	return path, nil
}
