// Package input loads the part list that feeds a run.
package input

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/br00k-3/Datasheet-Grabber/internal/pipeline"
)

// LoadParts reads part records from a CSV file. The first row is a header
// and is skipped; each following row carries internal part number,
// manufacturer and manufacturer part number in the first three columns.
// Rows with fewer than three columns are ignored.
func LoadParts(path string) ([]pipeline.PartRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open parts file: %w", err)
	}
	defer f.Close()

	return ReadParts(f)
}

// ReadParts parses part records from CSV data.
func ReadParts(r io.Reader) ([]pipeline.PartRecord, error) {
	reader := csv.NewReader(r)
	// Rows may carry trailing columns beyond the three we use.
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("parts file is empty")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	var parts []pipeline.PartRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read parts row: %w", err)
		}
		if len(row) < 3 {
			continue
		}

		rec := pipeline.PartRecord{
			InternalID:             strings.TrimSpace(row[0]),
			Manufacturer:           strings.TrimSpace(row[1]),
			ManufacturerPartNumber: strings.TrimSpace(row[2]),
		}
		if rec.InternalID == "" || rec.ManufacturerPartNumber == "" {
			continue
		}
		parts = append(parts, rec)
	}

	if len(parts) == 0 {
		return nil, fmt.Errorf("no parts to process")
	}
	return parts, nil
}
