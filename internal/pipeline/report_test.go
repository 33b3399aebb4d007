package pipeline

import (
	"encoding/csv"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readReport(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestWriteReport_SortsByStatusPriority(t *testing.T) {
	results := []ResultRecord{
		{InternalID: "P3", ManufacturerPartNumber: "C", Status: StatusError, Message: "boom"},
		{InternalID: "P1", ManufacturerPartNumber: "A", Status: StatusSuccess, FilePath: "datasheets/P1_A.pdf"},
		{InternalID: "P4", ManufacturerPartNumber: "D", Status: StatusNotFound},
		{InternalID: "P2", ManufacturerPartNumber: "B", Status: StatusSkipped, FilePath: "datasheets/P2_B.pdf"},
	}

	path, err := WriteReport(t.TempDir(), results)
	require.NoError(t, err)

	rows := readReport(t, path)
	require.Len(t, rows, 5)
	assert.Equal(t, reportColumns, rows[0])

	var statuses []string
	for _, row := range rows[1:] {
		statuses = append(statuses, row[0])
	}
	assert.Equal(t, []string{"success", "skipped", "not_found", "error"}, statuses)
}

func TestWriteReport_TiesBreakOnInternalID(t *testing.T) {
	results := []ResultRecord{
		{InternalID: "P2", Status: StatusSuccess},
		{InternalID: "P1", Status: StatusSuccess},
	}

	path, err := WriteReport(t.TempDir(), results)
	require.NoError(t, err)

	rows := readReport(t, path)
	assert.Equal(t, "P1", rows[1][1])
	assert.Equal(t, "P2", rows[2][1])
}

func TestWriteReport_FileOrURLFallback(t *testing.T) {
	results := []ResultRecord{
		{InternalID: "P1", Status: StatusSuccess, FilePath: "datasheets/P1.pdf", DatasheetURL: "https://host/a.pdf"},
		{InternalID: "P2", Status: StatusDownloadFailed, DatasheetURL: "https://host/b.pdf"},
		{InternalID: "P3", Status: StatusNotFound},
	}

	path, err := WriteReport(t.TempDir(), results)
	require.NoError(t, err)

	rows := readReport(t, path)
	byID := make(map[string]string)
	for _, row := range rows[1:] {
		byID[row[1]] = row[5]
	}
	assert.Equal(t, "datasheets/P1.pdf", byID["P1"])
	assert.Equal(t, "https://host/b.pdf", byID["P2"])
	assert.Equal(t, "", byID["P3"])
}

func TestWriteReport_DoesNotMutateInput(t *testing.T) {
	results := []ResultRecord{
		{InternalID: "P2", Status: StatusError},
		{InternalID: "P1", Status: StatusSuccess},
	}

	_, err := WriteReport(t.TempDir(), results)
	require.NoError(t, err)

	assert.Equal(t, "P2", results[0].InternalID)
}
