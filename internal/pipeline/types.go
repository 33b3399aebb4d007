// Package pipeline implements the concurrent datasheet processing
// pipeline: a pool of search workers resolving part numbers against the
// parts API feeds a pool of download workers through bounded queues,
// while an orchestrator drains terminal results and reports progress.
package pipeline

import (
	"strings"
	"time"
)

// PartRecord is one row of input: an internal inventory code, the
// manufacturer's part number, and an optional manufacturer name used to
// disambiguate ambiguous searches. Immutable once read.
type PartRecord struct {
	InternalID             string
	ManufacturerPartNumber string
	Manufacturer           string
}

// Status classifies a terminal result.
type Status string

const (
	StatusSuccess        Status = "success"
	StatusSkipped        Status = "skipped"
	StatusNoDatasheet    Status = "no_datasheet"
	StatusNotFound       Status = "not_found"
	StatusDownloadFailed Status = "download_failed"
	StatusError          Status = "error"
	StatusCancelled      Status = "cancelled"
)

// StatusOrder lists every status in report order, success-like first.
var StatusOrder = []Status{
	StatusSuccess,
	StatusSkipped,
	StatusNoDatasheet,
	StatusNotFound,
	StatusDownloadFailed,
	StatusError,
	StatusCancelled,
}

// statusPriority orders report rows, success-like first.
var statusPriority = map[Status]int{
	StatusSuccess:        0,
	StatusSkipped:        1,
	StatusNoDatasheet:    2,
	StatusNotFound:       3,
	StatusDownloadFailed: 4,
	StatusError:          5,
	StatusCancelled:      6,
}

// DownloadJob is handed from a search worker to the download pool. It is
// created only when the selected product carries a datasheet URL.
type DownloadJob struct {
	InternalID             string
	ManufacturerPartNumber string
	Manufacturer           string
	DatasheetURL           string
	FoundPart              string
	ResolvedManufacturer   string
	DigiKeyPartNumber      string
	TargetFilename         string
}

// ResultRecord is the single terminal record produced for each input
// part. Written once, never re-queued.
type ResultRecord struct {
	InternalID             string
	ManufacturerPartNumber string
	Status                 Status
	Message                string
	FoundPart              string
	Manufacturer           string
	DatasheetURL           string
	FilePath               string
}

// Phase describes what a worker is currently doing.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseSearching   Phase = "searching"
	PhaseDownloading Phase = "downloading"
	PhaseRateLimited Phase = "rate_limited"
	PhaseError       Phase = "error"
)

// WorkerStatus is a point-in-time view of one worker, mutated only by the
// owning worker through the Tracker.
type WorkerStatus struct {
	WorkerID  string
	Phase     Phase
	Item      string
	UpdatedAt time.Time
}

// TargetFilename derives the deterministic output filename for a part.
// It is the idempotence key for resume: a non-empty file with this name
// short-circuits both search and download on later runs.
func TargetFilename(internalID, mpn string) string {
	return sanitizeFilename(internalID+"_"+mpn) + ".pdf"
}

// sanitizeFilename keeps alphanumerics, spaces, dashes and underscores,
// replacing everything else.
func sanitizeFilename(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return strings.TrimSpace(b.String())
}
