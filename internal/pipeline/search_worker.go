package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/br00k-3/Datasheet-Grabber/internal/digikey"
	"github.com/br00k-3/Datasheet-Grabber/internal/download"
	"github.com/br00k-3/Datasheet-Grabber/internal/observability"
	"github.com/br00k-3/Datasheet-Grabber/internal/retry"
)

// pollTimeout is how long workers wait on an empty queue before checking
// for shutdown and reporting themselves idle.
const pollTimeout = time.Second

// SearchWorker pulls part records from the parts queue, resolves each
// against the parts API, and either enqueues a download job or emits the
// terminal result itself.
type SearchWorker struct {
	id        string
	client    *digikey.Client
	parts     *Queue[PartRecord]
	downloads *Queue[DownloadJob]
	results   *Queue[ResultRecord]
	tracker   *Tracker
	gate      *errorGate
	logger    observability.Logger

	outputDir   string
	resume      bool
	maxAttempts int
	baseBackoff time.Duration
}

// NewSearchWorker creates a search worker.
func NewSearchWorker(
	id string,
	client *digikey.Client,
	parts *Queue[PartRecord],
	downloads *Queue[DownloadJob],
	results *Queue[ResultRecord],
	tracker *Tracker,
	gate *errorGate,
	outputDir string,
	resume bool,
	maxAttempts int,
	baseBackoff time.Duration,
	logger observability.Logger,
) *SearchWorker {
	return &SearchWorker{
		id:          id,
		client:      client,
		parts:       parts,
		downloads:   downloads,
		results:     results,
		tracker:     tracker,
		gate:        gate,
		outputDir:   outputDir,
		resume:      resume,
		maxAttempts: maxAttempts,
		baseBackoff: baseBackoff,
		logger:      logger.WithFields(observability.Fields{"worker": id}),
	}
}

// Run loops until the parts queue is drained and closed or the context
// is cancelled. Every popped part produces exactly one ResultRecord or
// one DownloadJob; failures inside an item never crash the worker.
func (w *SearchWorker) Run(ctx context.Context) error {
	defer w.tracker.UpdateWorker(w.id, PhaseIdle, "")

	for {
		part, ok, err := w.parts.Pop(ctx, pollTimeout)
		if err != nil {
			// Drained-and-closed or cancelled; either way we stop taking
			// new work. In-flight parts were already handled.
			return nil
		}
		if !ok {
			w.tracker.UpdateWorker(w.id, PhaseIdle, "")
			continue
		}

		// Honor any armed error cool-down before dispatching the next item.
		if err := w.gate.Wait(ctx); err != nil {
			w.emit(ctx, terminal(part, StatusCancelled, "shutdown during error cool-down"))
			return nil
		}

		w.process(ctx, part)
	}
}

func (w *SearchWorker) process(ctx context.Context, part PartRecord) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error(ctx, "Search worker panic recovered", fmt.Errorf("%v", r), observability.Fields{
				"part": part.ManufacturerPartNumber,
			})
			w.tracker.UpdateWorker(w.id, PhaseError, part.ManufacturerPartNumber)
			w.emit(ctx, terminal(part, StatusError, fmt.Sprintf("internal error: %v", r)))
		}
	}()

	target := TargetFilename(part.InternalID, part.ManufacturerPartNumber)
	targetPath := filepath.Join(w.outputDir, target)

	// Resume: a valid datasheet on disk skips the search entirely, so a
	// resumed run issues no API calls for completed parts.
	if w.resume && download.ValidPDFOnDisk(targetPath) {
		res := terminal(part, StatusSkipped, "File already exists")
		res.FilePath = targetPath
		w.emit(ctx, res)
		return
	}

	w.tracker.UpdateWorker(w.id, PhaseSearching, part.ManufacturerPartNumber)

	var match *digikey.ProductMatch
	err := retry.Do(ctx, retry.Policy{
		MaxAttempts:    w.maxAttempts,
		InitialBackoff: w.baseBackoff,
		Multiplier:     2,
		Retryable: func(err error) bool {
			return errors.Is(err, digikey.ErrThrottled)
		},
		OnRetry: func(attempt int, err error) {
			w.tracker.UpdateWorker(w.id, PhaseRateLimited, part.ManufacturerPartNumber)
		},
	}, func(ctx context.Context) error {
		var searchErr error
		match, searchErr = w.client.Search(ctx, part.ManufacturerPartNumber, part.Manufacturer)
		return searchErr
	})

	switch {
	case err == nil && match.DatasheetURL != "":
		job := DownloadJob{
			InternalID:             part.InternalID,
			ManufacturerPartNumber: part.ManufacturerPartNumber,
			Manufacturer:           part.Manufacturer,
			DatasheetURL:           match.DatasheetURL,
			FoundPart:              match.ManufacturerPartNumber,
			ResolvedManufacturer:   match.ManufacturerName,
			DigiKeyPartNumber:      match.DigiKeyPartNumber,
			TargetFilename:         target,
		}
		if pushErr := w.downloads.Push(ctx, job); pushErr != nil {
			w.emit(ctx, terminal(part, StatusCancelled, "shutdown before download could be queued"))
			return
		}

	case err == nil:
		res := terminal(part, StatusNoDatasheet, "No datasheet available")
		res.FoundPart = match.ManufacturerPartNumber
		res.Manufacturer = match.ManufacturerName
		w.emit(ctx, res)

	case errors.Is(err, digikey.ErrNotFound):
		w.emit(ctx, terminal(part, StatusNotFound, "Part not found in API"))

	case errors.Is(err, digikey.ErrAmbiguous):
		w.logger.Warn(ctx, "Unresolved ambiguous match", observability.Fields{
			"part":   part.ManufacturerPartNumber,
			"reason": err.Error(),
		})
		w.emit(ctx, terminal(part, StatusError, err.Error()))

	case ctx.Err() != nil:
		w.emit(ctx, terminal(part, StatusCancelled, "shutdown during search"))

	default:
		w.logger.Error(ctx, "Search failed", err, observability.Fields{
			"part": part.ManufacturerPartNumber,
		})
		w.tracker.UpdateWorker(w.id, PhaseError, part.ManufacturerPartNumber)
		w.emit(ctx, terminal(part, StatusError, err.Error()))
	}
}

// emit pushes the terminal result. The results queue is sized for the
// whole batch, so this only fails when the run is being torn down.
func (w *SearchWorker) emit(ctx context.Context, res ResultRecord) {
	w.gate.Record(res.Status)
	if err := w.results.Push(ctx, res); err != nil {
		w.logger.Warn(ctx, "Dropped result during shutdown", observability.Fields{
			"internal_id": res.InternalID,
		})
	}
}

func terminal(part PartRecord, status Status, message string) ResultRecord {
	return ResultRecord{
		InternalID:             part.InternalID,
		ManufacturerPartNumber: part.ManufacturerPartNumber,
		Manufacturer:           part.Manufacturer,
		Status:                 status,
		Message:                message,
	}
}
