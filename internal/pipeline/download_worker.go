package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/br00k-3/Datasheet-Grabber/internal/download"
	"github.com/br00k-3/Datasheet-Grabber/internal/observability"
	"github.com/br00k-3/Datasheet-Grabber/internal/storage"
)

// DownloadWorker pulls download jobs and fetches each datasheet, emitting
// the terminal result for the originating part.
type DownloadWorker struct {
	id         string
	downloader *download.Downloader
	downloads  *Queue[DownloadJob]
	results    *Queue[ResultRecord]
	tracker    *Tracker
	gate       *errorGate
	logger     observability.Logger

	outputDir string
	// archive, when non-nil, receives a copy of every fresh download.
	archive storage.ObjectStorage
}

// NewDownloadWorker creates a download worker.
func NewDownloadWorker(
	id string,
	downloader *download.Downloader,
	downloads *Queue[DownloadJob],
	results *Queue[ResultRecord],
	tracker *Tracker,
	gate *errorGate,
	outputDir string,
	archive storage.ObjectStorage,
	logger observability.Logger,
) *DownloadWorker {
	return &DownloadWorker{
		id:         id,
		downloader: downloader,
		downloads:  downloads,
		results:    results,
		tracker:    tracker,
		gate:       gate,
		outputDir:  outputDir,
		archive:    archive,
		logger:     logger.WithFields(observability.Fields{"worker": id}),
	}
}

// Run loops until the download queue is drained and closed or the
// context is cancelled.
func (w *DownloadWorker) Run(ctx context.Context) error {
	defer w.tracker.UpdateWorker(w.id, PhaseIdle, "")

	for {
		job, ok, err := w.downloads.Pop(ctx, pollTimeout)
		if err != nil {
			return nil
		}
		if !ok {
			w.tracker.UpdateWorker(w.id, PhaseIdle, "")
			continue
		}

		if err := w.gate.Wait(ctx); err != nil {
			w.emit(ctx, w.terminal(job, StatusCancelled, "shutdown during error cool-down"))
			return nil
		}

		w.process(ctx, job)
	}
}

func (w *DownloadWorker) process(ctx context.Context, job DownloadJob) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error(ctx, "Download worker panic recovered", fmt.Errorf("%v", r), observability.Fields{
				"part": job.ManufacturerPartNumber,
			})
			w.tracker.UpdateWorker(w.id, PhaseError, job.ManufacturerPartNumber)
			w.emit(ctx, w.terminal(job, StatusError, fmt.Sprintf("internal error: %v", r)))
		}
	}()

	w.tracker.UpdateWorker(w.id, PhaseDownloading, job.ManufacturerPartNumber)

	targetPath := filepath.Join(w.outputDir, job.TargetFilename)
	skipped, err := w.downloader.Fetch(ctx, job.DatasheetURL, targetPath)

	switch {
	case err != nil && ctx.Err() != nil:
		w.emit(ctx, w.terminal(job, StatusCancelled, "shutdown during download"))

	case err != nil:
		w.logger.Error(ctx, "Download failed", err, observability.Fields{
			"part": job.ManufacturerPartNumber,
			"url":  job.DatasheetURL,
		})
		w.emit(ctx, w.terminal(job, StatusDownloadFailed, err.Error()))

	case skipped:
		res := w.terminal(job, StatusSkipped, "File already exists")
		res.FilePath = targetPath
		w.emit(ctx, res)

	default:
		if w.archive != nil {
			w.archiveFile(ctx, job, targetPath)
		}
		res := w.terminal(job, StatusSuccess, "Downloaded successfully")
		res.FilePath = targetPath
		w.emit(ctx, res)
	}
}

// archiveFile mirrors a fresh download to the archive backend. Archive
// failures are logged but never fail the item: the datasheet is already
// safely on local disk.
func (w *DownloadWorker) archiveFile(ctx context.Context, job DownloadJob, path string) {
	f, err := os.Open(path)
	if err != nil {
		w.logger.Warn(ctx, "Archive skipped: cannot reopen download", observability.Fields{
			"path":  path,
			"error": err.Error(),
		})
		return
	}
	defer f.Close()

	if err := w.archive.Put(ctx, job.TargetFilename, f, "application/pdf"); err != nil {
		w.logger.Warn(ctx, "Archive upload failed", observability.Fields{
			"key":   job.TargetFilename,
			"error": err.Error(),
		})
	}
}

func (w *DownloadWorker) emit(ctx context.Context, res ResultRecord) {
	w.gate.Record(res.Status)
	if err := w.results.Push(ctx, res); err != nil {
		w.logger.Warn(ctx, "Dropped result during shutdown", observability.Fields{
			"internal_id": res.InternalID,
		})
	}
}

func (w *DownloadWorker) terminal(job DownloadJob, status Status, message string) ResultRecord {
	return ResultRecord{
		InternalID:             job.InternalID,
		ManufacturerPartNumber: job.ManufacturerPartNumber,
		Manufacturer:           job.ResolvedManufacturer,
		FoundPart:              job.FoundPart,
		Status:                 status,
		Message:                message,
		DatasheetURL:           job.DatasheetURL,
	}
}
