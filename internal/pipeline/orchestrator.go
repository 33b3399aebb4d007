// Package pipeline connects the search and download worker pools through
// bounded queues and drives a batch run from part list to final report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/br00k-3/Datasheet-Grabber/internal/config"
	"github.com/br00k-3/Datasheet-Grabber/internal/digikey"
	"github.com/br00k-3/Datasheet-Grabber/internal/download"
	"github.com/br00k-3/Datasheet-Grabber/internal/manufacturer"
	"github.com/br00k-3/Datasheet-Grabber/internal/observability"
	"github.com/br00k-3/Datasheet-Grabber/internal/ratelimit"
	"github.com/br00k-3/Datasheet-Grabber/internal/storage"
)

const (
	// snapshotInterval throttles worker-status events to the sink.
	snapshotInterval = 500 * time.Millisecond
	// drainPoll is the results-queue poll interval of the drain loop.
	drainPoll = 200 * time.Millisecond
	// shutdownGrace bounds how long in-flight items may run after an
	// interrupt before workers are force-cancelled.
	shutdownGrace = 15 * time.Second
)

// Summary is the outcome of one run.
type Summary struct {
	RunID       string
	Total       int
	Counts      map[Status]int
	ReportPath  string
	Duration    time.Duration
	Interrupted bool
}

// Orchestrator wires the worker pools, queues, rate limiter and progress
// tracking for a batch run. One Orchestrator serves one Run at a time.
type Orchestrator struct {
	cfg      *config.Config
	keys     []config.APIKey
	resolver *manufacturer.Resolver
	archive  storage.ObjectStorage
	sink     EventSink
	obs      observability.Provider
}

// NewOrchestrator creates an orchestrator. archive may be nil to disable
// archiving; sink may be nil to discard events.
func NewOrchestrator(
	cfg *config.Config,
	keys []config.APIKey,
	resolver *manufacturer.Resolver,
	archive storage.ObjectStorage,
	sink EventSink,
	obs observability.Provider,
) *Orchestrator {
	if sink == nil {
		sink = NopSink{}
	}
	return &Orchestrator{
		cfg:      cfg,
		keys:     keys,
		resolver: resolver,
		archive:  archive,
		sink:     sink,
		obs:      obs,
	}
}

// Run processes every record and writes the final report. Cancelling ctx
// stops intake of new work; in-flight items are drained with a bounded
// grace period, and the report still covers every input record. Exactly
// one ResultRecord per input ends up in the report.
func (o *Orchestrator) Run(ctx context.Context, records []PartRecord) (*Summary, error) {
	if len(records) == 0 {
		return nil, errors.New("no part records to process")
	}
	if len(o.keys) == 0 {
		return nil, errors.New("no API keys configured")
	}

	runID := uuid.New().String()
	start := time.Now()
	logger := o.obs.Logger("orchestrator").WithFields(observability.Fields{"run_id": runID})
	metrics := o.obs.Metrics("orchestrator")

	total := len(records)
	parts := NewQueue[PartRecord](total)
	downloads := NewQueue[DownloadJob](total)
	resultsQ := NewQueue[ResultRecord](total)
	tracker := NewTracker()
	limiter := ratelimit.New(o.cfg.RequestsPerMinute, time.Minute)
	gate := newErrorGate(o.cfg.ErrorPauseThreshold, o.cfg.ErrorPause, func(d time.Duration) {
		logger.Warn(ctx, "Consecutive errors, pausing dispatch", observability.Fields{
			"pause": d.String(),
		})
		o.sink.Status(fmt.Sprintf("Too many consecutive errors, pausing %s", d))
	})

	// The parts queue is sized for the whole batch, so filling never blocks
	// and needs no cancellation point.
	for _, rec := range records {
		if err := parts.Push(context.Background(), rec); err != nil {
			return nil, fmt.Errorf("enqueue parts: %w", err)
		}
	}
	parts.Close()

	// Workers outlive parent cancellation so in-flight items can finish;
	// cancelWorkers is the forced stop after the grace period.
	workerCtx, cancelWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWorkers()

	searchHTTP := &http.Client{Timeout: o.cfg.HTTPTimeout}
	downloadHTTP := &http.Client{Timeout: o.cfg.DownloadTimeout}

	var searchGroup errgroup.Group
	for i := 0; i < o.cfg.SearchWorkers; i++ {
		// API keys rotate across workers so each key sees a fraction of
		// the request volume.
		key := o.keys[i%len(o.keys)]
		wlog := o.obs.Logger("search")
		auth := digikey.NewAuthenticator(searchHTTP, o.cfg.TokenURL, key, wlog)
		client := digikey.NewClient(
			searchHTTP, o.cfg.SearchURL, auth, o.resolver, limiter,
			o.cfg.ThrottleCooldown, wlog, o.obs.Metrics("search"),
		)
		w := NewSearchWorker(
			fmt.Sprintf("api-worker-%d", i+1), client, parts, downloads, resultsQ,
			tracker, gate, o.cfg.OutputDir, o.cfg.Resume,
			o.cfg.MaxAttempts, o.cfg.BaseBackoff, wlog,
		)
		searchGroup.Go(func() error { return w.Run(workerCtx) })
	}

	dl := download.New(downloadHTTP, download.Options{
		MaxAttempts: o.cfg.MaxAttempts,
		BaseBackoff: o.cfg.BaseBackoff,
		MaxBackoff:  o.cfg.MaxBackoff,
	}, o.obs.Logger("download"), o.obs.Metrics("download"))

	var downloadGroup errgroup.Group
	for i := 0; i < o.cfg.DownloadWorkers; i++ {
		w := NewDownloadWorker(
			fmt.Sprintf("dl-worker-%d", i+1), dl, downloads, resultsQ,
			tracker, gate, o.cfg.OutputDir, o.archive, o.obs.Logger("download"),
		)
		downloadGroup.Go(func() error { return w.Run(workerCtx) })
	}

	// Once every search worker has exited no new download jobs can appear,
	// so the download queue can be closed to let its workers drain and stop.
	go func() {
		_ = searchGroup.Wait()
		downloads.Close()
	}()

	logger.Info(ctx, "Run started", observability.Fields{
		"total":            total,
		"search_workers":   o.cfg.SearchWorkers,
		"download_workers": o.cfg.DownloadWorkers,
		"api_keys":         len(o.keys),
	})
	o.sink.Status(fmt.Sprintf("Processing %d parts", total))

	results := make([]ResultRecord, 0, total)
	seen := make(map[string]bool, total)
	record := func(res ResultRecord) {
		results = append(results, res)
		seen[res.InternalID] = true
		tracker.CountResult(res.Status)
		switch res.Status {
		case StatusSuccess, StatusSkipped:
			metrics.RecordSuccess("part")
		default:
			metrics.RecordError("part", string(res.Status))
		}
		o.sink.Progress(len(results), total)
		o.sink.Counts(tracker.Counts())
		o.sink.Status(fmt.Sprintf("%s: %s (%s)", res.ManufacturerPartNumber, res.Status, res.Message))
	}

	interrupted := false
	var lastSnapshot time.Time
	for len(results) < total {
		if ctx.Err() != nil {
			interrupted = true
			break
		}
		res, ok, err := resultsQ.Pop(ctx, drainPoll)
		if time.Since(lastSnapshot) >= snapshotInterval {
			o.sink.Workers(tracker.Snapshot())
			lastSnapshot = time.Now()
		}
		if err != nil {
			interrupted = true
			break
		}
		if !ok {
			continue
		}
		record(res)
	}

	if interrupted {
		o.shutdown(ctx, logger, cancelWorkers, &searchGroup, &downloadGroup,
			parts, downloads, resultsQ, records, seen, record)
	} else {
		// Natural completion: the queues are drained, workers exit on the
		// closed queues.
		_ = searchGroup.Wait()
		_ = downloadGroup.Wait()
	}

	o.sink.Workers(tracker.Snapshot())

	reportPath, repErr := WriteReport(o.cfg.ReportDir, results)
	if repErr != nil {
		logger.Error(ctx, "Report write failed", repErr, nil)
	} else {
		o.sink.Done(reportPath)
	}

	duration := time.Since(start)
	counts := tracker.Counts()
	metrics.RecordDuration("run", duration.Seconds())
	logger.Info(ctx, "Run complete", observability.Fields{
		"duration":    duration.String(),
		"processed":   len(results),
		"interrupted": interrupted,
		"report":      reportPath,
	})

	summary := &Summary{
		RunID:       runID,
		Total:       total,
		Counts:      counts,
		ReportPath:  reportPath,
		Duration:    duration,
		Interrupted: interrupted,
	}
	if repErr != nil {
		return summary, fmt.Errorf("write report: %w", repErr)
	}
	return summary, nil
}

// shutdown winds the pools down after an interrupt: queued work is
// cancelled, in-flight items get a grace period, and every input record
// without a result is backfilled as cancelled so the report stays complete.
func (o *Orchestrator) shutdown(
	ctx context.Context,
	logger observability.Logger,
	cancelWorkers context.CancelFunc,
	searchGroup, downloadGroup *errgroup.Group,
	parts *Queue[PartRecord],
	downloads *Queue[DownloadJob],
	resultsQ *Queue[ResultRecord],
	records []PartRecord,
	seen map[string]bool,
	record func(ResultRecord),
) {
	logger.Warn(ctx, "Interrupt received, draining in-flight work", nil)
	o.sink.Status("Interrupted: finishing in-flight items")

	bg := context.Background()

	// Claim queued parts before the workers do; each claimed part is
	// reported cancelled without any API traffic.
	for {
		part, ok, err := parts.Pop(bg, 10*time.Millisecond)
		if err != nil || !ok {
			break
		}
		record(terminal(part, StatusCancelled, "not processed before shutdown"))
	}
	for {
		job, ok, err := downloads.Pop(bg, 10*time.Millisecond)
		if err != nil || !ok {
			break
		}
		res := ResultRecord{
			InternalID:             job.InternalID,
			ManufacturerPartNumber: job.ManufacturerPartNumber,
			Manufacturer:           job.ResolvedManufacturer,
			FoundPart:              job.FoundPart,
			Status:                 StatusCancelled,
			Message:                "download not started before shutdown",
			DatasheetURL:           job.DatasheetURL,
		}
		record(res)
	}

	done := make(chan struct{})
	go func() {
		_ = searchGroup.Wait()
		_ = downloadGroup.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownGrace):
		logger.Warn(ctx, "Grace period expired, cancelling workers", nil)
		cancelWorkers()
		<-done
	}

	// Collect results the workers emitted while we were winding down.
	for {
		res, ok, err := resultsQ.Pop(bg, 10*time.Millisecond)
		if err != nil || !ok {
			break
		}
		if !seen[res.InternalID] {
			record(res)
		}
	}

	// Anything still unaccounted for was mid-flight when workers were
	// force-cancelled.
	for _, rec := range records {
		if !seen[rec.InternalID] {
			record(terminal(rec, StatusCancelled, "cancelled by shutdown"))
		}
	}
}
