package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/br00k-3/Datasheet-Grabber/internal/config"
	"github.com/br00k-3/Datasheet-Grabber/internal/observability"
)

// upstream fakes the parts API and the datasheet hosts for a whole run.
// Part numbers select the scenario:
//
//	GOOD-*    searched and downloaded successfully
//	NODOC-*   found, but without a datasheet URL
//	MISSING-* unknown to the API (404)
//	BROKEN-*  API returns HTTP 500
//	BADDL-*   found, but the datasheet host rejects every request
type upstream struct {
	srv *httptest.Server

	mu         sync.Mutex
	searches   map[string]int
	searchedAt map[string]time.Time
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{
		searches:   make(map[string]int),
		searchedAt: make(map[string]time.Time),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token": "tok", "expires_in": 600}`)
	})
	mux.HandleFunc("/search", u.handleSearch)
	mux.HandleFunc("/pdf/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "%PDF-1.7\n"+strings.Repeat("x", 2000))
	})
	mux.HandleFunc("/blocked/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	u.srv = httptest.NewServer(mux)
	t.Cleanup(u.srv.Close)
	return u
}

func (u *upstream) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Keywords string `json:"Keywords"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	u.mu.Lock()
	u.searches[req.Keywords]++
	if _, ok := u.searchedAt[req.Keywords]; !ok {
		u.searchedAt[req.Keywords] = time.Now()
	}
	u.mu.Unlock()

	type mfr struct {
		ID   int    `json:"Id"`
		Name string `json:"Name"`
	}
	type prod struct {
		ManufacturerPartNumber string `json:"ManufacturerPartNumber"`
		DigiKeyPartNumber      string `json:"DigiKeyPartNumber"`
		Manufacturer           mfr    `json:"Manufacturer"`
		ProductStatus          string `json:"ProductStatus"`
		DatasheetURL           string `json:"DatasheetUrl"`
	}

	switch {
	case strings.HasPrefix(req.Keywords, "GOOD"):
		json.NewEncoder(w).Encode(map[string][]prod{"Products": {{
			ManufacturerPartNumber: req.Keywords,
			DigiKeyPartNumber:      req.Keywords + "-ND",
			Manufacturer:           mfr{ID: 42, Name: "Texas Instruments"},
			ProductStatus:          "Active",
			DatasheetURL:           u.srv.URL + "/pdf/" + req.Keywords,
		}}})
	case strings.HasPrefix(req.Keywords, "NODOC"):
		json.NewEncoder(w).Encode(map[string][]prod{"Products": {{
			ManufacturerPartNumber: req.Keywords,
			Manufacturer:           mfr{ID: 7, Name: "Analog Devices"},
			ProductStatus:          "Active",
		}}})
	case strings.HasPrefix(req.Keywords, "BADDL"):
		json.NewEncoder(w).Encode(map[string][]prod{"Products": {{
			ManufacturerPartNumber: req.Keywords,
			Manufacturer:           mfr{ID: 42, Name: "Texas Instruments"},
			ProductStatus:          "Active",
			DatasheetURL:           u.srv.URL + "/blocked/" + req.Keywords,
		}}})
	case strings.HasPrefix(req.Keywords, "BROKEN"):
		w.WriteHeader(http.StatusInternalServerError)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (u *upstream) searchCount(part string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.searches[part]
}

func (u *upstream) firstSearch(part string) time.Time {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.searchedAt[part]
}

func newTestConfig(t *testing.T, u *upstream) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		ServiceName:         "datasheet_grabber_test",
		Environment:         "test",
		LogLevel:            "error",
		SearchWorkers:       2,
		DownloadWorkers:     2,
		QueueSize:           64,
		RequestsPerMinute:   10000,
		ThrottleCooldown:    time.Millisecond,
		MaxAttempts:         2,
		BaseBackoff:         time.Millisecond,
		MaxBackoff:          5 * time.Millisecond,
		HTTPTimeout:         5 * time.Second,
		DownloadTimeout:     5 * time.Second,
		OutputDir:           filepath.Join(dir, "datasheets"),
		ReportDir:           filepath.Join(dir, "reports"),
		Resume:              true,
		TokenURL:            u.srv.URL + "/token",
		SearchURL:           u.srv.URL + "/search",
		ErrorPauseThreshold: 0,
	}
}

func newTestOrchestrator(cfg *config.Config, sink EventSink) *Orchestrator {
	obs := observability.NewProvider(observability.Config{
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
		LogLevel:    cfg.LogLevel,
		LogOutput:   io.Discard,
	}, prometheus.NewRegistry())

	keys := []config.APIKey{{ClientID: "client-1", ClientSecret: "secret-1"}}
	return NewOrchestrator(cfg, keys, nil, nil, sink, obs)
}

func TestRun_EveryInputGetsExactlyOneResult(t *testing.T) {
	u := newUpstream(t)
	cfg := newTestConfig(t, u)
	orch := newTestOrchestrator(cfg, nil)

	records := []PartRecord{
		{InternalID: "P1", ManufacturerPartNumber: "GOOD-1"},
		{InternalID: "P2", ManufacturerPartNumber: "GOOD-2"},
		{InternalID: "P3", ManufacturerPartNumber: "NODOC-1"},
		{InternalID: "P4", ManufacturerPartNumber: "MISSING-1"},
		{InternalID: "P5", ManufacturerPartNumber: "BROKEN-1"},
		{InternalID: "P6", ManufacturerPartNumber: "BADDL-1"},
	}

	summary, err := orch.Run(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 6, summary.Total)
	assert.False(t, summary.Interrupted)
	assert.Equal(t, 2, summary.Counts[StatusSuccess])
	assert.Equal(t, 1, summary.Counts[StatusNoDatasheet])
	assert.Equal(t, 1, summary.Counts[StatusNotFound])
	assert.Equal(t, 1, summary.Counts[StatusError])
	assert.Equal(t, 1, summary.Counts[StatusDownloadFailed])

	total := 0
	for _, n := range summary.Counts {
		total += n
	}
	assert.Equal(t, 6, total)
}

func TestRun_WritesDownloadsAndReport(t *testing.T) {
	u := newUpstream(t)
	cfg := newTestConfig(t, u)
	orch := newTestOrchestrator(cfg, nil)

	records := []PartRecord{
		{InternalID: "P1", ManufacturerPartNumber: "GOOD-1"},
	}

	summary, err := orch.Run(context.Background(), records)
	require.NoError(t, err)
	require.NotEmpty(t, summary.ReportPath)

	pdf := filepath.Join(cfg.OutputDir, TargetFilename("P1", "GOOD-1"))
	data, err := os.ReadFile(pdf)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF"))

	report, err := os.ReadFile(summary.ReportPath)
	require.NoError(t, err)
	assert.Contains(t, string(report), "GOOD-1")
	assert.Contains(t, string(report), "success")
}

func TestRun_ResumeSkipsWithoutAPITraffic(t *testing.T) {
	u := newUpstream(t)
	cfg := newTestConfig(t, u)

	// A valid datasheet from a previous run is already on disk.
	require.NoError(t, os.MkdirAll(cfg.OutputDir, 0755))
	existing := filepath.Join(cfg.OutputDir, TargetFilename("P1", "GOOD-1"))
	require.NoError(t, os.WriteFile(existing, []byte("%PDF-1.7 prior run"), 0644))

	orch := newTestOrchestrator(cfg, nil)
	summary, err := orch.Run(context.Background(), []PartRecord{
		{InternalID: "P1", ManufacturerPartNumber: "GOOD-1"},
		{InternalID: "P2", ManufacturerPartNumber: "GOOD-2"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Counts[StatusSkipped])
	assert.Equal(t, 1, summary.Counts[StatusSuccess])
	assert.Equal(t, 0, u.searchCount("GOOD-1"), "resumed part must not be searched")
	assert.Equal(t, 1, u.searchCount("GOOD-2"))
}

func TestRun_ResumeDisabledRedownloads(t *testing.T) {
	u := newUpstream(t)
	cfg := newTestConfig(t, u)
	cfg.Resume = false

	require.NoError(t, os.MkdirAll(cfg.OutputDir, 0755))
	existing := filepath.Join(cfg.OutputDir, TargetFilename("P1", "GOOD-1"))
	require.NoError(t, os.WriteFile(existing, []byte("%PDF-1.7 prior run"), 0644))

	orch := newTestOrchestrator(cfg, nil)
	summary, err := orch.Run(context.Background(), []PartRecord{
		{InternalID: "P1", ManufacturerPartNumber: "GOOD-1"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, u.searchCount("GOOD-1"))
	// The downloader still short-circuits on the valid file.
	assert.Equal(t, 1, summary.Counts[StatusSkipped])
}

func TestRun_EmptyInput(t *testing.T) {
	u := newUpstream(t)
	cfg := newTestConfig(t, u)
	orch := newTestOrchestrator(cfg, nil)

	_, err := orch.Run(context.Background(), nil)
	assert.Error(t, err)
}

func TestRun_NoAPIKeys(t *testing.T) {
	u := newUpstream(t)
	cfg := newTestConfig(t, u)

	obs := observability.NewProvider(observability.Config{
		LogOutput: io.Discard, LogLevel: "error",
	}, prometheus.NewRegistry())
	orch := NewOrchestrator(cfg, nil, nil, nil, nil, obs)

	_, err := orch.Run(context.Background(), []PartRecord{
		{InternalID: "P1", ManufacturerPartNumber: "GOOD-1"},
	})
	assert.Error(t, err)
}

func TestRun_CancelledRunStillReportsEveryInput(t *testing.T) {
	u := newUpstream(t)
	cfg := newTestConfig(t, u)
	orch := newTestOrchestrator(cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records := []PartRecord{
		{InternalID: "P1", ManufacturerPartNumber: "GOOD-1"},
		{InternalID: "P2", ManufacturerPartNumber: "GOOD-2"},
		{InternalID: "P3", ManufacturerPartNumber: "GOOD-3"},
	}

	summary, err := orch.Run(ctx, records)
	require.NoError(t, err)

	assert.True(t, summary.Interrupted)
	total := 0
	for _, n := range summary.Counts {
		total += n
	}
	assert.Equal(t, 3, total, "every input appears in the report even when cancelled")
	require.NotEmpty(t, summary.ReportPath)
}

func TestRun_ConsecutiveErrorsPauseDispatch(t *testing.T) {
	u := newUpstream(t)
	cfg := newTestConfig(t, u)
	cfg.SearchWorkers = 1
	cfg.ErrorPauseThreshold = 2
	cfg.ErrorPause = 150 * time.Millisecond

	orch := newTestOrchestrator(cfg, nil)
	summary, err := orch.Run(context.Background(), []PartRecord{
		{InternalID: "P1", ManufacturerPartNumber: "BROKEN-1"},
		{InternalID: "P2", ManufacturerPartNumber: "BROKEN-2"},
		{InternalID: "P3", ManufacturerPartNumber: "GOOD-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Counts[StatusError])
	assert.Equal(t, 1, summary.Counts[StatusSuccess])

	// The second consecutive error arms the cool-down, so the third part
	// must not be dispatched until it has elapsed.
	gap := u.firstSearch("GOOD-1").Sub(u.firstSearch("BROKEN-2"))
	assert.GreaterOrEqual(t, gap, 100*time.Millisecond)
}

// countingSink records progress events for assertion.
type countingSink struct {
	mu        sync.Mutex
	statuses  []string
	completed int
	total     int
	done      string
}

func (s *countingSink) Status(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses = append(s.statuses, msg)
}

func (s *countingSink) Progress(completed, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed, s.total = completed, total
}

func (s *countingSink) Counts(map[Status]int)           {}
func (s *countingSink) Workers(map[string]WorkerStatus) {}

func (s *countingSink) Done(reportPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.done = reportPath
}

func TestRun_EmitsProgressAndDone(t *testing.T) {
	u := newUpstream(t)
	cfg := newTestConfig(t, u)
	sink := &countingSink{}
	orch := newTestOrchestrator(cfg, sink)

	summary, err := orch.Run(context.Background(), []PartRecord{
		{InternalID: "P1", ManufacturerPartNumber: "GOOD-1"},
		{InternalID: "P2", ManufacturerPartNumber: "NODOC-1"},
	})
	require.NoError(t, err)

	sink.mu.Lock()
	defer sink.mu.Unlock()
	assert.Equal(t, 2, sink.completed)
	assert.Equal(t, 2, sink.total)
	assert.Equal(t, summary.ReportPath, sink.done)
	assert.NotEmpty(t, sink.statuses)
}
