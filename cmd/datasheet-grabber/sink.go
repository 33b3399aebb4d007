package main

import (
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/br00k-3/Datasheet-Grabber/internal/pipeline"
)

const timePrecision = 100 * time.Millisecond

// consoleSink renders pipeline events as plain log lines. Progress is
// folded into the per-item status lines; worker snapshots are only shown
// when a worker changes phase, to keep the output readable.
type consoleSink struct {
	mu  sync.Mutex
	out io.Writer

	completed int
	total     int
	phases    map[string]pipeline.Phase
}

func newConsoleSink(out io.Writer) *consoleSink {
	return &consoleSink{
		out:    out,
		phases: make(map[string]pipeline.Phase),
	}
}

func (s *consoleSink) Status(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.total > 0 {
		fmt.Fprintf(s.out, "[%d/%d] %s\n", s.completed, s.total, msg)
		return
	}
	fmt.Fprintln(s.out, msg)
}

func (s *consoleSink) Progress(completed, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed = completed
	s.total = total
}

func (s *consoleSink) Counts(counts map[pipeline.Status]int) {}

func (s *consoleSink) Workers(snapshot map[string]pipeline.WorkerStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		ws := snapshot[id]
		if s.phases[id] == ws.Phase {
			continue
		}
		s.phases[id] = ws.Phase
		if ws.Item != "" {
			fmt.Fprintf(s.out, "  %s: %s %s\n", id, ws.Phase, ws.Item)
		} else {
			fmt.Fprintf(s.out, "  %s: %s\n", id, ws.Phase)
		}
	}
}

func (s *consoleSink) Done(reportPath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "Report written to %s\n", reportPath)
}
