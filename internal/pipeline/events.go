package pipeline

// EventSink receives progress events from the pipeline. A CLI, GUI or log
// writer renders them; the pipeline has no knowledge of the medium.
// Implementations must be safe for concurrent calls and fast, since slow
// sinks stall the drain loop.
type EventSink interface {
	// Status carries a human-readable status line.
	Status(msg string)

	// Progress reports completed vs total items.
	Progress(completed, total int)

	// Counts reports per-category result totals.
	Counts(counts map[Status]int)

	// Workers reports a snapshot of every worker's current phase.
	Workers(snapshot map[string]WorkerStatus)

	// Done signals completion with the final report location.
	Done(reportPath string)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Status(msg string)                        {}
func (NopSink) Progress(completed, total int)            {}
func (NopSink) Counts(counts map[Status]int)             {}
func (NopSink) Workers(snapshot map[string]WorkerStatus) {}
func (NopSink) Done(reportPath string)                   {}
