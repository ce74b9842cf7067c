package models

import "time"

// ProcessingMode selects the coordinator's recomputation strategy.
// There is no process-wide flag: the mode travels with each request.
type ProcessingMode string

const (
	// ModeCascade recomputes the target date and every affected later
	// date in chronological order, each result feeding the next.
	ModeCascade ProcessingMode = "cascade"
	// ModeBatch loads the whole affected range once, runs every cell
	// through the scenario matrix in memory, and persists in one pass.
	// Errors trigger a fallback to cascade for the same request.
	ModeBatch ProcessingMode = "batch"
)

// ParseProcessingMode maps a config string to a ProcessingMode,
// defaulting to cascade.
func ParseProcessingMode(s string) ProcessingMode {
	if s == string(ModeBatch) {
		return ModeBatch
	}
	return ModeCascade
}

// BatchRequest describes one coordinator invocation.
type BatchRequest struct {
	BrokerAccountIDs []string
	TickerIDs        []string
	From             time.Time
	To               time.Time
	Mode             ProcessingMode
	// ForceRecalculate recomputes cells even when an existing snapshot
	// already matches its baseline.
	ForceRecalculate bool
}

// ProcessingMetrics reports what one coordinator run did. Soft errors
// are collected per cell without aborting the batch.
type ProcessingMetrics struct {
	DatesProcessed    int           `json:"dates_processed"`
	SnapshotsCreated  int           `json:"snapshots_created"`
	SnapshotsUpdated  int           `json:"snapshots_updated"`
	SnapshotsRepaired int           `json:"snapshots_repaired"`
	Skipped           int           `json:"skipped"`
	Duration          time.Duration `json:"duration"`
	Errors            []error       `json:"-"`
}

// Merge folds other into m.
func (m *ProcessingMetrics) Merge(other ProcessingMetrics) {
	m.DatesProcessed += other.DatesProcessed
	m.SnapshotsCreated += other.SnapshotsCreated
	m.SnapshotsUpdated += other.SnapshotsUpdated
	m.SnapshotsRepaired += other.SnapshotsRepaired
	m.Skipped += other.Skipped
	m.Errors = append(m.Errors, other.Errors...)
}

// HasErrors returns true when any soft error was recorded.
func (m *ProcessingMetrics) HasErrors() bool {
	return len(m.Errors) > 0
}
