package export

import "github.com/spacedown/spacedown/internal/model"

// Run carries the data one export accumulates while its steps execute.
// Steps own their dependencies (client, output root, concurrency); Run owns
// what flows between them.
type Run struct {
	// Records is the flat page listing, populated by the fetch step and
	// narrowed in place by the date filter.
	Records []model.PageRecord

	// Forest is the allocated page tree, populated by the layout step.
	Forest model.Forest

	// Report accumulates counters, warnings, and recovered failures.
	Report *model.ExportReport
}

// NewRun creates a Run around a fresh report.
func NewRun(report *model.ExportReport) *Run {
	return &Run{Report: report}
}
