package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spacedown/spacedown/internal/config"
	"github.com/spacedown/spacedown/internal/model"
)

// SimpleWriter outputs human-readable text summaries.
// This format is designed for terminal display after an export run, with
// clear section formatting.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors by default because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. Color can be added as an option later if needed
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no entries are shown.
	showEmpty bool

	// verbose enables additional detail in the output.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
		showEmpty:  false,
		verbose:    false,
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report in human-readable format.
func (w *SimpleWriter) Write(report *model.ExportReport) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeTotals(&sb, report)
	w.writeSkipped(&sb, report)
	w.writeCollisions(&sb, report)
	if w.verbose {
		w.writeSteps(&sb, report)
	}
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.ExportReport) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                      SPACE EXPORT REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("Space:     %s\n", report.SpaceKey))
	sb.WriteString(fmt.Sprintf("Site:      %s\n", report.BaseURL))
	sb.WriteString(fmt.Sprintf("Output:    %s\n", report.OutputDir))
	sb.WriteString(fmt.Sprintf("Date:      %s\n", report.StartedAt.Format("2006-01-02 15:04:05 MST")))
	if d := report.Duration(); d > 0 {
		sb.WriteString(fmt.Sprintf("Duration:  %s\n", d.Round(time.Millisecond)))
	}

	switch report.Status() {
	case model.StatusFailed:
		sb.WriteString(fmt.Sprintf("Status:    FAILED - %s\n", report.ErrorMessage))
	case model.StatusPartial:
		sb.WriteString(fmt.Sprintf("Status:    PARTIAL (%d attachment(s) skipped)\n", len(report.AttachmentFailures)))
	default:
		sb.WriteString("Status:    Complete\n")
	}

	sb.WriteString("\n")
}

// writeTotals writes the export totals section.
func (w *SimpleWriter) writeTotals(sb *strings.Builder, report *model.ExportReport) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("TOTALS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	sb.WriteString(fmt.Sprintf("  Pages fetched:           %d\n", report.PagesFetched))
	if report.Since != nil {
		sb.WriteString(fmt.Sprintf("  Excluded by date filter: %d (cutoff %s)\n",
			report.PagesFiltered, report.Since.Format(config.SinceLayout)))
	}
	sb.WriteString(fmt.Sprintf("  Pages exported:          %d\n", report.PagesExported))
	sb.WriteString(fmt.Sprintf("  Attachments downloaded:  %d\n", report.AttachmentsDownloaded))
	sb.WriteString("\n")
}

// writeSkipped writes every item the export skipped or degraded, with the
// reason. An export that silently drops content is not trustworthy, so this
// section is the heart of the summary.
func (w *SimpleWriter) writeSkipped(sb *strings.Builder, report *model.ExportReport) {
	total := len(report.AttachmentFailures) + len(report.UnresolvedLinks) + len(report.ConversionNotes)
	if total == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("SKIPPED ITEMS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if total == 0 {
		sb.WriteString("  Nothing was skipped\n\n")
		return
	}

	if len(report.AttachmentFailures) > 0 {
		sb.WriteString(fmt.Sprintf("[!] FAILED ATTACHMENT DOWNLOADS (%d)\n", len(report.AttachmentFailures)))
		for _, f := range report.AttachmentFailures {
			sb.WriteString(fmt.Sprintf("  * %s\n", f.Filename))
			sb.WriteString(fmt.Sprintf("    Page: %s\n", f.PageTitle))
			sb.WriteString(fmt.Sprintf("    Reason: %s\n", f.Reason))
		}
		sb.WriteString("\n")
	}

	if len(report.UnresolvedLinks) > 0 {
		sb.WriteString(fmt.Sprintf("[-] UNRESOLVED LINKS (%d)\n", len(report.UnresolvedLinks)))
		for _, l := range report.UnresolvedLinks {
			sb.WriteString(fmt.Sprintf("  * %q\n", l.Target))
			sb.WriteString(fmt.Sprintf("    Page: %s\n", l.PageTitle))
		}
		sb.WriteString("\n")
	}

	if len(report.ConversionNotes) > 0 {
		sb.WriteString(fmt.Sprintf("[~] CONVERSION FALLBACKS (%d)\n", len(report.ConversionNotes)))
		for _, n := range report.ConversionNotes {
			sb.WriteString(fmt.Sprintf("  * %s\n", n.PageTitle))
			sb.WriteString(fmt.Sprintf("    Note: %s\n", n.Note))
		}
		sb.WriteString("\n")
	}
}

// writeCollisions writes name clashes that were resolved by suffixing.
func (w *SimpleWriter) writeCollisions(sb *strings.Builder, report *model.ExportReport) {
	if len(report.Collisions) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("RESOLVED NAME COLLISIONS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	if len(report.Collisions) == 0 {
		sb.WriteString("  No name collisions\n\n")
		return
	}

	for _, c := range report.Collisions {
		sb.WriteString(fmt.Sprintf("  * [%s] %s -> %s\n", c.Kind, c.Requested, c.Assigned))
		sb.WriteString(fmt.Sprintf("    Page: %s\n", c.PageTitle))
	}
	sb.WriteString("\n")
}

// writeSteps writes the pipeline steps that ran, in order.
func (w *SimpleWriter) writeSteps(sb *strings.Builder, report *model.ExportReport) {
	if len(report.PerformedSteps) == 0 && !w.showEmpty {
		return
	}

	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString("PIPELINE STEPS\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")

	for i, step := range report.PerformedSteps {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, step))
	}
	sb.WriteString("\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by spacedown\n")
	sb.WriteString("https://github.com/spacedown/spacedown\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
