package report

import (
	"io"
	"strconv"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/spacedown/spacedown/internal/config"
	"github.com/spacedown/spacedown/internal/model"
)

// MarkdownWriter outputs export summaries in Markdown format.
// This format is designed for documentation and sharing, e.g. committing
// the summary next to the exported tree.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ExportReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeTotals(md, report)
	w.writeSkipped(md, report)
	w.writeCollisions(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.ExportReport) {
	md.H1("Space Export Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Space", "`" + report.SpaceKey + "`"},
			{"Site", report.BaseURL},
			{"Output", "`" + report.OutputDir + "`"},
			{"Date", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Status", w.getStatusText(report)},
		},
	})
	md.PlainText("")
}

// getStatusText returns the status text based on report state.
func (w *MarkdownWriter) getStatusText(report *model.ExportReport) string {
	switch report.Status() {
	case model.StatusFailed:
		return "❌ Failed - " + report.ErrorMessage
	case model.StatusPartial:
		return "⚠️ Partial (" + strconv.Itoa(len(report.AttachmentFailures)) + " attachments skipped)"
	default:
		return "✅ Complete"
	}
}

// writeTotals writes the export totals section.
func (w *MarkdownWriter) writeTotals(md *markdown.Markdown, report *model.ExportReport) {
	md.H2("Totals")
	md.PlainText("")

	rows := [][]string{
		{"Pages fetched", strconv.Itoa(report.PagesFetched)},
	}
	if report.Since != nil {
		rows = append(rows, []string{
			"Excluded by date filter (cutoff " + report.Since.Format(config.SinceLayout) + ")",
			strconv.Itoa(report.PagesFiltered),
		})
	}
	rows = append(rows,
		[]string{"Pages exported", strconv.Itoa(report.PagesExported)},
		[]string{"Attachments downloaded", strconv.Itoa(report.AttachmentsDownloaded)},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if report.Since != nil && report.PagesFiltered > 0 {
		w.writePieChart(md, report)
	}

	w.writeAlert(md, report)
}

// writePieChart writes a mermaid pie chart of the date filter outcome.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.ExportReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Pages by Date Filter Outcome"),
		piechart.WithShowData(true),
	)

	if report.PagesExported > 0 {
		chart.LabelAndIntValue("Exported", uint64(report.PagesExported))
	}
	chart.LabelAndIntValue("Excluded by date", uint64(report.PagesFiltered))

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeAlert writes an appropriate alert based on how the run went.
func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.ExportReport) {
	switch {
	case report.Status() == model.StatusFailed:
		md.Cautionf("The export aborted: %s. The output tree is incomplete.", report.ErrorMessage)
	case len(report.AttachmentFailures) > 0:
		md.Warningf(
			"%d attachment(s) could not be downloaded. The pages referencing them were still exported.",
			len(report.AttachmentFailures),
		)
	case report.WarningCount() > 0:
		md.Importantf(
			"%d item(s) were degraded during conversion. See the sections below.",
			report.WarningCount(),
		)
	default:
		md.Tip("Every page and attachment was exported without degradation.")
	}
	md.PlainText("")
}

// writeSkipped writes every item the export skipped or degraded.
func (w *MarkdownWriter) writeSkipped(md *markdown.Markdown, report *model.ExportReport) {
	md.H2("Skipped Items")
	md.PlainText("")

	total := len(report.AttachmentFailures) + len(report.UnresolvedLinks) + len(report.ConversionNotes)
	if total == 0 {
		md.PlainText("Nothing was skipped.")
		md.PlainText("")
		return
	}

	if len(report.AttachmentFailures) > 0 {
		md.PlainText("### Failed Attachment Downloads")
		md.PlainText("")

		rows := make([][]string, len(report.AttachmentFailures))
		for i, f := range report.AttachmentFailures {
			rows[i] = []string{"`" + f.Filename + "`", f.PageTitle, truncateString(f.Reason, 60)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"File", "Page", "Reason"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if len(report.UnresolvedLinks) > 0 {
		md.PlainText("### Unresolved Links")
		md.PlainText("")

		rows := make([][]string, len(report.UnresolvedLinks))
		for i, l := range report.UnresolvedLinks {
			rows[i] = []string{truncateString(l.Target, 50), l.PageTitle}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Target", "Page"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	if len(report.ConversionNotes) > 0 {
		md.PlainText("### Conversion Fallbacks")
		md.PlainText("")

		rows := make([][]string, len(report.ConversionNotes))
		for i, n := range report.ConversionNotes {
			rows[i] = []string{n.PageTitle, truncateString(n.Note, 60)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Page", "Note"},
			Rows:   rows,
		})
		md.PlainText("")
	}
}

// writeCollisions writes name clashes that were resolved by suffixing.
func (w *MarkdownWriter) writeCollisions(md *markdown.Markdown, report *model.ExportReport) {
	if len(report.Collisions) == 0 {
		return
	}

	md.H2("Resolved Name Collisions")
	md.PlainText("")

	rows := make([][]string, len(report.Collisions))
	for i, c := range report.Collisions {
		rows[i] = []string{string(c.Kind), c.PageTitle, "`" + c.Requested + "`", "`" + c.Assigned + "`"}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Kind", "Page", "Requested", "Assigned"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [spacedown](https://github.com/spacedown/spacedown)*")
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
