package model

import (
	"sync"
	"time"
)

// ExportReport accumulates everything a single export run produces besides
// the files themselves: counters, recovered failures, warnings, and the
// fatal error if the run aborted.
//
// Design decision: The report travels through the pipeline explicitly
// instead of living in package state, so two exports in one process cannot
// observe each other. Mutating methods take a mutex because attachment
// downloads update the report concurrently during the write phase; direct
// field reads are safe once the pipeline has finished.
type ExportReport struct {
	mu sync.Mutex

	// SpaceKey is the key of the exported space.
	SpaceKey string `json:"space_key"`

	// BaseURL is the Confluence site the space was fetched from.
	BaseURL string `json:"base_url"`

	// OutputDir is the export root directory on disk.
	OutputDir string `json:"output_dir"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt is when the run ended, successfully or not.
	FinishedAt time.Time `json:"finished_at"`

	// Since is the modification-date cutoff, if one was configured.
	Since *time.Time `json:"since,omitempty"`

	// PagesFetched counts pages returned by the listing API before any
	// date filtering.
	PagesFetched int `json:"pages_fetched"`

	// PagesFiltered counts pages excluded by the date cutoff.
	PagesFiltered int `json:"pages_filtered"`

	// PagesExported counts pages written to disk.
	PagesExported int `json:"pages_exported"`

	// AttachmentsDownloaded counts attachment files written to disk.
	AttachmentsDownloaded int `json:"attachments_downloaded"`

	// Collisions lists name clashes resolved by numeric suffixing.
	Collisions []CollisionNote `json:"collisions,omitempty"`

	// UnresolvedLinks lists inline page links whose target page is not
	// part of the export. The link text survives; the link itself does not.
	UnresolvedLinks []UnresolvedLink `json:"unresolved_links,omitempty"`

	// ConversionNotes lists pages whose body needed a fallback during
	// Markdown conversion.
	ConversionNotes []ConversionNote `json:"conversion_notes,omitempty"`

	// AttachmentFailures lists attachments that could not be downloaded.
	// The run continues past them; the summary reports each one.
	AttachmentFailures []AttachmentFailure `json:"attachment_failures,omitempty"`

	// PerformedSteps lists the pipeline steps that ran, in order.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Err is the fatal error that aborted the run, if any.
	Err error `json:"-"` // Excluded from JSON

	// ErrorMessage is the string representation of Err for serialization.
	ErrorMessage string `json:"error,omitempty"`
}

// CollisionKind distinguishes what kind of name clashed.
type CollisionKind string

const (
	// CollisionDirectory marks a clash between sibling page directories.
	CollisionDirectory CollisionKind = "directory"

	// CollisionAttachment marks a clash between attachment filenames of
	// the same page.
	CollisionAttachment CollisionKind = "attachment"
)

// CollisionNote records one name clash and how it was resolved.
type CollisionNote struct {
	// Kind says whether a directory or an attachment name clashed.
	Kind CollisionKind `json:"kind"`

	// PageID and PageTitle identify the page the clash occurred on.
	PageID    string `json:"page_id"`
	PageTitle string `json:"page_title"`

	// Requested is the sanitized name that was already taken.
	Requested string `json:"requested"`

	// Assigned is the suffixed name actually used.
	Assigned string `json:"assigned"`
}

// UnresolvedLink records an inline page link that could not be rewritten
// because its target is not part of the export.
type UnresolvedLink struct {
	// PageID and PageTitle identify the page containing the link.
	PageID    string `json:"page_id"`
	PageTitle string `json:"page_title"`

	// Target is the linked page title or URL that could not be resolved.
	Target string `json:"target"`
}

// ConversionNote records a page whose content conversion degraded.
type ConversionNote struct {
	// PageID and PageTitle identify the affected page.
	PageID    string `json:"page_id"`
	PageTitle string `json:"page_title"`

	// Note describes what was degraded and why.
	Note string `json:"note"`
}

// AttachmentFailure records one attachment download that failed.
type AttachmentFailure struct {
	// PageID and PageTitle identify the page owning the attachment.
	PageID    string `json:"page_id"`
	PageTitle string `json:"page_title"`

	// Filename is the planned on-disk filename.
	Filename string `json:"filename"`

	// Reason is the human-readable failure cause.
	Reason string `json:"reason"`
}

// Run status values as stored in the history database and printed in
// summaries.
const (
	// StatusCompleted means every page and attachment was exported.
	StatusCompleted = "completed"

	// StatusPartial means the run finished but skipped items; the
	// failure lists say which ones and why.
	StatusPartial = "partial"

	// StatusFailed means a fatal error aborted the run.
	StatusFailed = "failed"
)

// NewExportReport creates a report for one export run with the start
// timestamp set to now.
func NewExportReport(baseURL, spaceKey, outputDir string) *ExportReport {
	return &ExportReport{
		SpaceKey:  spaceKey,
		BaseURL:   baseURL,
		OutputDir: outputDir,
		StartedAt: time.Now(),
	}
}

// SetSince records the modification-date cutoff used for this run.
func (r *ExportReport) SetSince(t time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cutoff := t
	r.Since = &cutoff
}

// SetFetched records the page counts of the fetch phase.
func (r *ExportReport) SetFetched(fetched, filtered int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.PagesFetched = fetched
	r.PagesFiltered = filtered
}

// PageExported increments the exported page counter.
func (r *ExportReport) PageExported() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.PagesExported++
}

// AttachmentDownloaded increments the downloaded attachment counter.
func (r *ExportReport) AttachmentDownloaded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.AttachmentsDownloaded++
}

// AddCollision records a resolved name clash.
func (r *ExportReport) AddCollision(c CollisionNote) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Collisions = append(r.Collisions, c)
}

// AddUnresolvedLink records a page link that could not be rewritten.
func (r *ExportReport) AddUnresolvedLink(l UnresolvedLink) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.UnresolvedLinks = append(r.UnresolvedLinks, l)
}

// AddConversionNote records a degraded page conversion.
func (r *ExportReport) AddConversionNote(n ConversionNote) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ConversionNotes = append(r.ConversionNotes, n)
}

// AddAttachmentFailure records a skipped attachment download.
func (r *ExportReport) AddAttachmentFailure(f AttachmentFailure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.AttachmentFailures = append(r.AttachmentFailures, f)
}

// AddPerformedStep appends a pipeline step name to the performed list.
func (r *ExportReport) AddPerformedStep(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.PerformedSteps = append(r.PerformedSteps, name)
}

// Finish stamps the end of the run and records the fatal error, if any.
func (r *ExportReport) Finish(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.FinishedAt = time.Now()
	r.Err = err
	if err != nil {
		r.ErrorMessage = err.Error()
	}
}

// Duration returns the wall-clock time of the run. Zero until Finish is
// called.
func (r *ExportReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// WarningCount returns the number of recorded warnings: collisions,
// unresolved links, and conversion notes.
func (r *ExportReport) WarningCount() int {
	return len(r.Collisions) + len(r.UnresolvedLinks) + len(r.ConversionNotes)
}

/// Status classifies the run: failed if a fatal error aborted it, partial if
// it finished but skipped attachments, completed otherwise.
func (r *ExportReport) Status() string {
	switch {
	case r.Err != nil || r.ErrorMessage != "":
		return StatusFailed
	case len(r.AttachmentFailures) > 0:
		return StatusPartial
	default:
		return StatusCompleted
	}
}
