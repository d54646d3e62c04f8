package model

import (
	"path"
	"strings"
	"time"
)

// PageRecord is the normalized form of a single Confluence page as returned
// by the content listing API.
//
// Design decision: A record is immutable once fetched. Hierarchy building,
// path allocation, and conversion only read from it, so the export pipeline
// can hand the same slice to every stage without defensive copies.
type PageRecord struct {
	// ID is the Confluence content ID. Unique within a site.
	ID string `json:"id"`

	// Title is the page title as stored in Confluence.
	// Not unique and not filesystem-safe; path allocation sanitizes it.
	Title string `json:"title"`

	// ParentID is the content ID of the immediate parent page.
	// Empty for top-level pages.
	ParentID string `json:"parent_id,omitempty"`

	// HTMLBody is the page body in Confluence storage format (XHTML with
	// ac: and ri: extension elements).
	HTMLBody string `json:"-"` // Excluded from JSON to keep reports small

	// Labels contains the page's label names, deduplicated, in API order.
	Labels []string `json:"labels,omitempty"`

	// LastModified is the timestamp of the latest page version.
	// Zero if the API response carried no parseable version timestamp.
	LastModified time.Time `json:"last_modified"`

	// Attachments lists the page's attachment metadata in API order.
	// Filenames are not guaranteed unique within a page.
	Attachments []AttachmentRef `json:"attachments,omitempty"`
}

// HasParent reports whether the page declares an immediate parent.
func (p *PageRecord) HasParent() bool {
	return p.ParentID != ""
}

// ModifiedOnOrAfter reports whether the page's latest version is at or after
// the cutoff. Pages without version information pass the filter: a missing
// or unparsable timestamp is never a reason to drop a page from an export.
func (p *PageRecord) ModifiedOnOrAfter(cutoff time.Time) bool {
	if p.LastModified.IsZero() {
		return true
	}
	return !p.LastModified.Before(cutoff)
}

// AttachmentRef describes one attachment of a page as reported by the
// attachment listing API. It carries metadata only; the binary content is
// fetched separately during the write phase.
type AttachmentRef struct {
	// Filename is the attachment filename as stored in Confluence.
	Filename string `json:"filename"`

	// DownloadURL is the download link from the API response.
	// May be relative to the site base URL.
	DownloadURL string `json:"download_url"`

	// MediaType is the attachment MIME type, if the API reported one.
	MediaType string `json:"media_type,omitempty"`
}

// SplitExt returns the filename split into base name and extension.
// The extension includes the leading dot ("diagram.drawio" yields
// "diagram" and ".drawio"). A file without a dot has an empty extension.
func (a AttachmentRef) SplitExt() (base, ext string) {
	ext = path.Ext(a.Filename)
	return strings.TrimSuffix(a.Filename, ext), ext
}

// IsDiagram reports whether the attachment is a draw.io diagram source.
// Diagram sources are copied verbatim; pages reference them with a note
// instead of an image embed.
func (a AttachmentRef) IsDiagram() bool {
	return strings.EqualFold(path.Ext(a.Filename), ".drawio")
}
