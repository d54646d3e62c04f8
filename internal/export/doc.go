// Package export orchestrates a space export from fetch to final index.
//
// The work is organized as a pipeline of named steps sharing a Run: fetch
// the page listing, apply the date filter, list attachment metadata, plan
// the on-disk layout, render pages, download attachments, and write the
// top-level index. Steps return an error only for failures that invalidate
// the whole run; anything recoverable lands on the run's report instead.
package export
