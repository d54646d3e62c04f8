// Package hierarchy turns the flat page listing of a space into the
// directory tree the export writes.
//
// Three steps live here: building the forest from parent references,
// allocating a sanitized collision-free directory per page, and planning
// final filenames for each page's attachments. Downstream stages
// (conversion, download, index generation) only consume the decisions made
// here; they never invent paths of their own.
package hierarchy
