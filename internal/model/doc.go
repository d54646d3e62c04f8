// Package model defines the core data structures used throughout spacedown.
//
// This package contains the following main types:
//   - PageRecord: Normalized form of one Confluence page from the content API
//   - Node / Forest: The page hierarchy with allocated filesystem paths
//   - ExportReport: Accumulated counters, warnings, and failures of one run
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (confluence, hierarchy, convert, export,
// report) need to use these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for report output and
// database storage.
package model
