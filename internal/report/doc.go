// Package report provides export summary generation in multiple formats.
//
// This package contains writers for different output formats:
//   - SimpleWriter: Human-readable text output for terminal display
//   - MarkdownWriter: Markdown output for sharing and documentation
//   - JSONWriter: Structured JSON output for tool integration
//
// Design decision: We separate summary writing from the report data
// structure (which lives in the model package) to follow the single
// responsibility principle. This allows adding new output formats without
// modifying the core data structure.
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
