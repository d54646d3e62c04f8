// Package main provides the entry point for the spacedown CLI.
//
// spacedown exports a Confluence space into a directory tree of Markdown
// files that mirrors the page hierarchy, including attachments and an
// INDEX.md overview of the exported pages.
//
// Usage:
//
//	spacedown export --url https://example.atlassian.net/wiki --space DOCS \
//	  --username user@example.com --token <api-token>
//
// See --help for all available options.
package main

// main is the entry point for spacedown.
func main() {
	Execute()
}
