// Package convert renders Confluence storage-format HTML into Markdown
// documents with YAML frontmatter.
//
// Confluence bodies are not plain HTML: images, cross-page links, and
// macros arrive as ac:/ri: XML elements that a generic HTML-to-Markdown
// converter cannot interpret. Conversion therefore runs in two phases:
// first rewrite those elements into ordinary HTML pointing at exported
// files, then hand the tree to the Markdown converter. Conversion is best
// effort; a malformed body never aborts the export, degradations are
// recorded on the run report instead.
package convert
