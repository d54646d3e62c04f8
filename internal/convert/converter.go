package convert

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"golang.org/x/net/html"
	"gopkg.in/yaml.v3"

	"github.com/spacedown/spacedown/internal/model"
)

// blankRuns matches three or more consecutive newlines left behind by
// dropped elements; rendered documents keep at most one blank line.
var blankRuns = regexp.MustCompile(`\n{3,}`)

// Converter renders pages to Markdown documents. One converter serves a
// whole export: it carries the title-to-path table used to rewrite
// cross-page links, so it must be built after path allocation.
type Converter struct {
	titleToPath map[string]string

	// siteURL is the site root, used to recognize absolute attachment
	// download links in page bodies. Empty disables absolute-URL matching.
	siteURL string
}

// ConverterOption configures a Converter.
type ConverterOption func(*Converter)

// WithSiteURL sets the site base URL so plain img and anchor elements
// holding an absolute attachment download link are rewritten to the local
// attachments directory.
func WithSiteURL(siteURL string) ConverterOption {
	return func(c *Converter) {
		c.siteURL = strings.TrimRight(siteURL, "/")
	}
}

// NewConverter builds a converter for an allocated forest. Confluence links
// reference pages by title; duplicate titles resolve to the first page in
// traversal order.
func NewConverter(forest model.Forest, opts ...ConverterOption) *Converter {
	titleToPath := make(map[string]string)
	_ = forest.Walk(func(n *model.Node, _ int) error {
		if _, exists := titleToPath[n.Page.Title]; !exists {
			titleToPath[n.Page.Title] = n.Path
		}
		return nil
	})

	c := &Converter{titleToPath: titleToPath}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// pageFrontmatter is the YAML block prepended to every exported page.
type pageFrontmatter struct {
	Title        string   `yaml:"title"`
	ID           string   `yaml:"id"`
	Labels       []string `yaml:"labels,omitempty"`
	LastModified string   `yaml:"lastModified,omitempty"`
}

// Convert renders one page into its final index.md contents: YAML
// frontmatter, the page title as heading, and the converted body.
//
// Body conversion is best effort. A body the converter rejects degrades to
// its plain text, and the degradation is recorded on the report. Only
// frontmatter serialization returns an error, and that indicates a bug
// rather than bad page data.
func (c *Converter) Convert(n *model.Node, rep *model.ExportReport) ([]byte, error) {
	fm := pageFrontmatter{
		Title:  n.Page.Title,
		ID:     n.Page.ID,
		Labels: n.Page.Labels,
	}
	if !n.Page.LastModified.IsZero() {
		fm.LastModified = n.Page.LastModified.UTC().Format(time.RFC3339)
	}
	head, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal frontmatter for page %s: %w", n.Page.ID, err)
	}

	body := c.convertBody(n, rep)

	var b strings.Builder
	b.WriteString("---\n")
	b.Write(head)
	b.WriteString("---\n\n# ")
	b.WriteString(n.Page.Title)
	b.WriteString("\n")
	if body != "" {
		b.WriteString("\n")
		b.WriteString(body)
		b.WriteString("\n")
	}
	return []byte(b.String()), nil
}

// convertBody turns storage-format HTML into Markdown, falling back to
// plain text extraction when the converter rejects the tree.
func (c *Converter) convertBody(n *model.Node, rep *model.ExportReport) string {
	if strings.TrimSpace(n.Page.HTMLBody) == "" {
		return ""
	}

	doc, err := html.Parse(strings.NewReader(n.Page.HTMLBody))
	if err != nil {
		// The HTML5 parser recovers from almost anything; reaching this
		// means the body is beyond repair.
		if rep != nil {
			rep.AddConversionNote(model.ConversionNote{
				PageID:    n.Page.ID,
				PageTitle: n.Page.Title,
				Note:      fmt.Sprintf("HTML unparsable, body dropped: %v", err),
			})
		}
		return ""
	}

	c.preprocess(doc, n, rep)

	markdown, err := htmltomarkdown.ConvertNode(doc)
	if err != nil {
		if rep != nil {
			rep.AddConversionNote(model.ConversionNote{
				PageID:    n.Page.ID,
				PageTitle: n.Page.Title,
				Note:      fmt.Sprintf("Markdown conversion failed, kept plain text: %v", err),
			})
		}
		return strings.TrimSpace(textContent(doc))
	}

	return blankRuns.ReplaceAllString(strings.TrimSpace(string(markdown)), "\n\n")
}
