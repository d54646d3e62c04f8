package convert

import (
	"strings"
	"testing"
	"time"

	"github.com/spacedown/spacedown/internal/hierarchy"
	"github.com/spacedown/spacedown/internal/model"
)

// testForest builds an allocated forest with attachment plans, the state
// the converter sees during a real export.
func testForest(t *testing.T, records ...model.PageRecord) model.Forest {
	t.Helper()

	forest := hierarchy.BuildForest(records)
	hierarchy.Allocate(forest, nil)
	_ = forest.Walk(func(n *model.Node, _ int) error {
		hierarchy.PlanAttachments(n, nil)
		return nil
	})
	return forest
}

// TestConvertFrontmatter tests the YAML header of rendered documents.
func TestConvertFrontmatter(t *testing.T) {
	t.Parallel()

	modified := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	forest := testForest(t, model.PageRecord{
		ID:           "100",
		Title:        "Getting Started",
		Labels:       []string{"docs", "home"},
		LastModified: modified,
		HTMLBody:     "<p>welcome</p>",
	})

	out, err := NewConverter(forest).Convert(forest[0], nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	doc := string(out)

	if !strings.HasPrefix(doc, "---\n") {
		t.Errorf("expected document to start with frontmatter, got %q", doc[:20])
	}
	for _, want := range []string{
		"title: Getting Started",
		`id: "100"`,
		"- docs",
		"- home",
		"2024-06-01T10:00:00Z",
		"\n# Getting Started\n",
		"welcome",
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("document missing %q:\n%s", want, doc)
		}
	}
}

// TestConvertEmptyBody tests that bodyless pages still render a document.
func TestConvertEmptyBody(t *testing.T) {
	t.Parallel()

	forest := testForest(t, model.PageRecord{ID: "1", Title: "Empty Page"})

	out, err := NewConverter(forest).Convert(forest[0], nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(string(out), "# Empty Page\n") {
		t.Errorf("expected document to end with the heading, got:\n%s", out)
	}
}

// TestConvertBody tests storage-format preprocessing through the full
// conversion.
func TestConvertBody(t *testing.T) {
	t.Parallel()

	t.Run("inline formatting", func(t *testing.T) {
		t.Parallel()

		forest := testForest(t, model.PageRecord{
			ID:       "1",
			Title:    "Format",
			HTMLBody: "<p>Hello <strong>world</strong></p>",
		})

		out, err := NewConverter(forest).Convert(forest[0], nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(string(out), "Hello **world**") {
			t.Errorf("expected bold markdown, got:\n%s", out)
		}
	})

	t.Run("attachment image uses planned filename", func(t *testing.T) {
		t.Parallel()

		forest := testForest(t, model.PageRecord{
			ID:          "1",
			Title:       "Gallery",
			HTMLBody:    `<p><ac:image ac:alt="diagram"><ri:attachment ri:filename="photo.png" /></ac:image></p>`,
			Attachments: []model.AttachmentRef{{Filename: "photo.png"}},
		})

		out, err := NewConverter(forest).Convert(forest[0], nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(string(out), "![diagram](./attachments/photo.png)") {
			t.Errorf("expected rewritten image, got:\n%s", out)
		}
	})

	t.Run("image of unattached file is reported", func(t *testing.T) {
		t.Parallel()

		forest := testForest(t, model.PageRecord{
			ID:       "1",
			Title:    "Gallery",
			HTMLBody: `<ac:image><ri:attachment ri:filename="ghost.png" /></ac:image>`,
		})

		rep := model.NewExportReport("https://example.atlassian.net/wiki", "DOCS", "out")
		out, err := NewConverter(forest).Convert(forest[0], rep)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(string(out), "./attachments/ghost.png") {
			t.Errorf("expected best-effort image path, got:\n%s", out)
		}
		if len(rep.UnresolvedLinks) != 1 || rep.UnresolvedLinks[0].Target != "ghost.png" {
			t.Errorf("expected unresolved link for ghost.png, got %+v", rep.UnresolvedLinks)
		}
	})

	t.Run("external image keeps its URL", func(t *testing.T) {
		t.Parallel()

		forest := testForest(t, model.PageRecord{
			ID:       "1",
			Title:    "External",
			HTMLBody: `<ac:image><ri:url ri:value="https://img.example.com/x.png" /></ac:image>`,
		})

		out, err := NewConverter(forest).Convert(forest[0], nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(string(out), "https://img.example.com/x.png") {
			t.Errorf("expected external image URL preserved, got:\n%s", out)
		}
	})

	t.Run("plain img and anchor with download URLs become local", func(t *testing.T) {
		t.Parallel()

		forest := testForest(t, model.PageRecord{
			ID:    "1",
			Title: "Files",
			HTMLBody: `<p><img src="/download/attachments/1/photo.png?version=2"/></p>` +
				`<p><a href="https://example.atlassian.net/wiki/download/attachments/1/manual.pdf">the manual</a></p>`,
			Attachments: []model.AttachmentRef{
				{Filename: "photo.png", DownloadURL: "/download/attachments/1/photo.png"},
				{Filename: "manual.pdf", DownloadURL: "/download/attachments/1/manual.pdf"},
			},
		})

		conv := NewConverter(forest, WithSiteURL("https://example.atlassian.net/wiki"))
		out, err := conv.Convert(forest[0], nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		doc := string(out)
		if !strings.Contains(doc, "(./attachments/photo.png)") {
			t.Errorf("expected local image path, got:\n%s", doc)
		}
		if !strings.Contains(doc, "[the manual](./attachments/manual.pdf)") {
			t.Errorf("expected local attachment link, got:\n%s", doc)
		}
		if strings.Contains(doc, "/download/attachments") {
			t.Errorf("download URL leaked into the document:\n%s", doc)
		}
	})

	t.Run("bare filename reference becomes local", func(t *testing.T) {
		t.Parallel()

		forest := testForest(t, model.PageRecord{
			ID:          "1",
			Title:       "Files",
			HTMLBody:    `<p><img src="photo.png"/></p>`,
			Attachments: []model.AttachmentRef{{Filename: "photo.png"}},
		})

		out, err := NewConverter(forest).Convert(forest[0], nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(string(out), "(./attachments/photo.png)") {
			t.Errorf("expected local image path, got:\n%s", out)
		}
	})

	t.Run("external link sharing an attachment name is untouched", func(t *testing.T) {
		t.Parallel()

		forest := testForest(t, model.PageRecord{
			ID:          "1",
			Title:       "Files",
			HTMLBody:    `<p><a href="https://example.com/photo.png">elsewhere</a></p>`,
			Attachments: []model.AttachmentRef{{Filename: "photo.png"}},
		})

		out, err := NewConverter(forest).Convert(forest[0], nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(string(out), "[elsewhere](https://example.com/photo.png)") {
			t.Errorf("expected external link preserved, got:\n%s", out)
		}
	})

	t.Run("link to exported page becomes relative", func(t *testing.T) {
		t.Parallel()

		forest := testForest(t,
			model.PageRecord{
				ID:       "1",
				Title:    "Root",
				HTMLBody: `<p>See <ac:link><ri:page ri:content-title="Child" /></ac:link>.</p>`,
			},
			model.PageRecord{ID: "2", Title: "Child", ParentID: "1"},
		)

		out, err := NewConverter(forest).Convert(forest[0], nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(string(out), "[Child](Child/index.md)") {
			t.Errorf("expected relative page link, got:\n%s", out)
		}
	})

	t.Run("link to child from nested page climbs up", func(t *testing.T) {
		t.Parallel()

		forest := testForest(t,
			model.PageRecord{ID: "1", Title: "Root"},
			model.PageRecord{
				ID:       "2",
				Title:    "Child",
				ParentID: "1",
				HTMLBody: `<ac:link><ri:page ri:content-title="Sibling" /></ac:link>`,
			},
			model.PageRecord{ID: "3", Title: "Sibling", ParentID: "1"},
		)

		child := forest.Find("2")
		out, err := NewConverter(forest).Convert(child, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(string(out), "[Sibling](../Sibling/index.md)") {
			t.Errorf("expected up-and-over link, got:\n%s", out)
		}
	})

	t.Run("link to missing page degrades to text", func(t *testing.T) {
		t.Parallel()

		forest := testForest(t, model.PageRecord{
			ID:    "1",
			Title: "Lonely",
			HTMLBody: `<p><ac:link><ri:page ri:content-title="Elsewhere" />` +
				`<ac:plain-text-link-body><![CDATA[see elsewhere]]></ac:plain-text-link-body></ac:link></p>`,
		})

		rep := model.NewExportReport("https://example.atlassian.net/wiki", "DOCS", "out")
		out, err := NewConverter(forest).Convert(forest[0], rep)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(string(out), "see elsewhere") {
			t.Errorf("expected link text kept, got:\n%s", out)
		}
		if strings.Contains(string(out), "](") {
			t.Errorf("expected no link markup, got:\n%s", out)
		}
		if len(rep.UnresolvedLinks) != 1 || rep.UnresolvedLinks[0].Target != "Elsewhere" {
			t.Errorf("expected unresolved link for Elsewhere, got %+v", rep.UnresolvedLinks)
		}
	})

	t.Run("attachment link uses planned filename", func(t *testing.T) {
		t.Parallel()

		forest := testForest(t, model.PageRecord{
			ID:    "1",
			Title: "Docs",
			HTMLBody: `<ac:link><ri:attachment ri:filename="manual.pdf" />` +
				`<ac:plain-text-link-body><![CDATA[the manual]]></ac:plain-text-link-body></ac:link>`,
			Attachments: []model.AttachmentRef{{Filename: "manual.pdf"}},
		})

		out, err := NewConverter(forest).Convert(forest[0], nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(string(out), "[the manual](./attachments/manual.pdf)") {
			t.Errorf("expected attachment link, got:\n%s", out)
		}
	})

	t.Run("code macro becomes fenced block", func(t *testing.T) {
		t.Parallel()

		forest := testForest(t, model.PageRecord{
			ID:    "1",
			Title: "Snippets",
			HTMLBody: `<ac:structured-macro ac:name="code">` +
				`<ac:parameter ac:name="language">go</ac:parameter>` +
				`<ac:plain-text-body><![CDATA[fmt.Println("hi")]]></ac:plain-text-body>` +
				`</ac:structured-macro>`,
		})

		out, err := NewConverter(forest).Convert(forest[0], nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		doc := string(out)
		if !strings.Contains(doc, "```go") {
			t.Errorf("expected fenced go block, got:\n%s", doc)
		}
		if !strings.Contains(doc, `fmt.Println("hi")`) {
			t.Errorf("expected code body preserved, got:\n%s", doc)
		}
	})

	t.Run("drawio macro leaves a note pointing at the file", func(t *testing.T) {
		t.Parallel()

		forest := testForest(t, model.PageRecord{
			ID:    "1",
			Title: "Diagrams",
			HTMLBody: `<ac:structured-macro ac:name="drawio">` +
				`<ac:parameter ac:name="diagramName">flow</ac:parameter>` +
				`</ac:structured-macro>`,
			Attachments: []model.AttachmentRef{{Filename: "flow.drawio"}},
		})

		out, err := NewConverter(forest).Convert(forest[0], nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		doc := string(out)
		if !strings.Contains(doc, "Draw.io diagram") {
			t.Errorf("expected diagram note, got:\n%s", doc)
		}
		if !strings.Contains(doc, "./attachments/flow.drawio") {
			t.Errorf("expected link to exported diagram, got:\n%s", doc)
		}
		if !strings.Contains(doc, "> ") {
			t.Errorf("expected blockquote, got:\n%s", doc)
		}
	})

	t.Run("unknown macro unwraps to its body", func(t *testing.T) {
		t.Parallel()

		forest := testForest(t, model.PageRecord{
			ID:    "1",
			Title: "Notices",
			HTMLBody: `<ac:structured-macro ac:name="info">` +
				`<ac:parameter ac:name="title">leaked-parameter-value</ac:parameter>` +
				`<ac:rich-text-body><p>Important fact</p></ac:rich-text-body>` +
				`</ac:structured-macro>`,
		})

		out, err := NewConverter(forest).Convert(forest[0], nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(string(out), "Important fact") {
			t.Errorf("expected macro body kept, got:\n%s", out)
		}
		if strings.Contains(string(out), "leaked-parameter-value") {
			t.Errorf("expected parameters dropped, got:\n%s", out)
		}
	})
}
