package convert

import (
	"strings"
	"testing"

	"golang.org/x/net/html"
)

// TestRelativeDir tests relative path computation between export
// directories.
func TestRelativeDir(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		from string
		to   string
		want string
	}{
		{name: "root to root", from: "", to: "", want: "."},
		{name: "root to child", from: "", to: "Root", want: "Root"},
		{name: "child to root", from: "Root", to: "", want: ".."},
		{name: "parent to its child", from: "Root", to: "Root/Child", want: "Child"},
		{name: "child to its parent", from: "Root/Child", to: "Root", want: ".."},
		{name: "between siblings", from: "A/B", to: "A/C", want: "../C"},
		{name: "across subtrees", from: "A/B", to: "C", want: "../../C"},
		{name: "same directory", from: "A/B/C", to: "A/B/C", want: "."},
		{name: "deep descent", from: "A", to: "A/B/C", want: "B/C"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := relativeDir(tt.from, tt.to); got != tt.want {
				t.Errorf("relativeDir(%q, %q) = %q, expected %q", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

// TestTextContent tests text extraction including CDATA payloads, which the
// HTML5 parser surfaces as comment nodes.
func TestTextContent(t *testing.T) {
	t.Parallel()

	doc, err := html.Parse(strings.NewReader(
		`<div>plain <![CDATA[hidden]]> <!-- a real comment --> text</div>`))
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}

	got := textContent(doc)
	if !strings.Contains(got, "plain") || !strings.Contains(got, "hidden") || !strings.Contains(got, "text") {
		t.Errorf("expected plain, hidden, and text in %q", got)
	}
	if strings.Contains(got, "a real comment") {
		t.Errorf("expected ordinary comments excluded, got %q", got)
	}
}
