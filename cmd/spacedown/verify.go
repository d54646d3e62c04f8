package main

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/spf13/cobra"
)

// NewVerifyCmd creates the verify command.
func NewVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <directory>",
		Short: "Check the integrity of a finished export",
		Long: `Verify walks a finished export directory and checks its consistency.

It verifies that:
- every index.md carries parseable YAML frontmatter with a page ID
- no page ID appears in more than one index.md
- every link in INDEX.md points to a file that exists on disk
- every exported page is linked from INDEX.md

Examples:
  # Verify the default export directory
  spacedown verify confluence_export

  # Verify a specific export
  spacedown verify ./docs-export`,
		Args: cobra.ExactArgs(1),
		RunE: runVerifyCmd,
	}

	return cmd
}

// pageMeta is the frontmatter block expected at the top of every index.md.
type pageMeta struct {
	Title string `yaml:"title"`
	ID    string `yaml:"id"`
}

// indexLink matches one Markdown link line in INDEX.md and captures its
// target path.
var indexLink = regexp.MustCompile(`^\s*- \[[^\]]*\]\(([^)]+)\)\s*$`)

// runVerifyCmd executes the verify command.
func runVerifyCmd(_ *cobra.Command, args []string) error {
	root := args[0]

	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("cannot access export directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", root)
	}

	var problems []string

	pages, pageProblems := buildPageIndex(root)
	problems = append(problems, pageProblems...)

	linked, linkProblems := checkIndexLinks(root)
	problems = append(problems, linkProblems...)

	// Every exported page must be reachable from INDEX.md
	for rel := range pages {
		if !linked[rel] {
			problems = append(problems, fmt.Sprintf("page not linked from INDEX.md: %s", rel))
		}
	}

	fmt.Printf("Verified %s: %d pages, %d INDEX.md links\n", root, len(pages), len(linked))

	if len(problems) > 0 {
		fmt.Printf("\nProblems (%d):\n", len(problems))
		for _, p := range problems {
			fmt.Printf("  - %s\n", p)
		}
		return fmt.Errorf("verification failed: %d problems found", len(problems))
	}

	fmt.Println("No problems found.")
	return nil
}

// buildPageIndex scans the export tree and returns the set of index.md
// files keyed by their slash-separated path relative to the root, along
// with any problems found while parsing them.
func buildPageIndex(root string) (map[string]string, []string) {
	pages := make(map[string]string) // rel path -> page ID
	seenIDs := make(map[string]string)
	var problems []string

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Attachment directories hold binaries, not pages
			if d.Name() == "attachments" || strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() != "index.md" {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		meta, err := readPageMeta(path)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", rel, err))
			return nil
		}
		if meta.ID == "" {
			problems = append(problems, fmt.Sprintf("%s: frontmatter has no page id", rel))
			return nil
		}

		if prev, dup := seenIDs[meta.ID]; dup {
			problems = append(problems, fmt.Sprintf("%s: page id %s already used by %s", rel, meta.ID, prev))
		} else {
			seenIDs[meta.ID] = rel
		}

		pages[rel] = meta.ID
		return nil
	})
	if err != nil {
		problems = append(problems, fmt.Sprintf("walk failed: %v", err))
	}

	return pages, problems
}

// readPageMeta parses the YAML frontmatter of one exported page.
func readPageMeta(path string) (*pageMeta, error) {
	f, err := os.Open(path) //nolint:gosec // Paths come from walking the user-given directory
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var meta pageMeta
	if _, err := frontmatter.Parse(f, &meta); err != nil {
		return nil, fmt.Errorf("invalid frontmatter: %w", err)
	}
	return &meta, nil
}

// checkIndexLinks parses INDEX.md and returns the set of linked page paths
// (slash-separated, relative to the root), along with problems for link
// targets that do not exist on disk.
func checkIndexLinks(root string) (map[string]bool, []string) {
	linked := make(map[string]bool)
	var problems []string

	f, err := os.Open(filepath.Join(root, "INDEX.md")) //nolint:gosec // Export root is user-given
	if err != nil {
		return linked, []string{fmt.Sprintf("cannot open INDEX.md: %v", err)}
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		m := indexLink.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		target := m[1]

		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(target))); err != nil {
			problems = append(problems, fmt.Sprintf("INDEX.md links to missing file: %s", target))
			continue
		}
		linked[target] = true
	}
	if err := scanner.Err(); err != nil {
		problems = append(problems, fmt.Sprintf("failed to read INDEX.md: %v", err))
	}

	return linked, problems
}
