package hierarchy

import (
	"path"
	"strconv"
	"strings"

	"github.com/spacedown/spacedown/internal/model"
)

// maxSegmentLen caps a single path segment so deeply nested exports stay
// inside OS path-length limits.
const maxSegmentLen = 200

// fallbackSegment names pages whose title sanitizes down to nothing.
const fallbackSegment = "untitled"

// Allocate assigns every node its directory path, parents before children.
// Paths are slash-separated and relative to the export root; callers join
// them onto the root when touching the filesystem.
//
// Sibling segments that sanitize to the same name are compared
// case-insensitively, since the export may land on a case-insensitive
// filesystem, and get a numeric suffix in traversal order. Each renaming is
// recorded on the report.
func Allocate(forest model.Forest, rep *model.ExportReport) {
	allocateSiblings(forest, "", rep)
}

func allocateSiblings(siblings []*model.Node, parentPath string, rep *model.ExportReport) {
	taken := make(map[string]struct{}, len(siblings))
	for _, n := range siblings {
		base := SanitizeSegment(n.Page.Title)
		segment := base
		for i := 2; ; i++ {
			if _, dup := taken[strings.ToLower(segment)]; !dup {
				break
			}
			segment = suffixSegment(base, i)
		}
		if segment != base && rep != nil {
			rep.AddCollision(model.CollisionNote{
				Kind:      model.CollisionDirectory,
				PageID:    n.Page.ID,
				PageTitle: n.Page.Title,
				Requested: base,
				Assigned:  segment,
			})
		}
		taken[strings.ToLower(segment)] = struct{}{}
		n.Path = path.Join(parentPath, segment)
		allocateSiblings(n.Children, n.Path, rep)
	}
}

// SanitizeSegment converts a page title or attachment filename into a
// filesystem-safe name. Runes outside [A-Za-z0-9 _.-] become underscores,
// each run of spaces and underscores collapses to a single separator,
// leading and trailing separators and trailing dots are trimmed, and the
// result is capped at maxSegmentLen. An empty result falls back to
// "untitled".
//
// The function is idempotent: applied to its own output it returns the
// input unchanged, so re-running an export regenerates identical names.
func SanitizeSegment(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '_' || r == '.' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	// The mapped string is pure ASCII, so byte indexing below is rune-safe.
	s := collapseSeparators(b.String())
	s = strings.TrimLeft(s, "_ ")
	s = strings.TrimRight(s, "._ ")
	if len(s) > maxSegmentLen {
		s = strings.TrimRight(s[:maxSegmentLen], "._ ")
	}
	if s == "" {
		return fallbackSegment
	}
	return s
}

// collapseSeparators reduces each run of spaces and underscores to a single
// byte: '_' when the run contains an underscore, ' ' otherwise. Mixed runs
// such as "_ _" appear when invalid characters are replaced next to spaces.
func collapseSeparators(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		if c != ' ' && c != '_' {
			b.WriteByte(c)
			i++
			continue
		}
		sep := byte(' ')
		j := i
		for ; j < len(s) && (s[j] == ' ' || s[j] == '_'); j++ {
			if s[j] == '_' {
				sep = '_'
			}
		}
		b.WriteByte(sep)
		i = j
	}
	return b.String()
}

// suffixSegment appends "_<n>" to base, shortening base first when the
// combined segment would exceed maxSegmentLen.
func suffixSegment(base string, n int) string {
	suffix := "_" + strconv.Itoa(n)
	if len(base)+len(suffix) > maxSegmentLen {
		base = strings.TrimRight(base[:maxSegmentLen-len(suffix)], "._ ")
	}
	return base + suffix
}
