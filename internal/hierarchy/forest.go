package hierarchy

import (
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/spacedown/spacedown/internal/model"
)

// BuildForest assembles the page tree from a flat listing.
//
// A record whose ParentID is empty or refers to a page outside the listing
// (top-level page, parent outside the space, or parent excluded by a date
// filter) becomes a root. Fetch order does not matter: nodes are indexed
// first and linked second.
//
// Roots and the children of every node are ordered by title
// (case-insensitive collation) with the page ID as tie-break, so repeated
// exports of the same space traverse pages in the same order.
func BuildForest(records []model.PageRecord) model.Forest {
	nodes := make(map[string]*model.Node, len(records))
	order := make([]*model.Node, 0, len(records))
	for _, rec := range records {
		n := &model.Node{Page: rec}
		nodes[rec.ID] = n
		order = append(order, n)
	}

	var forest model.Forest
	for _, n := range order {
		parent, ok := nodes[n.Page.ParentID]
		if !n.Page.HasParent() || !ok || parent == n {
			forest = append(forest, n)
			continue
		}
		parent.Children = append(parent.Children, n)
	}

	// Confluence ancestry is acyclic, but malformed data must not make the
	// export spin or silently drop pages. Every node has at most one parent,
	// so anything unreachable from a root sits on a parent cycle: cut the
	// first such node loose and the rest of its cycle becomes its subtree.
	reachable := make(map[*model.Node]bool, len(order))
	var mark func(*model.Node)
	mark = func(n *model.Node) {
		if reachable[n] {
			return
		}
		reachable[n] = true
		for _, c := range n.Children {
			mark(c)
		}
	}
	for _, root := range forest {
		mark(root)
	}
	for _, n := range order {
		if reachable[n] {
			continue
		}
		if parent, ok := nodes[n.Page.ParentID]; ok {
			parent.Children = removeChild(parent.Children, n)
		}
		forest = append(forest, n)
		mark(n)
	}

	sortForest(forest)
	return forest
}

func removeChild(children []*model.Node, target *model.Node) []*model.Node {
	out := children[:0]
	for _, c := range children {
		if c != target {
			out = append(out, c)
		}
	}
	return out
}

func sortForest(forest model.Forest) {
	coll := collate.New(language.Und, collate.IgnoreCase)
	byTitle := func(a, b *model.Node) int {
		if c := coll.CompareString(a.Page.Title, b.Page.Title); c != 0 {
			return c
		}
		return strings.Compare(a.Page.ID, b.Page.ID)
	}

	var sortChildren func(*model.Node)
	sortChildren = func(n *model.Node) {
		slices.SortFunc(n.Children, byTitle)
		for _, c := range n.Children {
			sortChildren(c)
		}
	}

	slices.SortFunc(forest, byTitle)
	for _, root := range forest {
		sortChildren(root)
	}
}
