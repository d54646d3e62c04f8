package model

// Node ties one page to its position in the export tree.
//
// Design decision: Children are materialized as an ordered slice rather than
// recomputed from parent IDs because three separate stages (page rendering,
// attachment download, index generation) must traverse the tree in the
// identical order. Ordering once during hierarchy building makes that
// guarantee structural instead of behavioral.
type Node struct {
	// Page is the page this node represents.
	Page PageRecord

	// Children holds the node's child pages ordered by title
	// (case-insensitive, ties broken by page ID).
	Children []*Node

	// Path is the directory allocated for this page, relative to the
	// export root. Empty until path allocation runs; written exactly once.
	Path string

	// Attachments is the page's attachment naming plan, populated during
	// path allocation. Conversion and download both consult it so inline
	// references and files on disk agree on final names.
	Attachments []PlannedAttachment
}

// PlannedAttachment pairs an attachment with its final on-disk filename.
type PlannedAttachment struct {
	// Ref is the attachment metadata from the API.
	Ref AttachmentRef

	// Name is the sanitized, per-page-unique filename the attachment will
	// be written to under the page's attachments/ directory.
	Name string
}

// Forest is the set of root nodes of an exported space. A page whose parent
// is not part of the export (top-level page, parent outside the space, or
// parent excluded by a date filter) becomes a root.
type Forest []*Node

// Walk visits every node in pre-order: parent before children, siblings in
// child order, roots in forest order. The callback receives the node's
// depth, with roots at depth 0. Walk stops at the first error and returns it.
//
// All tree traversal in the exporter goes through Walk so every stage
// observes the same order.
func (f Forest) Walk(fn func(n *Node, depth int) error) error {
	for _, root := range f {
		if err := walkNode(root, 0, fn); err != nil {
			return err
		}
	}
	return nil
}

func walkNode(n *Node, depth int, fn func(*Node, int) error) error {
	if err := fn(n, depth); err != nil {
		return err
	}
	for _, child := range n.Children {
		if err := walkNode(child, depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}

// Count returns the total number of nodes in the forest.
func (f Forest) Count() int {
	n := 0
	_ = f.Walk(func(*Node, int) error {
		n++
		return nil
	})
	return n
}

// Find returns the node for the given page ID, or nil if the ID is not part
// of the forest.
func (f Forest) Find(id string) *Node {
	var found *Node
	_ = f.Walk(func(n *Node, _ int) error {
		if found == nil && n.Page.ID == id {
			found = n
		}
		return nil
	})
	return found
}
