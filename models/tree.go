// ABOUTME: Index-based feed tree built from tag-list and subscription-list responses
// ABOUTME: Nodes live in a flat slice and refer to each other by index

package models

// NodeKind distinguishes the node types of a feed tree
type NodeKind int

const (
	NodeRoot NodeKind = iota
	NodeCategory
	NodeFeed
	NodeLabels
	NodeLabel
)

// IconCandidate is an icon location tried in order; Direct means the URL is the image itself
type IconCandidate struct {
	URL    string
	Direct bool
}

// Node is one entry of a Tree. Parent is -1 for the root.
type Node struct {
	Kind        NodeKind
	Parent      int
	Children    []int
	CustomID    string
	Title       string
	Description string
	Source      string
	Color       string
	Icon        []byte
	IconFrom    []IconCandidate
}

// Tree is an arena of nodes; index 0 is always the root
type Tree struct {
	Nodes []Node
}

// NewTree creates a tree containing only the root node
func NewTree() *Tree {
	return &Tree{Nodes: []Node{{Kind: NodeRoot, Parent: -1}}}
}

// Root returns the index of the root node
func (t *Tree) Root() int {
	return 0
}

// Append adds a node under parent and returns its index
func (t *Tree) Append(parent int, n Node) int {
	n.Parent = parent
	t.Nodes = append(t.Nodes, n)
	idx := len(t.Nodes) - 1
	t.Nodes[parent].Children = append(t.Nodes[parent].Children, idx)
	return idx
}

func (t *Tree) Node(idx int) *Node {
	return &t.Nodes[idx]
}

func (t *Tree) Children(idx int) []int {
	return t.Nodes[idx].Children
}

// FindByCustomID returns the first node of the kind with the custom id, or -1
func (t *Tree) FindByCustomID(kind NodeKind, customID string) int {
	for i := range t.Nodes {
		if t.Nodes[i].Kind == kind && t.Nodes[i].CustomID == customID {
			return i
		}
	}
	return -1
}

func (t *Tree) collect(kind NodeKind) []int {
	var out []int
	for i := range t.Nodes {
		if t.Nodes[i].Kind == kind {
			out = append(out, i)
		}
	}
	return out
}

// Feeds returns the indices of every feed node in insertion order
func (t *Tree) Feeds() []int {
	return t.collect(NodeFeed)
}

// Labels returns the indices of every label node in insertion order
func (t *Tree) Labels() []int {
	return t.collect(NodeLabel)
}

// Categories returns the indices of every category node in insertion order
func (t *Tree) Categories() []int {
	return t.collect(NodeCategory)
}
