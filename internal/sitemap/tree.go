// Package sitemap holds the site tree: the persisted hierarchy of pages that
// routes are resolved against.
package sitemap

import (
	"encoding/json"
	"strings"

	"violet/internal/route"
)

// NodeID addresses a node inside one Tree. IDs are not stable across loads.
type NodeID int

const noParent NodeID = -1

// Node is the routing metadata of one page.
type Node struct {
	URL       string
	Title     string
	Published bool
	Visible   bool
	// PublishDate and UnpublishDate are YYYY-MM-DD or "" when unset.
	PublishDate   string
	UnpublishDate string
}

// InDate reports whether today (YYYY-MM-DD) lies within the node's
// publication window. PublishDate is inclusive, UnpublishDate exclusive.
func (n Node) InDate(today string) bool {
	if n.PublishDate != "" && n.PublishDate > today {
		return false
	}
	if n.UnpublishDate != "" && n.UnpublishDate <= today {
		return false
	}
	return true
}

// Live reports whether the node is published and within its dates.
func (n Node) Live(today string) bool {
	return n.Published && n.InDate(today)
}

type entry struct {
	node     Node
	parent   NodeID
	children []NodeID
}

// Tree is an arena of nodes. Parent and child links are index lists, so
// lookups hand out NodeIDs instead of references into the structure. Only
// Store mutates a Tree; a detached subtree stays in the arena but is no longer
// reachable from the roots.
type Tree struct {
	nodes []entry
	roots []NodeID

	home     string
	hideHome bool
}

func newTree(home string, hideHome bool) *Tree {
	return &Tree{home: home, hideHome: hideHome}
}

// Roots returns the top-level nodes in display order.
func (t *Tree) Roots() []NodeID {
	return append([]NodeID(nil), t.roots...)
}

// Children returns the children of id in display order.
func (t *Tree) Children(id NodeID) []NodeID {
	return append([]NodeID(nil), t.nodes[id].children...)
}

// Parent returns the parent of id, or false for top-level nodes.
func (t *Tree) Parent(id NodeID) (NodeID, bool) {
	p := t.nodes[id].parent
	return p, p != noParent
}

// Node returns a copy of the node at id.
func (t *Tree) Node(id NodeID) Node {
	return t.nodes[id].node
}

// Len counts the nodes reachable from the roots.
func (t *Tree) Len() int {
	n := 0
	t.Walk(func(NodeID, int) bool {
		n++
		return true
	})
	return n
}

// CleanURL is the public route of the node at id.
func (t *Tree) CleanURL(id NodeID) string {
	return t.clean(t.nodes[id].node.URL)
}

func (t *Tree) clean(url string) string {
	return route.Canonicalize(url, t.home, t.hideHome)
}

// Walk visits the tree depth first in display order. Returning false from fn
// skips the children of the visited node.
func (t *Tree) Walk(fn func(id NodeID, depth int) bool) {
	var visit func(ids []NodeID, depth int)
	visit = func(ids []NodeID, depth int) {
		for _, id := range ids {
			if fn(id, depth) {
				visit(t.nodes[id].children, depth+1)
			}
		}
	}
	visit(t.roots, 0)
}

// Find looks a node up by its stored URL.
func (t *Tree) Find(url string) (NodeID, bool) {
	return t.FindByRoute(url, false)
}

// FindByRoute searches depth first for route. With clean set every node URL
// is canonicalized before comparing, which matches public routes against
// stored URLs that still contain the home segment.
func (t *Tree) FindByRoute(rt string, clean bool) (NodeID, bool) {
	found := noParent
	t.Walk(func(id NodeID, _ int) bool {
		if found != noParent {
			return false
		}
		url := t.nodes[id].node.URL
		if clean {
			url = t.clean(url)
		}
		if url == rt {
			found = id
			return false
		}
		return true
	})
	return found, found != noParent
}

// isWithin reports whether id is ancestor or the node itself.
func (t *Tree) isWithin(id, ancestor NodeID) bool {
	for cur := id; cur != noParent; cur = t.nodes[cur].parent {
		if cur == ancestor {
			return true
		}
	}
	return false
}

func (t *Tree) siblings(parent NodeID) *[]NodeID {
	if parent == noParent {
		return &t.roots
	}
	return &t.nodes[parent].children
}

func (t *Tree) add(n Node, parent NodeID) NodeID {
	id := NodeID(len(t.nodes))
	t.nodes = append(t.nodes, entry{node: n, parent: parent})
	list := t.siblings(parent)
	*list = append(*list, id)
	return id
}

func (t *Tree) detach(id NodeID) {
	list := t.siblings(t.nodes[id].parent)
	for i, c := range *list {
		if c == id {
			*list = append((*list)[:i:i], (*list)[i+1:]...)
			break
		}
	}
	t.nodes[id].parent = noParent
}

func (t *Tree) insert(id, parent NodeID, index int) {
	list := t.siblings(parent)
	if index < 0 {
		index = 0
	}
	if index > len(*list) {
		index = len(*list)
	}
	next := make([]NodeID, 0, len(*list)+1)
	next = append(next, (*list)[:index]...)
	next = append(next, id)
	next = append(next, (*list)[index:]...)
	*list = next
	t.nodes[id].parent = parent
}

// setURL gives id a new URL and rewrites every descendant so that each URL is
// its parent's URL plus its own last segment.
func (t *Tree) setURL(id NodeID, url string) {
	t.nodes[id].node.URL = url
	for _, c := range t.nodes[id].children {
		t.setURL(c, route.Join(url, route.Slug(t.nodes[c].node.URL)))
	}
}

type jsonNode struct {
	URL           string     `json:"url"`
	Title         string     `json:"title"`
	Published     bool       `json:"published"`
	PublishDate   *string    `json:"publishDate"`
	UnpublishDate *string    `json:"unpublishDate"`
	Visible       bool       `json:"visible"`
	Children      []jsonNode `json:"children"`
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

// MarshalJSON encodes the tree as an array of nested nodes.
func (t *Tree) MarshalJSON() ([]byte, error) {
	var encode func(ids []NodeID) []jsonNode
	encode = func(ids []NodeID) []jsonNode {
		out := make([]jsonNode, 0, len(ids))
		for _, id := range ids {
			n := t.nodes[id].node
			out = append(out, jsonNode{
				URL:           n.URL,
				Title:         n.Title,
				Published:     n.Published,
				PublishDate:   optional(n.PublishDate),
				UnpublishDate: optional(n.UnpublishDate),
				Visible:       n.Visible,
				Children:      encode(t.nodes[id].children),
			})
		}
		return out
	}
	return json.Marshal(encode(t.roots))
}

// UnmarshalJSON replaces the tree's nodes with the decoded array.
func (t *Tree) UnmarshalJSON(data []byte) error {
	var roots []jsonNode
	if err := json.Unmarshal(data, &roots); err != nil {
		return err
	}
	t.nodes = nil
	t.roots = nil
	var decode func(list []jsonNode, parent NodeID)
	decode = func(list []jsonNode, parent NodeID) {
		for _, jn := range list {
			id := t.add(Node{
				URL:           jn.URL,
				Title:         jn.Title,
				Published:     jn.Published,
				Visible:       jn.Visible,
				PublishDate:   deref(jn.PublishDate),
				UnpublishDate: deref(jn.UnpublishDate),
			}, parent)
			decode(jn.Children, id)
		}
	}
	decode(roots, noParent)
	return nil
}
