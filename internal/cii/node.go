package cii

import "strings"

// Attr is an XML attribute
type Attr struct {
	Name  string
	Value string
}

// Node is one element of the document tree. The zero Node means "absent"
// and is dropped by its parent.
type Node struct {
	Name     string
	Attrs    []Attr
	Text     string
	Children []Node
}

// IsZero reports whether the node is absent
func (n Node) IsZero() bool {
	return n.Name == ""
}

// Child returns the first direct child with the given name
func (n Node) Child(name string) (Node, bool) {
	for _, c := range n.Children {
		if c.Name == name {
			return c, true
		}
	}
	return Node{}, false
}

// ChildrenNamed returns every direct child with the given name
func (n Node) ChildrenNamed(name string) []Node {
	var out []Node
	for _, c := range n.Children {
		if c.Name == name {
			out = append(out, c)
		}
	}
	return out
}

// ChildNames lists the names of the direct children in order
func (n Node) ChildNames() []string {
	names := make([]string, len(n.Children))
	for i, c := range n.Children {
		names[i] = c.Name
	}
	return names
}

// Find walks a slash-separated path of child names, taking the first match
// at every step
func (n Node) Find(path string) (Node, bool) {
	cur := n
	for _, name := range strings.Split(path, "/") {
		next, ok := cur.Child(name)
		if !ok {
			return Node{}, false
		}
		cur = next
	}
	return cur, true
}

// Attr returns an attribute value
func (n Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Walk visits n and its descendants depth first
func (n Node) Walk(visit func(Node)) {
	visit(n)
	for _, c := range n.Children {
		c.Walk(visit)
	}
}

// el builds a container element. It is absent when no child is present.
func el(name string, children ...Node) Node {
	kept := make([]Node, 0, len(children))
	for _, c := range children {
		if !c.IsZero() {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return Node{}
	}
	return Node{Name: name, Children: kept}
}

// leaf builds a text element. It is absent when text is empty; attributes
// with empty values are dropped.
func leaf(name, text string, attrs ...Attr) Node {
	if text == "" {
		return Node{}
	}
	n := Node{Name: name, Text: text}
	for _, a := range attrs {
		if a.Value != "" {
			n.Attrs = append(n.Attrs, a)
		}
	}
	return n
}

func attr(name, value string) Attr {
	return Attr{Name: name, Value: value}
}

// seq concatenates child groups
func seq(groups ...[]Node) []Node {
	var out []Node
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func each[T any](items []T, build func(int, T) Node) []Node {
	out := make([]Node, 0, len(items))
	for i, it := range items {
		out = append(out, build(i, it))
	}
	return out
}

func when(cond bool, build func() Node) Node {
	if !cond {
		return Node{}
	}
	return build()
}
