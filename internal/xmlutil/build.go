package xmlutil

import (
	"fmt"
	"strings"
)

// Builder constructs a namespaced XML document in memory as a Node
// tree, then serialises it in one pass. Building in memory (rather than
// truly streaming to an io.Writer token-by-token) keeps the path
// shorthand and attribute-then-child ordering simple, while the output
// is still produced by a single deterministic traversal no different
// from a streaming encoder.
type Builder struct {
	root *Node
}

// NewBuilder starts a document rooted at the given namespace and local
// name, e.g. NewBuilder("urn:org:ebics:H004", "ebicsRequest").
func NewBuilder(namespace, local string) *Builder {
	return &Builder{root: &Node{Space: namespace, Local: local}}
}

// Root returns the document's root node for direct manipulation.
func (b *Builder) Root() *Node {
	return b.root
}

// El appends a child element at the given slash-separated path under
// parent, creating any missing intermediate elements, and returns the
// leaf node so the caller can set attributes or text. Intermediate
// elements are found-or-created; the final path segment is always a
// freshly appended sibling, so repeated calls with the same path
// produce repeated elements (e.g. multiple camt Ntry children).
func (parent *Node) El(path string) *Node {
	segments := strings.Split(path, "/")
	cur := parent
	for i, seg := range segments {
		if i == len(segments)-1 {
			child := &Node{Space: cur.Space, Local: seg}
			cur.Children = append(cur.Children, child)
			cur = child
			continue
		}
		if existing := cur.Child(seg); existing != nil {
			cur = existing
			continue
		}
		child := &Node{Space: cur.Space, Local: seg}
		cur.Children = append(cur.Children, child)
		cur = child
	}
	return cur
}

// SetText sets the node's text content and returns it for chaining.
func (n *Node) SetText(text string) *Node {
	n.Text = text
	return n
}

// SetAttr sets an unqualified attribute and returns the node for chaining.
func (n *Node) SetAttr(local, value string) *Node {
	n.Attrs = append(n.Attrs, Attr{Local: local, Value: value})
	return n
}

// Serialize renders the document as bytes. The output is stable: the
// same tree always serializes identically, and re-parsing the output
// with Parse followed by Canonicalize reproduces the same canonical
// form (round-trip stability).
func (b *Builder) Serialize() []byte {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	writeNode(&sb, b.root, true)
	return []byte(sb.String())
}

func writeNode(sb *strings.Builder, n *Node, isRoot bool) {
	sb.WriteByte('<')
	sb.WriteString(n.Local)
	if isRoot && n.Space != "" {
		sb.WriteString(` xmlns="`)
		sb.WriteString(escapeAttr(n.Space))
		sb.WriteByte('"')
	}
	for _, a := range n.Attrs {
		sb.WriteByte(' ')
		if a.Space != "" {
			sb.WriteString(a.Space)
			sb.WriteByte(':')
		}
		sb.WriteString(a.Local)
		sb.WriteString(`="`)
		sb.WriteString(escapeAttr(a.Value))
		sb.WriteByte('"')
	}

	if len(n.Children) == 0 && n.Text == "" {
		sb.WriteString("/>")
		return
	}

	sb.WriteByte('>')
	if n.Text != "" {
		sb.WriteString(escapeText(n.Text))
	}
	for _, c := range n.Children {
		writeNode(sb, c, false)
	}
	sb.WriteString("</")
	sb.WriteString(n.Local)
	sb.WriteByte('>')
}

func escapeText(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	return r.Replace(s)
}

func escapeAttr(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}

// RequireText formats an error for a missing required element, used by
// callers composing order data who need to validate their own inputs
// before invoking the Builder.
func RequireText(path, reason string) error {
	return fmt.Errorf("xmlutil: %s: %s", path, reason)
}
