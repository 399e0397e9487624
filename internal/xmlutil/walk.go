package xmlutil

import "fmt"

// ShapeError is the structured XmlError::Shape{path, reason} the spec
// requires the destructuring walker to fail with on any deviation from
// the expected shape.
type ShapeError struct {
	Path   string
	Reason string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("xmlutil: shape error at %s: %s", e.Path, e.Reason)
}

// Walker destructures a Node tree fail-closed: a missing required
// element or attribute is an error, but unexpected extra children are
// silently ignored (forward compatibility with bank dialects that add
// fields this system does not read).
type Walker struct {
	node *Node
	path string
}

// NewWalker starts destructuring at the document root.
func NewWalker(root *Node) *Walker {
	return &Walker{node: root, path: root.QName()}
}

// Node exposes the underlying node for read-only inspection.
func (w *Walker) Node() *Node {
	return w.node
}

// Require returns a child Walker for the unique required child with the
// given local name. Errors if absent or if more than one exists.
func (w *Walker) Require(local string) (*Walker, error) {
	matches := w.node.ChildrenNamed(local)
	switch len(matches) {
	case 0:
		return nil, &ShapeError{Path: w.path + "/" + local, Reason: "required element missing"}
	case 1:
		return &Walker{node: matches[0], path: w.path + "/" + local}, nil
	default:
		return nil, &ShapeError{Path: w.path + "/" + local, Reason: "expected a unique child, found multiple"}
	}
}

// Optional returns a child Walker for local, or (nil, false) if absent.
// It still errors if more than one match exists, since "unique child"
// is a shape constraint independent of whether the element is required.
func (w *Walker) Optional(local string) (*Walker, bool, error) {
	matches := w.node.ChildrenNamed(local)
	switch len(matches) {
	case 0:
		return nil, false, nil
	case 1:
		return &Walker{node: matches[0], path: w.path + "/" + local}, true, nil
	default:
		return nil, false, &ShapeError{Path: w.path + "/" + local, Reason: "expected at most one child, found multiple"}
	}
}

// All returns a Walker for every child with the given local name, in
// document order, without requiring uniqueness.
func (w *Walker) All(local string) []*Walker {
	matches := w.node.ChildrenNamed(local)
	out := make([]*Walker, len(matches))
	for i, m := range matches {
		out[i] = &Walker{node: m, path: fmt.Sprintf("%s/%s[%d]", w.path, local, i)}
	}
	return out
}

// Text returns the node's trimmed text content.
func (w *Walker) Text() string {
	return w.node.TrimmedText()
}

// RequireText returns the node's trimmed text content, erroring if empty.
func (w *Walker) RequireText() (string, error) {
	text := w.node.TrimmedText()
	if text == "" {
		return "", &ShapeError{Path: w.path, Reason: "required text content missing"}
	}
	return text, nil
}

// RequireAttr returns a required attribute's value.
func (w *Walker) RequireAttr(local string) (string, error) {
	v, ok := w.node.AttrValue(local)
	if !ok || v == "" {
		return "", &ShapeError{Path: w.path + "/@" + local, Reason: "required attribute missing"}
	}
	return v, nil
}

// OptionalAttr returns an attribute's value, or ("", false) if absent.
func (w *Walker) OptionalAttr(local string) (string, bool) {
	return w.node.AttrValue(local)
}
