package xmlutil

import "fmt"

// Schema describes the minimal shape this system actually depends on
// for a document type: its root element name and the required direct
// children of the root. It is not a general XSD validator -- no Go XSD
// validation library appears anywhere in the retrieved examples, and
// EBICS/ISO 20022 XSDs are large enough that hand-porting one into Go
// structs is out of scope here. Instead Schema checks exactly the
// structural constraints this system relies on before it ever hands a
// document to the Walker, so a malformed bank response fails fast with
// a Shape error instead of a confusing nil-pointer deeper in parsing.
type Schema struct {
	RootLocal        string
	RequiredChildren []string
}

// Validate checks root against the schema's structural constraints.
func (s Schema) Validate(root *Node) error {
	if root.Local != s.RootLocal {
		return &ShapeError{Path: root.QName(), Reason: fmt.Sprintf("expected root element %q", s.RootLocal)}
	}
	for _, req := range s.RequiredChildren {
		if root.Child(req) == nil {
			return &ShapeError{Path: s.RootLocal + "/" + req, Reason: "required element missing"}
		}
	}
	return nil
}
