package cii

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/rezonia/facturx/internal/model"
)

var errNoRoot = errors.New("cii: document has no root element")

// Marshal serializes a tree as an indented UTF-8 XML document
func Marshal(root Node) []byte {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	appendNode(&doc.Element, root)
	doc.Indent(2)

	var buf bytes.Buffer
	// writes into a bytes.Buffer do not fail
	_, _ = doc.WriteTo(&buf)
	return buf.Bytes()
}

func appendNode(parent *etree.Element, n Node) {
	if n.IsZero() {
		return
	}
	e := parent.CreateElement(n.Name)
	for _, a := range n.Attrs {
		e.CreateAttr(a.Name, a.Value)
	}
	if n.Text != "" {
		e.SetText(n.Text)
	}
	for _, c := range n.Children {
		appendNode(e, c)
	}
}

// Unmarshal reads XML back into a tree; only elements, attributes and
// non-blank text are kept
func Unmarshal(data []byte) (Node, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return Node{}, err
	}
	root := doc.Root()
	if root == nil {
		return Node{}, errNoRoot
	}
	return fromElement(root), nil
}

func fromElement(e *etree.Element) Node {
	n := Node{Name: e.FullTag()}
	for _, a := range e.Attr {
		n.Attrs = append(n.Attrs, Attr{Name: a.FullKey(), Value: a.Value})
	}
	if len(e.ChildElements()) == 0 {
		n.Text = e.Text()
	}
	for _, c := range e.ChildElements() {
		n.Children = append(n.Children, fromElement(c))
	}
	return n
}

const guidelinePath = "rsm:ExchangedDocumentContext/ram:GuidelineSpecifiedDocumentContextParameter/ram:ID"

// DetectProfile reads the guideline of a CII document and returns its
// profile
func DetectProfile(data []byte) (model.Profile, error) {
	p, _, err := DetectDocument(data)
	return p, err
}

// DetectDocument returns the profile and document kind of a CII document.
// The kind comes from the root element and is set whenever data parses,
// even if the guideline is missing or unknown.
func DetectDocument(data []byte) (model.Profile, model.DocumentKind, error) {
	root, err := Unmarshal(data)
	if err != nil {
		return "", "", err
	}
	kind := model.KindInvoice
	if strings.HasSuffix(":"+root.Name, ":CrossIndustryOrder") {
		kind = model.KindOrder
	}

	id, ok := root.Find(guidelinePath)
	if !ok {
		return "", kind, fmt.Errorf("no guideline parameter in %s", root.Name)
	}
	p, _, ok := model.ParseGuideline(id.Text)
	if !ok {
		return "", kind, fmt.Errorf("unknown guideline %q", id.Text)
	}
	return p, kind, nil
}
