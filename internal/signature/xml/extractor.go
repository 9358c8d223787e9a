package xml

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// XMLDSigNamespace is the namespace of enveloped signatures
const XMLDSigNamespace = "http://www.w3.org/2000/09/xmldsig#"

// SignatureExtractor locates the enveloped signature of an invoice document
type SignatureExtractor struct{}

// NewSignatureExtractor creates a new signature extractor
func NewSignatureExtractor() *SignatureExtractor {
	return &SignatureExtractor{}
}

// ExtractionResult contains the extracted signature and related elements
type ExtractionResult struct {
	SignatureElement *etree.Element
	// SignedElement is the parent of the signature, normally the root
	SignedElement *etree.Element
	Document      *etree.Document

	DocumentID string
	Guideline  string
}

// Extract parses data and finds its Signature element
func (e *SignatureExtractor) Extract(data []byte) (*ExtractionResult, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}

	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("empty XML document")
	}

	sig := findSignatureElement(root)
	if sig == nil {
		return nil, fmt.Errorf("no Signature element found in document")
	}

	signed := sig.Parent()
	if signed == nil {
		signed = root
	}

	return &ExtractionResult{
		SignatureElement: sig,
		SignedElement:    signed,
		Document:         doc,
		DocumentID:       childText(root, "ExchangedDocument", "ID"),
		Guideline:        childText(root, "ExchangedDocumentContext", "GuidelineSpecifiedDocumentContextParameter", "ID"),
	}, nil
}

// findSignatureElement prefers an enveloped signature directly under root
// and falls back to a depth-first search
func findSignatureElement(root *etree.Element) *etree.Element {
	for _, child := range root.ChildElements() {
		if isSignature(child) {
			return child
		}
	}
	return findElementRecursive(root, isSignature)
}

func isSignature(el *etree.Element) bool {
	if el.Tag != "Signature" {
		return false
	}
	ns := el.NamespaceURI()
	return ns == "" || ns == XMLDSigNamespace
}

func findElementRecursive(elem *etree.Element, match func(*etree.Element) bool) *etree.Element {
	if match(elem) {
		return elem
	}
	for _, child := range elem.ChildElements() {
		if found := findElementRecursive(child, match); found != nil {
			return found
		}
	}
	return nil
}

// childText follows local names from el and returns the trimmed text
func childText(el *etree.Element, path ...string) string {
	cur := el
	for _, name := range path {
		var next *etree.Element
		for _, child := range cur.ChildElements() {
			if child.Tag == name {
				next = child
				break
			}
		}
		if next == nil {
			return ""
		}
		cur = next
	}
	return strings.TrimSpace(cur.Text())
}

// ExtractCertificates decodes every X509Certificate of the signature's
// KeyInfo, signer first
func ExtractCertificates(sig *etree.Element) ([][]byte, error) {
	keyInfo := firstChild(sig, "KeyInfo")
	if keyInfo == nil {
		return nil, fmt.Errorf("no KeyInfo in Signature")
	}

	var out [][]byte
	for _, data := range keyInfo.ChildElements() {
		if data.Tag != "X509Data" {
			continue
		}
		for _, c := range data.ChildElements() {
			if c.Tag != "X509Certificate" {
				continue
			}
			der, err := base64.StdEncoding.DecodeString(stripSpace(c.Text()))
			if err != nil {
				return nil, fmt.Errorf("failed to decode certificate: %w", err)
			}
			out = append(out, der)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no X509Certificate found in Signature")
	}
	return out, nil
}

func firstChild(el *etree.Element, tag string) *etree.Element {
	for _, c := range el.ChildElements() {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)
}

// CanExtract returns true if the data appears to be XML with a signature
func (e *SignatureExtractor) CanExtract(data []byte) bool {
	if !looksLikeXML(data) {
		return false
	}
	return bytes.Contains(data, []byte("<Signature")) ||
		bytes.Contains(data, []byte(":Signature"))
}

func looksLikeXML(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) >= 5 && trimmed[0] == '<'
}
