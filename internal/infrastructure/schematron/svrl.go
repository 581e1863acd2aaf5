package schematron

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/jhoicas/facture-electronique/internal/domain"
)

// SVRLNamespace is the namespace of Schematron Validation Report Language output.
const SVRLNamespace = "http://purl.oclc.org/dsdl/svrl"

// ParseSVRL extracts every failed-assert of an SVRL report, in document order.
// Successful reports and fired rules are ignored.
func ParseSVRL(report []byte) ([]domain.FailedAssert, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(report); err != nil {
		return nil, fmt.Errorf("svrl: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("svrl: empty report")
	}

	var asserts []domain.FailedAssert
	walk(root, func(el *etree.Element) {
		if el.Tag != "failed-assert" || el.NamespaceURI() != SVRLNamespace {
			return
		}
		a := domain.FailedAssert{
			Test:     el.SelectAttrValue("test", ""),
			ID:       el.SelectAttrValue("id", ""),
			Location: el.SelectAttrValue("location", ""),
		}
		for _, child := range el.ChildElements() {
			if child.Tag == "text" && child.NamespaceURI() == SVRLNamespace {
				a.Message = normalizeSpace(child.Text())
				break
			}
		}
		asserts = append(asserts, a)
	})
	return asserts, nil
}

func walk(el *etree.Element, fn func(*etree.Element)) {
	fn(el)
	for _, child := range el.ChildElements() {
		walk(child, fn)
	}
}

// normalizeSpace collapses runs of whitespace like XPath normalize-space().
func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
