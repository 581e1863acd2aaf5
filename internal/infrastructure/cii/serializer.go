package cii

import (
	"fmt"

	"github.com/beevik/etree"

	"github.com/jhoicas/facture-electronique/internal/domain/entity"
	"github.com/jhoicas/facture-electronique/internal/facturx"
)

const indentSpaces = 2

// Serialize renders the tree as UTF-8 with an XML declaration and two-space
// indentation. The same tree always yields the same bytes.
func Serialize(doc *etree.Document) ([]byte, error) {
	if doc == nil || doc.Root() == nil {
		return nil, fmt.Errorf("cii: empty document")
	}
	out := doc.Copy()
	out.Indent(indentSpaces)
	b, err := out.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("cii: serialize: %w", err)
	}
	return b, nil
}

// Generator builds and serializes in one step.
type Generator struct {
	builder *XMLBuilder
}

// NewGenerator wraps a builder.
func NewGenerator(b *XMLBuilder) *Generator {
	return &Generator{builder: b}
}

// Generate returns the serialized Factur-X XML of f for profile p.
func (g *Generator) Generate(f *entity.Facture, p facturx.Profile) ([]byte, error) {
	doc, err := g.builder.Build(f, p)
	if err != nil {
		return nil, err
	}
	return Serialize(doc)
}
