package pdf

import (
	"time"

	"github.com/beevik/etree"

	"github.com/jhoicas/facture-electronique/internal/facturx"
)

// NamespaceFX is the Factur-X 1.0 XMP extension namespace.
const NamespaceFX = "urn:factur-x:pdfa:CrossIndustryDocument:invoice:1p0#"

const (
	nsRDF          = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	nsPDFAID       = "http://www.aiim.org/pdfa/ns/id/"
	nsXMP          = "http://ns.adobe.com/xap/1.0/"
	nsPDFAExt      = "http://www.aiim.org/pdfa/ns/extension/"
	nsPDFASchema   = "http://www.aiim.org/pdfa/ns/schema#"
	nsPDFAProperty = "http://www.aiim.org/pdfa/ns/property#"
)

// ConformanceLevel is the fx:ConformanceLevel value of a profile.
func ConformanceLevel(p facturx.Profile) string {
	switch p {
	case facturx.ProfileMinimum:
		return "MINIMUM"
	case facturx.ProfileBasic:
		return "BASIC"
	case facturx.ProfileEN16931:
		return "EN 16931"
	case facturx.ProfileExtended:
		return "EXTENDED"
	}
	return ""
}

var fxProperties = []struct{ name, description string }{
	{"DocumentFileName", "name of the embedded XML invoice file"},
	{"DocumentType", "INVOICE"},
	{"Version", "The actual version of the Factur-X XML schema"},
	{"ConformanceLevel", "The conformance level of the embedded Factur-X data"},
}

// FacturXMetadata builds the XMP packet declaring a PDF/A-3B document that
// carries a Factur-X invoice of profile p.
func FacturXMetadata(p facturx.Profile, now time.Time) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xpacket", "begin=\"\ufeff\" id=\"W5M0MpCehiHzreSzNTczkc9d\"")

	meta := doc.CreateElement("x:xmpmeta")
	meta.CreateAttr("xmlns:x", "adobe:ns:meta/")
	rdf := meta.CreateElement("rdf:RDF")
	rdf.CreateAttr("xmlns:rdf", nsRDF)

	id := description(rdf, "pdfaid", nsPDFAID)
	id.CreateElement("pdfaid:part").SetText("3")
	id.CreateElement("pdfaid:conformance").SetText("B")

	stamp := now.UTC().Format(time.RFC3339)
	basic := description(rdf, "xmp", nsXMP)
	basic.CreateElement("xmp:MetadataDate").SetText(stamp)

	ext := description(rdf, "pdfaExtension", nsPDFAExt)
	ext.CreateAttr("xmlns:pdfaSchema", nsPDFASchema)
	ext.CreateAttr("xmlns:pdfaProperty", nsPDFAProperty)
	schema := ext.CreateElement("pdfaExtension:schemas").CreateElement("rdf:Bag").CreateElement("rdf:li")
	schema.CreateAttr("rdf:parseType", "Resource")
	schema.CreateElement("pdfaSchema:schema").SetText("Factur-X PDFA Extension Schema")
	schema.CreateElement("pdfaSchema:namespaceURI").SetText(NamespaceFX)
	schema.CreateElement("pdfaSchema:prefix").SetText("fx")
	seq := schema.CreateElement("pdfaSchema:property").CreateElement("rdf:Seq")
	for _, prop := range fxProperties {
		li := seq.CreateElement("rdf:li")
		li.CreateAttr("rdf:parseType", "Resource")
		li.CreateElement("pdfaProperty:name").SetText(prop.name)
		li.CreateElement("pdfaProperty:valueType").SetText("Text")
		li.CreateElement("pdfaProperty:category").SetText("external")
		li.CreateElement("pdfaProperty:description").SetText(prop.description)
	}

	fx := description(rdf, "fx", NamespaceFX)
	fx.CreateElement("fx:DocumentType").SetText("INVOICE")
	fx.CreateElement("fx:DocumentFileName").SetText(AttachmentName)
	fx.CreateElement("fx:Version").SetText("1.0")
	fx.CreateElement("fx:ConformanceLevel").SetText(ConformanceLevel(p))

	doc.CreateProcInst("xpacket", `end="w"`)
	doc.Indent(1)
	return doc.WriteToBytes()
}

func description(rdf *etree.Element, prefix, uri string) *etree.Element {
	d := rdf.CreateElement("rdf:Description")
	d.CreateAttr("rdf:about", "")
	d.CreateAttr("xmlns:"+prefix, uri)
	return d
}
