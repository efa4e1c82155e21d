package epub

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
)

// opfPackage maps the OPF XML structure for parsing. Manifest and spine
// are pointers so that a missing element can be told apart from an
// empty one. Metadata and guide are captured raw for lossless
// round-trip serialization.
type opfPackage struct {
	XMLName  xml.Name     `xml:"package"`
	Attrs    []xml.Attr   `xml:",any,attr"`
	Metadata rawElement   `xml:"metadata"`
	Manifest *opfManifest `xml:"manifest"`
	Spine    *opfSpine    `xml:"spine"`
	Guide    *rawElement  `xml:"guide"`
}

// rawElement captures an element's attributes and verbatim inner XML.
type rawElement struct {
	Attrs []xml.Attr `xml:",any,attr"`
	Inner string     `xml:",innerxml"`
}

type opfManifest struct {
	Items []opfManifestItem `xml:"item"`
}

type opfManifestItem struct {
	ID         string `xml:"id,attr"`
	Href       string `xml:"href,attr"`
	MediaType  string `xml:"media-type,attr"`
	Properties string `xml:"properties,attr"`
}

type opfSpine struct {
	Toc      string       `xml:"toc,attr"`
	ItemRefs []opfItemRef `xml:"itemref"`
}

type opfItemRef struct {
	IDRef  string `xml:"idref,attr"`
	Linear string `xml:"linear,attr"`
}

// ParsePackage parses OPF package document content into a
// PackageDocument. It returns ErrMalformedPackage if the manifest or
// spine element is absent, or if a spine itemref does not resolve to a
// manifest item.
func ParsePackage(content []byte) (*PackageDocument, error) {
	var pkg opfPackage
	if err := xml.Unmarshal(content, &pkg); err != nil {
		return nil, fmt.Errorf("%w: parse OPF XML: %v", ErrMalformedPackage, err)
	}

	if pkg.Manifest == nil {
		return nil, fmt.Errorf("%w: no manifest element", ErrMalformedPackage)
	}
	if pkg.Spine == nil {
		return nil, fmt.Errorf("%w: no spine element", ErrMalformedPackage)
	}

	doc := &PackageDocument{
		Manifest:      make(map[string]ManifestItem, len(pkg.Manifest.Items)),
		ManifestOrder: make([]string, 0, len(pkg.Manifest.Items)),
		SpineToc:      pkg.Spine.Toc,
		packageAttrs:  pkg.Attrs,
		metadataAttrs: pkg.Metadata.Attrs,
		metadataXML:   pkg.Metadata.Inner,
	}
	if pkg.Guide != nil {
		doc.hasGuide = true
		doc.guideAttrs = pkg.Guide.Attrs
		doc.guideXML = pkg.Guide.Inner
	}

	for _, item := range pkg.Manifest.Items {
		doc.AddManifestItem(ManifestItem{
			ID:         item.ID,
			Href:       item.Href,
			MediaType:  item.MediaType,
			Properties: item.Properties,
		})
	}

	for _, ref := range pkg.Spine.ItemRefs {
		if _, ok := doc.Manifest[ref.IDRef]; !ok {
			return nil, fmt.Errorf("%w: spine itemref %q not in manifest", ErrMalformedPackage, ref.IDRef)
		}
		doc.Spine = append(doc.Spine, SpineItem{
			IDRef:  ref.IDRef,
			Linear: ref.Linear != "no",
		})
	}

	return doc, nil
}

// Serialize writes the package document back to XML with an XML
// declaration and UTF-8 encoding. Namespace declarations on the
// package, metadata, and guide elements are emitted exactly as parsed,
// and the metadata/guide subtrees are reproduced verbatim, so dc: and
// default OPF prefixes survive the round trip.
func (p *PackageDocument) Serialize() []byte {
	var b bytes.Buffer
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")

	b.WriteString("<package")
	writeAttrs(&b, p.packageAttrs)
	b.WriteString(">\n  <metadata")
	writeAttrs(&b, p.metadataAttrs)
	b.WriteString(">")
	b.WriteString(p.metadataXML)
	b.WriteString("</metadata>\n  <manifest>\n")

	for _, id := range p.ManifestOrder {
		item := p.Manifest[id]
		b.WriteString("    <item")
		writeAttr(&b, "id", item.ID)
		writeAttr(&b, "href", item.Href)
		writeAttr(&b, "media-type", item.MediaType)
		if item.Properties != "" {
			writeAttr(&b, "properties", item.Properties)
		}
		b.WriteString("/>\n")
	}

	b.WriteString("  </manifest>\n  <spine")
	if p.SpineToc != "" {
		writeAttr(&b, "toc", p.SpineToc)
	}
	b.WriteString(">\n")
	for _, ref := range p.Spine {
		b.WriteString("    <itemref")
		writeAttr(&b, "idref", ref.IDRef)
		if !ref.Linear {
			writeAttr(&b, "linear", "no")
		}
		b.WriteString("/>\n")
	}
	b.WriteString("  </spine>\n")

	if p.hasGuide {
		b.WriteString("  <guide")
		writeAttrs(&b, p.guideAttrs)
		b.WriteString(">")
		b.WriteString(p.guideXML)
		b.WriteString("</guide>\n")
	}

	b.WriteString("</package>\n")
	return b.Bytes()
}

// writeAttrs emits parsed attributes, reconstructing xmlns: and xml:
// prefixes from the parser's special-cased name spaces.
func writeAttrs(b *bytes.Buffer, attrs []xml.Attr) {
	for _, a := range attrs {
		writeAttr(b, attrDisplayName(a.Name), a.Value)
	}
}

// attrDisplayName reconstructs the written form of an attribute name.
// encoding/xml reports xmlns:foo with Space "xmlns" and xml:lang with
// Space "xml"; unprefixed attributes have an empty Space.
func attrDisplayName(n xml.Name) string {
	switch n.Space {
	case "":
		return n.Local
	case "xmlns", "xml":
		return n.Space + ":" + n.Local
	default:
		return n.Local
	}
}

// writeAttr writes a single name="value" pair with XML escaping.
func writeAttr(b *bytes.Buffer, name, value string) {
	b.WriteByte(' ')
	b.WriteString(name)
	b.WriteString(`="`)
	xml.EscapeText(b, []byte(value))
	b.WriteByte('"')
}

// splitProperties splits a space-separated OPF properties attribute.
func splitProperties(properties string) []string {
	if properties == "" {
		return nil
	}
	return strings.Fields(properties)
}
