package epub

import (
	"encoding/xml"
	"strings"
)

// ManifestItem represents an item in the package manifest.
// Href is relative to the package document's directory.
type ManifestItem struct {
	ID         string
	Href       string
	MediaType  string
	Properties string
}

// SpineItem represents an itemref in the spine.
type SpineItem struct {
	IDRef  string
	Linear bool
}

// PackageDocument is the in-memory model of an OPF package document.
// The manifest keeps insertion order alongside index-based lookup by
// item id. Metadata and guide content are carried verbatim so that
// serialization round-trips the original namespace declarations.
type PackageDocument struct {
	Manifest      map[string]ManifestItem
	ManifestOrder []string
	Spine         []SpineItem
	SpineToc      string // toc attribute on <spine> (NCX manifest id)

	packageAttrs  []xml.Attr
	metadataAttrs []xml.Attr
	metadataXML   string
	guideAttrs    []xml.Attr
	guideXML      string
	hasGuide      bool
}

// RemoveLeadingSpineEntries removes up to n entries from the front of
// the spine and returns the number actually removed. Removing fewer
// than n entries is not an error; callers log it as a warning.
// Manifest items are never removed: trimmed documents may still be
// linked from navigation and must remain resolvable.
func (p *PackageDocument) RemoveLeadingSpineEntries(n int) int {
	if n <= 0 {
		return 0
	}
	if n > len(p.Spine) {
		n = len(p.Spine)
	}
	p.Spine = p.Spine[n:]
	return n
}

// RemoveManifestItem removes the item with the given id from the
// manifest, preserving the order of the remaining items. Returns
// whether an item was removed.
func (p *PackageDocument) RemoveManifestItem(id string) bool {
	if _, ok := p.Manifest[id]; !ok {
		return false
	}
	delete(p.Manifest, id)
	for i, existing := range p.ManifestOrder {
		if existing == id {
			p.ManifestOrder = append(p.ManifestOrder[:i], p.ManifestOrder[i+1:]...)
			break
		}
	}
	return true
}

// AddManifestItem appends an item to the manifest. An existing item
// with the same id is replaced in place.
func (p *PackageDocument) AddManifestItem(item ManifestItem) {
	if _, ok := p.Manifest[item.ID]; !ok {
		p.ManifestOrder = append(p.ManifestOrder, item.ID)
	}
	p.Manifest[item.ID] = item
}

// NCXHref returns the href of the NCX navigation document, resolved
// through the spine toc attribute or by media type.
func (p *PackageDocument) NCXHref() (string, bool) {
	if p.SpineToc != "" {
		if item, ok := p.Manifest[p.SpineToc]; ok {
			return item.Href, true
		}
	}
	for _, id := range p.ManifestOrder {
		if p.Manifest[id].MediaType == "application/x-dtbncx+xml" {
			return p.Manifest[id].Href, true
		}
	}
	return "", false
}

// CoverMetaID returns the manifest id named by a <meta name="cover">
// element in the package metadata, the EPUB 2 cover convention.
func (p *PackageDocument) CoverMetaID() (string, bool) {
	dec := xml.NewDecoder(strings.NewReader(p.metadataXML))
	for {
		tok, err := dec.RawToken()
		if err != nil {
			return "", false
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != "meta" {
			continue
		}
		var name, content string
		for _, a := range se.Attr {
			switch a.Name.Local {
			case "name":
				name = a.Value
			case "content":
				content = a.Value
			}
		}
		if name == "cover" && content != "" {
			return content, true
		}
	}
}

// NavHref returns the href of the EPUB 3 XHTML navigation document,
// identified by the "nav" manifest property.
func (p *PackageDocument) NavHref() (string, bool) {
	for _, id := range p.ManifestOrder {
		item := p.Manifest[id]
		for _, prop := range splitProperties(item.Properties) {
			if prop == "nav" {
				return item.Href, true
			}
		}
	}
	return "", false
}
