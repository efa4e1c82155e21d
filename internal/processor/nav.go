package processor

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// labelRewriter rewrites a sequence of human-readable label nodes in a
// navigation document in place. Both navigation dialects implement it;
// the pipeline invokes each unconditionally if its file exists.
type labelRewriter interface {
	Rewrite(path string, shorten func(string) string) (modified int, err error)
}

// ncxRewriter rewrites navLabel text nodes in a legacy NCX document.
//
// It streams raw XML tokens back out verbatim, touching only character
// data inside navLabel > text, so namespaces, attributes, hierarchy,
// and ordering survive untouched.
type ncxRewriter struct{}

func (ncxRewriter) Rewrite(path string, shorten func(string) string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read NCX: %w", err)
	}

	var out bytes.Buffer
	dec := xml.NewDecoder(bytes.NewReader(data))
	var stack []string
	modified := 0

	// Label text can arrive as several CharData tokens when it contains
	// entity references, so it is buffered and shortened as one unit.
	var label bytes.Buffer
	buffering := false
	flush := func() {
		if !buffering {
			return
		}
		text := label.String()
		if shortened := shorten(text); shortened != text {
			text = shortened
			modified++
		}
		writeEscapedText(&out, text)
		label.Reset()
		buffering = false
	}

	for {
		tok, err := dec.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, fmt.Errorf("parse NCX: %w", err)
		}

		if cd, ok := tok.(xml.CharData); ok && insideNavLabelText(stack) {
			label.Write(cd)
			buffering = true
			continue
		}
		flush()

		switch t := tok.(type) {
		case xml.StartElement:
			stack = append(stack, t.Name.Local)
			out.WriteByte('<')
			out.WriteString(rawName(t.Name))
			for _, a := range t.Attr {
				out.WriteByte(' ')
				out.WriteString(rawName(a.Name))
				out.WriteString(`="`)
				xml.EscapeText(&out, []byte(a.Value))
				out.WriteByte('"')
			}
			out.WriteByte('>')
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			out.WriteString("</")
			out.WriteString(rawName(t.Name))
			out.WriteByte('>')
		case xml.CharData:
			writeEscapedText(&out, string(t))
		case xml.Comment:
			out.WriteString("<!--")
			out.Write(t)
			out.WriteString("-->")
		case xml.ProcInst:
			out.WriteString("<?")
			out.WriteString(t.Target)
			out.WriteByte(' ')
			out.Write(t.Inst)
			out.WriteString("?>")
		case xml.Directive:
			out.WriteString("<!")
			out.Write(t)
			out.WriteByte('>')
		}
	}

	flush()

	if modified == 0 {
		return 0, nil
	}
	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		return 0, fmt.Errorf("write NCX: %w", err)
	}
	return modified, nil
}

// writeEscapedText writes character data escaping only the markup
// delimiters. Whitespace passes through byte-for-byte, so indentation
// and line structure outside the rewritten labels survive untouched.
func writeEscapedText(b *bytes.Buffer, s string) {
	for _, r := range s {
		switch r {
		case '&':
			b.WriteString("&amp;")
		case '<':
			b.WriteString("&lt;")
		case '>':
			b.WriteString("&gt;")
		default:
			b.WriteRune(r)
		}
	}
}

// insideNavLabelText reports whether the element stack ends in
// navLabel > text.
func insideNavLabelText(stack []string) bool {
	n := len(stack)
	return n >= 2 && stack[n-1] == "text" && stack[n-2] == "navLabel"
}

// rawName renders an element or attribute name as written, keeping the
// original prefix (RawToken leaves prefixes unresolved in Space).
func rawName(n xml.Name) string {
	if n.Space != "" {
		return n.Space + ":" + n.Local
	}
	return n.Local
}

// navRewriter rewrites anchor label text in an XHTML navigation
// document. Only anchors with pure text content are touched; anchors
// wrapping markup are left alone, as are hrefs and document structure.
type navRewriter struct{}

func (navRewriter) Rewrite(path string, shorten func(string) string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read nav document: %w", err)
	}

	decl := xmlDeclaration(data)
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data[len(decl):]))
	if err != nil {
		return 0, fmt.Errorf("parse nav document: %w", err)
	}

	modified := 0
	doc.Find("a").Each(func(i int, s *goquery.Selection) {
		if s.Children().Length() > 0 {
			return
		}
		text := s.Text()
		if shortened := shorten(text); shortened != text {
			s.SetText(shortened)
			modified++
		}
	})

	if modified == 0 {
		return 0, nil
	}

	out, err := renderDocument(doc, decl)
	if err != nil {
		return 0, fmt.Errorf("serialize nav document: %w", err)
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		return 0, fmt.Errorf("write nav document: %w", err)
	}
	return modified, nil
}

// xmlDeclaration returns the leading <?xml ...?> declaration of data,
// or an empty string. The HTML parser would mangle it, so it is split
// off before parsing and re-attached after rendering.
func xmlDeclaration(data []byte) []byte {
	if !bytes.HasPrefix(data, []byte("<?xml")) {
		return nil
	}
	end := bytes.Index(data, []byte("?>"))
	if end < 0 {
		return nil
	}
	rest := data[end+2:]
	trimmed := len(rest) - len(bytes.TrimLeft(rest, "\r\n"))
	return data[:end+2+trimmed]
}

// renderDocument serializes a goquery document back to bytes,
// prefixing the preserved XML declaration when one was present.
func renderDocument(doc *goquery.Document, decl []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(decl)
	if err := html.Render(&buf, doc.Get(0)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// navigationTargets returns the rewriter and on-disk path for each
// navigation document present under opfDir, NCX first.
func navigationTargets(opfDir string, pkg packageView) []navigationTarget {
	var targets []navigationTarget
	if href, ok := pkg.NCXHref(); ok {
		targets = append(targets, navigationTarget{kind: "ncx", path: joinHref(opfDir, href), rewriter: ncxRewriter{}})
	} else {
		targets = append(targets, navigationTarget{kind: "ncx", path: joinHref(opfDir, "toc.ncx"), rewriter: ncxRewriter{}})
	}
	if href, ok := pkg.NavHref(); ok {
		targets = append(targets, navigationTarget{kind: "nav", path: joinHref(opfDir, href), rewriter: navRewriter{}})
	} else {
		targets = append(targets, navigationTarget{kind: "nav", path: joinHref(opfDir, "nav.xhtml"), rewriter: navRewriter{}})
	}
	return targets
}

// navigationTarget pairs a navigation document path with its rewriter.
type navigationTarget struct {
	kind     string
	path     string
	rewriter labelRewriter
}

// packageView is the slice of the package document model the
// navigation step needs.
type packageView interface {
	NCXHref() (string, bool)
	NavHref() (string, bool)
}

// joinHref resolves a package-relative href to an on-disk path.
func joinHref(opfDir, href string) string {
	return filepath.Join(opfDir, filepath.FromSlash(href))
}
