package processor

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/crosspoint/inkpress/internal/epub"
)

// imageExtensions is the raster/vector set removed by the stripper.
var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".svg":  true,
	".webp": true,
}

// StripResult reports what the media stripper did.
type StripResult struct {
	FilesRemoved    int
	ManifestRemoved int
	DocsRewritten   int
	Warnings        []string
}

// StripImages removes image files under rootDir, their manifest items,
// and their markup references. The designated cover image (any file or
// href containing "cover", case-insensitive) is exempt so the output
// stays usable on readers that render covers.
//
// Individual deletion failures are recorded as warnings, not errors:
// manifest and markup rewriting still proceed, leaving an inconsistent
// but readable book rather than aborting the run.
func StripImages(rootDir string, pkg *epub.PackageDocument) (StripResult, error) {
	var res StripResult

	err := filepath.WalkDir(rootDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(p))] {
			return nil
		}
		if isCoverName(filepath.Base(p)) {
			return nil
		}
		if err := os.Remove(p); err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("failed to remove %s: %v", p, err))
			return nil
		}
		res.FilesRemoved++
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("scan for images: %w", err)
	}

	// Drop image items from the manifest, keeping the cover entry.
	var remove []string
	for _, id := range pkg.ManifestOrder {
		item := pkg.Manifest[id]
		if strings.HasPrefix(item.MediaType, "image/") && !isCoverName(item.Href) {
			remove = append(remove, id)
		}
	}
	for _, id := range remove {
		pkg.RemoveManifestItem(id)
		res.ManifestRemoved++
	}

	// Rewrite markup documents that referenced the removed images.
	err = filepath.WalkDir(rootDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(p))
		if ext != ".html" && ext != ".xhtml" {
			return nil
		}
		rewritten, err := stripImageMarkup(p)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("failed to rewrite %s: %v", p, err))
			return nil
		}
		if rewritten {
			res.DocsRewritten++
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("scan for markup documents: %w", err)
	}

	return res, nil
}

// stripImageMarkup removes image references from one markup document:
// img and inline svg elements (cover references excepted), then figure
// wrappers and image container divs left empty by the removal. Returns
// whether the file was modified.
func stripImageMarkup(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}

	decl := xmlDeclaration(data)
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data[len(decl):]))
	if err != nil {
		return false, err
	}

	modified := 0

	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		if src, _ := s.Attr("src"); isCoverName(src) {
			return
		}
		s.Remove()
		modified++
	})
	doc.Find("svg").Each(func(i int, s *goquery.Selection) {
		if svgReferencesCover(s) {
			return
		}
		s.Remove()
		modified++
	})

	// Wrappers that only held images are now empty shells.
	doc.Find("figure").Each(func(i int, s *goquery.Selection) {
		if isEmptySelection(s) {
			s.Remove()
			modified++
		}
	})
	doc.Find("div[class*='img']").Each(func(i int, s *goquery.Selection) {
		if isEmptySelection(s) {
			s.Remove()
			modified++
		}
	})

	if modified == 0 {
		return false, nil
	}

	out, err := renderDocument(doc, decl)
	if err != nil {
		return false, err
	}
	return true, os.WriteFile(path, out, 0o644)
}

// svgReferencesCover reports whether an inline svg wraps an image
// element pointing at the cover, the common cover-page construct. The
// href attribute key varies with how the parser handled the xlink
// namespace, so both forms are checked.
func svgReferencesCover(s *goquery.Selection) bool {
	found := false
	s.Find("image").Each(func(i int, img *goquery.Selection) {
		for _, attr := range []string{"href", "xlink:href"} {
			if v, ok := img.Attr(attr); ok && isCoverName(v) {
				found = true
			}
		}
	})
	return found
}

// isEmptySelection reports whether a selection has no child elements
// and no non-whitespace text.
func isEmptySelection(s *goquery.Selection) bool {
	return s.Children().Length() == 0 && strings.TrimSpace(s.Text()) == ""
}

// isCoverName reports whether a file name or href designates the cover
// image.
func isCoverName(name string) bool {
	return strings.Contains(strings.ToLower(name), "cover")
}
