package processor

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/crosspoint/inkpress/internal/epub"
)

const coverJPEGQuality = 90

// findCoverItem locates the cover image manifest item. Detection
// methods in priority order: the EPUB 3 cover-image property, the
// EPUB 2 meta name="cover" pointer, then a filename containing
// "cover" on an image item.
func findCoverItem(pkg *epub.PackageDocument) (epub.ManifestItem, bool) {
	for _, id := range pkg.ManifestOrder {
		item := pkg.Manifest[id]
		for _, prop := range strings.Fields(item.Properties) {
			if prop == "cover-image" {
				return item, true
			}
		}
	}
	if id, ok := pkg.CoverMetaID(); ok {
		if item, ok := pkg.Manifest[id]; ok {
			return item, true
		}
	}
	for _, id := range pkg.ManifestOrder {
		item := pkg.Manifest[id]
		if strings.HasPrefix(item.MediaType, "image/") && isCoverName(filepath.Base(item.Href)) {
			return item, true
		}
	}
	return epub.ManifestItem{}, false
}

// normalizeCover rewrites the retained cover image for the e-ink
// panel: grayscale, downscaled to fit maxWidth x maxHeight, re-encoded
// in its original format. SVG covers are left alone. A missing or
// undecodable cover is a warning, not a failure; the original bytes
// stay in place.
func normalizeCover(opfDir string, pkg *epub.PackageDocument, maxWidth, maxHeight int) (string, error) {
	item, ok := findCoverItem(pkg)
	if !ok {
		return "no cover image found, skipping normalization", nil
	}
	if item.MediaType == "image/svg+xml" {
		return "", nil
	}

	path := joinHref(opfDir, item.Href)
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Sprintf("cover %s unreadable: %v", item.Href, err), nil
	}

	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Sprintf("cover %s decode failed: %v", item.Href, err), nil
	}

	processed := imaging.Grayscale(src)
	bounds := processed.Bounds()
	if bounds.Dx() > maxWidth || bounds.Dy() > maxHeight {
		processed = imaging.Fit(processed, maxWidth, maxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	switch format {
	case "png":
		err = png.Encode(&buf, processed)
	case "gif":
		err = gif.Encode(&buf, processed, nil)
	default:
		err = jpeg.Encode(&buf, processed, &jpeg.Options{Quality: coverJPEGQuality})
	}
	if err != nil {
		return "", fmt.Errorf("encode cover %s: %w", item.Href, err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write cover %s: %w", item.Href, err)
	}
	return "", nil
}
