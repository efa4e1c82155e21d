package processor

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crosspoint/inkpress/internal/epub"
)

// writeTestPNG writes a width x height PNG with a red-to-blue gradient
// so grayscale conversion is observable.
func writeTestPNG(t *testing.T, path string, width, height int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(255 * x / width), G: 40, B: uint8(255 * y / height), A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func coverTestPackage(href, mediaType, properties string) *epub.PackageDocument {
	pkg := &epub.PackageDocument{Manifest: make(map[string]epub.ManifestItem)}
	pkg.AddManifestItem(epub.ManifestItem{ID: "cover-img", Href: href, MediaType: mediaType, Properties: properties})
	return pkg
}

func TestNormalizeCover(t *testing.T) {
	dir := t.TempDir()
	writeTestPNG(t, filepath.Join(dir, "images", "cover.png"), 100, 200)
	pkg := coverTestPackage("images/cover.png", "image/png", "cover-image")

	warning, err := normalizeCover(dir, pkg, 40, 60)
	if err != nil {
		t.Fatalf("normalizeCover failed: %v", err)
	}
	if warning != "" {
		t.Errorf("warning = %q, want none", warning)
	}

	data, err := os.ReadFile(filepath.Join(dir, "images", "cover.png"))
	if err != nil {
		t.Fatal(err)
	}
	out, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("normalized cover is not a PNG: %v", err)
	}

	bounds := out.Bounds()
	if bounds.Dx() > 40 || bounds.Dy() > 60 {
		t.Errorf("bounds = %v, want within 40x60", bounds)
	}
	// Aspect ratio preserved: 100x200 fit into 40x60 gives 30x60.
	if bounds.Dx() != 30 || bounds.Dy() != 60 {
		t.Errorf("bounds = %v, want 30x60", bounds)
	}

	for _, pt := range []image.Point{{0, 0}, {bounds.Dx() / 2, bounds.Dy() / 2}, {bounds.Dx() - 1, bounds.Dy() - 1}} {
		r, g, b, _ := out.At(pt.X, pt.Y).RGBA()
		if r != g || g != b {
			t.Errorf("pixel %v = (%d, %d, %d), want grayscale", pt, r, g, b)
		}
	}
}

func TestNormalizeCover_SmallImageNotUpscaled(t *testing.T) {
	dir := t.TempDir()
	writeTestPNG(t, filepath.Join(dir, "cover.png"), 20, 10)
	pkg := coverTestPackage("cover.png", "image/png", "cover-image")

	if _, err := normalizeCover(dir, pkg, 758, 1024); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "cover.png"))
	out, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if out.Bounds().Dx() != 20 || out.Bounds().Dy() != 10 {
		t.Errorf("bounds = %v, want original 20x10", out.Bounds())
	}
}

func TestNormalizeCover_FindsByFilename(t *testing.T) {
	dir := t.TempDir()
	writeTestPNG(t, filepath.Join(dir, "images", "Cover-Front.png"), 100, 100)
	pkg := coverTestPackage("images/Cover-Front.png", "image/png", "")

	warning, err := normalizeCover(dir, pkg, 50, 50)
	if err != nil {
		t.Fatal(err)
	}
	if warning != "" {
		t.Errorf("warning = %q, want none", warning)
	}

	data, _ := os.ReadFile(filepath.Join(dir, "images", "Cover-Front.png"))
	out, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if out.Bounds().Dx() != 50 {
		t.Errorf("bounds = %v, want fitted to 50", out.Bounds())
	}
}

func TestNormalizeCover_NoCoverIsWarning(t *testing.T) {
	pkg := &epub.PackageDocument{Manifest: make(map[string]epub.ManifestItem)}
	warning, err := normalizeCover(t.TempDir(), pkg, 758, 1024)
	if err != nil {
		t.Fatalf("missing cover must not be an error: %v", err)
	}
	if !strings.Contains(warning, "no cover image") {
		t.Errorf("warning = %q, want a no-cover warning", warning)
	}
}

func TestNormalizeCover_UndecodableIsWarning(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cover.jpg")
	if err := os.WriteFile(path, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}
	pkg := coverTestPackage("cover.jpg", "image/jpeg", "cover-image")

	warning, err := normalizeCover(dir, pkg, 758, 1024)
	if err != nil {
		t.Fatalf("undecodable cover must not be an error: %v", err)
	}
	if !strings.Contains(warning, "decode failed") {
		t.Errorf("warning = %q, want a decode warning", warning)
	}

	// Original bytes stay in place.
	data, _ := os.ReadFile(path)
	if string(data) != "not an image" {
		t.Error("undecodable cover was overwritten")
	}
}
