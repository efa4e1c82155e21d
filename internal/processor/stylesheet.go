package processor

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/crosspoint/inkpress/internal/epub"
)

// stylesheetName is the in-package path the replacement CSS is written to.
const stylesheetName = "stylesheet.css"

// replaceStylesheet copies the configured replacement stylesheet
// verbatim into the package directory and registers it in the manifest
// if nothing references it yet. A missing source file returns
// ErrStylesheetMissing, which the pipeline downgrades to a warning.
func replaceStylesheet(opfDir, cssPath string, pkg *epub.PackageDocument) error {
	css, err := os.ReadFile(cssPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", epub.ErrStylesheetMissing, cssPath)
		}
		return fmt.Errorf("read stylesheet %s: %w", cssPath, err)
	}

	if err := os.WriteFile(filepath.Join(opfDir, stylesheetName), css, 0o644); err != nil {
		return fmt.Errorf("write stylesheet: %w", err)
	}

	for _, item := range pkg.Manifest {
		if item.Href == stylesheetName {
			return nil
		}
	}
	pkg.AddManifestItem(epub.ManifestItem{
		ID:        "stylesheet",
		Href:      stylesheetName,
		MediaType: "text/css",
	})
	return nil
}
