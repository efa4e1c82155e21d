package epub

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

const (
	// MimetypeContent is the exact required content of the mimetype entry.
	MimetypeContent = "application/epub+zip"

	// MinInputSize is the minimum plausible size of an EPUB file in bytes.
	MinInputSize = 1000

	mimetypeName  = "mimetype"
	containerPath = "META-INF/container.xml"
)

// maxEntrySize is the maximum allowed decompressed size for a single ZIP
// entry, guarding against zip bombs during extraction.
const maxEntrySize int64 = 256 * 1024 * 1024

// ValidateInput checks that path points to a plausible EPUB file.
// It returns soft warnings (currently only a missing mimetype entry)
// alongside a nil error; structural problems return ErrInvalidInput.
func ValidateInput(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidInput, path, err)
	}

	if !strings.EqualFold(filepath.Ext(path), ".epub") {
		return nil, fmt.Errorf("%w: %s: not an .epub file", ErrInvalidInput, path)
	}

	if info.Size() < MinInputSize {
		return nil, fmt.Errorf("%w: %s: file too small (%d bytes)", ErrInvalidInput, path, info.Size())
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: not a valid ZIP archive: %v", ErrInvalidInput, path, err)
	}
	defer zr.Close()

	var warnings []string
	if findEntry(&zr.Reader, mimetypeName) == nil {
		warnings = append(warnings, fmt.Sprintf("%s: missing mimetype entry, container may be malformed", path))
	}

	return warnings, nil
}

// ExtractToTemp extracts the EPUB at path into a fresh temporary
// directory and returns the directory path. The caller owns the
// directory and must remove it on every exit path.
func ExtractToTemp(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %v", ErrContainerIO, path, err)
	}
	defer zr.Close()

	dir, err := os.MkdirTemp("", "inkpress-*")
	if err != nil {
		return "", fmt.Errorf("%w: create working directory: %v", ErrContainerIO, err)
	}

	for _, f := range zr.File {
		if err := extractEntry(f, dir); err != nil {
			os.RemoveAll(dir)
			return "", err
		}
	}

	return dir, nil
}

// extractEntry writes a single ZIP entry under destDir, rejecting
// entry names that would escape the destination root.
func extractEntry(f *zip.File, destDir string) error {
	if !isSafePath(f.Name) {
		return fmt.Errorf("%w: unsafe zip entry path: %s", ErrContainerIO, f.Name)
	}
	if f.UncompressedSize64 > uint64(maxEntrySize) {
		return fmt.Errorf("%w: zip entry %s too large: %d bytes", ErrContainerIO, f.Name, f.UncompressedSize64)
	}

	target := filepath.Join(destDir, filepath.FromSlash(f.Name))

	if f.FileInfo().IsDir() {
		if err := os.MkdirAll(target, 0o755); err != nil {
			return fmt.Errorf("%w: create %s: %v", ErrContainerIO, f.Name, err)
		}
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("%w: create directory for %s: %v", ErrContainerIO, f.Name, err)
	}

	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: open entry %s: %v", ErrContainerIO, f.Name, err)
	}
	defer rc.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: create %s: %v", ErrContainerIO, f.Name, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, io.LimitReader(rc, maxEntrySize)); err != nil {
		return fmt.Errorf("%w: extract %s: %v", ErrContainerIO, f.Name, err)
	}
	return out.Close()
}

// Pack creates an EPUB at outputPath from the contents of sourceDir.
// The mimetype entry is written first and uncompressed; all other files
// are deflated with their slash-separated relative paths as entry names.
// The archive is written to a temporary file and renamed into place so
// no partial output is left at the final path. Returns bytes written.
func Pack(sourceDir, outputPath string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return 0, fmt.Errorf("%w: create output directory: %v", ErrContainerIO, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(outputPath), ".inkpress-pack-*")
	if err != nil {
		return 0, fmt.Errorf("%w: create temp output: %v", ErrContainerIO, err)
	}
	tmpName := tmp.Name()

	size, err := writeArchive(tmp, sourceDir)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("%w: pack %s: %v", ErrContainerIO, outputPath, err)
	}

	if err := os.Rename(tmpName, outputPath); err != nil {
		os.Remove(tmpName)
		return 0, fmt.Errorf("%w: finalize %s: %v", ErrContainerIO, outputPath, err)
	}

	return size, nil
}

// writeArchive writes the EPUB ZIP structure to w and returns the byte count.
func writeArchive(w io.WriteSeeker, sourceDir string) (int64, error) {
	zw := zip.NewWriter(w)

	// mimetype must be the first entry and stored uncompressed.
	mimetype := []byte(MimetypeContent)
	if data, err := os.ReadFile(filepath.Join(sourceDir, mimetypeName)); err == nil {
		mimetype = data
	}
	entry, err := zw.CreateHeader(&zip.FileHeader{Name: mimetypeName, Method: zip.Store})
	if err != nil {
		return 0, err
	}
	if _, err := entry.Write(mimetype); err != nil {
		return 0, err
	}

	err = filepath.WalkDir(sourceDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(sourceDir, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if name == mimetypeName {
			return nil
		}

		entry, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return err
		}
		in, err := os.Open(p)
		if err != nil {
			return err
		}
		defer in.Close()
		_, err = io.Copy(entry, in)
		return err
	})
	if err != nil {
		return 0, err
	}

	if err := zw.Close(); err != nil {
		return 0, err
	}
	return w.Seek(0, io.SeekEnd)
}

// containerXML models META-INF/container.xml, used to locate the OPF.
type containerXML struct {
	Rootfiles struct {
		Rootfile []struct {
			FullPath  string `xml:"full-path,attr"`
			MediaType string `xml:"media-type,attr"`
		} `xml:"rootfile"`
	} `xml:"rootfiles"`
}

// FindPackagePath locates the OPF package document in an extracted EPUB
// tree. It reads META-INF/container.xml first and falls back to scanning
// for the first *.opf file. Returns the on-disk path of the OPF.
func FindPackagePath(rootDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(rootDir, filepath.FromSlash(containerPath)))
	if err == nil {
		var c containerXML
		if err := xml.Unmarshal(data, &c); err != nil {
			return "", fmt.Errorf("%w: parse container.xml: %v", ErrMalformedPackage, err)
		}
		for _, rf := range c.Rootfiles.Rootfile {
			full := strings.TrimSpace(rf.FullPath)
			if full == "" || !isSafePath(full) {
				continue
			}
			if rf.MediaType == "application/oebps-package+xml" || rf.MediaType == "" {
				return filepath.Join(rootDir, filepath.FromSlash(full)), nil
			}
		}
		if len(c.Rootfiles.Rootfile) > 0 && isSafePath(c.Rootfiles.Rootfile[0].FullPath) {
			return filepath.Join(rootDir, filepath.FromSlash(c.Rootfiles.Rootfile[0].FullPath)), nil
		}
	}

	// Fallback: scan for the first .opf file.
	var found string
	err = filepath.WalkDir(rootDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if found == "" && !d.IsDir() && strings.EqualFold(filepath.Ext(p), ".opf") {
			found = p
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: scan for package document: %v", ErrContainerIO, err)
	}
	if found == "" {
		return "", fmt.Errorf("%w: no package document found", ErrMalformedPackage)
	}
	return found, nil
}

// findEntry looks up a ZIP entry by exact name.
func findEntry(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// isSafePath reports whether p is a ZIP-internal path that does not
// escape the archive root via traversal or an absolute prefix.
func isSafePath(p string) bool {
	cleaned := path.Clean(strings.TrimSpace(p))
	if strings.HasPrefix(cleaned, "/") {
		return false
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return false
	}
	return true
}
