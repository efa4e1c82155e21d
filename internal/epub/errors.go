package epub

import "errors"

// Sentinel errors returned by the epub package.
var (
	// ErrInvalidInput indicates the input path is missing, is not an
	// .epub file, is implausibly small, or is not a readable ZIP archive.
	ErrInvalidInput = errors.New("epub: invalid input file")

	// ErrMalformedPackage indicates the OPF package document is missing
	// a manifest or spine, or a spine itemref does not resolve in the
	// manifest.
	ErrMalformedPackage = errors.New("epub: malformed package document")

	// ErrContainerIO indicates a failure extracting or repacking the
	// EPUB container (corrupt member, permission denied, disk full).
	ErrContainerIO = errors.New("epub: container I/O failure")

	// ErrStylesheetMissing indicates a configured replacement stylesheet
	// does not exist. Callers treat this as a skip, not a failure.
	ErrStylesheetMissing = errors.New("epub: replacement stylesheet not found")
)
