// Package processor rewrites a generated EPUB in place to satisfy the
// rendering constraints of a resource-limited e-ink reader.
package processor

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/crosspoint/inkpress/internal/config"
	"github.com/crosspoint/inkpress/internal/epub"
)

// Options holds the inputs for one processing run.
type Options struct {
	InputPath  string
	OutputPath string
	Profile    config.Profile
	Logger     *slog.Logger
	Debug      bool
}

// Result reports a successful run. Warnings carry every non-fatal
// degradation (unparsable navigation, undeletable files, missing
// stylesheet) so they are never silently swallowed.
type Result struct {
	OutputPath      string
	InputSize       int64
	OutputSize      int64
	Duration        time.Duration
	ArticleCount    int
	ImagesRemoved   int
	TitlesShortened int
	Warnings        []string
}

// Pipeline sequences the post-processing steps over one working
// extraction. A pipeline run is single-threaded and owns an exclusive
// scoped temporary directory; concurrent runs over different files are
// independent.
type Pipeline struct {
	opts Options
	log  *slog.Logger
}

// NewPipeline creates a pipeline for one input/output pair.
func NewPipeline(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Pipeline{opts: opts, log: opts.Logger}
}

// Process runs the pipeline:
// Validate, Extract, ParseOPF, TrimSpine, StripImages, OptimizeCover,
// ReplaceStylesheet, RewriteNavigation, EmbedDiagnostics, SerializeOPF,
// Repack. Validation, extraction, and package parsing failures are
// fatal and produce no output; later steps degrade to warnings.
func (p *Pipeline) Process() (*Result, error) {
	start := time.Now()
	res := &Result{OutputPath: p.opts.OutputPath}

	// Validate.
	warnings, err := epub.ValidateInput(p.opts.InputPath)
	if err != nil {
		return nil, err
	}
	res.Warnings = append(res.Warnings, warnings...)
	for _, w := range warnings {
		p.log.Warn(w)
	}
	info, err := os.Stat(p.opts.InputPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", epub.ErrInvalidInput, p.opts.InputPath, err)
	}
	res.InputSize = info.Size()
	p.log.Info("processing", "input", p.opts.InputPath, "output", p.opts.OutputPath, "size", res.InputSize)

	// Extract into a scoped working directory, released on every exit path.
	workDir, err := epub.ExtractToTemp(p.opts.InputPath)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(workDir)

	// ParseOPF.
	opfPath, err := epub.FindPackagePath(workDir)
	if err != nil {
		return nil, err
	}
	opfData, err := os.ReadFile(opfPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read package document: %v", epub.ErrContainerIO, err)
	}
	pkg, err := epub.ParsePackage(opfData)
	if err != nil {
		return nil, err
	}
	opfDir := filepath.Dir(opfPath)
	p.log.Debug("parsed package document", "path", opfPath, "spine", len(pkg.Spine), "manifest", len(pkg.Manifest))

	// TrimSpine: drop the generator's leading cover and index pages.
	trim := p.opts.Profile.LeadingSpineTrim
	removed := pkg.RemoveLeadingSpineEntries(trim)
	if removed < trim {
		w := fmt.Sprintf("spine had only %d entries, trimmed %d of %d requested", removed+len(pkg.Spine), removed, trim)
		res.Warnings = append(res.Warnings, w)
		p.log.Warn(w)
	}
	res.ArticleCount = len(pkg.Spine)

	// StripImages.
	if p.opts.Profile.StripImages {
		stripped, err := StripImages(workDir, pkg)
		if err != nil {
			return nil, fmt.Errorf("%w: strip images: %v", epub.ErrContainerIO, err)
		}
		res.ImagesRemoved = stripped.FilesRemoved
		res.Warnings = append(res.Warnings, stripped.Warnings...)
		for _, w := range stripped.Warnings {
			p.log.Warn(w)
		}
		p.log.Info("stripped images", "files", stripped.FilesRemoved, "manifest_items", stripped.ManifestRemoved, "docs_rewritten", stripped.DocsRewritten)
	}

	// OptimizeCover.
	if p.opts.Profile.OptimizeCover {
		warning, err := normalizeCover(opfDir, pkg, p.opts.Profile.CoverMaxWidth, p.opts.Profile.CoverMaxHeight)
		if err != nil {
			warning = fmt.Sprintf("cover normalization failed: %v", err)
		}
		if warning != "" {
			res.Warnings = append(res.Warnings, warning)
			p.log.Warn(warning)
		}
	}

	// ReplaceStylesheet, skipped when unconfigured.
	if css := p.opts.Profile.Stylesheet; css != "" {
		if err := replaceStylesheet(opfDir, css, pkg); err != nil {
			if !errors.Is(err, epub.ErrStylesheetMissing) {
				return nil, err
			}
			w := err.Error()
			res.Warnings = append(res.Warnings, w)
			p.log.Warn(w)
		}
	}

	// RewriteNavigation: NCX and nav are independent; each runs if its
	// file exists, and a parse failure leaves that document unmodified.
	shorten := func(s string) string {
		return ShortenTitle(s, p.opts.Profile.MaxTitleLength)
	}
	for _, target := range navigationTargets(opfDir, pkg) {
		if _, err := os.Stat(target.path); err != nil {
			continue
		}
		n, err := target.rewriter.Rewrite(target.path, shorten)
		if err != nil {
			w := fmt.Sprintf("%s rewrite failed, continuing with unmodified navigation: %v", target.kind, err)
			res.Warnings = append(res.Warnings, w)
			p.log.Warn(w)
			continue
		}
		res.TitlesShortened += n
		p.log.Debug("rewrote navigation labels", "kind", target.kind, "modified", n)
	}

	// EmbedDiagnostics.
	rec := newDiagnosticsRecord(p.opts.InputPath, p.opts.OutputPath, res.InputSize, start, p.opts.Debug)
	rec.ArticleCount = res.ArticleCount
	rec.ImagesRemoved = res.ImagesRemoved
	rec.TitlesShortened = res.TitlesShortened
	rec.Warnings = append(rec.Warnings, res.Warnings...)
	if err := embedDiagnostics(opfDir, pkg, rec); err != nil {
		return nil, fmt.Errorf("%w: %v", epub.ErrContainerIO, err)
	}

	// SerializeOPF.
	if err := os.WriteFile(opfPath, pkg.Serialize(), 0o644); err != nil {
		return nil, fmt.Errorf("%w: write package document: %v", epub.ErrContainerIO, err)
	}

	// Repack.
	size, err := epub.Pack(workDir, p.opts.OutputPath)
	if err != nil {
		return nil, err
	}
	if size < epub.MinInputSize {
		return nil, fmt.Errorf("%w: output implausibly small (%d bytes)", epub.ErrContainerIO, size)
	}
	res.OutputSize = size
	res.Duration = time.Since(start)

	p.log.Info("processing complete", "output", p.opts.OutputPath, "size", size, "duration", res.Duration.Round(time.Millisecond), "warnings", len(res.Warnings))
	return res, nil
}
