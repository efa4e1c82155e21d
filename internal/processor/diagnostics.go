package processor

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/crosspoint/inkpress/internal/epub"
)

// diagnosticsName is the in-package path of the embedded diagnostics
// document. It is manifest-registered but never referenced from the
// spine, so readers treat it as inert.
const diagnosticsName = "_diagnostics.json"

// DiagnosticsRecord is embedded into each processed EPUB to make a
// build diagnosable without re-running the pipeline.
type DiagnosticsRecord struct {
	BuildTime        string   `json:"build_time"`
	RunID            string   `json:"run_id"`
	WorkflowRunID    string   `json:"workflow_run_id"`
	GitSHA           string   `json:"git_sha"`
	InputFile        string   `json:"input_file"`
	OutputFile       string   `json:"output_file"`
	RawSizeBytes     int64    `json:"raw_size_bytes"`
	ProcessingTimeMS int64    `json:"processing_time_ms"`
	DebugMode        bool     `json:"debug_mode"`
	ArticleCount     int      `json:"article_count"`
	ImagesRemoved    int      `json:"images_removed"`
	TitlesShortened  int      `json:"titles_shortened"`
	Warnings         []string `json:"warnings"`
}

// newDiagnosticsRecord assembles the record from run state and the
// calling environment. Provenance identifiers default to sentinel
// values when the environment does not supply them.
func newDiagnosticsRecord(inputPath, outputPath string, inputSize int64, start time.Time, debug bool) DiagnosticsRecord {
	return DiagnosticsRecord{
		BuildTime:        time.Now().UTC().Format("2006-01-02T15:04:05Z"),
		RunID:            uuid.NewString(),
		WorkflowRunID:    envOrDefault("WORKFLOW_RUN_ID", "local"),
		GitSHA:           envOrDefault("GIT_SHA", "unknown"),
		InputFile:        filepath.Base(inputPath),
		OutputFile:       filepath.Base(outputPath),
		RawSizeBytes:     inputSize,
		ProcessingTimeMS: time.Since(start).Milliseconds(),
		DebugMode:        debug,
	}
}

// embedDiagnostics writes the record next to the OPF and registers it
// in the manifest as an opaque JSON resource.
func embedDiagnostics(opfDir string, pkg *epub.PackageDocument, rec DiagnosticsRecord) error {
	if rec.Warnings == nil {
		rec.Warnings = []string{}
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode diagnostics: %w", err)
	}
	if err := os.WriteFile(filepath.Join(opfDir, diagnosticsName), data, 0o644); err != nil {
		return fmt.Errorf("write diagnostics: %w", err)
	}
	pkg.AddManifestItem(epub.ManifestItem{
		ID:        "diagnostics",
		Href:      diagnosticsName,
		MediaType: "application/json",
	})
	return nil
}

// envOrDefault reads an environment variable with a fallback.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
