package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	p := Default()
	if p.MaxTitleLength != 50 {
		t.Errorf("MaxTitleLength = %d, want 50", p.MaxTitleLength)
	}
	if p.LeadingSpineTrim != 2 {
		t.Errorf("LeadingSpineTrim = %d, want 2", p.LeadingSpineTrim)
	}
	if !p.StripImages {
		t.Error("StripImages = false, want true")
	}
	if p.OptimizeCover {
		t.Error("OptimizeCover = true, want false")
	}
	if p.Stylesheet != "" {
		t.Errorf("Stylesheet = %q, want empty", p.Stylesheet)
	}
	if err := p.Validate(); err != nil {
		t.Errorf("default profile invalid: %v", err)
	}
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "device.toml")
	content := `
max_title_length = 40
strip_images = false
stylesheet = "device.css"
optimize_cover = true
cover_max_width = 600
cover_max_height = 800
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p.MaxTitleLength != 40 {
		t.Errorf("MaxTitleLength = %d, want 40", p.MaxTitleLength)
	}
	if p.StripImages {
		t.Error("StripImages = true, want false")
	}
	if p.Stylesheet != "device.css" {
		t.Errorf("Stylesheet = %q, want device.css", p.Stylesheet)
	}
	if !p.OptimizeCover || p.CoverMaxWidth != 600 || p.CoverMaxHeight != 800 {
		t.Errorf("cover settings = %v/%d/%d", p.OptimizeCover, p.CoverMaxWidth, p.CoverMaxHeight)
	}
	// Keys absent from the file keep their defaults.
	if p.LeadingSpineTrim != 2 {
		t.Errorf("LeadingSpineTrim = %d, want default 2", p.LeadingSpineTrim)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(path, []byte("max_title_length = 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "max_title_length") {
		t.Errorf("err = %v, want max_title_length validation error", err)
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Profile)
		ok     bool
	}{
		{"default", func(p *Profile) {}, true},
		{"title length too small", func(p *Profile) { p.MaxTitleLength = 9 }, false},
		{"negative trim", func(p *Profile) { p.LeadingSpineTrim = -1 }, false},
		{"zero trim", func(p *Profile) { p.LeadingSpineTrim = 0 }, true},
		{"optimize without dimensions", func(p *Profile) {
			p.OptimizeCover = true
			p.CoverMaxWidth = 0
		}, false},
		{"dimensions ignored when optimize off", func(p *Profile) {
			p.CoverMaxWidth = 0
			p.CoverMaxHeight = 0
		}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Default()
			tc.mutate(&p)
			err := p.Validate()
			if tc.ok && err != nil {
				t.Errorf("Validate = %v, want nil", err)
			}
			if !tc.ok && err == nil {
				t.Error("Validate = nil, want error")
			}
		})
	}
}
