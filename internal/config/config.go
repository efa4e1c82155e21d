// Package config loads the device profile that tunes EPUB
// post-processing for a specific output target.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Profile describes the rendering constraints of one output device.
type Profile struct {
	// MaxTitleLength bounds navigation label length in display characters.
	MaxTitleLength int `toml:"max_title_length"`

	// LeadingSpineTrim is the number of leading spine entries to drop
	// (the upstream generator always emits a cover page and an index
	// page first).
	LeadingSpineTrim int `toml:"leading_spine_trim"`

	// Stylesheet is an optional path to a replacement CSS file copied
	// into the package as stylesheet.css. Empty skips the step.
	Stylesheet string `toml:"stylesheet"`

	// StripImages removes all non-cover images; the target panel does
	// not render them.
	StripImages bool `toml:"strip_images"`

	// OptimizeCover converts the retained cover to grayscale and fits
	// it to the panel dimensions below.
	OptimizeCover  bool `toml:"optimize_cover"`
	CoverMaxWidth  int  `toml:"cover_max_width"`
	CoverMaxHeight int  `toml:"cover_max_height"`
}

// Default returns the profile for the stock e-ink target.
func Default() Profile {
	return Profile{
		MaxTitleLength:   50,
		LeadingSpineTrim: 2,
		StripImages:      true,
		OptimizeCover:    false,
		CoverMaxWidth:    758,
		CoverMaxHeight:   1024,
	}
}

// Load reads a TOML profile from path, layered over Default.
func Load(path string) (Profile, error) {
	profile := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return profile, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &profile); err != nil {
		return profile, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := profile.Validate(); err != nil {
		return profile, fmt.Errorf("config %s: %w", path, err)
	}
	return profile, nil
}

// Validate checks profile values for internal consistency.
func (p Profile) Validate() error {
	if p.MaxTitleLength < 10 {
		return errors.New("max_title_length must be at least 10")
	}
	if p.LeadingSpineTrim < 0 {
		return errors.New("leading_spine_trim must not be negative")
	}
	if p.OptimizeCover && (p.CoverMaxWidth <= 0 || p.CoverMaxHeight <= 0) {
		return errors.New("cover_max_width and cover_max_height must be positive when optimize_cover is set")
	}
	return nil
}
