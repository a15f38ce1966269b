package config

import (
	"errors"
	"fmt"
)

// Search bounds one search pass. Zero aspect ratios default to the overlay's
// own ratio and zero area percentages to the ratio of the two clips' aspect
// ratios.
type Search struct {
	MinOverlayArea     float64 `toml:"min_overlay_area" yaml:"min_overlay_area"`
	MinSourceArea      float64 `toml:"min_source_area" yaml:"min_source_area"`
	AspectRatio1       float64 `toml:"aspect_ratio1" yaml:"aspect_ratio1"`
	AspectRatio2       float64 `toml:"aspect_ratio2" yaml:"aspect_ratio2"`
	Angle1             float64 `toml:"angle1" yaml:"angle1"`
	Angle2             float64 `toml:"angle2" yaml:"angle2"`
	MinSampleArea      int     `toml:"min_sample_area" yaml:"min_sample_area"`
	RequiredSampleArea int     `toml:"required_sample_area" yaml:"required_sample_area"`
	MaxSampleDiff      float64 `toml:"max_sample_diff" yaml:"max_sample_diff"`
	Subpixel           int     `toml:"subpixel" yaml:"subpixel"`
	ScaleBase          float64 `toml:"scale_base" yaml:"scale_base"`
	Branches           int     `toml:"branches" yaml:"branches"`
	BranchMaxDiff      float64 `toml:"branch_max_diff" yaml:"branch_max_diff"`
	AcceptableDiff     float64 `toml:"acceptable_diff" yaml:"acceptable_diff"`
	Correction         int     `toml:"correction" yaml:"correction"`
	MinX               *int    `toml:"min_x,omitempty" yaml:"min_x,omitempty"`
	MaxX               *int    `toml:"max_x,omitempty" yaml:"max_x,omitempty"`
	MinY               *int    `toml:"min_y,omitempty" yaml:"min_y,omitempty"`
	MaxY               *int    `toml:"max_y,omitempty" yaml:"max_y,omitempty"`
	MinArea            int     `toml:"min_area" yaml:"min_area"`
	MaxArea            int     `toml:"max_area" yaml:"max_area"` // 0 = unbounded
	FixedAspectRatio   bool    `toml:"fixed_aspect_ratio" yaml:"fixed_aspect_ratio"`
}

// Validate rejects contradictory bounds.
func (s Search) Validate() error {
	var errs []error
	if s.ScaleBase <= 1 {
		errs = append(errs, fmt.Errorf("scale_base must be greater than 1 (got %v)", s.ScaleBase))
	}
	if s.Branches < 1 {
		errs = append(errs, fmt.Errorf("branches must be positive (got %d)", s.Branches))
	}
	if s.MinSampleArea < 1 {
		errs = append(errs, fmt.Errorf("min_sample_area must be positive (got %d)", s.MinSampleArea))
	}
	if s.Correction < 0 {
		errs = append(errs, errors.New("correction must not be negative"))
	}
	if s.Subpixel < 0 {
		errs = append(errs, errors.New("subpixel must not be negative"))
	}
	if s.AspectRatio1 < 0 || s.AspectRatio2 < 0 {
		errs = append(errs, errors.New("aspect ratios must not be negative"))
	}
	if s.MinSourceArea < 0 || s.MinSourceArea > 100 {
		errs = append(errs, fmt.Errorf("min_source_area must be within 0..100 (got %v)", s.MinSourceArea))
	}
	if s.MinOverlayArea < 0 || s.MinOverlayArea > 100 {
		errs = append(errs, fmt.Errorf("min_overlay_area must be within 0..100 (got %v)", s.MinOverlayArea))
	}
	if s.MinArea < 0 || s.MaxArea < 0 {
		errs = append(errs, errors.New("min_area and max_area must not be negative"))
	}
	if s.MaxArea > 0 && s.MinArea > s.MaxArea {
		errs = append(errs, fmt.Errorf("min_area %d exceeds max_area %d", s.MinArea, s.MaxArea))
	}
	if s.MinX != nil && s.MaxX != nil && *s.MinX > *s.MaxX {
		errs = append(errs, fmt.Errorf("min_x %d exceeds max_x %d", *s.MinX, *s.MaxX))
	}
	if s.MinY != nil && s.MaxY != nil && *s.MinY > *s.MaxY {
		errs = append(errs, fmt.Errorf("min_y %d exceeds max_y %d", *s.MinY, *s.MaxY))
	}
	return errors.Join(errs...)
}
