package config

import (
	"errors"
	"fmt"
	"slices"
)

var (
	validModes   = []string{ModeDefault, ModeUpdate, ModeErase, ModeReadOnly, ModeRecompute}
	validKernels = []string{"nearest", "nearestneighbor", "approxbilinear", "bilinear", "catmullrom", "bicubic"}
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateEngine(); err != nil {
		return err
	}
	if err := c.validateResample(); err != nil {
		return err
	}
	return c.validateSearch()
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateEngine() error {
	e := c.Engine
	if e.BackwardFrames < 0 {
		return errors.New("engine.backward_frames must not be negative")
	}
	if e.ForwardFrames < 0 {
		return errors.New("engine.forward_frames must not be negative")
	}
	if e.MaxDiff < 0 {
		return errors.New("engine.max_diff must not be negative")
	}
	if e.MaxDiffIncrease < 0 {
		return errors.New("engine.max_diff_increase must not be negative")
	}
	if e.MaxDeviation < 0 || e.MaxDeviation > 100 {
		return fmt.Errorf("engine.max_deviation must be within 0..100 (got %v)", e.MaxDeviation)
	}
	if e.Workers < 0 {
		return errors.New("engine.workers must not be negative")
	}
	if !slices.Contains(validModes, e.Mode) {
		return fmt.Errorf("engine.mode: unsupported value %q (want one of %v)", e.Mode, validModes)
	}
	return nil
}

func (c *Config) validateResample() error {
	for name, kernel := range map[string]string{
		"resample.downsize": c.Resample.Downsize,
		"resample.upsize":   c.Resample.Upsize,
		"resample.rotate":   c.Resample.Rotate,
	} {
		if !slices.Contains(validKernels, kernel) {
			return fmt.Errorf("%s: unsupported kernel %q", name, kernel)
		}
	}
	return nil
}

func (c *Config) validateSearch() error {
	for i, s := range c.Search {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("search[%d]: %w", i, err)
		}
	}
	return nil
}
