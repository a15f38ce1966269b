package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.normalizeEngine()
	c.normalizeResample()
	if len(c.Search) == 0 {
		c.Search = []Search{DefaultSearch()}
	}
	return nil
}

func (c *Config) normalizePaths() error {
	c.Paths.StatFile = strings.TrimSpace(c.Paths.StatFile)
	if c.Paths.StatFile == "" {
		if value, ok := os.LookupEnv(StatFileEnv); ok && strings.TrimSpace(value) != "" {
			c.Paths.StatFile = strings.TrimSpace(value)
		} else {
			c.Paths.StatFile = defaultStatFile
		}
	}
	var err error
	if c.Paths.StatFile, err = expandPath(c.Paths.StatFile); err != nil {
		return fmt.Errorf("paths.stat_file: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeEngine() {
	c.Engine.Mode = strings.ToLower(strings.TrimSpace(c.Engine.Mode))
	if c.Engine.Mode == "" {
		c.Engine.Mode = defaultMode
	}
}

func (c *Config) normalizeResample() {
	for _, kernel := range []*string{&c.Resample.Downsize, &c.Resample.Upsize, &c.Resample.Rotate} {
		*kernel = strings.ToLower(strings.TrimSpace(*kernel))
		if *kernel == "" {
			*kernel = defaultKernel
		}
	}
}
