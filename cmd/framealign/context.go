package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"framealign/internal/config"
	"framealign/internal/frames"
	"framealign/internal/logging"
	"framealign/internal/statstore"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
	runID      string
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		runID:      uuid.NewString(),
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// ensureLogger builds the run logger from the loaded configuration.
func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		c.logger, c.loggerErr = logging.NewFromConfig(cfg)
	})
	return c.logger, c.loggerErr
}

// runContext tags ctx with the run ID so every log line of one invocation
// can be grouped.
func (c *commandContext) runContext(ctx context.Context) context.Context {
	return logging.WithRunID(ctx, c.runID)
}

func (c *commandContext) openStore(ctx context.Context) (*statstore.SQLite, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	store, err := statstore.OpenSQLite(ctx, cfg.Paths.StatFile)
	if err != nil {
		return nil, fmt.Errorf("open stat store: %w", err)
	}
	return store, nil
}

func (c *commandContext) withStore(cmd *cobra.Command, fn func(*statstore.SQLite) error) error {
	store, err := c.openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func (c *commandContext) resampler() (frames.Resampler, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return frames.NewDrawResampler(cfg.Resample.Downsize, cfg.Resample.Upsize, cfg.Resample.Rotate)
}

// searchPasses returns the passes listed in path, or the configured ones
// when path is empty.
func (c *commandContext) searchPasses(path string) ([]config.Search, error) {
	if path = strings.TrimSpace(path); path != "" {
		return config.LoadSearchList(path)
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return cfg.Search, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
