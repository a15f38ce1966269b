package testsupport

import (
	"path/filepath"
	"testing"

	"framealign/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StatFile = filepath.Join(base, "data", "stat.db")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Search = []config.Search{config.DefaultSearch()}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithMode sets the continuity engine mode.
func WithMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engine.Mode = mode
	}
}

// WithWindows sets the backward and forward continuity windows.
func WithWindows(backward, forward int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engine.BackwardFrames = backward
		b.cfg.Engine.ForwardFrames = forward
	}
}

// WithStabilize toggles stabilization.
func WithStabilize(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Engine.Stabilize = enabled
	}
}

// WithSearch replaces the search passes.
func WithSearch(passes ...config.Search) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Search = append([]config.Search(nil), passes...)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
