package main

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"framealign/internal/config"
	"framealign/internal/frames"
	"framealign/internal/testsupport"
)

const (
	squareX    = 30
	squareY    = 40
	squareSize = 20
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
	sourceDir  string
	overlayDir string
}

func setupCLITestEnv(t *testing.T, frameCount int) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithSearch(testsupport.SquareSearch(squareSize)))
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv(config.StatFileEnv, "")

	src, over := testsupport.SquareScene(100, 100, squareX, squareY, squareSize)
	sources := make([]*frames.Image, 0, frameCount)
	overlays := make([]*frames.Image, 0, frameCount)
	for range frameCount {
		sources = append(sources, src)
		overlays = append(overlays, over)
	}

	env := &cliTestEnv{
		cfg:        cfg,
		configPath: filepath.Join(base, "framealign.toml"),
		baseDir:    base,
		sourceDir:  testsupport.WriteFrames(t, filepath.Join(base, "source"), sources...),
		overlayDir: testsupport.WriteFrames(t, filepath.Join(base, "overlay"), overlays...),
	}
	writeTestConfig(t, env.configPath, cfg)
	return env
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	var b strings.Builder
	fmt.Fprintf(&b, "[paths]\nstat_file = %q\nlog_dir = %q\n\n", cfg.Paths.StatFile, cfg.Paths.LogDir)
	fmt.Fprintf(&b, "[logging]\nlevel = \"error\"\nformat = \"json\"\n\n")
	fmt.Fprintf(&b, "[engine]\nbackward_frames = %d\nforward_frames = %d\nworkers = 2\n\n",
		cfg.Engine.BackwardFrames, cfg.Engine.ForwardFrames)
	for _, s := range cfg.Search {
		fmt.Fprintf(&b, "[[search]]\nmin_source_area = %.2f\nmin_overlay_area = %.2f\nmin_area = %d\nmax_area = %d\nbranches = %d\n\n",
			s.MinSourceArea, s.MinOverlayArea, s.MinArea, s.MaxArea, s.Branches)
	}
	testsupport.WriteFile(t, path, b.String())
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
