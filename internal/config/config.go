package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"golang.org/x/sys/unix"
	"gopkg.in/yaml.v3"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains file and directory locations.
type Paths struct {
	StatFile string `toml:"stat_file"`
	LogDir   string `toml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Engine contains the frame continuity thresholds.
type Engine struct {
	BackwardFrames  int     `toml:"backward_frames"`
	ForwardFrames   int     `toml:"forward_frames"`
	MaxDiff         float64 `toml:"max_diff"`
	MaxDiffIncrease float64 `toml:"max_diff_increase"`
	MaxDeviation    float64 `toml:"max_deviation"` // percent of the overlay area
	Stabilize       bool    `toml:"stabilize"`
	Mode            string  `toml:"mode"`
	Workers         int     `toml:"workers"` // 0 = GOMAXPROCS
}

// Resample names the interpolation kernels used to scale and rotate frames.
type Resample struct {
	Downsize string `toml:"downsize"`
	Upsize   string `toml:"upsize"`
	Rotate   string `toml:"rotate"`
}

// Config encapsulates all configuration values for framealign.
//
// Configuration sections:
//   - Paths: stat store file and log directory
//   - Logging: log format and level
//   - Engine: continuity windows, thresholds and mode
//   - Resample: interpolation kernels
//   - Search: ordered search passes ([[search]] tables)
type Config struct {
	Paths    Paths    `toml:"paths"`
	Logging  Logging  `toml:"logging"`
	Engine   Engine   `toml:"engine"`
	Resample Resample `toml:"resample"`
	Search   []Search `toml:"-"`
}

type searchTables struct {
	Search []map[string]any `toml:"search"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/framealign/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		data, err := os.ReadFile(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
		if cfg.Search, err = decodeSearchTOML(data); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// LoadSearchList reads an ordered list of search passes from a .toml file
// ([[search]] tables) or a .yaml/.yml file (a top-level list, or a list under
// a "search" key). Keys left out of an entry keep their defaults.
func LoadSearchList(path string) ([]Search, error) {
	expanded, err := expandPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(expanded)
	if err != nil {
		return nil, fmt.Errorf("read search list: %w", err)
	}

	var list []Search
	switch strings.ToLower(filepath.Ext(expanded)) {
	case ".yaml", ".yml":
		list, err = decodeSearchYAML(data)
	case ".toml":
		list, err = decodeSearchTOML(data)
	default:
		return nil, fmt.Errorf("search list %s: unsupported extension", expanded)
	}
	if err != nil {
		return nil, fmt.Errorf("parse search list %s: %w", expanded, err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("search list %s is empty", expanded)
	}
	for i, s := range list {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("search list %s entry %d: %w", expanded, i, err)
		}
	}
	return list, nil
}

func decodeSearchTOML(data []byte) ([]Search, error) {
	var raw searchTables
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	out := make([]Search, 0, len(raw.Search))
	for i, table := range raw.Search {
		encoded, err := toml.Marshal(table)
		if err != nil {
			return nil, fmt.Errorf("search %d: %w", i, err)
		}
		s := DefaultSearch()
		if err := toml.Unmarshal(encoded, &s); err != nil {
			return nil, fmt.Errorf("search %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func decodeSearchYAML(data []byte) ([]Search, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return nil, nil
	}
	list := root.Content[0]
	if list.Kind == yaml.MappingNode {
		var found *yaml.Node
		for i := 0; i+1 < len(list.Content); i += 2 {
			if list.Content[i].Value == "search" {
				found = list.Content[i+1]
				break
			}
		}
		if found == nil {
			return nil, errors.New(`expected a list or a "search" key`)
		}
		list = found
	}
	if list.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("line %d: expected a list of search passes", list.Line)
	}
	out := make([]Search, 0, len(list.Content))
	for i, item := range list.Content {
		s := DefaultSearch()
		if err := item.Decode(&s); err != nil {
			return nil, fmt.Errorf("search %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("framealign.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the stat store and logs live in.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{filepath.Dir(c.Paths.StatFile), c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CheckWritable verifies that dir exists and is readable and writable.
func CheckWritable(dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("%s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", dir)
	}
	if err := unix.Access(dir, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return fmt.Errorf("%s: insufficient permissions: %w", dir, err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
