package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// maxUpwardSearchLevels limits how far up the directory tree to search for
// a project file.
const maxUpwardSearchLevels = 10

// ErrNotFound is returned when no project file can be located.
var ErrNotFound = errors.New("no " + FileName + " found")

// flagKeys maps command-line flags onto config keys. Flags not listed here
// never reach the config.
var flagKeys = map[string]string{
	"output":         "project.output",
	"cache":          "project.cache",
	"debug":          "project.debug",
	"frame-width":    "project.frame_width",
	"extensions-dir": "project.extensions_dir",
}

// findConfigFile returns the project file in dir, or "".
func findConfigFile(dir string) string {
	for _, name := range []string{FileName, FileNameAlt} {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// FindProjectRoot walks up from startDir to the nearest directory holding a
// project file. Returns "" if none is found within a few levels.
func FindProjectRoot(startDir string) string {
	dir := startDir
	for i := 0; i < maxUpwardSearchLevels; i++ {
		if findConfigFile(dir) != "" {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

// Locate returns the project file to load. An explicit path wins; a
// directory is searched for a project file. Otherwise the search starts at
// the working directory and walks upward.
func Locate(explicit string) (string, error) {
	if explicit != "" {
		info, err := os.Stat(explicit)
		if err != nil {
			return "", fmt.Errorf("config file: %w", err)
		}
		if !info.IsDir() {
			return explicit, nil
		}
		if p := findConfigFile(explicit); p != "" {
			return p, nil
		}
		return "", fmt.Errorf("%w in %s", ErrNotFound, explicit)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	root := FindProjectRoot(cwd)
	if root == "" {
		return "", ErrNotFound
	}
	return findConfigFile(root), nil
}

// Load reads the project file at path (located as by Locate) and layers
// environment variables and explicitly set flags on top. flags may be nil.
// A config that fails validation is reported as ValidationErrors.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	cfgFile, err := Locate(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(cfgFile)
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]any{
		"project.output":      DefaultOutput,
		"project.cache":       DefaultCache,
		"project.frame_width": DefaultFrameWidth,
		"project.debug":       false,
		"stage.path":          DefaultStagePath,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Project file
	if err := k.Load(file.Provider(abs), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", abs, err)
	}

	// 3. Environment variables: BLOCKC_PROJECT__OUTPUT -> project.output
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest priority, only when set)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok || !f.Changed {
				return "", nil
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = abs
	cfg.Root = filepath.Dir(abs)
	cfg.applyDefaults()
	cfg.resolvePaths()

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, errs
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Project.Name == "" {
		c.Project.Name = filepath.Base(c.Root)
	}
	if c.Stage.Name == "" {
		c.Stage.Name = "Stage"
	}
	for i := range c.Sprites {
		if c.Sprites[i].Name == "" && c.Sprites[i].Path != "" {
			base := filepath.Base(c.Sprites[i].Path)
			c.Sprites[i].Name = strings.TrimSuffix(base, filepath.Ext(base))
		}
	}
}

// resolvePaths anchors every relative path at the project root.
func (c *Config) resolvePaths() {
	c.Project.Output = c.Abs(c.Project.Output)
	c.Project.ExtensionsDir = c.Abs(c.Project.ExtensionsDir)
	if c.Project.Cache != MemoryCache {
		c.Project.Cache = c.Abs(c.Project.Cache)
	}
	for i, p := range c.Project.Packages {
		c.Project.Packages[i] = c.Abs(p)
	}
	c.Stage.Path = c.Abs(c.Stage.Path)
	for i := range c.Sprites {
		c.Sprites[i].Path = c.Abs(c.Sprites[i].Path)
	}
}

// Abs resolves path against the project root. Empty and absolute paths
// are returned unchanged.
func (c *Config) Abs(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Root, path)
}

// ArchivePath is where the .sb3 archive is written.
func (c *Config) ArchivePath() string {
	return filepath.Join(c.Project.Output, c.Project.Name+".sb3")
}

// Targets returns the stage followed by the sprites, in file order.
func (c *Config) Targets() []Target {
	return append([]Target{c.Stage}, c.Sprites...)
}
