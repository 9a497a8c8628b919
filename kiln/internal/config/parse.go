package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Algorithms lists the accepted rev.algorithm values.
var Algorithms = []string{"md5", "sha1", "sha256", "sha512", "blake2b"}

// Parse decodes kiln.yaml bytes (JSON is accepted too) over Default() and
// validates the result. Lists replace the defaults; maps are merged key by key.
func Parse(data []byte, root string) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return finish(cfg, root)
}

// Load reads file (resolved against root) and parses it. A missing file is
// only an error when it is not the default kiln.yaml.
func Load(root, file string) (*Config, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	if file == "" {
		file = DefaultFileName
	}
	path := file
	if !filepath.IsAbs(path) {
		path = filepath.Join(absRoot, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && file == DefaultFileName {
			return finish(Default(), absRoot)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data, absRoot)
}

func finish(cfg *Config, root string) (*Config, error) {
	cfg.Root = filepath.Clean(root)
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	pkg, err := readPackageInfo(cfg.Root)
	if err != nil {
		return nil, err
	}
	cfg.Package = pkg
	return cfg, nil
}

func readPackageInfo(root string) (PackageInfo, error) {
	var pkg PackageInfo
	data, err := os.ReadFile(filepath.Join(root, "package.json"))
	if errors.Is(err, os.ErrNotExist) {
		return pkg, nil
	}
	if err != nil {
		return pkg, fmt.Errorf("read package.json: %w", err)
	}
	if err := json.Unmarshal(data, &pkg); err != nil {
		return pkg, fmt.Errorf("parse package.json: %w", err)
	}
	return pkg, nil
}

func validate(cfg *Config) error {
	if cfg.Style.Entry == "" {
		return fmt.Errorf("config: style.entry is required")
	}
	if cfg.Style.Output == "" {
		return fmt.Errorf("config: style.output is required")
	}

	s := cfg.Scripts
	if s.PagesDir == "" {
		return fmt.Errorf("config: scripts.pagesDir is required")
	}
	if strings.HasPrefix(s.PagesDir, "/") || filepath.IsAbs(s.PagesDir) {
		return fmt.Errorf("config: scripts.pagesDir must be relative to the project root, got %q", s.PagesDir)
	}
	if s.OutDir == "" {
		return fmt.Errorf("config: scripts.outDir is required")
	}
	if !strings.HasPrefix(s.Extension, ".") || len(s.Extension) < 2 {
		return fmt.Errorf("config: scripts.extension must look like \".js\", got %q", s.Extension)
	}
	if s.Main.Name == "" || s.Main.Dest == "" {
		return fmt.Errorf("config: scripts.main.name and scripts.main.dest are required")
	}

	if cfg.Images.JPEGQuality < 1 || cfg.Images.JPEGQuality > 100 {
		return fmt.Errorf("config: images.jpegQuality must be within 1..100, got %d", cfg.Images.JPEGQuality)
	}

	for i, rule := range cfg.Copy {
		if rule.Cwd == "" || rule.Dest == "" || len(rule.Src) == 0 {
			return fmt.Errorf("config: copy[%d] needs cwd, src and dest", i)
		}
	}

	if !isKnownAlgorithm(cfg.Rev.Algorithm) {
		return fmt.Errorf("config: rev.algorithm %q is not one of %s", cfg.Rev.Algorithm, strings.Join(Algorithms, ", "))
	}
	if cfg.Rev.Length < 1 || cfg.Rev.Length > 32 {
		return fmt.Errorf("config: rev.length must be within 1..32, got %d", cfg.Rev.Length)
	}

	if cfg.Precompress.Enabled && (cfg.Precompress.Level < 1 || cfg.Precompress.Level > 9) {
		return fmt.Errorf("config: precompress.level must be within 1..9, got %d", cfg.Precompress.Level)
	}

	if cfg.Watch.Debounce < 0 {
		return fmt.Errorf("config: watch.debounce must not be negative")
	}
	for name, target := range cfg.Watch.Targets {
		if len(target.Files) == 0 || len(target.Tasks) == 0 {
			return fmt.Errorf("config: watch.targets.%s needs files and tasks", name)
		}
	}

	if cfg.LiveReload.Port < 0 || cfg.LiveReload.Port > 65535 {
		return fmt.Errorf("config: liveReload.port out of range: %d", cfg.LiveReload.Port)
	}

	return nil
}

func isKnownAlgorithm(name string) bool {
	for _, a := range Algorithms {
		if a == name {
			return true
		}
	}
	return false
}
