// Package config provides the configuration types, defaults and parsing for
// kiln. This package has no dependencies on other internal packages.
package config

import (
	"path/filepath"
	"time"
)

// Config is the parsed and validated kiln.yaml, layered over Default().
// Paths are slash-separated and relative to Root.
type Config struct {
	Style       StyleConfig             `yaml:"style"`
	Scripts     ScriptConfig            `yaml:"scripts"`
	Images      ImageConfig             `yaml:"images"`
	Copy        []CopyRule              `yaml:"copy"`
	Clean       []string                `yaml:"clean"`
	Rev         RevConfig               `yaml:"rev"`
	Precompress PrecompressConfig       `yaml:"precompress"`
	Watch       WatchConfig             `yaml:"watch"`
	LiveReload  LiveReloadConfig        `yaml:"liveReload"`
	Notify      map[string]Notification `yaml:"notify"`

	// Root is the project root every path is resolved against.
	Root string `yaml:"-"`
	// Package is read from Root/package.json when present.
	Package PackageInfo `yaml:"-"`
}

type StyleConfig struct {
	// Globs are expanded in order into @import lines written to Entry.
	Globs        []string `yaml:"globs"`
	Entry        string   `yaml:"entry"`
	Output       string   `yaml:"output"`
	IncludePaths []string `yaml:"includePaths,omitempty"`
	SingleQuotes bool     `yaml:"singleQuotes,omitempty"`
	// Compressed asks Sass for compressed rather than expanded output.
	Compressed bool `yaml:"compressed,omitempty"`
	// Targets are esbuild engine targets used for vendor prefixing.
	Targets []string `yaml:"targets"`
	// MinifyDir holds the CSS files cssmin rewrites in place.
	MinifyDir string `yaml:"minifyDir"`
	// DartSassBinary overrides the embedded Dart Sass executable lookup.
	DartSassBinary string `yaml:"dartSassBinary,omitempty"`
}

type ScriptConfig struct {
	// Main is the shared bundle; its sources are glob patterns.
	Main BundleConfig `yaml:"main"`
	// PagesDir holds one subdirectory per page bundle.
	PagesDir  string `yaml:"pagesDir"`
	OutDir    string `yaml:"outDir"`
	Extension string `yaml:"extension"`
	// SortSources sorts pages and their sources lexically instead of using
	// directory-listing order.
	SortSources bool `yaml:"sortSources,omitempty"`
}

type BundleConfig struct {
	Name    string   `yaml:"name"`
	Sources []string `yaml:"sources"`
	Dest    string   `yaml:"dest"`
}

type ImageConfig struct {
	Dir         string   `yaml:"dir"`
	Patterns    []string `yaml:"patterns"`
	JPEGQuality int      `yaml:"jpegQuality"`
}

type CopyRule struct {
	Cwd  string   `yaml:"cwd"`
	Src  []string `yaml:"src"`
	Dest string   `yaml:"dest"`
}

type RevConfig struct {
	Algorithm string        `yaml:"algorithm"`
	Length    int           `yaml:"length"`
	Src       []string      `yaml:"src"`
	Summary   string        `yaml:"summary"`
	Rewrite   RewriteConfig `yaml:"rewrite"`
}

type RewriteConfig struct {
	CSS []string `yaml:"css"`
	JS  []string `yaml:"js"`
	// AssetDirs are searched for references that do not resolve relative
	// to the referencing file.
	AssetDirs []string `yaml:"assetDirs"`
	// WebRoot anchors absolute references such as "/img/a.png".
	WebRoot string `yaml:"webRoot"`
}

type PrecompressConfig struct {
	Enabled bool     `yaml:"enabled"`
	Src     []string `yaml:"src"`
	Level   int      `yaml:"level"`
}

type WatchConfig struct {
	Debounce time.Duration          `yaml:"debounce"`
	Exclude  []string               `yaml:"exclude,omitempty"`
	Targets  map[string]WatchTarget `yaml:"targets"`
}

type WatchTarget struct {
	Files []string `yaml:"files"`
	Tasks []string `yaml:"tasks"`
}

type LiveReloadConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type Notification struct {
	Title   string `yaml:"title"`
	Message string `yaml:"message"`
}

type PackageInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Path resolves a config path against Root.
func (c *Config) Path(rel string) string {
	if filepath.IsAbs(rel) {
		return filepath.Clean(rel)
	}
	return filepath.Join(c.Root, filepath.FromSlash(rel))
}
