// Package transform runs esbuild over single CSS and JS files: vendor
// prefixing for the configured browser targets, and minification.
package transform

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	esbuild "github.com/evanw/esbuild/pkg/api"
	"github.com/vormadev/kiln/kit/esbuildutil"
	"github.com/vormadev/kiln/kit/fsutil"
)

var engineNames = map[string]esbuild.EngineName{
	"chrome":  esbuild.EngineChrome,
	"edge":    esbuild.EngineEdge,
	"firefox": esbuild.EngineFirefox,
	"ie":      esbuild.EngineIE,
	"ios":     esbuild.EngineIOS,
	"node":    esbuild.EngineNode,
	"opera":   esbuild.EngineOpera,
	"safari":  esbuild.EngineSafari,
}

var targetRe = regexp.MustCompile(`^([a-z]+)(\d+(?:\.\d+){0,2})$`)

// ParseTargets turns esbuild-style targets such as "chrome58" or "ios12.2"
// into engines.
func ParseTargets(targets []string) ([]esbuild.Engine, error) {
	engines := make([]esbuild.Engine, 0, len(targets))
	for _, raw := range targets {
		m := targetRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(raw)))
		if m == nil {
			return nil, fmt.Errorf("transform: invalid target %q", raw)
		}
		name, ok := engineNames[m[1]]
		if !ok {
			return nil, fmt.Errorf("transform: unknown engine %q in target %q", m[1], raw)
		}
		engines = append(engines, esbuild.Engine{Name: name, Version: m[2]})
	}
	return engines, nil
}

// Prefix adds the vendor prefixes and syntax lowering engines need.
func Prefix(css []byte, engines []esbuild.Engine, file string) ([]byte, error) {
	return run(css, esbuild.TransformOptions{
		Loader:     esbuild.LoaderCSS,
		Engines:    engines,
		Sourcefile: file,
	})
}

// MinifyCSS minifies a stylesheet.
func MinifyCSS(css []byte, file string) ([]byte, error) {
	return run(css, esbuild.TransformOptions{
		Loader:            esbuild.LoaderCSS,
		MinifyWhitespace:  true,
		MinifySyntax:      true,
		MinifyIdentifiers: true,
		Sourcefile:        file,
	})
}

// MinifyJS minifies a script. Top-level and global names (jQuery,
// bootstrap, ...) are never renamed; only local bindings are.
func MinifyJS(js []byte, file string) ([]byte, error) {
	return run(js, esbuild.TransformOptions{
		Loader:            esbuild.LoaderJS,
		MinifyWhitespace:  true,
		MinifySyntax:      true,
		MinifyIdentifiers: true,
		LegalComments:     esbuild.LegalCommentsInline,
		Sourcefile:        file,
	})
}

func run(src []byte, opts esbuild.TransformOptions) ([]byte, error) {
	result := esbuild.Transform(string(src), opts)
	if err := esbuildutil.CollectErrors(result.Errors); err != nil {
		return nil, err
	}
	return result.Code, nil
}

// File applies fn to the file at path and writes the result back atomically.
func File(path string, fn func(src []byte, file string) ([]byte, error)) (before, after int, err error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, err
	}
	out, err := fn(src, path)
	if err != nil {
		return 0, 0, err
	}
	if err := fsutil.WriteFileAtomicBytes(path, out); err != nil {
		return 0, 0, err
	}
	return len(src), len(out), nil
}
