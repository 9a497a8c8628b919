// Package assets holds the file-level build steps that need no compiler:
// cleaning outputs, copying static files, compressing images and writing
// gzip siblings.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/vormadev/kiln/kiln/internal/config"
	"github.com/vormadev/kiln/kit/fsutil"
	"github.com/vormadev/kiln/kit/globutil"
)

// Clean removes each path under root. Missing paths are not an error; a
// path that is the root itself or resolves outside it is.
func Clean(root string, paths []string) (removed []string, err error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	for _, p := range paths {
		full := filepath.Join(absRoot, filepath.FromSlash(p))
		if full == absRoot {
			return removed, fmt.Errorf("clean: refusing to remove project root (%q)", p)
		}
		if rel, err := filepath.Rel(absRoot, full); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return removed, fmt.Errorf("clean: refusing to remove %q outside the project root", p)
		}
		if _, err := os.Lstat(full); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := os.RemoveAll(full); err != nil {
			return removed, fmt.Errorf("clean %s: %w", p, err)
		}
		removed = append(removed, p)
	}
	return removed, nil
}

type CopyResult struct {
	Copied    []string
	Unmatched []string
}

// Copy copies the files rule.Src matches under rule.Cwd into rule.Dest,
// keeping their path relative to Cwd. A missing Cwd copies nothing.
func Copy(root string, rule config.CopyRule) (CopyResult, error) {
	cwd := filepath.Join(root, filepath.FromSlash(rule.Cwd))
	if _, err := os.Stat(cwd); errors.Is(err, fs.ErrNotExist) {
		return CopyResult{Unmatched: rule.Src}, nil
	}

	matches, err := globutil.Expand(os.DirFS(cwd), rule.Src)
	if err != nil {
		return CopyResult{}, err
	}

	res := CopyResult{Unmatched: matches.Unmatched}
	dest := filepath.Join(root, filepath.FromSlash(rule.Dest))
	for _, rel := range matches.Files {
		if err := fsutil.CopyFile(filepath.Join(cwd, filepath.FromSlash(rel)), filepath.Join(dest, filepath.FromSlash(rel))); err != nil {
			return res, fmt.Errorf("copy %s: %w", rel, err)
		}
		res.Copied = append(res.Copied, rel)
	}
	return res, nil
}
