// Package style generates the Sass import entry and compiles it to CSS.
package style

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/vormadev/kiln/kit/fsutil"
	"github.com/vormadev/kiln/kit/globutil"
)

type GlobResult struct {
	// Imports are the written import paths, relative to the entry's directory.
	Imports   []string
	Unmatched []string
}

// WriteGlobEntry expands patterns under root and writes one @import line per
// matched file to entry (relative to root). The entry never imports itself
// and is left untouched when its content would not change.
func WriteGlobEntry(root, entry string, patterns []string, singleQuotes bool) (GlobResult, error) {
	matches, err := globutil.Expand(os.DirFS(root), patterns)
	if err != nil {
		return GlobResult{}, err
	}

	entry = path.Clean(filepath.ToSlash(entry))
	entryDir := path.Dir(entry)
	quote := `"`
	if singleQuotes {
		quote = `'`
	}

	res := GlobResult{Unmatched: matches.Unmatched}
	var buf bytes.Buffer
	for _, file := range matches.Files {
		if file == entry {
			continue
		}
		rel, err := fsutil.Rel(filepath.FromSlash(entryDir), filepath.FromSlash(file))
		if err != nil {
			return GlobResult{}, fmt.Errorf("relative import for %s: %w", file, err)
		}
		res.Imports = append(res.Imports, rel)
		fmt.Fprintf(&buf, "@import %s%s%s;\n", quote, rel, quote)
	}

	dest := filepath.Join(root, filepath.FromSlash(entry))
	if old, err := os.ReadFile(dest); err == nil && bytes.Equal(old, buf.Bytes()) {
		return res, nil
	}
	if err := fsutil.WriteFileAtomicBytes(dest, buf.Bytes()); err != nil {
		return GlobResult{}, fmt.Errorf("write sass entry: %w", err)
	}
	return res, nil
}
