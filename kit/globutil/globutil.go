// Package globutil expands ordered lists of doublestar patterns the way
// asset build configs expect: pattern order is kept, a file matched by an
// earlier pattern is not repeated, and a "!" prefix removes earlier matches.
package globutil

import (
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

type Matches struct {
	// Files are slash-separated paths relative to the FS root, in pattern order.
	Files []string
	// Unmatched lists positive patterns that matched no file.
	Unmatched []string
}

// Expand resolves patterns against fsys, returning files only.
func Expand(fsys fs.FS, patterns []string) (Matches, error) {
	var m Matches
	seen := make(map[string]struct{})

	for _, raw := range patterns {
		if neg, ok := strings.CutPrefix(raw, "!"); ok {
			if !doublestar.ValidatePattern(neg) {
				return Matches{}, fmt.Errorf("globutil: invalid pattern %q", raw)
			}
			kept := m.Files[:0]
			for _, f := range m.Files {
				if doublestar.MatchUnvalidated(neg, f) {
					delete(seen, f)
					continue
				}
				kept = append(kept, f)
			}
			m.Files = kept
			continue
		}

		pattern := strings.TrimPrefix(raw, "./")
		found, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			return Matches{}, fmt.Errorf("globutil: expand %q: %w", raw, err)
		}
		if len(found) == 0 {
			m.Unmatched = append(m.Unmatched, raw)
			continue
		}
		for _, f := range found {
			if _, dup := seen[f]; dup {
				continue
			}
			seen[f] = struct{}{}
			m.Files = append(m.Files, f)
		}
	}

	return m, nil
}

// Match reports whether path matches any of patterns, honoring "!" exclusions
// in order (the last matching pattern decides).
func Match(patterns []string, path string) bool {
	matched := false
	for _, raw := range patterns {
		if neg, ok := strings.CutPrefix(raw, "!"); ok {
			if matched && doublestar.MatchUnvalidated(neg, path) {
				matched = false
			}
			continue
		}
		if !matched && doublestar.MatchUnvalidated(strings.TrimPrefix(raw, "./"), path) {
			matched = true
		}
	}
	return matched
}

// MatchDir reports whether a file somewhere below dir could match one of the
// positive patterns. Exclusions are skipped; they only make sense for a file.
func MatchDir(patterns []string, dir string) bool {
	dir = strings.Trim(path.Clean(dir), "/")
	if dir == "." || dir == "" {
		return len(patterns) > 0
	}
	for _, raw := range patterns {
		if strings.HasPrefix(raw, "!") {
			continue
		}
		base, rest := doublestar.SplitPattern(strings.TrimPrefix(raw, "./"))
		if base == "." {
			base = ""
		}
		if base == dir || strings.HasPrefix(base, dir+"/") {
			return true
		}

		sub := dir
		if base != "" {
			var ok bool
			if sub, ok = strings.CutPrefix(dir, base+"/"); !ok {
				continue
			}
		}
		if strings.Contains(rest, "**") {
			return true
		}
		// Without "**" the pattern fixes the depth: dir must match its
		// leading segments and leave at least one for the file name.
		depth := strings.Count(sub, "/") + 1
		segs := strings.Split(rest, "/")
		if len(segs) <= depth {
			continue
		}
		if doublestar.MatchUnvalidated(strings.Join(segs[:depth], "/"), sub) {
			return true
		}
	}
	return false
}
