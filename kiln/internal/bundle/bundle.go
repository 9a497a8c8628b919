// Package bundle defines concatenation targets and writes them.
package bundle

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/vormadev/kiln/kit/fsutil"
)

// Target is one concatenated output. Sources are concatenated in order.
// Paths are slash-separated and relative to the project root.
type Target struct {
	Name    string   `json:"name"`
	Sources []string `json:"sources"`
	Dest    string   `json:"dest"`
}

// Set maps target names to targets.
type Set map[string]Target

// Clone returns a deep copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for name, t := range s {
		t.Sources = slices.Clone(t.Sources)
		out[name] = t
	}
	return out
}

// Names returns target names sorted lexically.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Merge returns the union of base and overlay without modifying either.
// Overlay entries replace base entries of the same name; replaced names are
// returned so the caller can report them.
func Merge(base, overlay Set) (Set, []string) {
	out := base.Clone()
	var replaced []string
	for _, name := range overlay.Names() {
		if _, exists := out[name]; exists {
			replaced = append(replaced, name)
		}
		t := overlay[name]
		t.Sources = slices.Clone(t.Sources)
		out[name] = t
	}
	return out, replaced
}

// Separator joins concatenated sources.
var Separator = []byte("\n")

// Concat writes t.Dest under root. An empty source list writes an empty
// file; a missing source is an error.
func Concat(root string, t Target) (int, error) {
	var buf bytes.Buffer
	for i, src := range t.Sources {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(src)))
		if err != nil {
			return 0, fmt.Errorf("bundle %q: read source: %w", t.Name, err)
		}
		if i > 0 {
			buf.Write(Separator)
		}
		buf.Write(data)
	}

	dest := filepath.Join(root, filepath.FromSlash(t.Dest))
	if err := fsutil.WriteFileAtomicBytes(dest, buf.Bytes()); err != nil {
		return 0, fmt.Errorf("bundle %q: write %s: %w", t.Name, t.Dest, err)
	}
	return buf.Len(), nil
}
