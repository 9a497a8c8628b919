// Package pages derives one bundle target per page directory.
//
// Every immediate, non-hidden subdirectory of the pages root is a page. Its
// immediate, non-hidden files ending in the script extension are the page's
// sources, in directory-listing order unless Options.Sort is set. Nested
// directories inside a page are not scanned.
package pages

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/vormadev/kiln/kiln/internal/bundle"
	"github.com/vormadev/kiln/kit/fsutil"
)

// ErrDirectoryNotFound is returned when the pages root does not exist.
var ErrDirectoryNotFound = errors.New("directory not found")

// Lister lists a directory's immediate entries. name is slash-separated.
type Lister interface {
	ReadDir(name string) ([]fs.DirEntry, error)
}

// OSLister reads the real filesystem. Relative names resolve against Dir
// (the working directory when empty); absolute names are used as they are.
// Entries come back in the order the OS returns them; unlike os.ReadDir,
// nothing is sorted.
type OSLister struct {
	Dir string
}

func (l OSLister) ReadDir(name string) ([]fs.DirEntry, error) {
	p := filepath.FromSlash(name)
	if !filepath.IsAbs(p) {
		p = filepath.Join(l.Dir, p)
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return f.ReadDir(-1)
}

type Options struct {
	// Extension selects source files, e.g. ".js".
	Extension string
	// DestDir is where "<page><Extension>" outputs go.
	DestDir string
	// Sort orders pages and sources lexically instead of by listing order.
	Sort bool
	// Lister defaults to OSLister{}.
	Lister Lister
	Logger *slog.Logger
}

// Discover scans root and returns a fresh Set with one target per page.
// A page without matching files yields a target with no sources.
func Discover(root string, opts Options) (bundle.Set, error) {
	lister := opts.Lister
	if lister == nil {
		lister = OSLister{}
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	entries, err := readDir(lister, root, opts.Sort)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("pages root %s: %w", root, ErrDirectoryNotFound)
		}
		return nil, fmt.Errorf("list pages root %s: %w", root, err)
	}

	set := make(bundle.Set)
	for _, entry := range entries {
		name := entry.Name()
		if fsutil.IsHidden(name) {
			continue
		}
		if !entry.IsDir() {
			log.Debug("skipping non-directory in pages root", "name", name)
			continue
		}

		pageDir := path.Join(root, name)
		files, err := readDir(lister, pageDir, opts.Sort)
		if err != nil {
			return nil, fmt.Errorf("list page %s: %w", pageDir, err)
		}

		sources := make([]string, 0, len(files))
		for _, f := range files {
			fname := f.Name()
			if fsutil.IsHidden(fname) || f.IsDir() || !strings.HasSuffix(fname, opts.Extension) {
				continue
			}
			sources = append(sources, path.Join(pageDir, fname))
		}
		if len(sources) == 0 {
			log.Debug("page has no sources, bundle will be empty", "page", name)
		}

		set[name] = bundle.Target{
			Name:    name,
			Sources: sources,
			Dest:    path.Join(opts.DestDir, name+opts.Extension),
		}
	}

	return set, nil
}

func readDir(l Lister, name string, sorted bool) ([]fs.DirEntry, error) {
	entries, err := l.ReadDir(name)
	if err != nil {
		return nil, err
	}
	if sorted {
		entries = slices.Clone(entries)
		slices.SortFunc(entries, func(a, b fs.DirEntry) int {
			return strings.Compare(a.Name(), b.Name())
		})
	}
	return entries, nil
}
