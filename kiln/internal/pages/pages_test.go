package pages

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vormadev/kiln/kiln/internal/bundle"
)

type fakeEntry struct {
	name string
	dir  bool
}

func (e fakeEntry) Name() string               { return e.name }
func (e fakeEntry) IsDir() bool                { return e.dir }
func (e fakeEntry) Info() (fs.FileInfo, error) { return nil, errors.New("not implemented") }
func (e fakeEntry) Type() fs.FileMode {
	if e.dir {
		return fs.ModeDir
	}
	return 0
}

func dir(name string) fakeEntry  { return fakeEntry{name: name, dir: true} }
func file(name string) fakeEntry { return fakeEntry{name: name} }

// orderedLister returns entries exactly in the order given, the way a real
// filesystem may return them unsorted.
type orderedLister map[string][]fakeEntry

func (l orderedLister) ReadDir(name string) ([]fs.DirEntry, error) {
	entries, ok := l[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	out := make([]fs.DirEntry, len(entries))
	for i, e := range entries {
		out[i] = e
	}
	return out, nil
}

func opts(l Lister) Options {
	return Options{Extension: ".js", DestDir: "public/js", Lister: l}
}

func TestDiscoverScenario(t *testing.T) {
	l := orderedLister{
		"pages":      {dir("home"), dir(".tmp")},
		"pages/home": {file("init.js"), file("hidden.js")},
		"pages/.tmp": {file("x.js")},
	}

	set, err := Discover("pages", opts(l))
	require.NoError(t, err)
	require.Equal(t, bundle.Set{
		"home": {
			Name:    "home",
			Sources: []string{"pages/home/init.js", "pages/home/hidden.js"},
			Dest:    "public/js/home.js",
		},
	}, set)
}

func TestDiscoverKeepsListingOrder(t *testing.T) {
	l := orderedLister{
		"p":      {dir("shop")},
		"p/shop": {file("z.js"), file("a.js"), file("m.js")},
	}
	set, err := Discover("p", opts(l))
	require.NoError(t, err)
	require.Equal(t, []string{"p/shop/z.js", "p/shop/a.js", "p/shop/m.js"}, set["shop"].Sources)
}

func TestDiscoverSortOption(t *testing.T) {
	l := orderedLister{
		"p":      {dir("shop")},
		"p/shop": {file("z.js"), file("a.js"), file("m.js")},
	}
	o := opts(l)
	o.Sort = true
	set, err := Discover("p", o)
	require.NoError(t, err)
	require.Equal(t, []string{"p/shop/a.js", "p/shop/m.js", "p/shop/z.js"}, set["shop"].Sources)
	require.Equal(t, "z.js", l["p/shop"][0].name, "sorting must not reorder the lister's slice")
}

func TestDiscoverFiltersEntries(t *testing.T) {
	l := orderedLister{
		"p": {dir("home"), file("README.md"), file("loose.js")},
		"p/home": {
			file("a.js"),
			file(".hidden.js"),
			file("style.css"),
			file("data.json"),
			file("b.js.map"),
			dir("nested"),
			dir("dir.js"),
			file("c.js"),
		},
		"p/home/nested": {file("deep.js")},
	}
	set, err := Discover("p", opts(l))
	require.NoError(t, err)
	require.Equal(t, []string{"home"}, set.Names(), "files in the pages root are not pages")
	require.Equal(t, []string{"p/home/a.js", "p/home/c.js"}, set["home"].Sources)
}

func TestDiscoverEmptyPage(t *testing.T) {
	l := orderedLister{
		"p":       {dir("about")},
		"p/about": {file("notes.txt")},
	}
	set, err := Discover("p", opts(l))
	require.NoError(t, err)
	require.NotNil(t, set["about"].Sources)
	require.Empty(t, set["about"].Sources)
	require.Equal(t, "public/js/about.js", set["about"].Dest)
}

func TestDiscoverMissingRoot(t *testing.T) {
	_, err := Discover("nope", opts(orderedLister{}))
	require.ErrorIs(t, err, ErrDirectoryNotFound)
}

func TestDiscoverPageListingError(t *testing.T) {
	l := orderedLister{"p": {dir("ghost")}}
	_, err := Discover("p", opts(l))
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrDirectoryNotFound, "only a missing root is DirectoryNotFound")
}

func TestDiscoverIsDeterministic(t *testing.T) {
	l := orderedLister{
		"p":   {dir("b"), dir("a")},
		"p/a": {file("2.js"), file("1.js")},
		"p/b": {file("x.js")},
	}
	first, err := Discover("p", opts(l))
	require.NoError(t, err)
	second, err := Discover("p", opts(l))
	require.NoError(t, err)

	j1, err := json.Marshal(first)
	require.NoError(t, err)
	j2, err := json.Marshal(second)
	require.NoError(t, err)
	require.Equal(t, j1, j2)
}

func TestDiscoverOnDisk(t *testing.T) {
	root := t.TempDir()
	mk := func(p string) {
		full := filepath.Join(root, filepath.FromSlash(p))
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte("//"+p), 0644))
	}
	mk("pages/home/init.js")
	mk("pages/home/notes.json")
	mk("pages/.tmp/x.js")

	o := Options{Extension: ".js", DestDir: "public/js", Lister: OSLister{Dir: root}}
	set, err := Discover("pages", o)
	require.NoError(t, err)
	require.Equal(t, []string{"home"}, set.Names())
	require.Equal(t, []string{"pages/home/init.js"}, set["home"].Sources)

	// A page added between runs shows up as exactly one new target.
	mk("pages/contact/a.js")
	again, err := Discover("pages", o)
	require.NoError(t, err)
	require.Equal(t, []string{"contact", "home"}, again.Names())
	require.Equal(t, []string{"pages/contact/a.js"}, again["contact"].Sources)
	require.Equal(t, "public/js/contact.js", again["contact"].Dest)

	// And nothing stale survives a removal.
	require.NoError(t, os.RemoveAll(filepath.Join(root, "pages", "home")))
	third, err := Discover("pages", o)
	require.NoError(t, err)
	require.Equal(t, []string{"contact"}, third.Names())
}

func TestDiscoverOnDiskMissingRoot(t *testing.T) {
	_, err := Discover("pages", Options{Extension: ".js", Lister: OSLister{Dir: t.TempDir()}})
	require.ErrorIs(t, err, ErrDirectoryNotFound)
}

func TestOSListerAbsoluteName(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "pages", "home"), 0755))

	entries, err := OSLister{Dir: "/elsewhere"}.ReadDir(filepath.ToSlash(filepath.Join(root, "pages")))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "home", entries[0].Name())
}
