package tooling

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/vormadev/kiln/kiln/internal/assets"
	"github.com/vormadev/kiln/kiln/internal/bundle"
	"github.com/vormadev/kiln/kiln/internal/pages"
	"github.com/vormadev/kiln/kiln/internal/rev"
	"github.com/vormadev/kiln/kiln/internal/style"
	"github.com/vormadev/kiln/kiln/internal/transform"
	"github.com/vormadev/kiln/kit/globutil"
	"github.com/vormadev/kiln/kit/tasks"
)

func (b *Builder) registerTasks() {
	r := b.registry

	r.Register("clean", "remove build outputs", b.clean)
	r.Register("sass_globbing", "write the Sass import entry", b.sassGlobbing)
	r.Register("sass", "compile the Sass entry", b.sass)
	r.Register("autoprefixer", "vendor-prefix the compiled stylesheet", b.autoprefixer)
	r.Register("cssmin", "minify stylesheets in place", b.cssmin)
	r.Register("imagemin", "recompress images in place", b.imagemin)
	r.Register("concat_prepare", "discover page bundles", b.concatPrepare)
	r.Register("concat", "concatenate script bundles", b.concat)
	r.Register("uglify", "minify scripts in place", b.uglify)
	r.Register("copy", "copy fonts, images and videos", b.copy)
	r.Register("filerev", "rename outputs to content-hashed names", b.filerev)
	r.Register("filerev_mapping", "write the revision summary", b.filerevMapping)
	r.Register("usemin", "rewrite references to revved files", b.usemin)
	r.Register("precompress", "write gzip siblings", b.precompress)
	r.Register("watch", "rebuild on change", b.watch)

	for name, n := range b.cfg.Notify {
		r.Register("notify:"+name, n.Title+": "+n.Message, func(ctx *tasks.Ctx) error {
			return b.notifier.Notify(ctx.Context(), name, n)
		})
	}

	r.Alias("style", "sass_globbing", "sass", "autoprefixer")
	r.Alias("js", "concat_prepare", "concat")
	r.Alias("file_v", "filerev", "filerev_mapping", "usemin")
	r.Alias("default", b.withNotify("clean", "style", "js", "copy", "file_v", "notify:allDev")...)

	build := []string{"clean", "style", "cssmin", "js", "uglify", "copy", "imagemin", "file_v"}
	if b.cfg.Precompress.Enabled {
		build = append(build, "precompress")
	}
	r.Alias("build", build...)

	r.Concurrent("serve:assets", "js", "style", "copy")
	r.Alias("server", b.withNotify("clean", "serve:assets", "notify:watch", "watch")...)
}

// checkWatchTargets fails when a watch target names a step that is not
// registered.
func (b *Builder) checkWatchTargets() error {
	names := make([]string, 0, len(b.cfg.Watch.Targets))
	for name := range b.cfg.Watch.Targets {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		if _, err := b.registry.Expand(b.withNotify(b.cfg.Watch.Targets[name].Tasks...)...); err != nil {
			return fmt.Errorf("watch target %s: %w", name, err)
		}
	}
	return nil
}

// withNotify drops notify steps that have no configured notification.
func (b *Builder) withNotify(steps ...string) []string {
	return slices.DeleteFunc(slices.Clone(steps), func(s string) bool {
		name, ok := strings.CutPrefix(s, "notify:")
		if !ok {
			return false
		}
		_, configured := b.cfg.Notify[name]
		return !configured
	})
}

func (b *Builder) clean(*tasks.Ctx) error {
	removed, err := assets.Clean(b.cfg.Root, b.cfg.Clean)
	if err != nil {
		return err
	}
	b.log.Debug("Cleaned", "paths", removed)
	return nil
}

func (b *Builder) sassGlobbing(*tasks.Ctx) error {
	res, err := style.WriteGlobEntry(b.cfg.Root, b.cfg.Style.Entry, b.cfg.Style.Globs, b.cfg.Style.SingleQuotes)
	if err != nil {
		return err
	}
	for _, p := range res.Unmatched {
		b.log.Warn("Sass pattern matched no files", "pattern", p)
	}
	b.log.Info("Sass entry written", "entry", b.cfg.Style.Entry, "imports", len(res.Imports))
	return nil
}

func (b *Builder) sass(ctx *tasks.Ctx) error {
	includes := make([]string, len(b.cfg.Style.IncludePaths))
	for i, p := range b.cfg.Style.IncludePaths {
		includes[i] = b.cfg.Path(p)
	}
	n, err := style.CompileFile(ctx.Context(), b.compiler, style.Request{
		Entry:        b.cfg.Path(b.cfg.Style.Entry),
		IncludePaths: includes,
		Compressed:   b.cfg.Style.Compressed,
	}, b.cfg.Path(b.cfg.Style.Output))
	if err != nil {
		return err
	}
	b.log.Info("Stylesheet compiled", "output", b.cfg.Style.Output, "bytes", n)
	return nil
}

func (b *Builder) autoprefixer(*tasks.Ctx) error {
	_, _, err := transform.File(b.cfg.Path(b.cfg.Style.Output), func(src []byte, file string) ([]byte, error) {
		return transform.Prefix(src, b.engines, file)
	})
	return err
}

func (b *Builder) cssmin(*tasks.Ctx) error {
	return b.minifyAll(b.cfg.Style.MinifyDir, []string{"*.css", "!*.min.css"}, transform.MinifyCSS)
}

func (b *Builder) uglify(*tasks.Ctx) error {
	return b.minifyAll(b.cfg.Scripts.OutDir, []string{"**/*.js"}, transform.MinifyJS)
}

func (b *Builder) minifyAll(dir string, patterns []string, fn func([]byte, string) ([]byte, error)) error {
	abs := b.cfg.Path(dir)
	matches, err := globutil.Expand(os.DirFS(abs), patterns)
	if err != nil {
		return err
	}
	for _, rel := range matches.Files {
		before, after, err := transform.File(filepath.Join(abs, filepath.FromSlash(rel)), fn)
		if err != nil {
			return err
		}
		b.log.Info("Minified", "file", dir+"/"+rel, "before", before, "after", after)
	}
	return nil
}

func (b *Builder) imagemin(*tasks.Ctx) error {
	img := b.cfg.Images
	stats, err := assets.OptimizeImages(b.cfg.Path(img.Dir), img.Patterns, img.JPEGQuality)
	if err != nil {
		return err
	}
	b.log.Info("Images optimized", "files", stats.Files, "optimized", stats.Optimized, "saved", stats.Saved)
	return nil
}

func (b *Builder) concatPrepare(ctx *tasks.Ctx) error {
	set, err := b.prepare.Run(ctx, struct{}{})
	if err != nil {
		return err
	}
	for _, name := range set.Names() {
		t := set[name]
		b.log.Debug("Bundle", "name", name, "dest", t.Dest, "sources", len(t.Sources))
	}
	return nil
}

// prepareBundles expands the main bundle and merges the discovered page
// bundles over it. It runs once per execution context.
func (b *Builder) prepareBundles(_ *tasks.Ctx, _ struct{}) (bundle.Set, error) {
	base, err := b.baseBundles()
	if err != nil {
		return nil, err
	}

	sc := b.cfg.Scripts
	discovered, err := pages.Discover(sc.PagesDir, pages.Options{
		Extension: sc.Extension,
		DestDir:   sc.OutDir,
		Sort:      sc.SortSources,
		Lister:    b.lister,
		Logger:    b.log,
	})
	if err != nil {
		return nil, err
	}

	merged, replaced := bundle.Merge(base, discovered)
	for _, name := range replaced {
		b.log.Warn("Page bundle replaces a configured bundle", "name", name)
	}
	return merged, nil
}

func (b *Builder) baseBundles() (bundle.Set, error) {
	main := b.cfg.Scripts.Main
	if main.Name == "" {
		return bundle.Set{}, nil
	}
	matches, err := globutil.Expand(os.DirFS(b.cfg.Root), main.Sources)
	if err != nil {
		return nil, fmt.Errorf("bundle %s: %w", main.Name, err)
	}
	for _, p := range matches.Unmatched {
		b.log.Warn("Source pattern matched no files", "bundle", main.Name, "pattern", p)
	}
	sources := matches.Files
	if sources == nil {
		sources = []string{}
	}
	return bundle.Set{main.Name: {Name: main.Name, Sources: sources, Dest: main.Dest}}, nil
}

func (b *Builder) concat(ctx *tasks.Ctx) error {
	set, err := b.prepare.Run(ctx, struct{}{})
	if err != nil {
		return err
	}
	names := set.Names()
	sizes := make([]int, len(names))
	calls := make([]tasks.BoundTask, len(names))
	for i, name := range names {
		calls[i] = b.concatTarget.Bind(name, &sizes[i])
	}
	if err := ctx.RunParallel(calls...); err != nil {
		return err
	}

	for i, name := range names {
		t := set[name]
		if len(t.Sources) == 0 {
			b.log.Warn("Empty bundle", "name", name, "dest", t.Dest)
			continue
		}
		b.log.Info("Bundle written", "name", name, "dest", t.Dest, "sources", len(t.Sources), "bytes", sizes[i])
	}
	return nil
}

// concatBundle writes one target of the prepared set. Targets have
// distinct destinations, so concat writes them concurrently.
func (b *Builder) concatBundle(ctx *tasks.Ctx, name string) (int, error) {
	set, err := b.prepare.Run(ctx, struct{}{})
	if err != nil {
		return 0, err
	}
	t, ok := set[name]
	if !ok {
		return 0, fmt.Errorf("bundle %s: not prepared", name)
	}
	n, err := bundle.Concat(b.cfg.Root, t)
	if err != nil {
		return 0, fmt.Errorf("bundle %s: %w", name, err)
	}
	return n, nil
}

func (b *Builder) copy(*tasks.Ctx) error {
	for _, rule := range b.cfg.Copy {
		res, err := assets.Copy(b.cfg.Root, rule)
		if err != nil {
			return err
		}
		b.log.Info("Copied", "from", rule.Cwd, "to", rule.Dest, "files", len(res.Copied))
	}
	return nil
}

func (b *Builder) filerev(ctx *tasks.Ctx) error {
	summary, err := b.revision.Run(ctx, struct{}{})
	if err != nil {
		return err
	}
	b.log.Info("Files revved", "files", len(summary), "algorithm", b.cfg.Rev.Algorithm)
	return nil
}

// revisionFiles renames the outputs once per execution context; the mapping
// and rewrite steps share its summary.
func (b *Builder) revisionFiles(_ *tasks.Ctx, _ struct{}) (rev.Summary, error) {
	rc := b.cfg.Rev
	var skip []string
	if rc.Summary != "" {
		skip = append(skip, rc.Summary)
	}
	return rev.Revision(b.cfg.Root, rev.Options{
		Algorithm: rc.Algorithm,
		Length:    rc.Length,
		Src:       rc.Src,
		Skip:      skip,
	})
}

func (b *Builder) filerevMapping(ctx *tasks.Ctx) error {
	summary, err := b.revision.Run(ctx, struct{}{})
	if err != nil {
		return err
	}
	if b.cfg.Rev.Summary == "" {
		return nil
	}
	return rev.WriteSummary(b.cfg.Path(b.cfg.Rev.Summary), summary)
}

func (b *Builder) usemin(ctx *tasks.Ctx) error {
	summary, err := b.revision.Run(ctx, struct{}{})
	if err != nil {
		return err
	}
	rw := rev.Rewriter{
		Summary:   summary,
		WebRoot:   b.cfg.Rev.Rewrite.WebRoot,
		AssetDirs: b.cfg.Rev.Rewrite.AssetDirs,
	}
	css, err := rev.RewriteFiles(b.cfg.Root, b.cfg.Rev.Rewrite.CSS, rw.CSS)
	if err != nil {
		return err
	}
	js, err := rev.RewriteFiles(b.cfg.Root, b.cfg.Rev.Rewrite.JS, rw.JS)
	if err != nil {
		return err
	}
	b.log.Info("References rewritten", "css", css, "js", js)
	return nil
}

func (b *Builder) precompress(*tasks.Ctx) error {
	pc := b.cfg.Precompress
	written, err := assets.Precompress(b.cfg.Root, pc.Src, pc.Level)
	if err != nil {
		return err
	}
	b.log.Info("Precompressed", "files", len(written))
	return nil
}
