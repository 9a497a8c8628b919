package style

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bep/godartsass/v2"
	"github.com/vormadev/kiln/kit/fsutil"
)

type Request struct {
	// Entry is the absolute path of the Sass entry file.
	Entry        string
	IncludePaths []string
	Compressed   bool
}

// Compiler turns a Sass entry into CSS.
type Compiler interface {
	Compile(ctx context.Context, req Request) ([]byte, error)
}

// DartSass drives the Dart Sass embedded protocol. The transpiler process is
// started on first use and reused until Close.
type DartSass struct {
	// Binary is the "sass" executable; empty means look it up on PATH.
	Binary string

	mu sync.Mutex
	t  *godartsass.Transpiler
}

func (d *DartSass) transpiler() (*godartsass.Transpiler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.t != nil {
		return d.t, nil
	}
	t, err := godartsass.Start(godartsass.Options{DartSassEmbeddedFilename: d.Binary})
	if err != nil {
		return nil, fmt.Errorf("start dart sass: %w", err)
	}
	d.t = t
	return t, nil
}

func (d *DartSass) Compile(ctx context.Context, req Request) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := os.ReadFile(req.Entry)
	if err != nil {
		return nil, err
	}
	t, err := d.transpiler()
	if err != nil {
		return nil, err
	}

	style := godartsass.OutputStyleExpanded
	if req.Compressed {
		style = godartsass.OutputStyleCompressed
	}
	includes := append([]string{filepath.Dir(req.Entry)}, req.IncludePaths...)

	res, err := t.Execute(godartsass.Args{
		Source:       string(src),
		URL:          "file://" + filepath.ToSlash(req.Entry),
		SourceSyntax: godartsass.SourceSyntaxSCSS,
		OutputStyle:  style,
		IncludePaths: includes,
	})
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", req.Entry, err)
	}
	return []byte(res.CSS), nil
}

// Close stops the transpiler process, if one was started.
func (d *DartSass) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.t == nil {
		return nil
	}
	err := d.t.Close()
	d.t = nil
	return err
}

// CompileFile compiles entry and writes the CSS to output atomically.
func CompileFile(ctx context.Context, c Compiler, req Request, output string) (int, error) {
	css, err := c.Compile(ctx, req)
	if err != nil {
		return 0, err
	}
	if err := fsutil.WriteFileAtomicBytes(output, css); err != nil {
		return 0, err
	}
	return len(css), nil
}
