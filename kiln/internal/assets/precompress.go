package assets

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/vormadev/kiln/kit/fsutil"
	"github.com/vormadev/kiln/kit/globutil"
)

// Precompress writes a "<file>.gz" sibling for every file patterns match
// under root and returns the written paths, relative to root.
func Precompress(root string, patterns []string, level int) ([]string, error) {
	matches, err := globutil.Expand(os.DirFS(root), patterns)
	if err != nil {
		return nil, err
	}

	var written []string
	for _, rel := range matches.Files {
		if strings.HasSuffix(rel, ".gz") {
			continue
		}
		src := filepath.Join(root, filepath.FromSlash(rel))
		if err := gzipFile(src, src+".gz", level); err != nil {
			return written, fmt.Errorf("precompress %s: %w", rel, err)
		}
		written = append(written, rel+".gz")
	}
	return written, nil
}

func gzipFile(src, dest string, level int) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	return fsutil.WriteFileAtomic(dest, func(f *os.File) error {
		zw, err := gzip.NewWriterLevel(f, level)
		if err != nil {
			return err
		}
		zw.Name = filepath.Base(src)
		if _, err := io.Copy(zw, in); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	})
}
