package assets

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/vormadev/kiln/kit/fsutil"
	"github.com/vormadev/kiln/kit/globutil"
)

type ImageStats struct {
	Files     int
	Optimized int
	Saved     int64
}

// OptimizeImages re-encodes the PNG and JPEG files patterns match under dir
// in place. A file is only replaced when the re-encode is smaller. Other
// formats are counted but left alone.
func OptimizeImages(dir string, patterns []string, jpegQuality int) (ImageStats, error) {
	var stats ImageStats
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return stats, nil
	}

	matches, err := globutil.Expand(os.DirFS(dir), patterns)
	if err != nil {
		return stats, err
	}

	for _, rel := range matches.Files {
		stats.Files++
		p := filepath.Join(dir, filepath.FromSlash(rel))
		saved, err := optimizeImage(p, jpegQuality)
		if err != nil {
			return stats, fmt.Errorf("optimize %s: %w", rel, err)
		}
		if saved > 0 {
			stats.Optimized++
			stats.Saved += saved
		}
	}
	return stats, nil
}

func optimizeImage(path string, jpegQuality int) (int64, error) {
	var encode func(*bytes.Buffer, image.Image) error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		encode = func(b *bytes.Buffer, img image.Image) error { return enc.Encode(b, img) }
	case ".jpg", ".jpeg":
		encode = func(b *bytes.Buffer, img image.Image) error {
			return jpeg.Encode(b, img, &jpeg.Options{Quality: jpegQuality})
		}
	default:
		return 0, nil
	}

	orig, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	img, _, err := image.Decode(bytes.NewReader(orig))
	if err != nil {
		return 0, err
	}

	var buf bytes.Buffer
	if err := encode(&buf, img); err != nil {
		return 0, err
	}
	if buf.Len() >= len(orig) {
		return 0, nil
	}
	if err := fsutil.WriteFileAtomicBytes(path, buf.Bytes()); err != nil {
		return 0, err
	}
	return int64(len(orig) - buf.Len()), nil
}
