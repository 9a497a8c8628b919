// Package rev renames build outputs to content-hashed names and rewrites
// the references other outputs make to them.
package rev

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/vormadev/kiln/kit/fsutil"
	"github.com/vormadev/kiln/kit/globutil"
	"golang.org/x/crypto/blake2b"
)

// Summary maps original paths to revved paths, both slash-separated and
// relative to the project root.
type Summary map[string]string

type Options struct {
	Algorithm string
	// Length is the number of hex characters kept from the digest.
	Length int
	Src    []string
	// Skip lists root-relative paths that are never revved, such as the
	// summary file itself.
	Skip []string
}

func newHash(algorithm string) (hash.Hash, error) {
	switch algorithm {
	case "md5":
		return md5.New(), nil
	case "sha1":
		return sha1.New(), nil
	case "sha256":
		return sha256.New(), nil
	case "sha512":
		return sha512.New(), nil
	case "blake2b":
		return blake2b.New256(nil)
	}
	return nil, fmt.Errorf("rev: unknown algorithm %q", algorithm)
}

// FileHash returns the first length hex characters of path's digest.
func FileHash(algorithm, path string, length int) (string, error) {
	h, err := newHash(algorithm)
	if err != nil {
		return "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	sum := hex.EncodeToString(h.Sum(nil))
	if length > 0 && length < len(sum) {
		sum = sum[:length]
	}
	return sum, nil
}

// RevvedName inserts hash before the extension: "a.min.js" -> "a.min.<hash>.js".
func RevvedName(name, hash string) string {
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + "." + hash + ext
}

// Revision renames every file opts.Src matches under root to its revved
// name and returns the mapping.
func Revision(root string, opts Options) (Summary, error) {
	if _, err := newHash(opts.Algorithm); err != nil {
		return nil, err
	}
	matches, err := globutil.Expand(os.DirFS(root), opts.Src)
	if err != nil {
		return nil, err
	}

	skip := make(map[string]bool, len(opts.Skip))
	for _, s := range opts.Skip {
		skip[path.Clean(s)] = true
	}

	summary := make(Summary, len(matches.Files))
	for _, rel := range matches.Files {
		if skip[rel] {
			continue
		}
		full := filepath.Join(root, filepath.FromSlash(rel))
		sum, err := FileHash(opts.Algorithm, full, opts.Length)
		if err != nil {
			return summary, fmt.Errorf("hash %s: %w", rel, err)
		}
		revved := path.Join(path.Dir(rel), RevvedName(path.Base(rel), sum))
		if err := os.Rename(full, filepath.Join(root, filepath.FromSlash(revved))); err != nil {
			return summary, fmt.Errorf("rename %s: %w", rel, err)
		}
		summary[rel] = revved
	}
	return summary, nil
}

// WriteSummary writes s as indented JSON.
func WriteSummary(dest string, s Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return fsutil.WriteFileAtomicBytes(dest, append(data, '\n'))
}

// ReadSummary loads a summary written by WriteSummary.
func ReadSummary(src string) (Summary, error) {
	data, err := os.ReadFile(src)
	if err != nil {
		return nil, err
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse %s: %w", src, err)
	}
	return s, nil
}
