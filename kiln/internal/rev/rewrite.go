package rev

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/css"
	"github.com/tdewolff/parse/v2/js"
	"github.com/vormadev/kiln/kit/fsutil"
	"github.com/vormadev/kiln/kit/globutil"
)

// Rewriter replaces references to revved files.
type Rewriter struct {
	Summary Summary
	// WebRoot anchors absolute references ("/img/a.png").
	WebRoot string
	// AssetDirs are tried, in order, when a reference does not resolve
	// relative to the file containing it.
	AssetDirs []string
}

// Resolve returns the rewritten form of ref as it appears in the file at
// from (root-relative), and whether anything changed.
func (rw Rewriter) Resolve(from, ref string) (string, bool) {
	if ref == "" || isExternal(ref) {
		return ref, false
	}
	target, suffix := splitSuffix(ref)
	if target == "" {
		return ref, false
	}

	var candidates []string
	if strings.HasPrefix(target, "/") {
		candidates = append(candidates, path.Join(rw.WebRoot, target))
	} else {
		candidates = append(candidates, path.Join(path.Dir(from), target))
		for _, dir := range rw.AssetDirs {
			candidates = append(candidates, path.Join(dir, target))
		}
	}

	for _, c := range candidates {
		revved, ok := rw.Summary[c]
		if !ok {
			continue
		}
		dir, _ := path.Split(target)
		return dir + path.Base(revved) + suffix, true
	}
	return ref, false
}

func isExternal(ref string) bool {
	switch {
	case strings.HasPrefix(ref, "//"),
		strings.HasPrefix(ref, "#"),
		strings.HasPrefix(ref, "data:"),
		strings.Contains(ref, "://"):
		return true
	}
	return false
}

func splitSuffix(ref string) (string, string) {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		return ref[:i], ref[i:]
	}
	return ref, ""
}

// CSS rewrites url() and string references in a stylesheet.
func (rw Rewriter) CSS(from string, src []byte) ([]byte, int, error) {
	l := css.NewLexer(parse.NewInputBytes(src))
	var out bytes.Buffer
	out.Grow(len(src))
	n := 0

	for {
		tt, data := l.Next()
		switch tt {
		case css.ErrorToken:
			if err := l.Err(); err != io.EOF {
				return nil, 0, fmt.Errorf("lex %s: %w", from, err)
			}
			return out.Bytes(), n, nil
		case css.URLToken:
			if next, ok := rw.cssURL(from, data); ok {
				data = next
				n++
			}
		case css.StringToken:
			if next, ok := rw.quoted(from, data); ok {
				data = next
				n++
			}
		}
		out.Write(data)
	}
}

// cssURL handles url(x), url("x") and url('x').
func (rw Rewriter) cssURL(from string, tok []byte) ([]byte, bool) {
	s := string(tok)
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return nil, false
	}
	inner := strings.TrimSpace(s[open+1 : len(s)-1])
	if len(inner) >= 2 && (inner[0] == '"' || inner[0] == '\'') && inner[len(inner)-1] == inner[0] {
		next, ok := rw.quoted(from, []byte(inner))
		if !ok {
			return nil, false
		}
		return []byte(s[:open+1] + string(next) + ")"), true
	}
	ref, ok := rw.Resolve(from, inner)
	if !ok {
		return nil, false
	}
	return []byte(s[:open+1] + ref + ")"), true
}

func (rw Rewriter) quoted(from string, tok []byte) ([]byte, bool) {
	if len(tok) < 2 {
		return nil, false
	}
	q := tok[0]
	ref, ok := rw.Resolve(from, string(tok[1:len(tok)-1]))
	if !ok {
		return nil, false
	}
	return []byte(string(q) + ref + string(q)), true
}

// Keywords after which a slash starts a regular expression.
var regexpAfterKeyword = map[string]bool{
	"return": true, "typeof": true, "instanceof": true, "in": true, "of": true,
	"new": true, "delete": true, "void": true, "throw": true, "case": true,
	"do": true, "else": true, "yield": true, "await": true,
}

// JS rewrites string literal references in a script.
func (rw Rewriter) JS(from string, src []byte) ([]byte, int, error) {
	l := js.NewLexer(parse.NewInputBytes(src))
	var out bytes.Buffer
	out.Grow(len(src))
	n := 0
	var prev []byte

	for {
		tt, data := l.Next()
		switch tt {
		case js.ErrorToken:
			if err := l.Err(); err != io.EOF {
				return nil, 0, fmt.Errorf("lex %s: %w", from, err)
			}
			return out.Bytes(), n, nil
		case js.WhitespaceToken, js.LineTerminatorToken, js.CommentToken, js.CommentLineTerminatorToken:
			out.Write(data)
			continue
		case js.DivToken, js.DivEqToken:
			if slashStartsRegExp(prev) {
				tt, data = l.RegExp()
				if tt == js.ErrorToken {
					return nil, 0, fmt.Errorf("lex %s: %w", from, l.Err())
				}
			}
		case js.StringToken:
			if next, ok := rw.quoted(from, data); ok {
				out.Write(next)
				prev = data
				n++
				continue
			}
		}
		out.Write(data)
		prev = data
	}
}

func slashStartsRegExp(prev []byte) bool {
	if len(prev) == 0 {
		return true
	}
	switch c := prev[len(prev)-1]; {
	case c == ')' || c == ']' || c == '}' || c == '"' || c == '\'' || c == '`' || c == '/':
		return false
	case c == '_' || c == '$' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
		return regexpAfterKeyword[string(prev)]
	}
	return true
}

// RewriteFiles applies fn to every file patterns match under root, writing
// back only files that changed. It returns the total number of rewritten
// references.
func RewriteFiles(root string, patterns []string, fn func(from string, src []byte) ([]byte, int, error)) (int, error) {
	matches, err := globutil.Expand(os.DirFS(root), patterns)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, rel := range matches.Files {
		full := filepath.Join(root, filepath.FromSlash(rel))
		src, err := os.ReadFile(full)
		if err != nil {
			return total, err
		}
		out, n, err := fn(rel, src)
		if err != nil {
			return total, err
		}
		if n == 0 {
			continue
		}
		if err := fsutil.WriteFileAtomicBytes(full, out); err != nil {
			return total, fmt.Errorf("write %s: %w", rel, err)
		}
		total += n
	}
	return total, nil
}
