package rev

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
}

func TestFileHash(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.txt")
	require.NoError(t, os.WriteFile(p, []byte("hello"), 0644))

	tests := []struct {
		algorithm string
		want      string
	}{
		{"md5", "5d41402a"},
		{"sha1", "aaf4c61d"},
		{"sha256", "2cf24dba"},
		{"sha512", "9b71d224"},
	}
	for _, tt := range tests {
		t.Run(tt.algorithm, func(t *testing.T) {
			got, err := FileHash(tt.algorithm, p, 8)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}

	full, err := FileHash("blake2b", p, 0)
	require.NoError(t, err)
	require.Len(t, full, 64)

	_, err = FileHash("crc32", p, 8)
	require.ErrorContains(t, err, "unknown algorithm")
}

func TestRevvedName(t *testing.T) {
	require.Equal(t, "app.1a2b3c4d.js", RevvedName("app.js", "1a2b3c4d"))
	require.Equal(t, "jquery.min.1a2b.js", RevvedName("jquery.min.js", "1a2b"))
	require.Equal(t, "LICENSE.1a2b", RevvedName("LICENSE", "1a2b"))
}

func TestRevision(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"public/js/app.js":     "hello",
		"public/img/logo.png":  "hello",
		"public/robots.txt":    "User-agent: *",
		"public/filerev.json":  "{}",
		"resources/keep/me.js": "x",
	})

	summary, err := Revision(root, Options{
		Algorithm: "md5",
		Length:    8,
		Src:       []string{"public/**/*", "!public/robots.txt"},
		Skip:      []string{"public/filerev.json"},
	})
	require.NoError(t, err)
	require.Equal(t, Summary{
		"public/js/app.js":    "public/js/app.5d41402a.js",
		"public/img/logo.png": "public/img/logo.5d41402a.png",
	}, summary)

	require.FileExists(t, filepath.Join(root, "public", "js", "app.5d41402a.js"))
	require.NoFileExists(t, filepath.Join(root, "public", "js", "app.js"))
	require.FileExists(t, filepath.Join(root, "public", "robots.txt"))
	require.FileExists(t, filepath.Join(root, "public", "filerev.json"))
}

func TestRevisionUnknownAlgorithmTouchesNothing(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"public/a.js": "x"})
	_, err := Revision(root, Options{Algorithm: "crc32", Length: 8, Src: []string{"public/**/*"}})
	require.Error(t, err)
	require.FileExists(t, filepath.Join(root, "public", "a.js"))
}

func TestSummaryRoundTrip(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "public", "filerev.json")
	s := Summary{"public/b.js": "public/b.2.js", "public/a.js": "public/a.1.js"}
	require.NoError(t, WriteSummary(dest, s))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, "{\n  \"public/a.js\": \"public/a.1.js\",\n  \"public/b.js\": \"public/b.2.js\"\n}\n", string(data))

	got, err := ReadSummary(dest)
	require.NoError(t, err)
	require.Equal(t, s, got)
}
