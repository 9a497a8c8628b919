package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/require"
	"github.com/vormadev/kiln/kiln/internal/bundle"
	"github.com/vormadev/kiln/kiln/internal/config"
	"github.com/vormadev/kiln/kiln/tooling"
)

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, string, config.Notification) error { return nil }

func newProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range map[string]string{
		"resources/assets/js/site.js":          "var site;",
		"resources/assets/js/pages/home/a.js":  "var a;",
		"resources/assets/js/pages/home/b.js":  "var b;",
		"resources/assets/js/pages/blog/.keep": "",
	} {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	}
	return root
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	var cli CLI
	g := &Globals{
		Out: &out,
		options: func(o *tooling.Options) {
			o.Notifier = nopNotifier{}
		},
	}
	parser, err := newParser(context.Background(), &cli, g, kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)
	kctx, err := parser.Parse(args)
	require.NoError(t, err)
	err = kctx.Run()
	return out.String(), err
}

func TestPagesCommand(t *testing.T) {
	root := newProject(t)
	out, err := execute(t, "--root", root, "pages")
	require.NoError(t, err)

	var set bundle.Set
	require.NoError(t, json.Unmarshal([]byte(out), &set))
	require.Equal(t, []string{"blog", "home", "main"}, set.Names())
	require.Equal(t, []string{
		"resources/assets/js/pages/home/a.js",
		"resources/assets/js/pages/home/b.js",
	}, set["home"].Sources)
	require.Empty(t, set["blog"].Sources)
}

func TestTasksCommand(t *testing.T) {
	out, err := execute(t, "--root", newProject(t), "tasks")
	require.NoError(t, err)
	require.Contains(t, out, "concat_prepare")
	require.Contains(t, out, "default")
	require.Contains(t, out, "build")
}

func TestRunCommand(t *testing.T) {
	root := newProject(t)
	_, err := execute(t, "--root", root, "run", "js")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(root, "public", "js", "home.js"))
	require.NoError(t, err)
	require.Equal(t, "var a;\nvar b;", string(data))
}

func TestRunCommandUnknownTask(t *testing.T) {
	_, err := execute(t, "--root", newProject(t), "run", "nope")
	require.ErrorContains(t, err, `unknown task "nope"`)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := execute(t, "--root", newProject(t), "-c", "missing.yaml", "pages")
	require.Error(t, err)
}
