package globutil

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

func testFS() fstest.MapFS {
	return fstest.MapFS{
		"node_modules/jquery/dist/jquery.min.js": {Data: []byte("jq")},
		"assets/js/vendor/a.js":                  {Data: []byte("a")},
		"assets/js/vendor/deep/b.js":             {Data: []byte("b")},
		"assets/js/main.js":                      {Data: []byte("main")},
		"assets/js/util.js":                      {Data: []byte("util")},
		"assets/js/pages/home/init.js":           {Data: []byte("init")},
		"public/index.php":                       {Data: []byte("php")},
		"public/css/style.css":                   {Data: []byte("css")},
	}
}

func TestExpandKeepsPatternOrder(t *testing.T) {
	m, err := Expand(testFS(), []string{
		"node_modules/jquery/dist/jquery.min.js",
		"assets/js/vendor/**/*.js",
		"assets/js/*.js",
	})
	require.NoError(t, err)
	require.Equal(t, []string{
		"node_modules/jquery/dist/jquery.min.js",
		"assets/js/vendor/a.js",
		"assets/js/vendor/deep/b.js",
		"assets/js/main.js",
		"assets/js/util.js",
	}, m.Files)
	require.Empty(t, m.Unmatched)
}

func TestExpandDeduplicates(t *testing.T) {
	m, err := Expand(testFS(), []string{"assets/js/util.js", "assets/js/*.js"})
	require.NoError(t, err)
	require.Equal(t, []string{"assets/js/util.js", "assets/js/main.js"}, m.Files)
}

func TestExpandNegation(t *testing.T) {
	m, err := Expand(testFS(), []string{"public/**/*", "!public/index.php"})
	require.NoError(t, err)
	require.Equal(t, []string{"public/css/style.css"}, m.Files)
}

func TestExpandReportsUnmatched(t *testing.T) {
	m, err := Expand(testFS(), []string{"./assets/js/main.js", "node_modules/bootstrap/dist/js/x.js"})
	require.NoError(t, err)
	require.Equal(t, []string{"assets/js/main.js"}, m.Files)
	require.Equal(t, []string{"node_modules/bootstrap/dist/js/x.js"}, m.Unmatched)
}

func TestExpandInvalidNegation(t *testing.T) {
	_, err := Expand(testFS(), []string{"!public/[oops"})
	require.Error(t, err)
}

func TestMatch(t *testing.T) {
	patterns := []string{"public/**/*", "!public/index.php", "!public/favicon.ico"}
	require.True(t, Match(patterns, "public/css/style.css"))
	require.False(t, Match(patterns, "public/index.php"))
	require.False(t, Match(patterns, "resources/a.js"))
	require.True(t, Match([]string{"resources/assets/js/**/*.js"}, "resources/assets/js/pages/home/a.js"))
}

func TestMatchDir(t *testing.T) {
	tests := []struct {
		patterns []string
		dir      string
		want     bool
	}{
		{[]string{"resources/assets/js/**/*.js"}, "resources/assets/js/pages/shop", true},
		{[]string{"resources/assets/js/**/*.js"}, "resources/assets/js", true},
		{[]string{"resources/assets/js/**/*.js"}, "resources", true},
		{[]string{"resources/assets/js/**/*.js"}, "resources/assets/scss/pages", false},
		{[]string{"*.html"}, "resources/assets/js/pages/shop", false},
		{[]string{"src/*/index.js"}, "src/home", true},
		{[]string{"src/*/index.js"}, "src/home/deep", false},
		{[]string{"src/*.js"}, "src/home", false},
		{[]string{"!resources/**", "lib/**"}, "resources/x", false},
		{nil, "anything", false},
	}
	for _, tt := range tests {
		t.Run(tt.dir, func(t *testing.T) {
			require.Equal(t, tt.want, MatchDir(tt.patterns, tt.dir), "%v", tt.patterns)
		})
	}
}
