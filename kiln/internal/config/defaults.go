package config

import "time"

const (
	DefaultFileName       = "kiln.yaml"
	DefaultLiveReloadPort = 35729
)

// Default returns the layout of a conventional resources/assets -> public
// project. A kiln.yaml only needs to name what differs.
func Default() *Config {
	return &Config{
		Style: StyleConfig{
			Globs: []string{
				"resources/assets/scss/bootstrap-custom/_bt4_variables.scss",
				"node_modules/bootstrap/scss/bootstrap.scss",
				"resources/assets/scss/vendor/**/*.scss",
				"resources/assets/scss/common/**/*.scss",
				"resources/assets/scss/pages/**/*.scss",
			},
			Entry:     "resources/assets/scss/style.scss",
			Output:    "public/css/style.css",
			Targets:   []string{"chrome109", "edge120", "firefox115", "safari15", "ios15", "ie9"},
			MinifyDir: "public/css",
		},
		Scripts: ScriptConfig{
			Main: BundleConfig{
				Name: "main",
				Sources: []string{
					"node_modules/jquery/dist/jquery.min.js",
					"node_modules/bootstrap/dist/js/bootstrap.bundle.min.js",
					"resources/assets/js/vendor/**/*.js",
					"resources/assets/js/*.js",
				},
				Dest: "public/js/app.js",
			},
			PagesDir:  "resources/assets/js/pages",
			OutDir:    "public/js",
			Extension: ".js",
		},
		Images: ImageConfig{
			Dir:         "public/img",
			Patterns:    []string{"*.{png,jpg,jpeg,gif}"},
			JPEGQuality: 85,
		},
		Copy: []CopyRule{
			{Cwd: "resources/assets/fonts", Src: []string{"**/*.{eot,svg,ttf,woff,woff2}"}, Dest: "public/fonts"},
			{Cwd: "resources/assets/img", Src: []string{"**"}, Dest: "public/img"},
			{Cwd: "resources/assets/videos", Src: []string{"**"}, Dest: "public/videos"},
		},
		Clean: []string{
			".sass-cache",
			"public/css",
			"public/fonts",
			"public/img",
			"public/js",
			"public/filerev.json",
		},
		Rev: RevConfig{
			Algorithm: "md5",
			Length:    8,
			Src: []string{
				"public/**/*",
				"!public/.htaccess",
				"!public/favicon.ico",
				"!public/index.php",
				"!public/robots.txt",
				"!public/web.config",
			},
			Summary: "public/filerev.json",
			Rewrite: RewriteConfig{
				CSS:       []string{"public/css/*.css"},
				JS:        []string{"public/js/*.js"},
				AssetDirs: []string{"public/img"},
				WebRoot:   "public",
			},
		},
		Precompress: PrecompressConfig{
			Src:   []string{"public/css/**/*.css", "public/js/**/*.js", "public/**/*.svg"},
			Level: 9,
		},
		Watch: WatchConfig{
			Debounce: 100 * time.Millisecond,
			Targets: map[string]WatchTarget{
				"sass": {
					Files: []string{"resources/assets/scss/**/*.{sass,scss}", "*.html"},
					Tasks: []string{"sass_globbing", "sass", "autoprefixer", "copy", "notify:scss"},
				},
				"scripts": {
					Files: []string{"resources/assets/js/**/*.js"},
					Tasks: []string{"concat_prepare", "concat", "notify:js"},
				},
				"img": {
					Files: []string{"resources/assets/img/**/*.*"},
					Tasks: []string{"copy", "notify:copy"},
				},
			},
		},
		LiveReload: LiveReloadConfig{
			Enabled: true,
			Port:    DefaultLiveReloadPort,
		},
		Notify: map[string]Notification{
			"js":     {Title: "Task Complete", Message: "JS compiled"},
			"scss":   {Title: "Task Complete", Message: "SASS compiled"},
			"copy":   {Title: "Task Complete", Message: "Asset compiled"},
			"watch":  {Title: "Watch Started", Message: "Watching Files"},
			"allDev": {Title: "Dev Compiled", Message: "All compiled"},
		},
	}
}
