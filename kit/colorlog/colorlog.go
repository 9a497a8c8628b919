// Package colorlog provides a compact, labelled slog handler for build output.
package colorlog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

const (
	colorReset   = "\033[0m"
	colorGray    = "\033[37m"
	colorYellow  = "\033[33m"
	colorRed     = "\033[31m"
	colorCyan    = "\033[36m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
)

// TaskKey is rendered as a "[task]" tag ahead of the message rather than as
// a trailing attribute.
const TaskKey = "task"

type Options struct {
	Output   io.Writer
	Level    slog.Leveler
	UseColor *bool // nil = auto-detect
}

type Handler struct {
	label  string
	opts   Options
	mu     *sync.Mutex // shared across WithAttrs/WithGroup clones
	task   string
	attrs  []slog.Attr
	groups []string
	color  bool
}

func New(label string, opts ...Options) *slog.Logger {
	var o Options
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.Output == nil {
		o.Output = os.Stdout
	}
	if o.Level == nil {
		o.Level = slog.LevelInfo
	}
	return slog.New(&Handler{
		label: label,
		opts:  o,
		mu:    &sync.Mutex{},
		color: detectColor(o.Output, o.UseColor),
	})
}

func detectColor(w io.Writer, override *bool) bool {
	if override != nil {
		return *override
	}
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	task := h.task
	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == TaskKey && len(h.groups) == 0 {
			task = a.Value.String()
			return true
		}
		attrs = append(attrs, h.prefixAttr(a))
		return true
	})

	var sb strings.Builder
	sb.WriteString(h.wrap(colorGray, r.Time.Format("15:04:05")))
	sb.WriteString("  ")
	sb.WriteString(h.wrap(colorBlue, h.label))
	sb.WriteString("  ")
	if task != "" {
		sb.WriteString(h.wrap(colorMagenta, "["+task+"]"))
		sb.WriteString(" ")
	}
	sb.WriteString(h.wrap(levelColor(r.Level), levelPrefix(r.Level)+r.Message))
	for _, a := range attrs {
		sb.WriteString("  ")
		sb.WriteString(h.wrap(colorGray, a.Key+"="))
		sb.WriteString(fmt.Sprintf("%v", a.Value.Any()))
	}
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.opts.Output, sb.String())
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := h.clone()
	clone.attrs = make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(clone.attrs, h.attrs)
	for _, a := range attrs {
		if a.Key == TaskKey && len(h.groups) == 0 {
			clone.task = a.Value.String()
			continue
		}
		clone.attrs = append(clone.attrs, h.prefixAttr(a))
	}
	return clone
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := h.clone()
	clone.groups = append(append([]string(nil), h.groups...), name)
	return clone
}

func (h *Handler) clone() *Handler {
	c := *h
	return &c
}

func (h *Handler) prefixAttr(a slog.Attr) slog.Attr {
	if len(h.groups) == 0 {
		return a
	}
	return slog.Attr{Key: strings.Join(h.groups, ".") + "." + a.Key, Value: a.Value}
}

func (h *Handler) wrap(color, s string) string {
	if !h.color {
		return s
	}
	return color + s + colorReset
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return colorRed
	case level >= slog.LevelWarn:
		return colorYellow
	case level >= slog.LevelInfo:
		return colorCyan
	default:
		return colorGray
	}
}

func levelPrefix(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR  "
	case level >= slog.LevelWarn:
		return "WARNING  "
	case level >= slog.LevelInfo:
		return ""
	default:
		return "DEBUG  "
	}
}
