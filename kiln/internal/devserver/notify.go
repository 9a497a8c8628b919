package devserver

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
	"strconv"

	"github.com/cli/safeexec"
	"github.com/vormadev/kiln/kiln/internal/config"
)

// Notifier announces build milestones.
type Notifier interface {
	Notify(ctx context.Context, name string, n config.Notification) error
}

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	Log *slog.Logger
}

func (l LogNotifier) Notify(_ context.Context, name string, n config.Notification) error {
	l.Log.Info(n.Message, "title", n.Title, "notification", name)
	return nil
}

// DesktopNotifier shows a desktop notification through notify-send (Linux)
// or osascript (macOS), and also logs it. Without either tool it only logs.
type DesktopNotifier struct {
	Log LogNotifier

	lookPath func(string) (string, error)
}

func NewDesktopNotifier(log *slog.Logger) *DesktopNotifier {
	return &DesktopNotifier{Log: LogNotifier{Log: log}, lookPath: safeexec.LookPath}
}

func (d *DesktopNotifier) Notify(ctx context.Context, name string, n config.Notification) error {
	if err := d.Log.Notify(ctx, name, n); err != nil {
		return err
	}
	bin, args := d.command(n)
	if bin == "" {
		return nil
	}
	if out, err := exec.CommandContext(ctx, bin, args...).CombinedOutput(); err != nil {
		// A missing notification daemon must never fail a build.
		d.Log.Log.Debug("desktop notification failed", "error", err, "output", string(out))
	}
	return nil
}

func (d *DesktopNotifier) command(n config.Notification) (string, []string) {
	switch runtime.GOOS {
	case "linux", "freebsd", "openbsd":
		if bin, err := d.lookPath("notify-send"); err == nil {
			return bin, []string{n.Title, n.Message}
		}
	case "darwin":
		if bin, err := d.lookPath("osascript"); err == nil {
			script := fmt.Sprintf("display notification %s with title %s", strconv.Quote(n.Message), strconv.Quote(n.Title))
			return bin, []string{"-e", script}
		}
	}
	return "", nil
}
