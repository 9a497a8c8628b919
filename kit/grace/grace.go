// Package grace ties process lifetime to OS signals.
package grace

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"

	"github.com/vormadev/kiln/kit/colorlog"
)

func defaultSignals() []os.Signal {
	if runtime.GOOS == "windows" {
		return []os.Signal{os.Interrupt}
	}
	return []os.Signal{syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT}
}

// SignalContext returns a context that is cancelled when the first of signals
// arrives (default: SIGHUP, SIGINT, SIGTERM, SIGQUIT). A second signal exits
// the process with status 1 so a stuck shutdown can always be interrupted.
// The returned stop func releases the signal handler.
func SignalContext(parent context.Context, log *slog.Logger, signals ...os.Signal) (context.Context, context.CancelFunc) {
	if log == nil {
		log = colorlog.New("grace")
	}
	if len(signals) == 0 {
		signals = defaultSignals()
	}

	ctx, cancel := context.WithCancel(parent)
	sig := make(chan os.Signal, 2)
	signal.Notify(sig, signals...)

	done := make(chan struct{})
	go func() {
		select {
		case s := <-sig:
			log.Info("[shutdown] Signal received, stopping", "signal", s)
			cancel()
		case <-done:
			return
		}
		select {
		case s := <-sig:
			log.Warn("[shutdown] Second signal received, forcing exit", "signal", s)
			os.Exit(1)
		case <-done:
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			signal.Stop(sig)
			close(done)
		})
		cancel()
	}
	return ctx, stop
}
