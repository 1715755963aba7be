package daemon

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// signalLoop routes OS signals for a running daemon. SIGHUP triggers a
// reload; SIGINT and SIGTERM end the loop so the daemon shuts down.
type signalLoop struct {
	signals chan os.Signal
	reload  func(context.Context)
}

func newSignalLoop(reload func(context.Context)) *signalLoop {
	return &signalLoop{
		signals: make(chan os.Signal, 1),
		reload:  reload,
	}
}

func (l *signalLoop) listen() {
	signal.Notify(l.signals, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
}

func (l *signalLoop) close() {
	signal.Stop(l.signals)
}

// wait blocks until a shutdown signal arrives or ctx ends, running reload
// for each SIGHUP in between. It returns the shutdown signal, or nil when
// ctx ended first.
func (l *signalLoop) wait(ctx context.Context) os.Signal {
	for {
		select {
		case sig := <-l.signals:
			if sig == syscall.SIGHUP {
				l.reload(ctx)
				continue
			}
			return sig
		case <-ctx.Done():
			return nil
		}
	}
}
