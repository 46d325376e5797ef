package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"dmfeed/pkg/logger"
	"dmfeed/pkg/state"
)

// Step is one named teardown action.
type Step struct {
	Name string
	Run  func() error
}

// ShutdownApp runs the steps in order, logging each one. A failing step is
// logged and does not stop later steps; the first error is returned.
func ShutdownApp(ctx context.Context, steps ...Step) error {
	logger.Info("shutdown_requested", "steps", len(steps))

	var first error
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			logger.Error("shutdown_deadline_exceeded", "step", s.Name, "error", err)
			if first == nil {
				first = err
			}
			break
		}
		if s.Run == nil {
			continue
		}
		logger.Info("shutdown_step", "step", s.Name)
		if err := s.Run(); err != nil {
			logger.Error("shutdown_step_failed", "step", s.Name, "error", err)
			if first == nil {
				first = fmt.Errorf("%s: %w", s.Name, err)
			}
		}
	}

	logger.Info("shutdown_complete")
	return first
}

// Abort logs the fatal error, writes a crash dump under dbPath and exits
// after delaySeconds (default 3) so logs can flush.
func Abort(contextMsg string, err error, dbPath string, delaySeconds ...int) {
	delay := 3
	if len(delaySeconds) > 0 && delaySeconds[0] >= 0 {
		delay = delaySeconds[0]
	}
	logger.Error("startup_fatal", "msg", contextMsg, "error", err)
	fmt.Fprintf(os.Stderr, "%s: %v\n", contextMsg, err)
	dumpPath, reqPath, derr := state.WriteCrashDump(dbPath, contextMsg, err)
	if derr != nil {
		logger.Error("abort_with_diagnostics_failed", "error", derr)
		fmt.Fprintf(os.Stderr, "FAILED TO WRITE CRASH DUMP: %v\n", derr)
	} else {
		logger.Info("wrote_crash_dump", "path", dumpPath, "request", reqPath)
		fmt.Fprintf(os.Stderr, "CRASH DUMP WRITTEN: %s\n", dumpPath)
	}
	for i := delay; i > 0; i-- {
		logger.Info("exiting_in_seconds", "seconds", i)
		time.Sleep(1 * time.Second)
	}
	logger.Sync()
	os.Exit(2)
}

// SetupSignalHandler installs handlers for SIGINT/SIGTERM and SIGPIPE and
// returns a cancellable context. The returned context is cancelled when any
// of the watched signals arrives. Use the cancel function to stop watching
// and to release resources.
func SetupSignalHandler(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	// handle interrupt/terminate for graceful shutdown
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case s := <-sigc:
			logger.Info("signal_received", "signal", s.String(), "msg", "shutdown requested")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigc)
	}()

	// watch for SIGPIPE and dump goroutine stacks to aid diagnostics
	sigpipe := make(chan os.Signal, 1)
	signal.Notify(sigpipe, syscall.SIGPIPE)
	go func() {
		select {
		case s := <-sigpipe:
			logger.Info("signal_received", "signal", s.String(), "msg", "SIGPIPE - dumping goroutine stacks")
			buf := make([]byte, 1<<20)
			n := runtime.Stack(buf, true)
			logger.Info("goroutine_stack_dump", "dump", string(buf[:n]))
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigpipe)
	}()

	return ctx, cancel
}
